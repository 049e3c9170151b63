package main

import (
	"context"
	"fmt"
	"log"
	"time"

	pdfcompose "github.com/alnah/go-pdfcompose"
	"github.com/alnah/go-pdfcompose/internal/config"
	"github.com/alnah/go-pdfcompose/internal/server"
)

// Server abstracts the HTTP server for testability.
type Server interface {
	ListenAndServe(ctx context.Context) error
}

// runServe starts the HTTP server and blocks until ctx is canceled.
func runServe(ctx context.Context, args []string, env *Environment) error {
	flags, err := parseServeFlags(args, env.Stderr)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(flags.common.config, env)
	if err != nil {
		return err
	}
	if err := mergeServeFlags(flags, cfg); err != nil {
		return err
	}

	timeout, err := resolveTimeout(cfg)
	if err != nil {
		return err
	}

	logger := log.New(env.Stderr, "", log.LstdFlags)
	if flags.common.quiet {
		logger = log.New(env.Stderr, "", 0)
	}

	opts := []pdfcompose.Option{
		pdfcompose.WithSignatureLabel(cfg.Signature.Label),
		pdfcompose.WithSignatureSize(cfg.Signature.ImageMaxWidthPx, cfg.Signature.LineWidthPx),
		pdfcompose.WithBrowserBin(cfg.Render.BrowserBin),
		pdfcompose.WithNoSandbox(cfg.Render.NoSandbox),
		pdfcompose.WithLogger(logger),
	}
	if timeout > 0 {
		opts = append(opts, pdfcompose.WithTimeout(timeout))
	}
	if d, ok := cfg.Render.SettleDelayDuration(); ok {
		opts = append(opts, pdfcompose.WithSettleDelay(d))
	}

	poolSize := pdfcompose.ResolvePoolSize(cfg.Server.Workers)
	pool := pdfcompose.NewComposerPool(poolSize, opts...)
	defer func() { _ = pool.Close() }()

	if flags.common.verbose {
		fmt.Fprintf(env.Stderr, "Pool size: %d\n", poolSize)
	}

	srv := env.NewServer(&server.PoolComposer{Pool: pool}, serverConfig(cfg, logger))
	return srv.ListenAndServe(ctx)
}

// mergeServeFlags applies explicitly set flags over the config.
func mergeServeFlags(f *serveFlags, cfg *config.Config) error {
	if f.workers < 0 || f.workers > config.MaxWorkers {
		return fmt.Errorf("%w: %d (must be 0-%d)", ErrInvalidWorkerCount, f.workers, config.MaxWorkers)
	}
	if f.maxUploadMB < 0 || f.maxUploadMB > config.MaxUploadMB {
		return fmt.Errorf("%w: --max-upload-mb must be 0-%d, got %d", ErrUsage, config.MaxUploadMB, f.maxUploadMB)
	}

	if f.addr != "" {
		cfg.Server.Addr = f.addr
	}
	if f.workers > 0 {
		cfg.Server.Workers = f.workers
	}
	if f.maxUploadMB > 0 {
		cfg.Server.MaxUploadMB = f.maxUploadMB
	}
	if f.requestTimeout != "" {
		d, err := time.ParseDuration(f.requestTimeout)
		if err != nil || d <= 0 {
			return fmt.Errorf("%w: invalid --request-timeout %q", ErrUsage, f.requestTimeout)
		}
		cfg.Server.RequestTimeout = f.requestTimeout
	}
	if f.label != "" {
		cfg.Signature.Label = f.label
	}

	if f.render.timeout != "" {
		cfg.Render.Timeout = f.render.timeout
	}
	if f.render.browserBin != "" {
		cfg.Render.BrowserBin = f.render.browserBin
	}
	if f.render.noSandbox {
		cfg.Render.NoSandbox = true
	}
	return nil
}

// serverConfig maps the file configuration onto server settings. Zero
// values are left for the server to default.
func serverConfig(cfg *config.Config, logger *log.Logger) server.Config {
	return server.Config{
		Addr:           cfg.Server.Addr,
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		RequestTimeout: cfg.Server.RequestTimeoutDuration(),
		SignatureLabel: cfg.Signature.Label,
		Margins:        buildMargins(cfg),
		Watermark:      buildWatermark(cfg, false),
		Logger:         logger,
	}
}
