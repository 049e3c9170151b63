package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	pdfcompose "github.com/alnah/go-pdfcompose"
	"github.com/alnah/go-pdfcompose/internal/config"
	"github.com/alnah/go-pdfcompose/internal/fileutil"
	"github.com/alnah/go-pdfcompose/internal/hints"
)

// Sentinel errors for CLI operations.
var (
	ErrUsage              = errors.New("invalid usage")
	ErrNoInput            = errors.New("no input specified")
	ErrReadInput          = errors.New("failed to read input file")
	ErrReadSignature      = errors.New("failed to read signature image")
	ErrReadAttachment     = errors.New("failed to read attachment")
	ErrWritePDF           = errors.New("failed to write PDF file")
	ErrInvalidWorkerCount = errors.New("invalid worker count")
)

// File permission constants.
const (
	dirPermissions  = 0o750 // rwxr-x---: owner full, group read+execute
	filePermissions = 0o644 // rw-r--r--: owner read+write, others read
)

// runCompose composes one input file into a PDF.
func runCompose(ctx context.Context, args []string, env *Environment) error {
	flags, positional, err := parseComposeFlags(args, env.Stderr)
	if err != nil {
		return err
	}
	if len(positional) == 0 {
		return ErrNoInput
	}
	if len(positional) > 1 {
		return fmt.Errorf("%w: expected one input file, got %d", ErrUsage, len(positional))
	}
	if flags.maxFileMB <= 0 {
		return fmt.Errorf("%w: --max-file-mb must be positive, got %d", ErrUsage, flags.maxFileMB)
	}

	cfg, err := loadConfig(flags.common.config, env)
	if err != nil {
		return err
	}
	mergeComposeFlags(flags, cfg)

	inputPath := positional[0]
	limit := int64(flags.maxFileMB) << 20

	req, err := buildRequest(inputPath, flags, cfg, limit)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return err
	}

	opts, err := buildComposerOptions(cfg, flags, env)
	if err != nil {
		return err
	}

	outputPath := resolveOutputPath(inputPath, flags.output)
	if err := os.MkdirAll(filepath.Dir(outputPath), dirPermissions); err != nil {
		return fmt.Errorf("%w: creating output directory: %w", ErrWritePDF, err)
	}

	composer := env.NewComposer(opts...)
	defer func() { _ = composer.Close() }()

	start := env.Now()
	result, err := composer.Compose(ctx, req)
	if err != nil {
		return err
	}
	elapsed := env.Now().Sub(start)

	// #nosec G306 -- PDFs are meant to be readable
	if err := os.WriteFile(outputPath, result.PDF, filePermissions); err != nil {
		return fmt.Errorf("%w: %w", ErrWritePDF, err)
	}
	if flags.html {
		// #nosec G306 -- HTML files are meant to be readable
		if err := os.WriteFile(htmlOutputPath(outputPath), result.HTML, filePermissions); err != nil {
			return fmt.Errorf("failed to write HTML file: %w", err)
		}
	}

	printComposeResult(env, inputPath, outputPath, result, elapsed, flags.common)
	return nil
}

// mergeComposeFlags applies explicitly set flags over the config.
// Precedence: CLI flags > env vars > config file > defaults.
func mergeComposeFlags(f *composeFlags, cfg *config.Config) {
	if f.render.timeout != "" {
		cfg.Render.Timeout = f.render.timeout
	}
	if f.render.browserBin != "" {
		cfg.Render.BrowserBin = f.render.browserBin
	}
	if f.render.noSandbox {
		cfg.Render.NoSandbox = true
	}

	if f.signature.label != "" {
		cfg.Signature.Label = f.signature.label
	}
	if f.signature.widthPx > 0 {
		cfg.Signature.ImageMaxWidthPx = f.signature.widthPx
	}
	if f.signature.lineWidth > 0 {
		cfg.Signature.LineWidthPx = f.signature.lineWidth
	}

	if f.margins.set["top"] {
		cfg.Page.Margins.Top = f.margins.top
	}
	if f.margins.set["bottom"] {
		cfg.Page.Margins.Bottom = f.margins.bottom
	}
	if f.margins.set["left"] {
		cfg.Page.Margins.Left = f.margins.left
	}
	if f.margins.set["right"] {
		cfg.Page.Margins.Right = f.margins.right
	}

	// Watermark: --watermark enables, --no-watermark wins over everything.
	if f.watermark.text != "" {
		cfg.Watermark.Text = f.watermark.text
		cfg.Watermark.Enabled = true
	}
	if f.watermark.color != "" {
		cfg.Watermark.Color = f.watermark.color
	}
	if f.watermark.opacity > 0 {
		cfg.Watermark.Opacity = f.watermark.opacity
	}
	if f.watermark.angle != watermarkAngleSentinel {
		cfg.Watermark.Angle = f.watermark.angle
	}
	if f.watermark.disabled {
		cfg.Watermark.Enabled = false
	}
}

// buildRequest reads every file the request needs.
func buildRequest(inputPath string, f *composeFlags, cfg *config.Config, limit int64) (pdfcompose.Request, error) {
	var req pdfcompose.Request

	data, err := fileutil.ReadFileLimited(inputPath, limit)
	if err != nil {
		return req, fmt.Errorf("%w: %w", ErrReadInput, err)
	}

	req.Markup = string(data)
	req.Format = resolveFormat(f.format, inputPath)
	req.Title = f.title
	if abs, err := filepath.Abs(inputPath); err == nil {
		req.SourceDir = filepath.Dir(abs)
	}

	if f.signature.image != "" {
		sig, err := buildSignature(f.signature.image, cfg.Signature.Label, limit)
		if err != nil {
			return req, err
		}
		req.Signature = sig
	}

	req.Margins = buildMargins(cfg)
	req.Watermark = buildWatermark(cfg, f.watermark.angle != watermarkAngleSentinel)

	for _, path := range f.attach {
		a, err := readAttachment(path, limit)
		if err != nil {
			return req, err
		}
		req.Attachments = append(req.Attachments, a)
	}

	return req, nil
}

// resolveFormat returns the explicit format, or guesses it from the
// input extension.
func resolveFormat(flagFormat, inputPath string) string {
	if flagFormat != "" {
		return flagFormat
	}
	switch strings.ToLower(filepath.Ext(inputPath)) {
	case ".md", ".markdown":
		return pdfcompose.FormatMarkdown
	}
	return pdfcompose.FormatHTML
}

// buildSignature loads the signature image and encodes it as a data URL.
func buildSignature(path, label string, limit int64) (*pdfcompose.Signature, error) {
	data, err := fileutil.ReadFileLimited(path, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReadSignature, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%s: %w", path, pdfcompose.ErrEmptySignatureImage)
	}
	ct := fileutil.DetectContentType(path, data)
	if !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: %s is %s", pdfcompose.ErrInvalidSignatureImage, path, ct)
	}
	return &pdfcompose.Signature{
		ImageData: "data:" + ct + ";base64," + base64.StdEncoding.EncodeToString(data),
		LabelText: label,
	}, nil
}

// buildMargins returns nil when no margin was configured anywhere.
func buildMargins(cfg *config.Config) *pdfcompose.Margins {
	m := cfg.Page.Margins
	if m.IsZero() {
		return nil
	}
	d := pdfcompose.DefaultMargins()
	out := &pdfcompose.Margins{Top: d.Top, Bottom: d.Bottom, Left: d.Left, Right: d.Right}
	if m.Top > 0 {
		out.Top = m.Top
	}
	if m.Bottom > 0 {
		out.Bottom = m.Bottom
	}
	if m.Left > 0 {
		out.Left = m.Left
	}
	if m.Right > 0 {
		out.Right = m.Right
	}
	return out
}

// buildWatermark creates the watermark from config, or nil when disabled.
// A zero angle means the default diagonal unless --wm-angle asked for it.
func buildWatermark(cfg *config.Config, explicitAngle bool) *pdfcompose.Watermark {
	if !cfg.Watermark.Enabled {
		return nil
	}
	w := &pdfcompose.Watermark{
		Text:    cfg.Watermark.Text,
		Color:   cfg.Watermark.Color,
		Opacity: cfg.Watermark.Opacity,
		Angle:   cfg.Watermark.Angle,
	}
	if w.Angle == 0 && !explicitAngle {
		w.Angle = pdfcompose.DefaultWatermarkAngle
	}
	return w
}

func readAttachment(path string, limit int64) (pdfcompose.Attachment, error) {
	data, err := fileutil.ReadFileLimited(path, limit)
	if err != nil {
		return pdfcompose.Attachment{}, fmt.Errorf("%w: %w", ErrReadAttachment, err)
	}
	return pdfcompose.Attachment{
		Data:     data,
		Filename: filepath.Base(path),
		MIMEType: fileutil.ContentTypeByExtension(path),
	}, nil
}

// buildComposerOptions translates the merged config into composer options.
func buildComposerOptions(cfg *config.Config, f *composeFlags, env *Environment) ([]pdfcompose.Option, error) {
	timeout, err := resolveTimeout(cfg)
	if err != nil {
		return nil, err
	}

	opts := []pdfcompose.Option{
		pdfcompose.WithSignatureLabel(cfg.Signature.Label),
		pdfcompose.WithSignatureSize(cfg.Signature.ImageMaxWidthPx, cfg.Signature.LineWidthPx),
		pdfcompose.WithBrowserBin(cfg.Render.BrowserBin),
		pdfcompose.WithNoSandbox(cfg.Render.NoSandbox),
	}
	if timeout > 0 {
		opts = append(opts, pdfcompose.WithTimeout(timeout))
	}
	if d, ok := cfg.Render.SettleDelayDuration(); ok {
		opts = append(opts, pdfcompose.WithSettleDelay(d))
	}

	// Warnings go to stderr unless --quiet; verbose adds timestamps.
	switch {
	case f.common.quiet:
	case f.common.verbose:
		opts = append(opts, pdfcompose.WithLogger(log.New(env.Stderr, "", log.Ltime|log.Lmicroseconds)))
	default:
		opts = append(opts, pdfcompose.WithLogger(log.New(env.Stderr, "", 0)))
	}
	return opts, nil
}

// resolveTimeout validates the merged timeout. Zero keeps the library default.
func resolveTimeout(cfg *config.Config) (time.Duration, error) {
	if cfg.Render.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(cfg.Render.Timeout)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid timeout %q: %v", ErrUsage, cfg.Render.Timeout, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: timeout must be positive, got %s", ErrUsage, cfg.Render.Timeout)
	}
	return d, nil
}

// resolveOutputPath defaults to the input path with a .pdf extension.
func resolveOutputPath(inputPath, flagOutput string) string {
	if flagOutput != "" {
		return flagOutput
	}
	ext := filepath.Ext(inputPath)
	return strings.TrimSuffix(inputPath, ext) + ".pdf"
}

// htmlOutputPath names the prepared document after the PDF. The suffix keeps
// it from overwriting an HTML input.
func htmlOutputPath(pdfPath string) string {
	return strings.TrimSuffix(pdfPath, filepath.Ext(pdfPath)) + ".prepared.html"
}

// printComposeResult reports the output. Skipped attachments and degraded
// merges are already logged by the composer as warnings.
func printComposeResult(env *Environment, inputPath, outputPath string, r *pdfcompose.Result, elapsed time.Duration, common commonFlags) {
	if common.quiet {
		return
	}
	if skipped := r.SkippedAttachments(); skipped > 0 {
		fmt.Fprintln(env.Stderr, strings.TrimPrefix(hints.ForSkippedAttachments(skipped), "\n"))
	}
	if !common.verbose {
		fmt.Fprintf(env.Stdout, "Created %s\n", outputPath)
		return
	}

	fmt.Fprintf(env.Stdout, "%s -> %s (%v)\n", inputPath, outputPath, elapsed.Round(time.Millisecond))
	if p := r.Placement; p != nil {
		fmt.Fprintf(env.Stdout, "  signature: %s (image %.0fpx, line %.0fpx", p.Mode, p.ImageMaxWidthPx, p.LineWidthPx)
		if p.ShrunkImages > 0 {
			fmt.Fprintf(env.Stdout, ", %d images shrunk", p.ShrunkImages)
		}
		fmt.Fprintln(env.Stdout, ")")
	}
	if n := len(r.Attachments); n > 0 {
		fmt.Fprintf(env.Stdout, "  attachments: %d merged, %d skipped\n", r.MergedAttachments(), r.SkippedAttachments())
	}
	if r.MergeDegraded {
		fmt.Fprintln(env.Stdout, "  attachments: not merged, report written alone")
	}
}

// hintFor returns an actionable hint for err, or "".
func hintFor(err error) string {
	switch {
	case errors.Is(err, pdfcompose.ErrBrowserConnect):
		return hints.ForBrowserConnect()
	case errors.Is(err, context.DeadlineExceeded):
		return hints.ForTimeout()
	case errors.Is(err, config.ErrConfigNotFound):
		return hints.ForConfigNotFound(triedPaths(err))
	case errors.Is(err, fileutil.ErrFileTooLarge):
		return hints.ForFileTooLarge("--max-file-mb")
	case errors.Is(err, ErrReadSignature), errors.Is(err, pdfcompose.ErrInvalidSignatureImage):
		return hints.ForSignatureImage()
	case errors.Is(err, pdfcompose.ErrInvalidMargin):
		return hints.ForMargins()
	case errors.Is(err, ErrWritePDF):
		return hints.ForOutputDirectory()
	}
	return ""
}

// triedPaths extracts the searched locations from a config-not-found error.
func triedPaths(err error) []string {
	_, list, ok := strings.Cut(err.Error(), "tried ")
	if !ok {
		return nil
	}
	return strings.Split(list, ", ")
}

// printError writes err and its hint to w.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v%s\n", err, hintFor(err))
}
