package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alnah/go-pdfcompose/internal/config"
)

// envPrefix is shared by every recognized environment variable.
const envPrefix = "PDFCOMPOSE_"

// envConfig holds configuration from environment variables.
// Provides CI/CD-friendly overrides without requiring YAML files.
type envConfig struct {
	ConfigPath     string        // PDFCOMPOSE_CONFIG: config file name or path
	Timeout        time.Duration // PDFCOMPOSE_TIMEOUT: composition timeout
	SignatureLabel string        // PDFCOMPOSE_SIGNATURE_LABEL: default caption
	WatermarkText  string        // PDFCOMPOSE_WATERMARK_TEXT: watermark text
	BrowserBin     string        // PDFCOMPOSE_BROWSER_BIN: Chrome binary
	NoSandbox      bool          // PDFCOMPOSE_NO_SANDBOX: "true" or "1"

	// Server
	Addr        string // PDFCOMPOSE_ADDR: listen address
	Workers     int    // PDFCOMPOSE_WORKERS: browser pool size
	MaxUploadMB int    // PDFCOMPOSE_MAX_UPLOAD_MB: request body limit
}

// knownEnvVars lists valid PDFCOMPOSE_* environment variables.
// Used to detect typos and warn users about unknown variables.
var knownEnvVars = map[string]bool{
	"PDFCOMPOSE_CONFIG":          true,
	"PDFCOMPOSE_TIMEOUT":         true,
	"PDFCOMPOSE_SIGNATURE_LABEL": true,
	"PDFCOMPOSE_WATERMARK_TEXT":  true,
	"PDFCOMPOSE_BROWSER_BIN":     true,
	"PDFCOMPOSE_NO_SANDBOX":      true,
	"PDFCOMPOSE_ADDR":            true,
	"PDFCOMPOSE_WORKERS":         true,
	"PDFCOMPOSE_MAX_UPLOAD_MB":   true,
	"PDFCOMPOSE_CONTAINER":       true, // read by doctor
}

// loadEnvConfig reads configuration from environment variables.
// Malformed numbers and durations are ignored, not errors.
func loadEnvConfig() *envConfig {
	cfg := &envConfig{
		ConfigPath:     os.Getenv("PDFCOMPOSE_CONFIG"),
		SignatureLabel: os.Getenv("PDFCOMPOSE_SIGNATURE_LABEL"),
		WatermarkText:  os.Getenv("PDFCOMPOSE_WATERMARK_TEXT"),
		BrowserBin:     os.Getenv("PDFCOMPOSE_BROWSER_BIN"),
		Addr:           os.Getenv("PDFCOMPOSE_ADDR"),
	}

	switch strings.ToLower(os.Getenv("PDFCOMPOSE_NO_SANDBOX")) {
	case "1", "true", "yes":
		cfg.NoSandbox = true
	}

	if timeout := os.Getenv("PDFCOMPOSE_TIMEOUT"); timeout != "" {
		if d, err := time.ParseDuration(timeout); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}

	cfg.Workers = positiveIntEnv("PDFCOMPOSE_WORKERS")
	cfg.MaxUploadMB = positiveIntEnv("PDFCOMPOSE_MAX_UPLOAD_MB")

	return cfg
}

func positiveIntEnv(name string) int {
	v := os.Getenv(name)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

// warnUnknownEnvVars logs warnings for unrecognized PDFCOMPOSE_* variables.
func warnUnknownEnvVars(w io.Writer) {
	for _, env := range os.Environ() {
		if strings.HasPrefix(env, envPrefix) {
			name := strings.SplitN(env, "=", 2)[0]
			if !knownEnvVars[name] {
				fmt.Fprintf(w, "warning: unknown environment variable %s (typo?)\n", name)
			}
		}
	}
}

// applyEnvConfig applies environment variable values over the config file.
// Precedence is: CLI flags > env vars > config file > defaults
// (CLI flags are applied later by each command).
func applyEnvConfig(env *envConfig, cfg *config.Config) {
	if env.Timeout > 0 {
		cfg.Render.Timeout = env.Timeout.String()
	}
	if env.BrowserBin != "" {
		cfg.Render.BrowserBin = env.BrowserBin
	}
	if env.NoSandbox {
		cfg.Render.NoSandbox = true
	}
	if env.SignatureLabel != "" {
		cfg.Signature.Label = env.SignatureLabel
	}

	// Watermark (auto-enable)
	if env.WatermarkText != "" {
		cfg.Watermark.Text = env.WatermarkText
		cfg.Watermark.Enabled = true
	}

	if env.Addr != "" {
		cfg.Server.Addr = env.Addr
	}
	if env.Workers > 0 {
		cfg.Server.Workers = env.Workers
	}
	if env.MaxUploadMB > 0 {
		cfg.Server.MaxUploadMB = env.MaxUploadMB
	}
}

// loadConfig resolves the configuration for a command: the file named by
// flagPath or PDFCOMPOSE_CONFIG (if any), then environment overrides.
// The result is validated again since the environment may push values out
// of range.
func loadConfig(flagPath string, env *Environment) (*config.Config, error) {
	ec := loadEnvConfig()
	warnUnknownEnvVars(env.Stderr)

	cfg := config.DefaultConfig()
	if env.Config != nil {
		c := *env.Config
		cfg = &c
	}

	path := flagPath
	if path == "" {
		path = ec.ConfigPath
	}
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	applyEnvConfig(ec, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
