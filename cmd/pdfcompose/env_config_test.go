package main

// Notes:
// - loadEnvConfig: we test every variable and that malformed numbers and
//   durations are ignored rather than reported.
// - applyEnvConfig: env overrides the config file, and watermark text
//   auto-enables the watermark.
// - loadConfig: we test file resolution through PDFCOMPOSE_CONFIG and
//   re-validation after env overrides.
// - Tests use t.Setenv() which prevents t.Parallel() at parent level.
// These are acceptable gaps: we test observable behavior, not implementation details.

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alnah/go-pdfcompose/internal/config"
)

// ---------------------------------------------------------------------------
// TestLoadEnvConfig - Environment variable loading
// ---------------------------------------------------------------------------

func TestLoadEnvConfig(t *testing.T) {
	t.Run("all variables", func(t *testing.T) {
		t.Setenv("PDFCOMPOSE_CONFIG", "/etc/pdfcompose.yaml")
		t.Setenv("PDFCOMPOSE_TIMEOUT", "90s")
		t.Setenv("PDFCOMPOSE_SIGNATURE_LABEL", "Signed")
		t.Setenv("PDFCOMPOSE_WATERMARK_TEXT", "DRAFT")
		t.Setenv("PDFCOMPOSE_BROWSER_BIN", "/usr/bin/chromium")
		t.Setenv("PDFCOMPOSE_NO_SANDBOX", "true")
		t.Setenv("PDFCOMPOSE_ADDR", ":9000")
		t.Setenv("PDFCOMPOSE_WORKERS", "4")
		t.Setenv("PDFCOMPOSE_MAX_UPLOAD_MB", "64")

		got := loadEnvConfig()
		want := &envConfig{
			ConfigPath:     "/etc/pdfcompose.yaml",
			Timeout:        90 * time.Second,
			SignatureLabel: "Signed",
			WatermarkText:  "DRAFT",
			BrowserBin:     "/usr/bin/chromium",
			NoSandbox:      true,
			Addr:           ":9000",
			Workers:        4,
			MaxUploadMB:    64,
		}
		if *got != *want {
			t.Errorf("loadEnvConfig() = %+v, want %+v", *got, *want)
		}
	})

	t.Run("malformed values ignored", func(t *testing.T) {
		t.Setenv("PDFCOMPOSE_TIMEOUT", "soon")
		t.Setenv("PDFCOMPOSE_WORKERS", "-2")
		t.Setenv("PDFCOMPOSE_MAX_UPLOAD_MB", "lots")
		t.Setenv("PDFCOMPOSE_NO_SANDBOX", "maybe")

		got := loadEnvConfig()
		if got.Timeout != 0 || got.Workers != 0 || got.MaxUploadMB != 0 || got.NoSandbox {
			t.Errorf("malformed values should be ignored, got %+v", *got)
		}
	})

	t.Run("no sandbox spellings", func(t *testing.T) {
		for _, v := range []string{"1", "TRUE", "yes"} {
			t.Setenv("PDFCOMPOSE_NO_SANDBOX", v)
			if !loadEnvConfig().NoSandbox {
				t.Errorf("PDFCOMPOSE_NO_SANDBOX=%s should disable the sandbox", v)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// TestWarnUnknownEnvVars - Typo detection
// ---------------------------------------------------------------------------

func TestWarnUnknownEnvVars(t *testing.T) {
	t.Setenv("PDFCOMPOSE_WORKER", "2")
	t.Setenv("PDFCOMPOSE_WORKERS", "2")
	t.Setenv("PDFCOMPOSE_CONTAINER", "1")

	var buf bytes.Buffer
	warnUnknownEnvVars(&buf)
	out := buf.String()

	if !strings.Contains(out, "warning: unknown environment variable PDFCOMPOSE_WORKER ") {
		t.Errorf("should warn about PDFCOMPOSE_WORKER, got %q", out)
	}
	if strings.Contains(out, "PDFCOMPOSE_WORKERS") || strings.Contains(out, "PDFCOMPOSE_CONTAINER") {
		t.Errorf("known variables should not warn, got %q", out)
	}
}

// ---------------------------------------------------------------------------
// TestApplyEnvConfig - Env overrides config file values
// ---------------------------------------------------------------------------

func TestApplyEnvConfig(t *testing.T) {
	t.Parallel()

	cfg := config.DefaultConfig()
	cfg.Server.Addr = ":1111"
	cfg.Signature.Label = "From file"
	cfg.Render.Timeout = "10s"

	applyEnvConfig(&envConfig{
		Timeout:        time.Minute,
		SignatureLabel: "From env",
		WatermarkText:  "SECRET",
		NoSandbox:      true,
		Addr:           ":2222",
		Workers:        5,
		MaxUploadMB:    8,
	}, cfg)

	if cfg.Server.Addr != ":2222" || cfg.Server.Workers != 5 || cfg.Server.MaxUploadMB != 8 {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Signature.Label != "From env" {
		t.Errorf("Signature.Label = %q, want From env", cfg.Signature.Label)
	}
	if cfg.Render.Timeout != "1m0s" || !cfg.Render.NoSandbox {
		t.Errorf("Render = %+v", cfg.Render)
	}
	if !cfg.Watermark.Enabled || cfg.Watermark.Text != "SECRET" {
		t.Errorf("Watermark = %+v, want enabled SECRET", cfg.Watermark)
	}

	t.Run("empty env keeps config", func(t *testing.T) {
		t.Parallel()

		cfg := config.DefaultConfig()
		cfg.Signature.Label = "Keep"
		applyEnvConfig(&envConfig{}, cfg)
		if cfg.Signature.Label != "Keep" || cfg.Watermark.Enabled {
			t.Errorf("empty env changed config: %+v", cfg)
		}
	})
}

// ---------------------------------------------------------------------------
// TestLoadConfig - File resolution and validation
// ---------------------------------------------------------------------------

func TestLoadConfig(t *testing.T) {
	t.Run("path from env", func(t *testing.T) {
		path := writeFile(t, t.TempDir(), "team.yaml", []byte("signature:\n  label: Team lead\n"))
		t.Setenv("PDFCOMPOSE_CONFIG", path)

		te := newTestEnv(t)
		cfg, err := loadConfig("", te.Environment)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Signature.Label != "Team lead" {
			t.Errorf("Signature.Label = %q, want Team lead", cfg.Signature.Label)
		}
	})

	t.Run("flag wins over env path", func(t *testing.T) {
		dir := t.TempDir()
		envPath := writeFile(t, dir, "env.yaml", []byte("signature:\n  label: Env\n"))
		flagPath := writeFile(t, dir, "flag.yaml", []byte("signature:\n  label: Flag\n"))
		t.Setenv("PDFCOMPOSE_CONFIG", envPath)

		cfg, err := loadConfig(flagPath, newTestEnv(t).Environment)
		if err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if cfg.Signature.Label != "Flag" {
			t.Errorf("Signature.Label = %q, want Flag", cfg.Signature.Label)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "none.yaml"), newTestEnv(t).Environment)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("error = %v, want ErrConfigNotFound", err)
		}
	})

	t.Run("env pushes value out of range", func(t *testing.T) {
		t.Setenv("PDFCOMPOSE_WORKERS", "1000")

		_, err := loadConfig("", newTestEnv(t).Environment)
		if !errors.Is(err, config.ErrInvalidValue) {
			t.Errorf("error = %v, want ErrInvalidValue", err)
		}
	})

	t.Run("does not mutate environment config", func(t *testing.T) {
		t.Setenv("PDFCOMPOSE_SIGNATURE_LABEL", "Env label")

		te := newTestEnv(t)
		if _, err := loadConfig("", te.Environment); err != nil {
			t.Fatalf("loadConfig() error = %v", err)
		}
		if te.Config.Signature.Label != "" {
			t.Errorf("env.Config was modified: %q", te.Config.Signature.Label)
		}
	})
}
