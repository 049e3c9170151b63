package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/alnah/go-pdfcompose/internal/fileutil"
)

// Sentinel errors for config operations.
var (
	ErrConfigNotFound  = errors.New("config file not found")
	ErrEmptyConfigName = errors.New("config name cannot be empty")
	ErrConfigParse     = errors.New("failed to parse config")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrInvalidValue    = errors.New("invalid config value")
)

// Field length limits.
const (
	MaxAddrLength           = 256
	MaxPathLength           = 4096
	MaxDurationLength       = 20  // "1m30s"
	MaxLabelLength          = 100 // Signature caption
	MaxWatermarkTextLength  = 200
	MaxWatermarkColorLength = 20 // "#888888"
)

// Numeric limits.
const (
	MaxWorkers     = 64
	MaxUploadMB    = 512
	MaxMarginMM    = 100.0
	MaxSignaturePx = 1000.0
)

// Config holds all configuration for the CLI and the HTTP server.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Render    RenderConfig    `yaml:"render"`
	Page      PageConfig      `yaml:"page"`
	Signature SignatureConfig `yaml:"signature"`
	Watermark WatermarkConfig `yaml:"watermark"`
}

// ServerConfig defines HTTP server options.
type ServerConfig struct {
	Addr           string `yaml:"addr"`           // Listen address (default: ":8080")
	Workers        int    `yaml:"workers"`        // Browser pool size (0 = auto)
	MaxUploadMB    int    `yaml:"maxUploadMB"`    // Request body limit (0 = default)
	RequestTimeout string `yaml:"requestTimeout"` // Go duration (empty = default)
}

// RenderConfig defines browser and pipeline options.
type RenderConfig struct {
	Timeout     string `yaml:"timeout"`     // Go duration, whole pipeline (empty = default)
	SettleDelay string `yaml:"settleDelay"` // Go duration between DOM changes and re-measuring
	BrowserBin  string `yaml:"browserBin"`  // Chrome binary (empty = rod managed)
	NoSandbox   bool   `yaml:"noSandbox"`
}

// PageConfig defines page margins in millimeters. All zero = defaults.
type PageConfig struct {
	Margins MarginsConfig `yaml:"margins"`
}

// MarginsConfig holds the four page margins in millimeters.
type MarginsConfig struct {
	Top    float64 `yaml:"top"`
	Bottom float64 `yaml:"bottom"`
	Left   float64 `yaml:"left"`
	Right  float64 `yaml:"right"`
}

// IsZero reports whether no margin was configured.
func (m MarginsConfig) IsZero() bool {
	return m == MarginsConfig{}
}

// SignatureConfig defines signature block defaults.
type SignatureConfig struct {
	Label           string  `yaml:"label"`           // Caption under the line (default: "Signature")
	ImageMaxWidthPx float64 `yaml:"imageMaxWidthPx"` // 0 = default
	LineWidthPx     float64 `yaml:"lineWidthPx"`     // 0 = default
}

// WatermarkConfig defines background watermark options.
type WatermarkConfig struct {
	Enabled bool    `yaml:"enabled"`
	Text    string  `yaml:"text"`    // Text to display (e.g., "DRAFT", "CONFIDENTIAL")
	Color   string  `yaml:"color"`   // Hex color (default: "#888888")
	Opacity float64 `yaml:"opacity"` // 0.0 to 1.0 (default: 0.1)
	Angle   float64 `yaml:"angle"`   // Rotation in degrees (default: -45)
}

// Validate checks field lengths and ranges.
// Called automatically by LoadConfig, but available for callers
// who construct Config manually.
func (c *Config) Validate() error {
	// Server
	if err := validateFieldLength("server.addr", c.Server.Addr, MaxAddrLength); err != nil {
		return err
	}
	if c.Server.Workers < 0 || c.Server.Workers > MaxWorkers {
		return fmt.Errorf("%w: server.workers must be between 0 and %d, got %d", ErrInvalidValue, MaxWorkers, c.Server.Workers)
	}
	if c.Server.MaxUploadMB < 0 || c.Server.MaxUploadMB > MaxUploadMB {
		return fmt.Errorf("%w: server.maxUploadMB must be between 0 and %d, got %d", ErrInvalidValue, MaxUploadMB, c.Server.MaxUploadMB)
	}
	if _, err := parseDuration("server.requestTimeout", c.Server.RequestTimeout); err != nil {
		return err
	}

	// Render
	if _, err := parseDuration("render.timeout", c.Render.Timeout); err != nil {
		return err
	}
	if _, err := parseDuration("render.settleDelay", c.Render.SettleDelay); err != nil {
		return err
	}
	if err := validateFieldLength("render.browserBin", c.Render.BrowserBin, MaxPathLength); err != nil {
		return err
	}

	// Page
	margins := []struct {
		name  string
		value float64
	}{
		{"page.margins.top", c.Page.Margins.Top},
		{"page.margins.bottom", c.Page.Margins.Bottom},
		{"page.margins.left", c.Page.Margins.Left},
		{"page.margins.right", c.Page.Margins.Right},
	}
	for _, m := range margins {
		if math.IsNaN(m.value) || m.value < 0 || m.value > MaxMarginMM {
			return fmt.Errorf("%w: %s must be between 0 and %.0f mm, got %.2f", ErrInvalidValue, m.name, MaxMarginMM, m.value)
		}
	}

	// Signature
	if err := validateFieldLength("signature.label", c.Signature.Label, MaxLabelLength); err != nil {
		return err
	}
	if c.Signature.ImageMaxWidthPx < 0 || c.Signature.ImageMaxWidthPx > MaxSignaturePx {
		return fmt.Errorf("%w: signature.imageMaxWidthPx must be between 0 and %.0f, got %.2f", ErrInvalidValue, MaxSignaturePx, c.Signature.ImageMaxWidthPx)
	}
	if c.Signature.LineWidthPx < 0 || c.Signature.LineWidthPx > MaxSignaturePx {
		return fmt.Errorf("%w: signature.lineWidthPx must be between 0 and %.0f, got %.2f", ErrInvalidValue, MaxSignaturePx, c.Signature.LineWidthPx)
	}

	// Watermark
	if c.Watermark.Enabled {
		if strings.TrimSpace(c.Watermark.Text) == "" {
			return fmt.Errorf("%w: watermark.text required when watermark is enabled", ErrInvalidValue)
		}
		if err := validateFieldLength("watermark.text", c.Watermark.Text, MaxWatermarkTextLength); err != nil {
			return err
		}
		if err := validateFieldLength("watermark.color", c.Watermark.Color, MaxWatermarkColorLength); err != nil {
			return err
		}
		if c.Watermark.Opacity < 0 || c.Watermark.Opacity > 1 {
			return fmt.Errorf("%w: watermark.opacity must be between 0 and 1, got %.2f", ErrInvalidValue, c.Watermark.Opacity)
		}
		if c.Watermark.Angle < -90 || c.Watermark.Angle > 90 {
			return fmt.Errorf("%w: watermark.angle must be between -90 and 90, got %.2f", ErrInvalidValue, c.Watermark.Angle)
		}
	}

	return nil
}

// RequestTimeoutDuration returns the parsed request timeout, or 0 if unset.
// Assumes Validate passed.
func (s ServerConfig) RequestTimeoutDuration() time.Duration {
	d, _ := parseDuration("", s.RequestTimeout)
	return d
}

// TimeoutDuration returns the parsed render timeout, or 0 if unset.
func (r RenderConfig) TimeoutDuration() time.Duration {
	d, _ := parseDuration("", r.Timeout)
	return d
}

// SettleDelayDuration returns the parsed settle delay and whether it was set.
func (r RenderConfig) SettleDelayDuration() (time.Duration, bool) {
	if r.SettleDelay == "" {
		return 0, false
	}
	d, err := parseDuration("", r.SettleDelay)
	return d, err == nil
}

// parseDuration parses an optional non-negative Go duration.
func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	if err := validateFieldLength(field, value, MaxDurationLength); err != nil {
		return 0, err
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidValue, field, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative, got %s", ErrInvalidValue, field, value)
	}
	return d, nil
}

// validateFieldLength checks if a field exceeds its maximum allowed length.
func validateFieldLength(fieldName, value string, maxLength int) error {
	if len(value) > maxLength {
		return fmt.Errorf("%w: %s (%d chars, max %d)", ErrFieldTooLong, fieldName, len(value), maxLength)
	}
	return nil
}

// DefaultConfig returns a neutral configuration: every value falls back to
// the library defaults and the watermark is off.
func DefaultConfig() *Config {
	return &Config{
		Server:    ServerConfig{Addr: ":8080"},
		Watermark: WatermarkConfig{Enabled: false},
	}
}

// LoadConfig loads configuration from a file path or config name.
// If nameOrPath contains a path separator, it's treated as a file path.
// Otherwise, it's treated as a config name and searched in standard locations.
// Returns error if the file is not found (no silent fallback).
func LoadConfig(nameOrPath string) (*Config, error) {
	if nameOrPath == "" {
		return nil, ErrEmptyConfigName
	}

	var configPath string
	var err error

	if isFilePath(nameOrPath) {
		configPath = nameOrPath
	} else {
		configPath, err = resolveConfigPath(nameOrPath)
		if err != nil {
			return nil, err
		}
	}

	data, err := fileutil.ReadFileLimited(configPath, MaxConfigSize)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, configPath)
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := decode(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// isFilePath returns true if the string looks like a file path.
func isFilePath(s string) bool {
	return strings.ContainsAny(s, "/\\")
}

// resolveConfigPath searches for a config file by name in standard locations.
// Tries extensions in order: .yaml, .yml
// Tries locations in order: current directory, ~/.config/go-pdfcompose/
func resolveConfigPath(name string) (string, error) {
	extensions := []string{".yaml", ".yml"}
	triedPaths := make([]string, 0, len(extensions)*2)

	for _, ext := range extensions {
		localPath := name + ext
		if fileutil.FileExists(localPath) {
			return localPath, nil
		}
		triedPaths = append(triedPaths, localPath)
	}

	userConfigDir, err := os.UserConfigDir()
	if err == nil {
		for _, ext := range extensions {
			userPath := filepath.Join(userConfigDir, "go-pdfcompose", name+ext)
			if fileutil.FileExists(userPath) {
				return userPath, nil
			}
			triedPaths = append(triedPaths, userPath)
		}
	}

	return "", fmt.Errorf("%w: tried %s", ErrConfigNotFound, strings.Join(triedPaths, ", "))
}
