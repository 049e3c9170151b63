package pdfcompose

import (
	"io"
	"log"
	"time"

	"github.com/alnah/go-pdfcompose/internal/fitting"
	"github.com/alnah/go-pdfcompose/internal/merge"
)

// defaultTimeout is used when no timeout is specified.
const defaultTimeout = 30 * time.Second

// composerConfig holds internal configuration for Composer.
type composerConfig struct {
	timeout    time.Duration
	fitting    fitting.Config
	browserBin string
	noSandbox  bool
	logger     *log.Logger
}

func defaultComposerConfig() composerConfig {
	return composerConfig{
		timeout: defaultTimeout,
		fitting: fitting.DefaultConfig(),
		logger:  log.New(io.Discard, "", 0),
	}
}

// Option configures a Composer.
type Option func(*Composer)

// WithTimeout bounds each Compose call, on top of the caller's context.
// Panics if d <= 0 (programmer error, similar to time.NewTicker).
func WithTimeout(d time.Duration) Option {
	if d <= 0 {
		panic("pdfcompose: WithTimeout duration must be positive")
	}
	return func(c *Composer) {
		c.cfg.timeout = d
	}
}

// WithLogger sets the logger for non-fatal warnings: skipped attachments,
// failed image resizes, inline placement giving way to absolute placement.
// The default logger discards everything.
func WithLogger(l *log.Logger) Option {
	return func(c *Composer) {
		if l != nil {
			c.cfg.logger = l
		}
	}
}

// WithSignatureSize sets the initial signature image and divider widths in
// CSS pixels. Non-positive values keep the defaults (100px each).
func WithSignatureSize(imageWidthPx, lineWidthPx float64) Option {
	return func(c *Composer) {
		if imageWidthPx > 0 {
			c.cfg.fitting.ImageMaxWidthPx = imageWidthPx
		}
		if lineWidthPx > 0 {
			c.cfg.fitting.LineWidthPx = lineWidthPx
		}
	}
}

// WithSignatureLabel sets the label used when a signature has none.
func WithSignatureLabel(label string) Option {
	return func(c *Composer) {
		if label != "" {
			c.cfg.fitting.DefaultLabel = label
		}
	}
}

// WithSettleDelay sets how long to wait after inserting the signature before
// measuring again. Zero disables the wait.
func WithSettleDelay(d time.Duration) Option {
	return func(c *Composer) {
		if d >= 0 {
			c.cfg.fitting.SettleDelay = d
		}
	}
}

// WithBrowserBin uses the Chrome binary at path instead of ROD_BROWSER_BIN
// or the rod-managed download.
func WithBrowserBin(path string) Option {
	return func(c *Composer) {
		c.cfg.browserBin = path
	}
}

// WithNoSandbox disables the Chrome sandbox, as needed in most containers.
func WithNoSandbox(noSandbox bool) Option {
	return func(c *Composer) {
		c.cfg.noSandbox = noSandbox
	}
}

// withRenderEngine replaces the browser (tests).
func withRenderEngine(e renderEngine) Option {
	return func(c *Composer) {
		c.engine = e
	}
}

// withMergeBackend replaces the PDF merge backend (tests).
func withMergeBackend(b merge.Backend) Option {
	return func(c *Composer) {
		c.mergeBackend = b
	}
}
