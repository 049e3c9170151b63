package main

import (
	"fmt"
	"io"

	flag "github.com/spf13/pflag"
)

// watermarkAngleSentinel detects if --wm-angle was explicitly set.
// Since 0 is a valid angle (horizontal), we use an out-of-range sentinel.
const watermarkAngleSentinel = -999.0

// defaultMaxFileMB bounds each file the compose command reads.
const defaultMaxFileMB = 64

// commonFlags holds flags shared across commands.
type commonFlags struct {
	config  string
	quiet   bool
	verbose bool
}

// renderFlags holds browser and pipeline flags.
type renderFlags struct {
	timeout    string
	browserBin string
	noSandbox  bool
}

// marginFlags holds page margins in millimeters. set records which sides
// were given on the command line.
type marginFlags struct {
	top, bottom, left, right float64
	set                      map[string]bool
}

// signatureFlags holds signature block flags.
type signatureFlags struct {
	image     string
	label     string
	widthPx   float64
	lineWidth float64
}

// watermarkFlags holds watermark-related flags.
type watermarkFlags struct {
	text     string
	color    string
	opacity  float64
	angle    float64
	disabled bool
}

// composeFlags holds all flags for the compose command.
type composeFlags struct {
	common    commonFlags
	render    renderFlags
	output    string
	format    string
	title     string
	attach    []string
	maxFileMB int
	html      bool
	margins   marginFlags
	signature signatureFlags
	watermark watermarkFlags
}

// serveFlags holds all flags for the serve command.
type serveFlags struct {
	common         commonFlags
	render         renderFlags
	addr           string
	workers        int
	maxUploadMB    int
	requestTimeout string
	label          string
}

// addCommonFlags adds common flags to a FlagSet.
func addCommonFlags(fs *flag.FlagSet, f *commonFlags) {
	fs.StringVarP(&f.config, "config", "c", "", "config file name or path")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "only show errors")
	fs.BoolVarP(&f.verbose, "verbose", "v", false, "show placement details and timing")
}

// addRenderFlags adds browser flags to a FlagSet.
func addRenderFlags(fs *flag.FlagSet, f *renderFlags) {
	fs.StringVarP(&f.timeout, "timeout", "t", "", "composition timeout (e.g., 30s, 2m)")
	fs.StringVar(&f.browserBin, "browser-bin", "", "Chrome/Chromium binary (default: rod managed)")
	fs.BoolVar(&f.noSandbox, "no-sandbox", false, "disable the Chrome sandbox (containers, CI)")
}

// addMarginFlags adds page margin flags to a FlagSet.
func addMarginFlags(fs *flag.FlagSet, f *marginFlags) {
	fs.Float64Var(&f.top, "margin-top", 0, "top margin in mm (0-100)")
	fs.Float64Var(&f.bottom, "margin-bottom", 0, "bottom margin in mm (0-100)")
	fs.Float64Var(&f.left, "margin-left", 0, "left margin in mm (0-100)")
	fs.Float64Var(&f.right, "margin-right", 0, "right margin in mm (0-100)")
}

// addSignatureFlags adds signature block flags to a FlagSet.
func addSignatureFlags(fs *flag.FlagSet, f *signatureFlags) {
	fs.StringVarP(&f.image, "signature", "s", "", "signature image path (PNG, JPG, SVG)")
	fs.StringVarP(&f.label, "label", "l", "", "caption under the signature line")
	fs.Float64Var(&f.widthPx, "sig-width", 0, "signature image max width in px (default: 100)")
	fs.Float64Var(&f.lineWidth, "sig-line-width", 0, "signature line width in px (default: 100)")
}

// addWatermarkFlags adds watermark flags to a FlagSet.
func addWatermarkFlags(fs *flag.FlagSet, f *watermarkFlags) {
	fs.StringVar(&f.text, "watermark", "", "watermark text")
	fs.StringVar(&f.color, "wm-color", "", "watermark color (hex)")
	fs.Float64Var(&f.opacity, "wm-opacity", 0, "watermark opacity (0.0-1.0)")
	fs.Float64Var(&f.angle, "wm-angle", watermarkAngleSentinel, "watermark angle in degrees")
	fs.BoolVar(&f.disabled, "no-watermark", false, "disable the configured watermark")
}

// parseComposeFlags parses compose command flags and returns positional args.
func parseComposeFlags(args []string, usage io.Writer) (*composeFlags, []string, error) {
	fs := flag.NewFlagSet("compose", flag.ContinueOnError)
	fs.SetOutput(usage)
	f := &composeFlags{}

	fs.StringVarP(&f.output, "output", "o", "", "output PDF path (default: input name with .pdf)")
	fs.StringVarP(&f.format, "format", "f", "", "input format: html, markdown (default: from extension)")
	fs.StringVar(&f.title, "title", "", "document title")
	fs.StringArrayVarP(&f.attach, "attach", "a", nil, "PDF to append after the document (repeatable)")
	fs.IntVar(&f.maxFileMB, "max-file-mb", defaultMaxFileMB, "size limit for each input file in MB")
	fs.BoolVar(&f.html, "html", false, "also write the prepared HTML next to the PDF")

	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)
	addMarginFlags(fs, &f.margins)
	addSignatureFlags(fs, &f.signature)
	addWatermarkFlags(fs, &f.watermark)

	fs.Usage = func() { printComposeUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}

	f.margins.set = make(map[string]bool)
	for _, side := range []string{"top", "bottom", "left", "right"} {
		if fs.Changed("margin-" + side) {
			f.margins.set[side] = true
		}
	}

	return f, fs.Args(), nil
}

// parseServeFlags parses serve command flags.
func parseServeFlags(args []string, usage io.Writer) (*serveFlags, error) {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(usage)
	f := &serveFlags{}

	fs.StringVar(&f.addr, "addr", "", "listen address (default: :8080)")
	fs.IntVarP(&f.workers, "workers", "w", 0, "browser pool size (0 = auto)")
	fs.IntVar(&f.maxUploadMB, "max-upload-mb", 0, "request body limit in MB (default: 32)")
	fs.StringVar(&f.requestTimeout, "request-timeout", "", "per-request timeout (default: 2m)")
	fs.StringVarP(&f.label, "label", "l", "", "default caption under the signature line")

	addCommonFlags(fs, &f.common)
	addRenderFlags(fs, &f.render)

	fs.Usage = func() { printServeUsage(usage) }

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: serve takes no arguments, got %q", ErrUsage, fs.Args())
	}
	return f, nil
}
