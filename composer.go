package pdfcompose

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/alnah/go-pdfcompose/internal/fileutil"
	"github.com/alnah/go-pdfcompose/internal/fitting"
	"github.com/alnah/go-pdfcompose/internal/geometry"
	"github.com/alnah/go-pdfcompose/internal/markup"
	"github.com/alnah/go-pdfcompose/internal/merge"
)

// Composer runs the composition pipeline: prepare, load, fit, export, merge.
// Create with NewComposer, use Compose, and Close when done.
//
// A Composer owns one browser. Concurrent Compose calls are safe but share
// that browser; use ComposerPool for parallel rendering.
type Composer struct {
	cfg          composerConfig
	markdown     *markup.MarkdownConverter
	fitter       *fitting.Engine
	merger       *merge.Engine
	mergeBackend merge.Backend
	engine       renderEngine
}

// NewComposer creates a Composer. The browser is launched on first use.
func NewComposer(opts ...Option) *Composer {
	c := &Composer{
		cfg:      defaultComposerConfig(),
		markdown: markup.NewMarkdownConverter(),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.fitter = fitting.New(c.cfg.fitting, fitting.WithLogger(c.cfg.logger))

	mergeOpts := []merge.Option{merge.WithLogger(c.cfg.logger)}
	if c.mergeBackend != nil {
		mergeOpts = append(mergeOpts, merge.WithBackend(c.mergeBackend))
	}
	c.merger = merge.New(mergeOpts...)

	if c.engine == nil {
		c.engine = newRodEngine(c.cfg)
	}
	return c
}

// Compose validates req, renders it to PDF, places the signature and appends
// the attachments. Attachment problems never fail the call: they are reported
// in Result.Attachments and Result.MergeDegraded.
// Recovers from internal panics to prevent crashes from propagating to callers.
func (c *Composer) Compose(ctx context.Context, req Request) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.timeout)
	defer cancel()

	doc, err := c.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	var sig *fitting.Signature
	if req.Signature != nil {
		data, _ := req.Signature.dataURL() // validated above
		sig = &fitting.Signature{ImageData: data, LabelText: req.Signature.LabelText}
	}

	geom := geometry.Compute(req.Margins.geometry())
	pdf, placement, err := c.render(ctx, doc, geom, sig)
	if err != nil {
		return nil, err
	}

	report := c.merger.Merge(ctx, pdf, toMergeAttachments(req.Attachments))

	return &Result{
		PDF:           report.PDF,
		HTML:          []byte(doc),
		Placement:     toPlacement(placement),
		Attachments:   toOutcomes(report.Outcomes),
		MergeDegraded: report.Degraded,
		MergeErr:      report.Err,
	}, nil
}

// prepare converts Markdown when needed and builds the document loaded into
// the browser.
func (c *Composer) prepare(ctx context.Context, req Request) (string, error) {
	body := req.Markup

	format, _ := normalizeFormat(req.Format) // validated above
	if format == FormatMarkdown {
		var err error
		body, err = c.markdown.ToHTML(ctx, body)
		if err != nil {
			return "", fmt.Errorf("converting markdown: %w", err)
		}
	}

	doc, err := markup.Prepare(body, markup.Options{
		Title:     req.Title,
		Watermark: req.Watermark.markup(),
		BaseDir:   req.SourceDir,
	})
	if err != nil {
		return "", fmt.Errorf("preparing document: %w", err)
	}
	return doc, nil
}

// render loads doc in a fresh page, fits the signature and exports the PDF.
// The page is released on every path.
func (c *Composer) render(ctx context.Context, doc string, geom geometry.PageGeometry, sig *fitting.Signature) (pdf []byte, placement *fitting.Placement, err error) {
	path, cleanup, err := fileutil.WriteTempFile(doc, "html")
	if err != nil {
		return nil, nil, err
	}
	defer cleanup()

	session, err := c.engine.Open(ctx, fileURL(path), geom)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if rerr := session.Release(); rerr != nil {
			c.cfg.logger.Printf("warning: releasing browser page: %v", rerr)
		}
	}()

	if sig != nil {
		placement, err = c.fitter.Fit(ctx, session, geom, *sig)
		if err != nil {
			return nil, nil, fmt.Errorf("placing signature: %w", err)
		}
	}

	pdf, err = session.ExportPDF(ctx, geom)
	if err != nil {
		return nil, nil, err
	}
	return pdf, placement, nil
}

// Close releases the browser.
func (c *Composer) Close() error {
	if c.engine != nil {
		return c.engine.Close()
	}
	return nil
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
