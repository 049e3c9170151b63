// Package merge appends uploaded PDF attachments after a generated report.
//
// Merging tolerates partial failure: every attachment gets its own Outcome,
// a bad attachment is skipped with a warning, and an unreadable report is
// returned untouched instead of failing the request.
package merge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
)

// PDFMIMEType is the declared MIME type of mergeable attachments.
const PDFMIMEType = "application/pdf"

// Sentinel errors reported in outcomes and reports.
var (
	ErrMergeTarget      = errors.New("merge target unreadable")
	ErrNotPDF           = errors.New("attachment is not a PDF")
	ErrAttachmentLoad   = errors.New("attachment unreadable")
	ErrAttachmentAppend = errors.New("attachment pages could not be appended")
)

// Attachment is an uploaded file to append after the report.
type Attachment struct {
	Data     []byte
	Filename string
	MIMEType string
}

// IsMergeable reports whether a is treated as a PDF: either the declared MIME
// type is application/pdf or the filename ends in .pdf (any case). Content is
// not sniffed.
func IsMergeable(a Attachment) bool {
	mime := strings.ToLower(strings.TrimSpace(a.MIMEType))
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if mime == PDFMIMEType {
		return true
	}
	return strings.EqualFold(filepath.Ext(a.Filename), ".pdf")
}

// Outcome is the result of merging one attachment.
type Outcome struct {
	Filename string
	Pages    int
	Skipped  bool
	Reason   string
	Err      error
}

// Report is the result of a merge.
type Report struct {
	PDF        []byte
	BasePages  int
	TotalPages int
	Outcomes   []Outcome

	// Degraded is set when the base document could not be loaded and PDF is
	// the unmerged base.
	Degraded bool
	Err      error
}

// Merged returns how many attachments were appended.
func (r Report) Merged() int {
	n := 0
	for _, o := range r.Outcomes {
		if !o.Skipped {
			n++
		}
	}
	return n
}

// Skipped returns how many attachments were left out.
func (r Report) Skipped() int {
	return len(r.Outcomes) - r.Merged()
}

// Backend loads and splices PDF documents.
type Backend interface {
	// PageCount loads data as a PDF and returns its number of pages.
	PageCount(data []byte) (int, error)

	// Append copies every page of src, in order, after the last page of dst
	// and returns the saved result.
	Append(dst, src []byte) ([]byte, error)
}

// Engine merges attachments into a base document.
type Engine struct {
	backend Backend
	logger  *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBackend replaces the PDF backend.
func WithBackend(b Backend) Option {
	return func(e *Engine) {
		if b != nil {
			e.backend = b
		}
	}
}

// WithLogger sets the logger used for skip warnings.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New creates an Engine backed by pdfcpu unless WithBackend is given.
func New(opts ...Option) *Engine {
	e := &Engine{
		backend: NewPDFCPUBackend(),
		logger:  log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Merge appends attachments to base in upload order. With no attachments it
// returns base unchanged. Merge never fails: problems are reported through
// Report.Err and per-attachment outcomes.
func (e *Engine) Merge(ctx context.Context, base []byte, attachments []Attachment) Report {
	if len(attachments) == 0 {
		return Report{PDF: base}
	}

	basePages, err := e.backend.PageCount(base)
	if err != nil {
		e.logger.Printf("warning: report could not be loaded for merging, returning it without attachments: %v", err)
		report := Report{
			PDF:      base,
			Degraded: true,
			Err:      fmt.Errorf("%w: %v", ErrMergeTarget, err),
		}
		for _, a := range attachments {
			report.Outcomes = append(report.Outcomes, skipped(a, report.Err))
		}
		return report
	}

	report := Report{BasePages: basePages, TotalPages: basePages}
	current := base

	for _, a := range attachments {
		if err := ctx.Err(); err != nil {
			report.Outcomes = append(report.Outcomes, skipped(a, err))
			continue
		}

		outcome, merged := e.appendOne(current, a)
		if outcome.Skipped {
			e.logger.Printf("warning: skipping attachment %q: %s", a.Filename, outcome.Reason)
		} else {
			current = merged
			report.TotalPages += outcome.Pages
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	report.PDF = current
	return report
}

// appendOne validates a and appends it to current.
func (e *Engine) appendOne(current []byte, a Attachment) (Outcome, []byte) {
	if !IsMergeable(a) {
		return skipped(a, fmt.Errorf("%w: declared type %q", ErrNotPDF, a.MIMEType)), nil
	}

	pages, err := e.backend.PageCount(a.Data)
	if err != nil {
		return skipped(a, fmt.Errorf("%w: %v", ErrAttachmentLoad, err)), nil
	}
	if pages == 0 {
		return skipped(a, fmt.Errorf("%w: no pages", ErrAttachmentLoad)), nil
	}

	merged, err := e.backend.Append(current, a.Data)
	if err != nil {
		return skipped(a, fmt.Errorf("%w: %v", ErrAttachmentAppend, err)), nil
	}

	return Outcome{Filename: a.Filename, Pages: pages}, merged
}

func skipped(a Attachment, err error) Outcome {
	return Outcome{
		Filename: a.Filename,
		Skipped:  true,
		Reason:   err.Error(),
		Err:      err,
	}
}
