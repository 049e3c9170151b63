package pdfcompose

import (
	"errors"

	"github.com/alnah/go-pdfcompose/internal/fitting"
	"github.com/alnah/go-pdfcompose/internal/geometry"
	"github.com/alnah/go-pdfcompose/internal/markup"
	"github.com/alnah/go-pdfcompose/internal/merge"
)

// Sentinel errors for library operations.
var (
	ErrEmptyMarkup      = errors.New("markup content cannot be empty")
	ErrInvalidFormat    = errors.New("invalid markup format")
	ErrPDFGeneration    = errors.New("PDF generation failed")
	ErrBrowserConnect   = errors.New("failed to connect to browser")
	ErrPageCreate       = errors.New("failed to create browser page")
	ErrPageLoad         = errors.New("failed to load page")
	ErrComposerClosed   = errors.New("composer pool is closed")
	ErrMarkupConversion = markup.ErrMarkdownConversion
	ErrPrepare          = markup.ErrPrepare

	// Page validation errors.
	ErrInvalidMargin = geometry.ErrInvalidMargin

	// Signature errors.
	ErrEmptySignatureImage   = fitting.ErrEmptySignatureImage
	ErrInvalidSignatureImage = errors.New("invalid signature image")
	ErrLayoutProbe           = fitting.ErrLayoutProbe
	ErrSignaturePlacement    = fitting.ErrSignaturePlacement

	// Watermark validation errors.
	ErrInvalidWatermark = errors.New("invalid watermark")

	// Attachment errors, reported in AttachmentOutcome.Err and Result.MergeErr.
	ErrMergeTarget      = merge.ErrMergeTarget
	ErrNotPDF           = merge.ErrNotPDF
	ErrAttachmentLoad   = merge.ErrAttachmentLoad
	ErrAttachmentAppend = merge.ErrAttachmentAppend
)

// IsValidationError reports whether err comes from request validation, that
// is, whether the caller sent something wrong rather than rendering failing.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrEmptyMarkup) ||
		errors.Is(err, ErrInvalidFormat) ||
		errors.Is(err, ErrInvalidMargin) ||
		errors.Is(err, ErrEmptySignatureImage) ||
		errors.Is(err, ErrInvalidSignatureImage) ||
		errors.Is(err, ErrInvalidWatermark)
}
