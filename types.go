package pdfcompose

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"

	"github.com/alnah/go-pdfcompose/internal/fitting"
	"github.com/alnah/go-pdfcompose/internal/geometry"
	"github.com/alnah/go-pdfcompose/internal/markup"
	"github.com/alnah/go-pdfcompose/internal/merge"
)

// Markup formats.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
)

// Watermark bounds.
const (
	MaxWatermarkAngle   = 90.0
	MaxWatermarkTextLen = 200
)

// Watermark defaults. A zero Color or Opacity picks these up when the page is
// prepared; Angle is taken literally, so callers apply DefaultWatermarkAngle.
const (
	DefaultWatermarkColor   = markup.DefaultWatermarkColor
	DefaultWatermarkOpacity = markup.DefaultWatermarkOpacity
	DefaultWatermarkAngle   = markup.DefaultWatermarkAngle
)

// Request contains composition parameters.
type Request struct {
	Markup      string       // HTML document or fragment, or Markdown (required)
	Format      string       // "html" (default) or "markdown"
	Title       string       // document title (optional)
	SourceDir   string       // base for relative image and link paths (optional)
	Signature   *Signature   // triggers signature fitting (optional)
	Margins     *Margins     // page margins, nil = defaults
	Watermark   *Watermark   // background watermark (optional)
	Attachments []Attachment // PDFs appended after the report, in order
}

// Validate rejects a request before any render resource is acquired.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Markup) == "" {
		return ErrEmptyMarkup
	}
	if _, err := normalizeFormat(r.Format); err != nil {
		return err
	}
	if err := r.Margins.Validate(); err != nil {
		return err
	}
	if err := r.Signature.Validate(); err != nil {
		return err
	}
	return r.Watermark.Validate()
}

// normalizeFormat maps the empty format to HTML and accepts "md" as Markdown.
func normalizeFormat(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatHTML, "htm":
		return FormatHTML, nil
	case FormatMarkdown, "md":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q (must be html or markdown)", ErrInvalidFormat, format)
	}
}

// Margins are page margins in millimeters. The all-zero value means
// DefaultMargins. Once any side is set, each side is taken literally, so a
// zero side prints with no margin. Start from DefaultMargins to change only
// some sides.
type Margins struct {
	Top    float64
	Bottom float64
	Left   float64
	Right  float64
}

// DefaultMargins returns the default page margins.
func DefaultMargins() Margins {
	d := geometry.DefaultMargins()
	return Margins{Top: d.TopMM, Bottom: d.BottomMM, Left: d.LeftMM, Right: d.RightMM}
}

// Validate checks margin bounds. Returns nil if m is nil (nil means defaults).
func (m *Margins) Validate() error {
	if m == nil {
		return nil
	}
	return m.geometry().Validate()
}

func (m *Margins) geometry() geometry.Margins {
	if m == nil || *m == (Margins{}) {
		return geometry.DefaultMargins()
	}
	return geometry.Margins{TopMM: m.Top, BottomMM: m.Bottom, LeftMM: m.Left, RightMM: m.Right}
}

// Signature configures the signature block placed after the content.
type Signature struct {
	// ImageData is a data URL or raw base64 PNG.
	ImageData string
	LabelText string
}

// Validate checks the signature image. Returns nil if s is nil.
func (s *Signature) Validate() error {
	if s == nil {
		return nil
	}
	_, err := s.dataURL()
	return err
}

// dataURL returns ImageData as a data URL, wrapping raw base64 as PNG.
func (s *Signature) dataURL() (string, error) {
	data := strings.TrimSpace(s.ImageData)
	if data == "" {
		return "", ErrEmptySignatureImage
	}
	if strings.HasPrefix(data, "data:") {
		if !strings.HasPrefix(data, "data:image/") || !strings.Contains(data, ",") {
			return "", fmt.Errorf("%w: data URL must carry an image", ErrInvalidSignatureImage)
		}
		return data, nil
	}

	raw := strings.Join(strings.Fields(data), "")
	if _, err := base64.StdEncoding.DecodeString(raw); err != nil {
		return "", fmt.Errorf("%w: not a data URL or base64: %v", ErrInvalidSignatureImage, err)
	}
	return "data:image/png;base64," + raw, nil
}

// Watermark configures diagonal background text on every page. The
// watermark is decorative: signature fitting ignores it.
type Watermark struct {
	Text    string
	Color   string  // hex color, empty = default
	Opacity float64 // 0 = default, otherwise (0, 1]
	Angle   float64 // degrees in [-90, 90]
}

// Validate checks watermark settings. Returns nil if w is nil.
func (w *Watermark) Validate() error {
	if w == nil {
		return nil
	}
	if strings.TrimSpace(w.Text) == "" {
		return fmt.Errorf("%w: text cannot be empty", ErrInvalidWatermark)
	}
	if len(w.Text) > MaxWatermarkTextLen {
		return fmt.Errorf("%w: text longer than %d bytes", ErrInvalidWatermark, MaxWatermarkTextLen)
	}
	if w.Color != "" && !markup.IsHexColor(w.Color) {
		return fmt.Errorf("%w: color %q (must be #rgb or #rrggbb)", ErrInvalidWatermark, w.Color)
	}
	if math.IsNaN(w.Opacity) || w.Opacity < 0 || w.Opacity > 1 {
		return fmt.Errorf("%w: opacity %.2f (must be between 0 and 1)", ErrInvalidWatermark, w.Opacity)
	}
	if math.IsNaN(w.Angle) || math.Abs(w.Angle) > MaxWatermarkAngle {
		return fmt.Errorf("%w: angle %.1f (must be between -90 and 90)", ErrInvalidWatermark, w.Angle)
	}
	return nil
}

func (w *Watermark) markup() *markup.Watermark {
	if w == nil {
		return nil
	}
	return &markup.Watermark{Text: w.Text, Color: w.Color, Opacity: w.Opacity, Angle: w.Angle}
}

// Attachment is a file to append after the generated pages. Only PDFs are
// merged: the MIME type must be application/pdf or the filename must end in
// .pdf. Anything else is skipped and reported.
type Attachment struct {
	Data     []byte
	Filename string
	MIMEType string
}

func toMergeAttachments(in []Attachment) []merge.Attachment {
	out := make([]merge.Attachment, len(in))
	for i, a := range in {
		out[i] = merge.Attachment(a)
	}
	return out
}

// AttachmentOutcome reports what happened to one attachment.
type AttachmentOutcome struct {
	Filename string
	Pages    int
	Skipped  bool
	Reason   string
	Err      error
}

func toOutcomes(in []merge.Outcome) []AttachmentOutcome {
	out := make([]AttachmentOutcome, len(in))
	for i, o := range in {
		out[i] = AttachmentOutcome(o)
	}
	return out
}

// Signature placement modes.
const (
	PlacementInline   = string(fitting.ModeInline)
	PlacementAbsolute = string(fitting.ModeAbsolute)
)

// SignaturePlacement is where and how large the signature ended up.
type SignaturePlacement struct {
	Mode            string // PlacementInline or PlacementAbsolute
	ImageMaxWidthPx float64
	LineWidthPx     float64
	LabelText       string
	AnchorRightPx   float64 // absolute mode only
	AnchorTopPx     float64 // absolute mode only
	ShrunkImages    int
	Escalated       bool
	Trace           []string
}

func toPlacement(p *fitting.Placement) *SignaturePlacement {
	if p == nil {
		return nil
	}
	out := &SignaturePlacement{
		Mode:            string(p.Mode),
		ImageMaxWidthPx: p.ImageMaxWidthPx,
		LineWidthPx:     p.LineWidthPx,
		LabelText:       p.LabelText,
		ShrunkImages:    len(p.ShrunkImages),
		Escalated:       p.Escalated,
	}
	if p.Anchor != nil {
		out.AnchorRightPx = p.Anchor.RightPx
		out.AnchorTopPx = p.Anchor.TopPx
	}
	for _, s := range p.Trace {
		out.Trace = append(out.Trace, string(s))
	}
	return out
}

// Result contains the composed document.
type Result struct {
	PDF       []byte
	HTML      []byte // prepared document loaded into the browser
	Placement *SignaturePlacement

	Attachments []AttachmentOutcome

	// MergeDegraded is set when the generated report could not be reopened
	// for merging; PDF is then the report without attachments.
	MergeDegraded bool
	MergeErr      error
}

// MergedAttachments returns how many attachments were appended.
func (r *Result) MergedAttachments() int {
	n := 0
	for _, a := range r.Attachments {
		if !a.Skipped {
			n++
		}
	}
	return n
}

// SkippedAttachments returns how many attachments were left out.
func (r *Result) SkippedAttachments() int {
	return len(r.Attachments) - r.MergedAttachments()
}
