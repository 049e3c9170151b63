// Package geometry converts physical page margins into pixel space and answers
// pagination questions (which page a box ends on, how much room is left on it).
//
// All pixel values use the CSS reference of 96 px per inch, which is what Chrome
// uses when it lays out a document for print.
package geometry

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidMargin indicates margins that cannot produce a printable page.
var ErrInvalidMargin = errors.New("invalid margin")

// Unit conversion and paper constants.
const (
	PxPerInch = 96.0
	MMPerInch = 25.4

	// A4 paper in inches, rounded the way Chrome's print dialog reports it.
	A4WidthInches  = 8.27
	A4HeightInches = 11.69

	// MaxMarginMM bounds any single margin.
	MaxMarginMM = 100.0

	// EdgeTolerancePx is how far a bottom edge may reach past a page
	// boundary and still count as ending on the page above. Chrome reports
	// fractional boxes that touch the boundary.
	EdgeTolerancePx = 1.0
)

// Default margins in millimeters.
const (
	DefaultTopMM    = 6.0
	DefaultBottomMM = 8.0
	DefaultLeftMM   = 6.0
	DefaultRightMM  = 6.0
)

// Margins holds the four physical page margins in millimeters.
type Margins struct {
	TopMM    float64
	BottomMM float64
	LeftMM   float64
	RightMM  float64
}

// DefaultMargins returns the margins used when a request does not specify any.
func DefaultMargins() Margins {
	return Margins{
		TopMM:    DefaultTopMM,
		BottomMM: DefaultBottomMM,
		LeftMM:   DefaultLeftMM,
		RightMM:  DefaultRightMM,
	}
}

// IsZero reports whether no margin was set.
func (m Margins) IsZero() bool {
	return m == Margins{}
}

// Validate checks that every margin is within bounds and that the vertical
// margins leave a positive content height on an A4 page.
func (m Margins) Validate() error {
	sides := []struct {
		name  string
		value float64
	}{
		{"top", m.TopMM},
		{"bottom", m.BottomMM},
		{"left", m.LeftMM},
		{"right", m.RightMM},
	}
	for _, s := range sides {
		if math.IsNaN(s.value) || s.value < 0 || s.value > MaxMarginMM {
			return fmt.Errorf("%w: %s %.2fmm (must be between 0 and %.0f)", ErrInvalidMargin, s.name, s.value, MaxMarginMM)
		}
	}

	if MMToPx(m.TopMM)+MMToPx(m.BottomMM) >= InchesToPx(A4HeightInches) {
		return fmt.Errorf("%w: top %.2fmm + bottom %.2fmm leave no content height", ErrInvalidMargin, m.TopMM, m.BottomMM)
	}
	if MMToPx(m.LeftMM)+MMToPx(m.RightMM) >= InchesToPx(A4WidthInches) {
		return fmt.Errorf("%w: left %.2fmm + right %.2fmm leave no content width", ErrInvalidMargin, m.LeftMM, m.RightMM)
	}
	return nil
}

// Inches returns the margins converted to inches (top, bottom, left, right),
// the unit Chrome's PDF printer expects.
func (m Margins) Inches() (top, bottom, left, right float64) {
	return m.TopMM / MMPerInch, m.BottomMM / MMPerInch, m.LeftMM / MMPerInch, m.RightMM / MMPerInch
}

// MMToPx converts millimeters to CSS pixels.
func MMToPx(mm float64) float64 {
	return mm * PxPerInch / MMPerInch
}

// InchesToPx converts inches to CSS pixels.
func InchesToPx(in float64) float64 {
	return in * PxPerInch
}

// PageGeometry is the per-request pixel model of an A4 page.
type PageGeometry struct {
	Margins Margins

	PageHeightPx    float64
	TopMarginPx     float64
	BottomMarginPx  float64
	LeftMarginPx    float64
	RightMarginPx   float64
	ContentHeightPx float64
}

// Compute derives the pixel geometry for an A4 page. Zero margins resolve to
// DefaultMargins. Callers are expected to Validate margins first; Compute
// itself never fails.
func Compute(m Margins) PageGeometry {
	if m.IsZero() {
		m = DefaultMargins()
	}

	g := PageGeometry{
		Margins:        m,
		PageHeightPx:   InchesToPx(A4HeightInches),
		TopMarginPx:    MMToPx(m.TopMM),
		BottomMarginPx: MMToPx(m.BottomMM),
		LeftMarginPx:   MMToPx(m.LeftMM),
		RightMarginPx:  MMToPx(m.RightMM),
	}
	g.ContentHeightPx = g.PageHeightPx - g.TopMarginPx - g.BottomMarginPx
	return g
}

// PageIndex returns the zero-based page on which a box whose bottom edge is at
// bottomPx ends. Two boxes share a page iff their PageIndex is equal.
func (g PageGeometry) PageIndex(bottomPx float64) int {
	if g.ContentHeightPx <= 0 || bottomPx <= 0 {
		return 0
	}
	return int(math.Floor(bottomPx / g.ContentHeightPx))
}

// PageStart returns the document offset at which page index starts.
func (g PageGeometry) PageStart(index int) float64 {
	return float64(index) * g.ContentHeightPx
}

// UsedOnPage returns how much of its page is occupied up to bottomPx.
func (g PageGeometry) UsedOnPage(bottomPx float64) float64 {
	return bottomPx - g.PageStart(g.PageIndex(bottomPx))
}

// Available returns the free vertical space left on the page where bottomPx
// falls, never negative.
func (g PageGeometry) Available(bottomPx float64) float64 {
	return math.Max(0, g.ContentHeightPx-g.UsedOnPage(bottomPx))
}

// EndPage returns the page a box ending at bottomPx actually occupies last.
// It differs from PageIndex only at boundaries: a bottom edge that lands on a
// page start (within EdgeTolerancePx) ends the page above, since nothing of
// the box is drawn on the next one.
func (g PageGeometry) EndPage(bottomPx float64) int {
	return g.PageIndex(bottomPx - EdgeTolerancePx)
}

// SpaceBelow returns the free space between bottomPx and the end of the page
// the box ends on, never negative. A box that exactly fills a page leaves
// zero, not a fresh page.
func (g PageGeometry) SpaceBelow(bottomPx float64) float64 {
	end := g.PageStart(g.EndPage(bottomPx)) + g.ContentHeightPx
	return math.Max(0, end-bottomPx)
}

// ContentWidthPx returns the printable width between the side margins.
func (g PageGeometry) ContentWidthPx() float64 {
	return InchesToPx(A4WidthInches) - g.LeftMarginPx - g.RightMarginPx
}
