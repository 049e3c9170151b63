package fitting

import "time"

// Config holds the tunables of the fitting algorithm. The required-space
// heuristic (ratio, base, safety margin) is empirical: it matches the label
// font and divider spacing of the signature block rather than any derivation.
type Config struct {
	ImageMaxWidthPx float64 // initial signature image width
	LineWidthPx     float64 // initial divider width

	RequiredRatio  float64 // required height per px of image width
	RequiredBasePx float64 // label and divider height
	SafetyMarginPx float64 // added to the estimate when measuring

	MaxShrinkAttempts   int
	ShrinkFactor        float64
	ImageFloorPx        float64 // images are never shrunk below this
	ShrinkMinRenderedPx float64 // images shorter than this are not candidates

	SignatureStepPx  float64
	SignatureFloorPx float64

	AbsoluteBottomGapPx float64

	// SettleDelay lets the signature image load and the page reflow after
	// inline insertion.
	SettleDelay time.Duration

	// DefaultLabel is used when a signature comes without label text.
	DefaultLabel string
}

// DefaultConfig returns the production tunables.
func DefaultConfig() Config {
	return Config{
		ImageMaxWidthPx:     100,
		LineWidthPx:         100,
		RequiredRatio:       0.6,
		RequiredBasePx:      30,
		SafetyMarginPx:      12,
		MaxShrinkAttempts:   6,
		ShrinkFactor:        0.75,
		ImageFloorPx:        60,
		ShrinkMinRenderedPx: 80,
		SignatureStepPx:     16,
		SignatureFloorPx:    24,
		AbsoluteBottomGapPx: 8,
		SettleDelay:         600 * time.Millisecond,
		DefaultLabel:        "Signature",
	}
}

// withDefaults fills every zero field from DefaultConfig. SettleDelay is left
// alone so that tests can disable it; a negative value also disables it.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.ImageMaxWidthPx <= 0 {
		c.ImageMaxWidthPx = d.ImageMaxWidthPx
	}
	if c.LineWidthPx <= 0 {
		c.LineWidthPx = d.LineWidthPx
	}
	if c.RequiredRatio <= 0 {
		c.RequiredRatio = d.RequiredRatio
	}
	if c.RequiredBasePx <= 0 {
		c.RequiredBasePx = d.RequiredBasePx
	}
	if c.SafetyMarginPx <= 0 {
		c.SafetyMarginPx = d.SafetyMarginPx
	}
	if c.MaxShrinkAttempts <= 0 {
		c.MaxShrinkAttempts = d.MaxShrinkAttempts
	}
	if c.ShrinkFactor <= 0 || c.ShrinkFactor >= 1 {
		c.ShrinkFactor = d.ShrinkFactor
	}
	if c.ImageFloorPx <= 0 {
		c.ImageFloorPx = d.ImageFloorPx
	}
	if c.ShrinkMinRenderedPx <= 0 {
		c.ShrinkMinRenderedPx = d.ShrinkMinRenderedPx
	}
	if c.SignatureStepPx <= 0 {
		c.SignatureStepPx = d.SignatureStepPx
	}
	if c.SignatureFloorPx <= 0 {
		c.SignatureFloorPx = d.SignatureFloorPx
	}
	if c.AbsoluteBottomGapPx <= 0 {
		c.AbsoluteBottomGapPx = d.AbsoluteBottomGapPx
	}
	if c.DefaultLabel == "" {
		c.DefaultLabel = d.DefaultLabel
	}
	return c
}

// Required estimates the height a signature block of the given image width
// occupies, without the safety margin.
func (c Config) Required(imageWidthPx float64) float64 {
	return imageWidthPx*c.RequiredRatio + c.RequiredBasePx
}

// Need is Required plus the safety margin; it is what measuring compares
// against the available space.
func (c Config) Need(imageWidthPx float64) float64 {
	return c.Required(imageWidthPx) + c.SafetyMarginPx
}
