// Package fitting places a signature block at the true end of a rendered
// document without pushing it alone onto a new page.
//
// The engine runs an explicit state machine against a live Document:
//
//	Measuring -> ShrinkingContent -> ShrinkingSignature -> InsertedInline
//	  -> VerifyingInline -> (Escalating -> InsertedInline -> VerifyingInline)
//	  -> AbsoluteFallback -> Done
//
// Every loop is bounded by an attempt count or a size floor, and the
// escalation runs at most once, so Fit always terminates.
package fitting

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"time"

	"github.com/alnah/go-pdfcompose/internal/geometry"
	"github.com/alnah/go-pdfcompose/internal/layout"
)

// Sentinel errors for rendering-engine failures during fitting.
var (
	ErrLayoutProbe         = errors.New("layout probe failed")
	ErrSignaturePlacement  = errors.New("signature placement failed")
	ErrEmptySignatureImage = errors.New("signature image cannot be empty")
)

// Mode is how the signature ended up in the document.
type Mode string

// Placement modes.
const (
	ModeInline   Mode = "inline"
	ModeAbsolute Mode = "absolute"
)

// State is a step of the fitting state machine.
type State string

// Fitting states.
const (
	StateMeasuring          State = "measuring"
	StateShrinkingContent   State = "shrinking-content"
	StateShrinkingSignature State = "shrinking-signature"
	StateInsertedInline     State = "inserted-inline"
	StateVerifyingInline    State = "verifying-inline"
	StateEscalating         State = "escalating"
	StateAbsoluteFallback   State = "absolute-fallback"
	StateDone               State = "done"
)

// Signature is the caller's request for a signature block. Zero widths and an
// empty label fall back to the engine configuration.
type Signature struct {
	ImageData       string
	LabelText       string
	ImageMaxWidthPx float64
	LineWidthPx     float64
}

// Block is the signature node as it is written into the document.
type Block struct {
	ImageData       string
	ImageMaxWidthPx float64
	LineWidthPx     float64
	LabelText       string
}

// Anchor positions an absolute signature block relative to the document.
type Anchor struct {
	RightPx float64
	TopPx   float64
}

// ShrunkImage records one image height reduction.
type ShrunkImage struct {
	ID     string
	FromPx float64
	ToPx   float64
}

// Placement is the final outcome of a fitting run.
type Placement struct {
	Mode            Mode
	ImageMaxWidthPx float64
	LineWidthPx     float64
	LabelText       string
	Anchor          *Anchor
	ShrunkImages    []ShrunkImage
	Escalated       bool
	Trace           []State
}

// Document is a rendered document the engine can measure and mutate.
type Document interface {
	layout.Probe

	// ResizeImage sets the rendered height of the image with the given ID.
	ResizeImage(ctx context.Context, id string, heightPx float64) error

	// InsertSignature inserts the signature block right after the element
	// with the given ID, in document order.
	InsertSignature(ctx context.Context, afterID string, b Block) error

	// SignatureBox reports the inserted inline signature node, if any.
	SignatureBox(ctx context.Context) (box layout.Box, found bool, err error)

	// RemoveSignature removes any signature node. Removing nothing is not an error.
	RemoveSignature(ctx context.Context) error

	// PlaceAbsolute positions the signature block at fixed document coordinates.
	PlaceAbsolute(ctx context.Context, b Block, a Anchor) error
}

// Engine runs the fitting algorithm. It holds no per-run state and is safe
// for concurrent use.
type Engine struct {
	cfg    Config
	logger *log.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for per-candidate warnings.
func WithLogger(l *log.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// withSleep replaces the settle wait (tests).
func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = fn
	}
}

// New creates an Engine. Zero fields of cfg take their defaults.
func New(cfg Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg.withDefaults(),
		logger: log.New(io.Discard, "", 0),
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Fit places sig into doc. It returns an error only when the rendering engine
// cannot be queried, the absolute fallback cannot be written, or ctx ends;
// fitting decisions themselves never fail.
func (e *Engine) Fit(ctx context.Context, doc Document, geom geometry.PageGeometry, sig Signature) (*Placement, error) {
	if sig.ImageData == "" {
		return nil, ErrEmptySignatureImage
	}

	r := e.newRun(doc, geom, sig)
	state := StateMeasuring
	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		r.placement.Trace = append(r.placement.Trace, state)

		var err error
		state, err = r.step(ctx, state)
		if err != nil {
			return nil, err
		}
	}
	r.placement.Trace = append(r.placement.Trace, StateDone)
	return r.placement, nil
}

// run carries the mutable state of one Fit call.
type run struct {
	e    *Engine
	doc  Document
	geom geometry.PageGeometry

	block     Block
	lineWidth float64

	anchor    layout.Box
	available float64

	candidates       []layout.ShrinkCandidate
	candidatesLoaded bool
	nextCandidate    int
	attempts         int

	inserted  bool
	escalated bool

	placement *Placement
}

func (e *Engine) newRun(doc Document, geom geometry.PageGeometry, sig Signature) *run {
	width := sig.ImageMaxWidthPx
	if width <= 0 {
		width = e.cfg.ImageMaxWidthPx
	}
	lineWidth := sig.LineWidthPx
	if lineWidth <= 0 {
		lineWidth = e.cfg.LineWidthPx
	}
	label := sig.LabelText
	if label == "" {
		label = e.cfg.DefaultLabel
	}

	return &run{
		e:         e,
		doc:       doc,
		geom:      geom,
		lineWidth: lineWidth,
		block: Block{
			ImageData:       sig.ImageData,
			ImageMaxWidthPx: width,
			LineWidthPx:     math.Min(lineWidth, width),
			LabelText:       label,
		},
		placement: &Placement{},
	}
}

func (r *run) step(ctx context.Context, s State) (State, error) {
	switch s {
	case StateMeasuring:
		return r.measure(ctx)
	case StateShrinkingContent:
		return r.shrinkContent(ctx)
	case StateShrinkingSignature:
		return r.shrinkSignature()
	case StateInsertedInline:
		return r.insertInline(ctx)
	case StateVerifyingInline:
		return r.verifyInline(ctx)
	case StateEscalating:
		return r.escalate(ctx)
	case StateAbsoluteFallback:
		return r.placeAbsolute(ctx)
	default:
		return StateDone, fmt.Errorf("fitting: unknown state %q", s)
	}
}

// refreshAnchor re-queries the anchor box and the space left on its page.
func (r *run) refreshAnchor(ctx context.Context) error {
	box, err := layout.LastContentBox(ctx, r.doc)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrLayoutProbe, err)
	}
	r.anchor = box
	r.available = r.geom.SpaceBelow(box.Bottom())
	return nil
}

func (r *run) fits() bool {
	return r.available >= r.e.cfg.Need(r.block.ImageMaxWidthPx)
}

func (r *run) measure(ctx context.Context) (State, error) {
	if err := r.refreshAnchor(ctx); err != nil {
		return StateDone, err
	}
	if r.fits() {
		return StateInsertedInline, nil
	}
	return StateShrinkingContent, nil
}

func (r *run) loadCandidates(ctx context.Context) {
	if r.candidatesLoaded {
		return
	}
	r.candidatesLoaded = true

	candidates, err := layout.ShrinkCandidates(ctx, r.doc, r.e.cfg.ShrinkMinRenderedPx, r.e.cfg.ImageFloorPx)
	if err != nil {
		r.e.logger.Printf("warning: listing images failed, skipping content shrink: %v", err)
		return
	}
	r.candidates = candidates
}

func (r *run) shrinkContent(ctx context.Context) (State, error) {
	r.loadCandidates(ctx)
	cfg := r.e.cfg

	for r.nextCandidate < len(r.candidates) && r.attempts < cfg.MaxShrinkAttempts {
		c := r.candidates[r.nextCandidate]
		r.nextCandidate++
		r.attempts++

		floor := math.Max(c.MinHeightPx, cfg.ImageFloorPx)
		target := math.Max(floor, math.Floor(c.CurrentHeightPx*cfg.ShrinkFactor))
		if target >= c.CurrentHeightPx {
			continue
		}

		if err := r.doc.ResizeImage(ctx, c.ID, target); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return StateDone, ctxErr
			}
			r.e.logger.Printf("warning: resizing image %s failed, skipping: %v", c.ID, err)
			continue
		}
		r.placement.ShrunkImages = append(r.placement.ShrunkImages, ShrunkImage{
			ID:     c.ID,
			FromPx: c.CurrentHeightPx,
			ToPx:   target,
		})

		if err := r.refreshAnchor(ctx); err != nil {
			return StateDone, err
		}
		if r.fits() {
			return StateInsertedInline, nil
		}
	}
	return StateShrinkingSignature, nil
}

func (r *run) shrinkSignature() (State, error) {
	cfg := r.e.cfg
	for !r.fits() && r.block.ImageMaxWidthPx > cfg.SignatureFloorPx {
		r.block.ImageMaxWidthPx = math.Max(cfg.SignatureFloorPx, r.block.ImageMaxWidthPx-cfg.SignatureStepPx)
	}
	return StateInsertedInline, nil
}

func (r *run) insertInline(ctx context.Context) (State, error) {
	r.block.LineWidthPx = math.Min(r.lineWidth, r.block.ImageMaxWidthPx)

	if err := r.doc.InsertSignature(ctx, r.anchor.ID, r.block); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateDone, ctxErr
		}
		r.e.logger.Printf("warning: inline signature insertion failed, using absolute placement: %v", err)
		return StateAbsoluteFallback, nil
	}
	r.inserted = true

	if err := r.e.sleep(ctx, r.e.cfg.SettleDelay); err != nil {
		return StateDone, err
	}
	return StateVerifyingInline, nil
}

func (r *run) verifyInline(ctx context.Context) (State, error) {
	if err := r.refreshAnchor(ctx); err != nil {
		return StateDone, err
	}

	ok := r.fits()
	if ok {
		sigBox, found, err := r.doc.SignatureBox(ctx)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return StateDone, ctxErr
			}
			return StateDone, fmt.Errorf("%w: %v", ErrLayoutProbe, err)
		}
		if found && r.spillsOver(sigBox) {
			ok = false
		}
	}

	if ok {
		r.finish(ModeInline, nil)
		return StateDone, nil
	}
	if !r.escalated {
		return StateEscalating, nil
	}
	return StateAbsoluteFallback, nil
}

// spillsOver reports whether the signature node ends on a later page than
// the anchor. Both edges use the same boundary rule.
func (r *run) spillsOver(sig layout.Box) bool {
	return r.geom.EndPage(sig.Bottom()) != r.geom.EndPage(r.anchor.Bottom())
}

func (r *run) escalate(ctx context.Context) (State, error) {
	r.escalated = true
	r.placement.Escalated = true

	if err := r.doc.RemoveSignature(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateDone, ctxErr
		}
		r.e.logger.Printf("warning: removing inline signature failed, using absolute placement: %v", err)
		return StateAbsoluteFallback, nil
	}
	r.inserted = false

	r.block.ImageMaxWidthPx = math.Max(r.e.cfg.SignatureFloorPx, math.Floor(r.block.ImageMaxWidthPx/2))
	return StateInsertedInline, nil
}

func (r *run) placeAbsolute(ctx context.Context) (State, error) {
	cfg := r.e.cfg

	if r.inserted {
		if err := r.doc.RemoveSignature(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return StateDone, ctxErr
			}
			r.e.logger.Printf("warning: removing inline signature failed: %v", err)
		}
		r.inserted = false
	}

	if err := r.refreshAnchor(ctx); err != nil {
		return StateDone, err
	}

	lastPageStart := r.geom.PageStart(r.geom.EndPage(r.anchor.Bottom()))
	top := lastPageStart + r.geom.ContentHeightPx - cfg.Required(r.block.ImageMaxWidthPx) - cfg.AbsoluteBottomGapPx
	anchor := Anchor{
		RightPx: r.geom.RightMarginPx,
		TopPx:   math.Max(0, top),
	}

	r.block.LineWidthPx = math.Min(r.lineWidth, r.block.ImageMaxWidthPx)
	if err := r.doc.PlaceAbsolute(ctx, r.block, anchor); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return StateDone, ctxErr
		}
		return StateDone, fmt.Errorf("%w: %v", ErrSignaturePlacement, err)
	}

	r.finish(ModeAbsolute, &anchor)
	return StateDone, nil
}

func (r *run) finish(mode Mode, anchor *Anchor) {
	r.placement.Mode = mode
	r.placement.Anchor = anchor
	r.placement.ImageMaxWidthPx = r.block.ImageMaxWidthPx
	r.placement.LineWidthPx = r.block.LineWidthPx
	r.placement.LabelText = r.block.LabelText
}

// sleepContext waits for d or until ctx ends.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
