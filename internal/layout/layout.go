// Package layout defines the snapshots a rendering engine reports about a
// rendered document, and the rules that pick the signature anchor and the
// images that may be shrunk to make room for it.
//
// Snapshots are immutable. Any mutation of the rendered tree (resizing an
// image, inserting or removing the signature) moves everything below it, so
// callers must query a fresh snapshot after every mutation.
package layout

import (
	"context"
	"sort"
	"strings"
)

// DOM markers shared between the document preparation step, the probe
// scripts and the selection rules.
const (
	RootID             = "pc-root"
	IDAttribute        = "data-pc-id"
	SignatureAttribute = "data-pc-signature"
	LayerAttribute     = "data-pc-layer"
	BackgroundLayer    = "background"
)

// Default shrink-candidate thresholds.
const (
	DefaultMinRenderedPx = 80.0
	DefaultImageFloorPx  = 60.0
)

// Box is the vertical extent of a rendered element.
type Box struct {
	ID       string
	TopPx    float64
	HeightPx float64
	Visible  bool
}

// Bottom returns the document offset of the box's bottom edge.
func (b Box) Bottom() float64 {
	return b.TopPx + b.HeightPx
}

// Element is the raw record a probe reports for one element.
type Element struct {
	ID           string  `json:"id"`
	Tag          string  `json:"tag"`
	TopPx        float64 `json:"top"`
	HeightPx     float64 `json:"height"`
	Display      string  `json:"display"`
	Visibility   string  `json:"visibility"`
	Signature    bool    `json:"signature"`
	Background   bool    `json:"background"`
	InBackground bool    `json:"inBackground"`
}

// Visible reports whether the element takes up space in the printed flow.
func (e Element) Visible() bool {
	if strings.EqualFold(e.Display, "none") {
		return false
	}
	if strings.EqualFold(e.Visibility, "hidden") || strings.EqualFold(e.Visibility, "collapse") {
		return false
	}
	return e.HeightPx > 0
}

// Box converts the element to a Box snapshot.
func (e Element) Box() Box {
	return Box{ID: e.ID, TopPx: e.TopPx, HeightPx: e.HeightPx, Visible: e.Visible()}
}

// ShrinkCandidate is an embedded image that may be reduced in height.
type ShrinkCandidate struct {
	ID              string
	CurrentHeightPx float64
	MinHeightPx     float64
}

// Probe queries a rendered document. Implementations return a fresh snapshot
// on every call.
type Probe interface {
	// Elements returns the root content container and its direct children in
	// document order.
	Elements(ctx context.Context) (container Element, children []Element, err error)

	// Images returns every embedded image under the root container.
	Images(ctx context.Context) ([]Element, error)
}

// SelectLastContentBox returns the anchor for signature insertion: the last
// direct child of the container, in document order, that is not a previous
// signature node, is visible, and is not a decorative background layer.
// Falls back to the container itself when no child survives.
func SelectLastContentBox(container Element, children []Element) Box {
	for i := len(children) - 1; i >= 0; i-- {
		c := children[i]
		if c.Signature || c.Background || !c.Visible() {
			continue
		}
		return c.Box()
	}
	return container.Box()
}

// SelectShrinkCandidates returns the images at least minRenderedPx tall that
// are not part of the background layer, largest first. Ties keep document order.
func SelectShrinkCandidates(images []Element, minRenderedPx, floorPx float64) []ShrinkCandidate {
	candidates := make([]ShrinkCandidate, 0, len(images))
	for _, img := range images {
		if img.InBackground || img.Background {
			continue
		}
		if img.HeightPx < minRenderedPx {
			continue
		}
		candidates = append(candidates, ShrinkCandidate{
			ID:              img.ID,
			CurrentHeightPx: img.HeightPx,
			MinHeightPx:     floorPx,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].CurrentHeightPx > candidates[j].CurrentHeightPx
	})
	return candidates
}

// LastContentBox queries p and applies SelectLastContentBox.
func LastContentBox(ctx context.Context, p Probe) (Box, error) {
	container, children, err := p.Elements(ctx)
	if err != nil {
		return Box{}, err
	}
	return SelectLastContentBox(container, children), nil
}

// ShrinkCandidates queries p and applies SelectShrinkCandidates.
func ShrinkCandidates(ctx context.Context, p Probe, minRenderedPx, floorPx float64) ([]ShrinkCandidate, error) {
	images, err := p.Images(ctx)
	if err != nil {
		return nil, err
	}
	return SelectShrinkCandidates(images, minRenderedPx, floorPx), nil
}
