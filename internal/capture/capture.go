// Package capture walks the selector catalog tier by tier against a
// live-rendered slide and produces the minimal set of non-overlapping
// pixel-backed regions worth keeping.
package capture

import (
	"context"

	"github.com/snapdeck/snapdeck/internal/catalog"
	"github.com/snapdeck/snapdeck/internal/geometry"
)

// Element is an opaque handle to a matched DOM element. The rendering
// engine owns the handle's meaning; the orchestrator only passes it back
// for follow-up queries and logs its String form.
type Element interface {
	String() string
}

// Session is the sequential interface the orchestrator drives against
// the external rendering engine. All calls on one session are issued
// one at a time; each is a blocking round trip observing the engine's
// current render state.
type Session interface {
	// NavigateToSlide makes the given slide the active render scope.
	NavigateToSlide(ctx context.Context, index int) error

	// QuerySelectorAll returns the elements matching the pattern within
	// the active slide's scope.
	QuerySelectorAll(ctx context.Context, slideIndex int, pattern catalog.Pattern) ([]Element, error)

	// IsVisible reports whether the element is rendered and visible.
	IsVisible(ctx context.Context, el Element) (bool, error)

	// BoundingBox returns the element's bounding rectangle, or nil when
	// the engine cannot resolve one.
	BoundingBox(ctx context.Context, el Element) (*geometry.Rect, error)

	// Screenshot captures the element's pixels as encoded PNG data,
	// clipped to box.
	Screenshot(ctx context.Context, el Element, box geometry.Rect) ([]byte, error)
}

// Region is one claimed rectangle on one slide. Created the moment a
// candidate passes visibility, minimum-size, and collision checks, and
// immutable afterwards.
type Region struct {
	// ID uniquely identifies the region across the run.
	ID string `json:"id"`

	// Pattern is the selector pattern that matched the element.
	Pattern catalog.Pattern `json:"pattern"`

	// Box is the element's bounding rectangle at capture time.
	Box geometry.Rect `json:"box"`

	// Tier is the priority tier the region was accepted at.
	Tier catalog.Tier `json:"tier"`

	// PixelData is the encoded screenshot of the region. Owned by this
	// region until the output writer consumes it.
	PixelData []byte `json:"pixel_data,omitempty"`

	// SlideIndex is the slide the region was captured from.
	SlideIndex int `json:"slide_index"`
}
