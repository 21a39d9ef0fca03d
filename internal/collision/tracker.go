// Package collision tracks rectangles already claimed on a slide so the
// capture orchestrator never accepts two regions that cover the same
// visual unit. A fresh tracker is constructed per slide; nothing leaks
// across slides.
package collision

import (
	"github.com/snapdeck/snapdeck/internal/catalog"
	"github.com/snapdeck/snapdeck/internal/geometry"
)

// Claim is one registered rectangle with the tier that claimed it. The
// tier is carried for diagnostics only; availability checks treat all
// claims alike.
type Claim struct {
	Box  geometry.Rect
	Tier catalog.Tier
}

// Tracker is the per-slide registry of claimed rectangles. Not safe for
// concurrent use; each slide's capture pass runs sequentially and owns
// its tracker exclusively.
type Tracker struct {
	claims []Claim
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Available reports whether the candidate rectangle may be claimed. A
// candidate is rejected as soon as any registered claim exceeds the
// threshold on either overlap metric: intersection ÷ candidate area, or
// intersection ÷ smaller area. The second metric catches a large
// candidate that contains a small existing claim, where the first ratio
// alone stays tiny. An empty registry is always available.
func (t *Tracker) Available(candidate geometry.Rect, threshold float64) bool {
	for _, c := range t.claims {
		if geometry.OverlapRatio(candidate, c.Box) > threshold {
			return false
		}
		if geometry.SmallerOverlapRatio(candidate, c.Box) > threshold {
			return false
		}
	}
	return true
}

// Register appends the rectangle to the claim list. No dedup, no merge:
// overlapping claims below the threshold coexist.
func (t *Tracker) Register(box geometry.Rect, tier catalog.Tier) {
	t.claims = append(t.claims, Claim{Box: box, Tier: tier})
}

// Claims returns a copy of the registered claims in acceptance order.
func (t *Tracker) Claims() []Claim {
	out := make([]Claim, len(t.claims))
	copy(out, t.claims)
	return out
}

// Len returns the number of registered claims.
func (t *Tracker) Len() int {
	return len(t.claims)
}
