// Package geometry provides the rectangle math the capture pipeline is
// built on: areas, aspect ratios, intersections, and the two overlap
// ratios used for collision accounting.
package geometry

// Rect is an axis-aligned rectangle in canvas-relative units.
// Width and Height are never negative. Rects are values and are never
// mutated after construction.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// NewRect constructs a Rect, clamping negative dimensions to zero.
func NewRect(x, y, width, height float64) Rect {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return Rect{X: x, Y: y, Width: width, Height: height}
}

// Area returns width × height.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Empty reports whether the rectangle has zero area.
func (r Rect) Empty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// AspectRatio returns width ÷ height, or 0 for a zero-height rectangle.
func (r Rect) AspectRatio() float64 {
	if r.Height == 0 {
		return 0
	}
	return r.Width / r.Height
}

// Intersect returns the intersection of two rectangles. The zero Rect is
// returned when they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	x1 := max(r.X, o.X)
	y1 := max(r.Y, o.Y)
	x2 := min(r.X+r.Width, o.X+o.Width)
	y2 := min(r.Y+r.Height, o.Y+o.Height)
	if x2 <= x1 || y2 <= y1 {
		return Rect{}
	}
	return Rect{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}
}

// Contains reports whether o lies entirely within r.
func (r Rect) Contains(o Rect) bool {
	return o.X >= r.X && o.Y >= r.Y &&
		o.X+o.Width <= r.X+r.Width &&
		o.Y+o.Height <= r.Y+r.Height
}

// OverlapRatio returns the intersection area divided by the candidate's
// own area. This is the availability metric the collision tracker uses:
// the candidate is the rectangle being tested, claimed is an already
// registered one. Returns 0 when the rectangles are disjoint or the
// candidate has zero area.
func OverlapRatio(candidate, claimed Rect) float64 {
	a := candidate.Area()
	if a == 0 {
		return 0
	}
	return candidate.Intersect(claimed).Area() / a
}

// SmallerOverlapRatio returns the intersection area divided by the area
// of the smaller rectangle. This is the pipeline-wide overlap invariant
// metric: for any two accepted regions on a slide it must not exceed the
// configured threshold.
func SmallerOverlapRatio(a, b Rect) float64 {
	smaller := min(a.Area(), b.Area())
	if smaller == 0 {
		return 0
	}
	return a.Intersect(b).Area() / smaller
}
