package geometry

import (
	"math"
	"testing"
)

func TestNewRect_ClampsNegativeDimensions(t *testing.T) {
	r := NewRect(10, 20, -5, -1)
	if r.Width != 0 || r.Height != 0 {
		t.Errorf("expected clamped dimensions, got %+v", r)
	}
}

func TestRect_Area(t *testing.T) {
	tests := []struct {
		name string
		rect Rect
		want float64
	}{
		{"simple", Rect{0, 0, 600, 400}, 240000},
		{"zero_width", Rect{0, 0, 0, 400}, 0},
		{"unit", Rect{5, 5, 1, 1}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rect.Area(); got != tt.want {
				t.Errorf("Area() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRect_AspectRatio(t *testing.T) {
	tests := []struct {
		name string
		rect Rect
		want float64
	}{
		{"landscape", Rect{0, 0, 800, 400}, 2.0},
		{"portrait", Rect{0, 0, 300, 600}, 0.5},
		{"square", Rect{0, 0, 400, 400}, 1.0},
		{"zero_height", Rect{0, 0, 400, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rect.AspectRatio(); got != tt.want {
				t.Errorf("AspectRatio() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRect_Intersect(t *testing.T) {
	tests := []struct {
		name string
		a, b Rect
		want Rect
	}{
		{
			"partial_overlap",
			Rect{0, 0, 100, 100},
			Rect{50, 50, 100, 100},
			Rect{50, 50, 50, 50},
		},
		{
			"containment",
			Rect{0, 0, 800, 600},
			Rect{200, 150, 400, 300},
			Rect{200, 150, 400, 300},
		},
		{
			"disjoint",
			Rect{0, 0, 100, 100},
			Rect{200, 200, 50, 50},
			Rect{},
		},
		{
			"edge_touching",
			Rect{0, 0, 100, 100},
			Rect{100, 0, 100, 100},
			Rect{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Intersect(tt.b); got != tt.want {
				t.Errorf("Intersect() = %+v, want %+v", got, tt.want)
			}
			// Intersection is symmetric in area.
			if got := tt.b.Intersect(tt.a); got.Area() != tt.want.Area() {
				t.Errorf("reversed Intersect() area = %v, want %v", got.Area(), tt.want.Area())
			}
		})
	}
}

func TestOverlapRatio(t *testing.T) {
	tests := []struct {
		name      string
		candidate Rect
		claimed   Rect
		want      float64
	}{
		{"disjoint", Rect{0, 0, 100, 100}, Rect{500, 500, 100, 100}, 0},
		{"candidate_fully_inside", Rect{200, 150, 400, 300}, Rect{0, 0, 800, 600}, 1.0},
		{"half_covered", Rect{0, 0, 100, 100}, Rect{50, 0, 100, 100}, 0.5},
		{"zero_area_candidate", Rect{0, 0, 0, 0}, Rect{0, 0, 100, 100}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OverlapRatio(tt.candidate, tt.claimed)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("OverlapRatio() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOverlapRatio_Asymmetric(t *testing.T) {
	// A small candidate inside a large claim is fully covered; the large
	// rectangle as candidate against the small claim is only fractionally
	// covered. The tracker depends on this asymmetry.
	small := Rect{200, 150, 400, 300}
	large := Rect{0, 0, 800, 600}

	if got := OverlapRatio(small, large); got != 1.0 {
		t.Errorf("small-vs-large = %v, want 1.0", got)
	}
	if got := OverlapRatio(large, small); got != 0.25 {
		t.Errorf("large-vs-small = %v, want 0.25", got)
	}
}

func TestSmallerOverlapRatio(t *testing.T) {
	small := Rect{200, 150, 400, 300}
	large := Rect{0, 0, 800, 600}

	// Symmetric: order must not matter.
	if got := SmallerOverlapRatio(small, large); got != 1.0 {
		t.Errorf("SmallerOverlapRatio(small, large) = %v, want 1.0", got)
	}
	if got := SmallerOverlapRatio(large, small); got != 1.0 {
		t.Errorf("SmallerOverlapRatio(large, small) = %v, want 1.0", got)
	}
	if got := SmallerOverlapRatio(Rect{0, 0, 10, 10}, Rect{50, 50, 10, 10}); got != 0 {
		t.Errorf("disjoint = %v, want 0", got)
	}
}

func TestRect_Contains(t *testing.T) {
	outer := Rect{0, 0, 800, 600}
	if !outer.Contains(Rect{200, 150, 400, 300}) {
		t.Error("expected containment")
	}
	if outer.Contains(Rect{700, 500, 200, 200}) {
		t.Error("expected overflow not to be contained")
	}
}
