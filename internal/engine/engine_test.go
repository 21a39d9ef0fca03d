package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/snapdeck/snapdeck/internal/capture"
	"github.com/snapdeck/snapdeck/internal/catalog"
	"github.com/snapdeck/snapdeck/internal/classify"
	"github.com/snapdeck/snapdeck/internal/geometry"
)

type fakeElement string

func (f fakeElement) String() string { return string(f) }

// fakeDeck describes per-slide content: pattern name to bounding boxes.
type fakeDeck []map[string][]geometry.Rect

// fakeSession serves a fakeDeck. Safe for a single worker, which is the
// contract real sessions have.
type fakeSession struct {
	deck   fakeDeck
	loaded bool
	boxes  map[string]geometry.Rect

	mu     sync.Mutex
	closed bool
}

func (s *fakeSession) LoadDocument(ctx context.Context, markup string) error {
	s.loaded = true
	return nil
}

func (s *fakeSession) SlideCount(ctx context.Context) (int, error) {
	if len(s.deck) == 0 {
		return 1, nil
	}
	return len(s.deck), nil
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSession) NavigateToSlide(ctx context.Context, index int) error {
	if index < 0 || (len(s.deck) > 0 && index >= len(s.deck)) {
		return fmt.Errorf("slide %d does not exist", index)
	}
	return nil
}

func (s *fakeSession) QuerySelectorAll(ctx context.Context, slideIndex int, pattern catalog.Pattern) ([]capture.Element, error) {
	if slideIndex >= len(s.deck) {
		return nil, nil
	}
	if s.boxes == nil {
		s.boxes = make(map[string]geometry.Rect)
	}
	boxes := s.deck[slideIndex][pattern.Name]
	elements := make([]capture.Element, len(boxes))
	for i, box := range boxes {
		id := fmt.Sprintf("%d/%s/%d", slideIndex, pattern.Name, i)
		s.boxes[id] = box
		elements[i] = fakeElement(id)
	}
	return elements, nil
}

func (s *fakeSession) IsVisible(ctx context.Context, el capture.Element) (bool, error) {
	return true, nil
}

func (s *fakeSession) BoundingBox(ctx context.Context, el capture.Element) (*geometry.Rect, error) {
	box, ok := s.boxes[el.String()]
	if !ok {
		return nil, nil
	}
	return &box, nil
}

func (s *fakeSession) Screenshot(ctx context.Context, el capture.Element, box geometry.Rect) ([]byte, error) {
	return []byte("pixels"), nil
}

func newFakeFactory(deck fakeDeck) SessionFactory {
	return func(ctx context.Context) (Session, error) {
		return &fakeSession{deck: deck}, nil
	}
}

func testOptions(workers int) Options {
	opts := DefaultOptions()
	opts.Workers = workers
	opts.Logger = slog.New(slog.DiscardHandler)
	return opts
}

func testCanvas() geometry.Rect {
	return geometry.Rect{Width: 1280, Height: 720}
}

func TestEngineCaptureAndLayout(t *testing.T) {
	deck := fakeDeck{
		{"chart-container": {{X: 100, Y: 80, Width: 600, Height: 400}}},
		{"class-dashboard": {{X: 0, Y: 0, Width: 900, Height: 650}}},
		{"bare-svg": {{X: 200, Y: 150, Width: 250, Height: 200}}},
	}

	e := New(catalog.Default(), newFakeFactory(deck), testOptions(2))
	results, err := e.CaptureAndLayout(context.Background(), "<html></html>", testCanvas())
	if err != nil {
		t.Fatalf("CaptureAndLayout failed: %v", err)
	}

	if len(results) != 3 {
		t.Fatalf("expected 3 slide results, got %d", len(results))
	}
	for i, r := range results {
		if r.SlideIndex != i {
			t.Errorf("results out of order: position %d has slide %d", i, r.SlideIndex)
		}
		if len(r.Regions) != 1 {
			t.Errorf("slide %d: expected 1 region, got %d", i, len(r.Regions))
		}
		if len(r.Slots) != 1 {
			t.Errorf("slide %d: expected 1 slot, got %d", i, len(r.Slots))
		}
	}

	if results[1].Regions[0].Type != classify.TypeDashboard {
		t.Errorf("slide 1: expected dashboard, got %s", results[1].Regions[0].Type)
	}
	if results[2].Regions[0].Tier != catalog.TierBarePrimitive {
		t.Errorf("slide 2: expected a bare primitive fallback, got tier %d", results[2].Regions[0].Tier)
	}
}

func TestEngineDeterministicAcrossRuns(t *testing.T) {
	deck := fakeDeck{
		{
			"chart-container": {
				{X: 100, Y: 80, Width: 500, Height: 300},
				{X: 650, Y: 80, Width: 500, Height: 300},
			},
		},
		{"class-chart": {{X: 50, Y: 50, Width: 400, Height: 350}}},
	}

	run := func() []SlideResult {
		e := New(catalog.Default(), newFakeFactory(deck), testOptions(4))
		results, err := e.CaptureAndLayout(context.Background(), "<html></html>", testCanvas())
		if err != nil {
			t.Fatalf("CaptureAndLayout failed: %v", err)
		}
		return results
	}

	a, b := run(), run()
	if len(a) != len(b) {
		t.Fatalf("run lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].SlideIndex != b[i].SlideIndex {
			t.Errorf("slide order differs at %d", i)
		}
		if len(a[i].Slots) != len(b[i].Slots) {
			t.Fatalf("slide %d slot counts differ: %d vs %d", i, len(a[i].Slots), len(b[i].Slots))
		}
		for j := range a[i].Slots {
			if a[i].Slots[j].Box != b[i].Slots[j].Box {
				t.Errorf("slide %d slot %d placement differs: %+v vs %+v",
					i, j, a[i].Slots[j].Box, b[i].Slots[j].Box)
			}
			if a[i].Slots[j].Region.Type != b[i].Slots[j].Region.Type {
				t.Errorf("slide %d slot %d type differs", i, j)
			}
		}
	}
}

func TestEngineEmptySlides(t *testing.T) {
	deck := fakeDeck{{}, {}}

	e := New(catalog.Default(), newFakeFactory(deck), testOptions(1))
	results, err := e.CaptureAndLayout(context.Background(), "<html></html>", testCanvas())
	if err != nil {
		t.Fatalf("CaptureAndLayout failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	for _, r := range results {
		if len(r.Regions) != 0 || len(r.Slots) != 0 {
			t.Errorf("slide %d: expected empty result, got %d regions %d slots",
				r.SlideIndex, len(r.Regions), len(r.Slots))
		}
	}
}

func TestEngineFactoryFailure(t *testing.T) {
	factory := func(ctx context.Context) (Session, error) {
		return nil, errors.New("browser unavailable")
	}

	e := New(catalog.Default(), factory, testOptions(1))
	if _, err := e.CaptureAndLayout(context.Background(), "<html></html>", testCanvas()); err == nil {
		t.Fatal("expected error when no session can be opened")
	}
}

func TestEngineDegradedWorkers(t *testing.T) {
	deck := fakeDeck{
		{"chart-container": {{X: 0, Y: 0, Width: 600, Height: 400}}},
		{"chart-container": {{X: 0, Y: 0, Width: 600, Height: 400}}},
		{"chart-container": {{X: 0, Y: 0, Width: 600, Height: 400}}},
	}

	var calls int
	var mu sync.Mutex
	factory := func(ctx context.Context) (Session, error) {
		mu.Lock()
		defer mu.Unlock()
		calls++
		if calls > 1 {
			return nil, errors.New("out of browser targets")
		}
		return &fakeSession{deck: deck}, nil
	}

	e := New(catalog.Default(), factory, testOptions(3))
	results, err := e.CaptureAndLayout(context.Background(), "<html></html>", testCanvas())
	if err != nil {
		t.Fatalf("CaptureAndLayout failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected all slides processed on one worker, got %d", len(results))
	}
	for _, r := range results {
		if len(r.Regions) != 1 {
			t.Errorf("slide %d: expected 1 region, got %d", r.SlideIndex, len(r.Regions))
		}
	}
}
