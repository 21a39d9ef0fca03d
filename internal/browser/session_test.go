package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/snapdeck/snapdeck/internal/catalog"
	"github.com/snapdeck/snapdeck/internal/geometry"
)

func mustPattern(t *testing.T, name string) catalog.Pattern {
	t.Helper()
	cat := catalog.Default()
	for _, tier := range cat.Tiers() {
		for _, p := range cat.Patterns(tier) {
			if p.Name == name {
				return p
			}
		}
	}
	t.Fatalf("pattern %q not in default catalog", name)
	return catalog.Pattern{}
}

// fakeCDP serves a websocket endpoint that answers CDP requests from a
// per-method script. Evaluate responses are selected by expression
// substring.
type fakeCDP struct {
	t *testing.T

	// evalResults maps an expression substring to the JSON value the
	// script "returns". First match wins, in insertion order.
	evalOrder   []string
	evalResults map[string]string

	screenshotData  string
	screenshotCalls atomic.Int64
}

func newFakeCDP(t *testing.T) *fakeCDP {
	return &fakeCDP{
		t:              t,
		evalResults:    map[string]string{},
		screenshotData: base64.StdEncoding.EncodeToString([]byte("png-bytes")),
	}
}

func (f *fakeCDP) onEval(substring, resultJSON string) {
	f.evalOrder = append(f.evalOrder, substring)
	f.evalResults[substring] = resultJSON
}

func (f *fakeCDP) serve(t *testing.T) string {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req struct {
				ID     int64           `json:"id"`
				Method string          `json:"method"`
				Params json.RawMessage `json:"params"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}

			result := "{}"
			switch req.Method {
			case "Page.enable":
			case "Page.getFrameTree":
				result = `{"frameTree":{"frame":{"id":"main-frame"}}}`
			case "Page.setDocumentContent":
			case "Page.captureScreenshot":
				f.screenshotCalls.Add(1)
				result = `{"data":"` + f.screenshotData + `"}`
			case "Runtime.evaluate":
				var params struct {
					Expression string `json:"expression"`
				}
				_ = json.Unmarshal(req.Params, &params)
				matched := false
				for _, sub := range f.evalOrder {
					if strings.Contains(params.Expression, sub) {
						result = `{"result":{"type":"object","value":` + f.evalResults[sub] + `}}`
						matched = true
						break
					}
				}
				if !matched {
					result = `{"result":{"type":"undefined"}}`
				}
			default:
				f.t.Errorf("unexpected CDP method %s", req.Method)
			}

			resp := map[string]any{"id": req.ID, "result": json.RawMessage(result)}
			if err := conn.WriteJSON(resp); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialFake(t *testing.T, f *fakeCDP) *Session {
	t.Helper()

	s, err := Dial(context.Background(), f.serve(t), slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionLoadDocument(t *testing.T) {
	f := newFakeCDP(t)
	s := dialFake(t, f)

	if err := s.LoadDocument(context.Background(), "<html><body></body></html>"); err != nil {
		t.Fatalf("LoadDocument failed: %v", err)
	}
	if s.frameID != "main-frame" {
		t.Errorf("expected frame id from Page.getFrameTree, got %q", s.frameID)
	}
}

func TestSessionSlideCount(t *testing.T) {
	f := newFakeCDP(t)
	f.onEval("querySelectorAll", "3")
	s := dialFake(t, f)

	n, err := s.SlideCount(context.Background())
	if err != nil {
		t.Fatalf("SlideCount failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 slides, got %d", n)
	}
}

func TestSessionSlideCountFallback(t *testing.T) {
	f := newFakeCDP(t)
	f.onEval("querySelectorAll", "0")
	s := dialFake(t, f)

	n, err := s.SlideCount(context.Background())
	if err != nil {
		t.Fatalf("SlideCount failed: %v", err)
	}
	if n != 1 {
		t.Errorf("markup without slide sections should count as 1, got %d", n)
	}
}

func TestSessionNavigateToMissingSlide(t *testing.T) {
	f := newFakeCDP(t)
	f.onEval("snapdeck-active", "false")
	s := dialFake(t, f)

	if err := s.NavigateToSlide(context.Background(), 9); err == nil {
		t.Fatal("expected error navigating to a slide that does not exist")
	}
}

func TestSessionQueryAndGeometry(t *testing.T) {
	f := newFakeCDP(t)
	f.onEval("snapdeckSeq", `["sd-1","sd-2"]`)
	f.onEval("visibility", "true")
	f.onEval("getBoundingClientRect", `{"x":100,"y":50,"width":600,"height":400}`)
	s := dialFake(t, f)

	pattern := mustPattern(t, "chart-container")
	elements, err := s.QuerySelectorAll(context.Background(), 0, pattern)
	if err != nil {
		t.Fatalf("QuerySelectorAll failed: %v", err)
	}
	if len(elements) != 2 {
		t.Fatalf("expected 2 elements, got %d", len(elements))
	}
	if elements[0].String() != "sd-1" {
		t.Errorf("unexpected element id %q", elements[0].String())
	}

	visible, err := s.IsVisible(context.Background(), elements[0])
	if err != nil {
		t.Fatalf("IsVisible failed: %v", err)
	}
	if !visible {
		t.Error("expected element to be visible")
	}

	box, err := s.BoundingBox(context.Background(), elements[0])
	if err != nil {
		t.Fatalf("BoundingBox failed: %v", err)
	}
	want := geometry.Rect{X: 100, Y: 50, Width: 600, Height: 400}
	if box == nil || *box != want {
		t.Errorf("expected box %+v, got %+v", want, box)
	}
}

func TestSessionScreenshotCaching(t *testing.T) {
	f := newFakeCDP(t)
	f.onEval("snapdeckSeq", `["sd-1"]`)
	s := dialFake(t, f)

	elements, err := s.QuerySelectorAll(context.Background(), 0, mustPattern(t, "chart-container"))
	if err != nil {
		t.Fatalf("QuerySelectorAll failed: %v", err)
	}

	box := geometry.Rect{X: 10, Y: 20, Width: 300, Height: 200}
	first, err := s.Screenshot(context.Background(), elements[0], box)
	if err != nil {
		t.Fatalf("Screenshot failed: %v", err)
	}
	if string(first) != "png-bytes" {
		t.Errorf("unexpected screenshot payload %q", first)
	}

	second, err := s.Screenshot(context.Background(), elements[0], box)
	if err != nil {
		t.Fatalf("cached Screenshot failed: %v", err)
	}
	if string(second) != "png-bytes" {
		t.Errorf("unexpected cached payload %q", second)
	}
	if got := f.screenshotCalls.Load(); got != 1 {
		t.Errorf("expected 1 capture round trip for identical clips, got %d", got)
	}

	// A different clip misses the cache.
	other := geometry.Rect{X: 0, Y: 0, Width: 100, Height: 100}
	if _, err := s.Screenshot(context.Background(), elements[0], other); err != nil {
		t.Fatalf("Screenshot failed: %v", err)
	}
	if got := f.screenshotCalls.Load(); got != 2 {
		t.Errorf("expected a second round trip for a new clip, got %d", got)
	}
}

func TestSessionClosed(t *testing.T) {
	f := newFakeCDP(t)
	s := dialFake(t, f)

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.NavigateToSlide(context.Background(), 0); err == nil {
		t.Fatal("expected error after Close")
	}
}
