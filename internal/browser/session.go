package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/snapdeck/snapdeck/internal/capture"
	"github.com/snapdeck/snapdeck/internal/catalog"
	"github.com/snapdeck/snapdeck/internal/geometry"
)

// screenshotCacheSize bounds the per-session LRU of element captures.
const screenshotCacheSize = 128

// slideSelector is the document-level convention for slide sections.
const slideSelector = "section.slide"

// Session drives one page target over the Chrome DevTools Protocol.
// The protocol is strictly sequential: one request/response round trip
// is in flight at a time, matching the engine's session-oriented
// interface. A session is owned by exactly one capture worker.
type Session struct {
	conn    *websocket.Conn
	logger  *slog.Logger
	frameID string

	mu     sync.Mutex
	nextID int64
	closed bool

	// slide currently navigated to; part of the screenshot cache key.
	slide int

	shots *lru.Cache[string, []byte]
}

type cdpRequest struct {
	ID     int64  `json:"id"`
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
}

type cdpResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *cdpError       `json:"error,omitempty"`
	Method string          `json:"method,omitempty"` // set on events, which we skip
}

type cdpError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *cdpError) Error() string {
	return fmt.Sprintf("cdp error %d: %s", e.Code, e.Message)
}

// Dial connects to a page target's websocket debugger URL and prepares
// the Page domain.
func Dial(ctx context.Context, wsURL string, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial devtools websocket: %w", err)
	}

	shots, err := lru.New[string, []byte](screenshotCacheSize)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create screenshot cache: %w", err)
	}

	s := &Session{
		conn:   conn,
		logger: logger.With("component", "browser"),
		shots:  shots,
	}

	if err := s.call(ctx, "Page.enable", nil, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to enable page domain: %w", err)
	}

	var tree struct {
		FrameTree struct {
			Frame struct {
				ID string `json:"id"`
			} `json:"frame"`
		} `json:"frameTree"`
	}
	if err := s.call(ctx, "Page.getFrameTree", nil, &tree); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to resolve main frame: %w", err)
	}
	s.frameID = tree.FrameTree.Frame.ID

	return s, nil
}

// Close shuts the websocket down. Further calls return ErrSessionClosed.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// call performs one sequential CDP round trip, skipping event messages
// until the matching response arrives.
func (s *Session) call(ctx context.Context, method string, params any, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrSessionClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.nextID++
	id := s.nextID

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}
	_ = s.conn.SetWriteDeadline(deadline)
	_ = s.conn.SetReadDeadline(deadline)

	if err := s.conn.WriteJSON(cdpRequest{ID: id, Method: method, Params: params}); err != nil {
		return fmt.Errorf("failed to send %s: %w", method, err)
	}

	for {
		var resp cdpResponse
		if err := s.conn.ReadJSON(&resp); err != nil {
			return fmt.Errorf("failed to read %s response: %w", method, err)
		}
		if resp.ID != id {
			// Event or stale response; the protocol is sequential so
			// anything else is safe to skip.
			continue
		}
		if resp.Error != nil {
			return fmt.Errorf("%s failed: %w", method, resp.Error)
		}
		if out != nil {
			if err := json.Unmarshal(resp.Result, out); err != nil {
				return fmt.Errorf("failed to parse %s result: %w", method, err)
			}
		}
		return nil
	}
}

// evaluate runs a JavaScript expression and unmarshals its by-value
// result into out.
func (s *Session) evaluate(ctx context.Context, expression string, out any) error {
	var result struct {
		Result struct {
			Type    string          `json:"type"`
			Value   json.RawMessage `json:"value"`
			Subtype string          `json:"subtype"`
		} `json:"result"`
		ExceptionDetails *struct {
			Text string `json:"text"`
		} `json:"exceptionDetails"`
	}

	params := map[string]any{
		"expression":    expression,
		"returnByValue": true,
	}
	if err := s.call(ctx, "Runtime.evaluate", params, &result); err != nil {
		return err
	}
	if result.ExceptionDetails != nil {
		return fmt.Errorf("script threw: %s", result.ExceptionDetails.Text)
	}
	if out != nil && len(result.Result.Value) > 0 {
		if err := json.Unmarshal(result.Result.Value, out); err != nil {
			return fmt.Errorf("failed to parse evaluate result: %w", err)
		}
	}
	return nil
}

// LoadDocument replaces the page content with the given markup. Must
// complete before any geometry or pixel query against that state.
func (s *Session) LoadDocument(ctx context.Context, markup string) error {
	params := map[string]any{
		"frameId": s.frameID,
		"html":    markup,
	}
	if err := s.call(ctx, "Page.setDocumentContent", params, nil); err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}
	s.shots.Purge()
	return nil
}

// SlideCount returns the number of slide sections in the document, or 1
// when the markup has no slide sections at all.
func (s *Session) SlideCount(ctx context.Context) (int, error) {
	var count int
	expr := fmt.Sprintf(`document.querySelectorAll(%s).length`, jsString(slideSelector))
	if err := s.evaluate(ctx, expr, &count); err != nil {
		return 0, fmt.Errorf("failed to count slides: %w", err)
	}
	if count == 0 {
		count = 1
	}
	return count, nil
}

// NavigateToSlide marks the slide section as the active query scope and
// scrolls it into view so geometry reflects its rendered state.
func (s *Session) NavigateToSlide(ctx context.Context, index int) error {
	expr := fmt.Sprintf(`(() => {
		const slides = document.querySelectorAll(%s);
		document.querySelectorAll('.snapdeck-active').forEach(el => el.classList.remove('snapdeck-active'));
		if (slides.length === 0) { return true; }
		const target = slides[%d];
		if (!target) { return false; }
		target.classList.add('snapdeck-active');
		target.scrollIntoView({block: 'start'});
		return true;
	})()`, jsString(slideSelector), index)

	var ok bool
	if err := s.evaluate(ctx, expr, &ok); err != nil {
		return fmt.Errorf("failed to navigate to slide %d: %w", index, err)
	}
	if !ok {
		return fmt.Errorf("slide %d does not exist", index)
	}
	s.slide = index
	return nil
}

// elementHandle identifies a tagged DOM element by the data attribute
// the query script assigned to it.
type elementHandle struct {
	id string
}

func (e elementHandle) String() string {
	return e.id
}

func (e elementHandle) selector() string {
	return fmt.Sprintf(`[data-snapdeck-id=%q]`, e.id)
}

// QuerySelectorAll matches the pattern within the active slide's scope.
// Matched elements are tagged with stable data attributes so follow-up
// queries address exactly the same nodes.
func (s *Session) QuerySelectorAll(ctx context.Context, slideIndex int, pattern catalog.Pattern) ([]capture.Element, error) {
	filter := "true"
	if pattern.Strategy == catalog.StrategyComputedStyle {
		// Centered fixed-height block: explicit pixel height and
		// horizontally centered via auto margins or a centering parent.
		filter = `(() => {
			const cs = getComputedStyle(el);
			if (!el.style.height || !el.style.height.endsWith('px')) { return false; }
			if (cs.marginLeft === cs.marginRight && cs.marginLeft !== '0px') { return true; }
			const ps = el.parentElement ? getComputedStyle(el.parentElement) : null;
			if (!ps) { return false; }
			return ps.textAlign === 'center' ||
				(ps.display === 'flex' && ps.justifyContent === 'center');
		})()`
	}

	expr := fmt.Sprintf(`(() => {
		const scope = document.querySelector('.snapdeck-active') || document;
		window.__snapdeckSeq = window.__snapdeckSeq || 0;
		const ids = [];
		scope.querySelectorAll(%s).forEach(el => {
			if (!(%s)) { return; }
			if (!el.dataset.snapdeckId) {
				el.dataset.snapdeckId = 'sd-' + (++window.__snapdeckSeq);
			}
			ids.push(el.dataset.snapdeckId);
		});
		return ids;
	})()`, jsString(pattern.Selector), filter)

	var ids []string
	if err := s.evaluate(ctx, expr, &ids); err != nil {
		return nil, fmt.Errorf("selector %q failed on slide %d: %w", pattern.Selector, slideIndex, err)
	}

	elements := make([]capture.Element, len(ids))
	for i, id := range ids {
		elements[i] = elementHandle{id: id}
	}
	return elements, nil
}

// IsVisible reports whether the element is rendered with nonzero size
// and not hidden by style.
func (s *Session) IsVisible(ctx context.Context, el capture.Element) (bool, error) {
	handle, ok := el.(elementHandle)
	if !ok {
		return false, fmt.Errorf("foreign element handle %T", el)
	}

	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { return false; }
		const rect = el.getBoundingClientRect();
		if (rect.width <= 0 || rect.height <= 0) { return false; }
		const cs = getComputedStyle(el);
		return cs.visibility !== 'hidden' && cs.display !== 'none' && cs.opacity !== '0';
	})()`, jsString(handle.selector()))

	var visible bool
	if err := s.evaluate(ctx, expr, &visible); err != nil {
		return false, err
	}
	return visible, nil
}

// BoundingBox returns the element's viewport rectangle, or nil when the
// element no longer resolves.
func (s *Session) BoundingBox(ctx context.Context, el capture.Element) (*geometry.Rect, error) {
	handle, ok := el.(elementHandle)
	if !ok {
		return nil, fmt.Errorf("foreign element handle %T", el)
	}

	expr := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) { return null; }
		const r = el.getBoundingClientRect();
		return {x: r.x, y: r.y, width: r.width, height: r.height};
	})()`, jsString(handle.selector()))

	var box *geometry.Rect
	if err := s.evaluate(ctx, expr, &box); err != nil {
		return nil, err
	}
	return box, nil
}

// Screenshot captures the element's pixels clipped to box as PNG data.
// Identical clips within one navigated slide are served from the LRU
// cache without another round trip.
func (s *Session) Screenshot(ctx context.Context, el capture.Element, box geometry.Rect) ([]byte, error) {
	key := fmt.Sprintf("%d|%.2f|%.2f|%.2f|%.2f", s.slide, box.X, box.Y, box.Width, box.Height)
	if data, ok := s.shots.Get(key); ok {
		return data, nil
	}

	params := map[string]any{
		"format": "png",
		"clip": map[string]float64{
			"x":      box.X,
			"y":      box.Y,
			"width":  box.Width,
			"height": box.Height,
			"scale":  1,
		},
		"captureBeyondViewport": true,
	}

	var result struct {
		Data string `json:"data"`
	}
	if err := s.call(ctx, "Page.captureScreenshot", params, &result); err != nil {
		return nil, fmt.Errorf("failed to capture %s: %w", el.String(), err)
	}

	data, err := base64.StdEncoding.DecodeString(result.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot data: %w", err)
	}

	s.shots.Add(key, data)
	return data, nil
}

// jsString renders s as a JavaScript string literal.
func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
