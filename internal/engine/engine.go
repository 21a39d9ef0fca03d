// Package engine coordinates the full pipeline for one document: slide
// discovery, parallel per-slide capture against browser sessions,
// classification, and placement planning.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/snapdeck/snapdeck/internal/capture"
	"github.com/snapdeck/snapdeck/internal/catalog"
	"github.com/snapdeck/snapdeck/internal/classify"
	"github.com/snapdeck/snapdeck/internal/geometry"
	"github.com/snapdeck/snapdeck/internal/layout"
)

// Session is one browser page the engine can drive. Sessions are
// sequential, so each worker owns exactly one.
type Session interface {
	capture.Session

	// LoadDocument replaces the page content with the given markup.
	LoadDocument(ctx context.Context, markup string) error

	// SlideCount reports how many slides the loaded document has.
	SlideCount(ctx context.Context) (int, error)

	// Close releases the session.
	Close() error
}

// SessionFactory opens a fresh session, one per worker.
type SessionFactory func(ctx context.Context) (Session, error)

// Options tunes the pipeline.
type Options struct {
	// OverlapThreshold is the max fraction of a candidate's area that
	// may be claimed before it is rejected.
	OverlapThreshold float64

	// MinSizeByTier sets the per-tier minimum width and height in
	// pixels for a candidate to be captured.
	MinSizeByTier map[catalog.Tier]float64

	// PerElementTimeout bounds each individual element capture.
	PerElementTimeout time.Duration

	// PerSlideDeadline bounds each slide's processing. On expiry the
	// slide keeps whatever was captured so far.
	PerSlideDeadline time.Duration

	// Workers is the number of concurrent slide workers, each with its
	// own browser session. Defaults to runtime.NumCPU().
	Workers int

	Classify classify.Config
	Layout   layout.Config

	Logger *slog.Logger
}

// DefaultOptions returns the standard tuning.
func DefaultOptions() Options {
	return Options{
		OverlapThreshold:  0.3,
		MinSizeByTier:     capture.DefaultMinSizeByTier(),
		PerElementTimeout: 5 * time.Second,
		PerSlideDeadline:  30 * time.Second,
		Workers:           runtime.NumCPU(),
		Classify:          classify.DefaultConfig(),
		Layout:            layout.Config{},
	}
}

// SlideResult is the pipeline output for one slide: the classified
// regions found on it and their planned placements on the output
// canvas of the same index.
type SlideResult struct {
	SlideIndex int               `json:"slide_index"`
	Regions    []classify.Region `json:"regions"`
	Slots      []layout.Slot     `json:"slots"`
}

// Engine runs capture, classification, and layout over a document.
type Engine struct {
	factory    SessionFactory
	orch       *capture.Orchestrator
	classifier *classify.Classifier
	planner    *layout.Planner
	opts       Options
	logger     *slog.Logger
}

// New builds an engine over the given catalog and session factory.
func New(cat *catalog.Catalog, factory SessionFactory, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.NumCPU()
	}

	layoutCfg := opts.Layout
	if layoutCfg.Logger == nil {
		layoutCfg.Logger = logger
	}

	return &Engine{
		factory: factory,
		orch: capture.New(cat, capture.Config{
			OverlapThreshold:  opts.OverlapThreshold,
			MinSizeByTier:     opts.MinSizeByTier,
			PerElementTimeout: opts.PerElementTimeout,
			Logger:            logger,
		}),
		classifier: classify.New(opts.Classify),
		planner:    layout.New(layoutCfg),
		opts:       opts,
		logger:     logger.With("component", "engine"),
	}
}

// CaptureAndLayout processes every slide of markup and returns results
// ordered by slide index. Slides that fail or run out of time
// contribute whatever was completed for them; only failures that
// prevent the run from starting at all are returned as errors.
func (e *Engine) CaptureAndLayout(ctx context.Context, markup string, canvas geometry.Rect) ([]SlideResult, error) {
	first, err := e.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	if err := first.LoadDocument(ctx, markup); err != nil {
		_ = first.Close()
		return nil, fmt.Errorf("failed to load document: %w", err)
	}

	count, err := first.SlideCount(ctx)
	if err != nil {
		_ = first.Close()
		return nil, fmt.Errorf("failed to count slides: %w", err)
	}

	workers := e.opts.Workers
	if workers > count {
		workers = count
	}
	e.logger.Info("starting capture run", "slides", count, "workers", workers)

	// All slide indexes are queued up front; workers pull from the
	// shared channel so faster slides free their worker sooner.
	indexes := make(chan int, count)
	for i := 0; i < count; i++ {
		indexes <- i
	}
	close(indexes)

	results := make(chan SlideResult, count)
	var wg sync.WaitGroup

	run := func(sess Session) {
		defer wg.Done()
		defer sess.Close()
		for idx := range indexes {
			results <- e.processSlide(ctx, sess, idx, canvas)
		}
	}

	wg.Add(1)
	go run(first)

	for i := 1; i < workers; i++ {
		sess, err := e.factory(ctx)
		if err != nil {
			e.logger.Warn("failed to open extra session, continuing with fewer workers", "error", err)
			continue
		}
		if err := sess.LoadDocument(ctx, markup); err != nil {
			e.logger.Warn("failed to load document in extra session", "error", err)
			_ = sess.Close()
			continue
		}
		wg.Add(1)
		go run(sess)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	out := make([]SlideResult, 0, count)
	for r := range results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SlideIndex < out[j].SlideIndex })

	return out, nil
}

// processSlide runs one slide through capture, classification, and
// placement under the per-slide deadline.
func (e *Engine) processSlide(ctx context.Context, sess Session, idx int, canvas geometry.Rect) SlideResult {
	slideCtx := ctx
	if e.opts.PerSlideDeadline > 0 {
		var cancel context.CancelFunc
		slideCtx, cancel = context.WithTimeout(ctx, e.opts.PerSlideDeadline)
		defer cancel()
	}

	regions, err := e.orch.CaptureSlide(slideCtx, sess, idx)
	if err != nil {
		e.logger.Warn("slide capture failed", "slide", idx, "error", err)
		return SlideResult{SlideIndex: idx, Regions: []classify.Region{}, Slots: []layout.Slot{}}
	}

	classified := e.classifier.ClassifyAll(regions, canvas)
	slots := e.planner.Plan(classified, canvas, idx)

	e.logger.Debug("slide processed", "slide", idx, "regions", len(classified), "slots", len(slots))
	return SlideResult{SlideIndex: idx, Regions: classified, Slots: slots}
}
