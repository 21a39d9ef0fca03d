package capture

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/snapdeck/snapdeck/internal/catalog"
	"github.com/snapdeck/snapdeck/internal/collision"
)

// Config tunes one orchestrator. Zero values fall back to defaults.
type Config struct {
	// OverlapThreshold is the maximum overlap ratio a candidate may have
	// against any claimed rectangle (default 0.3).
	OverlapThreshold float64

	// MinSizeByTier maps each tier to the minimum width and height (in
	// pixels) an element must have to be considered. Tier 1 carries the
	// largest minimum, tier 5 the smallest.
	MinSizeByTier map[catalog.Tier]float64

	// PerElementTimeout bounds each screenshot round trip, independent
	// of the slide-level deadline (default 5s).
	PerElementTimeout time.Duration

	Logger *slog.Logger
}

// DefaultMinSizeByTier returns the default per-tier minimum dimension.
func DefaultMinSizeByTier() map[catalog.Tier]float64 {
	return map[catalog.Tier]float64{
		catalog.TierExplicit:       120,
		catalog.TierSemantic:       100,
		catalog.TierLayoutBlock:    80,
		catalog.TierLibraryWrapper: 50,
		catalog.TierBarePrimitive:  30,
	}
}

// Orchestrator captures one slide at a time against a rendering-engine
// session. Safe for concurrent use across sessions: all per-slide state
// lives in the call.
type Orchestrator struct {
	catalog *catalog.Catalog
	cfg     Config
	logger  *slog.Logger
}

// New creates an orchestrator over the given pattern catalog.
func New(cat *catalog.Catalog, cfg Config) *Orchestrator {
	if cfg.OverlapThreshold <= 0 {
		cfg.OverlapThreshold = 0.3
	}
	if cfg.MinSizeByTier == nil {
		cfg.MinSizeByTier = DefaultMinSizeByTier()
	}
	if cfg.PerElementTimeout <= 0 {
		cfg.PerElementTimeout = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		catalog: cat,
		cfg:     cfg,
		logger:  logger.With("component", "capture"),
	}
}

// CaptureSlide runs tiers 1→5 against the slide and returns the accepted
// regions in acceptance order. Element-level failures are logged and
// skipped. When ctx expires mid-pass the regions accepted so far are
// returned with a nil error; only navigation failure is an error.
func (o *Orchestrator) CaptureSlide(ctx context.Context, session Session, slideIndex int) ([]Region, error) {
	if err := session.NavigateToSlide(ctx, slideIndex); err != nil {
		return nil, fmt.Errorf("failed to navigate to slide %d: %w", slideIndex, err)
	}

	tracker := collision.NewTracker()
	logger := o.logger.With("slide", slideIndex)

	var regions []Region
	for _, tier := range o.catalog.Tiers() {
		for _, pattern := range o.catalog.Patterns(tier) {
			if ctx.Err() != nil {
				logger.Warn("slide deadline exceeded, returning partial results",
					"tier", int(tier), "regions", len(regions))
				return regions, nil
			}

			elements, err := session.QuerySelectorAll(ctx, slideIndex, pattern)
			if err != nil {
				logger.Warn("selector query failed, skipping pattern",
					"pattern", pattern.Name, "tier", int(tier), "error", err)
				continue
			}

			for _, el := range elements {
				if ctx.Err() != nil {
					logger.Warn("slide deadline exceeded, returning partial results",
						"tier", int(tier), "regions", len(regions))
					return regions, nil
				}
				region, ok := o.captureElement(ctx, session, tracker, slideIndex, pattern, el, logger)
				if ok {
					regions = append(regions, region)
				}
			}
		}
	}

	logger.Info("slide capture complete", "regions", len(regions))
	return regions, nil
}

// captureElement runs the per-element checks and, if they all pass,
// screenshots and registers the element. Returns ok=false on any skip.
func (o *Orchestrator) captureElement(
	ctx context.Context,
	session Session,
	tracker *collision.Tracker,
	slideIndex int,
	pattern catalog.Pattern,
	el Element,
	logger *slog.Logger,
) (Region, bool) {
	visible, err := session.IsVisible(ctx, el)
	if err != nil {
		logger.Debug("visibility check failed, skipping element",
			"pattern", pattern.Name, "element", el.String(), "error", err)
		return Region{}, false
	}
	if !visible {
		return Region{}, false
	}

	box, err := session.BoundingBox(ctx, el)
	if err != nil || box == nil {
		logger.Debug("bounding box unavailable, skipping element",
			"pattern", pattern.Name, "element", el.String(), "error", err)
		return Region{}, false
	}

	minSize := o.cfg.MinSizeByTier[pattern.Tier]
	if box.Width < minSize || box.Height < minSize {
		return Region{}, false
	}

	if !tracker.Available(*box, o.cfg.OverlapThreshold) {
		logger.Debug("region already claimed, skipping element",
			"pattern", pattern.Name, "tier", int(pattern.Tier), "box", *box)
		return Region{}, false
	}

	shotCtx, cancel := context.WithTimeout(ctx, o.cfg.PerElementTimeout)
	pixels, err := session.Screenshot(shotCtx, el, *box)
	cancel()
	if err != nil {
		// Best-effort: a timed-out or failed capture is skipped, not
		// retried, and never aborts the slide's pass.
		logger.Warn("screenshot failed, skipping element",
			"pattern", pattern.Name, "tier", int(pattern.Tier), "error", err)
		return Region{}, false
	}

	tracker.Register(*box, pattern.Tier)
	return Region{
		ID:         uuid.NewString(),
		Pattern:    pattern,
		Box:        *box,
		Tier:       pattern.Tier,
		PixelData:  pixels,
		SlideIndex: slideIndex,
	}, true
}
