// Package classify assigns each captured region a semantic element type
// and a confidence score estimating how likely it is a genuine,
// complete visualization rather than a fragment or decoration.
package classify

import (
	"log/slog"

	"github.com/snapdeck/snapdeck/internal/capture"
	"github.com/snapdeck/snapdeck/internal/catalog"
	"github.com/snapdeck/snapdeck/internal/geometry"
)

// ElementType is the semantic label assigned to a captured region.
type ElementType string

const (
	TypeLogo              ElementType = "logo"
	TypeDashboard         ElementType = "dashboard"
	TypeHorizontalChart   ElementType = "horizontal-chart"
	TypeVerticalChart     ElementType = "vertical-chart"
	TypeProportionalChart ElementType = "proportional-chart"
	TypeLibraryChart      ElementType = "library-chart"
	TypeVectorGraphic     ElementType = "vector-graphic"
	TypeCanvasGraphic     ElementType = "canvas-graphic"
	TypeGenericContainer  ElementType = "generic-container"
)

// Region is a captured region plus its classification.
type Region struct {
	capture.Region

	Type       ElementType `json:"type"`
	Confidence float64     `json:"confidence"`
}

// Config holds the classification heuristics. The constants are tuning
// values, not law; defaults match observed behavior on representative
// decks and every one of them is overridable.
type Config struct {
	// BaseConfidence per tier. Defaults: 0.9, 0.8, 0.7, 0.6, 0.3.
	BaseConfidence map[catalog.Tier]float64

	// SizeBonusMax caps the area-proportional bonus (default 0.15).
	SizeBonusMax float64
	// SizeBonusFullArea is the region area at which the size bonus
	// saturates (default 480000, an 800×600 region).
	SizeBonusFullArea float64

	// ChartConceptBonus is added when the matched pattern names a
	// chart/plot concept (default 0.10).
	ChartConceptBonus float64
	// ContainerConceptBonus is added when the matched pattern names a
	// container/wrapper concept (default 0.05).
	ContainerConceptBonus float64

	// AspectPenalty is subtracted for extreme aspect ratios (default
	// 0.20, applied above AspectPenaltyHigh or below AspectPenaltyLow).
	AspectPenalty     float64
	AspectPenaltyHigh float64
	AspectPenaltyLow  float64

	// MinConfidence and MaxConfidence clamp the final score
	// (defaults 0.1 and 1.0).
	MinConfidence float64
	MaxConfidence float64

	// LogoMaxWidth/LogoMaxHeight bound the small-region logo rule
	// (defaults 200×100). EdgeMargin is how close to a canvas edge the
	// small region must sit (default 40).
	LogoMaxWidth  float64
	LogoMaxHeight float64
	EdgeMargin    float64

	Logger *slog.Logger
}

// DefaultConfig returns the default classification heuristics.
func DefaultConfig() Config {
	return Config{
		BaseConfidence: map[catalog.Tier]float64{
			catalog.TierExplicit:       0.9,
			catalog.TierSemantic:       0.8,
			catalog.TierLayoutBlock:    0.7,
			catalog.TierLibraryWrapper: 0.6,
			catalog.TierBarePrimitive:  0.3,
		},
		SizeBonusMax:          0.15,
		SizeBonusFullArea:     480000,
		ChartConceptBonus:     0.10,
		ContainerConceptBonus: 0.05,
		AspectPenalty:         0.20,
		AspectPenaltyHigh:     5.0,
		AspectPenaltyLow:      0.2,
		MinConfidence:         0.1,
		MaxConfidence:         1.0,
		LogoMaxWidth:          200,
		LogoMaxHeight:         100,
		EdgeMargin:            40,
	}
}

// Classifier assigns types and confidence scores. Stateless beyond its
// config; safe for concurrent use.
type Classifier struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a classifier. Zero-valued config fields fall back to
// defaults.
func New(cfg Config) *Classifier {
	def := DefaultConfig()
	if cfg.BaseConfidence == nil {
		cfg.BaseConfidence = def.BaseConfidence
	}
	if cfg.SizeBonusMax == 0 {
		cfg.SizeBonusMax = def.SizeBonusMax
	}
	if cfg.SizeBonusFullArea == 0 {
		cfg.SizeBonusFullArea = def.SizeBonusFullArea
	}
	if cfg.ChartConceptBonus == 0 {
		cfg.ChartConceptBonus = def.ChartConceptBonus
	}
	if cfg.ContainerConceptBonus == 0 {
		cfg.ContainerConceptBonus = def.ContainerConceptBonus
	}
	if cfg.AspectPenalty == 0 {
		cfg.AspectPenalty = def.AspectPenalty
	}
	if cfg.AspectPenaltyHigh == 0 {
		cfg.AspectPenaltyHigh = def.AspectPenaltyHigh
	}
	if cfg.AspectPenaltyLow == 0 {
		cfg.AspectPenaltyLow = def.AspectPenaltyLow
	}
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = def.MinConfidence
	}
	if cfg.MaxConfidence == 0 {
		cfg.MaxConfidence = def.MaxConfidence
	}
	if cfg.LogoMaxWidth == 0 {
		cfg.LogoMaxWidth = def.LogoMaxWidth
	}
	if cfg.LogoMaxHeight == 0 {
		cfg.LogoMaxHeight = def.LogoMaxHeight
	}
	if cfg.EdgeMargin == 0 {
		cfg.EdgeMargin = def.EdgeMargin
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{cfg: cfg, logger: logger.With("component", "classify")}
}

// Classify assigns a type and confidence to one region. canvas is the
// slide's render viewport, used for edge proximity.
func (c *Classifier) Classify(r capture.Region, canvas geometry.Rect) Region {
	t := c.elementType(r, canvas)
	score := c.confidence(r)
	c.logger.Debug("region classified",
		"region", r.ID, "pattern", r.Pattern.Name, "type", string(t), "confidence", score)
	return Region{Region: r, Type: t, Confidence: score}
}

// ClassifyAll classifies every region in capture order.
func (c *Classifier) ClassifyAll(regions []capture.Region, canvas geometry.Rect) []Region {
	out := make([]Region, len(regions))
	for i, r := range regions {
		out[i] = c.Classify(r, canvas)
	}
	return out
}

// elementType is a prioritized decision list; first match wins.
func (c *Classifier) elementType(r capture.Region, canvas geometry.Rect) ElementType {
	box := r.Box
	w, h := box.Width, box.Height
	ar := box.AspectRatio()

	small := w < c.cfg.LogoMaxWidth && h < c.cfg.LogoMaxHeight
	if (small && c.nearEdge(box, canvas)) || r.Pattern.Hints.Branding {
		return TypeLogo
	}
	if w > 800 && h > 600 {
		return TypeDashboard
	}
	if ar > 2.5 && h >= 200 && h <= 600 {
		return TypeHorizontalChart
	}
	if ar > 0 && ar < 0.8 && w >= 200 && w <= 600 {
		return TypeVerticalChart
	}
	if ar >= 0.8 && ar <= 1.25 && min(w, h) > 300 {
		return TypeProportionalChart
	}
	if r.Pattern.Hints.LibraryWrapper {
		return TypeLibraryChart
	}
	if r.Pattern.Hints.VectorPrimitive {
		return TypeVectorGraphic
	}
	if r.Pattern.Hints.CanvasPrimitive {
		return TypeCanvasGraphic
	}
	return TypeGenericContainer
}

// nearEdge reports whether the box sits within the edge margin of any
// canvas edge. A zero canvas disables the positional logo rule.
func (c *Classifier) nearEdge(box, canvas geometry.Rect) bool {
	if canvas.Empty() {
		return false
	}
	m := c.cfg.EdgeMargin
	return box.X-canvas.X <= m ||
		box.Y-canvas.Y <= m ||
		(canvas.X+canvas.Width)-(box.X+box.Width) <= m ||
		(canvas.Y+canvas.Height)-(box.Y+box.Height) <= m
}

func (c *Classifier) confidence(r capture.Region) float64 {
	score := c.cfg.BaseConfidence[r.Tier]

	bonus := c.cfg.SizeBonusMax * (r.Box.Area() / c.cfg.SizeBonusFullArea)
	if bonus > c.cfg.SizeBonusMax {
		bonus = c.cfg.SizeBonusMax
	}
	score += bonus

	if r.Pattern.Hints.ChartConcept {
		score += c.cfg.ChartConceptBonus
	}
	if r.Pattern.Hints.ContainerConcept {
		score += c.cfg.ContainerConceptBonus
	}

	ar := r.Box.AspectRatio()
	if ar > c.cfg.AspectPenaltyHigh || (ar > 0 && ar < c.cfg.AspectPenaltyLow) {
		score -= c.cfg.AspectPenalty
	}

	if score < c.cfg.MinConfidence {
		score = c.cfg.MinConfidence
	}
	if score > c.cfg.MaxConfidence {
		score = c.cfg.MaxConfidence
	}
	return score
}
