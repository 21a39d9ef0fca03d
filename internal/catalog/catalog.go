// Package catalog holds the ordered table of selector patterns the
// capture orchestrator walks. Patterns are grouped into five priority
// tiers, tier 1 being the most trusted. The catalog is built once at
// startup and is read-only afterwards.
package catalog

import (
	"fmt"
	"sort"
)

// Tier is a pattern trust level. Lower numbers are evaluated first and
// carry higher base confidence.
type Tier int

const (
	// TierExplicit matches explicit visualization containers.
	TierExplicit Tier = 1
	// TierSemantic matches semantic container naming conventions.
	TierSemantic Tier = 2
	// TierLayoutBlock matches centered fixed-height layout blocks
	// (CSS-only charts with no chart markup).
	TierLayoutBlock Tier = 3
	// TierLibraryWrapper matches known charting-library wrappers.
	TierLibraryWrapper Tier = 4
	// TierBarePrimitive matches bare vector/canvas primitives with no
	// enclosing container. Always evaluated, even when earlier tiers
	// produced nothing.
	TierBarePrimitive Tier = 5
)

// MatchStrategy describes how a pattern's selector is evaluated against
// the rendered document.
type MatchStrategy string

const (
	// StrategyClassName matches by explicit class or element selector.
	StrategyClassName MatchStrategy = "class-name"
	// StrategyAttributeSubstring matches by substring of class/id/data
	// attributes.
	StrategyAttributeSubstring MatchStrategy = "attribute-substring"
	// StrategyComputedStyle selects candidates by element selector and
	// filters them by computed style (fixed pixel height, centered).
	StrategyComputedStyle MatchStrategy = "computed-style-predicate"
	// StrategyLibrarySignature matches DOM signatures left by charting
	// libraries.
	StrategyLibrarySignature MatchStrategy = "library-signature"
)

// Hints carry the semantic flags the classifier reads off a matched
// pattern. They describe what the pattern's name denotes, not what the
// matched element turned out to be.
type Hints struct {
	Branding         bool `json:"branding,omitempty"`
	ChartConcept     bool `json:"chart_concept,omitempty"`
	ContainerConcept bool `json:"container_concept,omitempty"`
	LibraryWrapper   bool `json:"library_wrapper,omitempty"`
	VectorPrimitive  bool `json:"vector_primitive,omitempty"`
	CanvasPrimitive  bool `json:"canvas_primitive,omitempty"`
}

// Pattern is one structural match rule. Belongs to exactly one tier.
type Pattern struct {
	Name     string        `json:"name"`
	Selector string        `json:"selector"`
	Strategy MatchStrategy `json:"strategy"`
	Tier     Tier          `json:"tier"`
	Hints    Hints         `json:"hints"`
}

// Catalog is the ordered tier table. Safe for concurrent reads after
// construction; never mutated once handed to the engine.
type Catalog struct {
	tiers map[Tier][]Pattern
}

// New returns an empty catalog.
func New() *Catalog {
	return &Catalog{tiers: make(map[Tier][]Pattern)}
}

// Default returns the built-in pattern table.
func Default() *Catalog {
	c := New()
	for _, p := range defaultPatterns() {
		// Built-in patterns are known valid.
		if err := c.Add(p); err != nil {
			panic(fmt.Sprintf("invalid built-in pattern %q: %v", p.Name, err))
		}
	}
	return c
}

// Add appends a pattern to its tier, preserving declaration order.
// Returns an error for an out-of-range tier, empty selector, or unknown
// strategy.
func (c *Catalog) Add(p Pattern) error {
	if p.Tier < TierExplicit || p.Tier > TierBarePrimitive {
		return fmt.Errorf("pattern %q: tier %d out of range 1..5", p.Name, p.Tier)
	}
	if p.Selector == "" {
		return fmt.Errorf("pattern %q: empty selector", p.Name)
	}
	switch p.Strategy {
	case StrategyClassName, StrategyAttributeSubstring, StrategyComputedStyle, StrategyLibrarySignature:
	default:
		return fmt.Errorf("pattern %q: unknown strategy %q", p.Name, p.Strategy)
	}
	c.tiers[p.Tier] = append(c.tiers[p.Tier], p)
	return nil
}

// Tiers returns the populated tiers in ascending order.
func (c *Catalog) Tiers() []Tier {
	out := make([]Tier, 0, len(c.tiers))
	for t := range c.tiers {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Patterns returns a copy of the tier's pattern list in declaration
// order.
func (c *Catalog) Patterns(t Tier) []Pattern {
	src := c.tiers[t]
	out := make([]Pattern, len(src))
	copy(out, src)
	return out
}

// Len returns the total number of patterns across all tiers.
func (c *Catalog) Len() int {
	n := 0
	for _, ps := range c.tiers {
		n += len(ps)
	}
	return n
}

func defaultPatterns() []Pattern {
	return []Pattern{
		// Tier 1: explicit visualization containers.
		{Name: "chart-container", Selector: ".chart-container", Strategy: StrategyClassName, Tier: TierExplicit,
			Hints: Hints{ChartConcept: true, ContainerConcept: true}},
		{Name: "visualization", Selector: ".visualization", Strategy: StrategyClassName, Tier: TierExplicit,
			Hints: Hints{ChartConcept: true, ContainerConcept: true}},
		{Name: "data-chart", Selector: "[data-chart]", Strategy: StrategyClassName, Tier: TierExplicit,
			Hints: Hints{ChartConcept: true}},
		{Name: "figure-chart", Selector: "figure.chart", Strategy: StrategyClassName, Tier: TierExplicit,
			Hints: Hints{ChartConcept: true, ContainerConcept: true}},

		// Tier 2: semantic naming conventions.
		{Name: "class-chart", Selector: `[class*="chart"]`, Strategy: StrategyAttributeSubstring, Tier: TierSemantic,
			Hints: Hints{ChartConcept: true}},
		{Name: "class-graph", Selector: `[class*="graph"]`, Strategy: StrategyAttributeSubstring, Tier: TierSemantic,
			Hints: Hints{ChartConcept: true}},
		{Name: "class-dashboard", Selector: `[class*="dashboard"]`, Strategy: StrategyAttributeSubstring, Tier: TierSemantic,
			Hints: Hints{ContainerConcept: true}},
		{Name: "id-chart", Selector: `[id*="chart"]`, Strategy: StrategyAttributeSubstring, Tier: TierSemantic,
			Hints: Hints{ChartConcept: true}},
		{Name: "brand-image", Selector: `img[class*="logo"], [class*="brand"] img`, Strategy: StrategyAttributeSubstring, Tier: TierSemantic,
			Hints: Hints{Branding: true}},

		// Tier 3: centered fixed-height layout blocks (CSS-only charts).
		{Name: "centered-fixed-block", Selector: "div", Strategy: StrategyComputedStyle, Tier: TierLayoutBlock,
			Hints: Hints{ContainerConcept: true}},

		// Tier 4: charting-library wrappers.
		{Name: "highcharts", Selector: ".highcharts-container", Strategy: StrategyLibrarySignature, Tier: TierLibraryWrapper,
			Hints: Hints{LibraryWrapper: true, ChartConcept: true}},
		{Name: "chartjs", Selector: "canvas.chartjs-render-monitor, canvas[class*=\"chartjs\"]", Strategy: StrategyLibrarySignature, Tier: TierLibraryWrapper,
			Hints: Hints{LibraryWrapper: true, ChartConcept: true, CanvasPrimitive: true}},
		{Name: "plotly", Selector: ".js-plotly-plot, .plotly", Strategy: StrategyLibrarySignature, Tier: TierLibraryWrapper,
			Hints: Hints{LibraryWrapper: true, ChartConcept: true}},
		{Name: "echarts", Selector: "[_echarts_instance_], .echarts", Strategy: StrategyLibrarySignature, Tier: TierLibraryWrapper,
			Hints: Hints{LibraryWrapper: true, ChartConcept: true}},
		{Name: "recharts", Selector: ".recharts-wrapper", Strategy: StrategyLibrarySignature, Tier: TierLibraryWrapper,
			Hints: Hints{LibraryWrapper: true, ChartConcept: true}},

		// Tier 5: bare graphic primitives. The fallback tier; always runs.
		{Name: "bare-svg", Selector: "svg", Strategy: StrategyClassName, Tier: TierBarePrimitive,
			Hints: Hints{VectorPrimitive: true}},
		{Name: "bare-canvas", Selector: "canvas", Strategy: StrategyClassName, Tier: TierBarePrimitive,
			Hints: Hints{CanvasPrimitive: true}},
	}
}
