// Package layout arranges classified regions onto an output canvas:
// dashboards get full-width rows, charts fill a fixed grid ordered by
// confidence, logos pin to a corner. Placements never overlap and
// always preserve the source aspect ratio within a configured
// tolerance.
package layout

import (
	"log/slog"
	"math"
	"sort"

	"github.com/snapdeck/snapdeck/internal/classify"
	"github.com/snapdeck/snapdeck/internal/geometry"
)

// Slot is the final placement instruction for one region: where on the
// output canvas its pixel data is drawn.
type Slot struct {
	Region      classify.Region `json:"region"`
	Box         geometry.Rect   `json:"box"`
	CanvasIndex int             `json:"canvas_index"`
}

// Config tunes the planner. Zero values fall back to defaults.
type Config struct {
	// Margin is the outer canvas margin in pixels (default 24).
	Margin float64
	// CellGap separates grid cells and stacked rows (default 16).
	CellGap float64
	// MaxCharts caps the number of chart regions placed per canvas
	// (default 6). Overflow is dropped and logged, not errored.
	MaxCharts int
	// MaxDashboardRowHeight caps a full-width dashboard row (default
	// 320).
	MaxDashboardRowHeight float64
	// AspectTolerance is the allowed relative deviation between a
	// placed box's aspect ratio and its source's (default 0.2). Within
	// tolerance a chart fills its cell; beyond it the placement shrinks
	// instead of stretching.
	AspectTolerance float64
	// LogoMaxWidth/LogoMaxHeight bound the corner logo placement
	// (defaults 140×70).
	LogoMaxWidth  float64
	LogoMaxHeight float64

	Logger *slog.Logger
}

// Planner computes placements. Stateless; safe for concurrent use.
type Planner struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a planner.
func New(cfg Config) *Planner {
	if cfg.Margin == 0 {
		cfg.Margin = 24
	}
	if cfg.CellGap == 0 {
		cfg.CellGap = 16
	}
	if cfg.MaxCharts <= 0 {
		cfg.MaxCharts = 6
	}
	if cfg.MaxDashboardRowHeight == 0 {
		cfg.MaxDashboardRowHeight = 320
	}
	if cfg.AspectTolerance == 0 {
		cfg.AspectTolerance = 0.2
	}
	if cfg.LogoMaxWidth == 0 {
		cfg.LogoMaxWidth = 140
	}
	if cfg.LogoMaxHeight == 0 {
		cfg.LogoMaxHeight = 70
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{cfg: cfg, logger: logger.With("component", "layout")}
}

// GridShape returns the cols×rows grid used for n charts. Counts above
// six reuse the 3×2 shape; the planner drops the overflow.
func GridShape(n int) (cols, rows int) {
	switch {
	case n <= 1:
		return 1, 1
	case n == 2:
		return 2, 1
	case n <= 4:
		return 2, 2
	default:
		return 3, 2
	}
}

// Plan partitions the regions into layout roles and computes placement
// rectangles on the canvas. Slots come back in draw order: dashboards,
// then charts by descending confidence, then logos.
func (p *Planner) Plan(regions []classify.Region, canvas geometry.Rect, canvasIndex int) []Slot {
	var dashboards, logos, charts []classify.Region
	for _, r := range regions {
		switch r.Type {
		case classify.TypeDashboard:
			dashboards = append(dashboards, r)
		case classify.TypeLogo:
			logos = append(logos, r)
		default:
			charts = append(charts, r)
		}
	}

	// Confidence order decides both grid position and which charts
	// survive the cap. Stable sort keeps capture order on ties so
	// reruns produce identical layouts.
	sort.SliceStable(charts, func(i, j int) bool {
		return charts[i].Confidence > charts[j].Confidence
	})
	if len(charts) > p.cfg.MaxCharts {
		for _, dropped := range charts[p.cfg.MaxCharts:] {
			p.logger.Info("dropping chart beyond per-canvas cap",
				"canvas", canvasIndex, "region", dropped.ID, "confidence", dropped.Confidence)
		}
		charts = charts[:p.cfg.MaxCharts]
	}

	var slots []Slot
	contentX := canvas.X + p.cfg.Margin
	contentW := canvas.Width - 2*p.cfg.Margin
	cursorY := canvas.Y + p.cfg.Margin

	for _, d := range dashboards {
		box := p.dashboardRow(d, contentX, cursorY, contentW)
		slots = append(slots, Slot{Region: d, Box: box, CanvasIndex: canvasIndex})
		cursorY = box.Y + box.Height + p.cfg.CellGap
	}

	slots = append(slots, p.chartGrid(charts, contentX, cursorY, contentW,
		canvas.Y+canvas.Height-p.cfg.Margin-cursorY, canvasIndex)...)

	for _, l := range logos {
		slots = append(slots, Slot{Region: l, Box: p.logoCorner(l, canvas), CanvasIndex: canvasIndex})
	}

	return slots
}

// dashboardRow allots the full content width, deriving height from the
// source aspect ratio. When the height cap bites, the width shrinks to
// keep the aspect and the row centers horizontally.
func (p *Planner) dashboardRow(d classify.Region, x, y, width float64) geometry.Rect {
	ar := d.Box.AspectRatio()
	if ar <= 0 {
		ar = width / p.cfg.MaxDashboardRowHeight
	}
	height := width / ar
	if height > p.cfg.MaxDashboardRowHeight {
		height = p.cfg.MaxDashboardRowHeight
		scaledW := height * ar
		x += (width - scaledW) / 2
		width = scaledW
	}
	return geometry.Rect{X: x, Y: y, Width: width, Height: height}
}

// chartGrid places charts row-major into the grid shape for their
// count, fitting each into its cell.
func (p *Planner) chartGrid(charts []classify.Region, x, y, width, height float64, canvasIndex int) []Slot {
	if len(charts) == 0 || width <= 0 || height <= 0 {
		return nil
	}

	cols, rows := GridShape(len(charts))
	cellW := (width - float64(cols-1)*p.cfg.CellGap) / float64(cols)
	cellH := (height - float64(rows-1)*p.cfg.CellGap) / float64(rows)
	if cellW <= 0 || cellH <= 0 {
		return nil
	}

	slots := make([]Slot, 0, len(charts))
	for i, chart := range charts {
		col := i % cols
		row := i / cols
		cell := geometry.Rect{
			X:      x + float64(col)*(cellW+p.cfg.CellGap),
			Y:      y + float64(row)*(cellH+p.cfg.CellGap),
			Width:  cellW,
			Height: cellH,
		}
		slots = append(slots, Slot{
			Region:      chart,
			Box:         p.fitToCell(chart.Box, cell),
			CanvasIndex: canvasIndex,
		})
	}
	return slots
}

// fitToCell scales the source box into the cell. Within the aspect
// tolerance the cell is used as-is; beyond it, the dimension causing
// the larger deviation shrinks so the image is never stretched. The
// tolerance is measured in both directions (source against cell and
// cell against source) because the placed box inherits the cell's
// ratio, and the placed-to-source deviation is the larger of the two.
func (p *Planner) fitToCell(src, cell geometry.Rect) geometry.Rect {
	srcAR := src.AspectRatio()
	cellAR := cell.AspectRatio()
	if srcAR <= 0 || cellAR <= 0 {
		return cell
	}

	deviation := math.Max(
		math.Abs(srcAR/cellAR-1),
		math.Abs(cellAR/srcAR-1),
	)
	if deviation <= p.cfg.AspectTolerance {
		return cell
	}

	var w, h float64
	if srcAR > cellAR {
		// Source is wider than the cell: height shrinks.
		w = cell.Width
		h = w / srcAR
	} else {
		// Source is taller: width shrinks.
		h = cell.Height
		w = h * srcAR
	}
	return geometry.Rect{
		X:      cell.X + (cell.Width-w)/2,
		Y:      cell.Y + (cell.Height-h)/2,
		Width:  w,
		Height: h,
	}
}

// logoCorner pins the logo to the bottom-right corner, scaled to the
// logo bounds with its aspect preserved. Logos were already
// collision-checked during capture and do not participate in chart
// geometry.
func (p *Planner) logoCorner(l classify.Region, canvas geometry.Rect) geometry.Rect {
	w := p.cfg.LogoMaxWidth
	h := p.cfg.LogoMaxHeight
	ar := l.Box.AspectRatio()
	if ar > 0 {
		if w/ar <= h {
			h = w / ar
		} else {
			w = h * ar
		}
	}
	return geometry.Rect{
		X:      canvas.X + canvas.Width - p.cfg.Margin - w,
		Y:      canvas.Y + canvas.Height - p.cfg.Margin - h,
		Width:  w,
		Height: h,
	}
}
