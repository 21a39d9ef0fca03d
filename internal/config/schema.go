package config

import (
	"time"

	"github.com/snapdeck/snapdeck/internal/catalog"
	"github.com/snapdeck/snapdeck/internal/engine"
	"github.com/snapdeck/snapdeck/internal/geometry"
	"github.com/snapdeck/snapdeck/internal/layout"
)

// Config holds snapdeck configuration.
// Stored at: ~/.snapdeck/config.yaml
type Config struct {
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
	Engine  EngineConfig  `mapstructure:"engine" yaml:"engine"`
	Canvas  CanvasConfig  `mapstructure:"canvas" yaml:"canvas"`
	Layout  LayoutConfig  `mapstructure:"layout" yaml:"layout"`
	Catalog CatalogConfig `mapstructure:"catalog" yaml:"catalog"`
}

// BrowserConfig holds the headless browser container configuration.
type BrowserConfig struct {
	// ContainerName is the Docker container name (default: snapdeck-chrome)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: chromedp/headless-shell:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind for DevTools (default: 9222)
	Port string `mapstructure:"port" yaml:"port"`
	// URL overrides container management with an already running
	// DevTools endpoint. Empty means manage the container locally.
	URL string `mapstructure:"url" yaml:"url"`
}

// EngineConfig tunes the capture pipeline.
type EngineConfig struct {
	// OverlapThreshold is the max claimed fraction of a candidate's
	// area before it is rejected.
	OverlapThreshold float64 `mapstructure:"overlap_threshold" yaml:"overlap_threshold"`
	// MinSizes lists the per-tier minimum extent in pixels, most
	// trusted tier first.
	MinSizes []float64 `mapstructure:"min_sizes" yaml:"min_sizes"`
	// PerElementTimeoutMS bounds each element capture.
	PerElementTimeoutMS int `mapstructure:"per_element_timeout_ms" yaml:"per_element_timeout_ms"`
	// PerSlideDeadlineMS bounds each slide; on expiry the slide keeps
	// what was captured so far.
	PerSlideDeadlineMS int `mapstructure:"per_slide_deadline_ms" yaml:"per_slide_deadline_ms"`
	// Workers is the number of concurrent slide workers.
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// CanvasConfig sets the output page size in pixels.
type CanvasConfig struct {
	Width  int `mapstructure:"width" yaml:"width"`
	Height int `mapstructure:"height" yaml:"height"`
}

// LayoutConfig tunes placement planning.
type LayoutConfig struct {
	Margin                float64 `mapstructure:"margin" yaml:"margin"`
	CellGap               float64 `mapstructure:"cell_gap" yaml:"cell_gap"`
	MaxCharts             int     `mapstructure:"max_charts" yaml:"max_charts"`
	MaxDashboardRowHeight float64 `mapstructure:"max_dashboard_row_height" yaml:"max_dashboard_row_height"`
	AspectTolerance       float64 `mapstructure:"aspect_tolerance" yaml:"aspect_tolerance"`
	LogoMaxWidth          float64 `mapstructure:"logo_max_width" yaml:"logo_max_width"`
	LogoMaxHeight         float64 `mapstructure:"logo_max_height" yaml:"logo_max_height"`
}

// CatalogConfig points at optional pattern extensions.
type CatalogConfig struct {
	// OverlayPath is a JSON file of extra selector patterns merged
	// into the built-in catalog. Empty means built-ins only.
	OverlayPath string `mapstructure:"overlay_path" yaml:"overlay_path"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			ContainerName: "snapdeck-chrome",
			Image:         "chromedp/headless-shell:latest",
			Port:          "9222",
		},
		Engine: EngineConfig{
			OverlapThreshold:    0.3,
			MinSizes:            []float64{120, 100, 80, 50, 30},
			PerElementTimeoutMS: 5000,
			PerSlideDeadlineMS:  30000,
			Workers:             0, // 0 means one per CPU
		},
		Canvas: CanvasConfig{
			Width:  1280,
			Height: 720,
		},
		Layout: LayoutConfig{
			Margin:                24,
			CellGap:               16,
			MaxCharts:             6,
			MaxDashboardRowHeight: 320,
			AspectTolerance:       0.2,
			LogoMaxWidth:          140,
			LogoMaxHeight:         70,
		},
	}
}

// CanvasRect returns the configured output canvas as a rectangle.
func (c *Config) CanvasRect() geometry.Rect {
	return geometry.Rect{
		Width:  float64(c.Canvas.Width),
		Height: float64(c.Canvas.Height),
	}
}

// EngineOptions converts the config into pipeline options. Unset
// values fall back to the pipeline defaults.
func (c *Config) EngineOptions() engine.Options {
	opts := engine.DefaultOptions()

	if c.Engine.OverlapThreshold > 0 {
		opts.OverlapThreshold = c.Engine.OverlapThreshold
	}
	if len(c.Engine.MinSizes) > 0 {
		sizes := make(map[catalog.Tier]float64, len(c.Engine.MinSizes))
		for i, size := range c.Engine.MinSizes {
			sizes[catalog.Tier(i+1)] = size
		}
		opts.MinSizeByTier = sizes
	}
	if c.Engine.PerElementTimeoutMS > 0 {
		opts.PerElementTimeout = time.Duration(c.Engine.PerElementTimeoutMS) * time.Millisecond
	}
	if c.Engine.PerSlideDeadlineMS > 0 {
		opts.PerSlideDeadline = time.Duration(c.Engine.PerSlideDeadlineMS) * time.Millisecond
	}
	if c.Engine.Workers > 0 {
		opts.Workers = c.Engine.Workers
	}

	opts.Layout = layout.Config{
		Margin:                c.Layout.Margin,
		CellGap:               c.Layout.CellGap,
		MaxCharts:             c.Layout.MaxCharts,
		MaxDashboardRowHeight: c.Layout.MaxDashboardRowHeight,
		AspectTolerance:       c.Layout.AspectTolerance,
		LogoMaxWidth:          c.Layout.LogoMaxWidth,
		LogoMaxHeight:         c.Layout.LogoMaxHeight,
	}

	return opts
}
