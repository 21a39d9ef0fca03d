// Package deck renders planned placements into output images and
// assembles them into a deck PDF.
package deck

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	xdraw "golang.org/x/image/draw"

	"github.com/snapdeck/snapdeck/internal/classify"
	"github.com/snapdeck/snapdeck/internal/layout"
)

// Config tunes the composer.
type Config struct {
	// CanvasWidth and CanvasHeight are the output page size in pixels.
	CanvasWidth  int
	CanvasHeight int

	// Background fills the canvas before placement. Defaults to white.
	Background color.Color

	// BorderColor outlines dashboard placements. Defaults to a light
	// gray. Logos and charts are drawn without a border.
	BorderColor color.Color

	Logger *slog.Logger
}

// Composer renders slots onto fixed-size canvases.
type Composer struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a composer.
func New(cfg Config) *Composer {
	if cfg.CanvasWidth <= 0 {
		cfg.CanvasWidth = 1280
	}
	if cfg.CanvasHeight <= 0 {
		cfg.CanvasHeight = 720
	}
	if cfg.Background == nil {
		cfg.Background = color.White
	}
	if cfg.BorderColor == nil {
		cfg.BorderColor = color.RGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{cfg: cfg, logger: logger.With("component", "deck")}
}

// ComposeSlide draws the slots onto a fresh canvas. Slots whose pixel
// data is missing or undecodable are skipped with a warning, so a
// partially captured slide still produces a page.
func (c *Composer) ComposeSlide(slots []layout.Slot) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, c.cfg.CanvasWidth, c.cfg.CanvasHeight))
	draw.Draw(canvas, canvas.Bounds(), image.NewUniform(c.cfg.Background), image.Point{}, draw.Src)

	for _, slot := range slots {
		if len(slot.Region.PixelData) == 0 {
			c.logger.Warn("slot has no pixel data", "region", slot.Region.ID)
			continue
		}

		src, err := png.Decode(bytes.NewReader(slot.Region.PixelData))
		if err != nil {
			c.logger.Warn("failed to decode region pixels", "region", slot.Region.ID, "error", err)
			continue
		}

		dst := image.Rect(
			int(slot.Box.X),
			int(slot.Box.Y),
			int(slot.Box.X+slot.Box.Width),
			int(slot.Box.Y+slot.Box.Height),
		)
		xdraw.BiLinear.Scale(canvas, dst, src, src.Bounds(), xdraw.Over, nil)

		if slot.Region.Type == classify.TypeDashboard {
			c.drawBorder(canvas, dst)
		}
	}

	return canvas
}

// drawBorder outlines rect with a one pixel frame.
func (c *Composer) drawBorder(canvas *image.RGBA, rect image.Rectangle) {
	for x := rect.Min.X; x < rect.Max.X; x++ {
		canvas.Set(x, rect.Min.Y, c.cfg.BorderColor)
		canvas.Set(x, rect.Max.Y-1, c.cfg.BorderColor)
	}
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		canvas.Set(rect.Min.X, y, c.cfg.BorderColor)
		canvas.Set(rect.Max.X-1, y, c.cfg.BorderColor)
	}
}

// WritePNG encodes one composed page to path.
func (c *Composer) WritePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return nil
}

// WritePDF composes each slide's slots and assembles the pages into a
// single PDF at path, one page per slide in order.
func (c *Composer) WritePDF(path string, slides [][]layout.Slot) error {
	if len(slides) == 0 {
		return fmt.Errorf("no slides to write")
	}

	tmpDir, err := os.MkdirTemp("", "snapdeck-pages-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pages := make([]string, 0, len(slides))
	for i, slots := range slides {
		img := c.ComposeSlide(slots)
		pagePath := filepath.Join(tmpDir, fmt.Sprintf("page-%04d.png", i))
		if err := c.WritePNG(pagePath, img); err != nil {
			return err
		}
		pages = append(pages, pagePath)
	}

	if err := api.ImportImagesFile(pages, path, nil, nil); err != nil {
		return fmt.Errorf("failed to assemble PDF: %w", err)
	}

	c.logger.Info("wrote deck PDF", "path", path, "pages", len(pages))
	return nil
}
