package deck

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/snapdeck/snapdeck/internal/capture"
	"github.com/snapdeck/snapdeck/internal/classify"
	"github.com/snapdeck/snapdeck/internal/geometry"
	"github.com/snapdeck/snapdeck/internal/layout"
)

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode fixture: %v", err)
	}
	return buf.Bytes()
}

func slotWith(t *testing.T, typ classify.ElementType, box geometry.Rect, pixels []byte) layout.Slot {
	t.Helper()
	return layout.Slot{
		Region: classify.Region{
			Region: capture.Region{ID: "r1", Box: box, PixelData: pixels},
			Type:   typ,
		},
		Box: box,
	}
}

func testComposer() *Composer {
	return New(Config{
		CanvasWidth:  400,
		CanvasHeight: 300,
		Logger:       slog.New(slog.DiscardHandler),
	})
}

func TestComposeSlideBackground(t *testing.T) {
	img := testComposer().ComposeSlide(nil)

	if got := img.Bounds(); got.Dx() != 400 || got.Dy() != 300 {
		t.Fatalf("unexpected canvas size %v", got)
	}
	r, g, b, _ := img.At(200, 150).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("expected white background, got %v", img.At(200, 150))
	}
}

func TestComposeSlidePlacesPixels(t *testing.T) {
	red := color.RGBA{R: 0xff, A: 0xff}
	box := geometry.Rect{X: 100, Y: 50, Width: 200, Height: 100}
	slot := slotWith(t, classify.TypeHorizontalChart, box, solidPNG(t, 20, 10, red))

	img := testComposer().ComposeSlide([]layout.Slot{slot})

	r, _, _, _ := img.At(200, 100).RGBA()
	if r != 0xffff {
		t.Errorf("expected red pixels inside the slot, got %v", img.At(200, 100))
	}
	r, g, b, _ := img.At(10, 10).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("expected background outside the slot, got %v", img.At(10, 10))
	}
}

func TestComposeSlideDashboardBorder(t *testing.T) {
	blue := color.RGBA{B: 0xff, A: 0xff}
	box := geometry.Rect{X: 50, Y: 40, Width: 300, Height: 200}
	slot := slotWith(t, classify.TypeDashboard, box, solidPNG(t, 30, 20, blue))

	img := testComposer().ComposeSlide([]layout.Slot{slot})

	want := color.RGBA{R: 0xd0, G: 0xd0, B: 0xd0, A: 0xff}
	if got := img.RGBAAt(50, 40); got != want {
		t.Errorf("expected border at top-left corner, got %v", got)
	}
	if got := img.RGBAAt(349, 239); got != want {
		t.Errorf("expected border at bottom-right corner, got %v", got)
	}
}

func TestComposeSlideSkipsBadPixelData(t *testing.T) {
	box := geometry.Rect{X: 10, Y: 10, Width: 50, Height: 50}
	slots := []layout.Slot{
		slotWith(t, classify.TypeGenericContainer, box, []byte("not a png")),
		slotWith(t, classify.TypeGenericContainer, box, nil),
	}

	img := testComposer().ComposeSlide(slots)

	r, g, b, _ := img.At(30, 30).RGBA()
	if r != 0xffff || g != 0xffff || b != 0xffff {
		t.Errorf("bad slots should leave the canvas untouched, got %v", img.At(30, 30))
	}
}

func TestWritePDF(t *testing.T) {
	red := color.RGBA{R: 0xff, A: 0xff}
	slides := [][]layout.Slot{
		{slotWith(t, classify.TypeHorizontalChart, geometry.Rect{X: 20, Y: 20, Width: 100, Height: 60}, solidPNG(t, 10, 6, red))},
		{},
	}

	path := filepath.Join(t.TempDir(), "deck.pdf")
	if err := testComposer().WritePDF(path, slides); err != nil {
		t.Fatalf("WritePDF failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open output: %v", err)
	}
	defer f.Close()

	count, err := api.PageCount(f, nil)
	if err != nil {
		t.Fatalf("failed to count pages: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 pages, got %d", count)
	}
}

func TestWritePDFEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deck.pdf")
	if err := testComposer().WritePDF(path, nil); err == nil {
		t.Fatal("expected error for an empty deck")
	}
}
