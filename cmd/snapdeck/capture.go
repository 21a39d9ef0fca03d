package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/snapdeck/snapdeck/internal/browser"
	"github.com/snapdeck/snapdeck/internal/catalog"
	"github.com/snapdeck/snapdeck/internal/config"
	"github.com/snapdeck/snapdeck/internal/deck"
	"github.com/snapdeck/snapdeck/internal/engine"
	"github.com/snapdeck/snapdeck/internal/layout"
)

var (
	captureOut string
	planOut    string
)

var captureCmd = &cobra.Command{
	Use:   "capture <deck.html>",
	Short: "Capture a slide deck into a PDF",
	Long: `Render the HTML slide deck in the headless browser, capture its
charts, dashboards, and logos, and compose the planned placements
into a PDF with one page per slide.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, results, err := runPipeline(ctx, args[0])
		if err != nil {
			return err
		}

		slides := make([][]layout.Slot, len(results))
		for i, r := range results {
			slides[i] = r.Slots
		}

		composer := deck.New(deck.Config{
			CanvasWidth:  cfg.Canvas.Width,
			CanvasHeight: cfg.Canvas.Height,
		})
		if err := composer.WritePDF(captureOut, slides); err != nil {
			return err
		}

		fmt.Printf("Wrote %s (%d pages)\n", captureOut, len(slides))
		return nil
	},
}

var planCmd = &cobra.Command{
	Use:   "plan <deck.html>",
	Short: "Print the capture and placement plan as JSON",
	Long: `Render the HTML slide deck and run the full capture and layout
pipeline, but emit the per-slide regions and placements as JSON
instead of composing a PDF. Pixel data is omitted.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		_, results, err := runPipeline(ctx, args[0])
		if err != nil {
			return err
		}

		// Strip pixel payloads; the plan is about geometry.
		for i := range results {
			for j := range results[i].Regions {
				results[i].Regions[j].PixelData = nil
			}
			for j := range results[i].Slots {
				results[i].Slots[j].Region.PixelData = nil
			}
		}

		out := os.Stdout
		if planOut != "" {
			f, err := os.Create(planOut)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", planOut, err)
			}
			defer f.Close()
			out = f
		}

		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	captureCmd.Flags().StringVarP(&captureOut, "out", "o", "deck.pdf", "Output PDF path")
	planCmd.Flags().StringVarP(&planOut, "out", "o", "", "Output JSON path (default: stdout)")

	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(planCmd)
}

// runPipeline loads the deck markup and runs capture, classification,
// and layout for every slide.
func runPipeline(ctx context.Context, path string) (*config.Config, []engine.SlideResult, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	markup, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	url, err := resolveBrowserURL(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	cat := catalog.Default()
	if cfg.Catalog.OverlayPath != "" {
		if err := cat.LoadOverlay(cfg.Catalog.OverlayPath); err != nil {
			return nil, nil, fmt.Errorf("failed to load catalog overlay: %w", err)
		}
	}

	client := browser.NewClient(url)
	if err := client.HealthCheck(ctx); err != nil {
		return nil, nil, err
	}

	eng := engine.New(cat, newSessionFactory(client), cfg.EngineOptions())
	results, err := eng.CaptureAndLayout(ctx, string(markup), cfg.CanvasRect())
	if err != nil {
		return nil, nil, err
	}
	return cfg, results, nil
}

// resolveBrowserURL returns the configured DevTools endpoint, starting
// the managed container when no external URL is set.
func resolveBrowserURL(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Browser.URL != "" {
		return cfg.Browser.URL, nil
	}

	mgr, err := browser.NewDockerManager(browser.DockerConfig{
		ContainerName: cfg.Browser.ContainerName,
		Image:         cfg.Browser.Image,
		HostPort:      cfg.Browser.Port,
	})
	if err != nil {
		return "", err
	}
	defer mgr.Close()

	if err := mgr.Start(ctx); err != nil {
		return "", fmt.Errorf("failed to start browser: %w", err)
	}
	return mgr.URL(), nil
}

// targetSession ties a CDP session to the page target it runs in, so
// closing the session also releases the target.
type targetSession struct {
	*browser.Session
	client   *browser.Client
	targetID string
}

func (s *targetSession) Close() error {
	err := s.Session.Close()
	if cerr := s.client.CloseTarget(context.Background(), s.targetID); cerr != nil && err == nil {
		err = cerr
	}
	return err
}

// newSessionFactory opens a fresh page target per worker session.
func newSessionFactory(client *browser.Client) engine.SessionFactory {
	return func(ctx context.Context) (engine.Session, error) {
		target, err := client.NewTarget(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to open page target: %w", err)
		}

		sess, err := browser.Dial(ctx, target.WebSocketDebuggerURL, nil)
		if err != nil {
			_ = client.CloseTarget(ctx, target.ID)
			return nil, err
		}

		return &targetSession{Session: sess, client: client, targetID: target.ID}, nil
	}
}
