package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapdeck/snapdeck/internal/browser"
)

var browserCmd = &cobra.Command{
	Use:   "browser",
	Short: "Manage the headless browser container",
	Long: `Manage the headless browser container lifecycle.

All rendering happens in a headless Chromium instance running in a
Docker container, driven over the DevTools protocol. One container
serves all capture runs.

Examples:
  snapdeck browser start   # Start the browser container
  snapdeck browser stop    # Stop the container
  snapdeck browser status  # Check container status
  snapdeck browser logs    # View container logs`,
}

var browserStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the browser container",
	Long: `Start the headless browser container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting browser...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start browser: %w", err)
		}

		fmt.Printf("Browser is running at %s\n", mgr.URL())
		return nil
	},
}

var browserStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the browser container",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping browser...")
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop browser: %w", err)
		}

		fmt.Println("Browser stopped")
		return nil
	},
}

var browserStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show browser container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case browser.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())

			// Try health check
			client := browser.NewClient(mgr.URL())
			if err := client.HealthCheck(ctx); err != nil {
				fmt.Printf("Health: unhealthy (%v)\n", err)
			} else {
				fmt.Println("Health: healthy")
			}
		case browser.StatusStopped:
			fmt.Printf("Status: %s (use 'snapdeck browser start' to start)\n", status)
		case browser.StatusNotFound:
			fmt.Printf("Status: %s (use 'snapdeck browser start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var logsTail string

var browserLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show browser container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, logsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var browserRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the browser container",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing browser container...")
		if err := mgr.Remove(ctx); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("Browser container removed")
		return nil
	},
}

var browserWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the browser to be ready",
	Long: `Wait for the browser's DevTools endpoint to accept connections.

Useful in scripts to ensure the browser is fully started before
running a capture.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getDockerManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fmt.Printf("Waiting for browser (timeout: %s)...\n", timeout)

		if err := mgr.WaitReady(ctx, timeout); err != nil {
			return fmt.Errorf("browser not ready: %w", err)
		}

		fmt.Println("Browser is ready")
		return nil
	},
}

func init() {
	browserCmd.AddCommand(browserStartCmd)
	browserCmd.AddCommand(browserStopCmd)
	browserCmd.AddCommand(browserStatusCmd)
	browserCmd.AddCommand(browserLogsCmd)
	browserCmd.AddCommand(browserRemoveCmd)
	browserCmd.AddCommand(browserWaitCmd)

	browserLogsCmd.Flags().StringVar(&logsTail, "tail", "100", "Number of lines to show from the end")
	browserWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for the browser")

	rootCmd.AddCommand(browserCmd)
}

// getDockerManager creates a DockerManager with the configured settings.
func getDockerManager() (*browser.DockerManager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	return browser.NewDockerManager(browser.DockerConfig{
		ContainerName: cfg.Browser.ContainerName,
		Image:         cfg.Browser.Image,
		HostPort:      cfg.Browser.Port,
	})
}
