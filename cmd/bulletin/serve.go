package main

import (
	"github.com/spf13/cobra"

	"github.com/fredcamaral/bulletin/internal/adapters/secondary/browser"
)

var (
	// Serve command flags
	port         int
	host         string
	tickInterval int
	kiosk        bool
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the rotating content site",
	Long: `Start the HTTP server behind the school site front page.

The rotation is built from the providers listed in rotation.provider_order
and advances every rotation.tick_interval_ms. Kiosk displays load "/" and
follow the rotation over the WebSocket at "/ws".

Example:
  bulletin serve
  bulletin serve --port 8080 --tick-interval 8000
  bulletin serve --kiosk
  bulletin serve -c /etc/bulletin/config.toml`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Zero values leave the configured setting in place
	serveCmd.Flags().IntVarP(&port, "port", "p", 0, "Port to serve on (overrides config)")
	serveCmd.Flags().StringVar(&host, "host", "", "Host to bind to (overrides config)")
	serveCmd.Flags().IntVar(&tickInterval, "tick-interval", 0, "Milliseconds between slides (overrides config)")
	serveCmd.Flags().BoolVar(&kiosk, "kiosk", false, "Open the display page full screen on this machine")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, closeLog, err := setup(cmd, map[string]interface{}{
		"port":          port,
		"host":          host,
		"tick-interval": tickInterval,
	})
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	app, err := newApplication(cmd.Context(), cfg, nil, logger)
	if err != nil {
		return err
	}
	if kiosk {
		app.launcher = browser.NewLauncher()
	}
	defer func() {
		if err := app.Close(); err != nil {
			logger.Warn("Shutdown incomplete", "error", err)
		}
	}()

	return app.Run(cmd.Context())
}
