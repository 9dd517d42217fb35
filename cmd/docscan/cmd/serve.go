package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/docscan/internal/server"
)

// serveCmd represents the serve command.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for the scanning API",
	Long: `Start an HTTP server that provides REST and WebSocket endpoints for
corner detection and perspective correction.

The server provides the following endpoints:
  POST /api/v1/detect - Detect document corners in an uploaded image
  POST /api/v1/warp   - Correct an uploaded image
  POST /api/v1/scan   - Correct every page of an uploaded PDF
  GET  /ws/session    - Interactive corner editing session (WebSocket)
  GET  /health        - Health check endpoint
  GET  /metrics       - Prometheus metrics

Examples:
  docscan serve
  docscan serve --port 8080
  docscan serve --host 0.0.0.0 --port 3000 --rate-limit-enabled`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()
		if err := cfg.Validate(); err != nil {
			return err
		}
		serverConfig, err := cfg.ToServerConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		scanServer, err := server.NewServer(serverConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize server: %w", err)
		}
		defer func() { _ = scanServer.Close() }()

		timeout := time.Duration(serverConfig.TimeoutSec) * time.Second
		httpServer := &http.Server{
			Addr:              serverConfig.Addr(),
			Handler:           scanServer.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       timeout,
			WriteTimeout:      timeout,
		}

		go func() {
			slog.Info("Starting docscan server", "host", serverConfig.Host, "port", serverConfig.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Server error", "error", err)
				cancel()
			}
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			slog.Info("Received shutdown signal", "signal", sig.String())
		case <-ctx.Done():
			slog.Info("Context cancelled, initiating shutdown")
		}

		shutdownTimeout := time.Duration(serverConfig.ShutdownTimeout) * time.Second
		slog.Info("Starting graceful shutdown", "timeout", shutdownTimeout.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("HTTP server shutdown error", "error", err)
		} else {
			slog.Info("HTTP server shutdown completed")
		}

		if err := scanServer.Close(); err != nil {
			slog.Error("Server cleanup error", "error", err)
		}

		slog.Info("Graceful shutdown completed")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("host", "H", "localhost", "server host")
	serveCmd.Flags().IntP("port", "p", 8080, "server port")
	serveCmd.Flags().String("cors-origin", "*", "CORS allowed origins")
	serveCmd.Flags().Int("max-upload-size", 50, "maximum upload size in MB")
	serveCmd.Flags().Int("timeout", 30, "request timeout in seconds")
	serveCmd.Flags().Int("shutdown-timeout", 10, "shutdown timeout in seconds")
	serveCmd.Flags().Float64("viewport-width", 1280, "editing canvas width for session corners (0 = unbounded)")
	serveCmd.Flags().Float64("viewport-height", 900, "editing canvas height for session corners (0 = unbounded)")
	serveCmd.Flags().String("rotate-mode", "redetect", "corner handling on rotation: redetect or rotate-quad")
	// Rate limiting flags
	serveCmd.Flags().Bool("rate-limit-enabled", false, "enable rate limiting")
	serveCmd.Flags().Int("requests-per-minute", 60, "maximum requests per minute per client")
	serveCmd.Flags().Int("requests-per-hour", 1000, "maximum requests per hour per client")
	serveCmd.Flags().Int("max-requests-per-day", 5000, "maximum requests per day per client")
	serveCmd.Flags().Int64("max-data-per-day", 1024, "maximum data uploaded per day per client (MB)")

	bindFlags(serveCmd, map[string]string{
		"server.host":                            "host",
		"server.port":                            "port",
		"server.cors_origin":                     "cors-origin",
		"server.max_upload_mb":                   "max-upload-size",
		"server.timeout_sec":                     "timeout",
		"server.shutdown_timeout":                "shutdown-timeout",
		"editor.viewport_width":                  "viewport-width",
		"editor.viewport_height":                 "viewport-height",
		"editor.rotate_mode":                     "rotate-mode",
		"server.rate_limit.enabled":              "rate-limit-enabled",
		"server.rate_limit.requests_per_minute":  "requests-per-minute",
		"server.rate_limit.requests_per_hour":    "requests-per-hour",
		"server.rate_limit.max_requests_per_day": "max-requests-per-day",
		"server.rate_limit.max_data_per_day_mb":  "max-data-per-day",
	})
}
