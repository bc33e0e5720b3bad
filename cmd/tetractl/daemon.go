package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oriys/tetra/internal/cache"
	"github.com/oriys/tetra/internal/logging"
	"github.com/oriys/tetra/internal/metrics"
	"github.com/oriys/tetra/internal/observability"
	"github.com/oriys/tetra/internal/spec"
	"github.com/spf13/cobra"
)

// daemonCmd keeps the Manifest Fetcher's cache warm and the resource
// registry reconciled in the background, exposing a health/metrics HTTP
// surface for the provider's orchestration layer to probe.
func daemonCmd() *cobra.Command {
	var (
		httpAddr      string
		logLevel      string
		logFormat     string
		manifestPath  string
		maxConcurrent int
		pollInterval  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the control plane loop: reconcile a manifest, serve health and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := buildEnvironment(cmd.Context())
			if err != nil {
				return err
			}
			defer env.Close()

			if cmd.Flags().Changed("http") {
				env.cfg.Daemon.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("log-level") {
				env.cfg.Daemon.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				env.cfg.Observability.Logging.Format = logFormat
			}

			logging.SetLevelFromString(env.cfg.Daemon.LogLevel)
			logging.InitStructured(env.cfg.Observability.Logging.Format, env.cfg.Observability.Logging.Level)

			ctx := context.Background()
			if err := observability.Init(ctx, observability.Config{
				Enabled:     env.cfg.Observability.Tracing.Enabled,
				Exporter:    env.cfg.Observability.Tracing.Exporter,
				Endpoint:    env.cfg.Observability.Tracing.Endpoint,
				ServiceName: env.cfg.Observability.Tracing.ServiceName,
				SampleRate:  env.cfg.Observability.Tracing.SampleRate,
			}); err != nil {
				return fmt.Errorf("init tracing: %w", err)
			}
			defer observability.Shutdown(ctx)

			if env.cfg.Observability.Metrics.Enabled {
				metrics.InitPrometheus(env.cfg.Observability.Metrics.Namespace, env.cfg.Observability.Metrics.HistogramBuckets)
			}

			if env.invalidator != nil {
				go env.invalidator.Start(ctx)
				logging.Op().Info("cache invalidation listener started", "channel", cache.InvalidationChannel)
			}

			if manifestPath != "" {
				manifestFile, err := spec.ParseFile(manifestPath)
				if err != nil {
					return fmt.Errorf("parse manifest: %w", err)
				}
				cfgs, err := manifestFile.ToResourceConfigs()
				if err != nil {
					return fmt.Errorf("validate manifest: %w", err)
				}
				env.orch.DeployAllBackground(ctx, cfgs, maxConcurrent)
			}

			var httpServer *http.Server
			if env.cfg.Daemon.HTTPAddr != "" {
				httpServer = startHTTPServer(env.cfg.Daemon.HTTPAddr, env)
				logging.Op().Info("tetractl daemon: HTTP surface started", "addr", env.cfg.Daemon.HTTPAddr)
			}

			logging.Op().Info("tetractl daemon started", "env", flagEnvID, "state_dir", env.cfg.Daemon.StateDir)
			logging.Op().Info("waiting for signals (Ctrl+C to stop)")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			ticker := time.NewTicker(pollInterval)
			defer ticker.Stop()

			for {
				select {
				case <-sigCh:
					logging.Op().Info("shutdown signal received")
					if httpServer != nil {
						shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
						httpServer.Shutdown(shutdownCtx)
						cancel()
					}
					return nil
				case <-ticker.C:
					env.fetcher.Invalidate()
					m, err := env.fetcher.GetManifest(ctx, env.cfg.Mothership.ID)
					if err != nil {
						logging.Op().Warn("daemon: manifest refresh failed", "error", err)
						continue
					}
					logging.Op().Debug("daemon status",
						"registered", len(env.manager.List()), "manifest_resources", len(m.Resources))
				}
			}
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP health/metrics address (e.g. :8080)")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")
	cmd.Flags().StringVarP(&manifestPath, "file", "f", "", "manifest to reconcile in the background on startup")
	cmd.Flags().IntVar(&maxConcurrent, "max-concurrent", 3, "maximum concurrent deploys during background reconciliation")
	cmd.Flags().DurationVar(&pollInterval, "poll-interval", 30*time.Second, "manifest cache invalidation interval")
	return cmd
}

// startHTTPServer exposes /health and /metrics for the provider's
// orchestration layer, scoped to this control plane's two observable
// concerns.
func startHTTPServer(addr string, env *environment) *http.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":    "ok",
			"resources": len(env.manager.List()),
		})
	})

	mux.Handle("GET /metrics", metrics.PrometheusHandler())
	mux.Handle("GET /metrics.json", metrics.Global().JSONHandler())
	mux.Handle("GET /metrics/timeseries", metrics.Global().TimeSeriesHandler())

	server := &http.Server{Addr: addr, Handler: observability.HTTPMiddleware(mux)}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("http server error", "error", err)
		}
	}()
	return server
}
