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

	"github.com/spf13/cobra"

	"guardian-hq/sentinel/pkg/moderator"
)

var serveFlags struct {
	listenAddress string
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the long-lived moderation service",
	Long: `Run sentinel as a long-lived service: rules refresh on schedule (and
on file change when watching is enabled), and an HTTP endpoint exposes
Prometheus metrics and health checks.

Endpoints:
  /metrics  Prometheus exposition
  /health   aggregated component health (JSON)

The service stops on SIGINT or SIGTERM.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVarP(&serveFlags.listenAddress, "listen", "l", "", "override metrics listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveFlags.listenAddress != "" {
		cfg.Metrics.ListenAddress = serveFlags.listenAddress
	}
	logger, err := buildLogger(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mod, err := moderator.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer mod.Close()

	// Load rules up front so a broken rule source fails fast.
	snap, err := mod.RefreshRules(ctx)
	if err != nil {
		return fmt.Errorf("initial rule load: %w", err)
	}
	logger.Info("rules loaded", "count", len(snap.Rules), "version", snap.Version, "skipped", len(snap.Skipped))

	if err := mod.Start(ctx); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := mod.Health(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if !status.Healthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(status)
	})
	if collector := mod.Metrics(); collector != nil {
		mux.Handle("/metrics", collector.Handler())
	}

	httpServer := &http.Server{
		Addr:         cfg.Metrics.ListenAddress,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		logger.Info("serving", "address", cfg.Metrics.ListenAddress, "metrics", cfg.Metrics.Enabled)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	return mod.Close()
}
