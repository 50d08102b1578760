package main

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

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/syntrixbase/topicrouter/internal/config"
	"github.com/syntrixbase/topicrouter/internal/core/transport"
	"github.com/syntrixbase/topicrouter/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the router",
		Long: `Run the router until SIGINT or SIGTERM. Claim counts are reset at
startup, configured NATS endpoints join the live set and, when
transport.ingress_subject is set, messages on <ingress_subject>.<topic>
are published to <topic>.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		return err
	}
	defer func() { _ = logging.Shutdown() }()
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openRuntime(ctx, cfg, logger, true)
	if err != nil {
		return err
	}

	if err := serve(ctx, cfg, rt, logger); err != nil {
		_ = rt.Close(context.Background())
		return err
	}

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if rt.metricsServer != nil {
		if err := rt.metricsServer.Shutdown(shutdownCtx); err != nil {
			result = multierror.Append(result, fmt.Errorf("metrics server: %w", err))
		}
	}
	if err := rt.Close(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	logger.Info("topicrouter stopped")
	return result.ErrorOrNil()
}

// serve starts the service and its optional surfaces.
func serve(ctx context.Context, cfg *config.Config, rt *runtime, logger *slog.Logger) error {
	if err := rt.service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start router: %w", err)
	}

	if rt.nats != nil && cfg.Transport.IngressSubject != "" {
		_, err := rt.nats.SubscribeIngress(func(topic string, msg transport.Message) {
			if err := rt.service.Publish(ctx, topic, msg, nil); err != nil {
				logger.Warn("Ingress publish failed", "topic", topic, "error", err)
			}
		})
		if err != nil {
			return err
		}
	}

	if cfg.Metrics.Enabled {
		rt.metricsServer = startMetricsServer(cfg.Metrics, rt.registry, logger)
	}

	logger.Info("topicrouter started",
		"version", version,
		"storage", cfg.Storage.Backend,
		"lock", cfg.Lock.Backend,
		"endpoints", len(rt.live.Endpoints()),
		"platforms", rt.live.Platforms(),
	)
	return nil
}

func startMetricsServer(cfg config.MetricsConfig, reg *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Metrics server listening", "addr", cfg.Listen, "path", cfg.Path)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "error", err)
		}
	}()
	return srv
}
