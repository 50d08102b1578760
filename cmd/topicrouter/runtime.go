package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hashicorp/go-multierror"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/syntrixbase/topicrouter/internal/config"
	"github.com/syntrixbase/topicrouter/internal/core/keylock"
	"github.com/syntrixbase/topicrouter/internal/core/storage"
	"github.com/syntrixbase/topicrouter/internal/core/transport"
	natstransport "github.com/syntrixbase/topicrouter/internal/core/transport/nats"
	"github.com/syntrixbase/topicrouter/internal/router"
	"github.com/syntrixbase/topicrouter/internal/router/metrics"
)

// Dependency injection for testing
var (
	openStorage = storage.NewProvider
	openLocker  = keylock.New
)

// runtime is everything a command needs, opened in dependency order.
type runtime struct {
	service  *router.Service
	live     *transport.LiveSet
	nats     *natstransport.Provider
	registry *prometheus.Registry

	metricsServer *http.Server

	closers []func(context.Context) error
}

// openRuntime opens storage, the lock backend and, when withTransport is
// set and configured, the NATS endpoints, then builds the router service.
func openRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, withTransport bool) (*runtime, error) {
	rt := &runtime{
		live:     transport.NewLiveSet(),
		registry: prometheus.NewRegistry(),
	}
	opened := false
	defer func() {
		if !opened {
			_ = rt.Close(context.WithoutCancel(ctx))
		}
	}()

	provider, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	rt.closers = append(rt.closers, provider.Close)

	locker, closeLocker, err := openLocker(ctx, cfg.Lock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock backend: %w", err)
	}
	rt.closers = append(rt.closers, func(context.Context) error { return closeLocker() })

	if withTransport && cfg.Transport.Enabled() {
		np := natstransport.NewProvider(cfg.Transport, logger)
		if err := np.Connect(ctx); err != nil {
			return nil, err
		}
		rt.nats = np
		rt.closers = append(rt.closers, func(context.Context) error { return np.Close() })

		eps, err := np.Endpoints()
		if err != nil {
			return nil, err
		}
		for _, ep := range eps {
			rt.live.Add(ep)
		}
	}

	rt.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc, err := router.NewService(router.Options{
		Provider:  provider,
		Locker:    locker,
		Endpoints: rt.live,
		Defaults:  &cfg.Router,
		Metrics:   metrics.NewPrometheus(rt.registry),
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	rt.service = svc
	rt.closers = append(rt.closers, svc.Close)
	opened = true
	return rt, nil
}

// Close releases everything in reverse opening order.
func (rt *runtime) Close(ctx context.Context) error {
	var result *multierror.Error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	rt.closers = nil
	return result.ErrorOrNil()
}
