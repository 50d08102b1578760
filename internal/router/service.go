// Package router is the engine API: producers claim topics, channels
// subscribe with binding keys and Publish fans a message out to every
// matching channel through the live endpoints.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/syntrixbase/topicrouter/internal/core/keylock"
	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
	"github.com/syntrixbase/topicrouter/internal/core/transport"
	"github.com/syntrixbase/topicrouter/internal/router/delivery"
	"github.com/syntrixbase/topicrouter/internal/router/ledger"
	"github.com/syntrixbase/topicrouter/internal/router/registry"
	"github.com/syntrixbase/topicrouter/internal/router/subscription"
)

var (
	// ErrNoEndpointsAvailable is returned by Publish when no endpoint is live.
	ErrNoEndpointsAvailable = errors.New("no live endpoints available")

	// ErrNoSubscribers is returned by Publish when no enabled subscription matches the topic.
	ErrNoSubscribers = errors.New("no subscribers for topic")

	// ErrNoEndpointMatched is returned by Publish when subscribers exist but none has a live endpoint.
	ErrNoEndpointMatched = errors.New("no live endpoint matched the subscribers")

	// ErrEmptyTopic is returned when registering an empty topic.
	ErrEmptyTopic = errors.New("topic must not be empty")

	// ErrClosed is returned by calls that change state once Close has run.
	ErrClosed = errors.New("router service is closed")
)

// Publish outcomes reported to Metrics.IncPublish.
const (
	OutcomeEmptyTopic        = "empty_topic"
	OutcomeNoEndpoints       = "no_endpoints"
	OutcomeNoSubscribers     = "no_subscribers"
	OutcomeNoEndpointMatched = "no_endpoint_matched"
	OutcomeScheduled         = "scheduled"
	OutcomeError             = "error"
)

// Metrics observes publish calls and the deliveries they start.
type Metrics interface {
	delivery.Metrics
	IncPublish(outcome string)
}

// NoopMetrics discards everything.
type NoopMetrics struct {
	delivery.NoopMetrics
}

// IncPublish does nothing.
func (NoopMetrics) IncPublish(string) {}

// Options wires a Service.
type Options struct {
	// Provider supplies the topic and subscription stores. Required.
	Provider types.Provider

	// Locker backs the named critical sections. Defaults to a MemoryLocker.
	Locker keylock.Locker

	// Endpoints lists the live endpoints at publish time. Required.
	Endpoints transport.Registry

	// Defaults are the service-level publish settings. Nil means
	// delivery.DefaultConfig().
	Defaults *delivery.Config

	Metrics         Metrics
	Logger          *slog.Logger
	ExecutorOptions []delivery.ExecutorOption
}

// Service is the engine consumed by the host process.
type Service struct {
	ledger    *ledger.Ledger
	index     *subscription.Index
	registry  *registry.Registry
	executor  *delivery.Executor
	endpoints transport.Registry
	defaults  delivery.Config
	metrics   Metrics
	logger    *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewService creates a Service. Call Start before registering producers.
func NewService(opts Options) (*Service, error) {
	if opts.Provider == nil {
		return nil, errors.New("router: storage provider is required")
	}
	if opts.Endpoints == nil {
		return nil, errors.New("router: endpoint registry is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	locker := opts.Locker
	if locker == nil {
		locker = keylock.NewMemoryLocker()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	defaults := delivery.DefaultConfig()
	if opts.Defaults != nil {
		defaults = *opts.Defaults
	}
	if err := defaults.Validate(); err != nil {
		return nil, fmt.Errorf("router: invalid publish defaults: %w", err)
	}

	l := ledger.New(opts.Provider.Topics(), locker, logger)
	return &Service{
		ledger:    l,
		index:     subscription.New(opts.Provider.Subscriptions(), locker, logger),
		registry:  registry.New(l),
		executor:  delivery.NewExecutor(logger, metrics, opts.ExecutorOptions...),
		endpoints: opts.Endpoints,
		defaults:  defaults,
		metrics:   metrics,
		logger:    logger.With("component", "router"),
	}, nil
}

// Start clears claim counts left over from a previous run. Producers
// re-register afterwards.
func (s *Service) Start(ctx context.Context) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := s.ledger.ResetAllToZero(ctx); err != nil {
		return err
	}
	s.logger.Info("Router started")
	return nil
}

// NewProducer opens a scoped producer registration.
func (s *Service) NewProducer(name string) *registry.Producer {
	return s.registry.Open(name)
}

// RegisterTopic claims topic on behalf of the producer behind handle.
func (s *Service) RegisterTopic(ctx context.Context, handle registry.Handle, name, topic string) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if topic == "" {
		return ErrEmptyTopic
	}
	if err := s.registry.RegisterTopic(ctx, handle, name, topic); err != nil {
		return err
	}
	s.logger.Debug("Topic registered", "producer", name, "topic", topic)
	return nil
}

// UnregisterProducer abandons every topic the producer registered.
func (s *Service) UnregisterProducer(ctx context.Context, handle registry.Handle) error {
	return s.registry.Unregister(ctx, handle)
}

// RegisteredTopicSnapshot returns a copy of every live producer registration.
func (s *Service) RegisteredTopicSnapshot() map[registry.Handle]registry.Registration {
	return s.registry.Snapshot()
}

// Subscribe creates or updates the subscription of form's triple.
func (s *Service) Subscribe(ctx context.Context, form types.SubscriptionForm) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	return s.index.Upsert(ctx, form)
}

// ListSubscriptionsByChannel returns the enabled subscriptions of one channel.
func (s *Service) ListSubscriptionsByChannel(ctx context.Context, platform, channelID string) ([]*types.Subscription, error) {
	return s.index.ByChannel(ctx, platform, channelID)
}

// ListSubscriptionsByTopic returns the enabled subscriptions whose binding key matches topic.
func (s *Service) ListSubscriptionsByTopic(ctx context.Context, topic string) ([]*types.Subscription, error) {
	return s.index.ByTopic(ctx, topic)
}

// ListTopics returns every topic row with its claim count.
func (s *Service) ListTopics(ctx context.Context) ([]*types.Topic, error) {
	return s.ledger.List(ctx)
}

// Publish resolves the channels subscribed to topic and starts delivering
// msg to them. It returns once delivery is scheduled; delivery failures are
// only logged. override is merged over the service defaults and may be nil.
func (s *Service) Publish(ctx context.Context, topic string, msg transport.Message, override *delivery.Override) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if topic == "" {
		s.metrics.IncPublish(OutcomeEmptyTopic)
		return nil
	}
	cfg := s.defaults.Merge(override)
	if err := cfg.Validate(); err != nil {
		s.metrics.IncPublish(OutcomeError)
		return err
	}

	endpoints := s.endpoints.Endpoints()
	if len(endpoints) == 0 {
		s.metrics.IncPublish(OutcomeNoEndpoints)
		if cfg.IgnoreNoBotMatched {
			s.logger.Debug("No live endpoints, message discarded", "topic", topic)
			return nil
		}
		return ErrNoEndpointsAvailable
	}

	matched, err := s.index.ByTopic(ctx, topic)
	if err != nil {
		s.metrics.IncPublish(OutcomeError)
		return fmt.Errorf("find subscribers of %q: %w", topic, err)
	}
	if len(matched) == 0 {
		s.metrics.IncPublish(OutcomeNoSubscribers)
		if cfg.IgnoreNoSubscribers {
			s.logger.Debug("No subscribers, message discarded", "topic", topic)
			return nil
		}
		return fmt.Errorf("%w: %s", ErrNoSubscribers, topic)
	}

	plan := delivery.BuildPlan(matched, endpoints, cfg)
	if plan.Len() == 0 {
		s.metrics.IncPublish(OutcomeNoEndpointMatched)
		if cfg.IgnoreNoBotMatched {
			s.logger.Debug("No endpoint matched the subscribers", "topic", topic, "subscribers", len(matched))
			return nil
		}
		return fmt.Errorf("%w: %s", ErrNoEndpointMatched, topic)
	}

	msg.Topic = topic
	if err := s.executor.Execute(plan, msg, cfg); err != nil {
		s.metrics.IncPublish(OutcomeError)
		if errors.Is(err, delivery.ErrExecutorClosed) {
			return ErrClosed
		}
		return err
	}
	s.metrics.IncPublish(OutcomeScheduled)
	s.logger.Debug("Delivery scheduled",
		"topic", topic, "targets", plan.Len(), "platforms", plan.Platforms())
	return nil
}

// Wait blocks until every delivery started so far has settled.
func (s *Service) Wait() {
	s.executor.Wait()
}

// Close stops accepting calls, cancels pending deliveries and abandons the
// claims of producers that are still registered.
func (s *Service) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	var result *multierror.Error
	if err := s.executor.Close(ctx); err != nil {
		result = multierror.Append(result, fmt.Errorf("close executor: %w", err))
	}
	for _, h := range s.registry.Handles() {
		err := s.registry.Unregister(ctx, h)
		if err != nil && !errors.Is(err, registry.ErrUnknownProducer) {
			result = multierror.Append(result, fmt.Errorf("unregister producer %s: %w", h, err))
		}
	}
	s.logger.Info("Router stopped")
	return result.ErrorOrNil()
}

func (s *Service) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}
