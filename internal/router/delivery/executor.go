package delivery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/syntrixbase/topicrouter/internal/core/transport"
)

// ErrExecutorClosed is returned by Execute after Close.
var ErrExecutorClosed = errors.New("delivery executor is closed")

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithAfterFunc replaces time.After for every wait the executor performs.
func WithAfterFunc(after func(time.Duration) <-chan time.Time) ExecutorOption {
	return func(e *Executor) {
		e.after = after
	}
}

// Executor runs delivery plans in the background. Each platform group is
// one goroutine; retractions are goroutines of their own.
type Executor struct {
	logger  *slog.Logger
	metrics Metrics
	after   func(time.Duration) <-chan time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewExecutor creates an Executor.
func NewExecutor(logger *slog.Logger, metrics Metrics, opts ...ExecutorOption) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	e := &Executor{
		logger:  logger.With("component", "delivery-executor"),
		metrics: metrics,
		after:   time.After,
		ctx:     ctx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute starts one delivery sequence per platform group of plan and
// returns without waiting for them.
func (e *Executor) Execute(plan Plan, msg transport.Message, cfg Config) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrExecutorClosed
	}
	e.wg.Add(len(plan))
	e.mu.Unlock()

	for platform, targets := range plan {
		go e.runGroup(platform, targets, msg, cfg)
	}
	return nil
}

// Wait blocks until every started sequence and retraction has finished.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Close stops accepting plans, cancels pending waits and waits for the
// background goroutines until ctx is done.
func (e *Executor) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()
	e.cancel()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Executor) runGroup(platform string, targets []Target, msg transport.Message, cfg Config) {
	defer e.wg.Done()
	defer e.recoverPanic("platform", platform, "topic", msg.Topic)

	e.metrics.GroupStarted(platform)
	defer e.metrics.GroupFinished(platform)

	for i, target := range targets {
		if i > 0 && !e.sleep(cfg.SendInterval) {
			e.logger.Warn("Delivery sequence cancelled",
				"platform", platform, "topic", msg.Topic, "remaining", len(targets)-i)
			return
		}
		e.deliver(target, msg, cfg)
	}
}

// deliver sends msg to one target, retrying at a constant interval.
func (e *Executor) deliver(target Target, msg transport.Message, cfg Config) {
	retries := cfg.MaxNumberOfResends
	if retries < 0 {
		retries = 0
	}
	// Attempts are counted here; the backoff only supplies the interval.
	b := backoff.NewConstantBackOff(cfg.ResendInterval)
	b.Reset()

	for attempt := 1; ; attempt++ {
		start := time.Now()
		ids, err := target.Endpoint.Send(e.ctx, target.ChannelID, msg)
		if err == nil {
			e.metrics.IncSent(target.Platform)
			e.metrics.ObserveSendLatency(target.Platform, time.Since(start))
			if cfg.RetractTime > 0 && len(ids) > 0 {
				e.scheduleRetraction(target, ids, cfg.RetractTime)
			}
			return
		}

		e.metrics.IncAttemptFailed(target.Platform)
		e.logger.Error("Delivery attempt failed",
			"platform", target.Platform,
			"channel", target.ChannelID,
			"self_id", target.Endpoint.SelfID(),
			"topic", msg.Topic,
			"attempt", attempt,
			"error", err)

		wait := b.NextBackOff()
		if attempt > retries || wait == backoff.Stop {
			e.metrics.IncDropped(target.Platform)
			e.logger.Warn("Delivery dropped",
				"platform", target.Platform,
				"channel", target.ChannelID,
				"topic", msg.Topic,
				"attempts", attempt)
			return
		}
		if !e.sleep(wait) {
			return
		}
	}
}

// scheduleRetraction deletes ids after delay, independently of the group.
// Called from a running group, so the WaitGroup counter is already positive.
func (e *Executor) scheduleRetraction(target Target, ids []string, delay time.Duration) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer e.recoverPanic("platform", target.Platform, "channel", target.ChannelID)

		if !e.sleep(delay) {
			return
		}
		for _, id := range ids {
			err := target.Endpoint.Delete(e.ctx, target.ChannelID, id)
			e.metrics.IncRetracted(target.Platform, err == nil)
			if err != nil {
				e.logger.Error("Retraction failed",
					"platform", target.Platform,
					"channel", target.ChannelID,
					"message_id", id,
					"error", err)
			}
		}
	}()
}

// sleep waits d and reports false if the executor was closed meanwhile.
func (e *Executor) sleep(d time.Duration) bool {
	if d <= 0 {
		return e.ctx.Err() == nil
	}
	select {
	case <-e.after(d):
		return true
	case <-e.ctx.Done():
		return false
	}
}

func (e *Executor) recoverPanic(attrs ...any) {
	if r := recover(); r != nil {
		e.logger.Error("Delivery task panicked", append(attrs, "panic", fmt.Sprint(r))...)
	}
}
