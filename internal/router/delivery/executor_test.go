package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/syntrixbase/topicrouter/internal/core/transport"
	"github.com/syntrixbase/topicrouter/internal/core/transport/memory"
)

// fakeClock fires every wait immediately and records its duration.
type fakeClock struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (c *fakeClock) after(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.waits = append(c.waits, d)
	c.mu.Unlock()
	ch := make(chan time.Time, 1)
	ch <- time.Time{}
	return ch
}

func (c *fakeClock) recorded() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]time.Duration, len(c.waits))
	copy(out, c.waits)
	return out
}

type recordingMetrics struct {
	mu        sync.Mutex
	sent      int
	failed    int
	dropped   int
	retracted int
	latencies int
	started   int
	finished  int
}

func (m *recordingMetrics) IncSent(string) {
	m.mu.Lock()
	m.sent++
	m.mu.Unlock()
}

func (m *recordingMetrics) IncAttemptFailed(string) {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *recordingMetrics) IncDropped(string) {
	m.mu.Lock()
	m.dropped++
	m.mu.Unlock()
}

func (m *recordingMetrics) IncRetracted(_ string, ok bool) {
	m.mu.Lock()
	if ok {
		m.retracted++
	}
	m.mu.Unlock()
}

func (m *recordingMetrics) ObserveSendLatency(string, time.Duration) {
	m.mu.Lock()
	m.latencies++
	m.mu.Unlock()
}

func (m *recordingMetrics) GroupStarted(string) {
	m.mu.Lock()
	m.started++
	m.mu.Unlock()
}

func (m *recordingMetrics) GroupFinished(string) {
	m.mu.Lock()
	m.finished++
	m.mu.Unlock()
}

func newTestExecutor(t *testing.T) (*Executor, *fakeClock, *recordingMetrics) {
	t.Helper()
	clock := &fakeClock{}
	metrics := &recordingMetrics{}
	e := NewExecutor(nil, metrics, WithAfterFunc(clock.after))
	t.Cleanup(func() {
		require.NoError(t, e.Close(context.Background()))
	})
	return e, clock, metrics
}

func singleGroup(ep transport.Endpoint, channels ...string) Plan {
	targets := make([]Target, 0, len(channels))
	for _, c := range channels {
		targets = append(targets, Target{Platform: ep.Platform(), ChannelID: c, Endpoint: ep})
	}
	return Plan{ep.Platform(): targets}
}

var testMsg = transport.Message{Topic: "order.created.eu", Data: []byte("hello")}

func TestExecutor_DeliversOnce(t *testing.T) {
	e, clock, metrics := newTestExecutor(t)
	ep := memory.NewEndpoint("x", "bot1")

	require.NoError(t, e.Execute(singleGroup(ep, "c1"), testMsg, DefaultConfig()))
	e.Wait()

	inbox := ep.Inbox("c1")
	require.Len(t, inbox, 1)
	assert.Equal(t, testMsg, inbox[0].Message)
	assert.Equal(t, 1, ep.Attempts())
	assert.Empty(t, clock.recorded())
	assert.Equal(t, 1, metrics.sent)
	assert.Equal(t, 1, metrics.latencies)
	assert.Equal(t, 1, metrics.started)
	assert.Equal(t, 1, metrics.finished)
}

func TestExecutor_RetriesThenSucceeds(t *testing.T) {
	e, clock, metrics := newTestExecutor(t)
	ep := memory.NewEndpoint("x", "bot1")
	ep.FailWith(func(_ string, attempt int) error {
		if attempt <= 2 {
			return errors.New("flood wait")
		}
		return nil
	})

	require.NoError(t, e.Execute(singleGroup(ep, "c1"), testMsg, DefaultConfig()))
	e.Wait()

	assert.Equal(t, 3, ep.Attempts())
	assert.Len(t, ep.Inbox("c1"), 1)
	assert.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, clock.recorded())
	assert.Equal(t, 2, metrics.failed)
	assert.Equal(t, 1, metrics.sent)
	assert.Zero(t, metrics.dropped)
}

func TestExecutor_DropsAfterMaxResends(t *testing.T) {
	e, clock, metrics := newTestExecutor(t)
	ep := memory.NewEndpoint("x", "bot1")
	ep.FailWith(func(string, int) error { return errors.New("forbidden") })

	cfg := DefaultConfig()
	cfg.MaxNumberOfResends = 2
	cfg.ResendInterval = 10 * time.Millisecond
	require.NoError(t, e.Execute(singleGroup(ep, "c1"), testMsg, cfg))
	e.Wait()

	assert.Equal(t, 3, ep.Attempts())
	assert.Empty(t, ep.Inbox("c1"))
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}, clock.recorded())
	assert.Equal(t, 3, metrics.failed)
	assert.Equal(t, 1, metrics.dropped)
}

func TestExecutor_NoResends(t *testing.T) {
	e, clock, metrics := newTestExecutor(t)
	ep := memory.NewEndpoint("x", "bot1")
	ep.FailWith(func(string, int) error { return errors.New("down") })

	cfg := DefaultConfig()
	cfg.MaxNumberOfResends = 0
	require.NoError(t, e.Execute(singleGroup(ep, "c1"), testMsg, cfg))
	e.Wait()

	assert.Equal(t, 1, ep.Attempts())
	assert.Empty(t, clock.recorded())
	assert.Equal(t, 1, metrics.dropped)
}

func TestExecutor_NoResendsWithZeroInterval(t *testing.T) {
	e, _, metrics := newTestExecutor(t)
	ep := memory.NewEndpoint("x", "bot1")
	ep.FailWith(func(string, int) error { return errors.New("down") })

	cfg := DefaultConfig()
	cfg.MaxNumberOfResends = 0
	cfg.ResendInterval = 0
	require.NoError(t, e.Execute(singleGroup(ep, "c1", "c2"), testMsg, cfg))

	done := make(chan struct{})
	go func() {
		e.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("group still retrying after %d attempts", ep.Attempts())
	}

	assert.Equal(t, 2, ep.Attempts())
	metrics.mu.Lock()
	defer metrics.mu.Unlock()
	assert.Equal(t, 2, metrics.dropped)
}

func TestExecutor_PacesTargetsInOrder(t *testing.T) {
	e, clock, _ := newTestExecutor(t)
	ep := memory.NewEndpoint("x", "bot1")
	ep.FailWith(func(_ string, attempt int) error {
		if attempt == 1 {
			return errors.New("transient")
		}
		return nil
	})

	cfg := DefaultConfig()
	cfg.SendInterval = 500 * time.Millisecond
	cfg.ResendInterval = 2 * time.Second
	require.NoError(t, e.Execute(singleGroup(ep, "c1", "c2", "c3"), testMsg, cfg))
	e.Wait()

	assert.Equal(t, []time.Duration{2 * time.Second, 500 * time.Millisecond, 500 * time.Millisecond}, clock.recorded())
	first, second, third := ep.Inbox("c1"), ep.Inbox("c2"), ep.Inbox("c3")
	require.Len(t, first, 1)
	require.Len(t, second, 1)
	require.Len(t, third, 1)
	assert.False(t, second[0].SentAt.Before(first[0].SentAt))
	assert.False(t, third[0].SentAt.Before(second[0].SentAt))
}

func TestExecutor_Retraction(t *testing.T) {
	e, clock, metrics := newTestExecutor(t)
	ep := memory.NewEndpoint("x", "bot1")

	cfg := DefaultConfig()
	cfg.RetractTime = 5 * time.Second
	require.NoError(t, e.Execute(singleGroup(ep, "c1"), testMsg, cfg))
	e.Wait()

	assert.Empty(t, ep.Inbox("c1"))
	require.Len(t, ep.Deleted(), 1)
	assert.Equal(t, []time.Duration{5 * time.Second}, clock.recorded())
	assert.Equal(t, 1, metrics.retracted)
}

type blockingEndpoint struct {
	*memory.Endpoint
	release chan struct{}
}

func (b *blockingEndpoint) Send(ctx context.Context, channelID string, msg transport.Message) ([]string, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return b.Endpoint.Send(ctx, channelID, msg)
}

func TestExecutor_GroupsRunIndependently(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	slow := &blockingEndpoint{Endpoint: memory.NewEndpoint("x", "bot1"), release: make(chan struct{})}
	fast := memory.NewEndpoint("y", "bot2")

	plan := Plan{
		"x": {{Platform: "x", ChannelID: "c1", Endpoint: slow}},
		"y": {{Platform: "y", ChannelID: "c2", Endpoint: fast}},
	}
	require.NoError(t, e.Execute(plan, testMsg, DefaultConfig()))

	assert.Eventually(t, func() bool { return len(fast.Inbox("c2")) == 1 }, time.Second, 5*time.Millisecond)
	assert.Empty(t, slow.Inbox("c1"))

	close(slow.release)
	e.Wait()
	assert.Len(t, slow.Inbox("c1"), 1)
}

func TestExecutor_CloseCancelsPendingWork(t *testing.T) {
	e := NewExecutor(nil, nil)
	ep := memory.NewEndpoint("x", "bot1")

	cfg := DefaultConfig()
	cfg.SendInterval = time.Hour
	cfg.RetractTime = time.Hour
	require.NoError(t, e.Execute(singleGroup(ep, "c1", "c2"), testMsg, cfg))
	assert.Eventually(t, func() bool { return len(ep.Inbox("c1")) == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, e.Close(ctx))

	assert.Empty(t, ep.Inbox("c2"))
	assert.Empty(t, ep.Deleted())
	assert.ErrorIs(t, e.Execute(singleGroup(ep, "c3"), testMsg, cfg), ErrExecutorClosed)
}

type panickingEndpoint struct {
	*memory.Endpoint
}

func (panickingEndpoint) Send(context.Context, string, transport.Message) ([]string, error) {
	panic("driver bug")
}

func TestExecutor_RecoversPanics(t *testing.T) {
	e, _, _ := newTestExecutor(t)
	bad := panickingEndpoint{memory.NewEndpoint("x", "bot1")}
	good := memory.NewEndpoint("y", "bot2")

	require.NoError(t, e.Execute(singleGroup(bad, "c1"), testMsg, DefaultConfig()))
	require.NoError(t, e.Execute(singleGroup(good, "c2"), testMsg, DefaultConfig()))
	e.Wait()

	assert.Len(t, good.Inbox("c2"), 1)
}

func TestExecutor_EmptyPlan(t *testing.T) {
	e, _, metrics := newTestExecutor(t)
	require.NoError(t, e.Execute(Plan{}, testMsg, DefaultConfig()))
	e.Wait()
	assert.Zero(t, metrics.started)
}
