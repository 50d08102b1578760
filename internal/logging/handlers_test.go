package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingHandler struct {
	calls int
}

func (h *failingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *failingHandler) Handle(context.Context, slog.Record) error {
	h.calls++
	return errors.New("disk full")
}

func (h *failingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *failingHandler) WithGroup(string) slog.Handler      { return h }

func newBufferHandler(buf *bytes.Buffer, level slog.Level) slog.Handler {
	return slog.NewTextHandler(buf, &slog.HandlerOptions{Level: level})
}

func TestLevelFilter_DropsBelowMinimum(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLevelFilter(newBufferHandler(&buf, slog.LevelDebug), slog.LevelWarn))

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "warn message")
	assert.Contains(t, out, "error message")
}

func TestLevelFilter_Enabled(t *testing.T) {
	var buf bytes.Buffer
	filter := NewLevelFilter(newBufferHandler(&buf, slog.LevelError), slog.LevelWarn)

	assert.False(t, filter.Enabled(context.Background(), slog.LevelInfo))
	// the wrapped handler still has the final say
	assert.False(t, filter.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, filter.Enabled(context.Background(), slog.LevelError))
}

func TestLevelFilter_HandleBelowThreshold(t *testing.T) {
	var buf bytes.Buffer
	filter := NewLevelFilter(newBufferHandler(&buf, slog.LevelDebug), slog.LevelWarn)

	r := slog.NewRecord(time.Now(), slog.LevelInfo, "skipped", 0)
	require.NoError(t, filter.Handle(context.Background(), r))
	assert.Empty(t, buf.String())
}

func TestLevelFilter_WithAttrsAndGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewLevelFilter(newBufferHandler(&buf, slog.LevelDebug), slog.LevelWarn))

	logger.With("component", "router").WithGroup("delivery").Warn("dropped", "platform", "x")

	out := buf.String()
	assert.Contains(t, out, "component=router")
	assert.Contains(t, out, "delivery.platform=x")
}

func TestMultiHandler_FansOut(t *testing.T) {
	var all, errs bytes.Buffer
	logger := slog.New(NewMultiHandler(
		newBufferHandler(&all, slog.LevelInfo),
		newBufferHandler(&errs, slog.LevelError),
	))

	logger.Info("hello")
	logger.Error("boom")

	assert.Contains(t, all.String(), "hello")
	assert.Contains(t, all.String(), "boom")
	assert.NotContains(t, errs.String(), "hello")
	assert.Contains(t, errs.String(), "boom")
}

func TestMultiHandler_Enabled(t *testing.T) {
	var a, b bytes.Buffer
	h := NewMultiHandler(newBufferHandler(&a, slog.LevelWarn), newBufferHandler(&b, slog.LevelError))

	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
	assert.False(t, NewMultiHandler().Enabled(context.Background(), slog.LevelError))
}

func TestMultiHandler_ErrorsDoNotStopOthers(t *testing.T) {
	var buf bytes.Buffer
	failing := &failingHandler{}
	h := NewMultiHandler(failing, newBufferHandler(&buf, slog.LevelInfo), failing)

	err := h.Handle(context.Background(), slog.NewRecord(time.Now(), slog.LevelInfo, "still written", 0))

	require.Error(t, err)
	assert.Equal(t, 2, strings.Count(err.Error(), "disk full"))
	assert.Equal(t, 2, failing.calls)
	assert.Contains(t, buf.String(), "still written")
}

func TestMultiHandler_WithAttrsAndGroup(t *testing.T) {
	var a, b bytes.Buffer
	logger := slog.New(NewMultiHandler(newBufferHandler(&a, slog.LevelInfo), newBufferHandler(&b, slog.LevelInfo)))

	logger.With("component", "ledger").WithGroup("topic").Info("claimed", "name", "order")

	for _, out := range []string{a.String(), b.String()} {
		assert.Contains(t, out, "component=ledger")
		assert.Contains(t, out, "topic.name=order")
	}
}
