// Package memory provides an in-process transport endpoint for standalone mode and tests.
package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/syntrixbase/topicrouter/internal/core/transport"
)

var (
	// ErrEndpointClosed is returned when operating on a closed endpoint.
	ErrEndpointClosed = errors.New("endpoint is closed")

	// ErrMessageNotFound is returned when deleting an unknown message.
	ErrMessageNotFound = errors.New("message not found")
)

// Delivered is one message held in a channel inbox.
type Delivered struct {
	ID        string
	ChannelID string
	Message   transport.Message
	SentAt    time.Time
}

// FailFunc decides whether a send attempt fails. attempt counts every Send
// call made on the endpoint, starting at 1.
type FailFunc func(channelID string, attempt int) error

// Endpoint keeps delivered messages in per-channel inboxes.
type Endpoint struct {
	platform string
	selfID   string

	mu       sync.Mutex
	inboxes  map[string][]Delivered
	deleted  []string
	attempts int
	failFn   FailFunc
	closed   atomic.Bool
}

var _ transport.Endpoint = (*Endpoint)(nil)

// NewEndpoint creates an endpoint for platform identified by selfID.
func NewEndpoint(platform, selfID string) *Endpoint {
	return &Endpoint{
		platform: platform,
		selfID:   selfID,
		inboxes:  make(map[string][]Delivered),
	}
}

func (e *Endpoint) Platform() string { return e.platform }

func (e *Endpoint) SelfID() string { return e.selfID }

// FailWith installs fn as the failure hook. nil disables failure injection.
func (e *Endpoint) FailWith(fn FailFunc) {
	e.mu.Lock()
	e.failFn = fn
	e.mu.Unlock()
}

func (e *Endpoint) Send(ctx context.Context, channelID string, msg transport.Message) ([]string, error) {
	if e.closed.Load() {
		return nil, ErrEndpointClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.attempts++
	if e.failFn != nil {
		if err := e.failFn(channelID, e.attempts); err != nil {
			return nil, err
		}
	}

	d := Delivered{
		ID:        uuid.NewString(),
		ChannelID: channelID,
		Message:   msg,
		SentAt:    time.Now(),
	}
	e.inboxes[channelID] = append(e.inboxes[channelID], d)
	return []string{d.ID}, nil
}

func (e *Endpoint) Delete(ctx context.Context, channelID, messageID string) error {
	if e.closed.Load() {
		return ErrEndpointClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	inbox := e.inboxes[channelID]
	for i, d := range inbox {
		if d.ID == messageID {
			e.inboxes[channelID] = append(inbox[:i:i], inbox[i+1:]...)
			e.deleted = append(e.deleted, messageID)
			return nil
		}
	}
	return ErrMessageNotFound
}

// Inbox returns a copy of the messages currently held for channelID.
func (e *Endpoint) Inbox(channelID string) []Delivered {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Delivered, len(e.inboxes[channelID]))
	copy(out, e.inboxes[channelID])
	return out
}

// Deleted returns the ids of retracted messages in deletion order.
func (e *Endpoint) Deleted() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, len(e.deleted))
	copy(out, e.deleted)
	return out
}

// Attempts returns the number of Send calls seen so far.
func (e *Endpoint) Attempts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.attempts
}

// Close makes every further call fail with ErrEndpointClosed.
func (e *Endpoint) Close() error {
	e.closed.Store(true)
	return nil
}
