// Package registry keeps the process-local map from producer handles to the
// topics each producer claimed.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
)

// ErrUnknownProducer is returned for handles that were never issued or
// already unregistered.
var ErrUnknownProducer = errors.New("unknown producer handle")

// Handle identifies one producer registration.
type Handle string

// Claimer is the ledger side of registration.
type Claimer interface {
	Claim(ctx context.Context, topic string) error
	Abandon(ctx context.Context, topic string) error
}

// Registration is what a producer registered so far.
type Registration struct {
	Name   string   `json:"name"`
	Topics []string `json:"topics"`
}

// Registry owns every live Registration.
type Registry struct {
	claimer Claimer

	mu      sync.Mutex
	entries map[Handle]*Registration
}

// New creates an empty Registry.
func New(claimer Claimer) *Registry {
	return &Registry{
		claimer: claimer,
		entries: make(map[Handle]*Registration),
	}
}

// NewProducer issues a handle for a producer called name.
func (r *Registry) NewProducer(name string) Handle {
	h := Handle(uuid.NewString())
	r.mu.Lock()
	r.entries[h] = &Registration{Name: name}
	r.mu.Unlock()
	return h
}

// RegisterTopic claims topic for the producer. The topic is recorded only
// after the claim succeeded, so Unregister abandons exactly what was claimed.
// name updates the display name when the handle has none yet.
func (r *Registry) RegisterTopic(ctx context.Context, h Handle, name, topic string) error {
	r.mu.Lock()
	_, ok := r.entries[h]
	r.mu.Unlock()
	if !ok {
		return ErrUnknownProducer
	}

	if err := r.claimer.Claim(ctx, topic); err != nil {
		return err
	}

	r.mu.Lock()
	reg, ok := r.entries[h]
	if ok {
		if reg.Name == "" {
			reg.Name = name
		}
		reg.Topics = append(reg.Topics, topic)
	}
	r.mu.Unlock()
	if ok {
		return nil
	}

	// Unregistered while claiming: give the claim back.
	if err := r.claimer.Abandon(context.WithoutCancel(ctx), topic); err != nil {
		return fmt.Errorf("%w: abandon %q after concurrent unregister: %v", ErrUnknownProducer, topic, err)
	}
	return ErrUnknownProducer
}

// Unregister removes the producer and abandons every topic it registered,
// once per registration.
func (r *Registry) Unregister(ctx context.Context, h Handle) error {
	r.mu.Lock()
	reg, ok := r.entries[h]
	delete(r.entries, h)
	r.mu.Unlock()
	if !ok {
		return ErrUnknownProducer
	}

	var result *multierror.Error
	for _, topic := range reg.Topics {
		if err := r.claimer.Abandon(ctx, topic); err != nil {
			result = multierror.Append(result, fmt.Errorf("abandon %q: %w", topic, err))
		}
	}
	return result.ErrorOrNil()
}

// Snapshot returns a deep copy of every live registration.
func (r *Registry) Snapshot() map[Handle]Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Handle]Registration, len(r.entries))
	for h, reg := range r.entries {
		topics := make([]string, len(reg.Topics))
		copy(topics, reg.Topics)
		out[h] = Registration{Name: reg.Name, Topics: topics}
	}
	return out
}

// Handles returns the handles of every live registration.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Handle, 0, len(r.entries))
	for h := range r.entries {
		out = append(out, h)
	}
	return out
}

// Producer is a scoped registration. Close it when the producer shuts down.
type Producer struct {
	reg    *Registry
	handle Handle
	name   string
	once   sync.Once
	err    error
}

// Open issues a handle and wraps it in a Producer.
func (r *Registry) Open(name string) *Producer {
	return &Producer{reg: r, handle: r.NewProducer(name), name: name}
}

// Handle returns the producer's handle.
func (p *Producer) Handle() Handle { return p.handle }

// Name returns the producer's display name.
func (p *Producer) Name() string { return p.name }

// RegisterTopic claims topic for this producer.
func (p *Producer) RegisterTopic(ctx context.Context, topic string) error {
	return p.reg.RegisterTopic(ctx, p.handle, p.name, topic)
}

// Close unregisters the producer. Only the first call has an effect.
func (p *Producer) Close(ctx context.Context) error {
	p.once.Do(func() {
		p.err = p.reg.Unregister(ctx, p.handle)
	})
	return p.err
}
