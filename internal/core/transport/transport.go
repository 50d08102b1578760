// Package transport defines the boundary between the router and the
// platforms that actually carry messages to channels.
package transport

import (
	"context"
	"sort"
	"sync"
)

// Message is the payload handed to an endpoint.
type Message struct {
	Topic   string
	Data    []byte
	Headers map[string]string
}

// Endpoint is a live delivery identity on one platform.
type Endpoint interface {
	// Platform names the platform the endpoint delivers on.
	Platform() string

	// SelfID identifies the endpoint within its platform.
	SelfID() string

	// Send delivers msg to channelID and returns the ids of the created messages.
	Send(ctx context.Context, channelID string, msg Message) ([]string, error)

	// Delete withdraws a previously sent message.
	Delete(ctx context.Context, channelID, messageID string) error
}

// Registry lists the endpoints that are currently live.
type Registry interface {
	Endpoints() []Endpoint
}

type endpointKey struct {
	platform string
	selfID   string
}

// LiveSet is a Registry that endpoints join and leave at runtime.
type LiveSet struct {
	mu        sync.RWMutex
	endpoints map[endpointKey]Endpoint
	order     []endpointKey
}

var _ Registry = (*LiveSet)(nil)

// NewLiveSet returns a LiveSet holding eps.
func NewLiveSet(eps ...Endpoint) *LiveSet {
	s := &LiveSet{endpoints: make(map[endpointKey]Endpoint)}
	for _, ep := range eps {
		s.Add(ep)
	}
	return s
}

// Add registers ep, replacing any endpoint with the same platform and self id.
func (s *LiveSet) Add(ep Endpoint) {
	key := endpointKey{platform: ep.Platform(), selfID: ep.SelfID()}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[key]; !ok {
		s.order = append(s.order, key)
	}
	s.endpoints[key] = ep
}

// Remove drops the endpoint identified by platform and selfID.
func (s *LiveSet) Remove(platform, selfID string) bool {
	key := endpointKey{platform: platform, selfID: selfID}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.endpoints[key]; !ok {
		return false
	}
	delete(s.endpoints, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Endpoints returns the live endpoints in the order they joined.
func (s *LiveSet) Endpoints() []Endpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Endpoint, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.endpoints[k])
	}
	return out
}

// Platforms returns the sorted distinct platforms of the live endpoints.
func (s *LiveSet) Platforms() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, k := range s.order {
		if _, ok := seen[k.platform]; ok {
			continue
		}
		seen[k.platform] = struct{}{}
		out = append(out, k.platform)
	}
	sort.Strings(out)
	return out
}
