// Package memory implements the record stores in process memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/syntrixbase/topicrouter/internal/core/storage/types"
)

// Provider holds in-memory topic and subscription stores.
type Provider struct {
	topics *topicStore
	subs   *subscriptionStore
}

var _ types.Provider = (*Provider)(nil)

// NewProvider creates an empty in-memory provider.
func NewProvider() *Provider {
	return &Provider{
		topics: &topicStore{rows: make(map[string]*types.Topic)},
		subs:   &subscriptionStore{byID: make(map[string]*types.Subscription)},
	}
}

// Topics returns the topic store.
func (p *Provider) Topics() types.TopicStore { return p.topics }

// Subscriptions returns the subscription store.
func (p *Provider) Subscriptions() types.SubscriptionStore { return p.subs }

// Close is a no-op.
func (p *Provider) Close(_ context.Context) error { return nil }

type topicStore struct {
	mu   sync.RWMutex
	rows map[string]*types.Topic
}

func (s *topicStore) Get(_ context.Context, name string) (*types.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.rows[name]
	if !ok {
		return nil, types.ErrTopicNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *topicStore) Create(_ context.Context, topic *types.Topic) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[topic.Name]; ok {
		return types.ErrTopicExists
	}
	if topic.ID == "" {
		topic.ID = types.TopicID(topic.Name)
	}
	cp := *topic
	s.rows[topic.Name] = &cp
	return nil
}

func (s *topicStore) Increment(_ context.Context, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[name]
	if !ok {
		return types.ErrTopicNotFound
	}
	t.ClaimCount++
	t.UpdatedAt = at
	return nil
}

func (s *topicStore) Decrement(_ context.Context, name string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.rows[name]
	if !ok {
		return types.ErrTopicNotFound
	}
	if t.ClaimCount > 0 {
		t.ClaimCount--
	} else {
		t.ClaimCount = 0
	}
	t.UpdatedAt = at
	return nil
}

func (s *topicStore) ResetClaimCounts(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.rows {
		t.ClaimCount = 0
	}
	return nil
}

func (s *topicStore) List(_ context.Context) ([]*types.Topic, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Topic, 0, len(s.rows))
	for _, t := range s.rows {
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type subscriptionStore struct {
	mu    sync.RWMutex
	order []*types.Subscription
	byID  map[string]*types.Subscription
}

func (s *subscriptionStore) FindByKey(_ context.Context, platform, channelID, bindingKey string) (*types.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.order {
		if sub.Platform == platform && sub.ChannelID == channelID && sub.BindingKey == bindingKey {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, types.ErrSubscriptionNotFound
}

func (s *subscriptionStore) Create(_ context.Context, sub *types.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = types.SubscriptionID(sub.Platform, sub.ChannelID, sub.BindingKey)
	}
	if _, ok := s.byID[sub.ID]; ok {
		return types.ErrSubscriptionExists
	}
	cp := *sub
	s.order = append(s.order, &cp)
	s.byID[cp.ID] = &cp
	return nil
}

func (s *subscriptionStore) UpdateState(_ context.Context, id string, selfID string, enabled bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.byID[id]
	if !ok {
		return types.ErrSubscriptionNotFound
	}
	sub.SelfID = selfID
	sub.Enabled = enabled
	sub.UpdatedAt = at
	return nil
}

func (s *subscriptionStore) ListEnabled(_ context.Context) ([]*types.Subscription, error) {
	return s.filter(func(sub *types.Subscription) bool { return sub.Enabled }), nil
}

func (s *subscriptionStore) ListEnabledByChannel(_ context.Context, platform, channelID string) ([]*types.Subscription, error) {
	return s.filter(func(sub *types.Subscription) bool {
		return sub.Enabled && sub.Platform == platform && sub.ChannelID == channelID
	}), nil
}

func (s *subscriptionStore) filter(keep func(*types.Subscription) bool) []*types.Subscription {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*types.Subscription, 0, len(s.order))
	for _, sub := range s.order {
		if keep(sub) {
			cp := *sub
			out = append(out, &cp)
		}
	}
	return out
}
