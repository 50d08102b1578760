package nats

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/mock"
)

// MockJetStream is a mock implementation of the JetStream interface for testing.
type MockJetStream struct {
	mock.Mock
}

func (m *MockJetStream) CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(jetstream.Stream), args.Error(1)
}

func (m *MockJetStream) PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error) {
	args := m.Called(ctx, msg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*jetstream.PubAck), args.Error(1)
}

// MockStream is a mock implementation of jetstream.Stream for testing.
type MockStream struct {
	mock.Mock
	jetstream.Stream // Embed to avoid implementing all methods
}

func (m *MockStream) DeleteMsg(ctx context.Context, seq uint64) error {
	args := m.Called(ctx, seq)
	return args.Error(0)
}

// MockSubscriber captures core NATS subscriptions.
type MockSubscriber struct {
	mock.Mock
	handler nats.MsgHandler
}

func (m *MockSubscriber) Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error) {
	m.handler = cb
	args := m.Called(subj)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*nats.Subscription), args.Error(1)
}
