// Package nats delivers router messages onto a NATS JetStream stream.
// Each delivered message is one stream entry; retraction deletes the entry.
package nats

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// JetStream is the subset of jetstream.JetStream the transport needs.
type JetStream interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// msgDeleter is the subset of jetstream.Stream used for retraction.
type msgDeleter interface {
	DeleteMsg(ctx context.Context, seq uint64) error
}

// natsConnectFunc is a function type for connecting to NATS (injectable for testing)
type natsConnectFunc func(url string, opts ...nats.Option) (*nats.Conn, error)

// jetStreamFactory is a function type for creating JetStream (injectable for testing)
type jetStreamFactory func(nc *nats.Conn) (JetStream, error)

var defaultNatsConnect natsConnectFunc = nats.Connect

var defaultJetStreamFactory jetStreamFactory = func(nc *nats.Conn) (JetStream, error) {
	if nc == nil {
		return nil, fmt.Errorf("nats connection cannot be nil")
	}
	return jetstream.New(nc)
}

// Provider owns the NATS connection and the delivery stream.
type Provider struct {
	cfg    Config
	logger *slog.Logger

	nc     *nats.Conn
	sub    subscriber
	js     JetStream
	stream msgDeleter

	natsConnect      natsConnectFunc  // injectable for testing
	jetStreamFactory jetStreamFactory // injectable for testing
}

// NewProvider creates an unconnected provider.
func NewProvider(cfg Config, logger *slog.Logger) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	return &Provider{
		cfg:              cfg,
		logger:           logger.With("component", "transport-nats"),
		natsConnect:      defaultNatsConnect,
		jetStreamFactory: defaultJetStreamFactory,
	}
}

// Connect establishes the NATS connection and ensures the delivery stream exists.
// This must be called before NewEndpoint.
func (p *Provider) Connect(ctx context.Context) error {
	nc, err := p.natsConnect(p.cfg.URL, nats.Name("topicrouter"))
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", p.cfg.URL, err)
	}
	p.nc = nc

	js, err := p.jetStreamFactory(nc)
	if err != nil {
		p.closeConn()
		return fmt.Errorf("failed to create JetStream: %w", err)
	}

	storage := jetstream.MemoryStorage
	if p.cfg.Storage == StorageFile {
		storage = jetstream.FileStorage
	}
	stream, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     p.cfg.StreamName,
		Subjects: []string{p.cfg.SubjectPrefix + ".>"},
		Storage:  storage,
		MaxAge:   p.cfg.MaxAge,
	})
	if err != nil {
		p.closeConn()
		return fmt.Errorf("failed to ensure stream %s: %w", p.cfg.StreamName, err)
	}

	if nc != nil {
		p.sub = nc
	}
	p.js = js
	p.stream = stream
	p.logger.Info("Connected to NATS", "url", p.cfg.URL, "stream", p.cfg.StreamName)
	return nil
}

// NewEndpoint returns an endpoint publishing on behalf of platform/selfID.
func (p *Provider) NewEndpoint(platform, selfID string) (*Endpoint, error) {
	if p.js == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}
	return newEndpoint(platform, selfID, p.cfg.SubjectPrefix, p.js, p.stream), nil
}

// Endpoints builds one endpoint per configured EndpointConfig.
func (p *Provider) Endpoints() ([]*Endpoint, error) {
	out := make([]*Endpoint, 0, len(p.cfg.Endpoints))
	for _, ec := range p.cfg.Endpoints {
		ep, err := p.NewEndpoint(ec.Platform, ec.SelfID)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}

// Close drains and closes the NATS connection.
func (p *Provider) Close() error {
	p.sub = nil
	p.js = nil
	p.stream = nil
	if p.nc == nil {
		return nil
	}
	p.logger.Info("Closing NATS connection...")
	err := p.nc.Drain()
	p.nc = nil
	return err
}

func (p *Provider) closeConn() {
	if p.nc != nil {
		p.nc.Close()
		p.nc = nil
	}
}
