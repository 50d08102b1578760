package nats

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/syntrixbase/topicrouter/internal/core/transport"
)

// Header names set on every published message.
const (
	HeaderTopic     = "Topicrouter-Topic"
	HeaderPlatform  = "Topicrouter-Platform"
	HeaderChannelID = "Topicrouter-Channel-Id"
	HeaderSelfID    = "Topicrouter-Self-Id"
)

// Endpoint publishes to subject <prefix>.<platform>.<channel>. Message ids
// are JetStream stream sequences.
type Endpoint struct {
	platform string
	selfID   string
	prefix   string
	js       JetStream
	stream   msgDeleter
}

var _ transport.Endpoint = (*Endpoint)(nil)

func newEndpoint(platform, selfID, prefix string, js JetStream, stream msgDeleter) *Endpoint {
	return &Endpoint{
		platform: platform,
		selfID:   selfID,
		prefix:   prefix,
		js:       js,
		stream:   stream,
	}
}

func (e *Endpoint) Platform() string { return e.platform }

func (e *Endpoint) SelfID() string { return e.selfID }

// Subject returns the subject messages for channelID are published on.
func (e *Endpoint) Subject(channelID string) string {
	return e.prefix + "." + subjectToken(e.platform) + "." + subjectToken(channelID)
}

func (e *Endpoint) Send(ctx context.Context, channelID string, msg transport.Message) ([]string, error) {
	subject := e.Subject(channelID)
	m := nats.NewMsg(subject)
	m.Data = msg.Data
	for k, v := range msg.Headers {
		m.Header.Set(k, v)
	}
	m.Header.Set(HeaderTopic, msg.Topic)
	m.Header.Set(HeaderPlatform, e.platform)
	m.Header.Set(HeaderChannelID, channelID)
	m.Header.Set(HeaderSelfID, e.selfID)

	ack, err := e.js.PublishMsg(ctx, m, jetstream.WithMsgID(uuid.NewString()))
	if err != nil {
		return nil, fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	return []string{strconv.FormatUint(ack.Sequence, 10)}, nil
}

func (e *Endpoint) Delete(ctx context.Context, channelID, messageID string) error {
	seq, err := strconv.ParseUint(messageID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid message id %q: %w", messageID, err)
	}
	if err := e.stream.DeleteMsg(ctx, seq); err != nil {
		return fmt.Errorf("failed to delete message %d from %s: %w", seq, e.Subject(channelID), err)
	}
	return nil
}

// subjectToken maps s onto a single NATS subject token.
func subjectToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\r', '\n':
			return '_'
		}
		return r
	}, s)
}
