package nats

import (
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/syntrixbase/topicrouter/internal/core/transport"
)

// IngressHandler receives a message published into the router.
type IngressHandler func(topic string, msg transport.Message)

// subscriber is the subset of *nats.Conn used by the ingress.
type subscriber interface {
	Subscribe(subj string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// SubscribeIngress listens on <IngressSubject>.> and hands every message
// to handler with the subject remainder as topic.
func (p *Provider) SubscribeIngress(handler IngressHandler) (*nats.Subscription, error) {
	if p.cfg.IngressSubject == "" {
		return nil, fmt.Errorf("ingress subject not configured")
	}
	if p.sub == nil {
		return nil, fmt.Errorf("NATS not connected, call Connect first")
	}

	prefix := p.cfg.IngressSubject + "."
	sub, err := p.sub.Subscribe(prefix+">", func(m *nats.Msg) {
		topic := strings.TrimPrefix(m.Subject, prefix)
		handler(topic, ingressMessage(topic, m))
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s>: %w", prefix, err)
	}
	p.logger.Info("Ingress subscribed", "subject", prefix+">")
	return sub, nil
}

func ingressMessage(topic string, m *nats.Msg) transport.Message {
	msg := transport.Message{Topic: topic, Data: m.Data}
	if len(m.Header) > 0 {
		msg.Headers = make(map[string]string, len(m.Header))
		for k := range m.Header {
			msg.Headers[k] = m.Header.Get(k)
		}
	}
	return msg
}
