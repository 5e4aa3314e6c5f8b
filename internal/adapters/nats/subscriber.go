package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/crimescope/internal/core/domain"
	"github.com/samirrijal/crimescope/internal/pkg/logging"
)

// Subscriber consumes fetch events from JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := RawConn(url)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeFetchEvents delivers new fetch events to handler. With an empty
// durable name every subscriber gets every event (fan-out to WebSocket
// clients); a durable name makes replicas share one consumer.
func (s *Subscriber) SubscribeFetchEvents(ctx context.Context, durable string, handler func(ctx context.Context, event *domain.FetchEvent) error) error {
	opts := []nats.SubOpt{nats.DeliverNew(), nats.ManualAck(), nats.MaxDeliver(3)}
	if durable != "" {
		opts = append(opts, nats.Durable(durable))
	}
	sub, err := s.js.Subscribe(FetchSubjectPrefix+">", func(msg *nats.Msg) {
		var event domain.FetchEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			logging.FromContext(ctx).Warn("dropping malformed fetch event", "subject", msg.Subject, "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, &event); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, opts...)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
