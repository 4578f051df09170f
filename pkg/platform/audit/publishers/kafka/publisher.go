// Package kafka publishes audit events to a Kafka topic. Events are keyed by
// config address so one machine's history stays ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"gumball/pkg/platform/audit"
)

type Publisher struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for publish failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// New connects to the brokers and ensures the topic exists.
func New(ctx context.Context, brokers []string, topic string, opts ...Option) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	adm := kadm.NewClient(client)
	if _, err := adm.CreateTopic(ctx, 1, 1, nil, topic); err != nil &&
		!errors.Is(err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("ensure audit topic %q: %w", topic, err)
	}

	p := &Publisher{client: client, topic: topic}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Emit publishes one event synchronously. Audit delivery failures surface to
// the caller; the caller decides whether the operation is fail-closed.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.ConfigAddr.String()),
		Value: payload,
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit publish failed",
				"action", event.Action,
				"error", err,
			)
		}
		return fmt.Errorf("publish audit event: %w", err)
	}
	return nil
}

// Close flushes and releases the Kafka client.
func (p *Publisher) Close() {
	p.client.Close()
}
