// Package publisher emits audit events into a Store, synchronously by default
// or through a bounded async buffer. Async mode trades delivery guarantees for
// latency: a full buffer drops the event and logs it, never blocks the caller.
package publisher

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gumball/pkg/platform/audit"
)

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	inbox  chan audit.Event
	done   chan struct{}
	closed sync.Once
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for drop/persist failures.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithAsyncBuffer enables async mode with the given buffer size.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.inbox = make(chan audit.Event, size)
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store: store,
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		go p.drain()
	}
	return p
}

// Emit records an audit event. Sync mode surfaces persistence errors to the
// caller; async mode always returns nil.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	select {
	case p.inbox <- event:
	default:
		if p.logger != nil {
			p.logger.Warn("audit buffer full, dropping event", "action", event.Action)
		}
	}
	return nil
}

// Close drains any buffered events and stops the worker.
func (p *Publisher) Close() {
	p.closed.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			<-p.done
		}
	})
}

func (p *Publisher) drain() {
	defer close(p.done)
	for event := range p.inbox {
		if err := p.store.Append(context.Background(), event); err != nil && p.logger != nil {
			p.logger.Error("audit append failed", "action", event.Action, "error", err)
		}
	}
}
