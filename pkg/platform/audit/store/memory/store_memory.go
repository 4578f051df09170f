package memory

import (
	"context"
	"sync"

	"gumball/pkg/domain"
	"gumball/pkg/platform/audit"
)

// InMemoryStore keeps audit events in process. Development and test backend;
// production deployments publish to Kafka instead.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.Identity][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[domain.Identity][]audit.Event),
	}
}

func (s *InMemoryStore) Append(_ context.Context, event audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.ConfigAddr] = append(s.events[event.ConfigAddr], event)
	return nil
}

func (s *InMemoryStore) ListByConfig(_ context.Context, addr domain.Identity) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]audit.Event, len(s.events[addr]))
	copy(out, s.events[addr])
	return out, nil
}
