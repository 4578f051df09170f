package receipts

import (
	"context"
	"sync"

	"gumball/internal/machine/models"
	"gumball/pkg/domain"
)

// InMemoryStore is the process-local receipt journal for development and tests.
type InMemoryStore struct {
	mu       sync.RWMutex
	receipts map[domain.Identity][]*models.Receipt
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		receipts: make(map[domain.Identity][]*models.Receipt),
	}
}

func (s *InMemoryStore) Append(_ context.Context, receipt *models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *receipt
	s.receipts[receipt.ConfigAddr] = append(s.receipts[receipt.ConfigAddr], &cp)
	return nil
}

func (s *InMemoryStore) ListByConfig(_ context.Context, addr domain.Identity) ([]*models.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Receipt, len(s.receipts[addr]))
	copy(out, s.receipts[addr])
	return out, nil
}
