// Package memory is the in-process ConfigStore. Records are held in their
// serialized wire form so growth, decode-on-read, and reclaim behave exactly
// like the durable backends.
package memory

import (
	"context"
	"fmt"
	"sync"

	"gumball/internal/machine/models"
	"gumball/pkg/domain"
	"gumball/pkg/platform/sentinel"
)

type record struct {
	mu sync.Mutex
	// raw is the serialized record; nil marks a reclaimed record for updates
	// that were already waiting on the lock when reclaim happened.
	raw []byte
}

// Store keeps serialized machine records keyed by derived config address.
// Each record carries its own lock: operations on one record are serialized
// and atomic, operations on different records proceed independently.
type Store struct {
	mu      sync.RWMutex
	records map[domain.Identity]*record
}

func New() *Store {
	return &Store{
		records: make(map[domain.Identity]*record),
	}
}

func (s *Store) Create(_ context.Context, addr domain.Identity, cfg *models.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[addr]; exists {
		return fmt.Errorf("config %s: %w", addr, sentinel.ErrConflict)
	}
	s.records[addr] = &record{raw: models.Encode(cfg)}
	return nil
}

func (s *Store) Get(_ context.Context, addr domain.Identity) (*models.Config, error) {
	s.mu.RLock()
	rec, ok := s.records[addr]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config %s: %w", addr, sentinel.ErrNotFound)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.raw == nil {
		return nil, fmt.Errorf("config %s: %w", addr, sentinel.ErrNotFound)
	}
	return models.Decode(rec.raw)
}

// Update implements the transactional contract from ports.ConfigStore: fn
// mutates a decoded copy under the record's lock, and the copy is committed
// only when fn returns nil. Allow-list growth reallocates the backing bytes
// zero-filled in the same critical section as the mutation that needs them.
func (s *Store) Update(_ context.Context, addr domain.Identity, fn func(cfg *models.Config) error) (*models.Config, error) {
	s.mu.RLock()
	rec, ok := s.records[addr]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config %s: %w", addr, sentinel.ErrNotFound)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.raw == nil {
		return nil, fmt.Errorf("config %s: %w", addr, sentinel.ErrNotFound)
	}

	cfg, err := models.Decode(rec.raw)
	if err != nil {
		return nil, fmt.Errorf("decode config %s: %w", addr, err)
	}
	if err := fn(cfg); err != nil {
		return nil, err
	}

	if cfg.Status == domain.TreeStatusFinished {
		// Reclaim: drop the record and release its backing bytes to the owner.
		rec.raw = nil
		s.mu.Lock()
		delete(s.records, addr)
		s.mu.Unlock()
		return cfg, nil
	}

	encoded := models.Encode(cfg)
	if len(encoded) != len(rec.raw) {
		// Fresh zero-initialized backing before the new image lands.
		rec.raw = make([]byte, len(encoded))
	}
	copy(rec.raw, encoded)
	return cfg, nil
}
