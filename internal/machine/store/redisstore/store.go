// Package redisstore is the Redis-backed ConfigStore. Records are stored in
// their serialized wire form under one key per config address.
//
// Serialization per record uses two layers: an in-process keyed mutex (the
// service owns its records, so local serialization is the common case) and a
// WATCH/EXEC optimistic commit as defense against an external writer touching
// the same key. A lost WATCH surfaces as a conflict; retry is the caller's
// decision, never the store's.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"gumball/internal/machine/models"
	"gumball/pkg/domain"
	"gumball/pkg/platform/sentinel"
)

type Store struct {
	client redis.UniversalClient
	prefix string

	mu    sync.Mutex
	locks map[domain.Identity]*sync.Mutex
}

func New(client redis.UniversalClient) *Store {
	return &Store{
		client: client,
		prefix: "gumball:config:",
		locks:  make(map[domain.Identity]*sync.Mutex),
	}
}

func (s *Store) key(addr domain.Identity) string {
	return s.prefix + addr.String()
}

func (s *Store) lock(addr domain.Identity) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[addr]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[addr] = mu
	}
	return mu
}

func (s *Store) Create(ctx context.Context, addr domain.Identity, cfg *models.Config) error {
	ok, err := s.client.SetNX(ctx, s.key(addr), models.Encode(cfg), 0).Result()
	if err != nil {
		return fmt.Errorf("create config %s: %w", addr, err)
	}
	if !ok {
		return fmt.Errorf("config %s: %w", addr, sentinel.ErrConflict)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, addr domain.Identity) (*models.Config, error) {
	raw, err := s.client.Get(ctx, s.key(addr)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("config %s: %w", addr, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get config %s: %w", addr, err)
	}
	return models.Decode(raw)
}

func (s *Store) Update(ctx context.Context, addr domain.Identity, fn func(cfg *models.Config) error) (*models.Config, error) {
	mu := s.lock(addr)
	mu.Lock()
	defer mu.Unlock()

	key := s.key(addr)
	var committed *models.Config
	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("config %s: %w", addr, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get config %s: %w", addr, err)
		}

		cfg, err := models.Decode(raw)
		if err != nil {
			return fmt.Errorf("decode config %s: %w", addr, err)
		}
		if err := fn(cfg); err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if cfg.Status == domain.TreeStatusFinished {
				pipe.Del(ctx, key)
			} else {
				pipe.Set(ctx, key, models.Encode(cfg), 0)
			}
			return nil
		})
		if err != nil {
			return err
		}
		committed = cfg
		return nil
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return nil, fmt.Errorf("config %s modified concurrently: %w", addr, sentinel.ErrConflict)
	}
	if err != nil {
		return nil, err
	}
	return committed, nil
}
