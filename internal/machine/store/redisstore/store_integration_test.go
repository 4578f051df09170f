//go:build integration

package redisstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gumball/internal/machine/models"
	"gumball/pkg/domain"
	"gumball/pkg/platform/sentinel"
	"gumball/pkg/testutil/containers"
)

func ident(b byte) domain.Identity {
	var id domain.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

func TestRedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	rc := containers.NewRedisContainer(t)
	store := New(rc.Client)
	addr := ident(1)

	t.Run("create and get", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		require.NoError(t, store.Create(ctx, addr, models.NewConfig(ident(2), 254, 10)))
		assert.ErrorIs(t, store.Create(ctx, addr, models.NewConfig(ident(2), 254, 10)), sentinel.ErrConflict)

		cfg, err := store.Get(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, ident(2), cfg.Owner)
		assert.Equal(t, uint32(10), cfg.TotalSupply)
	})

	t.Run("missing record", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		_, err := store.Get(ctx, addr)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = store.Update(ctx, addr, func(*models.Config) error { return nil })
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("update commits and rolls back", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, store.Create(ctx, addr, models.NewConfig(ident(2), 254, 10)))

		_, err := store.Update(ctx, addr, func(cfg *models.Config) error {
			cfg.Status = domain.TreeStatusActive
			cfg.AllowList = append(cfg.AllowList, models.AllowListEntry{User: ident(3), Quota: 2})
			return nil
		})
		require.NoError(t, err)

		boom := errors.New("rejected")
		_, err = store.Update(ctx, addr, func(cfg *models.Config) error {
			cfg.CurrentSupply = 9
			return boom
		})
		require.ErrorIs(t, err, boom)

		cfg, err := store.Get(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, domain.TreeStatusActive, cfg.Status)
		assert.Zero(t, cfg.CurrentSupply)
		require.Len(t, cfg.AllowList, 1)
	})

	t.Run("reclaim deletes the key", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))
		require.NoError(t, store.Create(ctx, addr, models.NewConfig(ident(2), 254, 1)))

		committed, err := store.Update(ctx, addr, func(cfg *models.Config) error {
			cfg.CurrentSupply = 1
			cfg.Status = domain.TreeStatusFinished
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, domain.TreeStatusFinished, committed.Status)

		_, err = store.Get(ctx, addr)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)

		// Address reusable after reclaim.
		assert.NoError(t, store.Create(ctx, addr, models.NewConfig(ident(2), 254, 5)))
	})

	t.Run("concurrent updates never lose increments", func(t *testing.T) {
		require.NoError(t, rc.FlushAll(ctx))

		const total = 50
		require.NoError(t, store.Create(ctx, addr, models.NewConfig(ident(2), 254, total)))

		var wg sync.WaitGroup
		for i := 0; i < total; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.Update(ctx, addr, func(cfg *models.Config) error {
					cfg.CurrentSupply++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		cfg, err := store.Get(ctx, addr)
		require.NoError(t, err)
		assert.Equal(t, uint32(total), cfg.CurrentSupply)
	})
}
