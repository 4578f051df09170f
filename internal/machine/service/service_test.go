package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gumball/internal/machine/models"
	"gumball/internal/machine/ports"
	"gumball/internal/machine/store/memory"
	"gumball/internal/machine/store/receipts"
	"gumball/pkg/domain"
	dErrors "gumball/pkg/domain-errors"
	"gumball/pkg/platform/audit"
	"gumball/pkg/platform/audit/publisher"
	auditMemory "gumball/pkg/platform/audit/store/memory"
)

func ident(b byte) domain.Identity {
	var id domain.Identity
	for i := range id {
		id[i] = b
	}
	return id
}

var validMeta = models.Metadata{Name: "Item", Symbol: "ITM", URI: "https://example.com/1.json"}

// fakeMinter stands in for the external minting service. Real stores back the
// rest of the fixture; only the network edges are faked.
type fakeMinter struct {
	mu sync.Mutex

	treeErr       error
	collectionErr error
	mintErr       error

	trees       []domain.Identity
	collections int
	mints       []ports.MintRequest
}

func (m *fakeMinter) CreateTree(_ context.Context, creator domain.Identity, _ ports.TreeParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.treeErr != nil {
		return m.treeErr
	}
	m.trees = append(m.trees, creator)
	return nil
}

func (m *fakeMinter) CreateCollection(_ context.Context, creator domain.Identity) (domain.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.collectionErr != nil {
		return domain.Identity{}, m.collectionErr
	}
	m.collections++
	return ident(0xc0), nil
}

func (m *fakeMinter) MintToCollection(_ context.Context, req ports.MintRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mintErr != nil {
		return m.mintErr
	}
	m.mints = append(m.mints, req)
	return nil
}

func (m *fakeMinter) mintCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.mints)
}

type burnCall struct {
	token, account domain.Identity
	baseUnits      uint64
}

// fakeVault stands in for the external token service.
type fakeVault struct {
	mu sync.Mutex

	settings map[domain.Identity]*ports.TokenSettings
	holdings map[domain.Identity]*ports.Holding

	tokenErr   error
	holdingErr error
	burnErr    error
	burns      []burnCall
}

func newFakeVault() *fakeVault {
	return &fakeVault{
		settings: make(map[domain.Identity]*ports.TokenSettings),
		holdings: make(map[domain.Identity]*ports.Holding),
	}
}

func (v *fakeVault) GetToken(_ context.Context, token domain.Identity) (*ports.TokenSettings, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tokenErr != nil {
		return nil, v.tokenErr
	}
	s, ok := v.settings[token]
	if !ok {
		return nil, errors.New("token not found")
	}
	return s, nil
}

func (v *fakeVault) GetHolding(_ context.Context, account domain.Identity) (*ports.Holding, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.holdingErr != nil {
		return nil, v.holdingErr
	}
	h, ok := v.holdings[account]
	if !ok {
		return nil, errors.New("holding not found")
	}
	return h, nil
}

func (v *fakeVault) Burn(_ context.Context, token, account domain.Identity, baseUnits uint64) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.burnErr != nil {
		return v.burnErr
	}
	v.burns = append(v.burns, burnCall{token: token, account: account, baseUnits: baseUnits})
	return nil
}

type fixture struct {
	svc      *Service
	configs  *memory.Store
	minter   *fakeMinter
	vault    *fakeVault
	journal  *receipts.InMemoryStore
	auditLog *auditMemory.InMemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		configs:  memory.New(),
		minter:   &fakeMinter{},
		vault:    newFakeVault(),
		journal:  receipts.NewInMemory(),
		auditLog: auditMemory.NewInMemoryStore(),
	}
	svc, err := New(f.configs, f.minter, f.vault,
		WithReceiptStore(f.journal),
		WithAuditPublisher(publisher.NewPublisher(f.auditLog)),
	)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) auditActions(t *testing.T, addr domain.Identity) []string {
	t.Helper()
	events, err := f.auditLog.ListByConfig(context.Background(), addr)
	require.NoError(t, err)
	actions := make([]string, 0, len(events))
	for _, e := range events {
		actions = append(actions, e.Action)
	}
	return actions
}

func TestNewValidation(t *testing.T) {
	configs := memory.New()
	_, err := New(nil, &fakeMinter{}, newFakeVault())
	assert.Error(t, err)
	_, err = New(configs, nil, newFakeVault())
	assert.Error(t, err)
	_, err = New(configs, &fakeMinter{}, nil)
	assert.Error(t, err)
}

func TestInitialize(t *testing.T) {
	ctx := context.Background()
	owner := ident(1)

	t.Run("creates record and binds tree", func(t *testing.T) {
		f := newFixture(t)
		cfg, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{
			TotalSupply: 100, MaxDepth: 14, MaxBufferSize: 64,
		})
		require.NoError(t, err)
		assert.Equal(t, owner, cfg.Owner)
		assert.Equal(t, domain.TreeStatusInactive, cfg.Status)
		assert.Zero(t, cfg.CurrentSupply)
		assert.Nil(t, cfg.PassToken)

		addr, bump := domain.DeriveConfigAddress(owner)
		assert.Equal(t, bump, cfg.Bump)
		require.Len(t, f.minter.trees, 1)
		assert.Equal(t, addr, f.minter.trees[0])
		assert.Contains(t, f.auditActions(t, addr), audit.EventMachineInitialized)
	})

	t.Run("stores pass token", func(t *testing.T) {
		f := newFixture(t)
		pt := ident(7)
		cfg, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{
			TotalSupply: 10, PassToken: pt.String(),
		})
		require.NoError(t, err)
		require.NotNil(t, cfg.PassToken)
		assert.Equal(t, pt, *cfg.PassToken)
	})

	t.Run("rejects zero supply", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 0})
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects malformed pass token", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{
			TotalSupply: 10, PassToken: "not-hex",
		})
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	t.Run("second initialize conflicts", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 10})
		require.NoError(t, err)

		_, err = f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 10})
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeConflict))
	})

	t.Run("tree failure reclaims the record", func(t *testing.T) {
		f := newFixture(t)
		f.minter.treeErr = errors.New("tree service down")

		_, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 10})
		require.ErrorContains(t, err, "tree service down")

		// The half-created record must not block a retry.
		f.minter.treeErr = nil
		_, err = f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 10})
		assert.NoError(t, err)
	})
}

func TestCreateCollection(t *testing.T) {
	ctx := context.Background()
	owner := ident(1)

	t.Run("binds once", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 10})
		require.NoError(t, err)

		collection, err := f.svc.CreateCollection(ctx, owner)
		require.NoError(t, err)
		assert.Equal(t, ident(0xc0), collection)

		cfg, err := f.svc.GetConfig(ctx, owner)
		require.NoError(t, err)
		require.NotNil(t, cfg.Collection)
		assert.Equal(t, collection, *cfg.Collection)

		_, err = f.svc.CreateCollection(ctx, owner)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeConflict))
		assert.Equal(t, 1, f.minter.collections)
	})

	t.Run("minter failure leaves record unbound", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 10})
		require.NoError(t, err)

		f.minter.collectionErr = errors.New("collection service down")
		_, err = f.svc.CreateCollection(ctx, owner)
		require.Error(t, err)

		cfg, err := f.svc.GetConfig(ctx, owner)
		require.NoError(t, err)
		assert.Nil(t, cfg.Collection)
	})

	t.Run("missing machine", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.CreateCollection(ctx, owner)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func TestAddAllowList(t *testing.T) {
	ctx := context.Background()
	owner := ident(1)
	user := ident(2)

	t.Run("appends entries, duplicates included", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 10})
		require.NoError(t, err)

		require.NoError(t, f.svc.AddAllowList(ctx, owner, user, 2))
		require.NoError(t, f.svc.AddAllowList(ctx, owner, user, 5))

		cfg, err := f.svc.GetConfig(ctx, owner)
		require.NoError(t, err)
		require.Len(t, cfg.AllowList, 2)
		assert.Equal(t, uint8(2), cfg.AllowList[0].Quota)
		assert.Equal(t, uint8(5), cfg.AllowList[1].Quota)
	})

	t.Run("zero quota entry is legal", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 10})
		require.NoError(t, err)
		assert.NoError(t, f.svc.AddAllowList(ctx, owner, user, 0))
	})

	t.Run("rejects zero identity", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.AddAllowList(ctx, owner, domain.Identity{}, 1)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	t.Run("missing machine", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.AddAllowList(ctx, owner, user, 1)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeNotFound))
	})
}

func TestSetTreeStatus(t *testing.T) {
	ctx := context.Background()
	owner := ident(1)

	t.Run("walks the lifecycle", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 10})
		require.NoError(t, err)

		for _, status := range []domain.TreeStatus{
			domain.TreeStatusActive, domain.TreeStatusPublic, domain.TreeStatusInactive,
		} {
			require.NoError(t, f.svc.SetTreeStatus(ctx, owner, status))
			cfg, err := f.svc.GetConfig(ctx, owner)
			require.NoError(t, err)
			assert.Equal(t, status, cfg.Status)
		}
	})

	t.Run("finished is not settable by hand", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Initialize(ctx, owner, models.InitializeRequest{TotalSupply: 10})
		require.NoError(t, err)

		err = f.svc.SetTreeStatus(ctx, owner, domain.TreeStatusFinished)
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	})

	t.Run("rejects unknown status", func(t *testing.T) {
		f := newFixture(t)
		err := f.svc.SetTreeStatus(ctx, owner, domain.TreeStatus(42))
		require.Error(t, err)
		assert.True(t, dErrors.Is(err, dErrors.CodeInvalidInput))
	})
}

func TestReceiptsWithoutJournal(t *testing.T) {
	svc, err := New(memory.New(), &fakeMinter{}, newFakeVault())
	require.NoError(t, err)

	_, err = svc.Receipts(context.Background(), ident(1))
	require.Error(t, err)
	assert.True(t, dErrors.Is(err, dErrors.CodeUnavailable))
}
