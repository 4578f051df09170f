// Package service implements the machine domain: record lifecycle, allow-list
// administration, status control, and the mint coordinator.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"gumball/internal/machine/metrics"
	"gumball/internal/machine/models"
	"gumball/internal/machine/ports"
	"gumball/internal/platform/middleware"
	"gumball/pkg/domain"
	dErrors "gumball/pkg/domain-errors"
	"gumball/pkg/platform/audit"
	"gumball/pkg/platform/sentinel"
)

// Type aliases for shared interfaces.
type (
	ConfigStore    = ports.ConfigStore
	Minter         = ports.Minter
	TokenVault     = ports.TokenVault
	ReceiptStore   = ports.ReceiptStore
	AuditPublisher = ports.AuditPublisher
)

type Service struct {
	configs  ConfigStore
	minter   Minter
	vault    TokenVault
	receipts ReceiptStore
	auditor  AuditPublisher
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditor = publisher
	}
}

func WithReceiptStore(store ReceiptStore) Option {
	return func(s *Service) {
		s.receipts = store
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(configs ConfigStore, minter Minter, vault TokenVault, opts ...Option) (*Service, error) {
	if configs == nil {
		return nil, fmt.Errorf("config store is required")
	}
	if minter == nil {
		return nil, fmt.Errorf("minter is required")
	}
	if vault == nil {
		return nil, fmt.Errorf("token vault is required")
	}

	svc := &Service{
		configs: configs,
		minter:  minter,
		vault:   vault,
		tracer:  otel.Tracer("gumball/machine"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	return svc, nil
}

// Initialize creates the owner's machine record and binds the external
// hash-tree ledger. Creation is single-shot per owner.
func (s *Service) Initialize(ctx context.Context, owner domain.Identity, req models.InitializeRequest) (*models.Config, error) {
	if req.TotalSupply == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "total_supply must be at least 1")
	}

	var passToken *domain.Identity
	if req.PassToken != "" {
		pt, err := domain.ParseIdentity(req.PassToken)
		if err != nil {
			return nil, err
		}
		passToken = &pt
	}

	addr, bump := domain.DeriveConfigAddress(owner)
	cfg := models.NewConfig(owner, bump, req.TotalSupply)
	cfg.PassToken = passToken

	if err := s.configs.Create(ctx, addr, cfg); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "machine already initialized for this owner")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create machine record")
	}

	params := ports.TreeParams{MaxDepth: req.MaxDepth, MaxBufferSize: req.MaxBufferSize}
	if err := s.minter.CreateTree(ctx, addr, params); err != nil {
		// No partial state: a record whose tree never bound is unusable, so
		// reclaim it before surfacing the minting service's error verbatim.
		if _, rerr := s.configs.Update(ctx, addr, func(cfg *models.Config) error {
			cfg.Status = domain.TreeStatusFinished
			return nil
		}); rerr != nil {
			s.logger.ErrorContext(ctx, "failed to reclaim record after tree binding failure",
				"config", addr, "error", rerr)
		}
		return nil, err
	}

	s.emitAudit(ctx, audit.Event{
		Category:   audit.CategoryAdmin,
		ConfigAddr: addr,
		Actor:      owner,
		Action:     audit.EventMachineInitialized,
	})
	return cfg, nil
}

// CreateCollection binds a collection namespace to the record, once.
func (s *Service) CreateCollection(ctx context.Context, owner domain.Identity) (domain.Identity, error) {
	addr, _ := domain.DeriveConfigAddress(owner)

	var collection domain.Identity
	_, err := s.configs.Update(ctx, addr, func(cfg *models.Config) error {
		if cfg.Owner != owner {
			return dErrors.New(dErrors.CodeForbidden, "caller does not own this machine")
		}
		if cfg.Collection != nil {
			return dErrors.New(dErrors.CodeConflict, "collection already bound")
		}
		created, err := s.minter.CreateCollection(ctx, addr)
		if err != nil {
			return err
		}
		cfg.Collection = &created
		collection = created
		return nil
	})
	if err != nil {
		return domain.Identity{}, s.mapStoreErr(err)
	}

	s.emitAudit(ctx, audit.Event{
		Category:   audit.CategoryAdmin,
		ConfigAddr: addr,
		Actor:      owner,
		Action:     audit.EventCollectionCreated,
	})
	return collection, nil
}

// AddAllowList appends one quota entry for user. Duplicate entries are legal;
// the record's storage grows by exactly one entry in the same transaction.
func (s *Service) AddAllowList(ctx context.Context, owner, user domain.Identity, quota uint8) error {
	if user.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "user identity is required")
	}

	addr, _ := domain.DeriveConfigAddress(owner)
	_, err := s.configs.Update(ctx, addr, func(cfg *models.Config) error {
		if cfg.Owner != owner {
			return dErrors.New(dErrors.CodeForbidden, "caller does not own this machine")
		}
		cfg.AllowList = append(cfg.AllowList, models.AllowListEntry{User: user, Quota: quota})
		return nil
	})
	if err != nil {
		return s.mapStoreErr(err)
	}

	if s.metrics != nil {
		s.metrics.IncAllowListAdd()
	}
	s.emitAudit(ctx, audit.Event{
		Category:   audit.CategoryAdmin,
		ConfigAddr: addr,
		Actor:      owner,
		Action:     audit.EventAllowListAdded,
	})
	return nil
}

// SetTreeStatus overwrites the record's status. Finished is reserved for the
// mint coordinator: it doubles as the reclaim marker, so an owner may not set
// it by hand.
func (s *Service) SetTreeStatus(ctx context.Context, owner domain.Identity, status domain.TreeStatus) error {
	if !status.IsValid() {
		return dErrors.New(dErrors.CodeInvalidInput, "invalid status")
	}
	if status == domain.TreeStatusFinished {
		return dErrors.New(dErrors.CodeInvalidInput, "finished is set by supply exhaustion, not by hand")
	}

	addr, _ := domain.DeriveConfigAddress(owner)
	var previous domain.TreeStatus
	_, err := s.configs.Update(ctx, addr, func(cfg *models.Config) error {
		if cfg.Owner != owner {
			return dErrors.New(dErrors.CodeForbidden, "caller does not own this machine")
		}
		previous = cfg.Status
		cfg.Status = status
		return nil
	})
	if err != nil {
		return s.mapStoreErr(err)
	}

	s.emitAudit(ctx, audit.Event{
		Category:   audit.CategoryAdmin,
		ConfigAddr: addr,
		Actor:      owner,
		Action:     audit.EventStatusChanged,
		Reason:     fmt.Sprintf("%s -> %s", previous, status),
	})
	return nil
}

// GetConfig returns the owner's record.
func (s *Service) GetConfig(ctx context.Context, owner domain.Identity) (*models.Config, error) {
	addr, _ := domain.DeriveConfigAddress(owner)
	cfg, err := s.configs.Get(ctx, addr)
	if err != nil {
		return nil, s.mapStoreErr(err)
	}
	return cfg, nil
}

// Receipts lists the issuance journal for the owner's machine. The journal
// survives reclaim, so this works after the record itself is gone.
func (s *Service) Receipts(ctx context.Context, owner domain.Identity) ([]*models.Receipt, error) {
	if s.receipts == nil {
		return nil, dErrors.New(dErrors.CodeUnavailable, "receipt journal not configured")
	}
	addr, _ := domain.DeriveConfigAddress(owner)
	receipts, err := s.receipts.ListByConfig(ctx, addr)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list receipts")
	}
	return receipts, nil
}

func (s *Service) mapStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "machine not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "machine record modified concurrently")
	default:
		return err
	}
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditor == nil {
		return
	}
	event.RequestID = middleware.GetRequestID(ctx)
	if err := s.auditor.Emit(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "audit emit failed",
			"action", event.Action,
			"error", err,
		)
	}
}
