// Package ports defines shared interfaces for the machine module.
// Interfaces live here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"

	"gumball/internal/machine/models"
	"gumball/pkg/domain"
	"gumball/pkg/platform/audit"
)

// ConfigStore persists machine records keyed by derived config address.
//
// Update is the transaction boundary of the system: for a given address,
// updates are serialized and atomic. The store decodes the current record,
// hands fn a private copy, and commits the re-encoded copy only when fn
// returns nil; any error leaves the stored bytes untouched. fn may call
// external collaborators, which is what makes gate consumption and issuance
// all-or-nothing from the record's point of view. A record committed with
// status Finished is reclaimed (deleted) instead of written; later operations
// see sentinel.ErrNotFound.
type ConfigStore interface {
	// Create stores a brand-new record. Fails with sentinel.ErrConflict when
	// the address is already occupied: creation is single-shot per owner.
	Create(ctx context.Context, addr domain.Identity, cfg *models.Config) error

	// Get returns a copy of the record, or sentinel.ErrNotFound.
	Get(ctx context.Context, addr domain.Identity) (*models.Config, error)

	// Update runs fn inside the record's transaction and returns the
	// committed state (the pre-reclaim state when fn finished the record).
	Update(ctx context.Context, addr domain.Identity, fn func(cfg *models.Config) error) (*models.Config, error)
}

// TreeParams sizes the external hash-tree-backed ledger at creation.
type TreeParams struct {
	MaxDepth      uint32
	MaxBufferSize uint32
}

// MintRequest is the immutable request handed to the minting service.
// Assemble it fully, then invoke once; there is no builder with hidden state.
type MintRequest struct {
	Creator    domain.Identity // derived config address, authorizes the tree
	LeafOwner  domain.Identity // requester receiving the item
	Metadata   models.Metadata
	Collection *domain.Identity
}

// Minter is the external minting service. Failures pass through verbatim.
type Minter interface {
	// CreateTree allocates the append-only ledger with the derived config
	// address as its creator, so later mints authorize against it.
	CreateTree(ctx context.Context, creator domain.Identity, params TreeParams) error

	// CreateCollection binds a collection namespace and returns its identity.
	CreateCollection(ctx context.Context, creator domain.Identity) (domain.Identity, error)

	// MintToCollection issues exactly one item to the leaf owner.
	MintToCollection(ctx context.Context, req MintRequest) error
}

// TokenSettings is the pass token's on-service configuration.
type TokenSettings struct {
	Decimals uint8
}

// Holding is a requester's account in a fungible token.
type Holding struct {
	Token   domain.Identity
	Owner   domain.Identity
	Balance uint64 // base units
}

// TokenVault is the external token-holding service backing the burn gate.
type TokenVault interface {
	GetToken(ctx context.Context, token domain.Identity) (*TokenSettings, error)
	GetHolding(ctx context.Context, account domain.Identity) (*Holding, error)
	Burn(ctx context.Context, token, account domain.Identity, baseUnits uint64) error
}

// ReceiptStore journals successful issuances.
type ReceiptStore interface {
	Append(ctx context.Context, receipt *models.Receipt) error
	ListByConfig(ctx context.Context, addr domain.Identity) ([]*models.Receipt, error)
}

// AuditPublisher emits audit events for machine lifecycle and issuance.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
