package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"gumball/internal/machine/models"
	"gumball/internal/machine/ports"
	"gumball/pkg/domain"
	dErrors "gumball/pkg/domain-errors"
	"gumball/pkg/platform/audit"
)

// MintCommand is one issuance attempt against an owner's machine.
type MintCommand struct {
	Owner     domain.Identity
	Requester domain.Identity
	Metadata  models.Metadata
	// PassTokenAccount selects the burn gate when present.
	PassTokenAccount *domain.Identity
}

// Mint runs the issuance sequence as one transaction against the record:
// status check, gate, external mint, supply increment, reclaim on exhaustion.
// Any failure aborts the whole attempt with the record exactly as it was;
// nothing is retried internally.
func (s *Service) Mint(ctx context.Context, cmd MintCommand) (*models.Receipt, error) {
	if err := cmd.Metadata.Validate(); err != nil {
		return nil, err
	}
	if cmd.Requester.IsZero() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "requester identity is required")
	}

	ctx, span := s.tracer.Start(ctx, "machine.mint")
	defer span.End()

	addr, _ := domain.DeriveConfigAddress(cmd.Owner)
	span.SetAttributes(attribute.String("machine.config", addr.String()))

	attempt := &mintAttempt{requester: cmd.Requester}
	var gateUsed models.GateMode

	committed, err := s.configs.Update(ctx, addr, func(cfg *models.Config) error {
		if cfg.Status == domain.TreeStatusInactive {
			return dErrors.New(dErrors.CodeMachineInactive, "machine is not active")
		}
		if cfg.Exhausted() {
			// Exhaustion reclaims the record in the same operation, so an
			// exhausted record still being addressable is a logic error.
			return dErrors.New(dErrors.CodeInternal, "exhausted record was not reclaimed")
		}

		g, err := s.gateFor(cfg, cmd.PassTokenAccount)
		if err != nil {
			return err
		}
		gateUsed = g.mode()
		if err := g.consume(ctx, cfg, attempt); err != nil {
			return err
		}

		req := ports.MintRequest{
			Creator:    addr,
			LeafOwner:  cmd.Requester,
			Metadata:   cmd.Metadata,
			Collection: cfg.Collection,
		}
		if err := s.minter.MintToCollection(ctx, req); err != nil {
			// Propagated verbatim; the discarded copy rolls back the gate.
			return err
		}

		if attempt.burn != nil {
			if err := attempt.burn(ctx); err != nil {
				// The item was issued but the pass token was not consumed.
				// Abort the commit and flag for operator follow-up; the gate
				// pre-validated the burn, so this is a transport-level fault.
				s.logger.ErrorContext(ctx, "pass token burn failed after issuance",
					"config", addr, "requester", cmd.Requester, "error", err)
				s.emitAudit(ctx, audit.Event{
					Category:   audit.CategoryIssuance,
					ConfigAddr: addr,
					Actor:      cmd.Requester,
					Action:     audit.EventBurnInconsistency,
					Reason:     err.Error(),
				})
				return err
			}
		}

		cfg.CurrentSupply++
		if cfg.Exhausted() {
			cfg.Status = domain.TreeStatusFinished
		}
		return nil
	})
	if err != nil {
		err = s.mapStoreErr(err)
		s.recordDenial(ctx, addr, cmd.Requester, gateUsed, err)
		return nil, err
	}

	receipt := &models.Receipt{
		ID:         uuid.New(),
		ConfigAddr: addr,
		Requester:  cmd.Requester,
		Metadata:   cmd.Metadata,
		Gate:       gateUsed,
		Supply:     committed.CurrentSupply,
		CreatedAt:  time.Now(),
	}
	if s.receipts != nil {
		// The record is already committed; a journal failure is logged, not
		// surfaced, so the caller's view matches the record.
		if jerr := s.receipts.Append(ctx, receipt); jerr != nil {
			s.logger.ErrorContext(ctx, "receipt append failed",
				"config", addr, "receipt", receipt.ID, "error", jerr)
		}
	}

	if s.metrics != nil {
		s.metrics.IncMint(string(gateUsed))
	}
	s.emitAudit(ctx, audit.Event{
		Category:   audit.CategoryIssuance,
		ConfigAddr: addr,
		Actor:      cmd.Requester,
		Action:     audit.EventMintSucceeded,
		Gate:       string(gateUsed),
	})

	if committed.Status == domain.TreeStatusFinished {
		if s.metrics != nil {
			s.metrics.IncReclaim()
		}
		s.logger.InfoContext(ctx, "machine exhausted and reclaimed",
			"config", addr,
			"owner", committed.Owner,
			"supply", committed.TotalSupply,
			"reclaimed_bytes", models.EncodedSize(committed),
		)
		s.emitAudit(ctx, audit.Event{
			Category:   audit.CategoryAdmin,
			ConfigAddr: addr,
			Actor:      committed.Owner,
			Action:     audit.EventMachineReclaimed,
		})
	}
	return receipt, nil
}

// recordDenial tracks gating failures; infrastructure errors stay out of the
// denial metrics so the reason label keeps a bounded cardinality.
func (s *Service) recordDenial(ctx context.Context, addr, requester domain.Identity, gate models.GateMode, err error) {
	code := dErrors.CodeOf(err)
	switch code {
	case dErrors.CodeMachineInactive, dErrors.CodeUserNotAllowed, dErrors.CodeAlreadyClaimed,
		dErrors.CodeInvalidAllowMint, dErrors.CodeInvalidAllowMintATA, dErrors.CodeInvalidSPLSettings:
	default:
		return
	}
	if s.metrics != nil {
		s.metrics.IncDenial(string(code))
	}
	s.emitAudit(ctx, audit.Event{
		Category:   audit.CategoryIssuance,
		ConfigAddr: addr,
		Actor:      requester,
		Action:     audit.EventMintDenied,
		Gate:       string(gate),
		Reason:     string(code),
	})
}
