package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"gumball/internal/machine/models"
	"gumball/internal/machine/ports"
	"gumball/pkg/domain"
	dErrors "gumball/pkg/domain-errors"
)

// A gate authorizes exactly one unit of issuance. consume validates
// eligibility and applies the gate's local side effect to the transaction
// copy of the record; external side effects (the pass-token burn) are staged
// on the attempt and executed by the coordinator once the external mint has
// succeeded, so a mint failure never consumes the pass token.
type gate interface {
	mode() models.GateMode
	consume(ctx context.Context, cfg *models.Config, attempt *mintAttempt) error
}

// mintAttempt carries per-attempt state across the gate and the coordinator.
type mintAttempt struct {
	requester domain.Identity
	// burn is the staged pass-token side effect, nil outside burn mode.
	burn func(ctx context.Context) error
}

// gateFor picks exactly one gating mode for this attempt.
//
// Public status is the open mode regardless of what the requester presents.
// A presented pass-token account selects the burn gate; presenting one when
// no pass token is configured is an identity mismatch by definition. With
// nothing presented the default quota mode applies.
func (s *Service) gateFor(cfg *models.Config, presented *domain.Identity) (gate, error) {
	if cfg.Status == domain.TreeStatusPublic {
		return openGate{}, nil
	}
	if presented != nil {
		if cfg.PassToken == nil {
			return nil, dErrors.New(dErrors.CodeInvalidAllowMint, "machine has no pass token configured")
		}
		return &passTokenGate{vault: s.vault, token: *cfg.PassToken, account: *presented}, nil
	}
	return quotaGate{}, nil
}

type openGate struct{}

func (openGate) mode() models.GateMode { return models.GateModeOpen }

func (openGate) consume(context.Context, *models.Config, *mintAttempt) error {
	return nil
}

type quotaGate struct{}

func (quotaGate) mode() models.GateMode { return models.GateModeQuota }

func (quotaGate) consume(_ context.Context, cfg *models.Config, attempt *mintAttempt) error {
	entry := cfg.FindAllowed(attempt.requester)
	if entry == nil {
		return dErrors.New(dErrors.CodeUserNotAllowed, "requester is not on the allow-list")
	}
	if entry.Quota == 0 {
		// Distinct from absence: the requester was eligible once.
		return dErrors.New(dErrors.CodeAlreadyClaimed, "allow-list quota exhausted")
	}
	entry.Quota--
	return nil
}

type passTokenGate struct {
	vault   ports.TokenVault
	token   domain.Identity
	account domain.Identity
}

func (*passTokenGate) mode() models.GateMode { return models.GateModePassToken }

func (g *passTokenGate) consume(ctx context.Context, _ *models.Config, attempt *mintAttempt) error {
	var (
		settings *ports.TokenSettings
		holding  *ports.Holding
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		s, err := g.vault.GetToken(egCtx, g.token)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidSPLSettings, "pass token settings unavailable")
		}
		settings = s
		return nil
	})
	eg.Go(func() error {
		h, err := g.vault.GetHolding(egCtx, g.account)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInvalidAllowMintATA, "pass token holding unavailable")
		}
		holding = h
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}

	if holding.Token != g.token {
		return dErrors.New(dErrors.CodeInvalidAllowMint, "presented account holds a different token")
	}
	if holding.Owner != attempt.requester {
		return dErrors.New(dErrors.CodeInvalidAllowMintATA, "holding account is not owned by the requester")
	}
	if settings.Decimals > 19 {
		// 10^20 overflows uint64; no sane token is configured this way.
		return dErrors.New(dErrors.CodeInvalidSPLSettings, "pass token decimals out of range")
	}

	// Exactly one whole token, never any other amount.
	amount := pow10(settings.Decimals)
	if holding.Balance < amount {
		return dErrors.New(dErrors.CodeInvalidAllowMintATA, "insufficient pass token balance")
	}

	token, account := g.token, g.account
	attempt.burn = func(ctx context.Context) error {
		return g.vault.Burn(ctx, token, account, amount)
	}
	return nil
}

func pow10(decimals uint8) uint64 {
	amount := uint64(1)
	for i := uint8(0); i < decimals; i++ {
		amount *= 10
	}
	return amount
}
