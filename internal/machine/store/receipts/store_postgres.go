// Package receipts journals successful issuances in PostgreSQL. The journal
// is append-only and survives record reclaim, so it is the durable answer to
// "who received a unit from this machine".
package receipts

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"gumball/internal/machine/models"
	"gumball/pkg/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS mint_receipts (
	id          UUID PRIMARY KEY,
	config_addr TEXT NOT NULL,
	requester   TEXT NOT NULL,
	name        TEXT NOT NULL,
	symbol      TEXT NOT NULL,
	uri         TEXT NOT NULL,
	gate        TEXT NOT NULL,
	supply      BIGINT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS mint_receipts_config_idx ON mint_receipts (config_addr, created_at);
`

// PostgresStore persists issuance receipts.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres constructs the store and ensures the schema exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*PostgresStore, error) {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return nil, fmt.Errorf("ensure receipts schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Append(ctx context.Context, receipt *models.Receipt) error {
	if receipt == nil {
		return fmt.Errorf("receipt is required")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO mint_receipts (id, config_addr, requester, name, symbol, uri, gate, supply, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		receipt.ID,
		receipt.ConfigAddr.String(),
		receipt.Requester.String(),
		receipt.Metadata.Name,
		receipt.Metadata.Symbol,
		receipt.Metadata.URI,
		string(receipt.Gate),
		int64(receipt.Supply),
		receipt.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append receipt: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListByConfig(ctx context.Context, addr domain.Identity) ([]*models.Receipt, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, config_addr, requester, name, symbol, uri, gate, supply, created_at
		 FROM mint_receipts WHERE config_addr = $1 ORDER BY created_at`,
		addr.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*models.Receipt
	for rows.Next() {
		var (
			r                    models.Receipt
			configAddr, reqester string
			gate                 string
			supply               int64
		)
		if err := rows.Scan(&r.ID, &configAddr, &reqester, &r.Metadata.Name,
			&r.Metadata.Symbol, &r.Metadata.URI, &gate, &supply, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan receipt: %w", err)
		}
		if r.ConfigAddr, err = domain.ParseIdentity(configAddr); err != nil {
			return nil, fmt.Errorf("parse receipt config addr: %w", err)
		}
		if r.Requester, err = domain.ParseIdentity(reqester); err != nil {
			return nil, fmt.Errorf("parse receipt requester: %w", err)
		}
		r.Gate = models.GateMode(gate)
		r.Supply = uint32(supply)
		receipts = append(receipts, &r)
	}
	return receipts, rows.Err()
}
