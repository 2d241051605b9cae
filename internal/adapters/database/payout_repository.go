package database

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwynne/curio/pkg/ledger"
)

// PostgresPayoutRepository records settlement and purchase payout legs
type PostgresPayoutRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPayoutRepository creates a new PostgreSQL payout repository
func NewPostgresPayoutRepository(pool *pgxpool.Pool) *PostgresPayoutRepository {
	return &PostgresPayoutRepository{pool: pool}
}

// SavePayouts records the legs of a fixed-price sale (no auction attached)
func (r *PostgresPayoutRepository) SavePayouts(ctx context.Context, tx pgx.Tx, tokenID int64, payouts []ledger.Payout) error {
	return r.save(ctx, tx, nil, tokenID, payouts)
}

// SaveAuctionPayouts records the legs of an auction settlement
func (r *PostgresPayoutRepository) SaveAuctionPayouts(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, tokenID int64, payouts []ledger.Payout) error {
	return r.save(ctx, tx, &auctionID, tokenID, payouts)
}

func (r *PostgresPayoutRepository) save(ctx context.Context, tx pgx.Tx, auctionID *uuid.UUID, tokenID int64, payouts []ledger.Payout) error {
	query := `
		INSERT INTO payouts (auction_id, token_id, recipient_address, role, amount)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, payout := range payouts {
		if _, err := tx.Exec(ctx, query,
			auctionID,
			tokenID,
			payout.Recipient.Hex(),
			payout.Role,
			payout.Amount,
		); err != nil {
			return fmt.Errorf("failed to insert payout: %w", err)
		}
	}
	return nil
}

// ListByToken retrieves the recorded payout legs for a token, newest first
func (r *PostgresPayoutRepository) ListByToken(ctx context.Context, tokenID int64) ([]ledger.Payout, error) {
	query := `
		SELECT recipient_address, role, amount
		FROM payouts
		WHERE token_id = $1
		ORDER BY id DESC
	`
	rows, err := r.pool.Query(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to query payouts: %w", err)
	}
	defer rows.Close()

	var payouts []ledger.Payout
	for rows.Next() {
		var payout ledger.Payout
		var recipient string
		if scanErr := rows.Scan(&recipient, &payout.Role, &payout.Amount); scanErr != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", scanErr)
		}
		payout.Recipient = common.HexToAddress(recipient)
		payouts = append(payouts, payout)
	}
	return payouts, rows.Err()
}
