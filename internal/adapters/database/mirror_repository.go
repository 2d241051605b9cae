package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mwynne/curio/internal/domain/mirror"
)

// PostgresMirrorRepository implements mirror.Repository using pgx
type PostgresMirrorRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresMirrorRepository creates a new PostgreSQL mirror repository
func NewPostgresMirrorRepository(pool *pgxpool.Pool) *PostgresMirrorRepository {
	return &PostgresMirrorRepository{pool: pool}
}

// IsEventProcessed reports whether a receipt was already mirrored
func (r *PostgresMirrorRepository) IsEventProcessed(ctx context.Context, tx pgx.Tx, txHash common.Hash) (bool, error) {
	var exists bool
	err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM processed_events WHERE tx_hash = $1)`, txHash.Hex()).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists, nil
}

// InsertTransaction stores a mirrored receipt
func (r *PostgresMirrorRepository) InsertTransaction(ctx context.Context, tx pgx.Tx, txn *mirror.ChainTransaction) error {
	query := `
		INSERT INTO chain_transactions (block_number, block_timestamp, tx_hash, from_address, to_address, gas_used, status, event_type, operation_description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := tx.Exec(ctx, query,
		txn.BlockNumber,
		txn.BlockTimestamp,
		txn.TxHash.Hex(),
		txn.From.Hex(),
		txn.To.Hex(),
		txn.GasUsed,
		txn.Status,
		txn.EventType,
		txn.OperationDescription,
		txn.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert chain transaction: %w", err)
	}
	return nil
}

// MarkEventProcessed records the idempotency key
func (r *PostgresMirrorRepository) MarkEventProcessed(ctx context.Context, tx pgx.Tx, txHash common.Hash, processedAt time.Time) error {
	query := `INSERT INTO processed_events (tx_hash, processed_at) VALUES ($1, $2)`
	if _, err := tx.Exec(ctx, query, txHash.Hex(), processedAt); err != nil {
		return fmt.Errorf("failed to mark event processed: %w", err)
	}
	return nil
}

// ListRecent retrieves the newest mirrored transactions
func (r *PostgresMirrorRepository) ListRecent(ctx context.Context, limit int) ([]*mirror.ChainTransaction, error) {
	query := `
		SELECT id, block_number, block_timestamp, tx_hash, from_address, to_address, gas_used, status, event_type, operation_description, created_at
		FROM chain_transactions
		ORDER BY block_number DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txns []*mirror.ChainTransaction
	for rows.Next() {
		var txn mirror.ChainTransaction
		var txHash, from, to string
		if scanErr := rows.Scan(
			&txn.ID,
			&txn.BlockNumber,
			&txn.BlockTimestamp,
			&txHash,
			&from,
			&to,
			&txn.GasUsed,
			&txn.Status,
			&txn.EventType,
			&txn.OperationDescription,
			&txn.CreatedAt,
		); scanErr != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", scanErr)
		}
		txn.TxHash = common.HexToHash(txHash)
		txn.From = common.HexToAddress(from)
		txn.To = common.HexToAddress(to)
		txns = append(txns, &txn)
	}
	return txns, rows.Err()
}

// DailyActivity aggregates transactions and gas per day over a trailing window
func (r *PostgresMirrorRepository) DailyActivity(ctx context.Context, days int) ([]*mirror.DailyActivity, error) {
	query := `
		SELECT date_trunc('day', block_timestamp) AS day, COUNT(*), COALESCE(SUM(gas_used), 0)
		FROM chain_transactions
		WHERE block_timestamp >= NOW() - make_interval(days => $1)
		GROUP BY day
		ORDER BY day
	`
	rows, err := r.pool.Query(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily activity: %w", err)
	}
	defer rows.Close()

	var stats []*mirror.DailyActivity
	for rows.Next() {
		var stat mirror.DailyActivity
		if scanErr := rows.Scan(&stat.Day, &stat.TxCount, &stat.GasUsed); scanErr != nil {
			return nil, fmt.Errorf("failed to scan daily activity: %w", scanErr)
		}
		stats = append(stats, &stat)
	}
	return stats, rows.Err()
}

// OperationBreakdown aggregates transactions and gas per event type
func (r *PostgresMirrorRepository) OperationBreakdown(ctx context.Context) ([]*mirror.OperationBreakdown, error) {
	query := `
		SELECT event_type, COUNT(*), COALESCE(SUM(gas_used), 0)
		FROM chain_transactions
		GROUP BY event_type
		ORDER BY COUNT(*) DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query operation breakdown: %w", err)
	}
	defer rows.Close()

	var stats []*mirror.OperationBreakdown
	for rows.Next() {
		var stat mirror.OperationBreakdown
		if scanErr := rows.Scan(&stat.EventType, &stat.TxCount, &stat.GasUsed); scanErr != nil {
			return nil, fmt.Errorf("failed to scan operation breakdown: %w", scanErr)
		}
		stats = append(stats, &stat)
	}
	return stats, rows.Err()
}

// AddressActivity aggregates per originating address, most active first
func (r *PostgresMirrorRepository) AddressActivity(ctx context.Context, limit int) ([]*mirror.AddressActivity, error) {
	query := `
		SELECT from_address, COUNT(*), COALESCE(SUM(gas_used), 0), MAX(block_timestamp)
		FROM chain_transactions
		GROUP BY from_address
		ORDER BY COUNT(*) DESC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query address activity: %w", err)
	}
	defer rows.Close()

	var stats []*mirror.AddressActivity
	for rows.Next() {
		var stat mirror.AddressActivity
		var address string
		if scanErr := rows.Scan(&address, &stat.TxCount, &stat.GasUsed, &stat.LastSeen); scanErr != nil {
			return nil, fmt.Errorf("failed to scan address activity: %w", scanErr)
		}
		stat.Address = common.HexToAddress(address)
		stats = append(stats, &stat)
	}
	return stats, rows.Err()
}
