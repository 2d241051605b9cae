package mirror

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
)

// Repository defines the interface for mirror persistence
type Repository interface {
	// IsEventProcessed reports whether a receipt was already mirrored
	IsEventProcessed(ctx context.Context, tx pgx.Tx, txHash common.Hash) (bool, error)

	// InsertTransaction stores a mirrored receipt within a transaction
	InsertTransaction(ctx context.Context, tx pgx.Tx, txn *ChainTransaction) error

	// MarkEventProcessed records the idempotency key within a transaction
	MarkEventProcessed(ctx context.Context, tx pgx.Tx, txHash common.Hash, processedAt time.Time) error

	// ListRecent retrieves the newest mirrored transactions
	ListRecent(ctx context.Context, limit int) ([]*ChainTransaction, error)

	// DailyActivity aggregates transactions and gas per day over a window
	DailyActivity(ctx context.Context, days int) ([]*DailyActivity, error)

	// OperationBreakdown aggregates transactions and gas per event type
	OperationBreakdown(ctx context.Context) ([]*OperationBreakdown, error)

	// AddressActivity aggregates per originating address, most active first
	AddressActivity(ctx context.Context, limit int) ([]*AddressActivity, error)
}
