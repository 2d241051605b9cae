package delegation

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/pkg/events"
)

// GrantRepository defines the interface for grant persistence
type GrantRepository interface {
	// InsertGrant adds a grant within a transaction. Returns false without
	// error when the grant already existed.
	InsertGrant(ctx context.Context, tx pgx.Tx, grant *Grant) (bool, error)

	// DeleteGrant removes a grant within a transaction. Returns false without
	// error when no such grant existed.
	DeleteGrant(ctx context.Context, tx pgx.Tx, tokenID int64, grantee common.Address) (bool, error)

	// IsGranted reports whether grantee holds a grant on the token
	IsGranted(ctx context.Context, tokenID int64, grantee common.Address) (bool, error)

	// ListGrantees retrieves all grantees for a token, oldest grant first
	ListGrantees(ctx context.Context, tokenID int64) ([]*Grant, error)

	// ListTokensForGrantee retrieves the token ids an address may settle
	ListTokensForGrantee(ctx context.Context, grantee common.Address) ([]int64, error)
}

// ItemRepository is the slice of item persistence delegation needs
type ItemRepository interface {
	// GetItemForUpdate retrieves an item and locks its row
	// Must be called within a transaction
	GetItemForUpdate(ctx context.Context, tx pgx.Tx, tokenID int64) (*items.Item, error)

	// GetItem retrieves an item by its token id
	GetItem(ctx context.Context, tokenID int64) (*items.Item, error)
}

// OutboxRepository defines the interface for outbox event persistence
type OutboxRepository interface {
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error
	NextBlockNumber(ctx context.Context, tx pgx.Tx) (int64, error)
}
