package items

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"

	"github.com/mwynne/curio/pkg/events"
	"github.com/mwynne/curio/pkg/ledger"
)

// ItemRepository defines the interface for item persistence
type ItemRepository interface {
	// CreateItem inserts a new item within a transaction and returns it with
	// the database-assigned token id
	CreateItem(ctx context.Context, tx pgx.Tx, item *Item) (*Item, error)

	// GetItem retrieves an item by its token id
	GetItem(ctx context.Context, tokenID int64) (*Item, error)

	// GetItemForUpdate retrieves an item and locks its row
	// Must be called within a transaction
	GetItemForUpdate(ctx context.Context, tx pgx.Tx, tokenID int64) (*Item, error)

	// ListByOwner retrieves all items owned by an address
	ListByOwner(ctx context.Context, owner common.Address) ([]*Item, error)

	// ListAll retrieves all items, newest first
	ListAll(ctx context.Context, limit, offset int) ([]*Item, error)

	// ListListed retrieves all items currently up for fixed-price sale
	ListListed(ctx context.Context) ([]*Item, error)

	// UpdateListing sets the fixed-price sale state within a transaction
	UpdateListing(ctx context.Context, tx pgx.Tx, tokenID int64, listed bool, price int64) error

	// TransferOwner moves the token to a new owner within a transaction
	TransferOwner(ctx context.Context, tx pgx.Tx, tokenID int64, newOwner common.Address) error
}

// GrantRepository is the slice of delegation persistence items needs:
// ownership transfer wipes all standing grants for the token
type GrantRepository interface {
	// DeleteAllForToken removes every grant on a token within a transaction
	DeleteAllForToken(ctx context.Context, tx pgx.Tx, tokenID int64) (int64, error)
}

// AuctionChecker reports whether a token currently has an active auction
type AuctionChecker interface {
	HasActiveAuction(ctx context.Context, tx pgx.Tx, tokenID int64) (bool, error)
}

// PayoutRepository records the settlement legs of a sale
type PayoutRepository interface {
	SavePayouts(ctx context.Context, tx pgx.Tx, tokenID int64, payouts []ledger.Payout) error
}

// OutboxRepository defines the interface for outbox event persistence
type OutboxRepository interface {
	// SaveEvent saves an outbox event within a transaction
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error

	// NextBlockNumber claims the next ledger block number within a transaction
	NextBlockNumber(ctx context.Context, tx pgx.Tx) (int64, error)
}
