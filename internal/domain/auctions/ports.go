package auctions

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/pkg/events"
	"github.com/mwynne/curio/pkg/ledger"
)

// AuctionRepository defines the interface for auction persistence
type AuctionRepository interface {
	// CreateAuction inserts a new auction within a transaction
	CreateAuction(ctx context.Context, tx pgx.Tx, auction *Auction) error

	// GetByID retrieves an auction by its id
	GetByID(ctx context.Context, auctionID uuid.UUID) (*Auction, error)

	// GetActiveByToken retrieves the active auction for a token, if any
	GetActiveByToken(ctx context.Context, tokenID int64) (*Auction, error)

	// GetActiveByTokenForUpdate retrieves the active auction for a token and
	// locks its row. All bid and settlement races serialize on this lock.
	// Must be called within a transaction
	GetActiveByTokenForUpdate(ctx context.Context, tx pgx.Tx, tokenID int64) (*Auction, error)

	// HasActiveAuction reports whether a token has an active auction
	HasActiveAuction(ctx context.Context, tx pgx.Tx, tokenID int64) (bool, error)

	// ListActive retrieves all active auctions, soonest-ending first
	ListActive(ctx context.Context) ([]*Auction, error)

	// UpdateHighestBid records an accepted bid on the auction row within a transaction
	UpdateHighestBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, amount int64, bidder common.Address, bidCount int) error

	// Settle deactivates the auction and stamps the settlement time within a transaction
	Settle(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, settledAt time.Time) error
}

// BidRepository defines the interface for bid persistence
type BidRepository interface {
	// SaveBid saves a bid within a transaction
	SaveBid(ctx context.Context, tx pgx.Tx, bid *Bid) error

	// MarkLeadingBid transitions the auction's current leading bid to a new
	// status (refunded on supersession, won on settlement) within a transaction
	MarkLeadingBid(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, status BidStatus) error

	// ListByAuction retrieves all bids for an auction, oldest first
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)

	// ListBidders retrieves the distinct bidder addresses for an auction,
	// ordered by each bidder's first bid
	ListBidders(ctx context.Context, auctionID uuid.UUID) ([]common.Address, error)
}

// ItemRepository is the slice of item persistence the engine needs
type ItemRepository interface {
	// GetItemForUpdate retrieves an item and locks its row
	// Must be called within a transaction
	GetItemForUpdate(ctx context.Context, tx pgx.Tx, tokenID int64) (*items.Item, error)

	// TransferOwner moves the token to a new owner within a transaction
	TransferOwner(ctx context.Context, tx pgx.Tx, tokenID int64, newOwner common.Address) error
}

// GrantRepository is the slice of delegation persistence the engine needs:
// settlement authorization checks and the grant wipe on ownership transfer
type GrantRepository interface {
	// HasGrant reports whether grantee holds a settlement grant on the token
	HasGrant(ctx context.Context, tx pgx.Tx, tokenID int64, grantee common.Address) (bool, error)

	// DeleteAllForToken removes every grant on a token within a transaction
	DeleteAllForToken(ctx context.Context, tx pgx.Tx, tokenID int64) (int64, error)
}

// AccreditationReader feeds the settlement fee split
type AccreditationReader interface {
	// ListInstitutions retrieves the institutions accredited on a token
	ListInstitutions(ctx context.Context, tx pgx.Tx, tokenID int64) ([]common.Address, error)
}

// PayoutRepository records the settlement legs of an auction
type PayoutRepository interface {
	SaveAuctionPayouts(ctx context.Context, tx pgx.Tx, auctionID uuid.UUID, tokenID int64, payouts []ledger.Payout) error
}

// OutboxRepository defines the interface for outbox event persistence
type OutboxRepository interface {
	// SaveEvent saves an outbox event within a transaction
	SaveEvent(ctx context.Context, tx pgx.Tx, event *events.OutboxEvent) error

	// NextBlockNumber claims the next ledger block number within a transaction
	NextBlockNumber(ctx context.Context, tx pgx.Tx) (int64, error)
}
