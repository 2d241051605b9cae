package auctions

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/mwynne/curio/pkg/ledger"
)

// Auction represents one auction cycle for a token. A token has at most one
// active auction at a time; settled cycles stay around as history.
type Auction struct {
	ID            uuid.UUID
	TokenID       int64
	Seller        common.Address
	StartPrice    int64
	HighestBid    int64
	HighestBidder common.Address
	BidCount      int
	StartTime     time.Time
	EndTime       time.Time
	IsActive      bool
	CreatedAt     time.Time
	SettledAt     *time.Time
}

// HasBids reports whether any bid was accepted this cycle.
func (a *Auction) HasBids() bool {
	return a.HighestBidder != ledger.ZeroAddress
}

// Expired reports whether the auction has passed its end time. An expired
// auction stays active until someone settles it.
func (a *Auction) Expired(now time.Time) bool {
	return !now.Before(a.EndTime)
}

// BidStatus tracks the escrow state of a bid.
type BidStatus string

const (
	// BidStatusLeading marks the bid currently holding escrowed funds.
	BidStatusLeading BidStatus = "leading"
	// BidStatusRefunded marks a superseded bid whose funds were released.
	BidStatusRefunded BidStatus = "refunded"
	// BidStatusWon marks the bid that settled the auction.
	BidStatusWon BidStatus = "won"
)

// Bid represents an accepted bid on an auction.
type Bid struct {
	ID        uuid.UUID
	AuctionID uuid.UUID
	TokenID   int64
	Bidder    common.Address
	Amount    int64
	Status    BidStatus
	CreatedAt time.Time
}

// CreateAuctionCommand represents the command to open an auction cycle.
type CreateAuctionCommand struct {
	Caller     common.Address
	TokenID    int64
	StartPrice int64
	EndTime    time.Time
}

// PlaceBidCommand represents the command to place a bid.
type PlaceBidCommand struct {
	Bidder  common.Address
	TokenID int64
	Amount  int64
}

// SettlementResult is what endAuction returns: who won, what moved where.
type SettlementResult struct {
	Auction     *Auction
	Winner      common.Address
	FinalPrice  int64
	Transferred bool
	Payouts     []ledger.Payout
}
