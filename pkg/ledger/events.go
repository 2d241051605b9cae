package ledger

import (
	"math"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// MaxAmount bounds prices and bids so basis-point share products stay
// within int64. The largest multiplier in any split is 10000.
const MaxAmount int64 = math.MaxInt64 / 10_000

// Event types double as broker routing keys.
const (
	EventItemMinted            = "item.minted"
	EventItemListed            = "item.listed"
	EventItemUnlisted          = "item.unlisted"
	EventItemPurchased         = "item.purchased"
	EventAuctionCreated        = "auction.created"
	EventBidAccepted           = "bid.accepted"
	EventAuctionSettled        = "auction.settled"
	EventAccreditationChanged  = "accreditation.changed"
	EventAccreditationRecorded = "accreditation.performed"
	EventGrantAuthorized       = "grant.authorized"
	EventGrantRevoked          = "grant.revoked"
	EventUserRegistered        = "user.registered"
)

// PayoutRole identifies the party class in a proceeds split.
type PayoutRole string

const (
	PayoutRoleRoyalty       PayoutRole = "royalty"
	PayoutRoleAccreditation PayoutRole = "accreditation"
	PayoutRoleSeller        PayoutRole = "seller"
)

// Payout is a single leg of a settlement or purchase split.
type Payout struct {
	Recipient common.Address `json:"recipient"`
	Role      PayoutRole     `json:"role"`
	Amount    int64          `json:"amount"`
}

// One payload type per operation. The mirror and any other consumer get a
// fixed schema per event type instead of duck-typed args.
type ItemMinted struct {
	TokenID     int64          `json:"tokenId"`
	Owner       common.Address `json:"owner"`
	Creator     common.Address `json:"creator"`
	RoyaltyBps  int            `json:"royaltyBasisPoints"`
	MetadataURI string         `json:"metadataUri"`
}

type ItemListed struct {
	TokenID int64          `json:"tokenId"`
	Seller  common.Address `json:"seller"`
	Price   int64          `json:"price"`
}

type ItemUnlisted struct {
	TokenID int64          `json:"tokenId"`
	Seller  common.Address `json:"seller"`
}

type ItemPurchased struct {
	TokenID int64          `json:"tokenId"`
	Seller  common.Address `json:"seller"`
	Buyer   common.Address `json:"buyer"`
	Price   int64          `json:"price"`
	Payouts []Payout       `json:"payouts"`
}

type AuctionCreated struct {
	AuctionID  uuid.UUID      `json:"auctionId"`
	TokenID    int64          `json:"tokenId"`
	Seller     common.Address `json:"seller"`
	StartPrice int64          `json:"startPrice"`
	EndTime    time.Time      `json:"endTime"`
}

type BidAccepted struct {
	AuctionID      uuid.UUID      `json:"auctionId"`
	TokenID        int64          `json:"tokenId"`
	Bidder         common.Address `json:"bidder"`
	Amount         int64          `json:"amount"`
	BidCount       int            `json:"bidCount"`
	RefundedBidder common.Address `json:"refundedBidder"`
	RefundedAmount int64          `json:"refundedAmount"`
}

type AuctionSettled struct {
	AuctionID   uuid.UUID      `json:"auctionId"`
	TokenID     int64          `json:"tokenId"`
	Winner      common.Address `json:"winner"`
	FinalPrice  int64          `json:"finalPrice"`
	Transferred bool           `json:"transferred"`
	Payouts     []Payout       `json:"payouts"`
}

type AccreditationChanged struct {
	TokenID int64          `json:"tokenId"`
	Owner   common.Address `json:"owner"`
	Allowed bool           `json:"allowed"`
}

type AccreditationPerformed struct {
	TokenID        int64          `json:"tokenId"`
	Institution    common.Address `json:"institution"`
	AttestationURI string         `json:"attestationUri"`
}

type GrantAuthorized struct {
	TokenID int64          `json:"tokenId"`
	Owner   common.Address `json:"owner"`
	Grantee common.Address `json:"grantee"`
}

type GrantRevoked struct {
	TokenID int64          `json:"tokenId"`
	Owner   common.Address `json:"owner"`
	Grantee common.Address `json:"grantee"`
}

type UserRegistered struct {
	UserID uuid.UUID      `json:"userId"`
	Wallet common.Address `json:"wallet"`
}

// gasCosts is a fixed per-operation schedule. The dashboard charts gas
// consumption per operation type; with no real EVM underneath, costs are
// representative constants rather than metered values.
var gasCosts = map[string]int64{
	EventItemMinted:            214320,
	EventItemListed:            48750,
	EventItemUnlisted:          29010,
	EventItemPurchased:         96480,
	EventAuctionCreated:        131650,
	EventBidAccepted:           86490,
	EventAuctionSettled:        158730,
	EventAccreditationChanged:  31220,
	EventAccreditationRecorded: 104880,
	EventGrantAuthorized:       46900,
	EventGrantRevoked:          24730,
	EventUserRegistered:        21000,
}

// GasUsed returns the scheduled gas cost for an event type.
func GasUsed(eventType string) int64 {
	if g, ok := gasCosts[eventType]; ok {
		return g
	}
	return 21000
}
