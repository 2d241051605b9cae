package items

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Item represents a marketplace token. Ownership and provenance live here;
// sale state is tracked through Listed/Price and the auctions tables.
type Item struct {
	TokenID              int64
	Owner                common.Address
	Creator              common.Address
	RoyaltyBasisPoints   int
	MetadataURI          string
	AccreditationAllowed bool
	Listed               bool
	Price                int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// MintCommand represents the command to mint a new token.
type MintCommand struct {
	Creator            common.Address
	RoyaltyBasisPoints int
	MetadataURI        string
}

// ListForSaleCommand puts a token up for fixed-price sale.
type ListForSaleCommand struct {
	Caller  common.Address
	TokenID int64
	Price   int64
}

// PurchaseCommand buys a listed token at its asking price.
type PurchaseCommand struct {
	Buyer   common.Address
	TokenID int64
	Amount  int64
}
