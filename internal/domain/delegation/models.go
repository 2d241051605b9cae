package delegation

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Grant authorizes grantee to settle auctions for a token on the owner's
// behalf. Grants form a set per token: re-granting the same address is a
// no-op, and ownership transfer wipes the whole set.
type Grant struct {
	TokenID   int64
	Grantee   common.Address
	GrantedBy common.Address
	CreatedAt time.Time
}
