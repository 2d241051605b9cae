package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/mwynne/curio/internal/domain/accreditation"
	"github.com/mwynne/curio/internal/domain/auctions"
	"github.com/mwynne/curio/internal/domain/delegation"
	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/pkg/ledger"
)

type itemResponse struct {
	TokenID              int64  `json:"tokenId"`
	Owner                string `json:"owner"`
	Creator              string `json:"creator"`
	RoyaltyBasisPoints   int    `json:"royaltyBasisPoints"`
	MetadataURI          string `json:"metadataUri"`
	AccreditationAllowed bool   `json:"accreditationAllowed"`
	Listed               bool   `json:"listed"`
	Price                int64  `json:"price"`
	CreatedAt            string `json:"createdAt"`
	UpdatedAt            string `json:"updatedAt"`
}

func toItemResponse(item *items.Item) itemResponse {
	return itemResponse{
		TokenID:              item.TokenID,
		Owner:                item.Owner.Hex(),
		Creator:              item.Creator.Hex(),
		RoyaltyBasisPoints:   item.RoyaltyBasisPoints,
		MetadataURI:          item.MetadataURI,
		AccreditationAllowed: item.AccreditationAllowed,
		Listed:               item.Listed,
		Price:                item.Price,
		CreatedAt:            item.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            item.UpdatedAt.Format(time.RFC3339),
	}
}

func toItemResponses(list []*items.Item) []itemResponse {
	out := make([]itemResponse, 0, len(list))
	for _, item := range list {
		out = append(out, toItemResponse(item))
	}
	return out
}

type auctionResponse struct {
	ID            string `json:"id"`
	TokenID       int64  `json:"tokenId"`
	Seller        string `json:"seller"`
	StartPrice    int64  `json:"startPrice"`
	HighestBid    int64  `json:"highestBid"`
	HighestBidder string `json:"highestBidder"`
	BidCount      int    `json:"bidCount"`
	StartTime     string `json:"startTime"`
	EndTime       string `json:"endTime"`
	IsActive      bool   `json:"isActive"`
	SettledAt     string `json:"settledAt,omitempty"`
}

func toAuctionResponse(a *auctions.Auction) auctionResponse {
	resp := auctionResponse{
		ID:            a.ID.String(),
		TokenID:       a.TokenID,
		Seller:        a.Seller.Hex(),
		StartPrice:    a.StartPrice,
		HighestBid:    a.HighestBid,
		HighestBidder: a.HighestBidder.Hex(),
		BidCount:      a.BidCount,
		StartTime:     a.StartTime.Format(time.RFC3339),
		EndTime:       a.EndTime.Format(time.RFC3339),
		IsActive:      a.IsActive,
	}
	if a.SettledAt != nil {
		resp.SettledAt = a.SettledAt.Format(time.RFC3339)
	}
	return resp
}

type bidResponse struct {
	ID        string `json:"id"`
	AuctionID string `json:"auctionId"`
	TokenID   int64  `json:"tokenId"`
	Bidder    string `json:"bidder"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

func toBidResponse(b *auctions.Bid) bidResponse {
	return bidResponse{
		ID:        b.ID.String(),
		AuctionID: b.AuctionID.String(),
		TokenID:   b.TokenID,
		Bidder:    b.Bidder.Hex(),
		Amount:    b.Amount,
		Status:    string(b.Status),
		CreatedAt: b.CreatedAt.Format(time.RFC3339),
	}
}

type payoutResponse struct {
	Recipient string `json:"recipient"`
	Role      string `json:"role"`
	Amount    int64  `json:"amount"`
}

func toPayoutResponses(payouts []ledger.Payout) []payoutResponse {
	out := make([]payoutResponse, 0, len(payouts))
	for _, p := range payouts {
		out = append(out, payoutResponse{
			Recipient: p.Recipient.Hex(),
			Role:      string(p.Role),
			Amount:    p.Amount,
		})
	}
	return out
}

type grantResponse struct {
	TokenID   int64  `json:"tokenId"`
	Grantee   string `json:"grantee"`
	GrantedBy string `json:"grantedBy"`
	CreatedAt string `json:"createdAt"`
}

func toGrantResponses(grants []*delegation.Grant) []grantResponse {
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, grantResponse{
			TokenID:   g.TokenID,
			Grantee:   g.Grantee.Hex(),
			GrantedBy: g.GrantedBy.Hex(),
			CreatedAt: g.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

type accreditationResponse struct {
	ID             string `json:"id"`
	TokenID        int64  `json:"tokenId"`
	Institution    string `json:"institution"`
	AttestationURI string `json:"attestationUri"`
	CreatedAt      string `json:"createdAt"`
}

func toAccreditationResponses(records []*accreditation.Record) []accreditationResponse {
	out := make([]accreditationResponse, 0, len(records))
	for _, r := range records {
		out = append(out, accreditationResponse{
			ID:             r.ID.String(),
			TokenID:        r.TokenID,
			Institution:    r.Institution.Hex(),
			AttestationURI: r.AttestationURI,
			CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		})
	}
	return out
}

// tokenIDParam parses the :tokenId path parameter.
func tokenIDParam(c *gin.Context) (int64, bool) {
	tokenID, err := strconv.ParseInt(c.Param("tokenId"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid token id"})
		return 0, false
	}
	return tokenID, true
}

// addressParam parses a hex address path parameter.
func addressParam(c *gin.Context, name string) (common.Address, bool) {
	raw := c.Param(name)
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid address %q", raw)})
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}

// intQuery parses an optional integer query parameter with a default.
func intQuery(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
