package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mwynne/curio/internal/adapters/cache"
	"github.com/mwynne/curio/internal/domain/auctions"
	"github.com/mwynne/curio/pkg/auth"
)

// AuctionHandler serves the auction lifecycle endpoints
type AuctionHandler struct {
	service *auctions.AuctionService
	cache   *cache.ItemCache
	logger  *slog.Logger
}

// NewAuctionHandler creates a new auction handler
func NewAuctionHandler(service *auctions.AuctionService, itemCache *cache.ItemCache, logger *slog.Logger) *AuctionHandler {
	return &AuctionHandler{service: service, cache: itemCache, logger: logger}
}

type createAuctionRequest struct {
	StartPrice int64     `json:"startPrice" binding:"required"`
	EndTime    time.Time `json:"endTime" binding:"required"`
}

func (h *AuctionHandler) Create(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req createAuctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	auction, err := h.service.Create(c.Request.Context(), auctions.CreateAuctionCommand{
		Caller:     wallet,
		TokenID:    tokenID,
		StartPrice: req.StartPrice,
		EndTime:    req.EndTime,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toAuctionResponse(auction))
}

type placeBidRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (h *AuctionHandler) PlaceBid(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req placeBidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	bid, err := h.service.PlaceBid(c.Request.Context(), auctions.PlaceBidCommand{
		Bidder:  wallet,
		TokenID: tokenID,
		Amount:  req.Amount,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toBidResponse(bid))
}

func (h *AuctionHandler) Settle(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	result, err := h.service.End(c.Request.Context(), wallet, tokenID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	// Settlement may have moved ownership.
	h.cache.Invalidate(c.Request.Context(), tokenID)

	c.JSON(http.StatusOK, gin.H{
		"auction":     toAuctionResponse(result.Auction),
		"winner":      result.Winner.Hex(),
		"finalPrice":  result.FinalPrice,
		"transferred": result.Transferred,
		"payouts":     toPayoutResponses(result.Payouts),
	})
}

func (h *AuctionHandler) GetActiveByToken(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	auction, err := h.service.GetActiveByToken(c.Request.Context(), tokenID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) ListActive(c *gin.Context) {
	list, err := h.service.ListActive(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out := make([]auctionResponse, 0, len(list))
	for _, auction := range list {
		out = append(out, toAuctionResponse(auction))
	}
	c.JSON(http.StatusOK, out)
}

func (h *AuctionHandler) GetByID(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	auction, err := h.service.GetByID(c.Request.Context(), auctionID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toAuctionResponse(auction))
}

func (h *AuctionHandler) ListBids(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	bids, err := h.service.ListBids(c.Request.Context(), auctionID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out := make([]bidResponse, 0, len(bids))
	for _, bid := range bids {
		out = append(out, toBidResponse(bid))
	}
	c.JSON(http.StatusOK, out)
}

func (h *AuctionHandler) ListBidders(c *gin.Context) {
	auctionID, err := uuid.Parse(c.Param("auctionId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid auction id"})
		return
	}

	bidders, err := h.service.ListBidders(c.Request.Context(), auctionID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	out := make([]string, 0, len(bidders))
	for _, bidder := range bidders {
		out = append(out, bidder.Hex())
	}
	c.JSON(http.StatusOK, out)
}
