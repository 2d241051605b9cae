package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mwynne/curio/internal/adapters/cache"
	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/pkg/auth"
)

// ItemHandler serves minting, queries and fixed-price sale endpoints
type ItemHandler struct {
	service *items.ItemService
	cache   *cache.ItemCache
	logger  *slog.Logger
}

// NewItemHandler creates a new item handler
func NewItemHandler(service *items.ItemService, itemCache *cache.ItemCache, logger *slog.Logger) *ItemHandler {
	return &ItemHandler{service: service, cache: itemCache, logger: logger}
}

type mintRequest struct {
	RoyaltyBasisPoints int    `json:"royaltyBasisPoints"`
	MetadataURI        string `json:"metadataUri" binding:"required"`
}

func (h *ItemHandler) Mint(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}

	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	item, err := h.service.Mint(c.Request.Context(), items.MintCommand{
		Creator:            wallet,
		RoyaltyBasisPoints: req.RoyaltyBasisPoints,
		MetadataURI:        req.MetadataURI,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, toItemResponse(item))
}

func (h *ItemHandler) Get(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	item, err := h.cache.Get(c.Request.Context(), tokenID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *ItemHandler) List(c *gin.Context) {
	limit := intQuery(c, "limit", 50)
	offset := intQuery(c, "offset", 0)

	list, err := h.service.ListAll(c.Request.Context(), limit, offset)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponses(list))
}

func (h *ItemHandler) ListByOwner(c *gin.Context) {
	owner, ok := addressParam(c, "address")
	if !ok {
		return
	}

	list, err := h.service.ListByOwner(c.Request.Context(), owner)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponses(list))
}

func (h *ItemHandler) Listings(c *gin.Context) {
	list, err := h.service.ListForSaleItems(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponses(list))
}

type listForSaleRequest struct {
	Price int64 `json:"price" binding:"required"`
}

func (h *ItemHandler) ListForSale(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req listForSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	item, err := h.service.ListForSale(c.Request.Context(), items.ListForSaleCommand{
		Caller:  wallet,
		TokenID: tokenID,
		Price:   req.Price,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.cache.Invalidate(c.Request.Context(), tokenID)
	c.JSON(http.StatusOK, toItemResponse(item))
}

func (h *ItemHandler) Unlist(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	if err := h.service.Unlist(c.Request.Context(), wallet, tokenID); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.cache.Invalidate(c.Request.Context(), tokenID)
	c.Status(http.StatusNoContent)
}

type purchaseRequest struct {
	Amount int64 `json:"amount" binding:"required"`
}

func (h *ItemHandler) Purchase(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	item, err := h.service.Purchase(c.Request.Context(), items.PurchaseCommand{
		Buyer:   wallet,
		TokenID: tokenID,
		Amount:  req.Amount,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.cache.Invalidate(c.Request.Context(), tokenID)
	c.JSON(http.StatusOK, toItemResponse(item))
}
