package api

import (
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/mwynne/curio/internal/domain/delegation"
	"github.com/mwynne/curio/pkg/auth"
)

// DelegationHandler serves the settlement allow-list endpoints
type DelegationHandler struct {
	service *delegation.DelegationService
	logger  *slog.Logger
}

// NewDelegationHandler creates a new delegation handler
func NewDelegationHandler(service *delegation.DelegationService, logger *slog.Logger) *DelegationHandler {
	return &DelegationHandler{service: service, logger: logger}
}

type authorizeRequest struct {
	Grantee string `json:"grantee" binding:"required"`
}

func (h *DelegationHandler) Authorize(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req authorizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if !common.IsHexAddress(req.Grantee) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid grantee address"})
		return
	}

	if err := h.service.Authorize(c.Request.Context(), wallet, tokenID, common.HexToAddress(req.Grantee)); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DelegationHandler) Revoke(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	grantee, ok := addressParam(c, "grantee")
	if !ok {
		return
	}

	if err := h.service.Revoke(c.Request.Context(), wallet, tokenID, grantee); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *DelegationHandler) IsAuthorized(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}
	address, ok := addressParam(c, "address")
	if !ok {
		return
	}

	authorized, err := h.service.IsAuthorized(c.Request.Context(), tokenID, address)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"authorized": authorized})
}

func (h *DelegationHandler) ListGrantees(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	grants, err := h.service.ListGrantees(c.Request.Context(), tokenID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toGrantResponses(grants))
}

func (h *DelegationHandler) ListTokensForGrantee(c *gin.Context) {
	grantee, ok := addressParam(c, "address")
	if !ok {
		return
	}

	tokenIDs, err := h.service.ListTokensForGrantee(c.Request.Context(), grantee)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	if tokenIDs == nil {
		tokenIDs = []int64{}
	}
	c.JSON(http.StatusOK, gin.H{"tokenIds": tokenIDs})
}
