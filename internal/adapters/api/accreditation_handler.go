package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mwynne/curio/internal/adapters/cache"
	"github.com/mwynne/curio/internal/domain/accreditation"
	"github.com/mwynne/curio/pkg/auth"
)

// AccreditationHandler serves the attestation gate and log endpoints
type AccreditationHandler struct {
	service *accreditation.AccreditationService
	cache   *cache.ItemCache
	logger  *slog.Logger
}

// NewAccreditationHandler creates a new accreditation handler
func NewAccreditationHandler(service *accreditation.AccreditationService, itemCache *cache.ItemCache, logger *slog.Logger) *AccreditationHandler {
	return &AccreditationHandler{service: service, cache: itemCache, logger: logger}
}

type setAllowedRequest struct {
	Allowed *bool `json:"allowed" binding:"required"`
}

func (h *AccreditationHandler) SetAllowed(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req setAllowedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.service.SetAllowed(c.Request.Context(), wallet, tokenID, *req.Allowed); err != nil {
		writeError(c, h.logger, err)
		return
	}
	h.cache.Invalidate(c.Request.Context(), tokenID)
	c.Status(http.StatusNoContent)
}

type performRequest struct {
	AttestationURI string `json:"attestationUri" binding:"required"`
}

func (h *AccreditationHandler) Perform(c *gin.Context) {
	wallet, ok := auth.CallerWallet(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	var req performRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	record, err := h.service.Perform(c.Request.Context(), accreditation.PerformCommand{
		Institution:    wallet,
		TokenID:        tokenID,
		AttestationURI: req.AttestationURI,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":             record.ID.String(),
		"tokenId":        record.TokenID,
		"institution":    record.Institution.Hex(),
		"attestationUri": record.AttestationURI,
		"createdAt":      record.CreatedAt,
	})
}

func (h *AccreditationHandler) ListRecords(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	records, err := h.service.ListRecords(c.Request.Context(), tokenID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toAccreditationResponses(records))
}

func (h *AccreditationHandler) Count(c *gin.Context) {
	tokenID, ok := tokenIDParam(c)
	if !ok {
		return
	}

	count, err := h.service.Count(c.Request.Context(), tokenID)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tokenId": tokenID, "count": count})
}

func (h *AccreditationHandler) ListAccreditable(c *gin.Context) {
	list, err := h.service.ListAccreditable(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toItemResponses(list))
}
