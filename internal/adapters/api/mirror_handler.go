package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mwynne/curio/internal/domain/mirror"
)

// MirrorHandler serves the read-only transaction mirror and its stats views
type MirrorHandler struct {
	service *mirror.Service
	logger  *slog.Logger
}

// NewMirrorHandler creates a new mirror handler
func NewMirrorHandler(service *mirror.Service, logger *slog.Logger) *MirrorHandler {
	return &MirrorHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the mirror query surface.
func (h *MirrorHandler) RegisterRoutes(router gin.IRouter) {
	v1 := router.Group("/api/v1")
	v1.GET("/transactions", h.ListRecent)
	v1.GET("/stats/daily", h.DailyActivity)
	v1.GET("/stats/operations", h.OperationBreakdown)
	v1.GET("/stats/addresses", h.AddressActivity)
}

type transactionResponse struct {
	ID                   int64  `json:"id"`
	BlockNumber          int64  `json:"blockNumber"`
	BlockTimestamp       string `json:"blockTimestamp"`
	TxHash               string `json:"txHash"`
	From                 string `json:"from"`
	To                   string `json:"to"`
	GasUsed              int64  `json:"gasUsed"`
	Status               string `json:"status"`
	EventType            string `json:"eventType"`
	OperationDescription string `json:"operationDescription"`
}

func (h *MirrorHandler) ListRecent(c *gin.Context) {
	limit := intQuery(c, "limit", 50)

	txns, err := h.service.ListRecent(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	out := make([]transactionResponse, 0, len(txns))
	for _, txn := range txns {
		out = append(out, transactionResponse{
			ID:                   txn.ID,
			BlockNumber:          txn.BlockNumber,
			BlockTimestamp:       txn.BlockTimestamp.Format(time.RFC3339),
			TxHash:               txn.TxHash.Hex(),
			From:                 txn.From.Hex(),
			To:                   txn.To.Hex(),
			GasUsed:              txn.GasUsed,
			Status:               txn.Status,
			EventType:            txn.EventType,
			OperationDescription: txn.OperationDescription,
		})
	}
	c.JSON(http.StatusOK, out)
}

func (h *MirrorHandler) DailyActivity(c *gin.Context) {
	days := intQuery(c, "days", 30)

	stats, err := h.service.DailyActivity(c.Request.Context(), days)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *MirrorHandler) OperationBreakdown(c *gin.Context) {
	stats, err := h.service.OperationBreakdown(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *MirrorHandler) AddressActivity(c *gin.Context) {
	limit := intQuery(c, "limit", 20)

	stats, err := h.service.AddressActivity(c.Request.Context(), limit)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
