package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mwynne/curio/internal/domain/accreditation"
	"github.com/mwynne/curio/internal/domain/auctions"
	"github.com/mwynne/curio/internal/domain/delegation"
	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/internal/domain/users"
)

// statusFor maps domain sentinel errors onto HTTP status codes. Anything
// unmapped is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, items.ErrItemNotFound),
		errors.Is(err, auctions.ErrAuctionNotFound),
		errors.Is(err, users.ErrUserNotFound):
		return http.StatusNotFound

	case errors.Is(err, users.ErrInvalidCredentials),
		errors.Is(err, users.ErrInvalidToken):
		return http.StatusUnauthorized

	case errors.Is(err, items.ErrNotOwner),
		errors.Is(err, auctions.ErrNotOwner),
		errors.Is(err, auctions.ErrNotAuthorized),
		errors.Is(err, delegation.ErrNotOwner),
		errors.Is(err, accreditation.ErrNotOwner):
		return http.StatusForbidden

	case errors.Is(err, auctions.ErrAuctionAlreadyActive),
		errors.Is(err, auctions.ErrAuctionNotActive),
		errors.Is(err, auctions.ErrAuctionExpired),
		errors.Is(err, auctions.ErrAuctionNotExpired),
		errors.Is(err, auctions.ErrBidTooLow),
		errors.Is(err, items.ErrAlreadyListed),
		errors.Is(err, items.ErrNotListed),
		errors.Is(err, items.ErrAuctionActive),
		errors.Is(err, auctions.ErrItemListed),
		errors.Is(err, accreditation.ErrAccreditationNotAllowed),
		errors.Is(err, accreditation.ErrAlreadyAccredited),
		errors.Is(err, users.ErrUserAlreadyExists):
		return http.StatusConflict

	case errors.Is(err, items.ErrInvalidRoyalty),
		errors.Is(err, items.ErrInvalidMetadataURI),
		errors.Is(err, items.ErrInvalidPrice),
		errors.Is(err, items.ErrInvalidAddress),
		errors.Is(err, items.ErrSelfPurchase),
		errors.Is(err, items.ErrPriceMismatch),
		errors.Is(err, auctions.ErrInvalidStartPrice),
		errors.Is(err, auctions.ErrInvalidEndTime),
		errors.Is(err, auctions.ErrInvalidBidAmount),
		errors.Is(err, delegation.ErrInvalidGrantee),
		errors.Is(err, accreditation.ErrInvalidAttestationURI),
		errors.Is(err, users.ErrInvalidInput):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// writeError renders a domain error as a JSON response. Internal errors are
// logged and masked.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
