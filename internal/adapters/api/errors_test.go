package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mwynne/curio/internal/domain/accreditation"
	"github.com/mwynne/curio/internal/domain/auctions"
	"github.com/mwynne/curio/internal/domain/items"
	"github.com/mwynne/curio/internal/domain/users"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"absent item is 404", items.ErrItemNotFound, http.StatusNotFound},
		{"bad credentials are 401", users.ErrInvalidCredentials, http.StatusUnauthorized},
		{"wrong owner is 403", auctions.ErrNotOwner, http.StatusForbidden},
		{"settlement by a stranger is 403", auctions.ErrNotAuthorized, http.StatusForbidden},
		{"closed accreditation gate is 409", accreditation.ErrAccreditationNotAllowed, http.StatusConflict},
		{"duplicate accreditation is 409", accreditation.ErrAlreadyAccredited, http.StatusConflict},
		{"listed token blocking an auction is 409", auctions.ErrItemListed, http.StatusConflict},
		{"low bid is 409", auctions.ErrBidTooLow, http.StatusConflict},
		{"out-of-range bid is 400", auctions.ErrInvalidBidAmount, http.StatusBadRequest},
		{"out-of-range price is 400", items.ErrInvalidPrice, http.StatusBadRequest},
		{"wrapped sentinel keeps its mapping", fmt.Errorf("placing bid: %w", auctions.ErrAuctionExpired), http.StatusConflict},
		{"unknown error is 500", fmt.Errorf("connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
