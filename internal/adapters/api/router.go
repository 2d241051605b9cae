package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mwynne/curio/pkg/auth"
)

// Handlers bundles everything the marketplace API serves.
type Handlers struct {
	Auth          *AuthHandler
	Items         *ItemHandler
	Auctions      *AuctionHandler
	Delegation    *DelegationHandler
	Accreditation *AccreditationHandler
}

// NewRouter assembles the gin engine. Reads are public; every mutation
// requires a bearer token carrying the caller's wallet.
func NewRouter(signer *auth.Signer, h Handlers) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")

	v1.POST("/auth/register", h.Auth.Register)
	v1.POST("/auth/login", h.Auth.Login)
	v1.POST("/auth/refresh", h.Auth.Refresh)
	v1.POST("/auth/logout", h.Auth.Logout)

	// Public query surface
	v1.GET("/items", h.Items.List)
	v1.GET("/items/:tokenId", h.Items.Get)
	v1.GET("/items/owner/:address", h.Items.ListByOwner)
	v1.GET("/listings", h.Items.Listings)
	v1.GET("/accreditable", h.Accreditation.ListAccreditable)
	v1.GET("/auctions", h.Auctions.ListActive)
	v1.GET("/auctions/:auctionId", h.Auctions.GetByID)
	v1.GET("/auctions/:auctionId/bids", h.Auctions.ListBids)
	v1.GET("/auctions/:auctionId/bidders", h.Auctions.ListBidders)
	v1.GET("/items/:tokenId/auction", h.Auctions.GetActiveByToken)
	v1.GET("/items/:tokenId/grants", h.Delegation.ListGrantees)
	v1.GET("/items/:tokenId/authorized/:address", h.Delegation.IsAuthorized)
	v1.GET("/grants/grantee/:address", h.Delegation.ListTokensForGrantee)
	v1.GET("/items/:tokenId/accreditations", h.Accreditation.ListRecords)
	v1.GET("/items/:tokenId/accreditations/count", h.Accreditation.Count)

	// Authenticated call surface
	authed := v1.Group("")
	authed.Use(auth.Middleware(signer))

	authed.GET("/auth/profile", h.Auth.Profile)
	authed.PUT("/auth/profile", h.Auth.UpdateProfile)

	authed.POST("/items", h.Items.Mint)
	authed.POST("/items/:tokenId/list", h.Items.ListForSale)
	authed.DELETE("/items/:tokenId/list", h.Items.Unlist)
	authed.POST("/items/:tokenId/purchase", h.Items.Purchase)

	authed.POST("/items/:tokenId/auction", h.Auctions.Create)
	authed.POST("/items/:tokenId/bids", h.Auctions.PlaceBid)
	authed.POST("/items/:tokenId/settle", h.Auctions.Settle)

	authed.POST("/items/:tokenId/grants", h.Delegation.Authorize)
	authed.DELETE("/items/:tokenId/grants/:grantee", h.Delegation.Revoke)

	authed.PUT("/items/:tokenId/accreditation", h.Accreditation.SetAllowed)
	authed.POST("/items/:tokenId/accreditations", h.Accreditation.Perform)

	return router
}
