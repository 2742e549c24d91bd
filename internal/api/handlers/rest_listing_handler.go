package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ksw5434/realestate/internal/cache"
	"github.com/ksw5434/realestate/internal/services"
)

// listingsPath is where clients find the catalog after a missing detail page.
const listingsPath = "/v1/listing"

// RestListingHandler handles public REST requests for listings.
type RestListingHandler struct {
	queries services.IListingQueryService
	logger  *zap.Logger
}

// NewRestListingHandler creates a new RestListingHandler.
func NewRestListingHandler(queries services.IListingQueryService, logger *zap.Logger) *RestListingHandler {
	return &RestListingHandler{queries: queries, logger: logger}
}

// SearchListings handles GET /v1/listing
func (h *RestListingHandler) SearchListings(c *gin.Context) {
	summaries, err := h.queries.ListListings(c.Request.Context(), cache.ViewSearch)
	if err != nil {
		_ = c.Error(err)
		h.logger.Error("Failed to list listings", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list listings"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": summaries})
}

// GetListingByID handles GET /v1/listing/:id
func (h *RestListingHandler) GetListingByID(c *gin.Context) {
	detail, err := h.queries.GetListing(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrListingNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Listing not found", "list_url": listingsPath})
			return
		}
		_ = c.Error(err)
		h.logger.Error("Failed to retrieve listing", zap.String("listing_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve listing"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": detail})
}
