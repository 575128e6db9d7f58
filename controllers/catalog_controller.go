package controllers

import (
	"net/http"
	"strconv"

	"github.com/beehive-lane/honeyshop-api/config"
	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/gin-gonic/gin"
)

func catalogService() *services.CatalogService {
	return services.NewCatalogService(config.GetDB(), nil)
}

// ListProducts handles GET /api/v1/products?kind=honey|candle&featured=true
func ListProducts(c *gin.Context) {
	var filter services.ProductFilter

	if kind := c.Query("kind"); kind != "" {
		filter.Kind = models.ProductKind(kind)
		if !filter.Kind.Valid() {
			respondError(c, http.StatusBadRequest, "INVALID_KIND", "kind must be honey or candle")
			return
		}
	}
	if featured := c.Query("featured"); featured != "" {
		parsed, err := strconv.ParseBool(featured)
		if err != nil {
			respondError(c, http.StatusBadRequest, "INVALID_FILTER", "featured must be true or false")
			return
		}
		filter.FeaturedOnly = parsed
	}

	products, err := catalogService().ListProducts(c.Request.Context(), filter)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, products)
}

// GetProduct handles GET /api/v1/products/:id
func GetProduct(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	product, err := catalogService().GetProduct(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, product)
}
