package controllers

import (
	"net/http"

	"github.com/beehive-lane/honeyshop-api/config"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/gin-gonic/gin"
)

func respondCart(c *gin.Context, view *services.CartView, err error) {
	if err != nil {
		respondServiceError(c, err)
		return
	}
	for i := range view.Items {
		services.ResolveImageURLs(&view.Items[i].Product)
	}
	respondOK(c, http.StatusOK, view)
}

// GetCart handles GET /api/v1/cart
func GetCart(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	view, err := services.NewCartService(config.GetDB()).List(c.Request.Context(), userID)
	respondCart(c, view, err)
}

// AddCartItem handles POST /api/v1/cart/items/:product_id
func AddCartItem(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	productID, ok := uintParam(c, "product_id")
	if !ok {
		return
	}

	view, err := services.NewCartService(config.GetDB()).Add(c.Request.Context(), userID, productID)
	respondCart(c, view, err)
}

// RemoveCartItem handles DELETE /api/v1/cart/items/:product_id
func RemoveCartItem(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	productID, ok := uintParam(c, "product_id")
	if !ok {
		return
	}

	view, err := services.NewCartService(config.GetDB()).Remove(c.Request.Context(), userID, productID)
	respondCart(c, view, err)
}

// ChangeCartItemQuantity handles PUT /api/v1/cart/items/:product_id/:direction
func ChangeCartItemQuantity(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	productID, ok := uintParam(c, "product_id")
	if !ok {
		return
	}

	view, err := services.NewCartService(config.GetDB()).ChangeQuantity(c.Request.Context(), userID, productID, c.Param("direction"))
	respondCart(c, view, err)
}
