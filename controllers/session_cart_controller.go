package controllers

import (
	"net/http"
	"strconv"

	"github.com/beehive-lane/honeyshop-api/middleware"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/gin-gonic/gin"
)

// SessionCartRequest optionally sets how many units to add
type SessionCartRequest struct {
	Quantity int `json:"quantity" binding:"omitempty,min=1,max=1000"`
}

// SessionCartResponse is the anonymous cart keyed by product id
type SessionCartResponse struct {
	SessionID string               `json:"session_id"`
	Items     services.SessionCart `json:"items"`
}

func sessionContext(c *gin.Context) (services.SessionStore, string, bool) {
	store := services.GetSessionStore()
	sessionID := middleware.GetSessionID(c)
	if store == nil || sessionID == "" {
		respondError(c, http.StatusServiceUnavailable, "SESSION_UNAVAILABLE", "Session storage is not available")
		return nil, "", false
	}
	return store, sessionID, true
}

// sessionProductID accepts any positive numeric id; existence is checked when the cart is merged
func sessionProductID(c *gin.Context) (string, bool) {
	id, ok := uintParam(c, "product_id")
	if !ok {
		return "", false
	}
	return strconv.FormatUint(uint64(id), 10), true
}

func respondSessionCart(c *gin.Context, sessionID string, cart services.SessionCart) {
	if cart == nil {
		cart = services.SessionCart{}
	}
	respondOK(c, http.StatusOK, SessionCartResponse{SessionID: sessionID, Items: cart})
}

// GetSessionCart handles GET /api/v1/session/cart
func GetSessionCart(c *gin.Context) {
	store, sessionID, ok := sessionContext(c)
	if !ok {
		return
	}

	cart, err := store.Load(c.Request.Context(), sessionID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSessionCart(c, sessionID, cart)
}

// AddToSessionCart handles POST /api/v1/session/cart/:product_id
func AddToSessionCart(c *gin.Context) {
	store, sessionID, ok := sessionContext(c)
	if !ok {
		return
	}
	productID, ok := sessionProductID(c)
	if !ok {
		return
	}

	var req SessionCartRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindingError(c, err)
			return
		}
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	cart, err := store.Add(c.Request.Context(), sessionID, productID, req.Quantity)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSessionCart(c, sessionID, cart)
}

// RemoveFromSessionCart handles DELETE /api/v1/session/cart/:product_id
func RemoveFromSessionCart(c *gin.Context) {
	store, sessionID, ok := sessionContext(c)
	if !ok {
		return
	}
	productID, ok := sessionProductID(c)
	if !ok {
		return
	}

	cart, err := store.Remove(c.Request.Context(), sessionID, productID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondSessionCart(c, sessionID, cart)
}

// ClearSessionCart handles DELETE /api/v1/session/cart
func ClearSessionCart(c *gin.Context) {
	store, sessionID, ok := sessionContext(c)
	if !ok {
		return
	}

	if err := store.Clear(c.Request.Context(), sessionID); err != nil {
		respondServiceError(c, err)
		return
	}

	respondSessionCart(c, sessionID, nil)
}
