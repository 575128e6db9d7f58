package controllers

import (
	"errors"
	"net/http"

	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/gin-gonic/gin"
)

// UpdateOrderStatusRequest moves an order along its fulfilment flow
type UpdateOrderStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// VerifyProfileRequest sets the manual verification flag on a profile
type VerifyProfileRequest struct {
	Verified *bool `json:"verified" binding:"required"`
}

// CreateProduct handles POST /api/v1/admin/products (multipart/form-data with an optional "image" file)
func CreateProduct(c *gin.Context) {
	var form services.ProductForm
	if err := c.ShouldBind(&form); err != nil {
		respondBindingError(c, err)
		return
	}

	image, err := c.FormFile("image")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		respondError(c, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read image upload")
		return
	}

	product, err := catalogService().CreateProduct(c.Request.Context(), form, image)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusCreated, product)
}

// UpdateProduct handles PATCH /api/v1/admin/products/:id
func UpdateProduct(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}

	var update services.ProductUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		respondBindingError(c, err)
		return
	}

	product, err := catalogService().UpdateProduct(c.Request.Context(), id, update)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, product)
}

// ListAllOrders handles GET /api/v1/admin/orders?status=pending
func ListAllOrders(c *gin.Context) {
	orders, err := orderService().ListAllOrders(c.Request.Context(), models.OrderStatus(c.Query("status")))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, orders)
}

// UpdateOrderStatus handles PATCH /api/v1/admin/orders/:number/status
func UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	order, err := orderService().UpdateStatus(c.Request.Context(), c.Param("number"), req.Status)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, order)
}

// VerifyProfile handles PATCH /api/v1/admin/profiles/:user_id/verify
func VerifyProfile(c *gin.Context) {
	id, ok := uintParam(c, "user_id")
	if !ok {
		return
	}

	var req VerifyProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindingError(c, err)
		return
	}

	profile, err := accountService().SetVerified(c.Request.Context(), id, *req.Verified)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, profile)
}
