package controllers

import (
	"net/http"

	"github.com/beehive-lane/honeyshop-api/config"
	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/gin-gonic/gin"
)

func orderService() *services.OrderService {
	return services.NewOrderService(config.GetDB(), nil)
}

func resolveOrderImages(order *models.Order) {
	for i := range order.Items {
		services.ResolveImageURLs(&order.Items[i].Product)
	}
}

// GetOrderForm handles GET /api/v1/orders/form - checkout form prefilled from the profile
func GetOrderForm(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	form, err := orderService().OrderFormDefaults(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	respondOK(c, http.StatusOK, form)
}

// CreateOrder handles POST /api/v1/orders - checks out the user's cart
func CreateOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var form services.OrderForm
	if err := c.ShouldBindJSON(&form); err != nil {
		respondBindingError(c, err)
		return
	}

	order, err := orderService().PlaceOrder(c.Request.Context(), userID, form)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resolveOrderImages(order)
	respondOK(c, http.StatusCreated, order)
}

// ListOrders handles GET /api/v1/orders - the user's orders, newest first
func ListOrders(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	orders, err := orderService().ListOrders(c.Request.Context(), userID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	for i := range orders {
		resolveOrderImages(&orders[i])
	}
	respondOK(c, http.StatusOK, orders)
}

// GetOrder handles GET /api/v1/orders/:number
func GetOrder(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	order, err := orderService().GetOrder(c.Request.Context(), userID, c.Param("number"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	resolveOrderImages(order)
	respondOK(c, http.StatusOK, order)
}
