package integration

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"testing"

	"github.com/beehive-lane/honeyshop-api/config"
	"github.com/beehive-lane/honeyshop-api/controllers"
	"github.com/beehive-lane/honeyshop-api/middleware"
	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/beehive-lane/honeyshop-api/tests/testutil"
	"github.com/beehive-lane/honeyshop-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"
)

// OrderIntegrationTestSuite drives cart and checkout endpoints against a real database
type OrderIntegrationTestSuite struct {
	suite.Suite
	db        *gorm.DB
	router    *gin.Engine
	publisher *recordingPublisher
	customer  models.User
	neighbour models.User
	admin     models.User
	honey     models.Product
	candle    models.Product
}

// SetupSuite runs once before all tests
func (suite *OrderIntegrationTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
	utils.RegisterValidators()
}

// SetupTest runs before each test
func (suite *OrderIntegrationTestSuite) SetupTest() {
	suite.db = testutil.NewTestDB(suite.T())
	config.SetDB(suite.db)

	suite.publisher = &recordingPublisher{}
	services.SetPublisher(suite.publisher)

	mockS3 := services.NewMockS3Service()
	mockS3.SetAsMockForTesting()
	services.InitImageService(mockS3)

	suite.customer = testutil.CreateUser(suite.T(), suite.db, "customer@example.com", models.RoleCustomer)
	suite.neighbour = testutil.CreateUser(suite.T(), suite.db, "neighbour@example.com", models.RoleCustomer)
	suite.admin = testutil.CreateUser(suite.T(), suite.db, "admin@example.com", models.RoleAdmin)
	suite.honey = testutil.CreateProduct(suite.T(), suite.db, models.KindHoney, "Linden honey", "12.50")
	suite.candle = testutil.CreateProduct(suite.T(), suite.db, models.KindCandle, "Rolled candle", "4.00")

	suite.router = gin.New()
	v1 := suite.router.Group("/api/v1")
	{
		customer := v1.Group("", testutil.MockAuthMiddleware(suite.customer.ID, models.RoleCustomer))
		customer.GET("/cart", controllers.GetCart)
		customer.POST("/cart/items/:product_id", controllers.AddCartItem)
		customer.DELETE("/cart/items/:product_id", controllers.RemoveCartItem)
		customer.PUT("/cart/items/:product_id/:direction", controllers.ChangeCartItemQuantity)
		customer.GET("/orders", controllers.ListOrders)
		customer.POST("/orders", controllers.CreateOrder)
		customer.GET("/orders/:number", controllers.GetOrder)

		neighbour := v1.Group("/neighbour", testutil.MockAuthMiddleware(suite.neighbour.ID, models.RoleCustomer))
		neighbour.GET("/orders", controllers.ListOrders)
		neighbour.GET("/orders/:number", controllers.GetOrder)

		admin := v1.Group("/admin",
			testutil.MockAuthMiddleware(suite.admin.ID, models.RoleAdmin),
			middleware.RequireRole(models.RoleAdmin))
		admin.GET("/orders", controllers.ListAllOrders)
		admin.PATCH("/orders/:number/status", controllers.UpdateOrderStatus)
	}
}

// TearDownTest runs after each test
func (suite *OrderIntegrationTestSuite) TearDownTest() {
	config.SetDB(nil)
	services.SetPublisher(nil)
	services.SetImageService(nil)
}

func (suite *OrderIntegrationTestSuite) itemPath(product models.Product) string {
	return "/api/v1/cart/items/" + strconv.FormatUint(uint64(product.ID), 10)
}

func (suite *OrderIntegrationTestSuite) checkoutForm() map[string]string {
	return map[string]string{
		"phone":       "8 (912) 555-44-33",
		"email":       "Customer@Example.com",
		"address":     "5 Orchard Row",
		"city":        "Vladimir",
		"postal_code": "600000",
	}
}

func (suite *OrderIntegrationTestSuite) placeOrder() string {
	w, env := doJSON(suite.router, http.MethodPost, "/api/v1/orders", suite.checkoutForm(), nil)
	suite.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var order struct {
		OrderNumber string `json:"order_number"`
	}
	suite.Require().NoError(json.Unmarshal(env.Data, &order))
	return order.OrderNumber
}

// TestCheckoutWorkflow fills a cart, checks out and inspects the stored order
func (suite *OrderIntegrationTestSuite) TestCheckoutWorkflow() {
	for i := 0; i < 2; i++ {
		w, _ := doJSON(suite.router, http.MethodPost, suite.itemPath(suite.honey), nil, nil)
		suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	}
	w, _ := doJSON(suite.router, http.MethodPost, suite.itemPath(suite.candle), nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	w, _ = doJSON(suite.router, http.MethodPut, suite.itemPath(suite.candle)+"/increment", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)

	w, env := doJSON(suite.router, http.MethodGet, "/api/v1/cart", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var cart services.CartView
	suite.Require().NoError(json.Unmarshal(env.Data, &cart))
	assert.Len(suite.T(), cart.Items, 2)
	assert.True(suite.T(), decimal.RequireFromString("33").Equal(cart.Total), "got %s", cart.Total)

	number := suite.placeOrder()
	assert.True(suite.T(), strings.HasPrefix(number, "ORD-"))

	var order models.Order
	suite.Require().NoError(suite.db.Preload("Items").Where("order_number = ?", number).First(&order).Error)
	assert.Equal(suite.T(), suite.customer.ID, order.UserID)
	assert.Equal(suite.T(), models.OrderStatusPending, order.Status)
	assert.Equal(suite.T(), "89125554433", order.Phone)
	assert.Equal(suite.T(), "customer@example.com", order.Email)
	assert.True(suite.T(), decimal.RequireFromString("33").Equal(order.TotalAmount))
	suite.Require().Len(order.Items, 2)
	for _, item := range order.Items {
		switch item.ProductID {
		case suite.honey.ID:
			assert.Equal(suite.T(), 2, item.Quantity)
			assert.True(suite.T(), decimal.RequireFromString("12.50").Equal(item.Price))
		case suite.candle.ID:
			assert.Equal(suite.T(), 2, item.Quantity)
			assert.True(suite.T(), decimal.RequireFromString("4.00").Equal(item.Price))
		default:
			suite.Failf("unexpected order item", "product %d", item.ProductID)
		}
	}

	var remaining int64
	suite.Require().NoError(suite.db.Model(&models.CartItem{}).Count(&remaining).Error)
	assert.Zero(suite.T(), remaining, "checkout empties the cart")

	keys, events := suite.publisher.published()
	assert.Equal(suite.T(), []string{services.EventOrderPlaced}, keys)
	suite.Require().Len(events, 1)
	assert.Equal(suite.T(), number, events[0].OrderNumber)
	assert.Equal(suite.T(), 2, events[0].ItemCount)
}

// TestCheckoutWithEmptyCart leaves no trace in the database
func (suite *OrderIntegrationTestSuite) TestCheckoutWithEmptyCart() {
	w, env := doJSON(suite.router, http.MethodPost, "/api/v1/orders", suite.checkoutForm(), nil)

	assert.Equal(suite.T(), http.StatusUnprocessableEntity, w.Code)
	assert.Equal(suite.T(), "EMPTY_CART", env.Error.Code)

	var orders int64
	suite.Require().NoError(suite.db.Model(&models.Order{}).Count(&orders).Error)
	assert.Zero(suite.T(), orders)

	keys, _ := suite.publisher.published()
	assert.Empty(suite.T(), keys)
}

// TestOrderNumbersAreUnique places several orders in a row
func (suite *OrderIntegrationTestSuite) TestOrderNumbersAreUnique() {
	seen := map[string]bool{}
	for i := 0; i < 5; i++ {
		w, _ := doJSON(suite.router, http.MethodPost, suite.itemPath(suite.honey), nil, nil)
		suite.Require().Equal(http.StatusOK, w.Code)

		number := suite.placeOrder()
		assert.False(suite.T(), seen[number], "duplicate order number %s", number)
		seen[number] = true
	}

	w, env := doJSON(suite.router, http.MethodGet, "/api/v1/orders", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var orders []models.Order
	suite.Require().NoError(json.Unmarshal(env.Data, &orders))
	assert.Len(suite.T(), orders, 5)
}

// TestPriceChangesDoNotAffectPlacedOrders checks the price snapshot
func (suite *OrderIntegrationTestSuite) TestPriceChangesDoNotAffectPlacedOrders() {
	w, _ := doJSON(suite.router, http.MethodPost, suite.itemPath(suite.honey), nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	number := suite.placeOrder()

	suite.Require().NoError(suite.db.Model(&suite.honey).Update("price", decimal.RequireFromString("20.00")).Error)

	w, env := doJSON(suite.router, http.MethodGet, "/api/v1/orders/"+number, nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var order models.Order
	suite.Require().NoError(json.Unmarshal(env.Data, &order))
	assert.True(suite.T(), decimal.RequireFromString("12.50").Equal(order.TotalAmount))
	suite.Require().Len(order.Items, 1)
	assert.True(suite.T(), decimal.RequireFromString("12.50").Equal(order.Items[0].Price))
	assert.True(suite.T(), decimal.RequireFromString("20").Equal(order.Items[0].Product.Price))
}

// TestOrdersAreScopedToTheirOwner hides orders from other customers
func (suite *OrderIntegrationTestSuite) TestOrdersAreScopedToTheirOwner() {
	w, _ := doJSON(suite.router, http.MethodPost, suite.itemPath(suite.candle), nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	number := suite.placeOrder()

	w, env := doJSON(suite.router, http.MethodGet, "/api/v1/neighbour/orders/"+number, nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "ORDER_NOT_FOUND", env.Error.Code)

	w, env = doJSON(suite.router, http.MethodGet, "/api/v1/neighbour/orders", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), "[]", string(env.Data))
}

// TestInactiveProductsStayOutOfTheCart covers products withdrawn from sale
func (suite *OrderIntegrationTestSuite) TestInactiveProductsStayOutOfTheCart() {
	suite.Require().NoError(suite.db.Model(&suite.candle).Update("is_active", false).Error)

	w, env := doJSON(suite.router, http.MethodPost, suite.itemPath(suite.candle), nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	assert.Equal(suite.T(), "PRODUCT_NOT_FOUND", env.Error.Code)
}

// TestAdminStatusFlow walks an order through fulfilment
func (suite *OrderIntegrationTestSuite) TestAdminStatusFlow() {
	w, _ := doJSON(suite.router, http.MethodPost, suite.itemPath(suite.honey), nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	number := suite.placeOrder()
	statusPath := "/api/v1/admin/orders/" + number + "/status"

	for _, status := range []string{"processing", "shipped", "delivered"} {
		w, env := doJSON(suite.router, http.MethodPatch, statusPath, map[string]string{"status": status}, nil)
		suite.Require().Equal(http.StatusOK, w.Code, w.Body.String())
		var order models.Order
		suite.Require().NoError(json.Unmarshal(env.Data, &order))
		assert.Equal(suite.T(), models.OrderStatus(status), order.Status)
	}

	w, env := doJSON(suite.router, http.MethodPatch, statusPath, map[string]string{"status": "cancelled"}, nil)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
	assert.Equal(suite.T(), "INVALID_STATUS_TRANSITION", env.Error.Code)

	w, env = doJSON(suite.router, http.MethodGet, "/api/v1/admin/orders?status=delivered", nil, nil)
	suite.Require().Equal(http.StatusOK, w.Code)
	var orders []models.Order
	suite.Require().NoError(json.Unmarshal(env.Data, &orders))
	suite.Require().Len(orders, 1)
	assert.Equal(suite.T(), number, orders[0].OrderNumber)
}

// TestOrderIntegrationTestSuite runs the test suite
func TestOrderIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(OrderIntegrationTestSuite))
}
