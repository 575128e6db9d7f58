package controllers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/beehive-lane/honeyshop-api/config"
	"github.com/beehive-lane/honeyshop-api/middleware"
	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/beehive-lane/honeyshop-api/utils"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testSessionID = "5f0c1c8e-3c4e-4a8b-9a51-0d3f6f1e2a77"

// setupTestDB installs a fresh in-memory database as the global connection
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))

	config.SetDB(db)
	t.Cleanup(func() { config.SetDB(nil) })
	return db
}

// setupTestServices installs fresh global services and returns the session store
func setupTestServices(t *testing.T) *services.MemorySessionStore {
	t.Helper()

	store := services.NewMemorySessionStore(time.Hour)
	services.SetSessionStore(store)
	services.SetPublisher(nil)
	services.InitTokenService(&config.Config{
		JWTSecret:   "controller-test-secret",
		JWTIssuer:   "honeyshop-api",
		JWTAudience: "honeyshop",
		TokenTTL:    time.Hour,
	})
	services.InitLocalImageService(t.TempDir())

	t.Cleanup(func() {
		services.SetSessionStore(nil)
		services.SetImageService(nil)
	})
	return store
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	utils.RegisterValidators()
	return gin.New()
}

// mockAuthMiddleware stands in for EnsureValidToken
func mockAuthMiddleware(userID uint, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		scope := services.ScopeShop
		if role == models.RoleAdmin {
			scope += " " + services.ScopeAdmin
		}
		c.Set("user_id", strconv.FormatUint(uint64(userID), 10))
		c.Set("validated_claims", &validator.ValidatedClaims{
			CustomClaims: &middleware.CustomClaims{Scope: scope, Role: role},
			RegisteredClaims: validator.RegisteredClaims{
				Subject: strconv.FormatUint(uint64(userID), 10),
			},
		})
		c.Next()
	}
}

func createTestUser(t *testing.T, db *gorm.DB, email, role string) models.User {
	t.Helper()

	user := models.User{
		Username:     email,
		Email:        email,
		PasswordHash: "not-a-real-hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         role,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createTestProduct(t *testing.T, db *gorm.DB, kind models.ProductKind, title, price string) models.Product {
	t.Helper()

	product := models.Product{
		Kind:             kind,
		Title:            title,
		ShortDescription: title + " from the apiary",
		Price:            decimal.RequireFromString(price),
		Weight:           kind.DefaultWeight(),
		IsActive:         true,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func performRequest(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response), w.Body.String())
	return response
}

// responseData returns the "data" object of a success envelope
func responseData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	response := decodeResponse(t, w)
	require.Equal(t, true, response["success"], w.Body.String())
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "data should be an object: %s", w.Body.String())
	return data
}

// errorCode returns error.code of a failure envelope
func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()

	response := decodeResponse(t, w)
	require.Equal(t, false, response["success"], w.Body.String())
	errObj, ok := response["error"].(map[string]interface{})
	require.True(t, ok, w.Body.String())
	code, _ := errObj["code"].(string)
	return code
}

func sessionHeader() map[string]string {
	return map[string]string{middleware.SessionHeader: testSessionID}
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func cartItemCount(t *testing.T, db *gorm.DB, userID uint) map[uint]int {
	t.Helper()

	var items []models.CartItem
	require.NoError(t, db.Joins("JOIN carts ON carts.id = cart_items.cart_id").
		Where("carts.user_id = ?", userID).Find(&items).Error)

	out := map[uint]int{}
	for _, item := range items {
		out[item.ProductID] = item.Quantity
	}
	return out
}
