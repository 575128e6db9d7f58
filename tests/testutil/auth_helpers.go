package testutil

import (
	"strconv"
	"strings"
	"time"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/beehive-lane/honeyshop-api/config"
	"github.com/beehive-lane/honeyshop-api/middleware"
	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/beehive-lane/honeyshop-api/services"
	"github.com/gin-gonic/gin"
)

// MockValidatedClaims creates a mock ValidatedClaims for testing
func MockValidatedClaims(subject, role string, scopes []string) *validator.ValidatedClaims {
	return &validator.ValidatedClaims{
		RegisteredClaims: validator.RegisteredClaims{
			Issuer:  "honeyshop-api",
			Subject: subject,
		},
		CustomClaims: &middleware.CustomClaims{
			Scope: strings.Join(scopes, " "),
			Role:  role,
		},
	}
}

// SetMockAuthContext sets up a mock authenticated context for the given user
func SetMockAuthContext(c *gin.Context, userID uint, role string) {
	subject := strconv.FormatUint(uint64(userID), 10)
	scopes := []string{services.ScopeShop}
	if role == models.RoleAdmin {
		scopes = append(scopes, services.ScopeAdmin)
	}
	c.Set("user_id", subject)
	c.Set("validated_claims", MockValidatedClaims(subject, role, scopes))
}

// MockAuthMiddleware replaces token validation with a fixed identity
func MockAuthMiddleware(userID uint, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		SetMockAuthContext(c, userID, role)
		c.Next()
	}
}

// TestConfig returns a configuration suitable for in-process test servers
func TestConfig(uploadDir string) *config.Config {
	return &config.Config{
		Port:               "8080",
		GoEnv:              "test",
		JWTSecret:          "suite-test-secret",
		JWTIssuer:          "honeyshop-api",
		JWTAudience:        "honeyshop",
		TokenTTL:           time.Hour,
		SessionTTL:         time.Hour,
		UploadDir:          uploadDir,
		CORSAllowedOrigins: []string{"*"},
		LoginRatePerMinute: 100,
		LogLevel:           "error",
	}
}

// CreateTestContext creates a test Gin context
func CreateTestContext() (*gin.Context, *gin.Engine) {
	gin.SetMode(gin.TestMode)
	c, engine := gin.CreateTestContext(nil)
	return c, engine
}
