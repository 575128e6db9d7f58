package testutil

import (
	"net/url"
	"os"
	"testing"

	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// It fails the test immediately if GO_ENV is not "test".
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q.", env)
	}
}

// MustSetTestEnvironment sets GO_ENV to test. Use this in suite setup functions.
func MustSetTestEnvironment(t *testing.T) {
	t.Helper()
	t.Setenv("GO_ENV", "test")
	RequireTestEnvironment(t)
}

// NewTestDB opens a migrated in-memory sqlite database
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// :memory: is per connection
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// CreateUser inserts a user without a usable password
func CreateUser(t *testing.T, db *gorm.DB, email, role string) models.User {
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

// CreateProduct inserts an active product
func CreateProduct(t *testing.T, db *gorm.DB, kind models.ProductKind, title, price string) models.Product {
	t.Helper()

	product := models.Product{
		Kind:             kind,
		Title:            title,
		ShortDescription: title,
		Price:            decimal.RequireFromString(price),
		Weight:           kind.DefaultWeight(),
		IsActive:         true,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

// LogEnvironmentInfo logs the test environment configuration with credentials masked
func LogEnvironmentInfo() {
	logrus.WithFields(logrus.Fields{
		"go_env":       os.Getenv("GO_ENV"),
		"database_url": MaskDatabaseURL(os.Getenv("DATABASE_URL")),
		"redis_url":    MaskDatabaseURL(os.Getenv("REDIS_URL")),
	}).Info("Test environment")
}

// MaskDatabaseURL hides the password of a connection URL
func MaskDatabaseURL(raw string) string {
	if raw == "" {
		return "(not set)"
	}
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}
