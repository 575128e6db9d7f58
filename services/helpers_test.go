package services

import (
	"bytes"
	"context"
	"mime/multipart"
	"strconv"
	"testing"

	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupServiceTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// every pooled connection to :memory: would get its own empty database
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

func createTestUser(t *testing.T, db *gorm.DB, email string) models.User {
	t.Helper()

	user := models.User{
		Username:     email,
		Email:        email,
		PasswordHash: "not-a-real-hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         models.RoleCustomer,
	}
	require.NoError(t, db.Create(&user).Error)
	return user
}

func createTestProduct(t *testing.T, db *gorm.DB, title, price string) models.Product {
	t.Helper()

	product := models.Product{
		Kind:             models.KindHoney,
		Title:            title,
		ShortDescription: title + " from the apiary",
		Price:            decimal.RequireFromString(price),
		Weight:           models.KindHoney.DefaultWeight(),
		IsActive:         true,
	}
	require.NoError(t, db.Create(&product).Error)
	return product
}

func deactivateProduct(t *testing.T, db *gorm.DB, product *models.Product) {
	t.Helper()
	require.NoError(t, db.Model(product).Update("is_active", false).Error)
}

func validOrderForm() OrderForm {
	return OrderForm{
		Phone:      "+7 (912) 345-67-89",
		Email:      "Buyer@Example.com",
		Address:    "12 Linden Street",
		City:       "Tula",
		PostalCode: "300000",
		Comment:    "Leave at the door",
	}
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, routingKey string, payload interface{}) error {
	args := m.Called(ctx, routingKey, payload)
	return args.Error(0)
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func testFileHeader(t *testing.T, filename string, content []byte) *multipart.FileHeader {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	form, err := multipart.NewReader(body, writer.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	require.Len(t, form.File["image"], 1)
	return form.File["image"][0]
}
