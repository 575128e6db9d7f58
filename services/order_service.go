package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beehive-lane/honeyshop-api/metrics"
	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/beehive-lane/honeyshop-api/utils"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	maxOrderNumberAttempts = 5
	shortOrderNumberTries  = 3
	shortOrderNumberLength = 8
	longOrderNumberLength  = 16
)

// OrderForm holds the delivery details entered at checkout
type OrderForm struct {
	Phone      string `json:"phone" binding:"required,phone"`
	Email      string `json:"email" binding:"required,email"`
	Address    string `json:"address" binding:"required"`
	City       string `json:"city" binding:"required,max=100"`
	PostalCode string `json:"postal_code" binding:"required,postal_code"`
	Comment    string `json:"comment"`
}

// normalize trims the form, strips phone formatting and validates every field
func (f *OrderForm) normalize() error {
	f.Phone = utils.NormalizePhone(f.Phone)
	f.Email = normalizeEmail(f.Email)
	f.Address = strings.TrimSpace(f.Address)
	f.City = strings.TrimSpace(f.City)
	f.PostalCode = strings.TrimSpace(f.PostalCode)
	f.Comment = strings.TrimSpace(f.Comment)

	if !utils.IsValidPhone(f.Phone) {
		return invalid("phone", "must contain 9 to 15 digits with an optional leading +")
	}
	if err := validateEmail(f.Email); err != nil {
		return err
	}
	if f.Address == "" {
		return invalid("address", "is required")
	}
	if f.City == "" {
		return invalid("city", "is required")
	}
	if !utils.IsValidPostalCode(f.PostalCode) {
		return invalid("postal_code", "must be exactly 6 digits")
	}
	return nil
}

// newOrderNumber returns "ORD-" followed by length uppercase hex characters
var newOrderNumber = func(length int) string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
	return "ORD-" + hex[:length]
}

var errOrderNumberTaken = errors.New("order number already in use")

// maxOrderTotal is the largest amount a decimal(10,2) total column holds
var maxOrderTotal = decimal.RequireFromString("99999999.99")

// OrderService turns carts into orders and reads them back
type OrderService struct {
	db        *gorm.DB
	publisher Publisher
}

// NewOrderService creates an order service. A nil publisher falls back to the global one.
func NewOrderService(db *gorm.DB, publisher Publisher) *OrderService {
	if publisher == nil {
		publisher = GetPublisher()
	}
	return &OrderService{db: db, publisher: publisher}
}

// PlaceOrder copies the user's cart into a new pending order and empties the cart.
// The order, its items and the cart cleanup commit together. An order number
// collision retries the whole transaction with a fresh number.
func (s *OrderService) PlaceOrder(ctx context.Context, userID uint, form OrderForm) (*models.Order, error) {
	if err := form.normalize(); err != nil {
		return nil, err
	}

	log := logrus.WithField("user_id", userID)

	var order *models.Order
	for attempt := 1; attempt <= maxOrderNumberAttempts; attempt++ {
		length := shortOrderNumberLength
		if attempt > shortOrderNumberTries {
			length = longOrderNumberLength
		}

		placed, err := s.placeOnce(ctx, userID, form, newOrderNumber(length))
		if err == nil {
			order = placed
			break
		}
		if !errors.Is(err, errOrderNumberTaken) {
			return nil, err
		}

		metrics.OrderNumberCollisions.Inc()
		log.WithField("attempt", attempt).Warn("Order number collision, retrying")
	}
	if order == nil {
		return nil, ErrDuplicate
	}

	metrics.OrdersPlaced.Inc()
	log.WithFields(logrus.Fields{
		"order_number": order.OrderNumber,
		"total":        order.TotalAmount.StringFixed(2),
	}).Info("Order placed")

	event := OrderPlacedEvent{
		OrderNumber: order.OrderNumber,
		UserID:      order.UserID,
		Email:       order.Email,
		TotalAmount: order.TotalAmount,
		ItemCount:   len(order.Items),
		PlacedAt:    order.CreatedAt,
	}
	if err := s.publisher.Publish(ctx, EventOrderPlaced, event); err != nil {
		log.WithError(err).Error("Failed to publish order placed event")
	}

	return order, nil
}

func (s *OrderService) placeOnce(ctx context.Context, userID uint, form OrderForm, orderNumber string) (*models.Order, error) {
	var order models.Order

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := getOrCreateCart(tx, userID)
		if err != nil {
			return err
		}
		items, err := loadCartItems(tx, cart.ID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrEmptyCart
		}
		total := cartTotal(items)
		if total.GreaterThan(maxOrderTotal) {
			return invalid("total", "order total cannot exceed "+maxOrderTotal.StringFixed(2))
		}

		order = models.Order{
			UserID:      userID,
			OrderNumber: orderNumber,
			Phone:       form.Phone,
			Email:       form.Email,
			Address:     form.Address,
			City:        form.City,
			PostalCode:  form.PostalCode,
			Comment:     form.Comment,
			Status:      models.OrderStatusPending,
			TotalAmount: total,
		}
		if err := tx.Omit(clause.Associations).Create(&order).Error; err != nil {
			if isDuplicateKeyError(err) {
				return errOrderNumberTaken
			}
			return fmt.Errorf("failed to create order: %w", err)
		}

		orderItems := make([]models.OrderItem, 0, len(items))
		for _, item := range items {
			orderItems = append(orderItems, models.OrderItem{
				OrderID:   order.ID,
				ProductID: item.ProductID,
				Quantity:  item.Quantity,
				Price:     item.Product.Price,
			})
		}
		if err := tx.Omit(clause.Associations).Create(&orderItems).Error; err != nil {
			return fmt.Errorf("failed to create order items: %w", err)
		}

		if err := tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error; err != nil {
			return fmt.Errorf("failed to clear cart: %w", err)
		}

		for i := range orderItems {
			orderItems[i].Product = items[i].Product
		}
		order.Items = orderItems
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders returns the user's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID uint) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// GetOrder returns one of the user's orders by number. Orders of other users are not found.
func (s *OrderService) GetOrder(ctx context.Context, userID uint, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := s.db.WithContext(ctx).
		Preload("Items.Product").
		Where("user_id = ? AND order_number = ?", userID, orderNumber).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}

// OrderFormDefaults pre-fills the checkout form from the user's profile
func (s *OrderService) OrderFormDefaults(ctx context.Context, userID uint) (*OrderForm, error) {
	db := s.db.WithContext(ctx)

	user, err := findUser(db, userID)
	if err != nil {
		return nil, err
	}
	profile, err := getOrCreateProfile(db, userID)
	if err != nil {
		return nil, err
	}

	phone := ""
	if profile.Phone != nil {
		phone = *profile.Phone
	}
	return &OrderForm{
		Phone:      phone,
		Email:      user.Email,
		Address:    profile.Address,
		City:       profile.City,
		PostalCode: profile.PostalCode,
	}, nil
}

// ListAllOrders returns every order, optionally filtered by status, newest first
func (s *OrderService) ListAllOrders(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	query := s.db.WithContext(ctx).Preload("Items.Product").Order("created_at DESC, id DESC")
	if status != "" {
		if !status.Valid() {
			return nil, invalid("status", "unknown order status")
		}
		query = query.Where("status = ?", status)
	}

	orders := []models.Order{}
	if err := query.Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateStatus moves an order to next if the status machine allows it
func (s *OrderService) UpdateStatus(ctx context.Context, orderNumber string, next models.OrderStatus) (*models.Order, error) {
	if !next.Valid() {
		return nil, invalid("status", "unknown order status")
	}

	db := s.db.WithContext(ctx)
	var order models.Order
	err := db.Where("order_number = ?", orderNumber).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}

	if !order.Status.CanTransitionTo(next) {
		return nil, ErrInvalidTransition
	}

	err = db.Model(&order).Updates(map[string]interface{}{"status": next, "updated_at": time.Now()}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update order status: %w", err)
	}

	logrus.WithFields(logrus.Fields{"order_number": orderNumber, "status": next}).Info("Order status changed")
	if err := db.Preload("Items.Product").First(&order, order.ID).Error; err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return &order, nil
}
