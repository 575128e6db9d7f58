package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Quantity change directions accepted by ChangeQuantity
const (
	DirectionIncrement = "increment"
	DirectionDecrement = "decrement"
)

// MaxLineQuantity caps the quantity of a single cart line
const MaxLineQuantity = 1000

var errLineQuantityLimit = invalid("quantity", fmt.Sprintf("cannot exceed %d per product", MaxLineQuantity))

// CartView is the cart as shown to its owner
type CartView struct {
	Items []models.CartItem `json:"items"`
	Total decimal.Decimal   `json:"total"`
}

// CartService manages the persisted per-user cart
type CartService struct {
	db *gorm.DB
}

// NewCartService creates a cart service backed by db
func NewCartService(db *gorm.DB) *CartService {
	return &CartService{db: db}
}

// GetOrCreateCart returns the user's cart, creating an empty one on first use
func (s *CartService) GetOrCreateCart(ctx context.Context, userID uint) (*models.Cart, error) {
	return getOrCreateCart(s.db.WithContext(ctx), userID)
}

func getOrCreateCart(db *gorm.DB, userID uint) (*models.Cart, error) {
	cart := models.Cart{UserID: userID}
	err := db.Omit(clause.Associations).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&cart).Error
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	var existing models.Cart
	if err := db.Where("user_id = ?", userID).First(&existing).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	return &existing, nil
}

// findActiveProduct loads a product that is still on sale
func findActiveProduct(db *gorm.DB, productID uint) (*models.Product, error) {
	var product models.Product
	err := db.Where("id = ? AND is_active = ?", productID, true).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	return &product, nil
}

// Add puts one unit of an active product into the cart. Adding a product that is
// already there increments its quantity in the same statement.
func (s *CartService) Add(ctx context.Context, userID, productID uint) (*CartView, error) {
	db := s.db.WithContext(ctx)

	product, err := findActiveProduct(db, productID)
	if err != nil {
		return nil, err
	}
	cart, err := getOrCreateCart(db, userID)
	if err != nil {
		return nil, err
	}

	var current int64
	err = db.Model(&models.CartItem{}).
		Where("cart_id = ? AND product_id = ?", cart.ID, product.ID).
		Select("COALESCE(MAX(quantity), 0)").Scan(&current).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load cart item: %w", err)
	}
	if current >= MaxLineQuantity {
		return nil, errLineQuantityLimit
	}

	item := models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: 1}
	err = db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"quantity": gorm.Expr("CASE WHEN cart_items.quantity < ? THEN cart_items.quantity + 1 ELSE ? END",
				MaxLineQuantity, MaxLineQuantity),
			"updated_at": time.Now(),
		}),
	}).Create(&item).Error
	if err != nil {
		return nil, fmt.Errorf("failed to add item to cart: %w", err)
	}

	return listCart(db, cart.ID)
}

// Remove deletes the product's line from the cart. Removing a missing line is not an error.
func (s *CartService) Remove(ctx context.Context, userID, productID uint) (*CartView, error) {
	db := s.db.WithContext(ctx)

	cart, err := getOrCreateCart(db, userID)
	if err != nil {
		return nil, err
	}

	err = db.Where("cart_id = ? AND product_id = ?", cart.ID, productID).Delete(&models.CartItem{}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to remove item from cart: %w", err)
	}

	return listCart(db, cart.ID)
}

// ChangeQuantity moves a line's quantity up or down by one. The quantity never drops below 1.
func (s *CartService) ChangeQuantity(ctx context.Context, userID, productID uint, direction string) (*CartView, error) {
	var expr clause.Expr
	switch direction {
	case DirectionIncrement:
		expr = gorm.Expr("CASE WHEN quantity < ? THEN quantity + 1 ELSE ? END", MaxLineQuantity, MaxLineQuantity)
	case DirectionDecrement:
		expr = gorm.Expr("CASE WHEN quantity > 1 THEN quantity - 1 ELSE 1 END")
	default:
		return nil, invalid("direction", "must be increment or decrement")
	}

	db := s.db.WithContext(ctx)
	cart, err := getOrCreateCart(db, userID)
	if err != nil {
		return nil, err
	}

	var item models.CartItem
	err = db.Where("cart_id = ? AND product_id = ?", cart.ID, productID).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCartItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load cart item: %w", err)
	}
	if direction == DirectionIncrement && item.Quantity >= MaxLineQuantity {
		return nil, errLineQuantityLimit
	}

	err = db.Model(&item).Updates(map[string]interface{}{"quantity": expr, "updated_at": time.Now()}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update cart item: %w", err)
	}

	return listCart(db, cart.ID)
}

// List returns the cart lines with their products and the grand total
func (s *CartService) List(ctx context.Context, userID uint) (*CartView, error) {
	db := s.db.WithContext(ctx)

	cart, err := getOrCreateCart(db, userID)
	if err != nil {
		return nil, err
	}
	return listCart(db, cart.ID)
}

func loadCartItems(db *gorm.DB, cartID uint) ([]models.CartItem, error) {
	items := []models.CartItem{}
	if err := db.Preload("Product").Where("cart_id = ?", cartID).Order("id").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	return items, nil
}

func cartTotal(items []models.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func listCart(db *gorm.DB, cartID uint) (*CartView, error) {
	items, err := loadCartItems(db, cartID)
	if err != nil {
		return nil, err
	}
	return &CartView{Items: items, Total: cartTotal(items)}, nil
}

// MergeSessionCart copies an anonymous session cart into the user's cart.
// Entries with an unparsable id, an unknown or inactive product, or a
// quantity below 1 are skipped. Quantities above MaxLineQuantity are capped.
// A product already in the cart takes the session quantity. The returned
// session cart is always empty.
func (s *CartService) MergeSessionCart(ctx context.Context, userID uint, session SessionCart) (SessionCart, error) {
	if len(session) == 0 {
		return SessionCart{}, nil
	}

	db := s.db.WithContext(ctx)
	cart, err := getOrCreateCart(db, userID)
	if err != nil {
		return SessionCart{}, err
	}

	keys := make([]string, 0, len(session))
	for k := range session {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	log := logrus.WithField("user_id", userID)
	for _, key := range keys {
		qty := session[key]

		productID, err := strconv.ParseUint(key, 10, 64)
		if err != nil {
			log.WithField("product_id", key).Debug("Skipping session cart entry with invalid product id")
			continue
		}
		if qty < 1 {
			log.WithField("product_id", key).Debug("Skipping session cart entry with non-positive quantity")
			continue
		}

		if qty > MaxLineQuantity {
			qty = MaxLineQuantity
		}

		product, err := findActiveProduct(db, uint(productID))
		if errors.Is(err, ErrProductNotFound) {
			log.WithField("product_id", key).Debug("Skipping session cart entry for unavailable product")
			continue
		}
		if err != nil {
			return SessionCart{}, err
		}

		item := models.CartItem{CartID: cart.ID, ProductID: product.ID, Quantity: qty}
		err = db.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "cart_id"}, {Name: "product_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "updated_at"}),
		}).Create(&item).Error
		if err != nil {
			return SessionCart{}, fmt.Errorf("failed to merge session cart: %w", err)
		}
	}

	return SessionCart{}, nil
}
