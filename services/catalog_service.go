package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"strings"

	"github.com/beehive-lane/honeyshop-api/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var maxPrice = decimal.RequireFromString("99999999.99")

// ProductFilter narrows a catalog listing
type ProductFilter struct {
	Kind         models.ProductKind
	FeaturedOnly bool
}

// ProductForm is the admin payload for a new product (multipart form)
type ProductForm struct {
	Kind                string `form:"kind" binding:"required,oneof=honey candle"`
	Title               string `form:"title" binding:"required,max=200"`
	ShortDescription    string `form:"short_description" binding:"required,max=300"`
	DetailedDescription string `form:"detailed_description"`
	Price               string `form:"price" binding:"required"`
	Weight              string `form:"weight" binding:"omitempty,max=50"`
	IsFeatured          bool   `form:"is_featured"`
}

// ProductUpdate is a partial admin update. Nil fields are left unchanged.
type ProductUpdate struct {
	Title               *string `json:"title" binding:"omitempty,max=200"`
	ShortDescription    *string `json:"short_description" binding:"omitempty,max=300"`
	DetailedDescription *string `json:"detailed_description"`
	Price               *string `json:"price"`
	Weight              *string `json:"weight" binding:"omitempty,max=50"`
	IsActive            *bool   `json:"is_active"`
	IsFeatured          *bool   `json:"is_featured"`
}

// CatalogService reads and maintains the product catalog
type CatalogService struct {
	db     *gorm.DB
	images ImageService
}

// NewCatalogService creates a catalog service. A nil image service falls back to the global one.
func NewCatalogService(db *gorm.DB, images ImageService) *CatalogService {
	if images == nil {
		images = GetImageService()
	}
	return &CatalogService{db: db, images: images}
}

func parsePrice(raw string) (decimal.Decimal, error) {
	price, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, invalid("price", "must be a decimal number")
	}
	if !price.IsPositive() || price.GreaterThan(maxPrice) {
		return decimal.Zero, invalid("price", "must be between 0.01 and 99999999.99")
	}
	if !price.Equal(price.Round(2)) {
		return decimal.Zero, invalid("price", "must have at most two decimal places")
	}
	return price, nil
}

func (s *CatalogService) resolveImage(p *models.Product) {
	if s.images == nil || p.ImageKey == "" {
		return
	}
	url, err := s.images.GetImageURL(p.ImageKey)
	if err != nil {
		logrus.WithError(err).WithField("product_id", p.ID).Warn("Failed to resolve image URL")
		return
	}
	p.ImageURL = url
}

// ListProducts returns active products, featured first then newest
func (s *CatalogService) ListProducts(ctx context.Context, filter ProductFilter) ([]models.Product, error) {
	query := s.db.WithContext(ctx).Where("is_active = ?", true)
	if filter.Kind != "" {
		if !filter.Kind.Valid() {
			return nil, invalid("kind", "must be honey or candle")
		}
		query = query.Where("kind = ?", filter.Kind)
	}
	if filter.FeaturedOnly {
		query = query.Where("is_featured = ?", true)
	}

	products := []models.Product{}
	if err := query.Order("is_featured DESC, created_at DESC, id DESC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	for i := range products {
		s.resolveImage(&products[i])
	}
	return products, nil
}

// GetProduct returns an active product
func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	product, err := findActiveProduct(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	s.resolveImage(product)
	return product, nil
}

// CreateProduct adds a product, uploading its image first when one is given
func (s *CatalogService) CreateProduct(ctx context.Context, form ProductForm, image *multipart.FileHeader) (*models.Product, error) {
	kind := models.ProductKind(form.Kind)
	if !kind.Valid() {
		return nil, invalid("kind", "must be honey or candle")
	}
	price, err := parsePrice(form.Price)
	if err != nil {
		return nil, err
	}
	title := strings.TrimSpace(form.Title)
	if title == "" {
		return nil, invalid("title", "is required")
	}

	weight := strings.TrimSpace(form.Weight)
	if weight == "" {
		weight = kind.DefaultWeight()
	}

	product := models.Product{
		Kind:                kind,
		Title:               title,
		ShortDescription:    strings.TrimSpace(form.ShortDescription),
		DetailedDescription: strings.TrimSpace(form.DetailedDescription),
		Price:               price,
		Weight:              weight,
		IsActive:            true,
		IsFeatured:          form.IsFeatured,
	}

	if image != nil {
		if s.images == nil {
			return nil, errors.New("image storage is not configured")
		}
		key, err := s.images.UploadImage(image)
		if err != nil {
			return nil, err
		}
		product.ImageKey = key
	}

	if err := s.db.WithContext(ctx).Create(&product).Error; err != nil {
		if product.ImageKey != "" {
			if delErr := s.images.DeleteImage(product.ImageKey); delErr != nil {
				logrus.WithError(delErr).Warn("Failed to delete orphaned product image")
			}
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	logrus.WithFields(logrus.Fields{"product_id": product.ID, "kind": product.Kind}).Info("Product created")
	s.resolveImage(&product)
	return &product, nil
}

// UpdateProduct changes price, text or flags of any product, active or not
func (s *CatalogService) UpdateProduct(ctx context.Context, id uint, update ProductUpdate) (*models.Product, error) {
	db := s.db.WithContext(ctx)

	var product models.Product
	err := db.First(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProductNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	changes := map[string]interface{}{}
	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, invalid("title", "cannot be empty")
		}
		changes["title"] = title
	}
	if update.ShortDescription != nil {
		changes["short_description"] = strings.TrimSpace(*update.ShortDescription)
	}
	if update.DetailedDescription != nil {
		changes["detailed_description"] = strings.TrimSpace(*update.DetailedDescription)
	}
	if update.Price != nil {
		price, err := parsePrice(*update.Price)
		if err != nil {
			return nil, err
		}
		changes["price"] = price
	}
	if update.Weight != nil {
		changes["weight"] = strings.TrimSpace(*update.Weight)
	}
	if update.IsActive != nil {
		changes["is_active"] = *update.IsActive
	}
	if update.IsFeatured != nil {
		changes["is_featured"] = *update.IsFeatured
	}

	if len(changes) > 0 {
		if err := db.Model(&product).Updates(changes).Error; err != nil {
			return nil, fmt.Errorf("failed to update product: %w", err)
		}
	}
	if err := db.First(&product, id).Error; err != nil {
		return nil, fmt.Errorf("failed to load product: %w", err)
	}

	s.resolveImage(&product)
	return &product, nil
}
