package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProductKind tags the two product lines sold by the shop
type ProductKind string

const (
	KindHoney  ProductKind = "honey"
	KindCandle ProductKind = "candle"
)

// Valid reports whether k is one of the known product kinds
func (k ProductKind) Valid() bool {
	return k == KindHoney || k == KindCandle
}

// DefaultWeight is the weight label used when none is given
func (k ProductKind) DefaultWeight() string {
	if k == KindCandle {
		return "100г"
	}
	return "1000P"
}

// Product is a catalog entry: a jar of honey or a wax candle
type Product struct {
	ID                  uint            `gorm:"primaryKey" json:"id"`
	Kind                ProductKind     `gorm:"not null;size:20;index" json:"kind"`
	Title               string          `gorm:"not null;size:200" json:"title"`
	ShortDescription    string          `gorm:"not null;size:300" json:"short_description"`
	DetailedDescription string          `gorm:"type:text" json:"detailed_description"`
	Price               decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Weight              string          `gorm:"size:50" json:"weight"`
	ImageKey            string          `json:"-"`
	ImageURL            string          `gorm:"-" json:"image_url,omitempty"` // computed field, resolved by the image service
	IsActive            bool            `gorm:"not null;default:true;index" json:"is_active"`
	IsFeatured          bool            `gorm:"not null;default:false" json:"is_featured"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// TableName specifies the table name for the Product model
func (Product) TableName() string {
	return "products"
}
