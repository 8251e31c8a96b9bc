package product

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusOutOfStock  = "Out of Stock"
	StatusOnlyOneLeft = "Only 1 left"
)

type Product struct {
	ID            string              `json:"id"`
	Name          string              `json:"name"`
	Description   *string             `json:"description"`
	Price         decimal.Decimal     `json:"price"`
	Stock         int                 `json:"stock"`
	BrandID       *string             `json:"brand_id"`
	CategoryID    *string             `json:"category_id"`
	Images        []string            `json:"images"`
	DiscountPrice decimal.NullDecimal `json:"discount_price"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

// WithStatus is a product decorated with its derived display badges.
type WithStatus struct {
	Product
	Status   string `json:"status,omitempty"`
	Discount string `json:"discount,omitempty"`
}

// EffectivePrice is the discount price when it is set and below the list price.
func (p Product) EffectivePrice() decimal.Decimal {
	if p.hasValidDiscount() {
		return p.DiscountPrice.Decimal
	}
	return p.Price
}

// PrimaryImage returns the first image reference, or "" when there is none.
func (p Product) PrimaryImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}

func (p Product) hasValidDiscount() bool {
	return p.DiscountPrice.Valid && p.DiscountPrice.Decimal.LessThan(p.Price)
}
