package product

import (
	"strconv"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
)

// CalculateStatus derives the stock badge and the discount label. It never fails:
// a discount price at or above the list price is treated as absent.
func CalculateStatus(p Product) WithStatus {
	out := WithStatus{Product: p}

	switch {
	case p.Stock <= 0:
		out.Status = StatusOutOfStock
	case p.Stock == 1:
		out.Status = StatusOnlyOneLeft
	}

	if p.DiscountPrice.Valid {
		if pct, ok := pricing.DiscountPercent(p.Price, p.DiscountPrice.Decimal); ok {
			out.Discount = strconv.FormatInt(pct, 10) + "% OFF"
		}
	}

	return out
}

func CalculateStatuses(ps []Product) []WithStatus {
	out := make([]WithStatus, 0, len(ps))
	for _, p := range ps {
		out = append(out, CalculateStatus(p))
	}
	return out
}
