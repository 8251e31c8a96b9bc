// Package pricing holds the one order-total derivation shared by the cart summary,
// the checkout amount and the payment confirmation.
package pricing

import "github.com/shopspring/decimal"

// TaxRate is the fixed rate applied on top of every subtotal.
var TaxRate = decimal.RequireFromString("0.18")

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Line is a priced quantity, e.g. a cart line item.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

type Summary struct {
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	TotalWithTax decimal.Decimal `json:"totalWithTax"`
}

// Subtotal sums unit price times quantity over lines.
func Subtotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return total
}

// TotalWithTax returns subtotal * (1 + TaxRate), unrounded.
func TotalWithTax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(one.Add(TaxRate))
}

func Summarize(subtotal decimal.Decimal) Summary {
	total := TotalWithTax(subtotal)
	return Summary{
		Subtotal:     subtotal,
		Tax:          total.Sub(subtotal),
		TotalWithTax: total,
	}
}

// Rounded returns the summary rounded to two decimals for display.
func (s Summary) Rounded() Summary {
	return Summary{
		Subtotal:     Display(s.Subtotal),
		Tax:          Display(s.Tax),
		TotalWithTax: Display(s.TotalWithTax),
	}
}

// Display rounds an amount to two decimals, half away from zero.
func Display(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}

// MinorUnits converts an amount to the smallest currency unit (paise, cents).
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// OnlineRemainder is what is left to pay online when codAmount is paid on delivery.
func OnlineRemainder(totalWithTax, codAmount decimal.Decimal) decimal.Decimal {
	return totalWithTax.Sub(codAmount)
}

// DiscountPercent returns round(100 * (price - discounted) / price). ok is false when
// discounted is not strictly below a positive price.
func DiscountPercent(price, discounted decimal.Decimal) (percent int64, ok bool) {
	if !price.IsPositive() || !discounted.LessThan(price) {
		return 0, false
	}
	return price.Sub(discounted).Mul(hundred).Div(price).Round(0).IntPart(), true
}
