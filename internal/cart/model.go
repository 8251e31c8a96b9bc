package cart

import (
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
)

// Item is one cart line. Price is the effective unit price locked when the
// product was first added.
type Item struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image"`
}

// State is the cart snapshot: lines in insertion order and their total.
type State struct {
	Items []Item          `json:"items"`
	Total decimal.Decimal `json:"total"`
}

func (s State) IsEmpty() bool {
	return len(s.Items) == 0
}

func (s State) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(s.Items))
	for _, it := range s.Items {
		lines = append(lines, pricing.Line{UnitPrice: it.Price, Quantity: it.Quantity})
	}
	return lines
}

// Summary derives subtotal, tax and total with tax from the current total.
func (s State) Summary() pricing.Summary {
	return pricing.Summarize(s.Total)
}

func (s State) clone() State {
	items := make([]Item, len(s.Items))
	copy(items, s.Items)
	return State{Items: items, Total: s.Total}
}

func (s *State) recompute() {
	s.Total = pricing.Subtotal(s.Lines())
}

func (s State) indexOf(id string) int {
	for i, it := range s.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
