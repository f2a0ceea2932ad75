// Package pricing computes the price shown to customers from the stored
// price and the discount configured for the product's category.
package pricing

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"catalog/internal/domain/model"
)

var hundred = decimal.NewFromInt(100)

// FinalPrice returns price minus the discount amount, where the amount
// price*discountPercent/100 is rounded half-up to two decimal places before
// subtracting. A zero discount returns price unchanged. Percentages outside
// [0,100] are not clamped.
func FinalPrice(price decimal.Decimal, discountPercent int) decimal.Decimal {
	discount := price.Mul(decimal.NewFromInt(int64(discountPercent))).Div(hundred).Round(2)
	return price.Sub(discount)
}

// CategoryNotFoundError is returned by RequireCategory.
type CategoryNotFoundError struct {
	Category string
	Allowed  []string
}

func (e *CategoryNotFoundError) Error() string {
	return fmt.Sprintf("category %s not found. Categories allowed: [%s]", e.Category, strings.Join(e.Allowed, ", "))
}

// DiscountTable is built once at startup and never mutated afterwards.
type DiscountTable struct {
	discounts map[string]int
	names     []string
}

func NewDiscountTable(discounts map[string]int) DiscountTable {
	t := DiscountTable{
		discounts: make(map[string]int, len(discounts)),
		names:     make([]string, 0, len(discounts)),
	}
	for name, pct := range discounts {
		t.discounts[name] = pct
		t.names = append(t.names, name)
	}
	sort.Strings(t.names)
	return t
}

// DiscountFor returns 0 for unknown categories.
func (t DiscountTable) DiscountFor(category string) int {
	return t.discounts[category]
}

func (t DiscountTable) Has(category string) bool {
	_, ok := t.discounts[category]
	return ok
}

// RequireCategory is used by write paths, where an unknown category must be rejected.
func (t DiscountTable) RequireCategory(category string) error {
	if t.Has(category) {
		return nil
	}
	return &CategoryNotFoundError{Category: category, Allowed: t.Categories()}
}

// Categories returns the sorted category names.
func (t DiscountTable) Categories() []string {
	out := make([]string, len(t.names))
	copy(out, t.names)
	return out
}

// Discounts returns a copy of the table.
func (t DiscountTable) Discounts() map[string]int {
	out := make(map[string]int, len(t.discounts))
	for k, v := range t.discounts {
		out[k] = v
	}
	return out
}

// Apply sets p.FinalPrice from its current price and category.
func (t DiscountTable) Apply(p *model.Product) {
	p.FinalPrice = FinalPrice(p.Price, t.DiscountFor(p.Category))
}

func (t DiscountTable) ApplyAll(products []model.Product) []model.Product {
	for i := range products {
		t.Apply(&products[i])
	}
	return products
}
