package model

import (
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Finalization modes.
const (
	FinalizeSingle = "single"
	FinalizeBest   = "best"
)

// ValidFinalizeOption reports whether s is a recognized finalization mode.
func ValidFinalizeOption(s string) bool {
	return s == FinalizeSingle || s == FinalizeBest
}

// ListItem is one line of a shopping list. Product references are unique
// within a list; adding a product twice bumps the quantity instead.
type ListItem struct {
	ProductID int64           `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Product   *ProductSummary `json:"product,omitempty"`
}

// ShoppingList is an owner-scoped list of products. While open its items may
// be edited; finalizing freezes the items, stores a comparison snapshot, and
// turns the list into a checklist.
type ShoppingList struct {
	ID             int64               `json:"id"`
	UserID         int64               `json:"user_id"`
	Name           string              `json:"name"`
	Items          []ListItem          `json:"items"`
	Finalized      bool                `json:"finalized"`
	FinalizedAt    *time.Time          `json:"finalized_at"`
	FinalizeOption string              `json:"finalize_option,omitempty"`
	Comparison     *ComparisonSnapshot `json:"comparison_results,omitempty"`
	CheckedItems   map[string]bool     `json:"checked_items"`
	CreatedAt      time.Time           `json:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at"`
}

// Progress returns the checklist completion percentage, rounded to the
// nearest integer. A list with no items is vacuously complete.
func (l *ShoppingList) Progress() int {
	if len(l.Items) == 0 {
		return 100
	}
	checked := 0
	for _, item := range l.Items {
		if l.CheckedItems[strconv.FormatInt(item.ProductID, 10)] {
			checked++
		}
	}
	return int(math.Round(100 * float64(checked) / float64(len(l.Items))))
}

// PriceQuote is one market's offer for a product inside a comparison entry.
type PriceQuote struct {
	Market           MarketSummary   `json:"market"`
	Price            decimal.Decimal `json:"price"`
	IsPromotion      bool            `json:"is_promotion"`
	PromotionEndDate *time.Time      `json:"promotion_end_date,omitempty"`
}

// ComparisonEntry holds the quotes for a single product, cheapest first.
type ComparisonEntry struct {
	Product ProductSummary `json:"product"`
	Prices  []PriceQuote   `json:"prices"`
}

// ComparisonMap maps product ID to its comparison entry. Every requested
// product has an entry, possibly with no quotes.
type ComparisonMap map[int64]*ComparisonEntry

// LineItem is one list item costed at a particular market.
type LineItem struct {
	Product  ProductSummary  `json:"product"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// MarketTotal is one market's total for the list items it prices. Delta is
// the cost difference relative to the cheapest market in the ranking.
type MarketTotal struct {
	Market MarketSummary   `json:"market"`
	Total  decimal.Decimal `json:"total"`
	Delta  decimal.Decimal `json:"delta"`
	Items  []LineItem      `json:"items"`
}

// SplitPick assigns one list item to its cheapest market.
type SplitPick struct {
	Product  ProductSummary  `json:"product"`
	Market   MarketSummary   `json:"market"`
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// MarketGroup collects the split picks bought at one market.
type MarketGroup struct {
	Market   MarketSummary   `json:"market"`
	Items    []SplitPick     `json:"items"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Split is the best-per-product assignment across markets. TotalSavings is
// relative to the best single market and may be negative.
type Split struct {
	Items        []SplitPick     `json:"items"`
	Markets      []MarketGroup   `json:"markets"`
	Total        decimal.Decimal `json:"total"`
	TotalSavings decimal.Decimal `json:"total_savings"`
}

// ComparisonSnapshot is the value copy of comparison results frozen onto a
// list at finalization. Split is present only for mode "best".
type ComparisonSnapshot struct {
	Mode         string        `json:"mode"`
	Comparison   ComparisonMap `json:"comparison"`
	SingleMarket []MarketTotal `json:"single_market"`
	Split        *Split        `json:"split,omitempty"`
}
