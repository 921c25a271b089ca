package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Price is one market's current price for one product. At most one row
// exists per (product, market) pair; writes go through an upsert.
type Price struct {
	ID               int64           `json:"id"`
	ProductID        int64           `json:"product_id"`
	MarketID         int64           `json:"market_id"`
	Price            decimal.Decimal `json:"price"`
	IsPromotion      bool            `json:"is_promotion"`
	PromotionEndDate *time.Time      `json:"promotion_end_date"`
	UpdatedBy        *int64          `json:"updated_by"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// PriceEntry is a price joined with its product and market for display.
type PriceEntry struct {
	Price
	Product ProductSummary `json:"product"`
	Market  MarketSummary  `json:"market"`
}
