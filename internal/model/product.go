package model

import "time"

// Units of measure accepted for products.
const (
	UnitPiece      = "un"
	UnitKilogram   = "kg"
	UnitGram       = "g"
	UnitMilliliter = "ml"
	UnitLiter      = "l"
)

// ValidUnit reports whether s is one of the accepted units of measure.
func ValidUnit(s string) bool {
	switch s {
	case UnitPiece, UnitKilogram, UnitGram, UnitMilliliter, UnitLiter:
		return true
	}
	return false
}

type Product struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Brand       string    `json:"brand"`
	Category    string    `json:"category"`
	SubCategory string    `json:"sub_category"`
	Unit        string    `json:"unit"`
	UnitSize    float64   `json:"unit_size"`
	Barcode     string    `json:"barcode"`
	Image       string    `json:"image"`
	CreatedBy   *int64    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary returns the denormalized view embedded in prices and snapshots.
func (p *Product) Summary() ProductSummary {
	return ProductSummary{
		ID:       p.ID,
		Name:     p.Name,
		Brand:    p.Brand,
		Category: p.Category,
		Unit:     p.Unit,
		UnitSize: p.UnitSize,
	}
}

// ProductSummary carries enough product fields for display alongside a price.
type ProductSummary struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Brand    string  `json:"brand"`
	Category string  `json:"category"`
	Unit     string  `json:"unit"`
	UnitSize float64 `json:"unit_size"`
}
