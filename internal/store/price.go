package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/buscoapp/busco/internal/model"

	"github.com/shopspring/decimal"
)

type PriceStore struct {
	db *sql.DB
}

func NewPriceStore(db *sql.DB) *PriceStore {
	return &PriceStore{db: db}
}

func scanPriceEntry(scanner interface{ Scan(...any) error }) (*model.PriceEntry, error) {
	var e model.PriceEntry
	var promoEnd sql.NullTime
	var updatedBy sql.NullInt64
	var isPromotion int

	err := scanner.Scan(
		&e.ID, &e.ProductID, &e.MarketID, &e.Price.Price, &isPromotion,
		&promoEnd, &updatedBy, &e.UpdatedAt,
		&e.Product.Name, &e.Product.Brand, &e.Product.Category,
		&e.Product.Unit, &e.Product.UnitSize,
		&e.Market.Name,
		&e.Market.Address.Street, &e.Market.Address.Number,
		&e.Market.Address.Neighborhood, &e.Market.Address.City,
		&e.Market.Address.State, &e.Market.Address.ZipCode,
	)
	if err != nil {
		return nil, err
	}

	e.IsPromotion = isPromotion != 0
	if promoEnd.Valid {
		e.PromotionEndDate = &promoEnd.Time
	}
	if updatedBy.Valid {
		e.UpdatedBy = &updatedBy.Int64
	}
	e.Product.ID = e.ProductID
	e.Market.ID = e.MarketID
	return &e, nil
}

const priceEntryCols = `p.id, p.product_id, p.market_id, p.price, p.is_promotion,
	p.promotion_end_date, p.updated_by, p.updated_at,
	pr.name, pr.brand, pr.category, pr.unit, pr.unit_size,
	m.name, m.street, m.number, m.neighborhood, m.city, m.state, m.zip_code`

const priceEntryJoins = ` FROM prices p
	JOIN products pr ON pr.id = p.product_id
	JOIN markets m ON m.id = p.market_id`

// Upsert writes the single price row for a (product, market) pair, replacing
// any existing value. It returns the stored entry and whether a new row was
// created.
func (s *PriceStore) Upsert(productID, marketID int64, price decimal.Decimal, isPromotion bool, promotionEndDate *time.Time, updatedBy *int64) (*model.PriceEntry, bool, error) {
	var existingID int64
	err := s.db.QueryRow(
		`SELECT id FROM prices WHERE product_id = ? AND market_id = ?`,
		productID, marketID,
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return nil, false, fmt.Errorf("lookup price: %w", err)
	}
	created := err == sql.ErrNoRows

	var promoEnd sql.NullTime
	if promotionEndDate != nil {
		promoEnd = sql.NullTime{Time: *promotionEndDate, Valid: true}
	}
	var updBy sql.NullInt64
	if updatedBy != nil {
		updBy = sql.NullInt64{Int64: *updatedBy, Valid: true}
	}

	_, err = s.db.Exec(
		`INSERT INTO prices (product_id, market_id, price, is_promotion, promotion_end_date, updated_by, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(product_id, market_id) DO UPDATE SET
			price = excluded.price,
			is_promotion = excluded.is_promotion,
			promotion_end_date = excluded.promotion_end_date,
			updated_by = excluded.updated_by,
			updated_at = excluded.updated_at`,
		productID, marketID, price, boolToInt(isPromotion), promoEnd, updBy, time.Now().UTC(),
	)
	if err != nil {
		return nil, false, fmt.Errorf("upsert price: %w", err)
	}

	entry, err := s.GetByProductAndMarket(productID, marketID)
	if err != nil {
		return nil, false, err
	}
	return entry, created, nil
}

func (s *PriceStore) GetByProductAndMarket(productID, marketID int64) (*model.PriceEntry, error) {
	row := s.db.QueryRow(
		`SELECT `+priceEntryCols+priceEntryJoins+` WHERE p.product_id = ? AND p.market_id = ?`,
		productID, marketID,
	)
	e, err := scanPriceEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}
	return e, nil
}

// ListByProduct returns a product's prices across all markets, cheapest first.
func (s *PriceStore) ListByProduct(productID int64) ([]model.PriceEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+priceEntryCols+priceEntryJoins+
			` WHERE p.product_id = ? ORDER BY CAST(p.price AS REAL) ASC, m.name ASC`,
		productID,
	)
	if err != nil {
		return nil, fmt.Errorf("list prices by product: %w", err)
	}
	return collectPriceEntries(rows)
}

// ListByMarket returns every product a market prices.
func (s *PriceStore) ListByMarket(marketID int64) ([]model.PriceEntry, error) {
	rows, err := s.db.Query(
		`SELECT `+priceEntryCols+priceEntryJoins+` WHERE p.market_id = ? ORDER BY pr.name ASC`,
		marketID,
	)
	if err != nil {
		return nil, fmt.Errorf("list prices by market: %w", err)
	}
	return collectPriceEntries(rows)
}

// ListForProducts returns all price rows referencing any of the given
// products, the candidate set the comparison engine consumes.
func (s *PriceStore) ListForProducts(productIDs []int64) ([]model.PriceEntry, error) {
	if len(productIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(productIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}

	rows, err := s.db.Query(
		`SELECT `+priceEntryCols+priceEntryJoins+
			` WHERE p.product_id IN (`+placeholders+`) ORDER BY p.product_id ASC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list prices for products: %w", err)
	}
	return collectPriceEntries(rows)
}

func collectPriceEntries(rows *sql.Rows) ([]model.PriceEntry, error) {
	defer rows.Close()

	var entries []model.PriceEntry
	for rows.Next() {
		e, err := scanPriceEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
