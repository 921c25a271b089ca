package store

import (
	"database/sql"
	"fmt"

	"github.com/buscoapp/busco/internal/model"
)

type MarketStore struct {
	db *sql.DB
}

func NewMarketStore(db *sql.DB) *MarketStore {
	return &MarketStore{db: db}
}

func scanMarket(scanner interface{ Scan(...any) error }) (*model.Market, error) {
	var m model.Market
	var active int

	err := scanner.Scan(
		&m.ID, &m.Name,
		&m.Address.Street, &m.Address.Number, &m.Address.Neighborhood,
		&m.Address.City, &m.Address.State, &m.Address.ZipCode,
		&m.Phone, &active, &m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	m.Active = active != 0
	return &m, nil
}

const marketCols = `id, name, street, number, neighborhood, city, state, zip_code, phone, active, created_at`

func (s *MarketStore) Create(m *model.Market) (*model.Market, error) {
	result, err := s.db.Exec(
		`INSERT INTO markets (name, street, number, neighborhood, city, state, zip_code, phone)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, m.Address.Street, m.Address.Number, m.Address.Neighborhood,
		m.Address.City, m.Address.State, m.Address.ZipCode, m.Phone,
	)
	if err != nil {
		return nil, fmt.Errorf("insert market: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *MarketStore) GetByID(id int64) (*model.Market, error) {
	row := s.db.QueryRow(`SELECT `+marketCols+` FROM markets WHERE id = ?`, id)
	m, err := scanMarket(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get market: %w", err)
	}
	return m, nil
}

// List returns markets ordered by name. With activeOnly, deactivated markets
// are excluded (the default listing the original exposes).
func (s *MarketStore) List(activeOnly bool) ([]model.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		markets = append(markets, *m)
	}
	return markets, rows.Err()
}

func (s *MarketStore) Update(id int64, m *model.Market) (*model.Market, error) {
	_, err := s.db.Exec(
		`UPDATE markets SET name = ?, street = ?, number = ?, neighborhood = ?,
		 city = ?, state = ?, zip_code = ?, phone = ? WHERE id = ?`,
		m.Name, m.Address.Street, m.Address.Number, m.Address.Neighborhood,
		m.Address.City, m.Address.State, m.Address.ZipCode, m.Phone, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update market: %w", err)
	}
	return s.GetByID(id)
}

// Deactivate soft-deletes a market. Its rows and prices remain; it drops out
// of default listings.
func (s *MarketStore) Deactivate(id int64) (*model.Market, error) {
	_, err := s.db.Exec(`UPDATE markets SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("deactivate market: %w", err)
	}
	return s.GetByID(id)
}
