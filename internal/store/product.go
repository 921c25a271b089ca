package store

import (
	"database/sql"
	"fmt"

	"github.com/buscoapp/busco/internal/model"
)

type ProductStore struct {
	db *sql.DB
}

func NewProductStore(db *sql.DB) *ProductStore {
	return &ProductStore{db: db}
}

func scanProduct(scanner interface{ Scan(...any) error }) (*model.Product, error) {
	var p model.Product
	var createdBy sql.NullInt64

	err := scanner.Scan(
		&p.ID, &p.Name, &p.Brand, &p.Category, &p.SubCategory,
		&p.Unit, &p.UnitSize, &p.Barcode, &p.Image, &createdBy, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		p.CreatedBy = &createdBy.Int64
	}
	return &p, nil
}

const productCols = `id, name, brand, category, sub_category, unit, unit_size, barcode, image, created_by, created_at`

func (s *ProductStore) Create(p *model.Product) (*model.Product, error) {
	var createdBy sql.NullInt64
	if p.CreatedBy != nil {
		createdBy = sql.NullInt64{Int64: *p.CreatedBy, Valid: true}
	}

	result, err := s.db.Exec(
		`INSERT INTO products (name, brand, category, sub_category, unit, unit_size, barcode, image, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.Name, p.Brand, p.Category, p.SubCategory, p.Unit, p.UnitSize, p.Barcode, p.Image, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert product: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductStore) GetByID(id int64) (*model.Product, error) {
	row := s.db.QueryRow(`SELECT `+productCols+` FROM products WHERE id = ?`, id)
	p, err := scanProduct(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// List returns products, optionally filtered by exact category and a
// case-insensitive name substring.
func (s *ProductStore) List(category, search string) ([]model.Product, error) {
	query := `SELECT ` + productCols + ` FROM products`
	var conds []string
	var args []any

	if category != "" {
		conds = append(conds, `category = ?`)
		args = append(args, category)
	}
	if search != "" {
		conds = append(conds, `name LIKE ? COLLATE NOCASE`)
		args = append(args, "%"+search+"%")
	}
	for i, c := range conds {
		if i == 0 {
			query += ` WHERE ` + c
		} else {
			query += ` AND ` + c
		}
	}
	query += ` ORDER BY name ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	var products []model.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, *p)
	}
	return products, rows.Err()
}

func (s *ProductStore) Update(id int64, p *model.Product) (*model.Product, error) {
	_, err := s.db.Exec(
		`UPDATE products SET name = ?, brand = ?, category = ?, sub_category = ?,
		 unit = ?, unit_size = ?, barcode = ?, image = ? WHERE id = ?`,
		p.Name, p.Brand, p.Category, p.SubCategory, p.Unit, p.UnitSize, p.Barcode, p.Image, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}
	return s.GetByID(id)
}

func (s *ProductStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

// Exists reports whether a product with the given ID exists. Used to validate
// list items and price upserts before writing.
func (s *ProductStore) Exists(id int64) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM products WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("product exists: %w", err)
	}
	return true, nil
}
