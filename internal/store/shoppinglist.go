package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/buscoapp/busco/internal/model"
)

// Lifecycle violations surfaced to handlers as InvalidState.
var (
	ErrListFinalized    = errors.New("shopping list is finalized")
	ErrListNotFinalized = errors.New("shopping list is not finalized")
)

type ShoppingListStore struct {
	db *sql.DB
}

func NewShoppingListStore(db *sql.DB) *ShoppingListStore {
	return &ShoppingListStore{db: db}
}

func scanShoppingList(scanner interface{ Scan(...any) error }) (*model.ShoppingList, error) {
	var l model.ShoppingList
	var finalized int
	var finalizedAt sql.NullTime
	var comparison sql.NullString
	var checked string

	err := scanner.Scan(
		&l.ID, &l.UserID, &l.Name, &finalized, &finalizedAt,
		&l.FinalizeOption, &comparison, &checked, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Finalized = finalized != 0
	if finalizedAt.Valid {
		l.FinalizedAt = &finalizedAt.Time
	}
	if comparison.Valid && comparison.String != "" {
		var snap model.ComparisonSnapshot
		if err := json.Unmarshal([]byte(comparison.String), &snap); err != nil {
			return nil, fmt.Errorf("decode comparison snapshot: %w", err)
		}
		l.Comparison = &snap
	}
	l.CheckedItems = make(map[string]bool)
	if checked != "" {
		if err := json.Unmarshal([]byte(checked), &l.CheckedItems); err != nil {
			return nil, fmt.Errorf("decode checked items: %w", err)
		}
	}
	return &l, nil
}

const listCols = `id, user_id, name, finalized, finalized_at, finalize_option, comparison_results, checked_items, created_at, updated_at`

// Create inserts a list with its initial items. Duplicate product references
// in the input are merged by summing quantities.
func (s *ShoppingListStore) Create(userID int64, name string, items []model.ListItem) (*model.ShoppingList, error) {
	if name == "" {
		name = "Minha Lista"
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`INSERT INTO shopping_lists (user_id, name) VALUES (?, ?)`, userID, name)
	if err != nil {
		return nil, fmt.Errorf("insert list: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	if err := insertItems(tx, id, items); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id, userID)
}

func insertItems(tx *sql.Tx, listID int64, items []model.ListItem) error {
	for _, item := range items {
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		_, err := tx.Exec(
			`INSERT INTO shopping_list_items (list_id, product_id, quantity) VALUES (?, ?, ?)
			 ON CONFLICT(list_id, product_id) DO UPDATE SET quantity = quantity + excluded.quantity`,
			listID, item.ProductID, qty,
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
	}
	return nil
}

// GetByID loads a list with its items. Lists belonging to other users are
// invisible: the result is nil, same as a missing list.
func (s *ShoppingListStore) GetByID(id, userID int64) (*model.ShoppingList, error) {
	row := s.db.QueryRow(
		`SELECT `+listCols+` FROM shopping_lists WHERE id = ? AND user_id = ?`,
		id, userID,
	)
	l, err := scanShoppingList(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}

	if l.Items, err = s.loadItems(id); err != nil {
		return nil, err
	}
	return l, nil
}

func (s *ShoppingListStore) loadItems(listID int64) ([]model.ListItem, error) {
	rows, err := s.db.Query(
		`SELECT i.product_id, i.quantity, p.name, p.brand, p.category, p.unit, p.unit_size
		 FROM shopping_list_items i
		 JOIN products p ON p.id = i.product_id
		 WHERE i.list_id = ?
		 ORDER BY i.created_at ASC, i.id ASC`,
		listID,
	)
	if err != nil {
		return nil, fmt.Errorf("load items: %w", err)
	}
	defer rows.Close()

	items := []model.ListItem{}
	for rows.Next() {
		var item model.ListItem
		var ps model.ProductSummary
		err := rows.Scan(&item.ProductID, &item.Quantity, &ps.Name, &ps.Brand, &ps.Category, &ps.Unit, &ps.UnitSize)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		ps.ID = item.ProductID
		item.Product = &ps
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *ShoppingListStore) ListByUser(userID int64) ([]model.ShoppingList, error) {
	rows, err := s.db.Query(
		`SELECT `+listCols+` FROM shopping_lists WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []model.ShoppingList
	for rows.Next() {
		l, err := scanShoppingList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range lists {
		if lists[i].Items, err = s.loadItems(lists[i].ID); err != nil {
			return nil, err
		}
	}
	return lists, nil
}

// Update replaces the list's name and, while open, its items. Replacing items
// on a finalized list fails with ErrListFinalized.
func (s *ShoppingListStore) Update(id, userID int64, name string, items []model.ListItem) (*model.ShoppingList, error) {
	existing, err := s.GetByID(id, userID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}
	if items != nil && existing.Finalized {
		return nil, ErrListFinalized
	}
	if name == "" {
		name = existing.Name
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`UPDATE shopping_lists SET name = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update list: %w", err)
	}

	if items != nil {
		if _, err := tx.Exec(`DELETE FROM shopping_list_items WHERE list_id = ?`, id); err != nil {
			return nil, fmt.Errorf("clear items: %w", err)
		}
		if err := insertItems(tx, id, items); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id, userID)
}

func (s *ShoppingListStore) Delete(id, userID int64) error {
	_, err := s.db.Exec(`DELETE FROM shopping_lists WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}
	return nil
}

// AddItem adds a product to an open list. Adding a product already on the
// list increases its quantity instead of duplicating the row.
func (s *ShoppingListStore) AddItem(listID, userID, productID, quantity int64) (*model.ShoppingList, error) {
	list, err := s.GetByID(listID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}
	if list.Finalized {
		return nil, ErrListFinalized
	}
	if quantity < 1 {
		quantity = 1
	}

	_, err = s.db.Exec(
		`INSERT INTO shopping_list_items (list_id, product_id, quantity) VALUES (?, ?, ?)
		 ON CONFLICT(list_id, product_id) DO UPDATE SET quantity = quantity + excluded.quantity`,
		listID, productID, quantity,
	)
	if err != nil {
		return nil, fmt.Errorf("add item: %w", err)
	}
	if err := s.touch(listID); err != nil {
		return nil, err
	}
	return s.GetByID(listID, userID)
}

// UpdateItemQuantity sets an item's quantity on an open list. Values below 1
// are coerced to 1.
func (s *ShoppingListStore) UpdateItemQuantity(listID, userID, productID, quantity int64) (*model.ShoppingList, error) {
	list, err := s.GetByID(listID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}
	if list.Finalized {
		return nil, ErrListFinalized
	}
	if quantity < 1 {
		quantity = 1
	}

	_, err = s.db.Exec(
		`UPDATE shopping_list_items SET quantity = ? WHERE list_id = ? AND product_id = ?`,
		quantity, listID, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("update item quantity: %w", err)
	}
	if err := s.touch(listID); err != nil {
		return nil, err
	}
	return s.GetByID(listID, userID)
}

// RemoveItem removes a product from an open list. Removing a product that is
// not on the list is a no-op, matching the original behavior.
func (s *ShoppingListStore) RemoveItem(listID, userID, productID int64) (*model.ShoppingList, error) {
	list, err := s.GetByID(listID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}
	if list.Finalized {
		return nil, ErrListFinalized
	}

	_, err = s.db.Exec(
		`DELETE FROM shopping_list_items WHERE list_id = ? AND product_id = ?`,
		listID, productID,
	)
	if err != nil {
		return nil, fmt.Errorf("remove item: %w", err)
	}
	if err := s.touch(listID); err != nil {
		return nil, err
	}
	return s.GetByID(listID, userID)
}

// Finalize transitions an open list to finalized, persisting the comparison
// snapshot, the finalization timestamp/mode, and an all-false checklist in a
// single transaction. Finalizing an already-finalized list fails with
// ErrListFinalized and leaves the stored snapshot untouched.
func (s *ShoppingListStore) Finalize(listID, userID int64, mode string, snapshot *model.ComparisonSnapshot) (*model.ShoppingList, error) {
	list, err := s.GetByID(listID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}

	snapJSON, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}

	checked := make(map[string]bool, len(list.Items))
	for _, item := range list.Items {
		checked[strconv.FormatInt(item.ProductID, 10)] = false
	}
	checkedJSON, err := json.Marshal(checked)
	if err != nil {
		return nil, fmt.Errorf("encode checklist: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var finalized int
	err = tx.QueryRow(
		`SELECT finalized FROM shopping_lists WHERE id = ? AND user_id = ?`,
		listID, userID,
	).Scan(&finalized)
	if err != nil {
		return nil, fmt.Errorf("check state: %w", err)
	}
	if finalized != 0 {
		return nil, ErrListFinalized
	}

	_, err = tx.Exec(
		`UPDATE shopping_lists SET
			finalized = 1,
			finalized_at = ?,
			finalize_option = ?,
			comparison_results = ?,
			checked_items = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		time.Now().UTC(), mode, string(snapJSON), string(checkedJSON), listID,
	)
	if err != nil {
		return nil, fmt.Errorf("finalize list: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(listID, userID)
}

// SetCheckedItems replaces the whole checklist mapping of a finalized list.
func (s *ShoppingListStore) SetCheckedItems(listID, userID int64, checked map[string]bool) (*model.ShoppingList, error) {
	list, err := s.GetByID(listID, userID)
	if err != nil {
		return nil, err
	}
	if list == nil {
		return nil, nil
	}
	if !list.Finalized {
		return nil, ErrListNotFinalized
	}

	if checked == nil {
		checked = map[string]bool{}
	}
	checkedJSON, err := json.Marshal(checked)
	if err != nil {
		return nil, fmt.Errorf("encode checklist: %w", err)
	}

	_, err = s.db.Exec(
		`UPDATE shopping_lists SET checked_items = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		string(checkedJSON), listID,
	)
	if err != nil {
		return nil, fmt.Errorf("set checked items: %w", err)
	}
	return s.GetByID(listID, userID)
}

func (s *ShoppingListStore) touch(listID int64) error {
	_, err := s.db.Exec(
		`UPDATE shopping_lists SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		listID,
	)
	if err != nil {
		return fmt.Errorf("touch list: %w", err)
	}
	return nil
}
