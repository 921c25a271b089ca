package store

import (
	"database/sql"
	"testing"

	"github.com/buscoapp/busco/internal/database"
	"github.com/buscoapp/busco/internal/model"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedUser(t *testing.T, us *UserStore, email, accountType string) *model.User {
	t.Helper()
	u, err := us.Create("Test User", email, "senha123", accountType)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func seedProduct(t *testing.T, ps *ProductStore, name string) *model.Product {
	t.Helper()
	p, err := ps.Create(&model.Product{
		Name:     name,
		Brand:    "Marca",
		Category: "Mercearia",
		Unit:     model.UnitPiece,
		UnitSize: 1,
	})
	if err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p
}

func seedMarket(t *testing.T, ms *MarketStore, name string) *model.Market {
	t.Helper()
	m, err := ms.Create(&model.Market{
		Name:    name,
		Address: model.Address{City: "Jaú", State: "SP"},
	})
	if err != nil {
		t.Fatalf("seed market: %v", err)
	}
	return m
}
