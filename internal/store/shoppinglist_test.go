package store

import (
	"testing"

	"github.com/buscoapp/busco/internal/model"

	"github.com/shopspring/decimal"
)

type listFixture struct {
	lists    *ShoppingListStore
	prices   *PriceStore
	owner    *model.User
	stranger *model.User
	productA *model.Product
	productB *model.Product
	market   *model.Market
}

func newListFixture(t *testing.T) *listFixture {
	t.Helper()
	db := testDB(t)
	users := NewUserStore(db)
	products := NewProductStore(db)
	markets := NewMarketStore(db)

	return &listFixture{
		lists:    NewShoppingListStore(db),
		prices:   NewPriceStore(db),
		owner:    seedUser(t, users, "owner@example.com", model.AccountPremium),
		stranger: seedUser(t, users, "stranger@example.com", model.AccountPremium),
		productA: seedProduct(t, products, "Arroz"),
		productB: seedProduct(t, products, "Feijão"),
		market:   seedMarket(t, markets, "Confiança"),
	}
}

func testSnapshot(f *listFixture) *model.ComparisonSnapshot {
	return &model.ComparisonSnapshot{
		Mode: model.FinalizeSingle,
		Comparison: model.ComparisonMap{
			f.productA.ID: {
				Product: f.productA.Summary(),
				Prices: []model.PriceQuote{
					{Market: f.market.Summary(), Price: decimal.RequireFromString("10.00")},
				},
			},
		},
		SingleMarket: []model.MarketTotal{
			{Market: f.market.Summary(), Total: decimal.RequireFromString("10.00")},
		},
	}
}

func TestListCreateMergesDuplicateProducts(t *testing.T) {
	f := newListFixture(t)

	list, err := f.lists.Create(f.owner.ID, "", []model.ListItem{
		{ProductID: f.productA.ID, Quantity: 2},
		{ProductID: f.productA.ID, Quantity: 3},
		{ProductID: f.productB.ID, Quantity: 0}, // coerced to 1
	})
	if err != nil {
		t.Fatalf("create list: %v", err)
	}
	if list.Name != "Minha Lista" {
		t.Errorf("default name = %q, want Minha Lista", list.Name)
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 items after merge, got %d", len(list.Items))
	}
	if list.Items[0].Quantity != 5 {
		t.Errorf("merged quantity = %d, want 5", list.Items[0].Quantity)
	}
	if list.Items[1].Quantity != 1 {
		t.Errorf("coerced quantity = %d, want 1", list.Items[1].Quantity)
	}
	if list.Items[0].Product == nil || list.Items[0].Product.Name != "Arroz" {
		t.Error("item product summary not populated")
	}
	if list.Finalized {
		t.Error("new list should be open")
	}
}

func TestListAddItemBumpsQuantity(t *testing.T) {
	f := newListFixture(t)

	list, err := f.lists.Create(f.owner.ID, "Compras", nil)
	if err != nil {
		t.Fatalf("create list: %v", err)
	}

	list, err = f.lists.AddItem(list.ID, f.owner.ID, f.productA.ID, 2)
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	list, err = f.lists.AddItem(list.ID, f.owner.ID, f.productA.ID, 1)
	if err != nil {
		t.Fatalf("add item again: %v", err)
	}

	if len(list.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(list.Items))
	}
	if list.Items[0].Quantity != 3 {
		t.Errorf("quantity = %d, want 3", list.Items[0].Quantity)
	}
}

func TestListItemQuantityUpdateAndRemove(t *testing.T) {
	f := newListFixture(t)

	list, _ := f.lists.Create(f.owner.ID, "Compras", []model.ListItem{
		{ProductID: f.productA.ID, Quantity: 2},
	})

	list, err := f.lists.UpdateItemQuantity(list.ID, f.owner.ID, f.productA.ID, -4)
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if list.Items[0].Quantity != 1 {
		t.Errorf("quantity = %d, want coerced 1", list.Items[0].Quantity)
	}

	list, err = f.lists.RemoveItem(list.ID, f.owner.ID, f.productA.ID)
	if err != nil {
		t.Fatalf("remove item: %v", err)
	}
	if len(list.Items) != 0 {
		t.Errorf("expected empty list, got %d items", len(list.Items))
	}
}

func TestListCrossOwnerInvisible(t *testing.T) {
	f := newListFixture(t)

	list, _ := f.lists.Create(f.owner.ID, "Privada", nil)

	got, err := f.lists.GetByID(list.ID, f.stranger.ID)
	if err != nil {
		t.Fatalf("cross-owner get: %v", err)
	}
	if got != nil {
		t.Fatal("stranger can see another user's list")
	}

	if err := f.lists.Delete(list.ID, f.stranger.ID); err != nil {
		t.Fatalf("cross-owner delete: %v", err)
	}
	still, _ := f.lists.GetByID(list.ID, f.owner.ID)
	if still == nil {
		t.Fatal("cross-owner delete removed the list")
	}
}

func TestFinalizeTransitionsAndFreezes(t *testing.T) {
	f := newListFixture(t)

	list, _ := f.lists.Create(f.owner.ID, "Compras", []model.ListItem{
		{ProductID: f.productA.ID, Quantity: 2},
		{ProductID: f.productB.ID, Quantity: 1},
	})

	final, err := f.lists.Finalize(list.ID, f.owner.ID, model.FinalizeSingle, testSnapshot(f))
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if !final.Finalized || final.FinalizedAt == nil {
		t.Fatal("list not marked finalized")
	}
	if final.FinalizeOption != model.FinalizeSingle {
		t.Errorf("mode = %q, want single", final.FinalizeOption)
	}
	if final.Comparison == nil {
		t.Fatal("snapshot not stored")
	}
	if len(final.CheckedItems) != 2 {
		t.Fatalf("checklist should cover every item, got %d entries", len(final.CheckedItems))
	}
	for k, v := range final.CheckedItems {
		if v {
			t.Errorf("checklist[%s] = true on fresh finalization", k)
		}
	}
	if final.Progress() != 0 {
		t.Errorf("progress = %d, want 0", final.Progress())
	}

	// Item mutations are rejected once finalized.
	if _, err := f.lists.AddItem(list.ID, f.owner.ID, f.productA.ID, 1); err != ErrListFinalized {
		t.Errorf("add item on finalized list: err = %v, want ErrListFinalized", err)
	}
	if _, err := f.lists.RemoveItem(list.ID, f.owner.ID, f.productA.ID); err != ErrListFinalized {
		t.Errorf("remove item on finalized list: err = %v, want ErrListFinalized", err)
	}
	if _, err := f.lists.UpdateItemQuantity(list.ID, f.owner.ID, f.productA.ID, 5); err != ErrListFinalized {
		t.Errorf("update quantity on finalized list: err = %v, want ErrListFinalized", err)
	}
	if _, err := f.lists.Update(list.ID, f.owner.ID, "Nome", []model.ListItem{}); err != ErrListFinalized {
		t.Errorf("replace items on finalized list: err = %v, want ErrListFinalized", err)
	}
}

func TestFinalizeTwiceRejected(t *testing.T) {
	f := newListFixture(t)

	list, _ := f.lists.Create(f.owner.ID, "Compras", []model.ListItem{
		{ProductID: f.productA.ID, Quantity: 1},
	})

	first := testSnapshot(f)
	if _, err := f.lists.Finalize(list.ID, f.owner.ID, model.FinalizeSingle, first); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	other := testSnapshot(f)
	other.SingleMarket[0].Total = decimal.RequireFromString("999.00")
	if _, err := f.lists.Finalize(list.ID, f.owner.ID, model.FinalizeBest, other); err != ErrListFinalized {
		t.Fatalf("second finalize: err = %v, want ErrListFinalized", err)
	}

	// Stored snapshot untouched by the failed attempt.
	got, _ := f.lists.GetByID(list.ID, f.owner.ID)
	if got.FinalizeOption != model.FinalizeSingle {
		t.Errorf("mode changed to %q", got.FinalizeOption)
	}
	if !got.Comparison.SingleMarket[0].Total.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("snapshot total changed to %s", got.Comparison.SingleMarket[0].Total)
	}
}

func TestSnapshotIsValueCopy(t *testing.T) {
	f := newListFixture(t)

	if _, _, err := f.prices.Upsert(f.productA.ID, f.market.ID, decimal.RequireFromString("10.00"), false, nil, nil); err != nil {
		t.Fatalf("seed price: %v", err)
	}

	list, _ := f.lists.Create(f.owner.ID, "Compras", []model.ListItem{
		{ProductID: f.productA.ID, Quantity: 1},
	})
	if _, err := f.lists.Finalize(list.ID, f.owner.ID, model.FinalizeSingle, testSnapshot(f)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	// Edit the live price after finalization.
	if _, _, err := f.prices.Upsert(f.productA.ID, f.market.ID, decimal.RequireFromString("25.00"), false, nil, nil); err != nil {
		t.Fatalf("edit price: %v", err)
	}

	got, _ := f.lists.GetByID(list.ID, f.owner.ID)
	quote := got.Comparison.Comparison[f.productA.ID].Prices[0]
	if !quote.Price.Equal(decimal.RequireFromString("10.00")) {
		t.Errorf("snapshot price = %s, want frozen 10.00", quote.Price)
	}
}

func TestCheckedItemsLifecycle(t *testing.T) {
	f := newListFixture(t)

	list, _ := f.lists.Create(f.owner.ID, "Compras", []model.ListItem{
		{ProductID: f.productA.ID, Quantity: 1},
		{ProductID: f.productB.ID, Quantity: 1},
	})

	// Checklist writes require a finalized list.
	if _, err := f.lists.SetCheckedItems(list.ID, f.owner.ID, map[string]bool{"1": true}); err != ErrListNotFinalized {
		t.Fatalf("checklist on open list: err = %v, want ErrListNotFinalized", err)
	}

	if _, err := f.lists.Finalize(list.ID, f.owner.ID, model.FinalizeSingle, testSnapshot(f)); err != nil {
		t.Fatalf("finalize: %v", err)
	}

	aKey := "1"
	got, err := f.lists.SetCheckedItems(list.ID, f.owner.ID, map[string]bool{aKey: true})
	if err != nil {
		t.Fatalf("set checked: %v", err)
	}
	if !got.CheckedItems[aKey] {
		t.Error("checked item not stored")
	}
	// The mapping is replaced wholesale, not merged.
	if len(got.CheckedItems) != 1 {
		t.Errorf("checklist entries = %d, want 1 (full replace)", len(got.CheckedItems))
	}
	if got.Progress() != 50 {
		t.Errorf("progress = %d, want 50", got.Progress())
	}
}

func TestProgressRounding(t *testing.T) {
	list := &model.ShoppingList{
		Items: []model.ListItem{
			{ProductID: 1}, {ProductID: 2}, {ProductID: 3}, {ProductID: 4},
		},
		CheckedItems: map[string]bool{"1": true, "2": true, "3": true},
	}
	if got := list.Progress(); got != 75 {
		t.Errorf("progress = %d, want 75", got)
	}

	empty := &model.ShoppingList{CheckedItems: map[string]bool{}}
	if got := empty.Progress(); got != 100 {
		t.Errorf("empty list progress = %d, want 100", got)
	}

	third := &model.ShoppingList{
		Items:        []model.ListItem{{ProductID: 1}, {ProductID: 2}, {ProductID: 3}},
		CheckedItems: map[string]bool{"1": true},
	}
	if got := third.Progress(); got != 33 {
		t.Errorf("progress = %d, want 33", got)
	}
}
