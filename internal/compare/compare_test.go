package compare

import (
	"testing"

	"github.com/buscoapp/busco/internal/model"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func entry(productID, marketID int64, marketName, price string) model.PriceEntry {
	return model.PriceEntry{
		Price: model.Price{
			ProductID: productID,
			MarketID:  marketID,
			Price:     dec(price),
		},
		Product: model.ProductSummary{ID: productID, Name: "product"},
		Market:  model.MarketSummary{ID: marketID, Name: marketName},
	}
}

func TestCompareEmptyProductSet(t *testing.T) {
	_, err := Compare(nil, nil)
	if err != ErrNoProducts {
		t.Fatalf("expected ErrNoProducts, got %v", err)
	}
}

func TestCompareGroupsAndSorts(t *testing.T) {
	prices := []model.PriceEntry{
		entry(1, 10, "Pague Menos", "5.49"),
		entry(1, 11, "Confiança", "4.99"),
		entry(1, 12, "Jaú Serve", "5.49"),
		entry(2, 10, "Pague Menos", "2.00"),
	}

	result, err := Compare([]int64{1, 2, 3}, prices)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	if len(result) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(result))
	}

	// Every requested product appears, even without prices.
	if got := result[3]; got == nil || len(got.Prices) != 0 {
		t.Fatalf("product 3 should have an empty price list, got %+v", got)
	}

	quotes := result[1].Prices
	if len(quotes) != 3 {
		t.Fatalf("expected 3 quotes for product 1, got %d", len(quotes))
	}
	if quotes[0].Market.Name != "Confiança" {
		t.Errorf("cheapest market = %q, want %q", quotes[0].Market.Name, "Confiança")
	}
	// Equal prices ordered by market name.
	if quotes[1].Market.Name != "Jaú Serve" || quotes[2].Market.Name != "Pague Menos" {
		t.Errorf("tie order = %q, %q; want Jaú Serve, Pague Menos",
			quotes[1].Market.Name, quotes[2].Market.Name)
	}
}

func TestCompareSortIdempotent(t *testing.T) {
	prices := []model.PriceEntry{
		entry(1, 10, "B", "3.00"),
		entry(1, 11, "A", "3.00"),
		entry(1, 12, "C", "1.50"),
	}

	result, err := Compare([]int64{1}, prices)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	before := make([]model.PriceQuote, len(result[1].Prices))
	copy(before, result[1].Prices)
	sortQuotes(result[1].Prices)

	for i := range before {
		if before[i].Market.ID != result[1].Prices[i].Market.ID {
			t.Fatalf("re-sorting changed order at %d", i)
		}
	}
}

func TestCompareIgnoresUnrequestedProducts(t *testing.T) {
	prices := []model.PriceEntry{
		entry(1, 10, "A", "2.00"),
		entry(99, 10, "A", "9.99"),
	}

	result, err := Compare([]int64{1}, prices)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if _, ok := result[99]; ok {
		t.Error("unrequested product 99 should not appear")
	}
}

// Scenario fixture: Market X prices A=5.00 B=3.00, Market Y prices A=4.00 B=4.00,
// list = [{A, qty 2}, {B, qty 1}].
func scenario(t *testing.T) ([]model.ListItem, model.ComparisonMap) {
	t.Helper()
	prices := []model.PriceEntry{
		entry(1, 10, "Market X", "5.00"),
		entry(1, 11, "Market Y", "4.00"),
		entry(2, 10, "Market X", "3.00"),
		entry(2, 11, "Market Y", "4.00"),
	}
	items := []model.ListItem{
		{ProductID: 1, Quantity: 2},
		{ProductID: 2, Quantity: 1},
	}
	comparison, err := Compare([]int64{1, 2}, prices)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	return items, comparison
}

func TestBestSingleMarket(t *testing.T) {
	items, comparison := scenario(t)

	ranked := BestSingleMarket(items, comparison)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(ranked))
	}

	// X total = 5*2 + 3 = 13.00, Y total = 4*2 + 4 = 12.00 → best = Y.
	if ranked[0].Market.Name != "Market Y" {
		t.Errorf("best market = %q, want Market Y", ranked[0].Market.Name)
	}
	if !ranked[0].Total.Equal(dec("12.00")) {
		t.Errorf("best total = %s, want 12.00", ranked[0].Total)
	}
	if !ranked[1].Total.Equal(dec("13.00")) {
		t.Errorf("second total = %s, want 13.00", ranked[1].Total)
	}
	if !ranked[0].Delta.IsZero() {
		t.Errorf("best delta = %s, want 0", ranked[0].Delta)
	}
	if !ranked[1].Delta.Equal(dec("1.00")) {
		t.Errorf("second delta = %s, want 1.00", ranked[1].Delta)
	}

	// Ranking invariant: the first total is <= every other total.
	for i := 1; i < len(ranked); i++ {
		if ranked[0].Total.GreaterThan(ranked[i].Total) {
			t.Errorf("ranking not ascending at %d", i)
		}
	}
}

func TestBestSingleMarketPartialCoverage(t *testing.T) {
	prices := []model.PriceEntry{
		entry(1, 10, "Full", "5.00"),
		entry(2, 10, "Full", "5.00"),
		entry(1, 11, "Partial", "1.00"),
	}
	items := []model.ListItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 1},
	}
	comparison, err := Compare([]int64{1, 2}, prices)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	ranked := BestSingleMarket(items, comparison)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 markets, got %d", len(ranked))
	}
	// A market pricing only one of two items still ranks, and here wins.
	if ranked[0].Market.Name != "Partial" {
		t.Errorf("best market = %q, want Partial", ranked[0].Market.Name)
	}
	if len(ranked[0].Items) != 1 {
		t.Errorf("partial market should carry 1 line item, got %d", len(ranked[0].Items))
	}
}

func TestBestPerProductSplit(t *testing.T) {
	items, comparison := scenario(t)

	split := BestPerProductSplit(items, comparison)
	if len(split.Items) != 2 {
		t.Fatalf("expected 2 picks, got %d", len(split.Items))
	}

	// A from Y (4.00×2=8.00), B from X (3.00×1=3.00).
	if split.Items[0].Market.Name != "Market Y" || !split.Items[0].Subtotal.Equal(dec("8.00")) {
		t.Errorf("pick A = %q %s, want Market Y 8.00", split.Items[0].Market.Name, split.Items[0].Subtotal)
	}
	if split.Items[1].Market.Name != "Market X" || !split.Items[1].Subtotal.Equal(dec("3.00")) {
		t.Errorf("pick B = %q %s, want Market X 3.00", split.Items[1].Market.Name, split.Items[1].Subtotal)
	}
	if !split.Total.Equal(dec("11.00")) {
		t.Errorf("split total = %s, want 11.00", split.Total)
	}
	if !split.TotalSavings.Equal(dec("1.00")) {
		t.Errorf("total savings = %s, want 1.00", split.TotalSavings)
	}

	// savings = bestSingle[0].total − split total, exactly.
	ranked := BestSingleMarket(items, comparison)
	if !split.TotalSavings.Equal(ranked[0].Total.Sub(split.Total)) {
		t.Error("savings does not match single-market total minus split total")
	}

	if len(split.Markets) != 2 {
		t.Fatalf("expected 2 market groups, got %d", len(split.Markets))
	}
}

func TestBestPerProductSplitSkipsUnpricedItems(t *testing.T) {
	prices := []model.PriceEntry{
		entry(1, 10, "A", "2.50"),
	}
	items := []model.ListItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 3}, // no price anywhere
	}
	comparison, err := Compare([]int64{1, 2}, prices)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	split := BestPerProductSplit(items, comparison)
	if len(split.Items) != 1 {
		t.Fatalf("expected 1 pick, got %d", len(split.Items))
	}
	if !split.Total.Equal(dec("2.50")) {
		t.Errorf("split total = %s, want 2.50", split.Total)
	}
}

func TestBestPerProductSplitZeroSavings(t *testing.T) {
	// One market prices everything; the split equals it, so savings is 0.
	// Add a second market that is cheaper on nothing — savings stays 0,
	// never clamped upward.
	prices := []model.PriceEntry{
		entry(1, 10, "Cheap", "1.00"),
		entry(2, 10, "Cheap", "1.00"),
		entry(1, 11, "Dear", "9.00"),
	}
	items := []model.ListItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 1},
	}
	comparison, _ := Compare([]int64{1, 2}, prices)

	split := BestPerProductSplit(items, comparison)
	if !split.TotalSavings.IsZero() {
		t.Errorf("savings = %s, want 0", split.TotalSavings)
	}
}

func TestBestPerProductSplitNegativeSavings(t *testing.T) {
	// A market covering only one item undercuts the full market on it, so
	// it tops the single-market ranking with a tiny partial total while the
	// split still has to buy the second item elsewhere. Splitting then
	// costs more than the ranked best, and the savings comes out negative.
	prices := []model.PriceEntry{
		entry(1, 10, "Parcial", "1.00"),
		entry(1, 11, "Completo", "2.00"),
		entry(2, 11, "Completo", "9.00"),
	}
	items := []model.ListItem{
		{ProductID: 1, Quantity: 1},
		{ProductID: 2, Quantity: 1},
	}
	comparison, err := Compare([]int64{1, 2}, prices)
	if err != nil {
		t.Fatalf("compare: %v", err)
	}

	split := BestPerProductSplit(items, comparison)
	if !split.Total.Equal(dec("10.00")) {
		t.Fatalf("split total = %s, want 10.00", split.Total)
	}
	if !split.TotalSavings.IsNegative() {
		t.Fatalf("savings = %s, want a negative value", split.TotalSavings)
	}
	if !split.TotalSavings.Equal(dec("-9.00")) {
		t.Errorf("savings = %s, want -9.00", split.TotalSavings)
	}
}

func TestSnapshotModes(t *testing.T) {
	items, comparison := scenario(t)

	single := Snapshot(model.FinalizeSingle, items, comparison)
	if single.Split != nil {
		t.Error("single-mode snapshot should not carry a split")
	}
	if len(single.SingleMarket) != 2 {
		t.Errorf("expected 2 ranked markets, got %d", len(single.SingleMarket))
	}

	best := Snapshot(model.FinalizeBest, items, comparison)
	if best.Split == nil {
		t.Fatal("best-mode snapshot missing split")
	}
	if !best.Split.TotalSavings.Equal(dec("1.00")) {
		t.Errorf("snapshot savings = %s, want 1.00", best.Split.TotalSavings)
	}
}

func TestQuantityCoercedToOne(t *testing.T) {
	prices := []model.PriceEntry{entry(1, 10, "A", "2.00")}
	items := []model.ListItem{{ProductID: 1, Quantity: 0}}
	comparison, _ := Compare([]int64{1}, prices)

	ranked := BestSingleMarket(items, comparison)
	if !ranked[0].Total.Equal(dec("2.00")) {
		t.Errorf("total = %s, want 2.00 (quantity coerced to 1)", ranked[0].Total)
	}
}
