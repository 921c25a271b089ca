// Package compare implements the price comparison engine: per-product price
// rankings across markets and the derived single-store / best-price-split
// aggregates used when a shopping list is finalized.
//
// All functions are pure. Callers fetch the candidate prices; no storage
// access happens here.
package compare

import (
	"errors"
	"sort"

	"github.com/buscoapp/busco/internal/model"

	"github.com/shopspring/decimal"
)

// ErrNoProducts is returned when a comparison is requested for an empty
// product set.
var ErrNoProducts = errors.New("no products to compare")

// Compare groups candidate prices by product and sorts each group ascending
// by price, equal prices ordered by market name. Every requested product gets
// an entry; products without prices get an empty quote list. Prices for
// products outside productIDs are ignored.
func Compare(productIDs []int64, prices []model.PriceEntry) (model.ComparisonMap, error) {
	if len(productIDs) == 0 {
		return nil, ErrNoProducts
	}

	result := make(model.ComparisonMap, len(productIDs))
	for _, id := range productIDs {
		result[id] = &model.ComparisonEntry{
			Product: model.ProductSummary{ID: id},
			Prices:  []model.PriceQuote{},
		}
	}

	for _, p := range prices {
		entry, ok := result[p.ProductID]
		if !ok {
			continue
		}
		entry.Product = p.Product
		entry.Prices = append(entry.Prices, model.PriceQuote{
			Market:           p.Market,
			Price:            p.Price.Price,
			IsPromotion:      p.IsPromotion,
			PromotionEndDate: p.PromotionEndDate,
		})
	}

	for _, entry := range result {
		sortQuotes(entry.Prices)
	}

	return result, nil
}

func sortQuotes(quotes []model.PriceQuote) {
	sort.Slice(quotes, func(i, j int) bool {
		if c := quotes[i].Price.Cmp(quotes[j].Price); c != 0 {
			return c < 0
		}
		return quotes[i].Market.Name < quotes[j].Market.Name
	})
}

// BestSingleMarket sums price × quantity per market over every list item that
// market prices and returns the markets ranked by total, cheapest first.
// Markets covering only part of the list stay in the ranking; their total
// reflects only the items they price. Each entry's Delta is its cost above
// the cheapest market. Equal totals are ordered by market name.
func BestSingleMarket(items []model.ListItem, comparison model.ComparisonMap) []model.MarketTotal {
	totals := make(map[int64]*model.MarketTotal)

	for _, item := range items {
		entry, ok := comparison[item.ProductID]
		if !ok {
			continue
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}
		for _, quote := range entry.Prices {
			mt, ok := totals[quote.Market.ID]
			if !ok {
				mt = &model.MarketTotal{Market: quote.Market}
				totals[quote.Market.ID] = mt
			}
			subtotal := quote.Price.Mul(decimal.NewFromInt(qty))
			mt.Total = mt.Total.Add(subtotal)
			mt.Items = append(mt.Items, model.LineItem{
				Product:  entry.Product,
				Price:    quote.Price,
				Quantity: qty,
				Subtotal: subtotal,
			})
		}
	}

	ranked := make([]model.MarketTotal, 0, len(totals))
	for _, mt := range totals {
		ranked = append(ranked, *mt)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if c := ranked[i].Total.Cmp(ranked[j].Total); c != 0 {
			return c < 0
		}
		return ranked[i].Market.Name < ranked[j].Market.Name
	})

	for i := range ranked {
		ranked[i].Delta = ranked[i].Total.Sub(ranked[0].Total)
	}

	return ranked
}

// BestPerProductSplit assigns each list item to its cheapest market and
// groups the picks by market. Items with no price are skipped. TotalSavings
// is the best single-market total minus the split total, reported as
// computed; it is negative when splitting costs more.
func BestPerProductSplit(items []model.ListItem, comparison model.ComparisonMap) model.Split {
	split := model.Split{
		Items:   []model.SplitPick{},
		Markets: []model.MarketGroup{},
	}

	groups := make(map[int64]*model.MarketGroup)
	var groupOrder []int64

	for _, item := range items {
		entry, ok := comparison[item.ProductID]
		if !ok || len(entry.Prices) == 0 {
			continue
		}
		qty := item.Quantity
		if qty < 1 {
			qty = 1
		}

		// Quotes are sorted ascending, so the first is the cheapest.
		best := entry.Prices[0]
		subtotal := best.Price.Mul(decimal.NewFromInt(qty))
		pick := model.SplitPick{
			Product:  entry.Product,
			Market:   best.Market,
			Price:    best.Price,
			Quantity: qty,
			Subtotal: subtotal,
		}

		split.Items = append(split.Items, pick)
		split.Total = split.Total.Add(subtotal)

		group, ok := groups[best.Market.ID]
		if !ok {
			group = &model.MarketGroup{Market: best.Market}
			groups[best.Market.ID] = group
			groupOrder = append(groupOrder, best.Market.ID)
		}
		group.Items = append(group.Items, pick)
		group.Subtotal = group.Subtotal.Add(subtotal)
	}

	for _, id := range groupOrder {
		split.Markets = append(split.Markets, *groups[id])
	}
	sort.Slice(split.Markets, func(i, j int) bool {
		return split.Markets[i].Market.Name < split.Markets[j].Market.Name
	})

	if ranked := BestSingleMarket(items, comparison); len(ranked) > 0 {
		split.TotalSavings = ranked[0].Total.Sub(split.Total)
	}

	return split
}

// Snapshot computes the value copy persisted onto a list at finalization.
// The split is computed only for mode "best".
func Snapshot(mode string, items []model.ListItem, comparison model.ComparisonMap) *model.ComparisonSnapshot {
	snap := &model.ComparisonSnapshot{
		Mode:         mode,
		Comparison:   comparison,
		SingleMarket: BestSingleMarket(items, comparison),
	}
	if mode == model.FinalizeBest {
		split := BestPerProductSplit(items, comparison)
		snap.Split = &split
	}
	return snap
}
