package model

import "time"

type Address struct {
	Street       string `json:"street"`
	Number       string `json:"number"`
	Neighborhood string `json:"neighborhood"`
	City         string `json:"city"`
	State        string `json:"state"`
	ZipCode      string `json:"zip_code"`
}

type Market struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   Address   `json:"address"`
	Phone     string    `json:"phone"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Summary returns the denormalized view embedded in prices and snapshots.
func (m *Market) Summary() MarketSummary {
	return MarketSummary{ID: m.ID, Name: m.Name, Address: m.Address}
}

// MarketSummary carries enough market fields for display alongside a price.
type MarketSummary struct {
	ID      int64   `json:"id"`
	Name    string  `json:"name"`
	Address Address `json:"address"`
}
