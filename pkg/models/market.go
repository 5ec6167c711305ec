package models

import "time"

// MarketData is a market snapshot for one listed company.
type MarketData struct {
	Ticker    string    `json:"ticker"`
	MarketCap float64   `json:"market_cap"` // in Currency
	Price     float64   `json:"price"`      // in Currency
	Currency  string    `json:"currency"`
	Shares    float64   `json:"shares,omitempty"`
	AsOf      time.Time `json:"as_of"`
}

// MarketCapIn converts the market capitalisation with fx
// (units of reporting currency per unit of market currency).
func (m MarketData) MarketCapIn(fx float64) float64 {
	if fx == 0 {
		fx = 1
	}
	return m.MarketCap * fx
}
