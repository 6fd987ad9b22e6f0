package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceQuote is the current USD price of a coin as reported by the market data API.
// Quotes are transient and never persisted.
type PriceQuote struct {
	CoinID       string          `json:"coinId"`
	USD          decimal.Decimal `json:"usd"`
	USD24hChange *float64        `json:"usd24hChange,omitempty"` // percent
	Sparkline7d  []float64       `json:"sparkline7d,omitempty"`
}

// PricePoint is one sample of a price history series.
type PricePoint struct {
	Timestamp time.Time       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
}

// CoinMarket is a market overview row, as listed by market capitalization.
type CoinMarket struct {
	ID                       string          `json:"id"`
	Symbol                   string          `json:"symbol"`
	Name                     string          `json:"name"`
	Image                    string          `json:"image"`
	CurrentPrice             decimal.Decimal `json:"currentPrice"`
	MarketCap                decimal.Decimal `json:"marketCap"`
	MarketCapRank            int             `json:"marketCapRank,omitempty"`
	PriceChangePercentage24h *float64        `json:"priceChangePercentage24h,omitempty"`
	Sparkline7d              []float64       `json:"sparkline7d,omitempty"`
}
