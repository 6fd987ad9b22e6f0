package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WatchlistEntry is a coin a user follows. (UserID, CoinID) is unique.
type WatchlistEntry struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	CoinID    string    `json:"coinId"`
	CoinName  string    `json:"coinName"`
	CreatedAt time.Time `json:"createdAt"`
}

// PortfolioEntry is a single purchase lot. A user may hold several lots of the same coin.
type PortfolioEntry struct {
	ID        string          `json:"id"`
	UserID    string          `json:"userId"`
	CoinID    string          `json:"coinId"`
	CoinName  string          `json:"coinName"`
	Quantity  decimal.Decimal `json:"quantity"`
	BuyPrice  decimal.Decimal `json:"buyPrice"` // USD per unit
	CreatedAt time.Time       `json:"createdAt"`
}
