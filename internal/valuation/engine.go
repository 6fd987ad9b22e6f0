// Package valuation computes invested value, current value and profit/loss for
// portfolio holdings. Everything here is pure: inputs in, figures out, no I/O.
package valuation

import (
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotrack/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// EntryValuation is the valuation of one portfolio lot.
type EntryValuation struct {
	Entry        domain.PortfolioEntry `json:"entry"`
	CurrentPrice decimal.Decimal       `json:"currentPrice"`
	PriceKnown   bool                  `json:"priceKnown"`
	Invested     decimal.Decimal       `json:"invested"`
	Current      decimal.Decimal       `json:"current"`
	Profit       decimal.Decimal       `json:"profit"`
}

// Summary is the per-entry breakdown plus totals. Totals are exact sums of the
// per-entry figures; nothing is rounded here.
type Summary struct {
	Entries       []EntryValuation `json:"entries"`
	Invested      decimal.Decimal  `json:"invested"`
	Current       decimal.Decimal  `json:"current"`
	Profit        decimal.Decimal  `json:"profit"`
	ProfitPercent *decimal.Decimal `json:"profitPercent,omitempty"`
}

// Valuate values holdings at the given unit prices. A coin missing from prices is valued at zero.
func Valuate(holdings []domain.PortfolioEntry, prices map[string]decimal.Decimal) Summary {
	entries := lo.Map(holdings, func(e domain.PortfolioEntry, _ int) EntryValuation {
		price, ok := prices[e.CoinID]
		invested := e.Quantity.Mul(e.BuyPrice)
		current := e.Quantity.Mul(price)
		return EntryValuation{
			Entry:        e,
			CurrentPrice: price,
			PriceKnown:   ok,
			Invested:     invested,
			Current:      current,
			Profit:       current.Sub(invested),
		}
	})

	invested := lo.Reduce(entries, func(acc decimal.Decimal, ev EntryValuation, _ int) decimal.Decimal {
		return acc.Add(ev.Invested)
	}, decimal.Zero)
	current := lo.Reduce(entries, func(acc decimal.Decimal, ev EntryValuation, _ int) decimal.Decimal {
		return acc.Add(ev.Current)
	}, decimal.Zero)

	s := Summary{
		Entries:  entries,
		Invested: invested,
		Current:  current,
		Profit:   current.Sub(invested),
	}
	if invested.IsPositive() {
		pct := s.Profit.Div(invested).Mul(hundred)
		s.ProfitPercent = &pct
	}
	return s
}

// UnitPrices extracts the USD price of each quote, keyed by coin id.
func UnitPrices(quotes map[string]domain.PriceQuote) map[string]decimal.Decimal {
	return lo.MapValues(quotes, func(q domain.PriceQuote, _ string) decimal.Decimal {
		return q.USD
	})
}

// Slice is one segment of the allocation breakdown.
type Slice struct {
	EntryID  string          `json:"entryId"`
	CoinID   string          `json:"coinId"`
	CoinName string          `json:"coinName"`
	Value    decimal.Decimal `json:"value"`
	Share    decimal.Decimal `json:"share"` // percent of the current total
}

// Distribution maps every entry to its current value and share of the total.
// Zero-value entries are kept; filtering them is up to the consumer.
func Distribution(s Summary) []Slice {
	return lo.Map(s.Entries, func(ev EntryValuation, _ int) Slice {
		share := decimal.Zero
		if s.Current.IsPositive() {
			share = ev.Current.Div(s.Current).Mul(hundred)
		}
		return Slice{
			EntryID:  ev.Entry.ID,
			CoinID:   ev.Entry.CoinID,
			CoinName: ev.Entry.CoinName,
			Value:    ev.Current,
			Share:    share,
		}
	})
}
