package valuation

import (
	"cmp"
	"slices"

	"github.com/samber/lo"

	"github.com/mtlprog/cryptotrack/internal/domain"
)

// Performer is a holding together with its 24h price change in percent.
type Performer struct {
	EntryID  string  `json:"entryId"`
	CoinID   string  `json:"coinId"`
	CoinName string  `json:"coinName"`
	Change   float64 `json:"change24h"`
}

// RankPerformers orders holdings by 24h change, highest first. Ties keep input order.
// A coin without a known change counts as 0%.
func RankPerformers(holdings []domain.PortfolioEntry, changes map[string]float64) []Performer {
	ranked := lo.Map(holdings, func(e domain.PortfolioEntry, _ int) Performer {
		return Performer{
			EntryID:  e.ID,
			CoinID:   e.CoinID,
			CoinName: e.CoinName,
			Change:   changes[e.CoinID],
		}
	})
	slices.SortStableFunc(ranked, func(a, b Performer) int {
		return cmp.Compare(b.Change, a.Change)
	})
	return ranked
}

// BestWorst returns the first and last of RankPerformers, or nil for empty holdings.
func BestWorst(holdings []domain.PortfolioEntry, changes map[string]float64) (best, worst *Performer) {
	ranked := RankPerformers(holdings, changes)
	if len(ranked) == 0 {
		return nil, nil
	}
	return &ranked[0], &ranked[len(ranked)-1]
}

// Changes extracts the known 24h changes from quotes, keyed by coin id.
func Changes(quotes map[string]domain.PriceQuote) map[string]float64 {
	out := make(map[string]float64, len(quotes))
	for id, q := range quotes {
		if q.USD24hChange != nil {
			out[id] = *q.USD24hChange
		}
	}
	return out
}
