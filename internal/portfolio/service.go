// Package portfolio assembles the dashboard views: a user's holdings joined with
// live market data and run through the valuation engine.
package portfolio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/sourcegraph/conc"

	"github.com/mtlprog/cryptotrack/internal/domain"
	"github.com/mtlprog/cryptotrack/internal/valuation"
)

// Drawing box and sample count for holding sparklines.
const (
	SparklineWidth  = 120
	SparklineHeight = 30
	SparklinePoints = 12
)

// Holdings is the subset of the holdings service used by portfolio views.
type Holdings interface {
	ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error)
	ListPortfolio(ctx context.Context, userID string) ([]domain.PortfolioEntry, error)
}

// Market is the subset of the market gateway used by portfolio views.
type Market interface {
	GetCurrentPrices(ctx context.Context, coinIDs []string) (map[string]domain.PriceQuote, error)
	GetSparklines(ctx context.Context, coinIDs []string) (map[string][]float64, error)
}

// PortfolioSummary is the full dashboard view of a user's portfolio.
type PortfolioSummary struct {
	Valuation       valuation.Summary              `json:"valuation"`
	Distribution    []valuation.Slice              `json:"distribution"`
	Best            *valuation.Performer           `json:"best,omitempty"`
	Worst           *valuation.Performer           `json:"worst,omitempty"`
	Sparklines      map[string]valuation.Sparkline `json:"sparklines"`
	MissingPrices   []string                       `json:"missingPrices"`
	PricesAvailable bool                           `json:"pricesAvailable"`
}

// WatchlistQuote is a watchlist entry with its current quote. Price is nil when unknown.
type WatchlistQuote struct {
	domain.WatchlistEntry
	Price     *decimal.Decimal `json:"price"`
	Change24h *float64         `json:"change24h"`
}

// Service builds portfolio views. Market failures degrade the view instead of failing it.
type Service struct {
	holdings Holdings
	market   Market
}

// NewService creates a new portfolio Service.
func NewService(holdings Holdings, market Market) *Service {
	return &Service{holdings: holdings, market: market}
}

// Summary values the user's portfolio at current prices, ranks 24h performers
// and draws a sparkline per held coin. Quotes and sparklines are fetched concurrently.
func (s *Service) Summary(ctx context.Context, userID string) (PortfolioSummary, error) {
	entries, err := s.holdings.ListPortfolio(ctx, userID)
	if err != nil {
		return PortfolioSummary{}, fmt.Errorf("listing portfolio for summary: %w", err)
	}
	coins := coinIDs(entries)

	var (
		quotes    map[string]domain.PriceQuote
		series    map[string][]float64
		quotesErr error
	)
	var wg conc.WaitGroup
	wg.Go(func() {
		quotes, quotesErr = s.market.GetCurrentPrices(ctx, coins)
	})
	wg.Go(func() {
		var err error
		series, err = s.market.GetSparklines(ctx, coins)
		if err != nil {
			slog.Warn("sparklines unavailable", "user", userID, "error", err)
			series = nil
		}
	})
	wg.Wait()

	if quotesErr != nil {
		slog.Warn("prices unavailable, valuing portfolio at zero", "user", userID, "error", quotesErr)
		quotes = nil
	}

	summary := valuation.Valuate(entries, valuation.UnitPrices(quotes))
	// Without quotes there are no 24h changes to rank.
	var best, worst *valuation.Performer
	if quotesErr == nil {
		best, worst = valuation.BestWorst(entries, valuation.Changes(quotes))
	}

	return PortfolioSummary{
		Valuation:       summary,
		Distribution:    valuation.Distribution(summary),
		Best:            best,
		Worst:           worst,
		Sparklines:      drawSparklines(coins, series),
		MissingPrices:   missingPrices(summary),
		PricesAvailable: quotesErr == nil,
	}, nil
}

// Valuation values the user's portfolio at current prices. Unlike Summary it fails
// when prices cannot be fetched, so exports never contain zeroed values.
func (s *Service) Valuation(ctx context.Context, userID string) (valuation.Summary, error) {
	entries, err := s.holdings.ListPortfolio(ctx, userID)
	if err != nil {
		return valuation.Summary{}, fmt.Errorf("listing portfolio for valuation: %w", err)
	}

	quotes, err := s.market.GetCurrentPrices(ctx, coinIDs(entries))
	if err != nil {
		return valuation.Summary{}, fmt.Errorf("pricing portfolio: %w", err)
	}
	return valuation.Valuate(entries, valuation.UnitPrices(quotes)), nil
}

// Watchlist joins the user's watchlist with current quotes. A failed quote fetch
// yields entries without prices.
func (s *Service) Watchlist(ctx context.Context, userID string) ([]WatchlistQuote, error) {
	entries, err := s.holdings.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing watchlist for quotes: %w", err)
	}

	ids := lo.Map(entries, func(e domain.WatchlistEntry, _ int) string { return e.CoinID })
	quotes, err := s.market.GetCurrentPrices(ctx, ids)
	if err != nil {
		slog.Warn("watchlist quotes unavailable", "user", userID, "error", err)
		quotes = nil
	}

	return lo.Map(entries, func(e domain.WatchlistEntry, _ int) WatchlistQuote {
		wq := WatchlistQuote{WatchlistEntry: e}
		if q, ok := quotes[e.CoinID]; ok {
			price := q.USD
			wq.Price = &price
			wq.Change24h = q.USD24hChange
		}
		return wq
	}), nil
}

func coinIDs(entries []domain.PortfolioEntry) []string {
	return lo.Uniq(lo.Map(entries, func(e domain.PortfolioEntry, _ int) string { return e.CoinID }))
}

func drawSparklines(coins []string, series map[string][]float64) map[string]valuation.Sparkline {
	out := make(map[string]valuation.Sparkline, len(coins))
	for _, coin := range coins {
		line, err := valuation.NewSparkline(valuation.Tail(series[coin], SparklinePoints), SparklineWidth, SparklineHeight)
		if err != nil {
			continue
		}
		out[coin] = line
	}
	return out
}

func missingPrices(s valuation.Summary) []string {
	return lo.Uniq(lo.FilterMap(s.Entries, func(ev valuation.EntryValuation, _ int) (string, bool) {
		return ev.Entry.CoinID, !ev.PriceKnown
	}))
}
