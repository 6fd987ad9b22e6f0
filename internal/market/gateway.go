package market

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/mtlprog/cryptotrack/internal/domain"
)

const (
	// MaxTopN is the largest page CoinGecko serves from /coins/markets.
	MaxTopN        = 250
	MaxHistoryDays = 365
)

// Upstream is the market data API the gateway reads from.
type Upstream interface {
	SimplePrices(ctx context.Context, ids []string) (map[string]domain.PriceQuote, error)
	MarketChart(ctx context.Context, coinID string, days int) ([]domain.PricePoint, error)
	Markets(ctx context.Context, q MarketsQuery) ([]domain.CoinMarket, error)
}

// Gateway is the read-only entry point to market data. Every upstream failure is
// reported as domain.ErrUpstreamUnavailable so callers can degrade instead of failing.
type Gateway struct {
	upstream Upstream
}

// NewGateway creates a Gateway over upstream.
func NewGateway(upstream Upstream) *Gateway {
	return &Gateway{upstream: upstream}
}

// GetCurrentPrices returns quotes for the given coins. Unknown coins are absent from the map.
// An empty id set returns an empty map without touching the network.
func (g *Gateway) GetCurrentPrices(ctx context.Context, coinIDs []string) (map[string]domain.PriceQuote, error) {
	ids := NormalizeIDs(coinIDs)
	if len(ids) == 0 {
		return map[string]domain.PriceQuote{}, nil
	}

	quotes, err := g.upstream.SimplePrices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching prices: %w", domain.ErrUpstreamUnavailable, err)
	}
	return quotes, nil
}

// GetPriceHistory returns the USD price series of coinID over the last days days, oldest first.
func (g *Gateway) GetPriceHistory(ctx context.Context, coinID string, days int) ([]domain.PricePoint, error) {
	coinID = normalizeID(coinID)
	if coinID == "" {
		return nil, domain.Invalid("coinId", "is required")
	}
	if days < 1 || days > MaxHistoryDays {
		return nil, domain.Invalid("days", fmt.Sprintf("must be between 1 and %d", MaxHistoryDays))
	}

	points, err := g.upstream.MarketChart(ctx, coinID, days)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching history for %s: %w", domain.ErrUpstreamUnavailable, coinID, err)
	}
	return points, nil
}

// GetMarketSnapshot returns the topN coins by market capitalization, with 7-day sparklines.
func (g *Gateway) GetMarketSnapshot(ctx context.Context, topN int) ([]domain.CoinMarket, error) {
	if topN < 1 || topN > MaxTopN {
		return nil, domain.Invalid("limit", fmt.Sprintf("must be between 1 and %d", MaxTopN))
	}

	coins, err := g.upstream.Markets(ctx, MarketsQuery{PerPage: topN, Sparkline: true})
	if err != nil {
		return nil, fmt.Errorf("%w: fetching market snapshot: %w", domain.ErrUpstreamUnavailable, err)
	}
	return coins, nil
}

// GetSparklines returns the 7-day price series of each requested coin that has one.
func (g *Gateway) GetSparklines(ctx context.Context, coinIDs []string) (map[string][]float64, error) {
	result := make(map[string][]float64)
	for _, chunk := range lo.Chunk(NormalizeIDs(coinIDs), MaxTopN) {
		coins, err := g.upstream.Markets(ctx, MarketsQuery{IDs: chunk, PerPage: len(chunk), Sparkline: true})
		if err != nil {
			return nil, fmt.Errorf("%w: fetching sparklines: %w", domain.ErrUpstreamUnavailable, err)
		}
		for _, c := range coins {
			if len(c.Sparkline7d) > 0 {
				result[c.ID] = c.Sparkline7d
			}
		}
	}
	return result, nil
}

// NormalizeIDs lowercases and trims coin ids, dropping blanks and duplicates.
func NormalizeIDs(ids []string) []string {
	return lo.Uniq(lo.Compact(lo.Map(ids, func(id string, _ int) string {
		return normalizeID(id)
	})))
}

func normalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
