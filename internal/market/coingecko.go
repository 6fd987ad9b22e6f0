package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotrack/internal/domain"
)

const apiKeyHeader = "x-cg-demo-api-key"

var errRateLimited = errors.New("CoinGecko rate limited")

// MarketsQuery selects rows from /coins/markets. Results are ordered by market cap, descending.
type MarketsQuery struct {
	IDs       []string // empty lists the whole market
	PerPage   int
	Sparkline bool
}

// CoinGeckoClient fetches USD market data from the CoinGecko API.
type CoinGeckoClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	delay      time.Duration
	maxRetries int
}

// NewCoinGeckoClient creates a new CoinGecko API client. Only HTTP 429 responses are
// retried, at most maxRetries times with exponential backoff starting at delay.
func NewCoinGeckoClient(baseURL, apiKey string, delay time.Duration, maxRetries int) *CoinGeckoClient {
	return &CoinGeckoClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		delay:      delay,
		maxRetries: max(maxRetries, 0),
	}
}

type simplePrice struct {
	USD          *decimal.Decimal `json:"usd"`
	USD24hChange *float64         `json:"usd_24h_change"`
}

// SimplePrices fetches current USD prices and 24h changes for the given coin ids.
// Coins CoinGecko does not know are absent from the result.
func (c *CoinGeckoClient) SimplePrices(ctx context.Context, ids []string) (map[string]domain.PriceQuote, error) {
	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", "usd")
	q.Set("include_24hr_change", "true")

	// Parse: {"bitcoin":{"usd":45000,"usd_24h_change":1.2},...}
	var raw map[string]simplePrice
	if err := c.getJSON(ctx, "/simple/price", q, &raw); err != nil {
		return nil, err
	}

	result := make(map[string]domain.PriceQuote, len(raw))
	for id, p := range raw {
		if p.USD == nil {
			continue
		}
		result[id] = domain.PriceQuote{CoinID: id, USD: *p.USD, USD24hChange: p.USD24hChange}
	}
	return result, nil
}

type marketChart struct {
	Prices [][2]decimal.Decimal `json:"prices"` // [unix millis, price]
}

// MarketChart fetches the USD price history of a coin over the last days days, oldest first.
func (c *CoinGeckoClient) MarketChart(ctx context.Context, coinID string, days int) ([]domain.PricePoint, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("days", strconv.Itoa(days))

	var raw marketChart
	if err := c.getJSON(ctx, "/coins/"+url.PathEscape(coinID)+"/market_chart", q, &raw); err != nil {
		return nil, err
	}

	return lo.Map(raw.Prices, func(p [2]decimal.Decimal, _ int) domain.PricePoint {
		return domain.PricePoint{
			Timestamp: time.UnixMilli(p[0].IntPart()).UTC(),
			Price:     p[1],
		}
	}), nil
}

type coinMarket struct {
	ID                       string           `json:"id"`
	Symbol                   string           `json:"symbol"`
	Name                     string           `json:"name"`
	Image                    string           `json:"image"`
	CurrentPrice             *decimal.Decimal `json:"current_price"`
	MarketCap                *decimal.Decimal `json:"market_cap"`
	MarketCapRank            *int             `json:"market_cap_rank"`
	PriceChangePercentage24h *float64         `json:"price_change_percentage_24h"`
	SparklineIn7d            *struct {
		Price []float64 `json:"price"`
	} `json:"sparkline_in_7d"`
}

// Markets lists coins with price, market cap and optionally a 7-day sparkline.
func (c *CoinGeckoClient) Markets(ctx context.Context, mq MarketsQuery) ([]domain.CoinMarket, error) {
	q := url.Values{}
	q.Set("vs_currency", "usd")
	q.Set("order", "market_cap_desc")
	q.Set("per_page", strconv.Itoa(mq.PerPage))
	q.Set("page", "1")
	q.Set("sparkline", strconv.FormatBool(mq.Sparkline))
	q.Set("price_change_percentage", "24h")
	if len(mq.IDs) > 0 {
		q.Set("ids", strings.Join(mq.IDs, ","))
	}

	var raw []coinMarket
	if err := c.getJSON(ctx, "/coins/markets", q, &raw); err != nil {
		return nil, err
	}

	return lo.Map(raw, func(m coinMarket, _ int) domain.CoinMarket {
		cm := domain.CoinMarket{
			ID:                       m.ID,
			Symbol:                   m.Symbol,
			Name:                     m.Name,
			Image:                    m.Image,
			CurrentPrice:             lo.FromPtr(m.CurrentPrice),
			MarketCap:                lo.FromPtr(m.MarketCap),
			MarketCapRank:            lo.FromPtr(m.MarketCapRank),
			PriceChangePercentage24h: m.PriceChangePercentage24h,
		}
		if m.SparklineIn7d != nil {
			cm.Sparkline7d = m.SparklineIn7d.Price
		}
		return cm
	}), nil
}

func (c *CoinGeckoClient) getJSON(ctx context.Context, path string, query url.Values, dest any) error {
	body, err := c.fetchWithRetry(ctx, c.baseURL+path+"?"+query.Encode())
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing CoinGecko response from %s: %w", path, err)
	}
	return nil
}

func (c *CoinGeckoClient) fetchWithRetry(ctx context.Context, endpoint string) ([]byte, error) {
	return retry.DoWithData(
		func() ([]byte, error) { return c.fetch(ctx, endpoint) },
		retry.Context(ctx),
		retry.Attempts(uint(c.maxRetries)+1),
		retry.Delay(c.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(func(err error) bool { return errors.Is(err, errRateLimited) }),
		retry.LastErrorOnly(true),
	)
}

func (c *CoinGeckoClient) fetch(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating CoinGecko request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("CoinGecko request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading CoinGecko response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errRateLimited
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("CoinGecko HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
