package api

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mtlprog/cryptotrack/internal/auth"
	"github.com/mtlprog/cryptotrack/internal/domain"
	"github.com/mtlprog/cryptotrack/internal/export"
	"github.com/mtlprog/cryptotrack/internal/holdings"
	"github.com/mtlprog/cryptotrack/internal/portfolio"
	"github.com/mtlprog/cryptotrack/internal/valuation"
)

type memUsers struct {
	mu    sync.Mutex
	users map[string]domain.User
}

func (m *memUsers) Create(_ context.Context, u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.Email]; ok {
		return domain.User{}, domain.ErrDuplicateEmail
	}
	m.users[u.Email] = u
	return u, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[email]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return u, nil
}

func (m *memUsers) GetByID(_ context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

type mockHoldings struct {
	lastUserID    string
	lastPortfolio holdings.PortfolioInput
	watchlist     []domain.WatchlistEntry
	portfolio     []domain.PortfolioEntry
	err           error
}

func (m *mockHoldings) AddWatchlistEntry(_ context.Context, userID string, in holdings.WatchlistInput) (domain.WatchlistEntry, error) {
	m.lastUserID = userID
	if m.err != nil {
		return domain.WatchlistEntry{}, m.err
	}
	return domain.WatchlistEntry{ID: "w1", UserID: userID, CoinID: in.CoinID, CoinName: in.CoinName}, nil
}

func (m *mockHoldings) ListWatchlist(_ context.Context, userID string) ([]domain.WatchlistEntry, error) {
	m.lastUserID = userID
	return m.watchlist, m.err
}

func (m *mockHoldings) RemoveWatchlistEntry(_ context.Context, userID, _ string) error {
	m.lastUserID = userID
	return m.err
}

func (m *mockHoldings) AddPortfolioEntry(_ context.Context, userID string, in holdings.PortfolioInput) (domain.PortfolioEntry, error) {
	m.lastUserID = userID
	m.lastPortfolio = in
	if m.err != nil {
		return domain.PortfolioEntry{}, m.err
	}
	return domain.PortfolioEntry{
		ID: "p1", UserID: userID, CoinID: in.CoinID, CoinName: in.CoinName,
		Quantity: in.Quantity, BuyPrice: in.BuyPrice,
	}, nil
}

func (m *mockHoldings) ListPortfolio(_ context.Context, userID string) ([]domain.PortfolioEntry, error) {
	m.lastUserID = userID
	return m.portfolio, m.err
}

func (m *mockHoldings) RemovePortfolioEntry(_ context.Context, userID, _ string) error {
	m.lastUserID = userID
	return m.err
}

type mockViews struct {
	summary   portfolio.PortfolioSummary
	quotes    []portfolio.WatchlistQuote
	valuation valuation.Summary
	err       error
}

func (m *mockViews) Summary(_ context.Context, _ string) (portfolio.PortfolioSummary, error) {
	return m.summary, m.err
}

func (m *mockViews) Watchlist(_ context.Context, _ string) ([]portfolio.WatchlistQuote, error) {
	return m.quotes, m.err
}

func (m *mockViews) Valuation(_ context.Context, _ string) (valuation.Summary, error) {
	return m.valuation, m.err
}

type mockMarket struct {
	lastIDs  []string
	lastDays int
	lastTopN int
	quotes   map[string]domain.PriceQuote
	err      error
}

func (m *mockMarket) GetCurrentPrices(_ context.Context, ids []string) (map[string]domain.PriceQuote, error) {
	m.lastIDs = ids
	return m.quotes, m.err
}

func (m *mockMarket) GetPriceHistory(_ context.Context, coinID string, days int) ([]domain.PricePoint, error) {
	m.lastDays = days
	if m.err != nil {
		return nil, m.err
	}
	if days > 365 {
		return nil, domain.Invalid("days", "must be between 1 and 365")
	}
	return []domain.PricePoint{}, nil
}

func (m *mockMarket) GetMarketSnapshot(_ context.Context, topN int) ([]domain.CoinMarket, error) {
	m.lastTopN = topN
	return []domain.CoinMarket{}, m.err
}

type fixture struct {
	h        *Handler
	holdings *mockHoldings
	views    *mockViews
	market   *mockMarket
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	authSvc := auth.NewService(&memUsers{users: make(map[string]domain.User)}, auth.NewTokenIssuer("test-secret", 0), bcrypt.MinCost)
	f := &fixture{
		holdings: &mockHoldings{},
		views:    &mockViews{},
		market:   &mockMarket{},
	}
	f.h = NewHandler(authSvc, f.holdings, f.views, f.market)
	return f
}

func newTestHandler(t *testing.T) *Handler {
	return newFixture(t).h
}

func do(t *testing.T, h *Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.Routes("*").ServeHTTP(w, req)
	return w
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

// login registers alice and returns a session token for her.
func (f *fixture) login(t *testing.T) string {
	t.Helper()
	w := do(t, f.h, http.MethodPost, "/api/auth/register", "", `{"email":"alice@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, f.h, http.MethodPost, "/api/auth/login", "", `{"email":"alice@example.com","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var session auth.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	require.NotEmpty(t, session.Token)
	assert.Equal(t, "alice@example.com", session.Email)
	return session.Token
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := do(t, f.h, http.MethodGet, "/api/watchlist/user", token, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, f.holdings.lastUserID)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	w := do(t, f.h, http.MethodPost, "/api/auth/register", "", `{"email":"ALICE@example.com","password":"other"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, kindDuplicateEmail, decodeError(t, w).Error)
}

func TestRegisterInvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing password", `{"email":"bob@example.com"}`},
		{"bad email", `{"email":"bob","password":"x"}`},
		{"unknown field", `{"email":"bob@example.com","password":"x","admin":true}`},
		{"malformed json", `{"email":`},
		{"trailing data", `{"email":"bob@example.com","password":"x"} {}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			w := do(t, f.h, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, kindInvalidInput, decodeError(t, w).Error)
		})
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newFixture(t)
	f.login(t)

	for _, body := range []string{
		`{"email":"alice@example.com","password":"wrong"}`,
		`{"email":"nobody@example.com","password":"s3cret"}`,
	} {
		w := do(t, f.h, http.MethodPost, "/api/auth/login", "", body)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		got := decodeError(t, w)
		assert.Equal(t, kindInvalidCredentials, got.Error)
		assert.Equal(t, "invalid email or password", got.Message)
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	f := newFixture(t)
	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/portfolio/add"},
		{http.MethodGet, "/api/portfolio/user"},
		{http.MethodGet, "/api/portfolio/summary"},
		{http.MethodGet, "/api/portfolio/export"},
		{http.MethodDelete, "/api/portfolio/abc"},
		{http.MethodPost, "/api/watchlist/add"},
		{http.MethodGet, "/api/watchlist/user"},
		{http.MethodGet, "/api/watchlist/quotes"},
		{http.MethodDelete, "/api/watchlist/abc"},
	}
	for _, rt := range routes {
		w := do(t, f.h, rt.method, rt.path, "", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", rt.method, rt.path)
		assert.Equal(t, kindMissingToken, decodeError(t, w).Error)

		w = do(t, f.h, rt.method, rt.path, "forged", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", rt.method, rt.path)
		assert.Equal(t, kindInvalidToken, decodeError(t, w).Error)
	}
}

func TestAddPortfolioEntry(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := do(t, f.h, http.MethodPost, "/api/portfolio/add", token,
		`{"coinId":"bitcoin","coinName":"Bitcoin","quantity":0.5,"buyPrice":"40000"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var entry domain.PortfolioEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entry))
	assert.Equal(t, "bitcoin", entry.CoinID)
	assert.True(t, f.holdings.lastPortfolio.Quantity.Equal(decimal.RequireFromString("0.5")))
	assert.True(t, f.holdings.lastPortfolio.BuyPrice.Equal(decimal.NewFromInt(40000)))
}

func TestAddPortfolioEntryUserIDFromToken(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := do(t, f.h, http.MethodPost, "/api/portfolio/add", token,
		`{"coinId":"bitcoin","coinName":"Bitcoin","quantity":1,"buyPrice":1,"userId":"someone-else"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.holdings.lastUserID)
}

func TestAddWatchlistEntryDuplicate(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.holdings.err = domain.ErrDuplicateWatchlistEntry

	w := do(t, f.h, http.MethodPost, "/api/watchlist/add", token, `{"coinId":"bitcoin","coinName":"Bitcoin"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, kindDuplicateWatchlistEntry, decodeError(t, w).Error)
}

func TestRemoveEntryNotFound(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.holdings.err = domain.ErrNotFound

	for _, path := range []string{"/api/portfolio/missing", "/api/watchlist/missing"} {
		w := do(t, f.h, http.MethodDelete, path, token, "")
		assert.Equal(t, http.StatusNotFound, w.Code, path)
		assert.Equal(t, kindNotFound, decodeError(t, w).Error)
	}
}

func TestRemovePortfolioEntry(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := do(t, f.h, http.MethodDelete, "/api/portfolio/p1", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message":"entry deleted"}`, w.Body.String())
}

func TestListPortfolioEmpty(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.holdings.portfolio = []domain.PortfolioEntry{}

	w := do(t, f.h, http.MethodGet, "/api/portfolio/user", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestUnexpectedErrorIsInternal(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.holdings.err = errors.New("connection reset")

	w := do(t, f.h, http.MethodGet, "/api/portfolio/user", token, "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	got := decodeError(t, w)
	assert.Equal(t, kindInternal, got.Error)
	assert.NotContains(t, got.Message, "connection reset")
}

func TestExportPortfolioCSV(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.views.valuation = valuation.Valuate(
		[]domain.PortfolioEntry{{ID: "p1", CoinID: "bitcoin", CoinName: "Bitcoin",
			Quantity: decimal.NewFromInt(1), BuyPrice: decimal.NewFromInt(20000)}},
		map[string]decimal.Decimal{"bitcoin": decimal.NewFromInt(22500)},
	)

	w := do(t, f.h, http.MethodGet, "/api/portfolio/export?format=csv", token, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "portfolio_export_")

	records, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, export.Header, records[0])
	assert.Equal(t, "2500.00", records[1][6])
}

func TestExportPortfolioBadFormat(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)

	w := do(t, f.h, http.MethodGet, "/api/portfolio/export?format=pdf", token, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, kindInvalidInput, decodeError(t, w).Error)
}

func TestExportPortfolioUpstreamDown(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.views.err = domain.ErrUpstreamUnavailable

	w := do(t, f.h, http.MethodGet, "/api/portfolio/export", token, "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, kindUpstreamUnavailable, decodeError(t, w).Error)
}

func TestPortfolioSummary(t *testing.T) {
	f := newFixture(t)
	token := f.login(t)
	f.views.summary = portfolio.PortfolioSummary{PricesAvailable: false, MissingPrices: []string{"bitcoin"}}

	w := do(t, f.h, http.MethodGet, "/api/portfolio/summary", token, "")
	require.Equal(t, http.StatusOK, w.Code)

	var got portfolio.PortfolioSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.False(t, got.PricesAvailable)
	assert.Equal(t, []string{"bitcoin"}, got.MissingPrices)
}

func TestMarketPrices(t *testing.T) {
	f := newFixture(t)
	f.market.quotes = map[string]domain.PriceQuote{
		"bitcoin": {CoinID: "bitcoin", USD: decimal.NewFromInt(45000)},
	}

	w := do(t, f.h, http.MethodGet, "/api/market/prices?ids=bitcoin,ethereum", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"bitcoin", "ethereum"}, f.market.lastIDs)
	assert.Contains(t, w.Body.String(), `"bitcoin"`)
}

func TestMarketPricesRequiresIDs(t *testing.T) {
	f := newFixture(t)
	w := do(t, f.h, http.MethodGet, "/api/market/prices", "", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, kindInvalidInput, decodeError(t, w).Error)
}

func TestMarketUpstreamUnavailable(t *testing.T) {
	f := newFixture(t)
	f.market.err = domain.ErrUpstreamUnavailable

	for _, path := range []string{"/api/market/top", "/api/market/prices?ids=bitcoin", "/api/market/bitcoin/history"} {
		w := do(t, f.h, http.MethodGet, path, "", "")
		assert.Equal(t, http.StatusBadGateway, w.Code, path)
		assert.Equal(t, kindUpstreamUnavailable, decodeError(t, w).Error)
	}
}

func TestMarketQueryDefaults(t *testing.T) {
	f := newFixture(t)

	do(t, f.h, http.MethodGet, "/api/market/top", "", "")
	assert.Equal(t, defaultTopN, f.market.lastTopN)

	do(t, f.h, http.MethodGet, "/api/market/bitcoin/history", "", "")
	assert.Equal(t, defaultHistoryDays, f.market.lastDays)

	do(t, f.h, http.MethodGet, "/api/market/bitcoin/history?days=7", "", "")
	assert.Equal(t, 7, f.market.lastDays)
}

func TestMarketHistoryInvalidDays(t *testing.T) {
	f := newFixture(t)

	for _, q := range []string{"days=abc", "days=400"} {
		w := do(t, f.h, http.MethodGet, "/api/market/bitcoin/history?"+q, "", "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, kindInvalidInput, decodeError(t, w).Error)
	}
}
