// Package api exposes the REST interface over auth, holdings and market data.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/mtlprog/cryptotrack/internal/auth"
	"github.com/mtlprog/cryptotrack/internal/domain"
	"github.com/mtlprog/cryptotrack/internal/holdings"
	"github.com/mtlprog/cryptotrack/internal/portfolio"
	"github.com/mtlprog/cryptotrack/internal/valuation"
)

// Stable error kinds returned in the "error" field of error bodies.
const (
	kindInvalidInput            = "InvalidInput"
	kindDuplicateEmail          = "DuplicateEmail"
	kindDuplicateWatchlistEntry = "DuplicateWatchlistEntry"
	kindNotFound                = "NotFound"
	kindInvalidCredentials      = "InvalidCredentials"
	kindMissingToken            = "MissingToken"
	kindInvalidToken            = "InvalidToken"
	kindUpstreamUnavailable     = "UpstreamUnavailable"
	kindInternal                = "Internal"
)

const maxBodyBytes = 1 << 20

// Authenticator registers users and issues and verifies session tokens.
type Authenticator interface {
	TokenVerifier
	Register(ctx context.Context, email, password string) (domain.User, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
}

// HoldingsService manages the authenticated user's watchlist and portfolio.
type HoldingsService interface {
	AddWatchlistEntry(ctx context.Context, userID string, in holdings.WatchlistInput) (domain.WatchlistEntry, error)
	ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error)
	RemoveWatchlistEntry(ctx context.Context, userID, entryID string) error
	AddPortfolioEntry(ctx context.Context, userID string, in holdings.PortfolioInput) (domain.PortfolioEntry, error)
	ListPortfolio(ctx context.Context, userID string) ([]domain.PortfolioEntry, error)
	RemovePortfolioEntry(ctx context.Context, userID, entryID string) error
}

// PortfolioViews builds valued views of a user's holdings.
type PortfolioViews interface {
	Summary(ctx context.Context, userID string) (portfolio.PortfolioSummary, error)
	Watchlist(ctx context.Context, userID string) ([]portfolio.WatchlistQuote, error)
	Valuation(ctx context.Context, userID string) (valuation.Summary, error)
}

// MarketData is the read-only market data gateway.
type MarketData interface {
	GetCurrentPrices(ctx context.Context, coinIDs []string) (map[string]domain.PriceQuote, error)
	GetPriceHistory(ctx context.Context, coinID string, days int) ([]domain.PricePoint, error)
	GetMarketSnapshot(ctx context.Context, topN int) ([]domain.CoinMarket, error)
}

// Handler provides HTTP endpoints for the tracker API.
type Handler struct {
	auth      Authenticator
	holdings  HoldingsService
	portfolio PortfolioViews
	market    MarketData
}

// NewHandler creates a new API handler.
func NewHandler(authn Authenticator, hs HoldingsService, views PortfolioViews, md MarketData) *Handler {
	return &Handler{
		auth:      authn,
		holdings:  hs,
		portfolio: views,
		market:    md,
	}
}

// Health handles GET /healthz.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/auth/register.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	if _, err := h.auth.Register(r.Context(), req.Email, req.Password); err != nil {
		writeServiceError(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, message("user registered successfully"))
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if !decodeJSON(w, r, &req) {
		return
	}

	session, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields.
// It writes a 400 response and returns false on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidInput, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, kindInvalidInput, "request body must contain a single JSON object")
		return false
	}
	return true
}

// writeServiceError maps a domain error to its HTTP status and kind.
// Anything unrecognized is logged and reported as an internal error.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, kindInvalidInput, validationMessage(err))
	case errors.Is(err, domain.ErrDuplicateEmail):
		writeError(w, http.StatusBadRequest, kindDuplicateEmail, domain.ErrDuplicateEmail.Error())
	case errors.Is(err, domain.ErrDuplicateWatchlistEntry):
		writeError(w, http.StatusBadRequest, kindDuplicateWatchlistEntry, domain.ErrDuplicateWatchlistEntry.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, kindInvalidCredentials, domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, kindNotFound, "entry not found")
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		slog.Warn("market data unavailable", "op", op, "error", err)
		writeError(w, http.StatusBadGateway, kindUpstreamUnavailable, domain.ErrUpstreamUnavailable.Error())
	default:
		slog.Error("request failed", "op", op, "error", err)
		writeError(w, http.StatusInternalServerError, kindInternal, "internal error")
	}
}

func validationMessage(err error) string {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		return verr.Error()
	}
	return err.Error()
}

func message(msg string) map[string]string {
	return map[string]string{"message": msg}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":"Internal","message":"internal error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.Warn("failed to write HTTP response body", "error", err)
		return
	}
	_, _ = w.Write([]byte("\n"))
}

func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]string{"error": kind, "message": msg})
}
