package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/mtlprog/cryptotrack/internal/domain"
)

const (
	defaultTopN        = 10
	defaultHistoryDays = 30
)

// TopCoins handles GET /api/market/top?limit=N.
func (h *Handler) TopCoins(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(w, r, "limit", defaultTopN)
	if !ok {
		return
	}

	coins, err := h.market.GetMarketSnapshot(r.Context(), limit)
	if err != nil {
		writeServiceError(w, "market snapshot", err)
		return
	}
	writeJSON(w, http.StatusOK, coins)
}

// Prices handles GET /api/market/prices?ids=a,b.
func (h *Handler) Prices(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("ids")
	if strings.TrimSpace(raw) == "" {
		writeServiceError(w, "prices", domain.Invalid("ids", "is required"))
		return
	}

	quotes, err := h.market.GetCurrentPrices(r.Context(), strings.Split(raw, ","))
	if err != nil {
		writeServiceError(w, "prices", err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

// PriceHistory handles GET /api/market/{coinId}/history?days=N.
func (h *Handler) PriceHistory(w http.ResponseWriter, r *http.Request) {
	days, ok := intParam(w, r, "days", defaultHistoryDays)
	if !ok {
		return
	}

	points, err := h.market.GetPriceHistory(r.Context(), r.PathValue("coinId"), days)
	if err != nil {
		writeServiceError(w, "price history", err)
		return
	}
	writeJSON(w, http.StatusOK, points)
}

// intParam reads an optional integer query parameter. Range checks belong to the gateway.
func intParam(w http.ResponseWriter, r *http.Request, name string, def int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		writeServiceError(w, name, domain.Invalid(name, "must be an integer"))
		return 0, false
	}
	return n, true
}
