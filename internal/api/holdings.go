package api

import (
	"bytes"
	"net/http"
	"strconv"
	"time"

	"github.com/mtlprog/cryptotrack/internal/export"
	"github.com/mtlprog/cryptotrack/internal/holdings"
)

// AddWatchlistEntry handles POST /api/watchlist/add.
func (h *Handler) AddWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	var req holdings.WatchlistInput
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.holdings.AddWatchlistEntry(r.Context(), userID(r.Context()), req)
	if err != nil {
		writeServiceError(w, "add watchlist entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// ListWatchlist handles GET /api/watchlist/user.
func (h *Handler) ListWatchlist(w http.ResponseWriter, r *http.Request) {
	entries, err := h.holdings.ListWatchlist(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, "list watchlist", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// WatchlistQuotes handles GET /api/watchlist/quotes.
func (h *Handler) WatchlistQuotes(w http.ResponseWriter, r *http.Request) {
	quotes, err := h.portfolio.Watchlist(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, "watchlist quotes", err)
		return
	}
	writeJSON(w, http.StatusOK, quotes)
}

// RemoveWatchlistEntry handles DELETE /api/watchlist/{id}.
func (h *Handler) RemoveWatchlistEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.holdings.RemoveWatchlistEntry(r.Context(), userID(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, "remove watchlist entry", err)
		return
	}
	writeJSON(w, http.StatusOK, message("removed from watchlist"))
}

// AddPortfolioEntry handles POST /api/portfolio/add.
func (h *Handler) AddPortfolioEntry(w http.ResponseWriter, r *http.Request) {
	var req holdings.PortfolioInput
	if !decodeJSON(w, r, &req) {
		return
	}

	entry, err := h.holdings.AddPortfolioEntry(r.Context(), userID(r.Context()), req)
	if err != nil {
		writeServiceError(w, "add portfolio entry", err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// ListPortfolio handles GET /api/portfolio/user.
func (h *Handler) ListPortfolio(w http.ResponseWriter, r *http.Request) {
	entries, err := h.holdings.ListPortfolio(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, "list portfolio", err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// RemovePortfolioEntry handles DELETE /api/portfolio/{id}.
func (h *Handler) RemovePortfolioEntry(w http.ResponseWriter, r *http.Request) {
	if err := h.holdings.RemovePortfolioEntry(r.Context(), userID(r.Context()), r.PathValue("id")); err != nil {
		writeServiceError(w, "remove portfolio entry", err)
		return
	}
	writeJSON(w, http.StatusOK, message("entry deleted"))
}

// PortfolioSummary handles GET /api/portfolio/summary.
func (h *Handler) PortfolioSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.portfolio.Summary(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, "portfolio summary", err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// ExportPortfolio handles GET /api/portfolio/export?format=csv|xlsx.
func (h *Handler) ExportPortfolio(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, kindInvalidInput, err.Error())
		return
	}

	summary, err := h.portfolio.Valuation(r.Context(), userID(r.Context()))
	if err != nil {
		writeServiceError(w, "export portfolio", err)
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, summary); err != nil {
		writeServiceError(w, "export portfolio", err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+format.Filename(time.Now())+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}
