package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mtlprog/cryptotrack/internal/domain"
)

// NewServer creates an HTTP server with all routes configured.
func NewServer(port, corsOrigin string, h *Handler) *http.Server {
	return &http.Server{
		Addr:         ":" + port,
		Handler:      h.Routes(corsOrigin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Routes returns the API route table wrapped in CORS and request logging.
func (h *Handler) Routes(corsOrigin string) http.Handler {
	mux := http.NewServeMux()
	authed := func(fn http.HandlerFunc) http.Handler {
		return requireAuth(h.auth, fn)
	}

	mux.HandleFunc("GET /healthz", h.Health)

	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.HandleFunc("POST /api/auth/login", h.Login)

	mux.Handle("POST /api/portfolio/add", authed(h.AddPortfolioEntry))
	mux.Handle("GET /api/portfolio/user", authed(h.ListPortfolio))
	mux.Handle("GET /api/portfolio/summary", authed(h.PortfolioSummary))
	mux.Handle("GET /api/portfolio/export", authed(h.ExportPortfolio))
	mux.Handle("DELETE /api/portfolio/{id}", authed(h.RemovePortfolioEntry))

	mux.Handle("POST /api/watchlist/add", authed(h.AddWatchlistEntry))
	mux.Handle("GET /api/watchlist/user", authed(h.ListWatchlist))
	mux.Handle("GET /api/watchlist/quotes", authed(h.WatchlistQuotes))
	mux.Handle("DELETE /api/watchlist/{id}", authed(h.RemoveWatchlistEntry))

	mux.HandleFunc("GET /api/market/top", h.TopCoins)
	mux.HandleFunc("GET /api/market/prices", h.Prices)
	mux.HandleFunc("GET /api/market/{coinId}/history", h.PriceHistory)

	return logRequests(withCORS(corsOrigin, mux))
}

// TokenVerifier resolves a session token to the user id it was issued for.
type TokenVerifier interface {
	Verify(token string) (string, error)
}

type ctxKey struct{}

// userID returns the id of the authenticated user. Only valid behind requireAuth.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

// requireAuth accepts "Authorization: Bearer <token>" as well as a bare token.
func requireAuth(verifier TokenVerifier, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := strings.TrimSpace(r.Header.Get("Authorization"))
		token := header
		if scheme, rest, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
			token = strings.TrimSpace(rest)
		}
		// A scheme with no credentials carries no token.
		if strings.EqualFold(token, "Bearer") {
			token = ""
		}

		id, err := verifier.Verify(token)
		if err != nil {
			if errors.Is(err, domain.ErrMissingToken) {
				writeError(w, http.StatusUnauthorized, kindMissingToken, "no token provided")
				return
			}
			writeError(w, http.StatusUnauthorized, kindInvalidToken, "invalid token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
	})
}

func withCORS(origin string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin != "" {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			h.Set("Access-Control-Expose-Headers", "Content-Disposition")
			if origin != "*" {
				h.Add("Vary", "Origin")
			}
		}
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
