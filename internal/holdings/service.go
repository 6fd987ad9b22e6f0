// Package holdings manages each user's watchlist and portfolio lots.
package holdings

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mtlprog/cryptotrack/internal/domain"
)

// WatchlistInput is the client-supplied part of a watchlist entry.
type WatchlistInput struct {
	CoinID   string `json:"coinId"`
	CoinName string `json:"coinName"`
}

// PortfolioInput is the client-supplied part of a portfolio lot.
type PortfolioInput struct {
	CoinID   string          `json:"coinId"`
	CoinName string          `json:"coinName"`
	Quantity decimal.Decimal `json:"quantity"`
	BuyPrice decimal.Decimal `json:"buyPrice"`
}

// Service is the CRUD layer over a user's holdings. The user id always comes from a
// verified session, never from the request body.
type Service struct {
	repo Repository
}

// NewService creates a new holdings Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// AddWatchlistEntry starts watching a coin. Watching the same coin twice fails with
// domain.ErrDuplicateWatchlistEntry.
func (s *Service) AddWatchlistEntry(ctx context.Context, userID string, in WatchlistInput) (domain.WatchlistEntry, error) {
	coinID, coinName, err := validateCoin(in.CoinID, in.CoinName)
	if err != nil {
		return domain.WatchlistEntry{}, err
	}

	entry, err := s.repo.AddWatchlist(ctx, domain.WatchlistEntry{
		ID:       uuid.NewString(),
		UserID:   userID,
		CoinID:   coinID,
		CoinName: coinName,
	})
	if err != nil {
		return domain.WatchlistEntry{}, fmt.Errorf("watching %s: %w", coinID, err)
	}
	return entry, nil
}

// ListWatchlist returns the user's watchlist in insertion order.
func (s *Service) ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error) {
	entries, err := s.repo.ListWatchlist(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNil(entries), nil
}

// RemoveWatchlistEntry deletes one of the user's watchlist entries.
func (s *Service) RemoveWatchlistEntry(ctx context.Context, userID, entryID string) error {
	id, err := parseID(entryID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteWatchlist(ctx, userID, id); err != nil {
		return fmt.Errorf("removing watchlist entry %s: %w", id, err)
	}
	return nil
}

// AddPortfolioEntry records a purchase lot. Several lots of the same coin are allowed.
func (s *Service) AddPortfolioEntry(ctx context.Context, userID string, in PortfolioInput) (domain.PortfolioEntry, error) {
	coinID, coinName, err := validateCoin(in.CoinID, in.CoinName)
	if err != nil {
		return domain.PortfolioEntry{}, err
	}
	if err := validateAmount("quantity", in.Quantity); err != nil {
		return domain.PortfolioEntry{}, err
	}
	if err := validateAmount("buyPrice", in.BuyPrice); err != nil {
		return domain.PortfolioEntry{}, err
	}

	entry, err := s.repo.AddPortfolio(ctx, domain.PortfolioEntry{
		ID:       uuid.NewString(),
		UserID:   userID,
		CoinID:   coinID,
		CoinName: coinName,
		Quantity: in.Quantity,
		BuyPrice: in.BuyPrice,
	})
	if err != nil {
		return domain.PortfolioEntry{}, fmt.Errorf("adding %s to portfolio: %w", coinID, err)
	}
	return entry, nil
}

// ListPortfolio returns the user's lots in insertion order.
func (s *Service) ListPortfolio(ctx context.Context, userID string) ([]domain.PortfolioEntry, error) {
	entries, err := s.repo.ListPortfolio(ctx, userID)
	if err != nil {
		return nil, err
	}
	return nonNil(entries), nil
}

// RemovePortfolioEntry deletes one of the user's lots.
func (s *Service) RemovePortfolioEntry(ctx context.Context, userID, entryID string) error {
	id, err := parseID(entryID)
	if err != nil {
		return err
	}
	if err := s.repo.DeletePortfolio(ctx, userID, id); err != nil {
		return fmt.Errorf("removing portfolio entry %s: %w", id, err)
	}
	return nil
}

func validateCoin(coinID, coinName string) (string, string, error) {
	coinID = strings.ToLower(strings.TrimSpace(coinID))
	coinName = strings.TrimSpace(coinName)
	if coinID == "" {
		return "", "", domain.Invalid("coinId", "is required")
	}
	if coinName == "" {
		return "", "", domain.Invalid("coinName", "is required")
	}
	return coinID, coinName, nil
}

// parseID canonicalizes an entry id. Anything that is not a UUID cannot exist.
func parseID(s string) (string, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return "", domain.ErrNotFound
	}
	return id.String(), nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// Amounts are stored as NUMERIC(38, 18).
const amountScale = 18

var amountLimit = decimal.New(1, 38-amountScale)

// validateAmount rejects values the amount columns cannot hold exactly.
func validateAmount(field string, d decimal.Decimal) error {
	if !d.IsPositive() {
		return domain.Invalid(field, "must be greater than 0")
	}
	if !d.Equal(d.Truncate(amountScale)) {
		return domain.Invalid(field, fmt.Sprintf("must have at most %d decimal places", amountScale))
	}
	if d.GreaterThanOrEqual(amountLimit) {
		return domain.Invalid(field, "must be less than "+amountLimit.String())
	}
	return nil
}
