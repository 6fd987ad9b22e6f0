package holdings

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mtlprog/cryptotrack/internal/database"
	"github.com/mtlprog/cryptotrack/internal/domain"
)

// Repository defines persistent storage for watchlist and portfolio entries.
// Deletes are scoped to the owning user and return domain.ErrNotFound when nothing matched.
type Repository interface {
	// AddWatchlist returns domain.ErrDuplicateWatchlistEntry if the user already watches the coin.
	AddWatchlist(ctx context.Context, e domain.WatchlistEntry) (domain.WatchlistEntry, error)
	ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error)
	DeleteWatchlist(ctx context.Context, userID, id string) error

	AddPortfolio(ctx context.Context, e domain.PortfolioEntry) (domain.PortfolioEntry, error)
	ListPortfolio(ctx context.Context, userID string) ([]domain.PortfolioEntry, error)
	DeletePortfolio(ctx context.Context, userID, id string) error
}

// PgRepository implements Repository with PostgreSQL.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewPgRepository creates a new PostgreSQL holdings repository.
func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func (r *PgRepository) AddWatchlist(ctx context.Context, e domain.WatchlistEntry) (domain.WatchlistEntry, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO watchlist_entries (id, user_id, coin_id, coin_name)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at`,
		e.ID, e.UserID, e.CoinID, e.CoinName).Scan(&e.CreatedAt)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.WatchlistEntry{}, domain.ErrDuplicateWatchlistEntry
		}
		return domain.WatchlistEntry{}, fmt.Errorf("adding watchlist entry: %w", err)
	}
	return e, nil
}

func (r *PgRepository) ListWatchlist(ctx context.Context, userID string) ([]domain.WatchlistEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, coin_id, coin_name, created_at
		 FROM watchlist_entries
		 WHERE user_id = $1
		 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing watchlist: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.WatchlistEntry, error) {
		var e domain.WatchlistEntry
		err := row.Scan(&e.ID, &e.UserID, &e.CoinID, &e.CoinName, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning watchlist: %w", err)
	}
	return entries, nil
}

func (r *PgRepository) DeleteWatchlist(ctx context.Context, userID, id string) error {
	return r.delete(ctx, `DELETE FROM watchlist_entries WHERE id = $1 AND user_id = $2`, userID, id)
}

func (r *PgRepository) AddPortfolio(ctx context.Context, e domain.PortfolioEntry) (domain.PortfolioEntry, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO portfolio_entries (id, user_id, coin_id, coin_name, quantity, buy_price)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING quantity, buy_price, created_at`,
		e.ID, e.UserID, e.CoinID, e.CoinName, e.Quantity, e.BuyPrice).Scan(&e.Quantity, &e.BuyPrice, &e.CreatedAt)
	if err != nil {
		return domain.PortfolioEntry{}, fmt.Errorf("adding portfolio entry: %w", err)
	}
	return e, nil
}

func (r *PgRepository) ListPortfolio(ctx context.Context, userID string) ([]domain.PortfolioEntry, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, coin_id, coin_name, quantity, buy_price, created_at
		 FROM portfolio_entries
		 WHERE user_id = $1
		 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing portfolio: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.PortfolioEntry, error) {
		var e domain.PortfolioEntry
		err := row.Scan(&e.ID, &e.UserID, &e.CoinID, &e.CoinName, &e.Quantity, &e.BuyPrice, &e.CreatedAt)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scanning portfolio: %w", err)
	}
	return entries, nil
}

func (r *PgRepository) DeletePortfolio(ctx context.Context, userID, id string) error {
	return r.delete(ctx, `DELETE FROM portfolio_entries WHERE id = $1 AND user_id = $2`, userID, id)
}

func (r *PgRepository) delete(ctx context.Context, query, userID, id string) error {
	tag, err := r.pool.Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("deleting entry %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
