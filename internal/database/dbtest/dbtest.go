// Package dbtest provides a migrated PostgreSQL pool for repository tests.
package dbtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/mtlprog/cryptotrack/internal/database"
)

// Pool connects to DATABASE_URL and applies the embedded migrations.
// The test is skipped when DATABASE_URL is not set.
func Pool(t testing.TB) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := database.Connect(ctx, url, 2)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.RunMigrations(ctx, pool, database.Migrations()))
	return pool
}
