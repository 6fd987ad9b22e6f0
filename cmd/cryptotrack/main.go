package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/urfave/cli/v2"

	"github.com/mtlprog/cryptotrack/internal/api"
	"github.com/mtlprog/cryptotrack/internal/auth"
	"github.com/mtlprog/cryptotrack/internal/config"
	"github.com/mtlprog/cryptotrack/internal/database"
	"github.com/mtlprog/cryptotrack/internal/export"
	"github.com/mtlprog/cryptotrack/internal/holdings"
	"github.com/mtlprog/cryptotrack/internal/logging"
	"github.com/mtlprog/cryptotrack/internal/market"
	"github.com/mtlprog/cryptotrack/internal/portfolio"
)

const dbMaxConns = 10

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load()
	logging.Setup(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})

	app := &cli.App{
		Name:   "cryptotrack",
		Usage:  "crypto watchlist and portfolio tracker API",
		Action: func(c *cli.Context) error { return serve(c.Context, cfg) },
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "apply migrations and start the HTTP API",
				Action: func(c *cli.Context) error { return serve(c.Context, cfg) },
			},
			{
				Name:  "migrate",
				Usage: "apply pending database migrations and exit",
				Action: func(c *cli.Context) error {
					pool, err := openDatabase(c.Context, cfg)
					if err != nil {
						return err
					}
					pool.Close()
					slog.Info("migrations applied")
					return nil
				},
			},
			{
				Name:  "export-sheets",
				Usage: "publish a user's valued portfolio to Google Sheets",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Usage: "account whose portfolio is exported", Required: true},
				},
				Action: func(c *cli.Context) error { return exportSheets(c.Context, cfg, c.String("email")) },
			},
		},
	}

	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatalf("cryptotrack: %v", err)
	}
}

type services struct {
	auth      *auth.Service
	holdings  *holdings.Service
	market    *market.Gateway
	portfolio *portfolio.Service
}

func newServices(cfg config.Config, pool *pgxpool.Pool) services {
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	authSvc := auth.NewService(auth.NewPgUserRepository(pool), tokens, cfg.BcryptCost)

	holdingsSvc := holdings.NewService(holdings.NewPgRepository(pool))

	coingecko := market.NewCoinGeckoClient(cfg.CoinGeckoURL, cfg.CoinGeckoAPIKey, cfg.CoinGeckoDelay, cfg.CoinGeckoRetryMax)
	gateway := market.NewGateway(coingecko)

	return services{
		auth:      authSvc,
		holdings:  holdingsSvc,
		market:    gateway,
		portfolio: portfolio.NewService(holdingsSvc, gateway),
	}
}

// openDatabase connects to PostgreSQL and applies pending migrations.
func openDatabase(ctx context.Context, cfg config.Config) (*pgxpool.Pool, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL, dbMaxConns)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	if err := database.RunMigrations(ctx, pool, database.Migrations()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return pool, nil
}

func serve(ctx context.Context, cfg config.Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := newServices(cfg, pool)
	handler := api.NewHandler(svc.auth, svc.holdings, svc.portfolio, svc.market)
	srv := api.NewServer(cfg.HTTPPort, cfg.CORSOrigin, handler)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("HTTP server: %w", err)
		}
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}

func exportSheets(ctx context.Context, cfg config.Config, email string) error {
	if cfg.GoogleCredentialsJSON == "" || cfg.SpreadsheetID == "" {
		return errors.New("GOOGLE_CREDENTIALS_JSON and SPREADSHEET_ID are required")
	}

	pool, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	svc := newServices(cfg, pool)
	user, err := svc.auth.UserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("looking up %s: %w", email, err)
	}

	summary, err := svc.portfolio.Valuation(ctx, user.ID)
	if err != nil {
		return err
	}

	writer, err := export.NewSheetsWriter(ctx, cfg.SpreadsheetID, cfg.GoogleCredentialsJSON)
	if err != nil {
		return err
	}
	if err := writer.Write(ctx, summary); err != nil {
		return fmt.Errorf("publishing to sheets: %w", err)
	}

	slog.Info("portfolio exported to sheets", "email", user.Email, "entries", len(summary.Entries))
	return nil
}
