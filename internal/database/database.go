package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Pools splits traffic onto separate connection pools so a burst of webhook
// or background work cannot starve interactive requests.
type Pools struct {
	Interactive *pgxpool.Pool
	Webhook     *pgxpool.Pool
	Background  *pgxpool.Pool
}

func (p *Pools) Close() {
	p.Interactive.Close()
	p.Webhook.Close()
	p.Background.Close()
}

func (p *Pools) Ping(ctx context.Context) error {
	return p.Interactive.Ping(ctx)
}

// Connect builds the three pools from DATABASE_URL and runs migrations.
func Connect(ctx context.Context, dbURL string) (*Pools, error) {
	interactive, err := newPool(ctx, dbURL, envInt("DB_MAX_CONNS", 25), 5)
	if err != nil {
		return nil, fmt.Errorf("interactive pool: %w", err)
	}
	webhook, err := newPool(ctx, dbURL, envInt("DB_WEBHOOK_MAX_CONNS", 5), 1)
	if err != nil {
		interactive.Close()
		return nil, fmt.Errorf("webhook pool: %w", err)
	}
	background, err := newPool(ctx, dbURL, envInt("DB_BACKGROUND_MAX_CONNS", 10), 2)
	if err != nil {
		interactive.Close()
		webhook.Close()
		return nil, fmt.Errorf("background pool: %w", err)
	}

	if err := runMigrations(dbURL); err != nil {
		interactive.Close()
		webhook.Close()
		background.Close()
		return nil, err
	}

	return &Pools{Interactive: interactive, Webhook: webhook, Background: background}, nil
}

func newPool(ctx context.Context, dbURL string, maxConns, minConns int) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(maxConns)
	poolConfig.MinConns = int32(minConns)
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// runMigrations uses the pgx stdlib driver because goose wants *sql.DB.
func runMigrations(dbURL string) error {
	connConfig, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return fmt.Errorf("failed to parse database URL for migrations: %w", err)
	}
	db := stdlib.OpenDB(*connConfig.ConnConfig)
	defer func(db *sql.DB) {
		if err := db.Close(); err != nil {
			log.Printf("Warning: closing migration connection: %v", err)
		}
	}(db)

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to run goose migrations: %w", err)
	}

	log.Println("Migrations completed successfully")
	return nil
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, raw, fallback)
		return fallback
	}
	return v
}
