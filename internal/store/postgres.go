package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"
)

// OpenPostgres connects to Postgres via pgx, runs migrations and returns a repository.
func OpenPostgres(ctx context.Context, dsn string) (*SQLRepo, error) {
	db, err := sql.Open(dialectPostgres.driver, dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping: %w", classify(err))
	}
	if err := RunMigrations(ctx, db, dialectPostgres); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	return &SQLRepo{db: db, d: dialectPostgres}, nil
}

// Open picks the backend by driver name.
func Open(ctx context.Context, driver, sqlitePath, postgresDSN string) (*SQLRepo, error) {
	switch driver {
	case "", "sqlite":
		return OpenSQLite(ctx, sqlitePath)
	case "postgres":
		if postgresDSN == "" {
			return nil, fmt.Errorf("postgres driver selected but DATABASE_URL is empty")
		}
		return OpenPostgres(ctx, postgresDSN)
	default:
		return nil, fmt.Errorf("unknown db driver %q", driver)
	}
}
