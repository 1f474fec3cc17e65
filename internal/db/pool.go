package db

import (
	"context"
	"fmt"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

type NewDBPoolParams struct {
	DBHost         string
	DBPort         string
	DBName         string
	TracingEnabled bool
}

func NewDBPool(ctx context.Context, params NewDBPoolParams) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://postgres@%s:%s/%s",
		params.DBHost, params.DBPort, params.DBName,
	)
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	if params.TracingEnabled {
		poolConfig.ConnConfig.Tracer = otelpgx.NewTracer()
	}

	db, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	return db, nil
}

// EnsureJournalTables creates the journal tables if missing. The
// unique (user_id, date) constraints are what the save protocol's
// conflict handling relies on, a concurrent first insert for the same
// day must fail with a unique violation rather than create a second
// row.
func EnsureJournalTables(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS workout (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL,
			date       TEXT NOT NULL,
			notes      TEXT,
			exercises  JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, date)
		);`,
		`CREATE TABLE IF NOT EXISTS nutrition (
			user_id            TEXT NOT NULL,
			date               TEXT NOT NULL,
			protein_goal       DOUBLE PRECISION NOT NULL DEFAULT 0,
			foods              JSONB NOT NULL DEFAULT '[]',
			total_protein      DOUBLE PRECISION NOT NULL DEFAULT 0,
			total_calories     DOUBLE PRECISION NOT NULL DEFAULT 0,
			ai_recommendations JSONB,
			created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
			UNIQUE (user_id, date)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure journal tables: %w", err)
		}
	}
	return nil
}
