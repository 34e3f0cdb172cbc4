package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresChecker checks the response database over a separate database/sql
// handle, so readiness does not compete with the pgx pool
type PostgresChecker struct {
	BaseChecker
	db *sql.DB
}

// NewPostgresChecker opens a lazy connection to dsn
func NewPostgresChecker(dsn string) (*PostgresChecker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &PostgresChecker{
		BaseChecker: BaseChecker{name: "postgres"},
		db:          db,
	}, nil
}

// HealthCheck verifies PostgreSQL connectivity
func (p *PostgresChecker) HealthCheck(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Describe reports the latest applied migration and the stored response count
func (p *PostgresChecker) Describe(ctx context.Context) (map[string]any, error) {
	details := make(map[string]any)

	var version string
	err := p.db.QueryRowContext(ctx, `SELECT version FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		details["schema_version"] = "none"
	case err != nil:
		return nil, fmt.Errorf("failed to read schema version: %w", err)
	default:
		details["schema_version"] = version
	}

	var responses int64
	if err := p.db.QueryRowContext(ctx, `SELECT count(*) FROM interview_responses`).Scan(&responses); err != nil {
		return nil, fmt.Errorf("failed to count responses: %w", err)
	}
	details["responses"] = responses

	return details, nil
}

// Close closes the database handle
func (p *PostgresChecker) Close() error {
	return p.db.Close()
}
