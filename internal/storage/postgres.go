package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/terra-clan/interview-engine/internal/models"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	DSN          string
	MaxOpenConns int32
	MaxIdleConns int32
	MaxLifetime  time.Duration
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(ctx context.Context, cfg PostgresConfig) (*PostgresRepository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse DSN: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = cfg.MaxOpenConns
	} else {
		poolConfig.MaxConns = 25
	}

	if cfg.MaxIdleConns > 0 {
		poolConfig.MinConns = cfg.MaxIdleConns
	} else {
		poolConfig.MinConns = 2
	}

	if cfg.MaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxLifetime
	} else {
		poolConfig.MaxConnLifetime = 30 * time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

// Ping checks database connectivity
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// Close closes the database connection pool
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// --- Responses ---

const responseColumns = `id::text, candidate_id, candidate_email, interview_type, task_id, task_title, response,
	chat_history, time_spent_seconds, metadata, started_at, submitted_at, created_at`

// SaveResponse inserts a record unless one already exists for its
// (candidate_email, interview_type, task_id); in that case ErrDuplicate is returned
func (r *PostgresRepository) SaveResponse(ctx context.Context, rec *models.ResponseRecord) error {
	rec.CandidateEmail = models.NormalizeEmail(rec.CandidateEmail)
	if err := rec.Validate(); err != nil {
		return err
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}

	metadataJSON, err := json.Marshal(nonNilMap(rec.Metadata))
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}

	historyJSON, err := json.Marshal(nonNilTurns(rec.ChatHistory))
	if err != nil {
		return fmt.Errorf("failed to marshal chat history: %w", err)
	}

	query := `
		INSERT INTO interview_responses (id, candidate_id, candidate_email, interview_type, task_id, task_title, response,
			chat_history, time_spent_seconds, metadata, started_at, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (candidate_email, interview_type, task_id) DO NOTHING
		RETURNING created_at
	`

	err = r.pool.QueryRow(ctx, query,
		rec.ID,
		rec.CandidateID,
		rec.CandidateEmail,
		string(rec.InterviewType),
		string(rec.TaskID),
		rec.TaskTitle,
		rec.Response,
		historyJSON,
		rec.TimeSpentSeconds,
		metadataJSON,
		rec.StartedAt,
		rec.SubmittedAt,
	).Scan(&rec.CreatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to save response: %w", err)
	}

	return nil
}

// FindByEmail returns all records of a candidate ordered by creation time
func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) ([]*models.ResponseRecord, error) {
	query := `SELECT ` + responseColumns + `
		FROM interview_responses
		WHERE candidate_email = $1
		ORDER BY created_at ASC, seq ASC
	`

	rows, err := r.pool.Query(ctx, query, models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to find responses: %w", err)
	}
	defer rows.Close()

	return scanResponses(rows)
}

// FindByFilter lists records newest first, capped at models.MaxListResponses
func (r *PostgresRepository) FindByFilter(ctx context.Context, filters models.ResponseFilters) ([]*models.ResponseRecord, error) {
	query := `SELECT ` + responseColumns + `
		FROM interview_responses
		WHERE 1=1
	`
	args := make([]interface{}, 0)
	argNum := 1

	if filters.CandidateEmail != "" {
		query += fmt.Sprintf(" AND candidate_email = $%d", argNum)
		args = append(args, models.NormalizeEmail(filters.CandidateEmail))
		argNum++
	}

	if filters.InterviewType != "" {
		query += fmt.Sprintf(" AND interview_type = $%d", argNum)
		args = append(args, string(filters.InterviewType))
		argNum++
	}

	query += " ORDER BY created_at DESC, seq DESC"
	query += fmt.Sprintf(" LIMIT $%d", argNum)
	args = append(args, filters.EffectiveLimit())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	return scanResponses(rows)
}

// FindByKey returns the record of one (candidate_email, interview_type, task_id), nil when absent
func (r *PostgresRepository) FindByKey(ctx context.Context, key models.ProgressKey) (*models.ResponseRecord, error) {
	key = key.Normalize()
	query := `SELECT ` + responseColumns + `
		FROM interview_responses
		WHERE candidate_email = $1 AND interview_type = $2 AND task_id = $3
		LIMIT 1
	`

	rows, err := r.pool.Query(ctx, query, key.CandidateEmail, string(key.InterviewType), string(key.TaskID))
	if err != nil {
		return nil, fmt.Errorf("failed to find response: %w", err)
	}
	defer rows.Close()

	records, err := scanResponses(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func scanResponses(rows pgx.Rows) ([]*models.ResponseRecord, error) {
	records := make([]*models.ResponseRecord, 0)

	for rows.Next() {
		var rec models.ResponseRecord
		var interviewType, taskID string
		var historyJSON, metadataJSON []byte

		err := rows.Scan(
			&rec.ID,
			&rec.CandidateID,
			&rec.CandidateEmail,
			&interviewType,
			&taskID,
			&rec.TaskTitle,
			&rec.Response,
			&historyJSON,
			&rec.TimeSpentSeconds,
			&metadataJSON,
			&rec.StartedAt,
			&rec.SubmittedAt,
			&rec.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}

		rec.InterviewType = models.InterviewType(interviewType)
		rec.TaskID = models.TaskID(taskID)

		if len(historyJSON) > 0 {
			if err := json.Unmarshal(historyJSON, &rec.ChatHistory); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chat history: %w", err)
			}
		}

		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}

		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating responses: %w", err)
	}

	return records, nil
}

// --- API Clients ---

// GetClientByApiKey retrieves an API client by its key, nil when unknown
func (r *PostgresRepository) GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error) {
	query := `
		SELECT id, name, api_key, is_active, created_at, last_used_at, permissions, metadata
		FROM api_clients
		WHERE api_key = $1
	`

	var client models.ApiClient
	var lastUsedAt sql.NullTime
	var permissionsJSON, metadataJSON []byte

	err := r.pool.QueryRow(ctx, query, apiKey).Scan(
		&client.ID,
		&client.Name,
		&client.ApiKey,
		&client.IsActive,
		&client.CreatedAt,
		&lastUsedAt,
		&permissionsJSON,
		&metadataJSON,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get api client: %w", err)
	}

	if lastUsedAt.Valid {
		client.LastUsedAt = &lastUsedAt.Time
	}

	if permissionsJSON != nil {
		if err := json.Unmarshal(permissionsJSON, &client.Permissions); err != nil {
			return nil, fmt.Errorf("failed to unmarshal permissions: %w", err)
		}
	}

	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &client.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &client, nil
}

// UpdateClientLastUsed updates the last_used_at timestamp for a client
func (r *PostgresRepository) UpdateClientLastUsed(ctx context.Context, apiKey string) error {
	query := `UPDATE api_clients SET last_used_at = NOW() WHERE api_key = $1`

	if _, err := r.pool.Exec(ctx, query, apiKey); err != nil {
		return fmt.Errorf("failed to update client last_used_at: %w", err)
	}

	return nil
}

func nonNilMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

func nonNilTurns(t []models.ChatTurn) []models.ChatTurn {
	if t == nil {
		return []models.ChatTurn{}
	}
	return t
}
