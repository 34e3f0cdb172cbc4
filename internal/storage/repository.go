package storage

import (
	"context"
	"errors"

	"github.com/terra-clan/interview-engine/internal/models"
)

// ErrDuplicate is returned by SaveResponse when a record already exists
// for the same (candidateEmail, interviewType, taskId)
var ErrDuplicate = errors.New("response record already exists")

// ResponseStore is the durable, append-only store of response records
type ResponseStore interface {
	// SaveResponse validates and inserts rec, assigning ID and CreatedAt
	SaveResponse(ctx context.Context, rec *models.ResponseRecord) error

	// FindByEmail returns every record of a candidate, oldest first
	FindByEmail(ctx context.Context, email string) ([]*models.ResponseRecord, error)

	// FindByFilter returns at most models.MaxListResponses records, newest first
	FindByFilter(ctx context.Context, filters models.ResponseFilters) ([]*models.ResponseRecord, error)

	// FindByKey returns the record submitted for key, nil when there is none
	FindByKey(ctx context.Context, key models.ProgressKey) (*models.ResponseRecord, error)
}

// ClientStore looks up company dashboard API keys
type ClientStore interface {
	GetClientByApiKey(ctx context.Context, apiKey string) (*models.ApiClient, error)
	UpdateClientLastUsed(ctx context.Context, apiKey string) error
}

// Repository defines the interface for interview persistence
type Repository interface {
	ResponseStore
	ClientStore

	// Health
	Ping(ctx context.Context) error
	Close() error
}
