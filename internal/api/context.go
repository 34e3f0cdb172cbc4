package api

import (
	"context"

	"github.com/terra-clan/interview-engine/internal/models"
)

type contextKey string

const clientContextKey contextKey = "api_client"

// ClientFromContext extracts the authenticated ApiClient, nil when auth is off
func ClientFromContext(ctx context.Context) *models.ApiClient {
	client, ok := ctx.Value(clientContextKey).(*models.ApiClient)
	if !ok {
		return nil
	}
	return client
}

// ContextWithClient adds ApiClient to context
func ContextWithClient(ctx context.Context, client *models.ApiClient) context.Context {
	return context.WithValue(ctx, clientContextKey, client)
}

// clientName is the log label of the caller
func clientName(ctx context.Context) string {
	if c := ClientFromContext(ctx); c != nil {
		return c.Name
	}
	return "anonymous"
}
