package models

import (
	"strings"
	"time"
)

// Permissions checked by the company-facing endpoints
const (
	PermResponsesRead        = "responses:read"
	PermRecommendationsWrite = "recommendations:write"
	PermEmailsSend           = "emails:send"
)

// ApiClient is a company dashboard key allowed to read candidate results
type ApiClient struct {
	ID          int               `json:"id"`
	Name        string            `json:"name"`
	ApiKey      string            `json:"-"`
	IsActive    bool              `json:"isActive"`
	CreatedAt   time.Time         `json:"createdAt"`
	LastUsedAt  *time.Time        `json:"lastUsedAt,omitempty"`
	Permissions []string          `json:"permissions"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// HasPermission checks a permission, honouring "*" and "group:*" grants
func (c *ApiClient) HasPermission(required string) bool {
	if c == nil || !c.IsActive {
		return false
	}

	for _, perm := range c.Permissions {
		switch {
		case perm == "*", perm == required:
			return true
		case strings.HasSuffix(perm, ":*"):
			if strings.HasPrefix(required, strings.TrimSuffix(perm, "*")) {
				return true
			}
		}
	}

	return false
}

// MaskedApiKey returns the key prefix for logs
func (c *ApiClient) MaskedApiKey() string {
	return MaskKey(c.ApiKey)
}

// MaskKey keeps the first 8 characters of a secret
func MaskKey(key string) string {
	if len(key) < 8 {
		return "***"
	}
	return key[:8] + "..."
}
