package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/terra-clan/interview-engine/internal/models"
)

// Client is a Go SDK for the interview-engine API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new interview-engine client. apiKey may be empty for candidate endpoints.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a non-2xx answer of the API
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("API error %d: %s - %s", e.StatusCode, e.Code, e.Message)
}

// IsAlreadySubmitted reports whether err rejected a duplicate submission
func IsAlreadySubmitted(err error) bool {
	return hasCode(err, "already_submitted")
}

// IsNotFound reports whether err is a 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// IsBudgetExceeded reports whether the evaluator token budget is exhausted
func IsBudgetExceeded(err error) bool {
	return hasCode(err, "budget_exceeded")
}

func hasCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// SaveResult acknowledges a stored response
type SaveResult struct {
	ResponseID string    `json:"responseId"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ListOptions filters GetResponses
type ListOptions struct {
	Email string
	Type  models.InterviewType
	Limit int
}

// TurnResult is one stateless interviewer turn
type TurnResult struct {
	Response   string            `json:"response"`
	TokenUsage models.TokenUsage `json:"tokenUsage"`
}

// Invitation is the outcome of send-interview-email
type Invitation struct {
	Message       string `json:"message"`
	InterviewLink string `json:"interviewLink"`
	MessageID     string `json:"messageId,omitempty"`
}

// SaveResponse submits a completed task
func (c *Client) SaveResponse(ctx context.Context, req *models.SaveResponseRequest) (*SaveResult, error) {
	var out SaveResult
	if err := c.call(ctx, http.MethodPost, "/api/save-response", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetResponses lists stored responses, newest first
func (c *Client) GetResponses(ctx context.Context, opts ListOptions) ([]*models.ResponseRecord, error) {
	q := url.Values{}
	if opts.Email != "" {
		q.Set("email", opts.Email)
	}
	if opts.Type != "" {
		q.Set("type", string(opts.Type))
	}
	if opts.Limit > 0 {
		q.Set("limit", fmt.Sprint(opts.Limit))
	}

	var out struct {
		Count     int                      `json:"count"`
		Responses []*models.ResponseRecord `json:"responses"`
	}
	if err := c.call(ctx, http.MethodGet, withQuery("/api/get-responses", q), nil, &out); err != nil {
		return nil, err
	}
	return out.Responses, nil
}

// RecommendCandidate asks for a hiring recommendation
func (c *Client) RecommendCandidate(ctx context.Context, req *models.RecommendRequest) (*models.RecommendationResult, error) {
	var out struct {
		Recommendation *models.RecommendationResult `json:"recommendation"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/recommend-candidate", req, &out); err != nil {
		return nil, err
	}
	return out.Recommendation, nil
}

// BehavioralTurn asks the interviewer for its next line of a client-held conversation
func (c *Client) BehavioralTurn(ctx context.Context, req *models.BehavioralTurnRequest) (*TurnResult, error) {
	var out TurnResult
	if err := c.call(ctx, http.MethodPost, "/api/behavioral-ai", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SendDecisionEmail emails a reviewed decision and returns the message id
func (c *Client) SendDecisionEmail(ctx context.Context, req *models.DecisionEmailRequest) (string, error) {
	var out struct {
		MessageID string `json:"messageId"`
	}
	if err := c.call(ctx, http.MethodPost, "/api/send-decision-email", req, &out); err != nil {
		return "", err
	}
	return out.MessageID, nil
}

// SendInterviewEmail invites a candidate
func (c *Client) SendInterviewEmail(ctx context.Context, req *models.InterviewEmailRequest) (*Invitation, error) {
	var out Invitation
	if err := c.call(ctx, http.MethodPost, "/api/send-interview-email", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportResponses downloads the xlsx workbook of a candidate
func (c *Client) ExportResponses(ctx context.Context, email string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, withQuery("/api/export-responses", url.Values{"email": {email}}), nil)
}

// ListStages retrieves the interview stages
func (c *Client) ListStages(ctx context.Context) ([]*models.Stage, error) {
	var out struct {
		Stages []*models.Stage `json:"stages"`
	}
	if err := c.callData(ctx, http.MethodGet, "/api/stages", nil, &out); err != nil {
		return nil, err
	}
	return out.Stages, nil
}

// Progress returns the candidate overview across all stages
func (c *Client) Progress(ctx context.Context, email string) (*models.ProgressOverview, error) {
	var out models.ProgressOverview
	if err := c.callData(ctx, http.MethodGet, withQuery("/api/progress", url.Values{"email": {email}}), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// StartTask starts a task; behavioural tasks come back with the opening question
func (c *Client) StartTask(ctx context.Context, email string, stage models.InterviewType, taskID models.TaskID) (*models.StageProgress, error) {
	var out models.StageProgress
	err := c.callData(ctx, http.MethodPost, taskPath(stage, taskID, "/start"), models.StartRequest{CandidateEmail: email}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SaveDraft replaces the draft of a form task
func (c *Client) SaveDraft(ctx context.Context, email string, stage models.InterviewType, taskID models.TaskID, draft string) (*models.StageProgress, error) {
	var out models.StageProgress
	err := c.callData(ctx, http.MethodPut, taskPath(stage, taskID, "/draft"), models.DraftRequest{CandidateEmail: email, Draft: draft}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SendTurn posts a candidate turn and returns the transcript with the interviewer reply
func (c *Client) SendTurn(ctx context.Context, email string, taskID models.TaskID, text string) (*models.StageProgress, error) {
	var out models.StageProgress
	err := c.callData(ctx, http.MethodPost, taskPath(models.InterviewBehavioural, taskID, "/turns"), models.CandidateTurnRequest{CandidateEmail: email, Text: text}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Health checks if the service is healthy
func (c *Client) Health(ctx context.Context) error {
	_, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	return err
}

func taskPath(stage models.InterviewType, taskID models.TaskID, suffix string) string {
	return "/api/progress/" + url.PathEscape(string(stage)) + "/" + url.PathEscape(string(taskID)) + suffix
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// call decodes a flat {success, ...} body into out
func (c *Client) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	resp, err := c.doRequest(ctx, method, path, body)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(resp, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}

// callData decodes the data field of a {success, data} body into out
func (c *Client) callData(ctx context.Context, method, path string, in, out any) error {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.call(ctx, method, path, in, &envelope); err != nil {
		return err
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to unmarshal response data: %w", err)
	}
	return nil
}

// doRequest performs an HTTP request
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}

		var result struct {
			Error *struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(respBody, &result) == nil && result.Error != nil {
			apiErr.Code = result.Error.Code
			apiErr.Message = result.Error.Message
		}
		return nil, apiErr
	}

	return respBody, nil
}
