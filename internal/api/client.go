package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/chrisdamba/chowrider/internal/models"
)

// TokenFunc returns the bearer token for the current session, or "" when
// there is none.
type TokenFunc func(ctx context.Context) (string, error)

// Client represents the backend REST client
type Client struct {
	baseURL    string
	httpClient *http.Client
	retryMax   int
	backoff    time.Duration
	token      TokenFunc
	logger     *slog.Logger
}

// NewClient creates a new API client
func NewClient(cfg models.APIConfig, token TokenFunc, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		retryMax: cfg.RetryMax,
		backoff:  cfg.RetryBackoff,
		token:    token,
		logger:   logger,
	}
}

type requestOptions struct {
	idempotencyKey string
	noAuth         bool
}

// RequestOption tweaks a single request.
type RequestOption func(*requestOptions)

// WithIdempotencyKey attaches an Idempotency-Key header so the backend can
// recognise a resubmitted mutation.
func WithIdempotencyKey(key string) RequestOption {
	return func(o *requestOptions) { o.idempotencyKey = key }
}

func withoutAuth() RequestOption {
	return func(o *requestOptions) { o.noAuth = true }
}

// envelope is the {success, data} wrapper most endpoints respond with.
type envelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

// doRequest executes an HTTP request. Only GET requests are retried: a
// mutation is never resent automatically.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, target interface{}, opts ...RequestOption) error {
	var o requestOptions
	for _, opt := range opts {
		opt(&o)
	}

	retries := 0
	if method == http.MethodGet {
		retries = c.retryMax
	}

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			// Exponential backoff
			waitTime := c.backoff * time.Duration(1<<uint(attempt-1))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitTime):
			}
		}

		err := c.executeRequest(ctx, method, path, body, target, o)
		if err == nil {
			return nil
		}
		lastErr = err

		// Don't retry on client errors (4xx) except 429
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode < 500 && httpErr.StatusCode != http.StatusTooManyRequests {
			return err
		}
	}

	if retries > 0 {
		return fmt.Errorf("request failed after %d attempts: %w", retries+1, lastErr)
	}
	return lastErr
}

// executeRequest performs a single HTTP request
func (c *Client) executeRequest(ctx context.Context, method, path string, body interface{}, target interface{}, o requestOptions) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if o.idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", o.idempotencyKey)
	}
	if !o.noAuth && c.token != nil {
		token, err := c.token(ctx)
		if err != nil {
			return fmt.Errorf("failed to read auth token: %w", err)
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("network error", "method", method, "path", path, "error", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		httpErr := &HTTPError{StatusCode: resp.StatusCode}
		var errResp ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err != nil {
			httpErr.Message = strings.TrimSpace(string(respBody))
		} else {
			httpErr.Message = errResp.Message
			httpErr.ErrorType = errResp.Error
		}
		c.logger.Warn("server error", "method", method, "path", path, "status", resp.StatusCode, "message", httpErr.Message)
		return httpErr
	}

	if target != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
