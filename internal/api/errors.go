package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrNoTokenOrOTP is returned when a login response carries neither a
// session token nor an OTP requirement.
var ErrNoTokenOrOTP = errors.New("no access token or OTP requirement received")

// ErrorResponse is the body the backend sends with 4xx/5xx statuses.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// HTTPError represents an HTTP error response
type HTTPError struct {
	StatusCode int
	Message    string
	ErrorType  string
}

func (e *HTTPError) Error() string {
	if e.ErrorType != "" {
		return fmt.Sprintf("HTTP %d: %s - %s", e.StatusCode, e.ErrorType, e.Message)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// UserMessage returns the backend's message for err when it has one, and
// fallback otherwise.
func UserMessage(err error, fallback string) string {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.Message != "" {
		return httpErr.Message
	}
	return fallback
}

func IsUnauthorized(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusUnauthorized
}

// IsConflict reports whether err says the order was already claimed by
// someone else.
func IsConflict(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	if httpErr.StatusCode == http.StatusConflict {
		return true
	}
	msg := strings.ToLower(httpErr.Message)
	return strings.Contains(msg, "already taken") ||
		strings.Contains(msg, "already been taken") ||
		strings.Contains(msg, "already accepted") ||
		strings.Contains(msg, "already assigned")
}
