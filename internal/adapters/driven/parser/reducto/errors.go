package reducto

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/custodia-labs/quarry/internal/core/domain"
)

// APIError is a non-2xx response from the parsing API.
type APIError struct {
	StatusCode int
	Message    string
	URL        string

	// RetryAfter is the server's requested delay, zero when not given.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("reducto: API error %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Unwrap maps the status to a domain error so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests {
		return domain.ErrRateLimited
	}
	return domain.ErrUpstream
}

// Retryable reports whether the request may succeed if sent again.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRateLimited checks if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	return errors.Is(err, domain.ErrRateLimited)
}

// IsUnauthorized checks if the error indicates a rejected API key.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}
