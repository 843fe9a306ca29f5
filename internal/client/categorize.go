package client

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCategory is a stable label for error classification in metrics and
// per-city error reporting.
type ErrorCategory string

// Error category constants used as metric labels (cityFetchesTotal) and for
// attributing per-city failures.
const (
	ErrorCategoryTimeout     ErrorCategory = "timeout"
	ErrorCategoryNotFound    ErrorCategory = "not_found"
	ErrorCategoryAuth        ErrorCategory = "auth"
	ErrorCategoryRateLimited ErrorCategory = "rate_limited"
	ErrorCategoryHTTP        ErrorCategory = "http_error"
	ErrorCategoryMalformed   ErrorCategory = "malformed_response"
	ErrorCategoryStorage     ErrorCategory = "storage_error"
	ErrorCategoryUnexpected  ErrorCategory = "unexpected"
)

// CategorizeError maps an error to a stable ErrorCategory.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorCategoryTimeout
	}

	if errors.Is(err, ErrCityNotFound) {
		return ErrorCategoryNotFound
	}

	if errors.Is(err, ErrInvalidAPIKey) {
		return ErrorCategoryAuth
	}

	if errors.Is(err, ErrQuotaExceeded) {
		return ErrorCategoryRateLimited
	}

	if errors.Is(err, ErrHTTPFailure) {
		return ErrorCategoryHTTP
	}

	if errors.Is(err, ErrMalformedPayload) {
		return ErrorCategoryMalformed
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") {
		return ErrorCategoryTimeout
	}

	return ErrorCategoryUnexpected
}

// FailureMessage renders a per-city error string for batch responses.
func FailureMessage(city string, err error) string {
	switch CategorizeError(err) {
	case ErrorCategoryTimeout:
		return fmt.Sprintf("%s: request timeout", city)
	case ErrorCategoryNotFound:
		return fmt.Sprintf("%s: city %q not found", city, city)
	case ErrorCategoryAuth:
		return fmt.Sprintf("%s: invalid API key", city)
	case ErrorCategoryRateLimited:
		return fmt.Sprintf("%s: API request limit exceeded", city)
	case ErrorCategoryHTTP:
		return fmt.Sprintf("%s: %v", city, err)
	case ErrorCategoryMalformed:
		return fmt.Sprintf("%s: invalid response from provider", city)
	default:
		return fmt.Sprintf("%s: unexpected error: %v", city, err)
	}
}
