package client

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil error", nil, ""},
		{"deadline exceeded", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"wrapped deadline", fmt.Errorf("request timeout: %w", context.DeadlineExceeded), ErrorCategoryTimeout},
		{"canceled", context.Canceled, ErrorCategoryTimeout},
		{"city not found", fmt.Errorf("%w: %q", ErrCityNotFound, "Atlantis"), ErrorCategoryNotFound},
		{"invalid key", ErrInvalidAPIKey, ErrorCategoryAuth},
		{"quota exceeded", ErrQuotaExceeded, ErrorCategoryRateLimited},
		{"http failure", fmt.Errorf("%w: HTTP 502", ErrHTTPFailure), ErrorCategoryHTTP},
		{"malformed payload", fmt.Errorf("%w: missing location or current block", ErrMalformedPayload), ErrorCategoryMalformed},
		{"timeout by message", errors.New("dial tcp: i/o timeout"), ErrorCategoryTimeout},
		{"anything else", errors.New("disk on fire"), ErrorCategoryUnexpected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		city string
		err  error
		want string
	}{
		{"timeout", "London", context.DeadlineExceeded, "London: request timeout"},
		{"not found", "Atlantis", ErrCityNotFound, `Atlantis: city "Atlantis" not found`},
		{"auth", "Paris", ErrInvalidAPIKey, "Paris: invalid API key"},
		{"rate limited", "Tokyo", ErrQuotaExceeded, "Tokyo: API request limit exceeded"},
		{"malformed", "Oslo", ErrMalformedPayload, "Oslo: invalid response from provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureMessage(tt.city, tt.err); got != tt.want {
				t.Errorf("FailureMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFailureMessage_HTTPIncludesStatus(t *testing.T) {
	err := fmt.Errorf("%w: HTTP 502", ErrHTTPFailure)
	got := FailureMessage("Berlin", err)
	if got != "Berlin: provider HTTP error: HTTP 502" {
		t.Errorf("FailureMessage() = %q", got)
	}
}
