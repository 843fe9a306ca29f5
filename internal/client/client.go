package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/weatherdash/weather-api-handler/internal/models"
	"github.com/weatherdash/weather-api-handler/internal/observability"
)

// WeatherClient fetches current conditions for one city from the provider.
// CurrentWeather returns the parsed snapshot plus the raw response body so
// callers can store the payload verbatim.
type WeatherClient interface {
	CurrentWeather(ctx context.Context, city string) (models.Snapshot, []byte, error)
	ValidateAPIKey(ctx context.Context) error
}

var (
	ErrInvalidAPIKey    = errors.New("invalid API key")
	ErrCityNotFound     = errors.New("city not found")
	ErrQuotaExceeded    = errors.New("API request limit exceeded")
	ErrHTTPFailure      = errors.New("provider HTTP error")
	ErrMalformedPayload = errors.New("malformed provider payload")
)

// WeatherAPIClient calls the provider's current-conditions endpoint
// ({base}/current.json on weatherapi.com-compatible APIs).
type WeatherAPIClient struct {
	apiKey  string
	apiURL  string
	timeout time.Duration
	client  *http.Client
}

func NewWeatherAPIClient(apiKey, apiURL string, timeout time.Duration) (*WeatherAPIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WeatherAPIClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// structuralCheck mirrors the payload's top level; a missing location or
// current block marks the response malformed regardless of HTTP status.
type structuralCheck struct {
	Location json.RawMessage `json:"location"`
	Current  json.RawMessage `json:"current"`
}

// CurrentWeather performs one provider call for the city. It does not retry;
// per-city failures are classified by the caller and never abort a batch.
func (c *WeatherAPIClient) CurrentWeather(ctx context.Context, city string) (models.Snapshot, []byte, error) {
	start := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, city)
	if err != nil {
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		return models.Snapshot{}, nil, fmt.Errorf("build request: %w", err)
	}

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(start).Seconds()
		observability.ProviderCallsTotal.WithLabelValues("error").Inc()
		observability.ProviderCallDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.Snapshot{}, nil, fmt.Errorf("request timeout: %w", err)
		}
		return models.Snapshot{}, nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ProviderCallsTotal.WithLabelValues(status).Inc()
	observability.ProviderCallDuration.WithLabelValues(status).Observe(duration)

	if err := c.handleErrorResponse(resp, city); err != nil {
		return models.Snapshot{}, nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.Snapshot{}, nil, fmt.Errorf("read response body: %w", err)
	}

	var check structuralCheck
	if err := json.Unmarshal(body, &check); err != nil {
		return models.Snapshot{}, nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(check.Location) == 0 || len(check.Current) == 0 {
		return models.Snapshot{}, nil, fmt.Errorf("%w: missing location or current block", ErrMalformedPayload)
	}

	var snap models.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return models.Snapshot{}, nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	return snap, body, nil
}

func (c *WeatherAPIClient) buildRequest(ctx context.Context, city string) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL + "/current.json")
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("key", c.apiKey)
	params.Set("q", city)
	params.Set("lang", "en")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

// handleErrorResponse maps provider status codes onto the failure taxonomy.
// The provider reports unknown cities as 400.
func (c *WeatherAPIClient) handleErrorResponse(resp *http.Response, city string) error {
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %q", ErrCityNotFound, city)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w", ErrInvalidAPIKey)
	case http.StatusForbidden:
		return fmt.Errorf("%w", ErrQuotaExceeded)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d", ErrHTTPFailure, resp.StatusCode)
	}

	return nil
}

// ValidateAPIKey probes the provider with a fixed city to detect a bad key
// at startup. A 200 or not-found (400) response means the key works.
func (c *WeatherAPIClient) ValidateAPIKey(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := c.buildRequest(ctx, "London")
	if err != nil {
		return fmt.Errorf("build validation request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("validation request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: API key is invalid or not activated", ErrInvalidAPIKey)
	case http.StatusForbidden:
		return fmt.Errorf("%w", ErrQuotaExceeded)
	}

	// 400 is the provider's not-found; the key was accepted.
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusBadRequest {
		return fmt.Errorf("validation failed: HTTP %d", resp.StatusCode)
	}

	return nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 403 || statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}
