package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/wms-platform/fulfillment-service/pkg/metrics"
	"github.com/wms-platform/fulfillment-service/pkg/resilience"
	"github.com/wms-platform/fulfillment-service/pkg/tracing"
)

// Config holds the collaborator base URLs
type Config struct {
	OrderStoreURL  string
	ConsumablesURL string
	CatalogURL     string
	Timeout        time.Duration
}

// StatusError is returned when a collaborator answers with an unexpected status
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s returned status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s returned status %d: %s", e.Service, e.StatusCode, e.Body)
}

// IsNotFound reports whether err is a 404 from a collaborator
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// isSuccessful keeps caller mistakes (4xx) and cancellations from opening the circuit
func isSuccessful(err error) bool {
	if err == nil {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= 400 && se.StatusCode < 500
	}
	return errors.Is(err, context.Canceled)
}

// service is the shared JSON-over-HTTP plumbing of every collaborator client
type service struct {
	name       string
	baseURL    string
	httpClient *http.Client
	breaker    *resilience.CircuitBreaker
}

func newService(name, baseURL string, timeout time.Duration, logger *slog.Logger, m *metrics.Metrics) *service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	cbConfig := resilience.DefaultCircuitBreakerConfig(name)
	cbConfig.IsSuccessful = isSuccessful
	return &service{
		name:       name,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    resilience.NewCircuitBreaker(cbConfig, logger, m),
	}
}

// do sends body as JSON (when non-nil) and decodes a 2xx response into out (when non-nil)
func (s *service) do(ctx context.Context, method, path string, header http.Header, body, out interface{}) error {
	_, err := resilience.Execute(ctx, s.breaker, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.roundTrip(ctx, method, path, header, body, out)
	})
	return err
}

func (s *service) roundTrip(ctx context.Context, method, path string, header http.Header, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, values := range header {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	tracing.InjectHTTPHeaders(ctx, req.Header)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Service: s.name, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(snippet))}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", s.name, err)
	}
	return nil
}
