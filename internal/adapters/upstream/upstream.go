// Package upstream reúne o cliente HTTP e o circuit breaker compartilhados pelos provedores de metadados.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	json "github.com/goccy/go-json"

	"github.com/JeanGrijp/presence-gateway/internal/core/domain"
	"github.com/JeanGrijp/presence-gateway/internal/logging"
)

const (
	DefaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// NewHTTPClient returns the client used for every upstream call.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// StatusError is a non-2xx answer from an upstream API.
type StatusError struct {
	Method string
	Host   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Host, e.Code, e.Body)
}

// IsClientError reports whether err carries a 4xx answer from the upstream.
func IsClientError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code >= 400 && statusErr.Code < 500
}

// DoJSON sends req and decodes a 2xx JSON body into out.
// Any other status is reported as domain.ErrUpstream wrapping a *StatusError.
func DoJSON(client *http.Client, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", domain.ErrUpstream, req.Method, req.URL.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("%w: %w", domain.ErrUpstream, &StatusError{
			Method: req.Method,
			Host:   req.URL.Host,
			Code:   resp.StatusCode,
			Body:   string(body),
		})
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode %s response: %w", domain.ErrUpstream, req.URL.Host, err)
	}
	return nil
}

// SearchJSON is GetJSON for metadata searches. A 4xx answer (bad key, rejected
// query, expired token) means the lookup has no match, so found is false and err is nil.
func SearchJSON(ctx context.Context, client *http.Client, rawURL string, headers http.Header, out any) (found bool, err error) {
	err = GetJSON(ctx, client, rawURL, headers, out)
	if IsClientError(err) {
		logging.Ctx(ctx).Warn().Err(err).Msg("upstream rejected search, answering not found")
		return false, nil
	}
	return err == nil, err
}

// GetJSON issues a GET to rawURL with optional headers and decodes the JSON response.
func GetJSON(ctx context.Context, client *http.Client, rawURL string, headers http.Header, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, values := range headers {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	return DoJSON(client, req, out)
}
