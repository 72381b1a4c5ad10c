// Package nodes holds helpers shared by the node executors.
package nodes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dukex/nodebase/pkg/execerr"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	DefaultTimeout  = 60 * time.Second
	maxResponseSize = 10 << 20
	maxErrorBody    = 512
)

// NewHTTPClient returns a traced client for outbound calls.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Request describes a JSON call to an external service.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// DoJSON sends req and decodes a JSON response into out (when non-nil).
// Network failures and 408/429/5xx are retriable; other 4xx are rejected.
func DoJSON(ctx context.Context, client *http.Client, op string, req Request, out any) error {
	var body io.Reader

	if req.Body != nil {
		payload, err := json.Marshal(req.Body)
		if err != nil {
			return execerr.Validation(op, "Request body is not JSON encodable: %v", err)
		}

		body = bytes.NewReader(payload)
	}

	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return execerr.Validation(op, "Invalid request: %v", err)
	}

	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}

		return execerr.Transport(op, err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return execerr.Transport(op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return execerr.FromStatus(op, resp.StatusCode, Truncate(string(respBody), maxErrorBody))
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}

	err = json.Unmarshal(respBody, out)
	if err != nil {
		return execerr.Transport(op, fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}

	return string(runes[:n])
}
