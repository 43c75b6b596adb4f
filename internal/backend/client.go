// Package backend is the typed REST client for the clinic backend. It maps
// transport and status failures onto the console's error types and
// normalizes loosely shaped payloads into the domain packages' types.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/wolfman30/clinic-console/internal/apperrors"
	"github.com/wolfman30/clinic-console/internal/observability/metrics"
	"github.com/wolfman30/clinic-console/pkg/logging"
)

const (
	defaultTimeout  = 15 * time.Second
	maxLoggedBody   = 300
	maxResponseBody = 4 << 20
)

var tracer = otel.Tracer("clinic.internal.backend")

type ctxKey string

const authTokenKey ctxKey = "backend.auth_token"

// WithAuthToken forwards the caller's bearer token on backend calls made
// with ctx.
func WithAuthToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authTokenKey, strings.TrimSpace(token))
}

func authToken(ctx context.Context) string {
	token, _ := ctx.Value(authTokenKey).(string)
	return token
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *logging.Logger
	Metrics    *metrics.ConsoleMetrics
}

// Client calls the clinic backend.
type Client struct {
	httpClient *http.Client
	baseURL    string
	logger     *logging.Logger
	metrics    *metrics.ConsoleMetrics
}

// NewClient constructs a backend client.
func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("backend: base url required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
		metrics:    opts.Metrics,
	}, nil
}

// Ping checks that the backend answers at all.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// doJSON issues one request. op names the logical operation for tracing,
// metrics and errors. out may be nil or a *json.RawMessage.
func (c *Client) doJSON(ctx context.Context, op, method, path string, body, out any) error {
	ctx, span := tracer.Start(ctx, "backend."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("clinic.backend.path", path),
	)

	start := time.Now()
	outcome := "success"
	defer func() {
		c.metrics.ObserveBackendCall(op, outcome, time.Since(start).Seconds())
	}()

	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			outcome = "encode_error"
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		outcome = "encode_error"
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := authToken(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		outcome = "network_error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		c.logger.Warn("backend request failed", "operation", op, "path", path, "error", err)
		return &apperrors.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		outcome = "network_error"
		return &apperrors.NetworkError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "backend_error"
		msg := string(respBody)
		if len(msg) > maxLoggedBody {
			msg = msg[:maxLoggedBody]
		}
		c.logger.Warn("backend non-2xx response", "operation", op, "status", resp.StatusCode, "path", path, "body", msg)
		backendErr := &apperrors.BackendError{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
		span.RecordError(backendErr)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return backendErr
	}

	if len(bytes.TrimSpace(respBody)) == 0 || out == nil {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], respBody...)
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		outcome = "decode_error"
		span.RecordError(err)
		return &apperrors.BackendError{Op: op, StatusCode: resp.StatusCode, Message: ""}
	}
	return nil
}

// errorMessage pulls a human-readable message from an error body. Only
// string fields named message, detail or error are used.
func errorMessage(body []byte) string {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return ""
	}
	for _, key := range []string{"message", "detail", "error"} {
		raw, ok := fields[key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// malformed reports a 2xx payload that could not be normalized. It surfaces
// as a BackendError with no message so callers fall back to their own text.
func (c *Client) malformed(op string, err error) error {
	c.logger.Warn("backend payload malformed", "operation", op, "error", err)
	return &apperrors.BackendError{Op: op, StatusCode: http.StatusOK}
}
