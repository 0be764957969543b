package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const (
	DefaultTimeout     = 30 * time.Second
	maxResponseBodyLen = 10 << 20
)

type HTTPRequestParams struct {
	Method      string         `json:"method"`
	URL         string         `json:"url"`
	Headers     map[string]any `json:"headers"`
	QueryParams map[string]any `json:"queryParams"`
	Body        any            `json:"body"`
	ContentType string         `json:"contentType"`
	TimeoutMs   int            `json:"timeoutMs"`
	Auth        *AuthConfig    `json:"auth"`
}

// HTTPExecutor performs a single request. Any HTTP status counts as success;
// only transport failures are errors.
type HTTPExecutor struct {
	transport      http.RoundTripper
	defaultTimeout time.Duration
}

type HTTPExecutorDependencies struct {
	Transport      http.RoundTripper
	DefaultTimeout time.Duration
}

func NewHTTPExecutor(deps HTTPExecutorDependencies) *HTTPExecutor {
	timeout := deps.DefaultTimeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &HTTPExecutor{
		transport:      deps.Transport,
		defaultTimeout: timeout,
	}
}

func (e *HTTPExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	var params HTTPRequestParams
	if err := domain.DecodeParams(input.Data, &params); err != nil {
		return nil, err
	}

	if params.URL == "" {
		return nil, fmt.Errorf("url is required")
	}

	method := strings.ToUpper(strings.TrimSpace(params.Method))
	if method == "" {
		method = http.MethodGet
	}

	timeout := e.defaultTimeout
	if params.TimeoutMs > 0 {
		timeout = time.Duration(params.TimeoutMs) * time.Millisecond
	}

	client, err := e.client(params.Auth, timeout)
	if err != nil {
		return nil, err
	}

	requestURL, err := withQuery(params.URL, params.QueryParams)
	if err != nil {
		return nil, err
	}

	body, contentType, err := EncodeBody(params.Body, params.ContentType)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for key, value := range HeaderValues(params.Headers) {
		req.Header.Set(key, value)
	}

	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	log.Debug().Str("node_id", input.NodeID).Str("method", method).Str("url", req.URL.Redacted()).Msg("Sending HTTP request")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %s", TransportErrorMessage(err))
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLen))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return map[string]any{
		"statusCode": resp.StatusCode,
		"status":     resp.Status,
		"ok":         resp.StatusCode >= 200 && resp.StatusCode < 300,
		"headers":    FlattenHeaders(resp.Header),
		"body":       DecodeBody(resp.Header.Get("Content-Type"), responseBody),
	}, nil
}

func (e *HTTPExecutor) client(auth *AuthConfig, timeout time.Duration) (*http.Client, error) {
	transport := e.transport
	if auth != nil {
		var err error
		transport, err = NewAuthTransport(*auth, transport)
		if err != nil {
			return nil, err
		}
	}

	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}, nil
}

func withQuery(rawURL string, query map[string]any) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	if len(query) == 0 {
		return parsed.String(), nil
	}

	values := parsed.Query()
	for key, value := range HeaderValues(query) {
		values.Set(key, value)
	}
	parsed.RawQuery = values.Encode()

	return parsed.String(), nil
}

// TransportErrorMessage strips request details down to the failing cause.
func TransportErrorMessage(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "request timed out"
		}
		return urlErr.Err.Error()
	}

	return err.Error()
}
