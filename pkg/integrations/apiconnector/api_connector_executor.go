package apiconnector

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
	httpintegration "github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/http"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/utils/pagination"
)

const maxResponseBodyLen = 10 << 20

type APIConnectorParams struct {
	Method      string                      `json:"method"`
	URL         string                      `json:"url"`
	Headers     map[string]any              `json:"headers"`
	QueryParams map[string]any              `json:"queryParams"`
	Body        any                         `json:"body"`
	ContentType string                      `json:"contentType"`
	TimeoutMs   int                         `json:"timeoutMs"`
	Auth        *httpintegration.AuthConfig `json:"auth"`

	MaxRetries      *int `json:"maxRetries"`
	RetryDelayMs    int  `json:"retryDelayMs"`
	MaxRetryDelayMs int  `json:"maxRetryDelayMs"`
	RateLimitMs     int  `json:"rateLimitMs"`

	Pagination *pagination.Config `json:"pagination"`
	MaxPages   int                `json:"maxPages"`

	DataPath  string `json:"dataPath"`
	Transform string `json:"transform"`
}

func (p APIConnectorParams) retryPolicy() RetryPolicy {
	policy := RetryPolicy{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}

	if p.MaxRetries != nil && *p.MaxRetries >= 0 {
		policy.MaxRetries = *p.MaxRetries
	}
	if p.RetryDelayMs > 0 {
		policy.BaseDelay = time.Duration(p.RetryDelayMs) * time.Millisecond
	}
	if p.MaxRetryDelayMs > 0 {
		policy.MaxDelay = time.Duration(p.MaxRetryDelayMs) * time.Millisecond
	}

	return policy
}

func (p APIConnectorParams) maxPages() int {
	if p.MaxPages > 0 {
		return p.MaxPages
	}
	if p.Pagination != nil && p.Pagination.MaxPages > 0 {
		return p.Pagination.MaxPages
	}
	return pagination.DefaultMaxPages
}

// APIConnectorExecutor calls third-party APIs with auth, retries, pagination,
// rate limiting and response extraction.
type APIConnectorExecutor struct {
	transport      http.RoundTripper
	evaluator      *expressions.Evaluator
	defaultTimeout time.Duration
}

type APIConnectorExecutorDependencies struct {
	Transport      http.RoundTripper
	Evaluator      *expressions.Evaluator
	DefaultTimeout time.Duration
}

func NewAPIConnectorExecutor(deps APIConnectorExecutorDependencies) *APIConnectorExecutor {
	evaluator := deps.Evaluator
	if evaluator == nil {
		evaluator = expressions.NewEvaluator()
	}

	timeout := deps.DefaultTimeout
	if timeout <= 0 {
		timeout = httpintegration.DefaultTimeout
	}

	return &APIConnectorExecutor{
		transport:      deps.Transport,
		evaluator:      evaluator,
		defaultTimeout: timeout,
	}
}

type requestSpec struct {
	method      string
	url         *url.URL
	headers     map[string]string
	body        []byte
	contentType string
}

type response struct {
	statusCode int
	headers    http.Header
	raw        []byte
	body       any
}

func (e *APIConnectorExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	var params APIConnectorParams
	if err := domain.DecodeParams(input.Data, &params); err != nil {
		return nil, err
	}

	spec, err := buildRequestSpec(params)
	if err != nil {
		return nil, err
	}

	timeout := e.defaultTimeout
	if params.TimeoutMs > 0 {
		timeout = time.Duration(params.TimeoutMs) * time.Millisecond
	}

	transport := e.transport
	if params.Auth != nil {
		transport, err = httpintegration.NewAuthTransport(*params.Auth, transport)
		if err != nil {
			return nil, err
		}
	}

	c := &caller{
		client: &http.Client{Transport: transport, Timeout: timeout},
		policy: params.retryPolicy(),
		nodeID: input.NodeID,
	}

	if params.RateLimitMs > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Duration(params.RateLimitMs)*time.Millisecond), 1)
	}

	var (
		data  any
		last  *response
		pages int
	)

	if params.Pagination == nil || params.Pagination.Type == "" || params.Pagination.Type == pagination.TypeNone {
		last, err = c.call(ctx, spec, nil)
		if err != nil {
			return nil, err
		}

		pages = 1
		data = extract(last, params.DataPath)
	} else {
		handler, err := pagination.NewHandler(*params.Pagination)
		if err != nil {
			return nil, err
		}

		items := []any{}
		maxPages := params.maxPages()

		for pages < maxPages {
			last, err = c.call(ctx, spec, handler.BuildRequestParams())
			if err != nil {
				return nil, fmt.Errorf("page %d: %w", pages+1, err)
			}
			pages++

			extracted := extract(last, params.DataPath)
			count := -1
			if list, ok := extracted.([]any); ok {
				items = append(items, list...)
				count = len(list)
			} else if extracted != nil {
				items = append(items, extracted)
			}

			more, err := handler.Advance(pagination.Page{Body: last.body, Items: count})
			if err != nil {
				return nil, err
			}
			if !more {
				break
			}
		}

		data = items
	}

	if strings.TrimSpace(params.Transform) != "" {
		data, err = e.evaluator.Evaluate(params.Transform, map[string]any{
			"data":     data,
			"response": last.body,
			"input":    input.Input,
		})
		if err != nil {
			return nil, fmt.Errorf("transform failed: %w", err)
		}
	}

	log.Debug().
		Str("node_id", input.NodeID).
		Int("status_code", last.statusCode).
		Int("pages", pages).
		Msg("API connector call completed")

	return map[string]any{
		"statusCode": last.statusCode,
		"data":       data,
		"pages":      pages,
		"headers":    httpintegration.FlattenHeaders(last.headers),
	}, nil
}

func buildRequestSpec(params APIConnectorParams) (requestSpec, error) {
	if strings.TrimSpace(params.URL) == "" {
		return requestSpec{}, fmt.Errorf("url is required")
	}

	parsed, err := url.Parse(params.URL)
	if err != nil {
		return requestSpec{}, fmt.Errorf("invalid url: %w", err)
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return requestSpec{}, fmt.Errorf("unsupported url scheme %q", parsed.Scheme)
	}

	if len(params.QueryParams) > 0 {
		query := parsed.Query()
		for key, value := range httpintegration.HeaderValues(params.QueryParams) {
			query.Set(key, value)
		}
		parsed.RawQuery = query.Encode()
	}

	method := strings.ToUpper(strings.TrimSpace(params.Method))
	if method == "" {
		method = http.MethodGet
	}

	reader, contentType, err := httpintegration.EncodeBody(params.Body, params.ContentType)
	if err != nil {
		return requestSpec{}, err
	}

	var body []byte
	if reader != nil {
		body, err = io.ReadAll(reader)
		if err != nil {
			return requestSpec{}, fmt.Errorf("failed to read request body: %w", err)
		}
	}

	return requestSpec{
		method:      method,
		url:         parsed,
		headers:     httpintegration.HeaderValues(params.Headers),
		body:        body,
		contentType: contentType,
	}, nil
}

type caller struct {
	client  *http.Client
	policy  RetryPolicy
	limiter *rate.Limiter
	nodeID  string
}

// call sends one logical request, retrying per the policy.
func (c *caller) call(ctx context.Context, spec requestSpec, pageParams map[string]string) (*response, error) {
	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err := c.do(ctx, spec, pageParams)

		statusCode := 0
		if resp != nil {
			statusCode = resp.statusCode
		}

		if !ShouldRetry(statusCode, err) || attempt >= c.policy.MaxRetries {
			if err != nil {
				return nil, fmt.Errorf("request failed after %d attempt(s): %s", attempt+1, httpintegration.TransportErrorMessage(err))
			}
			if resp.statusCode >= 400 {
				return nil, fmt.Errorf("request failed with status %d: %s", resp.statusCode, snippet(resp.raw))
			}
			return resp, nil
		}

		delay := c.policy.Backoff(attempt)
		if resp != nil {
			if after := retryAfter(resp.headers); after > delay {
				delay = min(after, c.policy.MaxDelay)
			}
		}

		log.Warn().
			Str("node_id", c.nodeID).
			Int("attempt", attempt+1).
			Int("status_code", statusCode).
			Dur("delay", delay).
			Msg("Retrying API request")

		if err := sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("retry interrupted: %w", err)
		}
	}
}

func (c *caller) do(ctx context.Context, spec requestSpec, pageParams map[string]string) (*response, error) {
	target := *spec.url
	if len(pageParams) > 0 {
		query := target.Query()
		for key, value := range pageParams {
			query.Set(key, value)
		}
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if spec.body != nil {
		body = bytes.NewReader(spec.body)
	}

	req, err := http.NewRequestWithContext(ctx, spec.method, target.String(), body)
	if err != nil {
		return nil, err
	}

	for key, value := range spec.headers {
		req.Header.Set(key, value)
	}

	if spec.contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", spec.contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyLen))
	if err != nil {
		return nil, err
	}

	return &response{
		statusCode: resp.StatusCode,
		headers:    resp.Header,
		raw:        raw,
		body:       httpintegration.DecodeBody(resp.Header.Get("Content-Type"), raw),
	}, nil
}

// extract applies dataPath to the response. JSON bodies are read with gjson,
// anything else falls back to walking the decoded value.
func extract(resp *response, path string) any {
	if strings.TrimSpace(path) == "" {
		return resp.body
	}

	if gjson.ValidBytes(resp.raw) {
		value, _ := expressions.ExtractJSON(resp.raw, path)
		return value
	}

	value, _ := expressions.Lookup(resp.body, path)
	return value
}

func snippet(raw []byte) string {
	const limit = 200

	text := strings.TrimSpace(string(raw))
	if len(text) > limit {
		return text[:limit] + "..."
	}
	if text == "" {
		return "empty response"
	}

	return text
}
