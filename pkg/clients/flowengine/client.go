package flowengine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

type ClientInterface interface {
	StartRun(ctx context.Context, flowID string, req *RunFlowRequest) (*RunFlowResponse, error)
	ExecuteRun(ctx context.Context, req *RunFlowRequest) (*domain.ExecutionRun, error)
	GetRun(ctx context.Context, runID string) (*domain.ExecutionRun, error)
	WaitForRun(ctx context.Context, runID string, interval time.Duration) (*domain.ExecutionRun, error)
	ListRuns(ctx context.Context, limit int) ([]domain.ExecutionRun, error)
	DeleteArtifact(ctx context.Context, artifactID string) error
	NodeTypes(ctx context.Context) ([]domain.NodeType, error)
	HealthCheck(ctx context.Context) (*HealthCheckResponse, error)
}

type RunFlowRequest struct {
	Flow  domain.FlowDefinition `json:"flow"`
	Input any                   `json:"input,omitempty"`
}

type RunFlowResponse struct {
	RunID string `json:"runId"`
}

type HealthCheckResponse struct {
	Status    string `json:"status"`
	Service   string `json:"service"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
}

type listRunsResponse struct {
	Runs []domain.ExecutionRun `json:"runs"`
}

type nodeTypesResponse struct {
	NodeTypes []domain.NodeType `json:"nodeTypes"`
}

// Client talks to the engine's HTTP API.
type Client struct {
	config     *ClientConfig
	httpClient *http.Client
}

func NewClient(options ...ClientOption) *Client {
	config := DefaultConfig()

	for _, option := range options {
		option(config)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: config.Timeout,
		}
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
	}
}

// StartRun starts a background run. Poll the returned id with GetRun or WaitForRun.
func (c *Client) StartRun(ctx context.Context, flowID string, req *RunFlowRequest) (*RunFlowResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("run request cannot be nil")
	}
	if flowID == "" {
		return nil, fmt.Errorf("flow ID cannot be empty")
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/flows/"+url.PathEscape(flowID)+"/runs", req)
	if err != nil {
		return nil, fmt.Errorf("failed to start run: %w", err)
	}

	var runResponse RunFlowResponse

	if err := c.handleResponse(resp, &runResponse); err != nil {
		return nil, fmt.Errorf("failed to process start run response: %w", err)
	}

	return &runResponse, nil
}

// ExecuteRun runs the flow synchronously and returns the finished run.
func (c *Client) ExecuteRun(ctx context.Context, req *RunFlowRequest) (*domain.ExecutionRun, error) {
	if req == nil {
		return nil, fmt.Errorf("run request cannot be nil")
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/flows/runs/sync", req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute run: %w", err)
	}

	var run domain.ExecutionRun

	if err := c.handleResponse(resp, &run); err != nil {
		return nil, fmt.Errorf("failed to process execute run response: %w", err)
	}

	return &run, nil
}

func (c *Client) GetRun(ctx context.Context, runID string) (*domain.ExecutionRun, error) {
	if runID == "" {
		return nil, fmt.Errorf("run ID cannot be empty")
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/runs/"+url.PathEscape(runID), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run domain.ExecutionRun

	if err := c.handleResponse(resp, &run); err != nil {
		return nil, fmt.Errorf("failed to process get run response: %w", err)
	}

	return &run, nil
}

// WaitForRun polls until the run leaves the running state or ctx is done.
func (c *Client) WaitForRun(ctx context.Context, runID string, interval time.Duration) (*domain.ExecutionRun, error) {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		run, err := c.GetRun(ctx, runID)
		if err != nil {
			return nil, err
		}

		if run.Status != domain.RunStatusRunning {
			return run, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Client) ListRuns(ctx context.Context, limit int) ([]domain.ExecutionRun, error) {
	path := "/v1/runs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var list listRunsResponse

	if err := c.handleResponse(resp, &list); err != nil {
		return nil, fmt.Errorf("failed to process list runs response: %w", err)
	}

	return list.Runs, nil
}

func (c *Client) DeleteArtifact(ctx context.Context, artifactID string) error {
	if artifactID == "" {
		return fmt.Errorf("artifact ID cannot be empty")
	}

	resp, err := c.doRequest(ctx, http.MethodDelete, "/v1/artifacts/"+url.PathEscape(artifactID), nil)
	if err != nil {
		return fmt.Errorf("failed to delete artifact: %w", err)
	}

	if err := c.handleResponse(resp, nil); err != nil {
		return fmt.Errorf("failed to process delete artifact response: %w", err)
	}

	return nil
}

func (c *Client) NodeTypes(ctx context.Context) ([]domain.NodeType, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/node-types", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list node types: %w", err)
	}

	var types nodeTypesResponse

	if err := c.handleResponse(resp, &types); err != nil {
		return nil, fmt.Errorf("failed to process node types response: %w", err)
	}

	return types.NodeTypes, nil
}

func (c *Client) HealthCheck(ctx context.Context) (*HealthCheckResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/health", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to perform health check: %w", err)
	}

	var health HealthCheckResponse

	if err := c.handleResponse(resp, &health); err != nil {
		return nil, fmt.Errorf("failed to process health check response: %w", err)
	}

	return &health, nil
}

// doRequest retries transport failures and 5xx answers. Any other response is
// returned to the caller untouched.
func (c *Client) doRequest(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	endpoint := c.config.BaseURL + path

	var lastErr error
	for attempt := 0; attempt <= c.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		var requestBody io.Reader
		if bodyBytes != nil {
			requestBody = bytes.NewReader(bodyBytes)
		}

		req, err := http.NewRequestWithContext(ctx, method, endpoint, requestBody)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		for key, value := range c.config.DefaultHeaders {
			req.Header.Set(key, value)
		}

		if c.config.UserAgent != "" {
			req.Header.Set("User-Agent", c.config.UserAgent)
		}

		if c.config.Token != "" {
			req.Header.Set("Authorization", "Bearer "+c.config.Token)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			lastErr = &Error{
				StatusCode: resp.StatusCode,
				Message:    errorMessage(resp.StatusCode, body),
				Body:       string(body),
				RequestID:  resp.Header.Get("X-Request-ID"),
			}
			continue
		}

		return resp, nil
	}

	return nil, fmt.Errorf("request failed after %d retries: %w", c.config.RetryAttempts, lastErr)
}

func (c *Client) handleResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &Error{
			StatusCode: resp.StatusCode,
			Message:    errorMessage(resp.StatusCode, body),
			Body:       string(body),
			RequestID:  resp.Header.Get("X-Request-ID"),
		}
	}

	if result != nil && len(body) > 0 {
		if err := json.Unmarshal(body, result); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

func errorMessage(statusCode int, body []byte) string {
	var errorResponse struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}

	if json.Unmarshal(body, &errorResponse) == nil {
		if errorResponse.Error != "" {
			return errorResponse.Error
		}
		if errorResponse.Message != "" {
			return errorResponse.Message
		}
	}

	return fmt.Sprintf("HTTP %d", statusCode)
}
