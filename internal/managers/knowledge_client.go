package managers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const knowledgeSearchPath = "/v1/knowledge/search"

// KnowledgeClient queries a remote knowledge service over HTTP.
type KnowledgeClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type KnowledgeClientDependencies struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

func NewKnowledgeClient(deps KnowledgeClientDependencies) *KnowledgeClient {
	httpClient := deps.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &KnowledgeClient{
		baseURL:    strings.TrimRight(deps.BaseURL, "/"),
		apiKey:     deps.APIKey,
		httpClient: httpClient,
	}
}

type knowledgeSearchResponse struct {
	Hits []domain.KnowledgeHit `json:"hits"`
}

func (c *KnowledgeClient) Query(ctx context.Context, query domain.KnowledgeQuery) ([]domain.KnowledgeHit, error) {
	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal knowledge query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+knowledgeSearchPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create knowledge request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("knowledge service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var response knowledgeSearchResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal knowledge response: %w", err)
	}

	return response.Hits, nil
}
