package apiconnector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

func runConnector(t *testing.T, data map[string]any) domain.ExecutionOutput {
	t.Helper()

	executor := domain.NewBaseExecutor(NewAPIConnectorExecutor(APIConnectorExecutorDependencies{}))

	return executor.Execute(context.Background(), domain.ExecutionInput{
		NodeID:   "api",
		NodeType: domain.NodeTypeAPIConnector,
		Data:     data,
		Input:    map[string]any{"limit": 2},
	})
}

func TestAPIConnector_MaxPagesBoundsRequests(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[{"id":1},{"id":2}],"next_cursor":"c` + r.URL.Query().Get("page") + `"}`))
	}))
	defer server.Close()

	output := runConnector(t, map[string]any{
		"url":        server.URL,
		"maxPages":   3,
		"dataPath":   "items",
		"pagination": map[string]any{"type": "page", "pageSize": 2},
	})

	require.True(t, output.Success, output.Error)
	assert.Equal(t, int32(3), requests.Load())

	result := output.Output.(map[string]any)
	assert.Equal(t, 3, result["pages"])
	assert.Len(t, result["data"], 6)
}

func TestAPIConnector_CursorPaginationStopsWithoutCursor(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("cursor") == "" {
			_, _ = w.Write([]byte(`{"data":[1,2],"next_cursor":"next"}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[3]}`))
	}))
	defer server.Close()

	output := runConnector(t, map[string]any{
		"url":        server.URL,
		"dataPath":   "data",
		"pagination": map[string]any{"type": "cursor"},
	})

	require.True(t, output.Success, output.Error)
	assert.Equal(t, int32(2), requests.Load())
	assert.Equal(t, []any{float64(1), float64(2), float64(3)}, output.Output.(map[string]any)["data"])
}

func TestAPIConnector_RetriesServerErrors(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	output := runConnector(t, map[string]any{
		"url":          server.URL,
		"retryDelayMs": 1,
	})

	require.True(t, output.Success, output.Error)
	assert.Equal(t, int32(3), requests.Load())
	assert.Equal(t, http.StatusOK, output.Output.(map[string]any)["statusCode"])
}

func TestAPIConnector_GivesUpAfterMaxRetries(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer server.Close()

	output := runConnector(t, map[string]any{
		"url":          server.URL,
		"maxRetries":   1,
		"retryDelayMs": 1,
	})

	assert.False(t, output.Success)
	assert.Equal(t, int32(2), requests.Load())
	assert.Contains(t, output.Error, "status 500")
	assert.NotContains(t, output.Error, "goroutine")
}

func TestAPIConnector_DoesNotRetryClientErrors(t *testing.T) {
	var requests atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	output := runConnector(t, map[string]any{"url": server.URL, "retryDelayMs": 1})

	assert.False(t, output.Success)
	assert.Equal(t, int32(1), requests.Load())
	assert.Contains(t, output.Error, "status 400")
}

func TestAPIConnector_TransportErrorsAreRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	output := runConnector(t, map[string]any{
		"url":          url,
		"maxRetries":   2,
		"retryDelayMs": 1,
	})

	assert.False(t, output.Success)
	assert.Contains(t, output.Error, "after 3 attempt(s)")
}

func TestAPIConnector_ExtractsAndTransforms(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.URL.Query().Get("key"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"result":{"users":[{"name":"ada"},{"name":"bob"},{"name":"eve"}]}}`))
	}))
	defer server.Close()

	output := runConnector(t, map[string]any{
		"url":       server.URL,
		"auth":      map[string]any{"type": "api-key", "in": "query", "key": "key", "value": "secret"},
		"dataPath":  "result.users[1].name",
		"transform": "upper(data) + '-' + input.limit",
	})

	require.True(t, output.Success, output.Error)
	assert.Equal(t, "BOB-2", output.Output.(map[string]any)["data"])
}

func TestAPIConnector_RateLimitSpacesCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items":[1]}`))
	}))
	defer server.Close()

	start := time.Now()
	output := runConnector(t, map[string]any{
		"url":         server.URL,
		"dataPath":    "items",
		"rateLimitMs": 40,
		"maxPages":    3,
		"pagination":  map[string]any{"type": "page"},
	})

	require.True(t, output.Success, output.Error)
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	policy := RetryPolicy{BaseDelay: 500 * time.Millisecond, MaxDelay: 3 * time.Second}

	assert.Equal(t, 500*time.Millisecond, policy.Backoff(0))
	assert.Equal(t, time.Second, policy.Backoff(1))
	assert.Equal(t, 2*time.Second, policy.Backoff(2))
	assert.Equal(t, 3*time.Second, policy.Backoff(3))
	assert.Equal(t, 3*time.Second, policy.Backoff(10))
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(0, assert.AnError))
	assert.True(t, ShouldRetry(http.StatusTooManyRequests, nil))
	assert.True(t, ShouldRetry(http.StatusBadGateway, nil))
	assert.False(t, ShouldRetry(http.StatusNotFound, nil))
	assert.False(t, ShouldRetry(http.StatusOK, nil))
}
