package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/controllers"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/managers"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/telemetry"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain/executor"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/trigger"
)

const testSecret = "test-secret"

func newTestApp(t *testing.T, jwtSecret string) *fiber.App {
	t.Helper()

	registry := domain.NewExecutorRegistry()
	registry.Register(domain.NodeTypeWebhook, domain.NewBaseExecutor(trigger.NewPassthroughExecutor()))

	runStore := managers.NewMemoryRunStore(managers.MemoryRunStoreDependencies{})
	t.Cleanup(runStore.Close)

	metrics := telemetry.NewMetrics()

	service := executor.NewFlowExecutorService(executor.FlowExecutorServiceDependencies{
		Registry:   registry,
		RunStore:   runStore,
		TraceStore: managers.NewMemoryTraceStore(),
		ArtifactManager: managers.NewArtifactManager(managers.ArtifactManagerDependencies{
			Store: managers.NewMemoryArtifactStore(),
		}),
		Metrics: metrics,
	})
	t.Cleanup(func() { _ = service.Shutdown(context.Background()) })

	return NewHTTPServer(HTTPServerDependencies{
		RunController:  controllers.NewRunController(controllers.RunControllerDependencies{FlowExecutorService: service}),
		MetricsHandler: metrics.Handler(),
		JWTSecret:      jwtSecret,
	})
}

func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func webhookFlow() map[string]any {
	return map[string]any{
		"nodes": []any{
			map[string]any{"id": "start", "type": "webhook", "data": map[string]any{}},
		},
		"edges": []any{},
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t, "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestExecuteRunSync(t *testing.T) {
	app := newTestApp(t, "")

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/v1/flows/runs/sync", map[string]any{
		"flow":  webhookFlow(),
		"input": map[string]any{"value": 5},
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var run domain.ExecutionRun
	decode(t, resp, &run)

	assert.Equal(t, domain.RunStatusCompleted, run.Status)
	assert.Equal(t, map[string]any{"value": float64(5)}, run.Result)
	require.Len(t, run.NodeRuns, 1)
	assert.Equal(t, "start", run.NodeRuns[0].NodeID)
}

func TestStartRunThenPoll(t *testing.T) {
	app := newTestApp(t, "")

	resp, err := app.Test(jsonRequest(t, http.MethodPost, "/v1/flows/flow-7/runs", map[string]any{
		"flow":  webhookFlow(),
		"input": "hello",
	}))
	require.NoError(t, err)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var started controllers.RunFlowResponse
	decode(t, resp, &started)
	require.NotEmpty(t, started.RunID)

	var run domain.ExecutionRun
	assert.Eventually(t, func() bool {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/runs/"+started.RunID, nil))
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		decode(t, resp, &run)
		return run.Status == domain.RunStatusCompleted
	}, 2*time.Second, 20*time.Millisecond)

	assert.Equal(t, "flow-7", run.FlowID)
	assert.Equal(t, "hello", run.Result)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/v1/runs?limit=5", nil))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list controllers.ListRunsResponse
	decode(t, resp, &list)
	require.Len(t, list.Runs, 1)
	assert.Equal(t, started.RunID, list.Runs[0].ExecutionID)
}

func TestErrorResponses(t *testing.T) {
	app := newTestApp(t, "")

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{
			name: "duplicate node ids",
			req: jsonRequest(t, http.MethodPost, "/v1/flows/runs/sync", map[string]any{
				"flow": map[string]any{
					"nodes": []any{
						map[string]any{"id": "a", "type": "webhook"},
						map[string]any{"id": "a", "type": "webhook"},
					},
					"edges": []any{},
				},
			}),
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown run",
			req:    httptest.NewRequest(http.MethodGet, "/v1/runs/missing", nil),
			status: http.StatusNotFound,
		},
		{
			name:   "unknown artifact",
			req:    httptest.NewRequest(http.MethodDelete, "/v1/artifacts/missing", nil),
			status: http.StatusNotFound,
		},
		{
			name:   "bad limit",
			req:    httptest.NewRequest(http.MethodGet, "/v1/runs?limit=zero", nil),
			status: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := app.Test(tt.req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body map[string]any
			decode(t, resp, &body)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestNodeTypesAndMetrics(t *testing.T) {
	app := newTestApp(t, "")

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/v1/node-types", nil))
	require.NoError(t, err)

	var types controllers.NodeTypesResponse
	decode(t, resp, &types)
	assert.Equal(t, []domain.NodeType{domain.NodeTypeWebhook}, types.NodeTypes)

	_, err = app.Test(jsonRequest(t, http.MethodPost, "/v1/flows/runs/sync", map[string]any{"flow": webhookFlow()}))
	require.NoError(t, err)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "flowengine_runs_started_total")
}

func signedToken(t *testing.T, secret string, expiresAt time.Time) string {
	t.Helper()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ops",
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func TestJWTAuthentication(t *testing.T) {
	app := newTestApp(t, testSecret)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing token", status: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + signedToken(t, "other", time.Now().Add(time.Hour)), status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + signedToken(t, testSecret, time.Now().Add(-time.Hour)), status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + signedToken(t, testSecret, time.Now().Add(time.Hour)), status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/node-types", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
