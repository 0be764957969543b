package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

func TestMetrics_RecordsRunsAndNodes(t *testing.T) {
	metrics := NewMetrics()

	metrics.RunStarted("flow-1")
	metrics.RunStarted("flow-1")
	metrics.NodeFinished("code", domain.NodeRunStatusSuccess, 20*time.Millisecond)
	metrics.NodeFinished("code", domain.NodeRunStatusError, time.Millisecond)
	metrics.RunFinished(domain.RunStatusFailed, 50*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.runsStarted.WithLabelValues("flow-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runsFinished.WithLabelValues("failed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.nodeRuns.WithLabelValues("code", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.nodeRuns.WithLabelValues("code", "success")))
}

func TestSetupTracing_DisabledWithoutEndpoint(t *testing.T) {
	shutdown, err := SetupTracing(context.Background(), TracingConfig{ServiceName: "flowengine"})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
