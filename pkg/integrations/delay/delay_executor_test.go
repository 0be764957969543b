package delay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

func TestDelayParams_Wait(t *testing.T) {
	ms := func(v float64) *float64 { return &v }

	tests := []struct {
		name     string
		params   DelayParams
		expected time.Duration
		wantErr  bool
	}{
		{name: "default", params: DelayParams{}, expected: DefaultDuration},
		{name: "milliseconds", params: DelayParams{Duration: ms(250)}, expected: 250 * time.Millisecond},
		{name: "zero duration", params: DelayParams{Duration: ms(0)}, expected: 0},
		{name: "seconds", params: DelayParams{Amount: 2, Unit: "seconds"}, expected: 2 * time.Second},
		{name: "minutes", params: DelayParams{Amount: 1.5, Unit: "minutes"}, expected: 90 * time.Second},
		{name: "hours", params: DelayParams{Amount: 1, Unit: "hours"}, expected: time.Hour},
		{name: "unknown unit", params: DelayParams{Amount: 1, Unit: "days"}, wantErr: true},
		{name: "negative", params: DelayParams{Duration: ms(-1)}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.params.wait()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDelayExecutor_ForwardsInput(t *testing.T) {
	completedAt := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	executor := domain.NewBaseExecutor(NewDelayExecutor(DelayExecutorDependencies{
		Clock: func() time.Time { return completedAt },
	}))

	output := executor.Execute(context.Background(), domain.ExecutionInput{
		NodeID: "delay",
		Data:   map[string]any{"duration": 10},
		Input:  map[string]any{"a": 1},
	})

	require.True(t, output.Success, output.Error)

	result := output.Output.(map[string]any)
	assert.Equal(t, 1, result["a"])
	assert.Equal(t, map[string]any{
		"durationMs":  int64(10),
		"completedAt": completedAt.Format(time.RFC3339Nano),
	}, result["_delay"])
}

func TestDelayExecutor_WrapsScalarInput(t *testing.T) {
	executor := domain.NewBaseExecutor(NewDelayExecutor(DelayExecutorDependencies{}))

	output := executor.Execute(context.Background(), domain.ExecutionInput{
		Data:  map[string]any{"duration": "1"},
		Input: "payload",
	})

	require.True(t, output.Success, output.Error)
	assert.Equal(t, "payload", output.Output.(map[string]any)["data"])
}

func TestDelayExecutor_StopsOnCancel(t *testing.T) {
	executor := domain.NewBaseExecutor(NewDelayExecutor(DelayExecutorDependencies{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	output := executor.Execute(ctx, domain.ExecutionInput{Data: map[string]any{}})

	assert.False(t, output.Success)
	assert.Contains(t, output.Error, "delay interrupted")
}

func TestDelayExecutor_RejectsLongDelays(t *testing.T) {
	executor := domain.NewBaseExecutor(NewDelayExecutor(DelayExecutorDependencies{MaxDuration: time.Second}))

	output := executor.Execute(context.Background(), domain.ExecutionInput{
		Data: map[string]any{"amount": 2, "unit": "minutes"},
	})

	assert.False(t, output.Success)
	assert.Contains(t, output.Error, "exceeds maximum")
}
