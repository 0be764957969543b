package domain

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
)

// ExecutionContext is the per-run interpolation scope. Results maps node ids to
// their outputs and is discarded when the run ends.
type ExecutionContext struct {
	ExecutionID string
	FlowID      string
	Results     map[string]any
}

type ExecutionInput struct {
	NodeID   string
	NodeType NodeType
	Data     map[string]any
	Input    any
	Context  *ExecutionContext
}

type ExecutionOutput struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NodeExecutor is implemented by every node plugin. Execute never panics and
// never returns a Go error: failures are reported through ExecutionOutput.
type NodeExecutor interface {
	Execute(ctx context.Context, input ExecutionInput) ExecutionOutput
}

// RunInput carries already-interpolated node data to a plugin.
type RunInput struct {
	NodeID   string
	NodeType NodeType
	Data     map[string]any
	Input    any
	Context  *ExecutionContext
}

func (i RunInput) ExecutionID() string {
	if i.Context == nil {
		return ""
	}

	return i.Context.ExecutionID
}

// Scope returns the values a plugin should evaluate paths and conditions against.
func (i RunInput) Scope() any {
	if i.Context != nil && i.Context.Results != nil {
		return i.Context.Results
	}

	return i.Input
}

type NodeRunner interface {
	Run(ctx context.Context, input RunInput) (any, error)
}

type NodeRunnerFunc func(ctx context.Context, input RunInput) (any, error)

func (f NodeRunnerFunc) Run(ctx context.Context, input RunInput) (any, error) {
	return f(ctx, input)
}

// BaseExecutor resolves {{path}} tokens in node data and delegates to a runner.
type BaseExecutor struct {
	runner NodeRunner
}

func NewBaseExecutor(runner NodeRunner) *BaseExecutor {
	return &BaseExecutor{
		runner: runner,
	}
}

func (e *BaseExecutor) Execute(ctx context.Context, input ExecutionInput) (output ExecutionOutput) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().
				Str("node_id", input.NodeID).
				Str("node_type", string(input.NodeType)).
				Str("stack", string(debug.Stack())).
				Msgf("node executor panicked: %v", r)

			output = ExecutionOutput{
				Success: false,
				Error:   fmt.Sprintf("executor panicked: %v", r),
			}
		}
	}()

	var scope any = input.Input
	if input.Context != nil && input.Context.Results != nil {
		scope = input.Context.Results
	}

	data, _ := expressions.Resolve(input.Data, scope).(map[string]any)
	if data == nil {
		data = map[string]any{}
	}

	result, err := e.runner.Run(ctx, RunInput{
		NodeID:   input.NodeID,
		NodeType: input.NodeType,
		Data:     data,
		Input:    input.Input,
		Context:  input.Context,
	})
	if err != nil {
		return ExecutionOutput{
			Success: false,
			Error:   err.Error(),
		}
	}

	return ExecutionOutput{
		Success: true,
		Output:  result,
	}
}
