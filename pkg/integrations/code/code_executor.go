package code

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
)

const DefaultTimeout = 5 * time.Second

var removedGlobals = []string{
	"require",
	"module",
	"exports",
	"process",
	"global",
	"globalThis",
	"__dirname",
	"__filename",
	"Buffer",
	"setTimeout",
	"setInterval",
	"setImmediate",
	"clearImmediate",
	"fetch",
	"XMLHttpRequest",
	"WebSocket",
	"importScripts",
}

type CodeParams struct {
	Code      string `json:"code"`
	TimeoutMs int    `json:"timeoutMs"`
}

// CodeExecutor runs a script in a fresh goja runtime per call. Only input,
// context and console are bound; the completion value becomes the output.
type CodeExecutor struct {
	timeout time.Duration
}

type CodeExecutorDependencies struct {
	Timeout time.Duration
}

func NewCodeExecutor(deps CodeExecutorDependencies) *CodeExecutor {
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &CodeExecutor{
		timeout: timeout,
	}
}

func (e *CodeExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	var params CodeParams
	if err := domain.DecodeParams(input.Data, &params); err != nil {
		return nil, err
	}

	if strings.TrimSpace(params.Code) == "" {
		return nil, fmt.Errorf("code is required")
	}

	timeout := e.timeout
	if params.TimeoutMs > 0 {
		timeout = time.Duration(params.TimeoutMs) * time.Millisecond
	}

	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))

	if err := sandbox(vm, input); err != nil {
		return nil, err
	}

	timer := time.AfterFunc(timeout, func() {
		vm.Interrupt(fmt.Sprintf("script timed out after %s", timeout))
	})
	defer timer.Stop()

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt("script cancelled")
	})
	defer stop()

	value, err := vm.RunString(params.Code)
	if err != nil {
		return nil, scriptError(err)
	}

	if value == nil || goja.IsUndefined(value) || goja.IsNull(value) {
		return nil, nil
	}

	return value.Export(), nil
}

func sandbox(vm *goja.Runtime, input domain.RunInput) error {
	for _, name := range removedGlobals {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}

	err := vm.Set("eval", func(call goja.FunctionCall) goja.Value {
		panic(vm.NewTypeError("eval is not allowed"))
	})
	if err != nil {
		return fmt.Errorf("failed to restrict eval: %w", err)
	}

	var results map[string]any
	if input.Context != nil {
		results = input.Context.Results
	}

	if err := vm.Set("input", expressions.CloneValue(input.Input)); err != nil {
		return fmt.Errorf("failed to set input: %w", err)
	}

	if err := vm.Set("context", expressions.CloneValue(results)); err != nil {
		return fmt.Errorf("failed to set context: %w", err)
	}

	if err := vm.Set("console", newConsole(vm, input.NodeID)); err != nil {
		return fmt.Errorf("failed to set console: %w", err)
	}

	return nil
}

func newConsole(vm *goja.Runtime, nodeID string) *goja.Object {
	console := vm.NewObject()

	logFn := func(level string) func(call goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, 0, len(call.Arguments))
			for _, arg := range call.Arguments {
				parts = append(parts, arg.String())
			}

			event := log.Debug()
			switch level {
			case "warn":
				event = log.Warn()
			case "error":
				event = log.Error()
			}

			event.Str("node_id", nodeID).Msg(strings.Join(parts, " "))

			return goja.Undefined()
		}
	}

	_ = console.Set("log", logFn("log"))
	_ = console.Set("info", logFn("log"))
	_ = console.Set("warn", logFn("warn"))
	_ = console.Set("error", logFn("error"))

	return console
}

func scriptError(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("%v", interrupted.Value())
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		if value := exception.Value(); value != nil {
			return fmt.Errorf("script error: %s", value.String())
		}
	}

	return fmt.Errorf("script error: %w", err)
}
