package domain

import (
	"context"
	"fmt"
	"sort"
)

// ExecutorRegistry maps node types to plugins. It is filled once at startup and
// only read afterwards, so lookups take no lock.
type ExecutorRegistry struct {
	executors map[NodeType]NodeExecutor
}

func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{
		executors: make(map[NodeType]NodeExecutor),
	}
}

func (r *ExecutorRegistry) Register(nodeType NodeType, executor NodeExecutor) {
	r.executors[nodeType] = executor
}

func (r *ExecutorRegistry) Get(nodeType NodeType) (NodeExecutor, error) {
	executor, ok := r.executors[nodeType]
	if !ok {
		return nil, &ConfigurationError{
			NodeType: nodeType,
			Message:  fmt.Sprintf("no executor registered for node type %q", nodeType),
			Err:      ErrExecutorNotFound,
		}
	}

	return executor, nil
}

func (r *ExecutorRegistry) Execute(ctx context.Context, nodeType NodeType, input ExecutionInput) (ExecutionOutput, error) {
	executor, err := r.Get(nodeType)
	if err != nil {
		return ExecutionOutput{}, err
	}

	return executor.Execute(ctx, input), nil
}

func (r *ExecutorRegistry) Types() []NodeType {
	types := make([]NodeType, 0, len(r.executors))
	for nodeType := range r.executors {
		types = append(types, nodeType)
	}

	sort.Slice(types, func(i, j int) bool {
		return types[i] < types[j]
	})

	return types
}
