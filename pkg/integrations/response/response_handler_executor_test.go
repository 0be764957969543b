package response

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

func handle(t *testing.T, data map[string]any, input any) domain.ExecutionOutput {
	t.Helper()

	return domain.NewBaseExecutor(NewResponseHandlerExecutor(ResponseHandlerExecutorDependencies{})).
		Execute(context.Background(), domain.ExecutionInput{
			NodeID:   "rh",
			NodeType: domain.NodeTypeResponseHandler,
			Data:     data,
			Input:    input,
		})
}

func users() map[string]any {
	return map[string]any{
		"body": map[string]any{
			"users": []any{
				map[string]any{"name": "ada", "age": 36, "team": "core", "tags": "a,b"},
				map[string]any{"name": "bob", "age": 17, "team": "web", "tags": "c"},
				map[string]any{"name": "eve", "age": 29, "team": "core", "tags": ""},
			},
		},
	}
}

func TestResponseHandler_Pipeline(t *testing.T) {
	output := handle(t, map[string]any{
		"extractPath": "body.users",
		"filters":     []any{map[string]any{"field": "age", "operator": "gte", "value": 18}},
		"transforms": []any{
			map[string]any{"type": "sort", "field": "age", "order": "asc"},
			map[string]any{"type": "rename", "mapping": map[string]any{"name": "fullName"}},
			map[string]any{"type": "pick", "fields": []any{"fullName", "age"}},
		},
		"aggregation": map[string]any{"operation": "sum", "field": "age"},
	}, users())

	require.True(t, output.Success, output.Error)

	result := output.Output.(map[string]any)
	assert.Equal(t, []any{
		map[string]any{"fullName": "eve", "age": 29},
		map[string]any{"fullName": "ada", "age": 36},
	}, result["data"])
	assert.Equal(t, 2, result["count"])
	assert.Equal(t, float64(65), result["aggregation"])
	assert.Equal(t, DefaultRoute, result["_routing"])
}

func TestResponseHandler_RequiredFields(t *testing.T) {
	output := handle(t, map[string]any{
		"requiredFields": []any{"id", "name", "email"},
	}, map[string]any{"name": "ada"})

	assert.False(t, output.Success)
	assert.Equal(t, "missing required fields: id, email", output.Error)
}

func TestResponseHandler_RequiredFieldsReturnsValidationFailure(t *testing.T) {
	executor := NewResponseHandlerExecutor(ResponseHandlerExecutorDependencies{})

	_, err := executor.Run(context.Background(), domain.RunInput{
		Data:  map[string]any{"requiredFields": []any{"id"}},
		Input: map[string]any{},
	})

	var validation *domain.ValidationFailure
	require.True(t, errors.As(err, &validation))
	assert.Equal(t, []string{"id"}, validation.MissingFields)
}

func TestResponseHandler_Routing(t *testing.T) {
	routes := []any{
		map[string]any{"name": "vip", "conditions": []any{map[string]any{"field": "tier", "operator": "equals", "value": "gold"}}},
		map[string]any{"name": "big", "conditions": []any{map[string]any{"field": "total", "operator": "gt", "value": 100}}},
	}

	tests := []struct {
		name     string
		input    map[string]any
		expected string
	}{
		{name: "first match wins", input: map[string]any{"tier": "gold", "total": 500}, expected: "vip"},
		{name: "second route", input: map[string]any{"tier": "silver", "total": 500}, expected: "big"},
		{name: "default", input: map[string]any{"tier": "silver", "total": 5}, expected: DefaultRoute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := handle(t, map[string]any{"routes": routes}, tt.input)

			require.True(t, output.Success, output.Error)
			assert.Equal(t, tt.expected, output.Output.(map[string]any)["_routing"])
		})
	}
}

func TestTransforms(t *testing.T) {
	tr := &transformer{evaluator: nil}
	comma := ","

	tests := []struct {
		name     string
		step     TransformStep
		data     any
		expected any
	}{
		{
			name:     "map",
			step:     TransformStep{Type: TransformMap, Mapping: map[string]string{"city": "address.city"}},
			data:     map[string]any{"address": map[string]any{"city": "Oslo"}},
			expected: map[string]any{"city": "Oslo"},
		},
		{
			name:     "omit",
			step:     TransformStep{Type: TransformOmit, Fields: []string{"secret"}},
			data:     map[string]any{"id": 1, "secret": "x"},
			expected: map[string]any{"id": 1},
		},
		{
			name:     "flatten list",
			step:     TransformStep{Type: TransformFlatten},
			data:     []any{[]any{1, 2}, 3, []any{[]any{4}}},
			expected: []any{1, 2, 3, []any{4}},
		},
		{
			name:     "flatten record",
			step:     TransformStep{Type: TransformFlatten},
			data:     map[string]any{"a": map[string]any{"b": 1}, "c": 2},
			expected: map[string]any{"a.b": 1, "c": 2},
		},
		{
			name: "group",
			step: TransformStep{Type: TransformGroup, Field: "team"},
			data: []any{map[string]any{"team": "a", "n": 1}, map[string]any{"team": "b", "n": 2}, map[string]any{"team": "a", "n": 3}},
			expected: map[string]any{
				"a": []any{map[string]any{"team": "a", "n": 1}, map[string]any{"team": "a", "n": 3}},
				"b": []any{map[string]any{"team": "b", "n": 2}},
			},
		},
		{
			name:     "sort desc scalars",
			step:     TransformStep{Type: TransformSort, Order: "desc"},
			data:     []any{2, 9, 4},
			expected: []any{9, 4, 2},
		},
		{
			name:     "unique by field",
			step:     TransformStep{Type: TransformUnique, Field: "id"},
			data:     []any{map[string]any{"id": 1, "v": "a"}, map[string]any{"id": 1, "v": "b"}, map[string]any{"id": 2}},
			expected: []any{map[string]any{"id": 1, "v": "a"}, map[string]any{"id": 2}},
		},
		{
			name:     "merge overrides",
			step:     TransformStep{Type: TransformMerge, Value: map[string]any{"status": "done", "extra": true}},
			data:     map[string]any{"id": 1, "status": "new"},
			expected: map[string]any{"id": 1, "status": "done", "extra": true},
		},
		{
			name:     "format",
			step:     TransformStep{Type: TransformFormat, Target: "label", Template: "{{first}} {{last}}"},
			data:     map[string]any{"first": "Ada", "last": "Lovelace"},
			expected: map[string]any{"first": "Ada", "last": "Lovelace", "label": "Ada Lovelace"},
		},
		{
			name:     "split field",
			step:     TransformStep{Type: TransformSplit, Field: "tags", Separator: &comma},
			data:     map[string]any{"tags": "a, b"},
			expected: map[string]any{"tags": []any{"a", "b"}},
		},
		{
			name:     "join list",
			step:     TransformStep{Type: TransformJoin},
			data:     []any{"a", "b", 3},
			expected: "a,b,3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tr.apply(tt.step, tt.data)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMergeTransformLeavesInputUntouched(t *testing.T) {
	tr := &transformer{evaluator: nil}
	upstream := map[string]any{"id": 1, "meta": map[string]any{"a": 1}}

	got, err := tr.apply(TransformStep{Type: TransformMerge, Value: map[string]any{"meta": map[string]any{"b": 2}}}, upstream)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"id": 1, "meta": map[string]any{"a": 1, "b": 2}}, got)
	assert.Equal(t, map[string]any{"id": 1, "meta": map[string]any{"a": 1}}, upstream)
}

func TestCalculateTransform(t *testing.T) {
	output := handle(t, map[string]any{
		"transforms": []any{
			map[string]any{"type": "calculate", "target": "total", "expression": "price * qty"},
		},
	}, []any{map[string]any{"price": 2.5, "qty": 4}})

	require.True(t, output.Success, output.Error)
	assert.Equal(t, []any{map[string]any{"price": 2.5, "qty": 4, "total": float64(10)}}, output.Output.(map[string]any)["data"])
}

func TestUnknownTransformFails(t *testing.T) {
	output := handle(t, map[string]any{
		"transforms": []any{map[string]any{"type": "explode"}},
	}, map[string]any{})

	assert.False(t, output.Success)
	assert.Contains(t, output.Error, "unknown transform")
}

func TestAggregate(t *testing.T) {
	items := []any{map[string]any{"v": 3}, map[string]any{"v": 1}, map[string]any{"v": 5}, map[string]any{"x": 1}}

	tests := []struct {
		operation string
		expected  any
	}{
		{"sum", float64(9)},
		{"avg", float64(3)},
		{"min", float64(1)},
		{"max", float64(5)},
		{"count", 3},
		{"first", 3},
		{"last", 5},
		{"collect", []any{3, 1, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.operation, func(t *testing.T) {
			got, err := aggregate(Aggregation{Operation: tt.operation, Field: "v"}, items)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}
