package expressions

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluator(t *testing.T) {
	evaluator := NewEvaluator()

	vars := map[string]any{
		"data": map[string]any{
			"items": []any{
				map[string]any{"price": float64(10)},
				map[string]any{"price": float64(5)},
			},
			"name": "Widget",
		},
		"count": float64(3),
	}

	tests := []struct {
		name       string
		expression string
		expected   any
	}{
		{name: "arithmetic", expression: "count * 2 + 1", expected: float64(7)},
		{name: "property access", expression: "data.items[0].price", expected: float64(10)},
		{name: "array length", expression: "data.items.length", expected: float64(2)},
		{name: "string concat", expression: "'name: ' + data.name", expected: "name: Widget"},
		{name: "ternary", expression: "count > 2 ? 'many' : 'few'", expected: "many"},
		{name: "logical and", expression: "count > 2 && data.name === 'Widget'", expected: true},
		{name: "nullish", expression: "data.missing ?? 'fallback'", expected: "fallback"},
		{name: "string method", expression: "data.name.toUpperCase()", expected: "WIDGET"},
		{name: "builtin sum", expression: "sum(1, 2, 3)", expected: float64(6)},
		{name: "math call", expression: "Math.round(2.6)", expected: float64(3)},
		{
			name:       "object literal",
			expression: "{total: count * 10, label: data.name}",
			expected:   map[string]any{"total": float64(30), "label": "Widget"},
		},
		{name: "array literal", expression: "[count, 'x']", expected: []any{float64(3), "x"}},
		{name: "undefined identifier", expression: "nothing", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := evaluator.Evaluate(tt.expression, vars)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestEvaluatorRejectsUnsafeExpressions(t *testing.T) {
	evaluator := NewEvaluator()

	tests := []struct {
		name       string
		expression string
	}{
		{name: "unknown function", expression: "eval('1')"},
		{name: "function literal", expression: "(function() { return 1 })()"},
		{name: "assignment", expression: "x = 1"},
		{name: "syntax error", expression: "1 +"},
		{name: "empty", expression: "   "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := evaluator.Evaluate(tt.expression, map[string]any{})
			assert.Error(t, err)
		})
	}
}

func TestEvaluatorMaxDepth(t *testing.T) {
	evaluator := NewEvaluator(WithMaxDepth(3))

	_, err := evaluator.Evaluate("((((1 + 1) + 1) + 1) + 1)", nil)
	assert.ErrorIs(t, err, ErrMaxDepthExceeded)
}

func TestEvaluatorOutOfRangeIndex(t *testing.T) {
	evaluator := NewEvaluator()
	vars := map[string]any{"data": []any{float64(1), float64(2)}, "word": "go"}

	tests := []struct {
		name       string
		expression string
		expected   any
	}{
		{name: "huge index", expression: "data[1e20]", expected: nil},
		{name: "huge string index", expression: "word[1e20]", expected: nil},
		{name: "negative index", expression: "data[-1]", expected: nil},
		{name: "fractional index", expression: "data[0.5]", expected: nil},
		{name: "past the end", expression: "data[2]", expected: nil},
		{name: "last element", expression: "data[1]", expected: float64(2)},
		{name: "string element", expression: "word[1]", expected: "o"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				value any
				err   error
			)
			require.NotPanics(t, func() {
				value, err = evaluator.Evaluate(tt.expression, vars)
			})
			require.NoError(t, err)
			assert.Equal(t, tt.expected, value)
		})
	}
}

func TestEvaluatorToFixedDigits(t *testing.T) {
	evaluator := NewEvaluator()
	vars := map[string]any{"x": 3.14159}

	value, err := evaluator.Evaluate("x.toFixed(2)", vars)
	require.NoError(t, err)
	assert.Equal(t, "3.14", value)

	_, err = evaluator.Evaluate("x.toFixed(1e9)", vars)
	assert.Error(t, err)

	_, err = evaluator.Evaluate("x.toFixed(-1)", vars)
	assert.Error(t, err)
}

func TestEvaluatorCacheIsBounded(t *testing.T) {
	evaluator := NewEvaluator(WithCacheSize(3))

	for i := 0; i < 10; i++ {
		value, err := evaluator.Evaluate(fmt.Sprintf("x + %d", i), map[string]any{"x": float64(1)})
		require.NoError(t, err)
		assert.Equal(t, float64(1+i), value)
	}
	assert.LessOrEqual(t, cacheLen(evaluator), 3)

	uncached := NewEvaluator(WithCacheSize(0))
	_, err := uncached.Evaluate("1 + 1", nil)
	require.NoError(t, err)
	assert.Zero(t, cacheLen(uncached))
}

func cacheLen(e *Evaluator) int {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()

	return len(e.cache)
}
