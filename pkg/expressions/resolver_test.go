package expressions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolve(t *testing.T) {
	scope := map[string]any{
		"a": map[string]any{
			"b": "hello",
			"n": float64(42),
			"items": []any{
				map[string]any{"name": "first"},
				map[string]any{"name": "second"},
			},
		},
	}

	tests := []struct {
		name     string
		value    any
		scope    any
		expected any
	}{
		{
			name:     "plain text is unchanged",
			value:    "plain text",
			scope:    scope,
			expected: "plain text",
		},
		{
			name:     "unresolved token is left literal",
			value:    "{{a.b}}",
			scope:    map[string]any{},
			expected: "{{a.b}}",
		},
		{
			name:     "nil scope leaves token",
			value:    "{{a.b}}",
			scope:    nil,
			expected: "{{a.b}}",
		},
		{
			name:     "single token keeps type",
			value:    "{{a.n}}",
			scope:    scope,
			expected: float64(42),
		},
		{
			name:     "embedded tokens are stringified",
			value:    "say {{ a.b }} to {{a.n}}",
			scope:    scope,
			expected: "say hello to 42",
		},
		{
			name:     "mixed resolved and unresolved",
			value:    "{{a.b}} {{missing.path}}",
			scope:    scope,
			expected: "hello {{missing.path}}",
		},
		{
			name:     "array index segments",
			value:    "{{a.items.1.name}}/{{a.items[0].name}}",
			scope:    scope,
			expected: "second/first",
		},
		{
			name: "maps and slices recurse",
			value: map[string]any{
				"greeting": "{{a.b}}",
				"list":     []any{"{{a.n}}", true, float64(3)},
			},
			scope: scope,
			expected: map[string]any{
				"greeting": "hello",
				"list":     []any{float64(42), true, float64(3)},
			},
		},
		{
			name:     "non-string scalars pass through",
			value:    float64(7),
			scope:    scope,
			expected: float64(7),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Resolve(tt.value, tt.scope))
		})
	}
}

func TestResolveIsIdempotentWithoutTokens(t *testing.T) {
	value := map[string]any{"x": "y", "z": []any{"w"}}

	once := Resolve(value, map[string]any{})
	twice := Resolve(once, map[string]any{})

	assert.Equal(t, value, once)
	assert.Equal(t, once, twice)
}

func TestResolveDoesNotMutateInput(t *testing.T) {
	value := map[string]any{"x": "{{a}}"}

	resolved := Resolve(value, map[string]any{"a": "b"})

	assert.Equal(t, "{{a}}", value["x"])
	assert.Equal(t, map[string]any{"x": "b"}, resolved)
}
