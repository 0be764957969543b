package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageHandler(t *testing.T) {
	handler, err := NewHandler(Config{Type: TypePage, PageSize: 2})
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"page": "1", "limit": "2"}, handler.BuildRequestParams())

	more, err := handler.Advance(Page{Items: 2})
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, "2", handler.BuildRequestParams()["page"])

	more, err = handler.Advance(Page{Items: 1})
	require.NoError(t, err)
	assert.False(t, more)
}

func TestPageHandlerStartPage(t *testing.T) {
	start := 0
	handler := NewPageHandler(Config{StartPage: &start, PageParam: "p"})

	assert.Equal(t, map[string]string{"p": "0"}, handler.BuildRequestParams())
}

func TestOffsetHandler(t *testing.T) {
	handler := NewOffsetHandler(Config{PageSize: 10})

	assert.Equal(t, map[string]string{"offset": "0", "limit": "10"}, handler.BuildRequestParams())

	more, err := handler.Advance(Page{Items: 10, Body: map[string]any{"total_count": 25}})
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, "10", handler.BuildRequestParams()["offset"])

	more, err = handler.Advance(Page{Items: 10, Body: map[string]any{"total_count": 25}})
	require.NoError(t, err)
	assert.True(t, more)

	more, err = handler.Advance(Page{Items: 5, Body: map[string]any{"total_count": 25}})
	require.NoError(t, err)
	assert.False(t, more)
}

func TestCursorHandler(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		body     any
		more     bool
		expected string
	}{
		{
			name:     "next_cursor field",
			body:     map[string]any{"next_cursor": "abc"},
			more:     true,
			expected: "abc",
		},
		{
			name:     "page token",
			body:     map[string]any{"nextPageToken": "tok"},
			more:     true,
			expected: "tok",
		},
		{
			name:     "cursor path",
			config:   Config{CursorPath: "meta.next"},
			body:     map[string]any{"meta": map[string]any{"next": "n2"}},
			more:     true,
			expected: "n2",
		},
		{
			name:   "has more false",
			config: Config{HasMorePath: "has_more"},
			body:   map[string]any{"next_cursor": "abc", "has_more": false},
			more:   false,
		},
		{
			name: "no cursor",
			body: map[string]any{"items": []any{}},
			more: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewCursorHandler(tt.config)
			assert.Empty(t, handler.BuildRequestParams())

			more, err := handler.Advance(Page{Body: tt.body, Items: -1})
			require.NoError(t, err)
			assert.Equal(t, tt.more, more)

			if tt.more {
				assert.Equal(t, tt.expected, handler.BuildRequestParams()["cursor"])
			}
		})
	}
}

func TestNewHandlerRejectsUnknownType(t *testing.T) {
	_, err := NewHandler(Config{Type: "graphql"})
	assert.Error(t, err)

	_, err = NewHandler(Config{})
	assert.Error(t, err)
}
