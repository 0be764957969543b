package executor

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

func nodesOf(ids ...string) []domain.Node {
	nodes := make([]domain.Node, len(ids))
	for i, id := range ids {
		nodes[i] = domain.Node{ID: id, Type: domain.NodeTypeManual}
	}
	return nodes
}

func edge(source, target string) domain.Edge {
	return domain.Edge{Source: source, Target: target}
}

func TestBuildExecutionOrder(t *testing.T) {
	tests := []struct {
		name     string
		nodes    []domain.Node
		edges    []domain.Edge
		expected []string
	}{
		{
			name:     "linear chain",
			nodes:    nodesOf("3", "1", "2"),
			edges:    []domain.Edge{edge("1", "2"), edge("2", "3")},
			expected: []string{"1", "2", "3"},
		},
		{
			name:     "branching dag",
			nodes:    nodesOf("a", "b", "c", "d"),
			edges:    []domain.Edge{edge("a", "b"), edge("a", "c"), edge("b", "d")},
			expected: []string{"a", "b", "d", "c"},
		},
		{
			name:     "cycle behind a start node",
			nodes:    nodesOf("start", "x", "y"),
			edges:    []domain.Edge{edge("start", "x"), edge("x", "y"), edge("y", "x")},
			expected: []string{"start", "x", "y"},
		},
		{
			name:     "pure cycle has no start node",
			nodes:    nodesOf("p", "q"),
			edges:    []domain.Edge{edge("p", "q"), edge("q", "p")},
			expected: []string{"p", "q"},
		},
		{
			name:     "disconnected nodes are appended",
			nodes:    nodesOf("lonely", "a", "b", "loop"),
			edges:    []domain.Edge{edge("a", "b"), edge("loop", "loop")},
			expected: []string{"lonely", "a", "b", "loop"},
		},
		{
			name:     "edges to unknown nodes are ignored",
			nodes:    nodesOf("a", "b"),
			edges:    []domain.Edge{edge("ghost", "a"), edge("a", "b"), edge("b", "missing")},
			expected: []string{"a", "b"},
		},
		{
			name:     "converging paths keep discovery order",
			nodes:    nodesOf("a", "b", "c", "join"),
			edges:    []domain.Edge{edge("a", "join"), edge("a", "b"), edge("b", "c"), edge("c", "join")},
			expected: []string{"a", "join", "b", "c"},
		},
		{
			name:     "empty graph",
			nodes:    nil,
			edges:    nil,
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, BuildExecutionOrder(tt.nodes, tt.edges))
		})
	}
}

func TestBuildExecutionOrderVisitsEveryNodeOnce(t *testing.T) {
	nodes := nodesOf("1", "2", "3", "4", "5", "6")
	edges := []domain.Edge{
		edge("1", "2"), edge("2", "3"), edge("3", "1"),
		edge("4", "4"), edge("5", "6"), edge("6", "5"), edge("2", "5"),
	}

	order := BuildExecutionOrder(nodes, edges)

	assert.Len(t, order, len(nodes))
	assert.ElementsMatch(t, []string{"1", "2", "3", "4", "5", "6"}, order)
}

func TestBuildExecutionOrderRespectsSingleSourceDAG(t *testing.T) {
	nodes := nodesOf("root", "a", "b", "c")
	edges := []domain.Edge{edge("root", "a"), edge("a", "b"), edge("b", "c")}

	order := BuildExecutionOrder(nodes, edges)

	position := map[string]int{}
	for i, id := range order {
		position[id] = i
	}

	for _, e := range edges {
		assert.Less(t, position[e.Source], position[e.Target])
	}
}
