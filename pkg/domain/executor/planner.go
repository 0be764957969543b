package executor

import "github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"

// BuildExecutionOrder returns every node id exactly once. Nodes without an
// incoming edge are walked depth-first in array order; a node already seen is
// skipped, which also breaks cycles. Nodes the walk never reaches are appended
// in array order.
//
// The result is a discovery order, not a topological sort: with converging
// paths a node can come before one of its predecessors.
func BuildExecutionOrder(nodes []domain.Node, edges []domain.Edge) []string {
	known := make(map[string]struct{}, len(nodes))
	for _, node := range nodes {
		known[node.ID] = struct{}{}
	}

	outgoing := make(map[string][]string, len(nodes))
	hasIncoming := make(map[string]bool, len(nodes))

	for _, edge := range edges {
		if _, ok := known[edge.Source]; !ok {
			continue
		}
		if _, ok := known[edge.Target]; !ok {
			continue
		}

		outgoing[edge.Source] = append(outgoing[edge.Source], edge.Target)
		hasIncoming[edge.Target] = true
	}

	order := make([]string, 0, len(nodes))
	visited := make(map[string]bool, len(nodes))

	var visit func(nodeID string)
	visit = func(nodeID string) {
		if visited[nodeID] {
			return
		}

		visited[nodeID] = true
		order = append(order, nodeID)

		for _, next := range outgoing[nodeID] {
			visit(next)
		}
	}

	for _, node := range nodes {
		if !hasIncoming[node.ID] {
			visit(node.ID)
		}
	}

	for _, node := range nodes {
		if !visited[node.ID] {
			visited[node.ID] = true
			order = append(order, node.ID)
		}
	}

	return order
}
