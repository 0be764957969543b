package domain

import (
	"errors"
	"fmt"
)

var (
	ErrFlowNotFound = errors.New("flow not found")
	ErrInvalidFlow  = errors.New("invalid flow")
)

type NodeType string

const (
	NodeTypeHTTP            NodeType = "http"
	NodeTypeHTTPRequest     NodeType = "http-request"
	NodeTypeCode            NodeType = "code"
	NodeTypeCondition       NodeType = "condition"
	NodeTypeDelay           NodeType = "delay"
	NodeTypeWebhook         NodeType = "webhook"
	NodeTypeManual          NodeType = "manual"
	NodeTypeTrigger         NodeType = "trigger"
	NodeTypeSchedule        NodeType = "schedule"
	NodeTypeAPIConnector    NodeType = "api-connector"
	NodeTypeResponseHandler NodeType = "response-handler"
	NodeTypeMessaging       NodeType = "messaging"
	NodeTypeChannel         NodeType = "channel"
	NodeTypeSendMessage     NodeType = "send-message"
	NodeTypeKnowledge       NodeType = "knowledge"
	NodeTypeKnowledgeQuery  NodeType = "knowledge-query"
	NodeTypeAIChat          NodeType = "ai-chat"
	NodeTypeAIImage         NodeType = "ai-image"
	NodeTypeCustom          NodeType = "custom"
)

type Node struct {
	ID   string         `json:"id" yaml:"id"`
	Type NodeType       `json:"type" yaml:"type"`
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
}

// FlowDefinition is the graph handed to the engine. It is never mutated by a run.
type FlowDefinition struct {
	ID    string `json:"id,omitempty" yaml:"id,omitempty"`
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

func (f FlowDefinition) GetNodeByID(nodeID string) (Node, bool) {
	for _, node := range f.Nodes {
		if node.ID == nodeID {
			return node, true
		}
	}

	return Node{}, false
}

// ResolveNodeType unwraps a "custom" node into the concrete node it describes.
// The concrete type is read from data.nodeType (or data.type) and the node
// configuration from data.config, falling back to the remaining data keys.
func ResolveNodeType(node Node) (Node, error) {
	if node.Type != NodeTypeCustom {
		return node, nil
	}

	realType := ""
	for _, key := range []string{"nodeType", "type"} {
		if value, ok := node.Data[key].(string); ok && value != "" {
			realType = value
			break
		}
	}

	if realType == "" {
		return Node{}, &ConfigurationError{
			NodeID:   node.ID,
			NodeType: node.Type,
			Message:  "custom node does not declare a node type",
		}
	}

	if NodeType(realType) == NodeTypeCustom {
		return Node{}, &ConfigurationError{
			NodeID:   node.ID,
			NodeType: node.Type,
			Message:  "custom node cannot wrap another custom node",
		}
	}

	data := map[string]any{}
	if config, ok := node.Data["config"].(map[string]any); ok {
		for key, value := range config {
			data[key] = value
		}
	} else {
		for key, value := range node.Data {
			if key == "nodeType" || key == "type" {
				continue
			}
			data[key] = value
		}
	}

	return Node{
		ID:   node.ID,
		Type: NodeType(realType),
		Data: data,
	}, nil
}

// ValidateNodeIDs reports empty or duplicated node ids.
func (f FlowDefinition) ValidateNodeIDs() error {
	seen := make(map[string]struct{}, len(f.Nodes))

	for i, node := range f.Nodes {
		if node.ID == "" {
			return fmt.Errorf("node at index %d has an empty id", i)
		}

		if _, ok := seen[node.ID]; ok {
			return fmt.Errorf("duplicate node id %q", node.ID)
		}

		seen[node.ID] = struct{}{}
	}

	return nil
}
