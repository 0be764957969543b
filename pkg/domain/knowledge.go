package domain

import "context"

type KnowledgeQuery struct {
	Text            string  `json:"query"`
	WorkspaceID     string  `json:"workspace_id"`
	KnowledgeBaseID string  `json:"knowledge_base_id"`
	Limit           int     `json:"limit"`
	MinScore        float64 `json:"min_score"`
}

type KnowledgeHit struct {
	DocumentID string         `json:"documentId,omitempty"`
	Title      string         `json:"title,omitempty"`
	Content    string         `json:"content"`
	Score      float64        `json:"score"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type KnowledgeBase interface {
	Query(ctx context.Context, query KnowledgeQuery) ([]KnowledgeHit, error)
}
