package knowledge

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const (
	DefaultLimit    = 5
	DefaultMinScore = 0.7

	contextSeparator = "\n\n---\n\n"
)

type KnowledgeParams struct {
	Query           string   `json:"query"`
	WorkspaceID     string   `json:"workspaceId"`
	KnowledgeBaseID string   `json:"knowledgeBaseId"`
	Limit           int      `json:"limit"`
	MinScore        *float64 `json:"minScore"`
}

type KnowledgeExecutor struct {
	knowledgeBase domain.KnowledgeBase
}

type KnowledgeExecutorDependencies struct {
	KnowledgeBase domain.KnowledgeBase
}

func NewKnowledgeExecutor(deps KnowledgeExecutorDependencies) *KnowledgeExecutor {
	return &KnowledgeExecutor{
		knowledgeBase: deps.KnowledgeBase,
	}
}

func (e *KnowledgeExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	var params KnowledgeParams
	if err := domain.DecodeParams(input.Data, &params); err != nil {
		return nil, err
	}

	if e.knowledgeBase == nil {
		return nil, fmt.Errorf("knowledge base is not configured")
	}

	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	minScore := DefaultMinScore
	if params.MinScore != nil {
		minScore = *params.MinScore
	}

	hits, err := e.knowledgeBase.Query(ctx, domain.KnowledgeQuery{
		Text:            query,
		WorkspaceID:     params.WorkspaceID,
		KnowledgeBaseID: params.KnowledgeBaseID,
		Limit:           limit,
		MinScore:        minScore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge base: %w", err)
	}

	relevant := make([]domain.KnowledgeHit, 0, len(hits))
	for _, hit := range hits {
		if hit.Score >= minScore {
			relevant = append(relevant, hit)
		}
	}

	sort.SliceStable(relevant, func(i, j int) bool {
		return relevant[i].Score > relevant[j].Score
	})

	if len(relevant) > limit {
		relevant = relevant[:limit]
	}

	items := make([]any, 0, len(relevant))
	contents := make([]string, 0, len(relevant))
	for _, hit := range relevant {
		items = append(items, hitToMap(hit))
		contents = append(contents, hit.Content)
	}

	log.Debug().
		Str("node_id", input.NodeID).
		Int("returned", len(hits)).
		Int("relevant", len(relevant)).
		Msg("Knowledge base queried")

	return map[string]any{
		"hits":       items,
		"context":    strings.Join(contents, contextSeparator),
		"count":      len(relevant),
		"hasResults": len(relevant) > 0,
		"query":      query,
	}, nil
}

func hitToMap(hit domain.KnowledgeHit) map[string]any {
	out := map[string]any{
		"content": hit.Content,
		"score":   hit.Score,
	}

	if hit.DocumentID != "" {
		out["documentId"] = hit.DocumentID
	}
	if hit.Title != "" {
		out["title"] = hit.Title
	}
	if len(hit.Metadata) > 0 {
		out["metadata"] = hit.Metadata
	}

	return out
}
