package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

type fakeKnowledgeBase struct {
	hits     []domain.KnowledgeHit
	err      error
	received domain.KnowledgeQuery
}

func (f *fakeKnowledgeBase) Query(ctx context.Context, query domain.KnowledgeQuery) ([]domain.KnowledgeHit, error) {
	f.received = query
	return f.hits, f.err
}

func query(t *testing.T, kb *fakeKnowledgeBase, data map[string]any) domain.ExecutionOutput {
	t.Helper()

	executor := domain.NewBaseExecutor(NewKnowledgeExecutor(KnowledgeExecutorDependencies{KnowledgeBase: kb}))

	return executor.Execute(context.Background(), domain.ExecutionInput{
		NodeID:   "kb",
		NodeType: domain.NodeTypeKnowledge,
		Data:     data,
		Input:    map[string]any{"question": "refund policy"},
	})
}

func TestKnowledgeExecutor_FiltersAndDefaults(t *testing.T) {
	kb := &fakeKnowledgeBase{hits: []domain.KnowledgeHit{
		{Content: "low", Score: 0.5},
		{Content: "refunds within 30 days", Score: 0.8, Title: "Policy"},
		{Content: "exact", Score: 0.95},
	}}

	output := query(t, kb, map[string]any{"query": "{{question}}", "knowledgeBaseId": "kb-1"})

	require.True(t, output.Success, output.Error)

	assert.Equal(t, "refund policy", kb.received.Text)
	assert.Equal(t, DefaultLimit, kb.received.Limit)
	assert.Equal(t, DefaultMinScore, kb.received.MinScore)
	assert.Equal(t, "kb-1", kb.received.KnowledgeBaseID)

	result := output.Output.(map[string]any)
	assert.Equal(t, 2, result["count"])
	assert.Equal(t, true, result["hasResults"])
	assert.Equal(t, "exact\n\n---\n\nrefunds within 30 days", result["context"])
	assert.Equal(t, "refund policy", result["query"])
}

func TestKnowledgeExecutor_NoResults(t *testing.T) {
	output := query(t, &fakeKnowledgeBase{}, map[string]any{"query": "anything", "minScore": 0.2, "limit": 3})

	require.True(t, output.Success, output.Error)

	result := output.Output.(map[string]any)
	assert.Equal(t, 0, result["count"])
	assert.Equal(t, false, result["hasResults"])
	assert.Equal(t, "", result["context"])
}

func TestKnowledgeExecutor_Errors(t *testing.T) {
	output := query(t, &fakeKnowledgeBase{}, map[string]any{})
	assert.False(t, output.Success)
	assert.Equal(t, "query is required", output.Error)

	output = query(t, &fakeKnowledgeBase{err: errors.New("unavailable")}, map[string]any{"query": "q"})
	assert.False(t, output.Success)
	assert.Contains(t, output.Error, "unavailable")
}
