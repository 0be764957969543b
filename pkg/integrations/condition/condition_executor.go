package condition

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
)

const (
	BranchTrue  = "true"
	BranchFalse = "false"
)

// ConditionParams accepts either a clause list or a single inline clause.
// Combinator defaults to "and".
type ConditionParams struct {
	Conditions []Clause `json:"conditions"`
	Combinator string   `json:"combinator"`

	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

func (p ConditionParams) clauses() []Clause {
	if len(p.Conditions) > 0 || p.Operator == "" {
		return p.Conditions
	}

	return []Clause{{Field: p.Field, Operator: p.Operator, Value: p.Value}}
}

// ConditionExecutor evaluates clauses against the node input first and the
// run results second, and reports which branch was taken.
type ConditionExecutor struct{}

func NewConditionExecutor() *ConditionExecutor {
	return &ConditionExecutor{}
}

func (e *ConditionExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	var params ConditionParams
	if err := domain.DecodeParams(input.Data, &params); err != nil {
		return nil, err
	}

	var results map[string]any
	if input.Context != nil {
		results = input.Context.Results
	}

	evaluate := EvaluateAll
	if strings.EqualFold(params.Combinator, "or") {
		evaluate = EvaluateAny
	}

	matched, err := evaluate(params.clauses(), input.Input, results)
	if err != nil {
		return nil, err
	}

	branch := BranchFalse
	if matched {
		branch = BranchTrue
	}

	log.Debug().Str("node_id", input.NodeID).Str("branch", branch).Msg("Condition evaluated")

	return map[string]any{
		"result": matched,
		"branch": branch,
		"input":  input.Input,
	}, nil
}
