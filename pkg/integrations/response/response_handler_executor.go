package response

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/domain"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/integrations/condition"
)

const DefaultRoute = "default"

type Route struct {
	Name       string             `json:"name"`
	Conditions []condition.Clause `json:"conditions"`
}

type ResponseHandlerParams struct {
	ExtractPath    string             `json:"extractPath"`
	Filters        []condition.Clause `json:"filters"`
	Transforms     []TransformStep    `json:"transforms"`
	Aggregation    *Aggregation       `json:"aggregation"`
	RequiredFields []string           `json:"requiredFields"`
	Routes         []Route            `json:"routes"`
}

// ResponseHandlerExecutor reshapes the previous node's output: extract,
// filter, transform, aggregate, validate, then route.
type ResponseHandlerExecutor struct {
	transformer *transformer
}

type ResponseHandlerExecutorDependencies struct {
	Evaluator *expressions.Evaluator
}

func NewResponseHandlerExecutor(deps ResponseHandlerExecutorDependencies) *ResponseHandlerExecutor {
	evaluator := deps.Evaluator
	if evaluator == nil {
		evaluator = expressions.NewEvaluator()
	}

	return &ResponseHandlerExecutor{
		transformer: &transformer{evaluator: evaluator},
	}
}

func (e *ResponseHandlerExecutor) Run(ctx context.Context, input domain.RunInput) (any, error) {
	var params ResponseHandlerParams
	if err := domain.DecodeParams(input.Data, &params); err != nil {
		return nil, err
	}

	data := input.Input
	if params.ExtractPath != "" {
		extracted, ok := expressions.Lookup(input.Input, params.ExtractPath)
		if !ok {
			return nil, fmt.Errorf("extract path %q not found", params.ExtractPath)
		}
		data = extracted
	}

	data, err := filter(params.Filters, data)
	if err != nil {
		return nil, err
	}

	for i, step := range params.Transforms {
		data, err = e.transformer.apply(step, data)
		if err != nil {
			return nil, fmt.Errorf("transform %d (%s): %w", i, step.Type, err)
		}
	}

	output := map[string]any{
		"data": data,
	}

	if items, ok := data.([]any); ok {
		output["count"] = len(items)
	}

	if params.Aggregation != nil && params.Aggregation.Operation != "" {
		aggregated, err := aggregate(*params.Aggregation, data)
		if err != nil {
			return nil, err
		}
		output["aggregation"] = aggregated
	}

	if missing := missingFields(params.RequiredFields, data); len(missing) > 0 {
		return nil, &domain.ValidationFailure{MissingFields: missing}
	}

	route, err := selectRoute(params.Routes, data, input.Input)
	if err != nil {
		return nil, err
	}
	output["_routing"] = route

	log.Debug().Str("node_id", input.NodeID).Str("route", route).Msg("Response handled")

	return output, nil
}

func filter(clauses []condition.Clause, data any) (any, error) {
	if len(clauses) == 0 {
		return data, nil
	}

	items, ok := data.([]any)
	if !ok {
		matched, err := condition.EvaluateAll(clauses, data)
		if err != nil {
			return nil, err
		}
		if !matched {
			return nil, nil
		}
		return data, nil
	}

	kept := make([]any, 0, len(items))
	for _, item := range items {
		matched, err := condition.EvaluateAll(clauses, item)
		if err != nil {
			return nil, err
		}
		if matched {
			kept = append(kept, item)
		}
	}

	return kept, nil
}

// missingFields returns required fields absent from the record, or from any
// record when data is a list, in declaration order.
func missingFields(required []string, data any) []string {
	if len(required) == 0 {
		return nil
	}

	records := []any{data}
	if items, ok := data.([]any); ok {
		records = items
	}

	var missing []string
	for _, field := range required {
		for _, record := range records {
			value, ok := expressions.Lookup(record, field)
			if !ok || value == nil {
				missing = append(missing, field)
				break
			}
		}
	}

	return missing
}

func selectRoute(routes []Route, scopes ...any) (string, error) {
	for _, route := range routes {
		if len(route.Conditions) == 0 {
			continue
		}

		matched, err := condition.EvaluateAll(route.Conditions, scopes...)
		if err != nil {
			return "", fmt.Errorf("route %q: %w", route.Name, err)
		}
		if matched {
			return route.Name, nil
		}
	}

	return DefaultRoute, nil
}
