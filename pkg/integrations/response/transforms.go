package response

import (
	"fmt"
	"sort"
	"strings"

	"dario.cat/mergo"
	"github.com/spf13/cast"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
)

type TransformType string

const (
	TransformMap       TransformType = "map"
	TransformRename    TransformType = "rename"
	TransformPick      TransformType = "pick"
	TransformOmit      TransformType = "omit"
	TransformFlatten   TransformType = "flatten"
	TransformGroup     TransformType = "group"
	TransformSort      TransformType = "sort"
	TransformUnique    TransformType = "unique"
	TransformMerge     TransformType = "merge"
	TransformFormat    TransformType = "format"
	TransformCalculate TransformType = "calculate"
	TransformSplit     TransformType = "split"
	TransformJoin      TransformType = "join"
)

// TransformStep is one stage of the pipeline. Which fields matter depends on
// Type: Mapping drives map (target to source path) and rename (old to new),
// Fields drives pick, omit and unique.
type TransformStep struct {
	Type       TransformType     `json:"type"`
	Field      string            `json:"field"`
	Target     string            `json:"target"`
	Fields     []string          `json:"fields"`
	Mapping    map[string]string `json:"mapping"`
	Value      map[string]any    `json:"value"`
	Template   string            `json:"template"`
	Expression string            `json:"expression"`
	Separator  *string           `json:"separator"`
	Order      string            `json:"order"`
	Depth      int               `json:"depth"`
}

func (s TransformStep) target() string {
	if s.Target != "" {
		return s.Target
	}
	return s.Field
}

func (s TransformStep) separator() string {
	if s.Separator != nil {
		return *s.Separator
	}
	return ","
}

type transformer struct {
	evaluator *expressions.Evaluator
}

func (t *transformer) apply(step TransformStep, data any) (any, error) {
	switch step.Type {
	case TransformMap:
		return eachRecord(data, func(record map[string]any) (any, error) {
			out := make(map[string]any, len(step.Mapping))
			for target, source := range step.Mapping {
				value, _ := expressions.Lookup(record, source)
				out[target] = value
			}
			return out, nil
		})

	case TransformRename:
		return eachRecord(data, func(record map[string]any) (any, error) {
			out := copyRecord(record)
			for from, to := range step.Mapping {
				if value, ok := out[from]; ok {
					delete(out, from)
					out[to] = value
				}
			}
			return out, nil
		})

	case TransformPick:
		return eachRecord(data, func(record map[string]any) (any, error) {
			out := make(map[string]any, len(step.Fields))
			for _, field := range step.Fields {
				if value, ok := expressions.Lookup(record, field); ok {
					out[field] = value
				}
			}
			return out, nil
		})

	case TransformOmit:
		return eachRecord(data, func(record map[string]any) (any, error) {
			out := copyRecord(record)
			for _, field := range step.Fields {
				delete(out, field)
			}
			return out, nil
		})

	case TransformFlatten:
		if items, ok := data.([]any); ok {
			depth := step.Depth
			if depth <= 0 {
				depth = 1
			}
			return flattenSlice(items, depth), nil
		}
		return eachRecord(data, func(record map[string]any) (any, error) {
			out := map[string]any{}
			flattenMap("", record, out)
			return out, nil
		})

	case TransformGroup:
		items, ok := data.([]any)
		if !ok {
			return nil, fmt.Errorf("group requires a list")
		}
		groups := map[string]any{}
		for _, item := range items {
			value, _ := expressions.Lookup(item, step.Field)
			key := expressions.ToString(value)
			existing, _ := groups[key].([]any)
			groups[key] = append(existing, item)
		}
		return groups, nil

	case TransformSort:
		items, ok := data.([]any)
		if !ok {
			return nil, fmt.Errorf("sort requires a list")
		}
		sorted := append([]any(nil), items...)
		descending := strings.EqualFold(step.Order, "desc")
		sort.SliceStable(sorted, func(i, j int) bool {
			a, b := sorted[i], sorted[j]
			if step.Field != "" {
				a, _ = expressions.Lookup(a, step.Field)
				b, _ = expressions.Lookup(b, step.Field)
			}
			cmp, ok := expressions.Compare(a, b)
			if !ok {
				return false
			}
			if descending {
				return cmp > 0
			}
			return cmp < 0
		})
		return sorted, nil

	case TransformUnique:
		items, ok := data.([]any)
		if !ok {
			return nil, fmt.Errorf("unique requires a list")
		}
		seen := map[string]bool{}
		out := make([]any, 0, len(items))
		for _, item := range items {
			key := uniqueKey(item, step)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
		return out, nil

	case TransformMerge:
		return eachRecord(data, func(record map[string]any) (any, error) {
			out, _ := expressions.CloneValue(record).(map[string]any)
			value, _ := expressions.CloneValue(step.Value).(map[string]any)
			if err := mergo.Merge(&out, value, mergo.WithOverride); err != nil {
				return nil, fmt.Errorf("merge failed: %w", err)
			}
			return out, nil
		})

	case TransformFormat:
		if step.target() == "" {
			return nil, fmt.Errorf("format requires a target")
		}
		return eachRecord(data, func(record map[string]any) (any, error) {
			out := copyRecord(record)
			out[step.target()] = expressions.ResolveString(step.Template, record)
			return out, nil
		})

	case TransformCalculate:
		if step.target() == "" || step.Expression == "" {
			return nil, fmt.Errorf("calculate requires a target and an expression")
		}
		return eachRecord(data, func(record map[string]any) (any, error) {
			vars := copyRecord(record)
			vars["item"] = record
			value, err := t.evaluator.Evaluate(step.Expression, vars)
			if err != nil {
				return nil, fmt.Errorf("calculate %s: %w", step.target(), err)
			}
			out := copyRecord(record)
			out[step.target()] = value
			return out, nil
		})

	case TransformSplit:
		if s, ok := data.(string); ok && step.Field == "" {
			return splitValue(s, step.separator()), nil
		}
		return eachRecord(data, func(record map[string]any) (any, error) {
			out := copyRecord(record)
			value, _ := expressions.Lookup(record, step.Field)
			out[step.target()] = splitValue(cast.ToString(value), step.separator())
			return out, nil
		})

	case TransformJoin:
		if items, ok := data.([]any); ok && step.Field == "" {
			return joinValues(items, step.separator()), nil
		}
		return eachRecord(data, func(record map[string]any) (any, error) {
			out := copyRecord(record)
			value, _ := expressions.Lookup(record, step.Field)
			out[step.target()] = joinValues(expressions.ToSlice(value), step.separator())
			return out, nil
		})
	}

	return nil, fmt.Errorf("unknown transform %q", step.Type)
}

// eachRecord applies fn to a single record or to every record of a list.
// Non-record list elements pass through untouched.
func eachRecord(data any, fn func(map[string]any) (any, error)) (any, error) {
	switch v := data.(type) {
	case map[string]any:
		return fn(v)
	case []any:
		out := make([]any, 0, len(v))
		for i, item := range v {
			record, ok := item.(map[string]any)
			if !ok {
				out = append(out, item)
				continue
			}
			transformed, err := fn(record)
			if err != nil {
				return nil, fmt.Errorf("item %d: %w", i, err)
			}
			out = append(out, transformed)
		}
		return out, nil
	}

	return data, nil
}

func copyRecord(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for key, value := range record {
		out[key] = value
	}
	return out
}

func flattenSlice(items []any, depth int) []any {
	out := make([]any, 0, len(items))
	for _, item := range items {
		if nested, ok := item.([]any); ok && depth > 0 {
			out = append(out, flattenSlice(nested, depth-1)...)
			continue
		}
		out = append(out, item)
	}
	return out
}

func flattenMap(prefix string, record map[string]any, out map[string]any) {
	for key, value := range record {
		name := key
		if prefix != "" {
			name = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
			flattenMap(name, nested, out)
			continue
		}
		out[name] = value
	}
}

func uniqueKey(item any, step TransformStep) string {
	if len(step.Fields) == 0 && step.Field == "" {
		return expressions.ToString(item)
	}

	fields := step.Fields
	if step.Field != "" {
		fields = append([]string{step.Field}, fields...)
	}

	parts := make([]string, len(fields))
	for i, field := range fields {
		value, _ := expressions.Lookup(item, field)
		parts[i] = expressions.ToString(value)
	}
	return strings.Join(parts, "\x00")
}

func splitValue(s, separator string) []any {
	if s == "" {
		return []any{}
	}
	parts := strings.Split(s, separator)
	out := make([]any, len(parts))
	for i, part := range parts {
		out[i] = strings.TrimSpace(part)
	}
	return out
}

func joinValues(items []any, separator string) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = expressions.ToString(item)
	}
	return strings.Join(parts, separator)
}
