package response

import (
	"fmt"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
)

type Aggregation struct {
	Operation string `json:"operation"`
	Field     string `json:"field"`
}

func aggregate(agg Aggregation, data any) (any, error) {
	items := expressions.ToSlice(data)
	if _, ok := data.([]any); !ok && data != nil {
		items = []any{data}
	}

	values := make([]any, 0, len(items))
	for _, item := range items {
		value := item
		if agg.Field != "" {
			found, ok := expressions.Lookup(item, agg.Field)
			if !ok {
				continue
			}
			value = found
		}
		values = append(values, value)
	}

	switch agg.Operation {
	case "count":
		return len(values), nil
	case "collect":
		return values, nil
	case "first":
		if len(values) == 0 {
			return nil, nil
		}
		return values[0], nil
	case "last":
		if len(values) == 0 {
			return nil, nil
		}
		return values[len(values)-1], nil
	case "sum", "avg", "min", "max":
		return numeric(agg.Operation, values), nil
	}

	return nil, fmt.Errorf("unknown aggregation %q", agg.Operation)
}

func numeric(operation string, values []any) any {
	var (
		total  float64
		result float64
		count  int
	)

	for _, value := range values {
		n, ok := expressions.ToNumber(value)
		if !ok {
			continue
		}

		switch {
		case count == 0:
			result = n
		case operation == "min" && n < result:
			result = n
		case operation == "max" && n > result:
			result = n
		}

		total += n
		count++
	}

	switch operation {
	case "sum":
		return total
	case "avg":
		if count == 0 {
			return nil
		}
		return total / float64(count)
	}

	if count == 0 {
		return nil
	}

	return result
}
