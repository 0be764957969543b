package condition

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/spf13/cast"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/pkg/expressions"
)

type Operator string

const (
	OperatorEquals       Operator = "equals"
	OperatorStrictEquals Operator = "strictEquals"
	OperatorNotEquals    Operator = "notEquals"
	OperatorGT           Operator = "gt"
	OperatorGTE          Operator = "gte"
	OperatorLT           Operator = "lt"
	OperatorLTE          Operator = "lte"
	OperatorContains     Operator = "contains"
	OperatorStartsWith   Operator = "startsWith"
	OperatorEndsWith     Operator = "endsWith"
	OperatorMatches      Operator = "matches"
	OperatorIn           Operator = "in"
	OperatorNotIn        Operator = "notIn"
	OperatorExists       Operator = "exists"
	OperatorNotExists    Operator = "notExists"
	OperatorEmpty        Operator = "empty"
	OperatorNotEmpty     Operator = "notEmpty"
)

// Clause compares the value found at Field with Value.
type Clause struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value"`
}

var patternCache sync.Map

// Compare applies operator to actual and expected. found reports whether the
// field was present at all, which only matters for exists and notExists.
func Compare(operator Operator, actual any, found bool, expected any) (bool, error) {
	switch operator {
	case OperatorEquals, "eq", "==":
		return expressions.LooseEquals(actual, expected), nil
	case OperatorStrictEquals, "===":
		return expressions.StrictEquals(actual, expected), nil
	case OperatorNotEquals, "ne", "!=":
		return !expressions.LooseEquals(actual, expected), nil
	case OperatorGT, ">":
		c, ok := expressions.Compare(actual, expected)
		return ok && c > 0, nil
	case OperatorGTE, ">=":
		c, ok := expressions.Compare(actual, expected)
		return ok && c >= 0, nil
	case OperatorLT, "<":
		c, ok := expressions.Compare(actual, expected)
		return ok && c < 0, nil
	case OperatorLTE, "<=":
		c, ok := expressions.Compare(actual, expected)
		return ok && c <= 0, nil
	case OperatorContains:
		return expressions.Contains(actual, expected), nil
	case OperatorStartsWith:
		return actual != nil && strings.HasPrefix(expressions.ToString(actual), expressions.ToString(expected)), nil
	case OperatorEndsWith:
		return actual != nil && strings.HasSuffix(expressions.ToString(actual), expressions.ToString(expected)), nil
	case OperatorMatches:
		pattern, err := compilePattern(cast.ToString(expected))
		if err != nil {
			return false, err
		}
		return actual != nil && pattern.MatchString(expressions.ToString(actual)), nil
	case OperatorIn:
		return expressions.Contains(expressions.ToSlice(expected), actual), nil
	case OperatorNotIn:
		return !expressions.Contains(expressions.ToSlice(expected), actual), nil
	case OperatorExists:
		return found && actual != nil, nil
	case OperatorNotExists:
		return !found || actual == nil, nil
	case OperatorEmpty:
		return expressions.IsEmpty(actual), nil
	case OperatorNotEmpty:
		return !expressions.IsEmpty(actual), nil
	}

	return false, fmt.Errorf("unknown operator %q", operator)
}

// EvaluateClause looks the clause field up in each scope in turn and compares
// the first value found.
func EvaluateClause(clause Clause, scopes ...any) (bool, error) {
	actual, found := lookup(clause.Field, scopes...)
	return Compare(clause.Operator, actual, found, clause.Value)
}

// EvaluateAll AND-combines clauses. An empty list is true.
func EvaluateAll(clauses []Clause, scopes ...any) (bool, error) {
	for _, clause := range clauses {
		matched, err := EvaluateClause(clause, scopes...)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}

	return true, nil
}

// EvaluateAny OR-combines clauses. An empty list is true.
func EvaluateAny(clauses []Clause, scopes ...any) (bool, error) {
	if len(clauses) == 0 {
		return true, nil
	}

	for _, clause := range clauses {
		matched, err := EvaluateClause(clause, scopes...)
		if err != nil {
			return false, err
		}
		if matched {
			return true, nil
		}
	}

	return false, nil
}

func lookup(field string, scopes ...any) (any, bool) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, false
	}

	for _, scope := range scopes {
		if scope == nil {
			continue
		}
		if value, ok := expressions.Lookup(scope, field); ok {
			return value, true
		}
	}

	return nil, false
}

func compilePattern(pattern string) (*regexp.Regexp, error) {
	if cached, ok := patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp), nil
	}

	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}

	patternCache.Store(pattern, compiled)

	return compiled, nil
}
