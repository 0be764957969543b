package expressions

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
	"github.com/spf13/cast"
)

var (
	ErrEvaluationTimeout = errors.New("expression evaluation timed out")
	ErrMaxDepthExceeded  = errors.New("expression nesting too deep")
)

const (
	defaultCacheSize = 1024
	maxFixedDigits   = 100
)

type Function func(args []any) (any, error)

// Evaluator runs a restricted JavaScript expression subset by walking the
// parsed AST. Nothing is executed by a JavaScript runtime: only literals,
// bound variables, property access, operators and allow-listed functions are
// understood.
type Evaluator struct {
	timeout   time.Duration
	maxDepth  int
	functions map[string]Function

	cacheSize int
	cacheMu   sync.RWMutex
	cache     map[string]ast.Expression
}

type EvaluatorOption func(*Evaluator)

func WithTimeout(timeout time.Duration) EvaluatorOption {
	return func(e *Evaluator) {
		e.timeout = timeout
	}
}

func WithMaxDepth(depth int) EvaluatorOption {
	return func(e *Evaluator) {
		e.maxDepth = depth
	}
}

// WithCacheSize bounds the number of parsed expressions kept in memory. Zero
// disables caching.
func WithCacheSize(size int) EvaluatorOption {
	return func(e *Evaluator) {
		e.cacheSize = size
	}
}

func WithFunction(name string, fn Function) EvaluatorOption {
	return func(e *Evaluator) {
		e.functions[name] = fn
	}
}

func NewEvaluator(options ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		timeout:   100 * time.Millisecond,
		maxDepth:  64,
		functions: builtinFunctions(),
		cacheSize: defaultCacheSize,
		cache:     make(map[string]ast.Expression),
	}

	for _, option := range options {
		option(e)
	}

	return e
}

type evaluation struct {
	vars     map[string]any
	deadline time.Time
	depth    int
}

func (e *Evaluator) Evaluate(expression string, vars map[string]any) (any, error) {
	node, err := e.parse(expression)
	if err != nil {
		return nil, err
	}

	state := &evaluation{
		vars:     vars,
		deadline: time.Now().Add(e.timeout),
	}

	return e.eval(node, state)
}

func (e *Evaluator) parse(expression string) (ast.Expression, error) {
	trimmed := strings.TrimSpace(expression)
	if trimmed == "" {
		return nil, fmt.Errorf("empty expression")
	}

	if cached, ok := e.cached(trimmed); ok {
		return cached, nil
	}

	program, err := parser.ParseFile(nil, "", "("+trimmed+")", 0)
	if err != nil {
		return nil, fmt.Errorf("parse error: %v", err)
	}

	if len(program.Body) != 1 {
		return nil, fmt.Errorf("expected a single expression")
	}

	statement, ok := program.Body[0].(*ast.ExpressionStatement)
	if !ok {
		return nil, fmt.Errorf("expected an expression statement")
	}

	e.store(trimmed, statement.Expression)

	return statement.Expression, nil
}

func (e *Evaluator) cached(expression string) (ast.Expression, bool) {
	e.cacheMu.RLock()
	defer e.cacheMu.RUnlock()

	node, ok := e.cache[expression]
	return node, ok
}

// store drops the whole cache once it is full.
func (e *Evaluator) store(expression string, node ast.Expression) {
	if e.cacheSize <= 0 {
		return
	}

	e.cacheMu.Lock()
	defer e.cacheMu.Unlock()

	if len(e.cache) >= e.cacheSize {
		clear(e.cache)
	}
	e.cache[expression] = node
}

func (e *Evaluator) eval(node ast.Expression, state *evaluation) (any, error) {
	if time.Now().After(state.deadline) {
		return nil, ErrEvaluationTimeout
	}

	state.depth++
	defer func() { state.depth-- }()

	if state.depth > e.maxDepth {
		return nil, ErrMaxDepthExceeded
	}

	switch n := node.(type) {
	case *ast.StringLiteral:
		return n.Value.String(), nil
	case *ast.NumberLiteral:
		return cast.ToFloat64(n.Value), nil
	case *ast.BooleanLiteral:
		return n.Value, nil
	case *ast.NullLiteral:
		return nil, nil
	case *ast.Identifier:
		return e.evalIdentifier(n.Name.String(), state), nil
	case *ast.DotExpression:
		object, err := e.eval(n.Left, state)
		if err != nil {
			return nil, err
		}
		return propertyOf(object, n.Identifier.Name.String()), nil
	case *ast.BracketExpression:
		object, err := e.eval(n.Left, state)
		if err != nil {
			return nil, err
		}
		member, err := e.eval(n.Member, state)
		if err != nil {
			return nil, err
		}
		return propertyOf(object, member), nil
	case *ast.CallExpression:
		return e.evalCall(n, state)
	case *ast.BinaryExpression:
		return e.evalBinary(n, state)
	case *ast.ConditionalExpression:
		test, err := e.eval(n.Test, state)
		if err != nil {
			return nil, err
		}
		if Truthy(test) {
			return e.eval(n.Consequent, state)
		}
		return e.eval(n.Alternate, state)
	case *ast.UnaryExpression:
		return e.evalUnary(n, state)
	case *ast.ArrayLiteral:
		result := make([]any, len(n.Value))
		for i, element := range n.Value {
			if element == nil {
				continue
			}
			value, err := e.eval(element, state)
			if err != nil {
				return nil, err
			}
			result[i] = value
		}
		return result, nil
	case *ast.ObjectLiteral:
		return e.evalObject(n, state)
	case *ast.SequenceExpression:
		var last any
		for _, expression := range n.Sequence {
			value, err := e.eval(expression, state)
			if err != nil {
				return nil, err
			}
			last = value
		}
		return last, nil
	default:
		return nil, fmt.Errorf("unsupported expression: %T", node)
	}
}

func (e *Evaluator) evalIdentifier(name string, state *evaluation) any {
	if value, ok := state.vars[name]; ok {
		return value
	}

	switch name {
	case "Infinity":
		return math.Inf(1)
	case "NaN":
		return math.NaN()
	case "Math":
		return map[string]any{"PI": math.Pi, "E": math.E}
	}

	return nil
}

func (e *Evaluator) evalObject(node *ast.ObjectLiteral, state *evaluation) (any, error) {
	result := make(map[string]any, len(node.Value))

	for _, prop := range node.Value {
		property, ok := prop.(*ast.PropertyKeyed)
		if !ok {
			return nil, fmt.Errorf("unsupported property type")
		}

		var key string
		switch k := property.Key.(type) {
		case *ast.Identifier:
			key = k.Name.String()
		case *ast.StringLiteral:
			key = k.Value.String()
		case *ast.NumberLiteral:
			key = ToString(cast.ToFloat64(k.Value))
		default:
			keyValue, err := e.eval(property.Key, state)
			if err != nil {
				return nil, err
			}
			key = ToString(keyValue)
		}

		value, err := e.eval(property.Value, state)
		if err != nil {
			return nil, err
		}

		result[key] = value
	}

	return result, nil
}

func (e *Evaluator) evalUnary(node *ast.UnaryExpression, state *evaluation) (any, error) {
	operand, err := e.eval(node.Operand, state)
	if err != nil {
		return nil, err
	}

	switch node.Operator.String() {
	case "!":
		return !Truthy(operand), nil
	case "-":
		n, _ := ToNumber(operand)
		return -n, nil
	case "+":
		n, ok := ToNumber(operand)
		if !ok {
			return math.NaN(), nil
		}
		return n, nil
	case "typeof":
		return typeOf(operand), nil
	default:
		return nil, fmt.Errorf("unsupported unary operator: %s", node.Operator.String())
	}
}

func (e *Evaluator) evalBinary(node *ast.BinaryExpression, state *evaluation) (any, error) {
	left, err := e.eval(node.Left, state)
	if err != nil {
		return nil, err
	}

	operator := node.Operator.String()

	switch operator {
	case "&&":
		if !Truthy(left) {
			return left, nil
		}
		return e.eval(node.Right, state)
	case "||":
		if Truthy(left) {
			return left, nil
		}
		return e.eval(node.Right, state)
	case "??":
		if left != nil {
			return left, nil
		}
		return e.eval(node.Right, state)
	}

	right, err := e.eval(node.Right, state)
	if err != nil {
		return nil, err
	}

	switch operator {
	case "+":
		_, leftIsString := left.(string)
		_, rightIsString := right.(string)
		if leftIsString || rightIsString {
			return ToString(left) + ToString(right), nil
		}
		ln, _ := ToNumber(left)
		rn, _ := ToNumber(right)
		return ln + rn, nil
	case "-", "*", "/", "%", "**":
		ln, okL := ToNumber(left)
		rn, okR := ToNumber(right)
		if !okL || !okR {
			return math.NaN(), nil
		}
		return arithmetic(operator, ln, rn), nil
	case "==":
		return LooseEquals(left, right), nil
	case "!=":
		return !LooseEquals(left, right), nil
	case "===":
		return StrictEquals(left, right), nil
	case "!==":
		return !StrictEquals(left, right), nil
	case "<", "<=", ">", ">=":
		cmp, ok := Compare(left, right)
		if !ok {
			return false, nil
		}
		switch operator {
		case "<":
			return cmp < 0, nil
		case "<=":
			return cmp <= 0, nil
		case ">":
			return cmp > 0, nil
		default:
			return cmp >= 0, nil
		}
	case "in":
		return Contains(right, left), nil
	default:
		return nil, fmt.Errorf("unsupported binary operator: %s", operator)
	}
}

func arithmetic(operator string, l, r float64) float64 {
	switch operator {
	case "-":
		return l - r
	case "*":
		return l * r
	case "/":
		return l / r
	case "%":
		return math.Mod(l, r)
	default:
		return math.Pow(l, r)
	}
}

func (e *Evaluator) evalCall(node *ast.CallExpression, state *evaluation) (any, error) {
	args := make([]any, len(node.ArgumentList))
	for i, argument := range node.ArgumentList {
		value, err := e.eval(argument, state)
		if err != nil {
			return nil, err
		}
		args[i] = value
	}

	switch callee := node.Callee.(type) {
	case *ast.Identifier:
		name := callee.Name.String()
		fn, ok := e.functions[name]
		if !ok {
			return nil, fmt.Errorf("function %q is not allowed", name)
		}
		return fn(args)
	case *ast.DotExpression:
		if ident, ok := callee.Left.(*ast.Identifier); ok && ident.Name.String() == "Math" {
			if _, shadowed := state.vars["Math"]; !shadowed {
				return callMath(callee.Identifier.Name.String(), args)
			}
		}

		receiver, err := e.eval(callee.Left, state)
		if err != nil {
			return nil, err
		}
		return callMethod(receiver, callee.Identifier.Name.String(), args)
	default:
		return nil, fmt.Errorf("unsupported call target: %T", node.Callee)
	}
}

func propertyOf(object any, property any) any {
	switch o := object.(type) {
	case nil:
		return nil
	case map[string]any:
		return o[ToString(property)]
	case map[string]string:
		value, ok := o[ToString(property)]
		if !ok {
			return nil
		}
		return value
	case []any:
		if ToString(property) == "length" {
			return float64(len(o))
		}
		index, ok := elementIndex(property, len(o))
		if !ok {
			return nil
		}
		return o[index]
	case string:
		if ToString(property) == "length" {
			return float64(len([]rune(o)))
		}
		runes := []rune(o)
		index, ok := elementIndex(property, len(runes))
		if !ok {
			return nil
		}
		return string(runes[index])
	}

	value, ok := Lookup(object, ToString(property))
	if !ok {
		return nil
	}

	return value
}

// elementIndex accepts only whole numbers inside [0, length).
func elementIndex(property any, length int) (int, bool) {
	index, ok := ToNumber(property)
	if !ok || index < 0 || index >= float64(length) || index != math.Trunc(index) {
		return 0, false
	}
	return int(index), true
}

func typeOf(value any) string {
	switch value.(type) {
	case nil:
		return "undefined"
	case bool:
		return "boolean"
	case string:
		return "string"
	}

	if IsNumber(value) {
		return "number"
	}

	return "object"
}

func callMath(name string, args []any) (any, error) {
	numbers := make([]float64, len(args))
	for i, arg := range args {
		n, ok := ToNumber(arg)
		if !ok {
			return math.NaN(), nil
		}
		numbers[i] = n
	}

	single := func(fn func(float64) float64) (any, error) {
		if len(numbers) != 1 {
			return nil, fmt.Errorf("Math.%s expects one argument", name)
		}
		return fn(numbers[0]), nil
	}

	switch name {
	case "round":
		return single(math.Round)
	case "floor":
		return single(math.Floor)
	case "ceil":
		return single(math.Ceil)
	case "abs":
		return single(math.Abs)
	case "sqrt":
		return single(math.Sqrt)
	case "min":
		return minOf(numbers), nil
	case "max":
		return maxOf(numbers), nil
	case "pow":
		if len(numbers) != 2 {
			return nil, fmt.Errorf("Math.pow expects two arguments")
		}
		return math.Pow(numbers[0], numbers[1]), nil
	default:
		return nil, fmt.Errorf("Math.%s is not allowed", name)
	}
}

func callMethod(receiver any, name string, args []any) (any, error) {
	arg := func(i int) any {
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	switch r := receiver.(type) {
	case string:
		switch name {
		case "toUpperCase":
			return strings.ToUpper(r), nil
		case "toLowerCase":
			return strings.ToLower(r), nil
		case "trim":
			return strings.TrimSpace(r), nil
		case "includes":
			return strings.Contains(r, ToString(arg(0))), nil
		case "startsWith":
			return strings.HasPrefix(r, ToString(arg(0))), nil
		case "endsWith":
			return strings.HasSuffix(r, ToString(arg(0))), nil
		case "split":
			return splitString(r, ToString(arg(0))), nil
		case "replace", "replaceAll":
			return strings.ReplaceAll(r, ToString(arg(0)), ToString(arg(1))), nil
		case "toString":
			return r, nil
		}
	case []any:
		switch name {
		case "join":
			separator := ","
			if len(args) > 0 {
				separator = ToString(args[0])
			}
			return joinValues(r, separator), nil
		case "includes":
			return Contains(r, arg(0)), nil
		case "slice":
			return sliceValues(r, args), nil
		}
	}

	if name == "toString" {
		return ToString(receiver), nil
	}

	if name == "toFixed" {
		n, ok := ToNumber(receiver)
		if !ok {
			return nil, fmt.Errorf("toFixed called on a non-number")
		}
		digits := cast.ToInt(arg(0))
		if digits < 0 || digits > maxFixedDigits {
			return nil, fmt.Errorf("toFixed digits must be between 0 and %d", maxFixedDigits)
		}
		return fmt.Sprintf("%.*f", digits, n), nil
	}

	return nil, fmt.Errorf("method %q is not allowed on %s", name, typeOf(receiver))
}

func splitString(s, separator string) []any {
	parts := strings.Split(s, separator)
	out := make([]any, len(parts))
	for i, part := range parts {
		out[i] = part
	}
	return out
}

func joinValues(values []any, separator string) string {
	parts := make([]string, len(values))
	for i, value := range values {
		parts[i] = ToString(value)
	}
	return strings.Join(parts, separator)
}

func sliceValues(values []any, args []any) []any {
	start, end := 0, len(values)
	if len(args) > 0 {
		start = cast.ToInt(args[0])
	}
	if len(args) > 1 {
		end = cast.ToInt(args[1])
	}
	if start < 0 {
		start = max(len(values)+start, 0)
	}
	if end < 0 {
		end = len(values) + end
	}
	end = min(end, len(values))
	if start >= end {
		return []any{}
	}
	return append([]any(nil), values[start:end]...)
}

func minOf(numbers []float64) float64 {
	if len(numbers) == 0 {
		return math.Inf(1)
	}
	result := numbers[0]
	for _, n := range numbers[1:] {
		result = math.Min(result, n)
	}
	return result
}

func maxOf(numbers []float64) float64 {
	if len(numbers) == 0 {
		return math.Inf(-1)
	}
	result := numbers[0]
	for _, n := range numbers[1:] {
		result = math.Max(result, n)
	}
	return result
}

func numbersOf(args []any) []float64 {
	var numbers []float64
	for _, arg := range args {
		for _, item := range flattenArgs(arg) {
			if n, ok := ToNumber(item); ok {
				numbers = append(numbers, n)
			}
		}
	}
	return numbers
}

func flattenArgs(arg any) []any {
	if values, ok := arg.([]any); ok {
		return values
	}
	return []any{arg}
}

func builtinFunctions() map[string]Function {
	return map[string]Function{
		"length": func(args []any) (any, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("length expects one argument")
			}
			switch v := args[0].(type) {
			case string:
				return float64(len([]rune(v))), nil
			case []any:
				return float64(len(v)), nil
			case map[string]any:
				return float64(len(v)), nil
			}
			return float64(0), nil
		},
		"upper": func(args []any) (any, error) {
			return strings.ToUpper(ToString(firstArg(args))), nil
		},
		"lower": func(args []any) (any, error) {
			return strings.ToLower(ToString(firstArg(args))), nil
		},
		"trim": func(args []any) (any, error) {
			return strings.TrimSpace(ToString(firstArg(args))), nil
		},
		"number": func(args []any) (any, error) {
			n, ok := ToNumber(firstArg(args))
			if !ok {
				return math.NaN(), nil
			}
			return n, nil
		},
		"string": func(args []any) (any, error) {
			return ToString(firstArg(args)), nil
		},
		"boolean": func(args []any) (any, error) {
			return Truthy(firstArg(args)), nil
		},
		"round": func(args []any) (any, error) {
			n, _ := ToNumber(firstArg(args))
			digits := 0
			if len(args) > 1 {
				digits = cast.ToInt(args[1])
			}
			factor := math.Pow(10, float64(digits))
			return math.Round(n*factor) / factor, nil
		},
		"sum": func(args []any) (any, error) {
			total := 0.0
			for _, n := range numbersOf(args) {
				total += n
			}
			return total, nil
		},
		"avg": func(args []any) (any, error) {
			numbers := numbersOf(args)
			if len(numbers) == 0 {
				return float64(0), nil
			}
			total := 0.0
			for _, n := range numbers {
				total += n
			}
			return total / float64(len(numbers)), nil
		},
		"min": func(args []any) (any, error) {
			return minOf(numbersOf(args)), nil
		},
		"max": func(args []any) (any, error) {
			return maxOf(numbersOf(args)), nil
		},
		"join": func(args []any) (any, error) {
			separator := ","
			if len(args) > 1 {
				separator = ToString(args[1])
			}
			return joinValues(ToSlice(firstArg(args)), separator), nil
		},
		"split": func(args []any) (any, error) {
			separator := ","
			if len(args) > 1 {
				separator = ToString(args[1])
			}
			return splitString(ToString(firstArg(args)), separator), nil
		},
		"contains": func(args []any) (any, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("contains expects two arguments")
			}
			return Contains(args[0], args[1]), nil
		},
		"keys": func(args []any) (any, error) {
			m, ok := firstArg(args).(map[string]any)
			if !ok {
				return []any{}, nil
			}
			keys := make([]string, 0, len(m))
			for key := range m {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			out := make([]any, len(keys))
			for i, key := range keys {
				out[i] = key
			}
			return out, nil
		},
		"first": func(args []any) (any, error) {
			values := ToSlice(firstArg(args))
			if len(values) == 0 {
				return nil, nil
			}
			return values[0], nil
		},
		"last": func(args []any) (any, error) {
			values := ToSlice(firstArg(args))
			if len(values) == 0 {
				return nil, nil
			}
			return values[len(values)-1], nil
		},
		"isEmpty": func(args []any) (any, error) {
			return IsEmpty(firstArg(args)), nil
		},
		"coalesce": func(args []any) (any, error) {
			for _, arg := range args {
				if arg != nil {
					return arg, nil
				}
			}
			return nil, nil
		},
		"now": func(args []any) (any, error) {
			return time.Now().UTC().Format(time.RFC3339), nil
		},
	}
}

func firstArg(args []any) any {
	if len(args) == 0 {
		return nil
	}
	return args[0]
}
