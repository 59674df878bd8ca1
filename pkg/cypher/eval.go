// Package cypher - expression evaluation and static type inference.
package cypher

import (
	"strings"

	"github.com/orneryd/cypherframe/pkg/graph"
)

// EvalContext carries the bindings an expression evaluates against.
//
// Parameter references resolve first against Residual (constants the parser
// extracted), then against Params (values supplied to Run). Bindings holds
// the current row's column values by name.
type EvalContext struct {
	Bindings map[string]any
	Residual map[string]any
	Params   map[string]any
}

// child returns a context with the same parameters and fresh bindings.
func (c *EvalContext) child(bindings map[string]any) *EvalContext {
	return &EvalContext{Bindings: bindings, Residual: c.Residual, Params: c.Params}
}

// lookupParam resolves a parameter reference: residual first, invocation
// second.
func (c *EvalContext) lookupParam(name string) (any, bool) {
	if c.Residual != nil {
		if v, ok := c.Residual[name]; ok {
			return v, true
		}
	}
	if c.Params != nil {
		if v, ok := c.Params[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Evaluator evaluates AST expressions against an EvalContext and infers
// static result types against a schema environment. It is stateless; one
// Evaluator is shared by all plans of a Runner.
//
// Evaluation is total except for arithmetic over incompatible types and
// property access on non-entities, which fail with EvaluationError.
// Boolean operators follow three-valued logic: null is neither true nor
// false, and it propagates unless the other operand decides the result
// (false AND null = false, true OR null = true).
type Evaluator struct{}

// NewEvaluator creates an evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Eval evaluates an expression to a runtime value.
func (ev *Evaluator) Eval(expr Expression, ctx *EvalContext) (any, error) {
	switch e := expr.(type) {
	case *Literal:
		return NormalizeValue(e.Value), nil

	case *Parameter:
		v, ok := ctx.lookupParam(e.Name)
		if !ok {
			return nil, evalErrorf(expr, "parameter $%s is not bound", e.Name)
		}
		return NormalizeValue(v), nil

	case *Variable:
		v, ok := ctx.Bindings[e.Name]
		if !ok {
			return nil, evalErrorf(expr, "variable %s is not bound", e.Name)
		}
		return v, nil

	case *PropertyAccess:
		subject, err := ev.Eval(e.Subject, ctx)
		if err != nil {
			return nil, err
		}
		switch s := subject.(type) {
		case nil:
			return nil, nil // property access on null is null
		case *graph.Node:
			return NormalizeValue(s.Properties[e.Property]), nil
		case *graph.Relationship:
			return NormalizeValue(s.Properties[e.Property]), nil
		case map[string]any:
			return NormalizeValue(s[e.Property]), nil
		}
		return nil, evalErrorf(expr, "property access on %s value", TypeOfValue(subject))

	case *Comparison:
		left, err := ev.Eval(e.Left, ctx)
		if err != nil {
			return nil, err
		}
		right, err := ev.Eval(e.Right, ctx)
		if err != nil {
			return nil, err
		}
		return compareTernary(left, right, e.Operator), nil

	case *Arithmetic:
		left, err := ev.Eval(e.Left, ctx)
		if err != nil {
			return nil, err
		}
		right, err := ev.Eval(e.Right, ctx)
		if err != nil {
			return nil, err
		}
		return ev.arithmetic(expr, left, right, e.Operator)

	case *BoolOp:
		left, err := ev.Eval(e.Left, ctx)
		if err != nil {
			return nil, err
		}
		right, err := ev.Eval(e.Right, ctx)
		if err != nil {
			return nil, err
		}
		return ternaryBool(expr, e.Operator, left, right)

	case *Not:
		inner, err := ev.Eval(e.Expr, ctx)
		if err != nil {
			return nil, err
		}
		if inner == nil {
			return nil, nil
		}
		b, ok := inner.(bool)
		if !ok {
			return nil, evalErrorf(expr, "NOT over %s value", TypeOfValue(inner))
		}
		return !b, nil

	case *StringPredicate:
		left, err := ev.Eval(e.Left, ctx)
		if err != nil {
			return nil, err
		}
		right, err := ev.Eval(e.Right, ctx)
		if err != nil {
			return nil, err
		}
		if left == nil || right == nil {
			return nil, nil
		}
		ls, lok := left.(string)
		rs, rok := right.(string)
		if !lok || !rok {
			return nil, evalErrorf(expr, "%s expects string operands", e.Operator)
		}
		switch e.Operator {
		case "STARTS WITH":
			return len(ls) >= len(rs) && ls[:len(rs)] == rs, nil
		case "ENDS WITH":
			return len(ls) >= len(rs) && ls[len(ls)-len(rs):] == rs, nil
		default: // CONTAINS
			return strings.Contains(ls, rs), nil
		}

	case *InOp:
		left, err := ev.Eval(e.Left, ctx)
		if err != nil {
			return nil, err
		}
		listVal, err := ev.Eval(e.List, ctx)
		if err != nil {
			return nil, err
		}
		if listVal == nil {
			return nil, nil
		}
		list, ok := listVal.([]any)
		if !ok {
			return nil, evalErrorf(expr, "IN expects a list, got %s", TypeOfValue(listVal))
		}
		if left == nil {
			return nil, nil
		}
		sawNull := false
		for _, item := range list {
			if item == nil {
				sawNull = true
				continue
			}
			if ValuesEqual(left, item) {
				return true, nil
			}
		}
		if sawNull {
			return nil, nil
		}
		return false, nil

	case *IsNull:
		inner, err := ev.Eval(e.Expr, ctx)
		if err != nil {
			return nil, err
		}
		if e.Negated {
			return inner != nil, nil
		}
		return inner == nil, nil

	case *ListLiteral:
		out := make([]any, len(e.Items))
		for i, item := range e.Items {
			v, err := ev.Eval(item, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
		return out, nil

	case *MapLiteral:
		out := make(map[string]any, len(e.Keys))
		for i, k := range e.Keys {
			v, err := ev.Eval(e.Values[i], ctx)
			if err != nil {
				return nil, err
			}
			out[k] = v
		}
		return out, nil

	case *FunctionCall:
		fn, ok := lookupFunction(e.Name)
		if !ok {
			return nil, evalErrorf(expr, "unknown function %s", e.Name)
		}
		args := make([]any, len(e.Args))
		for i, a := range e.Args {
			v, err := ev.Eval(a, ctx)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		out, err := fn(args)
		if err != nil {
			return nil, &EvaluationError{Expr: exprString(expr), Reason: err.Error()}
		}
		return NormalizeValue(out), nil
	}
	return nil, evalErrorf(expr, "unsupported expression")
}

// arithmetic applies + - * / % with numeric coercion. Integer pairs stay
// integral under every operator, / included: integer operands use integer
// division, as in Cypher. String + string concatenates; list + value appends.
func (ev *Evaluator) arithmetic(expr Expression, left, right any, op string) (any, error) {
	if left == nil || right == nil {
		return nil, nil
	}

	if op == "+" {
		if ls, ok := left.(string); ok {
			if rs, ok := right.(string); ok {
				return ls + rs, nil
			}
		}
		if ll, ok := left.([]any); ok {
			if rl, ok := right.([]any); ok {
				return append(append([]any{}, ll...), rl...), nil
			}
			return append(append([]any{}, ll...), right), nil
		}
	}

	lf, lok := numericValue(left)
	rf, rok := numericValue(right)
	if !lok || !rok {
		return nil, evalErrorf(expr, "%s over %s and %s", op, TypeOfValue(left), TypeOfValue(right))
	}
	bothInt := isIntegral(left) && isIntegral(right)

	switch op {
	case "+":
		if bothInt {
			return int64(lf) + int64(rf), nil
		}
		return lf + rf, nil
	case "-":
		if bothInt {
			return int64(lf) - int64(rf), nil
		}
		return lf - rf, nil
	case "*":
		if bothInt {
			return int64(lf) * int64(rf), nil
		}
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, evalErrorf(expr, "division by zero")
		}
		if bothInt {
			return int64(lf) / int64(rf), nil
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, evalErrorf(expr, "division by zero")
		}
		if bothInt {
			return int64(lf) % int64(rf), nil
		}
		return nil, evalErrorf(expr, "%% expects integer operands")
	}
	return nil, evalErrorf(expr, "unknown operator %s", op)
}

// compareTernary applies a comparison operator under three-valued logic:
// any null operand yields null.
func compareTernary(left, right any, op string) any {
	if left == nil || right == nil {
		return nil
	}
	switch op {
	case "=":
		return ValuesEqual(left, right)
	case "<>":
		return !ValuesEqual(left, right)
	}
	c := CompareValues(left, right)
	switch op {
	case "<":
		return c < 0
	case "<=":
		return c <= 0
	case ">":
		return c > 0
	case ">=":
		return c >= 0
	}
	return nil
}

// ternaryBool applies AND / OR / XOR under three-valued logic.
func ternaryBool(expr Expression, op string, left, right any) (any, error) {
	lb, lok := toTernary(left)
	rb, rok := toTernary(right)
	if !lok || !rok {
		return nil, evalErrorf(expr, "%s over non-boolean value", op)
	}
	switch op {
	case "AND":
		switch {
		case lb != nil && !*lb, rb != nil && !*rb:
			return false, nil
		case lb == nil || rb == nil:
			return nil, nil
		default:
			return true, nil
		}
	case "OR":
		switch {
		case lb != nil && *lb, rb != nil && *rb:
			return true, nil
		case lb == nil || rb == nil:
			return nil, nil
		default:
			return false, nil
		}
	case "XOR":
		if lb == nil || rb == nil {
			return nil, nil
		}
		return *lb != *rb, nil
	}
	return nil, evalErrorf(expr, "unknown boolean operator %s", op)
}

// toTernary maps a value to Cypher's three boolean states: true, false, or
// null. Non-boolean non-null values are rejected.
func toTernary(v any) (*bool, bool) {
	if v == nil {
		return nil, true
	}
	if b, ok := v.(bool); ok {
		return &b, true
	}
	return nil, false
}

// logicalTrue reports whether a predicate result keeps a row: only true
// does; false and null are indistinguishable to downstream.
func logicalTrue(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

// TypeOf infers the static type of an expression against a column-name →
// type environment. Inference is pure: it never consults runtime values.
// Unknown constructs infer Any rather than failing, so projection schemas
// stay computable for every expression the parser accepts.
func (ev *Evaluator) TypeOf(expr Expression, schema map[string]Type) Type {
	switch e := expr.(type) {
	case *Literal:
		return TypeOfValue(NormalizeValue(e.Value))
	case *Parameter:
		return AnyType
	case *Variable:
		if t, ok := schema[e.Name]; ok {
			return t
		}
		return AnyType
	case *PropertyAccess:
		return AnyType
	case *Comparison, *BoolOp, *Not, *StringPredicate, *InOp, *IsNull:
		return BooleanType
	case *Arithmetic:
		lt := ev.TypeOf(e.Left, schema)
		rt := ev.TypeOf(e.Right, schema)
		switch {
		case lt.Kind == TypeString && rt.Kind == TypeString && e.Operator == "+":
			return StringType
		case lt.Kind == TypeList && e.Operator == "+":
			return lt
		case lt.Kind == TypeFloat || rt.Kind == TypeFloat:
			return FloatType
		case lt.Kind == TypeInteger && rt.Kind == TypeInteger:
			return IntegerType
		default:
			return AnyType
		}
	case *ListLiteral:
		if len(e.Items) == 0 {
			return ListOf(AnyType)
		}
		elem := ev.TypeOf(e.Items[0], schema)
		for _, item := range e.Items[1:] {
			if !ev.TypeOf(item, schema).Equal(elem) {
				return ListOf(AnyType)
			}
		}
		return ListOf(elem)
	case *MapLiteral:
		return MapType
	case *FunctionCall:
		return functionResultType(e.Name)
	}
	return AnyType
}

// functionResultType gives static result types for the built-in functions
// whose results are fixed. Everything else infers Any.
func functionResultType(name string) Type {
	switch strings.ToLower(name) {
	case "id", "type", "tostring", "toupper", "tolower":
		return StringType
	case "size":
		return IntegerType
	case "labels", "keys":
		return ListOf(StringType)
	case "properties":
		return MapType
	case "startnode", "endnode":
		return NodeType
	}
	return AnyType
}
