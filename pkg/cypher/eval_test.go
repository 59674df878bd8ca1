// Package cypher provides tests for the expression evaluator.
package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/cypherframe/pkg/graph"
)

// evalExpr parses the expression as part of a throwaway RETURN and
// evaluates it, so tests exercise real parser output.
func evalExpr(t *testing.T, text string, ctx *EvalContext) (any, error) {
	t.Helper()
	parsed, err := NewParser().Parse("RETURN " + text)
	require.NoError(t, err)
	ret := parsed.AST.Clauses[0].(*ReturnClause)
	require.Len(t, ret.Items, 1)
	if ctx == nil {
		ctx = &EvalContext{}
	}
	return NewEvaluator().Eval(ret.Items[0].Expr, ctx)
}

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{"1 + 2", int64(3)},
		{"7 - 2 * 3", int64(1)},
		{"(7 - 2) * 3", int64(15)},
		{"7 / 2", int64(3)},
		{"7.0 / 2", float64(3.5)},
		{"7 % 3", int64(1)},
		{"-4 + 1", int64(-3)},
		{"1 + 2.5", float64(3.5)},
		{"'foo' + 'bar'", "foobar"},
		{"[1, 2] + [3]", []any{int64(1), int64(2), int64(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalExpr(t, tt.expr, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalArithmeticErrors(t *testing.T) {
	for _, expr := range []string{"1 + true", "'a' - 1", "1 / 0", "5 % 0"} {
		t.Run(expr, func(t *testing.T) {
			_, err := evalExpr(t, expr, nil)
			require.Error(t, err)
			var evalErr *EvaluationError
			assert.ErrorAs(t, err, &evalErr)
		})
	}
}

func TestEvalNullPropagation(t *testing.T) {
	tests := []string{
		"null + 1",
		"1 = null",
		"null < 3",
		"null CONTAINS 'x'",
		"5 IN null",
	}
	for _, expr := range tests {
		t.Run(expr, func(t *testing.T) {
			got, err := evalExpr(t, expr, nil)
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestEvalThreeValuedLogic(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{"true AND null", nil},
		{"false AND null", false},
		{"true OR null", true},
		{"false OR null", nil},
		{"null XOR true", nil},
		{"NOT null", nil},
		{"NOT false", true},
		{"true XOR true", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalExpr(t, tt.expr, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalStringPredicates(t *testing.T) {
	tests := []struct {
		expr string
		want any
	}{
		{"'hello' STARTS WITH 'he'", true},
		{"'hello' ENDS WITH 'lo'", true},
		{"'hello' CONTAINS 'ell'", true},
		{"'hello' CONTAINS 'xyz'", false},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalExpr(t, tt.expr, nil)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvalInOperator(t *testing.T) {
	got, err := evalExpr(t, "2 IN [1, 2, 3]", nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = evalExpr(t, "9 IN [1, 2, 3]", nil)
	require.NoError(t, err)
	assert.Equal(t, false, got)

	// A null element makes a failed lookup unknown rather than false.
	got, err = evalExpr(t, "9 IN [1, null]", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEvalPropertyAccess(t *testing.T) {
	node := &graph.Node{ID: "1", Properties: map[string]any{"name": "Alice", "age": 30}}
	ctx := &EvalContext{Bindings: map[string]any{"n": node}}

	got, err := evalExpr(t, "n.name", ctx)
	require.NoError(t, err)
	assert.Equal(t, "Alice", got)

	// Missing property is null, not an error.
	got, err = evalExpr(t, "n.missing", ctx)
	require.NoError(t, err)
	assert.Nil(t, got)

	// Property access on a non-entity is a runtime type error.
	ctx = &EvalContext{Bindings: map[string]any{"n": int64(5)}}
	_, err = evalExpr(t, "n.name", ctx)
	var evalErr *EvaluationError
	require.ErrorAs(t, err, &evalErr)

	// Property access on null propagates null.
	ctx = &EvalContext{Bindings: map[string]any{"n": nil}}
	got, err = evalExpr(t, "n.name", ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEvalParameterResolutionOrder(t *testing.T) {
	ctx := &EvalContext{
		Residual: map[string]any{"x": int64(1)},
		Params:   map[string]any{"x": int64(2), "y": int64(3)},
	}

	// Residual params win over invocation params.
	got, err := evalExpr(t, "$x", ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got)

	got, err = evalExpr(t, "$y", ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)

	_, err = evalExpr(t, "$missing", ctx)
	var evalErr *EvaluationError
	assert.ErrorAs(t, err, &evalErr)
}

func TestEvalFunctions(t *testing.T) {
	node := &graph.Node{ID: "n1", Labels: []string{"Person"}, Properties: map[string]any{"name": "Alice"}}
	rel := &graph.Relationship{ID: "r1", Type: "KNOWS"}
	ctx := &EvalContext{Bindings: map[string]any{"n": node, "r": rel}}

	tests := []struct {
		expr string
		want any
	}{
		{"id(n)", "n1"},
		{"labels(n)", []any{"Person"}},
		{"type(r)", "KNOWS"},
		{"size('hello')", int64(5)},
		{"size([1, 2])", int64(2)},
		{"head([7, 8])", int64(7)},
		{"last([7, 8])", int64(8)},
		{"coalesce(null, 'x')", "x"},
		{"toUpper('ab')", "AB"},
		{"toLower('AB')", "ab"},
		{"abs(0 - 4)", int64(4)},
		{"toString(42)", "42"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			got, err := evalExpr(t, tt.expr, ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := evalExpr(t, "nosuchfn(1)", ctx)
	var evalErr *EvaluationError
	assert.ErrorAs(t, err, &evalErr)
}

func TestEvalIsNull(t *testing.T) {
	got, err := evalExpr(t, "null IS NULL", nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)

	got, err = evalExpr(t, "1 IS NOT NULL", nil)
	require.NoError(t, err)
	assert.Equal(t, true, got)
}

func TestTypeOfInference(t *testing.T) {
	ev := NewEvaluator()
	schema := map[string]Type{"n": NodeType, "count": IntegerType, "ratio": FloatType}

	parse := func(text string) Expression {
		parsed, err := NewParser().Parse("RETURN " + text)
		require.NoError(t, err)
		return parsed.AST.Clauses[0].(*ReturnClause).Items[0].Expr
	}

	tests := []struct {
		expr string
		want string
	}{
		{"42", "Integer"},
		{"4.2", "Float"},
		{"'hi'", "String"},
		{"true", "Boolean"},
		{"null", "Null"},
		{"n", "Node"},
		{"count + 1", "Integer"},
		{"count + ratio", "Float"},
		{"count > 1", "Boolean"},
		{"[1, 2]", "List<Integer>"},
		{"labels(n)", "List<String>"},
		{"size('x')", "Integer"},
		{"n.anything", "Any"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.want, ev.TypeOf(parse(tt.expr), schema).String())
		})
	}
}
