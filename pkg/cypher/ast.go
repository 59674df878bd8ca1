// Package cypher - AST for the supported grammar subset.
package cypher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/cypherframe/pkg/graph"
)

// Query is a parsed Cypher query: an ordered sequence of clauses.
type Query struct {
	Clauses []Clause
}

// Clause is a query clause.
type Clause interface {
	clauseMarker()
}

// MatchClause represents MATCH / OPTIONAL MATCH with an optional WHERE.
type MatchClause struct {
	Pattern  Pattern
	Optional bool
	Where    Expression // nil when absent
}

func (c *MatchClause) clauseMarker() {}

// CreateClause represents CREATE.
type CreateClause struct {
	Pattern Pattern
}

func (c *CreateClause) clauseMarker() {}

// ReturnClause represents RETURN with its trailing modifiers.
type ReturnClause struct {
	Distinct bool
	Items    []ReturnItem
	OrderBy  []OrderItem
	Skip     *int64
	Limit    *int64
}

func (c *ReturnClause) clauseMarker() {}

// WithClause represents WITH, carrying the same modifiers as RETURN plus an
// optional WHERE over the projected columns.
type WithClause struct {
	Distinct bool
	Items    []ReturnItem
	OrderBy  []OrderItem
	Skip     *int64
	Limit    *int64
	Where    Expression
}

func (c *WithClause) clauseMarker() {}

// UnwindClause represents UNWIND expr AS alias.
type UnwindClause struct {
	Expr  Expression
	Alias string
}

func (c *UnwindClause) clauseMarker() {}

// CallClause represents CALL ns.name(args) [YIELD cols].
type CallClause struct {
	Namespace string
	Name      string
	Args      []Expression
	Yield     []string // empty means yield all declared outputs
}

func (c *CallClause) clauseMarker() {}

// ReturnItem is one projection in RETURN or WITH.
type ReturnItem struct {
	Expr  Expression
	Alias string // "" means derive from the expression's text
}

// Name returns the output column name for the item.
func (ri ReturnItem) Name() string {
	if ri.Alias != "" {
		return ri.Alias
	}
	return exprString(ri.Expr)
}

// OrderItem is one ORDER BY key.
type OrderItem struct {
	Expr       Expression
	Descending bool
}

// Pattern is a linear node/relationship chain:
// Nodes[0] -Edges[0]- Nodes[1] -Edges[1]- ... Always
// len(Edges) == len(Nodes)-1.
type Pattern struct {
	Nodes []NodePattern
	Edges []EdgePattern
}

// NodePattern is one node in a pattern. Property values are expressions so
// parameters and extracted literals evaluate late.
type NodePattern struct {
	Variable   string
	Labels     []string
	Properties map[string]Expression
}

// EdgePattern is one relationship in a pattern.
type EdgePattern struct {
	Variable   string
	Types      []string
	Direction  graph.Direction
	Properties map[string]Expression
}

// Expression is a Cypher expression.
type Expression interface {
	exprMarker()
}

// Literal is a constant value.
type Literal struct {
	Value any
}

func (e *Literal) exprMarker() {}

// Parameter is a query parameter reference ($name). References resolve
// first against residual params, then against invocation params.
type Parameter struct {
	Name string
}

func (e *Parameter) exprMarker() {}

// Variable references a bound column.
type Variable struct {
	Name string
}

func (e *Variable) exprMarker() {}

// PropertyAccess reads a property off an entity-valued expression
// (e.g. n.name).
type PropertyAccess struct {
	Subject  Expression
	Property string
}

func (e *PropertyAccess) exprMarker() {}

// Comparison is a binary comparison: = <> < <= > >=.
type Comparison struct {
	Left     Expression
	Operator string
	Right    Expression
}

func (e *Comparison) exprMarker() {}

// Arithmetic is a binary arithmetic expression: + - * / %.
type Arithmetic struct {
	Left     Expression
	Operator string
	Right    Expression
}

func (e *Arithmetic) exprMarker() {}

// BoolOp is AND, OR, or XOR with three-valued logic.
type BoolOp struct {
	Operator string // "AND", "OR", "XOR"
	Left     Expression
	Right    Expression
}

func (e *BoolOp) exprMarker() {}

// Not negates a boolean expression under three-valued logic.
type Not struct {
	Expr Expression
}

func (e *Not) exprMarker() {}

// StringPredicate is STARTS WITH / ENDS WITH / CONTAINS.
type StringPredicate struct {
	Operator string // "STARTS WITH", "ENDS WITH", "CONTAINS"
	Left     Expression
	Right    Expression
}

func (e *StringPredicate) exprMarker() {}

// InOp tests list membership.
type InOp struct {
	Left Expression
	List Expression
}

func (e *InOp) exprMarker() {}

// IsNull is IS NULL / IS NOT NULL.
type IsNull struct {
	Expr    Expression
	Negated bool
}

func (e *IsNull) exprMarker() {}

// ListLiteral is a list expression.
type ListLiteral struct {
	Items []Expression
}

func (e *ListLiteral) exprMarker() {}

// MapLiteral is a map expression with deterministic key order preserved.
type MapLiteral struct {
	Keys   []string
	Values []Expression
}

func (e *MapLiteral) exprMarker() {}

// FunctionCall dispatches through the function registry.
type FunctionCall struct {
	Name string
	Args []Expression
}

func (e *FunctionCall) exprMarker() {}

// exprString renders an expression roughly the way it was written. Used
// for derived column names and error messages.
func exprString(e Expression) string {
	switch ex := e.(type) {
	case nil:
		return "<nil>"
	case *Literal:
		if s, ok := ex.Value.(string); ok {
			return "'" + s + "'"
		}
		return fmt.Sprintf("%v", ex.Value)
	case *Parameter:
		return "$" + ex.Name
	case *Variable:
		return ex.Name
	case *PropertyAccess:
		return exprString(ex.Subject) + "." + ex.Property
	case *Comparison:
		return exprString(ex.Left) + " " + ex.Operator + " " + exprString(ex.Right)
	case *Arithmetic:
		return exprString(ex.Left) + " " + ex.Operator + " " + exprString(ex.Right)
	case *BoolOp:
		return exprString(ex.Left) + " " + ex.Operator + " " + exprString(ex.Right)
	case *Not:
		return "NOT " + exprString(ex.Expr)
	case *StringPredicate:
		return exprString(ex.Left) + " " + ex.Operator + " " + exprString(ex.Right)
	case *InOp:
		return exprString(ex.Left) + " IN " + exprString(ex.List)
	case *IsNull:
		if ex.Negated {
			return exprString(ex.Expr) + " IS NOT NULL"
		}
		return exprString(ex.Expr) + " IS NULL"
	case *ListLiteral:
		parts := make([]string, len(ex.Items))
		for i, item := range ex.Items {
			parts[i] = exprString(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *MapLiteral:
		parts := make([]string, len(ex.Keys))
		for i, k := range ex.Keys {
			parts[i] = k + ": " + exprString(ex.Values[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *FunctionCall:
		parts := make([]string, len(ex.Args))
		for i, a := range ex.Args {
			parts[i] = exprString(a)
		}
		return ex.Name + "(" + strings.Join(parts, ", ") + ")"
	}
	return "<expr>"
}

// exprVariables collects the variable names an expression references.
func exprVariables(e Expression, into map[string]struct{}) {
	switch ex := e.(type) {
	case *Variable:
		into[ex.Name] = struct{}{}
	case *PropertyAccess:
		exprVariables(ex.Subject, into)
	case *Comparison:
		exprVariables(ex.Left, into)
		exprVariables(ex.Right, into)
	case *Arithmetic:
		exprVariables(ex.Left, into)
		exprVariables(ex.Right, into)
	case *BoolOp:
		exprVariables(ex.Left, into)
		exprVariables(ex.Right, into)
	case *Not:
		exprVariables(ex.Expr, into)
	case *StringPredicate:
		exprVariables(ex.Left, into)
		exprVariables(ex.Right, into)
	case *InOp:
		exprVariables(ex.Left, into)
		exprVariables(ex.List, into)
	case *IsNull:
		exprVariables(ex.Expr, into)
	case *ListLiteral:
		for _, item := range ex.Items {
			exprVariables(item, into)
		}
	case *MapLiteral:
		for _, v := range ex.Values {
			exprVariables(v, into)
		}
	case *FunctionCall:
		for _, a := range ex.Args {
			exprVariables(a, into)
		}
	}
}

// SymbolKind classifies a pattern variable.
type SymbolKind int

const (
	SymbolNode SymbolKind = iota
	SymbolRelationship
	SymbolValue
)

// SemanticState records variable scoping gathered during parsing and is
// exposed through Compile. The logical planner does not read it; it tracks
// scope itself while lowering clauses and rejects unknown variables there.
type SemanticState struct {
	Variables map[string]SymbolKind
}

func newSemanticState() *SemanticState {
	return &SemanticState{Variables: make(map[string]SymbolKind)}
}

// Declare records a variable binding, keeping the first kind on redeclare.
func (s *SemanticState) Declare(name string, kind SymbolKind) {
	if name == "" {
		return
	}
	if _, ok := s.Variables[name]; !ok {
		s.Variables[name] = kind
	}
}

// Known reports whether the variable is in scope.
func (s *SemanticState) Known(name string) bool {
	_, ok := s.Variables[name]
	return ok
}

// Names returns declared variable names in sorted order.
func (s *SemanticState) Names() []string {
	names := make([]string, 0, len(s.Variables))
	for n := range s.Variables {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ParsedQuery is the cached parse product: immutable AST, residual
// parameters extracted during parameterization, and semantic state.
type ParsedQuery struct {
	Text      string
	AST       *Query
	Residual  map[string]any
	Semantics *SemanticState
}
