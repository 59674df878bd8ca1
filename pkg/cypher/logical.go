// Package cypher - logical plan tree and planner.
//
// The logical planner walks the AST and produces an LPTNode tree whose node
// kinds correspond to algebraic operations. The tree is operator-independent:
// it records what to compute, not how. Variable scoping is tracked here clause
// by clause (the parser's semantic state is not read); references to unknown
// variables fail here with SemanticError.
package cypher

import (
	"fmt"
	"strings"
)

// LPTNode is a logical plan tree node.
type LPTNode interface {
	Children() []LPTNode
	String() string
}

// LPTNodeScan scans nodes matching a pattern, producing one node column.
type LPTNodeScan struct {
	Node NodePattern
}

func (n *LPTNodeScan) Children() []LPTNode { return nil }
func (n *LPTNodeScan) String() string {
	return fmt.Sprintf("NodeScan(%s%s)", n.Node.Variable, labelSuffix(n.Node.Labels))
}

// LPTExpand scans one relationship hop, producing start node, relationship,
// and end node columns.
type LPTExpand struct {
	From NodePattern
	Edge EdgePattern
	To   NodePattern
}

func (n *LPTExpand) Children() []LPTNode { return nil }
func (n *LPTExpand) String() string {
	return fmt.Sprintf("Expand((%s%s)-[%s%s]-(%s%s) %s)",
		n.From.Variable, labelSuffix(n.From.Labels),
		n.Edge.Variable, typeSuffix(n.Edge.Types),
		n.To.Variable, labelSuffix(n.To.Labels),
		n.Edge.Direction)
}

// LPTFilter keeps rows whose predicate is logically true.
type LPTFilter struct {
	Predicate Expression
	Input     LPTNode
}

func (n *LPTFilter) Children() []LPTNode { return []LPTNode{n.Input} }
func (n *LPTFilter) String() string {
	return "Filter(" + exprString(n.Predicate) + ")"
}

// LPTProject computes named output columns from expressions.
type LPTProject struct {
	Items []ProjectItem
	Input LPTNode
}

func (n *LPTProject) Children() []LPTNode { return []LPTNode{n.Input} }
func (n *LPTProject) String() string {
	names := make([]string, len(n.Items))
	for i, item := range n.Items {
		names[i] = item.Name
	}
	return "Project(" + strings.Join(names, ", ") + ")"
}

// LPTDistinct removes duplicate rows, keeping first occurrences.
type LPTDistinct struct {
	Input LPTNode
}

func (n *LPTDistinct) Children() []LPTNode { return []LPTNode{n.Input} }
func (n *LPTDistinct) String() string      { return "Distinct" }

// LPTOrderBy sorts by output columns.
type LPTOrderBy struct {
	Keys  []SortKey
	Input LPTNode
}

func (n *LPTOrderBy) Children() []LPTNode { return []LPTNode{n.Input} }
func (n *LPTOrderBy) String() string {
	parts := make([]string, len(n.Keys))
	for i, k := range n.Keys {
		dir := "ASC"
		if !k.Ascending {
			dir = "DESC"
		}
		parts[i] = k.Column + " " + dir
	}
	return "OrderBy(" + strings.Join(parts, ", ") + ")"
}

// LPTSkip drops leading rows.
type LPTSkip struct {
	N     int64
	Input LPTNode
}

func (n *LPTSkip) Children() []LPTNode { return []LPTNode{n.Input} }
func (n *LPTSkip) String() string      { return fmt.Sprintf("Skip(%d)", n.N) }

// LPTTake keeps leading rows.
type LPTTake struct {
	N     int64
	Input LPTNode
}

func (n *LPTTake) Children() []LPTNode { return []LPTNode{n.Input} }
func (n *LPTTake) String() string      { return fmt.Sprintf("Take(%d)", n.N) }

// LPTJoin equi-joins two subtrees on their shared column names. Outer
// marks a left outer join (OPTIONAL MATCH).
type LPTJoin struct {
	Left  LPTNode
	Right LPTNode
	Outer bool
}

func (n *LPTJoin) Children() []LPTNode { return []LPTNode{n.Left, n.Right} }
func (n *LPTJoin) String() string {
	if n.Outer {
		return "Join(outer)"
	}
	return "Join"
}

// LPTCreate creates pattern elements, once or per input row.
type LPTCreate struct {
	Pattern Pattern
	Input   LPTNode // nil when CREATE is the first clause
}

func (n *LPTCreate) Children() []LPTNode {
	if n.Input == nil {
		return nil
	}
	return []LPTNode{n.Input}
}
func (n *LPTCreate) String() string {
	vars := make([]string, 0, len(n.Pattern.Nodes)+len(n.Pattern.Edges))
	for _, node := range n.Pattern.Nodes {
		vars = append(vars, node.Variable)
	}
	for _, e := range n.Pattern.Edges {
		vars = append(vars, e.Variable)
	}
	return "Create(" + strings.Join(vars, ", ") + ")"
}

// LPTUnwind expands a list expression into one row per element.
type LPTUnwind struct {
	Expr  Expression
	Alias string
	Input LPTNode // nil when UNWIND is the first clause
}

func (n *LPTUnwind) Children() []LPTNode {
	if n.Input == nil {
		return nil
	}
	return []LPTNode{n.Input}
}
func (n *LPTUnwind) String() string {
	return fmt.Sprintf("Unwind(%s AS %s)", exprString(n.Expr), n.Alias)
}

// LPTProcedureCall invokes a registered procedure and streams its rows.
type LPTProcedureCall struct {
	Namespace string
	Name      string
	Args      []Expression
	Yield     []string
}

func (n *LPTProcedureCall) Children() []LPTNode { return nil }
func (n *LPTProcedureCall) String() string {
	return fmt.Sprintf("ProcedureCall(%s.%s)", n.Namespace, n.Name)
}

// LPTReturn selects and orders the final visible columns.
type LPTReturn struct {
	Columns []string
	Input   LPTNode
}

func (n *LPTReturn) Children() []LPTNode { return []LPTNode{n.Input} }
func (n *LPTReturn) String() string {
	return "Return(" + strings.Join(n.Columns, ", ") + ")"
}

func labelSuffix(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return ":" + strings.Join(labels, ":")
}

func typeSuffix(types []string) string {
	if len(types) == 0 {
		return ""
	}
	return ":" + strings.Join(types, "|")
}

// LogicalPlanner lowers a parsed query to an LPT.
type LogicalPlanner struct{}

// NewLogicalPlanner creates a logical planner.
func NewLogicalPlanner() *LogicalPlanner {
	return &LogicalPlanner{}
}

// logicalScope tracks the columns in flight while clauses lower.
type logicalScope struct {
	columns map[string]struct{}
	order   []string
}

func newLogicalScope() *logicalScope {
	return &logicalScope{columns: make(map[string]struct{})}
}

func (s *logicalScope) add(name string) {
	if name == "" {
		return
	}
	if _, ok := s.columns[name]; !ok {
		s.columns[name] = struct{}{}
		s.order = append(s.order, name)
	}
}

func (s *logicalScope) has(name string) bool {
	_, ok := s.columns[name]
	return ok
}

// checkExpr verifies every variable an expression references is in scope.
func (s *logicalScope) checkExpr(expr Expression) error {
	vars := make(map[string]struct{})
	exprVariables(expr, vars)
	for name := range vars {
		if !s.has(name) {
			return semanticErrorf("variable %s is not defined", name)
		}
	}
	return nil
}

// Plan lowers the parsed query to a logical plan tree.
func (lp *LogicalPlanner) Plan(parsed *ParsedQuery) (LPTNode, error) {
	var root LPTNode
	scope := newLogicalScope()
	sawReturn := false

	for _, clause := range parsed.AST.Clauses {
		if sawReturn {
			return nil, planErrorf("RETURN must be the final clause")
		}
		switch c := clause.(type) {
		case *MatchClause:
			subtree, err := lp.planPattern(c.Pattern, scope)
			if err != nil {
				return nil, err
			}
			if root == nil {
				// OPTIONAL MATCH with nothing to be optional against
				// behaves as a plain MATCH.
				root = subtree
			} else {
				root = &LPTJoin{Left: root, Right: subtree, Outer: c.Optional}
			}
			if c.Where != nil {
				if err := scope.checkExpr(c.Where); err != nil {
					return nil, err
				}
				root = &LPTFilter{Predicate: c.Where, Input: root}
			}

		case *CreateClause:
			for _, node := range c.Pattern.Nodes {
				scope.add(node.Variable)
			}
			for _, e := range c.Pattern.Edges {
				scope.add(e.Variable)
			}
			root = &LPTCreate{Pattern: c.Pattern, Input: root}

		case *UnwindClause:
			if err := scope.checkExpr(c.Expr); err != nil {
				return nil, err
			}
			root = &LPTUnwind{Expr: c.Expr, Alias: c.Alias, Input: root}
			scope.add(c.Alias)

		case *CallClause:
			if root != nil {
				return nil, planErrorf("CALL after other clauses is not supported")
			}
			root = &LPTProcedureCall{Namespace: c.Namespace, Name: c.Name, Args: c.Args, Yield: c.Yield}
			for _, col := range c.Yield {
				scope.add(col)
			}

		case *WithClause:
			var err error
			root, scope, err = lp.planProjection(root, scope, c.Distinct, c.Items, c.OrderBy, c.Skip, c.Limit)
			if err != nil {
				return nil, err
			}
			if c.Where != nil {
				if err := scope.checkExpr(c.Where); err != nil {
					return nil, err
				}
				root = &LPTFilter{Predicate: c.Where, Input: root}
			}

		case *ReturnClause:
			var err error
			root, scope, err = lp.planProjection(root, scope, c.Distinct, c.Items, c.OrderBy, c.Skip, c.Limit)
			if err != nil {
				return nil, err
			}
			sawReturn = true

		default:
			return nil, planErrorf("cannot lower clause %T", clause)
		}
	}

	if root == nil {
		return nil, planErrorf("query produced no plan")
	}
	return root, nil
}

// planPattern lowers a linear pattern. A bare node becomes a NodeScan; a
// chain becomes Expand hops stitched together with joins on the shared
// node variables, which is also where relationship uniqueness between the
// hops is enforced.
func (lp *LogicalPlanner) planPattern(pattern Pattern, scope *logicalScope) (LPTNode, error) {
	if len(pattern.Nodes) == 0 {
		return nil, planErrorf("empty pattern")
	}
	if len(pattern.Edges) == 0 {
		scope.add(pattern.Nodes[0].Variable)
		return &LPTNodeScan{Node: pattern.Nodes[0]}, nil
	}

	var subtree LPTNode
	for i, edge := range pattern.Edges {
		hop := &LPTExpand{From: pattern.Nodes[i], Edge: edge, To: pattern.Nodes[i+1]}
		scope.add(hop.From.Variable)
		scope.add(hop.Edge.Variable)
		scope.add(hop.To.Variable)
		if subtree == nil {
			subtree = hop
		} else {
			subtree = &LPTJoin{Left: subtree, Right: hop}
		}
	}
	return subtree, nil
}

// planProjection lowers the shared RETURN / WITH pipeline:
// Project (visible plus hidden sort keys) → Distinct → OrderBy →
// Skip → Take → Return (drop hidden columns).
func (lp *LogicalPlanner) planProjection(root LPTNode, scope *logicalScope, distinct bool, items []ReturnItem, orderBy []OrderItem, skip, limit *int64) (LPTNode, *logicalScope, error) {
	if root == nil {
		// Projection with no preceding rows evaluates once against an
		// empty binding, e.g. RETURN 1 + 1.
		root = &LPTUnwind{Expr: &ListLiteral{Items: []Expression{&Literal{Value: nil}}}, Alias: "_unit"}
	}

	visible := make([]string, 0, len(items))
	proj := make([]ProjectItem, 0, len(items)+len(orderBy))
	for _, item := range items {
		if err := scope.checkExpr(item.Expr); err != nil {
			return nil, nil, err
		}
		name := item.Name()
		for _, existing := range visible {
			if existing == name {
				return nil, nil, semanticErrorf("duplicate column name %q", name)
			}
		}
		visible = append(visible, name)
		proj = append(proj, ProjectItem{Name: name, Expr: item.Expr})
	}

	// Sort keys that are not already output columns ride along as hidden
	// projections and are dropped by the final Return.
	var keys []SortKey
	for i, item := range orderBy {
		name := exprString(item.Expr)
		if alias, ok := item.Expr.(*Variable); ok && contains(visible, alias.Name) {
			name = alias.Name
		}
		if !contains(visible, name) {
			if err := scope.checkExpr(item.Expr); err != nil {
				return nil, nil, err
			}
			name = fmt.Sprintf("_sort%d", i)
			proj = append(proj, ProjectItem{Name: name, Expr: item.Expr})
		}
		keys = append(keys, SortKey{Column: name, Ascending: !item.Descending})
	}

	root = &LPTProject{Items: proj, Input: root}
	if distinct {
		root = &LPTDistinct{Input: root}
	}
	if len(keys) > 0 {
		root = &LPTOrderBy{Keys: keys, Input: root}
	}
	if skip != nil {
		root = &LPTSkip{N: *skip, Input: root}
	}
	if limit != nil {
		root = &LPTTake{N: *limit, Input: root}
	}
	root = &LPTReturn{Columns: visible, Input: root}

	next := newLogicalScope()
	for _, name := range visible {
		next.add(name)
	}
	return root, next, nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
