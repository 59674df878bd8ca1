// Package cypher - physical plan optimizer.
//
// The optimizer is a sequence of semantics-preserving tree rewrites, run to
// a fixpoint bounded by a configured pass count. Plans are immutable:
// every rule that changes anything builds new nodes.
//
// Required passes:
//  1. Predicate pushdown toward scans when the predicate references only
//     that scan's output columns.
//  2. Constant filter folding: a literal-true filter disappears, a
//     literal-false (or null) filter replaces its subtree with an empty
//     frame of the same schema.
//  3. Elision of Skip 0 and negative (unbounded) Take.
package cypher

// DefaultOptimizerPasses bounds the fixpoint loop when no configuration
// overrides it.
const DefaultOptimizerPasses = 10

// Optimizer rewrites physical plans.
type Optimizer struct {
	maxPasses int
}

// NewOptimizer creates an optimizer with the given fixpoint bound. Bounds
// below 1 fall back to DefaultOptimizerPasses.
func NewOptimizer(maxPasses int) *Optimizer {
	if maxPasses < 1 {
		maxPasses = DefaultOptimizerPasses
	}
	return &Optimizer{maxPasses: maxPasses}
}

// Optimize runs all rules until none fires or the pass bound is reached.
func (o *Optimizer) Optimize(root PPTNode) PPTNode {
	for pass := 0; pass < o.maxPasses; pass++ {
		next, changed := o.rewrite(root)
		root = next
		if !changed {
			break
		}
	}
	return root
}

// rewrite applies the rule set bottom-up over one tree traversal.
func (o *Optimizer) rewrite(node PPTNode) (PPTNode, bool) {
	changed := false

	// Rewrite children first so parent rules see already-simplified
	// subtrees.
	switch n := node.(type) {
	case *PPTFilter:
		child, c := o.rewrite(n.Input)
		if c {
			node = &PPTFilter{Predicate: n.Predicate, Input: child}
			changed = true
		}
	case *PPTProject:
		child, c := o.rewrite(n.Input)
		if c {
			node = &PPTProject{Items: n.Items, Input: child}
			changed = true
		}
	case *PPTDistinct:
		child, c := o.rewrite(n.Input)
		if c {
			node = &PPTDistinct{Input: child}
			changed = true
		}
	case *PPTOrderBy:
		child, c := o.rewrite(n.Input)
		if c {
			node = &PPTOrderBy{Keys: n.Keys, Input: child}
			changed = true
		}
	case *PPTSkip:
		child, c := o.rewrite(n.Input)
		if c {
			node = &PPTSkip{N: n.N, Input: child}
			changed = true
		}
	case *PPTTake:
		child, c := o.rewrite(n.Input)
		if c {
			node = &PPTTake{N: n.N, Input: child}
			changed = true
		}
	case *PPTJoin:
		left, lc := o.rewrite(n.Left)
		right, rc := o.rewrite(n.Right)
		if lc || rc {
			node = &PPTJoin{Left: left, Right: right, Outer: n.Outer}
			changed = true
		}
	case *PPTSelect:
		child, c := o.rewrite(n.Input)
		if c {
			node = &PPTSelect{Columns: n.Columns, Input: child}
			changed = true
		}
	case *PPTCreate:
		if n.Input != nil {
			child, c := o.rewrite(n.Input)
			if c {
				node = &PPTCreate{Pattern: n.Pattern, Input: child}
				changed = true
			}
		}
	case *PPTUnwind:
		if n.Input != nil {
			child, c := o.rewrite(n.Input)
			if c {
				node = &PPTUnwind{Expr: n.Expr, Alias: n.Alias, Input: child}
				changed = true
			}
		}
	case *PPTEmpty:
		child, c := o.rewrite(n.Input)
		if c {
			node = &PPTEmpty{Input: child}
			changed = true
		}
	}

	if next, fired := foldConstantFilter(node); fired {
		return next, true
	}
	if next, fired := pushdownPredicate(node); fired {
		return next, true
	}
	if next, fired := elideNoOps(node); fired {
		return next, true
	}
	return node, changed
}

// foldConstantFilter removes literal-true filters and replaces
// literal-false (or literal-null) filters with an empty frame over the
// same subtree schema.
func foldConstantFilter(node PPTNode) (PPTNode, bool) {
	filter, ok := node.(*PPTFilter)
	if !ok {
		return node, false
	}
	lit, ok := filter.Predicate.(*Literal)
	if !ok {
		return node, false
	}
	if b, isBool := lit.Value.(bool); isBool && b {
		return filter.Input, true
	}
	// false or null: no row can pass.
	return &PPTEmpty{Input: filter.Input}, true
}

// pushdownPredicate attaches a filter to the scan directly beneath it when
// the predicate only references that scan's output column. Stacked pushed
// predicates combine with AND.
func pushdownPredicate(node PPTNode) (PPTNode, bool) {
	filter, ok := node.(*PPTFilter)
	if !ok {
		return node, false
	}
	scan, ok := filter.Input.(*PPTNodeScan)
	if !ok {
		return node, false
	}

	vars := make(map[string]struct{})
	exprVariables(filter.Predicate, vars)
	if len(vars) == 0 {
		return node, false // constant predicates belong to the fold rule
	}
	for name := range vars {
		if name != scan.Node.Variable {
			return node, false
		}
	}

	pushed := filter.Predicate
	if scan.Pushed != nil {
		pushed = &BoolOp{Operator: "AND", Left: scan.Pushed, Right: pushed}
	}
	return &PPTNodeScan{Node: scan.Node, Pushed: pushed}, true
}

// elideNoOps removes Skip 0 and unbounded Take.
func elideNoOps(node PPTNode) (PPTNode, bool) {
	switch n := node.(type) {
	case *PPTSkip:
		if n.N == 0 {
			return n.Input, true
		}
	case *PPTTake:
		if n.N < 0 {
			return n.Input, true
		}
	}
	return node, false
}
