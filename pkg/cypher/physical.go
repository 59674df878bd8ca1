// Package cypher - physical plan tree and planner.
//
// The physical planner lowers each logical node to a PPTNode that knows how
// to Execute(ctx) → DataFrame. Scans bind to the graph model, filter nodes
// wrap the evaluator, join nodes dispatch to the frame operator. Execute
// builds lazy frames: calling it is cheap, and no records move until the
// returned frame's iterator is drained.
package cypher

import (
	"context"
	"fmt"
	"strings"

	"github.com/orneryd/cypherframe/pkg/graph"
)

// ExecContext carries everything a physical node needs to execute. The
// evaluator, operator, and model are shared read-only; the context is
// per-Run.
type ExecContext struct {
	Ctx       context.Context
	Model     graph.GraphModel
	Evaluator *Evaluator
	Operator  *FrameOperator
	Params    map[string]any
	Residual  map[string]any
}

// evalCtx builds an expression context with no row bindings.
func (c *ExecContext) evalCtx() *EvalContext {
	return &EvalContext{Residual: c.Residual, Params: c.Params}
}

// PPTNode is a physical plan tree node.
type PPTNode interface {
	Children() []PPTNode
	String() string
	Execute(ctx *ExecContext) (DataFrame, error)
}

// evalFilterProps resolves a pattern property map (parameter references and
// the odd residual literal) into concrete filter values.
func evalFilterProps(props map[string]Expression, ev *Evaluator, ctx *EvalContext) (map[string]any, error) {
	if len(props) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(props))
	for key, expr := range props {
		v, err := ev.Eval(expr, ctx)
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}

// PPTNodeScan scans nodes matching a pattern. Pushed, when non-nil, is a
// predicate the optimizer attached to the scan; it filters each node
// before the row leaves the scan.
type PPTNodeScan struct {
	Node   NodePattern
	Pushed Expression
}

func (n *PPTNodeScan) Children() []PPTNode { return nil }

func (n *PPTNodeScan) String() string {
	s := fmt.Sprintf("NodeScan(%s%s)", n.Node.Variable, labelSuffix(n.Node.Labels))
	if n.Pushed != nil {
		s += " where " + exprString(n.Pushed)
	}
	return s
}

func (n *PPTNodeScan) Execute(ctx *ExecContext) (DataFrame, error) {
	props, err := evalFilterProps(n.Node.Properties, ctx.Evaluator, ctx.evalCtx())
	if err != nil {
		return DataFrame{}, err
	}
	filter := graph.NodeFilter{Labels: n.Node.Labels, Properties: props}
	schema := Schema{{Name: n.Node.Variable, Type: NodeType}}

	return NewDataFrame(schema, func() RowIterator {
		it := ctx.Model.FilterNodes(filter)
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				for {
					if err := ctx.Ctx.Err(); err != nil {
						return nil, false, err
					}
					node, ok, err := it.Next()
					if err != nil {
						return nil, false, wrapModelErr(err)
					}
					if !ok {
						return nil, false, nil
					}
					row := Row{node}
					if n.Pushed != nil {
						verdict, err := ctx.Evaluator.Eval(n.Pushed, ctx.evalCtx().child(map[string]any{n.Node.Variable: node}))
						if err != nil {
							return nil, false, err
						}
						if !logicalTrue(verdict) {
							continue
						}
					}
					return row, true, nil
				}
			},
			close: it.Close,
		}
	}), nil
}

// PPTExpand scans one relationship hop through GraphModel.Paths, producing
// start node, relationship, and end node columns oriented the way the
// pattern reads.
type PPTExpand struct {
	From NodePattern
	Edge EdgePattern
	To   NodePattern
}

func (n *PPTExpand) Children() []PPTNode { return nil }

func (n *PPTExpand) String() string {
	return fmt.Sprintf("Expand((%s%s)-[%s%s]-(%s%s) %s)",
		n.From.Variable, labelSuffix(n.From.Labels),
		n.Edge.Variable, typeSuffix(n.Edge.Types),
		n.To.Variable, labelSuffix(n.To.Labels),
		n.Edge.Direction)
}

func (n *PPTExpand) Execute(ctx *ExecContext) (DataFrame, error) {
	ec := ctx.evalCtx()
	fromProps, err := evalFilterProps(n.From.Properties, ctx.Evaluator, ec)
	if err != nil {
		return DataFrame{}, err
	}
	edgeProps, err := evalFilterProps(n.Edge.Properties, ctx.Evaluator, ec)
	if err != nil {
		return DataFrame{}, err
	}
	toProps, err := evalFilterProps(n.To.Properties, ctx.Evaluator, ec)
	if err != nil {
		return DataFrame{}, err
	}

	startFilter := graph.NodeFilter{Labels: n.From.Labels, Properties: fromProps}
	relFilter := graph.RelFilter{Types: n.Edge.Types, Properties: edgeProps}
	endFilter := graph.NodeFilter{Labels: n.To.Labels, Properties: toProps}
	dir := n.Edge.Direction

	schema := Schema{
		{Name: n.From.Variable, Type: NodeType},
		{Name: n.Edge.Variable, Type: RelationshipType},
		{Name: n.To.Variable, Type: NodeType},
	}

	return NewDataFrame(schema, func() RowIterator {
		it := ctx.Model.Paths(startFilter, relFilter, endFilter, dir)
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				if err := ctx.Ctx.Err(); err != nil {
					return nil, false, err
				}
				triple, ok, err := it.Next()
				if err != nil {
					return nil, false, wrapModelErr(err)
				}
				if !ok {
					return nil, false, nil
				}
				return Row{triple.Start, triple.Rel, triple.End}, true, nil
			},
			close: it.Close,
		}
	}), nil
}

// PPTFilter wraps the evaluator around its input.
type PPTFilter struct {
	Predicate Expression
	Input     PPTNode
}

func (n *PPTFilter) Children() []PPTNode { return []PPTNode{n.Input} }
func (n *PPTFilter) String() string      { return "Filter(" + exprString(n.Predicate) + ")" }

func (n *PPTFilter) Execute(ctx *ExecContext) (DataFrame, error) {
	child, err := n.Input.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	return ctx.Operator.Filter(child, n.Predicate, ctx.Evaluator, ctx.evalCtx()), nil
}

// PPTProject computes output columns through the frame operator.
type PPTProject struct {
	Items []ProjectItem
	Input PPTNode
}

func (n *PPTProject) Children() []PPTNode { return []PPTNode{n.Input} }
func (n *PPTProject) String() string {
	names := make([]string, len(n.Items))
	for i, item := range n.Items {
		names[i] = item.Name
	}
	return "Project(" + strings.Join(names, ", ") + ")"
}

func (n *PPTProject) Execute(ctx *ExecContext) (DataFrame, error) {
	child, err := n.Input.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	return ctx.Operator.Project(child, n.Items, ctx.Evaluator, ctx.evalCtx()), nil
}

// PPTDistinct removes duplicate rows.
type PPTDistinct struct {
	Input PPTNode
}

func (n *PPTDistinct) Children() []PPTNode { return []PPTNode{n.Input} }
func (n *PPTDistinct) String() string      { return "Distinct" }

func (n *PPTDistinct) Execute(ctx *ExecContext) (DataFrame, error) {
	child, err := n.Input.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	return ctx.Operator.Distinct(child), nil
}

// PPTOrderBy sorts by column keys.
type PPTOrderBy struct {
	Keys  []SortKey
	Input PPTNode
}

func (n *PPTOrderBy) Children() []PPTNode { return []PPTNode{n.Input} }
func (n *PPTOrderBy) String() string {
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

func (n *PPTOrderBy) Execute(ctx *ExecContext) (DataFrame, error) {
	child, err := n.Input.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	return ctx.Operator.OrderBy(child, n.Keys)
}

// PPTSkip drops leading rows.
type PPTSkip struct {
	N     int64
	Input PPTNode
}

func (n *PPTSkip) Children() []PPTNode { return []PPTNode{n.Input} }
func (n *PPTSkip) String() string      { return fmt.Sprintf("Skip(%d)", n.N) }

func (n *PPTSkip) Execute(ctx *ExecContext) (DataFrame, error) {
	child, err := n.Input.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	return ctx.Operator.Skip(child, n.N), nil
}

// PPTTake keeps leading rows.
type PPTTake struct {
	N     int64
	Input PPTNode
}

func (n *PPTTake) Children() []PPTNode { return []PPTNode{n.Input} }
func (n *PPTTake) String() string      { return fmt.Sprintf("Take(%d)", n.N) }

func (n *PPTTake) Execute(ctx *ExecContext) (DataFrame, error) {
	child, err := n.Input.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	return ctx.Operator.Take(child, n.N), nil
}

// PPTJoin dispatches to the frame operator's join. Outer joins keep
// unmatched left rows padded with nulls.
type PPTJoin struct {
	Left  PPTNode
	Right PPTNode
	Outer bool
}

func (n *PPTJoin) Children() []PPTNode { return []PPTNode{n.Left, n.Right} }
func (n *PPTJoin) String() string {
	if n.Outer {
		return "Join(outer)"
	}
	return "Join"
}

func (n *PPTJoin) Execute(ctx *ExecContext) (DataFrame, error) {
	left, err := n.Left.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	right, err := n.Right.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	if n.Outer {
		return ctx.Operator.LeftOuterJoin(left, right), nil
	}
	return ctx.Operator.Join(left, right), nil
}

// PPTSelect projects the final visible columns by name.
type PPTSelect struct {
	Columns []string
	Input   PPTNode
}

func (n *PPTSelect) Children() []PPTNode { return []PPTNode{n.Input} }
func (n *PPTSelect) String() string {
	return "Select(" + strings.Join(n.Columns, ", ") + ")"
}

func (n *PPTSelect) Execute(ctx *ExecContext) (DataFrame, error) {
	child, err := n.Input.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	sels := make([]ColumnSelection, len(n.Columns))
	for i, c := range n.Columns {
		sels[i] = ColumnSelection{Source: c}
	}
	return ctx.Operator.Select(child, sels)
}

// PPTEmpty produces its child's schema with no rows. The optimizer
// installs it when a filter folds to constant false.
type PPTEmpty struct {
	Input PPTNode
}

func (n *PPTEmpty) Children() []PPTNode { return []PPTNode{n.Input} }
func (n *PPTEmpty) String() string      { return "Empty" }

func (n *PPTEmpty) Execute(ctx *ExecContext) (DataFrame, error) {
	child, err := n.Input.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	return EmptyFrame(child.Schema().Clone()), nil
}

// PPTCreate creates pattern elements through GraphModel.CreateElements.
//
// Without an input, the pattern is created once and the created elements
// become a one-row frame. With an input, creation runs per row: node
// variables already bound in the row are reused, unbound ones create fresh
// nodes, every relationship in the pattern is created fresh (a bound
// relationship variable is not reused), and the output row extends the input
// row with the new bindings.
type PPTCreate struct {
	Pattern Pattern
	Input   PPTNode
}

func (n *PPTCreate) Children() []PPTNode {
	if n.Input == nil {
		return nil
	}
	return []PPTNode{n.Input}
}

func (n *PPTCreate) String() string { return (&LPTCreate{Pattern: n.Pattern}).String() }

func (n *PPTCreate) Execute(ctx *ExecContext) (DataFrame, error) {
	if n.Input == nil {
		unit := NewDataFrame(Schema{}, func() RowIterator {
			return &sliceRowIterator{rows: []Row{{}}}
		})
		return n.executeOver(ctx, unit)
	}
	child, err := n.Input.Execute(ctx)
	if err != nil {
		return DataFrame{}, err
	}
	return n.executeOver(ctx, child)
}

func (n *PPTCreate) executeOver(ctx *ExecContext, input DataFrame) (DataFrame, error) {
	inSchema := input.Schema()
	schema := inSchema.Clone()
	for _, node := range n.Pattern.Nodes {
		if schema.IndexOf(node.Variable) < 0 {
			schema = append(schema, Column{Name: node.Variable, Type: NodeType})
		}
	}
	for _, e := range n.Pattern.Edges {
		if schema.IndexOf(e.Variable) < 0 {
			schema = append(schema, Column{Name: e.Variable, Type: RelationshipType})
		}
	}

	return NewDataFrame(schema, func() RowIterator {
		inner := input.Records()
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				row, ok, err := inner.Next()
				if err != nil || !ok {
					return nil, false, err
				}
				out, err := n.createForRow(ctx, inSchema, row, schema)
				if err != nil {
					return nil, false, err
				}
				return out, true, nil
			},
			close: inner.Close,
		}
	}), nil
}

// createForRow performs one row's worth of creation and returns the
// extended row.
func (n *PPTCreate) createForRow(ctx *ExecContext, inSchema Schema, row Row, outSchema Schema) (Row, error) {
	bindings := bindRow(inSchema, row)
	ec := ctx.evalCtx().child(bindings)

	var newNodes []*graph.Node
	nodeByVar := make(map[string]*graph.Node)
	for _, np := range n.Pattern.Nodes {
		if bound, ok := bindings[np.Variable]; ok {
			existing, isNode := bound.(*graph.Node)
			if !isNode {
				return nil, semanticErrorf("variable %s is already bound to a non-node", np.Variable)
			}
			nodeByVar[np.Variable] = existing
			continue
		}
		props, err := evalFilterProps(np.Properties, ctx.Evaluator, ec)
		if err != nil {
			return nil, err
		}
		if props == nil {
			props = make(map[string]any)
		}
		node := &graph.Node{Labels: np.Labels, Properties: props}
		newNodes = append(newNodes, node)
		nodeByVar[np.Variable] = node
	}

	var newRels []*graph.Relationship
	relByVar := make(map[string]*graph.Relationship)
	for i, ep := range n.Pattern.Edges {
		if ep.Direction == graph.DirectionBoth {
			return nil, planErrorf("CREATE requires a directed relationship pattern")
		}
		props, err := evalFilterProps(ep.Properties, ctx.Evaluator, ec)
		if err != nil {
			return nil, err
		}
		if props == nil {
			props = make(map[string]any)
		}
		typ := ""
		if len(ep.Types) > 0 {
			typ = ep.Types[0]
		}
		from := nodeByVar[n.Pattern.Nodes[i].Variable]
		to := nodeByVar[n.Pattern.Nodes[i+1].Variable]
		if ep.Direction == graph.DirectionIncoming {
			from, to = to, from
		}
		rel := &graph.Relationship{Type: typ, Properties: props}
		// Endpoint IDs resolve after node creation when either end is new;
		// record placeholders from the bound side now.
		rel.StartNode = from.ID
		rel.EndNode = to.ID
		newRels = append(newRels, rel)
		relByVar[ep.Variable] = rel
	}

	// Two-phase create: nodes first so relationships can reference the
	// assigned identities, then relationships.
	err := ctx.Model.CreateElements(newNodes, nil, func(created []*graph.Node, _ []*graph.Relationship) error {
		for i, node := range created {
			*newNodes[i] = *node
		}
		return nil
	})
	if err != nil {
		return nil, wrapModelErr(err)
	}
	for i, ep := range n.Pattern.Edges {
		from := nodeByVar[n.Pattern.Nodes[i].Variable]
		to := nodeByVar[n.Pattern.Nodes[i+1].Variable]
		if ep.Direction == graph.DirectionIncoming {
			from, to = to, from
		}
		newRels[i].StartNode = from.ID
		newRels[i].EndNode = to.ID
	}
	if len(newRels) > 0 {
		err = ctx.Model.CreateElements(nil, newRels, func(_ []*graph.Node, created []*graph.Relationship) error {
			for i, rel := range created {
				*newRels[i] = *rel
			}
			return nil
		})
		if err != nil {
			return nil, wrapModelErr(err)
		}
	}

	out := make(Row, len(outSchema))
	copy(out, row)
	for i := len(row); i < len(outSchema); i++ {
		name := outSchema[i].Name
		if node, ok := nodeByVar[name]; ok {
			out[i] = node
			continue
		}
		if rel, ok := relByVar[name]; ok {
			out[i] = rel
		}
	}
	return out, nil
}

// PPTUnwind expands a list expression into one output row per element.
type PPTUnwind struct {
	Expr  Expression
	Alias string
	Input PPTNode
}

func (n *PPTUnwind) Children() []PPTNode {
	if n.Input == nil {
		return nil
	}
	return []PPTNode{n.Input}
}

func (n *PPTUnwind) String() string {
	return fmt.Sprintf("Unwind(%s AS %s)", exprString(n.Expr), n.Alias)
}

func (n *PPTUnwind) Execute(ctx *ExecContext) (DataFrame, error) {
	var input DataFrame
	if n.Input == nil {
		input = NewDataFrame(Schema{}, func() RowIterator {
			return &sliceRowIterator{rows: []Row{{}}}
		})
	} else {
		child, err := n.Input.Execute(ctx)
		if err != nil {
			return DataFrame{}, err
		}
		input = child
	}

	inSchema := input.Schema()
	elemType := AnyType
	if t := ctx.Evaluator.TypeOf(n.Expr, inSchema.TypeEnv()); t.Kind == TypeList && t.Elem != nil {
		elemType = *t.Elem
	}
	schema := append(inSchema.Clone(), Column{Name: n.Alias, Type: elemType})

	return NewDataFrame(schema, func() RowIterator {
		inner := input.Records()
		var current Row
		var items []any
		pos := 0
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				for {
					if pos < len(items) {
						out := make(Row, 0, len(current)+1)
						out = append(out, current...)
						out = append(out, items[pos])
						pos++
						return out, true, nil
					}
					row, ok, err := inner.Next()
					if err != nil || !ok {
						return nil, false, err
					}
					value, err := ctx.Evaluator.Eval(n.Expr, ctx.evalCtx().child(bindRow(inSchema, row)))
					if err != nil {
						return nil, false, err
					}
					current = row
					pos = 0
					switch v := value.(type) {
					case nil:
						items = nil // UNWIND null produces no rows
					case []any:
						items = v
					default:
						items = []any{v} // a scalar unwinds to itself
					}
				}
			},
			close: inner.Close,
		}
	}), nil
}

// PPTProcedureCall resolves the procedure from the graph model and streams
// its rows as a frame.
type PPTProcedureCall struct {
	Namespace string
	Name      string
	Args      []Expression
	Yield     []string
}

func (n *PPTProcedureCall) Children() []PPTNode { return nil }
func (n *PPTProcedureCall) String() string {
	return fmt.Sprintf("ProcedureCall(%s.%s)", n.Namespace, n.Name)
}

func (n *PPTProcedureCall) Execute(ctx *ExecContext) (DataFrame, error) {
	proc, ok := ctx.Model.Procedure(n.Namespace, n.Name)
	if !ok {
		return DataFrame{}, planErrorf("unknown procedure %s.%s", n.Namespace, n.Name)
	}
	if len(n.Args) != len(proc.Inputs) {
		return DataFrame{}, semanticErrorf("procedure %s.%s expects %d argument(s), got %d",
			n.Namespace, n.Name, len(proc.Inputs), len(n.Args))
	}

	// Yielded columns select from the declared outputs, preserving the
	// declaration's types.
	yield := n.Yield
	if len(yield) == 0 {
		yield = make([]string, len(proc.Outputs))
		for i, out := range proc.Outputs {
			yield[i] = out.Name
		}
	}
	outIndex := make([]int, len(yield))
	schema := make(Schema, len(yield))
	for i, name := range yield {
		idx := -1
		for j, out := range proc.Outputs {
			if out.Name == name {
				idx = j
				break
			}
		}
		if idx < 0 {
			return DataFrame{}, semanticErrorf("procedure %s.%s does not yield %q", n.Namespace, n.Name, name)
		}
		outIndex[i] = idx
		schema[i] = Column{Name: name, Type: typeFromName(proc.Outputs[idx].Type)}
	}

	args := make([]any, len(n.Args))
	ec := ctx.evalCtx()
	for i, argExpr := range n.Args {
		v, err := ctx.Evaluator.Eval(argExpr, ec)
		if err != nil {
			return DataFrame{}, err
		}
		args[i] = v
	}

	arity := len(proc.Outputs)
	return NewDataFrame(schema, func() RowIterator {
		var stream graph.RowStream
		var startErr error
		started := false
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				if !started {
					started = true
					stream, startErr = proc.Call(args)
				}
				if startErr != nil {
					return nil, false, wrapModelErr(startErr)
				}
				raw, ok, err := stream.Next()
				if err != nil {
					return nil, false, wrapModelErr(err)
				}
				if !ok {
					return nil, false, nil
				}
				if len(raw) != arity {
					return nil, false, wrapModelErr(fmt.Errorf(
						"procedure %s.%s returned %d column(s), declared %d",
						n.Namespace, n.Name, len(raw), arity))
				}
				row := make(Row, len(outIndex))
				for i, idx := range outIndex {
					row[i] = NormalizeValue(raw[idx])
				}
				return row, true, nil
			},
			close: func() error {
				if stream != nil {
					return stream.Close()
				}
				return nil
			},
		}
	}), nil
}

// typeFromName maps a procedure declaration's type spelling to a tag.
func typeFromName(name string) Type {
	switch strings.ToUpper(name) {
	case "BOOLEAN":
		return BooleanType
	case "INTEGER":
		return IntegerType
	case "FLOAT":
		return FloatType
	case "STRING":
		return StringType
	case "NODE":
		return NodeType
	case "RELATIONSHIP":
		return RelationshipType
	case "PATH":
		return PathType
	case "MAP":
		return MapType
	case "LIST":
		return ListOf(AnyType)
	}
	return AnyType
}

// PhysicalPlanner lowers an LPT to a PPT.
type PhysicalPlanner struct{}

// NewPhysicalPlanner creates a physical planner.
func NewPhysicalPlanner() *PhysicalPlanner {
	return &PhysicalPlanner{}
}

// Plan lowers the logical tree. Every logical node kind has exactly one
// physical counterpart; an unknown kind is a PlanError.
func (pp *PhysicalPlanner) Plan(node LPTNode) (PPTNode, error) {
	switch n := node.(type) {
	case *LPTNodeScan:
		return &PPTNodeScan{Node: n.Node}, nil
	case *LPTExpand:
		return &PPTExpand{From: n.From, Edge: n.Edge, To: n.To}, nil
	case *LPTFilter:
		child, err := pp.Plan(n.Input)
		if err != nil {
			return nil, err
		}
		return &PPTFilter{Predicate: n.Predicate, Input: child}, nil
	case *LPTProject:
		child, err := pp.Plan(n.Input)
		if err != nil {
			return nil, err
		}
		return &PPTProject{Items: n.Items, Input: child}, nil
	case *LPTDistinct:
		child, err := pp.Plan(n.Input)
		if err != nil {
			return nil, err
		}
		return &PPTDistinct{Input: child}, nil
	case *LPTOrderBy:
		child, err := pp.Plan(n.Input)
		if err != nil {
			return nil, err
		}
		return &PPTOrderBy{Keys: n.Keys, Input: child}, nil
	case *LPTSkip:
		child, err := pp.Plan(n.Input)
		if err != nil {
			return nil, err
		}
		return &PPTSkip{N: n.N, Input: child}, nil
	case *LPTTake:
		child, err := pp.Plan(n.Input)
		if err != nil {
			return nil, err
		}
		return &PPTTake{N: n.N, Input: child}, nil
	case *LPTJoin:
		left, err := pp.Plan(n.Left)
		if err != nil {
			return nil, err
		}
		right, err := pp.Plan(n.Right)
		if err != nil {
			return nil, err
		}
		return &PPTJoin{Left: left, Right: right, Outer: n.Outer}, nil
	case *LPTCreate:
		var child PPTNode
		if n.Input != nil {
			var err error
			child, err = pp.Plan(n.Input)
			if err != nil {
				return nil, err
			}
		}
		return &PPTCreate{Pattern: n.Pattern, Input: child}, nil
	case *LPTUnwind:
		var child PPTNode
		if n.Input != nil {
			var err error
			child, err = pp.Plan(n.Input)
			if err != nil {
				return nil, err
			}
		}
		return &PPTUnwind{Expr: n.Expr, Alias: n.Alias, Input: child}, nil
	case *LPTProcedureCall:
		return &PPTProcedureCall{Namespace: n.Namespace, Name: n.Name, Args: n.Args, Yield: n.Yield}, nil
	case *LPTReturn:
		child, err := pp.Plan(n.Input)
		if err != nil {
			return nil, err
		}
		return &PPTSelect{Columns: n.Columns, Input: child}, nil
	}
	return nil, planErrorf("cannot lower logical node %T", node)
}
