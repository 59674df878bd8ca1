// Package cypher provides end-to-end tests for the runner facade.
package cypher

import (
	"bytes"
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/cypherframe/pkg/graph"
)

// knowsGraph builds the two-node fixture:
// A(id=1) -[R(id=10):KNOWS]-> B(id=2).
func knowsGraph(t *testing.T) *graph.MemoryGraph {
	t.Helper()
	g := graph.NewMemoryGraph()
	require.NoError(t, g.CreateElements(
		[]*graph.Node{
			{ID: "1", Labels: []string{"Person"}, Properties: map[string]any{"name": "A"}},
			{ID: "2", Labels: []string{"Person"}, Properties: map[string]any{"name": "B"}},
		},
		[]*graph.Relationship{
			{ID: "10", Type: "KNOWS", StartNode: "1", EndNode: "2"},
		}, nil))
	return g
}

func runRecords(t *testing.T, runner *Runner, query string, params map[string]any) []map[string]any {
	t.Helper()
	result, err := runner.Run(context.Background(), query, params)
	require.NoError(t, err)
	records, err := result.Records().Collect()
	require.NoError(t, err)
	return records
}

func nodeID(t *testing.T, v any) graph.NodeID {
	t.Helper()
	n, ok := v.(*graph.Node)
	require.True(t, ok, "expected node, got %T", v)
	return n.ID
}

func relID(t *testing.T, v any) graph.RelID {
	t.Helper()
	r, ok := v.(*graph.Relationship)
	require.True(t, ok, "expected relationship, got %T", v)
	return r.ID
}

func TestRoundTripMatch(t *testing.T) {
	// MATCH (a)-[r]->(b) RETURN a, r, b over A-KNOWS->B yields one row.
	runner := NewRunner(knowsGraph(t))
	result, err := runner.Run(context.Background(), "MATCH (a)-[r]->(b) RETURN a, r, b", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "r", "b"}, result.Columns())

	records, err := result.Records().Collect()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, graph.NodeID("1"), nodeID(t, records[0]["a"]))
	assert.Equal(t, graph.RelID("10"), relID(t, records[0]["r"]))
	assert.Equal(t, graph.NodeID("2"), nodeID(t, records[0]["b"]))
}

func TestIncomingDirectionBindsReversed(t *testing.T) {
	// MATCH (a)<-[r]-(b) binds a to the edge's target and b to its source.
	runner := NewRunner(knowsGraph(t))
	records := runRecords(t, runner, "MATCH (a)<-[r]-(b) RETURN a, r, b", nil)
	require.Len(t, records, 1)
	assert.Equal(t, graph.NodeID("2"), nodeID(t, records[0]["a"]))
	assert.Equal(t, graph.NodeID("1"), nodeID(t, records[0]["b"]))
	assert.Equal(t, graph.RelID("10"), relID(t, records[0]["r"]))
}

func TestFilterPushdownToScan(t *testing.T) {
	g := graph.NewMemoryGraph()
	require.NoError(t, g.CreateElements([]*graph.Node{
		{ID: "1", Labels: []string{"Person"}, Properties: map[string]any{"name": "x"}},
		{ID: "2", Labels: []string{"Person"}, Properties: map[string]any{"name": "y"}},
	}, nil, nil))
	runner := NewRunner(g)

	result, err := runner.Run(context.Background(), "MATCH (n:Person) WHERE n.name = 'x' RETURN n", nil)
	require.NoError(t, err)

	records, err := result.Records().Collect()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, graph.NodeID("1"), nodeID(t, records[0]["n"]))

	// After optimization the predicate hangs off the scan, not a separate
	// filter node.
	rendered := PrettyPhysical(result.PhysicalPlan())
	assert.Contains(t, rendered, "NodeScan(n:Person) where n.name = 'x'")
	assert.NotContains(t, rendered, "Filter(")
}

func TestJoinUniquenessAcrossPatternHops(t *testing.T) {
	// A-B-C chain: (a)-[r]-(b)-[p]-(c) must never bind r and p to the same
	// edge.
	g := graph.NewMemoryGraph()
	require.NoError(t, g.CreateElements(
		[]*graph.Node{{ID: "a"}, {ID: "b"}, {ID: "c"}},
		[]*graph.Relationship{
			{ID: "r1", Type: "T", StartNode: "a", EndNode: "b"},
			{ID: "r2", Type: "T", StartNode: "b", EndNode: "c"},
		}, nil))
	runner := NewRunner(g)

	records := runRecords(t, runner, "MATCH (a)-[r]-(b)-[p]-(c) RETURN a, r, b, p, c", nil)
	require.NotEmpty(t, records)
	for _, rec := range records {
		assert.NotEqual(t, relID(t, rec["r"]), relID(t, rec["p"]))
	}
}

func TestOrderingStability(t *testing.T) {
	g := graph.NewMemoryGraph()
	require.NoError(t, g.CreateElements([]*graph.Node{
		{ID: "1", Properties: map[string]any{"name": "a", "rank": 1}},
		{ID: "2", Properties: map[string]any{"name": "b", "rank": 1}},
		{ID: "3", Properties: map[string]any{"name": "c", "rank": 1}},
	}, nil, nil))
	runner := NewRunner(g)

	records := runRecords(t, runner,
		"MATCH (n) RETURN n.name AS name, n.rank AS rank ORDER BY rank", nil)
	require.Len(t, records, 3)
	// All ranks tie; name order reflects the pre-sort order, which OrderBy
	// must not disturb. Establish the pre-sort order first.
	unsorted := runRecords(t, runner, "MATCH (n) RETURN n.name AS name", nil)
	for i := range records {
		assert.Equal(t, unsorted[i]["name"], records[i]["name"])
	}
}

// countingModel counts read operations reaching the underlying model.
type countingModel struct {
	*graph.MemoryGraph
	reads atomic.Int64
}

func (m *countingModel) Nodes() graph.NodeIterator {
	m.reads.Add(1)
	return m.MemoryGraph.Nodes()
}

func (m *countingModel) FilterNodes(f graph.NodeFilter) graph.NodeIterator {
	m.reads.Add(1)
	return m.MemoryGraph.FilterNodes(f)
}

func (m *countingModel) Relationships() graph.TripleIterator {
	m.reads.Add(1)
	return m.MemoryGraph.Relationships()
}

func (m *countingModel) Paths(s graph.NodeFilter, r graph.RelFilter, e graph.NodeFilter, d graph.Direction) graph.TripleIterator {
	m.reads.Add(1)
	return m.MemoryGraph.Paths(s, r, e, d)
}

func TestCacheIdempotence(t *testing.T) {
	model := &countingModel{MemoryGraph: knowsGraph(t)}
	runner := NewRunner(model)

	result, err := runner.Run(context.Background(), "MATCH (a)-[r]->(b) RETURN a, r, b", nil)
	require.NoError(t, err)

	cached, err := result.Cache()
	require.NoError(t, err)
	readsAfterCache := model.reads.Load()

	first, err := cached.Collect()
	require.NoError(t, err)
	second, err := cached.Collect()
	require.NoError(t, err)
	assert.Equal(t, first, second)
	require.Len(t, first, 1)

	// Result iterators after Cache replay the buffer too.
	records, err := result.Records().Collect()
	require.NoError(t, err)
	assert.Len(t, records, 1)

	assert.Equal(t, readsAfterCache, model.reads.Load(),
		"the graph model must not be consulted after the first pass")
}

func TestRecordsFreshIteratorPerCall(t *testing.T) {
	runner := NewRunner(knowsGraph(t))
	result, err := runner.Run(context.Background(), "MATCH (n:Person) RETURN n", nil)
	require.NoError(t, err)

	first, err := result.Records().Collect()
	require.NoError(t, err)
	second, err := result.Records().Collect()
	require.NoError(t, err)
	assert.Len(t, first, 2)
	assert.Len(t, second, 2)
}

func TestRunWithParameters(t *testing.T) {
	runner := NewRunner(knowsGraph(t))
	records := runRecords(t, runner,
		"MATCH (n:Person) WHERE n.name = $who RETURN n", map[string]any{"who": "B"})
	require.Len(t, records, 1)
	assert.Equal(t, graph.NodeID("2"), nodeID(t, records[0]["n"]))
}

func TestInlinePropertyPatternUsesResiduals(t *testing.T) {
	runner := NewRunner(knowsGraph(t))
	records := runRecords(t, runner, "MATCH (n:Person {name: 'A'}) RETURN n", nil)
	require.Len(t, records, 1)
	assert.Equal(t, graph.NodeID("1"), nodeID(t, records[0]["n"]))
}

func TestCreateAndReturn(t *testing.T) {
	g := graph.NewMemoryGraph()
	runner := NewRunner(g)

	records := runRecords(t, runner, "CREATE (n:Person {name: 'Eve'}) RETURN n", nil)
	require.Len(t, records, 1)
	created, ok := records[0]["n"].(*graph.Node)
	require.True(t, ok)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Eve", created.Properties["name"])
	assert.Equal(t, 1, g.NodeCount())
}

func TestCreateRelationshipFromMatch(t *testing.T) {
	g := graph.NewMemoryGraph()
	require.NoError(t, g.CreateElements([]*graph.Node{
		{ID: "1", Labels: []string{"Person"}, Properties: map[string]any{"name": "A"}},
	}, nil, nil))
	runner := NewRunner(g)

	records := runRecords(t, runner,
		"MATCH (a:Person) CREATE (a)-[r:LIKES]->(b:Thing {name: 'Rock'}) RETURN a, r, b", nil)
	require.Len(t, records, 1)

	rel, ok := records[0]["r"].(*graph.Relationship)
	require.True(t, ok)
	assert.Equal(t, "LIKES", rel.Type)
	assert.Equal(t, graph.NodeID("1"), rel.StartNode)
	assert.Equal(t, 2, g.NodeCount())
	assert.Equal(t, 1, g.RelationshipCount())
}

func TestUnwind(t *testing.T) {
	runner := NewRunner(graph.NewMemoryGraph())
	records := runRecords(t, runner, "UNWIND [3, 1, 2] AS x RETURN x ORDER BY x", nil)
	require.Len(t, records, 3)
	assert.Equal(t, int64(1), records[0]["x"])
	assert.Equal(t, int64(2), records[1]["x"])
	assert.Equal(t, int64(3), records[2]["x"])
}

func TestReturnWithoutMatch(t *testing.T) {
	runner := NewRunner(graph.NewMemoryGraph())
	records := runRecords(t, runner, "RETURN 1 + 2 AS sum", nil)
	require.Len(t, records, 1)
	assert.Equal(t, int64(3), records[0]["sum"])
}

func TestWithPipeline(t *testing.T) {
	runner := NewRunner(knowsGraph(t))
	records := runRecords(t, runner,
		"MATCH (n:Person) WITH n.name AS name WHERE name = 'A' RETURN name", nil)
	require.Len(t, records, 1)
	assert.Equal(t, "A", records[0]["name"])
}

func TestOptionalMatchPadsWithNulls(t *testing.T) {
	g := graph.NewMemoryGraph()
	require.NoError(t, g.CreateElements(
		[]*graph.Node{
			{ID: "1", Labels: []string{"Person"}, Properties: map[string]any{"name": "A"}},
			{ID: "2", Labels: []string{"Person"}, Properties: map[string]any{"name": "B"}},
		},
		[]*graph.Relationship{
			{ID: "10", Type: "KNOWS", StartNode: "1", EndNode: "2"},
		}, nil))
	runner := NewRunner(g)

	records := runRecords(t, runner,
		"MATCH (n:Person) OPTIONAL MATCH (n)-[r:KNOWS]->(m) RETURN n, m ORDER BY id(n)", nil)
	require.Len(t, records, 2)
	assert.Equal(t, graph.NodeID("2"), nodeID(t, records[0]["m"]))
	assert.Nil(t, records[1]["m"])
}

func TestCallProcedure(t *testing.T) {
	g := graph.NewMemoryGraph()
	g.RegisterProcedure(&graph.Procedure{
		Namespace: "db",
		Name:      "labels",
		Outputs:   []graph.FieldSpec{{Name: "label", Type: "STRING"}},
		Call: func(args []any) (graph.RowStream, error) {
			return graph.StaticRows([][]any{{"Person"}, {"Thing"}}), nil
		},
	})
	runner := NewRunner(g)

	result, err := runner.Run(context.Background(), "CALL db.labels() YIELD label RETURN label", nil)
	require.NoError(t, err)
	assert.Equal(t, Schema{{Name: "label", Type: StringType}}, result.Schema())

	records, err := result.Records().Collect()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Person", records[0]["label"])
}

func TestCallUnknownProcedure(t *testing.T) {
	runner := NewRunner(graph.NewMemoryGraph())
	_, err := runner.Run(context.Background(), "CALL db.missing() YIELD x RETURN x", nil)
	var planErr *PlanError
	assert.ErrorAs(t, err, &planErr)
}

func TestSkipLimitThroughRunner(t *testing.T) {
	g := graph.NewMemoryGraph()
	require.NoError(t, g.CreateElements([]*graph.Node{
		{ID: "1", Properties: map[string]any{"v": 1}},
		{ID: "2", Properties: map[string]any{"v": 2}},
		{ID: "3", Properties: map[string]any{"v": 3}},
		{ID: "4", Properties: map[string]any{"v": 4}},
	}, nil, nil))
	runner := NewRunner(g)

	records := runRecords(t, runner,
		"MATCH (n) RETURN n.v AS v ORDER BY v SKIP 1 LIMIT 2", nil)
	require.Len(t, records, 2)
	assert.Equal(t, int64(2), records[0]["v"])
	assert.Equal(t, int64(3), records[1]["v"])
}

func TestDistinctThroughRunner(t *testing.T) {
	g := graph.NewMemoryGraph()
	require.NoError(t, g.CreateElements([]*graph.Node{
		{ID: "1", Properties: map[string]any{"name": "x"}},
		{ID: "2", Properties: map[string]any{"name": "x"}},
		{ID: "3", Properties: map[string]any{"name": "y"}},
	}, nil, nil))
	runner := NewRunner(g)

	records := runRecords(t, runner, "MATCH (n) RETURN DISTINCT n.name AS name ORDER BY name", nil)
	require.Len(t, records, 2)
	assert.Equal(t, "x", records[0]["name"])
	assert.Equal(t, "y", records[1]["name"])
}

func TestStaticErrorsSurfaceFromRun(t *testing.T) {
	runner := NewRunner(graph.NewMemoryGraph())

	_, err := runner.Run(context.Background(), "MATCH (n RETURN n", nil)
	var parseErr *ParsingError
	assert.ErrorAs(t, err, &parseErr)

	_, err = runner.Run(context.Background(), "MATCH (n) RETURN m", nil)
	var semErr *SemanticError
	assert.ErrorAs(t, err, &semErr)
}

func TestRuntimeErrorsSurfaceFromIterator(t *testing.T) {
	runner := NewRunner(knowsGraph(t))
	result, err := runner.Run(context.Background(), "MATCH (n:Person) RETURN n.name + 1 AS broken", nil)
	require.NoError(t, err, "type errors on row data are runtime errors")

	_, err = result.Records().Collect()
	var evalErr *EvaluationError
	assert.ErrorAs(t, err, &evalErr)
}

func TestRunHonorsContextCancellation(t *testing.T) {
	runner := NewRunner(knowsGraph(t))
	ctx, cancel := context.WithCancel(context.Background())
	result, err := runner.Run(ctx, "MATCH (n) RETURN n", nil)
	require.NoError(t, err)

	cancel()
	it := result.Records()
	defer it.Close()
	_, _, err = it.Next()
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCompileExposesParseProducts(t *testing.T) {
	runner := NewRunner(graph.NewMemoryGraph())
	parsed, err := runner.Compile("MATCH (n:Person {name: 'A'}) RETURN n")
	require.NoError(t, err)
	assert.NotNil(t, parsed.AST)
	assert.Len(t, parsed.Residual, 1)
	assert.True(t, parsed.Semantics.Known("n"))

	again, err := runner.Compile("MATCH (n:Person {name: 'A'}) RETURN n")
	require.NoError(t, err)
	assert.Same(t, parsed, again)

	hits, _ := runner.ParseCacheStats()
	assert.Equal(t, uint64(1), hits)
}

func TestShowRendersBorderedTable(t *testing.T) {
	runner := NewRunner(knowsGraph(t))
	result, err := runner.Run(context.Background(),
		"MATCH (n:Person) RETURN n.name AS name ORDER BY name", nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, result.Show(&buf, 10))
	out := buf.String()
	assert.Contains(t, out, "┌")
	assert.Contains(t, out, "│ name")
	assert.Contains(t, out, "'A'")
	assert.Contains(t, out, "'B'")
	assert.Contains(t, out, "2 row(s)")

	// The limit truncates displayed rows.
	buf.Reset()
	require.NoError(t, result.Show(&buf, 1))
	assert.Contains(t, buf.String(), "1 row(s)")
	assert.NotContains(t, buf.String(), "'B'")
}

func TestResultPlanIntrospection(t *testing.T) {
	runner := NewRunner(knowsGraph(t))
	result, err := runner.Run(context.Background(), "MATCH (a)-[r]->(b) RETURN a, r, b", nil)
	require.NoError(t, err)

	require.NotNil(t, result.AST())
	require.NotNil(t, result.LogicalPlan())
	require.NotNil(t, result.PhysicalPlan())

	logical := PrettyLogical(result.LogicalPlan())
	assert.Contains(t, logical, "Return(a, r, b)")
	assert.Contains(t, logical, "Expand(")

	physical := PrettyPhysical(result.PhysicalPlan())
	assert.Contains(t, physical, "Select(a, r, b)")
	assert.True(t, strings.Contains(physical, "╙──"))
}
