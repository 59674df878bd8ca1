// Package cypher provides tests for the frame operator algebra.
package cypher

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/cypherframe/pkg/graph"
)

func frameOf(schema Schema, rows ...Row) DataFrame {
	return NewDataFrame(schema, func() RowIterator {
		return &sliceRowIterator{rows: rows}
	})
}

func mustCollect(t *testing.T, df DataFrame) []Row {
	t.Helper()
	rows, err := df.Collect()
	require.NoError(t, err)
	return rows
}

func TestFrameSchemaWithoutConsumption(t *testing.T) {
	consulted := false
	df := NewDataFrame(Schema{{Name: "x", Type: IntegerType}}, func() RowIterator {
		consulted = true
		return &sliceRowIterator{}
	})
	assert.Equal(t, []string{"x"}, df.Schema().Names())
	assert.False(t, consulted, "schema must not consume records")
}

func TestFrameRecordsIndependentIterators(t *testing.T) {
	df := frameOf(Schema{{Name: "x", Type: IntegerType}}, Row{int64(1)}, Row{int64(2)})

	a := df.Records()
	b := df.Records()
	defer a.Close()
	defer b.Close()

	rowA, ok, err := a.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), rowA[0])

	// The second iterator starts from the beginning regardless.
	rowB, ok, err := b.Next()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(1), rowB[0])
}

func TestRowLengthMatchesSchema(t *testing.T) {
	op := NewFrameOperator()
	df := frameOf(Schema{{Name: "a", Type: IntegerType}, {Name: "b", Type: StringType}},
		Row{int64(1), "x"}, Row{int64(2), "y"})

	out, err := op.Select(df, []ColumnSelection{{Source: "b"}, {Source: "a", Alias: "n"}})
	require.NoError(t, err)
	for _, row := range mustCollect(t, out) {
		assert.Len(t, row, len(out.Schema()))
	}
}

func TestSelectAliasAndType(t *testing.T) {
	op := NewFrameOperator()
	df := frameOf(Schema{{Name: "a", Type: IntegerType}, {Name: "b", Type: StringType}},
		Row{int64(1), "x"})

	out, err := op.Select(df, []ColumnSelection{{Source: "b", Alias: "label"}, {Source: "a"}})
	require.NoError(t, err)
	require.Equal(t, Schema{{Name: "label", Type: StringType}, {Name: "a", Type: IntegerType}}, out.Schema())

	rows := mustCollect(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, Row{"x", int64(1)}, rows[0])
}

func TestSelectUnknownColumn(t *testing.T) {
	op := NewFrameOperator()
	df := frameOf(Schema{{Name: "a", Type: IntegerType}})
	_, err := op.Select(df, []ColumnSelection{{Source: "nope"}})
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "nope", schemaErr.Column)
}

func TestSelectIdentityIsNoOp(t *testing.T) {
	op := NewFrameOperator()
	df := frameOf(Schema{{Name: "a", Type: IntegerType}, {Name: "b", Type: StringType}},
		Row{int64(1), "x"}, Row{int64(2), "y"})

	identity, err := op.Select(df, []ColumnSelection{{Source: "a"}, {Source: "b"}})
	require.NoError(t, err)
	assert.Equal(t, df.Schema(), identity.Schema())
	assert.Equal(t, mustCollect(t, df), mustCollect(t, identity))
}

func TestProjectSchemaAndRows(t *testing.T) {
	op := NewFrameOperator()
	ev := NewEvaluator()
	df := frameOf(Schema{{Name: "x", Type: IntegerType}}, Row{int64(2)}, Row{int64(5)})

	out := op.Project(df, []ProjectItem{
		{Name: "doubled", Expr: &Arithmetic{Left: &Variable{Name: "x"}, Operator: "*", Right: &Literal{Value: int64(2)}}},
		{Name: "big", Expr: &Comparison{Left: &Variable{Name: "x"}, Operator: ">", Right: &Literal{Value: int64(3)}}},
	}, ev, &EvalContext{})

	require.Equal(t, Schema{{Name: "doubled", Type: IntegerType}, {Name: "big", Type: BooleanType}}, out.Schema())
	rows := mustCollect(t, out)
	assert.Equal(t, []Row{{int64(4), false}, {int64(10), true}}, rows)
}

func TestFilterKeepsOnlyLogicalTrue(t *testing.T) {
	op := NewFrameOperator()
	ev := NewEvaluator()
	// One row compares true, one false, one against null (filtered like
	// false).
	df := frameOf(Schema{{Name: "x", Type: AnyType}}, Row{int64(5)}, Row{int64(1)}, Row{nil})

	out := op.Filter(df, &Comparison{Left: &Variable{Name: "x"}, Operator: ">", Right: &Literal{Value: int64(3)}}, ev, &EvalContext{})
	rows := mustCollect(t, out)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(5), rows[0][0])
}

func TestSkipTakeWindows(t *testing.T) {
	op := NewFrameOperator()
	schema := Schema{{Name: "x", Type: IntegerType}}
	var rows []Row
	for i := 0; i < 10; i++ {
		rows = append(rows, Row{int64(i)})
	}
	df := frameOf(schema, rows...)

	// df.skip(n).take(m) == records[n : n+m]
	windowed := op.Take(op.Skip(df, 3), 4)
	got := mustCollect(t, windowed)
	require.Len(t, got, 4)
	for i, row := range got {
		assert.Equal(t, int64(3+i), row[0])
	}

	assert.Empty(t, mustCollect(t, op.Skip(df, 100)))
	assert.Empty(t, mustCollect(t, op.Take(df, 0)))
	assert.Len(t, mustCollect(t, op.Take(df, 100)), 10)
}

func TestDistinctPreservesFirstOccurrenceOrder(t *testing.T) {
	op := NewFrameOperator()
	schema := Schema{{Name: "a", Type: StringType}, {Name: "b", Type: IntegerType}}
	df := frameOf(schema,
		Row{"x", int64(1)},
		Row{"y", int64(1)},
		Row{"x", int64(1)},
		Row{"x", int64(2)},
		Row{"y", int64(1)},
	)

	rows := mustCollect(t, op.Distinct(df))
	assert.Equal(t, []Row{
		{"x", int64(1)},
		{"y", int64(1)},
		{"x", int64(2)},
	}, rows)

	// No duplicates remain.
	seen := make(map[string]bool)
	for _, row := range rows {
		key := fmt.Sprintf("%v", row)
		assert.False(t, seen[key])
		seen[key] = true
	}
}

func TestOrderByStability(t *testing.T) {
	op := NewFrameOperator()
	schema := Schema{{Name: "name", Type: StringType}, {Name: "rank", Type: IntegerType}}
	df := frameOf(schema,
		Row{"a", int64(1)},
		Row{"b", int64(1)},
		Row{"c", int64(1)},
	)

	// Equal keys keep their input order.
	out, err := op.OrderBy(df, []SortKey{{Column: "rank", Ascending: true}})
	require.NoError(t, err)
	rows := mustCollect(t, out)
	assert.Equal(t, []Row{{"a", int64(1)}, {"b", int64(1)}, {"c", int64(1)}}, rows)
}

func TestOrderByMultiKeyAndDescending(t *testing.T) {
	op := NewFrameOperator()
	schema := Schema{{Name: "g", Type: StringType}, {Name: "v", Type: IntegerType}}
	df := frameOf(schema,
		Row{"b", int64(1)},
		Row{"a", int64(2)},
		Row{"a", int64(1)},
		Row{"b", int64(2)},
	)

	out, err := op.OrderBy(df, []SortKey{
		{Column: "g", Ascending: true},
		{Column: "v", Ascending: false},
	})
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{"a", int64(2)},
		{"a", int64(1)},
		{"b", int64(2)},
		{"b", int64(1)},
	}, mustCollect(t, out))
}

func TestOrderByNilKeysMeansAllColumnsAscending(t *testing.T) {
	op := NewFrameOperator()
	schema := Schema{{Name: "a", Type: IntegerType}, {Name: "b", Type: IntegerType}}
	df := frameOf(schema,
		Row{int64(2), int64(1)},
		Row{int64(1), int64(2)},
		Row{int64(1), int64(1)},
	)

	out, err := op.OrderBy(df, nil)
	require.NoError(t, err)
	assert.Equal(t, []Row{
		{int64(1), int64(1)},
		{int64(1), int64(2)},
		{int64(2), int64(1)},
	}, mustCollect(t, out))
}

func TestOrderByNullsLastAscending(t *testing.T) {
	op := NewFrameOperator()
	schema := Schema{{Name: "x", Type: AnyType}}
	df := frameOf(schema, Row{nil}, Row{int64(2)}, Row{int64(1)})

	out, err := op.OrderBy(df, []SortKey{{Column: "x", Ascending: true}})
	require.NoError(t, err)
	assert.Equal(t, []Row{{int64(1)}, {int64(2)}, {nil}}, mustCollect(t, out))

	out, err = op.OrderBy(df, []SortKey{{Column: "x", Ascending: false}})
	require.NoError(t, err)
	assert.Equal(t, []Row{{nil}, {int64(2)}, {int64(1)}}, mustCollect(t, out))
}

func TestOrderByUnknownColumn(t *testing.T) {
	op := NewFrameOperator()
	df := frameOf(Schema{{Name: "a", Type: IntegerType}})
	_, err := op.OrderBy(df, []SortKey{{Column: "zz", Ascending: true}})
	var schemaErr *SchemaError
	assert.ErrorAs(t, err, &schemaErr)
}

func TestJoinSchemaAndRows(t *testing.T) {
	op := NewFrameOperator()
	left := frameOf(Schema{{Name: "k", Type: StringType}, {Name: "l", Type: IntegerType}},
		Row{"a", int64(1)},
		Row{"b", int64(2)},
	)
	right := frameOf(Schema{{Name: "k", Type: StringType}, {Name: "r", Type: IntegerType}},
		Row{"b", int64(20)},
		Row{"a", int64(10)},
		Row{"c", int64(30)},
	)

	out := op.Join(left, right)
	require.Equal(t, Schema{
		{Name: "k", Type: StringType},
		{Name: "l", Type: IntegerType},
		{Name: "r", Type: IntegerType},
	}, out.Schema())

	rows := mustCollect(t, out)
	require.Len(t, rows, 2)
	byKey := make(map[string]Row)
	for _, row := range rows {
		byKey[row[0].(string)] = row
	}
	assert.Equal(t, Row{"a", int64(1), int64(10)}, byKey["a"])
	assert.Equal(t, Row{"b", int64(2), int64(20)}, byKey["b"])
}

func TestJoinNoSharedColumnsIsCartesian(t *testing.T) {
	op := NewFrameOperator()
	left := frameOf(Schema{{Name: "a", Type: IntegerType}}, Row{int64(1)}, Row{int64(2)})
	right := frameOf(Schema{{Name: "b", Type: IntegerType}}, Row{int64(10)}, Row{int64(20)})

	rows := mustCollect(t, op.Join(left, right))
	assert.Len(t, rows, 4)
}

func TestJoinRelationshipUniqueness(t *testing.T) {
	op := NewFrameOperator()
	r1 := &graph.Relationship{ID: "r1", Type: "T"}
	r2 := &graph.Relationship{ID: "r2", Type: "T"}
	node := &graph.Node{ID: "b"}

	left := frameOf(Schema{{Name: "b", Type: NodeType}, {Name: "r", Type: RelationshipType}},
		Row{node, r1})
	right := frameOf(Schema{{Name: "b", Type: NodeType}, {Name: "p", Type: RelationshipType}},
		Row{node, r1},
		Row{node, r2})

	rows := mustCollect(t, op.Join(left, right))
	// The (r1, r1) pairing is dropped; only (r1, r2) survives.
	require.Len(t, rows, 1)
	assert.Equal(t, "r1", string(rows[0][1].(*graph.Relationship).ID))
	assert.Equal(t, "r2", string(rows[0][2].(*graph.Relationship).ID))
}

func TestJoinLargeLeftSwitchesBuildSide(t *testing.T) {
	op := NewFrameOperator()
	schema := Schema{{Name: "k", Type: IntegerType}}
	var leftRows []Row
	for i := 0; i < joinLookahead+10; i++ {
		leftRows = append(leftRows, Row{int64(i % 7)})
	}
	left := frameOf(schema, leftRows...)
	right := frameOf(Schema{{Name: "k", Type: IntegerType}, {Name: "v", Type: StringType}},
		Row{int64(3), "three"})

	rows := mustCollect(t, op.Join(left, right))
	for _, row := range rows {
		assert.Equal(t, int64(3), row[0])
		assert.Equal(t, "three", row[1])
	}
	assert.NotEmpty(t, rows)
}

func TestLeftOuterJoinPadsUnmatched(t *testing.T) {
	op := NewFrameOperator()
	left := frameOf(Schema{{Name: "k", Type: StringType}},
		Row{"a"}, Row{"b"})
	right := frameOf(Schema{{Name: "k", Type: StringType}, {Name: "v", Type: IntegerType}},
		Row{"a", int64(1)})

	rows := mustCollect(t, op.LeftOuterJoin(left, right))
	require.Len(t, rows, 2)
	assert.Equal(t, Row{"a", int64(1)}, rows[0])
	assert.Equal(t, Row{"b", nil}, rows[1])
}

func TestCachedFrameReplays(t *testing.T) {
	invocations := 0
	df := NewDataFrame(Schema{{Name: "x", Type: IntegerType}}, func() RowIterator {
		invocations++
		return &sliceRowIterator{rows: []Row{{int64(1)}, {int64(2)}}}
	})

	cached, err := df.Cached()
	require.NoError(t, err)
	require.Equal(t, 1, invocations)

	first := mustCollect(t, cached)
	second := mustCollect(t, cached)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, invocations, "cached frame must not re-invoke the producer")
}
