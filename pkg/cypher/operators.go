// Package cypher - the data frame operator algebra.
//
// All operators are lazy: the result schema is computed eagerly, the record
// producer is deferred. Operators preserve the underlying iteration order
// except Distinct and OrderBy (which reorder) and Join (whose output order
// is the probe side's order).
package cypher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/cypherframe/pkg/graph"
)

// joinLookahead bounds how many left rows Join buffers before deciding the
// hash build side. A left side that fits in the bound becomes the build
// side without the right side ever being forced.
const joinLookahead = 1024

// ColumnSelection names a source column and an optional alias.
type ColumnSelection struct {
	Source string
	Alias  string // "" keeps the source name
}

// ProjectItem names a computed output column.
type ProjectItem struct {
	Name string
	Expr Expression
}

// SortKey orders by one column.
type SortKey struct {
	Column    string
	Ascending bool
}

// FrameOperator implements the operator algebra. It is stateless; one
// instance is shared by all plans of a Runner.
type FrameOperator struct{}

// NewFrameOperator creates the operator set.
func NewFrameOperator() *FrameOperator {
	return &FrameOperator{}
}

// Select projects existing columns by name, renaming through aliases.
// The result schema uses the alias when present and preserves the source
// column's type. An unknown source name fails with SchemaError.
func (op *FrameOperator) Select(df DataFrame, columns []ColumnSelection) (DataFrame, error) {
	schema := df.Schema()
	indexes := make([]int, len(columns))
	out := make(Schema, len(columns))
	for i, sel := range columns {
		idx := schema.IndexOf(sel.Source)
		if idx < 0 {
			return DataFrame{}, &SchemaError{Column: sel.Source}
		}
		indexes[i] = idx
		name := sel.Alias
		if name == "" {
			name = sel.Source
		}
		out[i] = Column{Name: name, Type: schema[idx].Type}
	}

	return NewDataFrame(out, func() RowIterator {
		inner := df.Records()
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				row, ok, err := inner.Next()
				if err != nil || !ok {
					return nil, false, err
				}
				projected := make(Row, len(indexes))
				for i, idx := range indexes {
					projected[i] = row[idx]
				}
				return projected, true, nil
			},
			close: inner.Close,
		}
	}), nil
}

// Project computes new columns by evaluating expressions against each row.
// Result column types come from static inference over the input schema.
func (op *FrameOperator) Project(df DataFrame, items []ProjectItem, ev *Evaluator, base *EvalContext) DataFrame {
	schema := df.Schema()
	env := schema.TypeEnv()
	out := make(Schema, len(items))
	for i, item := range items {
		out[i] = Column{Name: item.Name, Type: ev.TypeOf(item.Expr, env)}
	}

	return NewDataFrame(out, func() RowIterator {
		inner := df.Records()
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				row, ok, err := inner.Next()
				if err != nil || !ok {
					return nil, false, err
				}
				ctx := base.child(bindRow(schema, row))
				projected := make(Row, len(items))
				for i, item := range items {
					v, err := ev.Eval(item.Expr, ctx)
					if err != nil {
						return nil, false, err
					}
					projected[i] = v
				}
				return projected, true, nil
			},
			close: inner.Close,
		}
	})
}

// Filter keeps rows for which the predicate evaluates to logical true.
// Null and false are indistinguishable to downstream.
func (op *FrameOperator) Filter(df DataFrame, predicate Expression, ev *Evaluator, base *EvalContext) DataFrame {
	schema := df.Schema()
	return NewDataFrame(schema.Clone(), func() RowIterator {
		inner := df.Records()
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				for {
					row, ok, err := inner.Next()
					if err != nil || !ok {
						return nil, false, err
					}
					ctx := base.child(bindRow(schema, row))
					verdict, err := ev.Eval(predicate, ctx)
					if err != nil {
						return nil, false, err
					}
					if logicalTrue(verdict) {
						return row, true, nil
					}
				}
			},
			close: inner.Close,
		}
	})
}

// Skip drops the first n rows; skipping past the end yields empty.
func (op *FrameOperator) Skip(df DataFrame, n int64) DataFrame {
	return NewDataFrame(df.Schema().Clone(), func() RowIterator {
		inner := df.Records()
		skipped := int64(0)
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				for skipped < n {
					_, ok, err := inner.Next()
					if err != nil || !ok {
						return nil, false, err
					}
					skipped++
				}
				return inner.Next()
			},
			close: inner.Close,
		}
	})
}

// Take keeps the first n rows; take(0) yields empty, take beyond size
// yields all.
func (op *FrameOperator) Take(df DataFrame, n int64) DataFrame {
	return NewDataFrame(df.Schema().Clone(), func() RowIterator {
		inner := df.Records()
		taken := int64(0)
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				if taken >= n {
					return nil, false, nil
				}
				row, ok, err := inner.Next()
				if err != nil || !ok {
					return nil, false, err
				}
				taken++
				return row, true, nil
			},
			close: inner.Close,
		}
	})
}

// Distinct emits each distinct row once, preserving first-occurrence
// order. Row equality is element-wise value equality. Seen keys buffer for
// the lifetime of one iterator.
func (op *FrameOperator) Distinct(df DataFrame) DataFrame {
	return NewDataFrame(df.Schema().Clone(), func() RowIterator {
		inner := df.Records()
		seen := make(map[string]struct{})
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				for {
					row, ok, err := inner.Next()
					if err != nil || !ok {
						return nil, false, err
					}
					key := rowKey(row)
					if _, dup := seen[key]; dup {
						continue
					}
					seen[key] = struct{}{}
					return row, true, nil
				}
			},
			close: inner.Close,
		}
	})
}

// OrderBy sorts the frame by the given keys, left to right; the first
// unequal key decides, with ascending or descending applied per key. A nil
// key list means all columns ascending. The sort is stable. Null orders
// after any non-null value ascending; this is fixed and documented
// behavior, not an accident of the comparator.
func (op *FrameOperator) OrderBy(df DataFrame, keys []SortKey) (DataFrame, error) {
	schema := df.Schema()
	if keys == nil {
		keys = make([]SortKey, len(schema))
		for i, c := range schema {
			keys[i] = SortKey{Column: c.Name, Ascending: true}
		}
	}
	indexes := make([]int, len(keys))
	for i, k := range keys {
		idx := schema.IndexOf(k.Column)
		if idx < 0 {
			return DataFrame{}, &SchemaError{Column: k.Column}
		}
		indexes[i] = idx
	}

	return NewDataFrame(schema.Clone(), func() RowIterator {
		inner := df.Records()
		var rows []Row
		var loadErr error
		loaded := false
		return &funcRowIterator{
			next: func() (Row, bool, error) {
				if !loaded {
					loaded = true
					for {
						row, ok, err := inner.Next()
						if err != nil {
							loadErr = err
							break
						}
						if !ok {
							break
						}
						rows = append(rows, row)
					}
					inner.Close()
					if loadErr == nil {
						sort.SliceStable(rows, func(i, j int) bool {
							for k, idx := range indexes {
								c := CompareValues(rows[i][idx], rows[j][idx])
								if c == 0 {
									continue
								}
								if keys[k].Ascending {
									return c < 0
								}
								return c > 0
							}
							return false
						})
					}
				}
				if loadErr != nil {
					return nil, false, loadErr
				}
				if len(rows) == 0 {
					return nil, false, nil
				}
				row := rows[0]
				rows = rows[1:]
				return row, true, nil
			},
			close: inner.Close,
		}
	}), nil
}

// Join computes an inner equi-join on the intersection of column names.
//
// The result schema is fixed as a's columns followed by b's columns minus
// the join columns; output order is the probe side's order. Side selection
// is a bounded-lookahead heuristic: up to joinLookahead rows of a are
// buffered, and if a fits it becomes the hash build side with b streamed;
// otherwise b is materialized as the build side and a is streamed.
//
// Join output additionally enforces relationship uniqueness: any row in
// which two columns hold the same relationship identity is dropped. This
// realizes the Cypher rule that distinct pattern relationships bind to
// distinct edges.
func (op *FrameOperator) Join(a, b DataFrame) DataFrame {
	aSchema, bSchema := a.Schema(), b.Schema()

	var joinA, joinB []int
	for i, c := range aSchema {
		if j := bSchema.IndexOf(c.Name); j >= 0 {
			joinA = append(joinA, i)
			joinB = append(joinB, j)
		}
	}
	var carryB []int
	out := aSchema.Clone()
	for j, c := range bSchema {
		if aSchema.IndexOf(c.Name) < 0 {
			carryB = append(carryB, j)
			out = append(out, c)
		}
	}

	merge := func(aRow, bRow Row) Row {
		merged := make(Row, 0, len(out))
		merged = append(merged, aRow...)
		for _, j := range carryB {
			merged = append(merged, bRow[j])
		}
		return merged
	}

	return NewDataFrame(out, func() RowIterator {
		return newJoinIterator(a, b, joinA, joinB, merge)
	})
}

// LeftOuterJoin joins like Join but keeps unmatched left rows, padding the
// right side's carried columns with nulls. The right side is always the
// hash build side so every left row streams through exactly once. A left
// row whose only matches are dropped by relationship uniqueness counts as
// unmatched and is emitted padded.
func (op *FrameOperator) LeftOuterJoin(a, b DataFrame) DataFrame {
	aSchema, bSchema := a.Schema(), b.Schema()

	var joinA, joinB []int
	for i, c := range aSchema {
		if j := bSchema.IndexOf(c.Name); j >= 0 {
			joinA = append(joinA, i)
			joinB = append(joinB, j)
		}
	}
	var carryB []int
	out := aSchema.Clone()
	for j, c := range bSchema {
		if aSchema.IndexOf(c.Name) < 0 {
			carryB = append(carryB, j)
			out = append(out, c)
		}
	}

	return NewDataFrame(out, func() RowIterator {
		probe := a.Records()
		var table map[string][]Row
		var buildErr error
		var matches []Row
		built := false

		build := func() {
			built = true
			table = make(map[string][]Row)
			bIt := b.Records()
			defer bIt.Close()
			for {
				row, ok, err := bIt.Next()
				if err != nil {
					buildErr = err
					return
				}
				if !ok {
					return
				}
				key := keyOf(row, joinB)
				table[key] = append(table[key], row)
			}
		}

		return &funcRowIterator{
			next: func() (Row, bool, error) {
				if !built {
					build()
				}
				if buildErr != nil {
					return nil, false, buildErr
				}
				for {
					if len(matches) > 0 {
						row := matches[0]
						matches = matches[1:]
						return row, true, nil
					}
					aRow, ok, err := probe.Next()
					if err != nil || !ok {
						return nil, false, err
					}
					for _, bRow := range table[keyOf(aRow, joinA)] {
						merged := make(Row, 0, len(out))
						merged = append(merged, aRow...)
						for _, j := range carryB {
							merged = append(merged, bRow[j])
						}
						if hasDuplicateRelationship(merged) {
							continue
						}
						matches = append(matches, merged)
					}
					if len(matches) == 0 {
						padded := make(Row, len(out))
						copy(padded, aRow)
						return padded, true, nil
					}
				}
			},
			close: probe.Close,
		}
	})
}

// joinIterator drives the hash join lazily.
type joinIterator struct {
	a, b         DataFrame
	joinA, joinB []int
	merge        func(aRow, bRow Row) Row

	started bool
	failErr error

	// build table: join key -> build-side rows
	table map[string][]Row
	// true when a is the build side and b streams (probe = b)
	buildIsA bool

	probe   RowIterator
	pending []Row // buffered a-rows replayed as probe input when b builds
	matches []Row // merged rows awaiting emission for the current probe row
	closed  bool
}

func newJoinIterator(a, b DataFrame, joinA, joinB []int, merge func(Row, Row) Row) *joinIterator {
	return &joinIterator{a: a, b: b, joinA: joinA, joinB: joinB, merge: merge}
}

func (it *joinIterator) start() {
	it.started = true

	aIt := it.a.Records()
	var prefix []Row
	aDone := false
	for int64(len(prefix)) < joinLookahead {
		row, ok, err := aIt.Next()
		if err != nil {
			aIt.Close()
			it.failErr = err
			return
		}
		if !ok {
			aDone = true
			break
		}
		prefix = append(prefix, row)
	}

	it.table = make(map[string][]Row)
	if aDone {
		// a fits in the lookahead: build on a, probe b.
		aIt.Close()
		it.buildIsA = true
		for _, row := range prefix {
			key := keyOf(row, it.joinA)
			it.table[key] = append(it.table[key], row)
		}
		it.probe = it.b.Records()
		return
	}

	// a is large: materialize b as the build side and stream the rest of a
	// behind the buffered prefix.
	bIt := it.b.Records()
	for {
		row, ok, err := bIt.Next()
		if err != nil {
			bIt.Close()
			aIt.Close()
			it.failErr = err
			return
		}
		if !ok {
			break
		}
		key := keyOf(row, it.joinB)
		it.table[key] = append(it.table[key], row)
	}
	bIt.Close()
	it.buildIsA = false
	it.pending = prefix
	it.probe = aIt
}

func (it *joinIterator) nextProbeRow() (Row, bool, error) {
	if len(it.pending) > 0 {
		row := it.pending[0]
		it.pending = it.pending[1:]
		return row, true, nil
	}
	return it.probe.Next()
}

func (it *joinIterator) Next() (Row, bool, error) {
	if it.closed {
		return nil, false, nil
	}
	if !it.started {
		it.start()
	}
	if it.failErr != nil {
		return nil, false, it.failErr
	}

	for {
		if len(it.matches) > 0 {
			row := it.matches[0]
			it.matches = it.matches[1:]
			return row, true, nil
		}

		probeRow, ok, err := it.nextProbeRow()
		if err != nil || !ok {
			return nil, false, err
		}

		var key string
		if it.buildIsA {
			key = keyOf(probeRow, it.joinB)
		} else {
			key = keyOf(probeRow, it.joinA)
		}
		for _, buildRow := range it.table[key] {
			var merged Row
			if it.buildIsA {
				merged = it.merge(buildRow, probeRow)
			} else {
				merged = it.merge(probeRow, buildRow)
			}
			if hasDuplicateRelationship(merged) {
				continue
			}
			it.matches = append(it.matches, merged)
		}
	}
}

func (it *joinIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.probe != nil {
		return it.probe.Close()
	}
	return nil
}

// keyOf encodes the values at the given positions into a hashable key.
func keyOf(row Row, positions []int) string {
	var sb strings.Builder
	for _, idx := range positions {
		encodeValue(&sb, row[idx])
		sb.WriteByte(0x1f)
	}
	return sb.String()
}

// rowKey encodes a whole row for distinct-row bookkeeping.
func rowKey(row Row) string {
	var sb strings.Builder
	for _, v := range row {
		encodeValue(&sb, v)
		sb.WriteByte(0x1f)
	}
	return sb.String()
}

// encodeValue writes a collision-safe encoding of a value. Entities encode
// by identity; numbers encode uniformly across integer and float forms so
// 3 and 3.0 key identically, matching ValuesEqual.
func encodeValue(sb *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		sb.WriteString("0:")
	case bool:
		fmt.Fprintf(sb, "b:%t", val)
	case int64:
		fmt.Fprintf(sb, "n:%g", float64(val))
	case float64:
		fmt.Fprintf(sb, "n:%g", val)
	case string:
		fmt.Fprintf(sb, "s:%d:%s", len(val), val)
	case *graph.Node:
		fmt.Fprintf(sb, "N:%s", val.ID)
	case *graph.Relationship:
		fmt.Fprintf(sb, "R:%s", val.ID)
	case graph.PathTriple:
		fmt.Fprintf(sb, "P:%s:%t", val.Rel.ID, val.Reversed)
	case []any:
		sb.WriteString("l:[")
		for _, item := range val {
			encodeValue(sb, item)
			sb.WriteByte(',')
		}
		sb.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteString("m:{")
		for _, k := range keys {
			sb.WriteString(k)
			sb.WriteByte('=')
			encodeValue(sb, val[k])
			sb.WriteByte(',')
		}
		sb.WriteByte('}')
	default:
		fmt.Fprintf(sb, "?:%v", v)
	}
}

// hasDuplicateRelationship reports whether two positions in the row hold
// the same relationship identity.
func hasDuplicateRelationship(row Row) bool {
	var seen map[graph.RelID]struct{}
	for _, v := range row {
		rel, ok := v.(*graph.Relationship)
		if !ok {
			continue
		}
		if seen == nil {
			seen = make(map[graph.RelID]struct{})
		}
		if _, dup := seen[rel.ID]; dup {
			return true
		}
		seen[rel.ID] = struct{}{}
	}
	return false
}

// bindRow maps a row's values by column name for expression evaluation.
func bindRow(schema Schema, row Row) map[string]any {
	bindings := make(map[string]any, len(schema))
	for i, c := range schema {
		bindings[c.Name] = row[i]
	}
	return bindings
}
