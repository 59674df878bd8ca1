// Package cypher - lazy data frames.
//
// A DataFrame couples a schema (ordered, uniquely named, typed columns)
// with a producer that yields a fresh single-pass row iterator on each
// Records call. Operators compose by wrapping producers, never by
// materializing; only Distinct, OrderBy, the join build side, and explicit
// caching buffer rows.
//
// Invariants:
//   - The schema is computable without consuming records.
//   - Records may be called any number of times on a non-cached frame;
//     each call re-invokes the producer, and consuming one iterator does
//     not affect another.
//   - Every row's length equals the schema arity.
package cypher

import "fmt"

// Column is one (name, type) pair in a frame schema.
type Column struct {
	Name string
	Type Type
}

// Schema is an ordered sequence of columns with unique names.
type Schema []Column

// IndexOf returns the position of the named column, or -1.
func (s Schema) IndexOf(name string) int {
	for i, c := range s {
		if c.Name == name {
			return i
		}
	}
	return -1
}

// Names returns the column names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, c := range s {
		names[i] = c.Name
	}
	return names
}

// TypeEnv returns a column-name → type map for static inference.
func (s Schema) TypeEnv() map[string]Type {
	env := make(map[string]Type, len(s))
	for _, c := range s {
		env[c.Name] = c.Type
	}
	return env
}

// Clone returns a copy of the schema.
func (s Schema) Clone() Schema {
	return append(Schema(nil), s...)
}

// String renders the schema for plan output, e.g. "(n: Node, m: Integer)".
func (s Schema) String() string {
	out := "("
	for i, c := range s {
		if i > 0 {
			out += ", "
		}
		out += fmt.Sprintf("%s: %s", c.Name, c.Type)
	}
	return out + ")"
}

// Row is one record; its length equals the owning frame's schema arity.
type Row []any

// RowIterator is a single-pass cursor over rows.
//
// Next returns (row, true, nil) while rows remain and (nil, false, nil) at
// the end. Errors from evaluation or the graph model surface through Next.
// Close releases underlying cursors and must be called on every exit path.
type RowIterator interface {
	Next() (Row, bool, error)
	Close() error
}

// Producer yields a fresh iterator per invocation.
type Producer func() RowIterator

// DataFrame is a lazy, schema-bearing row stream.
type DataFrame struct {
	schema  Schema
	produce Producer
}

// NewDataFrame builds a frame from a schema and a producer.
func NewDataFrame(schema Schema, produce Producer) DataFrame {
	return DataFrame{schema: schema, produce: produce}
}

// EmptyFrame builds a frame with the given schema and no rows.
func EmptyFrame(schema Schema) DataFrame {
	return NewDataFrame(schema, func() RowIterator {
		return &sliceRowIterator{}
	})
}

// Schema returns the frame's schema without consuming records.
func (df DataFrame) Schema() Schema {
	return df.schema
}

// Records returns a fresh single-pass iterator. Callers own Close.
func (df DataFrame) Records() RowIterator {
	return df.produce()
}

// Collect drains a fresh iterator into a slice.
func (df DataFrame) Collect() ([]Row, error) {
	it := df.Records()
	defer it.Close()
	var rows []Row
	for {
		row, ok, err := it.Next()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

// Cached materializes the frame once and returns a frame whose iterators
// replay the buffered rows. The original producer is never invoked again
// through the returned frame.
func (df DataFrame) Cached() (DataFrame, error) {
	rows, err := df.Collect()
	if err != nil {
		return DataFrame{}, err
	}
	schema := df.schema.Clone()
	return NewDataFrame(schema, func() RowIterator {
		return &sliceRowIterator{rows: rows}
	}), nil
}

// sliceRowIterator replays buffered rows.
type sliceRowIterator struct {
	rows []Row
	pos  int
}

func (it *sliceRowIterator) Next() (Row, bool, error) {
	if it.pos >= len(it.rows) {
		return nil, false, nil
	}
	row := it.rows[it.pos]
	it.pos++
	return row, true, nil
}

func (it *sliceRowIterator) Close() error { return nil }

// funcRowIterator adapts a next function and a close hook.
type funcRowIterator struct {
	next   func() (Row, bool, error)
	close  func() error
	closed bool
}

func (it *funcRowIterator) Next() (Row, bool, error) {
	if it.closed {
		return nil, false, nil
	}
	return it.next()
}

func (it *funcRowIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.close != nil {
		return it.close()
	}
	return nil
}
