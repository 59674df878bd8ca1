// Package cypher - query results.
package cypher

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode/utf8"
)

// Result is a lazily evaluated tabular query result with a declared
// schema.
//
// Records returns a fresh single-pass iterator on every call; consuming
// one iterator does not affect another. Cache materializes the rows once,
// after which iterators replay the buffer and the graph model is no longer
// consulted. Plan introspection (AST, logical tree, physical tree) is
// available for debugging.
type Result struct {
	frame  DataFrame
	parsed *ParsedQuery
	lpt    LPTNode
	ppt    PPTNode

	mu     sync.Mutex
	cached *DataFrame
}

// Schema returns the result schema. It is computable without consuming
// records.
func (r *Result) Schema() Schema {
	return r.frame.Schema()
}

// Columns returns the schema's column names in order.
func (r *Result) Columns() []string {
	return r.frame.Schema().Names()
}

// activeFrame prefers the cached frame once Cache has run.
func (r *Result) activeFrame() DataFrame {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil {
		return *r.cached
	}
	return r.frame
}

// Records returns a fresh single-pass iterator of name → value maps.
// Runtime errors (evaluation, graph model) surface from Next. Callers must
// Close the iterator on every exit path so graph-model cursors are
// released.
func (r *Result) Records() *RecordIterator {
	frame := r.activeFrame()
	return &RecordIterator{
		schema: frame.Schema(),
		rows:   frame.Records(),
	}
}

// Rows returns a fresh iterator over positional rows for callers that
// prefer slices to maps.
func (r *Result) Rows() RowIterator {
	return r.activeFrame().Records()
}

// Cache materializes the result once and returns the buffered frame.
// Repeated calls return the same frame; repeated Records calls after Cache
// replay the buffer without touching the graph model.
func (r *Result) Cache() (DataFrame, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cached != nil {
		return *r.cached, nil
	}
	cached, err := r.frame.Cached()
	if err != nil {
		return DataFrame{}, err
	}
	r.cached = &cached
	return cached, nil
}

// AST returns the parsed query for introspection.
func (r *Result) AST() *Query {
	return r.parsed.AST
}

// LogicalPlan returns the logical plan tree.
func (r *Result) LogicalPlan() LPTNode {
	return r.lpt
}

// PhysicalPlan returns the optimized physical plan tree.
func (r *Result) PhysicalPlan() PPTNode {
	return r.ppt
}

// Show writes up to limit rows as a Unicode-bordered table. A nil writer
// defaults to standard output; a non-positive limit shows every row. A
// footer reports how many rows were displayed.
//
//	┌─────────┬─────┐
//	│ name    │ age │
//	├─────────┼─────┤
//	│ 'Alice' │ 30  │
//	│ 'Bob'   │ 28  │
//	└─────────┴─────┘
//	2 row(s)
func (r *Result) Show(w io.Writer, limit int) error {
	if w == nil {
		w = os.Stdout
	}

	names := r.Columns()
	it := r.Rows()
	defer it.Close()

	var rows []Row
	for limit <= 0 || len(rows) < limit {
		row, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}

	widths := make([]int, len(names))
	for i, name := range names {
		widths[i] = utf8.RuneCountInString(name)
	}
	cells := make([][]string, len(rows))
	for ri, row := range rows {
		cells[ri] = make([]string, len(names))
		for ci := range names {
			text := formatValue(row[ci])
			cells[ri][ci] = text
			if n := utf8.RuneCountInString(text); n > widths[ci] {
				widths[ci] = n
			}
		}
	}

	writeRule := func(left, mid, right string) error {
		var sb strings.Builder
		sb.WriteString(left)
		for i, width := range widths {
			if i > 0 {
				sb.WriteString(mid)
			}
			sb.WriteString(strings.Repeat("─", width+2))
		}
		sb.WriteString(right)
		sb.WriteByte('\n')
		_, err := io.WriteString(w, sb.String())
		return err
	}
	writeCells := func(values []string) error {
		var sb strings.Builder
		sb.WriteString("│")
		for i, v := range values {
			pad := widths[i] - utf8.RuneCountInString(v)
			sb.WriteString(" " + v + strings.Repeat(" ", pad) + " │")
		}
		sb.WriteByte('\n')
		_, err := io.WriteString(w, sb.String())
		return err
	}

	if err := writeRule("┌", "┬", "┐"); err != nil {
		return err
	}
	if err := writeCells(names); err != nil {
		return err
	}
	if err := writeRule("├", "┼", "┤"); err != nil {
		return err
	}
	for _, row := range cells {
		if err := writeCells(row); err != nil {
			return err
		}
	}
	if err := writeRule("└", "┴", "┘"); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d row(s)\n", len(rows))
	return err
}

// RecordIterator yields records as column-name → value maps.
type RecordIterator struct {
	schema Schema
	rows   RowIterator
}

// Next returns the next record, false at the end of the stream, or the
// first runtime error.
func (it *RecordIterator) Next() (map[string]any, bool, error) {
	row, ok, err := it.rows.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	return bindRow(it.schema, row), true, nil
}

// Close releases the underlying cursors.
func (it *RecordIterator) Close() error {
	return it.rows.Close()
}

// Collect drains the iterator into a slice, closing it.
func (it *RecordIterator) Collect() ([]map[string]any, error) {
	defer it.Close()
	var out []map[string]any
	for {
		rec, ok, err := it.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, rec)
	}
}
