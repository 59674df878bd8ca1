// Package graph - GraphModel contract and iterator plumbing.
package graph

import "context"

// NodeIterator is a lazy single-pass cursor over nodes.
//
// Next returns (node, true, nil) while elements remain, (nil, false, nil) at
// the end of the stream, and a non-nil error if the underlying model fails.
// Close releases any held cursor and is safe to call more than once.
// Consumers must call Close on every exit path, including error paths.
type NodeIterator interface {
	Next() (*Node, bool, error)
	Close() error
}

// TripleIterator is a lazy single-pass cursor over oriented path triples.
type TripleIterator interface {
	Next() (PathTriple, bool, error)
	Close() error
}

// RowStream is a lazy cursor over procedure output rows.
type RowStream interface {
	Next() ([]any, bool, error)
	Close() error
}

// IndexDescriptor records an advisory index registration. The engine core
// does not consult indexes itself; an optimizer pass may.
type IndexDescriptor struct {
	Label        string   `json:"label"`
	PropertyKeys []string `json:"propertyKeys"`
}

// FieldSpec declares one typed input or output of a procedure. Type names
// use Cypher type spellings ("INTEGER", "STRING", "NODE", "ANY", ...).
type FieldSpec struct {
	Name string
	Type string
}

// Procedure is a host-registered callable with typed inputs and tabular
// output. Call produces rows whose arity equals len(Outputs).
type Procedure struct {
	Namespace string
	Name      string
	Inputs    []FieldSpec
	Outputs   []FieldSpec
	Call      func(args []any) (RowStream, error)
}

// GraphModel is the adapter contract a host implements to make its graph
// queryable. Every sequence-returning method returns a lazy single-pass
// iterator; the model must yield consistent iteration within a single
// logical operation, but need not provide cross-operation snapshot
// isolation.
//
// Directional semantics of Paths and Expand:
//   - OUTGOING: yield the canonical triple (storage order).
//   - INCOMING: yield triple.Revert() for each canonical triple.
//   - BOTH: yield both the canonical triple and its revert.
//
// Filters apply after orientation; the returned stream is the intersection.
type GraphModel interface {
	// Nodes enumerates every node.
	Nodes() NodeIterator

	// FilterNodes enumerates nodes matching the filter.
	FilterNodes(filter NodeFilter) NodeIterator

	// Relationships enumerates every relationship as a canonical
	// OUTGOING-oriented triple.
	Relationships() TripleIterator

	// Paths enumerates oriented triples whose start node, relationship, and
	// end node satisfy the respective filters under the chosen direction.
	Paths(start NodeFilter, rel RelFilter, end NodeFilter, dir Direction) TripleIterator

	// Expand enumerates triples anchored at the given node: every yielded
	// triple satisfies triple.Start.ID == nodeID under the chosen direction.
	Expand(nodeID NodeID, dir Direction) TripleIterator

	// ExpandFiltered is Expand with relationship and end-node filters
	// applied after expansion.
	ExpandFiltered(nodeID NodeID, dir Direction, rel RelFilter, end NodeFilter) TripleIterator

	// CreateElements transactionally creates the given nodes and
	// relationships. Elements with empty IDs are assigned fresh identities.
	// onCreated, if non-nil, receives the stored elements (with assigned
	// IDs) for plan continuation. Atomicity of the call is the model's
	// responsibility.
	CreateElements(nodes []*Node, rels []*Relationship, onCreated func(nodes []*Node, rels []*Relationship) error) error

	// CreateIndex registers an advisory index on (label, propertyKeys).
	CreateIndex(label string, propertyKeys []string) error

	// Indexes lists registered advisory indexes.
	Indexes() []IndexDescriptor

	// Procedure resolves a registered procedure by namespace and name.
	Procedure(namespace, name string) (*Procedure, bool)

	// Close releases model resources.
	Close() error
}

// nodeSliceIterator serves a pre-collected node slice as a NodeIterator.
type nodeSliceIterator struct {
	nodes []*Node
	pos   int
}

func (it *nodeSliceIterator) Next() (*Node, bool, error) {
	if it.pos >= len(it.nodes) {
		return nil, false, nil
	}
	n := it.nodes[it.pos]
	it.pos++
	return n, true, nil
}

func (it *nodeSliceIterator) Close() error { return nil }

// NewNodeSliceIterator wraps a slice as a NodeIterator. Useful for models
// that snapshot under a lock and for tests.
func NewNodeSliceIterator(nodes []*Node) NodeIterator {
	return &nodeSliceIterator{nodes: nodes}
}

// tripleSliceIterator serves a pre-collected triple slice.
type tripleSliceIterator struct {
	triples []PathTriple
	pos     int
}

func (it *tripleSliceIterator) Next() (PathTriple, bool, error) {
	if it.pos >= len(it.triples) {
		return PathTriple{}, false, nil
	}
	t := it.triples[it.pos]
	it.pos++
	return t, true, nil
}

func (it *tripleSliceIterator) Close() error { return nil }

// NewTripleSliceIterator wraps a slice as a TripleIterator.
func NewTripleSliceIterator(triples []PathTriple) TripleIterator {
	return &tripleSliceIterator{triples: triples}
}

// rowSliceStream serves pre-collected procedure rows.
type rowSliceStream struct {
	rows [][]any
	pos  int
}

func (s *rowSliceStream) Next() ([]any, bool, error) {
	if s.pos >= len(s.rows) {
		return nil, false, nil
	}
	r := s.rows[s.pos]
	s.pos++
	return r, true, nil
}

func (s *rowSliceStream) Close() error { return nil }

// StaticRows wraps materialized rows as a RowStream, for procedures whose
// output is cheap to build eagerly.
func StaticRows(rows [][]any) RowStream {
	return &rowSliceStream{rows: rows}
}

// CountTriples drains an iterator and returns how many triples it yielded.
// The iterator is closed before returning.
func CountTriples(it TripleIterator) (int, error) {
	defer it.Close()
	count := 0
	for {
		_, ok, err := it.Next()
		if err != nil {
			return count, err
		}
		if !ok {
			return count, nil
		}
		count++
	}
}

// StreamNodes drains a NodeIterator through a visitor callback, honoring
// context cancellation between elements. Returning ErrIterationStopped from
// the visitor stops iteration without error.
func StreamNodes(ctx context.Context, it NodeIterator, fn func(*Node) error) error {
	defer it.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(n); err != nil {
			if err == ErrIterationStopped {
				return nil
			}
			return err
		}
	}
}
