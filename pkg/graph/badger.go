// Package graph - persistent GraphModel over BadgerDB.
package graph

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// Key prefixes for BadgerDB storage organization.
// Single-byte prefixes keep keys compact.
const (
	prefixNode          = byte(0x01) // node:nodeID -> JSON(Node)
	prefixRel           = byte(0x02) // rel:relID -> JSON(Relationship)
	prefixLabelIndex    = byte(0x03) // label + 0x00 + nodeID -> empty
	prefixOutgoingIndex = byte(0x04) // nodeID + 0x00 + relID -> empty
	prefixIncomingIndex = byte(0x05) // nodeID + 0x00 + relID -> empty
	prefixMetaIndex     = byte(0x06) // advisory index registrations
)

// BadgerGraph is a persistent GraphModel backed by BadgerDB.
//
// Features:
//   - Transactional writes (CreateElements is one Badger transaction; a
//     batch that exceeds a single transaction's limits fails with Badger's
//     error and nothing is written)
//   - Label and adjacency secondary indexes
//   - Lazy cursors backed by Badger iterators, released on Close
//   - Automatic crash recovery from Badger's value log
//
// Key Structure:
//   - Nodes: 0x01 + nodeID -> JSON(Node)
//   - Relationships: 0x02 + relID -> JSON(Relationship)
//   - Label Index: 0x03 + label + 0x00 + nodeID -> empty
//   - Outgoing Index: 0x04 + nodeID + 0x00 + relID -> empty
//   - Incoming Index: 0x05 + nodeID + 0x00 + relID -> empty
//
// Example:
//
//	g, err := graph.OpenBadgerGraph(graph.BadgerOptions{DataDir: "/data/graph"})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer g.Close()
type BadgerGraph struct {
	db *badger.DB

	mu         sync.RWMutex // protects procedures and closed flag
	procedures map[string]*Procedure
	closed     bool
}

// BadgerOptions configures the BadgerDB-backed model.
type BadgerOptions struct {
	// DataDir is the directory for data files. Required unless InMemory.
	DataDir string

	// InMemory runs Badger without persistence. Useful for tests.
	InMemory bool

	// SyncWrites forces fsync after each write.
	SyncWrites bool

	// Quiet suppresses Badger's internal logging.
	Quiet bool
}

// OpenBadgerGraph opens (or creates) a Badger-backed graph model.
func OpenBadgerGraph(opts BadgerOptions) (*BadgerGraph, error) {
	if opts.DataDir == "" && !opts.InMemory {
		return nil, fmt.Errorf("badger graph: DataDir is required")
	}

	badgerOpts := badger.DefaultOptions(opts.DataDir).
		WithInMemory(opts.InMemory).
		WithSyncWrites(opts.SyncWrites)
	if opts.Quiet {
		badgerOpts = badgerOpts.WithLogger(nil)
	}

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", opts.DataDir, err)
	}
	if !opts.Quiet {
		log.Printf("badger graph opened at %s", opts.DataDir)
	}

	return &BadgerGraph{
		db:         db,
		procedures: make(map[string]*Procedure),
	}, nil
}

func nodeKey(id NodeID) []byte {
	return append([]byte{prefixNode}, id...)
}

func relKey(id RelID) []byte {
	return append([]byte{prefixRel}, id...)
}

func labelKey(label string, id NodeID) []byte {
	k := append([]byte{prefixLabelIndex}, label...)
	k = append(k, 0x00)
	return append(k, id...)
}

func adjacencyKey(prefix byte, nodeID NodeID, relID RelID) []byte {
	k := append([]byte{prefix}, nodeID...)
	k = append(k, 0x00)
	return append(k, relID...)
}

// badgerNodeIterator is a lazy cursor over node records. It holds a read
// transaction and a Badger iterator until Close.
type badgerNodeIterator struct {
	txn    *badger.Txn
	it     *badger.Iterator
	filter NodeFilter
	closed bool
}

func (bi *badgerNodeIterator) Next() (*Node, bool, error) {
	if bi.closed {
		return nil, false, nil
	}
	for ; bi.it.Valid(); bi.it.Next() {
		item := bi.it.Item()
		var node *Node
		err := item.Value(func(val []byte) error {
			n, derr := deserializeNode(val)
			node = n
			return derr
		})
		if err != nil {
			return nil, false, err
		}
		if !bi.filter.Matches(node) {
			continue
		}
		bi.it.Next()
		return node, true, nil
	}
	return nil, false, nil
}

func (bi *badgerNodeIterator) Close() error {
	if bi.closed {
		return nil
	}
	bi.closed = true
	bi.it.Close()
	bi.txn.Discard()
	return nil
}

// Nodes returns a lazy cursor over every node.
func (g *BadgerGraph) Nodes() NodeIterator {
	return g.FilterNodes(NodeFilter{})
}

// FilterNodes returns a lazy cursor over nodes matching the filter. The
// cursor owns a read transaction; callers must Close it.
func (g *BadgerGraph) FilterNodes(filter NodeFilter) NodeIterator {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		return NewNodeSliceIterator(nil)
	}

	txn := g.db.NewTransaction(false)
	itOpts := badger.DefaultIteratorOptions
	itOpts.Prefix = []byte{prefixNode}
	it := txn.NewIterator(itOpts)
	it.Rewind()
	return &badgerNodeIterator{txn: txn, it: it, filter: filter}
}

// badgerTripleIterator orients and filters relationship records lazily.
// BOTH direction yields the canonical triple and then its revert for each
// stored relationship.
type badgerTripleIterator struct {
	txn    *badger.Txn
	it     *badger.Iterator
	start  NodeFilter
	rel    RelFilter
	end    NodeFilter
	dir    Direction
	queued []PathTriple
	closed bool
}

func (bi *badgerTripleIterator) Next() (PathTriple, bool, error) {
	if bi.closed {
		return PathTriple{}, false, nil
	}
	for {
		if len(bi.queued) > 0 {
			t := bi.queued[0]
			bi.queued = bi.queued[1:]
			return t, true, nil
		}
		if !bi.it.Valid() {
			return PathTriple{}, false, nil
		}

		item := bi.it.Item()
		var rel *Relationship
		err := item.Value(func(val []byte) error {
			r, derr := deserializeRelationship(val)
			rel = r
			return derr
		})
		bi.it.Next()
		if err != nil {
			return PathTriple{}, false, err
		}

		canonical, err := tripleInTxn(bi.txn, rel)
		if err != nil {
			return PathTriple{}, false, err
		}
		if canonical.Start == nil || canonical.End == nil {
			continue // dangling edge, skip
		}

		var oriented []PathTriple
		switch bi.dir {
		case DirectionOutgoing:
			oriented = []PathTriple{canonical}
		case DirectionIncoming:
			oriented = []PathTriple{canonical.Revert()}
		default:
			oriented = []PathTriple{canonical, canonical.Revert()}
		}
		for _, t := range oriented {
			if bi.rel.Matches(t.Rel) && bi.start.Matches(t.Start) && bi.end.Matches(t.End) {
				bi.queued = append(bi.queued, t)
			}
		}
	}
}

func (bi *badgerTripleIterator) Close() error {
	if bi.closed {
		return nil
	}
	bi.closed = true
	bi.it.Close()
	bi.txn.Discard()
	return nil
}

// tripleInTxn assembles the canonical triple for a relationship using the
// given read transaction. Missing endpoints yield nil pointers.
func tripleInTxn(txn *badger.Txn, rel *Relationship) (PathTriple, error) {
	start, err := nodeInTxn(txn, rel.StartNode)
	if err != nil {
		return PathTriple{}, err
	}
	end, err := nodeInTxn(txn, rel.EndNode)
	if err != nil {
		return PathTriple{}, err
	}
	return PathTriple{Start: start, Rel: rel, End: end}, nil
}

func nodeInTxn(txn *badger.Txn, id NodeID) (*Node, error) {
	item, err := txn.Get(nodeKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var node *Node
	err = item.Value(func(val []byte) error {
		n, derr := deserializeNode(val)
		node = n
		return derr
	})
	return node, err
}

// Relationships returns every relationship as a canonical OUTGOING triple.
func (g *BadgerGraph) Relationships() TripleIterator {
	return g.Paths(NodeFilter{}, RelFilter{}, NodeFilter{}, DirectionOutgoing)
}

// Paths returns oriented triples matching the filters under the direction.
func (g *BadgerGraph) Paths(start NodeFilter, rel RelFilter, end NodeFilter, dir Direction) TripleIterator {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		return NewTripleSliceIterator(nil)
	}

	txn := g.db.NewTransaction(false)
	itOpts := badger.DefaultIteratorOptions
	itOpts.Prefix = []byte{prefixRel}
	it := txn.NewIterator(itOpts)
	it.Rewind()
	return &badgerTripleIterator{txn: txn, it: it, start: start, rel: rel, end: end, dir: dir}
}

// Expand returns triples anchored at nodeID under the direction.
func (g *BadgerGraph) Expand(nodeID NodeID, dir Direction) TripleIterator {
	return g.ExpandFiltered(nodeID, dir, RelFilter{}, NodeFilter{})
}

// ExpandFiltered walks the adjacency indexes for nodeID and applies the
// filters after expansion. The result is materialized under one read
// transaction so the cursor does not pin the transaction afterwards;
// node degree bounds the allocation.
func (g *BadgerGraph) ExpandFiltered(nodeID NodeID, dir Direction, rel RelFilter, end NodeFilter) TripleIterator {
	g.mu.RLock()
	closed := g.closed
	g.mu.RUnlock()
	if closed {
		return NewTripleSliceIterator(nil)
	}

	var matched []PathTriple
	err := g.db.View(func(txn *badger.Txn) error {
		collect := func(indexPrefix byte, revert bool) error {
			prefix := append([]byte{indexPrefix}, nodeID...)
			prefix = append(prefix, 0x00)
			itOpts := badger.DefaultIteratorOptions
			itOpts.Prefix = prefix
			itOpts.PrefetchValues = false
			it := txn.NewIterator(itOpts)
			defer it.Close()
			for it.Rewind(); it.Valid(); it.Next() {
				key := it.Item().Key()
				relID := RelID(bytes.TrimPrefix(key, prefix))
				r, err := relInTxn(txn, relID)
				if err != nil {
					return err
				}
				if r == nil {
					continue
				}
				t, err := tripleInTxn(txn, r)
				if err != nil {
					return err
				}
				if revert {
					t = t.Revert()
				}
				if t.Start != nil && t.End != nil && rel.Matches(t.Rel) && end.Matches(t.End) {
					matched = append(matched, t)
				}
			}
			return nil
		}

		if dir == DirectionOutgoing || dir == DirectionBoth {
			if err := collect(prefixOutgoingIndex, false); err != nil {
				return err
			}
		}
		if dir == DirectionIncoming || dir == DirectionBoth {
			if err := collect(prefixIncomingIndex, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return &erroringTripleIterator{err: err}
	}
	return NewTripleSliceIterator(matched)
}

func relInTxn(txn *badger.Txn, id RelID) (*Relationship, error) {
	item, err := txn.Get(relKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rel *Relationship
	err = item.Value(func(val []byte) error {
		r, derr := deserializeRelationship(val)
		rel = r
		return derr
	})
	return rel, err
}

// erroringTripleIterator surfaces a deferred model error on first Next.
type erroringTripleIterator struct {
	err  error
	done bool
}

func (e *erroringTripleIterator) Next() (PathTriple, bool, error) {
	if e.done {
		return PathTriple{}, false, nil
	}
	e.done = true
	return PathTriple{}, false, e.err
}

func (e *erroringTripleIterator) Close() error { return nil }

// CreateElements writes nodes, relationships, and their index entries in a
// single Badger transaction. Empty IDs receive fresh UUIDv4 identities.
func (g *BadgerGraph) CreateElements(nodes []*Node, rels []*Relationship, onCreated func(nodes []*Node, rels []*Relationship) error) error {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return ErrModelClosed
	}
	g.mu.RUnlock()

	stored := make([]*Node, len(nodes))
	for i, n := range nodes {
		cp := n.Clone()
		if cp.ID == "" {
			cp.ID = NodeID(uuid.NewString())
		}
		if cp.Properties == nil {
			cp.Properties = make(map[string]any)
		}
		stored[i] = cp
	}
	pending := make(map[NodeID]struct{}, len(stored))
	for _, n := range stored {
		pending[n.ID] = struct{}{}
	}
	storedRels := make([]*Relationship, len(rels))
	for i, r := range rels {
		cp := r.Clone()
		if cp.ID == "" {
			cp.ID = RelID(uuid.NewString())
		}
		if cp.Properties == nil {
			cp.Properties = make(map[string]any)
		}
		storedRels[i] = cp
	}

	err := g.db.Update(func(txn *badger.Txn) error {
		for _, n := range stored {
			if _, err := txn.Get(nodeKey(n.ID)); err == nil {
				return fmt.Errorf("node %q: %w", n.ID, ErrAlreadyExists)
			}
			data, err := serializeNode(n)
			if err != nil {
				return err
			}
			if err := txn.Set(nodeKey(n.ID), data); err != nil {
				return err
			}
			for _, l := range n.Labels {
				if err := txn.Set(labelKey(l, n.ID), nil); err != nil {
					return err
				}
			}
		}
		for _, r := range storedRels {
			if _, err := txn.Get(relKey(r.ID)); err == nil {
				return fmt.Errorf("relationship %q: %w", r.ID, ErrAlreadyExists)
			}
			if err := endpointExists(txn, r.StartNode, pending); err != nil {
				return fmt.Errorf("relationship %q: %w", r.ID, err)
			}
			if err := endpointExists(txn, r.EndNode, pending); err != nil {
				return fmt.Errorf("relationship %q: %w", r.ID, err)
			}
			data, err := serializeRelationship(r)
			if err != nil {
				return err
			}
			if err := txn.Set(relKey(r.ID), data); err != nil {
				return err
			}
			if err := txn.Set(adjacencyKey(prefixOutgoingIndex, r.StartNode, r.ID), nil); err != nil {
				return err
			}
			if err := txn.Set(adjacencyKey(prefixIncomingIndex, r.EndNode, r.ID), nil); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if onCreated != nil {
		return onCreated(stored, storedRels)
	}
	return nil
}

func endpointExists(txn *badger.Txn, id NodeID, pending map[NodeID]struct{}) error {
	if id == "" {
		return ErrInvalidRel
	}
	if _, ok := pending[id]; ok {
		return nil
	}
	if _, err := txn.Get(nodeKey(id)); err != nil {
		return ErrInvalidRel
	}
	return nil
}

// CreateIndex persists an advisory index registration.
func (g *BadgerGraph) CreateIndex(label string, propertyKeys []string) error {
	desc := IndexDescriptor{Label: label, PropertyKeys: propertyKeys}
	data, err := json.Marshal(desc)
	if err != nil {
		return err
	}
	key := append([]byte{prefixMetaIndex}, label...)
	key = append(key, 0x00)
	for _, k := range propertyKeys {
		key = append(key, k...)
		key = append(key, 0x00)
	}
	return g.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, data)
	})
}

// Indexes lists persisted advisory index registrations.
func (g *BadgerGraph) Indexes() []IndexDescriptor {
	var out []IndexDescriptor
	_ = g.db.View(func(txn *badger.Txn) error {
		itOpts := badger.DefaultIteratorOptions
		itOpts.Prefix = []byte{prefixMetaIndex}
		it := txn.NewIterator(itOpts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			_ = it.Item().Value(func(val []byte) error {
				var desc IndexDescriptor
				if err := json.Unmarshal(val, &desc); err == nil {
					out = append(out, desc)
				}
				return nil
			})
		}
		return nil
	})
	return out
}

// RegisterProcedure makes a procedure resolvable through Procedure.
// Procedures are process-local; they are not persisted.
func (g *BadgerGraph) RegisterProcedure(p *Procedure) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.procedures[p.Namespace+"."+p.Name] = p
}

// Procedure resolves a registered procedure.
func (g *BadgerGraph) Procedure(namespace, name string) (*Procedure, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	p, ok := g.procedures[namespace+"."+name]
	return p, ok
}

// Close flushes and closes the underlying Badger database.
func (g *BadgerGraph) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()
	return g.db.Close()
}
