// Package graph - JSON graph interchange.
//
// The export format mirrors the Neo4j JSON dump shape (nodes and
// relationships arrays) so fixture graphs can move between tools. Both
// MemoryGraph and BadgerGraph load from it via ImportJSON.
package graph

import (
	"encoding/json"
	"fmt"
	"io"
)

// Export is the JSON interchange document.
type Export struct {
	Nodes         []ExportNode         `json:"nodes"`
	Relationships []ExportRelationship `json:"relationships"`
}

// ExportNode is the wire form of a node.
type ExportNode struct {
	ID         string         `json:"id"`
	Labels     []string       `json:"labels"`
	Properties map[string]any `json:"properties"`
}

// ExportRelationship is the wire form of a relationship.
type ExportRelationship struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	StartNode  string         `json:"startNode"`
	EndNode    string         `json:"endNode"`
	Properties map[string]any `json:"properties"`
}

// ToExport converts elements to the interchange document.
func ToExport(nodes []*Node, rels []*Relationship) *Export {
	out := &Export{
		Nodes:         make([]ExportNode, len(nodes)),
		Relationships: make([]ExportRelationship, len(rels)),
	}
	for i, n := range nodes {
		out.Nodes[i] = ExportNode{
			ID:         string(n.ID),
			Labels:     n.Labels,
			Properties: n.Properties,
		}
	}
	for i, r := range rels {
		out.Relationships[i] = ExportRelationship{
			ID:         string(r.ID),
			Type:       r.Type,
			StartNode:  string(r.StartNode),
			EndNode:    string(r.EndNode),
			Properties: r.Properties,
		}
	}
	return out
}

// FromExport converts an interchange document to elements ready for
// CreateElements.
func FromExport(export *Export) ([]*Node, []*Relationship) {
	nodes := make([]*Node, len(export.Nodes))
	for i, n := range export.Nodes {
		props := n.Properties
		if props == nil {
			props = make(map[string]any)
		}
		nodes[i] = &Node{
			ID:         NodeID(n.ID),
			Labels:     n.Labels,
			Properties: props,
		}
	}
	rels := make([]*Relationship, len(export.Relationships))
	for i, r := range export.Relationships {
		props := r.Properties
		if props == nil {
			props = make(map[string]any)
		}
		rels[i] = &Relationship{
			ID:         RelID(r.ID),
			Type:       r.Type,
			StartNode:  NodeID(r.StartNode),
			EndNode:    NodeID(r.EndNode),
			Properties: props,
		}
	}
	return nodes, rels
}

// ImportJSON reads an interchange document and creates its elements in the
// model as one bulk call.
func ImportJSON(model GraphModel, r io.Reader) error {
	var export Export
	if err := json.NewDecoder(r).Decode(&export); err != nil {
		return fmt.Errorf("decoding graph export: %w", err)
	}
	nodes, rels := FromExport(&export)
	return model.CreateElements(nodes, rels, nil)
}
