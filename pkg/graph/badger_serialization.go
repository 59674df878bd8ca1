// Package graph - serialization helpers for the Badger-backed model.
package graph

import (
	"encoding/json"
	"fmt"
)

// serializeNode converts a Node to JSON bytes for Badger storage.
func serializeNode(node *Node) ([]byte, error) {
	return json.Marshal(node)
}

// deserializeNode converts JSON bytes back to a Node.
func deserializeNode(data []byte) (*Node, error) {
	var node Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("unmarshaling node: %w", err)
	}
	if node.Properties == nil {
		node.Properties = make(map[string]any)
	}
	return &node, nil
}

// serializeRelationship converts a Relationship to JSON bytes.
func serializeRelationship(rel *Relationship) ([]byte, error) {
	return json.Marshal(rel)
}

// deserializeRelationship converts JSON bytes back to a Relationship.
func deserializeRelationship(data []byte) (*Relationship, error) {
	var rel Relationship
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, fmt.Errorf("unmarshaling relationship: %w", err)
	}
	if rel.Properties == nil {
		rel.Properties = make(map[string]any)
	}
	return &rel, nil
}
