// Package cypher - scalar function registry.
package cypher

import (
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/orneryd/cypherframe/pkg/graph"
)

// ScalarFunc evaluates a function call over already-evaluated arguments.
type ScalarFunc func(args []any) (any, error)

var (
	fnMu       sync.RWMutex
	fnRegistry = map[string]ScalarFunc{}
)

// RegisterFunction registers a scalar function under the given name.
// Names are stored lower-cased; registration replaces any previous
// function with the same name.
func RegisterFunction(name string, fn ScalarFunc) {
	if strings.TrimSpace(name) == "" {
		panic("cypher.RegisterFunction: empty name")
	}
	if fn == nil {
		panic("cypher.RegisterFunction: nil function")
	}
	fnMu.Lock()
	defer fnMu.Unlock()
	fnRegistry[strings.ToLower(strings.TrimSpace(name))] = fn
}

// lookupFunction resolves a registered function by name.
func lookupFunction(name string) (ScalarFunc, bool) {
	fnMu.RLock()
	defer fnMu.RUnlock()
	fn, ok := fnRegistry[strings.ToLower(strings.TrimSpace(name))]
	return fn, ok
}

func argCount(name string, args []any, want int) error {
	if len(args) != want {
		return fmt.Errorf("%s expects %d argument(s), got %d", name, want, len(args))
	}
	return nil
}

func init() {
	RegisterFunction("id", func(args []any) (any, error) {
		if err := argCount("id", args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case *graph.Node:
			return string(v.ID), nil
		case *graph.Relationship:
			return string(v.ID), nil
		}
		return nil, fmt.Errorf("id expects a node or relationship")
	})

	RegisterFunction("labels", func(args []any) (any, error) {
		if err := argCount("labels", args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		n, ok := args[0].(*graph.Node)
		if !ok {
			return nil, fmt.Errorf("labels expects a node")
		}
		out := make([]any, len(n.Labels))
		for i, l := range n.Labels {
			out[i] = l
		}
		return out, nil
	})

	RegisterFunction("type", func(args []any) (any, error) {
		if err := argCount("type", args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		r, ok := args[0].(*graph.Relationship)
		if !ok {
			return nil, fmt.Errorf("type expects a relationship")
		}
		return r.Type, nil
	})

	RegisterFunction("startNode", func(args []any) (any, error) {
		if err := argCount("startNode", args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		if t, ok := args[0].(graph.PathTriple); ok {
			return t.Start, nil
		}
		return nil, fmt.Errorf("startNode expects a path")
	})

	RegisterFunction("endNode", func(args []any) (any, error) {
		if err := argCount("endNode", args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		if t, ok := args[0].(graph.PathTriple); ok {
			return t.End, nil
		}
		return nil, fmt.Errorf("endNode expects a path")
	})

	RegisterFunction("properties", func(args []any) (any, error) {
		if err := argCount("properties", args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case *graph.Node:
			return NormalizeValue(v.Properties), nil
		case *graph.Relationship:
			return NormalizeValue(v.Properties), nil
		case map[string]any:
			return v, nil
		}
		return nil, fmt.Errorf("properties expects an entity or map")
	})

	RegisterFunction("keys", func(args []any) (any, error) {
		if err := argCount("keys", args, 1); err != nil {
			return nil, err
		}
		var props map[string]any
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case *graph.Node:
			props = v.Properties
		case *graph.Relationship:
			props = v.Properties
		case map[string]any:
			props = v
		default:
			return nil, fmt.Errorf("keys expects an entity or map")
		}
		out := make([]any, 0, len(props))
		for k := range props {
			out = append(out, k)
		}
		return out, nil
	})

	RegisterFunction("size", func(args []any) (any, error) {
		if err := argCount("size", args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case string:
			return int64(len(v)), nil
		case []any:
			return int64(len(v)), nil
		case map[string]any:
			return int64(len(v)), nil
		}
		return nil, fmt.Errorf("size expects a string, list, or map")
	})

	RegisterFunction("head", func(args []any) (any, error) {
		if err := argCount("head", args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		list, ok := args[0].([]any)
		if !ok {
			return nil, fmt.Errorf("head expects a list")
		}
		if len(list) == 0 {
			return nil, nil
		}
		return list[0], nil
	})

	RegisterFunction("last", func(args []any) (any, error) {
		if err := argCount("last", args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		list, ok := args[0].([]any)
		if !ok {
			return nil, fmt.Errorf("last expects a list")
		}
		if len(list) == 0 {
			return nil, nil
		}
		return list[len(list)-1], nil
	})

	RegisterFunction("coalesce", func(args []any) (any, error) {
		for _, a := range args {
			if a != nil {
				return a, nil
			}
		}
		return nil, nil
	})

	RegisterFunction("toString", func(args []any) (any, error) {
		if err := argCount("toString", args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		if s, ok := args[0].(string); ok {
			return s, nil
		}
		return fmt.Sprintf("%v", args[0]), nil
	})

	RegisterFunction("toUpper", func(args []any) (any, error) {
		if err := argCount("toUpper", args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("toUpper expects a string")
		}
		return strings.ToUpper(s), nil
	})

	RegisterFunction("toLower", func(args []any) (any, error) {
		if err := argCount("toLower", args, 1); err != nil {
			return nil, err
		}
		if args[0] == nil {
			return nil, nil
		}
		s, ok := args[0].(string)
		if !ok {
			return nil, fmt.Errorf("toLower expects a string")
		}
		return strings.ToLower(s), nil
	})

	RegisterFunction("abs", func(args []any) (any, error) {
		if err := argCount("abs", args, 1); err != nil {
			return nil, err
		}
		switch v := args[0].(type) {
		case nil:
			return nil, nil
		case int64:
			if v < 0 {
				return -v, nil
			}
			return v, nil
		case float64:
			return math.Abs(v), nil
		}
		return nil, fmt.Errorf("abs expects a number")
	})
}
