// Package cypher provides an embeddable Cypher-family query engine:
// parse → logical plan → physical plan → optimize → execute over a lazy
// row-stream algebra, against a host-provided graph model.
//
// Entry point is the Runner facade:
//
//	g := graph.NewMemoryGraph()
//	runner := cypher.NewRunner(g)
//
//	result, err := runner.Run(ctx, "MATCH (n:Person) WHERE n.age > $min RETURN n.name", map[string]any{"min": 25})
//	if err != nil {
//		log.Fatal(err)
//	}
//	result.Show(os.Stdout, 20)
//
// This file holds the value model: runtime values are plain Go values drawn
// from a closed set (nil, bool, int64, float64, string, []any,
// map[string]any, *graph.Node, *graph.Relationship, graph.PathTriple), and
// every value maps to a Type tag. Equality is structural; ordering is
// defined for primitives and lexicographic over lists.
package cypher

import (
	"fmt"
	"sort"
	"strings"

	"github.com/orneryd/cypherframe/pkg/graph"
)

// TypeKind enumerates the closed set of Cypher type tags.
type TypeKind int

const (
	TypeAny TypeKind = iota
	TypeBoolean
	TypeInteger
	TypeFloat
	TypeString
	TypeNode
	TypeRelationship
	TypePath
	TypeList
	TypeMap
	TypeNull
)

// Type is a Cypher type tag. List types carry an element type; every other
// kind stands alone.
type Type struct {
	Kind TypeKind
	Elem *Type // element type for TypeList, nil otherwise
}

// Convenience constructors for the common tags.
var (
	AnyType          = Type{Kind: TypeAny}
	BooleanType      = Type{Kind: TypeBoolean}
	IntegerType      = Type{Kind: TypeInteger}
	FloatType        = Type{Kind: TypeFloat}
	StringType       = Type{Kind: TypeString}
	NodeType         = Type{Kind: TypeNode}
	RelationshipType = Type{Kind: TypeRelationship}
	PathType         = Type{Kind: TypePath}
	MapType          = Type{Kind: TypeMap}
	NullType         = Type{Kind: TypeNull}
)

// ListOf builds a List<elem> tag.
func ListOf(elem Type) Type {
	e := elem
	return Type{Kind: TypeList, Elem: &e}
}

// String renders the tag the way Cypher spells it, e.g. "List<Integer>".
func (t Type) String() string {
	switch t.Kind {
	case TypeAny:
		return "Any"
	case TypeBoolean:
		return "Boolean"
	case TypeInteger:
		return "Integer"
	case TypeFloat:
		return "Float"
	case TypeString:
		return "String"
	case TypeNode:
		return "Node"
	case TypeRelationship:
		return "Relationship"
	case TypePath:
		return "Path"
	case TypeList:
		if t.Elem == nil {
			return "List<Any>"
		}
		return "List<" + t.Elem.String() + ">"
	case TypeMap:
		return "Map"
	case TypeNull:
		return "Null"
	}
	return "Any"
}

// Equal reports tag equality, element types included.
func (t Type) Equal(other Type) bool {
	if t.Kind != other.Kind {
		return false
	}
	if t.Kind != TypeList {
		return true
	}
	switch {
	case t.Elem == nil && other.Elem == nil:
		return true
	case t.Elem == nil || other.Elem == nil:
		return false
	default:
		return t.Elem.Equal(*other.Elem)
	}
}

// TypeOfValue returns the Cypher type tag of a runtime value.
//
// Lists report the element type when all elements agree, List<Any>
// otherwise.
func TypeOfValue(v any) Type {
	switch val := v.(type) {
	case nil:
		return NullType
	case bool:
		return BooleanType
	case int, int32, int64:
		return IntegerType
	case float32, float64:
		return FloatType
	case string:
		return StringType
	case *graph.Node:
		return NodeType
	case *graph.Relationship:
		return RelationshipType
	case graph.PathTriple:
		return PathType
	case []any:
		if len(val) == 0 {
			return ListOf(AnyType)
		}
		elem := TypeOfValue(val[0])
		for _, item := range val[1:] {
			if !TypeOfValue(item).Equal(elem) {
				return ListOf(AnyType)
			}
		}
		return ListOf(elem)
	case map[string]any:
		return MapType
	}
	return AnyType
}

// NormalizeValue widens small integer and float forms so the engine only
// ever sees int64 and float64. Lists and maps are normalized recursively.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case int:
		return int64(val)
	case int32:
		return int64(val)
	case float32:
		return float64(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = NormalizeValue(item)
		}
		return out
	}
	return v
}

// ValuesEqual reports structural equality of two runtime values.
//
// Numbers compare across integer/float forms; nodes and relationships
// compare by identity; lists compare element-wise; maps compare key-wise.
// Unlike Cypher's ternary `=`, this is plain two-valued equality — it is
// what distinct and join keying need.
func ValuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := numericValue(a); aok {
		bf, bok := numericValue(b)
		return bok && af == bf
	}
	switch av := a.(type) {
	case *graph.Node:
		bv, ok := b.(*graph.Node)
		return ok && av.ID == bv.ID
	case *graph.Relationship:
		bv, ok := b.(*graph.Relationship)
		return ok && av.ID == bv.ID
	case graph.PathTriple:
		bv, ok := b.(graph.PathTriple)
		return ok && av.Rel != nil && bv.Rel != nil &&
			av.Rel.ID == bv.Rel.ID && av.Reversed == bv.Reversed
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValuesEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			bItem, ok := bv[k]
			if !ok || !ValuesEqual(v, bItem) {
				return false
			}
		}
		return true
	}
	return a == b
}

// CompareValues defines a total order used by OrderBy.
//
// Null orders after any non-null value ascending (and symmetrically first
// descending); this choice is stable across releases. Mixed-type non-null
// values order by type rank so the ordering stays total. Lists compare
// lexicographically.
func CompareValues(a, b any) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return 1 // null greater than any non-null
	}
	if b == nil {
		return -1
	}

	if af, aok := numericValue(a); aok {
		if bf, bok := numericValue(b); bok {
			switch {
			case af < bf:
				return -1
			case af > bf:
				return 1
			default:
				return 0
			}
		}
	}

	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}

	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case string:
		return strings.Compare(av, b.(string))
	case []any:
		bv := b.([]any)
		for i := 0; i < len(av) && i < len(bv); i++ {
			if c := CompareValues(av[i], bv[i]); c != 0 {
				return c
			}
		}
		return len(av) - len(bv)
	case *graph.Node:
		return strings.Compare(string(av.ID), string(b.(*graph.Node).ID))
	case *graph.Relationship:
		return strings.Compare(string(av.ID), string(b.(*graph.Relationship).ID))
	}
	// Maps, paths: compare by rendered form as a last resort to keep the
	// order total.
	return strings.Compare(formatValue(a), formatValue(b))
}

// typeRank orders values of different types. Numbers share one rank, so the
// cross-type numeric comparison above always wins for them.
func typeRank(v any) int {
	switch v.(type) {
	case bool:
		return 0
	case int, int32, int64, float32, float64:
		return 1
	case string:
		return 2
	case []any:
		return 3
	case map[string]any:
		return 4
	case *graph.Node:
		return 5
	case *graph.Relationship:
		return 6
	case graph.PathTriple:
		return 7
	}
	return 8
}

// numericValue widens any numeric form to float64 for comparison.
func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// isIntegral reports whether the value is one of the integer forms.
func isIntegral(v any) bool {
	switch v.(type) {
	case int, int32, int64:
		return true
	}
	return false
}

// formatValue renders a value for Show output and debug strings.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return "'" + val + "'"
	case *graph.Node:
		var sb strings.Builder
		sb.WriteByte('(')
		for _, l := range val.Labels {
			sb.WriteByte(':')
			sb.WriteString(l)
		}
		if len(val.Properties) > 0 {
			if len(val.Labels) > 0 {
				sb.WriteByte(' ')
			}
			sb.WriteString(formatProps(val.Properties))
		}
		sb.WriteByte(')')
		return sb.String()
	case *graph.Relationship:
		var sb strings.Builder
		sb.WriteString("[:")
		sb.WriteString(val.Type)
		if len(val.Properties) > 0 {
			sb.WriteByte(' ')
			sb.WriteString(formatProps(val.Properties))
		}
		sb.WriteByte(']')
		return sb.String()
	case graph.PathTriple:
		arrowIn, arrowOut := "-", "->"
		if val.Reversed {
			arrowIn, arrowOut = "<-", "-"
		}
		return fmt.Sprintf("%s%s%s%s%s",
			formatValue(val.Start), arrowIn, formatValue(val.Rel), arrowOut, formatValue(val.End))
	case []any:
		parts := make([]string, len(val))
		for i, item := range val {
			parts[i] = formatValue(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		return formatProps(val)
	}
	return fmt.Sprintf("%v", v)
}

// formatProps renders a property map with deterministic key order.
func formatProps(props map[string]any) string {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + formatValue(props[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
