// Package cypher provides tests for the value model.
package cypher

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/orneryd/cypherframe/pkg/graph"
)

func TestTypeOfValue(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  string
	}{
		{"null", nil, "Null"},
		{"boolean", true, "Boolean"},
		{"integer", int64(3), "Integer"},
		{"float", 3.5, "Float"},
		{"string", "hi", "String"},
		{"node", &graph.Node{ID: "1"}, "Node"},
		{"relationship", &graph.Relationship{ID: "10"}, "Relationship"},
		{"path", graph.PathTriple{}, "Path"},
		{"map", map[string]any{}, "Map"},
		{"uniform list", []any{int64(1), int64(2)}, "List<Integer>"},
		{"mixed list", []any{int64(1), "x"}, "List<Any>"},
		{"empty list", []any{}, "List<Any>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeOfValue(tt.value).String())
		})
	}
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, int64(3), NormalizeValue(3))
	assert.Equal(t, float64(2.5), NormalizeValue(float32(2.5)))
	assert.Equal(t, []any{int64(1)}, NormalizeValue([]any{1}))
	assert.Equal(t, map[string]any{"a": int64(1)}, NormalizeValue(map[string]any{"a": 1}))
}

func TestValuesEqual(t *testing.T) {
	assert.True(t, ValuesEqual(nil, nil))
	assert.False(t, ValuesEqual(nil, int64(1)))
	assert.True(t, ValuesEqual(int64(3), float64(3)))
	assert.True(t, ValuesEqual([]any{int64(1), "a"}, []any{float64(1), "a"}))
	assert.False(t, ValuesEqual([]any{int64(1)}, []any{int64(1), int64(2)}))
	assert.True(t, ValuesEqual(map[string]any{"k": int64(1)}, map[string]any{"k": int64(1)}))

	// Entities compare by identity, not by content.
	a := &graph.Node{ID: "1", Properties: map[string]any{"x": 1}}
	b := &graph.Node{ID: "1", Properties: map[string]any{"x": 2}}
	c := &graph.Node{ID: "2", Properties: map[string]any{"x": 1}}
	assert.True(t, ValuesEqual(a, b))
	assert.False(t, ValuesEqual(a, c))
}

func TestCompareValuesPrimitives(t *testing.T) {
	assert.Negative(t, CompareValues(int64(1), int64(2)))
	assert.Positive(t, CompareValues(float64(2.5), int64(2)))
	assert.Zero(t, CompareValues(int64(3), float64(3)))
	assert.Negative(t, CompareValues("apple", "banana"))
	assert.Negative(t, CompareValues(false, true))
}

func TestCompareValuesListsLexicographic(t *testing.T) {
	assert.Negative(t, CompareValues([]any{int64(1), int64(2)}, []any{int64(1), int64(3)}))
	assert.Negative(t, CompareValues([]any{int64(1)}, []any{int64(1), int64(0)}))
	assert.Zero(t, CompareValues([]any{"a"}, []any{"a"}))
}

func TestCompareValuesNullOrdersLast(t *testing.T) {
	// Null is greater than any non-null under ascending order.
	assert.Positive(t, CompareValues(nil, int64(1)))
	assert.Positive(t, CompareValues(nil, "zzz"))
	assert.Negative(t, CompareValues(int64(1), nil))
	assert.Zero(t, CompareValues(nil, nil))
}

func TestListOfEquality(t *testing.T) {
	assert.True(t, ListOf(IntegerType).Equal(ListOf(IntegerType)))
	assert.False(t, ListOf(IntegerType).Equal(ListOf(StringType)))
	assert.False(t, ListOf(IntegerType).Equal(IntegerType))
}
