package rowdata

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRdbColsPrefersPrimary(t *testing.T) {
	keyMap := []Key{
		{Name: "uk_email", Cols: []string{"email"}},
		{Name: "primary", Cols: []string{"id"}},
	}
	r := ParseRdbCols(keyMap, []string{"id", "email", "name"})
	assert.Equal(t, []string{"id"}, r.IDCols)
	assert.True(t, r.HasOrderCol)
	assert.Equal(t, "id", r.OrderCol)
	assert.Equal(t, "id", r.PartitionCol)
}

func TestParseRdbColsFallsBackToSmallestUniqueKeyFirstWins(t *testing.T) {
	keyMap := []Key{
		{Name: "uk_a", Cols: []string{"a", "b"}},
		{Name: "uk_b", Cols: []string{"c", "d"}}, // same length as uk_a, declared later: must lose
		{Name: "uk_c", Cols: []string{"e"}},
	}
	r := ParseRdbCols(keyMap, []string{"a", "b", "c", "d", "e", "f"})
	assert.Equal(t, []string{"e"}, r.IDCols)
	assert.True(t, r.HasOrderCol)
	assert.Equal(t, "e", r.OrderCol)
}

func TestParseRdbColsTieBreaksOnFirstDeclared(t *testing.T) {
	keyMap := []Key{
		{Name: "uk_a", Cols: []string{"a", "b"}},
		{Name: "uk_b", Cols: []string{"c", "d"}},
	}
	r := ParseRdbCols(keyMap, []string{"a", "b", "c", "d"})
	assert.Equal(t, []string{"a", "b"}, r.IDCols)
	assert.False(t, r.HasOrderCol, "multi-column id_cols never gets an order_col")
	assert.Equal(t, "a", r.PartitionCol)
}

func TestParseRdbColsFallsBackToAllColumns(t *testing.T) {
	r := ParseRdbCols(nil, []string{"a", "b", "c"})
	assert.Equal(t, []string{"a", "b", "c"}, r.IDCols)
	assert.False(t, r.HasOrderCol)
	assert.Equal(t, "a", r.PartitionCol)
}

func TestNewTbMetaDerivesRdbTbMeta(t *testing.T) {
	cols := []Column{
		{Name: "id", Type: "bigint", Nullable: false},
		{Name: "name", Type: "varchar", Nullable: true},
	}
	m := NewTbMeta("db1", "t1", cols, []Key{{Name: "primary", Cols: []string{"id"}}})
	assert.Equal(t, []string{"id", "name"}, m.ColNames())
	assert.Equal(t, []string{"id"}, m.IDCols)
	assert.Equal(t, "id", m.OrderCol)
	assert.Equal(t, "id", m.PartitionCol)
}
