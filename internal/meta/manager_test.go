package meta

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/apecloud/dts/internal/rowdata"
)

func TestGroupKeyRowsPreservesFirstSeenOrder(t *testing.T) {
	rows := []keyRow{
		{"PRIMARY", "id"},
		{"uk_email", "email"},
		{"uk_pair", "a"},
		{"uk_pair", "b"},
	}
	keys := groupKeyRows(rows, mysqlKeyName)
	assert.Equal(t, []rowdata.Key{
		{Name: "primary", Cols: []string{"id"}},
		{Name: "uk_email", Cols: []string{"email"}},
		{Name: "uk_pair", Cols: []string{"a", "b"}},
	}, keys)
}

func TestMysqlKeyNameNormalizesPrimary(t *testing.T) {
	assert.Equal(t, "primary", mysqlKeyName("PRIMARY"))
	assert.Equal(t, "uk_email", mysqlKeyName("uk_email"))
}

func TestIsMySQL8(t *testing.T) {
	m := &Manager{version: "8.0.34"}
	assert.True(t, m.IsMySQL8())

	m = &Manager{version: "5.7.44"}
	assert.False(t, m.IsMySQL8())
}

func TestGetTbMetaCacheHitSkipsQuery(t *testing.T) {
	m := &Manager{
		dbType: DbTypeMySQL,
		cache: map[cacheKey]rowdata.TbMeta{
			{schema: "d", tb: "t"}: rowdata.NewTbMeta("d", "t",
				[]rowdata.Column{{Name: "id"}}, []rowdata.Key{{Name: "primary", Cols: []string{"id"}}}),
		},
	}
	got, err := m.GetTbMeta(nil, "d", "t")
	assert.NoError(t, err)
	assert.Equal(t, "t", got.Tb)
	assert.Equal(t, []string{"id"}, got.IDCols)
}

func TestInvalidateByDDLDropsNamedEntries(t *testing.T) {
	m := &Manager{
		cache: map[cacheKey]rowdata.TbMeta{
			{schema: "d", tb: "t1"}: rowdata.NewTbMeta("d", "t1", nil, nil),
			{schema: "d", tb: "t2"}: rowdata.NewTbMeta("d", "t2", nil, nil),
		},
	}
	m.InvalidateByDDL([]SchemaTb{{Schema: "d", Tb: "t1"}})
	_, ok := m.cache[cacheKey{"d", "t1"}]
	assert.False(t, ok)
	_, ok = m.cache[cacheKey{"d", "t2"}]
	assert.True(t, ok)
}
