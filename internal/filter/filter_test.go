package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apecloud/dts/internal/config"
)

func TestParseTokensSplitsOnCommaAndDot(t *testing.T) {
	toks := ParseTokens("db1.tb1,db2.tb2", DialectMySQL)
	assert.Equal(t, []string{"db1", "tb1", "db2", "tb2"}, toks)
}

func TestParseTokensKeepsDelimitersInsideEscapePair(t *testing.T) {
	toks := ParseTokens("`a.b`,`c,d`", DialectMySQL)
	assert.Equal(t, []string{"`a.b`", "`c,d`"}, toks)
}

func TestMatchTokenLiteralWhenEscaped(t *testing.T) {
	assert.True(t, matchToken("`aaa*`", "aaa*", DialectMySQL))
	assert.False(t, matchToken("`aaa*`", "aaa_bbb", DialectMySQL))
}

func TestMatchTokenWildcard(t *testing.T) {
	assert.True(t, matchToken("aaa*", "aaa_bbb", DialectMySQL))
	assert.True(t, matchToken("a?c", "abc", DialectMySQL))
	assert.True(t, matchToken("a?c", "ac", DialectMySQL))
	assert.False(t, matchToken("a.c", "abc", DialectMySQL))
	assert.True(t, matchToken("a.c", "a.c", DialectMySQL))
}

func newFilter(t *testing.T, fc config.FilterConfig) *Filter {
	t.Helper()
	f, err := FromConfig(fc, DialectMySQL)
	require.NoError(t, err)
	return f
}

func TestFilterDbAndTb(t *testing.T) {
	f := newFilter(t, config.FilterConfig{
		DoDbs:     "test_db_1",
		IgnoreTbs: "test_db_1.ignore_me",
	})

	assert.False(t, f.FilterDb("test_db_1"))
	assert.True(t, f.FilterDb("other_db"))
	assert.True(t, f.FilterTb("test_db_1", "ignore_me"))
	assert.False(t, f.FilterTb("test_db_1", "keep_me"))
}

func TestFilterTbIsMemoized(t *testing.T) {
	f := newFilter(t, config.FilterConfig{DoDbs: "*"})
	first := f.FilterTb("d", "t")
	assert.Equal(t, first, f.FilterTb("d", "t"))
	_, cached := f.cache[tbKey{"d", "t"}]
	assert.True(t, cached)
}

func TestFilterEventRequiresDoEvents(t *testing.T) {
	f := newFilter(t, config.FilterConfig{DoDbs: "*", DoEvents: "insert,update"})
	assert.False(t, f.FilterEvent("d", "t", "insert"))
	assert.True(t, f.FilterEvent("d", "t", "delete"))
}

func TestFilterEventMatchAllWildcard(t *testing.T) {
	f := newFilter(t, config.FilterConfig{DoDbs: "*", DoEvents: "*"})
	assert.False(t, f.FilterEvent("d", "t", "delete"))
}

func TestFilterDdlEmptyDoDdlsFiltersEverything(t *testing.T) {
	f := newFilter(t, config.FilterConfig{DoDbs: "*"})
	assert.True(t, f.FilterAllDdl())
	assert.True(t, f.FilterDdl("d", "", "create_database"))
}

func TestFilterStructureAndCmd(t *testing.T) {
	f := newFilter(t, config.FilterConfig{DoStructures: "table,index", IgnoreCmds: "flushall"})
	assert.False(t, f.FilterStructure("table"))
	assert.True(t, f.FilterStructure("view"))
	assert.True(t, f.FilterCmd("flushall"))
	assert.False(t, f.FilterCmd("set"))
}

func TestRouterGetTbMapFallsBackToDbMap(t *testing.T) {
	r := RouterFromConfig(config.RouterConfig{DbMap: "test_db_1:dst_db_1"})
	db, tb := r.GetTbMap("test_db_1", "t1")
	assert.Equal(t, "dst_db_1", db)
	assert.Equal(t, "t1", tb)
}

func TestRouterGetTbMapExactOverridesDbMap(t *testing.T) {
	r := RouterFromConfig(config.RouterConfig{
		DbMap: "test_db_1:dst_db_1",
		TbMap: "test_db_1.t1:dst_db_1.renamed_t1",
	})
	db, tb := r.GetTbMap("test_db_1", "t1")
	assert.Equal(t, "dst_db_1", db)
	assert.Equal(t, "renamed_t1", tb)

	db2, tb2 := r.GetTbMap("test_db_1", "other")
	assert.Equal(t, "dst_db_1", db2)
	assert.Equal(t, "other", tb2)
}

func TestRouterFieldMap(t *testing.T) {
	r := RouterFromConfig(config.RouterConfig{FieldMap: "db1.tb1.col1:new_col1,db1.tb1.col2:new_col2"})
	fm := r.GetFieldMap("db1", "tb1")
	require.NotNil(t, fm)
	assert.Equal(t, "new_col1", fm["col1"])
	assert.Equal(t, "new_col2", fm["col2"])
}

func TestRouterReverse(t *testing.T) {
	r := RouterFromConfig(config.RouterConfig{DbMap: "src:dst"})
	rev := r.Reverse()
	assert.Equal(t, "dst", r.GetDbMap("src"))
	assert.Equal(t, "src", rev.GetDbMap("dst"))
}
