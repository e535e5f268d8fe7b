// Package meta implements the metadata manager (spec.md §4.1): a
// (schema, tb)-keyed TbMeta cache with DDL-driven invalidation, backed
// by INFORMATION_SCHEMA (MySQL) or pg_catalog (PostgreSQL) queries.
package meta

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/apecloud/dts/internal/dtserr"
	"github.com/apecloud/dts/internal/rowdata"
)

// DbType selects which INFORMATION_SCHEMA dialect a Manager queries.
type DbType int

const (
	DbTypeMySQL DbType = iota
	DbTypePostgres
)

type cacheKey struct{ schema, tb string }

// Manager is the metadata manager described in spec.md §4.1. A Manager
// is scoped to one source connection pool and one DbType; the extractor
// and pipeline workers share a single instance.
type Manager struct {
	dbType DbType
	db     *sql.DB

	mu    sync.RWMutex
	cache map[cacheKey]rowdata.TbMeta

	// version is captured at init and selects dialect/version-specific
	// query shapes (e.g. MySQL 5.7 vs 8.0 INFORMATION_SCHEMA column
	// type unsigned-ness, per spec.md §9).
	version string

	// tzOffsetSeconds is the session-to-UTC offset captured at init via
	// TIMESTAMPDIFF(SECOND, UTC_TIMESTAMP, NOW()); only meaningful for
	// DbTypeMySQL.
	tzOffsetSeconds int64
}

// NewMySQLManager builds a Manager backed by a MySQL connection pool,
// capturing the server version string and the session timezone offset
// at init per spec.md §4.1.
func NewMySQLManager(ctx context.Context, db *sql.DB) (*Manager, error) {
	m := &Manager{dbType: DbTypeMySQL, db: db, cache: make(map[cacheKey]rowdata.TbMeta)}

	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&m.version); err != nil {
		return nil, dtserr.WrapTransportError("capture MySQL version", err)
	}
	if err := db.QueryRowContext(ctx,
		"SELECT TIMESTAMPDIFF(SECOND, UTC_TIMESTAMP(), NOW())",
	).Scan(&m.tzOffsetSeconds); err != nil {
		return nil, dtserr.WrapTransportError("capture MySQL session timezone offset", err)
	}
	return m, nil
}

// NewPgManager builds a Manager backed by a PostgreSQL connection pool.
func NewPgManager(ctx context.Context, db *sql.DB) (*Manager, error) {
	m := &Manager{dbType: DbTypePostgres, db: db, cache: make(map[cacheKey]rowdata.TbMeta)}
	if err := db.QueryRowContext(ctx, "SHOW server_version").Scan(&m.version); err != nil {
		return nil, dtserr.WrapTransportError("capture PostgreSQL version", err)
	}
	return m, nil
}

// TimezoneOffsetSeconds returns the captured MySQL session-to-UTC
// offset, used by the replication decoder to shift binlog TIMESTAMP
// values (spec.md §4.2).
func (m *Manager) TimezoneOffsetSeconds() int64 { return m.tzOffsetSeconds }

// Version returns the captured server version string.
func (m *Manager) Version() string { return m.version }

// GetTbMeta returns the cached TbMeta for (schema, tb), querying and
// populating the cache on a miss. The returned value is valid until the
// next InvalidateByDDL call naming this table.
func (m *Manager) GetTbMeta(ctx context.Context, schema, tb string) (rowdata.TbMeta, error) {
	key := cacheKey{schema, tb}

	m.mu.RLock()
	if meta, ok := m.cache[key]; ok {
		m.mu.RUnlock()
		return meta, nil
	}
	m.mu.RUnlock()

	var (
		meta rowdata.TbMeta
		err  error
	)
	switch m.dbType {
	case DbTypeMySQL:
		meta, err = m.queryMySQLTbMeta(ctx, schema, tb)
	default:
		meta, err = m.queryPgTbMeta(ctx, schema, tb)
	}
	if err != nil {
		return rowdata.TbMeta{}, err
	}

	m.mu.Lock()
	m.cache[key] = meta
	m.mu.Unlock()
	return meta, nil
}

// InvalidateByDDL drops the cache entry for every (schema, tb) pair this
// DDL statement references, including both sides of a rename. Callers
// typically pass the affected-objects list produced by
// internal/ddlparser.
func (m *Manager) InvalidateByDDL(affected []SchemaTb) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range affected {
		delete(m.cache, cacheKey{a.Schema, a.Tb})
	}
}

// SchemaTb names one (schema, tb) pair affected by a DDL statement.
type SchemaTb struct {
	Schema, Tb string
}

func (m *Manager) queryMySQLTbMeta(ctx context.Context, schema, tb string) (rowdata.TbMeta, error) {
	columnsQuery := `
		SELECT column_name, column_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`
	// MySQL 5.7 and 8.0 both expose column_type with the UNSIGNED suffix
	// inline, so no version branch is needed for this column alone; the
	// version is retained on Manager for the cases in spec.md §9 where a
	// caller needs to distinguish (e.g. CHARACTER_MAXIMUM_LENGTH for
	// generated columns).
	rows, err := m.db.QueryContext(ctx, columnsQuery, schema, tb)
	if err != nil {
		return rowdata.TbMeta{}, dtserr.WrapTransportError("query columns", err)
	}
	defer rows.Close()

	var cols []rowdata.Column
	for rows.Next() {
		var name, colType, nullable string
		if err := rows.Scan(&name, &colType, &nullable); err != nil {
			return rowdata.TbMeta{}, dtserr.NewUnexpected("scan column row: %v", err)
		}
		cols = append(cols, rowdata.Column{
			Name: name, Type: rowdata.ColType(colType), Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return rowdata.TbMeta{}, dtserr.WrapTransportError("iterate columns", err)
	}
	if len(cols) == 0 {
		return rowdata.TbMeta{}, dtserr.NewNoMetadata(schema, tb)
	}

	keyMap, err := m.queryMySQLKeys(ctx, schema, tb)
	if err != nil {
		return rowdata.TbMeta{}, err
	}
	return rowdata.NewTbMeta(schema, tb, cols, keyMap), nil
}

func (m *Manager) queryMySQLKeys(ctx context.Context, schema, tb string) ([]rowdata.Key, error) {
	query := `
		SELECT s.index_name, s.column_name, s.non_unique
		FROM information_schema.statistics s
		WHERE s.table_schema = ? AND s.table_name = ? AND s.non_unique = 0
		ORDER BY s.index_name = 'PRIMARY' DESC, s.index_name, s.seq_in_index`
	rows, err := m.db.QueryContext(ctx, query, schema, tb)
	if err != nil {
		return nil, dtserr.WrapTransportError("query keys", err)
	}
	defer rows.Close()

	var raw []keyRow
	for rows.Next() {
		var indexName, colName string
		var nonUnique sql.NullInt64
		if err := rows.Scan(&indexName, &colName, &nonUnique); err != nil {
			return nil, dtserr.NewUnexpected("scan key row: %v", err)
		}
		raw = append(raw, keyRow{indexName, colName})
	}
	if err := rows.Err(); err != nil {
		return nil, dtserr.WrapTransportError("iterate keys", err)
	}
	return groupKeyRows(raw, mysqlKeyName), nil
}

func mysqlKeyName(indexName string) string {
	if indexName == "PRIMARY" {
		return "primary"
	}
	return indexName
}

func (m *Manager) queryPgTbMeta(ctx context.Context, schema, tb string) (rowdata.TbMeta, error) {
	columnsQuery := `
		SELECT column_name, udt_name, is_nullable
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`
	rows, err := m.db.QueryContext(ctx, columnsQuery, schema, tb)
	if err != nil {
		return rowdata.TbMeta{}, dtserr.WrapTransportError("query columns", err)
	}
	defer rows.Close()

	var cols []rowdata.Column
	for rows.Next() {
		var name, colType, nullable string
		if err := rows.Scan(&name, &colType, &nullable); err != nil {
			return rowdata.TbMeta{}, dtserr.NewUnexpected("scan column row: %v", err)
		}
		cols = append(cols, rowdata.Column{
			Name: name, Type: rowdata.ColType(colType), Nullable: nullable == "YES",
		})
	}
	if err := rows.Err(); err != nil {
		return rowdata.TbMeta{}, dtserr.WrapTransportError("iterate columns", err)
	}
	if len(cols) == 0 {
		return rowdata.TbMeta{}, dtserr.NewNoMetadata(schema, tb)
	}

	keyMap, err := m.queryPgKeys(ctx, schema, tb)
	if err != nil {
		return rowdata.TbMeta{}, err
	}
	return rowdata.NewTbMeta(schema, tb, cols, keyMap), nil
}

func (m *Manager) queryPgKeys(ctx context.Context, schema, tb string) ([]rowdata.Key, error) {
	query := `
		SELECT
			CASE WHEN i.indisprimary THEN 'primary' ELSE c.relname END,
			a.attname
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indexrelid
		JOIN pg_class t ON t.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(i.indkey)
		WHERE n.nspname = $1 AND t.relname = $2 AND i.indisunique
		ORDER BY i.indisprimary DESC, c.relname, array_position(i.indkey, a.attnum)`
	rows, err := m.db.QueryContext(ctx, query, schema, tb)
	if err != nil {
		return nil, dtserr.WrapTransportError("query keys", err)
	}
	defer rows.Close()

	var raw []keyRow
	for rows.Next() {
		var indexName, colName string
		if err := rows.Scan(&indexName, &colName); err != nil {
			return nil, dtserr.NewUnexpected("scan key row: %v", err)
		}
		raw = append(raw, keyRow{indexName, colName})
	}
	if err := rows.Err(); err != nil {
		return nil, dtserr.WrapTransportError("iterate keys", err)
	}
	return groupKeyRows(raw, func(name string) string { return name }), nil
}

// keyRow is one (index name, column name) row from either dialect's key
// query, already in the query's own column-position order.
type keyRow struct{ indexName, colName string }

// groupKeyRows folds ordered (indexName, columnName) rows into
// rowdata.Key entries, preserving first-seen index order so
// rowdata.ParseRdbCols' tie-breaking rule is deterministic regardless of
// Go map iteration order.
func groupKeyRows(rows []keyRow, normalizeName func(string) string) []rowdata.Key {
	var (
		keys  []rowdata.Key
		index = make(map[string]int)
	)
	for _, r := range rows {
		name := normalizeName(r.indexName)
		if i, ok := index[name]; ok {
			keys[i].Cols = append(keys[i].Cols, r.colName)
			continue
		}
		index[name] = len(keys)
		keys = append(keys, rowdata.Key{Name: name, Cols: []string{r.colName}})
	}
	return keys
}

// IsMySQL8 reports whether the captured version string identifies a
// MySQL 8.x (or newer) server, used to branch INFORMATION_SCHEMA query
// shapes per spec.md §9.
func (m *Manager) IsMySQL8() bool {
	return strings.HasPrefix(m.version, "8.") || strings.HasPrefix(m.version, "9.")
}
