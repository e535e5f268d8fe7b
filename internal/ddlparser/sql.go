package ddlparser

import (
	"fmt"
	"strings"
)

// quoteIdent re-escapes an identifier for the statement's dialect:
// backtick-wrapped for MySQL, double-quote-wrapped for PostgreSQL. A
// PostgreSQL identifier that already carries its surrounding quotes
// (see cursor.identifier) is passed through unchanged.
func quoteIdent(ident string, d Dialect) string {
	if d == DialectPostgres {
		if strings.HasPrefix(ident, `"`) && strings.HasSuffix(ident, `"`) {
			return ident
		}
		return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
	}
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func quoteTable(t TableRef, d Dialect) string {
	if t.Schema == "" {
		return quoteIdent(t.Tb, d)
	}
	return quoteIdent(t.Schema, d) + "." + quoteIdent(t.Tb, d)
}

// ToSQL reconstructs a canonical, uppercase-keyword rendering of s,
// re-quoting identifiers for s.Dialect and appending the verbatim
// Unparsed tail this parser never interpreted (column definitions,
// index column lists, and similar clauses).
func (s *Statement) ToSQL() string {
	var b strings.Builder
	writeTail := func() {
		if s.Unparsed != "" {
			b.WriteByte(' ')
			b.WriteString(s.Unparsed)
		}
	}

	switch s.Kind {
	case KindCreateDatabase:
		b.WriteString("CREATE DATABASE ")
		if s.IfNotExists {
			b.WriteString("IF NOT EXISTS ")
		}
		b.WriteString(quoteIdent(s.Db, s.Dialect))
	case KindDropDatabase:
		b.WriteString("DROP DATABASE ")
		if s.IfExists {
			b.WriteString("IF EXISTS ")
		}
		b.WriteString(quoteIdent(s.Db, s.Dialect))
	case KindAlterDatabase:
		b.WriteString("ALTER DATABASE ")
		b.WriteString(quoteIdent(s.Db, s.Dialect))
	case KindCreateSchema:
		b.WriteString("CREATE SCHEMA ")
		if s.IfNotExists {
			b.WriteString("IF NOT EXISTS ")
		}
		b.WriteString(quoteIdent(s.Db, s.Dialect))
	case KindDropSchema:
		b.WriteString("DROP SCHEMA ")
		if s.IfExists {
			b.WriteString("IF EXISTS ")
		}
		b.WriteString(quoteIdent(s.Db, s.Dialect))
	case KindAlterSchema:
		b.WriteString("ALTER SCHEMA ")
		b.WriteString(quoteIdent(s.Db, s.Dialect))
	case KindCreateTable:
		b.WriteString("CREATE ")
		if s.Temporary {
			if s.TempKind != "" {
				b.WriteString(s.TempKind)
			} else {
				b.WriteString("TEMPORARY")
			}
			b.WriteByte(' ')
		}
		if s.Unlogged {
			b.WriteString("UNLOGGED ")
		}
		b.WriteString("TABLE ")
		if s.IfNotExists {
			b.WriteString("IF NOT EXISTS ")
		}
		b.WriteString(quoteTable(s.Table, s.Dialect))
	case KindDropTable:
		b.WriteString("DROP TABLE ")
		if s.IfExists {
			b.WriteString("IF EXISTS ")
		}
		b.WriteString(joinTables(s.Targets, s.Dialect))
	case KindAlterTable:
		b.WriteString("ALTER TABLE ")
		if s.IfExists {
			b.WriteString("IF EXISTS ")
		}
		if s.Only {
			b.WriteString("ONLY ")
		}
		b.WriteString(quoteTable(s.Table, s.Dialect))
	case KindAlterTableRename:
		b.WriteString("ALTER TABLE ")
		if s.IfExists {
			b.WriteString("IF EXISTS ")
		}
		if s.Only {
			b.WriteString("ONLY ")
		}
		b.WriteString(quoteTable(s.Table, s.Dialect))
		b.WriteString(" RENAME TO ")
		b.WriteString(quoteTable(s.RenameTo, s.Dialect))
	case KindAlterTableSetSchema:
		b.WriteString("ALTER TABLE ")
		if s.IfExists {
			b.WriteString("IF EXISTS ")
		}
		if s.Only {
			b.WriteString("ONLY ")
		}
		b.WriteString(quoteTable(s.Table, s.Dialect))
		b.WriteString(" SET SCHEMA ")
		b.WriteString(quoteIdent(s.NewSchema, s.Dialect))
	case KindTruncateTable:
		b.WriteString("TRUNCATE TABLE ")
		if s.Only {
			b.WriteString("ONLY ")
		}
		b.WriteString(joinTables(s.Targets, s.Dialect))
	case KindRenameTable:
		b.WriteString("RENAME TABLE ")
		parts := make([]string, len(s.RenamePairs))
		for i, pair := range s.RenamePairs {
			parts[i] = fmt.Sprintf("%s TO %s", quoteTable(pair[0], s.Dialect), quoteTable(pair[1], s.Dialect))
		}
		b.WriteString(strings.Join(parts, ", "))
	case KindCreateIndex:
		b.WriteString("CREATE ")
		switch {
		case s.Unique:
			b.WriteString("UNIQUE ")
		case s.Fulltext:
			b.WriteString("FULLTEXT ")
		case s.Spatial:
			b.WriteString("SPATIAL ")
		}
		b.WriteString("INDEX ")
		if s.Concurrently {
			b.WriteString("CONCURRENTLY ")
		}
		if s.IfNotExists {
			b.WriteString("IF NOT EXISTS ")
		}
		b.WriteString(quoteIdent(s.IndexName, s.Dialect))
		b.WriteString(" ON ")
		b.WriteString(quoteTable(s.Table, s.Dialect))
		if s.Using != "" {
			b.WriteString(" USING ")
			b.WriteString(s.Using)
		}
	case KindDropIndex:
		b.WriteString("DROP INDEX ")
		if s.Concurrently {
			b.WriteString("CONCURRENTLY ")
		}
		if s.IfExists {
			b.WriteString("IF EXISTS ")
		}
		if s.Dialect == DialectPostgres {
			b.WriteString(strings.Join(s.IndexTargets, ", "))
		} else {
			b.WriteString(quoteIdent(s.IndexName, s.Dialect))
			b.WriteString(" ON ")
			b.WriteString(quoteTable(s.Table, s.Dialect))
		}
	}

	writeTail()
	return strings.TrimSpace(b.String())
}

func joinTables(targets []TableRef, d Dialect) string {
	parts := make([]string, len(targets))
	for i, t := range targets {
		parts[i] = quoteTable(t, d)
	}
	return strings.Join(parts, ", ")
}

// SplitToMulti explodes a multi-target statement (DROP TABLE a, b;
// TRUNCATE TABLE a, b; RENAME TABLE a TO x, b TO y; PostgreSQL DROP
// INDEX a, b) into one Statement per target, so downstream consumers
// (metadata invalidation, routing) never have to special-case
// multi-target forms. Statements with a single implicit target are
// returned as a one-element slice unchanged.
func (s *Statement) SplitToMulti() []*Statement {
	switch s.Kind {
	case KindDropTable, KindTruncateTable:
		if len(s.Targets) <= 1 {
			return []*Statement{s}
		}
		out := make([]*Statement, len(s.Targets))
		for i, t := range s.Targets {
			cp := *s
			cp.Targets = []TableRef{t}
			out[i] = &cp
		}
		return out
	case KindRenameTable:
		if len(s.RenamePairs) <= 1 {
			return []*Statement{s}
		}
		out := make([]*Statement, len(s.RenamePairs))
		for i, pair := range s.RenamePairs {
			cp := *s
			cp.RenamePairs = [][2]TableRef{pair}
			out[i] = &cp
		}
		return out
	case KindDropIndex:
		if s.Dialect != DialectPostgres || len(s.IndexTargets) <= 1 {
			return []*Statement{s}
		}
		out := make([]*Statement, len(s.IndexTargets))
		for i, target := range s.IndexTargets {
			cp := *s
			cp.IndexTargets = []string{target}
			out[i] = &cp
		}
		return out
	default:
		return []*Statement{s}
	}
}
