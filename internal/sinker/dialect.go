// Package sinker implements the relational Sink drivers the pipeline
// runtime writes through (spec.md §4.7's sinker, restricted here to the
// MySQL/Postgres wire — see SPEC_FULL.md §1 for what stays out of
// scope): a database/sql connection pool plus dialect-aware SQL
// generation from rowdata.TbMeta/RowData.
package sinker

import "fmt"

// Dialect picks the placeholder syntax and upsert clause a Sink
// generates. Mirrors internal/filter.Dialect's split, kept separate
// since a sinker's dialect concerns (placeholders, ON DUPLICATE KEY vs
// ON CONFLICT) are independent from the filter's identifier-escaping
// concerns.
type Dialect int

const (
	DialectMySQL Dialect = iota
	DialectPostgres
)

// placeholder renders the i'th (1-based) bind-parameter marker for d.
func placeholder(d Dialect, i int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", i)
	}
	return "?"
}

// quoteIdent quotes a column or table identifier for d.
func quoteIdent(d Dialect, name string) string {
	if d == DialectPostgres {
		return `"` + name + `"`
	}
	return "`" + name + "`"
}
