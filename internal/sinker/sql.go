package sinker

import (
	"strings"

	"github.com/apecloud/dts/internal/dtserr"
	"github.com/apecloud/dts/internal/rowdata"
)

// rowColumns resolves the column set a row change touches, in the
// table's declared order, and fails with *dtserr.ColumnNotMatch when
// the row carries a column the sink's metadata doesn't know about —
// the schema-drift case spec.md §4.7 treats as fatal for the batch
// rather than retryable.
func rowColumns(meta rowdata.TbMeta, values map[string]rowdata.ColValue) ([]string, error) {
	known := make(map[string]struct{}, len(meta.Cols))
	for _, c := range meta.Cols {
		known[c.Name] = struct{}{}
	}
	for name := range values {
		if _, ok := known[name]; !ok {
			return nil, &dtserr.ColumnNotMatch{Schema: meta.Schema, Tb: meta.Tb, Column: name}
		}
	}
	cols := make([]string, 0, len(values))
	for _, c := range meta.Cols {
		if _, ok := values[c.Name]; ok {
			cols = append(cols, c.Name)
		}
	}
	return cols, nil
}

// buildInsertSQL builds one multi-row upsert statement for a batch of
// Insert rows sharing the same column set, idempotent via REPLACE/ON
// CONFLICT semantics (spec.md §4.7's "at-most-once is not attempted;
// sinkers are expected to be idempotent") rather than failing on a
// duplicate key from a replayed position.
func buildInsertSQL(d Dialect, meta rowdata.TbMeta, rows []rowdata.RowData) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, dtserr.NewUnexpected("buildInsertSQL: empty batch")
	}
	cols, err := rowColumns(meta, rows[0].After)
	if err != nil {
		return "", nil, err
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(d, c)
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(quoteIdent(d, meta.Tb))
	sb.WriteString(" (")
	sb.WriteString(strings.Join(quoted, ", "))
	sb.WriteString(") VALUES ")

	args := make([]any, 0, len(cols)*len(rows))
	argIdx := 1
	for r, row := range rows {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for i, c := range cols {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(placeholder(d, argIdx))
			argIdx++
			args = append(args, row.After[c].DriverValue())
		}
		sb.WriteString(")")
	}

	sb.WriteString(upsertClause(d, meta, cols))
	return sb.String(), args, nil
}

// upsertClause renders the dialect-specific "do nothing new, just
// overwrite" tail so a replayed Insert behaves like an Insert-or-Update.
func upsertClause(d Dialect, meta rowdata.TbMeta, cols []string) string {
	idSet := make(map[string]struct{}, len(meta.IDCols))
	for _, c := range meta.IDCols {
		idSet[c] = struct{}{}
	}
	var updatable []string
	for _, c := range cols {
		if _, ok := idSet[c]; !ok {
			updatable = append(updatable, c)
		}
	}
	if len(updatable) == 0 {
		if d == DialectPostgres {
			return " ON CONFLICT DO NOTHING"
		}
		if len(cols) > 0 {
			return " ON DUPLICATE KEY UPDATE " + quoteIdent(d, cols[0]) + " = " + quoteIdent(d, cols[0])
		}
		return ""
	}

	if d == DialectPostgres {
		quotedIDs := make([]string, len(meta.IDCols))
		for i, c := range meta.IDCols {
			quotedIDs[i] = quoteIdent(d, c)
		}
		sets := make([]string, len(updatable))
		for i, c := range updatable {
			sets[i] = quoteIdent(d, c) + " = EXCLUDED." + quoteIdent(d, c)
		}
		return " ON CONFLICT (" + strings.Join(quotedIDs, ", ") + ") DO UPDATE SET " + strings.Join(sets, ", ")
	}

	sets := make([]string, len(updatable))
	for i, c := range updatable {
		sets[i] = quoteIdent(d, c) + " = VALUES(" + quoteIdent(d, c) + ")"
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

// buildUpdateSQL builds a single-row UPDATE, setting every column
// present in row.After and matching on every column in meta.IDCols read
// from row.Before (the pre-image), per rowdata.RowData.IDColValues.
func buildUpdateSQL(d Dialect, meta rowdata.TbMeta, row rowdata.RowData) (string, []any, error) {
	cols, err := rowColumns(meta, row.After)
	if err != nil {
		return "", nil, err
	}
	idValues := row.IDColValues(meta.IDCols)
	if len(idValues) != len(meta.IDCols) {
		return "", nil, dtserr.NewUnexpected("update on %s.%s missing id column value(s)", meta.Schema, meta.Tb)
	}

	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(quoteIdent(d, meta.Tb))
	sb.WriteString(" SET ")

	args := make([]any, 0, len(cols)+len(meta.IDCols))
	argIdx := 1
	for i, c := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(quoteIdent(d, c))
		sb.WriteString(" = ")
		sb.WriteString(placeholder(d, argIdx))
		argIdx++
		args = append(args, row.After[c].DriverValue())
	}

	sb.WriteString(" WHERE ")
	for i, c := range meta.IDCols {
		if i > 0 {
			sb.WriteString(" AND ")
		}
		sb.WriteString(quoteIdent(d, c))
		sb.WriteString(" = ")
		sb.WriteString(placeholder(d, argIdx))
		argIdx++
		args = append(args, idValues[c].DriverValue())
	}

	return sb.String(), args, nil
}

// buildDeleteSQL builds a batched DELETE over a tuple-IN clause on
// meta.IDCols, covering any number of id columns in one round trip.
func buildDeleteSQL(d Dialect, meta rowdata.TbMeta, rows []rowdata.RowData) (string, []any, error) {
	if len(rows) == 0 {
		return "", nil, dtserr.NewUnexpected("buildDeleteSQL: empty batch")
	}
	if len(meta.IDCols) == 0 {
		return "", nil, dtserr.NewUnexpected("delete on %s.%s has no id columns", meta.Schema, meta.Tb)
	}

	quotedIDs := make([]string, len(meta.IDCols))
	for i, c := range meta.IDCols {
		quotedIDs[i] = quoteIdent(d, c)
	}

	var sb strings.Builder
	sb.WriteString("DELETE FROM ")
	sb.WriteString(quoteIdent(d, meta.Tb))
	sb.WriteString(" WHERE (")
	sb.WriteString(strings.Join(quotedIDs, ", "))
	sb.WriteString(") IN (")

	args := make([]any, 0, len(meta.IDCols)*len(rows))
	argIdx := 1
	for r, row := range rows {
		idValues := row.IDColValues(meta.IDCols)
		if len(idValues) != len(meta.IDCols) {
			return "", nil, dtserr.NewUnexpected("delete on %s.%s missing id column value(s)", meta.Schema, meta.Tb)
		}
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(")
		for i, c := range meta.IDCols {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(placeholder(d, argIdx))
			argIdx++
			args = append(args, idValues[c].DriverValue())
		}
		sb.WriteString(")")
	}
	sb.WriteString(")")

	return sb.String(), args, nil
}
