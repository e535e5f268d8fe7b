// Package mysqlcodec implements the MySQL column-value codec (spec.md
// §4.2): FromWire decodes values handed back by the binlog replication
// library, FromQuery decodes values read over database/sql, and FromStr
// decodes a DDL default-value or DML-literal text form. All three
// converge on the same rowdata.ColValue variant for a given column type.
package mysqlcodec

import (
	"regexp"
	"strings"
)

// parenRe strips a type's parenthesized length/precision/enum-literal
// suffix to recover its base keyword, mirroring the teacher's
// VARCHAR(255) -> VARCHAR normalization in internal/core/raw_types.go.
var parenRe = regexp.MustCompile(`\([^)]*\)`)

// BaseType extracts the base type keyword from a column type string like
// "decimal(10,2) unsigned zerofill" -> "decimal", "enum('a','b')" ->
// "enum".
func BaseType(colType string) string {
	base := parenRe.ReplaceAllString(colType, "")
	fields := strings.Fields(base)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(fields[0])
}

// IsUnsigned reports whether a MySQL column type carries the UNSIGNED
// modifier.
func IsUnsigned(colType string) bool {
	return strings.Contains(strings.ToLower(colType), "unsigned")
}

// EnumValues extracts the ordered literal list from an
// "enum('a','b','c')" or "set('a','b','c')" type string. The returned
// slice is 0-indexed even though MySQL's ENUM indices are 1-based and
// 0 is reserved for the empty-string error value; callers must adjust.
func EnumValues(colType string) []string {
	start := strings.IndexByte(colType, '(')
	end := strings.LastIndexByte(colType, ')')
	if start < 0 || end < start {
		return nil
	}
	inner := colType[start+1 : end]
	var out []string
	for _, raw := range splitTopLevelComma(inner) {
		raw = strings.TrimSpace(raw)
		raw = strings.TrimPrefix(raw, "'")
		raw = strings.TrimSuffix(raw, "'")
		raw = strings.ReplaceAll(raw, "''", "'")
		out = append(out, raw)
	}
	return out
}

func splitTopLevelComma(s string) []string {
	var out []string
	var cur strings.Builder
	inQuote := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\'':
			if inQuote && i+1 < len(s) && s[i+1] == '\'' {
				cur.WriteByte(c)
				cur.WriteByte(c)
				i++
				continue
			}
			inQuote = !inQuote
			cur.WriteByte(c)
		case c == ',' && !inQuote:
			out = append(out, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	out = append(out, cur.String())
	return out
}
