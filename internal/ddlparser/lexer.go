package ddlparser

import (
	"regexp"
	"strings"
)

// Dialect selects MySQL or PostgreSQL lexical rules.
type Dialect int

const (
	DialectMySQL Dialect = iota
	DialectPostgres
)

// commentRe strips block and line comments before parsing (spec.md
// §4.3): "create /*some comments,*/table/*some comments*/ `aaa`.`bbb`".
var commentRe = regexp.MustCompile(`(/\*([^*]|\*+[^*/*])*\*+/)|(--[^\n]*\n)`)

func stripComments(sql string) string {
	return commentRe.ReplaceAllString(sql, "")
}

// dmlPrefixes gates DML statements out before descent, so a heartbeat
// connection mixing DML into the same stream as DDL (MySQL
// binlog_format=mixed) never gets misread as a DDL statement.
var dmlPrefixes = []string{"insert into ", "update ", "delete ", "replace into "}

func isDmlPrefixed(sql string) bool {
	lower := strings.ToLower(strings.TrimSpace(sql))
	for _, p := range dmlPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// cursor is a byte-position scanner over a DDL statement with
// case-insensitive keyword matching and dialect-aware identifier
// quoting, standing in for the combinator parser (nom, in the original)
// this module's grammar is modeled on.
type cursor struct {
	s       string
	pos     int
	dialect Dialect
}

func newCursor(s string, d Dialect) *cursor {
	return &cursor{s: s, dialect: d}
}

func (c *cursor) skipSpace() {
	for c.pos < len(c.s) {
		switch c.s[c.pos] {
		case ' ', '\t', '\n', '\r':
			c.pos++
		default:
			return
		}
	}
}

func (c *cursor) eof() bool {
	c.skipSpace()
	return c.pos >= len(c.s)
}

// keyword consumes a case-insensitive keyword at the cursor, requiring
// it not be immediately followed by another identifier character (so
// "create" doesn't match a prefix of "createx"). Returns false and
// leaves the cursor unmoved on a non-match.
func (c *cursor) keyword(kw string) bool {
	c.skipSpace()
	if c.pos+len(kw) > len(c.s) {
		return false
	}
	if !strings.EqualFold(c.s[c.pos:c.pos+len(kw)], kw) {
		return false
	}
	next := c.pos + len(kw)
	if next < len(c.s) && isIdentByte(c.s[next]) {
		return false
	}
	c.pos = next
	return true
}

// oneOfKeyword tries each keyword in order, returning the first match's
// canonical (uppercased) text.
func (c *cursor) oneOfKeyword(kws ...string) (string, bool) {
	for _, kw := range kws {
		if c.keyword(kw) {
			return strings.ToUpper(kw), true
		}
	}
	return "", false
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// identifier parses one bare, backtick-quoted (MySQL), or
// double-quoted (PostgreSQL) identifier. Bare identifiers are rejected
// if they are a reserved keyword (the caller is expected to have
// already tried the relevant keyword() calls first, so reaching here
// with a reserved word is a parse failure). PostgreSQL quoted
// identifiers are returned WITH their surrounding quotes, preserving
// case; PostgreSQL bare identifiers fold to lowercase; MySQL
// backtick-quoted identifiers are unescaped and returned without
// quotes.
func (c *cursor) identifier() (string, bool) {
	c.skipSpace()
	if c.pos >= len(c.s) {
		return "", false
	}

	if c.s[c.pos] == '`' {
		return c.quotedIdentifier('`', false)
	}
	if c.s[c.pos] == '"' {
		return c.quotedIdentifier('"', true)
	}

	start := c.pos
	for c.pos < len(c.s) && isIdentByte(c.s[c.pos]) {
		c.pos++
	}
	if c.pos == start {
		return "", false
	}
	word := c.s[start:c.pos]
	if IsReserved(word) {
		c.pos = start
		return "", false
	}
	if c.dialect == DialectPostgres {
		word = strings.ToLower(word)
	}
	return word, true
}

// quotedIdentifier consumes a quote-delimited identifier where the
// quote character is escaped by doubling. keepQuotes controls whether
// the surrounding quote characters are retained in the returned string
// (PostgreSQL double-quoted identifiers keep them; MySQL backtick
// identifiers do not).
func (c *cursor) quotedIdentifier(q byte, keepQuotes bool) (string, bool) {
	start := c.pos
	c.pos++ // opening quote
	var b strings.Builder
	if keepQuotes {
		b.WriteByte(q)
	}
	for c.pos < len(c.s) {
		if c.s[c.pos] == q {
			if c.pos+1 < len(c.s) && c.s[c.pos+1] == q {
				b.WriteByte(q)
				c.pos += 2
				continue
			}
			c.pos++ // closing quote
			if keepQuotes {
				b.WriteByte(q)
			}
			return b.String(), true
		}
		b.WriteByte(c.s[c.pos])
		c.pos++
	}
	c.pos = start
	return "", false
}

// schemaTable parses "[schema.]table" or "[\"schema\".]\"table\"".
func (c *cursor) schemaTable() (schema, tb string, ok bool) {
	first, ok := c.identifier()
	if !ok {
		return "", "", false
	}
	save := c.pos
	c.skipSpace()
	if c.pos < len(c.s) && c.s[c.pos] == '.' {
		c.pos++
		second, ok2 := c.identifier()
		if ok2 {
			return first, second, true
		}
		c.pos = save
	}
	return "", first, true
}

// schemaTableList parses a comma-separated list of schema_table
// targets.
func (c *cursor) schemaTableList() ([][2]string, bool) {
	var out [][2]string
	schema, tb, ok := c.schemaTable()
	if !ok {
		return nil, false
	}
	out = append(out, [2]string{schema, tb})
	for {
		c.skipSpace()
		if c.pos < len(c.s) && c.s[c.pos] == ',' {
			c.pos++
			s, t, ok := c.schemaTable()
			if !ok {
				return nil, false
			}
			out = append(out, [2]string{s, t})
			continue
		}
		break
	}
	return out, true
}

// rest returns the remaining unconsumed text, trimmed of leading and
// trailing whitespace, preserved verbatim as the statement's
// "unparsed" tail.
func (c *cursor) rest() string {
	return strings.TrimSpace(c.s[c.pos:])
}
