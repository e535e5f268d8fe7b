// Package dclparser recognizes DCL statements (spec.md §4.4):
// CREATE/ALTER USER, CREATE/DROP ROLE, DROP USER, GRANT, REVOKE, and
// SET DEFAULT ROLE. No sub-grammar is parsed beyond the recognized
// prefix — the statement body is preserved verbatim as Origin, to be
// replayed unmodified against the target.
package dclparser

import (
	"regexp"
	"strings"

	"github.com/apecloud/dts/internal/dtserr"
)

// Kind discriminates the recognized DCL statement shapes.
type Kind int

const (
	KindCreateUser Kind = iota
	KindAlterUser
	KindCreateRole
	KindDropUser
	KindDropRole
	KindGrant
	KindRevoke
	KindSetRole
)

// Statement is a recognized DCL statement. Origin is the full,
// comment-stripped, trimmed source text — the parser does not rewrite
// or truncate it, only classifies it by Kind.
type Statement struct {
	Kind   Kind
	Origin string
}

var commentRe = regexp.MustCompile(`(/\*([^*]|\*+[^*/*])*\*+/)|(--[^\n]*\n)`)

func stripComments(sql string) string {
	return commentRe.ReplaceAllString(sql, "")
}

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

// prefixRule pairs a sequence of case-insensitive keywords with the
// Kind they signal. Each keyword must be separated by whitespace in
// the input, mirroring nom's tuple(tag_no_case, multispace1, ...)
// chains in the grammar this is grounded on.
type prefixRule struct {
	kind     Kind
	keywords []string
}

var prefixRules = []prefixRule{
	{KindCreateUser, []string{"create", "user"}},
	{KindAlterUser, []string{"alter", "user"}},
	{KindCreateRole, []string{"create", "role"}},
	{KindDropUser, []string{"drop", "user"}},
	{KindDropRole, []string{"drop", "role"}},
	{KindGrant, []string{"grant"}},
	{KindRevoke, []string{"revoke"}},
	{KindSetRole, []string{"set", "default", "role"}},
}

// Parse recognizes sql as a DCL statement. It returns (nil, nil) when
// sql is DML-prefixed or matches none of the recognized prefixes, and
// an error only if asked to parse something that looks like it should
// be DCL but isn't — in practice this parser never errors, since an
// unmatched prefix simply falls through to nil.
func Parse(sql string) (*Statement, error) {
	cleaned := stripComments(sql)
	if isDmlPrefixed(cleaned) {
		return nil, nil
	}
	trimmed := strings.TrimSpace(cleaned)

	for _, rule := range prefixRules {
		if matchesPrefix(trimmed, rule.keywords) {
			return &Statement{Kind: rule.kind, Origin: trimmed}, nil
		}
	}
	return nil, nil
}

// matchesPrefix reports whether s begins with the given keywords in
// order, each separated by one or more whitespace characters.
func matchesPrefix(s string, keywords []string) bool {
	rest := s
	for _, kw := range keywords {
		rest = strings.TrimLeft(rest, " \t\r\n")
		if len(rest) < len(kw) || !strings.EqualFold(rest[:len(kw)], kw) {
			return false
		}
		next := rest[len(kw):]
		if next != "" && !isSpace(next[0]) {
			return false
		}
		rest = next
	}
	return true
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\r' || b == '\n'
}

// String names the statement kind for logging.
func (k Kind) String() string {
	switch k {
	case KindCreateUser:
		return "CreateUser"
	case KindAlterUser:
		return "AlterUser"
	case KindCreateRole:
		return "CreateRole"
	case KindDropUser:
		return "DropUser"
	case KindDropRole:
		return "DropRole"
	case KindGrant:
		return "Grant"
	case KindRevoke:
		return "Revoke"
	case KindSetRole:
		return "SetRole"
	default:
		return "Unknown"
	}
}

// MustParse is a thin wrapper returning a dtserr.Unexpected for
// callers that want to treat "could not classify this as DCL" as an
// error rather than a nil result (e.g. a caller that has already
// ruled out DDL and DML and expects exactly one of the three to
// match).
func MustParse(sql string) (*Statement, error) {
	stmt, err := Parse(sql)
	if err != nil {
		return nil, err
	}
	if stmt == nil {
		return nil, dtserr.NewUnexpected("failed to parse sql as dcl: %s", sql)
	}
	return stmt, nil
}
