// Package ddlparser implements the hand-rolled DDL parser (spec.md
// §4.3): comment stripping, a DML-prefix gate, and recursive-descent
// recognition of CREATE/DROP/ALTER DATABASE|SCHEMA, CREATE/DROP/ALTER
// TABLE, TRUNCATE TABLE, RENAME TABLE, and CREATE/DROP INDEX, both in
// MySQL and PostgreSQL flavor.
package ddlparser

import "github.com/apecloud/dts/internal/dtserr"

// Parser parses DDL statements for one dialect.
type Parser struct {
	dialect Dialect
}

// New builds a Parser for the given dialect.
func New(dialect Dialect) *Parser {
	return &Parser{dialect: dialect}
}

// Parse recognizes sql as a DDL statement. It returns (nil, nil) when
// sql is DML-prefixed or matches none of the recognized shapes — the Go
// analog of the original's Option<DdlData>. A statement whose keyword
// prefix is recognized but whose body does not parse also yields
// (nil, nil). The error return is reserved for a recognizer reporting an
// internal failure; none of the current recognizers reports one.
func (p *Parser) Parse(sql, defaultSchema string) (*Statement, error) {
	cleaned := stripComments(sql)
	if isDmlPrefixed(cleaned) {
		return nil, nil
	}

	c := newCursor(cleaned, p.dialect)
	stmt, matched, err := p.dispatch(c)
	if err != nil {
		return nil, dtserr.NewUnexpected("failed to parse sql: %s: %v", sql, err)
	}
	if !matched {
		return nil, nil
	}
	stmt.Dialect = p.dialect
	stmt.DefaultSchema = defaultSchema
	return stmt, nil
}

func (p *Parser) dispatch(c *cursor) (*Statement, bool, error) {
	type attempt struct {
		fn func(*cursor) (*Statement, bool, error)
	}
	attempts := []attempt{
		{p.parseCreateDatabase}, {p.parseDropDatabase}, {p.parseAlterDatabase},
		{p.parseCreateSchema}, {p.parseDropSchema}, {p.parseAlterSchema},
		{p.parseCreateTable}, {p.parseDropTable}, {p.parseAlterTable},
		{p.parseTruncateTable}, {p.parseRenameTable},
		{p.parseCreateIndex}, {p.parseDropIndex},
	}
	for _, a := range attempts {
		start := c.pos
		stmt, ok, err := a.fn(c)
		if err != nil {
			return nil, false, err
		}
		if ok {
			return stmt, true, nil
		}
		c.pos = start
	}
	return nil, false, nil
}

func (p *Parser) parseIfExists(c *cursor) bool   { return c.keyword("if") && c.keyword("exists") }
func (p *Parser) parseIfNotExists(c *cursor) bool {
	save := c.pos
	if c.keyword("if") && c.keyword("not") && c.keyword("exists") {
		return true
	}
	c.pos = save
	return false
}

func (p *Parser) parseCreateDatabase(c *cursor) (*Statement, bool, error) {
	if !c.keyword("create") {
		return nil, false, nil
	}
	if !c.keyword("database") {
		return nil, false, nil
	}
	ifNotExists := p.parseIfNotExists(c)
	db, ok := c.identifier()
	if !ok {
		return nil, false, nil
	}
	return &Statement{Kind: KindCreateDatabase, Db: db, IfNotExists: ifNotExists, Unparsed: c.rest()}, true, nil
}

func (p *Parser) parseDropDatabase(c *cursor) (*Statement, bool, error) {
	if !c.keyword("drop") || !c.keyword("database") {
		return nil, false, nil
	}
	ifExists := p.parseIfExists(c)
	db, ok := c.identifier()
	if !ok {
		return nil, false, nil
	}
	return &Statement{Kind: KindDropDatabase, Db: db, IfExists: ifExists, Unparsed: c.rest()}, true, nil
}

func (p *Parser) parseAlterDatabase(c *cursor) (*Statement, bool, error) {
	if !c.keyword("alter") || !c.keyword("database") {
		return nil, false, nil
	}
	db, ok := c.identifier()
	if !ok {
		return nil, false, nil
	}
	return &Statement{Kind: KindAlterDatabase, Db: db, Unparsed: c.rest()}, true, nil
}

func (p *Parser) parseCreateSchema(c *cursor) (*Statement, bool, error) {
	if !c.keyword("create") || !c.keyword("schema") {
		return nil, false, nil
	}
	ifNotExists := p.parseIfNotExists(c)
	schema, ok := c.identifier()
	if !ok {
		return nil, false, nil
	}
	return &Statement{Kind: KindCreateSchema, Db: schema, IfNotExists: ifNotExists, Unparsed: c.rest()}, true, nil
}

func (p *Parser) parseDropSchema(c *cursor) (*Statement, bool, error) {
	if !c.keyword("drop") || !c.keyword("schema") {
		return nil, false, nil
	}
	ifExists := p.parseIfExists(c)
	schema, ok := c.identifier()
	if !ok {
		return nil, false, nil
	}
	return &Statement{Kind: KindDropSchema, Db: schema, IfExists: ifExists, Unparsed: c.rest()}, true, nil
}

func (p *Parser) parseAlterSchema(c *cursor) (*Statement, bool, error) {
	if !c.keyword("alter") || !c.keyword("schema") {
		return nil, false, nil
	}
	schema, ok := c.identifier()
	if !ok {
		return nil, false, nil
	}
	return &Statement{Kind: KindAlterSchema, Db: schema, Unparsed: c.rest()}, true, nil
}

func (p *Parser) parseCreateTable(c *cursor) (*Statement, bool, error) {
	if !c.keyword("create") {
		return nil, false, nil
	}

	stmt := &Statement{Kind: KindCreateTable}
	if p.dialect == DialectPostgres {
		if kind, ok := c.oneOfKeyword("global", "local"); ok {
			sub, ok2 := c.oneOfKeyword("temporary", "temp")
			if !ok2 {
				return nil, false, nil
			}
			stmt.Temporary = true
			stmt.TempKind = kind + " " + sub
		} else if sub, ok := c.oneOfKeyword("temporary", "temp"); ok {
			stmt.Temporary = true
			stmt.TempKind = sub
		}
		if c.keyword("unlogged") {
			stmt.Unlogged = true
		}
	} else {
		if c.keyword("temporary") {
			stmt.Temporary = true
		}
	}

	if !c.keyword("table") {
		return nil, false, nil
	}
	ifNotExists := p.parseIfNotExists(c)
	schema, tb, ok := c.schemaTable()
	if !ok {
		return nil, false, nil
	}
	stmt.Table = TableRef{Schema: schema, Tb: tb}
	stmt.IfNotExists = ifNotExists
	stmt.Unparsed = c.rest()
	return stmt, true, nil
}

func (p *Parser) parseDropTable(c *cursor) (*Statement, bool, error) {
	if !c.keyword("drop") {
		return nil, false, nil
	}
	c.keyword("temporary") // MySQL: DROP TEMPORARY TABLE
	if !c.keyword("table") {
		return nil, false, nil
	}
	ifExists := p.parseIfExists(c)
	list, ok := c.schemaTableList()
	if !ok {
		return nil, false, nil
	}
	targets := make([]TableRef, len(list))
	for i, pair := range list {
		targets[i] = TableRef{Schema: pair[0], Tb: pair[1]}
	}
	return &Statement{Kind: KindDropTable, Targets: targets, IfExists: ifExists, Unparsed: c.rest()}, true, nil
}

func (p *Parser) parseAlterTable(c *cursor) (*Statement, bool, error) {
	if !c.keyword("alter") || !c.keyword("table") {
		return nil, false, nil
	}
	ifExists := false
	only := false
	if p.dialect == DialectPostgres {
		ifExists = p.parseIfExists(c)
		only = c.keyword("only")
	}
	schema, tb, ok := c.schemaTable()
	if !ok {
		return nil, false, nil
	}
	table := TableRef{Schema: schema, Tb: tb}

	save := c.pos
	if c.keyword("rename") {
		if p.dialect == DialectMySQL {
			c.oneOfKeyword("as", "to")
		} else {
			if !c.keyword("to") {
				c.pos = save
				goto plain
			}
		}
		if newSchema, newTb, ok2 := c.schemaTable(); ok2 {
			return &Statement{
				Kind: KindAlterTableRename, Table: table,
				RenameTo: TableRef{Schema: newSchema, Tb: newTb},
				IfExists: ifExists, Only: only, Unparsed: c.rest(),
			}, true, nil
		}
		c.pos = save
	}
	if p.dialect == DialectPostgres {
		if c.keyword("set") && c.keyword("schema") {
			if newSchema, ok2 := c.identifier(); ok2 {
				return &Statement{
					Kind: KindAlterTableSetSchema, Table: table, NewSchema: newSchema,
					IfExists: ifExists, Only: only, Unparsed: c.rest(),
				}, true, nil
			}
		}
		c.pos = save
	}

plain:
	return &Statement{Kind: KindAlterTable, Table: table, IfExists: ifExists, Only: only, Unparsed: c.rest()}, true, nil
}

func (p *Parser) parseTruncateTable(c *cursor) (*Statement, bool, error) {
	if !c.keyword("truncate") {
		return nil, false, nil
	}
	c.keyword("table") // PostgreSQL requires it; MySQL's TABLE keyword is optional
	only := p.dialect == DialectPostgres && c.keyword("only")
	list, ok := c.schemaTableList()
	if !ok {
		return nil, false, nil
	}
	targets := make([]TableRef, len(list))
	for i, pair := range list {
		targets[i] = TableRef{Schema: pair[0], Tb: pair[1]}
	}
	return &Statement{Kind: KindTruncateTable, Targets: targets, Only: only, Unparsed: c.rest()}, true, nil
}

func (p *Parser) parseRenameTable(c *cursor) (*Statement, bool, error) {
	if p.dialect != DialectMySQL {
		return nil, false, nil
	}
	if !c.keyword("rename") || !c.keyword("table") {
		return nil, false, nil
	}
	var pairs [][2]TableRef
	for {
		fromSchema, fromTb, ok := c.schemaTable()
		if !ok {
			return nil, false, nil
		}
		if !c.keyword("to") {
			return nil, false, nil
		}
		toSchema, toTb, ok := c.schemaTable()
		if !ok {
			return nil, false, nil
		}
		pairs = append(pairs, [2]TableRef{{Schema: fromSchema, Tb: fromTb}, {Schema: toSchema, Tb: toTb}})
		c.skipSpace()
		if c.pos < len(c.s) && c.s[c.pos] == ',' {
			c.pos++
			continue
		}
		break
	}
	return &Statement{Kind: KindRenameTable, RenamePairs: pairs, Unparsed: c.rest()}, true, nil
}

func (p *Parser) parseCreateIndex(c *cursor) (*Statement, bool, error) {
	if !c.keyword("create") {
		return nil, false, nil
	}
	stmt := &Statement{Kind: KindCreateIndex}
	if c.keyword("unique") {
		stmt.Unique = true
	} else if p.dialect == DialectMySQL && c.keyword("fulltext") {
		stmt.Fulltext = true
	} else if p.dialect == DialectMySQL && c.keyword("spatial") {
		stmt.Spatial = true
	}
	if !c.keyword("index") {
		return nil, false, nil
	}
	if p.dialect == DialectPostgres && c.keyword("concurrently") {
		stmt.Concurrently = true
	}
	ifNotExists := p.parseIfNotExists(c)
	name, ok := c.identifier()
	if !ok {
		return nil, false, nil
	}
	stmt.IndexName = name
	if !c.keyword("on") {
		return nil, false, nil
	}
	if p.dialect == DialectPostgres && c.keyword("only") {
		// ONLY restricts index creation to the named table, excluding
		// inheriting children; no separate field needed beyond Unparsed.
	}
	schema, tb, ok := c.schemaTable()
	if !ok {
		return nil, false, nil
	}
	stmt.Table = TableRef{Schema: schema, Tb: tb}
	stmt.IfNotExists = ifNotExists
	if p.dialect == DialectMySQL {
		save := c.pos
		if c.keyword("using") {
			if using, ok2 := c.oneOfKeyword("btree", "hash"); ok2 {
				stmt.Using = using
			} else {
				c.pos = save
			}
		}
	}
	stmt.Unparsed = c.rest()
	return stmt, true, nil
}

func (p *Parser) parseDropIndex(c *cursor) (*Statement, bool, error) {
	if !c.keyword("drop") || !c.keyword("index") {
		return nil, false, nil
	}
	stmt := &Statement{Kind: KindDropIndex}
	if p.dialect == DialectPostgres {
		if c.keyword("concurrently") {
			stmt.Concurrently = true
		}
		stmt.IfExists = p.parseIfExists(c)

		var names []string
		for {
			schema, name, ok := c.schemaTable()
			if !ok {
				return nil, false, nil
			}
			full := name
			if schema != "" {
				full = schema + "." + name
			}
			names = append(names, full)
			c.skipSpace()
			if c.pos < len(c.s) && c.s[c.pos] == ',' {
				c.pos++
				continue
			}
			break
		}
		stmt.IndexTargets = names
		stmt.Unparsed = c.rest()
		return stmt, true, nil
	}

	// MySQL: DROP INDEX index_name ON tbl_name
	name, ok := c.identifier()
	if !ok {
		return nil, false, nil
	}
	if !c.keyword("on") {
		return nil, false, nil
	}
	schema, tb, ok := c.schemaTable()
	if !ok {
		return nil, false, nil
	}
	stmt.IndexName = name
	stmt.Table = TableRef{Schema: schema, Tb: tb}
	stmt.Unparsed = c.rest()
	return stmt, true, nil
}
