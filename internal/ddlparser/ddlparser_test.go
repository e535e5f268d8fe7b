package ddlparser

import "testing"

func TestIsReservedCaseInsensitive(t *testing.T) {
	if !IsReserved("create") || !IsReserved("TABLE") {
		t.Fatal("expected reserved keywords to match case-insensitively")
	}
	if IsReserved("users") {
		t.Fatal("users should not be reserved")
	}
}

func TestStripCommentsRemovesBlockAndLine(t *testing.T) {
	got := stripComments("create /*some comments,*/table/*x*/ `aaa`.`bbb` -- trailing\n(id int)")
	want := "create table `aaa`.`bbb` (id int)"
	if got != want {
		t.Fatalf("stripComments() = %q, want %q", got, want)
	}
}

func TestIsDmlPrefixed(t *testing.T) {
	cases := map[string]bool{
		"insert into t values (1)": true,
		"UPDATE t SET a=1":         true,
		"delete from t":            true,
		"replace into t values()":  true,
		"create table t (id int)":  false,
	}
	for sql, want := range cases {
		if got := isDmlPrefixed(sql); got != want {
			t.Errorf("isDmlPrefixed(%q) = %v, want %v", sql, got, want)
		}
	}
}

func TestParseReturnsNilForDml(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("insert into t values (1)", "")
	if err != nil || stmt != nil {
		t.Fatalf("expected (nil, nil) for DML, got (%v, %v)", stmt, err)
	}
}

func TestParseReturnsNilForUnrecognized(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("not a ddl statement at all", "")
	if err != nil || stmt != nil {
		t.Fatalf("expected (nil, nil) for unrecognized sql, got (%v, %v)", stmt, err)
	}
}

func TestParseMySQLCreateTable(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("create table `test_db`.`test_tb` (id int primary key)", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stmt.Kind != KindCreateTable {
		t.Fatalf("expected KindCreateTable, got %v", stmt.Kind)
	}
	if stmt.Table.Schema != "test_db" || stmt.Table.Tb != "test_tb" {
		t.Fatalf("unexpected table ref: %+v", stmt.Table)
	}
	if stmt.Unparsed != "(id int primary key)" {
		t.Fatalf("unexpected unparsed tail: %q", stmt.Unparsed)
	}
}

func TestParseMySQLCreateTableIfNotExistsUnqualified(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("CREATE TABLE IF NOT EXISTS tb (id int)", "mydb")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stmt.IfNotExists {
		t.Fatal("expected IfNotExists true")
	}
	affected := stmt.AffectedTables()
	if len(affected) != 1 || affected[0] != (TableRef{Schema: "mydb", Tb: "tb"}) {
		t.Fatalf("unexpected affected tables: %+v", affected)
	}
}

func TestParseMySQLDropTableMultiTarget(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("DROP TABLE IF EXISTS `db`.`a`, `db`.`b`", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stmt.IfExists || len(stmt.Targets) != 2 {
		t.Fatalf("unexpected statement: %+v", stmt)
	}
	split := stmt.SplitToMulti()
	if len(split) != 2 {
		t.Fatalf("expected 2 split statements, got %d", len(split))
	}
	if split[0].Targets[0].Tb != "a" || split[1].Targets[0].Tb != "b" {
		t.Fatalf("unexpected split targets: %+v, %+v", split[0].Targets, split[1].Targets)
	}
}

func TestParseMySQLAlterTableRename(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("ALTER TABLE `db`.`old_tb` RENAME TO `db`.`new_tb`", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stmt.Kind != KindAlterTableRename {
		t.Fatalf("expected KindAlterTableRename, got %v", stmt.Kind)
	}
	affected := stmt.AffectedTables()
	if len(affected) != 2 {
		t.Fatalf("expected both sides of rename, got %+v", affected)
	}
}

func TestParseMySQLRenameTableMultiPair(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("RENAME TABLE `db`.`a` TO `db`.`a2`, `db`.`b` TO `db`.`b2`", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(stmt.RenamePairs) != 2 {
		t.Fatalf("expected 2 rename pairs, got %d", len(stmt.RenamePairs))
	}
	split := stmt.SplitToMulti()
	if len(split) != 2 {
		t.Fatalf("expected 2 split statements, got %d", len(split))
	}
	sql := split[0].ToSQL()
	if sql != "RENAME TABLE `db`.`a` TO `db`.`a2`" {
		t.Fatalf("unexpected ToSQL: %q", sql)
	}
}

func TestParseMySQLTruncateTableWithoutTableKeyword(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("TRUNCATE `db`.`tb`", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stmt.Kind != KindTruncateTable || len(stmt.Targets) != 1 {
		t.Fatalf("unexpected statement: %+v", stmt)
	}
}

func TestParseMySQLCreateIndex(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("CREATE UNIQUE INDEX `idx_email` ON `db`.`users` USING BTREE (email)", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stmt.Kind != KindCreateIndex || !stmt.Unique || stmt.Using != "BTREE" {
		t.Fatalf("unexpected statement: %+v", stmt)
	}
}

func TestParseMySQLDropIndex(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("DROP INDEX `idx_email` ON `db`.`users`", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	affected := stmt.AffectedTables()
	if len(affected) != 1 || affected[0].Tb != "users" {
		t.Fatalf("unexpected affected tables: %+v", affected)
	}
}

func TestParsePostgresCreateTableUnloggedUnqualified(t *testing.T) {
	p := New(DialectPostgres)
	stmt, err := p.Parse(`CREATE UNLOGGED TABLE "my_tb" (id int)`, "public")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stmt.Unlogged {
		t.Fatal("expected Unlogged true")
	}
	affected := stmt.AffectedTables()
	if len(affected) != 1 || affected[0].Schema != "public" {
		t.Fatalf("expected default schema resolution, got %+v", affected)
	}
}

func TestParsePostgresAlterTableSetSchema(t *testing.T) {
	p := New(DialectPostgres)
	stmt, err := p.Parse(`ALTER TABLE public.tb SET SCHEMA new_schema`, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stmt.Kind != KindAlterTableSetSchema || stmt.NewSchema != "new_schema" {
		t.Fatalf("unexpected statement: %+v", stmt)
	}
}

func TestParsePostgresDropIndexMultiTarget(t *testing.T) {
	p := New(DialectPostgres)
	stmt, err := p.Parse(`DROP INDEX CONCURRENTLY IF EXISTS idx_a, idx_b`, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stmt.Concurrently || !stmt.IfExists || len(stmt.IndexTargets) != 2 {
		t.Fatalf("unexpected statement: %+v", stmt)
	}
	split := stmt.SplitToMulti()
	if len(split) != 2 {
		t.Fatalf("expected 2 split statements, got %d", len(split))
	}
}

func TestToSQLRoundTripsCreateDatabase(t *testing.T) {
	p := New(DialectMySQL)
	stmt, err := p.Parse("create database if not exists `mydb`", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := stmt.ToSQL(); got != "CREATE DATABASE IF NOT EXISTS `mydb`" {
		t.Fatalf("unexpected ToSQL: %q", got)
	}
}
