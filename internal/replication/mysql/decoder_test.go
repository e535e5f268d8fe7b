package mysql

import (
	"testing"

	gmysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/go-mysql-org/go-mysql/schema"

	"github.com/apecloud/dts/internal/ddlparser"
	"github.com/apecloud/dts/internal/rowdata"
)

func newTestDecoder() *Decoder {
	return &Decoder{
		ddlParser: ddlparser.New(ddlparser.DialectMySQL),
		serverID:  "1",
		events:    make(chan Event, 16),
	}
}

func TestDecodeRowConvertsColumnsByRawType(t *testing.T) {
	d := newTestDecoder()
	table := &schema.Table{
		Schema: "test_db",
		Name:   "users",
		Columns: []schema.TableColumn{
			{Name: "id", RawType: "int"},
			{Name: "name", RawType: "varchar(64)"},
		},
	}

	got, err := d.decodeRow(table, []interface{}{int32(7), []byte("alice")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got["id"].Equal(rowdata.NewInt(7)) {
		t.Fatalf("unexpected id value: %+v", got["id"])
	}
	if !got["name"].Equal(rowdata.NewString("alice")) {
		t.Fatalf("unexpected name value: %+v", got["name"])
	}
}

func TestOnRotateUpdatesCurrentFilename(t *testing.T) {
	d := newTestDecoder()
	rotate := &replication.RotateEvent{NextLogName: []byte("mysql-bin.000002")}
	if err := d.OnRotate(nil, rotate); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.currentFilename() != "mysql-bin.000002" {
		t.Fatalf("unexpected filename: %q", d.currentFilename())
	}
}

func TestOnDDLEmitsParsedStatement(t *testing.T) {
	d := newTestDecoder()
	qe := &replication.QueryEvent{Schema: []byte("test_db"), Query: []byte("create table `t` (id int)")}
	if err := d.OnDDL(nil, gmysql.Position{Name: "mysql-bin.000001", Pos: 100}, qe); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case ev := <-d.events:
		if ev.Ddl == nil || ev.Ddl.Kind != ddlparser.KindCreateTable {
			t.Fatalf("expected a CreateTable ddl event, got %+v", ev)
		}
	default:
		t.Fatal("expected an event to be emitted")
	}
}

func TestOnDDLSkipsBeginAndCountsNothingMalformed(t *testing.T) {
	d := newTestDecoder()
	qe := &replication.QueryEvent{Schema: []byte("test_db"), Query: []byte("BEGIN")}
	if err := d.OnDDL(nil, gmysql.Position{}, qe); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.MalformedEventCount() != 0 {
		t.Fatalf("expected no malformed events for a BEGIN marker, got %d", d.MalformedEventCount())
	}
	select {
	case ev := <-d.events:
		t.Fatalf("expected no event for a BEGIN marker, got %+v", ev)
	default:
	}
}

func TestOnDDLCountsUnparseableQueryAsMalformed(t *testing.T) {
	d := newTestDecoder()
	qe := &replication.QueryEvent{Schema: []byte("test_db"), Query: []byte("not a sql statement at all")}
	if err := d.OnDDL(nil, gmysql.Position{}, qe); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.MalformedEventCount() != 1 {
		t.Fatalf("expected malformed count 1, got %d", d.MalformedEventCount())
	}
}
