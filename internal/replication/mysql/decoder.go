// Package mysql implements the MySQL binlog half of the
// replication-event decoder (spec.md §4.5): it streams ROW-format
// binlog events via go-mysql-org/go-mysql's canal package (which
// already maintains the TABLE_MAP cache and decodes row values), turns
// them into rowdata.RowData, tracks DDL via the ddlparser, and
// advances Position on event boundaries.
package mysql

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-mysql-org/go-mysql/canal"
	gmysql "github.com/go-mysql-org/go-mysql/mysql"
	"github.com/go-mysql-org/go-mysql/replication"
	"github.com/go-mysql-org/go-mysql/schema"
	"go.uber.org/zap"

	"github.com/apecloud/dts/internal/codec/mysqlcodec"
	"github.com/apecloud/dts/internal/ddlparser"
	"github.com/apecloud/dts/internal/meta"
	"github.com/apecloud/dts/internal/position"
	"github.com/apecloud/dts/internal/rowdata"
)

// Event is one decoded unit handed to the pipeline: a row change, a
// DDL statement, or a bare position advance (emitted at every XID
// commit).
type Event struct {
	Row      *rowdata.RowData
	Ddl      *ddlparser.Statement
	Position position.Position
}

// Config configures the upstream connection and table filtering. It is
// the Go-native shape of spec.md §4.5's "session setup" — canal itself
// forces binlog_format=ROW / binlog_row_image=FULL by reading the
// server's row image settings and erroring if they are incompatible,
// so this type only carries what a caller must decide: who to connect
// as, which server_id to present, and which tables to stream.
type Config struct {
	Host, User, Password string
	Port                 uint16
	ServerID             uint32
	// Flavor is "mysql" or "mariadb"; defaults to "mysql".
	Flavor            string
	IncludeTableRegex []string
	ExcludeTableRegex []string
	HeartbeatInterval time.Duration
}

// Decoder streams and decodes one MySQL binlog source.
type Decoder struct {
	canal     *canal.Canal
	metaMgr   *meta.Manager
	ddlParser *ddlparser.Parser
	logger    *zap.SugaredLogger
	serverID  string

	mu           sync.Mutex
	lastFilename string

	events         chan Event
	malformedCount atomic.Uint64
}

// NewDecoder dials no connection yet; it only configures canal.Canal.
// The connection is opened by Run.
func NewDecoder(cfg Config, metaMgr *meta.Manager, logger *zap.SugaredLogger) (*Decoder, error) {
	ccfg := canal.NewDefaultConfig()
	ccfg.Addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	ccfg.User = cfg.User
	ccfg.Password = cfg.Password
	ccfg.ServerID = cfg.ServerID
	if cfg.Flavor != "" {
		ccfg.Flavor = cfg.Flavor
	} else {
		ccfg.Flavor = gmysql.MySQLFlavor
	}
	ccfg.IncludeTableRegex = cfg.IncludeTableRegex
	ccfg.ExcludeTableRegex = cfg.ExcludeTableRegex
	// Snapshotting is this module's own responsibility (the pipeline's
	// RdbSnapshot position variant), not canal's built-in mysqldump step.
	ccfg.Dump.ExecutionPath = ""
	if cfg.HeartbeatInterval > 0 {
		ccfg.HeartbeatPeriod = cfg.HeartbeatInterval
	}

	c, err := canal.NewCanal(ccfg)
	if err != nil {
		return nil, fmt.Errorf("configure mysql binlog source: %w", err)
	}

	d := &Decoder{
		canal:     c,
		metaMgr:   metaMgr,
		ddlParser: ddlparser.New(ddlparser.DialectMySQL),
		logger:    logger,
		serverID:  fmt.Sprintf("%d", cfg.ServerID),
		events:    make(chan Event, 1024),
	}
	c.SetEventHandler(d)
	return d, nil
}

// Events returns the channel of decoded events. It is closed when Run
// returns.
func (d *Decoder) Events() <-chan Event { return d.events }

// MalformedEventCount is the monotone counter spec.md §4.5 requires:
// malformed events are logged and skipped, and tests assert this stays
// at zero on happy paths.
func (d *Decoder) MalformedEventCount() uint64 { return d.malformedCount.Load() }

// Run streams from (filename, pos) until ctx is canceled or the
// connection fails. A canceled context is treated as the "transient
// network error" exit path spec.md §4.5 describes: the decoder closes
// cleanly so a supervisor can restart it from the last committed
// position.
func (d *Decoder) Run(ctx context.Context, filename string, pos uint32) error {
	defer close(d.events)
	d.mu.Lock()
	d.lastFilename = filename
	d.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- d.canal.RunFrom(gmysql.Position{Name: filename, Pos: pos})
	}()

	select {
	case <-ctx.Done():
		d.canal.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("binlog stream ended: %w", err)
		}
		return nil
	}
}

// OnRotate tracks the current binlog filename across ROTATE events.
func (d *Decoder) OnRotate(_ *replication.EventHeader, e *replication.RotateEvent) error {
	d.mu.Lock()
	d.lastFilename = string(e.NextLogName)
	d.mu.Unlock()
	return nil
}

// OnTableChanged drops the stale cache entry so the next row event for
// this table re-queries metadata (spec.md §4.1).
func (d *Decoder) OnTableChanged(_ *replication.EventHeader, schemaName, table string) error {
	if d.metaMgr != nil {
		d.metaMgr.InvalidateByDDL([]meta.SchemaTb{{Schema: schemaName, Tb: table}})
	}
	return nil
}

// OnDDL classifies a QUERY event's DDL text and emits it. BEGIN/COMMIT
// markers (every transaction's QUERY event when no DDL occurred) are
// not DDL and are silently ignored rather than counted as malformed;
// any other text the DDL parser does not recognize is logged, skipped
// and counted as malformed.
func (d *Decoder) OnDDL(_ *replication.EventHeader, nextPos gmysql.Position, e *replication.QueryEvent) error {
	switch strings.ToUpper(strings.TrimSpace(string(e.Query))) {
	case "BEGIN", "COMMIT":
		return nil
	}

	stmt, err := d.ddlParser.Parse(string(e.Query), string(e.Schema))
	if err != nil || stmt == nil {
		d.malformedCount.Add(1)
		if d.logger != nil {
			d.logger.Warnw("failed to parse ddl, skipping", "error", err, "query", string(e.Query))
		}
		return nil
	}
	d.events <- Event{Ddl: stmt, Position: d.positionAt(nextPos)}
	return nil
}

// OnRow decodes WRITE/UPDATE/DELETE_ROWS_v2 events into RowData,
// pairing UPDATE's (before, after) rows per spec.md §3.
func (d *Decoder) OnRow(e *canal.RowsEvent) error {
	pos := d.positionAt(gmysql.Position{Name: d.currentFilename(), Pos: e.Header.LogPos})

	switch e.Action {
	case canal.InsertAction:
		for _, row := range e.Rows {
			after, err := d.decodeRow(e.Table, row)
			if err != nil {
				d.skipMalformed("insert", err)
				continue
			}
			rd := rowdata.NewInsert(e.Table.Schema, e.Table.Name, after, pos)
			d.events <- Event{Row: &rd, Position: pos}
		}
	case canal.DeleteAction:
		for _, row := range e.Rows {
			before, err := d.decodeRow(e.Table, row)
			if err != nil {
				d.skipMalformed("delete", err)
				continue
			}
			rd := rowdata.NewDelete(e.Table.Schema, e.Table.Name, before, pos)
			d.events <- Event{Row: &rd, Position: pos}
		}
	case canal.UpdateAction:
		for i := 0; i+1 < len(e.Rows); i += 2 {
			before, err := d.decodeRow(e.Table, e.Rows[i])
			if err != nil {
				d.skipMalformed("update", err)
				continue
			}
			after, err := d.decodeRow(e.Table, e.Rows[i+1])
			if err != nil {
				d.skipMalformed("update", err)
				continue
			}
			rd := rowdata.NewUpdate(e.Table.Schema, e.Table.Name, before, after, pos)
			d.events <- Event{Row: &rd, Position: pos}
		}
	}
	return nil
}

// OnXID emits a bare position advance at every commit, so the position
// log moves forward even for a transaction whose row events were all
// filtered out.
func (d *Decoder) OnXID(_ *replication.EventHeader, nextPos gmysql.Position) error {
	d.events <- Event{Position: d.positionAt(nextPos)}
	return nil
}

func (d *Decoder) OnGTID(_ *replication.EventHeader, _ gmysql.BinlogGTIDEvent) error { return nil }

func (d *Decoder) OnPosSynced(_ *replication.EventHeader, _ gmysql.Position, _ gmysql.GTIDSet, _ bool) error {
	return nil
}

func (d *Decoder) String() string { return "dts.replication.mysql.Decoder" }

func (d *Decoder) decodeRow(table *schema.Table, row []interface{}) (map[string]rowdata.ColValue, error) {
	out := make(map[string]rowdata.ColValue, len(table.Columns))
	for i, col := range table.Columns {
		if i >= len(row) {
			break
		}
		v, err := mysqlcodec.FromWire(col.RawType, row[i])
		if err != nil {
			return nil, fmt.Errorf("decode column %s: %w", col.Name, err)
		}
		out[col.Name] = v
	}
	return out, nil
}

func (d *Decoder) skipMalformed(kind string, err error) {
	d.malformedCount.Add(1)
	if d.logger != nil {
		d.logger.Warnw("skipping malformed row event", "kind", kind, "error", err)
	}
}

func (d *Decoder) currentFilename() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastFilename
}

func (d *Decoder) positionAt(p gmysql.Position) position.Position {
	return position.NewMysqlCdc(d.serverID, p.Name, p.Pos, time.Now().UTC().Format("2006-01-02 15:04:05.000000"))
}
