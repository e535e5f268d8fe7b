package sinker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"go.uber.org/zap"

	"github.com/apecloud/dts/internal/dtserr"
	"github.com/apecloud/dts/internal/rowdata"
)

// Sink drives one MySQL or Postgres connection pool. It implements
// pipeline.Sink and pipeline.Reconnector; one Sink backs one pipeline
// worker, matching spec.md §4.7's "each worker owns its own sink
// connection" shape.
type Sink struct {
	db      *sql.DB
	dialect Dialect
	logger  *zap.SugaredLogger
}

// NewMySQLSink opens a connection pool against dsn using
// go-sql-driver/mysql.
func NewMySQLSink(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*Sink, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open mysql sink: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, dtserr.WrapTransportError("ping mysql sink", err)
	}
	return &Sink{db: db, dialect: DialectMySQL, logger: logger}, nil
}

// NewPostgresSink opens a connection pool against dsn using
// jackc/pgx/v5's database/sql adapter.
func NewPostgresSink(ctx context.Context, dsn string, logger *zap.SugaredLogger) (*Sink, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres sink: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, dtserr.WrapTransportError("ping postgres sink", err)
	}
	return &Sink{db: db, dialect: DialectPostgres, logger: logger}, nil
}

// WriteBatch applies rows (guaranteed same table, same RowType by the
// calling worker) in as few round trips as the statement shape allows:
// one multi-row upsert for Insert, one batched tuple-IN delete for
// Delete, and one transaction of per-row UPDATEs for Update (a plain
// UPDATE cannot express "N different SET clauses" in a single
// statement without dialect-specific tricks this sink doesn't reach
// for).
func (s *Sink) WriteBatch(ctx context.Context, meta rowdata.TbMeta, rows []rowdata.RowData) error {
	if len(rows) == 0 {
		return nil
	}
	switch rows[0].RowType {
	case rowdata.RowTypeInsert:
		query, args, err := buildInsertSQL(s.dialect, meta, rows)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, query, args...)
		return classifyErr(err)

	case rowdata.RowTypeDelete:
		query, args, err := buildDeleteSQL(s.dialect, meta, rows)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, query, args...)
		return classifyErr(err)

	case rowdata.RowTypeUpdate:
		return s.writeUpdatesInTx(ctx, meta, rows)

	default:
		return dtserr.NewUnexpected("unknown row type %v", rows[0].RowType)
	}
}

func (s *Sink) writeUpdatesInTx(ctx context.Context, meta rowdata.TbMeta, rows []rowdata.RowData) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyErr(err)
	}
	for _, row := range rows {
		query, args, err := buildUpdateSQL(s.dialect, meta, row)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			tx.Rollback()
			return classifyErr(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return classifyErr(err)
	}
	return nil
}

// WriteRow applies a single row; the batch-of-one equivalent of
// WriteBatch, used for the row-by-row fallback after a failed batch.
func (s *Sink) WriteRow(ctx context.Context, meta rowdata.TbMeta, row rowdata.RowData) error {
	switch row.RowType {
	case rowdata.RowTypeInsert:
		query, args, err := buildInsertSQL(s.dialect, meta, []rowdata.RowData{row})
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, query, args...)
		return classifyErr(err)

	case rowdata.RowTypeDelete:
		query, args, err := buildDeleteSQL(s.dialect, meta, []rowdata.RowData{row})
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, query, args...)
		return classifyErr(err)

	case rowdata.RowTypeUpdate:
		query, args, err := buildUpdateSQL(s.dialect, meta, row)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, query, args...)
		return classifyErr(err)

	default:
		return dtserr.NewUnexpected("unknown row type %v", row.RowType)
	}
}

// Reconnect implements pipeline.Reconnector: database/sql already pools
// and lazily redials, so recovery is just confirming the pool is
// healthy again before the worker's next retry attempt.
func (s *Sink) Reconnect(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return dtserr.WrapTransportError("reconnect sink", err)
	}
	return nil
}

func (s *Sink) Close() error {
	return s.db.Close()
}

// classifyErr maps a driver error to *dtserr.TransportError when it is
// the kind of transient failure spec.md §4.7 wants backoff-retried:
// MySQL deadlock/lock-wait-timeout/connection-lost codes, or a Postgres
// SQLSTATE class 08 (connection exception) or 40 (transaction
// rollback). Anything else passes through unwrapped — those, along with
// *dtserr.ColumnNotMatch from the SQL builders, are never retried.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}

	var myErr *gomysql.MySQLError
	if errors.As(err, &myErr) {
		switch myErr.Number {
		case 1205, 1213, 2006, 2013: // lock wait timeout, deadlock, server gone, lost connection
			return dtserr.WrapTransportError("mysql transient error", err)
		}
		return err
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) == 5 && (pgErr.Code[:2] == "08" || pgErr.Code[:2] == "40") {
			return dtserr.WrapTransportError("postgres transient error", err)
		}
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return dtserr.WrapTransportError("context error", err)
	}

	return err
}
