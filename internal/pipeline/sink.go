package pipeline

import (
	"context"
	"errors"

	"github.com/apecloud/dts/internal/dtserr"
	"github.com/apecloud/dts/internal/position"
	"github.com/apecloud/dts/internal/rowdata"
)

// Sink is the write side a worker drives: a batch write of same-table,
// same-shape rows, falling back to one-row-at-a-time on batch failure,
// per spec.md §4.7. Implementations wrap a real DB connection pool (not
// built here — see DESIGN.md for why no driver is wired directly into
// this package).
type Sink interface {
	// WriteBatch applies rows (all for the same table, all the same
	// RowType) in one round trip. A batch failure must leave the sink
	// usable for WriteRow fallback, not in a half-applied, unknown state.
	WriteBatch(ctx context.Context, meta rowdata.TbMeta, rows []rowdata.RowData) error

	// WriteRow applies a single row; the worker uses it for a one-row
	// batch and for the row-by-row fallback after a failed batch.
	WriteRow(ctx context.Context, meta rowdata.TbMeta, row rowdata.RowData) error

	Close() error
}

// Reconnector is an optional Sink capability: a sink that knows how to
// recover its own connection after a TransportError. Sinks that do not
// implement it are still retried with backoff on a TransportError, with
// no reconnect attempt between tries.
type Reconnector interface {
	Reconnect(ctx context.Context) error
}

// MetaLookup resolves a row's owning TbMeta, the source of IDCols (for
// the sink's batch WHERE clauses) and PartitionCol
// (for fingerprinting).
type MetaLookup interface {
	TbMeta(ctx context.Context, schema, tb string) (rowdata.TbMeta, error)
}

// PositionWriter persists the position a barrier sweep has confirmed
// every worker flushed through. internal/position's log-line format
// (spec.md §6) is the expected backing implementation.
type PositionWriter interface {
	WritePosition(p position.Position) error
}

// isTransient reports whether err should be retried with backoff rather
// than immediately failing the worker — a *dtserr.TransportError, or one
// wrapping it, per spec.md §4.7's "transient DB errors get a capped
// exponential backoff before the worker fails" rule.
func isTransient(err error) bool {
	var te *dtserr.TransportError
	return errors.As(err, &te)
}

// isColumnMismatch reports whether err is a *dtserr.ColumnNotMatch,
// which never gets backoff-retried: spec.md §4.7 treats a schema-drift
// column mismatch as fatal for the affected table's batch, not as a
// transient condition that retrying could resolve.
func isColumnMismatch(err error) bool {
	var cm *dtserr.ColumnNotMatch
	return errors.As(err, &cm)
}
