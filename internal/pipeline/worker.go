package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/apecloud/dts/internal/rowdata"
)

// worker owns one Sink connection and applies every row routed to it by
// fingerprint, in arrival order, batching same-shape rows and falling
// back to row-by-row application when a batch fails (spec.md §4.7).
type worker struct {
	index  int
	cfg    Config
	sink   Sink
	meta   MetaLookup
	logger *zap.SugaredLogger

	in        chan rowdata.RowData
	flushReqs chan flushReq

	batch     []rowdata.RowData
	batchMeta rowdata.TbMeta
	haveShape bool

	err error
}

type flushReq struct {
	resp chan error
}

func newWorker(index int, cfg Config, sink Sink, logger *zap.SugaredLogger) *worker {
	return &worker{
		index:     index,
		cfg:       cfg,
		sink:      sink,
		logger:    logger,
		in:        make(chan rowdata.RowData, cfg.QueueCapacity),
		flushReqs: make(chan flushReq),
	}
}

// submit hands one row to this worker. Blocking here is the per-worker
// half of the bounded-queue backpressure spec.md §4.7 requires.
func (w *worker) submit(row rowdata.RowData) {
	w.in <- row
}

func (w *worker) close() {
	close(w.in)
}

func (w *worker) lastErr() error { return w.err }

// flushAndWait asks the worker goroutine to flush its pending batch and
// blocks until it confirms — the per-worker half of a barrier sweep.
func (w *worker) flushAndWait(ctx context.Context) error {
	req := flushReq{resp: make(chan error, 1)}
	select {
	case w.flushReqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-req.resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the worker goroutine body. On ctx cancellation or channel
// close it flushes whatever is pending before returning — "flush then
// clean exit" for a canceled run, not a dropped tail batch.
func (w *worker) run(ctx context.Context, errCh chan<- error) {
	var ticker *time.Ticker
	var tickCh <-chan time.Time
	if w.cfg.CheckpointIntervalSecs > 0 {
		ticker = time.NewTicker(time.Duration(w.cfg.CheckpointIntervalSecs) * time.Second)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			w.fail(w.flush(context.Background()), errCh)
			return
		case row, ok := <-w.in:
			if !ok {
				w.fail(w.flush(context.Background()), errCh)
				return
			}
			if err := w.add(ctx, row); err != nil {
				w.fail(err, errCh)
				return
			}
		case req := <-w.flushReqs:
			// Rows routed before the barrier may still be queued in w.in;
			// apply them first so the flush covers all of them.
			var err error
			for n := len(w.in); n > 0 && err == nil; n-- {
				err = w.add(ctx, <-w.in)
			}
			if err == nil {
				err = w.flush(ctx)
			}
			req.resp <- err
			if err != nil {
				w.fail(err, errCh)
				return
			}
		case <-tickCh:
			if err := w.flush(ctx); err != nil {
				w.fail(err, errCh)
				return
			}
		}
	}
}

func (w *worker) fail(err error, errCh chan<- error) {
	if err == nil {
		return
	}
	w.err = err
	select {
	case errCh <- err:
	default:
	}
}

// add appends row to the pending batch, flushing first if row does not
// share the current batch's shape (same schema.tb, same RowType) or the
// batch has reached BatchSize. Update rows are split into an atomic
// delete-then-insert pair when cfg.SplitUpdates is set, the shape
// columnar sinks need since they cannot apply an in-place row rewrite.
func (w *worker) add(ctx context.Context, row rowdata.RowData) error {
	if w.cfg.SplitUpdates && row.RowType == rowdata.RowTypeUpdate {
		del := rowdata.NewDelete(row.Schema, row.Tb, row.Before, row.Position)
		ins := rowdata.NewInsert(row.Schema, row.Tb, row.After, row.Position)
		if err := w.add(ctx, del); err != nil {
			return err
		}
		return w.add(ctx, ins)
	}

	if w.haveShape && !w.sameShape(row) {
		if err := w.flush(ctx); err != nil {
			return err
		}
	}
	if !w.haveShape {
		meta, err := w.meta.TbMeta(ctx, row.Schema, row.Tb)
		if err != nil {
			return fmt.Errorf("resolve table metadata for %s.%s: %w", row.Schema, row.Tb, err)
		}
		w.batchMeta = meta
		w.haveShape = true
	}
	w.batch = append(w.batch, row)
	if len(w.batch) >= w.cfg.BatchSize {
		return w.flush(ctx)
	}
	return nil
}

func (w *worker) sameShape(row rowdata.RowData) bool {
	if len(w.batch) == 0 {
		return true
	}
	head := w.batch[0]
	return head.Schema == row.Schema && head.Tb == row.Tb && head.RowType == row.RowType
}

// flush applies the pending batch through the sink, retrying transient
// failures with capped exponential backoff and falling back to
// row-by-row application once a batch attempt is exhausted, per
// spec.md §4.7's failure-escalation model.
func (w *worker) flush(ctx context.Context) error {
	if len(w.batch) == 0 {
		return nil
	}
	rows := w.batch
	meta := w.batchMeta
	w.batch = nil
	w.haveShape = false

	err := w.writeWithBackoff(ctx, func() error {
		if len(rows) == 1 {
			return w.sink.WriteRow(ctx, meta, rows[0])
		}
		return w.sink.WriteBatch(ctx, meta, rows)
	})
	if err == nil || len(rows) == 1 {
		return err
	}
	if isColumnMismatch(err) {
		return err
	}

	// Batch failed after retries; isolate the bad row(s) instead of
	// failing the whole flush.
	w.logger.Warnw("batch write failed, falling back to row-by-row", "worker", w.index, "rows", len(rows), "error", err)
	for _, row := range rows {
		if rerr := w.writeWithBackoff(ctx, func() error { return w.sink.WriteRow(ctx, meta, row) }); rerr != nil {
			return rerr
		}
	}
	return nil
}

// writeWithBackoff retries op while it returns a transient
// (*dtserr.TransportError) failure, up to cfg.MaxRetries times with a
// doubling delay capped at cfg.MaxBackoff. Any other error, or a
// Reconnector sink that fails to reconnect, returns immediately.
func (w *worker) writeWithBackoff(ctx context.Context, op func() error) error {
	delay := w.initialBackoff()
	maxRetries := w.cfg.MaxRetries
	for attempt := 0; ; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		if !isTransient(err) || attempt >= maxRetries {
			return err
		}
		if rc, ok := w.sink.(Reconnector); ok {
			if rerr := rc.Reconnect(ctx); rerr != nil {
				return fmt.Errorf("reconnect sink after transient error: %w", rerr)
			}
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		delay *= 2
		if max := w.maxBackoff(); delay > max {
			delay = max
		}
	}
}

func (w *worker) initialBackoff() time.Duration {
	if w.cfg.InitialBackoff > 0 {
		return w.cfg.InitialBackoff
	}
	return 100 * time.Millisecond
}

func (w *worker) maxBackoff() time.Duration {
	if w.cfg.MaxBackoff > 0 {
		return w.cfg.MaxBackoff
	}
	return 10 * time.Second
}
