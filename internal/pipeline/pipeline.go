// Package pipeline implements the bounded-queue, partitioned,
// barrier-checkpointed runtime (spec.md §4.7): a single producer feeds
// a fixed pool of workers, each owning its own sink connection, each
// applying rows in arrival order for the partitions assigned to it.
package pipeline

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"go.uber.org/zap"

	"github.com/apecloud/dts/internal/position"
	"github.com/apecloud/dts/internal/rowdata"
)

// Type discriminates the four pipeline shapes spec.md §4.7 names.
// Pipeline does not branch on it: every Pipeline runs the same worker
// pool and writes rows through its Sinks. This package has no merge
// step and no check mode that compares source and sink or writes
// miss.log/diff.log.
type Type int

const (
	TypeSnapshot Type = iota
	TypeRdbPartition
	TypeRdbMerge
	TypeRdbCheck
)

// Config carries the scheduling knobs from spec.md §6's [pipeline]
// section plus §4.7's batching and failure-escalation thresholds.
type Config struct {
	ParallelSize           int
	BatchSize              int
	CheckpointIntervalSecs int
	QueueCapacity          int

	// SplitUpdates turns every Update row into an atomic delete-then-
	// insert pair before it reaches a worker's batch, the shape
	// columnar sinks need since they cannot rewrite a row in place.
	SplitUpdates bool

	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Item is one unit the producer hands the runtime: a row change, or a
// Barrier marking a commit/checkpoint boundary every worker must have
// flushed through before a checkpoint may be written.
type Item struct {
	Row     *rowdata.RowData
	Barrier *Barrier
}

// Barrier carries the position to checkpoint once every worker has
// flushed all rows preceding it.
type Barrier struct {
	Position position.Position
}

// Pipeline fans Items out to ParallelSize workers by fingerprint,
// applies them through a Sink, and checkpoints via a PositionWriter
// once a barrier sweep completes.
type Pipeline struct {
	cfg    Config
	meta   MetaLookup
	writer PositionWriter
	logger *zap.SugaredLogger

	workers []*worker
	in      chan Item
}

// New builds a Pipeline with cfg.ParallelSize workers, each applying
// through its own Sink connection obtained from sinkFactory.
func New(cfg Config, meta MetaLookup, sinkFactory func(workerIndex int) (Sink, error), writer PositionWriter, logger *zap.SugaredLogger) (*Pipeline, error) {
	if cfg.ParallelSize <= 0 {
		cfg.ParallelSize = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = cfg.BatchSize * 4
	}

	p := &Pipeline{cfg: cfg, meta: meta, writer: writer, logger: logger, in: make(chan Item, cfg.QueueCapacity)}
	p.workers = make([]*worker, cfg.ParallelSize)
	for i := 0; i < cfg.ParallelSize; i++ {
		sink, err := sinkFactory(i)
		if err != nil {
			return nil, fmt.Errorf("build sink for worker %d: %w", i, err)
		}
		w := newWorker(i, cfg, sink, logger)
		w.meta = meta
		p.workers[i] = w
	}
	return p, nil
}

// Submit enqueues one item for partitioning and eventual application.
// It blocks when the bounded queue is full — the cooperative
// backpressure spec.md §4.7 requires instead of an unbounded buffer.
func (p *Pipeline) Submit(ctx context.Context, item Item) error {
	select {
	case p.in <- item:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dispatches queued items to workers by fingerprint until ctx is
// canceled or the input channel is closed, routing barriers through a
// sweep of every worker and checkpointing once the sweep confirms.
func (p *Pipeline) Run(ctx context.Context) error {
	errCh := make(chan error, len(p.workers))
	for _, w := range p.workers {
		go w.run(ctx, errCh)
	}

	for {
		select {
		case <-ctx.Done():
			p.closeWorkers()
			return p.drainWorkerErrors()
		case item, ok := <-p.in:
			if !ok {
				p.closeWorkers()
				return p.drainWorkerErrors()
			}
			if item.Barrier != nil {
				if err := p.sweepBarrier(ctx, *item.Barrier); err != nil {
					return err
				}
				continue
			}
			if err := p.route(ctx, item.Row); err != nil {
				return err
			}
		case err := <-errCh:
			if err != nil {
				p.closeWorkers()
				return fmt.Errorf("worker failed: %w", err)
			}
		}
	}
}

func (p *Pipeline) route(ctx context.Context, row *rowdata.RowData) error {
	tbMeta, err := p.meta.TbMeta(ctx, row.Schema, row.Tb)
	if err != nil {
		return fmt.Errorf("resolve table metadata for %s.%s: %w", row.Schema, row.Tb, err)
	}
	idx := WorkerIndex(Fingerprint(row, tbMeta.PartitionCol), len(p.workers))
	p.workers[idx].submit(*row)
	return nil
}

// sweepBarrier flushes every worker's pending batch, waits for
// confirmation from all of them, then writes the checkpoint — "a
// barrier sweep" per spec.md §4.7's ordering guarantees.
func (p *Pipeline) sweepBarrier(ctx context.Context, b Barrier) error {
	for _, w := range p.workers {
		if err := w.flushAndWait(ctx); err != nil {
			return fmt.Errorf("flush worker %d at barrier: %w", w.index, err)
		}
	}
	if p.writer != nil {
		if err := p.writer.WritePosition(b.Position); err != nil {
			return fmt.Errorf("write checkpoint: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) closeWorkers() {
	for _, w := range p.workers {
		w.close()
	}
}

func (p *Pipeline) drainWorkerErrors() error {
	for _, w := range p.workers {
		if err := w.lastErr(); err != nil {
			return fmt.Errorf("worker %d failed: %w", w.index, err)
		}
	}
	return nil
}

// Fingerprint hashes (schema, tb, partition-column value) per spec.md
// §4.7: "events with the same fingerprint must be assigned to the same
// worker to preserve per-key order." partitionCol is the owning
// table's PartitionCol (rowdata.TbMeta.PartitionCol); an empty string
// means the table has no usable key, and every row for it hashes by
// schema+tb alone, serializing that table onto one worker. FNV-1a is
// used for the same reason the rest of this module reaches for stdlib
// hashing rather than a third-party hash: this is a pure, deterministic,
// in-process function with no wire format to match.
func Fingerprint(row *rowdata.RowData, partitionCol string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(row.Schema))
	h.Write([]byte{0})
	h.Write([]byte(row.Tb))
	h.Write([]byte{0})
	if partitionCol != "" {
		v := partitionColValue(row, partitionCol)
		fmt.Fprintf(h, "%d|%d|%g|%s|%x", v.Int64(), v.Uint64(), v.Float64(), v.Str(), v.Bytes())
	}
	return h.Sum64()
}

func partitionColValue(row *rowdata.RowData, col string) rowdata.ColValue {
	src := row.After
	if row.RowType == rowdata.RowTypeDelete || row.RowType == rowdata.RowTypeUpdate {
		src = row.Before
	}
	if v, ok := src[col]; ok {
		return v
	}
	return rowdata.None
}

// WorkerIndex maps a fingerprint onto one of n workers by modulus, a
// pure function of the row per spec.md §4.7.
func WorkerIndex(fingerprint uint64, n int) int {
	if n <= 0 {
		return 0
	}
	return int(fingerprint % uint64(n))
}
