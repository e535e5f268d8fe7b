package pipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/apecloud/dts/internal/dtserr"
	"github.com/apecloud/dts/internal/position"
	"github.com/apecloud/dts/internal/rowdata"
)

type fakeMeta struct {
	metas map[string]rowdata.TbMeta
}

func (f *fakeMeta) TbMeta(_ context.Context, schema, tb string) (rowdata.TbMeta, error) {
	m, ok := f.metas[schema+"."+tb]
	if !ok {
		return rowdata.TbMeta{}, dtserr.NewNoMetadata(schema, tb)
	}
	return m, nil
}

type fakeSink struct {
	mu         sync.Mutex
	batches    [][]rowdata.RowData
	rows       []rowdata.RowData
	failBatch  int
	batchCalls int
}

func (s *fakeSink) WriteBatch(_ context.Context, _ rowdata.TbMeta, rows []rowdata.RowData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batchCalls++
	if s.failBatch > 0 && s.batchCalls <= s.failBatch {
		return dtserr.WrapTransportError("connection reset", nil)
	}
	cp := make([]rowdata.RowData, len(rows))
	copy(cp, rows)
	s.batches = append(s.batches, cp)
	return nil
}

func (s *fakeSink) WriteRow(_ context.Context, _ rowdata.TbMeta, row rowdata.RowData) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *fakeSink) Close() error { return nil }

type fakeWriter struct {
	mu        sync.Mutex
	positions []position.Position
}

func (w *fakeWriter) WritePosition(p position.Position) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.positions = append(w.positions, p)
	return nil
}

func usersMeta() rowdata.TbMeta {
	return rowdata.NewTbMeta("db", "users", []rowdata.Column{{Name: "id"}, {Name: "name"}},
		[]rowdata.Key{{Name: "primary", Cols: []string{"id"}}})
}

func TestFingerprintSameKeySameWorker(t *testing.T) {
	meta := usersMeta()
	r1 := rowdata.NewInsert("db", "users", map[string]rowdata.ColValue{"id": rowdata.NewInt(7)}, position.None)
	r2 := rowdata.NewUpdate("db", "users",
		map[string]rowdata.ColValue{"id": rowdata.NewInt(7)},
		map[string]rowdata.ColValue{"id": rowdata.NewInt(7), "name": rowdata.NewString("x")},
		position.None)
	f1 := Fingerprint(&r1, meta.PartitionCol)
	f2 := Fingerprint(&r2, meta.PartitionCol)
	if f1 != f2 {
		t.Fatalf("expected same fingerprint for same key, got %d != %d", f1, f2)
	}
}

func TestWorkerIndexDistributesAcrossWorkers(t *testing.T) {
	meta := usersMeta()
	seen := map[int]bool{}
	for i := 0; i < 50; i++ {
		r := rowdata.NewInsert("db", "users", map[string]rowdata.ColValue{"id": rowdata.NewInt(int32(i))}, position.None)
		idx := WorkerIndex(Fingerprint(&r, meta.PartitionCol), 4)
		seen[idx] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected fingerprints to spread across workers, only hit %v", seen)
	}
}

func newTestPipeline(t *testing.T, cfg Config) (*Pipeline, []*fakeSink, *fakeWriter) {
	t.Helper()
	meta := &fakeMeta{metas: map[string]rowdata.TbMeta{"db.users": usersMeta()}}
	var sinks []*fakeSink
	writer := &fakeWriter{}
	p, err := New(cfg, meta, func(i int) (Sink, error) {
		s := &fakeSink{}
		sinks = append(sinks, s)
		return s, nil
	}, writer, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, sinks, writer
}

func TestPipelineBatchesAndCheckpointsOnBarrier(t *testing.T) {
	cfg := Config{ParallelSize: 1, BatchSize: 10, QueueCapacity: 32}
	p, sinks, writer := newTestPipeline(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := 0; i < 5; i++ {
		r := rowdata.NewInsert("db", "users", map[string]rowdata.ColValue{"id": rowdata.NewInt(int32(i))}, position.None)
		if err := p.Submit(ctx, Item{Row: &r}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	barrierPos := position.NewMysqlCdc("1", "bin.000001", 100, "2026-01-01 00:00:00.000000")
	if err := p.Submit(ctx, Item{Barrier: &Barrier{Position: barrierPos}}); err != nil {
		t.Fatalf("submit barrier: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		writer.mu.Lock()
		n := len(writer.positions)
		writer.mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for checkpoint")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sinks[0].mu.Lock()
	defer sinks[0].mu.Unlock()
	if len(sinks[0].batches) != 1 || len(sinks[0].batches[0]) != 5 {
		t.Fatalf("expected one batch of 5 rows, got %+v", sinks[0].batches)
	}
	writer.mu.Lock()
	defer writer.mu.Unlock()
	if writer.positions[0].BinlogFilename != "bin.000001" {
		t.Fatalf("unexpected checkpointed position: %+v", writer.positions[0])
	}

	cancel()
	<-done
}

func TestPipelineFallsBackToRowByRowAfterBatchFailure(t *testing.T) {
	cfg := Config{ParallelSize: 1, BatchSize: 3, QueueCapacity: 32, MaxRetries: 2, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	meta := &fakeMeta{metas: map[string]rowdata.TbMeta{"db.users": usersMeta()}}
	sink := &fakeSink{failBatch: 100}
	writer := &fakeWriter{}
	p, err := New(cfg, meta, func(i int) (Sink, error) { return sink, nil }, writer, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	for i := 0; i < 3; i++ {
		r := rowdata.NewInsert("db", "users", map[string]rowdata.ColValue{"id": rowdata.NewInt(int32(i))}, position.None)
		if err := p.Submit(ctx, Item{Row: &r}); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}
	if err := p.Submit(ctx, Item{Barrier: &Barrier{Position: position.None}}); err != nil {
		t.Fatalf("submit barrier: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		sink.mu.Lock()
		n := len(sink.rows)
		sink.mu.Unlock()
		if n == 3 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for row fallback, got %d rows", n)
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}

func TestSplitUpdatesProducesDeleteThenInsert(t *testing.T) {
	cfg := Config{ParallelSize: 1, BatchSize: 10, QueueCapacity: 32, SplitUpdates: true}
	p, sinks, _ := newTestPipeline(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	before := map[string]rowdata.ColValue{"id": rowdata.NewInt(1), "name": rowdata.NewString("old")}
	after := map[string]rowdata.ColValue{"id": rowdata.NewInt(1), "name": rowdata.NewString("new")}
	r := rowdata.NewUpdate("db", "users", before, after, position.None)
	if err := p.Submit(ctx, Item{Row: &r}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := p.Submit(ctx, Item{Barrier: &Barrier{Position: position.None}}); err != nil {
		t.Fatalf("submit barrier: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for {
		sinks[0].mu.Lock()
		n := len(sinks[0].batches)
		sinks[0].mu.Unlock()
		if n > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for split update batch")
		case <-time.After(5 * time.Millisecond):
		}
	}

	sinks[0].mu.Lock()
	defer sinks[0].mu.Unlock()
	if len(sinks[0].batches) != 1 || len(sinks[0].batches[0]) != 2 {
		t.Fatalf("expected one batch of 2 split rows, got %+v", sinks[0].batches)
	}
	if sinks[0].batches[0][0].RowType != rowdata.RowTypeDelete || sinks[0].batches[0][1].RowType != rowdata.RowTypeInsert {
		t.Fatalf("expected delete-then-insert order, got %+v", sinks[0].batches[0])
	}

	cancel()
	<-done
}
