// Command dts is a thin composition root wiring the task configuration
// (spec.md §6) into a running replication-to-sink pipeline. It is
// explicitly a stand-in driver, not the full task orchestrator spec.md
// §1 scopes out of this repository: one task config, one extractor,
// one pipeline, no task scheduling across multiple concurrent configs.
package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	gomysql "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apecloud/dts/internal/checkpoint"
	"github.com/apecloud/dts/internal/config"
	"github.com/apecloud/dts/internal/filter"
	"github.com/apecloud/dts/internal/logging"
	"github.com/apecloud/dts/internal/meta"
	"github.com/apecloud/dts/internal/pipeline"
	"github.com/apecloud/dts/internal/position"
	"github.com/apecloud/dts/internal/rowdata"
	mysqlrepl "github.com/apecloud/dts/internal/replication/mysql"
	pgrepl "github.com/apecloud/dts/internal/replication/pg"
	"github.com/apecloud/dts/internal/sinker"
)

func main() {
	var configPath string
	rootCmd := &cobra.Command{
		Use:   "dts",
		Short: "Run one heterogeneous data-transfer task from an INI task config",
	}
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the task named by --config until canceled",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTask(ctx, configPath)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to the task's .ini config file")
	_ = runCmd.MarkFlagRequired("config")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runTask(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Runtime)
	if err != nil {
		return err
	}
	defer logger.Sync()

	isMySQL := strings.HasPrefix(cfg.Extractor.Type, "mysql")
	dialect := filter.DialectPostgres
	if isMySQL {
		dialect = filter.DialectMySQL
	}

	filt, err := filter.FromConfig(cfg.Filter, dialect)
	if err != nil {
		return fmt.Errorf("build filter: %w", err)
	}
	router := filter.RouterFromConfig(cfg.Router)
	_ = router // wired for GetDbMap/GetTbMap/GetFieldMap once a sink applies renamed identifiers; this driver writes through the source identifiers unchanged for now.

	sourceDB, metaMgr, err := openMeta(ctx, dialect, cfg.Extractor.URL)
	if err != nil {
		return fmt.Errorf("connect metadata source: %w", err)
	}
	defer sourceDB.Close()

	tag := strings.TrimSuffix(filepath.Base(configPath), ".ini")
	ckpt, err := checkpoint.New(cfg.Runtime.LogDir, tag)
	if err != nil {
		return fmt.Errorf("open checkpoint writer: %w", err)
	}
	defer ckpt.Close()

	sinkDialect := sinker.DialectMySQL
	if !strings.HasPrefix(cfg.Sinker.Type, "mysql") {
		sinkDialect = sinker.DialectPostgres
	}
	sinkFactory := func(workerIndex int) (pipeline.Sink, error) {
		if sinkDialect == sinker.DialectMySQL {
			return sinker.NewMySQLSink(ctx, cfg.Sinker.URL, logger)
		}
		return sinker.NewPostgresSink(ctx, cfg.Sinker.URL, logger)
	}

	pcfg := pipeline.Config{
		ParallelSize:           int(cfg.Pipeline.ParallelSize),
		BatchSize:              int(cfg.Sinker.BatchSize),
		CheckpointIntervalSecs: int(cfg.Pipeline.CheckpointIntervalSecs),
		QueueCapacity:          int(cfg.Pipeline.BufferSize),
		SplitUpdates:           sinkDialect == sinker.DialectPostgres && !isMySQL,
		MaxRetries:             5,
		InitialBackoff:         100 * time.Millisecond,
		MaxBackoff:             10 * time.Second,
	}

	pl, err := pipeline.New(pcfg, metaAdapter{metaMgr}, sinkFactory, ckpt, logger)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	pipelineErrCh := make(chan error, 1)
	go func() { pipelineErrCh <- pl.Run(ctx) }()

	var extractErr error
	if isMySQL {
		extractErr = runMySQLExtractor(ctx, cfg, filt, metaMgr, pl, logger)
	} else {
		extractErr = runPgExtractor(ctx, cfg, filt, pl, logger)
	}

	if err := <-pipelineErrCh; err != nil {
		return fmt.Errorf("pipeline: %w", err)
	}
	return extractErr
}

// metaAdapter satisfies pipeline.MetaLookup over *meta.Manager, whose
// method is named GetTbMeta (the name spec.md §4.1 itself uses) rather
// than pipeline.MetaLookup's shorter TbMeta.
type metaAdapter struct{ mgr *meta.Manager }

func (a metaAdapter) TbMeta(ctx context.Context, schema, tb string) (rowdata.TbMeta, error) {
	return a.mgr.GetTbMeta(ctx, schema, tb)
}

func openMeta(ctx context.Context, dialect filter.Dialect, url string) (*sql.DB, *meta.Manager, error) {
	if dialect == filter.DialectMySQL {
		db, err := sql.Open("mysql", url)
		if err != nil {
			return nil, nil, err
		}
		mgr, err := meta.NewMySQLManager(ctx, db)
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		return db, mgr, nil
	}
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, nil, err
	}
	mgr, err := meta.NewPgManager(ctx, db)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, mgr, nil
}

func runMySQLExtractor(ctx context.Context, cfg *config.TaskConfig, filt *filter.Filter, metaMgr *meta.Manager, pl *pipeline.Pipeline, logger *zap.SugaredLogger) error {
	dsnCfg, err := gomysql.ParseDSN(cfg.Extractor.URL)
	if err != nil {
		return fmt.Errorf("parse mysql extractor url: %w", err)
	}
	host, portStr, err := net.SplitHostPort(dsnCfg.Addr)
	if err != nil {
		return fmt.Errorf("parse mysql extractor address %q: %w", dsnCfg.Addr, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return fmt.Errorf("parse mysql extractor port %q: %w", portStr, err)
	}

	dec, err := mysqlrepl.NewDecoder(mysqlrepl.Config{
		Host:              host,
		User:              dsnCfg.User,
		Password:          dsnCfg.Passwd,
		Port:              uint16(port),
		ServerID:          uint32(cfg.Extractor.ServerID),
		HeartbeatInterval: time.Duration(cfg.Extractor.HeartbeatIntervalSecs) * time.Second,
	}, metaMgr, logger)
	if err != nil {
		return fmt.Errorf("build mysql decoder: %w", err)
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- dec.Run(ctx, cfg.Extractor.BinlogFilename, cfg.Extractor.BinlogPosition) }()

	ticker := time.NewTicker(checkpointInterval(cfg.Pipeline.CheckpointIntervalSecs))
	defer ticker.Stop()
	var lastPos position.Position

	for {
		select {
		case ev, ok := <-dec.Events():
			if !ok {
				return <-runErrCh
			}
			if ev.Row != nil {
				if !filt.FilterTb(ev.Row.Schema, ev.Row.Tb) {
					continue
				}
				if err := pl.Submit(ctx, pipeline.Item{Row: ev.Row}); err != nil {
					return err
				}
			}
			if ev.Ddl != nil && logger != nil {
				logger.Infow("ddl observed", "kind", ev.Ddl.Kind)
			}
			lastPos = ev.Position

		case <-ticker.C:
			if err := pl.Submit(ctx, pipeline.Item{Barrier: &pipeline.Barrier{Position: lastPos}}); err != nil {
				return err
			}

		case <-ctx.Done():
			return <-runErrCh
		}
	}
}

func runPgExtractor(ctx context.Context, cfg *config.TaskConfig, filt *filter.Filter, pl *pipeline.Pipeline, logger *zap.SugaredLogger) error {
	dec, err := pgrepl.NewDecoder(ctx, pgrepl.Config{
		ConnString:        cfg.Extractor.URL,
		SlotName:          cfg.Extractor.SlotName,
		Publication:       cfg.Extractor.SlotName + "_publication_for_all_tables",
		StartLSN:          cfg.Extractor.StartLsn,
		HeartbeatInterval: time.Duration(cfg.Extractor.HeartbeatIntervalSecs) * time.Second,
		HeartbeatTable:    cfg.Extractor.HeartbeatTb,
	}, logger)
	if err != nil {
		return fmt.Errorf("build postgres decoder: %w", err)
	}

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- dec.Run(ctx) }()

	ticker := time.NewTicker(checkpointInterval(cfg.Pipeline.CheckpointIntervalSecs))
	defer ticker.Stop()
	var lastPos position.Position

	for {
		select {
		case ev, ok := <-dec.Events():
			if !ok {
				return <-runErrCh
			}
			if ev.Row != nil {
				if !filt.FilterTb(ev.Row.Schema, ev.Row.Tb) {
					continue
				}
				if err := pl.Submit(ctx, pipeline.Item{Row: ev.Row}); err != nil {
					return err
				}
			}
			lastPos = ev.Position

		case <-ticker.C:
			if err := pl.Submit(ctx, pipeline.Item{Barrier: &pipeline.Barrier{Position: lastPos}}); err != nil {
				return err
			}

		case <-ctx.Done():
			return <-runErrCh
		}
	}
}

func checkpointInterval(secs uint64) time.Duration {
	if secs == 0 {
		secs = 10
	}
	return time.Duration(secs) * time.Second
}
