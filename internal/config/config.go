// Package config reads the task configuration (spec.md §6): an INI file
// with [extractor], [sinker], [pipeline], [runtime], [filter], and
// [router] sections, one per task.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"

	"github.com/apecloud/dts/internal/dtserr"
)

// ExtractorConfig maps the [extractor] section.
type ExtractorConfig struct {
	Type                  string `ini:"type"`
	URL                   string `ini:"url"`
	BinlogFilename        string `ini:"binlog_filename"`
	BinlogPosition        uint32 `ini:"binlog_position"`
	ServerID              uint64 `ini:"server_id"`
	SlotName              string `ini:"slot_name"`
	StartLsn              string `ini:"start_lsn"`
	HeartbeatIntervalSecs uint64 `ini:"heartbeat_interval_secs"`
	HeartbeatTb           string `ini:"heartbeat_tb"`
}

// SinkerConfig maps the [sinker] section.
type SinkerConfig struct {
	Type      string `ini:"type"`
	URL       string `ini:"url"`
	BatchSize uint64 `ini:"batch_size"`
	Bucket    string `ini:"bucket"`
	RootDir   string `ini:"root_dir"`
}

// PipelineConfig maps the [pipeline] section.
type PipelineConfig struct {
	Type                   string `ini:"type"`
	ParallelSize           uint64 `ini:"parallel_size"`
	BufferSize             uint64 `ini:"buffer_size"`
	CheckpointIntervalSecs uint64 `ini:"checkpoint_interval_secs"`
}

// RuntimeConfig maps the [runtime] section.
type RuntimeConfig struct {
	LogLevel string `ini:"log_level"`
	LogDir   string `ini:"log_dir"`
}

// FilterConfig maps the [filter] section. Each field is the raw,
// comma-separated text as written in the INI file; internal/filter is
// responsible for tokenizing it with the dialect-aware rules from
// spec.md §4.6.
type FilterConfig struct {
	DoDbs        string `ini:"do_dbs"`
	IgnoreDbs    string `ini:"ignore_dbs"`
	DoTbs        string `ini:"do_tbs"`
	IgnoreTbs    string `ini:"ignore_tbs"`
	DoEvents     string `ini:"do_events"`
	DoStructures string `ini:"do_structures"`
	DoDdls       string `ini:"do_ddls"`
	IgnoreCmds   string `ini:"ignore_cmds"`
}

// RouterConfig maps the [router] section.
type RouterConfig struct {
	DbMap    string `ini:"db_map"`
	TbMap    string `ini:"tb_map"`
	FieldMap string `ini:"field_map"`
}

// TaskConfig is the fully parsed task configuration.
type TaskConfig struct {
	Extractor ExtractorConfig
	Sinker    SinkerConfig
	Pipeline  PipelineConfig
	Runtime   RuntimeConfig
	Filter    FilterConfig
	Router    RouterConfig
}

// requiredKeys lists, per section, the keys that must be present and
// non-empty. Keys not listed here are optional and default to the zero
// value of their field type.
var requiredKeys = map[string][]string{
	"extractor": {"type", "url"},
	"sinker":    {"type", "url"},
	"pipeline":  {"type", "parallel_size"},
	"runtime":   {"log_level", "log_dir"},
}

// Load reads and validates a task configuration file. Inline comments
// are never stripped from values: the loader disables ini's
// comment-symbol handling so that a filter value like
// do_dbs=`a;`,`bcd`` is preserved intact rather than truncated at the
// first `;`.
func Load(path string) (*TaskConfig, error) {
	f, err := ini.LoadSources(ini.LoadOptions{IgnoreInlineComment: true}, path)
	if err != nil {
		return nil, dtserr.WrapConfigError(fmt.Sprintf("read task config %q", path), err)
	}

	cfg := &TaskConfig{}
	for section, keys := range requiredKeys {
		sec := f.Section(section)
		for _, k := range keys {
			if sec.Key(k).String() == "" {
				return nil, dtserr.NewConfigError(fmt.Sprintf("[%s] missing required key %q", section, k))
			}
		}
	}

	if err := f.Section("extractor").MapTo(&cfg.Extractor); err != nil {
		return nil, dtserr.WrapConfigError("parse [extractor]", err)
	}
	if err := f.Section("sinker").MapTo(&cfg.Sinker); err != nil {
		return nil, dtserr.WrapConfigError("parse [sinker]", err)
	}
	if err := f.Section("pipeline").MapTo(&cfg.Pipeline); err != nil {
		return nil, dtserr.WrapConfigError("parse [pipeline]", err)
	}
	if err := f.Section("runtime").MapTo(&cfg.Runtime); err != nil {
		return nil, dtserr.WrapConfigError("parse [runtime]", err)
	}
	if err := f.Section("filter").MapTo(&cfg.Filter); err != nil {
		return nil, dtserr.WrapConfigError("parse [filter]", err)
	}
	if err := f.Section("router").MapTo(&cfg.Router); err != nil {
		return nil, dtserr.WrapConfigError("parse [router]", err)
	}

	return cfg, nil
}
