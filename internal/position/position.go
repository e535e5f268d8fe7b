// Package position implements the Position value (spec.md §3): a tagged
// sum describing a source's replay point, serialized as discriminated
// JSON, plus the position-log line format from spec.md §6.
package position

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/apecloud/dts/internal/dtserr"
)

// Kind discriminates the Position variants. The JSON field carrying it
// is "type", matching the wire format every source/sink already agrees
// on.
type Kind string

const (
	KindNone                 Kind = "None"
	KindKafka                Kind = "Kafka"
	KindRdbSnapshot          Kind = "RdbSnapshot"
	KindRdbSnapshotFinished  Kind = "RdbSnapshotFinished"
	KindMysqlCdc             Kind = "MysqlCdc"
	KindPgCdc                Kind = "PgCdc"
	KindMongoCdc             Kind = "MongoCdc"
	KindRedis                Kind = "Redis"
)

// Position is a plain value: no "current position" globals anywhere in
// this module. The checkpointer observes the latest acknowledged barrier
// from the pipeline workers and writes it; nothing else reads or
// mutates ambient state.
type Position struct {
	Kind Kind `json:"type"`

	// Kafka
	Topic     string `json:"topic,omitempty"`
	Partition int32  `json:"partition,omitempty"`
	Offset    int64  `json:"offset,omitempty"`

	// RdbSnapshot / RdbSnapshotFinished
	DbType   string `json:"db_type,omitempty"`
	Schema   string `json:"schema,omitempty"`
	Tb       string `json:"tb,omitempty"`
	OrderCol string `json:"order_col,omitempty"`
	Value    string `json:"value,omitempty"`

	// MysqlCdc
	ServerID           string `json:"server_id,omitempty"`
	BinlogFilename     string `json:"binlog_filename,omitempty"`
	NextEventPosition  uint32 `json:"next_event_position,omitempty"`

	// PgCdc
	Lsn string `json:"lsn,omitempty"`

	// MongoCdc
	ResumeToken   string `json:"resume_token,omitempty"`
	OperationTime uint32 `json:"operation_time,omitempty"`

	// MysqlCdc / PgCdc / MongoCdc / Redis share a timestamp field.
	Timestamp string `json:"timestamp,omitempty"`

	// Redis
	ReplID     string `json:"repl_id,omitempty"`
	ReplPort   uint64 `json:"repl_port,omitempty"`
	ReplOffset uint64 `json:"repl_offset,omitempty"`
	NowDbID    int64  `json:"now_db_id,omitempty"`
}

// None is the zero position: no progress has been made yet.
var None = Position{Kind: KindNone}

// NewRdbSnapshot builds an in-progress snapshot checkpoint.
func NewRdbSnapshot(dbType, schema, tb, orderCol, value string) Position {
	return Position{
		Kind: KindRdbSnapshot, DbType: dbType, Schema: schema, Tb: tb,
		OrderCol: orderCol, Value: value,
	}
}

// NewRdbSnapshotFinished builds the terminal position for a snapshot of
// one table.
func NewRdbSnapshotFinished(dbType, schema, tb string) Position {
	return Position{Kind: KindRdbSnapshotFinished, DbType: dbType, Schema: schema, Tb: tb}
}

// NewMysqlCdc builds a binlog-coordinate position.
func NewMysqlCdc(serverID, filename string, nextEventPosition uint32, timestamp string) Position {
	return Position{
		Kind: KindMysqlCdc, ServerID: serverID, BinlogFilename: filename,
		NextEventPosition: nextEventPosition, Timestamp: timestamp,
	}
}

// NewPgCdc builds an LSN-coordinate position.
func NewPgCdc(lsn, timestamp string) Position {
	return Position{Kind: KindPgCdc, Lsn: lsn, Timestamp: timestamp}
}

// String renders the canonical JSON form used both for Display and for
// the position-log line's payload.
func (p Position) String() string {
	b, err := json.Marshal(p)
	if err != nil {
		// Position's fields are all plain scalars; Marshal cannot fail.
		panic(err)
	}
	return string(b)
}

// MarshalJSON serializes every value of a kind with the same field set,
// the kind itself under "type". The fields go through a map, so
// encoding/json writes them in sorted key order.
func (p Position) MarshalJSON() ([]byte, error) {
	fields := map[string]any{"type": string(p.Kind)}
	switch p.Kind {
	case KindNone:
	case KindKafka:
		fields["topic"] = p.Topic
		fields["partition"] = p.Partition
		fields["offset"] = p.Offset
	case KindRdbSnapshot:
		fields["db_type"] = p.DbType
		fields["schema"] = p.Schema
		fields["tb"] = p.Tb
		fields["order_col"] = p.OrderCol
		fields["value"] = p.Value
	case KindRdbSnapshotFinished:
		fields["db_type"] = p.DbType
		fields["schema"] = p.Schema
		fields["tb"] = p.Tb
	case KindMysqlCdc:
		fields["server_id"] = p.ServerID
		fields["binlog_filename"] = p.BinlogFilename
		fields["next_event_position"] = p.NextEventPosition
		fields["timestamp"] = p.Timestamp
	case KindPgCdc:
		fields["lsn"] = p.Lsn
		fields["timestamp"] = p.Timestamp
	case KindMongoCdc:
		fields["resume_token"] = p.ResumeToken
		fields["operation_time"] = p.OperationTime
		fields["timestamp"] = p.Timestamp
	case KindRedis:
		fields["repl_id"] = p.ReplID
		fields["repl_port"] = p.ReplPort
		fields["repl_offset"] = p.ReplOffset
		fields["now_db_id"] = p.NowDbID
		fields["timestamp"] = p.Timestamp
	default:
		return nil, dtserr.NewUnexpected("unknown position kind %q", p.Kind)
	}
	return json.Marshal(fields)
}

// FromString parses a Position from its canonical JSON form. Malformed
// JSON is a ConfigError, never a silent zero-value Position — see
// DESIGN.md's Open Question resolution for Position.from_str.
func FromString(s string) (Position, error) {
	var p Position
	if err := json.Unmarshal([]byte(s), &p); err != nil {
		return Position{}, dtserr.WrapConfigError("invalid position JSON", err)
	}
	if p.Kind == "" {
		return Position{}, dtserr.NewConfigError("position JSON missing \"type\" discriminator")
	}
	return p, nil
}

// FromLogLine recovers a Position from a position-log line of the form
// "YYYY-MM-DD HH:MM:SS.ffffff | <tag> | <position JSON>". The JSON is
// the substring between the line's first '{' and last '}'. An empty or
// whitespace-only line decodes to None.
func FromLogLine(line string) (Position, error) {
	if strings.TrimSpace(line) == "" {
		return None, nil
	}
	left := strings.Index(line, "{")
	right := strings.LastIndex(line, "}")
	if left < 0 || right < left {
		return Position{}, dtserr.NewConfigError(fmt.Sprintf("invalid position log line: %q", line))
	}
	return FromString(line[left : right+1])
}
