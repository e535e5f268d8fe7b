// Package dtserr defines the error kinds shared across the extractor,
// decoder, filter, and pipeline components. Every kind wraps an
// underlying cause (when one exists) and is matched with errors.As,
// following the same fmt.Errorf/%w idiom used throughout this module
// rather than a stack-trace library.
package dtserr

import "fmt"

// ConfigError reports a malformed task configuration. Fatal before any
// work starts.
type ConfigError struct {
	Msg   string
	Cause error
}

func (e *ConfigError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("config error: %s", e.Msg)
}

func (e *ConfigError) Unwrap() error { return e.Cause }

// NewConfigError builds a ConfigError with no underlying cause.
func NewConfigError(msg string) *ConfigError { return &ConfigError{Msg: msg} }

// WrapConfigError builds a ConfigError wrapping cause.
func WrapConfigError(msg string, cause error) *ConfigError {
	return &ConfigError{Msg: msg, Cause: cause}
}

// MetadataError reports that required metadata is missing or
// inconsistent. Fatal for the affected table only.
type MetadataError struct {
	Schema, Tb string
	Msg        string
}

func (e *MetadataError) Error() string {
	if e.Schema == "" && e.Tb == "" {
		return fmt.Sprintf("metadata error: %s", e.Msg)
	}
	return fmt.Sprintf("metadata error: no metadata for %s.%s: %s", e.Schema, e.Tb, e.Msg)
}

// NewNoMetadata builds the canonical "no metadata for schema.tb" error.
func NewNoMetadata(schema, tb string) *MetadataError {
	return &MetadataError{Schema: schema, Tb: tb, Msg: "no metadata for schema.tb"}
}

// Unexpected reports a parser failure, an unsupported type, or another
// programmer-visible bug. Fatal by default.
type Unexpected struct {
	Msg string
}

func (e *Unexpected) Error() string { return fmt.Sprintf("unexpected: %s", e.Msg) }

// NewUnexpected builds an Unexpected from a formatted message.
func NewUnexpected(format string, args ...any) *Unexpected {
	return &Unexpected{Msg: fmt.Sprintf(format, args...)}
}

// TransportError reports a transient connection-pool or network failure.
// Retried under the caller's budget; fatal once the budget is exhausted.
type TransportError struct {
	Msg   string
	Cause error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("transport error: %s", e.Msg)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// WrapTransportError builds a TransportError wrapping cause.
func WrapTransportError(msg string, cause error) *TransportError {
	return &TransportError{Msg: msg, Cause: cause}
}

// BinlogError reports a wire-format decode failure on the replication
// stream. Counted and skipped; fatal once the malformed-event rate
// crosses the configured threshold.
type BinlogError struct {
	Msg   string
	Cause error
}

func (e *BinlogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("binlog error: %s: %v", e.Msg, e.Cause)
	}
	return fmt.Sprintf("binlog error: %s", e.Msg)
}

func (e *BinlogError) Unwrap() error { return e.Cause }

// ColumnNotMatch reports that the source and sink column sets disagree
// for a table. Policy-controlled: the sink decides whether to abort the
// task or skip the affected row.
type ColumnNotMatch struct {
	Schema, Tb, Column string
}

func (e *ColumnNotMatch) Error() string {
	return fmt.Sprintf("column not matched: %s.%s.%s", e.Schema, e.Tb, e.Column)
}

// RedisCmdError reports an unknown or ill-formed Redis command. The sink
// rejects the whole batch carrying it.
type RedisCmdError struct {
	Cmd string
	Msg string
}

func (e *RedisCmdError) Error() string {
	return fmt.Sprintf("redis command error: %s: %s", e.Cmd, e.Msg)
}

// StructError reports a schema or table not found during struct
// migration. Fatal for that object only.
type StructError struct {
	Schema, Tb string
	Msg        string
}

func (e *StructError) Error() string {
	return fmt.Sprintf("struct error: %s.%s: %s", e.Schema, e.Tb, e.Msg)
}
