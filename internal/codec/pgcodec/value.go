// Package pgcodec implements the PostgreSQL column-value codec
// (spec.md §4.2), converging pgoutput-decoded values, database/sql-scanned
// values, and DDL/DML literal text onto the same rowdata.ColValue
// variants mysqlcodec produces, so filter/pipeline code downstream never
// branches on source dialect.
package pgcodec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/apecloud/dts/internal/dtserr"
	"github.com/apecloud/dts/internal/rowdata"
)

// FromWire converts a pgoutput tuple-column value into a ColValue.
// pglogrepl hands back pgoutput's text-format values as strings for
// every type except when the column is unchanged (TOASTed, not
// present in this tuple) or explicitly NULL, both already filtered out
// by the caller before FromWire is invoked.
func FromWire(colType string, raw any) (rowdata.ColValue, error) {
	if raw == nil {
		return rowdata.None, nil
	}
	return decode(strings.ToLower(colType), raw)
}

// FromQuery converts a value read over database/sql via jackc/pgx's
// stdlib driver shim. Shares FromWire's dispatch.
func FromQuery(colType string, raw any) (rowdata.ColValue, error) {
	return FromWire(colType, raw)
}

// FromStr decodes a literal token from DDL/DML text.
func FromStr(colType, s string) (rowdata.ColValue, error) {
	if s == "NULL" {
		return rowdata.None, nil
	}
	return decode(strings.ToLower(colType), s)
}

func decode(colType string, raw any) (rowdata.ColValue, error) {
	base := baseType(colType)
	switch base {
	case "smallint", "int2", "smallserial", "serial2":
		v, err := toInt64(raw)
		if err != nil {
			return rowdata.None, err
		}
		return rowdata.NewSmallInt(int16(v)), nil
	case "integer", "int", "int4", "serial", "serial4":
		v, err := toInt64(raw)
		if err != nil {
			return rowdata.None, err
		}
		return rowdata.NewInt(int32(v)), nil
	case "bigint", "int8", "bigserial", "serial8":
		v, err := toInt64(raw)
		if err != nil {
			return rowdata.None, err
		}
		return rowdata.NewBigInt(v), nil
	case "real", "float4":
		v, err := toFloat64(raw)
		if err != nil {
			return rowdata.None, err
		}
		return rowdata.NewFloat(float32(v)), nil
	case "double precision", "float8", "float":
		v, err := toFloat64(raw)
		if err != nil {
			return rowdata.None, err
		}
		return rowdata.NewDouble(v), nil
	case "numeric", "decimal", "money":
		return rowdata.NewDecimal(toStr(raw)), nil
	case "date":
		return rowdata.NewDate(toStr(raw)), nil
	case "time", "time without time zone", "time with time zone", "timetz":
		return rowdata.NewTime(toStr(raw)), nil
	case "timestamp", "timestamp without time zone":
		return rowdata.NewDateTime(toStr(raw)), nil
	case "timestamptz", "timestamp with time zone":
		return rowdata.NewTimestamp(toStr(raw)), nil
	case "bytea":
		return rowdata.NewBlob(toBytes(raw)), nil
	case "json", "jsonb":
		return rowdata.NewJSON(toStr(raw)), nil
	case "boolean", "bool":
		b, err := toBool(raw)
		if err != nil {
			return rowdata.None, err
		}
		if b {
			return rowdata.NewTinyInt(1), nil
		}
		return rowdata.NewTinyInt(0), nil
	case "bit", "bit varying", "varbit":
		return rowdata.NewSetString(toStr(raw)), nil
	default:
		// char/varchar/text/uuid/inet/enum and anything else PostgreSQL
		// round-trips through its text format unchanged.
		return rowdata.NewString(toStr(raw)), nil
	}
}

func baseType(colType string) string {
	if idx := strings.IndexByte(colType, '('); idx >= 0 {
		colType = colType[:idx]
	}
	return strings.TrimSpace(colType)
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, dtserr.NewUnexpected("parse int: %v", err)
		}
		return n, nil
	case []byte:
		return toInt64(string(v))
	default:
		return 0, dtserr.NewUnexpected("unsupported integer wire value %T", raw)
	}
}

func toFloat64(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, dtserr.NewUnexpected("parse float: %v", err)
		}
		return f, nil
	case []byte:
		return toFloat64(string(v))
	default:
		return 0, dtserr.NewUnexpected("unsupported float wire value %T", raw)
	}
}

func toBool(raw any) (bool, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		return v == "t" || v == "true" || v == "1", nil
	default:
		return false, dtserr.NewUnexpected("unsupported boolean wire value %T", raw)
	}
}

func toBytes(raw any) []byte {
	switch v := raw.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return []byte(fmt.Sprintf("%v", v))
	}
}

func toStr(raw any) string {
	switch v := raw.(type) {
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
