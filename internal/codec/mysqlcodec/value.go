package mysqlcodec

import (
	"fmt"
	"strconv"

	"github.com/apecloud/dts/internal/dtserr"
	"github.com/apecloud/dts/internal/rowdata"
)

// FromWire converts a value decoded by the binlog replication library
// (go-mysql-org/go-mysql/replication's RowsEvent.Rows, whose Go types
// are already demultiplexed per MySQL wire type: int64/uint64 for
// integers, float32/float64, []byte for strings/blobs/decimals, int64
// for SET/ENUM/BIT bitmaps and indices) into the canonical ColValue for
// colType. A nil raw value is SQL NULL and decodes to rowdata.None
// regardless of colType.
func FromWire(colType string, raw any) (rowdata.ColValue, error) {
	if raw == nil {
		return rowdata.None, nil
	}

	base := BaseType(colType)
	unsigned := IsUnsigned(colType)

	switch base {
	case "tinyint", "bool", "boolean":
		return intColValue(raw, unsigned, 8)
	case "smallint":
		return intColValue(raw, unsigned, 16)
	case "mediumint":
		// MySQL always returns MEDIUMINT over the wire widened to 32
		// bits; UNSIGNED MEDIUMINT needs the top byte masked off when
		// the driver hands back a signed 32-bit value.
		return mediumIntColValue(raw, unsigned)
	case "int", "integer":
		return intColValue(raw, unsigned, 32)
	case "bigint":
		return intColValue(raw, unsigned, 64)
	case "float":
		return floatColValue(raw)
	case "double", "double precision":
		return doubleColValue(raw)
	case "decimal", "dec", "numeric", "fixed":
		return rowdata.NewDecimal(toStr(raw)), nil
	case "date":
		return rowdata.NewDate(toStr(raw)), nil
	case "time":
		return rowdata.NewTime(toStr(raw)), nil
	case "datetime":
		return rowdata.NewDateTime(toStr(raw)), nil
	case "timestamp":
		return rowdata.NewTimestamp(toStr(raw)), nil
	case "year":
		y, err := toUint64(raw)
		if err != nil {
			return rowdata.None, err
		}
		return rowdata.NewYear(uint16(y)), nil
	case "tinyblob", "blob", "mediumblob", "longblob", "binary", "varbinary":
		return rowdata.NewBlob(toBytes(raw)), nil
	case "tinytext", "text", "mediumtext", "longtext", "char", "varchar":
		return rowdata.NewString(toStr(raw)), nil
	case "json":
		return rowdata.NewJSON(toStr(raw)), nil
	case "bit":
		v, err := toUint64(raw)
		if err != nil {
			return rowdata.None, err
		}
		return rowdata.NewBit(v), nil
	case "set":
		return setColValue(colType, raw)
	case "enum":
		return enumColValue(colType, raw)
	default:
		// Unrecognized or spatial/geometry types fall through to their
		// raw textual form rather than failing the whole row.
		return rowdata.NewRawString(toBytes(raw)), nil
	}
}

// FromQuery converts a value read over database/sql (snapshot and
// data-check extraction, where the driver already returns typed Go
// values per the sql/driver conversions in go-sql-driver/mysql) into a
// ColValue. It shares all of FromWire's type-dispatch rules; the two are
// kept as separate entry points because a replication decoder and a
// database/sql Scan call site want distinctly named call sites even
// though the underlying conversion is identical.
func FromQuery(colType string, raw any) (rowdata.ColValue, error) {
	return FromWire(colType, raw)
}

// FromStr decodes a literal token from DDL default-value text or a DML
// statement (e.g. a parsed CREATE TABLE column default, or an UPDATE
// SET literal) into a ColValue. Unlike FromWire/FromQuery, the input is
// always already a string; integer/float variants still get real
// integer/float payloads so that ColValue.Equal behaves consistently
// regardless of which path produced the value.
func FromStr(colType, s string) (rowdata.ColValue, error) {
	if s == "NULL" {
		return rowdata.None, nil
	}
	return FromWire(colType, []byte(s))
}

func intColValue(raw any, unsigned bool, bits int) (rowdata.ColValue, error) {
	if unsigned {
		v, err := toUint64(raw)
		if err != nil {
			return rowdata.None, err
		}
		switch bits {
		case 8:
			return rowdata.NewUnsignedTinyInt(uint8(v)), nil
		case 16:
			return rowdata.NewUnsignedSmallInt(uint16(v)), nil
		case 32:
			return rowdata.NewUnsignedInt(uint32(v)), nil
		default:
			return rowdata.NewUnsignedBigInt(v), nil
		}
	}
	v, err := toInt64(raw)
	if err != nil {
		return rowdata.None, err
	}
	switch bits {
	case 8:
		return rowdata.NewTinyInt(int8(v)), nil
	case 16:
		return rowdata.NewSmallInt(int16(v)), nil
	case 32:
		return rowdata.NewInt(int32(v)), nil
	default:
		return rowdata.NewBigInt(v), nil
	}
}

func mediumIntColValue(raw any, unsigned bool) (rowdata.ColValue, error) {
	v, err := toInt64(raw)
	if err != nil {
		return rowdata.None, err
	}
	if unsigned && v < 0 {
		// The wire/driver value arrived sign-extended from a 24-bit
		// field; mask back to the unsigned 24-bit range.
		v &= 0xFFFFFF
	}
	if unsigned {
		return rowdata.NewUnsignedInt(uint32(v)), nil
	}
	return rowdata.NewInt(int32(v)), nil
}

func floatColValue(raw any) (rowdata.ColValue, error) {
	switch v := raw.(type) {
	case float32:
		return rowdata.NewFloat(v), nil
	case float64:
		return rowdata.NewFloat(float32(v)), nil
	case []byte:
		f, err := strconv.ParseFloat(string(v), 32)
		if err != nil {
			return rowdata.None, dtserr.NewUnexpected("parse float: %v", err)
		}
		return rowdata.NewFloat(float32(f)), nil
	default:
		return rowdata.None, dtserr.NewUnexpected("unsupported FLOAT wire value %T", raw)
	}
}

func doubleColValue(raw any) (rowdata.ColValue, error) {
	switch v := raw.(type) {
	case float64:
		return rowdata.NewDouble(v), nil
	case float32:
		return rowdata.NewDouble(float64(v)), nil
	case []byte:
		f, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return rowdata.None, dtserr.NewUnexpected("parse double: %v", err)
		}
		return rowdata.NewDouble(f), nil
	default:
		return rowdata.None, dtserr.NewUnexpected("unsupported DOUBLE wire value %T", raw)
	}
}

// setColValue resolves a SET value. When the wire already hands back
// text (snapshot/query path) that text is kept directly. When it hands
// back the raw bitmap (replication path), the bits are walked
// least-to-most-significant and the matching declared labels are joined
// by ',' in declaration order (spec.md §4.2); an empty bitmask yields
// the empty string, not None.
func setColValue(colType string, raw any) (rowdata.ColValue, error) {
	switch v := raw.(type) {
	case []byte:
		return rowdata.NewSetString(string(v)), nil
	case string:
		return rowdata.NewSetString(v), nil
	default:
		bitmap, err := toUint64(raw)
		if err != nil {
			return rowdata.None, err
		}
		return rowdata.NewSetString(setLabelsFromBitmap(colType, bitmap)), nil
	}
}

// setLabelsFromBitmap renders a SET bitmap as its comma-joined label
// text per spec.md §4.2.
func setLabelsFromBitmap(colType string, bitmap uint64) string {
	values := EnumValues(colType)
	var labels []string
	for i, label := range values {
		if bitmap&(1<<uint(i)) != 0 {
			labels = append(labels, label)
		}
	}
	out := ""
	for i, l := range labels {
		if i > 0 {
			out += ","
		}
		out += l
	}
	return out
}

// enumColValue resolves an ENUM index into its literal string when the
// column type metadata carries the literal list; an out-of-range index
// (including MySQL's reserved 0 == invalid-value index) decodes to
// rowdata.None rather than erroring, matching ENUM's own "invalid value
// reads back as empty string" semantics.
func enumColValue(colType string, raw any) (rowdata.ColValue, error) {
	switch v := raw.(type) {
	case []byte:
		return rowdata.NewEnumString(string(v)), nil
	case string:
		return rowdata.NewEnumString(v), nil
	default:
		idx, err := toUint64(raw)
		if err != nil {
			return rowdata.None, err
		}
		values := EnumValues(colType)
		if idx == 0 || int(idx) > len(values) {
			return rowdata.None, nil
		}
		return rowdata.NewEnumString(values[idx-1]), nil
	}
}

func toInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case []byte:
		n, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, dtserr.NewUnexpected("parse int: %v", err)
		}
		return n, nil
	default:
		return 0, dtserr.NewUnexpected("unsupported integer wire value %T", raw)
	}
}

func toUint64(raw any) (uint64, error) {
	switch v := raw.(type) {
	case uint64:
		return v, nil
	case uint32:
		return uint64(v), nil
	case uint16:
		return uint64(v), nil
	case uint8:
		return uint64(v), nil
	case uint:
		return uint64(v), nil
	case int64:
		return uint64(v), nil
	case []byte:
		n, err := strconv.ParseUint(string(v), 10, 64)
		if err != nil {
			return 0, dtserr.NewUnexpected("parse uint: %v", err)
		}
		return n, nil
	default:
		return 0, dtserr.NewUnexpected("unsupported unsigned wire value %T", raw)
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
