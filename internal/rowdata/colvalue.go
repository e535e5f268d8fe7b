// Package rowdata holds the canonical, wire-format-independent data
// model shared by every extractor, codec, filter, and sinker: ColValue
// (spec.md §3), RowData, and the table-metadata shapes TbMeta/RdbTbMeta.
package rowdata

import "math"

// Kind discriminates the variants of ColValue. The zero value, KindNone,
// is the distinguished "no value" case — it is both the decode result
// for SQL NULL and the fallback for an out-of-range ENUM index.
type Kind uint8

const (
	KindNone Kind = iota
	KindTinyInt
	KindUnsignedTinyInt
	KindSmallInt
	KindUnsignedSmallInt
	KindInt
	KindUnsignedInt
	KindBigInt
	KindUnsignedBigInt
	KindFloat
	KindDouble
	KindDecimal
	KindTime
	KindDate
	KindDateTime
	KindTimestamp
	KindYear
	KindBlob
	KindRawString
	KindString
	KindJSON
	KindBit
	KindSet
	KindSetString
	KindEnum
	KindEnumString
)

// ColValue is the canonical in-memory value of a column, independent of
// the wire or driver encoding it came from. It is a tagged sum: exactly
// one of the typed fields below is meaningful, selected by Kind.
type ColValue struct {
	Kind Kind

	i int64   // signed integers, Year, Enum index
	u uint64  // unsigned integers, Bit, Set bitmap
	f float64 // Float (widened) and Double
	s string  // Decimal/Time/Date/DateTime/Timestamp/String/SetString/EnumString/JSON text forms
	b []byte  // Blob/RawString bytes
}

// None is the distinguished "no value" ColValue.
var None = ColValue{Kind: KindNone}

func NewTinyInt(v int8) ColValue           { return ColValue{Kind: KindTinyInt, i: int64(v)} }
func NewUnsignedTinyInt(v uint8) ColValue  { return ColValue{Kind: KindUnsignedTinyInt, u: uint64(v)} }
func NewSmallInt(v int16) ColValue         { return ColValue{Kind: KindSmallInt, i: int64(v)} }
func NewUnsignedSmallInt(v uint16) ColValue {
	return ColValue{Kind: KindUnsignedSmallInt, u: uint64(v)}
}
func NewInt(v int32) ColValue          { return ColValue{Kind: KindInt, i: int64(v)} }
func NewUnsignedInt(v uint32) ColValue { return ColValue{Kind: KindUnsignedInt, u: uint64(v)} }
func NewBigInt(v int64) ColValue       { return ColValue{Kind: KindBigInt, i: v} }
func NewUnsignedBigInt(v uint64) ColValue { return ColValue{Kind: KindUnsignedBigInt, u: v} }
func NewFloat(v float32) ColValue      { return ColValue{Kind: KindFloat, f: float64(v)} }
func NewDouble(v float64) ColValue     { return ColValue{Kind: KindDouble, f: v} }
func NewDecimal(v string) ColValue     { return ColValue{Kind: KindDecimal, s: v} }
func NewTime(v string) ColValue        { return ColValue{Kind: KindTime, s: v} }
func NewDate(v string) ColValue        { return ColValue{Kind: KindDate, s: v} }
func NewDateTime(v string) ColValue    { return ColValue{Kind: KindDateTime, s: v} }
func NewTimestamp(v string) ColValue   { return ColValue{Kind: KindTimestamp, s: v} }
func NewYear(v uint16) ColValue        { return ColValue{Kind: KindYear, i: int64(v)} }
func NewBlob(v []byte) ColValue        { return ColValue{Kind: KindBlob, b: v} }
func NewRawString(v []byte) ColValue   { return ColValue{Kind: KindRawString, b: v} }
func NewString(v string) ColValue      { return ColValue{Kind: KindString, s: v} }
func NewJSON(v string) ColValue        { return ColValue{Kind: KindJSON, s: v} }
func NewBit(v uint64) ColValue         { return ColValue{Kind: KindBit, u: v} }
func NewSet(v uint64) ColValue         { return ColValue{Kind: KindSet, u: v} }
func NewSetString(v string) ColValue   { return ColValue{Kind: KindSetString, s: v} }
func NewEnum(v uint16) ColValue        { return ColValue{Kind: KindEnum, i: int64(v)} }
func NewEnumString(v string) ColValue  { return ColValue{Kind: KindEnumString, s: v} }

// IsNone reports whether v is the distinguished "no value" variant.
func (v ColValue) IsNone() bool { return v.Kind == KindNone }

// Int64 returns the signed integer payload for the integer/Year/Enum
// variants. Callers must check Kind first.
func (v ColValue) Int64() int64 { return v.i }

// Uint64 returns the unsigned integer payload for the unsigned-integer,
// Bit, and Set variants.
func (v ColValue) Uint64() uint64 { return v.u }

// Float64 returns the float payload for Float (widened from float32)
// and Double.
func (v ColValue) Float64() float64 { return v.f }

// Str returns the text payload for the string-shaped variants
// (Decimal/Time/Date/DateTime/Timestamp/String/SetString/EnumString/JSON).
func (v ColValue) Str() string { return v.s }

// Bytes returns the byte payload for Blob/RawString.
func (v ColValue) Bytes() []byte { return v.b }

// Equal compares two ColValues variant-and-value-wise. Float comparison
// follows IEEE-754: NaN is never equal to NaN here. Use EqualForTest
// when a NaN-tolerant comparison is required (spec.md §8).
func (a ColValue) Equal(b ColValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindNone:
		return true
	case KindFloat, KindDouble:
		return a.f == b.f
	case KindTinyInt, KindSmallInt, KindInt, KindBigInt, KindYear, KindEnum:
		return a.i == b.i
	case KindUnsignedTinyInt, KindUnsignedSmallInt, KindUnsignedInt, KindUnsignedBigInt, KindBit, KindSet:
		return a.u == b.u
	case KindDecimal, KindTime, KindDate, KindDateTime, KindTimestamp, KindString, KindJSON, KindSetString, KindEnumString:
		return a.s == b.s
	case KindBlob, KindRawString:
		return bytesEqual(a.b, b.b)
	default:
		return false
	}
}

// EqualForTest is Equal except that two ColValues of Kind Float or
// Double both holding NaN compare equal, matching the "NaN floats
// compare equal under a dedicated test predicate" invariant from
// spec.md §3. Production code must use Equal.
func (a ColValue) EqualForTest(b ColValue) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == KindFloat || a.Kind == KindDouble {
		if math.IsNaN(a.f) && math.IsNaN(b.f) {
			return true
		}
	}
	return a.Equal(b)
}

// DriverValue converts v to the value a database/sql driver expects in
// an Exec/Query argument list: the matching Go scalar for numeric and
// string-shaped kinds, the raw byte slice for Blob/RawString, and nil
// for KindNone (SQL NULL). Sinks use this instead of re-deriving it
// from Kind themselves.
func (v ColValue) DriverValue() any {
	switch v.Kind {
	case KindNone:
		return nil
	case KindTinyInt, KindSmallInt, KindInt, KindBigInt, KindYear, KindEnum:
		return v.i
	case KindUnsignedTinyInt, KindUnsignedSmallInt, KindUnsignedInt, KindUnsignedBigInt, KindBit, KindSet:
		return v.u
	case KindFloat, KindDouble:
		return v.f
	case KindDecimal, KindTime, KindDate, KindDateTime, KindTimestamp, KindString, KindJSON, KindSetString, KindEnumString:
		return v.s
	case KindBlob, KindRawString:
		return v.b
	default:
		return nil
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
