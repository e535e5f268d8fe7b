package mysqlcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apecloud/dts/internal/rowdata"
)

func TestBaseTypeStripsParensAndModifiers(t *testing.T) {
	assert.Equal(t, "varchar", BaseType("varchar(255)"))
	assert.Equal(t, "decimal", BaseType("decimal(10,2) unsigned zerofill"))
	assert.Equal(t, "enum", BaseType("enum('a','b')"))
	assert.Equal(t, "int", BaseType("int(11)"))
}

func TestIsUnsigned(t *testing.T) {
	assert.True(t, IsUnsigned("int(11) unsigned"))
	assert.False(t, IsUnsigned("int(11)"))
}

func TestEnumValuesParsesQuotedLiteralsWithEscapedQuote(t *testing.T) {
	vals := EnumValues("enum('a','b''c','d')")
	assert.Equal(t, []string{"a", "b'c", "d"}, vals)
}

func TestFromWireNullIsNone(t *testing.T) {
	v, err := FromWire("int(11)", nil)
	require.NoError(t, err)
	assert.True(t, v.IsNone())
}

func TestFromWireSignedAndUnsignedInts(t *testing.T) {
	v, err := FromWire("tinyint(4)", int64(-12))
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewTinyInt(-12), v)

	v, err = FromWire("int(10) unsigned", uint64(4000000000))
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewUnsignedInt(4000000000), v)
}

func TestFromWireMediumIntUnsignedMasksSignExtension(t *testing.T) {
	// A 24-bit unsigned value near the top of its range arrives
	// sign-extended as a negative int32/int64 from the wire decoder.
	v, err := FromWire("mediumint(8) unsigned", int64(-1))
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewUnsignedInt(0xFFFFFF), v)
}

func TestFromWireDecimalKeptAsText(t *testing.T) {
	v, err := FromWire("decimal(10,2)", []byte("12345.67"))
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewDecimal("12345.67"), v)
}

func TestFromWireEnumResolvesIndexToLiteral(t *testing.T) {
	v, err := FromWire("enum('red','green','blue')", int64(2))
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewEnumString("green"), v)
}

func TestFromWireEnumOutOfRangeIndexIsNone(t *testing.T) {
	v, err := FromWire("enum('red','green','blue')", int64(0))
	require.NoError(t, err)
	assert.True(t, v.IsNone())

	v, err = FromWire("enum('red','green','blue')", int64(9))
	require.NoError(t, err)
	assert.True(t, v.IsNone())
}

func TestFromWireSetResolvesTextDirectly(t *testing.T) {
	v, err := FromWire("set('a','b','c')", []byte("a,c"))
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewSetString("a,c"), v)
}

func TestFromWireSetDecodesBitmapToLabels(t *testing.T) {
	// bits 0 and 2 set -> "a,c"
	v, err := FromWire("set('a','b','c')", int64(0b101))
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewSetString("a,c"), v)
}

func TestFromWireSetEmptyBitmapIsEmptyString(t *testing.T) {
	v, err := FromWire("set('a','b','c')", int64(0))
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewSetString(""), v)
}

func TestFromWireBlobAndString(t *testing.T) {
	v, err := FromWire("varchar(255)", []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewString("hello"), v)

	v, err = FromWire("blob", []byte{0x00, 0x01})
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewBlob([]byte{0x00, 0x01}), v)
}

func TestFromStrNullLiteral(t *testing.T) {
	v, err := FromStr("int(11)", "NULL")
	require.NoError(t, err)
	assert.True(t, v.IsNone())
}

func TestFromStrInteger(t *testing.T) {
	v, err := FromStr("bigint(20)", "123456")
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewBigInt(123456), v)
}
