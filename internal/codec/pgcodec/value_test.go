package pgcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apecloud/dts/internal/rowdata"
)

func TestFromWireNullIsNone(t *testing.T) {
	v, err := FromWire("integer", nil)
	require.NoError(t, err)
	assert.True(t, v.IsNone())
}

func TestFromWireIntegerTypes(t *testing.T) {
	v, err := FromWire("bigint", "123456789012")
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewBigInt(123456789012), v)

	v, err = FromWire("smallint", "-100")
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewSmallInt(-100), v)
}

func TestFromWireNumericKeptAsText(t *testing.T) {
	v, err := FromWire("numeric(10,2)", "12345.67")
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewDecimal("12345.67"), v)
}

func TestFromWireBoolean(t *testing.T) {
	v, err := FromWire("boolean", "t")
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewTinyInt(1), v)

	v, err = FromWire("boolean", "f")
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewTinyInt(0), v)
}

func TestFromWireTimestamptz(t *testing.T) {
	v, err := FromWire("timestamp with time zone", "2024-04-01 03:25:18.701+00")
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewTimestamp("2024-04-01 03:25:18.701+00"), v)
}

func TestFromWireTextFallback(t *testing.T) {
	v, err := FromWire("uuid", "550e8400-e29b-41d4-a716-446655440000")
	require.NoError(t, err)
	assert.Equal(t, rowdata.NewString("550e8400-e29b-41d4-a716-446655440000"), v)
}

func TestFromStrNullLiteral(t *testing.T) {
	v, err := FromStr("integer", "NULL")
	require.NoError(t, err)
	assert.True(t, v.IsNone())
}
