package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	cases := []Position{
		None,
		NewRdbSnapshot("mysql", "test_db_1", "numeric_table", "f_0", "127"),
		NewRdbSnapshotFinished("mysql", "test_db_1", "one_pk_no_uk"),
		NewMysqlCdc("1", "mysql-bin.000001", 4, "2024-04-01 03:25:18.701"),
		NewPgCdc("0/16B3748", "2024-04-01 03:25:18.701"),
		{Kind: KindKafka, Topic: "t", Partition: 1, Offset: 99},
		{Kind: KindRedis, ReplID: "abc", ReplPort: 6380, ReplOffset: 10, NowDbID: 0, Timestamp: "x"},
	}

	for _, p := range cases {
		s := p.String()
		got, err := FromString(s)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	}
}

func TestFromLogLine(t *testing.T) {
	line1 := `2024-04-01 03:25:18.701725 | {"type":"RdbSnapshotFinished","db_type":"mysql","schema":"test_db_1","tb":"one_pk_no_uk"}`
	got1, err := FromLogLine(line1)
	require.NoError(t, err)
	assert.Equal(t, NewRdbSnapshotFinished("mysql", "test_db_1", "one_pk_no_uk"), got1)

	line2 := `2024-03-29 07:02:24.463776 | current_position | {"type":"RdbSnapshot","db_type":"mysql","schema":"test_db_1","tb":"one_pk_no_uk","order_col":"f_0","value":"9"}`
	got2, err := FromLogLine(line2)
	require.NoError(t, err)
	assert.Equal(t, NewRdbSnapshot("mysql", "test_db_1", "one_pk_no_uk", "f_0", "9"), got2)

	got3, err := FromLogLine("   \n")
	require.NoError(t, err)
	assert.Equal(t, None, got3)
}

func TestFromStringMalformedIsConfigError(t *testing.T) {
	_, err := FromString("not json")
	require.Error(t, err)
}

func TestFromLogLineInvalid(t *testing.T) {
	_, err := FromLogLine("no braces here")
	require.Error(t, err)
}
