package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTaskIni(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "task.ini")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sampleTask = `
[extractor]
type=mysql_cdc
url=mysql://root@127.0.0.1:3306
binlog_filename=mysql-bin.000001
binlog_position=4
server_id=1234

[sinker]
type=mysql
url=mysql://root@127.0.0.1:3307
batch_size=200

[pipeline]
type=rdb_partition
parallel_size=8
buffer_size=16000
checkpoint_interval_secs=10

[runtime]
log_level=info
log_dir=/var/log/dts

[filter]
do_dbs=` + "`test_db_1`" + `
ignore_tbs=` + "`test_db_1`.`ignore_me;with;semicolons`" + `
do_events=insert,update,delete

[router]
db_map=test_db_1:dst_db_1
`

func TestLoadParsesAllSections(t *testing.T) {
	path := writeTaskIni(t, sampleTask)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mysql_cdc", cfg.Extractor.Type)
	assert.Equal(t, uint32(4), cfg.Extractor.BinlogPosition)
	assert.Equal(t, uint64(1234), cfg.Extractor.ServerID)

	assert.Equal(t, "mysql", cfg.Sinker.Type)
	assert.Equal(t, uint64(200), cfg.Sinker.BatchSize)

	assert.Equal(t, "rdb_partition", cfg.Pipeline.Type)
	assert.Equal(t, uint64(8), cfg.Pipeline.ParallelSize)

	assert.Equal(t, "info", cfg.Runtime.LogLevel)

	// Inline comment symbols must not truncate filter values.
	assert.Equal(t, "`test_db_1`.`ignore_me;with;semicolons`", cfg.Filter.IgnoreTbs)

	assert.Equal(t, "test_db_1:dst_db_1", cfg.Router.DbMap)
}

func TestLoadRejectsMissingRequiredKey(t *testing.T) {
	path := writeTaskIni(t, `
[extractor]
type=mysql_cdc

[sinker]
type=mysql
url=mysql://root@127.0.0.1:3307

[pipeline]
type=snapshot
parallel_size=1

[runtime]
log_level=info
log_dir=/tmp
`)
	_, err := Load(path)
	require.Error(t, err, "extractor.url is required and absent")
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.ini"))
	require.Error(t, err)
}
