package logging

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apecloud/dts/internal/config"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.RuntimeConfig{LogLevel: "not-a-level", LogDir: t.TempDir()})
	require.Error(t, err)
}

func TestNewAcceptsKnownLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		logger, err := New(config.RuntimeConfig{LogLevel: lvl, LogDir: t.TempDir()})
		require.NoError(t, err)
		require.NotNil(t, logger)
	}
}
