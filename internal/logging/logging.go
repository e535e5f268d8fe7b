// Package logging builds the single *zap.SugaredLogger shared by the
// long-lived components of a task that log (extractor, decoder,
// pipeline workers, sinks), per the [runtime] section of the task
// configuration.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/apecloud/dts/internal/config"
)

// New builds a logger that writes JSON lines to "<log_dir>/dts.log",
// rotated by lumberjack, and also to stderr for interactive runs.
func New(rc config.RuntimeConfig) (*zap.SugaredLogger, error) {
	level, err := parseLevel(rc.LogLevel)
	if err != nil {
		return nil, err
	}

	fileWriter := zapcore.AddSync(&lumberjack.Logger{
		Filename:   filepath.Join(rc.LogDir, "dts.log"),
		MaxSize:    100, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	})

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileWriter, level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(zapcore.AddSync(os.Stderr)), level),
	)

	return zap.New(core, zap.AddCaller()).Sugar(), nil
}

func parseLevel(s string) (zapcore.Level, error) {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(strings.ToLower(s))); err != nil {
		return 0, fmt.Errorf("invalid log_level %q: %w", s, err)
	}
	return lvl, nil
}
