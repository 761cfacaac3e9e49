package runner

import (
	"io"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/oxygene76/reflectx/pkg/artifact"
)

// RunLog is the scoped output sink of one run. Structured entries go to the process
// logger and to the run's terminal_output.txt; engine chatter goes to the file only.
type RunLog struct {
	Logger *zap.Logger

	file  io.Closer
	out   zapcore.WriteSyncer
	once  sync.Once
	close error
}

// OpenRunLog appends to the run log in dir
func OpenRunLog(store *artifact.Store, dir string, base *zap.Logger) (*RunLog, error) {
	f, err := store.OpenAppend(dir, artifact.RunLogFile)
	if err != nil {
		return nil, err
	}
	if base == nil {
		base = zap.NewNop()
	}

	out := zapcore.Lock(f)
	enc := zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		MessageKey:     "msg",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.CapitalLevelEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	})
	fileCore := zapcore.NewCore(enc, out, zapcore.DebugLevel)

	logger := zap.New(zapcore.NewTee(base.Core(), fileCore)).With(zap.String("run", dir))
	return &RunLog{Logger: logger, file: f, out: out}, nil
}

// Writer receives raw engine output
func (l *RunLog) Writer() io.Writer {
	return l.out
}

// Close flushes and closes the log file. It is safe to call more than once.
func (l *RunLog) Close() error {
	l.once.Do(func() {
		_ = l.Logger.Sync()
		l.close = l.file.Close()
	})
	return l.close
}
