// Package logging contains the leveled, named loggers used across the annotation pipeline.
package logging

import (
	"io"
	"os"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"gopkg.in/natefinch/lumberjack.v2"
)

// DefaultTimeFormatStr is the timestamp layout of console output.
const DefaultTimeFormatStr = "2006-01-02T15:04:05.000Z0700"

// Logger is the logging interface handed to every package that reports progress or anomalies.
type Logger interface {
	Debug(args ...interface{})
	Debugf(template string, args ...interface{})
	Debugw(msg string, keysAndValues ...interface{})
	Info(args ...interface{})
	Infof(template string, args ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warn(args ...interface{})
	Warnf(template string, args ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Error(args ...interface{})
	Errorf(template string, args ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	// Sublogger returns a logger named "<name>.<subname>" writing to the same outputs.
	Sublogger(subname string) Logger
	// With returns a logger that adds keysAndValues to every entry.
	With(keysAndValues ...interface{}) Logger
	SetLevel(level Level)
	GetLevel() Level
	AsZap() *zap.SugaredLogger
	Sync() error
}

// consoleEncoder writes tab separated lines: time, level, logger, caller, message and a JSON
// object of the fields.
func consoleEncoder(inUTC bool) zapcore.Encoder {
	return zapcore.NewConsoleEncoder(zapcore.EncoderConfig{
		TimeKey:       "ts",
		LevelKey:      "level",
		NameKey:       "logger",
		CallerKey:     "caller",
		FunctionKey:   zapcore.OmitKey,
		MessageKey:    "msg",
		StacktraceKey: zapcore.OmitKey,
		LineEnding:    zapcore.DefaultLineEnding,
		EncodeLevel:   zapcore.CapitalLevelEncoder,
		EncodeTime: func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			if inUTC {
				t = t.UTC()
			}
			enc.AppendString(t.Format(DefaultTimeFormatStr))
		},
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	})
}

// NewWriterLogger returns a logger that writes console lines at level and above to w.
func NewWriterLogger(name string, w io.Writer, level Level) Logger {
	atomic := zap.NewAtomicLevelAt(level)
	core := zapcore.NewCore(consoleEncoder(true), zapcore.AddSync(w), atomic)
	return newImpl(name, core, atomic)
}

// NewLogger returns a new logger that outputs Info+ logs to stdout in UTC.
func NewLogger(name string) Logger {
	return NewWriterLogger(name, zapcore.Lock(os.Stdout), INFO)
}

// NewFileLogger returns a logger writing to stdout and to a size-rotated file at path. The
// returned func closes the file.
func NewFileLogger(name, path string, level Level) (Logger, func() error) {
	file := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    100,
		MaxBackups: 3,
	}
	atomic := zap.NewAtomicLevelAt(level)
	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder(true), zapcore.Lock(os.Stdout), atomic),
		zapcore.NewCore(consoleEncoder(true), zapcore.AddSync(file), atomic),
	)
	return newImpl(name, core, atomic), file.Close
}

// NewTestLogger returns a new logger that outputs Debug+ logs through the test's Log method.
func NewTestLogger(tb testing.TB) Logger {
	logger, _ := NewObservedTestLogger(tb)
	return logger
}

// NewObservedTestLogger is like NewTestLogger but also saves logs to an in memory observer.
func NewObservedTestLogger(tb testing.TB) (Logger, *observer.ObservedLogs) {
	atomic := zap.NewAtomicLevelAt(DEBUG)
	testCore := zaptest.NewLogger(tb, zaptest.Level(atomic)).Core()
	observerCore, observedLogs := observer.New(atomic)
	return newImpl("", zapcore.NewTee(testCore, observerCore), atomic), observedLogs
}
