package logging

import (
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

// Level is a log level.
type Level = zapcore.Level

// The supported levels, lowest first.
const (
	DEBUG = zapcore.DebugLevel
	INFO  = zapcore.InfoLevel
	WARN  = zapcore.WarnLevel
	ERROR = zapcore.ErrorLevel
)

// LevelFromString parses a case insensitive level name.
func LevelFromString(inp string) (Level, error) {
	if strings.EqualFold(inp, "warning") {
		return WARN, nil
	}
	level, err := zapcore.ParseLevel(strings.ToLower(inp))
	if err != nil || inp == "" || level > ERROR {
		return DEBUG, errors.Errorf("unknown log level: %q", inp)
	}
	return level, nil
}
