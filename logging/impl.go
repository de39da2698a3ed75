package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// impl forwards to a sugared zap logger. Subloggers share the level of their parent.
type impl struct {
	sugar *zap.SugaredLogger
	level zap.AtomicLevel
}

func newImpl(name string, core zapcore.Core, level zap.AtomicLevel) *impl {
	l := zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1))
	if name != "" {
		l = l.Named(name)
	}
	return &impl{sugar: l.Sugar(), level: level}
}

func (imp *impl) Sublogger(subname string) Logger {
	return &impl{sugar: imp.sugar.Named(subname), level: imp.level}
}

func (imp *impl) With(keysAndValues ...interface{}) Logger {
	return &impl{sugar: imp.sugar.With(keysAndValues...), level: imp.level}
}

func (imp *impl) SetLevel(level Level) {
	imp.level.SetLevel(level)
}

func (imp *impl) GetLevel() Level {
	return imp.level.Level()
}

func (imp *impl) AsZap() *zap.SugaredLogger {
	return imp.sugar.WithOptions(zap.AddCallerSkip(-1))
}

func (imp *impl) Sync() error {
	return imp.sugar.Sync()
}

func (imp *impl) Debug(args ...interface{})                   { imp.sugar.Debug(args...) }
func (imp *impl) Debugf(template string, args ...interface{}) { imp.sugar.Debugf(template, args...) }
func (imp *impl) Debugw(msg string, kv ...interface{})        { imp.sugar.Debugw(msg, kv...) }
func (imp *impl) Info(args ...interface{})                    { imp.sugar.Info(args...) }
func (imp *impl) Infof(template string, args ...interface{})  { imp.sugar.Infof(template, args...) }
func (imp *impl) Infow(msg string, kv ...interface{})         { imp.sugar.Infow(msg, kv...) }
func (imp *impl) Warn(args ...interface{})                    { imp.sugar.Warn(args...) }
func (imp *impl) Warnf(template string, args ...interface{})  { imp.sugar.Warnf(template, args...) }
func (imp *impl) Warnw(msg string, kv ...interface{})         { imp.sugar.Warnw(msg, kv...) }
func (imp *impl) Error(args ...interface{})                   { imp.sugar.Error(args...) }
func (imp *impl) Errorf(template string, args ...interface{}) { imp.sugar.Errorf(template, args...) }
func (imp *impl) Errorw(msg string, kv ...interface{})        { imp.sugar.Errorw(msg, kv...) }
