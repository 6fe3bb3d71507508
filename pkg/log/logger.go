package log

import (
	"fmt"
	stdlog "log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes structured JSON logs tagged with the subsystem that emitted
// them. Logs default to stderr, since stdout carries protocol messages.
//
// Records below the configured level are dropped, except for subsystems
// listed in Config.Subsystems which log at every level.
type Logger interface {
	Subsystem() string
	// WithSubsystem returns a logger tagging records with the given
	// subsystem. Fields added with With are kept.
	WithSubsystem(s string) Logger
	With(fields ...zap.Field) Logger
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	Sync() error
	// StdLogger returns a standard library logger writing records at the
	// given level.
	StdLogger(level zapcore.Level) *stdlog.Logger
}

const defaultSubsystem = "node"

type logger struct {
	// base carries the logger options and fields but no subsystem, so each
	// subsystem logger is derived from it.
	base *zap.Logger
	zap  *zap.Logger

	subsystem string
	enabled   map[string]bool
}

// NewLogger returns a logger writing to the configured output. fields are
// added to every record.
func NewLogger(conf Config, fields ...zap.Field) (Logger, error) {
	level, err := zapLevelFromString(conf.Level)
	if err != nil {
		return nil, err
	}

	output := conf.Output
	if output == "" {
		output = "stderr"
	}
	sink, _, err := zap.Open(output)
	if err != nil {
		return nil, fmt.Errorf("open sink: %s: %w", output, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	// The logger name is the subsystem.
	encoderConfig.NameKey = "subsystem"
	encoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout(
		"2006-01-02T15:04:05.999Z07:00",
	)

	// The inner core accepts every level and subsystemCore applies the
	// filter.
	core := &subsystemCore{
		Core: zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig), sink, zapcore.DebugLevel,
		),
		level: level,
	}
	base := zap.New(
		core,
		zap.ErrorOutput(zapcore.Lock(os.Stderr)),
		zap.Fields(fields...),
	)

	enabled := make(map[string]bool, len(conf.Subsystems))
	for _, s := range conf.Subsystems {
		enabled[s] = true
	}

	return newLogger(base, defaultSubsystem, enabled), nil
}

// NewNopLogger returns a logger that discards every record.
func NewNopLogger() Logger {
	return newLogger(zap.NewNop(), defaultSubsystem, nil)
}

func newLogger(base *zap.Logger, subsystem string, enabled map[string]bool) *logger {
	override := enabled[subsystem]
	z := base.WithOptions(
		zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			if sc, ok := c.(*subsystemCore); ok {
				return sc.withOverride(override)
			}
			return c
		}),
	).Named(subsystem)

	return &logger{
		base:      base,
		zap:       z,
		subsystem: subsystem,
		enabled:   enabled,
	}
}

func (l *logger) Subsystem() string {
	return l.subsystem
}

func (l *logger) WithSubsystem(s string) Logger {
	if s == l.subsystem {
		return l
	}
	return newLogger(l.base, s, l.enabled)
}

func (l *logger) With(fields ...zap.Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &logger{
		base:      l.base.With(fields...),
		zap:       l.zap.With(fields...),
		subsystem: l.subsystem,
		enabled:   l.enabled,
	}
}

func (l *logger) Debug(msg string, fields ...zap.Field) {
	l.zap.Debug(msg, fields...)
}

func (l *logger) Info(msg string, fields ...zap.Field) {
	l.zap.Info(msg, fields...)
}

func (l *logger) Warn(msg string, fields ...zap.Field) {
	l.zap.Warn(msg, fields...)
}

func (l *logger) Error(msg string, fields ...zap.Field) {
	l.zap.Error(msg, fields...)
}

func (l *logger) Sync() error {
	return l.zap.Sync()
}

func (l *logger) StdLogger(level zapcore.Level) *stdlog.Logger {
	std, err := zap.NewStdLogAt(l.zap, level)
	if err != nil {
		// Only returned for levels above fatal.
		return zap.NewStdLog(l.zap)
	}
	return std
}

// subsystemCore filters records below level, unless override is set in
// which case every record is logged.
type subsystemCore struct {
	zapcore.Core

	level    zapcore.Level
	override bool
}

func (c *subsystemCore) Enabled(lvl zapcore.Level) bool {
	return c.override || c.level.Enabled(lvl)
}

func (c *subsystemCore) With(fields []zapcore.Field) zapcore.Core {
	return &subsystemCore{
		Core:     c.Core.With(fields),
		level:    c.level,
		override: c.override,
	}
}

func (c *subsystemCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if !c.Enabled(ent.Level) {
		return ce
	}
	return ce.AddCore(ent, c)
}

func (c *subsystemCore) withOverride(override bool) *subsystemCore {
	return &subsystemCore{
		Core:     c.Core,
		level:    c.level,
		override: override,
	}
}

func zapLevelFromString(s string) (zapcore.Level, error) {
	switch s {
	case "debug":
		return zap.DebugLevel, nil
	case "info":
		return zap.InfoLevel, nil
	case "warn":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zapcore.Level(0), fmt.Errorf("unsupported level: %s", s)
	}
}
