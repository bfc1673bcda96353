// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package logger provides corefs's structured logger: a slog.Logger with
// TRACE/DEBUG/INFO/WARNING/ERROR severities, a choice of text or json
// handler, and file rotation via lumberjack when configured with a log
// file path.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/gocorefs/corefs/cfg"
	"github.com/gocorefs/corefs/clock"
)

// Custom slog levels: slog only ships Debug/Info/Warn/Error, but the spec's
// ambient stack needs a level below Debug (TRACE) and an OFF sentinel above
// Error.
const (
	LevelTrace slog.Level = -8
	LevelOff   slog.Level = 12
)

func severityFromLevel(l slog.Level) string {
	switch {
	case l < slog.LevelDebug:
		return cfg.TRACE
	case l < slog.LevelInfo:
		return cfg.DEBUG
	case l < slog.LevelWarn:
		return cfg.INFO
	case l < slog.LevelError:
		return cfg.WARNING
	default:
		return cfg.ERROR
	}
}

func levelFromSeverity(sev cfg.LogSeverity) slog.Level {
	switch sev {
	case cfg.TraceLogSeverity:
		return LevelTrace
	case cfg.DebugLogSeverity:
		return slog.LevelDebug
	case cfg.WarningLogSeverity:
		return slog.LevelWarn
	case cfg.ErrorLogSeverity:
		return slog.LevelError
	case cfg.OffLogSeverity:
		return LevelOff
	default:
		return slog.LevelInfo
	}
}

// asyncBufferSize bounds how many pending log records may queue behind the
// rotating file writer before new ones are dropped.
const asyncBufferSize = 256

type loggerFactory struct {
	file      *lumberjack.Logger
	async     *AsyncLogger
	sysWriter io.Writer
	format    cfg.LogFormat
	level     slog.Level
}

func (f *loggerFactory) writer() io.Writer {
	if f.async != nil {
		return f.async
	}
	if f.file != nil {
		return f.file
	}
	if f.sysWriter != nil {
		return f.sysWriter
	}
	return os.Stderr
}

// createHandler builds a slog.Handler matching f.format, replacing slog's
// builtin "level" attribute with corefs's named severities so log lines
// read "severity=INFO" rather than a numeric level.
func (f *loggerFactory) createHandler(w io.Writer, programLevel *slog.LevelVar) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			lvl, _ := a.Value.Any().(slog.Level)
			return slog.String("severity", severityFromLevel(lvl))
		case slog.TimeKey:
			if f.format == cfg.JSONLogFormat {
				t, _ := a.Value.Any().(time.Time)
				return slog.Group("timestamp",
					slog.Int64("seconds", t.Unix()),
					slog.Int("nanos", t.Nanosecond()))
			}
			t, _ := a.Value.Any().(time.Time)
			return slog.String(slog.TimeKey, t.Format("2006/01/02 15:04:05.000000"))
		}
		return a
	}

	opts := &slog.HandlerOptions{Level: programLevel, ReplaceAttr: replace}
	if f.format == cfg.JSONLogFormat {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

var (
	defaultLoggerFactory = &loggerFactory{format: cfg.TextLogFormat, level: slog.LevelInfo}
	programLevel         = new(slog.LevelVar)
	defaultLogger        = slog.New(defaultLoggerFactory.createHandler(os.Stderr, programLevel))

	// activeClock supplies every log record's timestamp. Tests substitute a
	// clock.SimulatedClock to make timestamp assertions deterministic.
	activeClock clock.Clock = clock.RealClock{}
)

// SetClock overrides the clock used to timestamp subsequent log records.
func SetClock(c clock.Clock) { activeClock = c }

// Init (re)configures the package-level logger from config: severity,
// format, and — if FilePath is non-empty — rotation via lumberjack using
// config.LogRotate.
func Init(config cfg.LoggingConfig) error {
	factory := &loggerFactory{format: config.Format, level: levelFromSeverity(config.Severity)}

	if config.FilePath != "" {
		factory.file = &lumberjack.Logger{
			Filename:   string(config.FilePath),
			MaxSize:    config.LogRotate.MaxFileSizeMb,
			MaxBackups: config.LogRotate.BackupFileCount,
			Compress:   config.LogRotate.Compress,
		}
		factory.async = NewAsyncLogger(factory.file, asyncBufferSize)
	}

	if defaultLoggerFactory.async != nil {
		defaultLoggerFactory.async.Close()
	}
	defaultLoggerFactory = factory
	programLevel.Set(factory.level)
	defaultLogger = slog.New(factory.createHandler(factory.writer(), programLevel))
	return nil
}

// SetLogFormat switches the active handler's format without otherwise
// touching the configured level or output.
func SetLogFormat(format cfg.LogFormat) {
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createHandler(defaultLoggerFactory.writer(), programLevel))
}

// logAt builds and emits a record stamped with activeClock.Now() rather
// than slog's own time.Now(), so tests can drive log timestamps with a
// clock.SimulatedClock.
func logAt(level slog.Level, msg string) {
	if !defaultLogger.Enabled(context.Background(), level) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(activeClock.Now(), level, msg, pcs[0])
	_ = defaultLogger.Handler().Handle(context.Background(), r)
}

func Tracef(format string, v ...interface{}) { logAt(LevelTrace, fmt.Sprintf(format, v...)) }
func Debugf(format string, v ...interface{}) { logAt(slog.LevelDebug, fmt.Sprintf(format, v...)) }
func Infof(format string, v ...interface{})  { logAt(slog.LevelInfo, fmt.Sprintf(format, v...)) }
func Warnf(format string, v ...interface{})  { logAt(slog.LevelWarn, fmt.Sprintf(format, v...)) }
func Errorf(format string, v ...interface{}) { logAt(slog.LevelError, fmt.Sprintf(format, v...)) }
