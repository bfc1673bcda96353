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

package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gocorefs/corefs/cfg"
	"github.com/gocorefs/corefs/clock"
)

func redirectLogsToBuffer(buf *bytes.Buffer, format cfg.LogFormat, level slog.Level) {
	lvl := new(slog.LevelVar)
	lvl.Set(level)
	defaultLoggerFactory = &loggerFactory{format: format, level: level}
	programLevel = lvl
	defaultLogger = slog.New(defaultLoggerFactory.createHandler(buf, programLevel))
}

func TestTextFormat_SeverityBelowThresholdIsSuppressed(t *testing.T) {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, cfg.TextLogFormat, slog.LevelWarn)

	Infof("suppressed")
	assert.Empty(t, buf.String())

	Warnf("not suppressed")
	assert.Regexp(t, regexp.MustCompile(`severity=WARNING`), buf.String())
}

func TestTextFormat_TraceIsBelowDebug(t *testing.T) {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, cfg.TextLogFormat, LevelTrace)

	Tracef("hello %s", "world")
	assert.Regexp(t, regexp.MustCompile(`severity=TRACE`), buf.String())
	assert.Contains(t, buf.String(), "hello world")
}

func TestJSONFormat_UsesStructuredTimestamp(t *testing.T) {
	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, cfg.JSONLogFormat, slog.LevelInfo)

	Infof("structured")
	assert.Regexp(t, regexp.MustCompile(`"timestamp":\{"seconds":\d+,"nanos":\d+\}`), buf.String())
	assert.Regexp(t, regexp.MustCompile(`"severity":"INFO"`), buf.String())
}

func TestInit_ConfiguresLevelFromSeverity(t *testing.T) {
	require.NoError(t, Init(cfg.LoggingConfig{Severity: cfg.ErrorLogSeverity, Format: cfg.TextLogFormat}))
	assert.Equal(t, slog.LevelError, defaultLoggerFactory.level)
}

func TestSetClock_StampsRecordsWithSimulatedTime(t *testing.T) {
	defer SetClock(clock.RealClock{})

	sim := clock.NewSimulatedClock(time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC))
	SetClock(sim)

	var buf bytes.Buffer
	redirectLogsToBuffer(&buf, cfg.TextLogFormat, slog.LevelInfo)

	Infof("stamped")
	assert.Contains(t, buf.String(), "2030/01/02 03:04:05")
}
