// Copyright 2024 The go-nano Authors
// This file is part of the go-nano library.
//
// The go-nano library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-nano library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-nano library. If not, see <http://www.gnu.org/licenses/>.

// Package log exposes the key-value logger surface the rest of the tree
// uses, backed by log/slog with a terminal handler.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Logger carries leveled methods with alternating key-value context pairs.
type Logger interface {
	With(ctx ...any) Logger
	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
}

type logger struct {
	inner *slog.Logger
}

func (l *logger) With(ctx ...any) Logger {
	return &logger{inner: l.inner.With(ctx...)}
}

func (l *logger) write(level slog.Level, msg string, ctx []any) {
	if !l.inner.Enabled(context.Background(), level) {
		return
	}
	l.inner.Log(context.Background(), level, msg, ctx...)
}

func (l *logger) Trace(msg string, ctx ...any) { l.write(LevelTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...any) { l.write(LevelDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...any)  { l.write(LevelInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...any)  { l.write(LevelWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...any) { l.write(LevelError, msg, ctx) }

var root atomic.Pointer[logger]

func init() {
	level := &slog.LevelVar{}
	level.Set(LevelInfo)
	var out io.Writer = os.Stderr
	if isatty.IsTerminal(os.Stderr.Fd()) {
		out = colorable.NewColorableStderr()
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().Format(time.DateTime))
			}
			return a
		},
	})
	levelVar = level
	root.Store(&logger{inner: slog.New(handler)})
}

var levelVar *slog.LevelVar

// Root returns the process-wide logger.
func Root() Logger { return root.Load() }

// New returns the root logger with extra context, the idiom for subsystem
// loggers: log.New("module", "blockprocessor").
func New(ctx ...any) Logger { return Root().With(ctx...) }

// SetLevel adjusts the root verbosity.
func SetLevel(level slog.Level) {
	levelVar.Set(level)
}

// LevelFromString parses a --verbosity flag value.
func LevelFromString(s string) (slog.Level, error) {
	switch s {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info", "":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Convenience root-level helpers.
func Trace(msg string, ctx ...any) { Root().Trace(msg, ctx...) }
func Debug(msg string, ctx ...any) { Root().Debug(msg, ctx...) }
func Info(msg string, ctx ...any)  { Root().Info(msg, ctx...) }
func Warn(msg string, ctx ...any)  { Root().Warn(msg, ctx...) }
func Error(msg string, ctx ...any) { Root().Error(msg, ctx...) }
