// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging configures the zap logger for the relay client.
//
// A TUI owns the terminal, so logs never go to stdout/stderr while the
// program runs. Everything is written as JSON lines to a file under the
// relay data directory; background refresh failures, transport drops, and
// malformed payloads all land here instead of interrupting the view.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogFile is the log file name under the relay data directory.
const DefaultLogFile = "relay.log"

var (
	mu     sync.Mutex
	global *zap.Logger = zap.NewNop()
)

// Init opens (or creates) the log file under dataDir and installs the
// global logger. level accepts "debug", "info", "warn", "error".
func Init(dataDir, level string) (*zap.Logger, error) {
	return InitPath(filepath.Join(dataDir, DefaultLogFile), level)
}

// InitPath is Init with an explicit log file path, for the
// logging.file config override.
func InitPath(path, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.Lock(f),
		parseLevel(level),
	)

	logger := zap.New(core, zap.AddCaller())

	mu.Lock()
	global = logger
	mu.Unlock()

	return logger, nil
}

// L returns the process-wide logger. Before Init it is a no-op logger, so
// packages may log unconditionally.
func L() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	return global
}

// SetLogger replaces the global logger. Tests use this to capture output.
func SetLogger(l *zap.Logger) {
	mu.Lock()
	defer mu.Unlock()
	if l == nil {
		l = zap.NewNop()
	}
	global = l
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.Lock()
	l := global
	mu.Unlock()
	_ = l.Sync()
}

func parseLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
