/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log provides centralized slog-based logging for the editor, the CLI and the map server.
// Records are enriched with component/op attributes and, when present on the context,
// the request id and warehouse id of the call being served.
package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"warehousemap/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization.
// Values can be provided directly or via environment variables:
//   - WMAP_LOG_LEVEL=debug|info|warn|error
//   - WMAP_LOG_FORMAT=console|json
//   - WMAP_LOG_FILE=<path> (enables rotated JSON file logging)
//   - WMAP_LOG_SOURCE=true|false
//
// Defaults: INFO level, console format, no source.
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
}

var (
	mu      sync.RWMutex
	current *slog.Logger
)

// L returns the application logger, initializing from env on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init configures the application logger and installs it as slog.Default.
func Init(opts Options) {
	lvl := parseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}

	var sinks []slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		sinks = append(sinks, slog.NewJSONHandler(os.Stderr, hopts))
	default:
		sinks = append(sinks, newConsoleHandler(os.Stderr, lvl, opts.AddSource))
	}
	if f := strings.TrimSpace(opts.File); f != "" {
		w := &lj.Logger{Filename: f, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		sinks = append(sinks, slog.NewJSONHandler(w, hopts))
	}

	var h slog.Handler = sinks[0]
	if len(sinks) > 1 {
		h = fanout(sinks)
	}
	logger := slog.New(withContext(h)).With(
		slog.String("app", "warehousemap"),
		slog.String("ver", version.Version),
		slog.Time("ts_init", time.Now()),
	)

	mu.Lock()
	current = logger
	mu.Unlock()
	slog.SetDefault(logger)
}

// FromEnv builds Options from WMAP_LOG_* environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("WMAP_LOG_LEVEL", "info"),
		Format:    getenv("WMAP_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("WMAP_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("WMAP_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger with the component attribute pre-set.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation annotates the logger with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
