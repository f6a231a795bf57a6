/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file and an autosave of the open layout.
package crash

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "warehousemap/internal/log"
	"warehousemap/internal/storage"
	"warehousemap/internal/telemetry"
	"warehousemap/internal/version"
)

var (
	exitFn           = os.Exit
	stderr io.Writer = os.Stderr
)

// Recover handles a panic in progress: it logs the stack, writes a report next to the
// layout (or in the temp dir), autosaves the in-memory layout and exits with code 2.
//
//	defer crash.Recover(h)
func Recover(h *storage.LayoutHandle) {
	r := recover()
	if r == nil {
		return
	}
	handle(h, r, debug.Stack())
	exitFn(2)
}

// RecoverFunc is Recover for callers whose layout changes after the defer, such as the
// desktop editor. current is asked for the layout only once a panic is in progress.
//
//	defer crash.RecoverFunc(win.snapshot)
func RecoverFunc(current func() *storage.LayoutHandle) {
	r := recover()
	if r == nil {
		return
	}
	var h *storage.LayoutHandle
	if current != nil {
		h = current()
	}
	handle(h, r, debug.Stack())
	exitFn(2)
}

func handle(h *storage.LayoutHandle, panicVal any, stack []byte) {
	l := applog.WithComponent("crash")
	l.Error("panic recovered", slog.Any("panic", panicVal), slog.String("stack", string(stack)))

	reportPath, err := writeReport(h, panicVal, stack)
	if err != nil {
		l.Error("write crash report", slog.Any("err", err))
	}
	if h != nil {
		if path, err := storage.AutosaveCrashSnapshot(h); err != nil {
			l.Error("autosave crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("autosave crash snapshot written", slog.String("path", path))
			_, _ = fmt.Fprintf(stderr, "Unsaved layout kept at: %s\n", path)
		}
	}
	_, _ = fmt.Fprintf(stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath)
	_, _ = fmt.Fprintf(stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
}

func buildReport(h *storage.LayoutHandle, panicVal any, stack []byte) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Warehouse Map Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if h != nil {
		fmt.Fprintf(&buf, "LayoutRoot: %s\n", h.Root)
		fmt.Fprintf(&buf, "Warehouse: %d\n", h.Layout.WarehouseID)
		fmt.Fprintf(&buf, "Shapes: %d\n", len(h.Layout.Shapes))
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)
	return buf.Bytes()
}

func writeReport(h *storage.LayoutHandle, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if h != nil && h.Root != "" {
		dir = filepath.Join(h.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405.000")))
	report := buildReport(h, panicVal, stack)
	if err := os.WriteFile(path, report, 0o644); err != nil {
		return path, err
	}
	telemetry.UploadCrash(report)
	return path, nil
}
