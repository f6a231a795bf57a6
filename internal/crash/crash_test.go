/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"warehousemap/internal/domain"
	"warehousemap/internal/storage"
)

func TestWriteReportInTempDir(t *testing.T) {
	path, err := writeReport(nil, "boom", []byte("stacktrace"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Remove(path) })
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.HasPrefix(s, "Warehouse Map Crash Report") || !strings.Contains(s, "Panic: boom") {
		t.Fatalf("report content: %s", s)
	}
	if strings.Contains(s, "Warehouse: ") {
		t.Fatal("no layout details expected without a handle")
	}
}

func TestRecoverWritesReportAndAutosave(t *testing.T) {
	var out bytes.Buffer
	oldErr, oldExit := stderr, exitFn
	code := 0
	stderr = &out
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { stderr, exitFn = oldErr, oldExit })

	root := t.TempDir()
	h, err := storage.InitLayout(root, domain.Layout{WarehouseID: 3, Name: "CD"})
	if err != nil {
		t.Fatal(err)
	}
	h.Layout.Shapes = append(h.Layout.Shapes, domain.NewRectangle(10, 10, 1, domain.DefaultStyle()))

	func() {
		defer Recover(h)
		panic("kaboom")
	}()

	if code != 2 {
		t.Fatalf("exit code %d", code)
	}
	files, _ := os.ReadDir(filepath.Join(root, storage.BackupsDirName))
	var report, snapshot string
	for _, f := range files {
		switch {
		case strings.HasPrefix(f.Name(), "crash-") && strings.HasSuffix(f.Name(), ".log"):
			report = filepath.Join(root, storage.BackupsDirName, f.Name())
		case strings.HasSuffix(f.Name(), ".crash.json"):
			snapshot = filepath.Join(root, storage.BackupsDirName, f.Name())
		}
	}
	if report == "" || snapshot == "" {
		t.Fatalf("report=%q snapshot=%q in %v", report, snapshot, files)
	}
	b, _ := os.ReadFile(report)
	if !bytes.Contains(b, []byte("Panic: kaboom")) || !bytes.Contains(b, []byte("Shapes: 1")) {
		t.Fatalf("report: %s", b)
	}
	snap, _ := os.ReadFile(snapshot)
	lay, err := storage.DecodeLayout(snap)
	if err != nil || len(lay.Shapes) != 1 {
		t.Fatalf("snapshot %v %+v", err, lay)
	}
	if !strings.Contains(out.String(), report) {
		t.Fatalf("stderr does not name the report: %s", out.String())
	}
}

func TestRecoverWithoutPanicDoesNothing(t *testing.T) {
	called := false
	oldExit := exitFn
	exitFn = func(int) { called = true }
	t.Cleanup(func() { exitFn = oldExit })
	func() {
		defer Recover(nil)
	}()
	if called {
		t.Fatal("exit without panic")
	}
}

func TestRecoverFuncAsksForLayoutOnPanic(t *testing.T) {
	var out bytes.Buffer
	oldErr, oldExit := stderr, exitFn
	code := 0
	stderr = &out
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { stderr, exitFn = oldErr, oldExit })

	root := t.TempDir()
	h, err := storage.InitLayout(root, domain.Layout{WarehouseID: 5, Name: "Sul"})
	if err != nil {
		t.Fatal(err)
	}
	asked := 0
	current := func() *storage.LayoutHandle { asked++; return h }

	func() {
		defer RecoverFunc(current)
	}()
	if asked != 0 || code != 0 {
		t.Fatalf("no panic: asked=%d code=%d", asked, code)
	}

	func() {
		defer RecoverFunc(current)
		panic("late")
	}()
	if asked != 1 || code != 2 {
		t.Fatalf("asked=%d code=%d", asked, code)
	}
	if !strings.Contains(out.String(), "Unsaved layout kept at") {
		t.Fatalf("stderr: %s", out.String())
	}
}
