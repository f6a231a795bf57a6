/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time                { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestManager(cfg Config) (*Manager, *fakeClock) {
	m := NewManager(cfg)
	c := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	m.now = c.now
	return m, c
}

func TestUndoRedoRoundTrip(t *testing.T) {
	m, clk := newTestManager(Config{MinInterval: 10 * time.Millisecond})
	const wh = 1
	m.Record(wh, []byte("a"))
	clk.advance(time.Second)
	m.Record(wh, []byte("b"))

	got, ok := m.Undo(wh, []byte("c"))
	if !ok || string(got) != "b" {
		t.Fatalf("undo: got %q ok=%v", got, ok)
	}
	got, ok = m.Undo(wh, []byte("b"))
	if !ok || string(got) != "a" {
		t.Fatalf("second undo: got %q ok=%v", got, ok)
	}
	if _, ok := m.Undo(wh, []byte("a")); ok {
		t.Fatal("undo past the beginning should fail")
	}
	got, ok = m.Redo(wh, []byte("a"))
	if !ok || string(got) != "b" {
		t.Fatalf("redo: got %q ok=%v", got, ok)
	}
	got, ok = m.Redo(wh, []byte("b"))
	if !ok || string(got) != "c" {
		t.Fatalf("second redo: got %q ok=%v", got, ok)
	}
	if m.CanRedo(wh) {
		t.Fatal("redo stack should be empty")
	}
}

func TestRecordClearsRedo(t *testing.T) {
	m, clk := newTestManager(Config{})
	m.Record(1, []byte("a"))
	m.Undo(1, []byte("b"))
	if !m.CanRedo(1) {
		t.Fatal("expected redo available")
	}
	clk.advance(time.Second)
	m.Record(1, []byte("a"))
	if m.CanRedo(1) {
		t.Fatal("new change must invalidate redo")
	}
}

func TestCoalesceKeepsOldestOfBurst(t *testing.T) {
	m, clk := newTestManager(Config{MinInterval: 50 * time.Millisecond})
	m.Record(2, []byte("1"))
	clk.advance(10 * time.Millisecond)
	m.Record(2, []byte("2"))
	if _, _, depth := m.Stats(); depth != 1 {
		t.Fatalf("expected 1 entry after coalescing, got %d", depth)
	}
	got, _ := m.Undo(2, []byte("3"))
	if string(got) != "1" {
		t.Fatalf("expected burst start, got %q", got)
	}
}

func TestKeysAreIndependent(t *testing.T) {
	m, _ := newTestManager(Config{})
	m.Record(1, []byte("x"))
	if m.CanUndo(2) {
		t.Fatal("warehouse 2 has no history")
	}
	m.Clear(1)
	if m.CanUndo(1) {
		t.Fatal("clear should drop history")
	}
	if b, _, _ := m.Stats(); b != 0 {
		t.Fatalf("bytes after clear: %d", b)
	}
}

func TestCaps(t *testing.T) {
	m, clk := newTestManager(Config{MaxBytes: 20, MaxPerKey: 2})
	for i := 0; i < 10; i++ {
		clk.advance(time.Millisecond)
		m.Record(3, []byte("xxxxx"))
	}
	total, _, depth := m.Stats()
	if depth != 2 || total != 10 {
		t.Fatalf("expected depth 2 / 10 bytes, got depth=%d bytes=%d", depth, total)
	}

	m2, clk2 := newTestManager(Config{MaxBytes: 12})
	for i := 0; i < 5; i++ {
		clk2.advance(time.Millisecond)
		m2.Record(int64(i), []byte("xxxxx"))
	}
	if total, keys, _ := m2.Stats(); total > 12 || keys != 2 {
		t.Fatalf("global cap: bytes=%d keys=%d", total, keys)
	}
}
