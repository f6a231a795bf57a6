/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps per-warehouse undo/redo history as opaque state snapshots.
// Callers record the state before a change; Undo hands back that state in exchange for
// the current one so Redo can restore it later.
package undo

import (
	"sync"
	"time"
)

// Snapshot is one recorded state. Blob is opaque; its length is what the byte cap counts.
type Snapshot struct {
	Key  int64
	Blob []byte
	TS   time.Time

	pinned bool // pushed by Redo; never absorbs a following record
}

// Config controls memory and depth caps and coalescing behavior.
type Config struct {
	// MaxBytes is a soft cap over all keys; oldest entries are pruned first.
	MaxBytes int
	// MaxPerKey limits the undo depth per warehouse (0 means unlimited).
	MaxPerKey int
	// MinInterval coalesces bursts: a record arriving within the interval of the
	// previous one for the same key is dropped so undo jumps back over the whole burst.
	MinInterval time.Duration
}

// Manager is safe for concurrent use.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	undo       map[int64][]Snapshot
	redo       map[int64][]Snapshot
	totalBytes int
	now        func() time.Time
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 16 * 1024 * 1024
	}
	if cfg.MinInterval < 0 {
		cfg.MinInterval = 0
	}
	return &Manager{
		cfg:  cfg,
		undo: make(map[int64][]Snapshot),
		redo: make(map[int64][]Snapshot),
		now:  time.Now,
	}
}

// Record stores the state before a change. Any pending redo for key is discarded.
func (m *Manager) Record(key int64, before []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{Key: key, Blob: before, TS: m.now()}
	m.dropRedoLocked(key)
	stack := m.undo[key]
	if n := len(stack); n > 0 && m.cfg.MinInterval > 0 && !stack[n-1].pinned && s.TS.Sub(stack[n-1].TS) < m.cfg.MinInterval {
		stack[n-1].TS = s.TS
		return
	}
	m.undo[key] = append(stack, s)
	m.totalBytes += len(before)
	m.enforceCapsLocked(key)
}

// Undo returns the most recent recorded state and remembers current for Redo.
func (m *Manager) Undo(key int64, current []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stack := m.undo[key]
	if len(stack) == 0 {
		return nil, false
	}
	s := stack[len(stack)-1]
	m.undo[key] = stack[:len(stack)-1]
	m.totalBytes -= len(s.Blob)
	m.redo[key] = append(m.redo[key], Snapshot{Key: key, Blob: current, TS: m.now()})
	m.totalBytes += len(current)
	return s.Blob, true
}

// Redo reverses the last Undo, remembering current for a following Undo.
func (m *Manager) Redo(key int64, current []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.redo[key]
	if len(r) == 0 {
		return nil, false
	}
	s := r[len(r)-1]
	m.redo[key] = r[:len(r)-1]
	m.totalBytes -= len(s.Blob)
	m.undo[key] = append(m.undo[key], Snapshot{Key: key, Blob: current, TS: m.now(), pinned: true})
	m.totalBytes += len(current)
	m.enforceCapsLocked(key)
	return s.Blob, true
}

func (m *Manager) CanUndo(key int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.undo[key]) > 0
}

func (m *Manager) CanRedo(key int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.redo[key]) > 0
}

// Clear drops history for key, e.g. after a layout is reloaded from the server.
func (m *Manager) Clear(key int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.undo[key] {
		m.totalBytes -= len(s.Blob)
	}
	m.dropRedoLocked(key)
	delete(m.undo, key)
	if m.totalBytes < 0 {
		m.totalBytes = 0
	}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes int, keys int, undoDepth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.undo {
		if len(v) > 0 {
			keys++
		}
		undoDepth += len(v)
	}
	return m.totalBytes, keys, undoDepth
}

func (m *Manager) dropRedoLocked(key int64) {
	for _, s := range m.redo[key] {
		m.totalBytes -= len(s.Blob)
	}
	delete(m.redo, key)
}

func (m *Manager) enforceCapsLocked(key int64) {
	if m.cfg.MaxPerKey > 0 {
		stack := m.undo[key]
		if extra := len(stack) - m.cfg.MaxPerKey; extra > 0 {
			for _, s := range stack[:extra] {
				m.totalBytes -= len(s.Blob)
			}
			m.undo[key] = append([]Snapshot(nil), stack[extra:]...)
		}
	}
	// global cap: the bottom of each stack is its oldest entry
	for m.totalBytes > m.cfg.MaxBytes {
		var (
			oldestKey int64
			found     bool
			oldestTS  time.Time
		)
		for k, stack := range m.undo {
			if len(stack) == 0 {
				continue
			}
			if !found || stack[0].TS.Before(oldestTS) {
				oldestKey, oldestTS, found = k, stack[0].TS, true
			}
		}
		if !found {
			break
		}
		stack := m.undo[oldestKey]
		m.totalBytes -= len(stack[0].Blob)
		if len(stack) == 1 {
			delete(m.undo, oldestKey)
		} else {
			m.undo[oldestKey] = stack[1:]
		}
	}
}
