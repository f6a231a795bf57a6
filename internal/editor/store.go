/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package editor is the direct-manipulation core of the map editor: the shape store,
// hit-testing, the pointer state machine, property sync, z-order, the guarded delete and
// undo/redo. It owns no UI toolkit; frontends feed it pointer and key events and draw
// the state with the render package.
package editor

import (
	"encoding/json"
	"fmt"
	"sort"

	"warehousemap/internal/domain"
)

// Store is the ordered shape collection. Insertion order is the slice order; stacking is
// driven by ZOrder. Every shape also carries a session-local uid so asynchronous
// operations can find it again after the slice has shifted.
type Store struct {
	shapes  []domain.Shape
	uids    []uint64
	nextUID uint64
	// saved maps uids to server ids so undo can restore snapshots taken before a save
	saved map[uint64]int64
}

func NewStore(shapes []domain.Shape) *Store {
	s := &Store{}
	s.Replace(shapes)
	return s
}

func (s *Store) Len() int { return len(s.shapes) }

// At returns a copy of shape i.
func (s *Store) At(i int) domain.Shape { return s.shapes[i].Clone() }

func (s *Store) valid(i int) bool { return i >= 0 && i < len(s.shapes) }

// Add appends sh and returns its index. A zero ZOrder puts sh on top of the stack.
func (s *Store) Add(sh domain.Shape) int {
	if sh.ZOrder == 0 {
		sh.ZOrder = s.topZ() + 1
	}
	s.nextUID++
	s.shapes = append(s.shapes, sh)
	s.uids = append(s.uids, s.nextUID)
	return len(s.shapes) - 1
}

// Remove deletes shape i, keeping the order of the rest.
func (s *Store) Remove(i int) error {
	if !s.valid(i) {
		return fmt.Errorf("remove shape %d: out of range", i)
	}
	s.shapes = append(s.shapes[:i], s.shapes[i+1:]...)
	s.uids = append(s.uids[:i], s.uids[i+1:]...)
	return nil
}

// Update applies fn to shape i in place.
func (s *Store) Update(i int, fn func(*domain.Shape)) error {
	if !s.valid(i) {
		return fmt.Errorf("update shape %d: out of range", i)
	}
	fn(&s.shapes[i])
	return nil
}

// Shapes returns a deep copy in insertion order.
func (s *Store) Shapes() []domain.Shape { return domain.CloneShapes(s.shapes) }

// Replace swaps the whole content, e.g. after loading or undo. UIDs are reissued.
func (s *Store) Replace(shapes []domain.Shape) {
	s.shapes = domain.CloneShapes(shapes)
	if s.shapes == nil {
		s.shapes = []domain.Shape{}
	}
	s.uids = make([]uint64, len(s.shapes))
	for i := range s.uids {
		s.nextUID++
		s.uids[i] = s.nextUID
	}
}

// UID returns the session-local identity of shape i.
func (s *Store) UID(i int) uint64 { return s.uids[i] }

// IndexOf finds the current index of a uid.
func (s *Store) IndexOf(uid uint64) (int, bool) {
	for i, u := range s.uids {
		if u == uid {
			return i, true
		}
	}
	return -1, false
}

// DrawOrder returns indexes by ascending ZOrder, stable on ties.
func (s *Store) DrawOrder() []int { return drawOrder(s.shapes) }

// HitOrder returns indexes topmost first: descending ZOrder, later insertion first on ties.
func (s *Store) HitOrder() []int { return hitOrder(s.shapes) }

// DrawOrder returns the paint order of shapes, as Store.DrawOrder does.
func DrawOrder(shapes []domain.Shape) []int { return drawOrder(shapes) }

func drawOrder(shapes []domain.Shape) []int {
	idx := make([]int, len(shapes))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return shapes[idx[a]].ZOrder < shapes[idx[b]].ZOrder })
	return idx
}

func hitOrder(shapes []domain.Shape) []int {
	idx := drawOrder(shapes)
	for l, r := 0, len(idx)-1; l < r; l, r = l+1, r-1 {
		idx[l], idx[r] = idx[r], idx[l]
	}
	return idx
}

// NormalizeZ rewrites ZOrder as the dense ranking 1..n of the current draw order.
func (s *Store) NormalizeZ() {
	for rank, i := range s.DrawOrder() {
		s.shapes[i].ZOrder = rank + 1
	}
}

func (s *Store) topZ() int {
	top := 0
	for _, sh := range s.shapes {
		top = max(top, sh.ZOrder)
	}
	return top
}

// RectangleCount is the number of lots, used for automatic labels.
func (s *Store) RectangleCount() int {
	n := 0
	for _, sh := range s.shapes {
		if sh.Kind == domain.KindRectangle {
			n++
		}
	}
	return n
}

// storeSnapshot is an undo entry. UIDs travel with the shapes so a save in flight still
// finds them after an undo or redo.
type storeSnapshot struct {
	Shapes []domain.Shape `json:"shapes"`
	UIDs   []uint64       `json:"uids"`
}

func (s *Store) snapshot() ([]byte, error) {
	return json.Marshal(storeSnapshot{Shapes: s.shapes, UIDs: s.uids})
}

func (s *Store) restore(b []byte) error {
	var snap storeSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}
	if len(snap.UIDs) != len(snap.Shapes) {
		s.Replace(snap.Shapes)
		return nil
	}
	s.shapes = snap.Shapes
	if s.shapes == nil {
		s.shapes = []domain.Shape{}
	}
	s.uids = snap.UIDs
	for i, u := range s.uids {
		s.nextUID = max(s.nextUID, u)
		if id, ok := s.saved[u]; ok && s.shapes[i].ID == nil {
			s.shapes[i].ID = &id
		}
	}
	return nil
}

// SetID records the server id of shape i.
func (s *Store) SetID(i int, id int64) error {
	if !s.valid(i) {
		return fmt.Errorf("set id of shape %d: out of range", i)
	}
	if s.saved == nil {
		s.saved = make(map[uint64]int64)
	}
	s.saved[s.uids[i]] = id
	s.shapes[i].ID = &id
	return nil
}
