/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"context"
	"errors"
	"testing"

	"warehousemap/internal/domain"
)

type fakeSaver struct {
	ids   []int64
	err   error
	calls int
	got   []domain.Shape
}

func (f *fakeSaver) SaveLayout(_ context.Context, _ int64, shapes []domain.Shape) ([]int64, error) {
	f.calls++
	f.got = shapes
	return f.ids, f.err
}

func TestSaveBackfillsIDs(t *testing.T) {
	orig := domain.Shape{Kind: domain.KindRectangle, X: 10.4, Y: 20.6, Width: 30, Height: 40, Label: "A001", Quantity: 3, ZOrder: 1}
	c := NewController([]domain.Shape{orig}, Options{Admin: true, WarehouseID: 5})
	c.markModified()
	saver := &fakeSaver{ids: []int64{42}}
	s := NewSession(c, saver)
	if err := s.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := c.Shape(0)
	if got.ID == nil || *got.ID != 42 {
		t.Fatalf("id not back-filled: %+v", got)
	}
	got.ID = nil
	if got != orig {
		t.Fatalf("other fields changed: %+v vs %+v", got, orig)
	}
	if c.Modified() {
		t.Fatal("modified flag should be cleared")
	}
	if saver.got[0].X != 10 || saver.got[0].Y != 21 {
		t.Fatalf("payload not rounded: %+v", saver.got[0])
	}
	if n := s.Notices(); len(n) != 1 || n[0].Level != NoticeInfo {
		t.Fatalf("notices %+v", n)
	}
}

func TestSaveFailureKeepsState(t *testing.T) {
	c := NewController([]domain.Shape{lot("A001")}, Options{Admin: true})
	c.markModified()
	saver := &fakeSaver{err: errors.New("Endereço duplicado")}
	s := NewSession(c, saver)
	err := s.Save(context.Background())
	if err == nil || err.Error() != "Endereço duplicado" {
		t.Fatalf("expected server message verbatim, got %v", err)
	}
	if c.Shape(0).HasID() || !c.Modified() {
		t.Fatal("failure must leave ids and modified flag alone")
	}
	if n := s.Notices(); len(n) != 1 || n[0].Level != NoticeError {
		t.Fatalf("notices %+v", n)
	}
}

func TestSaveGuards(t *testing.T) {
	c := NewController([]domain.Shape{lot("A001")}, Options{Admin: true})
	saver := &fakeSaver{ids: []int64{1}}
	s := NewSession(c, saver)
	if err := s.Save(context.Background()); !errors.Is(err, ErrNotModified) {
		t.Fatalf("expected ErrNotModified, got %v", err)
	}
	c.markModified()
	job, err := s.BeginSave()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.BeginSave(); !errors.Is(err, ErrSaveInFlight) {
		t.Fatalf("expected ErrSaveInFlight, got %v", err)
	}
	if err := s.Save(context.Background()); !errors.Is(err, ErrSaveInFlight) {
		t.Fatalf("expected ErrSaveInFlight from Save, got %v", err)
	}
	_ = job.Run(context.Background(), saver)
	// an edit while the request is out keeps the layout dirty
	c.markModified()
	if err := s.FinishSave(job); err != nil {
		t.Fatal(err)
	}
	if !c.Modified() {
		t.Fatal("edits made during the save must stay unsaved")
	}
	if *c.Shape(0).ID != 1 {
		t.Fatal("id should still be back-filled")
	}
	if saver.calls != 1 {
		t.Fatalf("saver called %d times", saver.calls)
	}
}

func TestSaveIDCountMismatch(t *testing.T) {
	c := NewController([]domain.Shape{lot("A001"), lot("A002")}, Options{Admin: true})
	c.markModified()
	s := NewSession(c, &fakeSaver{ids: []int64{1}})
	if err := s.Save(context.Background()); err == nil {
		t.Fatal("expected mismatch error")
	}
	if c.Shape(0).HasID() {
		t.Fatal("no ids should be applied on mismatch")
	}
}

func TestUndoDuringSaveKeepsIDs(t *testing.T) {
	c := NewController([]domain.Shape{lot("A001")}, Options{Admin: true, WarehouseID: 3})
	c.PointerDown(10, 10)
	c.PointerMove(60, 10)
	c.PointerUp()
	saver := &fakeSaver{ids: []int64{99}}
	s := NewSession(c, saver)
	job, err := s.BeginSave()
	if err != nil {
		t.Fatal(err)
	}
	if ok, err := c.Undo(); !ok || err != nil {
		t.Fatalf("undo: %v %v", ok, err)
	}
	_ = job.Run(context.Background(), saver)
	if err := s.FinishSave(job); err != nil {
		t.Fatal(err)
	}
	if got := c.Shape(0); got.ID == nil || *got.ID != 99 {
		t.Fatalf("id lost across undo: %+v", got)
	}
	if ok, err := c.Redo(); !ok || err != nil {
		t.Fatalf("redo: %v %v", ok, err)
	}
	if got := c.Shape(0); got.X != 50 || got.ID == nil || *got.ID != 99 {
		t.Fatalf("redo snapshot without id: %+v", got)
	}
}
