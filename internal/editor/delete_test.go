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

func lot(label string) domain.Shape {
	return domain.Shape{Kind: domain.KindRectangle, X: 0, Y: 0, Width: 100, Height: 100, Label: label, ZOrder: 1}
}

func TestDeleteBlockedByStock(t *testing.T) {
	var asked []string
	checker := StockCheckerFunc(func(_ context.Context, label string) (bool, error) {
		asked = append(asked, label)
		return true, nil
	})
	c := NewController([]domain.Shape{lot("A001")}, Options{Admin: true, Checker: checker})
	err := c.Delete(context.Background(), 0)
	if !errors.Is(err, ErrHasStock) {
		t.Fatalf("expected ErrHasStock, got %v", err)
	}
	if c.Len() != 1 || c.Modified() {
		t.Fatal("shape must remain and layout stay unmodified")
	}
	if len(asked) != 1 || asked[0] != "A001" {
		t.Fatalf("checker calls %v", asked)
	}
}

func TestDeleteTransportErrorKeepsShape(t *testing.T) {
	boom := errors.New("connection refused")
	checker := StockCheckerFunc(func(context.Context, string) (bool, error) { return false, boom })
	c := NewController([]domain.Shape{lot("A001")}, Options{Admin: true, Checker: checker})
	if err := c.Delete(context.Background(), 0); !errors.Is(err, boom) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if c.Len() != 1 {
		t.Fatal("shape removed despite failed check")
	}
}

func TestDeleteConfirmAndUnlabeled(t *testing.T) {
	checked := false
	checker := StockCheckerFunc(func(context.Context, string) (bool, error) { checked = true; return false, nil })
	answer := false
	c := NewController([]domain.Shape{rect(0, 0, 10, 10, 1), lot("B203")}, Options{
		Admin:   true,
		Checker: checker,
		Confirm: func(domain.Shape) bool { return answer },
	})
	if err := c.Delete(context.Background(), 0); !errors.Is(err, ErrDeleteCancelled) {
		t.Fatalf("expected cancel, got %v", err)
	}
	if checked {
		t.Fatal("unlabeled shape should skip the stock check")
	}
	answer = true
	c.Select(1)
	if err := c.DeleteSelected(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !checked || c.Len() != 1 || c.Shape(0).Label != "" {
		t.Fatalf("expected B203 removed after check, got %+v", c.Shapes())
	}
	if _, ok := c.Selected(); ok {
		t.Fatal("selection should be cleared")
	}
}

func TestDeleteToolRequiresCommit(t *testing.T) {
	c := NewController([]domain.Shape{lot("A001"), rect(200, 200, 10, 10, 2)}, Options{Admin: true})
	_ = c.SetTool(ToolDelete)
	out := c.PointerDown(50, 50)
	if out.Delete == nil || c.Len() != 2 {
		t.Fatalf("delete tool must not mutate before the check: %+v", out)
	}
	req := *out.Delete
	if !req.NeedsStockCheck() {
		t.Fatal("labeled lot needs a stock check")
	}
	if err := req.Check(context.Background(), nil); !errors.Is(err, ErrNoStockChecker) {
		t.Fatalf("expected ErrNoStockChecker, got %v", err)
	}
	// the other shape is removed first; the request still finds its target
	if err := c.CommitDelete(DeleteRequest{UID: c.store.UID(1)}); err != nil {
		t.Fatal(err)
	}
	if err := c.CommitDelete(req); err != nil {
		t.Fatal(err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected empty store, got %d", c.Len())
	}
	if err := c.CommitDelete(req); !errors.Is(err, ErrShapeGone) {
		t.Fatalf("expected ErrShapeGone, got %v", err)
	}
}

func TestDeleteViewerRejected(t *testing.T) {
	c := NewController([]domain.Shape{lot("A001")}, Options{})
	if err := c.Delete(context.Background(), 0); !errors.Is(err, ErrReadOnly) {
		t.Fatalf("expected ErrReadOnly, got %v", err)
	}
}

func TestShapeDrawnAfterDeletesIsOnTop(t *testing.T) {
	c := newAdmin(rect(0, 0, 50, 50, 1), rect(300, 0, 50, 50, 2), rect(100, 100, 100, 100, 3), rect(400, 400, 50, 50, 4))
	for i := 0; i < 2; i++ {
		if err := c.CommitDelete(DeleteRequest{UID: c.store.UID(0)}); err != nil {
			t.Fatal(err)
		}
	}
	if z0, z1 := c.Shape(0).ZOrder, c.Shape(1).ZOrder; z0 != 1 || z1 != 2 {
		t.Fatalf("ranks not dense after delete: %d,%d", z0, z1)
	}
	_ = c.SetTool(ToolRectangle)
	c.PointerDown(250, 250)
	c.PointerMove(450, 450)
	c.PointerUp()
	if c.Len() != 3 {
		t.Fatalf("expected 3 shapes, got %d", c.Len())
	}
	if z := c.Shape(2).ZOrder; z != 3 {
		t.Fatalf("new shape zOrder %d, want 3", z)
	}
	if i, ok := FindShapeAt(vectorPt([2]float64{420, 420}), c.Shapes(), HitOptions{}); !ok || i != 2 {
		t.Fatalf("hit %d %v, want the new shape", i, ok)
	}

	s := NewStore([]domain.Shape{rect(0, 0, 10, 10, 2), rect(0, 0, 10, 10, 7)})
	if i := s.Add(rect(0, 0, 10, 10, 0)); s.At(i).ZOrder != 8 {
		t.Fatalf("add below top rank: %d", s.At(i).ZOrder)
	}
}
