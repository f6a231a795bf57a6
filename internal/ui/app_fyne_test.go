//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// These tests drive MapCanvas through the fyne test driver. They need the fyne build
// tag and cgo:
//
//	go test -tags fyne ./internal/ui
package ui

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"warehousemap/internal/editor"
)

func newTestCanvas(t *testing.T) (*MapCanvas, *editor.Controller) {
	t.Helper()
	a := test.NewApp()
	t.Cleanup(a.Quit)
	ctrl := editor.NewController(nil, editor.Options{Admin: true, WarehouseID: 1, CanvasWidth: 400, CanvasHeight: 300})
	return NewMapCanvas(ctrl, nil), ctrl
}

func press(x, y float32) *desktop.MouseEvent {
	return &desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(x, y)}, Button: desktop.MouseButtonPrimary}
}

func TestMapCanvas_PreferredSizeFollowsZoom(t *testing.T) {
	m, ctrl := newTestCanvas(t)
	if sz := m.PreferredSize(); sz.Width != 400 || sz.Height != 300 {
		t.Fatalf("size at zoom 1: %v", sz)
	}
	ctrl.SetZoom(2)
	if sz := m.PreferredSize(); sz.Width != 800 || sz.Height != 600 {
		t.Fatalf("size at zoom 2: %v", sz)
	}
	r := m.CreateRenderer()
	if r.MinSize() != m.PreferredSize() {
		t.Fatalf("renderer min size %v", r.MinSize())
	}
}

func TestMapCanvas_DrawRectangle(t *testing.T) {
	m, ctrl := newTestCanvas(t)
	var outcomes int
	m.OnOutcome = func(editor.Outcome) { outcomes++ }
	if err := ctrl.SetTool(editor.ToolRectangle); err != nil {
		t.Fatal(err)
	}
	m.MouseDown(press(10, 10))
	m.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(90, 70)}})
	m.MouseUp(press(90, 70))
	m.DragEnd()

	if ctrl.Len() != 1 || !ctrl.Modified() {
		t.Fatalf("len=%d modified=%v", ctrl.Len(), ctrl.Modified())
	}
	s := ctrl.Shape(0)
	if s.Width != 80 || s.Height != 60 {
		t.Fatalf("shape %+v", s)
	}
	if outcomes == 0 {
		t.Fatal("no outcome reported")
	}
}

func TestMapCanvas_KeysAndScroll(t *testing.T) {
	m, ctrl := newTestCanvas(t)
	var got []editor.KeyAction
	m.OnKey = func(a editor.KeyAction) { got = append(got, a) }
	m.TypedKey(&fyne.KeyEvent{Name: fyne.KeyQ})
	if ctrl.Tool() != editor.ToolRectangle || len(got) != 1 || got[0] != editor.KeyTool {
		t.Fatalf("tool %s actions %v", ctrl.Tool(), got)
	}
	m.key(editor.Key{Name: "s", Ctrl: true})
	if got[len(got)-1] != editor.KeySave {
		t.Fatalf("ctrl+s gave %v", got)
	}
	m.Scrolled(&fyne.ScrollEvent{Scrolled: fyne.NewDelta(0, 1)})
	if z := ctrl.Zoom(); z < 1.09 || z > 1.11 {
		t.Fatalf("zoom after scroll %v", z)
	}
}

func TestMapCanvas_DrawMatchesRequestedSize(t *testing.T) {
	m, _ := newTestCanvas(t)
	m.Resize(fyne.NewSize(400, 300))
	img := m.draw(800, 600)
	if b := img.Bounds(); b.Dx() != 800 || b.Dy() != 600 {
		t.Fatalf("raster bounds %v", b)
	}
}
