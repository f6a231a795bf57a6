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

package ui

import (
	"image"
	"math"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"warehousemap/internal/editor"
	"warehousemap/internal/render"
)

// MapCanvas draws the controller's scene and feeds pointer and key events back into it.
// Positions are widget coordinates, which the controller divides by its zoom.
type MapCanvas struct {
	widget.BaseWidget

	ctrl *editor.Controller
	bg   image.Image

	pressed bool
	focused bool

	// OnOutcome receives the result of every pointer event that produced one.
	OnOutcome func(editor.Outcome)
	// OnInfo shows the viewer info card after a double-click on a lot.
	OnInfo func(editor.Info)
	// OnKey runs the frontend side of a shortcut (save, guarded delete).
	OnKey func(editor.KeyAction)
}

func NewMapCanvas(ctrl *editor.Controller, bg image.Image) *MapCanvas {
	m := &MapCanvas{ctrl: ctrl, bg: bg}
	m.ExtendBaseWidget(m)
	return m
}

// SetBackground replaces the floor plan image.
func (m *MapCanvas) SetBackground(bg image.Image) {
	m.bg = bg
	m.Refresh()
}

// CreateRenderer wraps a raster that repaints the whole scene on every refresh.
func (m *MapCanvas) CreateRenderer() fyne.WidgetRenderer {
	r := canvas.NewRaster(m.draw)
	r.ScaleMode = canvas.ImageScalePixels
	return &mapCanvasRenderer{mc: m, raster: r, objects: []fyne.CanvasObject{r}}
}

// PreferredSize is the scene extent at the current zoom.
func (m *MapCanvas) PreferredSize() fyne.Size {
	w, h := m.ctrl.CanvasSize()
	w, h = render.CanvasExtent(m.ctrl.Shapes(), w, h)
	z := m.ctrl.Zoom()
	return fyne.NewSize(float32(math.Ceil(w*z)), float32(math.Ceil(h*z)))
}

func (m *MapCanvas) draw(w, h int) image.Image {
	sc := render.Build(render.StateOf(m.ctrl, m.bg))
	scale := m.ctrl.Zoom()
	if sz := m.Size(); sz.Width > 0 {
		scale *= float64(w) / float64(sz.Width)
	}
	return render.RasterScaled(sc, w, h, scale)
}

func (m *MapCanvas) apply(o editor.Outcome) {
	if o.Changed {
		m.Refresh()
	}
	if m.OnOutcome != nil && (o.Changed || len(o.Notices) > 0 || o.Delete != nil) {
		m.OnOutcome(o)
	}
}

func (m *MapCanvas) requestFocus() {
	if c := fyne.CurrentApp().Driver().CanvasForObject(m); c != nil {
		c.Focus(m)
	}
}

func (m *MapCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	m.requestFocus()
	m.pressed = true
	m.apply(m.ctrl.PointerDown(float64(e.Position.X), float64(e.Position.Y)))
}

func (m *MapCanvas) MouseUp(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary || !m.pressed {
		return
	}
	m.pressed = false
	m.apply(m.ctrl.PointerUp())
}

func (m *MapCanvas) Dragged(e *fyne.DragEvent) {
	m.apply(m.ctrl.PointerMove(float64(e.Position.X), float64(e.Position.Y)))
}

// DragEnd can arrive without a MouseUp when the pointer leaves the window.
func (m *MapCanvas) DragEnd() {
	if !m.pressed {
		return
	}
	m.pressed = false
	m.apply(m.ctrl.PointerUp())
}

func (m *MapCanvas) MouseIn(e *desktop.MouseEvent) { m.MouseMoved(e) }

func (m *MapCanvas) MouseMoved(e *desktop.MouseEvent) {
	if m.pressed {
		return
	}
	m.apply(m.ctrl.PointerMove(float64(e.Position.X), float64(e.Position.Y)))
}

func (m *MapCanvas) MouseOut() {
	m.pressed = false
	m.apply(m.ctrl.PointerLeave())
}

// Tapped is handled by MouseDown/MouseUp; it exists so the widget takes taps.
func (m *MapCanvas) Tapped(*fyne.PointEvent) {}

func (m *MapCanvas) DoubleTapped(e *fyne.PointEvent) {
	info, ok := m.ctrl.DoubleClick(float64(e.Position.X), float64(e.Position.Y))
	if ok && m.OnInfo != nil {
		m.OnInfo(info)
	}
}

// Scrolled zooms in steps of editor.ZoomStep.
func (m *MapCanvas) Scrolled(e *fyne.ScrollEvent) {
	switch {
	case e.Scrolled.DY > 0:
		m.ctrl.ZoomBy(editor.ZoomStep)
	case e.Scrolled.DY < 0:
		m.ctrl.ZoomBy(-editor.ZoomStep)
	default:
		return
	}
	m.Refresh()
	if m.OnOutcome != nil {
		m.OnOutcome(editor.Outcome{Changed: true})
	}
}

func (m *MapCanvas) FocusGained()   { m.focused = true }
func (m *MapCanvas) FocusLost()     { m.focused = false }
func (m *MapCanvas) TypedRune(rune) {}

func (m *MapCanvas) TypedKey(e *fyne.KeyEvent) {
	m.key(editor.Key{Name: string(e.Name)})
}

func (m *MapCanvas) key(k editor.Key) {
	act := m.ctrl.HandleKey(k)
	switch act {
	case editor.KeyNone:
		return
	case editor.KeyTool, editor.KeyUndo, editor.KeyRedo:
		m.Refresh()
	}
	if m.OnKey != nil {
		m.OnKey(act)
	}
}

type mapCanvasRenderer struct {
	mc      *MapCanvas
	raster  *canvas.Raster
	objects []fyne.CanvasObject
}

func (r *mapCanvasRenderer) Destroy()                     {}
func (r *mapCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *mapCanvasRenderer) MinSize() fyne.Size           { return r.mc.PreferredSize() }
func (r *mapCanvasRenderer) Refresh()                     { r.raster.Refresh() }

func (r *mapCanvasRenderer) Layout(size fyne.Size) {
	r.raster.Resize(size)
	r.raster.Move(fyne.NewPos(0, 0))
}
