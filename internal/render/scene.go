/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package render turns a layout and its view state into a display list (Scene) and
// draws that list to raster, SVG or PDF. Build is pure; backends only paint ops.
package render

import (
	"fmt"
	"image"
	"math"

	"warehousemap/internal/domain"
	"warehousemap/internal/editor"
	"warehousemap/internal/vector"
)

const (
	DefaultCanvasWidth  = 1200.0
	DefaultCanvasHeight = 800.0

	GridSize        = 20.0
	BackgroundAlpha = 0.7
	SelectionOffset = 4.0
	HandleSize      = 8.0
	QuantityBarMax  = 100
)

var (
	BackgroundColor = vector.MustHex("#f8f9fa")
	GridColor       = vector.RGBA(0, 0, 0, 0.1)
	SelectionColor  = vector.MustHex("#4f46e5")
	GuideColor      = vector.MustHex("#ec4899")
	TooltipFill     = vector.RGBA(0, 0, 0, 0.8)
	barTrack        = vector.RGBA(255, 255, 255, 0.3)
)

type OpKind uint8

const (
	OpFill OpKind = iota
	OpStroke
	OpText
	OpImage
)

func (k OpKind) String() string {
	switch k {
	case OpFill:
		return "fill"
	case OpStroke:
		return "stroke"
	case OpText:
		return "text"
	case OpImage:
		return "image"
	}
	return fmt.Sprintf("op(%d)", uint8(k))
}

// Baseline is the vertical anchor of a text op.
type Baseline uint8

const (
	BaselineTop Baseline = iota
	BaselineMiddle
)

// TextStyle is the font request of a text op.
type TextStyle struct {
	Family    string
	Size      float64
	Bold      bool
	Italic    bool
	Underline bool
	Align     domain.Alignment
	Baseline  Baseline
	Color     vector.Color
}

// Op is one paint instruction in canvas units. Paths already carry shape rotation;
// text carries it in Rotate (degrees about At).
type Op struct {
	Kind OpKind

	Path   vector.Path
	Fill   vector.Color
	Stroke vector.Stroke

	Text   string
	At     vector.Pt
	Style  TextStyle
	Rotate float64

	Image image.Image
	Dst   vector.Rect
	Alpha float64

	// Shape is the store index the op belongs to, or -1 for decorations.
	Shape int
}

// Scene is the display list for one frame.
type Scene struct {
	Title         string
	Width, Height float64
	Zoom          float64
	Background    vector.Color
	Ops           []Op
}

// View is everything besides the shapes that affects a frame.
type View struct {
	Width, Height float64
	Zoom          float64
	Grid          bool
	Admin         bool
	Selected      int
	Hover         *editor.Tooltip
	Guides        []vector.GuideLine
	Background    image.Image
}

// State is the input of Build.
type State struct {
	Shapes []domain.Shape
	View
}

// StateOf captures the frame state of a controller. bg may be nil.
func StateOf(c *editor.Controller, bg image.Image) State {
	w, h := c.CanvasSize()
	sel, ok := c.Selected()
	if !ok {
		sel = -1
	}
	st := State{
		Shapes: c.Shapes(),
		View: View{
			Width:      w,
			Height:     h,
			Zoom:       c.Zoom(),
			Grid:       c.ShowGrid(),
			Admin:      c.Admin(),
			Selected:   sel,
			Guides:     c.Guides(),
			Background: bg,
		},
	}
	if t, ok := c.Hover(); ok {
		st.Hover = &t
	}
	return st
}

// CanvasExtent returns the configured canvas size or, when unset, one large enough for
// every shape.
func CanvasExtent(shapes []domain.Shape, w, h float64) (float64, float64) {
	if w > 0 && h > 0 {
		return w, h
	}
	mw, mh := DefaultCanvasWidth, DefaultCanvasHeight
	for _, s := range shapes {
		b := s.Bounds()
		mw = math.Max(mw, math.Ceil(b.X+b.W+GridSize))
		mh = math.Max(mh, math.Ceil(b.Y+b.H+GridSize))
	}
	if w > 0 {
		mw = w
	}
	if h > 0 {
		mh = h
	}
	return mw, mh
}

// Build produces the display list: background, grid, shapes by ascending zOrder,
// selection decorations (admin), snap guides, hover tooltip (viewer).
func Build(st State) Scene {
	w, h := CanvasExtent(st.Shapes, st.Width, st.Height)
	zoom := st.Zoom
	if zoom <= 0 {
		zoom = 1
	}
	sc := Scene{Width: w, Height: h, Zoom: zoom, Background: BackgroundColor}
	canvas := vector.R(0, 0, w, h)
	sc.add(Op{Kind: OpFill, Path: vector.RectPath(canvas), Fill: BackgroundColor, Shape: -1})
	if st.Background != nil {
		sc.add(Op{Kind: OpImage, Image: st.Background, Dst: canvas, Alpha: BackgroundAlpha, Shape: -1})
	}
	if st.Grid {
		sc.add(gridOp(w, h))
	}
	for _, i := range editor.DrawOrder(st.Shapes) {
		s := st.Shapes[i]
		switch s.Kind {
		case domain.KindRectangle:
			sc.rectangle(i, s)
		case domain.KindLine:
			sc.line(i, s)
		case domain.KindText:
			sc.text(i, s)
		}
	}
	if st.Admin && st.Selected >= 0 && st.Selected < len(st.Shapes) {
		sc.selection(st.Shapes[st.Selected])
	}
	for _, g := range st.Guides {
		var p vector.Path
		p.MoveTo(g.From.X, g.From.Y)
		p.LineTo(g.To.X, g.To.Y)
		sc.add(Op{Kind: OpStroke, Path: p, Stroke: vector.Stroke{Color: GuideColor, Width: 1, Enabled: true}, Shape: -1})
	}
	if !st.Admin && st.Hover != nil {
		sc.tooltip(*st.Hover, w)
	}
	return sc
}

func (sc *Scene) add(op Op) { sc.Ops = append(sc.Ops, op) }

// ShapeOps returns the ops drawn for store index i.
func (sc Scene) ShapeOps(i int) []Op {
	var out []Op
	for _, op := range sc.Ops {
		if op.Shape == i {
			out = append(out, op)
		}
	}
	return out
}

func gridOp(w, h float64) Op {
	var p vector.Path
	for x := 0.0; x <= w; x += GridSize {
		p.MoveTo(x, 0)
		p.LineTo(x, h)
	}
	for y := 0.0; y <= h; y += GridSize {
		p.MoveTo(0, y)
		p.LineTo(w, y)
	}
	return Op{Kind: OpStroke, Path: p, Stroke: vector.Stroke{Color: GridColor, Width: 0.5, Enabled: true}, Shape: -1}
}

func parseOr(hex string, fallback vector.Color) vector.Color {
	c, err := vector.ParseHex(hex)
	if err != nil {
		return fallback
	}
	return c
}

// QuantityBarColor picks the fill level colour for q units.
func QuantityBarColor(q int) vector.Color {
	switch {
	case q < 50:
		return vector.MustHex("#22c55e")
	case q < 80:
		return vector.MustHex("#f59e0b")
	}
	return vector.MustHex("#ef4444")
}

// LabelFontSize scales the lot label with the zone width.
func LabelFontSize(w float64) float64 { return math.Max(10, math.Min(14, w/10)) }

// MinLabelFontSize is the smallest size FitLabelSize shrinks to.
const MinLabelFontSize = 4.0

// FitLabelSize is LabelFontSize shrunk until label fits the zone width minus a 5 unit
// margin per side, never below MinLabelFontSize.
func FitLabelSize(label string, w float64) float64 {
	size := LabelFontSize(w)
	avail := w - 10
	if label == "" || avail <= 0 {
		return MinLabelFontSize
	}
	spec := FontSpec{Family: domain.DefaultFontFamily, Size: size, Bold: true}
	tw := MeasureText(spec, label)
	if tw <= avail {
		return size
	}
	size = math.Max(MinLabelFontSize, math.Floor(size*avail/tw*10)/10)
	for size > MinLabelFontSize {
		spec.Size = size
		if MeasureText(spec, label) <= avail {
			break
		}
		size = math.Max(MinLabelFontSize, size-0.5)
	}
	return size
}

func (sc *Scene) rectangle(i int, s domain.Shape) {
	b := s.Bounds()
	box := vector.R(b.X, b.Y, b.W, b.H)
	c := box.Center()
	rot := vector.RotateAbout(c, s.RotationDegrees)
	outline := vector.RectPath(box).Transform(rot)

	fill := parseOr(s.EffectiveFill(), vector.MustHex(domain.DefaultFillColor)).WithAlpha(s.EffectiveOpacity())
	sc.add(Op{Kind: OpFill, Path: outline, Fill: fill, Shape: i})
	sc.add(Op{Kind: OpStroke, Path: outline, Stroke: vector.Stroke{
		Color:   parseOr(s.EffectiveStroke(), vector.Black),
		Width:   s.EffectiveStrokeWidth(),
		Enabled: true,
	}, Shape: i})

	if s.Label != "" {
		at := c
		if s.Quantity > 0 {
			at.Y -= 8
		}
		sc.add(Op{Kind: OpText, Text: s.Label, At: rot.Apply(at), Rotate: s.RotationDegrees, Shape: i,
			Style: TextStyle{Family: domain.DefaultFontFamily, Size: FitLabelSize(s.Label, b.W), Bold: true,
				Align: domain.AlignCenter, Baseline: BaselineMiddle, Color: vector.White}})
	}
	if s.Quantity <= 0 {
		return
	}
	at := c
	if s.Label != "" {
		at.Y += 8
	}
	sc.add(Op{Kind: OpText, Text: fmt.Sprintf("%d unidades", s.Quantity), At: rot.Apply(at), Rotate: s.RotationDegrees, Shape: i,
		Style: TextStyle{Family: domain.DefaultFontFamily, Size: math.Max(9, LabelFontSize(b.W)-2),
			Align: domain.AlignCenter, Baseline: BaselineMiddle, Color: vector.White}})

	bw := math.Max(20, b.W*0.8)
	track := vector.R(c.X-bw/2, b.Y+b.H-6, bw, 4)
	frac := math.Min(1, float64(s.Quantity)/QuantityBarMax)
	sc.add(Op{Kind: OpFill, Path: vector.RectPath(track).Transform(rot), Fill: barTrack, Shape: i})
	level := track
	level.W = bw * frac
	sc.add(Op{Kind: OpFill, Path: vector.RectPath(level).Transform(rot), Fill: QuantityBarColor(s.Quantity), Shape: i})
}

// DashFor maps a line style to its dash pattern.
func DashFor(ls domain.LineStyle) []float64 {
	switch ls {
	case domain.LineDashed:
		return vector.DashDashed
	case domain.LineDotted:
		return vector.DashDotted
	}
	return vector.DashSolid
}

func (sc *Scene) line(i int, s domain.Shape) {
	var p vector.Path
	ex, ey := s.End()
	p.MoveTo(s.X, s.Y)
	p.LineTo(ex, ey)
	sc.add(Op{Kind: OpStroke, Path: p, Shape: i, Stroke: vector.Stroke{
		Color:   parseOr(s.EffectiveStroke(), vector.Black),
		Width:   s.EffectiveStrokeWidth(),
		Dash:    DashFor(s.LineStyle),
		Enabled: true,
	}})
}

func (sc *Scene) text(i int, s domain.Shape) {
	b := s.Bounds()
	st := TextStyle{
		Family:    s.EffectiveFontFamily(),
		Size:      s.EffectiveFontSize(),
		Bold:      s.Bold,
		Italic:    s.Italic,
		Underline: s.Underline,
		Align:     s.Alignment,
		Color:     parseOr(s.EffectiveFill(), vector.Black),
	}
	if st.Align == "" {
		st.Align = domain.AlignLeft
	}
	op := Op{Kind: OpText, Text: s.EffectiveContent(), Style: st, Shape: i}
	if s.Direction == domain.Vertical {
		op.At = vector.Pt{X: b.X + b.W/2, Y: b.Y + b.H/2}
		op.Rotate = -90
		op.Style.Align = domain.AlignCenter
		op.Style.Baseline = BaselineMiddle
		sc.add(op)
		return
	}
	op.At = vector.Pt{X: b.X, Y: b.Y}
	switch st.Align {
	case domain.AlignCenter:
		op.At.X += b.W / 2
	case domain.AlignRight:
		op.At.X += b.W
	}
	if s.RotationDegrees != 0 {
		c := vector.Pt{X: b.X + b.W/2, Y: b.Y + b.H/2}
		op.At = vector.RotateAbout(c, s.RotationDegrees).Apply(op.At)
		op.Rotate = s.RotationDegrees
	}
	sc.add(op)
}

func (sc *Scene) selection(s domain.Shape) {
	b := s.Bounds()
	box := vector.R(b.X, b.Y, b.W, b.H).Inflate(SelectionOffset)
	sc.add(Op{Kind: OpStroke, Path: vector.RectPath(box), Shape: -1, Stroke: vector.Stroke{
		Color: SelectionColor, Width: 2, Dash: vector.DashSelect, Enabled: true,
	}})
	hs := editor.Handles(s)
	for _, h := range []editor.Handle{editor.HandleNW, editor.HandleNE, editor.HandleSW, editor.HandleSE} {
		p, ok := hs[h]
		if !ok {
			continue
		}
		sq := vector.RectPath(vector.R(p.X-HandleSize/2, p.Y-HandleSize/2, HandleSize, HandleSize))
		sc.add(Op{Kind: OpFill, Path: sq, Fill: SelectionColor, Shape: -1})
		sc.add(Op{Kind: OpStroke, Path: sq, Stroke: vector.Stroke{Color: vector.White, Width: 1, Enabled: true}, Shape: -1})
	}
}

func (sc *Scene) tooltip(t editor.Tooltip, canvasW float64) {
	lines := t.Lines()
	st := TextStyle{Family: domain.DefaultFontFamily, Size: 12, Color: vector.White, Align: domain.AlignLeft}
	tw := 0.0
	for i, l := range lines {
		ls := st
		ls.Bold = i == 0
		tw = math.Max(tw, MeasureText(FontOf(ls), l))
	}
	const pad, lh = 6.0, 16.0
	box := vector.R(t.At.X+10, t.At.Y+10, tw+2*pad, float64(len(lines))*lh+2*pad-4)
	if box.X+box.W > canvasW {
		box.X = t.At.X - 10 - box.W
	}
	sc.add(Op{Kind: OpFill, Path: vector.RectPath(box), Fill: TooltipFill, Shape: -1})
	for i, l := range lines {
		ls := st
		ls.Bold = i == 0
		sc.add(Op{Kind: OpText, Text: l, At: vector.Pt{X: box.X + pad, Y: box.Y + pad + float64(i)*lh}, Style: ls, Shape: -1})
	}
}
