/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"warehousemap/internal/domain"
	applog "warehousemap/internal/log"
	"warehousemap/internal/undo"
	"warehousemap/internal/vector"
)

var (
	// ErrReadOnly is returned for edits attempted in viewer mode.
	ErrReadOnly = errors.New("editor: layout is read-only")
	// ErrNoSelection is returned by operations that act on the selected shape.
	ErrNoSelection = errors.New("editor: no shape selected")
)

type Tool string

const (
	ToolSelect    Tool = "select"
	ToolMove      Tool = "move"
	ToolRectangle Tool = "rectangle"
	ToolLine      Tool = "line"
	ToolText      Tool = "text"
	ToolPaint     Tool = "paint"
	ToolDelete    Tool = "delete"
	ToolZoom      Tool = "zoom"
)

// Tools in toolbar order.
var Tools = []Tool{ToolMove, ToolSelect, ToolRectangle, ToolLine, ToolText, ToolPaint, ToolDelete, ToolZoom}

func ParseTool(s string) (Tool, error) {
	for _, t := range Tools {
		if string(t) == s {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown tool %q", s)
}

func (t Tool) creates() bool { return t == ToolRectangle || t == ToolLine || t == ToolText }

type State int

const (
	StateIdle State = iota
	StateCreating
	StateDragging
	StateResizing
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateDragging:
		return "dragging"
	case StateResizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Zoom limits.
const (
	ZoomMin      = 0.2
	ZoomMax      = 3.0
	ZoomStep     = 0.1
	ZoomToolStep = 0.2
)

const (
	DefaultMinSize  = 10.0
	DefaultDropSize = 10.0
)

// Options configures a Controller. Zero values select the defaults.
type Options struct {
	Admin       bool
	WarehouseID int64

	// CanvasWidth/Height clamp drag and resize when > 0.
	CanvasWidth  float64
	CanvasHeight float64

	MinSize  float64 // smallest width/height a resize can produce
	DropSize float64 // freshly drawn shapes smaller than this in both axes are discarded

	// ManualLabels leaves new rectangles unlabeled instead of numbering them LOTE-n;
	// releasing such a rectangle yields a label-required notice.
	ManualLabels bool

	GridSnap    float64 // snap dragged positions to this grid, 0 disables
	SmartGuides bool    // snap dragged boxes to neighbouring edges and centres

	Hit HitOptions

	History *undo.Manager
	Checker StockChecker
	Confirm func(domain.Shape) bool
}

type NoticeLevel int

const (
	NoticeInfo NoticeLevel = iota
	NoticeWarning
	NoticeError
)

func (l NoticeLevel) String() string {
	switch l {
	case NoticeWarning:
		return "warning"
	case NoticeError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a banner message for the user. None of them block editing.
type Notice struct {
	Level NoticeLevel
	Text  string
}

// Outcome tells the frontend what an event did.
type Outcome struct {
	Changed bool // redraw needed
	Notices []Notice
	// Delete is set when the delete tool hit a shape. The frontend runs the stock
	// check off the event loop and then calls CommitDelete.
	Delete *DeleteRequest
}

// Tooltip is the viewer hover card for a lot.
type Tooltip struct {
	At       vector.Pt
	Label    string
	Quantity int
}

// Lines returns the tooltip text rows.
func (t Tooltip) Lines() []string {
	label := t.Label
	if label == "" {
		label = "Lote sem identificador"
	}
	return []string{label, fmt.Sprintf("%d unidades", t.Quantity)}
}

// Info is what a viewer gets on double-click.
type Info struct {
	Label    string
	Quantity int
	X, Y     float64
	Width    float64
	Height   float64
}

func (i Info) String() string {
	label := i.Label
	if label == "" {
		label = "Sem identificador"
	}
	return fmt.Sprintf("Lote: %s\nQuantidade: %d unidades\nPosição: %.0f, %.0f\nTamanho: %.0fx%.0f",
		label, i.Quantity, i.X, i.Y, i.Width, i.Height)
}

// Controller owns the editing state of one layout. It is not safe for concurrent use;
// all calls must come from the frontend's event loop.
type Controller struct {
	opts  Options
	store *Store

	tool     Tool
	state    State
	selected int
	panel    domain.Style
	zoom     float64
	grid     bool
	modified bool
	rev      uint64 // bumped on every edit

	// gesture state
	anchor  vector.Pt
	grab    vector.Pt
	handle  Handle
	created bool
	changed bool
	before  []byte

	hover  *Tooltip
	guides []vector.GuideLine

	history *undo.Manager
}

func NewController(shapes []domain.Shape, opts Options) *Controller {
	if opts.MinSize <= 0 {
		opts.MinSize = DefaultMinSize
	}
	if opts.DropSize <= 0 {
		opts.DropSize = DefaultDropSize
	}
	h := opts.History
	if h == nil {
		h = undo.NewManager(undo.Config{MaxPerKey: 200})
	}
	return &Controller{
		opts:     opts,
		store:    NewStore(shapes),
		tool:     ToolMove,
		selected: -1,
		panel:    domain.DefaultStyle(),
		zoom:     1,
		grid:     true,
		history:  h,
	}
}

func (c *Controller) Admin() bool              { return c.opts.Admin }
func (c *Controller) WarehouseID() int64       { return c.opts.WarehouseID }
func (c *Controller) State() State             { return c.state }
func (c *Controller) Tool() Tool               { return c.tool }
func (c *Controller) Zoom() float64            { return c.zoom }
func (c *Controller) ShowGrid() bool           { return c.grid }
func (c *Controller) Modified() bool           { return c.modified }
func (c *Controller) Len() int                 { return c.store.Len() }
func (c *Controller) Shape(i int) domain.Shape { return c.store.At(i) }

// Shapes returns a copy of all shapes in insertion order.
func (c *Controller) Shapes() []domain.Shape { return c.store.Shapes() }

// Hover returns the current viewer tooltip, if any.
func (c *Controller) Hover() (Tooltip, bool) {
	if c.hover == nil {
		return Tooltip{}, false
	}
	return *c.hover, true
}

// Guides returns the smart guides of the drag in progress.
func (c *Controller) Guides() []vector.GuideLine { return c.guides }

// CanvasSize returns the configured canvas bounds (zero when unbounded).
func (c *Controller) CanvasSize() (float64, float64) { return c.opts.CanvasWidth, c.opts.CanvasHeight }

// Selected returns the selected index.
func (c *Controller) Selected() (int, bool) {
	if c.selected < 0 || c.selected >= c.store.Len() {
		return -1, false
	}
	return c.selected, true
}

// Select selects shape i; -1 clears the selection.
func (c *Controller) Select(i int) {
	if i < 0 || i >= c.store.Len() {
		c.selected = -1
		return
	}
	c.selected = i
}

// SetTool switches the active tool. Viewers may only zoom.
func (c *Controller) SetTool(t Tool) error {
	if _, err := ParseTool(string(t)); err != nil {
		return err
	}
	if !c.opts.Admin && t != ToolZoom {
		return ErrReadOnly
	}
	c.tool = t
	return nil
}

// PanelStyle is the style new shapes get.
func (c *Controller) PanelStyle() domain.Style { return c.panel }

func (c *Controller) SetPanelStyle(s domain.Style) {
	if s.FillColor == "" {
		s.FillColor = domain.DefaultFillColor
	}
	if s.StrokeColor == "" {
		s.StrokeColor = domain.DefaultStrokeColor
	}
	if s.StrokeWidth <= 0 {
		s.StrokeWidth = domain.DefaultStrokeWidth
	}
	c.panel = s
}

// SetZoom clamps z into [ZoomMin, ZoomMax].
func (c *Controller) SetZoom(z float64) {
	c.zoom = vector.FloatRound(math.Max(ZoomMin, math.Min(ZoomMax, z)), 2)
}

func (c *Controller) ZoomBy(d float64) { c.SetZoom(c.zoom + d) }
func (c *Controller) ResetZoom()       { c.zoom = 1 }
func (c *Controller) ToggleGrid()      { c.grid = !c.grid }

// MarkSaved clears the modified flag.
func (c *Controller) MarkSaved() { c.modified = false }

// Revision changes whenever the shapes are edited.
func (c *Controller) Revision() uint64 { return c.rev }

func (c *Controller) markModified() {
	c.modified = true
	c.rev++
}

// Load replaces the shapes, e.g. after a reload from the server. History is dropped.
func (c *Controller) Load(shapes []domain.Shape) {
	c.store.Replace(shapes)
	c.selected = -1
	c.state = StateIdle
	c.modified = false
	c.hover = nil
	c.history.Clear(c.opts.WarehouseID)
}

func (c *Controller) toCanvas(sx, sy float64) vector.Pt {
	return vector.Pt{X: sx / c.zoom, Y: sy / c.zoom}
}

func (c *Controller) hitOpts(excludeText bool) HitOptions {
	o := c.opts.Hit
	o.ExcludeText = excludeText
	return o
}

// PointerDown handles a press at screen coordinates sx,sy.
func (c *Controller) PointerDown(sx, sy float64) Outcome {
	p := c.toCanvas(sx, sy)
	if c.tool == ToolZoom {
		c.ZoomBy(ZoomToolStep)
		return Outcome{Changed: true}
	}
	if !c.opts.Admin || c.state != StateIdle {
		return Outcome{}
	}
	c.hover = nil

	switch c.tool {
	case ToolPaint:
		i, ok := FindShapeAt(p, c.store.shapes, c.hitOpts(false))
		if !ok {
			return Outcome{}
		}
		c.recordBefore()
		fill := c.panel.FillColor
		_ = c.store.Update(i, func(s *domain.Shape) { s.FillColor = fill })
		c.markModified()
		return Outcome{Changed: true}
	case ToolDelete:
		i, ok := FindShapeAt(p, c.store.shapes, c.hitOpts(false))
		if !ok {
			return Outcome{}
		}
		c.selected = i
		req, err := c.PrepareDelete(i)
		if err != nil {
			return Outcome{Changed: true, Notices: []Notice{{Level: NoticeError, Text: err.Error()}}}
		}
		return Outcome{Changed: true, Delete: &req}
	}

	if sel, ok := c.Selected(); ok {
		s := c.store.shapes[sel]
		if h := HandleAt(p, s, HandleRadius); h != HandleNone {
			c.begin(StateResizing)
			c.handle = h
			return Outcome{Changed: true}
		}
	}

	if i, ok := FindShapeAt(p, c.store.shapes, c.hitOpts(c.tool.creates())); ok {
		s := c.store.shapes[i]
		c.selected = i
		c.begin(StateDragging)
		c.grab = vector.Pt{X: p.X - s.X, Y: p.Y - s.Y}
		return Outcome{Changed: true}
	}

	if !c.tool.creates() {
		changed := c.selected != -1
		c.selected = -1
		return Outcome{Changed: changed}
	}
	return c.create(p)
}

func (c *Controller) create(p vector.Pt) Outcome {
	if c.opts.GridSnap > 0 {
		p = vector.Pt{X: vector.SnapToGrid(p.X, c.opts.GridSnap), Y: vector.SnapToGrid(p.Y, c.opts.GridSnap)}
	}
	c.begin(StateCreating)
	c.anchor = p
	c.created = true
	var s domain.Shape
	switch c.tool {
	case ToolRectangle:
		s = domain.NewRectangle(p.X, p.Y, c.store.RectangleCount(), c.panel)
		if c.opts.ManualLabels {
			s.Label = ""
		}
	case ToolLine:
		s = domain.NewLine(p.X, p.Y, c.panel)
	case ToolText:
		s = domain.NewText(p.X, p.Y)
	}
	c.selected = c.store.Add(s)
	c.changed = true
	if c.tool == ToolText {
		// text has a fixed extent, no drag phase
		c.finish()
	}
	return Outcome{Changed: true}
}

func (c *Controller) begin(st State) {
	c.state = st
	c.created = false
	c.changed = false
	c.handle = HandleNone
	c.before, _ = c.store.snapshot()
}

// PointerMove handles pointer motion at screen coordinates sx,sy.
func (c *Controller) PointerMove(sx, sy float64) Outcome {
	p := c.toCanvas(sx, sy)
	sel, ok := c.Selected()
	if c.state == StateIdle || !ok {
		return c.updateHover(p)
	}
	_ = c.store.Update(sel, func(s *domain.Shape) {
		switch c.state {
		case StateCreating:
			end := p
			if c.opts.GridSnap > 0 {
				end = vector.Pt{X: vector.SnapToGrid(p.X, c.opts.GridSnap), Y: vector.SnapToGrid(p.Y, c.opts.GridSnap)}
			}
			s.Width = end.X - c.anchor.X
			s.Height = end.Y - c.anchor.Y
		case StateDragging:
			c.drag(sel, s, p)
		case StateResizing:
			resize(s, c.handle, p, c.opts.MinSize)
			c.clampResize(s)
		}
	})
	c.changed = true
	return Outcome{Changed: true}
}

func (c *Controller) drag(sel int, s *domain.Shape, p vector.Pt) {
	s.X = p.X - c.grab.X
	s.Y = p.Y - c.grab.Y
	if c.opts.GridSnap > 0 {
		s.X = vector.SnapToGrid(s.X, c.opts.GridSnap)
		s.Y = vector.SnapToGrid(s.Y, c.opts.GridSnap)
	}
	c.guides = nil
	if c.opts.SmartGuides {
		var anchors []vector.Anchor
		if c.opts.CanvasWidth > 0 && c.opts.CanvasHeight > 0 {
			anchors = append(anchors, vector.Anchor{Rect: vector.R(0, 0, c.opts.CanvasWidth, c.opts.CanvasHeight), Weight: 2})
		}
		for i, o := range c.store.shapes {
			if i != sel && o.Kind != domain.KindLine {
				anchors = append(anchors, vector.Anchor{Rect: boxOf(o), Weight: 1})
			}
		}
		b := boxOf(*s)
		snapped, guides := vector.ComputeSmartGuides(b, anchors, vector.SnapOptions{SnapToEdges: true, SnapToCenters: true})
		s.X += snapped.X - b.X
		s.Y += snapped.Y - b.Y
		c.guides = guides
	}
	c.clampMove(s)
}

// clampMove shifts s so its bounds stay inside the canvas.
func (c *Controller) clampMove(s *domain.Shape) {
	w, h := c.opts.CanvasWidth, c.opts.CanvasHeight
	b := s.Bounds()
	if w > 0 {
		if b.X+b.W > w {
			s.X -= b.X + b.W - w
			b.X -= b.X + b.W - w
		}
		if b.X < 0 {
			s.X -= b.X
		}
	}
	if h > 0 {
		if b.Y+b.H > h {
			s.Y -= b.Y + b.H - h
			b.Y -= b.Y + b.H - h
		}
		if b.Y < 0 {
			s.Y -= b.Y
		}
	}
}

// clampResize trims a resized box to the canvas; the minimum size still wins.
func (c *Controller) clampResize(s *domain.Shape) {
	if s.Kind == domain.KindLine {
		return
	}
	w, h := c.opts.CanvasWidth, c.opts.CanvasHeight
	if w > 0 {
		if s.X < 0 {
			s.Width += s.X
			s.X = 0
		}
		if s.X+s.Width > w {
			s.Width = w - s.X
		}
	}
	if h > 0 {
		if s.Y < 0 {
			s.Height += s.Y
			s.Y = 0
		}
		if s.Y+s.Height > h {
			s.Height = h - s.Y
		}
	}
	s.Width = math.Max(c.opts.MinSize, s.Width)
	s.Height = math.Max(c.opts.MinSize, s.Height)
}

// resize moves the corner h of s to p. Each corner keeps the two edges it does not touch
// fixed; width and height never drop below floor. Line handles move one end point.
func resize(s *domain.Shape, h Handle, p vector.Pt, floor float64) {
	if s.Kind == domain.KindLine {
		switch h {
		case HandleNW:
			ex, ey := s.End()
			s.X, s.Y = p.X, p.Y
			s.Width, s.Height = ex-p.X, ey-p.Y
		case HandleSE:
			s.Width, s.Height = p.X-s.X, p.Y-s.Y
		}
		return
	}
	right, bottom := s.X+s.Width, s.Y+s.Height
	switch h {
	case HandleNW:
		s.Width = math.Max(floor, right-p.X)
		s.Height = math.Max(floor, bottom-p.Y)
		s.X, s.Y = right-s.Width, bottom-s.Height
	case HandleNE:
		s.Width = math.Max(floor, p.X-s.X)
		s.Height = math.Max(floor, bottom-p.Y)
		s.Y = bottom - s.Height
	case HandleSW:
		s.Width = math.Max(floor, right-p.X)
		s.Height = math.Max(floor, p.Y-s.Y)
		s.X = right - s.Width
	case HandleSE:
		s.Width = math.Max(floor, p.X-s.X)
		s.Height = math.Max(floor, p.Y-s.Y)
	}
}

// PointerUp ends the gesture in progress.
func (c *Controller) PointerUp() Outcome {
	if c.state == StateIdle {
		return Outcome{}
	}
	return Outcome{Changed: true, Notices: c.finish()}
}

// PointerLeave behaves like a release.
func (c *Controller) PointerLeave() Outcome {
	out := c.PointerUp()
	if c.hover != nil {
		c.hover = nil
		out.Changed = true
	}
	return out
}

func (c *Controller) finish() []Notice {
	var notices []Notice
	created := c.created
	if sel, ok := c.Selected(); ok {
		_ = c.store.Update(sel, func(s *domain.Shape) { s.Normalize() })
		s := c.store.shapes[sel]
		b := s.Bounds()
		switch {
		case created && s.Kind != domain.KindText && b.W < c.opts.DropSize && b.H < c.opts.DropSize:
			_ = c.store.Remove(sel)
			c.selected = -1
			c.changed = false
		case created && s.Kind == domain.KindRectangle && s.Label == "":
			notices = append(notices, Notice{Level: NoticeWarning, Text: "New lot has no label; set an address label such as A001"})
		}
	}
	if c.changed {
		c.commitBefore()
		c.markModified()
	}
	c.state = StateIdle
	c.handle = HandleNone
	c.guides = nil
	c.created = false
	c.changed = false
	c.before = nil
	return notices
}

func (c *Controller) updateHover(p vector.Pt) Outcome {
	if c.opts.Admin {
		return Outcome{}
	}
	var next *Tooltip
	if i, ok := FindShapeAt(p, c.store.shapes, c.hitOpts(false)); ok {
		if s := c.store.shapes[i]; s.Kind == domain.KindRectangle {
			next = &Tooltip{At: p, Label: s.Label, Quantity: s.Quantity}
		}
	}
	changed := (next == nil) != (c.hover == nil) || (next != nil && *next != *c.hover)
	c.hover = next
	return Outcome{Changed: changed}
}

// DoubleClick returns the lot info card for viewers.
func (c *Controller) DoubleClick(sx, sy float64) (Info, bool) {
	if c.opts.Admin {
		return Info{}, false
	}
	i, ok := FindShapeAt(c.toCanvas(sx, sy), c.store.shapes, c.hitOpts(false))
	if !ok {
		return Info{}, false
	}
	s := c.store.shapes[i]
	return Info{Label: s.Label, Quantity: s.Quantity, X: math.Round(s.X), Y: math.Round(s.Y), Width: s.Width, Height: s.Height}, true
}

// recordBefore pushes the current state onto the undo history ahead of a one-shot edit.
func (c *Controller) recordBefore() {
	b, err := c.store.snapshot()
	if err != nil {
		applog.WithComponent("editor").Warn("snapshot failed", slog.Any("err", err))
		return
	}
	c.history.Record(c.opts.WarehouseID, b)
}

func (c *Controller) commitBefore() {
	if c.before != nil {
		c.history.Record(c.opts.WarehouseID, c.before)
	}
}
