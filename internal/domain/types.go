/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package domain defines the warehouse map data model: layouts and the shapes placed on them.
// Shapes serialize to camelCase JSON; this is the format of layout files on disk and of the
// save/load payloads exchanged with the map server.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrLayoutNotFound is returned by stores that have no layout for a warehouse.
var ErrLayoutNotFound = errors.New("layout not found")

// Kind is the closed set of shape variants. Renderer and hit-tester switch on it.
type Kind string

const (
	KindRectangle Kind = "Rectangle"
	KindLine      Kind = "Line"
	KindText      Kind = "Text"
)

func (k Kind) Valid() bool {
	switch k {
	case KindRectangle, KindLine, KindText:
		return true
	}
	return false
}

func (k *Kind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if !Kind(s).Valid() {
		return fmt.Errorf("unknown shape kind %q", s)
	}
	*k = Kind(s)
	return nil
}

type LineStyle string

const (
	LineSolid  LineStyle = "solid"
	LineDashed LineStyle = "dashed"
	LineDotted LineStyle = "dotted"
)

type Direction string

const (
	Horizontal Direction = "horizontal"
	Vertical   Direction = "vertical"
)

type Alignment string

const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
)

// Shape is a rectangle, line or text element on the map canvas.
//
// X,Y is the top-left anchor for rectangles and text and the start point for lines.
// For lines Width,Height is the displacement to the end point, so it may be negative.
// Style fields left at their zero value are substituted with defaults when drawn.
type Shape struct {
	ID     *int64  `json:"id"`
	Kind   Kind    `json:"kind"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`

	FillColor   string  `json:"fillColor,omitempty"`
	StrokeColor string  `json:"strokeColor,omitempty"`
	StrokeWidth float64 `json:"strokeWidth,omitempty"`

	Label    string `json:"label,omitempty"`
	Quantity int    `json:"quantity,omitempty"`

	RotationDegrees float64 `json:"rotationDegrees,omitempty"`
	OpacityPercent  int     `json:"opacityPercent,omitempty"`

	LineStyle LineStyle `json:"lineStyle,omitempty"`

	Content    string    `json:"content,omitempty"`
	FontFamily string    `json:"fontFamily,omitempty"`
	FontSize   float64   `json:"fontSize,omitempty"`
	Bold       bool      `json:"bold,omitempty"`
	Italic     bool      `json:"italic,omitempty"`
	Underline  bool      `json:"underline,omitempty"`
	Direction  Direction `json:"direction,omitempty"`
	Alignment  Alignment `json:"alignment,omitempty"`

	ZOrder int `json:"zOrder"`
}

// Layout is the canvas of one warehouse.
type Layout struct {
	WarehouseID     int64   `json:"warehouseId"`
	Name            string  `json:"name,omitempty"`
	Width           float64 `json:"width,omitempty"`
	Height          float64 `json:"height,omitempty"`
	BackgroundImage string  `json:"backgroundImage,omitempty"`
	Shapes          []Shape `json:"shapes"`
}

// Rect is an axis-aligned box in canvas units.
type Rect struct {
	X, Y, W, H float64
}

// Bounds returns the axis-aligned extent, normalized to non-negative size.
// Rotation is not applied.
func (s Shape) Bounds() Rect {
	x, y, w, h := s.X, s.Y, s.Width, s.Height
	if w < 0 {
		x += w
		w = -w
	}
	if h < 0 {
		y += h
		h = -h
	}
	return Rect{X: x, Y: y, W: w, H: h}
}

// End returns the end point of a line.
func (s Shape) End() (float64, float64) { return s.X + s.Width, s.Y + s.Height }

// Normalize flips a negative extent into the anchor so Width and Height end up >= 0.
// Lines keep their displacement vector.
func (s *Shape) Normalize() {
	if s.Kind == KindLine {
		return
	}
	if s.Width < 0 {
		s.X += s.Width
		s.Width = -s.Width
	}
	if s.Height < 0 {
		s.Y += s.Height
		s.Height = -s.Height
	}
}

// Rounded returns a copy with geometry rounded to whole canvas units, as persisted.
func (s Shape) Rounded() Shape {
	s.X = math.Round(s.X)
	s.Y = math.Round(s.Y)
	s.Width = math.Round(s.Width)
	s.Height = math.Round(s.Height)
	return s
}

// Clone returns a deep copy (the id pointer is not shared).
func (s Shape) Clone() Shape {
	if s.ID != nil {
		id := *s.ID
		s.ID = &id
	}
	return s
}

// HasID reports whether the server has assigned an id.
func (s Shape) HasID() bool { return s.ID != nil }

// IsAddress reports whether the shape is a labeled rectangle, i.e. a storage location
// that may hold inventory.
func (s Shape) IsAddress() bool { return s.Kind == KindRectangle && s.Label != "" }

// IDPtr is a small helper for literals and tests.
func IDPtr(v int64) *int64 { return &v }

// CloneShapes deep-copies a shape slice.
func CloneShapes(in []Shape) []Shape {
	if in == nil {
		return nil
	}
	out := make([]Shape, len(in))
	for i, s := range in {
		out[i] = s.Clone()
	}
	return out
}
