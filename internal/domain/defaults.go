/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// Defaults substituted for zero-valued style fields.
const (
	DefaultFillColor   = "#4f46e5"
	DefaultStrokeColor = "#000000"
	DefaultTextColor   = "#000000"
	DefaultStrokeWidth = 2.0
	DefaultOpacity     = 80
	DefaultFontFamily  = "Arial"
	DefaultFontSize    = 14.0
	DefaultTextContent = "Novo Texto"
	DefaultTextWidth   = 100.0
	DefaultTextHeight  = 30.0
)

// Style describes the panel colours a new shape is created with.
type Style struct {
	FillColor   string
	StrokeColor string
	StrokeWidth float64
}

// DefaultStyle mirrors the property panel's initial values.
func DefaultStyle() Style {
	return Style{FillColor: DefaultFillColor, StrokeColor: DefaultStrokeColor, StrokeWidth: DefaultStrokeWidth}
}

// NewRectangle returns a zero-size lot anchored at x,y. n is the number of rectangles
// already on the canvas and drives the automatic LOTE-n label.
func NewRectangle(x, y float64, n int, st Style) Shape {
	return Shape{
		Kind:           KindRectangle,
		X:              x,
		Y:              y,
		FillColor:      st.FillColor,
		StrokeColor:    st.StrokeColor,
		StrokeWidth:    st.StrokeWidth,
		OpacityPercent: DefaultOpacity,
		Label:          fmt.Sprintf("LOTE-%d", n+1),
	}
}

// NewLine returns a zero-length solid line starting at x,y.
func NewLine(x, y float64, st Style) Shape {
	return Shape{
		Kind:        KindLine,
		X:           x,
		Y:           y,
		StrokeColor: st.StrokeColor,
		StrokeWidth: st.StrokeWidth,
		LineStyle:   LineSolid,
	}
}

// NewText returns a default text label at x,y.
func NewText(x, y float64) Shape {
	return Shape{
		Kind:       KindText,
		X:          x,
		Y:          y,
		Width:      DefaultTextWidth,
		Height:     DefaultTextHeight,
		FillColor:  DefaultTextColor,
		Content:    DefaultTextContent,
		FontFamily: DefaultFontFamily,
		FontSize:   DefaultFontSize,
		Direction:  Horizontal,
		Alignment:  AlignLeft,
	}
}

// EffectiveFill returns the fill colour with the kind's default applied.
func (s Shape) EffectiveFill() string {
	if s.FillColor != "" {
		return s.FillColor
	}
	if s.Kind == KindText {
		return DefaultTextColor
	}
	return DefaultFillColor
}

func (s Shape) EffectiveStroke() string {
	if s.StrokeColor != "" {
		return s.StrokeColor
	}
	return DefaultStrokeColor
}

func (s Shape) EffectiveStrokeWidth() float64 {
	if s.StrokeWidth > 0 {
		return s.StrokeWidth
	}
	return DefaultStrokeWidth
}

// EffectiveOpacity returns the fill opacity in [0,1].
func (s Shape) EffectiveOpacity() float64 {
	p := s.OpacityPercent
	if p <= 0 {
		p = DefaultOpacity
	}
	if p > 100 {
		p = 100
	}
	return float64(p) / 100
}

func (s Shape) EffectiveFontSize() float64 {
	if s.FontSize > 0 {
		return s.FontSize
	}
	return DefaultFontSize
}

func (s Shape) EffectiveFontFamily() string {
	if s.FontFamily != "" {
		return s.FontFamily
	}
	return DefaultFontFamily
}

// EffectiveContent returns the text to draw for a text shape.
func (s Shape) EffectiveContent() string {
	if s.Content != "" {
		return s.Content
	}
	return "Texto"
}

var addressRe = regexp.MustCompile(`(?i)^[A-Z][0-9]{3}$`)

// ValidateAddressLabel reports whether label follows the recommended address format,
// one letter followed by three digits (A001, B203). The check is advisory.
func ValidateAddressLabel(label string) error {
	label = strings.TrimSpace(label)
	if label == "" {
		return fmt.Errorf("address label is empty")
	}
	if !addressRe.MatchString(label) {
		return fmt.Errorf("address label %q: recommended format is a letter followed by 3 digits (e.g. A001, B203)", label)
	}
	return nil
}
