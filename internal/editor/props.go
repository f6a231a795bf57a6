/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"fmt"
	"math"

	"warehousemap/internal/domain"
	"warehousemap/internal/vector"
)

// Properties mirrors the property panel: the editable fields of the selected shape with
// defaults filled in, and geometry rounded as the panel shows it.
type Properties struct {
	Kind domain.Kind

	Label    string
	Quantity int

	FillColor   string
	StrokeColor string
	StrokeWidth float64

	OpacityPercent  int
	RotationDegrees float64
	LineStyle       domain.LineStyle

	Content    string
	FontFamily string
	FontSize   float64
	Bold       bool
	Italic     bool
	Underline  bool
	Direction  domain.Direction
	Alignment  domain.Alignment

	X, Y          float64
	Width, Height float64
}

func propertiesOf(s domain.Shape) Properties {
	p := Properties{
		Kind:            s.Kind,
		Label:           s.Label,
		Quantity:        s.Quantity,
		FillColor:       s.EffectiveFill(),
		StrokeColor:     s.EffectiveStroke(),
		StrokeWidth:     s.EffectiveStrokeWidth(),
		OpacityPercent:  int(math.Round(s.EffectiveOpacity() * 100)),
		RotationDegrees: s.RotationDegrees,
		LineStyle:       s.LineStyle,
		Content:         s.Content,
		FontFamily:      s.EffectiveFontFamily(),
		FontSize:        s.EffectiveFontSize(),
		Bold:            s.Bold,
		Italic:          s.Italic,
		Underline:       s.Underline,
		Direction:       s.Direction,
		Alignment:       s.Alignment,
		X:               math.Round(s.X),
		Y:               math.Round(s.Y),
		Width:           math.Round(s.Width),
		Height:          math.Round(s.Height),
	}
	if p.LineStyle == "" {
		p.LineStyle = domain.LineSolid
	}
	if p.Direction == "" {
		p.Direction = domain.Horizontal
	}
	if p.Alignment == "" {
		p.Alignment = domain.AlignLeft
	}
	return p
}

// EmptyProperties is what the panel shows with nothing selected.
func (c *Controller) EmptyProperties() Properties {
	return Properties{
		FillColor:      c.panel.FillColor,
		StrokeColor:    c.panel.StrokeColor,
		StrokeWidth:    c.panel.StrokeWidth,
		OpacityPercent: domain.DefaultOpacity,
		FontFamily:     domain.DefaultFontFamily,
		FontSize:       domain.DefaultFontSize,
		LineStyle:      domain.LineSolid,
		Direction:      domain.Horizontal,
		Alignment:      domain.AlignLeft,
		Width:          120,
		Height:         80,
	}
}

// Properties returns the panel view of the selection.
func (c *Controller) Properties() (Properties, bool) {
	sel, ok := c.Selected()
	if !ok {
		return c.EmptyProperties(), false
	}
	return propertiesOf(c.store.shapes[sel]), true
}

func validColor(field, v string) error {
	if _, err := vector.ParseHex(v); err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	return nil
}

// ApplyProperties writes the fields of p that differ from the selection back to it.
// Panel colours always become the style for new shapes. Label problems come back as
// notices and never block the edit; malformed colours are rejected.
func (c *Controller) ApplyProperties(p Properties) ([]Notice, error) {
	if !c.opts.Admin {
		return nil, ErrReadOnly
	}
	if err := validColor("fill colour", p.FillColor); err != nil {
		return nil, err
	}
	if err := validColor("stroke colour", p.StrokeColor); err != nil {
		return nil, err
	}
	c.SetPanelStyle(domain.Style{FillColor: p.FillColor, StrokeColor: p.StrokeColor, StrokeWidth: p.StrokeWidth})

	sel, ok := c.Selected()
	if !ok {
		return nil, nil
	}
	cur := propertiesOf(c.store.shapes[sel])
	if cur == p {
		return nil, nil
	}
	c.recordBefore()
	var notices []Notice
	minSize := c.opts.MinSize
	_ = c.store.Update(sel, func(s *domain.Shape) {
		if p.Label != cur.Label {
			s.Label = p.Label
			if s.Kind == domain.KindRectangle {
				if err := domain.ValidateAddressLabel(p.Label); err != nil {
					notices = append(notices, Notice{Level: NoticeWarning, Text: err.Error()})
				}
			}
		}
		if p.Quantity != cur.Quantity {
			s.Quantity = max(0, p.Quantity)
		}
		if p.FillColor != cur.FillColor {
			s.FillColor = p.FillColor
		}
		if p.StrokeColor != cur.StrokeColor {
			s.StrokeColor = p.StrokeColor
		}
		if p.StrokeWidth != cur.StrokeWidth {
			s.StrokeWidth = math.Max(0, p.StrokeWidth)
		}
		if p.OpacityPercent != cur.OpacityPercent {
			s.OpacityPercent = min(100, max(0, p.OpacityPercent))
		}
		if p.RotationDegrees != cur.RotationDegrees {
			s.RotationDegrees = math.Mod(p.RotationDegrees, 360)
		}
		if p.LineStyle != cur.LineStyle {
			s.LineStyle = p.LineStyle
		}
		if p.Content != cur.Content {
			s.Content = p.Content
		}
		if p.FontFamily != cur.FontFamily {
			s.FontFamily = p.FontFamily
		}
		if p.FontSize != cur.FontSize && p.FontSize > 0 {
			s.FontSize = p.FontSize
		}
		s.Bold, s.Italic, s.Underline = p.Bold, p.Italic, p.Underline
		if p.Direction != cur.Direction {
			s.Direction = p.Direction
		}
		if p.Alignment != cur.Alignment {
			s.Alignment = p.Alignment
		}
		if p.X != cur.X {
			s.X = p.X
		}
		if p.Y != cur.Y {
			s.Y = p.Y
		}
		if p.Width != cur.Width {
			s.Width = p.Width
		}
		if p.Height != cur.Height {
			s.Height = p.Height
		}
		s.Normalize()
		if s.Kind != domain.KindLine {
			s.Width = math.Max(minSize, s.Width)
			s.Height = math.Max(minSize, s.Height)
		}
	})
	c.markModified()
	return notices, nil
}
