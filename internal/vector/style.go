/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"fmt"
	"image/color"
	"math"
	"strconv"
	"strings"
)

// Styles and paint definitions.

type Color struct{ R, G, B, A uint8 }

var (
	Black       = Color{0, 0, 0, 255}
	White       = Color{255, 255, 255, 255}
	Transparent = Color{0, 0, 0, 0}
)

// ParseHex accepts #rgb and #rrggbb (leading # optional).
func ParseHex(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) != 6 {
		return Color{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return Color{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// MustHex is ParseHex for trusted constants; bad input yields black.
func MustHex(s string) Color {
	c, err := ParseHex(s)
	if err != nil {
		return Black
	}
	return c
}

// RGBA builds a colour from 0-255 channels and a 0-1 alpha.
func RGBA(r, g, b uint8, a float64) Color {
	return Color{R: r, G: g, B: b, A: alpha8(a)}
}

// WithAlpha scales the colour's alpha by a in [0,1].
func (c Color) WithAlpha(a float64) Color {
	c.A = uint8(math.Round(float64(c.A) * math.Max(0, math.Min(1, a))))
	return c
}

// Hex renders #rrggbb, dropping alpha.
func (c Color) Hex() string { return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B) }

// Opacity returns alpha in [0,1].
func (c Color) Opacity() float64 { return float64(c.A) / 255 }

// NRGBA converts to the image/color non-premultiplied form.
func (c Color) NRGBA() color.NRGBA { return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A} }

func alpha8(a float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, a)) * 255))
}

type Fill struct {
	Color   Color
	Enabled bool
}

type Stroke struct {
	Color   Color
	Width   float64
	Dash    []float64 // on/off lengths; empty is solid
	Enabled bool
}

// Dash patterns for the line styles the editor offers.
var (
	DashSolid  []float64
	DashDashed = []float64{5, 5}
	DashDotted = []float64{2, 2}
	DashSelect = []float64{3, 3}
)
