/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/font/gofont/gomonobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"warehousemap/internal/domain"
	applog "warehousemap/internal/log"
)

// FontSpec is a resolved font request. Families are mapped onto the bundled Go fonts:
// anything mono or courier-like gets Go Mono, everything else Go sans.
type FontSpec struct {
	Family string
	Size   float64
	Bold   bool
	Italic bool
}

func FontOf(st TextStyle) FontSpec {
	return FontSpec{Family: st.Family, Size: st.Size, Bold: st.Bold, Italic: st.Italic}
}

type fontKey struct {
	mono   bool
	bold   bool
	italic bool
}

var (
	fontsOnce sync.Once
	fonts     map[fontKey]*opentype.Font
)

func loadFonts() {
	l := applog.WithComponent("render")
	src := map[fontKey][]byte{
		{}:                         goregular.TTF,
		{bold: true}:               gobold.TTF,
		{italic: true}:             goitalic.TTF,
		{bold: true, italic: true}: gobolditalic.TTF,
		{mono: true}:               gomono.TTF,
		{mono: true, bold: true}:   gomonobold.TTF,
	}
	fonts = make(map[fontKey]*opentype.Font, len(src))
	for k, data := range src {
		f, err := opentype.Parse(data)
		if err != nil {
			l.Warn("parse bundled font", slog.Any("err", err))
			continue
		}
		fonts[k] = f
	}
}

func isMono(family string) bool {
	f := strings.ToLower(family)
	return strings.Contains(f, "mono") || strings.Contains(f, "courier") || strings.Contains(f, "consolas")
}

func lookup(spec FontSpec) *opentype.Font {
	fontsOnce.Do(loadFonts)
	k := fontKey{mono: isMono(spec.Family), bold: spec.Bold, italic: spec.Italic}
	if k.mono {
		k.italic = false
	}
	if f, ok := fonts[k]; ok {
		return f
	}
	return fonts[fontKey{mono: k.mono}]
}

// NewFace returns a face for spec drawn at scale pixels per canvas unit. The caller
// closes it. When the bundled fonts are unavailable the fixed 7x13 face is returned.
func NewFace(spec FontSpec, scale float64) font.Face {
	size := spec.Size
	if size <= 0 {
		size = 14
	}
	if scale <= 0 {
		scale = 1
	}
	if f := lookup(spec); f != nil {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size * scale, DPI: 72, Hinting: font.HintingNone})
		if err == nil {
			return face
		}
	}
	return basicfont.Face7x13
}

// Metrics are face metrics in pixels.
type Metrics struct {
	Ascent, Descent float64
}

func metricsOf(face font.Face) Metrics {
	m := face.Metrics()
	return Metrics{Ascent: fixedToFloat(m.Ascent), Descent: fixedToFloat(m.Descent)}
}

func fixedToFloat(v fixed.Int26_6) float64 { return float64(v) / 64 }

// MeasureText returns the advance width of s in canvas units.
func MeasureText(spec FontSpec, s string) float64 {
	face := NewFace(spec, 1)
	defer face.Close()
	return fixedToFloat(font.MeasureString(face, s))
}

// textOrigin returns the offset from the anchor to the start of the baseline for a
// run of width w, in the same units as w and m.
func textOrigin(st TextStyle, w float64, m Metrics) (float64, float64) {
	dx := 0.0
	switch st.Align {
	case domain.AlignCenter:
		dx = -w / 2
	case domain.AlignRight:
		dx = -w
	}
	dy := m.Ascent
	if st.Baseline == BaselineMiddle {
		dy = (m.Ascent - m.Descent) / 2
	}
	return dx, dy
}
