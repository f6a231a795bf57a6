/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"strings"
	"testing"

	"warehousemap/internal/domain"
)

func solid(x, y, w, h float64, hex string) domain.Shape {
	s := lot(x, y, w, h, "", 0, 1)
	s.FillColor = hex
	s.OpacityPercent = 100
	return s
}

func smallView() View { return View{Width: 200, Height: 100, Selected: -1} }

func TestRasterFillsAndBackground(t *testing.T) {
	sc := Build(State{Shapes: []domain.Shape{solid(10, 10, 40, 40, "#ff0000")}, View: smallView()})
	img := RasterPNG(sc, 0, 0)
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("bounds %v", b)
	}
	if got := img.RGBAAt(30, 30); got != (color.RGBA{255, 0, 0, 255}) {
		t.Fatalf("interior pixel %v", got)
	}
	if got := img.RGBAAt(150, 80); got != (color.RGBA{0xf8, 0xf9, 0xfa, 255}) {
		t.Fatalf("background pixel %v", got)
	}
	if got := img.RGBAAt(10, 30); got.R > 40 {
		t.Fatalf("border should be dark, got %v", got)
	}

	v := smallView()
	v.Zoom = 2
	zoomed := RasterPNG(Build(State{Shapes: []domain.Shape{solid(10, 10, 40, 40, "#ff0000")}, View: v}), 0, 0)
	if b := zoomed.Bounds(); b.Dx() != 400 {
		t.Fatalf("zoomed width %d", b.Dx())
	}
	if got := zoomed.RGBAAt(60, 60); got.R != 255 || got.G != 0 {
		t.Fatalf("zoomed interior %v", got)
	}
}

func TestRasterDrawsLabel(t *testing.T) {
	s := solid(0, 0, 100, 60, "#000000")
	s.Label = "A001"
	img := RasterPNG(Build(State{Shapes: []domain.Shape{s}, View: smallView()}), 0, 0)
	lit := 0
	for y := 22; y <= 38; y++ {
		for x := 30; x <= 70; x++ {
			if img.RGBAAt(x, y).R > 128 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatal("label glyphs not drawn")
	}
}

func TestRasterRotatedAndImage(t *testing.T) {
	bg := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for i := range bg.Pix {
		if i%4 == 3 {
			bg.Pix[i] = 255
		}
	}
	shapes := []domain.Shape{
		{Kind: domain.KindText, X: 150, Y: 10, Width: 30, Height: 80, Content: "Doca", Direction: domain.Vertical, Underline: true, ZOrder: 1},
	}
	v := smallView()
	v.Background = bg
	img := RasterPNG(Build(State{Shapes: shapes, View: v}), 0, 0)
	if r := img.RGBAAt(20, 20).R; r < 60 || r > 90 {
		t.Fatalf("background image should show at 0.7 alpha, red channel %d", r)
	}
}

func TestEncodePNG(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodePNG(&buf, Build(State{View: smallView()})); err != nil {
		t.Fatal(err)
	}
	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 200 || b.Dy() != 100 {
		t.Fatalf("decoded bounds %v", b)
	}
}

func TestWriteSVG(t *testing.T) {
	shapes := []domain.Shape{
		lot(10, 10, 80, 40, "<A&B>", 0, 1),
		{Kind: domain.KindLine, X: 0, Y: 90, Width: 100, LineStyle: domain.LineDashed, ZOrder: 2},
	}
	sc := Build(State{Shapes: shapes, View: smallView()})
	sc.Title = "Armazém 1"
	var buf bytes.Buffer
	if err := WriteSVG(&buf, sc); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		`viewBox="0 0 200 100"`,
		`fill-opacity="0.8"`,
		`stroke-dasharray="5,5"`,
		`&lt;A&amp;B&gt;`,
		`font-weight="bold"`,
		`<title>Armazém 1</title>`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("svg missing %s", want)
		}
	}
	if !strings.HasSuffix(out, "</svg>\n") {
		t.Fatal("unterminated svg")
	}
}

func TestWritePDF(t *testing.T) {
	shapes := []domain.Shape{
		lot(10, 10, 80, 40, "A001", 12, 1),
		{Kind: domain.KindLine, X: 0, Y: 90, Width: 100, LineStyle: domain.LineDotted, ZOrder: 2},
		{Kind: domain.KindText, X: 120, Y: 10, Width: 60, Height: 20, Content: "Posição", Italic: true, ZOrder: 3},
		{Kind: domain.KindText, X: 150, Y: 40, Width: 30, Height: 50, Content: "Doca", Direction: domain.Vertical, ZOrder: 4},
	}
	v := smallView()
	v.Grid = true
	v.Background = image.NewRGBA(image.Rect(0, 0, 2, 2))
	sc := Build(State{Shapes: shapes, View: v})
	sc.Title = "Armazém 1"
	var buf bytes.Buffer
	if err := WritePDF(&buf, sc); err != nil {
		t.Fatal(err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}
