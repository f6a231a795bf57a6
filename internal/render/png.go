/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"
	xvector "golang.org/x/image/vector"

	"warehousemap/internal/vector"
)

// PixelSize is the image size of the scene at its zoom.
func PixelSize(sc Scene) (int, int) {
	z := sc.Zoom
	if z <= 0 {
		z = 1
	}
	return int(math.Ceil(sc.Width * z)), int(math.Ceil(sc.Height * z))
}

// RasterPNG paints the scene into a w×h image at the scene zoom. Zero sizes use
// PixelSize.
func RasterPNG(sc Scene, w, h int) *image.RGBA {
	z := sc.Zoom
	if z <= 0 {
		z = 1
	}
	return RasterScaled(sc, w, h, z)
}

// RasterScaled paints with an explicit canvas-to-pixel factor, e.g. zoom times the
// display's pixel density.
func RasterScaled(sc Scene, w, h int, scale float64) *image.RGBA {
	if w <= 0 || h <= 0 {
		w = int(math.Ceil(sc.Width * scale))
		h = int(math.Ceil(sc.Height * scale))
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(1, w), max(1, h)))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(sc.Background.NRGBA()), image.Point{}, draw.Src)
	r := rasterizer{dst: dst, m: vector.Scale(scale, scale), scale: scale}
	r.z = xvector.NewRasterizer(dst.Bounds().Dx(), dst.Bounds().Dy())
	for _, op := range sc.Ops {
		r.paint(op)
	}
	return dst
}

// EncodePNG writes the scene at its zoom as PNG.
func EncodePNG(w io.Writer, sc Scene) error {
	if err := png.Encode(w, RasterPNG(sc, 0, 0)); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}

type rasterizer struct {
	dst   *image.RGBA
	m     vector.Affine2D
	scale float64
	z     *xvector.Rasterizer
}

func (r *rasterizer) paint(op Op) {
	switch op.Kind {
	case OpFill:
		r.fill(op.Path, op.Fill)
	case OpStroke:
		if !op.Stroke.Enabled || op.Stroke.Width <= 0 {
			return
		}
		r.fill(vector.StrokePath(op.Path, op.Stroke.Width, op.Stroke.Dash), op.Stroke.Color)
	case OpText:
		r.text(op)
	case OpImage:
		r.image(op)
	}
}

func (r *rasterizer) fill(p vector.Path, c vector.Color) {
	if c.A == 0 || p.Empty() {
		return
	}
	b := r.dst.Bounds()
	r.z.Reset(b.Dx(), b.Dy())
	polys, _ := p.Transform(r.m).Polylines()
	for _, poly := range polys {
		if len(poly) < 2 {
			continue
		}
		r.z.MoveTo(float32(poly[0].X), float32(poly[0].Y))
		for _, q := range poly[1:] {
			r.z.LineTo(float32(q.X), float32(q.Y))
		}
		r.z.ClosePath()
	}
	r.z.Draw(r.dst, b, image.NewUniform(c.NRGBA()), image.Point{})
}

func aff3(m vector.Affine2D) f64.Aff3 { return f64.Aff3{m.A, m.C, m.E, m.B, m.D, m.F} }

func (r *rasterizer) image(op Op) {
	if op.Image == nil {
		return
	}
	d := op.Dst
	dr := image.Rect(
		int(math.Round(d.X*r.scale)), int(math.Round(d.Y*r.scale)),
		int(math.Round((d.X+d.W)*r.scale)), int(math.Round((d.Y+d.H)*r.scale)),
	)
	var opts *draw.Options
	if op.Alpha > 0 && op.Alpha < 1 {
		opts = &draw.Options{SrcMask: image.NewUniform(color.Alpha{A: uint8(math.Round(op.Alpha * 255))})}
	}
	draw.BiLinear.Scale(r.dst, dr, op.Image, op.Image.Bounds(), draw.Over, opts)
}

// text draws the run upright into a scratch image and composites it at the anchor,
// rotated when the op asks for it.
func (r *rasterizer) text(op Op) {
	if op.Text == "" || op.Style.Color.A == 0 {
		return
	}
	face := NewFace(FontOf(op.Style), r.scale)
	defer face.Close()
	m := metricsOf(face)
	w := fixedToFloat(font.MeasureString(face, op.Text))
	dx, dy := textOrigin(op.Style, w, m)

	base := int(math.Ceil(m.Ascent)) + 1
	tw := int(math.Ceil(w)) + 2
	th := base + int(math.Ceil(m.Descent)) + 2
	tmp := image.NewRGBA(image.Rect(0, 0, tw, th))
	src := image.NewUniform(op.Style.Color.NRGBA())
	d := font.Drawer{Dst: tmp, Src: src, Face: face, Dot: fixed.P(1, base)}
	d.DrawString(op.Text)
	if op.Style.Underline {
		thick := max(1, int(math.Round(op.Style.Size*r.scale/14)))
		draw.Draw(tmp, image.Rect(1, base+1, 1+int(math.Ceil(w)), base+1+thick), src, image.Point{}, draw.Over)
	}

	at := r.m.Apply(op.At)
	if op.Rotate == 0 {
		x := int(math.Round(at.X + dx - 1))
		y := int(math.Round(at.Y + dy - float64(base)))
		draw.Draw(r.dst, tmp.Bounds().Add(image.Pt(x, y)), tmp, image.Point{}, draw.Over)
		return
	}
	s2d := vector.Translate(at.X, at.Y).
		Mul(vector.Rotate(op.Rotate * math.Pi / 180)).
		Mul(vector.Translate(dx-1, dy-float64(base)))
	draw.BiLinear.Transform(r.dst, aff3(s2d), tmp, tmp.Bounds(), draw.Over, nil)
}
