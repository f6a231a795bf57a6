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
	"fmt"
	"image/png"
	"io"

	"github.com/jung-kurt/gofpdf"

	"warehousemap/internal/vector"
	"warehousemap/internal/version"
)

// Core font metrics used to place baselines; close enough for Helvetica and Courier.
const (
	pdfAscent  = 0.718
	pdfDescent = 0.207
)

// WritePDF writes the scene as a single page sized to the canvas, one canvas unit per
// point. Text uses the built-in core fonts so nothing is embedded.
func WritePDF(w io.Writer, sc Scene) error {
	size := gofpdf.SizeType{Wd: sc.Width, Ht: sc.Height}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	if sc.Title != "" {
		pdf.SetTitle(sc.Title, true)
	}
	pdf.SetCreator("warehousemap "+version.Version, true)
	pdf.SetAutoPageBreak(false, 0)
	orient := "P"
	if sc.Width > sc.Height {
		orient = "L"
	}
	pdf.AddPageFormat(orient, size)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	images := 0
	for _, op := range sc.Ops {
		switch op.Kind {
		case OpFill:
			if op.Fill.A == 0 || op.Path.Empty() {
				continue
			}
			setFill(pdf, op.Fill)
			pdf.SetAlpha(op.Fill.Opacity(), "Normal")
			tracePath(pdf, op.Path)
			pdf.DrawPath("F")
		case OpStroke:
			if !op.Stroke.Enabled || op.Stroke.Width <= 0 {
				continue
			}
			pdf.SetDrawColor(int(op.Stroke.Color.R), int(op.Stroke.Color.G), int(op.Stroke.Color.B))
			pdf.SetAlpha(op.Stroke.Color.Opacity(), "Normal")
			pdf.SetLineWidth(op.Stroke.Width)
			pdf.SetDashPattern(op.Stroke.Dash, 0)
			tracePath(pdf, op.Path)
			pdf.DrawPath("D")
			pdf.SetDashPattern(nil, 0)
		case OpText:
			pdfText(pdf, op, tr)
		case OpImage:
			if op.Image == nil {
				continue
			}
			var buf bytes.Buffer
			if err := png.Encode(&buf, op.Image); err != nil {
				return fmt.Errorf("encode background: %w", err)
			}
			images++
			name := fmt.Sprintf("bg%d", images)
			opt := gofpdf.ImageOptions{ImageType: "PNG"}
			pdf.RegisterImageOptionsReader(name, opt, &buf)
			pdf.SetAlpha(op.Alpha, "Normal")
			pdf.ImageOptions(name, op.Dst.X, op.Dst.Y, op.Dst.W, op.Dst.H, false, opt, 0, "")
		}
	}
	pdf.SetAlpha(1, "Normal")
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func setFill(pdf *gofpdf.Fpdf, c vector.Color) {
	pdf.SetFillColor(int(c.R), int(c.G), int(c.B))
}

func tracePath(pdf *gofpdf.Fpdf, p vector.Path) {
	for _, c := range p.Cmds {
		switch c.Op {
		case vector.MoveTo:
			pdf.MoveTo(c.P.X, c.P.Y)
		case vector.LineTo:
			pdf.LineTo(c.P.X, c.P.Y)
		case vector.Close:
			pdf.ClosePath()
		}
	}
}

func pdfFont(st TextStyle) (string, string) {
	family := "Helvetica"
	if isMono(st.Family) {
		family = "Courier"
	}
	style := ""
	if st.Bold {
		style += "B"
	}
	if st.Italic {
		style += "I"
	}
	if st.Underline {
		style += "U"
	}
	return family, style
}

func pdfText(pdf *gofpdf.Fpdf, op Op, tr func(string) string) {
	if op.Text == "" || op.Style.Color.A == 0 {
		return
	}
	family, style := pdfFont(op.Style)
	size := op.Style.Size
	if size <= 0 {
		size = 14
	}
	pdf.SetFont(family, style, size)
	c := op.Style.Color
	pdf.SetTextColor(int(c.R), int(c.G), int(c.B))
	pdf.SetAlpha(c.Opacity(), "Normal")
	txt := tr(op.Text)
	dx, dy := textOrigin(op.Style, pdf.GetStringWidth(txt), Metrics{Ascent: pdfAscent * size, Descent: pdfDescent * size})
	if op.Rotate != 0 {
		pdf.TransformBegin()
		// gofpdf rotates counter-clockwise; canvas degrees run clockwise
		pdf.TransformRotate(-op.Rotate, op.At.X, op.At.Y)
		defer pdf.TransformEnd()
	}
	pdf.Text(op.At.X+dx, op.At.Y+dy, txt)
}
