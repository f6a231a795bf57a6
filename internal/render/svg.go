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
	"encoding/base64"
	"fmt"
	"image/png"
	"io"
	"strings"

	"warehousemap/internal/domain"
	"warehousemap/internal/vector"
)

// WriteSVG writes the scene as a standalone SVG document. The viewBox is in canvas
// units; width and height carry the zoom.
func WriteSVG(w io.Writer, sc Scene) error {
	var buf bytes.Buffer
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(&buf, format, args...)
	}
	pw, ph := PixelSize(sc)
	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<svg xmlns=\"http://www.w3.org/2000/svg\" version=\"1.1\" width=\"%d\" height=\"%d\" viewBox=\"0 0 %g %g\">\n", pw, ph, sc.Width, sc.Height)
	if sc.Title != "" {
		wf("  <title>%s</title>\n", escText(sc.Title))
	}
	for _, op := range sc.Ops {
		switch op.Kind {
		case OpFill:
			if op.Fill.A == 0 || op.Path.Empty() {
				continue
			}
			wf("  <path d=\"%s\" fill=\"%s\"%s/>\n", pathData(op.Path), op.Fill.Hex(), opacityAttr("fill-opacity", op.Fill))
		case OpStroke:
			if !op.Stroke.Enabled || op.Stroke.Width <= 0 {
				continue
			}
			wf("  <path d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"%g\"%s%s/>\n",
				pathData(op.Path), op.Stroke.Color.Hex(), op.Stroke.Width,
				opacityAttr("stroke-opacity", op.Stroke.Color), dashAttr(op.Stroke.Dash))
		case OpText:
			wf("  %s\n", svgText(op))
		case OpImage:
			if op.Image == nil {
				continue
			}
			var img bytes.Buffer
			if err := png.Encode(&img, op.Image); err != nil {
				return fmt.Errorf("encode background: %w", err)
			}
			wf("  <image x=\"%g\" y=\"%g\" width=\"%g\" height=\"%g\" opacity=\"%g\" preserveAspectRatio=\"none\" href=\"data:image/png;base64,%s\"/>\n",
				op.Dst.X, op.Dst.Y, op.Dst.W, op.Dst.H, op.Alpha, base64.StdEncoding.EncodeToString(img.Bytes()))
		}
	}
	wf("</svg>\n")
	if werr != nil {
		return fmt.Errorf("build svg: %w", werr)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("write svg: %w", err)
	}
	return nil
}

func pathData(p vector.Path) string {
	var b strings.Builder
	for _, c := range p.Cmds {
		switch c.Op {
		case vector.MoveTo:
			fmt.Fprintf(&b, "M%g %g", c.P.X, c.P.Y)
		case vector.LineTo:
			fmt.Fprintf(&b, "L%g %g", c.P.X, c.P.Y)
		case vector.Close:
			b.WriteString("Z")
		}
	}
	return b.String()
}

func opacityAttr(name string, c vector.Color) string {
	if c.A == 255 {
		return ""
	}
	return fmt.Sprintf(" %s=\"%.3g\"", name, c.Opacity())
}

func dashAttr(d []float64) string {
	if len(d) == 0 {
		return ""
	}
	parts := make([]string, len(d))
	for i, v := range d {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return fmt.Sprintf(" stroke-dasharray=\"%s\"", strings.Join(parts, ","))
}

func svgText(op Op) string {
	st := op.Style
	anchor := "start"
	switch st.Align {
	case domain.AlignCenter:
		anchor = "middle"
	case domain.AlignRight:
		anchor = "end"
	}
	baseline := "hanging"
	if st.Baseline == BaselineMiddle {
		baseline = "middle"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "<text x=\"%g\" y=\"%g\" font-family=\"%s\" font-size=\"%g\" fill=\"%s\" text-anchor=\"%s\" dominant-baseline=\"%s\"",
		op.At.X, op.At.Y, escAttr(st.Family+", sans-serif"), st.Size, st.Color.Hex(), anchor, baseline)
	if st.Color.A != 255 {
		fmt.Fprintf(&b, " fill-opacity=\"%.3g\"", st.Color.Opacity())
	}
	if st.Bold {
		b.WriteString(" font-weight=\"bold\"")
	}
	if st.Italic {
		b.WriteString(" font-style=\"italic\"")
	}
	if st.Underline {
		b.WriteString(" text-decoration=\"underline\"")
	}
	if op.Rotate != 0 {
		fmt.Fprintf(&b, " transform=\"rotate(%g %g %g)\"", op.Rotate, op.At.X, op.At.Y)
	}
	fmt.Fprintf(&b, ">%s</text>", escText(op.Text))
	return b.String()
}

var (
	attrEscaper = strings.NewReplacer("&", "&amp;", "\"", "&quot;", "<", "&lt;", "\n", " ", "\r", "")
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

func escAttr(s string) string { return attrEscaper.Replace(s) }
func escText(s string) string { return textEscaper.Replace(s) }
