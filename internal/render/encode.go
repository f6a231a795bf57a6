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
	"io"
	"path/filepath"
	"strings"

	"warehousemap/internal/domain"
)

// Output formats.
const (
	FormatPNG = "png"
	FormatSVG = "svg"
	FormatPDF = "pdf"
)

var contentTypes = map[string]string{
	FormatPNG: "image/png",
	FormatSVG: "image/svg+xml",
	FormatPDF: "application/pdf",
}

// LayoutScene builds the export frame of a stored layout: no selection, no hover.
// bg may be nil.
func LayoutScene(l domain.Layout, zoom float64, grid bool, bg image.Image) Scene {
	sc := Build(State{
		Shapes: l.Shapes,
		View: View{
			Width:      l.Width,
			Height:     l.Height,
			Zoom:       zoom,
			Grid:       grid,
			Selected:   -1,
			Background: bg,
		},
	})
	sc.Title = l.Name
	return sc
}

// FormatOf derives the format from a file name's extension.
func FormatOf(path string) (string, error) {
	f := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if _, ok := contentTypes[f]; !ok {
		return "", fmt.Errorf("unsupported output format %q (want png, svg or pdf)", filepath.Ext(path))
	}
	return f, nil
}

// ContentType is the MIME type of format, or "" when unknown.
func ContentType(format string) string { return contentTypes[format] }

// Encode writes sc in format.
func Encode(w io.Writer, format string, sc Scene) error {
	switch format {
	case FormatPNG:
		return EncodePNG(w, sc)
	case FormatSVG:
		return WriteSVG(w, sc)
	case FormatPDF:
		return WritePDF(w, sc)
	}
	return fmt.Errorf("unsupported output format %q", format)
}
