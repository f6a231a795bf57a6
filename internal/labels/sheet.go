/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package labels prints QR address labels for the lots of a layout.
package labels

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/skip2/go-qrcode"

	"warehousemap/internal/domain"
	applog "warehousemap/internal/log"
)

// ErrNoLabels is returned when a layout has no labeled rectangles.
var ErrNoLabels = errors.New("layout has no labeled lots")

// SheetConfig is the grid geometry of one A4 sheet, in millimetres.
type SheetConfig struct {
	Cols       int
	Rows       int
	MarginTop  float64
	MarginLeft float64
	GapX       float64
	GapY       float64
	Border     bool // draw cut lines
}

func DefaultSheet() SheetConfig {
	return SheetConfig{Cols: 3, Rows: 8, MarginTop: 10, MarginLeft: 8, GapX: 2, GapY: 2, Border: true}
}

func (c SheetConfig) withDefaults() SheetConfig {
	d := DefaultSheet()
	if c.Cols <= 0 {
		c.Cols = d.Cols
	}
	if c.Rows <= 0 {
		c.Rows = d.Rows
	}
	return c
}

// Label is one printed address.
type Label struct {
	Text     string
	Quantity int
	Content  string
}

// QRContent is the payload scanners resolve back to a lot.
func QRContent(warehouseID int64, label string) string {
	return fmt.Sprintf("WMAP/%d/%s", warehouseID, strings.ToUpper(strings.TrimSpace(label)))
}

// Collect returns the labeled lots of l sorted by label. Duplicates print once.
func Collect(l domain.Layout) []Label {
	seen := map[string]bool{}
	var out []Label
	for _, s := range l.Shapes {
		if !s.IsAddress() {
			continue
		}
		key := strings.ToUpper(strings.TrimSpace(s.Label))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, Label{Text: strings.TrimSpace(s.Label), Quantity: s.Quantity, Content: QRContent(l.WarehouseID, s.Label)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Text < out[j].Text })
	return out
}

// SheetPDF writes the label sheets for l and returns how many labels were printed.
func SheetPDF(w io.Writer, l domain.Layout, cfg SheetConfig) (int, error) {
	lg := applog.WithOperation(applog.WithComponent("labels"), "sheet")
	items := Collect(l)
	if len(items) == 0 {
		return 0, ErrNoLabels
	}
	cfg = cfg.withDefaults()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	if l.Name != "" {
		pdf.SetTitle(l.Name, true)
	}
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, pageH := pdf.GetPageSize()
	labelW := (pageW - 2*cfg.MarginLeft - float64(cfg.Cols-1)*cfg.GapX) / float64(cfg.Cols)
	labelH := (pageH - 2*cfg.MarginTop - float64(cfg.Rows-1)*cfg.GapY) / float64(cfg.Rows)
	if labelW <= 0 || labelH <= 0 {
		return 0, fmt.Errorf("sheet grid %dx%d does not fit the page", cfg.Cols, cfg.Rows)
	}
	perPage := cfg.Cols * cfg.Rows

	for i, it := range items {
		if i%perPage == 0 {
			pdf.AddPage()
			if l.Name != "" {
				pdf.SetFont("Helvetica", "", 7)
				pdf.SetXY(cfg.MarginLeft, 2)
				pdf.CellFormat(pageW-2*cfg.MarginLeft, 4, tr(l.Name), "", 0, "L", false, 0, "")
			}
		}
		k := i % perPage
		x := cfg.MarginLeft + float64(k%cfg.Cols)*(labelW+cfg.GapX)
		y := cfg.MarginTop + float64(k/cfg.Cols)*(labelH+cfg.GapY)

		png, err := qrcode.Encode(it.Content, qrcode.Medium, 256)
		if err != nil {
			return i, fmt.Errorf("encode qr for %q: %w", it.Text, err)
		}
		name := fmt.Sprintf("qr_%d", i)
		opt := gofpdf.ImageOptions{ImageType: "PNG", ReadDpi: true}
		pdf.RegisterImageOptionsReader(name, opt, bytes.NewReader(png))

		qr := min(labelH*0.85, labelW*0.45)
		pdf.ImageOptions(name, x+1, y+(labelH-qr)/2, qr, qr, false, opt, 0, "")

		textX := x + qr + 3
		textW := labelW - qr - 4
		pdf.SetFont("Helvetica", "B", 16)
		pdf.SetXY(textX, y+labelH/2-7)
		pdf.CellFormat(textW, 8, tr(it.Text), "", 0, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 7)
		pdf.SetXY(textX, y+labelH/2+1)
		pdf.CellFormat(textW, 4, tr(it.Content), "", 0, "L", false, 0, "")
		if cfg.Border {
			pdf.SetDrawColor(200, 200, 200)
			pdf.SetLineWidth(0.1)
			pdf.Rect(x, y, labelW, labelH, "D")
		}
	}
	if err := pdf.Output(w); err != nil {
		return 0, fmt.Errorf("write label sheet: %w", err)
	}
	lg.Info("label sheet written", slog.Int64("warehouse", l.WarehouseID), slog.Int("labels", len(items)))
	return len(items), nil
}
