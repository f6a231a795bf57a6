/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"fmt"
	"strconv"
	"strings"

	"warehousemap/internal/config"
	"warehousemap/internal/editor"
)

// Choices offered by the property panel.
var (
	fontFamilies = []string{"Arial", "Helvetica", "Times New Roman", "Courier New", "Verdana"}
	lineStyles   = []string{"solid", "dashed", "dotted"}
	directions   = []string{"horizontal", "vertical"}
	alignments   = []string{"left", "center", "right"}
)

func parseNumber(field, s string) (float64, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", field, s)
	}
	return v, nil
}

func parseCount(field, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a whole number", field, s)
	}
	return v, nil
}

func formatNumber(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// statusText is the one-line summary under the canvas.
func statusText(c *editor.Controller) string {
	st := c.Stats()
	parts := []string{
		"Tool: " + string(c.Tool()),
		fmt.Sprintf("Zoom: %.0f%%", c.Zoom()*100),
		fmt.Sprintf("%d lotes, %d unidades", st.Rectangles, st.TotalQuantity),
	}
	if !c.Admin() {
		parts[0] = "View only"
	}
	if c.Modified() {
		parts = append(parts, "unsaved changes")
	}
	return strings.Join(parts, "  |  ")
}

// editorOptions maps the editor section of the user config onto controller options.
func editorOptions(cfg config.EditorConfig, warehouseID int64, admin bool) editor.Options {
	o := editor.Options{
		Admin:        admin,
		WarehouseID:  warehouseID,
		MinSize:      cfg.MinSize,
		ManualLabels: cfg.ManualLabels,
		SmartGuides:  cfg.SmartGuides,
	}
	if cfg.Snap {
		o.GridSnap = cfg.GridSize
	}
	return o
}
