/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"warehousemap/internal/domain"
	"warehousemap/internal/editor"
	"warehousemap/internal/labels"
	"warehousemap/internal/render"
	"warehousemap/internal/storage"
	"warehousemap/internal/telemetry"
	"warehousemap/internal/ui"
)

// parseArgs lets flags appear before, between or after positional arguments.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, usageError("%s: %v", fs.Name(), err)
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseWarehouseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, usageError("warehouse id must be a positive integer, got %q", s)
	}
	return id, nil
}

func (c *cli) openDir(dir string) (*storage.LayoutHandle, error) {
	abs, _ := filepath.Abs(dir)
	c.log.Info("open layout", slog.String("root", abs))
	h, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	if h.Recovered {
		_, _ = fmt.Fprintln(c.out, "Warning: layout.json was unreadable; loaded the newest backup")
	}
	return c.keep(h), nil
}

func (c *cli) initLayout(args []string) error {
	if len(args) < 3 {
		return usageError("init requires <dir> <warehouseId> <name>")
	}
	id, err := parseWarehouseID(args[1])
	if err != nil {
		return err
	}
	abs, _ := filepath.Abs(args[0])
	name := strings.Join(args[2:], " ")
	c.log.Info("init layout", slog.String("root", abs), slog.Int64("warehouse", id), slog.String("name", name))
	h, err := storage.InitLayout(abs, domain.Layout{WarehouseID: id, Name: name})
	if err != nil {
		return err
	}
	c.keep(h)
	_, _ = fmt.Fprintln(c.out, "Created layout at", abs)
	return nil
}

func (c *cli) open(args []string) error {
	if len(args) < 1 {
		return usageError("open requires <dir>")
	}
	h, err := c.openDir(args[0])
	if err != nil {
		return err
	}
	lay := h.Layout
	_, _ = fmt.Fprintf(c.out, "Layout: %s\n", lay.Name)
	_, _ = fmt.Fprintf(c.out, "Warehouse: %d\n", lay.WarehouseID)
	_, _ = fmt.Fprintf(c.out, "Shapes: %d\n", len(lay.Shapes))
	if lay.Width > 0 && lay.Height > 0 {
		_, _ = fmt.Fprintf(c.out, "Canvas: %.0fx%.0f\n", lay.Width, lay.Height)
	}
	if lay.BackgroundImage != "" {
		_, _ = fmt.Fprintf(c.out, "Background: %s\n", h.BackgroundPath())
	}
	_, _ = fmt.Fprintln(c.out, "Root:", h.Root)
	return nil
}

func (c *cli) validate(args []string) error {
	if len(args) < 1 {
		return usageError("validate requires <file>")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	lay, err := storage.DecodeLayout(data)
	if err != nil {
		return err
	}
	warnings := 0
	for i, s := range lay.Shapes {
		if s.Kind != domain.KindRectangle {
			continue
		}
		if err := domain.ValidateAddressLabel(s.Label); err != nil {
			warnings++
			_, _ = fmt.Fprintf(c.out, "shape %d: %v\n", i, err)
		}
	}
	_, _ = fmt.Fprintf(c.out, "valid: warehouse %d, %d shapes, %d label warnings\n", lay.WarehouseID, len(lay.Shapes), warnings)
	return nil
}

func (c *cli) stats(args []string) error {
	if len(args) < 1 {
		return usageError("stats requires <dir>")
	}
	h, err := c.openDir(args[0])
	if err != nil {
		return err
	}
	st := editor.ComputeStats(h.Layout.Shapes)
	unlabeled := 0
	for _, s := range h.Layout.Shapes {
		if s.Kind == domain.KindRectangle && s.Label == "" {
			unlabeled++
		}
	}
	_, _ = fmt.Fprintf(c.out, "Lots: %d\n", st.Rectangles)
	_, _ = fmt.Fprintf(c.out, "Units: %d\n", st.TotalQuantity)
	_, _ = fmt.Fprintf(c.out, "Unlabeled lots: %d\n", unlabeled)
	return nil
}

func (c *cli) render(args []string) error {
	fs := c.flagSet("render")
	grid := fs.Bool("grid", false, "draw the grid")
	zoom := fs.Float64("zoom", 1, "scale factor")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) < 2 {
		return usageError("render requires <dir> <out>")
	}
	format, err := render.FormatOf(pos[1])
	if err != nil {
		return usageError("%v", err)
	}
	if *zoom < 0.1 || *zoom > 4 {
		return usageError("zoom must be between 0.1 and 4")
	}
	h, err := c.openDir(pos[0])
	if err != nil {
		return err
	}
	bg, err := h.LoadBackground()
	if err != nil {
		c.log.Warn("background image not loaded", slog.Any("err", err))
	}
	sc := render.LayoutScene(h.Layout, *zoom, *grid, bg)
	if err := writeFile(pos[1], func(w io.Writer) error { return render.Encode(w, format, sc) }); err != nil {
		return err
	}
	telemetry.Default().LayoutRendered(format, len(h.Layout.Shapes))
	_, _ = fmt.Fprintf(c.out, "Rendered %d shapes to %s\n", len(h.Layout.Shapes), pos[1])
	return nil
}

func (c *cli) labels(args []string) error {
	fs := c.flagSet("labels")
	cfg := labels.DefaultSheet()
	fs.IntVar(&cfg.Cols, "cols", cfg.Cols, "labels per row")
	fs.IntVar(&cfg.Rows, "rows", cfg.Rows, "rows per sheet")
	pos, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(pos) < 2 {
		return usageError("labels requires <dir> <out.pdf>")
	}
	h, err := c.openDir(pos[0])
	if err != nil {
		return err
	}
	if len(labels.Collect(h.Layout)) == 0 {
		return labels.ErrNoLabels
	}
	n := 0
	err = writeFile(pos[1], func(w io.Writer) error {
		var err error
		n, err = labels.SheetPDF(w, h.Layout, cfg)
		return err
	})
	if err != nil {
		return err
	}
	telemetry.Event(telemetry.EventLabelsPrinted, map[string]any{"labels": n})
	_, _ = fmt.Fprintf(c.out, "Printed %d labels to %s\n", n, pos[1])
	return nil
}

func (c *cli) ui(args []string) error {
	var dir string
	if len(args) > 0 {
		dir = args[0]
	}
	return ui.Run(dir)
}

// writeFile creates path and removes it again when fn fails.
func writeFile(path string, fn func(io.Writer) error) (err error) {
	if d := filepath.Dir(path); d != "." {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()
	if err := fn(f); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
