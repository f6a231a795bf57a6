//go:build fyne && cgo

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
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"warehousemap/internal/backend"
	"warehousemap/internal/config"
	"warehousemap/internal/crash"
	"warehousemap/internal/domain"
	"warehousemap/internal/editor"
	"warehousemap/internal/labels"
	applog "warehousemap/internal/log"
	"warehousemap/internal/render"
	"warehousemap/internal/storage"
	"warehousemap/internal/telemetry"
	"warehousemap/internal/version"
)

const appTitle = "Warehouse Map"

// Run starts the desktop editor on the layout directory dir. Without dir the last
// opened layout is reopened, or the user picks one.
func Run(dir string) error {
	cfg, token, err := config.Load()
	if err != nil {
		applog.Init(applog.FromEnv())
		applog.WithComponent("ui").Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	} else {
		applog.Init(cfg.Logging.LogOptions())
	}
	l := applog.WithComponent("ui")
	l.Info("starting UI", slog.String("version", version.String()))

	tc := telemetry.New(telemetry.FromEnv().Merge(cfg.General.TelemetryOptIn, cfg.General.TelemetryURL))
	telemetry.SetDefault(tc)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		tc.Flush(ctx)
		cancel()
		tc.Close()
	}()

	a := app.NewWithID("warehousemap")
	applyTheme(a, cfg.General.Theme)
	w := a.NewWindow(appTitle)
	prefs := a.Preferences()
	winW := max(prefs.IntWithFallback("window.width", 1280), 800)
	winH := max(prefs.IntWithFallback("window.height", 800), 600)
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	e := &editorWindow{app: a, win: w, cfg: cfg, token: token, log: l}
	defer crash.RecoverFunc(e.snapshot)

	w.SetMainMenu(e.menu())
	w.SetCloseIntercept(e.close)
	e.addShortcuts()

	if dir == "" {
		dir = prefs.String("layout.last")
	}
	if dir == "" {
		e.showWelcome()
	} else if err := e.open(dir); err != nil {
		l.Error("open layout failed", slog.String("dir", dir), slog.Any("err", err))
		e.showWelcome()
		dialog.ShowError(err, w)
	}

	w.ShowAndRun()
	return nil
}

func applyTheme(a fyne.App, name string) {
	switch strings.ToLower(name) {
	case "dark":
		a.Settings().SetTheme(theme.DarkTheme())
	case "light":
		a.Settings().SetTheme(theme.LightTheme())
	}
}

// editorWindow holds the open layout and the widgets bound to it. All methods run on
// the fyne event loop; background work comes back through fyne.Do.
type editorWindow struct {
	app   fyne.App
	win   fyne.Window
	cfg   config.AppConfig
	token string
	log   *slog.Logger

	ws      *storage.Workspace
	bg      image.Image
	ctrl    *editor.Controller
	session *editor.Session
	saver   editor.Saver
	checker editor.StockChecker

	canvas *MapCanvas
	scroll *container.Scroll
	panel  *propertyPanel
	status *widget.Label
	tool   *widget.Select

	lastZoom  float64
	panelSel  int
	panelRev  uint64
	lastNote  string
	deleting  bool
	startSave time.Time
}

func (e *editorWindow) showWelcome() {
	title := widget.NewLabel("No layout open")
	title.TextStyle = fyne.TextStyle{Bold: true}
	hint := widget.NewLabel("Create one with 'warehousemap init <dir> <warehouseId> <name>' or open an existing folder.")
	hint.Wrapping = fyne.TextWrapWord
	open := widget.NewButtonWithIcon("Open Layout…", theme.FolderOpenIcon(), e.chooseLayout)
	e.win.SetContent(container.NewCenter(container.NewVBox(title, hint, open)))
}

func (e *editorWindow) chooseLayout() {
	if e.ctrl != nil && e.ctrl.Modified() {
		dialog.ShowInformation("Open Layout", "Save or undo the current changes first.", e.win)
		return
	}
	fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, err error) {
		if err != nil {
			dialog.ShowError(err, e.win)
			return
		}
		if uri == nil {
			return
		}
		if err := e.open(uri.Path()); err != nil {
			e.log.Error("open layout failed", slog.Any("err", err))
			dialog.ShowError(err, e.win)
		}
	}, e.win)
	fd.Show()
}

// open loads dir and rebuilds the editor around it.
func (e *editorWindow) open(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ws, err := storage.OpenWorkspace(ctx, abs)
	if err != nil {
		return err
	}
	if e.ws != nil {
		_ = e.ws.Close()
	}
	e.ws = ws
	lay := ws.Handle.Layout
	e.log.Info("open layout", slog.String("root", abs), slog.Int64("warehouse", lay.WarehouseID), slog.Int("shapes", len(lay.Shapes)))

	e.saver, e.checker = ws, ws
	if e.token != "" && e.cfg.Backend.BaseURL != "" {
		c := backend.NewClientWithOptions(e.cfg.Backend.BaseURL, e.token, backend.ClientOptions{
			Timeout:     e.cfg.Backend.Timeout(),
			InsecureTLS: e.cfg.Backend.TLSInsecure,
		})
		e.saver = storage.Mirror{Remote: c, Handle: ws.Handle}
		e.checker = c
		e.log.Info("saving through map server", slog.String("url", e.cfg.Backend.BaseURL))
	}

	opts := editorOptions(e.cfg.Editor, lay.WarehouseID, true)
	opts.CanvasWidth, opts.CanvasHeight = lay.Width, lay.Height
	opts.Checker = e.checker
	e.ctrl = editor.NewController(lay.Shapes, opts)
	if e.cfg.Editor.Zoom > 0 {
		e.ctrl.SetZoom(e.cfg.Editor.Zoom)
	}
	if !e.cfg.Editor.Grid {
		e.ctrl.ToggleGrid()
	}
	e.session = editor.NewSession(e.ctrl, e.saver)

	e.bg, err = ws.Handle.LoadBackground()
	if err != nil {
		e.log.Warn("background image not loaded", slog.Any("err", err))
	}
	e.canvas = NewMapCanvas(e.ctrl, e.bg)
	e.canvas.OnOutcome = e.outcome
	e.canvas.OnKey = e.keyAction
	e.canvas.OnInfo = func(i editor.Info) { dialog.ShowInformation("Lote", i.String(), e.win) }
	e.scroll = container.NewScroll(e.canvas)
	e.status = widget.NewLabel("")
	e.panel = newPropertyPanel(e.ctrl, e.applied)
	e.panelSel, e.panelRev = -1, e.ctrl.Revision()
	e.lastZoom = e.ctrl.Zoom()
	e.lastNote = ""

	split := container.NewHSplit(e.scroll, e.panel.object())
	split.Offset = 0.75
	e.win.SetContent(container.NewBorder(e.toolbar(), e.status, nil, nil, split))
	e.win.SetTitle(fmt.Sprintf("%s - %s", appTitle, lay.Name))
	e.app.Preferences().SetString("layout.last", abs)
	if ws.Handle.Recovered {
		dialog.ShowInformation("Layout recovered", "layout.json could not be read. The newest backup was loaded instead.", e.win)
	}
	e.refresh()
	return nil
}

func (e *editorWindow) toolbar() fyne.CanvasObject {
	names := make([]string, len(editor.Tools))
	for i, t := range editor.Tools {
		names[i] = string(t)
	}
	e.tool = widget.NewSelect(names, func(s string) {
		t, err := editor.ParseTool(s)
		if err != nil || t == e.ctrl.Tool() {
			return
		}
		if err := e.ctrl.SetTool(t); err != nil {
			dialog.ShowError(err, e.win)
			return
		}
		e.canvas.Refresh()
		e.refresh()
	})
	e.tool.SetSelected(string(e.ctrl.Tool()))

	bar := widget.NewToolbar(
		widget.NewToolbarAction(theme.DocumentSaveIcon(), e.save),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ContentUndoIcon(), func() { e.edit(e.ctrl.Undo) }),
		widget.NewToolbarAction(theme.ContentRedoIcon(), func() { e.edit(e.ctrl.Redo) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.ZoomInIcon(), func() { e.view(func() { e.ctrl.ZoomBy(editor.ZoomStep) }) }),
		widget.NewToolbarAction(theme.ZoomOutIcon(), func() { e.view(func() { e.ctrl.ZoomBy(-editor.ZoomStep) }) }),
		widget.NewToolbarAction(theme.ZoomFitIcon(), func() { e.view(e.ctrl.ResetZoom) }),
		widget.NewToolbarAction(theme.GridIcon(), func() { e.view(e.ctrl.ToggleGrid) }),
		widget.NewToolbarSeparator(),
		widget.NewToolbarAction(theme.MoveUpIcon(), func() { e.edit(e.ctrl.BringForward) }),
		widget.NewToolbarAction(theme.MoveDownIcon(), func() { e.edit(e.ctrl.SendBackward) }),
		widget.NewToolbarAction(theme.DeleteIcon(), func() { e.keyAction(editor.KeyDelete) }),
	)
	return container.NewBorder(nil, nil, e.tool, nil, bar)
}

func (e *editorWindow) menu() *fyne.MainMenu {
	openItem := fyne.NewMenuItem("Open Layout…", e.chooseLayout)
	saveItem := fyne.NewMenuItem("Save", e.save)
	openItem.Shortcut = &desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}
	fileMenu := fyne.NewMenu("File", openItem, saveItem,
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Connect to Map Server…", e.connect),
	)
	exportMenu := fyne.NewMenu("Export",
		fyne.NewMenuItem("PNG", func() { e.export(render.FormatPNG) }),
		fyne.NewMenuItem("SVG", func() { e.export(render.FormatSVG) }),
		fyne.NewMenuItem("PDF", func() { e.export(render.FormatPDF) }),
		fyne.NewMenuItemSeparator(),
		fyne.NewMenuItem("Address Labels (PDF)", e.printLabels),
	)
	aboutMenu := fyne.NewMenu("About", fyne.NewMenuItem("About", func() {
		dialog.ShowInformation("About", fmt.Sprintf("%s %s", appTitle, version.String()), e.win)
	}))
	return fyne.NewMainMenu(fileMenu, exportMenu, aboutMenu)
}

// addShortcuts routes the Ctrl shortcuts to the controller even when the canvas does
// not have focus.
func (e *editorWindow) addShortcuts() {
	for _, k := range []fyne.KeyName{fyne.KeyS, fyne.KeyZ, fyne.KeyY} {
		name := strings.ToLower(string(k))
		e.win.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: k, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) {
			if e.canvas != nil {
				e.canvas.key(editor.Key{Name: name, Ctrl: true})
			}
		})
	}
}

func (e *editorWindow) ready() bool { return e.ctrl != nil }

// edit runs a controller call that may change the layout.
func (e *editorWindow) edit(fn func() (bool, error)) {
	if !e.ready() {
		return
	}
	changed, err := fn()
	if err != nil {
		dialog.ShowError(err, e.win)
		return
	}
	if changed {
		e.canvas.Refresh()
	}
	e.refresh()
}

// view applies a zoom or grid change.
func (e *editorWindow) view(fn func()) {
	if !e.ready() {
		return
	}
	fn()
	e.canvas.Refresh()
	e.refresh()
}

func (e *editorWindow) outcome(o editor.Outcome) {
	e.session.Notify(o.Notices...)
	if o.Delete != nil {
		e.confirmDelete(*o.Delete)
	}
	e.refresh()
}

func (e *editorWindow) keyAction(a editor.KeyAction) {
	if !e.ready() {
		return
	}
	switch a {
	case editor.KeySave:
		e.save()
	case editor.KeyDelete:
		i, ok := e.ctrl.Selected()
		if !ok {
			dialog.ShowInformation("Delete", "Nothing selected.", e.win)
			return
		}
		req, err := e.ctrl.PrepareDelete(i)
		if err != nil {
			dialog.ShowError(err, e.win)
			return
		}
		e.confirmDelete(req)
	}
	e.refresh()
}

func (e *editorWindow) applied(notices []editor.Notice, err error) {
	if err != nil {
		dialog.ShowError(err, e.win)
		return
	}
	e.session.Notify(notices...)
	e.canvas.Refresh()
	e.refresh()
}

// refresh syncs the status line, the tool picker and, when the selection or the layout
// changed, the property panel.
func (e *editorWindow) refresh() {
	if !e.ready() {
		return
	}
	if z := e.ctrl.Zoom(); z != e.lastZoom {
		e.lastZoom = z
		e.scroll.Refresh()
	}
	if e.tool.Selected != string(e.ctrl.Tool()) {
		e.tool.SetSelected(string(e.ctrl.Tool()))
	}
	sel, ok := e.ctrl.Selected()
	if !ok {
		sel = -1
	}
	if sel != e.panelSel || e.ctrl.Revision() != e.panelRev {
		e.panelSel, e.panelRev = sel, e.ctrl.Revision()
		e.panel.load()
	}
	for _, n := range e.session.Notices() {
		e.lastNote = fmt.Sprintf("%s: %s", n.Level, n.Text)
		if n.Level == editor.NoticeError {
			e.log.Warn("editor notice", slog.String("text", n.Text))
		}
	}
	text := statusText(e.ctrl)
	if e.session.Saving() {
		text += "  |  saving..."
	}
	if e.lastNote != "" {
		text += "  |  " + e.lastNote
	}
	e.status.SetText(text)
	title := fmt.Sprintf("%s - %s", appTitle, e.ws.Handle.Layout.Name)
	if e.ctrl.Modified() {
		title += " *"
	}
	e.win.SetTitle(title)
}

// confirmDelete runs the stock check off the event loop, then asks before removing.
func (e *editorWindow) confirmDelete(req editor.DeleteRequest) {
	if e.deleting {
		return
	}
	e.deleting = true
	timeout := e.cfg.Backend.Timeout()
	checker := e.checker
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := req.Check(ctx, checker)
		fyne.Do(func() {
			if err != nil {
				e.deleting = false
				e.log.Info("delete blocked", slog.String("label", req.Shape.Label), slog.Any("err", err))
				dialog.ShowError(err, e.win)
				return
			}
			dialog.ShowConfirm("Delete", req.Prompt(), func(ok bool) {
				e.deleting = false
				if !ok {
					return
				}
				if err := e.ctrl.CommitDelete(req); err != nil {
					dialog.ShowError(err, e.win)
					return
				}
				e.canvas.Refresh()
				e.refresh()
			}, e.win)
		})
	}()
}

func (e *editorWindow) save() {
	if !e.ready() {
		return
	}
	job, err := e.session.BeginSave()
	switch {
	case errors.Is(err, editor.ErrNotModified):
		e.lastNote = "Nothing to save"
		e.refresh()
		return
	case errors.Is(err, editor.ErrSaveInFlight):
		return
	case err != nil:
		dialog.ShowError(err, e.win)
		return
	}
	e.startSave = time.Now()
	e.refresh()
	saver, timeout := e.saver, e.cfg.Backend.Timeout()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = job.Run(ctx, saver)
		fyne.Do(func() {
			if err := e.session.FinishSave(job); err != nil {
				dialog.ShowError(err, e.win)
			} else {
				telemetry.Default().LayoutSaved(len(job.Shapes), time.Since(e.startSave))
			}
			e.refresh()
		})
	}()
}

// current is the layout as edited, for exports and crash snapshots.
func (e *editorWindow) current() domain.Layout {
	l := e.ws.Handle.Layout
	l.Shapes = e.ctrl.Shapes()
	return l
}

func (e *editorWindow) snapshot() *storage.LayoutHandle {
	if e.ws == nil {
		return nil
	}
	h := *e.ws.Handle
	if e.ctrl != nil {
		h.Layout = e.current()
	}
	return &h
}

func (e *editorWindow) export(format string) {
	if !e.ready() {
		dialog.ShowInformation("Export", "No layout open.", e.win)
		return
	}
	lay := e.current()
	st := render.StateOf(e.ctrl, e.bg)
	st.Zoom, st.Selected, st.Hover, st.Guides = 1, -1, nil, nil
	sc := render.Build(st)
	sc.Title = lay.Name
	path := e.ws.Handle.ExportPath(fmt.Sprintf("warehouse-%d.%s", lay.WarehouseID, format))
	if err := writeFile(path, func(f *os.File) error { return render.Encode(f, format, sc) }); err != nil {
		e.log.Error("export failed", slog.String("format", format), slog.Any("err", err))
		dialog.ShowError(err, e.win)
		return
	}
	telemetry.Default().LayoutRendered(format, len(lay.Shapes))
	dialog.ShowInformation("Export", "Exported to "+path, e.win)
}

func (e *editorWindow) printLabels() {
	if !e.ready() {
		dialog.ShowInformation("Labels", "No layout open.", e.win)
		return
	}
	lay := e.current()
	path := e.ws.Handle.ExportPath(fmt.Sprintf("labels-%d.pdf", lay.WarehouseID))
	n := 0
	err := writeFile(path, func(f *os.File) error {
		var err error
		n, err = labels.SheetPDF(f, lay, labels.DefaultSheet())
		return err
	})
	if err != nil {
		dialog.ShowError(err, e.win)
		return
	}
	telemetry.Event(telemetry.EventLabelsPrinted, map[string]any{"labels": n})
	dialog.ShowInformation("Labels", fmt.Sprintf("%d labels written to %s", n, path), e.win)
}

func writeFile(path string, fn func(*os.File) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// connect exchanges the server's admin key for a bearer token and keeps it in the
// keychain. The new token applies the next time a layout is opened.
func (e *editorWindow) connect() {
	urlEntry := widget.NewEntry()
	urlEntry.SetText(e.cfg.Backend.BaseURL)
	keyEntry := widget.NewPasswordEntry()
	subjectEntry := widget.NewEntry()
	subjectEntry.SetPlaceHolder("admin")
	form := dialog.NewForm("Connect to Map Server", "Connect", "Cancel", []*widget.FormItem{
		widget.NewFormItem("Server URL", urlEntry),
		widget.NewFormItem("Admin key", keyEntry),
		widget.NewFormItem("User", subjectEntry),
	}, func(ok bool) {
		if !ok {
			return
		}
		base := strings.TrimSpace(urlEntry.Text)
		key, subject := keyEntry.Text, strings.TrimSpace(subjectEntry.Text)
		opts := backend.ClientOptions{Timeout: e.cfg.Backend.Timeout(), InsecureTLS: e.cfg.Backend.TLSInsecure}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), opts.Timeout)
			defer cancel()
			tok, err := backend.NewClientWithOptions(base, "", opts).IssueToken(ctx, subject, key, 0)
			fyne.Do(func() {
				if err != nil {
					dialog.ShowError(err, e.win)
					return
				}
				e.cfg.Backend.BaseURL = base
				e.token = tok.Token
				if err := config.Save(e.cfg, e.token); err != nil {
					e.log.Error("save config failed", slog.Any("err", err))
					dialog.ShowError(err, e.win)
					return
				}
				dialog.ShowInformation("Connected", "Token stored. Reopen the layout to save through the server.", e.win)
			})
		}()
	}, e.win)
	form.Resize(fyne.NewSize(420, 220))
	form.Show()
}

func (e *editorWindow) close() {
	sz := e.win.Canvas().Size()
	prefs := e.app.Preferences()
	prefs.SetInt("window.width", int(sz.Width))
	prefs.SetInt("window.height", int(sz.Height))
	if e.ready() && (e.ctrl.Modified() || e.session.Saving()) {
		dialog.ShowConfirm("Unsaved changes", "The layout has unsaved changes. Close anyway?", func(ok bool) {
			if ok {
				e.quit()
			}
		}, e.win)
		return
	}
	e.quit()
}

func (e *editorWindow) quit() {
	if e.ws != nil {
		_ = e.ws.Close()
	}
	e.win.Close()
}
