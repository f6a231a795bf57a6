/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"warehousemap/internal/config"
	"warehousemap/internal/crash"
	applog "warehousemap/internal/log"
	"warehousemap/internal/storage"
	"warehousemap/internal/telemetry"
	"warehousemap/internal/version"
)

const product = "Warehouse Map"

// errUsage marks a malformed command line; run prints the usage after it.
var errUsage = errors.New("usage")

func usageError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, args...))
}

func usage(w io.Writer) {
	_, _ = fmt.Fprintf(w, "%s %s\n\n", product, version.String())
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  warehousemap version                          Show version")
	_, _ = fmt.Fprintln(w, "  warehousemap init <dir> <warehouseId> <name>  Create a layout directory")
	_, _ = fmt.Fprintln(w, "  warehousemap open <dir>                       Print a layout summary")
	_, _ = fmt.Fprintln(w, "  warehousemap validate <file>                  Check a layout JSON file against the schema")
	_, _ = fmt.Fprintln(w, "  warehousemap stats <dir>                      Count lots and units")
	_, _ = fmt.Fprintln(w, "  warehousemap render <dir> <out> [--grid] [--zoom z]")
	_, _ = fmt.Fprintln(w, "                                                Export as PNG, SVG or PDF (by extension)")
	_, _ = fmt.Fprintln(w, "  warehousemap labels <dir> <out.pdf>           Print QR address labels")
	_, _ = fmt.Fprintln(w, "  warehousemap login <url> [--key k] [--user u] Get a map server token")
	_, _ = fmt.Fprintln(w, "  warehousemap push <dir>                       Save the layout to the map server")
	_, _ = fmt.Fprintln(w, "  warehousemap pull <dir> <warehouseId>         Fetch a layout from the map server")
	_, _ = fmt.Fprintln(w, "  warehousemap stock <label> <quantity>         Report on-hand units of an address")
	_, _ = fmt.Fprintln(w, "  warehousemap serve [--addr a] [--sqlite path] Run the map server")
	_, _ = fmt.Fprintln(w, "  warehousemap ui [<dir>]                       Launch the editor (build with -tags fyne)")
}

// cli carries what every command needs. opened is the layout a command has loaded, so a
// crash can autosave it.
type cli struct {
	out    io.Writer
	log    *slog.Logger
	cfg    config.AppConfig
	token  string
	opened *storage.LayoutHandle
}

func (c *cli) keep(h *storage.LayoutHandle) *storage.LayoutHandle {
	c.opened = h
	return h
}

func (c *cli) current() *storage.LayoutHandle { return c.opened }

func newCLI(out io.Writer) *cli {
	cfg, token, err := config.Load()
	if err != nil {
		applog.Init(applog.FromEnv())
		applog.WithComponent("cli").Warn("config load failed, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	} else {
		applog.Init(cfg.Logging.LogOptions())
	}
	if t := os.Getenv("WMAP_TOKEN"); t != "" {
		token = t
	}
	return &cli{out: out, log: applog.WithComponent("cli"), cfg: cfg, token: token}
}

func main() {
	c := newCLI(os.Stdout)
	defer crash.RecoverFunc(c.current)

	tc := telemetry.New(telemetry.FromEnv().Merge(c.cfg.General.TelemetryOptIn, c.cfg.General.TelemetryURL))
	telemetry.SetDefault(tc)

	ctx, stop := signalContext()
	code := c.run(ctx, os.Args[1:])
	stop()

	fctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	tc.Flush(fctx)
	cancel()
	tc.Close()
	if code != 0 {
		os.Exit(code)
	}
}

// run dispatches args and returns the process exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	c.log.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(c.out)
		return 0
	}
	var err error
	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintf(c.out, "%s %s\n", product, version.String())
	case "init":
		err = c.initLayout(args[1:])
	case "open":
		err = c.open(args[1:])
	case "validate":
		err = c.validate(args[1:])
	case "stats":
		err = c.stats(args[1:])
	case "render":
		err = c.render(args[1:])
	case "labels":
		err = c.labels(args[1:])
	case "login":
		err = c.login(ctx, args[1:])
	case "push":
		err = c.push(ctx, args[1:])
	case "pull":
		err = c.pull(ctx, args[1:])
	case "stock":
		err = c.stock(ctx, args[1:])
	case "serve":
		err = c.serve(ctx, args[1:])
	case "ui":
		err = c.ui(args[1:])
	case "help", "-h", "--help":
		usage(c.out)
	default:
		err = usageError("unknown command %q", args[0])
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		_, _ = fmt.Fprintln(c.out, "Error:", err)
		usage(c.out)
		return 2
	default:
		c.log.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		_, _ = fmt.Fprintln(c.out, "Error:", err)
		return 1
	}
}
