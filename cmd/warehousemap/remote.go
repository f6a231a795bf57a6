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
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"warehousemap/internal/backend"
	"warehousemap/internal/config"
	"warehousemap/internal/domain"
	"warehousemap/internal/storage"
	"warehousemap/internal/telemetry"
	"warehousemap/internal/version"
)

var errNoToken = errors.New("no map server token; run 'warehousemap login <url>' or set WMAP_TOKEN")

func (c *cli) client(requireToken bool) (*backend.Client, error) {
	if requireToken && c.token == "" {
		return nil, errNoToken
	}
	return backend.NewClientWithOptions(c.cfg.Backend.BaseURL, c.token, backend.ClientOptions{
		Timeout:     c.cfg.Backend.Timeout(),
		InsecureTLS: c.cfg.Backend.TLSInsecure,
	}), nil
}

// login trades the server's admin key for a token and stores it with the server URL.
func (c *cli) login(ctx context.Context, args []string) error {
	fset := c.flagSet("login")
	key := fset.String("key", os.Getenv("WMAP_ADMIN_KEY"), "server admin key")
	user := fset.String("user", "admin", "token subject")
	ttl := fset.Duration("ttl", 24*time.Hour, "token lifetime")
	pos, err := parseArgs(fset, args)
	if err != nil {
		return err
	}
	if len(pos) < 1 {
		return usageError("login requires <url>")
	}
	c.cfg.Backend.BaseURL = strings.TrimRight(pos[0], "/")
	cl, _ := c.client(false)
	tok, err := cl.IssueToken(ctx, *user, *key, *ttl)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := config.Save(c.cfg, tok.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	c.token = tok.Token
	_, _ = fmt.Fprintf(c.out, "Logged in to %s as %s (token expires %s)\n", c.cfg.Backend.BaseURL, *user, tok.ExpiresAt)
	return nil
}

func (c *cli) push(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError("push requires <dir>")
	}
	cl, err := c.client(true)
	if err != nil {
		return err
	}
	h, err := c.openDir(args[0])
	if err != nil {
		return err
	}
	start := time.Now()
	m := storage.Mirror{Remote: cl, Handle: h}
	ids, err := m.SaveLayout(ctx, h.Layout.WarehouseID, h.Layout.Shapes)
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	telemetry.Default().LayoutSaved(len(ids), time.Since(start))
	_, _ = fmt.Fprintf(c.out, "Pushed %d shapes to warehouse %d\n", len(ids), h.Layout.WarehouseID)
	return nil
}

// pull replaces the local layout with the server's copy, creating the directory when
// it holds no layout yet. Local canvas settings survive when the server has none.
func (c *cli) pull(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("pull requires <dir> <warehouseId>")
	}
	id, err := parseWarehouseID(args[1])
	if err != nil {
		return err
	}
	cl, _ := c.client(false)
	resp, err := cl.Layout(ctx, id)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	remote := resp.Layout
	remote.WarehouseID = id

	abs, _ := filepath.Abs(args[0])
	if _, err := os.Stat(filepath.Join(abs, storage.LayoutFileName)); errors.Is(err, fs.ErrNotExist) {
		if remote.Name == "" {
			remote.Name = "Warehouse " + strconv.FormatInt(id, 10)
		}
		h, err := storage.InitLayout(abs, remote)
		if err != nil {
			return err
		}
		c.keep(h)
	} else {
		h, err := c.openDir(abs)
		if err != nil {
			return err
		}
		if h.Layout.WarehouseID != id {
			return fmt.Errorf("%s holds warehouse %d, not %d", abs, h.Layout.WarehouseID, id)
		}
		mergeRemote(&h.Layout, remote)
		if err := storage.Save(h); err != nil {
			return err
		}
	}
	mode := "view only"
	if resp.Admin {
		mode = "editable"
	}
	_, _ = fmt.Fprintf(c.out, "Pulled %d shapes of warehouse %d into %s (%s)\n", len(remote.Shapes), id, abs, mode)
	return nil
}

func mergeRemote(local *domain.Layout, remote domain.Layout) {
	local.Shapes = remote.Shapes
	if local.Shapes == nil {
		local.Shapes = []domain.Shape{}
	}
	if remote.Name != "" {
		local.Name = remote.Name
	}
	if remote.Width > 0 && remote.Height > 0 {
		local.Width, local.Height = remote.Width, remote.Height
	}
	if remote.BackgroundImage != "" {
		local.BackgroundImage = remote.BackgroundImage
	}
}

func (c *cli) stock(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError("stock requires <label> <quantity>")
	}
	q, err := strconv.Atoi(args[1])
	if err != nil || q < 0 {
		return usageError("quantity must be a non-negative integer, got %q", args[1])
	}
	cl, err := c.client(true)
	if err != nil {
		return err
	}
	if err := cl.SetStock(ctx, args[0], q); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.out, "%s: %d units\n", strings.ToUpper(strings.TrimSpace(args[0])), q)
	return nil
}

// serve runs the map server on PostgreSQL, or on a SQLite index with --sqlite.
// Variables from a .env file in the working directory are loaded first.
func (c *cli) serve(ctx context.Context, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		c.log.Warn("load .env", slog.Any("err", err))
	}
	// .env may carry WMAP_* overrides
	if cfg, token, err := config.Load(); err == nil {
		c.cfg, c.token = cfg, token
	}
	fset := c.flagSet("serve")
	addr := fset.String("addr", c.cfg.Server.Addr, "listen address")
	sqlitePath := fset.String("sqlite", c.cfg.Server.SQLitePath, "serve from a SQLite index file instead of PostgreSQL")
	dsn := fset.String("pg", c.cfg.Server.DatabaseURL, "PostgreSQL URL")
	if _, err := parseArgs(fset, args); err != nil {
		return err
	}

	var store backend.LayoutStore
	if *sqlitePath != "" {
		x, err := storage.OpenIndexAt(*sqlitePath)
		if err != nil {
			return err
		}
		c.log.Info("using sqlite store", slog.String("path", x.Path()))
		store = x
	} else {
		pg, err := backend.OpenPG(ctx, *dsn)
		if err != nil {
			return err
		}
		c.log.Info("using postgres store")
		store = pg
	}
	defer store.Close()

	srv := backend.NewServer(store, backend.ServerOptions{
		Secret:   os.Getenv("WMAP_SECRET"),
		AdminKey: os.Getenv("WMAP_ADMIN_KEY"),
		OnEvent: func(ev backend.Event) {
			c.log.Info("event", slog.String("type", ev.Type), slog.Int64("warehouse", ev.WarehouseID), slog.Int("shapes", ev.Shapes))
			telemetry.Event(ev.Type, map[string]any{"warehouse": ev.WarehouseID, "shapes": ev.Shapes})
		},
	})
	telemetry.Event(telemetry.EventServerStarted, map[string]any{"version": version.String()})
	_, _ = fmt.Fprintf(c.out, "%s map server on %s\n", product, *addr)
	return srv.ListenAndServe(ctx, *addr)
}
