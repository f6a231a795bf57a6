/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"warehousemap/internal/domain"
	applog "warehousemap/internal/log"
	"warehousemap/internal/version"

	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"
)

const (
	IndexDirName  = ".wmap"
	IndexFileName = "index.sqlite"

	// schemaVersion tracks the local SQLite schema. Bump it together with a new step in
	// runMigrations.
	schemaVersion = 2
)

// IndexPath returns the offline index location for a layout directory.
func IndexPath(root string) string {
	return filepath.Join(root, IndexDirName, IndexFileName)
}

// Index is the offline layout store: layouts, their shapes and on-hand stock per
// address. It assigns shape ids the same way the map server does, so an editor can run
// against it without a network. Safe for concurrent use.
type Index struct {
	db   *sql.DB
	path string
}

// OpenIndex opens (creating when needed) the index of the layout directory root.
func OpenIndex(root string) (*Index, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("layout root is required")
	}
	return OpenIndexAt(IndexPath(root))
}

// OpenIndexAt opens the SQLite file at path, enables WAL and brings the schema up to date.
func OpenIndexAt(path string) (*Index, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_open").With(slog.String("path", path))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l.Error("create index dir failed", slog.Any("err", err))
		return nil, fmt.Errorf("create index dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(path))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		l.Error("sqlite open failed", slog.Any("err", err))
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		l.Error("enable WAL failed", slog.Any("err", err))
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON;"); err != nil {
		l.Warn("enable foreign_keys failed", slog.Any("err", err))
	}
	if err := ensureMetaAndVersion(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure meta/version failed", slog.Any("err", err))
		return nil, err
	}
	if err := ensureIndexSchema(ctx, db); err != nil {
		_ = db.Close()
		l.Error("ensure index schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Debug("index ready")
	return &Index{db: db, path: path}, nil
}

func (x *Index) Path() string { return x.path }

func (x *Index) Close() error { return x.db.Close() }

// Ping checks that the database answers.
func (x *Index) Ping(ctx context.Context) error { return x.db.PingContext(ctx) }

// SchemaVersion reports the schema step the database is at.
func (x *Index) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := x.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&v); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return v, nil
}

func ensureMetaAndVersion(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh databases start at step 1 and migrate forward
		if _, err := db.ExecContext(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, 1, ?, ?, ?)`, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := db.ExecContext(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

func ensureIndexSchema(ctx context.Context, db *sql.DB) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS layouts (
			warehouse_id INTEGER PRIMARY KEY,
			name         TEXT    NOT NULL DEFAULT '',
			width        REAL    NOT NULL DEFAULT 0,
			height       REAL    NOT NULL DEFAULT 0,
			background   TEXT    NOT NULL DEFAULT '',
			updated_at   TEXT    NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS shapes (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			warehouse_id INTEGER NOT NULL REFERENCES layouts(warehouse_id) ON DELETE CASCADE,
			position     INTEGER NOT NULL,
			kind         TEXT    NOT NULL,
			label        TEXT    NOT NULL DEFAULT '',
			body         TEXT    NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_shapes_warehouse ON shapes(warehouse_id, position);`,
		`CREATE TABLE IF NOT EXISTS stock (
			label      TEXT    PRIMARY KEY,
			quantity   INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT    NOT NULL
		);`,
	}
	for _, q := range ddl {
		if _, err := db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create index schema: %w", err)
		}
	}
	return nil
}

// runMigrations applies incremental schema steps up to schemaVersion.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var cur int
	if err := db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for cur < schemaVersion {
		next := cur + 1
		var stmts []string
		switch next {
		case 2:
			stmts = []string{`CREATE INDEX IF NOT EXISTS idx_shapes_label ON shapes(label) WHERE label <> '';`}
		}
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `UPDATE version SET schema=?, updated_at=? WHERE id=1`, next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		cur = next
	}
	return nil
}

func normLabel(s string) string { return strings.ToUpper(strings.TrimSpace(s)) }

// LoadLayout returns the stored layout with its shapes in saved order.
func (x *Index) LoadLayout(ctx context.Context, warehouseID int64) (domain.Layout, error) {
	lay := domain.Layout{WarehouseID: warehouseID, Shapes: []domain.Shape{}}
	err := x.db.QueryRowContext(ctx,
		`SELECT name, width, height, background FROM layouts WHERE warehouse_id=?`, warehouseID,
	).Scan(&lay.Name, &lay.Width, &lay.Height, &lay.BackgroundImage)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Layout{}, fmt.Errorf("warehouse %d: %w", warehouseID, domain.ErrLayoutNotFound)
	}
	if err != nil {
		return domain.Layout{}, fmt.Errorf("load layout: %w", err)
	}
	rows, err := x.db.QueryContext(ctx, `SELECT id, body FROM shapes WHERE warehouse_id=? ORDER BY position`, warehouseID)
	if err != nil {
		return domain.Layout{}, fmt.Errorf("load shapes: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var body string
		if err := rows.Scan(&id, &body); err != nil {
			return domain.Layout{}, fmt.Errorf("scan shape: %w", err)
		}
		var s domain.Shape
		if err := json.Unmarshal([]byte(body), &s); err != nil {
			return domain.Layout{}, fmt.Errorf("decode shape %d: %w", id, err)
		}
		s.ID = domain.IDPtr(id)
		lay.Shapes = append(lay.Shapes, s)
	}
	return lay, rows.Err()
}

// PutLayout stores layout metadata and shapes, returning the shape ids.
func (x *Index) PutLayout(ctx context.Context, l domain.Layout) ([]int64, error) {
	return x.save(ctx, l.WarehouseID, &l, l.Shapes)
}

// SaveLayout replaces the shapes of a warehouse in one transaction. Shapes carrying an
// id of this warehouse keep it; the rest get new ids. Stored shapes missing from the
// batch are deleted. Ids are returned in request order.
func (x *Index) SaveLayout(ctx context.Context, warehouseID int64, shapes []domain.Shape) ([]int64, error) {
	return x.save(ctx, warehouseID, nil, shapes)
}

func (x *Index) save(ctx context.Context, warehouseID int64, meta *domain.Layout, shapes []domain.Shape) ([]int64, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "index_save")
	if warehouseID <= 0 {
		return nil, fmt.Errorf("invalid warehouse id %d", warehouseID)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	tx, err := x.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if meta != nil {
		_, err = tx.ExecContext(ctx, `INSERT INTO layouts (warehouse_id, name, width, height, background, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(warehouse_id) DO UPDATE SET name=excluded.name, width=excluded.width,
				height=excluded.height, background=excluded.background, updated_at=excluded.updated_at`,
			warehouseID, meta.Name, meta.Width, meta.Height, meta.BackgroundImage, now)
	} else {
		_, err = tx.ExecContext(ctx, `INSERT INTO layouts (warehouse_id, updated_at) VALUES (?, ?)
			ON CONFLICT(warehouse_id) DO UPDATE SET updated_at=excluded.updated_at`, warehouseID, now)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert layout: %w", err)
	}

	rows, err := tx.QueryContext(ctx, `SELECT id FROM shapes WHERE warehouse_id=?`, warehouseID)
	if err != nil {
		return nil, fmt.Errorf("list shapes: %w", err)
	}
	existing, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, len(shapes))
	kept := map[int64]bool{}
	for i, s := range shapes {
		if !s.Kind.Valid() {
			return nil, fmt.Errorf("shape %d: unknown kind %q", i, s.Kind)
		}
		body := s
		body.ID = nil
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode shape %d: %w", i, err)
		}
		if s.ID != nil && existing[*s.ID] && !kept[*s.ID] {
			if _, err := tx.ExecContext(ctx, `UPDATE shapes SET position=?, kind=?, label=?, body=? WHERE id=?`,
				i, string(s.Kind), normLabel(s.Label), string(b), *s.ID); err != nil {
				return nil, fmt.Errorf("update shape %d: %w", *s.ID, err)
			}
			ids[i] = *s.ID
		} else {
			res, err := tx.ExecContext(ctx, `INSERT INTO shapes (warehouse_id, position, kind, label, body) VALUES (?, ?, ?, ?, ?)`,
				warehouseID, i, string(s.Kind), normLabel(s.Label), string(b))
			if err != nil {
				return nil, fmt.Errorf("insert shape %d: %w", i, err)
			}
			if ids[i], err = res.LastInsertId(); err != nil {
				return nil, fmt.Errorf("shape %d id: %w", i, err)
			}
		}
		kept[ids[i]] = true
	}
	removed := 0
	for id := range existing {
		if kept[id] {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM shapes WHERE id=?`, id); err != nil {
			return nil, fmt.Errorf("delete shape %d: %w", id, err)
		}
		removed++
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	l.Info("layout stored", slog.Int64("warehouse", warehouseID), slog.Int("shapes", len(ids)), slog.Int("removed", removed))
	return ids, nil
}

// HasStock reports whether the address holds any units.
func (x *Index) HasStock(ctx context.Context, label string) (bool, error) {
	var q int
	err := x.db.QueryRowContext(ctx, `SELECT quantity FROM stock WHERE label=?`, normLabel(label)).Scan(&q)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stock check: %w", err)
	}
	return q > 0, nil
}

// SetStock records the on-hand quantity of an address.
func (x *Index) SetStock(ctx context.Context, label string, quantity int) error {
	label = normLabel(label)
	if label == "" {
		return errors.New("stock label is empty")
	}
	if quantity < 0 {
		return fmt.Errorf("negative quantity %d", quantity)
	}
	_, err := x.db.ExecContext(ctx, `INSERT INTO stock (label, quantity, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET quantity=excluded.quantity, updated_at=excluded.updated_at`,
		label, quantity, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("set stock: %w", err)
	}
	return nil
}

// Warehouses lists the stored warehouse ids.
func (x *Index) Warehouses(ctx context.Context) ([]int64, error) {
	rows, err := x.db.QueryContext(ctx, `SELECT warehouse_id FROM layouts ORDER BY warehouse_id`)
	if err != nil {
		return nil, fmt.Errorf("list layouts: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DetectAndRebuildIndex checks the index of root for corruption. A damaged file is
// backed up, removed and repopulated from the layout file. It returns true when a
// rebuild happened.
func DetectAndRebuildIndex(ctx context.Context, h *LayoutHandle) (bool, error) {
	path := IndexPath(h.Root)
	x, err := OpenIndexAt(path)
	if err == nil {
		var chk string
		qerr := x.db.QueryRowContext(ctx, `PRAGMA quick_check;`).Scan(&chk)
		if qerr == nil && strings.Contains(strings.ToLower(chk), "ok") {
			if _, perr := x.db.ExecContext(ctx, `SELECT 1 FROM shapes LIMIT 1;`); perr == nil {
				_ = x.Close()
				return false, nil
			}
		}
		_ = x.Close()
	}
	backupIndexFile(path)
	_ = os.Remove(path)
	_ = os.Remove(path + "-wal")
	_ = os.Remove(path + "-shm")
	x, err = OpenIndexAt(path)
	if err != nil {
		return false, fmt.Errorf("reopen index after rebuild: %w", err)
	}
	defer x.Close()
	if _, err := x.PutLayout(ctx, h.Layout); err != nil {
		return false, fmt.Errorf("repopulate index: %w", err)
	}
	return true, nil
}

// backupIndexFile copies the index into .wmap/backups with a timestamp.
func backupIndexFile(indexPath string) {
	bdir := filepath.Join(filepath.Dir(indexPath), "backups")
	_ = os.MkdirAll(bdir, 0o755)
	bak := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", filepath.Base(indexPath), time.Now().Format(backupStamp)))
	if data, err := os.ReadFile(indexPath); err == nil {
		_ = os.WriteFile(bak, data, 0o644)
	}
}

// Sync stores the handle's layout in the index and writes the assigned ids back into
// the handle.
func Sync(ctx context.Context, x *Index, h *LayoutHandle) error {
	ids, err := x.PutLayout(ctx, h.Layout)
	if err != nil {
		return err
	}
	for i := range h.Layout.Shapes {
		h.Layout.Shapes[i].ID = domain.IDPtr(ids[i])
	}
	return nil
}

type idRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// scanIDs drains rows of a single id column into a set and closes them.
func scanIDs(rows idRows) (map[int64]bool, error) {
	defer rows.Close()
	ids := map[int64]bool{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan shape id: %w", err)
		}
		ids[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list shapes: %w", err)
	}
	return ids, nil
}
