/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	"warehousemap/internal/domain"
)

func openPGForTest(t *testing.T) *PGStore {
	t.Helper()
	dsn := os.Getenv("WMAP_PG_DSN")
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn == "" {
		dsn = DefaultPGDSN
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		t.Skipf("cannot open postgres: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		t.Skipf("postgres not available: %v", err)
	}
	_ = db.Close()
	st, err := OpenPG(context.Background(), dsn)
	if err != nil {
		t.Fatalf("open pg store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPGStoreSaveKeepsIDs(t *testing.T) {
	st := openPGForTest(t)
	ctx := context.Background()
	wid := time.Now().UnixNano() % 1_000_000_000
	t.Cleanup(func() { _, _ = st.db.Exec(`DELETE FROM layouts WHERE warehouse_id=$1`, wid) })

	if _, err := st.LoadLayout(ctx, wid); !errors.Is(err, domain.ErrLayoutNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	ids, err := st.SaveLayout(ctx, wid, testShapes())
	if err != nil {
		t.Fatal(err)
	}
	lay, err := st.LoadLayout(ctx, wid)
	if err != nil || len(lay.Shapes) != 3 {
		t.Fatalf("load: %+v %v", lay, err)
	}
	if *lay.Shapes[0].ID != ids[0] || lay.Shapes[0].Label != "A001" {
		t.Fatalf("shape 0 %+v", lay.Shapes[0])
	}
	ids2, err := st.SaveLayout(ctx, wid, lay.Shapes[1:])
	if err != nil {
		t.Fatal(err)
	}
	if ids2[0] != ids[1] || ids2[1] != ids[2] {
		t.Fatalf("ids %v then %v", ids, ids2)
	}
	if err := st.PutMeta(ctx, domain.Layout{WarehouseID: wid, Name: "CD Sul", Width: 800, Height: 600}); err != nil {
		t.Fatal(err)
	}
	lay, _ = st.LoadLayout(ctx, wid)
	if lay.Name != "CD Sul" || len(lay.Shapes) != 2 {
		t.Fatalf("after meta %+v", lay)
	}
}

func TestPGStoreStockAndMigrationsIdempotent(t *testing.T) {
	st := openPGForTest(t)
	ctx := context.Background()
	if err := applyMigrations(ctx, st.db); err != nil {
		t.Fatalf("second migration run: %v", err)
	}
	label := "Z" + time.Now().Format("150405")
	t.Cleanup(func() { _, _ = st.db.Exec(`DELETE FROM stock WHERE label=$1`, label) })
	if err := st.SetStock(ctx, label, 2); err != nil {
		t.Fatal(err)
	}
	if has, err := st.HasStock(ctx, label); err != nil || !has {
		t.Fatalf("has stock: %v %v", has, err)
	}
	if err := st.SetStock(ctx, label, -1); err == nil {
		t.Fatal("negative quantity accepted")
	}
}

type fakeIDRows struct {
	ids    []int64
	err    error
	closed bool
}

func (r *fakeIDRows) Next() bool { return len(r.ids) > 0 }
func (r *fakeIDRows) Err() error { return r.err }
func (r *fakeIDRows) Close() error {
	r.closed = true
	return nil
}

func (r *fakeIDRows) Scan(dest ...any) error {
	*dest[0].(*int64) = r.ids[0]
	r.ids = r.ids[1:]
	return nil
}

func TestScanIDsReportsIterationError(t *testing.T) {
	boom := errors.New("connection reset")
	rows := &fakeIDRows{ids: []int64{4, 9}, err: boom}
	if _, err := scanIDs(rows); !errors.Is(err, boom) {
		t.Fatalf("expected iteration error, got %v", err)
	}
	if !rows.closed {
		t.Fatal("rows not closed")
	}
	ids, err := scanIDs(&fakeIDRows{ids: []int64{4, 9}})
	if err != nil || len(ids) != 2 || !ids[4] || !ids[9] {
		t.Fatalf("ids %v err %v", ids, err)
	}
}
