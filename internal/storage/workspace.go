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
	"fmt"
	"log/slog"

	"warehousemap/internal/domain"
	applog "warehousemap/internal/log"
)

// Workspace pairs an open layout directory with its offline index. It saves through
// the index so shapes get stable ids, then rewrites layout.json with them.
type Workspace struct {
	Handle *LayoutHandle
	Index  *Index
}

// OpenWorkspace opens root and its index, rebuilding a damaged index from layout.json.
func OpenWorkspace(ctx context.Context, root string) (*Workspace, error) {
	h, err := Open(root)
	if err != nil {
		return nil, err
	}
	if rebuilt, err := DetectAndRebuildIndex(ctx, h); err != nil {
		return nil, err
	} else if rebuilt {
		applog.WithComponent("storage").Warn("index rebuilt", slog.String("root", h.Root))
	}
	x, err := OpenIndex(h.Root)
	if err != nil {
		return nil, err
	}
	return &Workspace{Handle: h, Index: x}, nil
}

func (w *Workspace) Close() error { return w.Index.Close() }

// SaveLayout stores shapes for the workspace's warehouse and returns their ids in order.
func (w *Workspace) SaveLayout(ctx context.Context, warehouseID int64, shapes []domain.Shape) ([]int64, error) {
	if warehouseID != w.Handle.Layout.WarehouseID {
		return nil, fmt.Errorf("workspace holds warehouse %d, not %d", w.Handle.Layout.WarehouseID, warehouseID)
	}
	ids, err := w.Index.SaveLayout(ctx, warehouseID, shapes)
	if err != nil {
		return nil, err
	}
	if err := writeBack(w.Handle, shapes, ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// HasStock answers from the local stock table.
func (w *Workspace) HasStock(ctx context.Context, label string) (bool, error) {
	return w.Index.HasStock(ctx, label)
}

// RemoteSaver persists a layout batch somewhere else, typically the map server.
type RemoteSaver interface {
	SaveLayout(ctx context.Context, warehouseID int64, shapes []domain.Shape) ([]int64, error)
}

// Mirror saves through Remote and, once it succeeds, records the returned ids in
// layout.json so the next pull or push matches rows by id.
type Mirror struct {
	Remote RemoteSaver
	Handle *LayoutHandle
}

func (m Mirror) SaveLayout(ctx context.Context, warehouseID int64, shapes []domain.Shape) ([]int64, error) {
	ids, err := m.Remote.SaveLayout(ctx, warehouseID, shapes)
	if err != nil {
		return nil, err
	}
	if len(ids) != len(shapes) {
		return nil, fmt.Errorf("remote returned %d ids for %d shapes", len(ids), len(shapes))
	}
	if err := writeBack(m.Handle, shapes, ids); err != nil {
		applog.WithComponent("storage").Warn("remote save succeeded but local write failed", slog.Any("err", err))
		return nil, err
	}
	return ids, nil
}

func writeBack(h *LayoutHandle, shapes []domain.Shape, ids []int64) error {
	saved := domain.CloneShapes(shapes)
	for i := range saved {
		saved[i].ID = domain.IDPtr(ids[i])
	}
	h.Layout.Shapes = saved
	if err := Save(h); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}
