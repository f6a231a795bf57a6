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

	"warehousemap/internal/domain"
)

// LayoutStore is the persistence the map server needs. storage.Index and PGStore
// implement it.
type LayoutStore interface {
	LoadLayout(ctx context.Context, warehouseID int64) (domain.Layout, error)
	SaveLayout(ctx context.Context, warehouseID int64, shapes []domain.Shape) ([]int64, error)
	HasStock(ctx context.Context, label string) (bool, error)
	SetStock(ctx context.Context, label string, quantity int) error
	Ping(ctx context.Context) error
	Close() error
}
