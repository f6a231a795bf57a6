/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import "warehousemap/internal/domain"

// Wire types shared by Client and Server.

// SaveRequest is the body of POST /api/warehouses/{id}/layout.
type SaveRequest struct {
	WarehouseID int64          `json:"warehouseId"`
	Shapes      []domain.Shape `json:"shapes"`
}

// SavedShape is one entry of SaveResponse.SavedShapes.
type SavedShape struct {
	ID int64 `json:"id"`
}

// SaveResponse answers a save. SavedShapes is in request order.
type SaveResponse struct {
	Success     bool         `json:"success"`
	SavedShapes []SavedShape `json:"savedShapes,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// StockResponse answers GET /api/stock-check/{label}.
type StockResponse struct {
	HasStock bool `json:"hasStock"`
}

// LayoutResponse answers GET /api/warehouses/{id}/layout. Admin tells the editor whether
// the caller may edit.
type LayoutResponse struct {
	Layout domain.Layout `json:"layout"`
	Admin  bool          `json:"admin"`
}

// TokenRequest asks POST /api/auth/token for a bearer token.
type TokenRequest struct {
	Subject    string `json:"subject"`
	Key        string `json:"key,omitempty"`
	TTLSeconds int64  `json:"ttl_seconds,omitempty"`
}

// TokenResponse carries an issued token.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// Event is pushed to websocket listeners.
type Event struct {
	Type        string `json:"type"`
	WarehouseID int64  `json:"warehouseId,omitempty"`
	Shapes      int    `json:"shapes,omitempty"`
	Label       string `json:"label,omitempty"`
}

const (
	EventLayoutSaved  = "layout.saved"
	EventStockChanged = "stock.changed"
)

const (
	csrfCookie = "csrftoken"
	csrfHeader = "X-CSRFToken"
)
