/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota + 1
	warehouseIDKey
)

// WithRequestID stores a request id that every record logged with ctx will carry.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request id stored on ctx, or "".
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(requestIDKey).(string)
	return s
}

// WithWarehouseID stores the warehouse a request operates on.
func WithWarehouseID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, warehouseIDKey, id)
}

// WarehouseID returns the warehouse id stored on ctx.
func WarehouseID(ctx context.Context) (int64, bool) {
	v, ok := ctx.Value(warehouseIDKey).(int64)
	return v, ok
}
