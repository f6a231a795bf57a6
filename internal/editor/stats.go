/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import "warehousemap/internal/domain"

// Stats summarizes the lots on the map.
type Stats struct {
	Rectangles    int
	TotalQuantity int
}

func ComputeStats(shapes []domain.Shape) Stats {
	var st Stats
	for _, s := range shapes {
		if s.Kind != domain.KindRectangle {
			continue
		}
		st.Rectangles++
		st.TotalQuantity += s.Quantity
	}
	return st
}

func (c *Controller) Stats() Stats { return ComputeStats(c.store.shapes) }
