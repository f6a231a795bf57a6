/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

// BringForward swaps the selected shape with the one holding the next higher rank.
// It reports false when nothing moved.
func (c *Controller) BringForward() (bool, error) { return c.shiftZ(+1) }

// SendBackward swaps the selected shape with the one holding the next lower rank.
func (c *Controller) SendBackward() (bool, error) { return c.shiftZ(-1) }

func (c *Controller) shiftZ(dir int) (bool, error) {
	if !c.opts.Admin {
		return false, ErrReadOnly
	}
	sel, ok := c.Selected()
	if !ok {
		return false, ErrNoSelection
	}
	order := c.store.DrawOrder()
	pos := -1
	for p, i := range order {
		if i == sel {
			pos = p
			break
		}
	}
	next := pos + dir
	if next < 0 || next >= len(order) {
		return false, nil
	}
	c.recordBefore()
	c.store.NormalizeZ()
	other := order[next]
	a, b := c.store.shapes[sel].ZOrder, c.store.shapes[other].ZOrder
	c.store.shapes[sel].ZOrder, c.store.shapes[other].ZOrder = b, a
	c.markModified()
	return true, nil
}
