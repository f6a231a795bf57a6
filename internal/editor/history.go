/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import "fmt"

// Undo restores the state before the last completed edit.
func (c *Controller) Undo() (bool, error) {
	if !c.opts.Admin {
		return false, ErrReadOnly
	}
	if c.state != StateIdle {
		return false, nil
	}
	cur, err := c.store.snapshot()
	if err != nil {
		return false, fmt.Errorf("undo: %w", err)
	}
	prev, ok := c.history.Undo(c.opts.WarehouseID, cur)
	if !ok {
		return false, nil
	}
	return true, c.restore(prev)
}

// Redo reapplies the last undone edit.
func (c *Controller) Redo() (bool, error) {
	if !c.opts.Admin {
		return false, ErrReadOnly
	}
	if c.state != StateIdle {
		return false, nil
	}
	cur, err := c.store.snapshot()
	if err != nil {
		return false, fmt.Errorf("redo: %w", err)
	}
	next, ok := c.history.Redo(c.opts.WarehouseID, cur)
	if !ok {
		return false, nil
	}
	return true, c.restore(next)
}

func (c *Controller) CanUndo() bool { return c.history.CanUndo(c.opts.WarehouseID) }
func (c *Controller) CanRedo() bool { return c.history.CanRedo(c.opts.WarehouseID) }

func (c *Controller) restore(b []byte) error {
	if err := c.store.restore(b); err != nil {
		return err
	}
	if c.selected >= c.store.Len() {
		c.selected = -1
	}
	c.markModified()
	return nil
}
