/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import "strings"

// Key is a key press as the frontend reports it. Name is the key name ("m", "Delete").
type Key struct {
	Name string
	Ctrl bool
}

type KeyAction int

const (
	KeyNone KeyAction = iota
	KeyTool           // tool changed
	KeyDelete         // frontend should run the guarded delete of the selection
	KeySave           // frontend should save
	KeyUndo
	KeyRedo
)

// HandleKey applies the editor shortcuts. Viewers get none.
//
//	m move, q rectangle, e text, Delete delete selection,
//	Ctrl+S save, Ctrl+Z undo, Ctrl+Y redo
func (c *Controller) HandleKey(k Key) KeyAction {
	if !c.opts.Admin {
		return KeyNone
	}
	name := strings.ToLower(k.Name)
	if k.Ctrl {
		switch name {
		case "s":
			return KeySave
		case "z":
			if ok, _ := c.Undo(); ok {
				return KeyUndo
			}
		case "y":
			if ok, _ := c.Redo(); ok {
				return KeyRedo
			}
		}
		return KeyNone
	}
	switch name {
	case "m":
		c.tool = ToolMove
		return KeyTool
	case "q":
		c.tool = ToolRectangle
		return KeyTool
	case "e":
		c.tool = ToolText
		return KeyTool
	case "delete":
		if _, ok := c.Selected(); ok {
			return KeyDelete
		}
	}
	return KeyNone
}
