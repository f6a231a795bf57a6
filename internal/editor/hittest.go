/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package editor

import (
	"warehousemap/internal/domain"
	"warehousemap/internal/vector"
)

// HitOptions tunes FindShapeAt. Zero tolerances fall back to the defaults.
type HitOptions struct {
	ExcludeText   bool
	LineTolerance float64
	TextPadding   float64
}

const (
	DefaultLineTolerance = 10.0
	DefaultTextPadding   = 10.0
)

// FindShapeAt returns the topmost shape under p.
//
// Rectangles use their inclusive bounding box (rotation is ignored), text the box grown by
// the padding, lines the distance to their segment which must be strictly below tolerance.
func FindShapeAt(p vector.Pt, shapes []domain.Shape, opts HitOptions) (int, bool) {
	tol := opts.LineTolerance
	if tol <= 0 {
		tol = DefaultLineTolerance
	}
	pad := opts.TextPadding
	if pad <= 0 {
		pad = DefaultTextPadding
	}
	for _, i := range hitOrder(shapes) {
		if hitShape(p, shapes[i], opts.ExcludeText, tol, pad) {
			return i, true
		}
	}
	return -1, false
}

func hitShape(p vector.Pt, s domain.Shape, excludeText bool, tol, pad float64) bool {
	switch s.Kind {
	case domain.KindRectangle:
		return boxOf(s).Contains(p)
	case domain.KindText:
		return !excludeText && boxOf(s).Inflate(pad).Contains(p)
	case domain.KindLine:
		ex, ey := s.End()
		return vector.DistToSegment(p, vector.Pt{X: s.X, Y: s.Y}, vector.Pt{X: ex, Y: ey}) < tol
	}
	return false
}

func boxOf(s domain.Shape) vector.Rect {
	b := s.Bounds()
	return vector.R(b.X, b.Y, b.W, b.H)
}

// Handle names a resize corner.
type Handle string

const (
	HandleNone Handle = ""
	HandleNW   Handle = "nw"
	HandleNE   Handle = "ne"
	HandleSW   Handle = "sw"
	HandleSE   Handle = "se"
)

// HandleRadius is how close to a corner a press must land to grab it.
const HandleRadius = 8.0

// Handles returns the corner hotspots of s. Text has none; a line exposes its start as nw
// and its end as se.
func Handles(s domain.Shape) map[Handle]vector.Pt {
	switch s.Kind {
	case domain.KindText:
		return nil
	case domain.KindLine:
		ex, ey := s.End()
		return map[Handle]vector.Pt{HandleNW: {X: s.X, Y: s.Y}, HandleSE: {X: ex, Y: ey}}
	}
	c := vector.R(s.X, s.Y, s.Width, s.Height).Corners()
	return map[Handle]vector.Pt{HandleNW: c[0], HandleNE: c[1], HandleSW: c[2], HandleSE: c[3]}
}

// HandleAt returns the corner of s within radius of p, checking nw, ne, sw, se in turn.
func HandleAt(p vector.Pt, s domain.Shape, radius float64) Handle {
	if radius <= 0 {
		radius = HandleRadius
	}
	hs := Handles(s)
	for _, h := range []Handle{HandleNW, HandleNE, HandleSW, HandleSE} {
		if c, ok := hs[h]; ok && p.Dist(c) <= radius {
			return h
		}
	}
	return HandleNone
}
