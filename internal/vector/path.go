/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

// Polygon paths. Curves are not needed by any shape on the map, so a path is a list of
// closed or open polylines.

type PathOp uint8

const (
	MoveTo PathOp = iota
	LineTo
	Close
)

type PathCmd struct {
	Op PathOp
	P  Pt
}

type Path struct{ Cmds []PathCmd }

func (p *Path) MoveTo(x, y float64) { p.Cmds = append(p.Cmds, PathCmd{Op: MoveTo, P: Pt{x, y}}) }
func (p *Path) LineTo(x, y float64) { p.Cmds = append(p.Cmds, PathCmd{Op: LineTo, P: Pt{x, y}}) }
func (p *Path) Close()              { p.Cmds = append(p.Cmds, PathCmd{Op: Close}) }

// Append copies all commands of q onto p.
func (p *Path) Append(q Path) { p.Cmds = append(p.Cmds, q.Cmds...) }

// Empty reports whether the path draws nothing.
func (p Path) Empty() bool { return len(p.Cmds) == 0 }

// RectPath returns the closed outline of r.
func RectPath(r Rect) Path {
	var p Path
	p.MoveTo(r.X, r.Y)
	p.LineTo(r.X+r.W, r.Y)
	p.LineTo(r.X+r.W, r.Y+r.H)
	p.LineTo(r.X, r.Y+r.H)
	p.Close()
	return p
}

// Transform returns a copy with m applied to every point.
func (p Path) Transform(m Affine2D) Path {
	if m.IsIdentity() {
		return p
	}
	out := Path{Cmds: make([]PathCmd, len(p.Cmds))}
	for i, c := range p.Cmds {
		if c.Op != Close {
			c.P = m.Apply(c.P)
		}
		out.Cmds[i] = c
	}
	return out
}

// Bounds returns the axis-aligned bounding box of all points.
func (p Path) Bounds() Rect {
	minX, minY := 1e18, 1e18
	maxX, maxY := -1e18, -1e18
	for _, c := range p.Cmds {
		if c.Op == Close {
			continue
		}
		minX = min(minX, c.P.X)
		minY = min(minY, c.P.Y)
		maxX = max(maxX, c.P.X)
		maxY = max(maxY, c.P.Y)
	}
	if minX > maxX || minY > maxY {
		return Rect{}
	}
	return Rect{X: minX, Y: minY, W: maxX - minX, H: maxY - minY}
}

// Polylines splits the path into its subpaths. closed[i] tells whether subpath i
// ended with Close.
func (p Path) Polylines() (polys [][]Pt, closed []bool) {
	var cur []Pt
	flush := func(c bool) {
		if len(cur) > 0 {
			polys = append(polys, cur)
			closed = append(closed, c)
		}
		cur = nil
	}
	for _, c := range p.Cmds {
		switch c.Op {
		case MoveTo:
			flush(false)
			cur = []Pt{c.P}
		case LineTo:
			cur = append(cur, c.P)
		case Close:
			flush(true)
		}
	}
	flush(false)
	return polys, closed
}
