/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// StrokeSegment returns a closed quad covering the segment ab drawn with the given width
// and butt caps.
func StrokeSegment(a, b Pt, width float64) Path {
	d := b.Sub(a)
	l := d.Len()
	if l == 0 || width <= 0 {
		return Path{}
	}
	n := Pt{-d.Y / l, d.X / l}.Scale(width / 2)
	var p Path
	p.MoveTo(a.X+n.X, a.Y+n.Y)
	p.LineTo(b.X+n.X, b.Y+n.Y)
	p.LineTo(b.X-n.X, b.Y-n.Y)
	p.LineTo(a.X-n.X, a.Y-n.Y)
	p.Close()
	return p
}

// DashSegment cuts ab into the "on" pieces of the dash pattern, starting with an on
// interval. An empty pattern yields the whole segment.
func DashSegment(a, b Pt, pattern []float64) [][2]Pt {
	total := a.Dist(b)
	if len(pattern) == 0 || total == 0 {
		return [][2]Pt{{a, b}}
	}
	sum := 0.0
	for _, v := range pattern {
		sum += math.Max(0, v)
	}
	if sum == 0 {
		return [][2]Pt{{a, b}}
	}
	dir := b.Sub(a).Scale(1 / total)
	var out [][2]Pt
	pos, i, on := 0.0, 0, true
	for pos < total {
		step := math.Max(0, pattern[i%len(pattern)])
		end := math.Min(total, pos+step)
		if on && end > pos {
			out = append(out, [2]Pt{a.Add(dir.Scale(pos)), a.Add(dir.Scale(end))})
		}
		pos = end
		on = !on
		i++
	}
	return out
}

// StrokePolyline strokes each edge of a polyline (closing it when closed is set),
// applying the dash pattern per edge.
func StrokePolyline(pts []Pt, closed bool, width float64, dash []float64) Path {
	var out Path
	n := len(pts)
	if n < 2 {
		return out
	}
	edges := n - 1
	if closed {
		edges = n
	}
	for i := 0; i < edges; i++ {
		a, b := pts[i], pts[(i+1)%n]
		for _, seg := range DashSegment(a, b, dash) {
			out.Append(StrokeSegment(seg[0], seg[1], width))
		}
	}
	return out
}

// StrokePath strokes every subpath of p.
func StrokePath(p Path, width float64, dash []float64) Path {
	var out Path
	polys, closed := p.Polylines()
	for i, poly := range polys {
		out.Append(StrokePolyline(poly, closed[i], width, dash))
	}
	return out
}
