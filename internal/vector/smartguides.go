/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import "math"

// Snapping for dragged zones: edges and centres of the moving box are pulled onto the
// edges and centres of neighbouring shapes or the canvas border, independently per axis.

type SnapOptions struct {
	// Threshold is the maximum distance at which snapping occurs. Defaults to 6.
	Threshold     float64
	SnapToEdges   bool
	SnapToCenters bool
}

// Anchor is a static reference box. Higher weight wins ties; zero counts as 1.
type Anchor struct {
	Rect   Rect
	Weight float64
}

// GuideLine is the visual feedback for one snap. Orientation is "vertical" or
// "horizontal", Kind is "edge" or "center", Position the x or y of the guide.
type GuideLine struct {
	Orientation string
	Kind        string
	Position    float64
	From        Pt
	To          Pt
}

type axisFeature struct {
	v      float64
	center bool
}

func features(lo, size float64, edges, centers bool) []axisFeature {
	var out []axisFeature
	if edges {
		out = append(out, axisFeature{v: lo}, axisFeature{v: lo + size})
	}
	if centers {
		out = append(out, axisFeature{v: lo + size/2, center: true})
	}
	return out
}

type axisBest struct {
	delta, score float64
	guide        GuideLine
	found        bool
}

func (b *axisBest) consider(delta, weight, threshold float64, g GuideLine) {
	d := math.Abs(delta)
	if d > threshold {
		return
	}
	score := d / math.Max(1, weight)
	if !b.found || score < b.score {
		*b = axisBest{delta: delta, score: score, guide: g, found: true}
	}
}

// ComputeSmartGuides returns moving snapped against anchors plus the guides to draw.
// Edge features only pair with edges, centres only with centres.
func ComputeSmartGuides(moving Rect, anchors []Anchor, opts SnapOptions) (Rect, []GuideLine) {
	if opts.Threshold <= 0 {
		opts.Threshold = 6
	}
	var bx, by axisBest
	mx := features(moving.X, moving.W, opts.SnapToEdges, opts.SnapToCenters)
	my := features(moving.Y, moving.H, opts.SnapToEdges, opts.SnapToCenters)
	for _, a := range anchors {
		for _, af := range features(a.Rect.X, a.Rect.W, opts.SnapToEdges, opts.SnapToCenters) {
			for _, f := range mx {
				if f.center != af.center {
					continue
				}
				bx.consider(f.v-af.v, a.Weight, opts.Threshold, verticalGuide(af.v, moving, a.Rect, af.center))
			}
		}
		for _, af := range features(a.Rect.Y, a.Rect.H, opts.SnapToEdges, opts.SnapToCenters) {
			for _, f := range my {
				if f.center != af.center {
					continue
				}
				by.consider(f.v-af.v, a.Weight, opts.Threshold, horizontalGuide(af.v, moving, a.Rect, af.center))
			}
		}
	}
	var guides []GuideLine
	out := moving
	if bx.found {
		out.X = FloatRound(moving.X-bx.delta, 3)
		guides = append(guides, bx.guide)
	}
	if by.found {
		out.Y = FloatRound(moving.Y-by.delta, 3)
		guides = append(guides, by.guide)
	}
	return out, guides
}

// SnapToGrid rounds v to the nearest multiple of step; step <= 0 returns v.
func SnapToGrid(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}

func kindName(center bool) string {
	if center {
		return "center"
	}
	return "edge"
}

func verticalGuide(x float64, a, b Rect, center bool) GuideLine {
	x = FloatRound(x, 3)
	return GuideLine{
		Orientation: "vertical",
		Kind:        kindName(center),
		Position:    x,
		From:        Pt{x, math.Min(a.Y, b.Y)},
		To:          Pt{x, math.Max(a.Y+a.H, b.Y+b.H)},
	}
}

func horizontalGuide(y float64, a, b Rect, center bool) GuideLine {
	y = FloatRound(y, 3)
	return GuideLine{
		Orientation: "horizontal",
		Kind:        kindName(center),
		Position:    y,
		From:        Pt{math.Min(a.X, b.X), y},
		To:          Pt{math.Max(a.X+a.W, b.X+b.W), y},
	}
}
