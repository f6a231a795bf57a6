/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package vector

import (
	"math"
	"testing"
)

func TestRectContainsIsInclusive(t *testing.T) {
	r := R(10, 20, 100, 50)
	if !r.Contains(Pt{10, 20}) || !r.Contains(Pt{110, 70}) {
		t.Fatalf("edge points should be contained")
	}
	if r.Contains(Pt{110.01, 70}) {
		t.Fatalf("point past the edge contained")
	}
	in := r.Inflate(10)
	if in.X != 0 || in.Y != 10 || in.W != 120 || in.H != 70 {
		t.Fatalf("inflate: %+v", in)
	}
	n := R(150, 120, -100, -70).Normalize()
	if n != R(50, 50, 100, 70) {
		t.Fatalf("normalize: %+v", n)
	}
}

func TestDistToSegment(t *testing.T) {
	a, b := Pt{0, 0}, Pt{100, 0}
	cases := []struct {
		p    Pt
		want float64
	}{
		{Pt{50, 5}, 5},
		{Pt{-3, 4}, 5},
		{Pt{103, -4}, 5},
		{Pt{0, 0}, 0},
	}
	for _, c := range cases {
		if got := DistToSegment(c.p, a, b); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("DistToSegment(%v) = %v want %v", c.p, got, c.want)
		}
	}
	if d := DistToSegment(Pt{3, 4}, Pt{0, 0}, Pt{0, 0}); d != 5 {
		t.Fatalf("degenerate segment: %v", d)
	}
}

func TestAffineMulApplyInvert(t *testing.T) {
	m := Translate(10, 5).Mul(Scale(2, 3))
	p := m.Apply(Pt{1, 1})
	if p.X != 12 || p.Y != 8 {
		t.Fatalf("apply: %+v", p)
	}
	inv, ok := m.Invert()
	if !ok {
		t.Fatal("expected invertible")
	}
	back := inv.Apply(p)
	if math.Abs(back.X-1) > 1e-9 || math.Abs(back.Y-1) > 1e-9 {
		t.Fatalf("invert round trip: %+v", back)
	}
	if _, ok := Scale(0, 1).Invert(); ok {
		t.Fatal("singular matrix reported invertible")
	}
}

func TestRotateAboutCenter(t *testing.T) {
	m := RotateAbout(Pt{50, 50}, 90)
	p := m.Apply(Pt{100, 50})
	if math.Abs(p.X-50) > 1e-9 || math.Abs(p.Y-100) > 1e-9 {
		t.Fatalf("rotate 90 about centre: %+v", p)
	}
	if !RotateAbout(Pt{1, 1}, 0).IsIdentity() {
		t.Fatal("zero rotation should be identity")
	}
}

func TestPathBoundsAndTransform(t *testing.T) {
	p := RectPath(R(0, 0, 10, 20)).Transform(Translate(5, 5))
	if b := p.Bounds(); b != R(5, 5, 10, 20) {
		t.Fatalf("bounds: %+v", b)
	}
	polys, closed := p.Polylines()
	if len(polys) != 1 || len(polys[0]) != 4 || !closed[0] {
		t.Fatalf("polylines: %v %v", polys, closed)
	}
	if (Path{}).Bounds() != (Rect{}) {
		t.Fatal("empty path bounds")
	}
}

func TestDashSegment(t *testing.T) {
	segs := DashSegment(Pt{0, 0}, Pt{20, 0}, DashDashed)
	if len(segs) != 2 {
		t.Fatalf("expected 2 dashes, got %d", len(segs))
	}
	if segs[1][0].X != 10 || segs[1][1].X != 15 {
		t.Fatalf("second dash %v", segs[1])
	}
	if len(DashSegment(Pt{0, 0}, Pt{20, 0}, nil)) != 1 {
		t.Fatal("solid should yield one segment")
	}
	q := StrokeSegment(Pt{0, 0}, Pt{10, 0}, 2)
	if b := q.Bounds(); b != R(0, -1, 10, 2) {
		t.Fatalf("stroke bounds %+v", b)
	}
}

func TestParseHex(t *testing.T) {
	c, err := ParseHex("#4f46e5")
	if err != nil || c != (Color{0x4f, 0x46, 0xe5, 255}) {
		t.Fatalf("parse: %v %v", c, err)
	}
	if c.Hex() != "#4f46e5" {
		t.Fatalf("hex: %s", c.Hex())
	}
	s, err := ParseHex("fff")
	if err != nil || s != White {
		t.Fatalf("short form: %v %v", s, err)
	}
	if _, err := ParseHex("blue"); err == nil {
		t.Fatal("expected error")
	}
	if a := Black.WithAlpha(0.5).A; a != 128 {
		t.Fatalf("alpha %d", a)
	}
}
