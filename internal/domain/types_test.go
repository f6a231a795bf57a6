/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLayoutJSONFieldNames(t *testing.T) {
	l := Layout{
		WarehouseID: 3,
		Name:        "Main",
		Shapes: []Shape{
			{Kind: KindRectangle, X: 10, Y: 20, Width: 30, Height: 40, Label: "A001", Quantity: 5, ZOrder: 1},
		},
	}
	b, err := json.Marshal(l)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"warehouseId":3`, `"id":null`, `"kind":"Rectangle"`, `"label":"A001"`, `"quantity":5`, `"zOrder":1`} {
		if !strings.Contains(s, want) {
			t.Errorf("missing %s in %s", want, s)
		}
	}
	var got Layout
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got.Shapes) != 1 || got.Shapes[0].HasID() || got.Shapes[0].Label != "A001" {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestUnknownKindRejected(t *testing.T) {
	var s Shape
	err := json.Unmarshal([]byte(`{"kind":"Circle","x":0,"y":0,"width":1,"height":1}`), &s)
	if err == nil || !strings.Contains(err.Error(), "Circle") {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestNormalizeFlipsNegativeExtent(t *testing.T) {
	s := Shape{Kind: KindRectangle, X: 150, Y: 120, Width: -100, Height: -70}
	s.Normalize()
	if s.X != 50 || s.Y != 50 || s.Width != 100 || s.Height != 70 {
		t.Fatalf("got %+v", s)
	}
	l := Shape{Kind: KindLine, X: 10, Y: 10, Width: -5, Height: -5}
	l.Normalize()
	if l.Width != -5 || l.X != 10 {
		t.Fatalf("line should keep displacement: %+v", l)
	}
	if b := l.Bounds(); b.X != 5 || b.W != 5 {
		t.Fatalf("line bounds %+v", b)
	}
}

func TestRoundedAndClone(t *testing.T) {
	s := Shape{ID: IDPtr(9), X: 1.4, Y: 1.6, Width: 9.5, Height: 2.49}
	r := s.Rounded()
	if r.X != 1 || r.Y != 2 || r.Width != 10 || r.Height != 2 {
		t.Fatalf("rounded %+v", r)
	}
	c := s.Clone()
	*c.ID = 10
	if *s.ID != 9 {
		t.Fatal("clone shares id pointer")
	}
}

func TestConstructors(t *testing.T) {
	r := NewRectangle(5, 6, 2, DefaultStyle())
	if r.Label != "LOTE-3" || r.Quantity != 0 || r.FillColor != DefaultFillColor || r.OpacityPercent != 80 {
		t.Fatalf("rect %+v", r)
	}
	txt := NewText(1, 2)
	if txt.Width != 100 || txt.Height != 30 || txt.Content != "Novo Texto" || txt.EffectiveFill() != "#000000" {
		t.Fatalf("text %+v", txt)
	}
	var bare Shape
	if bare.EffectiveFill() != DefaultFillColor || bare.EffectiveStrokeWidth() != 2 || bare.EffectiveOpacity() != 0.8 {
		t.Fatal("zero style fields should fall back to defaults")
	}
}

func TestValidateAddressLabel(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"A001", true},
		{"b203", true},
		{" C999 ", true},
		{"", false},
		{"AB01", false},
		{"A0001", false},
		{"LOTE-1", false},
	}
	for _, c := range cases {
		err := ValidateAddressLabel(c.in)
		if (err == nil) != c.ok {
			t.Errorf("%q: got err=%v want ok=%v", c.in, err, c.ok)
		}
	}
}

func TestValidateLayoutJSON(t *testing.T) {
	good := `{"warehouseId":1,"shapes":[{"id":null,"kind":"Rectangle","x":0,"y":0,"width":10,"height":10,"fillColor":"#4f46e5","zOrder":1}]}`
	if err := ValidateLayoutJSON([]byte(good)); err != nil {
		t.Fatalf("valid doc rejected: %v", err)
	}
	bad := `{"warehouseId":0,"shapes":[{"kind":"Circle","x":0,"y":0,"width":1,"height":1,"fillColor":"blue"}]}`
	err := ValidateLayoutJSON([]byte(bad))
	var se *SchemaError
	if !errors.As(err, &se) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	if len(se.Problems) < 3 {
		t.Fatalf("expected several problems, got %v", se.Problems)
	}
}
