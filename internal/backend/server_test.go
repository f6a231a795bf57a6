/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"warehousemap/internal/domain"
	"warehousemap/internal/editor"
	"warehousemap/internal/storage"
)

const testSecret = "test-secret"

func newTestServer(t *testing.T, opts ServerOptions) (*Server, *httptest.Server, *storage.Index) {
	t.Helper()
	idx, err := storage.OpenIndexAt(filepath.Join(t.TempDir(), "index.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = idx.Close() })
	if opts.Secret == "" {
		opts.Secret = testSecret
	}
	s := NewServer(idx, opts)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts, idx
}

func adminClient(t *testing.T, ts *httptest.Server) *Client {
	t.Helper()
	c := NewClient(ts.URL, "")
	tok, err := c.IssueToken(context.Background(), "admin", "", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	c.Token = tok.Token
	return c
}

func testShapes() []domain.Shape {
	return []domain.Shape{
		{Kind: domain.KindRectangle, X: 20, Y: 20, Width: 100, Height: 60, Label: "A001", Quantity: 40, ZOrder: 0},
		{Kind: domain.KindLine, X: 0, Y: 200, Width: 300, Height: 0, LineStyle: domain.LineDashed, ZOrder: 1},
		{Kind: domain.KindText, X: 10, Y: 300, Width: 80, Height: 20, Content: "Doca 1", ZOrder: 2},
	}
}

func TestSaveAndReloadThroughServer(t *testing.T) {
	_, ts, _ := newTestServer(t, ServerOptions{})
	c := adminClient(t, ts)
	ctx := context.Background()

	ids, err := c.SaveLayout(ctx, 9, testShapes())
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 3 || ids[0] == 0 || ids[0] == ids[1] {
		t.Fatalf("ids %v", ids)
	}

	lr, err := c.Layout(ctx, 9)
	if err != nil {
		t.Fatal(err)
	}
	if !lr.Admin || len(lr.Layout.Shapes) != 3 {
		t.Fatalf("layout %+v", lr)
	}
	// keep the first two, drop the text, add a new lot
	next := []domain.Shape{lr.Layout.Shapes[0], lr.Layout.Shapes[1],
		{Kind: domain.KindRectangle, X: 200, Y: 20, Width: 60, Height: 60, Label: "A002"}}
	ids2, err := c.SaveLayout(ctx, 9, next)
	if err != nil {
		t.Fatal(err)
	}
	if ids2[0] != ids[0] || ids2[1] != ids[1] || ids2[2] == ids[2] {
		t.Fatalf("ids not kept: %v then %v", ids, ids2)
	}
	lr, _ = c.Layout(ctx, 9)
	if len(lr.Layout.Shapes) != 2+1 || lr.Layout.Shapes[2].Label != "A002" {
		t.Fatalf("reloaded %+v", lr.Layout.Shapes)
	}

	anon, err := NewClient(ts.URL, "").Layout(ctx, 9)
	if err != nil || anon.Admin {
		t.Fatalf("anonymous caller must be viewer: %+v %v", anon, err)
	}
	empty, err := c.Layout(ctx, 404)
	if err != nil || len(empty.Layout.Shapes) != 0 || empty.Layout.WarehouseID != 404 {
		t.Fatalf("unknown warehouse should be empty: %+v %v", empty, err)
	}
}

func TestSaveRejections(t *testing.T) {
	_, ts, _ := newTestServer(t, ServerOptions{})
	ctx := context.Background()

	var se *SaveError
	_, err := NewClient(ts.URL, "").SaveLayout(ctx, 1, testShapes())
	if !errors.As(err, &se) || se.Status != http.StatusUnauthorized {
		t.Fatalf("expected 401 SaveError, got %v", err)
	}

	c := adminClient(t, ts)
	bad := testShapes()
	bad[0].OpacityPercent = 150
	_, err = c.SaveLayout(ctx, 1, bad)
	if !errors.As(err, &se) || se.Status != http.StatusBadRequest || !strings.Contains(se.Message, "schema") {
		t.Fatalf("expected schema rejection, got %v", err)
	}

	// no CSRF cookie or header
	b, _ := json.Marshal(SaveRequest{WarehouseID: 1, Shapes: testShapes()})
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/warehouses/1/layout", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	var out SaveResponse
	_ = json.NewDecoder(resp.Body).Decode(&out)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden || out.Success || out.Error == "" {
		t.Fatalf("csrf check: %d %+v", resp.StatusCode, out)
	}

	// body id differs from path id
	tok, _ := c.FetchCSRF(ctx)
	req, _ = http.NewRequest(http.MethodPost, ts.URL+"/api/warehouses/2/layout", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set(csrfHeader, tok)
	req.AddCookie(&http.Cookie{Name: csrfCookie, Value: tok})
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("mismatched id: %d", resp.StatusCode)
	}
}

func TestAdminKeyGuardsTokens(t *testing.T) {
	_, ts, _ := newTestServer(t, ServerOptions{AdminKey: "k"})
	c := NewClient(ts.URL, "")
	if _, err := c.IssueToken(context.Background(), "admin", "wrong", time.Hour); err == nil {
		t.Fatal("wrong key accepted")
	}
	tok, err := c.IssueToken(context.Background(), "admin", "k", 0)
	if err != nil || tok.Token == "" {
		t.Fatalf("token: %+v %v", tok, err)
	}
}

func TestStockEndpoints(t *testing.T) {
	_, ts, idx := newTestServer(t, ServerOptions{})
	ctx := context.Background()
	if err := idx.SetStock(ctx, "A001", 5); err != nil {
		t.Fatal(err)
	}
	anon := NewClient(ts.URL, "")
	if has, err := anon.HasStock(ctx, "a001"); err != nil || !has {
		t.Fatalf("A001: %v %v", has, err)
	}
	if has, err := anon.HasStock(ctx, "B001"); err != nil || has {
		t.Fatalf("B001: %v %v", has, err)
	}
	if err := anon.SetStock(ctx, "B001", 3); err == nil {
		t.Fatal("anonymous stock update accepted")
	}
	c := adminClient(t, ts)
	if err := c.SetStock(ctx, "B001", 3); err != nil {
		t.Fatal(err)
	}
	if err := c.SetStock(ctx, "A001", 0); err != nil {
		t.Fatal(err)
	}
	if has, _ := anon.HasStock(ctx, "B001"); !has {
		t.Fatal("B001 should hold stock")
	}
	if has, _ := anon.HasStock(ctx, "A001"); has {
		t.Fatal("A001 was emptied")
	}
}

func get(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp, b
}

func TestRenderAndLabelEndpoints(t *testing.T) {
	_, ts, idx := newTestServer(t, ServerOptions{})
	if _, err := idx.PutLayout(context.Background(), domain.Layout{WarehouseID: 4, Name: "CD Norte", Width: 400, Height: 300, Shapes: testShapes()}); err != nil {
		t.Fatal(err)
	}
	base := ts.URL + "/api/warehouses/4"

	resp, b := get(t, base+"/render.png?zoom=2")
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "image/png" {
		t.Fatalf("png: %d %s", resp.StatusCode, resp.Header.Get("Content-Type"))
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if sz := img.Bounds().Size(); sz.X != 800 || sz.Y != 600 {
		t.Fatalf("png size %v", sz)
	}
	if _, b := get(t, base+"/render.svg?grid=1"); !bytes.Contains(b, []byte("<svg")) || !bytes.Contains(b, []byte("A001")) {
		t.Fatalf("svg output: %.200s", b)
	}
	if _, b := get(t, base+"/render.pdf"); !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatal("pdf output")
	}
	if _, b := get(t, base+"/labels.pdf"); !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatal("label sheet output")
	}
	if resp, _ := get(t, ts.URL+"/api/warehouses/5/render.png"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown warehouse render: %d", resp.StatusCode)
	}
	if resp, _ := get(t, ts.URL+"/api/warehouses/5/labels.pdf"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("empty label sheet: %d", resp.StatusCode)
	}
	if resp, _ := get(t, base+"/render.gif"); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown format: %d", resp.StatusCode)
	}
}

func TestHealthAndRequestID(t *testing.T) {
	_, ts, _ := newTestServer(t, ServerOptions{})
	for _, p := range []string{"/healthz", "/readyz", "/version"} {
		resp, b := get(t, ts.URL+p)
		if resp.StatusCode != http.StatusOK || len(b) == 0 {
			t.Errorf("%s: %d", p, resp.StatusCode)
		}
		if resp.Header.Get("X-Request-ID") == "" {
			t.Errorf("%s: no request id", p)
		}
	}
}

func TestHubBroadcastsSaves(t *testing.T) {
	events := make(chan Event, 4)
	s, ts, _ := newTestServer(t, ServerOptions{OnEvent: func(e Event) { events <- e }})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Hub().Run(ctx)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for s.Hub().Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Hub().Count() != 1 {
		t.Fatal("listener not registered")
	}

	if _, err := adminClient(t, ts).SaveLayout(context.Background(), 12, testShapes()); err != nil {
		t.Fatal(err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != EventLayoutSaved || ev.WarehouseID != 12 || ev.Shapes != 3 {
		t.Fatalf("event %+v", ev)
	}
	if len(events) != 1 {
		t.Fatalf("OnEvent saw %d events", len(events))
	}
}

func TestEditorSessionSavesThroughServer(t *testing.T) {
	_, ts, idx := newTestServer(t, ServerOptions{})
	shapes := testShapes()[:2]
	ctrl := editor.NewController(shapes, editor.Options{Admin: true, WarehouseID: 21})
	ctrl.Select(0)
	if ok, err := ctrl.BringForward(); err != nil || !ok {
		t.Fatalf("bring forward: %v %v", ok, err)
	}
	sess := editor.NewSession(ctrl, adminClient(t, ts))
	if err := sess.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	if ctrl.Modified() {
		t.Fatal("modified after save")
	}
	for i := 0; i < ctrl.Len(); i++ {
		if !ctrl.Shape(i).HasID() {
			t.Fatalf("shape %d has no id", i)
		}
	}
	stored, err := idx.LoadLayout(context.Background(), 21)
	if err != nil || len(stored.Shapes) != 2 {
		t.Fatalf("stored %+v %v", stored, err)
	}
}
