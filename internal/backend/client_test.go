/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"warehousemap/internal/domain"
)

func TestClientSaveSendsRoundedPayload(t *testing.T) {
	var got SaveRequest
	var gotCSRF, gotAuth string
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: "tok123", Path: "/"})
		writeJSON(w, http.StatusOK, map[string]string{"csrfToken": "tok123"})
	})
	mux.HandleFunc("/api/warehouses/7/layout", func(w http.ResponseWriter, r *http.Request) {
		gotCSRF = r.Header.Get(csrfHeader)
		gotAuth = r.Header.Get("Authorization")
		if c, err := r.Cookie(csrfCookie); err != nil || c.Value != "tok123" {
			t.Errorf("csrf cookie not sent: %v", err)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		writeJSON(w, http.StatusOK, SaveResponse{Success: true, SavedShapes: []SavedShape{{ID: 11}, {ID: 12}}})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := NewClient(ts.URL+"/", "bearer-x")
	shapes := []domain.Shape{
		{Kind: domain.KindRectangle, X: 10.6, Y: 3.2, Width: 99.5, Height: 40, Label: "A001"},
		{Kind: domain.KindLine, X: 1, Y: 1, Width: -20.4, Height: 0},
	}
	res, err := c.Save(context.Background(), 7, shapes)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.IDs) != 2 || res.IDs[0] != 11 || res.IDs[1] != 12 {
		t.Fatalf("ids %v", res.IDs)
	}
	if gotCSRF != "tok123" || gotAuth != "Bearer bearer-x" {
		t.Fatalf("headers csrf=%q auth=%q", gotCSRF, gotAuth)
	}
	if got.WarehouseID != 7 || got.Shapes[0].X != 11 || got.Shapes[0].Width != 100 || got.Shapes[1].Width != -20 {
		t.Fatalf("payload %+v", got)
	}
	if shapes[0].X != 10.6 {
		t.Fatal("caller's shapes were modified")
	}
}

func TestClientSaveErrorCarriesServerMessage(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"csrfToken": "t"})
	})
	mux.HandleFunc("/api/warehouses/1/layout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, SaveResponse{Success: false, Error: "Endereço A001 duplicado"})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	_, err := NewClient(ts.URL, "").SaveLayout(context.Background(), 1, []domain.Shape{})
	var se *SaveError
	if !errors.As(err, &se) {
		t.Fatalf("expected *SaveError, got %T %v", err, err)
	}
	if se.Error() != "Endereço A001 duplicado" || se.Status != http.StatusOK {
		t.Fatalf("message %q status %d", se.Error(), se.Status)
	}
}

func TestClientSaveNonJSONFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/csrf" {
			writeJSON(w, http.StatusOK, map[string]string{"csrfToken": "t"})
			return
		}
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer ts.Close()

	_, err := NewClient(ts.URL, "").Save(context.Background(), 1, nil)
	var se *SaveError
	if err == nil || errors.As(err, &se) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !strings.Contains(err.Error(), "502") {
		t.Fatalf("status missing from %v", err)
	}
}

func TestClientHasStockAndLayout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/stock-check/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, StockResponse{HasStock: strings.HasSuffix(r.URL.Path, "/A001")})
	})
	mux.HandleFunc("/api/warehouses/3/layout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"layout": map[string]any{"warehouseId": 3}, "admin": false})
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()
	c := NewClient(ts.URL, "")
	ctx := context.Background()

	for label, want := range map[string]bool{"A001": true, "B002": false} {
		got, err := c.HasStock(ctx, label)
		if err != nil || got != want {
			t.Errorf("HasStock(%s) = %v, %v", label, got, err)
		}
	}
	lr, err := c.Layout(ctx, 3)
	if err != nil {
		t.Fatal(err)
	}
	if lr.Admin || lr.Layout.WarehouseID != 3 || lr.Layout.Shapes == nil {
		t.Fatalf("layout response %+v", lr)
	}
	if _, err := c.Layout(ctx, 4); err == nil {
		t.Fatal("expected 404 error")
	}
}

func TestClientSaveTruncatedBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/csrf", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"csrfToken": "t"})
	})
	mux.HandleFunc("/api/warehouses/2/layout", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "64")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true`))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	_, err := NewClient(ts.URL, "").SaveLayout(context.Background(), 2, []domain.Shape{})
	if err == nil || !strings.Contains(err.Error(), "read save response") {
		t.Fatalf("expected a read error, got %v", err)
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Fatalf("cause not wrapped: %v", err)
	}
}
