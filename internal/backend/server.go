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
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"warehousemap/internal/domain"
	"warehousemap/internal/labels"
	applog "warehousemap/internal/log"
	"warehousemap/internal/render"
	"warehousemap/internal/version"
)

const (
	maxBodyBytes = 8 << 20
	devSecret    = "dev-secret-change-me"
)

// ServerOptions configures a Server.
type ServerOptions struct {
	// Secret signs bearer tokens. Empty selects an insecure development secret.
	Secret string
	// AdminKey must accompany token requests when set.
	AdminKey string
	// OnEvent, when set, observes every event the server broadcasts.
	OnEvent func(Event)
}

// Server is the map server: layout CRUD, stock checks, renders and label sheets.
type Server struct {
	store  LayoutStore
	hub    *Hub
	opts   ServerOptions
	router *mux.Router
}

func NewServer(store LayoutStore, opts ServerOptions) *Server {
	if opts.Secret == "" {
		opts.Secret = devSecret
		applog.WithComponent("backend").Warn("WMAP_AUTH_SECRET not set; using insecure dev secret")
	}
	s := &Server{store: store, hub: NewHub(), opts: opts}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) routes() {
	r := mux.NewRouter()
	r.Use(requestContext)

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.ready).Methods(http.MethodGet)
	r.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("warehousemap " + version.String()))
	}).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWs)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/csrf", s.csrf).Methods(http.MethodGet)
	api.HandleFunc("/auth/token", s.issueToken).Methods(http.MethodPost)
	api.HandleFunc("/stock-check/{label}", s.stockCheck).Methods(http.MethodGet)
	api.HandleFunc("/stock/{label}", withAuth(s.opts.Secret, s.setStock)).Methods(http.MethodPut)

	wh := api.PathPrefix("/warehouses/{id:[0-9]+}").Subrouter()
	wh.HandleFunc("/layout", s.getLayout).Methods(http.MethodGet)
	wh.HandleFunc("/layout", s.saveLayout).Methods(http.MethodPost)
	wh.HandleFunc("/render.{format:png|svg|pdf}", s.renderLayout).Methods(http.MethodGet)
	wh.HandleFunc("/labels.pdf", s.labelSheet).Methods(http.MethodGet)
	s.router = r
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// requestContext assigns a request id, stores it on the context and logs the request.
func requestContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		ctx := applog.WithRequestID(r.Context(), id)
		if v, ok := mux.Vars(r)["id"]; ok {
			if wid, err := strconv.ParseInt(v, 10, 64); err == nil {
				ctx = applog.WithWarehouseID(ctx, wid)
			}
		}
		start := time.Now()
		if r.URL.Path == "/ws" {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(ctx))
		applog.WithComponent("http").DebugContext(ctx, "request",
			slog.String("method", r.Method), slog.String("path", r.URL.Path),
			slog.Int("status", rec.status), slog.Duration("took", time.Since(start)))
	})
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.Ping(ctx); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("db not ready"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) csrf(w http.ResponseWriter, r *http.Request) {
	tok := newCSRFToken()
	if c, err := r.Cookie(csrfCookie); err == nil && c.Value != "" {
		tok = c.Value
	}
	http.SetCookie(w, &http.Cookie{Name: csrfCookie, Value: tok, Path: "/", SameSite: http.SameSiteLaxMode})
	writeJSON(w, http.StatusOK, map[string]string{"csrfToken": tok})
}

func (s *Server) issueToken(w http.ResponseWriter, r *http.Request) {
	var req TokenRequest
	b, _ := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	_ = json.Unmarshal(b, &req)
	if s.opts.AdminKey != "" && req.Key != s.opts.AdminKey {
		writeError(w, http.StatusForbidden, errors.New("invalid admin key"))
		return
	}
	if req.Subject == "" {
		req.Subject = "admin"
	}
	if req.TTLSeconds <= 0 || req.TTLSeconds > 24*3600 {
		req.TTLSeconds = 3600
	}
	exp := time.Now().Add(time.Duration(req.TTLSeconds) * time.Second)
	tok, err := signToken(s.opts.Secret, req.Subject, exp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenResponse{Token: tok, ExpiresAt: exp.UTC().Format(time.RFC3339)})
}

func warehouseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid warehouse id")
	}
	return id, nil
}

// loadOrEmpty returns the stored layout, or an empty one for an unknown warehouse.
func (s *Server) loadOrEmpty(ctx context.Context, id int64) (domain.Layout, error) {
	lay, err := s.store.LoadLayout(ctx, id)
	if errors.Is(err, domain.ErrLayoutNotFound) {
		return domain.Layout{WarehouseID: id, Shapes: []domain.Shape{}}, nil
	}
	return lay, err
}

func (s *Server) getLayout(w http.ResponseWriter, r *http.Request) {
	id, err := warehouseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lay, err := s.loadOrEmpty(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	_, authErr := bearerSubject(s.opts.Secret, r)
	writeJSON(w, http.StatusOK, LayoutResponse{Layout: lay, Admin: authErr == nil})
}

func (s *Server) saveLayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := applog.WithOperation(applog.WithComponent("backend"), "save_layout")
	id, err := warehouseID(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}
	if err := checkCSRF(r); err != nil {
		writeFailure(w, http.StatusForbidden, err)
		return
	}
	sub, err := bearerSubject(s.opts.Secret, r)
	if err != nil {
		writeFailure(w, http.StatusUnauthorized, err)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, fmt.Errorf("read body: %w", err))
		return
	}
	if len(body) > maxBodyBytes {
		writeFailure(w, http.StatusRequestEntityTooLarge, errors.New("layout too large"))
		return
	}
	if err := domain.ValidateLayoutJSON(body); err != nil {
		writeFailure(w, http.StatusBadRequest, err)
		return
	}
	var req SaveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, fmt.Errorf("decode layout: %w", err))
		return
	}
	if req.WarehouseID != id {
		writeFailure(w, http.StatusBadRequest, fmt.Errorf("warehouseId %d does not match path %d", req.WarehouseID, id))
		return
	}
	ids, err := s.store.SaveLayout(ctx, id, req.Shapes)
	if err != nil {
		l.ErrorContext(ctx, "save failed", slog.Any("err", err))
		writeFailure(w, http.StatusInternalServerError, err)
		return
	}
	resp := SaveResponse{Success: true, SavedShapes: make([]SavedShape, len(ids))}
	for i, v := range ids {
		resp.SavedShapes[i] = SavedShape{ID: v}
	}
	l.InfoContext(ctx, "layout saved", slog.String("subject", sub), slog.Int("shapes", len(ids)))
	s.emit(Event{Type: EventLayoutSaved, WarehouseID: id, Shapes: len(ids)})
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) emit(ev Event) {
	s.hub.Broadcast(ev)
	if s.opts.OnEvent != nil {
		s.opts.OnEvent(ev)
	}
}

func (s *Server) stockCheck(w http.ResponseWriter, r *http.Request) {
	label := mux.Vars(r)["label"]
	has, err := s.store.HasStock(r.Context(), label)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, StockResponse{HasStock: has})
}

func (s *Server) setStock(w http.ResponseWriter, r *http.Request, _ string) {
	label := mux.Vars(r)["label"]
	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil || req.Quantity == nil {
		writeError(w, http.StatusBadRequest, errors.New("body must be {\"quantity\": n}"))
		return
	}
	if err := s.store.SetStock(r.Context(), label, *req.Quantity); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.emit(Event{Type: EventStockChanged, Label: strings.ToUpper(strings.TrimSpace(label))})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) renderLayout(w http.ResponseWriter, r *http.Request) {
	id, err := warehouseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lay, err := s.store.LoadLayout(r.Context(), id)
	if errors.Is(err, domain.ErrLayoutNotFound) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	zoom := 1.0
	if v, err := strconv.ParseFloat(r.URL.Query().Get("zoom"), 64); err == nil && v >= 0.1 && v <= 4 {
		zoom = v
	}
	sc := render.LayoutScene(lay, zoom, r.URL.Query().Get("grid") == "1", nil)
	format := mux.Vars(r)["format"]
	w.Header().Set("Content-Type", render.ContentType(format))
	err = render.Encode(w, format, sc)
	if err != nil {
		applog.WithComponent("backend").WarnContext(r.Context(), "render failed", slog.String("format", format), slog.Any("err", err))
	}
}

func (s *Server) labelSheet(w http.ResponseWriter, r *http.Request) {
	id, err := warehouseID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	lay, err := s.loadOrEmpty(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if len(labels.Collect(lay)) == 0 {
		writeError(w, http.StatusNotFound, labels.ErrNoLabels)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	if _, err := labels.SheetPDF(w, lay, labels.DefaultSheet()); err != nil {
		applog.WithComponent("backend").WarnContext(r.Context(), "label sheet failed", slog.Any("err", err))
	}
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l := applog.WithComponent("backend")
	hctx, stop := context.WithCancel(ctx)
	defer stop()
	go s.hub.Run(hctx)

	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	l.Info("map server listening", slog.String("addr", addr))
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
