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
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"warehousemap/internal/domain"
	applog "warehousemap/internal/log"
)

// SaveError is a save the server refused. Message is the server's text verbatim.
type SaveError struct {
	Status  int
	Message string
}

func (e *SaveError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("save rejected (HTTP %d)", e.Status)
	}
	return e.Message
}

// SaveResult lists the ids the server assigned, in request order.
type SaveResult struct {
	IDs []int64
}

// ClientOptions tunes the HTTP transport.
type ClientOptions struct {
	Timeout     time.Duration
	InsecureTLS bool
}

// Client talks to the map server.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client

	mu   sync.Mutex
	csrf string
}

// NewClient creates a client with default options. baseURL may include a trailing slash.
func NewClient(baseURL string, token string) *Client {
	return NewClientWithOptions(baseURL, token, ClientOptions{})
}

func NewClientWithOptions(baseURL, token string, opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	jar, _ := cookiejar.New(nil)
	hc := &http.Client{Timeout: opts.Timeout, Jar: jar}
	if opts.InsecureTLS {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for self-signed dev servers
		hc.Transport = tr
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), Token: token, client: hc}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(method, req.URL.Path, resp)
	}
	if dest == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

func statusError(method, path string, resp *http.Response) error {
	var e struct {
		Error string `json:"error"`
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	if json.Unmarshal(b, &e) == nil && e.Error != "" {
		return fmt.Errorf("server %s %s: %s: %s", method, path, resp.Status, e.Error)
	}
	return fmt.Errorf("server %s %s: %s", method, path, resp.Status)
}

// FetchCSRF obtains the anti-forgery token. The matching cookie lands in the
// client's jar.
func (c *Client) FetchCSRF(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"csrfToken"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/csrf", nil, &out); err != nil {
		return "", fmt.Errorf("fetch csrf: %w", err)
	}
	c.mu.Lock()
	c.csrf = out.Token
	c.mu.Unlock()
	return out.Token, nil
}

func (c *Client) csrfToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	tok := c.csrf
	c.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	return c.FetchCSRF(ctx)
}

// Save posts the whole layout of a warehouse. Geometry is rounded before sending.
// A refusal by the server yields a *SaveError.
func (c *Client) Save(ctx context.Context, warehouseID int64, shapes []domain.Shape) (SaveResult, error) {
	l := applog.WithOperation(applog.WithComponent("backend"), "client_save")
	tok, err := c.csrfToken(ctx)
	if err != nil {
		return SaveResult{}, err
	}
	body := SaveRequest{WarehouseID: warehouseID, Shapes: make([]domain.Shape, len(shapes))}
	for i, s := range shapes {
		body.Shapes[i] = s.Rounded()
	}
	path := fmt.Sprintf("/api/warehouses/%d/layout", warehouseID)
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return SaveResult{}, err
	}
	req.Header.Set(csrfHeader, tok)
	resp, err := c.client.Do(req)
	if err != nil {
		return SaveResult{}, fmt.Errorf("save layout: %w", err)
	}
	defer resp.Body.Close()

	var out SaveResponse
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return SaveResult{}, fmt.Errorf("read save response: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return SaveResult{}, fmt.Errorf("save layout: %s", resp.Status)
		}
		return SaveResult{}, fmt.Errorf("decode save response: %w", err)
	}
	if !out.Success {
		if resp.StatusCode == http.StatusForbidden {
			// drop a stale token
			c.mu.Lock()
			c.csrf = ""
			c.mu.Unlock()
		}
		l.Warn("save rejected", slog.Int64("warehouse", warehouseID), slog.Int("status", resp.StatusCode), slog.String("error", out.Error))
		return SaveResult{}, &SaveError{Status: resp.StatusCode, Message: out.Error}
	}
	res := SaveResult{IDs: make([]int64, len(out.SavedShapes))}
	for i, s := range out.SavedShapes {
		res.IDs[i] = s.ID
	}
	return res, nil
}

// SaveLayout is Save returning only the ids.
func (c *Client) SaveLayout(ctx context.Context, warehouseID int64, shapes []domain.Shape) ([]int64, error) {
	res, err := c.Save(ctx, warehouseID, shapes)
	if err != nil {
		return nil, err
	}
	return res.IDs, nil
}

// HasStock asks whether an address holds inventory.
func (c *Client) HasStock(ctx context.Context, label string) (bool, error) {
	var out StockResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/stock-check/"+url.PathEscape(label), nil, &out); err != nil {
		return false, err
	}
	return out.HasStock, nil
}

// Layout fetches a warehouse layout and whether the caller may edit it.
func (c *Client) Layout(ctx context.Context, warehouseID int64) (LayoutResponse, error) {
	var out LayoutResponse
	if err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/warehouses/%d/layout", warehouseID), nil, &out); err != nil {
		return LayoutResponse{}, err
	}
	if out.Layout.Shapes == nil {
		out.Layout.Shapes = []domain.Shape{}
	}
	return out, nil
}

// IssueToken requests a bearer token for subject. key is the server's admin key and
// may be empty on dev servers.
func (c *Client) IssueToken(ctx context.Context, subject, key string, ttl time.Duration) (TokenResponse, error) {
	var out TokenResponse
	req := TokenRequest{Subject: subject, Key: key, TTLSeconds: int64(ttl / time.Second)}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &out); err != nil {
		return TokenResponse{}, err
	}
	return out, nil
}

// SetStock reports the on-hand quantity of an address.
func (c *Client) SetStock(ctx context.Context, label string, quantity int) error {
	body := map[string]int{"quantity": quantity}
	return c.doJSON(ctx, http.MethodPut, "/api/stock/"+url.PathEscape(label), body, nil)
}
