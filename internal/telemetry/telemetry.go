/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry is an opt-in, asynchronous sender for anonymous usage events and
// crash reports. Nothing is sent unless opt-in is set and an endpoint is configured.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	applog "warehousemap/internal/log"
	"warehousemap/internal/version"
)

// Event names.
const (
	EventLayoutSaved    = "layout.saved"
	EventLayoutRendered = "layout.rendered"
	EventLabelsPrinted  = "labels.printed"
	EventServerStarted  = "server.started"
)

const queueSize = 64

// Config controls the sender.
//
// Environment variables (read by FromEnv):
//   - WMAP_TELEMETRY_OPT_IN: 1, true, yes or on enables events
//   - WMAP_TELEMETRY_URL: endpoint events are POSTed to as JSON
//   - WMAP_CRASH_UPLOAD_URL: endpoint crash reports are POSTed to
//   - WMAP_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
//   - WMAP_TELEMETRY_DEBUG: log send attempts
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("WMAP_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("WMAP_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("WMAP_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("WMAP_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("WMAP_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

// Merge applies the user's configuration file on top of the environment. The opt-in
// from either source enables sending; the environment URL wins when both are set.
func (c Config) Merge(optIn bool, eventsURL string) Config {
	c.OptIn = c.OptIn || optIn
	if c.EventsURL == "" {
		c.EventsURL = strings.TrimSpace(eventsURL)
	}
	return c
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Payload is the JSON body of one event. Props must not carry personal data.
type Payload struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// Client sends events from a background goroutine over a bounded queue. Events are
// dropped when the queue is full or a request fails.
type Client struct {
	cfg      Config
	log      *slog.Logger
	cli      *http.Client
	q        chan Payload
	inflight atomic.Int64
	dropped  atomic.Int64
	once     sync.Once
	closed   chan struct{}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the package client, creating it from the environment on first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SetDefault installs c as the package client and closes the previous one.
func SetDefault(c *Client) {
	defaultMu.Lock()
	prev := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	if prev != nil && prev != c {
		prev.Close()
	}
}

func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan Payload, queueSize),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events will be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Dropped counts events lost to a full queue.
func (c *Client) Dropped() int64 { return c.dropped.Load() }

// Event queues an event. It never blocks.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	p := Payload{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		p.Props = make(map[string]any, len(props))
		for k, v := range props {
			p.Props[k] = v
		}
	}
	c.inflight.Add(1)
	select {
	case c.q <- p:
	default:
		c.inflight.Add(-1)
		c.dropped.Add(1)
	}
}

// LayoutSaved records a successful save.
func (c *Client) LayoutSaved(shapes int, took time.Duration) {
	c.Event(EventLayoutSaved, map[string]any{"shapes": shapes, "ms": took.Milliseconds()})
}

// LayoutRendered records an export in format (png, svg or pdf).
func (c *Client) LayoutRendered(format string, shapes int) {
	c.Event(EventLayoutRendered, map[string]any{"format": format, "shapes": shapes})
}

// Flush waits until queued events are sent, ctx is done or two seconds pass.
func (c *Client) Flush(ctx context.Context) {
	deadline := time.Now().Add(2 * time.Second)
	for c.inflight.Load() > 0 && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
}

// Close stops the background goroutine. Queued events are discarded.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case p := <-c.q:
			c.send(p)
			c.inflight.Add(-1)
		}
	}
}

func (c *Client) send(p Payload) {
	buf, err := json.Marshal(p)
	if err != nil {
		return
	}
	c.post(c.cfg.EventsURL, "application/json", buf)
}

func (c *Client) post(url, contentType string, body []byte) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("telemetry send failed", slog.String("url", url), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry sent", slog.String("url", url), slog.Int("status", resp.StatusCode))
	}
}

// UploadCrash posts a crash report when opted in. It returns immediately.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	b := append([]byte(nil), report...)
	go c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b)
}

// Event sends through the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// UploadCrash sends through the default client.
func UploadCrash(report []byte) { Default().UploadCrash(report) }
