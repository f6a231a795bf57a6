/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package log

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func lastJSONLine(t *testing.T, path string) map[string]any {
	t.Helper()
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	sc := bufio.NewScanner(strings.NewReader(string(b)))
	var last string
	for sc.Scan() {
		if s := strings.TrimSpace(sc.Text()); s != "" {
			last = s
		}
	}
	if last == "" {
		t.Fatalf("no log lines found")
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(last), &m); err != nil {
		t.Fatalf("unmarshal json log: %v", err)
	}
	return m
}

// TestInitAndStructuredLoggingToFile verifies that the rotated file sink writes JSON
// records carrying static and contextual attributes.
func TestInitAndStructuredLoggingToFile(t *testing.T) {
	// temp dir outside t.TempDir so Windows does not trip over the still-open handle
	fpath := filepath.Join(os.TempDir(), fmt.Sprintf("wmap_log_%d.json", time.Now().UnixNano()))

	Init(Options{Level: "debug", Format: "json", File: fpath})

	l := WithOperation(WithComponent("testcomp"), "op1")
	l.Info("hello world", slog.String("k", "v"))
	time.Sleep(50 * time.Millisecond)

	m := lastJSONLine(t, fpath)
	if m["app"] != "warehousemap" {
		t.Fatalf("missing app attr: %v", m["app"])
	}
	if _, ok := m["ver"].(string); !ok {
		t.Fatalf("missing ver attr")
	}
	if m["component"] != "testcomp" || m["op"] != "op1" {
		t.Fatalf("component/op mismatch: %v / %v", m["component"], m["op"])
	}
	if m["msg"] != "hello world" {
		t.Fatalf("msg mismatch: %v", m["msg"])
	}
}

func TestContextValuesAreLogged(t *testing.T) {
	fpath := filepath.Join(os.TempDir(), fmt.Sprintf("wmap_ctx_%d.json", time.Now().UnixNano()))
	Init(Options{Level: "info", Format: "json", File: fpath})

	ctx := WithWarehouseID(WithRequestID(context.Background(), "req-1"), 7)
	WithComponent("server").InfoContext(ctx, "saved")
	time.Sleep(50 * time.Millisecond)

	m := lastJSONLine(t, fpath)
	if m["request_id"] != "req-1" {
		t.Fatalf("request_id = %v", m["request_id"])
	}
	if m["warehouse_id"] != float64(7) {
		t.Fatalf("warehouse_id = %v", m["warehouse_id"])
	}
}
