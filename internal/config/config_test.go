/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points the config dir at a temp dir and swaps the keychain for memory.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(EnvConfigDir, dir)
	t.Cleanup(SetTokenStore(&MemoryStore{}))
	return dir
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	isolate(t)
	cfg, tok, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if tok != "" {
		t.Fatalf("unexpected token %q", tok)
	}
	if cfg.Backend.BaseURL != "http://localhost:8080" || !cfg.Editor.Grid || cfg.Editor.GridSize != 20 {
		t.Fatalf("defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
}

func TestSaveLoadRoundTripKeepsTokenOutOfFile(t *testing.T) {
	dir := isolate(t)
	cfg := Defaults()
	cfg.Backend.BaseURL = "https://maps.example.test"
	cfg.Editor.Grid = false
	cfg.Editor.Zoom = 1.5
	cfg.Server.SQLitePath = "/var/lib/wmap/index.sqlite"
	if err := Save(cfg, "secret-token"); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret-token") {
		t.Fatal("token written to config file")
	}
	got, tok, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if tok != "secret-token" {
		t.Fatalf("token %q", tok)
	}
	if got.Backend.BaseURL != cfg.Backend.BaseURL || got.Editor.Grid || got.Editor.Zoom != 1.5 || got.Server.SQLitePath != cfg.Server.SQLitePath {
		t.Fatalf("round trip %+v", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv(EnvBackendURL, "https://example.test:8443")
	t.Setenv(EnvTelemetryOptIn, "yes")
	t.Setenv(EnvBackendTimeoutMs, "2500")
	t.Setenv(EnvGrid, "off")
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv(EnvLogLevel, "DEBUG")
	cfg, _, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Backend.BaseURL != "https://example.test:8443" || !cfg.General.TelemetryOptIn {
		t.Fatalf("overrides %+v", cfg)
	}
	if cfg.Backend.Timeout() != 2500*time.Millisecond || cfg.Editor.Grid {
		t.Fatalf("timeout %v grid %v", cfg.Backend.Timeout(), cfg.Editor.Grid)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.DatabaseURL != "postgres://x" || cfg.Logging.Level != "debug" {
		t.Fatalf("server/logging %+v %+v", cfg.Server, cfg.Logging)
	}
	if name, ok := EnvOverrideFor("backend.base_url"); !ok || name != EnvBackendURL {
		t.Fatalf("EnvOverrideFor = %q %v", name, ok)
	}
	if _, ok := EnvOverrideFor("logging.file"); ok {
		t.Fatal("logging.file is not overridden")
	}
}

func TestMigrateVersionOneTurnsGridOn(t *testing.T) {
	dir := isolate(t)
	v1 := "config_version: 1\nbackend:\n  base_url: http://old:8080\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(v1), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, _, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ConfigVersion != currentVersion || !cfg.Editor.Grid || cfg.Backend.BaseURL != "http://old:8080" {
		t.Fatalf("migrated %+v", cfg)
	}
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("backend: [\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	cfg.Editor.Zoom = 5
	cfg.Editor.GridSize = 0
	cfg.Logging.Format = "xml"
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors")
	}
	for _, want := range []string{"editor.zoom", "editor.grid_size", "logging.format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("missing %s in %v", want, err)
		}
	}
}

func TestTokenHelpers(t *testing.T) {
	isolate(t)
	if _, err := LoadToken(); err != ErrTokenNotFound {
		t.Fatalf("expected ErrTokenNotFound, got %v", err)
	}
	if err := StoreToken("abc"); err != nil {
		t.Fatal(err)
	}
	if tok, _ := LoadToken(); tok != "abc" {
		t.Fatalf("token %q", tok)
	}
	if err := ClearToken(); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadToken(); err != ErrTokenNotFound {
		t.Fatal("token not cleared")
	}
}

func TestLogOptions(t *testing.T) {
	o := LoggingConfig{Level: "warn", Format: "json", Source: true, File: "x.log"}.LogOptions()
	if o.Level != "warn" || o.Format != "json" || !o.AddSource || o.File != "x.log" {
		t.Fatalf("options %+v", o)
	}
}
