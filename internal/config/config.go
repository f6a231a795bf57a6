/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	applog "warehousemap/internal/log"
)

// AppConfig is the user-editable configuration persisted as YAML in the user scope.
// Environment variables are read-only overrides applied at load time. The backend
// token is never written to the file; it lives in the OS keychain.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	General       GeneralConfig `yaml:"general"`
	Backend       BackendConfig `yaml:"backend"`
	Editor        EditorConfig  `yaml:"editor"`
	Server        ServerConfig  `yaml:"server"`
	Logging       LoggingConfig `yaml:"logging"`
}

type GeneralConfig struct {
	TelemetryOptIn bool   `yaml:"telemetry_opt_in"`
	TelemetryURL   string `yaml:"telemetry_url"`
	Theme          string `yaml:"theme"` // system | light | dark
}

type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	TLSInsecure bool   `yaml:"tls_insecure"`
}

type EditorConfig struct {
	Grid         bool    `yaml:"grid"`
	GridSize     float64 `yaml:"grid_size"`
	Snap         bool    `yaml:"snap"`
	SmartGuides  bool    `yaml:"smart_guides"`
	MinSize      float64 `yaml:"min_size"`
	Zoom         float64 `yaml:"zoom"`
	ManualLabels bool    `yaml:"manual_labels"`
}

type ServerConfig struct {
	Addr        string `yaml:"addr"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
	File   string `yaml:"file"`
}

const currentVersion = 2

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: currentVersion,
		General:       GeneralConfig{Theme: "system"},
		Backend:       BackendConfig{BaseURL: "http://localhost:8080", TimeoutMs: 15000},
		Editor:        EditorConfig{Grid: true, GridSize: 20, MinSize: 10, Zoom: 1},
		Server:        ServerConfig{Addr: ":8080"},
		Logging:       LoggingConfig{Level: "info", Format: "console"},
	}
}

// Env var names used as overrides.
const (
	EnvConfigDir        = "WMAP_CONFIG_DIR"
	EnvBackendURL       = "WMAP_BACKEND_URL"
	EnvBackendTimeoutMs = "WMAP_BACKEND_TIMEOUT_MS"
	EnvBackendTLSInsec  = "WMAP_TLS_INSECURE"
	EnvTelemetryOptIn   = "WMAP_TELEMETRY_OPT_IN"
	EnvTelemetryURL     = "WMAP_TELEMETRY_URL"
	EnvGrid             = "WMAP_GRID"
	EnvZoom             = "WMAP_ZOOM"
	EnvAddr             = "WMAP_ADDR"
	EnvDatabaseURL      = "WMAP_DATABASE_URL"
	EnvSQLitePath       = "WMAP_SQLITE_PATH"
	EnvLogLevel         = "WMAP_LOG_LEVEL"
	EnvLogFormat        = "WMAP_LOG_FORMAT"
	EnvLogSource        = "WMAP_LOG_SOURCE"
	EnvLogFile          = "WMAP_LOG_FILE"
)

// ConfigDir returns the per-user configuration directory.
func ConfigDir() (string, error) {
	if d := strings.TrimSpace(os.Getenv(EnvConfigDir)); d != "" {
		return d, nil
	}
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "WarehouseMap")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "WarehouseMap")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "warehousemap")
		} else if h := os.Getenv("HOME"); h != "" {
			base = filepath.Join(h, ".config", "warehousemap")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	d, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "config.yaml"), nil
}

// Load reads the user config file if present, merges it over the defaults and applies
// environment overrides. The backend token comes from the keychain and is returned
// separately; a missing token is not an error.
func Load() (AppConfig, string, error) {
	cfg := Defaults()
	path, err := ConfigPath()
	if err != nil {
		return cfg, "", err
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, "", fmt.Errorf("parse %s: %w", path, err)
		}
		migrate(&fileCfg)
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, "", fmt.Errorf("read %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	tok, err := LoadToken()
	if err != nil && !errors.Is(err, ErrTokenNotFound) {
		applog.WithComponent("config").Debug("keychain unavailable", slog.Any("err", err))
	}
	return cfg, tok, nil
}

// Save writes the user config YAML and stores token in the keychain when non-empty.
func Save(cfg AppConfig, token string) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	cfg.ConfigVersion = currentVersion
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return err
	}
	if token != "" {
		return StoreToken(token)
	}
	return nil
}

// migrate upgrades older files. Version 1 had no editor section and always showed the
// grid.
func migrate(c *AppConfig) {
	if c.ConfigVersion <= 1 {
		c.Editor.Grid = true
		c.ConfigVersion = currentVersion
	}
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if src.General.Theme != "" {
		dst.General.Theme = src.General.Theme
	}
	dst.General.TelemetryOptIn = src.General.TelemetryOptIn
	if s := strings.TrimSpace(src.General.TelemetryURL); s != "" {
		dst.General.TelemetryURL = s
	}
	if src.Backend.BaseURL != "" {
		dst.Backend.BaseURL = src.Backend.BaseURL
	}
	if src.Backend.TimeoutMs != 0 {
		dst.Backend.TimeoutMs = src.Backend.TimeoutMs
	}
	dst.Backend.TLSInsecure = src.Backend.TLSInsecure

	dst.Editor.Grid = src.Editor.Grid
	dst.Editor.Snap = src.Editor.Snap
	dst.Editor.SmartGuides = src.Editor.SmartGuides
	dst.Editor.ManualLabels = src.Editor.ManualLabels
	if src.Editor.GridSize > 0 {
		dst.Editor.GridSize = src.Editor.GridSize
	}
	if src.Editor.MinSize > 0 {
		dst.Editor.MinSize = src.Editor.MinSize
	}
	if src.Editor.Zoom > 0 {
		dst.Editor.Zoom = src.Editor.Zoom
	}

	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.DatabaseURL != "" {
		dst.Server.DatabaseURL = src.Server.DatabaseURL
	}
	if src.Server.SQLitePath != "" {
		dst.Server.SQLitePath = src.Server.SQLitePath
	}

	if s := strings.TrimSpace(src.Logging.Level); s != "" {
		dst.Logging.Level = strings.ToLower(s)
	}
	if s := strings.TrimSpace(src.Logging.Format); s != "" {
		dst.Logging.Format = strings.ToLower(s)
	}
	dst.Logging.Source = src.Logging.Source
	if s := strings.TrimSpace(src.Logging.File); s != "" {
		dst.Logging.File = s
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func applyEnvOverrides(cfg *AppConfig) {
	env := func(k string) (string, bool) {
		v := strings.TrimSpace(os.Getenv(k))
		return v, v != ""
	}
	if v, ok := env(EnvBackendURL); ok {
		cfg.Backend.BaseURL = v
	}
	if v, ok := env(EnvBackendTimeoutMs); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Backend.TimeoutMs = n
		}
	}
	if v, ok := env(EnvBackendTLSInsec); ok {
		cfg.Backend.TLSInsecure = truthy(v)
	}
	if v, ok := env(EnvTelemetryOptIn); ok {
		cfg.General.TelemetryOptIn = truthy(v)
	}
	if v, ok := env(EnvTelemetryURL); ok {
		cfg.General.TelemetryURL = v
	}
	if v, ok := env(EnvGrid); ok {
		cfg.Editor.Grid = truthy(v)
	}
	if v, ok := env(EnvZoom); ok {
		if z, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Editor.Zoom = z
		}
	}
	if v, ok := env(EnvAddr); ok {
		cfg.Server.Addr = v
	} else if v, ok := env("PORT"); ok {
		cfg.Server.Addr = ":" + v
	}
	if v, ok := env(EnvDatabaseURL); ok {
		cfg.Server.DatabaseURL = v
	} else if v, ok := env("DATABASE_URL"); ok {
		cfg.Server.DatabaseURL = v
	}
	if v, ok := env(EnvSQLitePath); ok {
		cfg.Server.SQLitePath = v
	}
	if v, ok := env(EnvLogLevel); ok {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v, ok := env(EnvLogFormat); ok {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v, ok := env(EnvLogSource); ok {
		cfg.Logging.Source = truthy(v)
	}
	if v, ok := env(EnvLogFile); ok {
		cfg.Logging.File = v
	}
}

var overrideKeys = map[string]string{
	"backend.base_url":         EnvBackendURL,
	"backend.timeout_ms":       EnvBackendTimeoutMs,
	"backend.tls_insecure":     EnvBackendTLSInsec,
	"general.telemetry_opt_in": EnvTelemetryOptIn,
	"general.telemetry_url":    EnvTelemetryURL,
	"editor.grid":              EnvGrid,
	"editor.zoom":              EnvZoom,
	"server.addr":              EnvAddr,
	"server.database_url":      EnvDatabaseURL,
	"server.sqlite_path":       EnvSQLitePath,
	"logging.level":            EnvLogLevel,
	"logging.format":           EnvLogFormat,
	"logging.source":           EnvLogSource,
	"logging.file":             EnvLogFile,
}

// EnvOverrideFor returns the env var that currently overrides a dotted config key.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := overrideKeys[key]
	if !ok || os.Getenv(name) == "" {
		return "", false
	}
	return name, true
}

// Validate reports settings that cannot work.
func (c AppConfig) Validate() error {
	var errs []error
	if c.Backend.TimeoutMs < 0 {
		errs = append(errs, fmt.Errorf("backend.timeout_ms must not be negative"))
	}
	if c.Editor.GridSize <= 0 {
		errs = append(errs, fmt.Errorf("editor.grid_size must be positive"))
	}
	if c.Editor.Zoom < 0.2 || c.Editor.Zoom > 3 {
		errs = append(errs, fmt.Errorf("editor.zoom %.2f outside 0.2..3", c.Editor.Zoom))
	}
	if c.Editor.MinSize < 1 {
		errs = append(errs, fmt.Errorf("editor.min_size must be at least 1"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q: want console or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Timeout returns the backend timeout, falling back to the default.
func (b BackendConfig) Timeout() time.Duration {
	ms := b.TimeoutMs
	if ms <= 0 {
		ms = Defaults().Backend.TimeoutMs
	}
	return time.Duration(ms) * time.Millisecond
}

// LogOptions maps the logging section onto logger options.
func (l LoggingConfig) LogOptions() applog.Options {
	return applog.Options{Level: l.Level, Format: l.Format, AddSource: l.Source, File: l.File}
}
