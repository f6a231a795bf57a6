/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"warehousemap/internal/domain"
	applog "warehousemap/internal/log"
)

const (
	LayoutFileName = "layout.json"
	BackupsDirName = "backups"
	AssetsDirName  = "assets"
	ExportsDirName = "exports"

	backupStamp = "20060102-150405.000"
)

var standardSubDirs = []string{AssetsDirName, ExportsDirName, BackupsDirName}

// LayoutHandle is a layout directory loaded from disk. Root holds layout.json and the
// standard subfolders.
type LayoutHandle struct {
	Root      string
	Path      string
	Layout    domain.Layout
	Recovered bool // loaded from a backup because layout.json was unreadable
}

// InitLayout scaffolds root and writes l as its first layout.json.
func InitLayout(root string, l domain.Layout) (*LayoutHandle, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root path is required")
	}
	if l.WarehouseID <= 0 {
		return nil, fmt.Errorf("warehouse id must be positive, got %d", l.WarehouseID)
	}
	if err := scaffold(root); err != nil {
		return nil, err
	}
	if l.Shapes == nil {
		l.Shapes = []domain.Shape{}
	}
	h := &LayoutHandle{Root: root, Path: filepath.Join(root, LayoutFileName), Layout: l}
	if err := Save(h); err != nil {
		return nil, err
	}
	return h, nil
}

func scaffold(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create layout root: %w", err)
	}
	for _, d := range standardSubDirs {
		if err := os.MkdirAll(filepath.Join(root, d), 0o755); err != nil {
			return fmt.Errorf("create subdir %s: %w", d, err)
		}
	}
	return nil
}

// Open loads root/layout.json. A missing, unparsable or schema-invalid file falls back
// to the latest backup.
func Open(root string) (*LayoutHandle, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open").With(slog.String("root", root))
	path := filepath.Join(root, LayoutFileName)
	lay, err := readLayout(path)
	if err == nil {
		return &LayoutHandle{Root: root, Path: path, Layout: lay}, nil
	}
	lay, berr := openFromLatestBackup(root)
	if berr != nil {
		return nil, fmt.Errorf("open layout: %w; backup attempt: %v", err, berr)
	}
	l.Warn("layout recovered from backup", slog.Any("err", err))
	return &LayoutHandle{Root: root, Path: path, Layout: lay, Recovered: true}, nil
}

func readLayout(path string) (domain.Layout, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return domain.Layout{}, err
	}
	return DecodeLayout(b)
}

// DecodeLayout validates b against the layout schema and decodes it.
func DecodeLayout(b []byte) (domain.Layout, error) {
	if err := domain.ValidateLayoutJSON(b); err != nil {
		return domain.Layout{}, err
	}
	var lay domain.Layout
	if err := json.Unmarshal(b, &lay); err != nil {
		return domain.Layout{}, fmt.Errorf("parse layout: %w", err)
	}
	return lay, nil
}

// Save writes the handle's layout transactionally after copying the previous file into
// backups/.
func Save(h *LayoutHandle) error {
	if h == nil {
		return errors.New("nil LayoutHandle")
	}
	if h.Root == "" || h.Path == "" {
		return errors.New("invalid LayoutHandle: missing paths")
	}
	data, err := json.MarshalIndent(h.Layout, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal layout: %w", err)
	}
	data = append(data, '\n')

	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return fmt.Errorf("ensure backups dir: %w", err)
	}
	if _, statErr := os.Stat(h.Path); statErr == nil {
		bpath := filepath.Join(bdir, fmt.Sprintf("%s.%s.bak", LayoutFileName, time.Now().Format(backupStamp)))
		if cerr := copyFile(h.Path, bpath); cerr != nil {
			return fmt.Errorf("backup current layout: %w", cerr)
		}
	}
	if err := replaceFile(h.Path, data); err != nil {
		return err
	}
	h.Recovered = false
	return nil
}

func replaceFile(path string, data []byte) error {
	temp := filepath.Join(filepath.Dir(path), fmt.Sprintf(".%s.tmp-%d-%d", filepath.Base(path), os.Getpid(), rand.Int()))
	if err := writeFileSync(temp, data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	// Windows refuses to rename over an existing file
	if _, err := os.Stat(path); err == nil {
		_ = os.Remove(path)
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

// SaveAs moves the handle to newRoot, scaffolding it, and saves there.
func SaveAs(h *LayoutHandle, newRoot string) error {
	if h == nil {
		return errors.New("nil LayoutHandle")
	}
	if newRoot == "" {
		return errors.New("new root is empty")
	}
	if err := scaffold(newRoot); err != nil {
		return err
	}
	h.Root = newRoot
	h.Path = filepath.Join(newRoot, LayoutFileName)
	return Save(h)
}

// AutosaveCrashSnapshot writes the in-memory layout next to the backups without touching
// layout.json. It returns the written path.
func AutosaveCrashSnapshot(h *LayoutHandle) (string, error) {
	if h == nil || h.Root == "" {
		return "", errors.New("no layout to autosave")
	}
	data, err := json.MarshalIndent(h.Layout, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal layout: %w", err)
	}
	bdir := filepath.Join(h.Root, BackupsDirName)
	if err := os.MkdirAll(bdir, 0o755); err != nil {
		return "", fmt.Errorf("ensure backups dir: %w", err)
	}
	path := filepath.Join(bdir, fmt.Sprintf("%s.%s.crash.json", LayoutFileName, time.Now().Format(backupStamp)))
	if err := writeFileSync(path, append(data, '\n')); err != nil {
		return "", fmt.Errorf("write crash snapshot: %w", err)
	}
	return path, nil
}

// PruneBackups keeps the newest keep backups and returns how many were removed.
func PruneBackups(root string, keep int) (int, error) {
	files, err := backupFiles(root)
	if err != nil {
		return 0, err
	}
	if keep < 0 {
		keep = 0
	}
	removed := 0
	for len(files) > keep {
		if err := os.Remove(files[0]); err != nil {
			return removed, fmt.Errorf("remove backup: %w", err)
		}
		files = files[1:]
		removed++
	}
	return removed, nil
}

// backupFiles lists layout backups oldest first.
func backupFiles(root string) ([]string, error) {
	bdir := filepath.Join(root, BackupsDirName)
	ents, err := os.ReadDir(bdir)
	if err != nil {
		return nil, fmt.Errorf("read backups dir: %w", err)
	}
	var out []string
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, LayoutFileName+".") && strings.HasSuffix(name, ".bak") {
			out = append(out, filepath.Join(bdir, name))
		}
	}
	sort.Strings(out) // timestamp in name yields lexicographic order
	return out, nil
}

func openFromLatestBackup(root string) (domain.Layout, error) {
	files, err := backupFiles(root)
	if err != nil {
		return domain.Layout{}, err
	}
	if len(files) == 0 {
		return domain.Layout{}, errors.New("no backups found")
	}
	lay, err := readLayout(files[len(files)-1])
	if err != nil {
		return domain.Layout{}, fmt.Errorf("read latest backup: %w", err)
	}
	return lay, nil
}

// BackgroundPath resolves the layout's background image against the root.
func (h *LayoutHandle) BackgroundPath() string {
	bg := h.Layout.BackgroundImage
	if bg == "" || filepath.IsAbs(bg) {
		return bg
	}
	return filepath.Join(h.Root, filepath.FromSlash(bg))
}

// LoadBackground decodes the background image, or returns nil when none is set.
func (h *LayoutHandle) LoadBackground() (image.Image, error) {
	path := h.BackgroundPath()
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open background: %w", err)
	}
	defer f.Close()
	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode background %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// ExportPath resolves name under exports/ unless it is absolute.
func (h *LayoutHandle) ExportPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(h.Root, ExportsDirName, name)
}

func writeFileSync(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}

func copyFile(src, dst string) (err error) {
	sf, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sf.Close()
	df, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := df.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := io.Copy(df, sf); err != nil {
		return err
	}
	return df.Sync()
}
