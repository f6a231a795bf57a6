/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"strings"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	tok, err := signToken("s3cret", "admin", time.Now().Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	sub, err := verifyToken("s3cret", tok)
	if err != nil || sub != "admin" {
		t.Fatalf("verify: %q %v", sub, err)
	}
	if _, err := verifyToken("other", tok); err == nil {
		t.Fatal("wrong secret accepted")
	}
	payload, sig, _ := strings.Cut(tok, ".")
	if _, err := verifyToken("s3cret", payload+"x."+sig); err == nil {
		t.Fatal("tampered payload accepted")
	}
	old, _ := signToken("s3cret", "admin", time.Now().Add(-time.Minute))
	if _, err := verifyToken("s3cret", old); err == nil || !strings.Contains(err.Error(), "expired") {
		t.Fatalf("expected expiry error, got %v", err)
	}
	if _, err := verifyToken("s3cret", "garbage"); err == nil {
		t.Fatal("garbage accepted")
	}
}

func TestParseVersion(t *testing.T) {
	cases := []struct {
		name    string
		want    int64
		wantErr bool
	}{
		{"0001_init.sql", 1, false},
		{"migrations/0012_stock.sql", 12, false},
		{"init.sql", 0, true},
		{"abc_def.sql", 0, true},
	}
	for _, c := range cases {
		got, err := parseVersion(c.name)
		if (err != nil) != c.wantErr || got != c.want {
			t.Errorf("parseVersion(%q) = %d, %v", c.name, got, err)
		}
	}
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil || len(entries) == 0 {
		t.Fatalf("embedded migrations missing: %v", err)
	}
	b, _ := migrationsFS.ReadFile("migrations/" + entries[0].Name())
	for _, table := range []string{"layouts", "shapes", "stock"} {
		if !strings.Contains(string(b), "CREATE TABLE IF NOT EXISTS "+table) {
			t.Errorf("first migration does not create %s", table)
		}
	}
}
