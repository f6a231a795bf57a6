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
	"sync"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "WarehouseMap"
	keyringToken   = "backend_token"
)

// ErrTokenNotFound is returned when no token is stored.
var ErrTokenNotFound = errors.New("backend token not found")

// TokenStore holds secrets by service and key.
type TokenStore interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// osKeyring stores secrets in the OS keychain via github.com/zalando/go-keyring.
type osKeyring struct{}

func (osKeyring) Get(service, key string) (string, error) {
	v, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrTokenNotFound
	}
	return v, err
}

func (osKeyring) Set(service, key, value string) error { return keyring.Set(service, key, value) }

func (osKeyring) Delete(service, key string) error {
	err := keyring.Delete(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// MemoryStore is an in-process TokenStore.
type MemoryStore struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *MemoryStore) Get(service, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[service+"/"+key]
	if !ok {
		return "", ErrTokenNotFound
	}
	return v, nil
}

func (s *MemoryStore) Set(service, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[string]string{}
	}
	s.m[service+"/"+key] = value
	return nil
}

func (s *MemoryStore) Delete(service, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, service+"/"+key)
	return nil
}

var (
	storeMu    sync.RWMutex
	tokenStore TokenStore = osKeyring{}
)

// SetTokenStore swaps the secret backend and returns a function restoring the
// previous one.
func SetTokenStore(ts TokenStore) (restore func()) {
	storeMu.Lock()
	prev := tokenStore
	tokenStore = ts
	storeMu.Unlock()
	return func() {
		storeMu.Lock()
		tokenStore = prev
		storeMu.Unlock()
	}
}

func store() TokenStore {
	storeMu.RLock()
	defer storeMu.RUnlock()
	return tokenStore
}

// LoadToken returns the stored backend token.
func LoadToken() (string, error) { return store().Get(keyringService, keyringToken) }

// StoreToken saves the backend token.
func StoreToken(tok string) error { return store().Set(keyringService, keyringToken, tok) }

// ClearToken removes the backend token.
func ClearToken() error { return store().Delete(keyringService, keyringToken) }
