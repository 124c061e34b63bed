package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenKey is the well-known storage key of the bearer token.
const TokenKey = "token"

// KVTokenStore keeps the bearer token as the single value under TokenKey.
type KVTokenStore struct {
	db *Database
}

func NewKVTokenStore(db *Database) *KVTokenStore {
	return &KVTokenStore{db: db}
}

// Get returns the stored token, or "" when none is stored.
func (s *KVTokenStore) Get() (string, error) {
	token, _, err := s.db.Get(context.Background(), TokenKey)
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return token, nil
}

func (s *KVTokenStore) Set(token string) error {
	if err := s.db.Set(context.Background(), TokenKey, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *KVTokenStore) Clear() error {
	if err := s.db.Remove(context.Background(), TokenKey); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// FileTokenStore keeps the bearer token in a single file readable only by
// the user.
type FileTokenStore struct {
	mu   sync.Mutex
	path string
}

func NewFileTokenStore(path string) *FileTokenStore {
	return &FileTokenStore{path: path}
}

func (s *FileTokenStore) Get() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token file %s: %w", s.path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s *FileTokenStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	// Readers never observe a partially written token.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0600); err != nil {
		return fmt.Errorf("write token file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace token file %s: %w", s.path, err)
	}
	return nil
}

func (s *FileTokenStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove token file %s: %w", s.path, err)
	}
	return nil
}
