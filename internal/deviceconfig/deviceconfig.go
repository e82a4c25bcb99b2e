// Package deviceconfig stores appliance-wide settings as one file per key.
// A key that exists with empty contents acts as a flag.
package deviceconfig

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/spf13/afero"

	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/settings"
)

var (
	// ErrNotFound is returned by Get for keys that are not set.
	ErrNotFound = errors.New("config key not set")

	// ErrInvalidKey is returned for keys that cannot name a file.
	ErrInvalidKey = errors.New("invalid config key")
)

// Store is a key-per-file configuration directory. It is safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	fs   afero.Fs
	root string
}

// New creates a store rooted at dir.
func New(fs afero.Fs, dir string) *Store {
	return &Store{fs: fs, root: dir}
}

func (s *Store) path(key string) (string, error) {
	if !model.ValidKey(key) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return filepath.Join(s.root, key), nil
}

// Get returns the value of key with any trailing newline removed.
func (s *Store) Get(key string) (string, error) {
	path, err := s.path(key)
	if err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := afero.ReadFile(s.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

// GetOr returns def when key is not set or unreadable.
func (s *Store) GetOr(key, def string) string {
	v, err := s.Get(key)
	if err != nil {
		return def
	}
	return v
}

// Has reports whether key is set, including as an empty flag.
func (s *Store) Has(key string) bool {
	path, err := s.path(key)
	if err != nil {
		return false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	ok, err := afero.Exists(s.fs, path)
	return err == nil && ok
}

// Set writes value to key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if err := settings.WriteAtomic(s.fs, path, []byte(value), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Touch sets key as an empty flag.
func (s *Store) Touch(key string) error {
	return s.Set(key, "")
}

// Clear removes key. Clearing an unset key is not an error.
func (s *Store) Clear(key string) error {
	path, err := s.path(key)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

// List returns every set key in lexical order.
func (s *Store) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := afero.ReadDir(s.fs, s.root)
	if errors.Is(err, os.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list config dir: %w", err)
	}

	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !model.ValidKey(e.Name()) {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}
