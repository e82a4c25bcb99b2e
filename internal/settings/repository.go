// Package settings persists per-asset settings objects as JSON files, one
// file per asset and settings kind.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/seantiz/keeper/internal/model"
	"github.com/seantiz/keeper/internal/serializer"
)

var (
	// ErrNotFound is returned when no settings file exists for an asset.
	ErrNotFound = errors.New("settings not found")

	// ErrInvalidKey is returned for asset keys that cannot name a file.
	ErrInvalidKey = errors.New("invalid asset key")
)

// Repository stores values of T under <root>/<assetKey>.<suffix>.
type Repository[T any] struct {
	fs         afero.Fs
	root       string
	suffix     string
	serializer serializer.Serializer[T]
}

// NewRepository creates a repository for one settings kind.
func NewRepository[T any](fs afero.Fs, root, suffix string, s serializer.Serializer[T]) *Repository[T] {
	return &Repository[T]{fs: fs, root: root, suffix: suffix, serializer: s}
}

func (r *Repository[T]) path(assetKey string) (string, error) {
	if !model.ValidKey(assetKey) {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, assetKey)
	}
	return filepath.Join(r.root, assetKey+"."+r.suffix), nil
}

// Load reads and unserializes the settings file of an asset.
func (r *Repository[T]) Load(assetKey string) (T, error) {
	var zero T

	path, err := r.path(assetKey)
	if err != nil {
		return zero, err
	}

	data, err := afero.ReadFile(r.fs, path)
	if errors.Is(err, os.ErrNotExist) {
		return zero, ErrNotFound
	}
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", path, err)
	}

	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return zero, fmt.Errorf("decode %s: %w", path, err)
	}

	v, err := r.serializer.Unserialize(m)
	if err != nil {
		return zero, fmt.Errorf("unserialize %s: %w", path, err)
	}
	return v, nil
}

// LoadOr returns def when the asset has no settings file yet.
func (r *Repository[T]) LoadOr(assetKey string, def T) (T, error) {
	v, err := r.Load(assetKey)
	if errors.Is(err, ErrNotFound) {
		return def, nil
	}
	return v, err
}

// Save serializes v and replaces the asset's settings file atomically.
func (r *Repository[T]) Save(assetKey string, v T) error {
	path, err := r.path(assetKey)
	if err != nil {
		return err
	}

	m := r.serializer.Serialize(v)
	if _, err := r.serializer.Unserialize(m); err != nil {
		return fmt.Errorf("validate %s settings: %w", r.suffix, err)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	if err := r.fs.MkdirAll(r.root, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	if err := WriteAtomic(r.fs, path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// WriteAtomic replaces path with data through a uniquely named staging file
// in the same directory. Staging names start with a dot, which no valid key
// does, so they never shadow a real file.
func WriteAtomic(fs afero.Fs, path string, data []byte, perm os.FileMode) error {
	f, err := afero.TempFile(fs, filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = fs.Chmod(tmp, perm)
	}
	if err == nil {
		err = fs.Rename(tmp, path)
	}
	if err != nil {
		_ = fs.Remove(tmp)
	}
	return err
}

// Exists reports whether the asset has a settings file.
func (r *Repository[T]) Exists(assetKey string) bool {
	path, err := r.path(assetKey)
	if err != nil {
		return false
	}
	ok, err := afero.Exists(r.fs, path)
	return err == nil && ok
}

// Delete removes the asset's settings file. Deleting a missing file is not an error.
func (r *Repository[T]) Delete(assetKey string) error {
	path, err := r.path(assetKey)
	if err != nil {
		return err
	}
	if err := r.fs.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", path, err)
	}
	return nil
}
