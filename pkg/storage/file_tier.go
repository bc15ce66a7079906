package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// FileTier persists values as a JSON object in a single file so a process
// keeps its local cache across restarts. Writes replace the file atomically.
type FileTier struct {
	mu     sync.RWMutex
	path   string
	values map[string]string
}

// NewFileTier opens (or lazily creates) the file at path.
func NewFileTier(path string) (*FileTier, error) {
	t := &FileTier{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return t, nil
	case err != nil:
		return nil, errors.Join(ErrFileTier, err)
	}

	if len(data) > 0 {
		if err := json.Unmarshal(data, &t.values); err != nil {
			return nil, errors.Join(ErrFileTier, err)
		}
	}
	return t, nil
}

func (t *FileTier) Get(key string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	v, ok := t.values[key]
	return v, ok
}

func (t *FileTier) Set(key, value string) error {
	if key == "" {
		return ErrEmptyKey
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	prev, had := t.values[key]
	t.values[key] = value
	if err := t.flush(); err != nil {
		if had {
			t.values[key] = prev
		} else {
			delete(t.values, key)
		}
		return err
	}
	return nil
}

func (t *FileTier) Delete(key string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.values[key]; !ok {
		return nil
	}
	delete(t.values, key)
	return t.flush()
}

// flush must be called with the write lock held.
func (t *FileTier) flush() error {
	data, err := json.Marshal(t.values)
	if err != nil {
		return errors.Join(ErrFileTier, err)
	}

	if err := os.MkdirAll(filepath.Dir(t.path), 0o700); err != nil {
		return errors.Join(ErrFileTier, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(t.path), ".tier-*")
	if err != nil {
		return errors.Join(ErrFileTier, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Join(ErrFileTier, err)
	}
	if err := tmp.Close(); err != nil {
		return errors.Join(ErrFileTier, err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		return errors.Join(ErrFileTier, err)
	}
	if err := os.Rename(tmp.Name(), t.path); err != nil {
		return errors.Join(ErrFileTier, err)
	}
	return nil
}
