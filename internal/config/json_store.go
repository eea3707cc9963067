package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/metaco/metaco/internal/models"
)

// renameFunc is swapped by tests to simulate a crash between temp write and rename.
var renameFunc = os.Rename

// JSONStore is an atomic JSON file store. Every Write replaces the whole record.
type JSONStore struct {
	path string
}

// NewJSONStore creates a store backed by the file at path.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// OpenDefault creates a store at the platform state path.
func OpenDefault() (*JSONStore, error) {
	path, err := DefaultStatePath()
	if err != nil {
		return nil, err
	}
	return NewJSONStore(path), nil
}

// Path returns the file path used by this store.
func (s *JSONStore) Path() string { return s.path }

// Read loads the record from disk.
func (s *JSONStore) Read() (models.State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return models.State{}, models.ErrNotFound
		}
		return models.State{}, models.ErrIO.Wrap(err)
	}

	state, err := models.ParseState(data)
	if err != nil {
		return models.State{}, models.ErrCorrupt.Wrap(err)
	}
	return state, nil
}

// Write serializes state and atomically replaces the file.
func (s *JSONStore) Write(state models.State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return models.ErrIO.Wrap(err)
	}
	if err := s.writeAtomic(data); err != nil {
		return models.ErrIO.Wrap(err)
	}
	return nil
}

func (s *JSONStore) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write to a temp file in the same directory, then rename over the target.
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := renameFunc(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}

var _ Store = (*JSONStore)(nil)
