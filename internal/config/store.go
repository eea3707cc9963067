// Package config handles locating, loading and saving the metaCo state record,
// and loading the agent's own settings file.
package config

import "github.com/metaco/metaco/internal/models"

// Store is the interface for persisting the state record.
type Store interface {
	// Read returns the persisted record. Fails with models.ErrNotFound when no
	// record has been written yet and models.ErrCorrupt when it cannot be parsed.
	Read() (models.State, error)

	// Write replaces the persisted record. Readers never observe a partial write.
	Write(state models.State) error

	// Path returns the file path used by this store.
	Path() string
}
