// Package state
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"macdbot/internal/position"
)

// ErrStateCorrupt marks a persisted state file that could not be
// decoded or failed validation. Callers get the flat default alongside
// it and continue; corruption is never fatal.
var ErrStateCorrupt = errors.New("state file corrupt")

// FileStore persists the position state as a JSON file, keeping a
// best-effort .bak copy of the previous contents on every save.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the persisted state. A missing file yields the flat
// default with no error; an unreadable or invalid file yields the flat
// default plus ErrStateCorrupt so the caller can log it.
func (f *FileStore) Load() (position.State, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return position.Flat(""), nil
		}
		return position.Flat(""), fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}

	var st position.State
	if err := json.Unmarshal(data, &st); err != nil {
		return position.Flat(""), fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	if err := st.Validate(); err != nil {
		return position.Flat(""), fmt.Errorf("%w: %v", ErrStateCorrupt, err)
	}
	return st, nil
}

// Save writes the state atomically: marshal to a temp file, move the
// previous file to .bak, then rename the temp file into place.
func (f *FileStore) Save(st position.State) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	// Best-effort backup of the previous state.
	if _, err := os.Stat(f.path); err == nil {
		_ = os.Rename(f.path, f.path+".bak")
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}
