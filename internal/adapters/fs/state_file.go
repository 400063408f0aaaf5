package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/bft-labs/obsrelay/internal/domain"
)

const stateFileName = "state.json"

// StateFileStore implements ports.StateStore using a JSON file. The state is
// opaque to the relay; only its JSON validity is checked.
type StateFileStore struct {
	dir string
}

// NewStateFileStore creates a store for the given directory.
func NewStateFileStore(dir string) *StateFileStore {
	return &StateFileStore{dir: dir}
}

// LoadState returns the saved state, or JSON null when none exists.
func (s *StateFileStore) LoadState(ctx context.Context) (json.RawMessage, error) {
	data, err := readOptional(s.Path())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("parse %s: invalid JSON", s.Path())
	}
	return json.RawMessage(data), nil
}

// SaveState persists state atomically.
func (s *StateFileStore) SaveState(ctx context.Context, state json.RawMessage) error {
	if len(state) == 0 || !json.Valid(state) {
		return fmt.Errorf("%w: state must be valid JSON", domain.ErrInvalidArgument)
	}
	return writeAtomic(s.dir, stateFileName, state)
}

// Path returns the full path to the state file.
func (s *StateFileStore) Path() string {
	return filepath.Join(s.dir, stateFileName)
}
