package ports

import (
	"context"
	"encoding/json"

	"github.com/bft-labs/obsrelay/internal/domain"
)

// ParamsRepository persists last-known-good connection parameters.
type ParamsRepository interface {
	// Load returns the persisted parameters and true, or false when nothing was saved yet.
	Load(ctx context.Context) (domain.ConnectionParams, bool, error)

	// Save persists params atomically.
	Save(ctx context.Context, params domain.ConnectionParams) error
}

// StateStore persists opaque control-panel state.
type StateStore interface {
	LoadState(ctx context.Context) (json.RawMessage, error)
	SaveState(ctx context.Context, state json.RawMessage) error
}
