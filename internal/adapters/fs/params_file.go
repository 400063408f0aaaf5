package fs

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/bft-labs/obsrelay/internal/domain"
)

const paramsFileName = "connection.json"

// paramsRecord is the on-disk shape of connection.json.
type paramsRecord struct {
	Host string     `json:"host"`
	Port int        `json:"port"`
	Auth authRecord `json:"auth"`
}

type authRecord struct {
	Check    bool   `json:"check"`
	Password string `json:"password"`
}

// ParamsFileRepository implements ports.ParamsRepository with a JSON file.
type ParamsFileRepository struct {
	dir string
}

// NewParamsFileRepository creates a repository storing connection.json in dir.
func NewParamsFileRepository(dir string) *ParamsFileRepository {
	return &ParamsFileRepository{dir: dir}
}

// Load returns the last known good parameters. ok is false when nothing was
// saved yet.
func (r *ParamsFileRepository) Load(ctx context.Context) (domain.ConnectionParams, bool, error) {
	data, err := readOptional(r.Path())
	if err != nil || data == nil {
		return domain.ConnectionParams{}, false, err
	}

	var rec paramsRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return domain.ConnectionParams{}, false, fmt.Errorf("parse %s: %w", r.Path(), err)
	}
	params := domain.ConnectionParams{Host: rec.Host, Port: rec.Port}
	if rec.Auth.Check {
		params.Password = rec.Auth.Password
	}
	return params.WithDefaults(), true, nil
}

// Save persists params atomically.
func (r *ParamsFileRepository) Save(ctx context.Context, params domain.ConnectionParams) error {
	rec := paramsRecord{
		Host: params.Host,
		Port: params.Port,
		Auth: authRecord{Check: params.HasPassword(), Password: params.Password},
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	return writeAtomic(r.dir, paramsFileName, data)
}

// Path returns the full path to connection.json.
func (r *ParamsFileRepository) Path() string {
	return filepath.Join(r.dir, paramsFileName)
}
