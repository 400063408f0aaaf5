package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bft-labs/obsrelay/internal/app"
	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/obs"
)

// Composite event names.
const (
	EventConnect      = "connectobs"
	EventChangeVolume = "changeInputVolume"
	EventCatalog      = "catalog"
)

// Switcher rebinds the OBS session.
type Switcher interface {
	Switch(ctx context.Context, params domain.ConnectionParams) (domain.ConnectionInfo, error)
}

// VolumeChanger sets one input's dB level.
type VolumeChanger interface {
	ChangeInputVolume(ctx context.Context, inputName string, db float64) (obs.InputVolume, error)
}

// Describer publishes the catalog.
type Describer interface {
	Describe() []domain.OperationInfo
}

// ConnectHandler accepts {host, port, password} or [host, port, password].
func ConnectHandler(s Switcher) CompositeFunc {
	return func(ctx context.Context, in Inbound) (any, error) {
		var obj map[string]json.RawMessage
		isObj, err := in.PayloadObject(&obj)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
		}

		args := app.Args(in.PositionalArgs())
		if isObj {
			args = app.Args{obj["host"], obj["port"], obj["password"]}
		}
		params, err := obs.ConnectionParamsFrom(args)
		if err != nil {
			return nil, err
		}
		return s.Switch(ctx, params)
	}
}

// VolumeHandler accepts {inputName, db} or [inputName, db].
func VolumeHandler(v VolumeChanger) CompositeFunc {
	return func(ctx context.Context, in Inbound) (any, error) {
		var obj map[string]json.RawMessage
		isObj, err := in.PayloadObject(&obj)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
		}

		args := app.Args(in.PositionalArgs())
		if isObj {
			args = app.Args{obj["inputName"], obj["db"]}
		}
		name, err := args.String(0)
		if err != nil {
			return nil, err
		}
		db, err := args.Float(1)
		if err != nil {
			return nil, err
		}
		return v.ChangeInputVolume(ctx, name, db)
	}
}

// CatalogHandler returns the published operations.
func CatalogHandler(d Describer) CompositeFunc {
	return func(ctx context.Context, in Inbound) (any, error) {
		return d.Describe(), nil
	}
}
