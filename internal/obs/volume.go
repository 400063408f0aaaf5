package obs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// Volume bounds accepted by SetInputVolume.
const (
	MinVolumeDB = -100.0
	MaxVolumeDB = 0.0
)

// VolumeChange is one setInputVolume request. DB wins when both are set.
type VolumeChange struct {
	DB         *float64
	Multiplier *float64
	Smooth     bool
	// Duration of a smooth change; the controller default applies when zero.
	Duration time.Duration
}

// ClampDB limits db to [MinVolumeDB, MaxVolumeDB].
func ClampDB(db float64) float64 {
	switch {
	case db > MaxVolumeDB:
		return MaxVolumeDB
	case db < MinVolumeDB:
		return MinVolumeDB
	}
	return db
}

// ClampMultiplier limits m to [0, 1].
func ClampMultiplier(m float64) float64 {
	switch {
	case m > 1:
		return 1
	case m < 0:
		return 0
	}
	return m
}

type ramp struct {
	cancel context.CancelFunc
	done   chan struct{}
}

var errRampSuperseded = errors.New("volume ramp superseded")

// SetInputVolume writes one input's volume, directly or as a ramp. Any
// in-flight ramp on the same input is cancelled first. Writes to one input
// are serialized: a newer write takes the input over and the older one stops.
func (c *Controller) SetInputVolume(ctx context.Context, inputName string, change VolumeChange) (InputVolume, error) {
	if err := c.guard.EnsureConnected(ctx); err != nil {
		return InputVolume{}, err
	}

	field, target := "", 0.0
	switch {
	case change.DB != nil:
		field, target = "inputVolumeDb", ClampDB(*change.DB)
	case change.Multiplier != nil:
		field, target = "inputVolumeMul", ClampMultiplier(*change.Multiplier)
	default:
		return InputVolume{}, fmt.Errorf("%w: db or multiplier is required", domain.ErrInvalidArgument)
	}

	r, rctx := c.claimInput(ctx, inputName)
	var err error
	if !change.Smooth {
		err = c.writeOnce(ctx, rctx, inputName, field, target)
	} else {
		duration := change.Duration
		if duration <= 0 {
			duration = c.cfg.RampDuration
		}
		err = c.runRamp(ctx, rctx, r, inputName, field, target, duration)
	}
	c.releaseInput(inputName, r)

	if err != nil && !errors.Is(err, errRampSuperseded) {
		return InputVolume{}, err
	}
	return c.readVolume(ctx, inputName)
}

// ChangeInputVolume sets a single volume field without ramping.
func (c *Controller) ChangeInputVolume(ctx context.Context, inputName string, db float64) (InputVolume, error) {
	return c.SetInputVolume(ctx, inputName, VolumeChange{DB: &db})
}

// claimInput registers a new writer for inputName, then cancels the previous
// one and waits until it has stopped writing. Registration and takeover of
// the previous writer happen under one lock.
func (c *Controller) claimInput(ctx context.Context, inputName string) (*ramp, context.Context) {
	rctx, cancel := context.WithCancel(ctx)
	r := &ramp{cancel: cancel, done: make(chan struct{})}

	c.mu.Lock()
	prev := c.ramps[inputName]
	c.ramps[inputName] = r
	c.mu.Unlock()

	if prev != nil {
		prev.cancel()
		<-prev.done
		c.logger.Debug("volume ramp cancelled", ports.String("input", inputName))
	}
	return r, rctx
}

func (c *Controller) releaseInput(inputName string, r *ramp) {
	r.cancel()
	c.mu.Lock()
	if c.ramps[inputName] == r {
		delete(c.ramps, inputName)
	}
	c.mu.Unlock()
	close(r.done)
}

func (c *Controller) writeOnce(ctx, rctx context.Context, inputName, field string, value float64) error {
	if rctx.Err() != nil {
		return c.rampErr(ctx, rctx.Err())
	}
	if err := c.call(rctx, "SetInputVolume", map[string]any{"inputName": inputName, field: value}, nil); err != nil {
		return c.rampErr(ctx, err)
	}
	return nil
}

func (c *Controller) runRamp(ctx, rctx context.Context, r *ramp, inputName, field string, target float64, duration time.Duration) error {
	stopAfter := context.AfterFunc(c.ctx, r.cancel)
	defer stopAfter()

	if rctx.Err() != nil {
		return c.rampErr(ctx, rctx.Err())
	}
	var current inputVolumeResponse
	if err := c.call(rctx, "GetInputVolume", map[string]any{"inputName": inputName}, &current); err != nil {
		return c.rampErr(ctx, err)
	}
	start := current.InputVolumeMul
	if field == "inputVolumeDb" {
		start = current.InputVolumeDb
	}

	steps := c.cfg.RampSteps
	stepTime := duration / time.Duration(steps)
	for i := 0; i <= steps; i++ {
		if rctx.Err() != nil {
			return c.rampErr(ctx, rctx.Err())
		}
		value := start + (target-start)*float64(i)/float64(steps)
		if err := c.call(rctx, "SetInputVolume", map[string]any{"inputName": inputName, field: value}, nil); err != nil {
			return c.rampErr(ctx, err)
		}
		if i < steps {
			if err := sleepCtx(rctx, stepTime); err != nil {
				return c.rampErr(ctx, err)
			}
		}
	}
	return nil
}

// rampErr reports cancellation by a newer write as errRampSuperseded.
func (c *Controller) rampErr(parent context.Context, err error) error {
	if parent.Err() == nil && c.ctx.Err() == nil && errors.Is(err, context.Canceled) {
		return errRampSuperseded
	}
	return err
}
