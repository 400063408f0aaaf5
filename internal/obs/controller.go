package obs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// Remote is the part of the session the controller uses.
type Remote interface {
	State() domain.SessionState
	Call(ctx context.Context, requestType string, data any) (json.RawMessage, error)
	Switch(ctx context.Context, params domain.ConnectionParams) (domain.ConnectionInfo, error)
}

// Guard waits for the session to be usable.
type Guard interface {
	EnsureConnected(ctx context.Context) error
}

// Config tunes the controller.
type Config struct {
	// Unit is the length of one duration argument step. Clip and replay
	// durations are given in seconds by clients.
	Unit time.Duration
	// DefaultClip is used when a clip duration is zero.
	DefaultClip int
	// MaxClip caps clip and replay durations, in Units.
	MaxClip int
	// RampSteps and RampDuration shape smooth volume changes.
	RampSteps    int
	RampDuration time.Duration
}

// DefaultConfig returns the stock controller settings.
func DefaultConfig() Config {
	return Config{
		Unit:         time.Second,
		DefaultClip:  30,
		MaxClip:      600,
		RampSteps:    10,
		RampDuration: 100 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Unit <= 0 {
		c.Unit = d.Unit
	}
	if c.DefaultClip <= 0 {
		c.DefaultClip = d.DefaultClip
	}
	if c.MaxClip <= 0 {
		c.MaxClip = d.MaxClip
	}
	if c.RampSteps <= 0 {
		c.RampSteps = d.RampSteps
	}
	if c.RampDuration <= 0 {
		c.RampDuration = d.RampDuration
	}
	return c
}

// Controller issues OBS requests on behalf of catalog operations.
type Controller struct {
	remote Remote
	guard  Guard
	cfg    Config
	logger ports.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	ramps map[string]*ramp
}

// NewController creates a controller. Background work is bound to ctx and to
// Close.
func NewController(ctx context.Context, remote Remote, guard Guard, cfg Config, logger ports.Logger) *Controller {
	ctx, cancel := context.WithCancel(ctx)
	return &Controller{
		remote: remote,
		guard:  guard,
		cfg:    cfg.withDefaults(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		ramps:  make(map[string]*ramp),
	}
}

// Close cancels ramps and pending replay timers and waits for them.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()
}

// Request guards the connection and performs one request.
func (c *Controller) Request(ctx context.Context, requestType string, data any) (json.RawMessage, error) {
	if err := c.guard.EnsureConnected(ctx); err != nil {
		return nil, err
	}
	return c.remote.Call(ctx, requestType, data)
}

// CheckConnection reports true once the guard lets a call through.
func (c *Controller) CheckConnection(ctx context.Context) (bool, error) {
	if err := c.guard.EnsureConnected(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Connect binds the session to params.
func (c *Controller) Connect(ctx context.Context, params domain.ConnectionParams) (domain.ConnectionInfo, error) {
	return c.remote.Switch(ctx, params.WithDefaults())
}

// call performs a request without guarding and decodes into out.
func (c *Controller) call(ctx context.Context, requestType string, data any, out any) error {
	raw, err := c.remote.Call(ctx, requestType, data)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	return decode(requestType, raw, out)
}

func (c *Controller) background(fn func(ctx context.Context)) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		fn(c.ctx)
	}()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
