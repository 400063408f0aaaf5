package app

import (
	"context"
	"fmt"
	"time"

	"github.com/bft-labs/obsrelay/internal/domain"
	"github.com/bft-labs/obsrelay/internal/ports"
)

// GuardConfig bounds how long the guard waits for a connection.
type GuardConfig struct {
	// Timeout is an overall deadline for one EnsureConnected call.
	Timeout time.Duration
	// Retries is the number of state polls.
	Retries int
	// Delay is the wait between two polls.
	Delay time.Duration
}

// DefaultGuardConfig returns 1s / 3 polls / 400ms.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{
		Timeout: time.Second,
		Retries: 3,
		Delay:   400 * time.Millisecond,
	}
}

// MinTimeout is the time the polls alone take: Retries-1 waits of Delay.
func (c GuardConfig) MinTimeout() time.Duration {
	if c.Retries <= 1 {
		return 0
	}
	return time.Duration(c.Retries-1) * c.Delay
}

// Validate rejects a timeout that would cut the polls short. A zero timeout
// means no overall deadline.
func (c GuardConfig) Validate() error {
	if c.Retries <= 0 {
		return fmt.Errorf("%w: guard retries must be positive", domain.ErrInvalidConfig)
	}
	if c.Delay < 0 || c.Timeout < 0 {
		return fmt.Errorf("%w: guard durations must not be negative", domain.ErrInvalidConfig)
	}
	if c.Timeout > 0 && c.Timeout < c.MinTimeout() {
		return fmt.Errorf("%w: guard timeout %v is shorter than %d polls %v apart",
			domain.ErrInvalidConfig, c.Timeout, c.Retries, c.Delay)
	}
	return nil
}

// StateSource reports the session state. *Session satisfies it.
type StateSource interface {
	State() domain.SessionState
}

// Guard waits for a connection that may be establishing asynchronously.
// It never starts a connection itself.
type Guard struct {
	source StateSource
	cfg    GuardConfig
	logger ports.Logger
}

// NewGuard creates a guard over source.
func NewGuard(source StateSource, cfg GuardConfig, logger ports.Logger) *Guard {
	if cfg.Retries <= 0 {
		cfg.Retries = 1
	}
	return &Guard{source: source, cfg: cfg, logger: logger}
}

// EnsureConnected returns nil as soon as the source is Connected. Otherwise it
// polls up to Retries times, sleeping Delay between polls, and returns
// ErrConnectionUnavailable.
func (g *Guard) EnsureConnected(ctx context.Context) error {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	for attempt := 1; attempt <= g.cfg.Retries; attempt++ {
		if g.source.State() == domain.StateConnected {
			return nil
		}
		if attempt == g.cfg.Retries {
			break
		}
		g.logger.Debug("not connected, retrying",
			ports.Int("attempt", attempt),
			ports.Duration("delay", g.cfg.Delay),
		)

		t := time.NewTimer(g.cfg.Delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %w", domain.ErrConnectionUnavailable, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("%w after %d attempts", domain.ErrConnectionUnavailable, g.cfg.Retries)
}
