package app

import (
	"math"
	"math/rand"
	"time"
)

// Default reconnect configuration values.
const (
	DefaultReconnectAttempts = 5
	DefaultReconnectDelay    = 3 * time.Second
)

// ReconnectPolicy controls the bounded reconnect loop.
// With Multiplier 1 (the default) every attempt waits the same Delay.
type ReconnectPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
	Jitter      bool
}

// DefaultReconnectPolicy returns the fixed-delay, five-attempt policy.
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		MaxAttempts: DefaultReconnectAttempts,
		Delay:       DefaultReconnectDelay,
		Multiplier:  1,
	}
}

func (p ReconnectPolicy) withDefaults() ReconnectPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultReconnectAttempts
	}
	if p.Delay < 0 {
		p.Delay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}
	return p
}

// DelayFor returns the wait before attempt n (1-based).
func (p ReconnectPolicy) DelayFor(attempt int, rng *rand.Rand) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.Delay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	if p.Jitter && rng != nil {
		// ±20%
		delay += delay * 0.2 * (rng.Float64()*2 - 1)
	}
	return time.Duration(delay)
}
