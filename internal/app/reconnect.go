package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/bft-labs/obsrelay/internal/ports"
)

// AttemptFunc performs one full reconnect. A nil error means the new
// connection object exists; the owner confirms it with Succeeded or reports
// an early death with Failed.
type AttemptFunc func(ctx context.Context) error

// ReconnectStatus is a snapshot of a Reconnector.
type ReconnectStatus struct {
	Failures    int  `json:"failures"`
	MaxAttempts int  `json:"maxAttempts"`
	Pending     bool `json:"pending"`
	Halted      bool `json:"halted"`
}

// Reconnector schedules bounded reconnect attempts. After MaxAttempts
// consecutive failures it halts and stays halted until Resume.
type Reconnector struct {
	name    string
	policy  ReconnectPolicy
	attempt AttemptFunc
	logger  ports.Logger
	ctx     context.Context
	rng     *rand.Rand

	mu       sync.Mutex
	failures int
	pending  bool
	running  bool
	rerun    bool
	halted   bool
	stopped  bool
	timer    *time.Timer
	onHalt   func()
}

// NewReconnector creates an armed reconnector. ctx bounds every attempt.
func NewReconnector(ctx context.Context, name string, policy ReconnectPolicy, attempt AttemptFunc, logger ports.Logger) *Reconnector {
	return &Reconnector{
		name:    name,
		policy:  policy.withDefaults(),
		attempt: attempt,
		logger:  logger,
		ctx:     ctx,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnHalt registers fn to run once the ceiling is reached.
func (r *Reconnector) OnHalt(fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onHalt = fn
}

// Lost schedules a reconnect after a live connection went away. It does not
// count as a failure.
func (r *Reconnector) Lost(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger.Info("connection lost, scheduling reconnect",
		ports.String("target", r.name),
		ports.String("reason", reason),
	)
	r.schedule()
}

// Failed records a failed attempt and schedules the next one, or halts.
func (r *Reconnector) Failed(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recordFailure(err)
}

// Succeeded resets the consecutive failure count.
func (r *Reconnector) Succeeded() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.logger.Info("reconnected", ports.String("target", r.name), ports.Int("after_failures", r.failures))
	}
	r.failures = 0
}

// Arm clears the halted and stopped flags without scheduling anything.
func (r *Reconnector) Arm() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = 0
	r.halted = false
	r.stopped = false
}

// Resume is the operator action that restarts a halted reconnector.
func (r *Reconnector) Resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = 0
	r.halted = false
	r.stopped = false
	r.logger.Info("reconnect resumed", ports.String("target", r.name))
	r.schedule()
}

// Stop cancels any scheduled attempt and ignores further Lost/Failed calls
// until Arm or Resume.
func (r *Reconnector) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped = true
	r.pending = false
	r.rerun = false
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

// Status returns a snapshot.
func (r *Reconnector) Status() ReconnectStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return ReconnectStatus{
		Failures:    r.failures,
		MaxAttempts: r.policy.MaxAttempts,
		Pending:     r.pending || r.running,
		Halted:      r.halted,
	}
}

// schedule must be called with r.mu held. A request that arrives while an
// attempt runs is deferred until that attempt returns.
func (r *Reconnector) schedule() {
	if r.stopped || r.halted || r.ctx.Err() != nil {
		return
	}
	if r.running {
		r.rerun = true
		return
	}
	if r.pending {
		return
	}
	r.pending = true
	delay := r.policy.DelayFor(r.failures+1, r.rng)
	r.logger.Debug("reconnect scheduled",
		ports.String("target", r.name),
		ports.Int("attempt", r.failures+1),
		ports.Int("max_attempts", r.policy.MaxAttempts),
		ports.Duration("delay", delay),
	)
	r.timer = time.AfterFunc(delay, r.run)
}

func (r *Reconnector) run() {
	r.mu.Lock()
	if r.stopped || r.halted || !r.pending {
		r.mu.Unlock()
		return
	}
	n := r.failures + 1
	r.pending = false
	r.running = true
	r.timer = nil
	r.mu.Unlock()

	r.logger.Info("reconnecting",
		ports.String("target", r.name),
		ports.Int("attempt", n),
		ports.Int("max_attempts", r.policy.MaxAttempts),
	)
	err := r.attempt(r.ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	rerun := r.rerun
	r.rerun = false
	if r.stopped {
		return
	}
	if err != nil {
		r.recordFailure(err)
		return
	}
	if rerun {
		r.schedule()
	}
}

// recordFailure must be called with r.mu held.
func (r *Reconnector) recordFailure(err error) {
	if r.stopped || r.halted {
		return
	}
	r.failures++
	r.logger.Warn("reconnect attempt failed",
		ports.String("target", r.name),
		ports.Int("failures", r.failures),
		ports.Err(err),
	)
	if r.failures >= r.policy.MaxAttempts {
		r.halted = true
		r.logger.Error("reconnect attempts exhausted, waiting for operator",
			ports.String("target", r.name),
			ports.Int("max_attempts", r.policy.MaxAttempts),
		)
		if r.onHalt != nil {
			go r.onHalt()
		}
		return
	}
	r.schedule()
}
