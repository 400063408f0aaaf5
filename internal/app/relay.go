package app

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bft-labs/obsrelay/internal/ports"
)

// Chatter sends one line of chat.
type Chatter interface {
	Chat(text string) error
}

// RelayConfig tunes CommandRelay pacing.
type RelayConfig struct {
	// Limit is how many commands per Window pass without extra delay.
	Limit int
	// PerCommand is added for every Limit commands already seen in Window.
	PerCommand time.Duration
	// NumericPad is added to a purely numeric command's own value in ms.
	NumericPad time.Duration
	Window     time.Duration
}

// DefaultRelayConfig returns the stock pacing.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		Limit:      1,
		PerCommand: 10 * time.Millisecond,
		NumericPad: 20 * time.Millisecond,
		Window:     time.Minute,
	}
}

func (c RelayConfig) withDefaults() RelayConfig {
	d := DefaultRelayConfig()
	if c.Limit <= 0 {
		c.Limit = d.Limit
	}
	if c.PerCommand < 0 {
		c.PerCommand = 0
	}
	if c.NumericPad < 0 {
		c.NumericPad = 0
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	return c
}

// CommandRelay paces chat commands towards the bot. Each command is delayed
// by the number of commands already relayed inside the sliding window.
type CommandRelay struct {
	bot    Chatter
	online func() bool
	cfg    RelayConfig
	logger ports.Logger
	now    func() time.Time

	mu     sync.Mutex
	recent []time.Time
	timers map[*time.Timer]struct{}
	closed bool
}

// NewCommandRelay creates a relay. online is consulted when a delayed command
// fires; a nil online always sends.
func NewCommandRelay(bot Chatter, online func() bool, cfg RelayConfig, logger ports.Logger) *CommandRelay {
	return &CommandRelay{
		bot:    bot,
		online: online,
		cfg:    cfg.withDefaults(),
		logger: logger,
		now:    time.Now,
		timers: make(map[*time.Timer]struct{}),
	}
}

// DelayFor computes the delay for command given n commands already in the
// window.
func (r *CommandRelay) DelayFor(command string, n int) time.Duration {
	if ms, err := strconv.Atoi(strings.TrimSpace(command)); err == nil && ms >= 0 {
		return time.Duration(ms)*time.Millisecond + r.cfg.NumericPad
	}
	return time.Duration(n/r.cfg.Limit) * r.cfg.PerCommand
}

// Relay schedules command and returns the delay it was given.
func (r *CommandRelay) Relay(command string) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0
	}

	now := r.now()
	r.prune(now)
	delay := r.DelayFor(command, len(r.recent))
	r.recent = append(r.recent, now)

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		r.mu.Lock()
		delete(r.timers, t)
		r.mu.Unlock()
		r.fire(command)
	})
	r.timers[t] = struct{}{}

	r.logger.Debug("command queued",
		ports.String("command", command),
		ports.Duration("delay", delay),
		ports.Int("in_window", len(r.recent)),
	)
	return delay
}

// Pending returns how many commands are still waiting.
func (r *CommandRelay) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

// Close drops every queued command.
func (r *CommandRelay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	for t := range r.timers {
		t.Stop()
		delete(r.timers, t)
	}
}

func (r *CommandRelay) fire(command string) {
	if r.online != nil && !r.online() {
		r.logger.Warn("bot offline, command dropped", ports.String("command", command))
		return
	}
	if err := r.bot.Chat(command); err != nil {
		r.logger.Warn("command relay failed", ports.String("command", command), ports.Err(err))
	}
}

// prune must be called with r.mu held.
func (r *CommandRelay) prune(now time.Time) {
	cutoff := now.Add(-r.cfg.Window)
	i := 0
	for i < len(r.recent) && !r.recent[i].After(cutoff) {
		i++
	}
	r.recent = r.recent[i:]
}
