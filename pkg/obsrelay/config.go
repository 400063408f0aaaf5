package obsrelay

import (
	"fmt"
	"net"
	"time"

	"github.com/bft-labs/obsrelay/internal/app"
	"github.com/bft-labs/obsrelay/internal/domain"
)

// DefaultHTTPAddr is the plain HTTP listener used when none is configured.
const DefaultHTTPAddr = ":8090"

// OBSParams identifies an obs-websocket endpoint.
type OBSParams = domain.ConnectionParams

// Config is the configuration of a Relay.
type Config struct {
	// OBSHost, OBSPort and OBSPassword are used when no connection was
	// persisted in StateDir yet.
	OBSHost     string
	OBSPort     int
	OBSPassword string

	// HTTPAddr serves the HTTP API and /ws. HTTPSAddr additionally serves
	// them over TLS when TLSCertFile and TLSKeyFile are set.
	HTTPAddr    string
	HTTPSAddr   string
	TLSCertFile string
	TLSKeyFile  string

	// OnboardingURLs are encoded as QR codes and pushed to new clients.
	OnboardingURLs []string

	// StateDir holds connection.json and state.json. Required.
	StateDir string

	// ConfigPath is the TOML file plugins may watch.
	ConfigPath string

	// OSCTarget receives chatbox lines. Empty disables stream events.
	OSCTarget string
	// OSCListen accepts inbound OSC messages. Empty disables it.
	OSCListen string

	// BotCommand starts the game bot process. Empty disables the bot.
	BotCommand   string
	CommandDelay time.Duration
	EventDelay   time.Duration

	GuardTimeout time.Duration
	GuardRetries int
	GuardDelay   time.Duration

	ReconnectAttempts   int
	ReconnectDelay      time.Duration
	ReconnectMultiplier float64
	// AutoReconnect re-establishes a lost OBS session within the
	// reconnect policy.
	AutoReconnect bool
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	params := OBSParams{Host: c.OBSHost, Port: c.OBSPort}.WithDefaults()
	c.OBSHost, c.OBSPort = params.Host, params.Port
	if c.HTTPAddr == "" {
		c.HTTPAddr = DefaultHTTPAddr
	}
	if c.CommandDelay <= 0 {
		c.CommandDelay = app.DefaultRelayConfig().PerCommand
	}
	if c.EventDelay <= 0 {
		c.EventDelay = 500 * time.Millisecond
	}
	guard := app.DefaultGuardConfig()
	if c.GuardRetries <= 0 {
		c.GuardRetries = guard.Retries
	}
	if c.GuardDelay <= 0 {
		c.GuardDelay = guard.Delay
	}
	if c.GuardTimeout <= 0 {
		c.GuardTimeout = max(guard.Timeout, c.guard().MinTimeout())
	}
	policy := app.DefaultReconnectPolicy()
	if c.ReconnectAttempts <= 0 {
		c.ReconnectAttempts = policy.MaxAttempts
	}
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = policy.Delay
	}
	if c.ReconnectMultiplier < 1 {
		c.ReconnectMultiplier = policy.Multiplier
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.StateDir == "" {
		return fmt.Errorf("%w: state dir is required", domain.ErrInvalidConfig)
	}
	if c.HTTPSAddr != "" && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("%w: https listener needs a certificate and key", domain.ErrInvalidConfig)
	}
	for _, addr := range []string{c.HTTPAddr, c.HTTPSAddr, c.OSCTarget, c.OSCListen} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%w: address %q: %v", domain.ErrInvalidConfig, addr, err)
		}
	}
	return c.guard().Validate()
}

// OBS returns the default OBS endpoint.
func (c Config) OBS() OBSParams {
	return OBSParams{Host: c.OBSHost, Port: c.OBSPort, Password: c.OBSPassword}.WithDefaults()
}

func (c Config) guard() app.GuardConfig {
	return app.GuardConfig{Timeout: c.GuardTimeout, Retries: c.GuardRetries, Delay: c.GuardDelay}
}

func (c Config) policy() app.ReconnectPolicy {
	return app.ReconnectPolicy{
		MaxAttempts: c.ReconnectAttempts,
		Delay:       c.ReconnectDelay,
		Multiplier:  c.ReconnectMultiplier,
	}
}

func (c Config) relay() app.RelayConfig {
	cfg := app.DefaultRelayConfig()
	cfg.PerCommand = c.CommandDelay
	return cfg
}
