package cliconfig

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/obsrelay/internal/app"
	"github.com/bft-labs/obsrelay/internal/domain"
)

// Defaults for the listeners and OSC endpoints.
const (
	DefaultHTTPPort  = 8090
	DefaultOSCTarget = "127.0.0.1:9000"
	DefaultOSCListen = "127.0.0.1:9001"
)

// Config holds CLI configuration for obsrelay.
type Config struct {
	OBSHost     string
	OBSPort     int
	OBSPassword string

	HTTPPort      int
	HTTPSPort     int
	TLSCertFile   string
	TLSKeyFile    string
	AdvertiseHost string

	StateDir string

	OSCTarget string
	OSCListen string

	BotCommand   string
	CommandDelay time.Duration
	EventDelay   time.Duration

	GuardTimeout time.Duration
	GuardRetries int
	GuardDelay   time.Duration

	ReconnectAttempts   int
	ReconnectDelay      time.Duration
	ReconnectMultiplier float64
	AutoReconnect       bool

	LogLevel string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		OBSHost:             domain.DefaultHost,
		OBSPort:             domain.DefaultPort,
		HTTPPort:            DefaultHTTPPort,
		OSCTarget:           DefaultOSCTarget,
		OSCListen:           DefaultOSCListen,
		CommandDelay:        10 * time.Millisecond,
		EventDelay:          500 * time.Millisecond,
		GuardTimeout:        time.Second,
		GuardRetries:        3,
		GuardDelay:          400 * time.Millisecond,
		ReconnectAttempts:   5,
		ReconnectDelay:      3 * time.Second,
		ReconnectMultiplier: 1,
		AutoReconnect:       true,
		LogLevel:            "info",
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.OBSHost == "" {
		c.OBSHost = domain.DefaultHost
	}
	if err := validPort("obs-port", c.OBSPort, false); err != nil {
		return err
	}
	if err := validPort("http-port", c.HTTPPort, false); err != nil {
		return err
	}
	if err := validPort("https-port", c.HTTPSPort, true); err != nil {
		return err
	}
	if c.HTTPSPort > 0 && (c.TLSCertFile == "" || c.TLSKeyFile == "") {
		return fmt.Errorf("%w: https-port needs tls-cert and tls-key", domain.ErrInvalidConfig)
	}
	if c.HTTPSPort > 0 && c.HTTPSPort == c.HTTPPort {
		return fmt.Errorf("%w: http-port and https-port must differ", domain.ErrInvalidConfig)
	}

	if c.StateDir == "" {
		if h, err := os.UserHomeDir(); err == nil {
			c.StateDir = filepath.Join(h, ".obsrelay")
		} else {
			c.StateDir = ".obsrelay"
		}
	}

	for name, addr := range map[string]string{"osc-target": c.OSCTarget, "osc-listen": c.OSCListen} {
		if addr == "" {
			continue
		}
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%w: %s: %v", domain.ErrInvalidConfig, name, err)
		}
	}

	guard := app.GuardConfig{Timeout: c.GuardTimeout, Retries: c.GuardRetries, Delay: c.GuardDelay}
	if err := guard.Validate(); err != nil {
		return err
	}
	if c.ReconnectAttempts <= 0 {
		return fmt.Errorf("%w: reconnect-attempts must be positive", domain.ErrInvalidConfig)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("%w: reconnect-delay must be positive", domain.ErrInvalidConfig)
	}
	if c.ReconnectMultiplier < 1 {
		c.ReconnectMultiplier = 1
	}

	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "":
		c.LogLevel = "info"
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", domain.ErrInvalidConfig, c.LogLevel)
	}
	return nil
}

// OBSParams returns the configured OBS endpoint.
func (c Config) OBSParams() domain.ConnectionParams {
	return domain.ConnectionParams{Host: c.OBSHost, Port: c.OBSPort, Password: c.OBSPassword}.WithDefaults()
}

// HTTPAddr is the plain listener address.
func (c Config) HTTPAddr() string { return ":" + strconv.Itoa(c.HTTPPort) }

// HTTPSAddr is the TLS listener address, empty when TLS is off.
func (c Config) HTTPSAddr() string {
	if c.HTTPSPort <= 0 {
		return ""
	}
	return ":" + strconv.Itoa(c.HTTPSPort)
}

// OnboardingURLs returns the URLs advertised to new clients.
func (c Config) OnboardingURLs() []string {
	host := c.AdvertiseHost
	if host == "" {
		host = LocalAddress()
	}
	urls := []string{fmt.Sprintf("http://%s", net.JoinHostPort(host, strconv.Itoa(c.HTTPPort)))}
	if c.HTTPSPort > 0 {
		urls = append(urls, fmt.Sprintf("https://%s", net.JoinHostPort(host, strconv.Itoa(c.HTTPSPort))))
	}
	return urls
}

// LocalAddress returns the first non-loopback IPv4 address, or 127.0.0.1.
func LocalAddress() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "127.0.0.1"
	}
	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipnet.IP.To4(); ip4 != nil {
			return ip4.String()
		}
	}
	return "127.0.0.1"
}

func validPort(name string, port int, optional bool) error {
	if optional && port == 0 {
		return nil
	}
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: %s %d out of range", domain.ErrInvalidConfig, name, port)
	}
	return nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int for environment variables.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString accepts "true" and "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
