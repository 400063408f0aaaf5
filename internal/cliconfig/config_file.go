package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	OBS struct {
		Host     string `toml:"host"`
		Port     int    `toml:"port"`
		Password string `toml:"password"`
	} `toml:"obs"`

	HTTPPort      int    `toml:"http_port"`
	HTTPSPort     int    `toml:"https_port"`
	TLSCertFile   string `toml:"tls_cert_file"`
	TLSKeyFile    string `toml:"tls_key_file"`
	AdvertiseHost string `toml:"advertise_host"`
	StateDir      string `toml:"state_dir"`

	OSCTarget string `toml:"osc_target"`
	OSCListen string `toml:"osc_listen"`

	BotCommand   string `toml:"bot_command"`
	CommandDelay string `toml:"command_delay"`
	EventDelay   string `toml:"event_delay"`

	GuardTimeout string `toml:"guard_timeout"`
	GuardRetries int    `toml:"guard_retries"`
	GuardDelay   string `toml:"guard_delay"`

	ReconnectAttempts   int     `toml:"reconnect_attempts"`
	ReconnectDelay      string  `toml:"reconnect_delay"`
	ReconnectMultiplier float64 `toml:"reconnect_multiplier"`
	AutoReconnect       *bool   `toml:"auto_reconnect"`

	LogLevel string `toml:"log_level"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.obsrelay/config.toml when the home directory
// is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".obsrelay", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("obs-host", fc.OBS.Host, &cfg.OBSHost)
	s.setInt("obs-port", fc.OBS.Port, &cfg.OBSPort)
	s.setString("obs-password", fc.OBS.Password, &cfg.OBSPassword)

	s.setInt("http-port", fc.HTTPPort, &cfg.HTTPPort)
	s.setInt("https-port", fc.HTTPSPort, &cfg.HTTPSPort)
	s.setString("tls-cert", fc.TLSCertFile, &cfg.TLSCertFile)
	s.setString("tls-key", fc.TLSKeyFile, &cfg.TLSKeyFile)
	s.setString("advertise-host", fc.AdvertiseHost, &cfg.AdvertiseHost)
	s.setString("state-dir", fc.StateDir, &cfg.StateDir)

	s.setString("osc-target", fc.OSCTarget, &cfg.OSCTarget)
	s.setString("osc-listen", fc.OSCListen, &cfg.OSCListen)
	s.setString("bot-command", fc.BotCommand, &cfg.BotCommand)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"command-delay", fc.CommandDelay, &cfg.CommandDelay},
		{"event-delay", fc.EventDelay, &cfg.EventDelay},
		{"guard-timeout", fc.GuardTimeout, &cfg.GuardTimeout},
		{"guard-delay", fc.GuardDelay, &cfg.GuardDelay},
		{"reconnect-delay", fc.ReconnectDelay, &cfg.ReconnectDelay},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("guard-retries", fc.GuardRetries, &cfg.GuardRetries)
	s.setInt("reconnect-attempts", fc.ReconnectAttempts, &cfg.ReconnectAttempts)
	s.setFloat("reconnect-multiplier", fc.ReconnectMultiplier, &cfg.ReconnectMultiplier)
	s.setBool("auto-reconnect", fc.AutoReconnect, &cfg.AutoReconnect)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
