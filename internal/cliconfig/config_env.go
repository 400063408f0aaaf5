package cliconfig

import (
	"os"
	"time"
)

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "OBSRELAY_"

// ApplyEnvConfig applies OBSRELAY_* environment variables to cfg. Explicitly
// set flags win.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)
	env := func(key string) string { return os.Getenv(EnvPrefix + key) }

	s.setString("obs-host", env("OBS_HOST"), &cfg.OBSHost)
	s.setString("obs-password", env("OBS_PASSWORD"), &cfg.OBSPassword)
	s.setString("tls-cert", env("TLS_CERT_FILE"), &cfg.TLSCertFile)
	s.setString("tls-key", env("TLS_KEY_FILE"), &cfg.TLSKeyFile)
	s.setString("advertise-host", env("ADVERTISE_HOST"), &cfg.AdvertiseHost)
	s.setString("state-dir", env("STATE_DIR"), &cfg.StateDir)
	s.setString("osc-target", env("OSC_TARGET"), &cfg.OSCTarget)
	s.setString("osc-listen", env("OSC_LISTEN"), &cfg.OSCListen)
	s.setString("bot-command", env("BOT_COMMAND"), &cfg.BotCommand)
	s.setString("log-level", env("LOG_LEVEL"), &cfg.LogLevel)

	ints := []struct {
		flag, key string
		dst       *int
	}{
		{"obs-port", "OBS_PORT", &cfg.OBSPort},
		{"http-port", "HTTP_PORT", &cfg.HTTPPort},
		{"https-port", "HTTPS_PORT", &cfg.HTTPSPort},
		{"guard-retries", "GUARD_RETRIES", &cfg.GuardRetries},
		{"reconnect-attempts", "RECONNECT_ATTEMPTS", &cfg.ReconnectAttempts},
	}
	for _, i := range ints {
		if err := s.setIntFromString(i.flag, env(i.key), i.dst); err != nil {
			return err
		}
	}

	durations := []struct {
		flag, key string
		dst       *time.Duration
	}{
		{"command-delay", "COMMAND_DELAY", &cfg.CommandDelay},
		{"event-delay", "EVENT_DELAY", &cfg.EventDelay},
		{"guard-timeout", "GUARD_TIMEOUT", &cfg.GuardTimeout},
		{"guard-delay", "GUARD_DELAY", &cfg.GuardDelay},
		{"reconnect-delay", "RECONNECT_DELAY", &cfg.ReconnectDelay},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, env(d.key), d.dst); err != nil {
			return err
		}
	}

	if err := s.setFloatFromString("reconnect-multiplier", env("RECONNECT_MULTIPLIER"), &cfg.ReconnectMultiplier); err != nil {
		return err
	}
	s.setBoolFromString("auto-reconnect", env("AUTO_RECONNECT"), &cfg.AutoReconnect)
	return nil
}
