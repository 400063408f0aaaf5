package cliconfig

import (
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"OBSRELAY_OBS_HOST":             "10.0.0.5",
				"OBSRELAY_OBS_PORT":             "4456",
				"OBSRELAY_OBS_PASSWORD":         "secret",
				"OBSRELAY_HTTP_PORT":            "9090",
				"OBSRELAY_GUARD_DELAY":          "1s",
				"OBSRELAY_RECONNECT_MULTIPLIER": "1.5",
				"OBSRELAY_AUTO_RECONNECT":       "true",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				OBSHost:             "10.0.0.5",
				OBSPort:             4456,
				OBSPassword:         "secret",
				HTTPPort:            9090,
				GuardDelay:          time.Second,
				ReconnectMultiplier: 1.5,
				AutoReconnect:       true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"OBSRELAY_OBS_HOST":  "10.0.0.5",
				"OBSRELAY_HTTP_PORT": "9090",
			},
			changed:  map[string]bool{"obs-host": true},
			initial:  Config{OBSHost: "flag-host"},
			expected: Config{OBSHost: "flag-host", HTTPPort: 9090},
		},
		{
			name:     "returns error for invalid duration",
			envVars:  map[string]string{"OBSRELAY_GUARD_TIMEOUT": "not-a-duration"},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{},
			wantErr:  true,
		},
		{
			name:     "returns error for invalid int",
			envVars:  map[string]string{"OBSRELAY_OBS_PORT": "not-a-number"},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{},
			wantErr:  true,
		},
		{
			name:     "returns error for invalid float",
			envVars:  map[string]string{"OBSRELAY_RECONNECT_MULTIPLIER": "x"},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{},
			wantErr:  true,
		},
		{
			name:     "handles bool '1' as true",
			envVars:  map[string]string{"OBSRELAY_AUTO_RECONNECT": "1"},
			changed:  map[string]bool{},
			initial:  Config{},
			expected: Config{AutoReconnect: true},
		},
		{
			name:     "handles bool 'false' as false",
			envVars:  map[string]string{"OBSRELAY_AUTO_RECONNECT": "false"},
			changed:  map[string]bool{},
			initial:  Config{AutoReconnect: true},
			expected: Config{AutoReconnect: false},
		},
		{
			name: "handles all field types correctly",
			envVars: map[string]string{
				"OBSRELAY_OBS_HOST":             "obs.lan",
				"OBSRELAY_OBS_PORT":             "4455",
				"OBSRELAY_OBS_PASSWORD":         "pw",
				"OBSRELAY_HTTP_PORT":            "8090",
				"OBSRELAY_HTTPS_PORT":           "8443",
				"OBSRELAY_TLS_CERT_FILE":        "/tls/cert.pem",
				"OBSRELAY_TLS_KEY_FILE":         "/tls/key.pem",
				"OBSRELAY_ADVERTISE_HOST":       "192.168.1.10",
				"OBSRELAY_STATE_DIR":            "/state",
				"OBSRELAY_OSC_TARGET":           "127.0.0.1:9100",
				"OBSRELAY_OSC_LISTEN":           "127.0.0.1:9101",
				"OBSRELAY_BOT_COMMAND":          "node bot.js",
				"OBSRELAY_COMMAND_DELAY":        "20ms",
				"OBSRELAY_EVENT_DELAY":          "1s",
				"OBSRELAY_GUARD_TIMEOUT":        "2s",
				"OBSRELAY_GUARD_RETRIES":        "4",
				"OBSRELAY_GUARD_DELAY":          "100ms",
				"OBSRELAY_RECONNECT_ATTEMPTS":   "5",
				"OBSRELAY_RECONNECT_DELAY":      "3s",
				"OBSRELAY_RECONNECT_MULTIPLIER": "2",
				"OBSRELAY_AUTO_RECONNECT":       "1",
				"OBSRELAY_LOG_LEVEL":            "debug",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				OBSHost:             "obs.lan",
				OBSPort:             4455,
				OBSPassword:         "pw",
				HTTPPort:            8090,
				HTTPSPort:           8443,
				TLSCertFile:         "/tls/cert.pem",
				TLSKeyFile:          "/tls/key.pem",
				AdvertiseHost:       "192.168.1.10",
				StateDir:            "/state",
				OSCTarget:           "127.0.0.1:9100",
				OSCListen:           "127.0.0.1:9101",
				BotCommand:          "node bot.js",
				CommandDelay:        20 * time.Millisecond,
				EventDelay:          time.Second,
				GuardTimeout:        2 * time.Second,
				GuardRetries:        4,
				GuardDelay:          100 * time.Millisecond,
				ReconnectAttempts:   5,
				ReconnectDelay:      3 * time.Second,
				ReconnectMultiplier: 2,
				AutoReconnect:       true,
				LogLevel:            "debug",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyEnvConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyEnvConfig() unexpected error: %v", err)
				return
			}
			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyEnvConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
