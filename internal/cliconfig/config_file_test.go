package cliconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestApplyFileConfig(t *testing.T) {
	trueVal := true
	falseVal := false

	full := FileConfig{
		HTTPPort:            9090,
		HTTPSPort:           9443,
		TLSCertFile:         "/tls/cert.pem",
		TLSKeyFile:          "/tls/key.pem",
		AdvertiseHost:       "192.168.1.10",
		StateDir:            "/state",
		OSCTarget:           "127.0.0.1:9100",
		OSCListen:           "127.0.0.1:9101",
		BotCommand:          "node bot.js",
		CommandDelay:        "20ms",
		EventDelay:          "1s",
		GuardTimeout:        "2s",
		GuardRetries:        4,
		GuardDelay:          "100ms",
		ReconnectAttempts:   5,
		ReconnectDelay:      "3s",
		ReconnectMultiplier: 2,
		AutoReconnect:       &falseVal,
		LogLevel:            "warn",
	}
	full.OBS.Host = "obs.lan"
	full.OBS.Port = 4456
	full.OBS.Password = "pw"

	hostOnly := FileConfig{HTTPPort: 9090}
	hostOnly.OBS.Host = "config-host"

	tests := []struct {
		name       string
		fileConfig FileConfig
		changed    map[string]bool
		initial    Config
		expected   Config
		wantErr    bool
	}{
		{
			name:       "handles all field types correctly",
			fileConfig: full,
			changed:    map[string]bool{},
			initial:    Config{AutoReconnect: true},
			expected: Config{
				OBSHost:             "obs.lan",
				OBSPort:             4456,
				OBSPassword:         "pw",
				HTTPPort:            9090,
				HTTPSPort:           9443,
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
				AutoReconnect:       false,
				LogLevel:            "warn",
			},
		},
		{
			name:       "respects changed flags",
			fileConfig: hostOnly,
			changed:    map[string]bool{"obs-host": true},
			initial:    Config{OBSHost: "flag-host"},
			expected: Config{
				OBSHost:  "flag-host", // unchanged because flag was set
				HTTPPort: 9090,
			},
		},
		{
			name:       "unset bool keeps current value",
			fileConfig: FileConfig{},
			changed:    map[string]bool{},
			initial:    Config{AutoReconnect: true},
			expected:   Config{AutoReconnect: true},
		},
		{
			name:       "explicit bool overrides",
			fileConfig: FileConfig{AutoReconnect: &trueVal},
			changed:    map[string]bool{},
			initial:    Config{},
			expected:   Config{AutoReconnect: true},
		},
		{
			name:       "returns error for invalid duration",
			fileConfig: FileConfig{GuardDelay: "soon"},
			changed:    map[string]bool{},
			initial:    Config{},
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.initial
			err := ApplyFileConfig(&cfg, tt.fileConfig, tt.changed)

			if tt.wantErr && err == nil {
				t.Error("ApplyFileConfig() expected error but got nil")
				return
			}
			if !tt.wantErr && err != nil {
				t.Errorf("ApplyFileConfig() unexpected error: %v", err)
				return
			}
			if !tt.wantErr && cfg != tt.expected {
				t.Errorf("ApplyFileConfig() = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}

func TestLoadFileConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.toml")

	tomlContent := `
http_port = 9090
bot_command = "node bot.js"
guard_delay = "250ms"
reconnect_multiplier = 1.5
auto_reconnect = true

[obs]
host = "192.168.1.20"
port = 4456
password = "secret"
`

	if err := os.WriteFile(configPath, []byte(tomlContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	fc, err := LoadFileConfig(configPath)
	if err != nil {
		t.Fatalf("LoadFileConfig() error = %v", err)
	}

	if fc.OBS.Host != "192.168.1.20" {
		t.Errorf("OBS.Host = %v, want 192.168.1.20", fc.OBS.Host)
	}
	if fc.OBS.Port != 4456 {
		t.Errorf("OBS.Port = %v, want 4456", fc.OBS.Port)
	}
	if fc.OBS.Password != "secret" {
		t.Errorf("OBS.Password = %v, want secret", fc.OBS.Password)
	}
	if fc.HTTPPort != 9090 {
		t.Errorf("HTTPPort = %v, want 9090", fc.HTTPPort)
	}
	if fc.BotCommand != "node bot.js" {
		t.Errorf("BotCommand = %v, want node bot.js", fc.BotCommand)
	}
	if fc.GuardDelay != "250ms" {
		t.Errorf("GuardDelay = %v, want 250ms", fc.GuardDelay)
	}
	if fc.ReconnectMultiplier != 1.5 {
		t.Errorf("ReconnectMultiplier = %v, want 1.5", fc.ReconnectMultiplier)
	}
	if fc.AutoReconnect == nil || !*fc.AutoReconnect {
		t.Errorf("AutoReconnect = %v, want true", fc.AutoReconnect)
	}
}

func TestLoadFileConfig_InvalidFile(t *testing.T) {
	_, err := LoadFileConfig("/nonexistent/path/config.toml")
	if err == nil {
		t.Error("LoadFileConfig() expected error for nonexistent file")
	}
}

func TestLoadFileConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.toml")

	invalidContent := `
http_port = 8090
this is not valid toml
`

	if err := os.WriteFile(configPath, []byte(invalidContent), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}

	_, err := LoadFileConfig(configPath)
	if err == nil {
		t.Error("LoadFileConfig() expected error for invalid TOML")
	}
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()

	if path != "" && !strings.Contains(path, ".obsrelay") {
		t.Errorf("DefaultConfigPath() = %v, should contain .obsrelay", path)
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()
	existingFile := filepath.Join(tmpDir, "exists.txt")
	if err := os.WriteFile(existingFile, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	if !FileExists(existingFile) {
		t.Error("FileExists() = false for existing file")
	}
	if FileExists(filepath.Join(tmpDir, "missing.txt")) {
		t.Error("FileExists() = true for missing file")
	}
}
