package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Prober.Pause != 200*time.Millisecond {
		t.Errorf("expected default pause 200ms, got %v", config.Prober.Pause)
	}
	if config.Prober.LocalPort != 0 {
		t.Errorf("expected ephemeral local port, got %d", config.Prober.LocalPort)
	}
	if config.Responder.ReplyCount != 1800 {
		t.Errorf("expected default reply count 1800, got %d", config.Responder.ReplyCount)
	}
	if config.Responder.ReplyInterval != time.Second {
		t.Errorf("expected default reply interval 1s, got %v", config.Responder.ReplyInterval)
	}
	if config.Responder.ConcurrentBursts {
		t.Error("expected sequential bursts by default")
	}
	if config.Responder.RateLimit {
		t.Error("expected rate limiting off by default")
	}
	if config.Announcer.Interval != time.Second {
		t.Errorf("expected default announce interval 1s, got %v", config.Announcer.Interval)
	}
	if config.Monitor.ListenAddr != "" {
		t.Errorf("expected monitor disabled by default, got %s", config.Monitor.ListenAddr)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected default log level 'info', got %s", config.Logging.Level)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"negative local port", func(c *Config) { c.Prober.LocalPort = -1 }, true},
		{"local port too large", func(c *Config) { c.Announcer.LocalPort = 70000 }, true},
		{"responder port too large", func(c *Config) { c.Responder.Port = 65536 }, true},
		{"negative pause", func(c *Config) { c.Prober.Pause = -time.Second }, true},
		{"negative reply count", func(c *Config) { c.Responder.ReplyCount = -5 }, true},
		{"negative reply interval", func(c *Config) { c.Responder.ReplyInterval = -time.Second }, true},
		{"negative announce interval", func(c *Config) { c.Announcer.Interval = -time.Second }, true},
		{"zero values get defaults", func(c *Config) {
			c.Prober.Pause = 0
			c.Responder.ReplyCount = 0
			c.Responder.ReplyInterval = 0
			c.Announcer.Interval = 0
			c.Logging.Level = ""
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.modify(config)
			err := config.Validate()
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestConfigZeroValuesDefault(t *testing.T) {
	config := &Config{}

	if err := config.Validate(); err != nil {
		t.Fatalf("validation failed: %v", err)
	}

	if config.Prober.Pause != DefaultProbePause {
		t.Errorf("expected pause %v, got %v", DefaultProbePause, config.Prober.Pause)
	}
	if config.Responder.ReplyCount != DefaultReplyCount {
		t.Errorf("expected reply count %d, got %d", DefaultReplyCount, config.Responder.ReplyCount)
	}
	if config.Responder.ReplyInterval != DefaultReplyInterval {
		t.Errorf("expected reply interval %v, got %v", DefaultReplyInterval, config.Responder.ReplyInterval)
	}
	if config.Announcer.Interval != DefaultAnnounceEvery {
		t.Errorf("expected announce interval %v, got %v", DefaultAnnounceEvery, config.Announcer.Interval)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", config.Logging.Level)
	}
}

func TestRoleValidation(t *testing.T) {
	config := DefaultConfig()

	if err := config.ValidateProber(); err == nil {
		t.Error("expected error for missing prober remote")
	}
	config.Prober.Remote = "127.0.0.1"
	if err := config.ValidateProber(); err == nil {
		t.Error("expected error for prober remote without port")
	}
	config.Prober.Remote = "127.0.0.1:9999"
	if err := config.ValidateProber(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := config.ValidateResponder(); err == nil {
		t.Error("expected error for missing responder port")
	}
	config.Responder.Port = 9999
	if err := config.ValidateResponder(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	if err := config.ValidateAnnouncer(); err == nil {
		t.Error("expected error for missing announcer remote")
	}
	config.Announcer.Remote = "127.0.0.1:7000"
	if err := config.ValidateAnnouncer(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "pingpong.yaml")

	configContent := `
prober:
  remote: "127.0.0.1:9999"
  local_port: 4000
  pause: "50ms"
  reuse_port: true

responder:
  port: 9999
  reply_count: 10
  reply_interval: "100ms"
  concurrent_bursts: true
  rate_limit: true

announcer:
  remote: "127.0.0.1:7000"
  interval: "2s"

monitor:
  listen_addr: "127.0.0.1:9100"

logging:
  level: "debug"
`

	err := os.WriteFile(configPath, []byte(configContent), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if config.Prober.Remote != "127.0.0.1:9999" {
		t.Errorf("expected prober remote '127.0.0.1:9999', got %s", config.Prober.Remote)
	}
	if config.Prober.LocalPort != 4000 {
		t.Errorf("expected local port 4000, got %d", config.Prober.LocalPort)
	}
	if config.Prober.Pause != 50*time.Millisecond {
		t.Errorf("expected pause 50ms, got %v", config.Prober.Pause)
	}
	if !config.Prober.ReusePort {
		t.Error("expected prober reuse_port true")
	}
	if config.Responder.Port != 9999 {
		t.Errorf("expected responder port 9999, got %d", config.Responder.Port)
	}
	if config.Responder.ReplyCount != 10 {
		t.Errorf("expected reply count 10, got %d", config.Responder.ReplyCount)
	}
	if config.Responder.ReplyInterval != 100*time.Millisecond {
		t.Errorf("expected reply interval 100ms, got %v", config.Responder.ReplyInterval)
	}
	if !config.Responder.ConcurrentBursts || !config.Responder.RateLimit {
		t.Error("expected concurrent_bursts and rate_limit true")
	}
	if config.Announcer.Interval != 2*time.Second {
		t.Errorf("expected announce interval 2s, got %v", config.Announcer.Interval)
	}
	if config.Monitor.ListenAddr != "127.0.0.1:9100" {
		t.Errorf("expected monitor addr '127.0.0.1:9100', got %s", config.Monitor.ListenAddr)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", config.Logging.Level)
	}
}

func TestLoadConfigPartialKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "partial.yaml")

	err := os.WriteFile(configPath, []byte("responder:\n  port: 9999\n"), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if config.Responder.ReplyCount != DefaultReplyCount {
		t.Errorf("expected default reply count, got %d", config.Responder.ReplyCount)
	}
	if config.Responder.ReplyInterval != DefaultReplyInterval {
		t.Errorf("expected default reply interval, got %v", config.Responder.ReplyInterval)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected default log level, got %s", config.Logging.Level)
	}
}

func TestLoadConfigFileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "invalid.yaml")

	err := os.WriteFile(configPath, []byte("not: valid: yaml: content"), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err = LoadConfig(configPath)
	if err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoadConfigInvalidDuration(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "duration.yaml")

	err := os.WriteFile(configPath, []byte("responder:\n  reply_interval: \"soon\"\n"), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err = LoadConfig(configPath)
	if err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestLoadConfigInvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")

	err := os.WriteFile(configPath, []byte("responder:\n  reply_count: -3\n"), 0644)
	if err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	_, err = LoadConfig(configPath)
	if err == nil {
		t.Error("expected error for negative reply count")
	}
}
