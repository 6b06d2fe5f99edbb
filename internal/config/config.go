package config

import (
	"fmt"
	"os"
	"time"

	"github.com/pingpong/internal/transport"
	"gopkg.in/yaml.v3"
)

// Protocol defaults
const (
	DefaultProbePause    = 200 * time.Millisecond
	DefaultReplyCount    = 1800
	DefaultReplyInterval = 1 * time.Second
	DefaultAnnounceEvery = 1 * time.Second
)

// Config holds the configuration for all three roles
type Config struct {
	Prober    ProberConfig    `yaml:"prober"`
	Responder ResponderConfig `yaml:"responder"`
	Announcer AnnouncerConfig `yaml:"announcer"`
	Monitor   MonitorConfig   `yaml:"monitor"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ProberConfig holds settings for the ping role
type ProberConfig struct {
	Remote    string        `yaml:"remote"`
	LocalPort int           `yaml:"local_port"`
	Pause     time.Duration `yaml:"pause"`
	ReusePort bool          `yaml:"reuse_port"`
}

// ResponderConfig holds settings for the pong role
type ResponderConfig struct {
	Port             int           `yaml:"port"`
	ReplyCount       int           `yaml:"reply_count"`
	ReplyInterval    time.Duration `yaml:"reply_interval"`
	ConcurrentBursts bool          `yaml:"concurrent_bursts"`
	RateLimit        bool          `yaml:"rate_limit"`
}

// AnnouncerConfig holds settings for the dong role
type AnnouncerConfig struct {
	Remote    string        `yaml:"remote"`
	LocalPort int           `yaml:"local_port"`
	Interval  time.Duration `yaml:"interval"`
	ReusePort bool          `yaml:"reuse_port"`
}

// MonitorConfig holds the optional HTTP monitor settings
type MonitorConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Prober: ProberConfig{
			Pause: DefaultProbePause,
		},
		Responder: ResponderConfig{
			ReplyCount:    DefaultReplyCount,
			ReplyInterval: DefaultReplyInterval,
		},
		Announcer: AnnouncerConfig{
			Interval: DefaultAnnounceEvery,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config, err := Parse(data)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// Parse decodes YAML on top of the defaults without validating
func Parse(data []byte) (*Config, error) {
	config := DefaultConfig()

	// Durations are written as strings ("200ms", "1s")
	type rawConfig struct {
		Prober struct {
			Remote    string `yaml:"remote"`
			LocalPort int    `yaml:"local_port"`
			Pause     string `yaml:"pause"`
			ReusePort bool   `yaml:"reuse_port"`
		} `yaml:"prober"`
		Responder struct {
			Port             int    `yaml:"port"`
			ReplyCount       int    `yaml:"reply_count"`
			ReplyInterval    string `yaml:"reply_interval"`
			ConcurrentBursts bool   `yaml:"concurrent_bursts"`
			RateLimit        bool   `yaml:"rate_limit"`
		} `yaml:"responder"`
		Announcer struct {
			Remote    string `yaml:"remote"`
			LocalPort int    `yaml:"local_port"`
			Interval  string `yaml:"interval"`
			ReusePort bool   `yaml:"reuse_port"`
		} `yaml:"announcer"`
		Monitor MonitorConfig `yaml:"monitor"`
		Logging LoggingConfig `yaml:"logging"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.Prober.Remote = raw.Prober.Remote
	config.Prober.LocalPort = raw.Prober.LocalPort
	config.Prober.ReusePort = raw.Prober.ReusePort
	config.Responder.Port = raw.Responder.Port
	config.Responder.ConcurrentBursts = raw.Responder.ConcurrentBursts
	config.Responder.RateLimit = raw.Responder.RateLimit
	if raw.Responder.ReplyCount != 0 {
		config.Responder.ReplyCount = raw.Responder.ReplyCount
	}
	config.Announcer.Remote = raw.Announcer.Remote
	config.Announcer.LocalPort = raw.Announcer.LocalPort
	config.Announcer.ReusePort = raw.Announcer.ReusePort
	config.Monitor = raw.Monitor
	if raw.Logging.Level != "" {
		config.Logging = raw.Logging
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"prober.pause", raw.Prober.Pause, &config.Prober.Pause},
		{"responder.reply_interval", raw.Responder.ReplyInterval, &config.Responder.ReplyInterval},
		{"announcer.interval", raw.Announcer.Interval, &config.Announcer.Interval},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.name, err)
		}
		*d.dst = v
	}

	return config, nil
}

// Validate checks the settings shared by every role. Zero durations and
// counts fall back to the defaults.
func (c *Config) Validate() error {
	if err := validPort("prober.local_port", c.Prober.LocalPort); err != nil {
		return err
	}
	if err := validPort("responder.port", c.Responder.Port); err != nil {
		return err
	}
	if err := validPort("announcer.local_port", c.Announcer.LocalPort); err != nil {
		return err
	}
	if c.Prober.Pause < 0 {
		return fmt.Errorf("prober.pause cannot be negative")
	}
	if c.Prober.Pause == 0 {
		c.Prober.Pause = DefaultProbePause
	}
	if c.Responder.ReplyCount < 0 {
		return fmt.Errorf("responder.reply_count cannot be negative")
	}
	if c.Responder.ReplyCount == 0 {
		c.Responder.ReplyCount = DefaultReplyCount
	}
	if c.Responder.ReplyInterval < 0 {
		return fmt.Errorf("responder.reply_interval cannot be negative")
	}
	if c.Responder.ReplyInterval == 0 {
		c.Responder.ReplyInterval = DefaultReplyInterval
	}
	if c.Announcer.Interval < 0 {
		return fmt.Errorf("announcer.interval cannot be negative")
	}
	if c.Announcer.Interval == 0 {
		c.Announcer.Interval = DefaultAnnounceEvery
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	return nil
}

// ValidateProber checks the settings required to run the ping role
func (c *Config) ValidateProber() error {
	if c.Prober.Remote == "" {
		return fmt.Errorf("prober.remote is required")
	}
	if _, err := transport.Resolve(c.Prober.Remote); err != nil {
		return fmt.Errorf("prober.remote: %w", err)
	}
	return c.Validate()
}

// ValidateResponder checks the settings required to run the pong role
func (c *Config) ValidateResponder() error {
	if c.Responder.Port == 0 {
		return fmt.Errorf("responder.port is required")
	}
	return c.Validate()
}

// ValidateAnnouncer checks the settings required to run the dong role
func (c *Config) ValidateAnnouncer() error {
	if c.Announcer.Remote == "" {
		return fmt.Errorf("announcer.remote is required")
	}
	if _, err := transport.Resolve(c.Announcer.Remote); err != nil {
		return fmt.Errorf("announcer.remote: %w", err)
	}
	return c.Validate()
}

func validPort(name string, port int) error {
	if port < 0 || port > 65535 {
		return fmt.Errorf("%s %d out of range", name, port)
	}
	return nil
}
