package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kleeedolinux/resocket/socket"
	"github.com/kleeedolinux/resocket/socket/transport"
)

// Config is the client configuration file.
type Config struct {
	BaseURL   string          `yaml:"base_url"`   // Page origin, http or https
	Endpoint  string          `yaml:"endpoint"`   // Socket path, e.g. /ws/team/4
	TokenFile string          `yaml:"token_file"` // Empty means the user config dir
	Redis     RedisConfig     `yaml:"redis"`      // Optional shared token store
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Transport TransportConfig `yaml:"transport"`
	SendRate  float64         `yaml:"send_rate"` // Outbound frames per second, 0 disables
	SendBurst int             `yaml:"send_burst"`
	LogLevel  string          `yaml:"log_level"`
}

type RedisConfig struct {
	Addr   string `yaml:"addr"`
	Prefix string `yaml:"prefix"`
}

type ReconnectConfig struct {
	BaseMS      int `yaml:"base_ms"`
	MaxMS       int `yaml:"max_ms"`
	MaxAttempts int `yaml:"max_attempts"`
}

// TransportConfig tunes each WebSocket connection. Zero read_timeout_ms
// disables the idle deadline and its keepalive pings.
type TransportConfig struct {
	DialTimeoutMS  int  `yaml:"dial_timeout_ms"`
	HandshakeMS    int  `yaml:"handshake_ms"`
	ReadTimeoutMS  int  `yaml:"read_timeout_ms"`
	PingIntervalMS int  `yaml:"ping_interval_ms"`
	Compression    bool `yaml:"compression"`
}

func Default() *Config {
	return &Config{
		BaseURL:  "http://localhost:8000",
		Endpoint: "/ws/display/1",
		Reconnect: ReconnectConfig{
			BaseMS:      int(socket.DefaultBaseDelay / time.Millisecond),
			MaxMS:       int(socket.DefaultMaxDelay / time.Millisecond),
			MaxAttempts: socket.DefaultMaxAttempts,
		},
		Transport: TransportConfig{
			DialTimeoutMS: 15000,
			HandshakeMS:   10000,
		},
		SendBurst: 1,
		LogLevel:  "info",
	}
}

// Load reads path on top of the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if _, err := socket.WebSocketURL(c.BaseURL, c.Endpoint, ""); err != nil {
		return fmt.Errorf("base_url/endpoint: %w", err)
	}
	if c.Reconnect.BaseMS <= 0 {
		return fmt.Errorf("reconnect base_ms must be positive, got %d", c.Reconnect.BaseMS)
	}
	if c.Reconnect.MaxMS < c.Reconnect.BaseMS {
		return fmt.Errorf("reconnect max_ms (%d) must be at least base_ms (%d)", c.Reconnect.MaxMS, c.Reconnect.BaseMS)
	}
	if c.Reconnect.MaxAttempts < 0 {
		return fmt.Errorf("reconnect max_attempts must not be negative, got %d", c.Reconnect.MaxAttempts)
	}
	t := c.Transport
	if t.DialTimeoutMS <= 0 || t.HandshakeMS <= 0 {
		return fmt.Errorf("transport dial_timeout_ms and handshake_ms must be positive, got %d and %d", t.DialTimeoutMS, t.HandshakeMS)
	}
	if t.ReadTimeoutMS < 0 || t.PingIntervalMS < 0 {
		return fmt.Errorf("transport read_timeout_ms and ping_interval_ms must not be negative")
	}
	if t.ReadTimeoutMS > 0 && t.PingIntervalMS >= t.ReadTimeoutMS {
		return fmt.Errorf("transport ping_interval_ms (%d) must be below read_timeout_ms (%d)", t.PingIntervalMS, t.ReadTimeoutMS)
	}
	if c.SendRate < 0 {
		return fmt.Errorf("send_rate must not be negative, got %f", c.SendRate)
	}
	if c.SendRate > 0 && c.SendBurst <= 0 {
		return fmt.Errorf("send_burst must be positive when send_rate is set, got %d", c.SendBurst)
	}
	return nil
}

func (c *Config) Backoff() socket.Backoff {
	return socket.Backoff{
		Base:        time.Duration(c.Reconnect.BaseMS) * time.Millisecond,
		Max:         time.Duration(c.Reconnect.MaxMS) * time.Millisecond,
		MaxAttempts: c.Reconnect.MaxAttempts,
	}
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// SocketOptions turns the reconnect and transport sections into client
// options.
func (c *Config) SocketOptions() []socket.ClientOption {
	t := c.Transport
	return []socket.ClientOption{
		socket.WithBackoff(c.Backoff()),
		socket.WithDialTimeout(ms(t.DialTimeoutMS)),
		socket.WithWebSocketOptions(
			transport.WithHandshakeTimeout(ms(t.HandshakeMS)),
			transport.WithReadTimeout(ms(t.ReadTimeoutMS)),
			transport.WithPingInterval(ms(t.PingIntervalMS)),
			transport.WithCompression(t.Compression),
		),
	}
}
