package config

import (
	"fmt"
	"time"
)

// Config represents the main configuration structure for sendfile.
type Config struct {
	Version  string              `json:"version" toml:"version"`
	Default  *Profile            `json:"default,omitempty" toml:"default,omitempty"`
	Profiles map[string]*Profile `json:"profiles,omitempty" toml:"profiles,omitempty"`
}

// Profile defines how a transfer is dialed, sized and checked.
type Profile struct {
	Network   string        `json:"network" toml:"network"`
	Address   string        `json:"address,omitempty" toml:"address,omitempty"`
	Offset    int64         `json:"offset,omitempty" toml:"offset,omitempty"`
	Count     int64         `json:"count,omitempty" toml:"count,omitempty"`
	Nonblock  bool          `json:"nonblock" toml:"nonblock"`
	ChunkSize string        `json:"chunkSize,omitempty" toml:"chunkSize,omitempty"`
	Verify    string        `json:"verify,omitempty" toml:"verify,omitempty"`
	Retry     *RetryConfig  `json:"retry,omitempty" toml:"retry,omitempty"`
	Server    *ServerConfig `json:"server,omitempty" toml:"server,omitempty"`
	Log       *LogConfig    `json:"log,omitempty" toml:"log,omitempty"`
	Extends   string        `json:"extends,omitempty" toml:"extends,omitempty"`
}

// RetryConfig defines retry behavior for failed dials.
type RetryConfig struct {
	MaxAttempts  int      `json:"maxAttempts" toml:"maxAttempts"`
	InitialDelay Duration `json:"initialDelay" toml:"initialDelay"`
	MaxDelay     Duration `json:"maxDelay" toml:"maxDelay"`
	Multiplier   float64  `json:"multiplier" toml:"multiplier"`
	Backoff      string   `json:"backoff" toml:"backoff"`
}

// ServerConfig defines the file server and receiver settings.
type ServerConfig struct {
	Listen       string   `json:"listen" toml:"listen"`
	Root         string   `json:"root,omitempty" toml:"root,omitempty"`
	MaxConns     int      `json:"maxConns" toml:"maxConns"`
	Watch        bool     `json:"watch" toml:"watch"`
	Debounce     Duration `json:"debounce" toml:"debounce"`
	WriteTimeout Duration `json:"writeTimeout" toml:"writeTimeout"`
}

// LogConfig selects the log level and encoder.
type LogConfig struct {
	Level  string `json:"level" toml:"level"`
	Format string `json:"format" toml:"format"`
}

// Duration is a time.Duration written as a Go duration string ("250ms").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}

	*d = Duration(v)

	return nil
}

// Network names a dialable transport
type Network string

// Transports sendfile(2) can write to
const (
	NetworkTCP  Network = "tcp"
	NetworkTCP4 Network = "tcp4"
	NetworkTCP6 Network = "tcp6"
	NetworkUnix Network = "unix"
)

// BackoffStrategy represents different retry backoff strategies
type BackoffStrategy string

// Retry backoff strategies
const (
	BackoffLinear      BackoffStrategy = "linear"
	BackoffExponential BackoffStrategy = "exponential"
	BackoffFixed       BackoffStrategy = "fixed"
)

// ChecksumAlgo names a digest used to verify transferred bytes
type ChecksumAlgo string

// Supported digests
const (
	ChecksumNone   ChecksumAlgo = "none"
	ChecksumBlake3 ChecksumAlgo = "blake3"
	ChecksumSHA256 ChecksumAlgo = "sha256"
)

// LogFormat selects the zap encoder
type LogFormat string

// Log encoders
const (
	LogConsole LogFormat = "console"
	LogJSON    LogFormat = "json"
)
