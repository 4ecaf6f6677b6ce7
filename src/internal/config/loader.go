// Package config provides configuration loading and validation for the sendfile CLI tool.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/gjson"
)

// DefaultProfile is the name that selects Config.Default.
const DefaultProfile = "default"

// Loader handles loading and parsing configuration files from multiple formats.
type Loader struct {
	searchPaths []string
}

// NewLoader creates a new configuration loader with default search paths.
func NewLoader() *Loader {
	paths := []string{"."}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "sendfile"))
	}

	return &Loader{searchPaths: paths}
}

// NewLoaderWithPaths creates a loader that only searches the given directories.
func NewLoaderWithPaths(paths ...string) *Loader {
	return &Loader{searchPaths: paths}
}

// Load loads configuration from the specified path or searches for default config files.
func (l *Loader) Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = l.FindDefaultConfig()
	}

	if configPath == "" {
		return DefaultConfig(), nil
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	ext := strings.ToLower(filepath.Ext(configPath))

	config, err := l.parseByExtension(content, ext)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := l.resolveExtends(config); err != nil {
		return nil, fmt.Errorf("failed to resolve profile inheritance: %w", err)
	}

	if err := l.validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// FindDefaultConfig returns the first config file found on the search paths,
// or "" when there is none.
func (l *Loader) FindDefaultConfig() string {
	candidates := []string{
		"sendfile.jsonc",
		"sendfile.json",
		"sendfile.toml",
		".sendfile.jsonc",
		".sendfile.json",
		".sendfile.toml",
	}

	for _, searchPath := range l.searchPaths {
		for _, candidate := range candidates {
			fullPath := filepath.Join(searchPath, candidate)
			if _, err := os.Stat(fullPath); err == nil {
				return fullPath
			}
		}
	}

	return ""
}

// Profile returns the named profile, or the default one for "" and "default".
func (c *Config) Profile(name string) (*Profile, error) {
	if name == "" || name == DefaultProfile {
		if c.Default != nil {
			return c.Default, nil
		}

		if p, ok := c.Profiles[DefaultProfile]; ok {
			return p, nil
		}

		return nil, fmt.Errorf("config has no default profile")
	}

	p, ok := c.Profiles[name]
	if !ok {
		return nil, fmt.Errorf("profile %s not found", name)
	}

	return p, nil
}

func (l *Loader) parseByExtension(content []byte, ext string) (*Config, error) {
	var config Config

	switch ext {
	case ".json", ".jsonc":
		cleaned := stripJSONComments(content)
		if !gjson.ValidBytes(cleaned) {
			return nil, fmt.Errorf("invalid JSON: malformed document")
		}

		if err := json.Unmarshal(cleaned, &config); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(content, &config); err != nil {
			return nil, fmt.Errorf("invalid TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}

	return &config, nil
}

// stripJSONComments removes // and /* */ comments and trailing commas outside
// string literals.
func stripJSONComments(content []byte) []byte {
	out := make([]byte, 0, len(content))

	inString := false

	for i := 0; i < len(content); i++ {
		c := content[i]

		if inString {
			out = append(out, c)

			switch c {
			case '\\':
				if i+1 < len(content) {
					i++
					out = append(out, content[i])
				}
			case '"':
				inString = false
			}

			continue
		}

		switch {
		case c == '"':
			inString = true

			out = append(out, c)
		case c == '/' && i+1 < len(content) && content[i+1] == '/':
			for i < len(content) && content[i] != '\n' {
				i++
			}

			if i < len(content) {
				out = append(out, '\n')
			}
		case c == '/' && i+1 < len(content) && content[i+1] == '*':
			i += 2
			for i+1 < len(content) && !(content[i] == '*' && content[i+1] == '/') {
				i++
			}

			i++
		case c == ',':
			if next := nextSignificant(content, i+1); next == '}' || next == ']' {
				continue
			}

			out = append(out, c)
		default:
			out = append(out, c)
		}
	}

	return out
}

func nextSignificant(content []byte, from int) byte {
	for i := from; i < len(content); i++ {
		switch content[i] {
		case ' ', '\t', '\r', '\n':
			continue
		case '/':
			if i+1 < len(content) && content[i+1] == '/' {
				for i < len(content) && content[i] != '\n' {
					i++
				}

				continue
			}

			if i+1 < len(content) && content[i+1] == '*' {
				i += 2
				for i+1 < len(content) && !(content[i] == '*' && content[i+1] == '/') {
					i++
				}

				i++

				continue
			}

			return content[i]
		default:
			return content[i]
		}
	}

	return 0
}

func (l *Loader) validateConfig(config *Config) error {
	if config.Version == "" {
		config.Version = "1.0"
	}

	if config.Default == nil && len(config.Profiles) == 0 {
		return fmt.Errorf("config must have either a default profile or named profiles")
	}

	if config.Default != nil {
		if err := ValidateProfile(config.Default); err != nil {
			return fmt.Errorf("invalid default profile: %w", err)
		}
	}

	for name, profile := range config.Profiles {
		if err := ValidateProfile(profile); err != nil {
			return fmt.Errorf("invalid profile %s: %w", name, err)
		}
	}

	return nil
}

// ValidateProfile fills defaults into profile and rejects invalid values.
func ValidateProfile(profile *Profile) error {
	if profile.Network == "" {
		profile.Network = string(NetworkTCP)
	}

	validNetworks := []string{string(NetworkTCP), string(NetworkTCP4), string(NetworkTCP6), string(NetworkUnix)}
	if !slices.Contains(validNetworks, profile.Network) {
		return fmt.Errorf("invalid network %s, must be one of: %v", profile.Network, validNetworks)
	}

	if profile.Offset < 0 {
		return fmt.Errorf("offset must be non-negative, got %d", profile.Offset)
	}

	if profile.Count < 0 {
		return fmt.Errorf("count must be non-negative, got %d", profile.Count)
	}

	if profile.ChunkSize == "" {
		profile.ChunkSize = "auto"
	}

	if _, err := ParseSize(profile.ChunkSize); err != nil {
		return fmt.Errorf("invalid chunkSize: %w", err)
	}

	if profile.Verify == "" {
		profile.Verify = string(ChecksumNone)
	}

	validAlgos := []string{string(ChecksumNone), string(ChecksumBlake3), string(ChecksumSHA256)}
	if !slices.Contains(validAlgos, profile.Verify) {
		return fmt.Errorf("invalid verify algorithm %s, must be one of: %v", profile.Verify, validAlgos)
	}

	if profile.Retry == nil {
		profile.Retry = &RetryConfig{}
	}

	if err := validateRetryConfig(profile.Retry); err != nil {
		return fmt.Errorf("invalid retry config: %w", err)
	}

	if profile.Server == nil {
		profile.Server = &ServerConfig{}
	}

	if err := validateServerConfig(profile.Server); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if profile.Log == nil {
		profile.Log = &LogConfig{}
	}

	if err := validateLogConfig(profile.Log); err != nil {
		return fmt.Errorf("invalid log config: %w", err)
	}

	return nil
}

func validateRetryConfig(config *RetryConfig) error {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}

	if config.InitialDelay <= 0 {
		config.InitialDelay = Duration(100 * time.Millisecond)
	}

	if config.MaxDelay <= 0 {
		config.MaxDelay = Duration(10 * time.Second)
	}

	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}

	if config.Backoff == "" {
		config.Backoff = string(BackoffExponential)
	}

	validBackoffs := []string{string(BackoffFixed), string(BackoffLinear), string(BackoffExponential)}
	if !slices.Contains(validBackoffs, config.Backoff) {
		return fmt.Errorf("invalid backoff %s, must be one of: %v", config.Backoff, validBackoffs)
	}

	return nil
}

func validateServerConfig(config *ServerConfig) error {
	if config.Listen == "" {
		config.Listen = "127.0.0.1:9009"
	}

	if config.MaxConns < 0 {
		return fmt.Errorf("maxConns must be non-negative, got %d", config.MaxConns)
	}

	if config.MaxConns == 0 {
		config.MaxConns = 64
	}

	if config.Debounce <= 0 {
		config.Debounce = Duration(100 * time.Millisecond)
	}

	if config.WriteTimeout < 0 {
		return fmt.Errorf("writeTimeout must be non-negative, got %s", config.WriteTimeout)
	}

	return nil
}

func validateLogConfig(config *LogConfig) error {
	if config.Level == "" {
		config.Level = "info"
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, config.Level) {
		return fmt.Errorf("invalid log level %s, must be one of: %v", config.Level, validLevels)
	}

	if config.Format == "" {
		config.Format = string(LogConsole)
	}

	validFormats := []string{string(LogConsole), string(LogJSON)}
	if !slices.Contains(validFormats, config.Format) {
		return fmt.Errorf("invalid log format %s, must be one of: %v", config.Format, validFormats)
	}

	return nil
}

func (l *Loader) resolveExtends(config *Config) error {
	for name, profile := range config.Profiles {
		if err := l.applyExtends(name, profile, config, map[string]bool{}); err != nil {
			return fmt.Errorf("failed to resolve extends for profile %s: %w", name, err)
		}
	}

	return nil
}

func (l *Loader) applyExtends(name string, profile *Profile, config *Config, seen map[string]bool) error {
	if profile.Extends == "" {
		return nil
	}

	if seen[name] {
		return fmt.Errorf("inheritance cycle through %s", name)
	}

	seen[name] = true

	parent := profile.Extends

	var base *Profile

	if parent == DefaultProfile && config.Default != nil {
		base = config.Default
	} else if p, exists := config.Profiles[parent]; exists {
		if err := l.applyExtends(parent, p, config, seen); err != nil {
			return err
		}

		base = p
	} else {
		return fmt.Errorf("extended profile %s not found", parent)
	}

	mergeProfiles(profile, base)
	profile.Extends = ""

	return nil
}

func mergeProfiles(target, base *Profile) {
	if target.Network == "" {
		target.Network = base.Network
	}

	if target.Address == "" {
		target.Address = base.Address
	}

	if target.Offset == 0 {
		target.Offset = base.Offset
	}

	if target.Count == 0 {
		target.Count = base.Count
	}

	if !target.Nonblock {
		target.Nonblock = base.Nonblock
	}

	if target.ChunkSize == "" {
		target.ChunkSize = base.ChunkSize
	}

	if target.Verify == "" {
		target.Verify = base.Verify
	}

	if target.Retry == nil && base.Retry != nil {
		retry := *base.Retry
		target.Retry = &retry
	}

	if target.Server == nil && base.Server != nil {
		server := *base.Server
		target.Server = &server
	}

	if target.Log == nil && base.Log != nil {
		log := *base.Log
		target.Log = &log
	}
}

// DefaultConfig returns the configuration used when no file is found.
func DefaultConfig() *Config {
	return &Config{
		Version: "1.0",
		Default: &Profile{
			Network:   string(NetworkTCP),
			ChunkSize: "auto",
			Verify:    string(ChecksumNone),
			Retry: &RetryConfig{
				MaxAttempts:  3,
				InitialDelay: Duration(100 * time.Millisecond),
				MaxDelay:     Duration(10 * time.Second),
				Multiplier:   2.0,
				Backoff:      string(BackoffExponential),
			},
			Server: &ServerConfig{
				Listen:   "127.0.0.1:9009",
				MaxConns: 64,
				Debounce: Duration(100 * time.Millisecond),
			},
			Log: &LogConfig{
				Level:  "info",
				Format: string(LogConsole),
			},
		},
	}
}
