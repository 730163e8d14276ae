package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/ssargent/fieldwire/pkg/codec"
)

// Config represents the FieldWire configuration
type Config struct {
	DataDir  string   `yaml:"data_dir"`
	LogFile  string   `yaml:"log_file"`
	Port     int      `yaml:"port"`
	Bind     string   `yaml:"bind"`
	Codec    Codec    `yaml:"codec"`
	Security Security `yaml:"security"`
	Logging  Logging  `yaml:"logging"`
}

// Codec controls how untrusted records are decoded
type Codec struct {
	MaxDepth     int    `yaml:"max_depth"`
	NestedPolicy string `yaml:"nested_policy"`
}

// Security contains security-related configuration
type Security struct {
	APIKey string `yaml:"api_key"`
}

// Logging contains logging configuration
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		DataDir: "./data",
		LogFile: "fields.log",
		Port:    8080,
		Bind:    "127.0.0.1",
		Codec: Codec{
			MaxDepth:     codec.DefaultMaxDepth,
			NestedPolicy: codec.NestedStrict.String(),
		},
		Security: Security{
			APIKey: "auto",
		},
		Logging: Logging{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate reports the first invalid setting
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Newf("port %d out of range", c.Port)
	}
	if c.Codec.MaxDepth < 0 {
		return errors.Newf("codec.max_depth must not be negative, got %d", c.Codec.MaxDepth)
	}
	if _, err := codec.ParseNestedPolicy(c.Codec.NestedPolicy); err != nil {
		return err
	}
	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return errors.Newf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}

// DecoderOptions maps the codec section onto decoder options. Invalid
// policies fall back to strict; call Validate first to reject them.
func (c *Config) DecoderOptions() []codec.DecoderOption {
	policy, err := codec.ParseNestedPolicy(c.Codec.NestedPolicy)
	if err != nil {
		policy = codec.NestedStrict
	}
	depth := c.Codec.MaxDepth
	if depth == 0 {
		depth = codec.DefaultMaxDepth
	}
	return []codec.DecoderOption{
		codec.WithMaxDepth(depth),
		codec.WithNestedPolicy(policy),
	}
}

// LogPath resolves LogFile against DataDir
func (c *Config) LogPath() string {
	if filepath.IsAbs(c.LogFile) {
		return c.LogFile
	}
	return filepath.Join(c.DataDir, c.LogFile)
}

// LoadConfig loads configuration from the specified path. Missing keys keep
// their default values.
func LoadConfig(configPath string) (*Config, error) {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	if !filepath.IsAbs(configPath) {
		absPath, err := filepath.Abs(configPath)
		if err != nil {
			return nil, fmt.Errorf("invalid config path: %w", err)
		}
		configPath = absPath
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveConfig saves the configuration to the specified path with secure permissions
func SaveConfig(config *Config, configPath string) error {
	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 0600: the file carries the API key
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// GenerateSecureKey generates a cryptographically secure random key
func GenerateSecureKey(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate secure key: %w", err)
	}
	return hex.EncodeToString(bytes), nil
}

// BootstrapConfig writes a default configuration with a generated API key
func BootstrapConfig(configPath string, dataDir string) (*Config, error) {
	config := DefaultConfig()
	if dataDir != "" {
		config.DataDir = dataDir
	}

	apiKey, err := GenerateSecureKey(32)
	if err != nil {
		return nil, fmt.Errorf("failed to generate API key: %w", err)
	}
	config.Security.APIKey = apiKey

	if err := SaveConfig(config, configPath); err != nil {
		return nil, fmt.Errorf("failed to save bootstrap config: %w", err)
	}

	return config, nil
}

// GetDefaultConfigPath returns the default configuration path for the current platform
func GetDefaultConfigPath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "./fieldwire.yaml"
	}

	// ~/.config/fieldwire/config.yaml
	return filepath.Join(homeDir, ".config", "fieldwire", "config.yaml")
}

// ConfigExists checks if a configuration file exists
func ConfigExists(configPath string) bool {
	_, err := os.Stat(configPath)
	return !os.IsNotExist(err)
}
