package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	courier "github.com/abdul-hamid-achik/courier/packages/http"
)

// Config represents a courier profile: client defaults plus CLI settings.
// JSON files are read through the YAML decoder, which accepts them as-is.
type Config struct {
	DefaultEnvironment string            `yaml:"defaultEnvironment,omitempty" json:"defaultEnvironment,omitempty"`
	BaseURL            string            `yaml:"baseURL,omitempty" json:"baseURL,omitempty"`
	Timeout            int               `yaml:"timeout,omitempty" json:"timeout,omitempty"` // milliseconds
	FollowRedirects    *bool             `yaml:"followRedirects,omitempty" json:"followRedirects,omitempty"`
	MaxRedirects       int               `yaml:"maxRedirects,omitempty" json:"maxRedirects,omitempty"`
	ValidateSSL        *bool             `yaml:"validateSSL,omitempty" json:"validateSSL,omitempty"`
	Decompress         *bool             `yaml:"decompress,omitempty" json:"decompress,omitempty"`
	Proxy              string            `yaml:"proxy,omitempty" json:"proxy,omitempty"`
	SocketPath         string            `yaml:"socketPath,omitempty" json:"socketPath,omitempty"`
	Headers            map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"` // Default headers for all requests
	Params             map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
	ResponseType       string            `yaml:"responseType,omitempty" json:"responseType,omitempty"`
	ResponseEncoding   string            `yaml:"responseEncoding,omitempty" json:"responseEncoding,omitempty"`
	MaxContentLength   int64             `yaml:"maxContentLength,omitempty" json:"maxContentLength,omitempty"`
	Transitional       map[string]any    `yaml:"transitional,omitempty" json:"transitional,omitempty"`
	HistoryPath        string            `yaml:"history,omitempty" json:"history,omitempty"`
	Verbose            *bool             `yaml:"verbose,omitempty" json:"verbose,omitempty"`
	NoColor            *bool             `yaml:"noColor,omitempty" json:"noColor,omitempty"`

	// Environments hold {{var}} values keyed by environment name.
	Environments map[string]map[string]any `yaml:"environments,omitempty" json:"environments,omitempty"`
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}

// getBool returns the value of a bool pointer, or the default if nil
func getBool(b *bool, defaultVal bool) bool {
	if b == nil {
		return defaultVal
	}
	return *b
}

// GetFollowRedirects returns the follow redirects setting, defaulting to true
func (c *Config) GetFollowRedirects() bool {
	return getBool(c.FollowRedirects, true)
}

// GetValidateSSL returns the validate SSL setting, defaulting to true
func (c *Config) GetValidateSSL() bool {
	return getBool(c.ValidateSSL, true)
}

// GetDecompress returns the decompress setting, defaulting to true
func (c *Config) GetDecompress() bool {
	return getBool(c.Decompress, true)
}

// GetVerbose returns the verbose setting, defaulting to false
func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

// GetNoColor returns the no color setting, defaulting to false
func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".courier.yaml",
	"courier.yaml",
	".courier.json",
	".courierrc",
}

// LoadConfig loads configuration from the specified path or searches for config files
func LoadConfig(path string) (*Config, error) {
	if path != "" {
		return loadConfigFromFile(path)
	}

	return FindAndLoadConfig(".")
}

// FindAndLoadConfig searches for a config file in the given directory
func FindAndLoadConfig(dir string) (*Config, error) {
	for _, filename := range ConfigFilenames {
		configPath := filepath.Join(dir, filename)
		if _, err := os.Stat(configPath); err == nil {
			return loadConfigFromFile(configPath)
		}
	}

	// Return defaults if no config file found
	return DefaultConfig(), nil
}

func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return config, nil
}

// Merge merges another config into this one, with other taking precedence
func (c *Config) Merge(other *Config) *Config {
	if other == nil {
		return c
	}

	result := *c

	if other.DefaultEnvironment != "" {
		result.DefaultEnvironment = other.DefaultEnvironment
	}
	if other.BaseURL != "" {
		result.BaseURL = other.BaseURL
	}
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.SocketPath != "" {
		result.SocketPath = other.SocketPath
	}
	if other.ResponseType != "" {
		result.ResponseType = other.ResponseType
	}
	if other.ResponseEncoding != "" {
		result.ResponseEncoding = other.ResponseEncoding
	}
	if other.MaxContentLength != 0 {
		result.MaxContentLength = other.MaxContentLength
	}
	if other.HistoryPath != "" {
		result.HistoryPath = other.HistoryPath
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Decompress != nil {
		result.Decompress = other.Decompress
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	if len(other.Environments) > 0 {
		envs := make(map[string]map[string]any, len(c.Environments)+len(other.Environments))
		for name, vars := range c.Environments {
			envs[name] = vars
		}
		for name, vars := range other.Environments {
			envs[name] = vars
		}
		result.Environments = envs
	}

	result.Headers = mergeStrings(c.Headers, other.Headers)
	result.Params = mergeStrings(c.Params, other.Params)
	if len(other.Transitional) > 0 {
		merged := make(map[string]any, len(c.Transitional)+len(other.Transitional))
		for k, v := range c.Transitional {
			merged[k] = v
		}
		for k, v := range other.Transitional {
			merged[k] = v
		}
		result.Transitional = merged
	}

	return &result
}

func mergeStrings(base, other map[string]string) map[string]string {
	if len(other) == 0 {
		return base
	}
	out := make(map[string]string, len(base)+len(other))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// ToRequestConfig converts the profile into client defaults.
func (c *Config) ToRequestConfig() (*courier.Config, error) {
	cfg := &courier.Config{
		BaseURL:          c.BaseURL,
		SocketPath:       c.SocketPath,
		ResponseType:     courier.ResponseType(strings.ToLower(c.ResponseType)),
		ResponseEncoding: c.ResponseEncoding,
		ValidateSSL:      courier.Bool(c.GetValidateSSL()),
		Decompress:       courier.Bool(c.GetDecompress()),
	}

	if c.Timeout > 0 {
		cfg.Timeout = courier.Duration(time.Duration(c.Timeout) * time.Millisecond)
	}
	switch {
	case !c.GetFollowRedirects():
		cfg.MaxRedirects = courier.Ptr(0)
	case c.MaxRedirects > 0:
		cfg.MaxRedirects = courier.Ptr(c.MaxRedirects)
	}
	if c.MaxContentLength != 0 {
		cfg.MaxContentLength = courier.Ptr(c.MaxContentLength)
	}
	if c.Proxy != "" {
		p, err := courier.ParseProxy(c.Proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy %q: %w", c.Proxy, err)
		}
		cfg.Proxy = p
	}
	if len(c.Headers) > 0 {
		cfg.MethodHeaders = courier.MethodHeaders{courier.HeaderCommon: courier.Header(c.Headers).Clone()}
	}
	if len(c.Params) > 0 {
		cfg.Params = courier.Params{}
		for k, v := range c.Params {
			cfg.Params[k] = v
		}
	}
	if len(c.Transitional) > 0 {
		cfg.Transitional = courier.Transitional{}
		for k, v := range c.Transitional {
			cfg.Transitional[k] = v
		}
	}

	return cfg, nil
}

// SaveConfig saves the configuration as YAML
func (c *Config) SaveConfig(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}
