package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the hitscript configuration
type Config struct {
	DefaultEnvironment string                       `json:"defaultEnvironment,omitempty" yaml:"defaultEnvironment,omitempty"`
	Timeout            int                          `json:"timeout,omitempty" yaml:"timeout,omitempty"` // milliseconds
	Retries            int                          `json:"retries,omitempty" yaml:"retries,omitempty"`
	RetryDelay         int                          `json:"retryDelay,omitempty" yaml:"retryDelay,omitempty"` // milliseconds
	FollowRedirects    *bool                        `json:"followRedirects,omitempty" yaml:"followRedirects,omitempty"`
	MaxRedirects       int                          `json:"maxRedirects,omitempty" yaml:"maxRedirects,omitempty"`
	ValidateSSL        *bool                        `json:"validateSSL,omitempty" yaml:"validateSSL,omitempty"`
	Proxy              string                       `json:"proxy,omitempty" yaml:"proxy,omitempty"`
	Headers            map[string]string            `json:"headers,omitempty" yaml:"headers,omitempty"` // Default headers for all requests
	Output             string                       `json:"output,omitempty" yaml:"output,omitempty"`   // console, json or junit
	Bail               *bool                        `json:"bail,omitempty" yaml:"bail,omitempty"`
	Verbose            *bool                        `json:"verbose,omitempty" yaml:"verbose,omitempty"`
	NoColor            *bool                        `json:"noColor,omitempty" yaml:"noColor,omitempty"`
	ScriptTimeout      int                          `json:"scriptTimeout,omitempty" yaml:"scriptTimeout,omitempty"` // milliseconds
	Engines            []string                     `json:"engines,omitempty" yaml:"engines,omitempty"`
	SendRequestRate    float64                      `json:"sendRequestRate,omitempty" yaml:"sendRequestRate,omitempty"` // requests per second, 0 = unlimited
	Log                LogConfig                    `json:"log,omitempty" yaml:"log,omitempty"`
	History            HistoryConfig                `json:"history,omitempty" yaml:"history,omitempty"`
	Environments       map[string]map[string]string `json:"environments,omitempty" yaml:"environments,omitempty"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level      string `json:"level,omitempty" yaml:"level,omitempty"`
	Format     string `json:"format,omitempty" yaml:"format,omitempty"` // json or console
	Output     string `json:"output,omitempty" yaml:"output,omitempty"` // stdout, stderr, file or both
	File       string `json:"file,omitempty" yaml:"file,omitempty"`
	MaxSize    int    `json:"maxSize,omitempty" yaml:"maxSize,omitempty"` // megabytes
	MaxBackups int    `json:"maxBackups,omitempty" yaml:"maxBackups,omitempty"`
	MaxAge     int    `json:"maxAge,omitempty" yaml:"maxAge,omitempty"` // days
}

// HistoryConfig controls the sqlite run history.
type HistoryConfig struct {
	Enabled       *bool  `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	File          string `json:"file,omitempty" yaml:"file,omitempty"`
	RetentionDays int    `json:"retentionDays,omitempty" yaml:"retentionDays,omitempty"`
}

// boolPtr returns a pointer to a bool value
func boolPtr(b bool) *bool {
	return &b
}

// BoolPtr is exported version of boolPtr for external use
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

func (c *Config) GetBail() bool {
	return getBool(c.Bail, false)
}

func (c *Config) GetVerbose() bool {
	return getBool(c.Verbose, false)
}

func (c *Config) GetNoColor() bool {
	return getBool(c.NoColor, false)
}

// GetHistoryEnabled returns whether runs are recorded, defaulting to false
func (c *Config) GetHistoryEnabled() bool {
	return getBool(c.History.Enabled, false)
}

// ConfigFilenames contains the possible config file names, in search order
var ConfigFilenames = []string{
	".hitscript.yaml",
	".hitscript.yml",
	"hitscript.config.yaml",
	"hitscript.config.json",
	".hitscript.json",
	".hitscriptrc",
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

	return DefaultConfig(), nil
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// loadConfigFromFile loads a JSON or YAML file on top of the defaults
func loadConfigFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	config := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
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
	if other.Timeout > 0 {
		result.Timeout = other.Timeout
	}
	if other.Retries > 0 {
		result.Retries = other.Retries
	}
	if other.RetryDelay > 0 {
		result.RetryDelay = other.RetryDelay
	}
	if other.MaxRedirects > 0 {
		result.MaxRedirects = other.MaxRedirects
	}
	if other.Proxy != "" {
		result.Proxy = other.Proxy
	}
	if other.Output != "" {
		result.Output = other.Output
	}
	if other.ScriptTimeout > 0 {
		result.ScriptTimeout = other.ScriptTimeout
	}
	if len(other.Engines) > 0 {
		result.Engines = other.Engines
	}
	if other.SendRequestRate > 0 {
		result.SendRequestRate = other.SendRequestRate
	}

	// Boolean flags - only override if explicitly set in other config
	if other.FollowRedirects != nil {
		result.FollowRedirects = other.FollowRedirects
	}
	if other.ValidateSSL != nil {
		result.ValidateSSL = other.ValidateSSL
	}
	if other.Bail != nil {
		result.Bail = other.Bail
	}
	if other.Verbose != nil {
		result.Verbose = other.Verbose
	}
	if other.NoColor != nil {
		result.NoColor = other.NoColor
	}

	result.Log = mergeLog(result.Log, other.Log)
	result.History = mergeHistory(result.History, other.History)

	if len(other.Headers) > 0 {
		merged := make(map[string]string, len(result.Headers)+len(other.Headers))
		for k, v := range result.Headers {
			merged[k] = v
		}
		for k, v := range other.Headers {
			merged[k] = v
		}
		result.Headers = merged
	}

	if len(other.Environments) > 0 {
		merged := make(map[string]map[string]string, len(result.Environments)+len(other.Environments))
		for name, vars := range result.Environments {
			merged[name] = vars
		}
		for name, vars := range other.Environments {
			merged[name] = vars
		}
		result.Environments = merged
	}

	return &result
}

func mergeLog(base, other LogConfig) LogConfig {
	if other.Level != "" {
		base.Level = other.Level
	}
	if other.Format != "" {
		base.Format = other.Format
	}
	if other.Output != "" {
		base.Output = other.Output
	}
	if other.File != "" {
		base.File = other.File
	}
	if other.MaxSize > 0 {
		base.MaxSize = other.MaxSize
	}
	if other.MaxBackups > 0 {
		base.MaxBackups = other.MaxBackups
	}
	if other.MaxAge > 0 {
		base.MaxAge = other.MaxAge
	}
	return base
}

func mergeHistory(base, other HistoryConfig) HistoryConfig {
	if other.Enabled != nil {
		base.Enabled = other.Enabled
	}
	if other.File != "" {
		base.File = other.File
	}
	if other.RetentionDays > 0 {
		base.RetentionDays = other.RetentionDays
	}
	return base
}

// SaveConfig saves the configuration as YAML or JSON depending on the extension
func (c *Config) SaveConfig(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	return os.WriteFile(path, data, 0644)
}
