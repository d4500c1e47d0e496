// Package config handles talk2browser configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level session configuration.
type Config struct {
	Task      string         `yaml:"task"`
	Browser   BrowserConfig  `yaml:"browser"`
	Allowlist []string       `yaml:"allowlist"`
	Secrets   []SecretConfig `yaml:"secrets"`
	Output    OutputConfig   `yaml:"output"`
	Control   ControlConfig  `yaml:"control"`
	Archive   string         `yaml:"archive"` // sqlite path, empty = no archive
}

// BrowserConfig controls the Chrome connection.
type BrowserConfig struct {
	Remote        string        `yaml:"remote"` // ws url, empty = launch locally
	Headless      bool          `yaml:"headless"`
	Stealth       bool          `yaml:"stealth"`
	ActionTimeout time.Duration `yaml:"action_timeout"`
}

// SecretConfig binds one placeholder to its value and domains. Value may
// name an environment variable via env:NAME so credentials stay out of the
// config file.
type SecretConfig struct {
	Name    string   `yaml:"name"`
	Value   string   `yaml:"value"`
	Domains []string `yaml:"domains"`
}

// OutputConfig controls end-of-session artifacts.
type OutputConfig struct {
	Dir      string   `yaml:"dir"`
	Dialects []string `yaml:"dialects"`
}

// ControlConfig is the local HTTP control surface.
type ControlConfig struct {
	Addr string `yaml:"addr"` // empty = control surface disabled
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Browser.ActionTimeout <= 0 {
		c.Browser.ActionTimeout = 15 * time.Second
	}
	if c.Output.Dir == "" {
		c.Output.Dir = "generated"
	}
	if len(c.Output.Dialects) == 0 {
		c.Output.Dialects = []string{"playwright-python"}
	}
}

func (c *Config) validate() error {
	for i, sec := range c.Secrets {
		if sec.Name == "" {
			return fmt.Errorf("config: secrets[%d]: missing name", i)
		}
		if len(sec.Domains) == 0 {
			return fmt.Errorf("config: secret %s: at least one domain required", sec.Name)
		}
	}
	return nil
}

// ResolveValue expands an env:NAME secret value from the environment.
func (s SecretConfig) ResolveValue() (string, error) {
	const envPrefix = "env:"
	if len(s.Value) > len(envPrefix) && s.Value[:len(envPrefix)] == envPrefix {
		name := s.Value[len(envPrefix):]
		v, ok := os.LookupEnv(name)
		if !ok {
			return "", fmt.Errorf("config: secret %s: environment variable %s not set", s.Name, name)
		}
		return v, nil
	}
	return s.Value, nil
}
