package session

import (
	"github.com/talk2silicon/talk2browser/session/internal/config"
)

// Config is the top-level session configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls the Chrome connection.
type BrowserConfig = config.BrowserConfig

// SecretConfig binds one placeholder to its value and domains.
type SecretConfig = config.SecretConfig

// OutputConfig controls end-of-session artifacts.
type OutputConfig = config.OutputConfig

// ControlConfig is the local HTTP control surface.
type ControlConfig = config.ControlConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// FromConfig builds a session from a loaded configuration: allowlist, task,
// and secret bindings, with env:NAME values expanded.
func FromConfig(cfg *Config, opts Options) (*Session, error) {
	opts.Task = cfg.Task
	opts.Allowlist = cfg.Allowlist
	s := New(opts)
	for _, sec := range cfg.Secrets {
		value, err := sec.ResolveValue()
		if err != nil {
			return nil, err
		}
		if err := s.Vault.Register(sec.Name, value, sec.Domains); err != nil {
			return nil, err
		}
	}
	return s, nil
}
