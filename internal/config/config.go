package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the full service configuration written to config.yml.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Paths   PathsConfig   `yaml:"paths"`
	Auth    AuthConfig    `yaml:"auth"`
	Install InstallConfig `yaml:"install"`
}

type ServiceConfig struct {
	BindAddress string `yaml:"bind_address"`
	Port        int    `yaml:"port"`
}

type PathsConfig struct {
	// DataDir holds the sqlite databases and the anonymous stats file.
	DataDir string `yaml:"data_dir"`
	// OutputDir is where rendered compose/unbound files are written before install.
	OutputDir string `yaml:"output_dir"`
	// FrontendDir, when set and present, is served as the wizard UI.
	FrontendDir string `yaml:"frontend_dir,omitempty"`
}

type AuthConfig struct {
	Mode         string `yaml:"mode"`
	PasswordHash string `yaml:"password_hash,omitempty"`
}

type InstallConfig struct {
	PiholeImage           string `yaml:"pihole_image"`
	UnboundImage          string `yaml:"unbound_image"`
	StepRetries           int    `yaml:"step_retries"`
	RetryDelaySeconds     int    `yaml:"retry_delay_seconds"`
	CommandTimeoutMinutes int    `yaml:"command_timeout_minutes"`
}

// Load reads and parses a config file from the given path. Missing optional
// fields are filled from defaults so older config files keep working.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required fields are present and values are in range.
func (c *Config) Validate() error {
	if c.Service.BindAddress == "" {
		return fmt.Errorf("service.bind_address is required")
	}
	if c.Service.Port < 1 || c.Service.Port > 65535 {
		return fmt.Errorf("service.port must be between 1 and 65535")
	}

	if c.Paths.DataDir == "" {
		return fmt.Errorf("paths.data_dir is required")
	}
	if c.Paths.OutputDir == "" {
		return fmt.Errorf("paths.output_dir is required")
	}

	switch c.Auth.Mode {
	case AuthModeNone, AuthModePassword:
		// ok
	default:
		return fmt.Errorf("auth.mode must be %q or %q", AuthModeNone, AuthModePassword)
	}
	if c.Auth.Mode == AuthModePassword && c.Auth.PasswordHash == "" {
		return fmt.Errorf("auth.password_hash is required when auth.mode is %q", AuthModePassword)
	}

	if c.Install.PiholeImage == "" {
		return fmt.Errorf("install.pihole_image is required")
	}
	if c.Install.UnboundImage == "" {
		return fmt.Errorf("install.unbound_image is required")
	}
	if c.Install.StepRetries < 0 {
		return fmt.Errorf("install.step_retries must be >= 0")
	}
	if c.Install.RetryDelaySeconds < 0 {
		return fmt.Errorf("install.retry_delay_seconds must be >= 0")
	}
	if c.Install.CommandTimeoutMinutes < 1 {
		return fmt.Errorf("install.command_timeout_minutes must be >= 1")
	}

	return nil
}

// Save writes the config to the given path, creating parent directories as needed.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0640); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
