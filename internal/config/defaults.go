package config

import "path/filepath"

// Default locations for the wizard service. The setup command writes the
// config file; serve falls back to built-in defaults when it is absent so
// the wizard works out of the box on a fresh Pi.
const (
	DefaultConfigPath = "/etc/pihole-wizard/config.yml"
	DefaultDataDir    = "/var/lib/pihole-wizard"

	DefaultBindAddress = "0.0.0.0"
	DefaultPort        = 8080
)

// Auth modes.
const (
	AuthModeNone     = "none"
	AuthModePassword = "password"
)

// Container images driven by the install pipeline.
const (
	DefaultPiholeImage  = "pihole/pihole:latest"
	DefaultUnboundImage = "mvance/unbound:latest"
)

// Pipeline tuning defaults.
const (
	DefaultStepRetries           = 2
	DefaultRetryDelaySeconds     = 3
	DefaultCommandTimeoutMinutes = 10
)

// Default returns a ready-to-use configuration for hosts without a config file.
func Default() *Config {
	return &Config{
		Service: ServiceConfig{
			BindAddress: DefaultBindAddress,
			Port:        DefaultPort,
		},
		Paths: PathsConfig{
			DataDir:   DefaultDataDir,
			OutputDir: filepath.Join(DefaultDataDir, "output"),
		},
		Auth: AuthConfig{
			Mode: AuthModeNone,
		},
		Install: InstallConfig{
			PiholeImage:           DefaultPiholeImage,
			UnboundImage:          DefaultUnboundImage,
			StepRetries:           DefaultStepRetries,
			RetryDelaySeconds:     DefaultRetryDelaySeconds,
			CommandTimeoutMinutes: DefaultCommandTimeoutMinutes,
		},
	}
}
