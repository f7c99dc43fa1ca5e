package app

import (
	"io"

	"hostconfd/internal/config"
)

// Config holds the runtime options of one hostconfd invocation.
type Config struct {
	// Debug forces debug logging regardless of the configured level.
	Debug bool

	// Interactive logs as text to Output instead of the configured format.
	// Set by one-shot commands run from a terminal.
	Interactive bool

	// ConfigPath is the YAML file to load. Empty means config.DefaultConfigPath.
	ConfigPath string

	// Output receives log lines when journald is not used. Defaults to os.Stderr.
	Output io.Writer

	// Hostconfd is the loaded configuration. When set before NewApplication
	// the file at ConfigPath is not read.
	Hostconfd *config.Config
}

// NewConfig creates a new application configuration
func NewConfig(debug bool, configPath string) *Config {
	return &Config{
		Debug:      debug,
		ConfigPath: configPath,
	}
}
