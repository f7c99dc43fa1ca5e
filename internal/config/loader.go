package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"hostconfd/pkg/logging"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads the configuration file at path on top of DefaultConfig.
// A missing file is not an error: the defaults are returned as-is.
// The result is validated before it is returned.
func LoadConfig(path string) (Config, error) {
	if path == "" {
		path = DefaultConfigPath
	}
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Info("ConfigLoader", "No config found at %s, using defaults", path)
			return config, config.Validate(path)
		}
		return Config{}, NewConfigurationError(path, filepath.Base(path), "io", err.Error())
	}

	if err := yaml.Unmarshal(data, &config); err != nil {
		cfgErr := NewConfigurationError(path, filepath.Base(path), "parse", err.Error())
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			cfgErr.Details = fmt.Sprintf("%d field(s) have the wrong type", len(typeErr.Errors))
		}
		return Config{}, cfgErr
	}

	if err := config.Validate(path); err != nil {
		return Config{}, err
	}

	logging.Info("ConfigLoader", "Loaded configuration from %s", path)
	return config, nil
}
