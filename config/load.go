package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/michalshavit1/salto/faults"
)

// Load reads the configuration file, applies SALTO_* environment overrides,
// and validates the result. A missing file with a complete environment is
// fine; the environment alone can carry a working configuration.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	expanded, err := ExpandHome(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(expanded)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, faults.NewTypedError(faults.ConfigurationError,
				fmt.Sprintf("failed to parse config file %q", expanded), err)
		}
	case os.IsNotExist(err):
	default:
		return nil, faults.NewTypedError(faults.ConfigurationError,
			fmt.Sprintf("failed to read config file %q", expanded), err)
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, faults.NewTypedError(faults.ConfigurationError,
			"failed to apply environment overrides", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Adapter) == "" {
		return faults.NewTypedError(faults.ConfigurationError, "adapter name is required", nil)
	}
	if strings.TrimSpace(c.SchemaFile) == "" {
		return faults.NewTypedError(faults.ConfigurationError, "schema file is required", nil)
	}
	if strings.TrimSpace(c.Service.BaseURL) == "" {
		return faults.NewTypedError(faults.ConfigurationError, "service base url is required", nil)
	}
	for _, ta := range c.Resolve.TypeAnnotations {
		if ta.Name == "" || ta.Kind == "" {
			return faults.NewTypedError(faults.ConfigurationError,
				"type annotations need both name and kind", nil)
		}
	}
	for _, fa := range c.Resolve.FieldAnnotations {
		if fa.Name == "" || fa.TargetKind == "" {
			return faults.NewTypedError(faults.ConfigurationError,
				"field annotations need both name and targetKind", nil)
		}
	}
	return nil
}

// ExpandHome rewrites a leading "~/" to the user's home directory.
func ExpandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", faults.NewTypedError(faults.ConfigurationError,
				"cannot resolve home directory", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
