package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/karouf/trainbox/util"
	"gopkg.in/yaml.v3"
)

// GetGlobalConfigPath returns the path to the global config file.
// Can be overridden with TRAINBOX_CONFIG.
func GetGlobalConfigPath() string {
	if v := os.Getenv("TRAINBOX_CONFIG"); v != "" {
		return util.ExpandTilde(v)
	}
	home := util.GetHome()
	if home == "" {
		return ""
	}
	return filepath.Join(home, "config.yaml")
}

// LoadGlobalConfigFile loads a config file. A missing file yields an empty config.
func LoadGlobalConfigFile(path string) (*GlobalConfig, error) {
	if path == "" {
		return &GlobalConfig{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &GlobalConfig{}, nil
		}
		return nil, err
	}

	var cfg GlobalConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return &cfg, nil
}
