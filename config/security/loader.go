package security

import (
	"os"
	"strconv"
	"strings"
)

const (
	envCapPrefix    = "TRAINBOX_CAP_"
	envUlimitPrefix = "TRAINBOX_ULIMIT_"
)

// NormalizeCapability upper-cases a flag name and strips the CAP_ prefix.
// DROP_ALL and ADD_ALL pass through unchanged.
func NormalizeCapability(name string) string {
	name = strings.ToUpper(strings.TrimSpace(name))
	return strings.TrimPrefix(name, "CAP_")
}

// ParseFlag parses yes/no style values. ok is false for anything unrecognized.
func ParseFlag(v string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "y", "true", "on", "1":
		return true, true
	case "no", "n", "false", "off", "0":
		return false, true
	default:
		return false, false
	}
}

// ApplySettings applies Settings overrides to a Config
func ApplySettings(cfg *Config, settings *Settings) {
	if settings == nil {
		return
	}
	for name, v := range settings.Capabilities {
		if b, ok := ParseFlag(v); ok {
			cfg.Capabilities[NormalizeCapability(name)] = b
		}
	}
	for name, v := range settings.Ulimits {
		cfg.Ulimits[strings.ToLower(strings.TrimSpace(name))] = strings.TrimSpace(v)
	}
	if settings.PidsLimit != nil {
		cfg.PidsLimit = *settings.PidsLimit
	}
	if settings.NoNewPrivileges != nil {
		cfg.NoNewPrivileges = *settings.NoNewPrivileges
	}
}

// ApplyEnvOverrides applies environment variable overrides to a Config.
// TRAINBOX_CAP_<NAME>=yes|no sets a capability flag and
// TRAINBOX_ULIMIT_<NAME>=value sets a ulimit.
func ApplyEnvOverrides(cfg *Config) {
	for _, kv := range os.Environ() {
		key, value, found := strings.Cut(kv, "=")
		if !found {
			continue
		}
		switch {
		case strings.HasPrefix(key, envCapPrefix):
			if b, ok := ParseFlag(value); ok {
				cfg.Capabilities[NormalizeCapability(strings.TrimPrefix(key, envCapPrefix))] = b
			}
		case strings.HasPrefix(key, envUlimitPrefix):
			cfg.Ulimits[strings.ToLower(strings.TrimPrefix(key, envUlimitPrefix))] = value
		}
	}
	if v := os.Getenv("TRAINBOX_SECURITY_PIDS_LIMIT"); v != "" {
		if pids, err := strconv.Atoi(v); err == nil {
			cfg.PidsLimit = pids
		}
	}
	if v := os.Getenv("TRAINBOX_SECURITY_NO_NEW_PRIVILEGES"); v != "" {
		cfg.NoNewPrivileges = v != "false"
	}
}

// LoadConfig loads security configuration with full precedence chain:
// defaults < global settings < environment settings < env vars
func LoadConfig(globalSettings, envSettings *Settings) Config {
	cfg := DefaultConfig()
	ApplySettings(&cfg, globalSettings)
	ApplySettings(&cfg, envSettings)
	ApplyEnvOverrides(&cfg)
	return cfg
}
