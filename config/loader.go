package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/docker/go-units"

	"github.com/karouf/trainbox/config/security"
	"github.com/karouf/trainbox/util"
)

const (
	DefaultRuntime        = "docker"
	DefaultPortRangeStart = 30000
	DefaultBindAddress    = "127.0.0.1"
	DefaultInterface      = "eth0"
	DefaultTimeout        = 2 * time.Hour
)

// LoadConfig loads the launch bundle for envName with precedence:
// defaults < global settings < environment section < env vars
func LoadConfig(path, envName string) (*Config, error) {
	if path == "" {
		path = GetGlobalConfigPath()
	}
	global, err := LoadGlobalConfigFile(path)
	if err != nil {
		return nil, err
	}
	return Resolve(global, envName)
}

// Resolve builds a Config from an already parsed GlobalConfig.
// An empty envName yields the host-wide settings only.
func Resolve(global *GlobalConfig, envName string) (*Config, error) {
	var envSettings *EnvironmentSettings
	if envName != "" && len(global.Environments) > 0 {
		envSettings = global.Environments[envName]
		if envSettings == nil {
			return nil, fmt.Errorf("unknown environment %q (known: %s)", envName, strings.Join(global.EnvironmentNames(), ", "))
		}
	}

	cfg := &Config{
		Runtime:        DefaultRuntime,
		Environment:    envName,
		Removal:        RemovalRemove,
		Timeout:        DefaultTimeout,
		PortRangeStart: DefaultPortRangeStart,
		BindAddress:    DefaultBindAddress,
		Interface:      DefaultInterface,
		LogLevel:       "error",
	}
	if home := util.GetHome(); home != "" {
		cfg.StorePath = filepath.Join(home, "sessions.db")
	}

	// Global-only settings
	if global.Runtime != "" {
		cfg.Runtime = global.Runtime
	}
	if global.Debug != nil {
		cfg.Debug = *global.Debug
	}
	if global.Ports != nil {
		if global.Ports.RangeStart != nil {
			cfg.PortRangeStart = *global.Ports.RangeStart
		}
		if global.Ports.BindAddress != "" {
			cfg.BindAddress = global.Ports.BindAddress
		}
		if global.Ports.Interface != "" {
			cfg.Interface = global.Ports.Interface
		}
	}
	if global.Log != nil {
		if global.Log.Level != "" {
			cfg.LogLevel = global.Log.Level
		}
		cfg.LogFile = util.ExpandTilde(global.Log.File)
		cfg.LogMaxSize = global.Log.MaxSizeMB
		cfg.LogBackups = global.Log.MaxBackups
	}
	if global.SessionStore != "" {
		cfg.StorePath = util.ExpandTilde(global.SessionStore)
	}

	// Launch settings: global defaults, then the environment section
	if err := applyEnvironmentSettings(cfg, &global.EnvironmentSettings); err != nil {
		return nil, err
	}
	var envSecurity *security.Settings
	if envSettings != nil {
		if err := applyEnvironmentSettings(cfg, envSettings); err != nil {
			return nil, fmt.Errorf("environment %s: %w", envName, err)
		}
		envSecurity = envSettings.Security
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	cfg.Security = security.LoadConfig(global.Security, envSecurity)
	return cfg, nil
}

func applyEnvironmentSettings(cfg *Config, s *EnvironmentSettings) error {
	if s.Image != "" {
		cfg.Image = s.Image
	}
	if s.Removal != "" {
		cfg.Removal = strings.ToLower(s.Removal)
	}
	if s.CPUShares != nil {
		cfg.CPUShares = *s.CPUShares
	}
	if s.Memory != "" {
		cfg.Memory = s.Memory
	}
	if s.MemorySwap != "" {
		cfg.MemorySwap = s.MemorySwap
	}
	if s.Network != "" {
		cfg.NetworkMode = s.Network
	}
	if len(s.DNS) > 0 {
		cfg.DNS = append([]string(nil), s.DNS...)
	}
	if len(s.Mounts) > 0 {
		cfg.Mounts = append([]string(nil), s.Mounts...)
	}
	if len(s.Env) > 0 {
		cfg.EnvPassthrough = append([]string(nil), s.Env...)
	}
	if s.Workdir != "" {
		cfg.Workdir = s.Workdir
	}
	if s.User != "" {
		cfg.User = s.User
	}
	if s.Command != "" {
		cfg.Command = s.Command
	}
	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", s.Timeout, err)
		}
		cfg.Timeout = d
	}
	if s.VirtualPort != nil {
		cfg.VirtualPort = *s.VirtualPort
	}
	return nil
}

// applyEnvOverrides applies TRAINBOX_* environment variables
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("TRAINBOX_RUNTIME"); v != "" {
		cfg.Runtime = v
	}
	if v := os.Getenv("TRAINBOX_IMAGE"); v != "" {
		cfg.Image = v
	}
	if v := os.Getenv("TRAINBOX_REMOVAL"); v != "" {
		cfg.Removal = strings.ToLower(v)
	}
	if v := os.Getenv("TRAINBOX_MEMORY"); v != "" {
		cfg.Memory = v
	}
	if v := os.Getenv("TRAINBOX_MEMORY_SWAP"); v != "" {
		cfg.MemorySwap = v
	}
	if v := os.Getenv("TRAINBOX_NETWORK"); v != "" {
		cfg.NetworkMode = v
	}
	if v := os.Getenv("TRAINBOX_BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("TRAINBOX_INTERFACE"); v != "" {
		cfg.Interface = v
	}
	if v := os.Getenv("TRAINBOX_STORE"); v != "" {
		cfg.StorePath = util.ExpandTilde(v)
	}
	if v := os.Getenv("TRAINBOX_LOG_FILE"); v != "" {
		cfg.LogFile = util.ExpandTilde(v)
	}
	if v := os.Getenv("TRAINBOX_DEBUG"); v != "" {
		cfg.Debug = v == "true" || v == "1"
	}
	if v := os.Getenv("TRAINBOX_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TRAINBOX_TIMEOUT %q: %w", v, err)
		}
		cfg.Timeout = d
	}
	if v := os.Getenv("TRAINBOX_VIRTUAL_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid TRAINBOX_VIRTUAL_PORT %q: %w", v, err)
		}
		cfg.VirtualPort = p
	}
	if v := os.Getenv("TRAINBOX_PORT_RANGE_START"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			cfg.PortRangeStart = i
		}
	}
	return nil
}

// Validate reports launch options the runtime would reject
func (c *Config) Validate() error {
	if c.Image == "" {
		return fmt.Errorf("no image configured for environment %q", c.Environment)
	}
	if c.Removal != RemovalKeep && c.Removal != RemovalRemove {
		return fmt.Errorf("invalid removal policy %q (want %q or %q)", c.Removal, RemovalKeep, RemovalRemove)
	}
	if c.CPUShares < 0 {
		return fmt.Errorf("invalid cpu_shares %d", c.CPUShares)
	}
	if c.Memory != "" {
		if _, err := units.RAMInBytes(c.Memory); err != nil {
			return fmt.Errorf("invalid memory %q: %w", c.Memory, err)
		}
	}
	if c.MemorySwap != "" && c.MemorySwap != "-1" {
		if _, err := units.RAMInBytes(c.MemorySwap); err != nil {
			return fmt.Errorf("invalid memory_swap %q: %w", c.MemorySwap, err)
		}
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.VirtualPort < 0 || c.VirtualPort > 65535 {
		return fmt.Errorf("invalid virtual_port %d", c.VirtualPort)
	}
	if c.VirtualPort > 0 && (c.PortRangeStart < 1 || c.PortRangeStart > 65535) {
		return fmt.Errorf("invalid ports.range_start %d", c.PortRangeStart)
	}
	return nil
}

// Forwarding reports whether a virtual port was requested
func (c *Config) Forwarding() bool {
	return c.VirtualPort > 0
}

// EnvironmentNames returns the configured environment names, sorted
func (g *GlobalConfig) EnvironmentNames() []string {
	names := make([]string, 0, len(g.Environments))
	for name := range g.Environments {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
