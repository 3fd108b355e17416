package config

import (
	"time"

	"github.com/karouf/trainbox/config/security"
)

// Removal policies
const (
	RemovalKeep   = "keep"
	RemovalRemove = "remove"
)

// EnvironmentSettings holds the launch options an environment can set.
// The same fields at the top level of config.yaml act as defaults for
// every environment.
type EnvironmentSettings struct {
	Image       string             `yaml:"image,omitempty"`
	Removal     string             `yaml:"removal,omitempty"` // "keep" or "remove"
	CPUShares   *int               `yaml:"cpu_shares,omitempty"`
	Memory      string             `yaml:"memory,omitempty"`      // e.g. "512m"
	MemorySwap  string             `yaml:"memory_swap,omitempty"` // e.g. "1g", "-1" for unlimited
	Network     string             `yaml:"network,omitempty"`
	DNS         []string           `yaml:"dns,omitempty"`
	Mounts      []string           `yaml:"mounts,omitempty"` // runtime --mount specs
	Env         []string           `yaml:"env,omitempty"`    // host variable names passed through
	Workdir     string             `yaml:"workdir,omitempty"`
	User        string             `yaml:"user,omitempty"` // run-as user inside the container
	Command     string             `yaml:"command,omitempty"`
	Timeout     string             `yaml:"timeout,omitempty"` // Go duration, e.g. "2h"
	VirtualPort *int               `yaml:"virtual_port,omitempty"`
	Security    *security.Settings `yaml:"security,omitempty"`
}

// PortsSettings holds port forwarding configuration
type PortsSettings struct {
	RangeStart  *int   `yaml:"range_start,omitempty"`
	BindAddress string `yaml:"bind_address,omitempty"`
	Interface   string `yaml:"interface,omitempty"`
}

// LogSettings holds logging configuration
type LogSettings struct {
	Level      string `yaml:"level,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
}

// GlobalConfig represents the configuration stored in ~/.trainbox/config.yaml
type GlobalConfig struct {
	EnvironmentSettings `yaml:",inline"`

	Runtime      string         `yaml:"runtime,omitempty"` // "docker" or "podman"
	Debug        *bool          `yaml:"debug,omitempty"`
	Ports        *PortsSettings `yaml:"ports,omitempty"`
	Log          *LogSettings   `yaml:"log,omitempty"`
	SessionStore string         `yaml:"session_store,omitempty"` // path to the SQLite database

	Environments map[string]*EnvironmentSettings `yaml:"environments,omitempty"`
}

// Config holds the resolved launch bundle for one environment
type Config struct {
	Runtime     string
	Environment string

	Image          string
	Removal        string
	CPUShares      int
	Memory         string
	MemorySwap     string
	NetworkMode    string
	DNS            []string
	Mounts         []string
	EnvPassthrough []string
	Workdir        string
	User           string
	Command        string
	Timeout        time.Duration
	VirtualPort    int

	PortRangeStart int
	BindAddress    string
	Interface      string

	Debug      bool
	LogLevel   string
	LogFile    string
	LogMaxSize int
	LogBackups int
	StorePath  string

	Security security.Config
}
