package security

// UlimitDisabled suppresses a ulimit option entirely
const UlimitDisabled = "disabled"

// Settings holds container security configuration for YAML parsing
type Settings struct {
	// Capabilities maps a capability name (CAP_NET_ADMIN, NET_ADMIN) or a
	// global override (DROP_ALL, ADD_ALL) to yes/no
	Capabilities    map[string]string `yaml:"capabilities,omitempty"`
	Ulimits         map[string]string `yaml:"ulimits,omitempty"`          // name -> "soft[:hard]" or "disabled"
	PidsLimit       *int              `yaml:"pids_limit,omitempty"`       // Max number of processes (default: 200)
	NoNewPrivileges *bool             `yaml:"no_new_privileges,omitempty"` // Prevent privilege escalation (default: true)
}

// Config holds runtime security configuration with defaults applied.
// Treat a Config as immutable once loaded; Clone before changing it.
type Config struct {
	Capabilities    map[string]bool   // normalized name -> enabled; absent means default
	Ulimits         map[string]string // lowercase name -> value
	PidsLimit       int               // 0 = runtime default
	NoNewPrivileges bool
}

// DefaultConfig returns a Config with secure defaults applied
func DefaultConfig() Config {
	return Config{
		Capabilities: map[string]bool{},
		Ulimits: map[string]string{
			"nofile": "4096:8192",
			"nproc":  "256:512",
		},
		PidsLimit:       200,
		NoNewPrivileges: true,
	}
}

// Clone returns a deep copy
func (c Config) Clone() Config {
	out := c
	out.Capabilities = make(map[string]bool, len(c.Capabilities))
	for k, v := range c.Capabilities {
		out.Capabilities[k] = v
	}
	out.Ulimits = make(map[string]string, len(c.Ulimits))
	for k, v := range c.Ulimits {
		out.Ulimits[k] = v
	}
	return out
}
