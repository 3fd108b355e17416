package core

import (
	"github.com/karouf/trainbox/config/security"
	"github.com/karouf/trainbox/provider"
	"github.com/karouf/trainbox/util"
)

var capsLogger = util.Log("capabilities")

// Global capability overrides
const (
	CapDropAll = "DROP_ALL"
	CapAddAll  = "ADD_ALL"
)

// Capabilities lists every capability the resolver emits, in emission order
var Capabilities = []string{
	"AUDIT_CONTROL",
	"AUDIT_READ",
	"AUDIT_WRITE",
	"BLOCK_SUSPEND",
	"BPF",
	"CHECKPOINT_RESTORE",
	"CHOWN",
	"DAC_OVERRIDE",
	"DAC_READ_SEARCH",
	"FOWNER",
	"FSETID",
	"IPC_LOCK",
	"IPC_OWNER",
	"KILL",
	"LEASE",
	"LINUX_IMMUTABLE",
	"MAC_ADMIN",
	"MAC_OVERRIDE",
	"MKNOD",
	"NET_ADMIN",
	"NET_BIND_SERVICE",
	"NET_BROADCAST",
	"NET_RAW",
	"PERFMON",
	"SETFCAP",
	"SETGID",
	"SETPCAP",
	"SETUID",
	"SYSLOG",
	"SYS_ADMIN",
	"SYS_BOOT",
	"SYS_CHROOT",
	"SYS_MODULE",
	"SYS_NICE",
	"SYS_PACCT",
	"SYS_PTRACE",
	"SYS_RAWIO",
	"SYS_RESOURCE",
	"SYS_TIME",
	"SYS_TTY_CONFIG",
	"WAKE_ALARM",
}

// defaultOn is kept so images can switch to an unprivileged user
var defaultOn = map[string]bool{
	"CHOWN":  true,
	"SETGID": true,
	"SETUID": true,
}

// CapabilitySet is an ordered list of add/drop directives
type CapabilitySet []provider.Capability

// Args renders the set as runtime flags
func (s CapabilitySet) Args() []string {
	args := make([]string, 0, len(s)*2)
	for _, c := range s {
		if c.Add {
			args = append(args, "--cap-add", c.Name)
		} else {
			args = append(args, "--cap-drop", c.Name)
		}
	}
	return args
}

// Enabled returns the names being added
func (s CapabilitySet) Enabled() []string {
	var names []string
	for _, c := range s {
		if c.Add {
			names = append(names, c.Name)
		}
	}
	return names
}

// ResolveCapabilities turns capability flags into directives.
//
// DROP_ALL and ADD_ALL are checked first and replace every individual flag
// with a single ALL directive; DROP_ALL wins when both are set. Otherwise
// each capability takes its flag, or its default when unset.
func ResolveCapabilities(cfg security.Config) CapabilitySet {
	dropAll := cfg.Capabilities[CapDropAll]
	addAll := cfg.Capabilities[CapAddAll]
	switch {
	case dropAll && addAll:
		capsLogger.Warningf("Both %s and %s are set, dropping all capabilities", CapDropAll, CapAddAll)
		return CapabilitySet{{Name: "ALL", Add: false}}
	case dropAll:
		return CapabilitySet{{Name: "ALL", Add: false}}
	case addAll:
		return CapabilitySet{{Name: "ALL", Add: true}}
	}

	set := make(CapabilitySet, 0, len(Capabilities))
	for _, name := range Capabilities {
		add, ok := cfg.Capabilities[name]
		if !ok {
			add = defaultOn[name]
		}
		set = append(set, provider.Capability{Name: name, Add: add})
	}
	return set
}
