package core

import (
	"fmt"

	"github.com/google/shlex"

	"github.com/karouf/trainbox/config"
	"github.com/karouf/trainbox/provider"
	"github.com/karouf/trainbox/util"
)

var optionsLogger = util.Log("options")

// LaunchOptions are the resolved inputs to BuildRunOptions
type LaunchOptions struct {
	Command      []string
	Capabilities CapabilitySet
	Limits       LimitSet
	Ports        []provider.PortMapping
	Interactive  bool
}

// SplitCommand splits the configured entry command shell-style
func SplitCommand(command string) ([]string, error) {
	if command == "" {
		return nil, nil
	}
	args, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("%w: command %q: %v", ErrMisconfigured, command, err)
	}
	return args, nil
}

// BuildRunOptions creates a RunSpec for a fresh launch
func BuildRunOptions(s *Session, cfg *config.Config, opts LaunchOptions) *provider.RunSpec {
	optionsLogger.Debugf("BuildRunOptions called: name=%s, ephemeral=%v, interactive=%v", s.Container, s.Ephemeral(), opts.Interactive)

	spec := &provider.RunSpec{
		Name:        s.Container,
		ImageName:   cfg.Image,
		Hostname:    s.Environment,
		Command:     append([]string(nil), opts.Command...),
		WorkDir:     cfg.Workdir,
		User:        cfg.User,
		Interactive: opts.Interactive,
		Remove:      s.Ephemeral(),

		CPUShares:   cfg.CPUShares,
		Memory:      cfg.Memory,
		MemorySwap:  cfg.MemorySwap,
		NetworkMode: cfg.NetworkMode,
		DNS:         append([]string(nil), cfg.DNS...),

		Ports:  append([]provider.PortMapping(nil), opts.Ports...),
		Env:    BuildEnvironment(s, cfg.EnvPassthrough, opts.Interactive),
		Mounts: append([]string(nil), cfg.Mounts...),

		Capabilities:    append([]provider.Capability(nil), opts.Capabilities...),
		Ulimits:         append([]provider.Ulimit(nil), opts.Limits...),
		PidsLimit:       cfg.Security.PidsLimit,
		NoNewPrivileges: cfg.Security.NoNewPrivileges,
	}

	optionsLogger.Debugf("RunSpec created: Name=%s, ImageName=%s, Remove=%v, Ports=%d, Caps=%v",
		spec.Name, spec.ImageName, spec.Remove, len(spec.Ports), opts.Capabilities.Enabled())
	return spec
}
