// Package nat installs destination-NAT rules that route a client's traffic
// to a port published by a session container.
package nat

import (
	"context"
	"fmt"
	"net"
	"strconv"

	gonat "github.com/docker/go-connections/nat"

	"github.com/karouf/trainbox/internal/util"
	logutil "github.com/karouf/trainbox/util"
)

var natLogger = logutil.Log("nat")

// Rule describes one forwarded session
type Rule struct {
	ClientAddr    string
	Interface     string
	BindAddr      string
	HostPort      int
	ContainerPort int
	// Tag is written as an iptables comment so an external sweep can find the rule
	Tag string
}

// Validate checks the rule fields before anything touches the host
func (r Rule) Validate() error {
	if net.ParseIP(r.ClientAddr) == nil {
		return fmt.Errorf("invalid client address %q", r.ClientAddr)
	}
	if net.ParseIP(r.BindAddr) == nil {
		return fmt.Errorf("invalid bind address %q", r.BindAddr)
	}
	if r.Interface == "" {
		return fmt.Errorf("interface is required")
	}
	if r.HostPort < 1 || r.HostPort > 65535 {
		return fmt.Errorf("invalid host port %d", r.HostPort)
	}
	if r.ContainerPort < 1 || r.ContainerPort > 65535 {
		return fmt.Errorf("invalid container port %d", r.ContainerPort)
	}
	return nil
}

// PublishSpec returns the runtime publish argument bind:host:container/tcp
func (r Rule) PublishSpec() (string, error) {
	host := r.BindAddr
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		host = "[" + host + "]"
	}
	spec := fmt.Sprintf("%s:%d:%d/tcp", host, r.HostPort, r.ContainerPort)
	if _, err := gonat.ParsePortSpec(spec); err != nil {
		return "", fmt.Errorf("invalid publish spec %q: %w", spec, err)
	}
	return spec, nil
}

// ruleSpec renders the PREROUTING match and target shared by add and delete
func (r Rule) ruleSpec() []string {
	args := []string{
		"PREROUTING",
		"-s", r.ClientAddr,
		"-i", r.Interface,
		"-p", "tcp",
		"--dport", strconv.Itoa(r.HostPort),
	}
	if r.Tag != "" {
		args = append(args, "-m", "comment", "--comment", r.Tag)
	}
	args = append(args, "-j", "DNAT", "--to-destination", net.JoinHostPort(r.BindAddr, strconv.Itoa(r.HostPort)))
	return args
}

// AddArgs returns the iptables arguments that append the rule
func (r Rule) AddArgs() []string {
	return append([]string{"-t", "nat", "-A"}, r.ruleSpec()...)
}

// DeleteArgs returns the iptables arguments that remove the rule
func (r Rule) DeleteArgs() []string {
	return append([]string{"-t", "nat", "-D"}, r.ruleSpec()...)
}

// Installer mutates host NAT and routing state through command-line tools
type Installer struct {
	runner   util.Runner
	iptables string
	sysctl   string
}

// NewInstaller creates an installer that runs iptables and sysctl via runner
func NewInstaller(runner util.Runner) *Installer {
	if runner == nil {
		runner = util.ExecRunner{}
	}
	return &Installer{
		runner:   runner,
		iptables: "iptables",
		sysctl:   "sysctl",
	}
}

// Install appends the rule and returns the action that removes it again
func (i *Installer) Install(ctx context.Context, rule Rule) (util.CleanupFunc, error) {
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	natLogger.Debugf("Installing DNAT rule: %s %v", i.iptables, rule.AddArgs())
	if _, err := i.runner.Run(ctx, i.iptables, rule.AddArgs()...); err != nil {
		return nil, fmt.Errorf("failed to install NAT rule: %w", err)
	}
	undo := func(ctx context.Context) error {
		natLogger.Debugf("Removing DNAT rule: %s %v", i.iptables, rule.DeleteArgs())
		_, err := i.runner.Run(ctx, i.iptables, rule.DeleteArgs()...)
		return err
	}
	return undo, nil
}

// EnableLoopbackRouting lets traffic arriving on iface be DNATed to 127.0.0.0/8
func (i *Installer) EnableLoopbackRouting(ctx context.Context, iface string) error {
	if iface == "" {
		return fmt.Errorf("interface is required")
	}
	key := fmt.Sprintf("net.ipv4.conf.%s.route_localnet=1", iface)
	if _, err := i.runner.Run(ctx, i.sysctl, "-w", key); err != nil {
		return fmt.Errorf("failed to enable loopback routing: %w", err)
	}
	return nil
}

// IsLoopback reports whether addr is a loopback IP
func IsLoopback(addr string) bool {
	ip := net.ParseIP(addr)
	return ip != nil && ip.IsLoopback()
}
