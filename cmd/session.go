package cmd

import (
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"strings"

	"github.com/karouf/trainbox/config"
	"github.com/karouf/trainbox/core"
	"github.com/karouf/trainbox/provider/docker"
	"github.com/karouf/trainbox/store"
)

// currentUser returns the login name of the invoking user
func currentUser() (string, error) {
	if name := os.Getenv("USER"); name != "" {
		return name, nil
	}
	u, err := user.Current()
	if err != nil {
		return "", fmt.Errorf("cannot determine user: %w", err)
	}
	return u.Username, nil
}

// clientAddress returns the SSH client's IP from SSH_CLIENT or SSH_CONNECTION
func clientAddress() string {
	for _, key := range []string{"SSH_CLIENT", "SSH_CONNECTION"} {
		if addr := parseSSHClient(os.Getenv(key)); addr != "" {
			return addr
		}
	}
	return ""
}

// parseSSHClient extracts the address from "ADDR PORT ..." values
func parseSSHClient(v string) string {
	fields := strings.Fields(v)
	if len(fields) == 0 {
		return ""
	}
	addr := strings.TrimPrefix(fields[0], "::ffff:")
	if net.ParseIP(addr) == nil {
		return ""
	}
	return addr
}

// openStore opens the session database, or returns nil when none is configured
func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	if cfg.StorePath == "" {
		return nil, nil
	}
	return store.Open(cfg.StorePath)
}

// newController wires the runtime, store and host networking for cfg
func newController(cfg *config.Config, st *store.SQLiteStore) (*core.Controller, error) {
	rt, err := docker.New(cfg.Runtime)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMisconfigured, err)
	}

	var rec store.Recorder
	if st != nil {
		rec = st
	}
	ctrl := core.NewController(rt, rec, cfg.Debug)
	ctrl.AttachTimeout = cfg.Timeout
	return ctrl, nil
}

var errNoEnvironment = errors.New("no environment selected (use --env or TRAINBOX_ENV)")
