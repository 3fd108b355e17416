package core

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/karouf/trainbox/config"
)

// SessionConfig is a launch request
type SessionConfig struct {
	User        string
	Environment string
	// ClientAddr is the SSH client's address, required for forwarding
	ClientAddr string
	Config     *config.Config
}

// Session is one user's container instance for one environment
type Session struct {
	ID          string // per-launch id for log correlation
	User        string
	Environment string
	Container   string
	Removal     string
	VirtualPort int
	HostPort    int
	ClientAddr  string
	Interface   string
	BindAddress string
	Timeout     time.Duration
}

// NewSession derives the session for a launch request
func NewSession(sc SessionConfig) (*Session, error) {
	if sc.Config == nil {
		return nil, fmt.Errorf("%w: no configuration", ErrMisconfigured)
	}
	if sc.User == "" {
		return nil, fmt.Errorf("%w: user is required", ErrMisconfigured)
	}
	env := sc.Environment
	if env == "" {
		env = sc.Config.Environment
	}
	if env == "" {
		return nil, fmt.Errorf("%w: environment is required", ErrMisconfigured)
	}
	return &Session{
		ID:          newLaunchID(),
		User:        sc.User,
		Environment: env,
		Container:   ContainerName(env, sc.User),
		Removal:     sc.Config.Removal,
		VirtualPort: sc.Config.VirtualPort,
		ClientAddr:  sc.ClientAddr,
		Interface:   sc.Config.Interface,
		BindAddress: sc.Config.BindAddress,
		Timeout:     sc.Config.Timeout,
	}, nil
}

func newLaunchID() string {
	return uuid.NewString()
}

// Forwarding reports whether a virtual port was requested
func (s *Session) Forwarding() bool {
	return s.VirtualPort > 0
}

// Ephemeral reports whether the container is removed on exit.
// Forwarded sessions are always ephemeral.
func (s *Session) Ephemeral() bool {
	return s.Removal != config.RemovalKeep || s.Forwarding()
}

// ContainerName returns the runtime name for env and user.
// Characters the runtime rejects in names become '-'.
func ContainerName(env, user string) string {
	return sanitizeName(env + "_" + user)
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case isAlnum(r), r == '_', r == '.', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	out := b.String()
	// the runtime requires an alphanumeric first character
	if out == "" || !isAlnum(rune(out[0])) {
		out = "s" + out
	}
	return out
}

func isAlnum(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9'
}
