package docker

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/karouf/trainbox/internal/util"
	"github.com/karouf/trainbox/provider"
	logutil "github.com/karouf/trainbox/util"
)

var dockerLogger = logutil.Log("docker")

// DockerProvider implements the Provider interface for Docker-compatible CLIs
type DockerProvider struct {
	binary string
	runner util.Runner

	// Standard streams for interactive commands
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewDockerProvider creates a provider that drives the docker CLI
func NewDockerProvider() *DockerProvider {
	return newProvider("docker")
}

// NewPodmanProvider creates a provider that drives the podman CLI,
// which accepts the same run/start/inspect dialect
func NewPodmanProvider() *DockerProvider {
	return newProvider("podman")
}

// New returns the provider for a runtime name
func New(name string) (provider.Provider, error) {
	switch name {
	case "", "docker":
		return NewDockerProvider(), nil
	case "podman":
		return NewPodmanProvider(), nil
	default:
		return nil, fmt.Errorf("unknown runtime %q (want docker or podman)", name)
	}
}

func newProvider(binary string) *DockerProvider {
	return &DockerProvider{
		binary: binary,
		runner: util.ExecRunner{},
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
}

// GetName returns the provider name
func (p *DockerProvider) GetName() string {
	return p.binary
}

// CheckPrerequisites verifies the runtime CLI is installed and its daemon answers
func (p *DockerProvider) CheckPrerequisites(ctx context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("%s is not installed", p.binary)
	}

	if _, err := p.runner.Run(ctx, p.binary, "info"); err != nil {
		return fmt.Errorf("%s is not running or not reachable: %w", p.binary, err)
	}

	return nil
}

// output runs a non-interactive runtime command and returns its output
func (p *DockerProvider) output(ctx context.Context, args ...string) (string, error) {
	out, err := p.runner.Run(ctx, p.binary, args...)
	return string(out), err
}
