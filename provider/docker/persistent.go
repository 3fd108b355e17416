package docker

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Exists checks if a container exists (running or stopped)
func (p *DockerProvider) Exists(ctx context.Context, name string) bool {
	_, err := p.runner.Run(ctx, p.binary, "container", "inspect", "--format", "{{.Name}}", name)
	return err == nil
}

// IsRunning checks if a container is running
func (p *DockerProvider) IsRunning(ctx context.Context, name string) bool {
	out, err := p.output(ctx, "container", "inspect", "--format", "{{.State.Running}}", name)
	return err == nil && strings.TrimSpace(out) == "true"
}

// State returns a one-line summary of a container's state for diagnostics
func (p *DockerProvider) State(ctx context.Context, name string) (string, error) {
	out, err := p.output(ctx, "container", "inspect", "--format",
		"status={{.State.Status}} exit={{.State.ExitCode}} oom={{.State.OOMKilled}} error={{.State.Error}}", name)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Kill forcibly stops a container
func (p *DockerProvider) Kill(ctx context.Context, name string) error {
	if _, err := p.runner.Run(ctx, p.binary, "kill", name); err != nil {
		return fmt.Errorf("kill %s: %w", name, err)
	}
	return nil
}

// PublishedPorts returns host ports published by running containers
func (p *DockerProvider) PublishedPorts(ctx context.Context) (map[int]bool, error) {
	out, err := p.output(ctx, "ps", "--format", "{{.Ports}}")
	if err != nil {
		return nil, err
	}
	return parsePublishedPorts(out), nil
}

// parsePublishedPorts extracts host ports from `ps --format {{.Ports}}` lines,
// e.g. "127.0.0.1:30001->8080/tcp, :::30002->22/tcp, 5432/tcp"
func parsePublishedPorts(out string) map[int]bool {
	ports := make(map[int]bool)
	for _, line := range strings.Split(out, "\n") {
		for _, entry := range strings.Split(line, ",") {
			entry = strings.TrimSpace(entry)
			arrow := strings.Index(entry, "->")
			if arrow < 0 {
				continue
			}
			host := entry[:arrow]
			colon := strings.LastIndex(host, ":")
			if colon < 0 {
				continue
			}
			hostPorts := host[colon+1:]
			start, end := hostPorts, hostPorts
			if dash := strings.Index(hostPorts, "-"); dash >= 0 {
				start, end = hostPorts[:dash], hostPorts[dash+1:]
			}
			lo, err1 := strconv.Atoi(start)
			hi, err2 := strconv.Atoi(end)
			if err1 != nil || err2 != nil || hi < lo {
				continue
			}
			for port := lo; port <= hi; port++ {
				ports[port] = true
			}
		}
	}
	return ports
}
