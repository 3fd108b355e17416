package docker

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strconv"
	"syscall"
	"time"

	"github.com/karouf/trainbox/provider"
)

// waitDelay bounds how long Wait blocks on I/O after the CLI is killed
const waitDelay = 5 * time.Second

// BuildRunArgs renders a RunSpec into runtime CLI arguments
func BuildRunArgs(spec *provider.RunSpec) []string {
	args := []string{"run"}
	if spec.Remove {
		args = append(args, "--rm")
	}
	args = append(args, "--name", spec.Name)
	if spec.Hostname != "" {
		args = append(args, "--hostname", spec.Hostname)
	}

	// Interactive mode
	if spec.Interactive {
		args = append(args, "-it")
	} else {
		args = append(args, "-i")
	}

	// Resource shares and memory
	if spec.CPUShares > 0 {
		args = append(args, "--cpu-shares", strconv.Itoa(spec.CPUShares))
	}
	if spec.Memory != "" {
		args = append(args, "--memory", spec.Memory)
	}
	if spec.MemorySwap != "" {
		args = append(args, "--memory-swap", spec.MemorySwap)
	}

	// Network
	if spec.NetworkMode != "" {
		args = append(args, "--network", spec.NetworkMode)
	}
	for _, dns := range spec.DNS {
		args = append(args, "--dns", dns)
	}
	for _, port := range spec.Ports {
		args = append(args, "-p", publishSpec(port))
	}

	// Environment, mounts, working directory, user
	for _, env := range spec.Env {
		args = append(args, "--env", env)
	}
	for _, mount := range spec.Mounts {
		args = append(args, "--mount", mount)
	}
	if spec.WorkDir != "" {
		args = append(args, "--workdir", spec.WorkDir)
	}
	if spec.User != "" {
		args = append(args, "--user", spec.User)
	}

	// Security settings
	if spec.NoNewPrivileges {
		args = append(args, "--security-opt", "no-new-privileges")
	}
	if spec.PidsLimit > 0 {
		args = append(args, "--pids-limit", strconv.Itoa(spec.PidsLimit))
	}
	for _, c := range spec.Capabilities {
		if c.Add {
			args = append(args, "--cap-add", c.Name)
		} else {
			args = append(args, "--cap-drop", c.Name)
		}
	}
	for _, u := range spec.Ulimits {
		args = append(args, "--ulimit", u.Name+"="+u.Value)
	}

	args = append(args, spec.ImageName)
	args = append(args, spec.Command...)
	return args
}

// publishSpec formats a mapping as [hostIP:]hostPort:containerPort/tcp
func publishSpec(pm provider.PortMapping) string {
	ports := fmt.Sprintf("%d:%d/tcp", pm.Host, pm.Container)
	if pm.HostIP == "" {
		return ports
	}
	host := pm.HostIP
	if ip := net.ParseIP(host); ip != nil && ip.To4() == nil {
		host = "[" + host + "]"
	}
	return host + ":" + ports
}

// Run runs a new container and waits for it to exit
func (p *DockerProvider) Run(ctx context.Context, spec *provider.RunSpec) (int, error) {
	args := BuildRunArgs(spec)
	dockerLogger.Debugf("Executing: %s %v", p.binary, args)
	return p.executeCommand(ctx, args, true)
}

// Attach resumes an existing container: attach if running, start otherwise
func (p *DockerProvider) Attach(ctx context.Context, name string, interactive bool) (int, error) {
	var args []string
	if p.IsRunning(ctx, name) {
		dockerLogger.Debugf("Container %s is running, attaching", name)
		args = []string{"attach", name}
	} else {
		dockerLogger.Debugf("Container %s is stopped, starting", name)
		args = []string{"start", "--attach"}
		if interactive {
			args = append(args, "--interactive")
		}
		args = append(args, name)
	}
	return p.executeCommand(ctx, args, true)
}

// executeCommand runs the runtime CLI with standard I/O and returns the exit status
func (p *DockerProvider) executeCommand(ctx context.Context, args []string, withStdin bool) (int, error) {
	cmd := exec.CommandContext(ctx, p.binary, args...)
	if withStdin {
		cmd.Stdin = p.stdin
	}
	cmd.Stdout = p.stdout
	cmd.Stderr = p.stderr
	cmd.WaitDelay = waitDelay

	runErr := cmd.Run()
	code, err := exitStatus(runErr)
	if ctxErr := ctx.Err(); ctxErr != nil {
		dockerLogger.Debugf("%s %s ended by context: %v", p.binary, args[0], ctxErr)
		return code, fmt.Errorf("%s %s: %w", p.binary, args[0], ctxErr)
	}
	if err != nil {
		return code, fmt.Errorf("%s %s: %w", p.binary, args[0], err)
	}
	dockerLogger.Debugf("%s %s exited with status %d", p.binary, args[0], code)
	return code, nil
}

// exitStatus maps a command error to a shell-style exit status.
// A process killed by signal N reports 128+N.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return 128 + int(ws.Signal()), nil
		}
		return exitErr.ExitCode(), nil
	}
	return -1, err
}
