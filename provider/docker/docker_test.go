package docker

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karouf/trainbox/provider"
)

type fakeRunner struct {
	calls   []string
	outputs map[string]string
	fail    map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, line)
	for prefix, err := range f.fail {
		if strings.HasPrefix(line, prefix) {
			return nil, err
		}
	}
	for prefix, out := range f.outputs {
		if strings.HasPrefix(line, prefix) {
			return []byte(out), nil
		}
	}
	return nil, nil
}

// createUnitProvider creates a DockerProvider for unit tests
func createUnitProvider(runner *fakeRunner) *DockerProvider {
	p := NewDockerProvider()
	p.runner = runner
	p.stdin = nil
	p.stdout = &bytes.Buffer{}
	p.stderr = &bytes.Buffer{}
	return p
}

func TestNew(t *testing.T) {
	p, err := New("podman")
	require.NoError(t, err)
	assert.Equal(t, "podman", p.GetName())

	p, err = New("")
	require.NoError(t, err)
	assert.Equal(t, "docker", p.GetName())

	_, err = New("lxc")
	assert.Error(t, err)
}

func TestImageExists(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"docker image inspect missing": errors.New("No such image")}}
	p := createUnitProvider(runner)

	assert.True(t, p.ImageExists(context.Background(), "alpine"))
	assert.False(t, p.ImageExists(context.Background(), "missing"))
}

func TestPullImage_Failure(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"docker pull": errors.New("denied")}}
	p := createUnitProvider(runner)

	err := p.PullImage(context.Background(), "private/img")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private/img")
}

func TestIsRunningAndState(t *testing.T) {
	runner := &fakeRunner{outputs: map[string]string{
		"docker container inspect --format {{.State.Running}} lab-alice": "true\n",
		"docker container inspect --format status=":                       "status=exited exit=1 oom=false error=\n",
	}}
	p := createUnitProvider(runner)

	assert.True(t, p.IsRunning(context.Background(), "lab-alice"))
	state, err := p.State(context.Background(), "lab-alice")
	require.NoError(t, err)
	assert.Equal(t, "status=exited exit=1 oom=false error=", state)
}

func TestParsePublishedPorts(t *testing.T) {
	out := "127.0.0.1:30001->8080/tcp, :::30002->22/tcp\n" +
		"5432/tcp\n" +
		"0.0.0.0:40000-40002->9000-9002/tcp\n" +
		"\n"

	got := parsePublishedPorts(out)
	assert.Equal(t, map[int]bool{30001: true, 30002: true, 40000: true, 40001: true, 40002: true}, got)
}

func TestBuildRunArgs(t *testing.T) {
	spec := &provider.RunSpec{
		Name:        "web-alice",
		ImageName:   "labs/web:2",
		Hostname:    "web",
		Command:     []string{"/bin/bash", "-l"},
		WorkDir:     "/home/lab",
		User:        "lab",
		Interactive: true,
		Remove:      true,
		CPUShares:   512,
		Memory:      "512m",
		MemorySwap:  "1g",
		NetworkMode: "labnet",
		DNS:         []string{"9.9.9.9"},
		Ports:       []provider.PortMapping{{HostIP: "127.0.0.1", Host: 30001, Container: 8080}},
		Env:         []string{"TERM", "COLUMNS=120"},
		Mounts:      []string{"type=volume,src=lab,dst=/data"},
		Capabilities: []provider.Capability{
			{Name: "CHOWN", Add: true},
			{Name: "NET_RAW", Add: false},
		},
		Ulimits:         []provider.Ulimit{{Name: "nofile", Value: "1024:2048"}},
		PidsLimit:       100,
		NoNewPrivileges: true,
	}

	want := "run --rm --name web-alice --hostname web -it --cpu-shares 512 --memory 512m --memory-swap 1g " +
		"--network labnet --dns 9.9.9.9 -p 127.0.0.1:30001:8080/tcp --env TERM --env COLUMNS=120 " +
		"--mount type=volume,src=lab,dst=/data --workdir /home/lab --user lab " +
		"--security-opt no-new-privileges --pids-limit 100 --cap-add CHOWN --cap-drop NET_RAW " +
		"--ulimit nofile=1024:2048 labs/web:2 /bin/bash -l"
	assert.Equal(t, want, strings.Join(BuildRunArgs(spec), " "))
}

func TestBuildRunArgs_PersistentNonInteractive(t *testing.T) {
	args := BuildRunArgs(&provider.RunSpec{Name: "lab-bob", ImageName: "alpine"})
	assert.Equal(t, []string{"run", "--name", "lab-bob", "-i", "alpine"}, args)
}

func TestPublishSpec(t *testing.T) {
	assert.Equal(t, "30001:80/tcp", publishSpec(provider.PortMapping{Host: 30001, Container: 80}))
	assert.Equal(t, "[::1]:30001:80/tcp", publishSpec(provider.PortMapping{HostIP: "::1", Host: 30001, Container: 80}))
}

func TestExitStatus(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	code, err := exitStatus(exec.Command("sh", "-c", "exit 3").Run())
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	code, err = exitStatus(exec.Command("sh", "-c", "kill -TERM $$").Run())
	require.NoError(t, err)
	assert.Equal(t, 143, code)

	code, err = exitStatus(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	code, err = exitStatus(errors.New("exec: not found"))
	assert.Error(t, err)
	assert.Equal(t, -1, code)
}

func TestExecuteCommand_Timeout(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p := createUnitProvider(&fakeRunner{})
	p.binary = "sh"

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := p.executeCommand(ctx, []string{"-c", "sleep 5"}, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExecuteCommand_ExitCode(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	p := createUnitProvider(&fakeRunner{})
	p.binary = "sh"

	code, err := p.executeCommand(context.Background(), []string{"-c", "exit 127"}, false)
	require.NoError(t, err)
	assert.Equal(t, 127, code)
}
