package nat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	calls []string
	fail  map[string]error
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, line)
	for prefix, err := range f.fail {
		if strings.HasPrefix(line, prefix) {
			return nil, err
		}
	}
	return nil, nil
}

func testRule() Rule {
	return Rule{
		ClientAddr:    "203.0.113.7",
		Interface:     "eth0",
		BindAddr:      "127.0.0.1",
		HostPort:      30001,
		ContainerPort: 8080,
		Tag:           "trainbox:web-alice",
	}
}

func TestRule_AddArgs(t *testing.T) {
	got := strings.Join(testRule().AddArgs(), " ")
	want := "-t nat -A PREROUTING -s 203.0.113.7 -i eth0 -p tcp --dport 30001 " +
		"-m comment --comment trainbox:web-alice -j DNAT --to-destination 127.0.0.1:30001"
	assert.Equal(t, want, got)
}

func TestRule_DeleteMirrorsAdd(t *testing.T) {
	r := testRule()
	add := r.AddArgs()
	del := r.DeleteArgs()
	require.Equal(t, len(add), len(del))
	assert.Equal(t, "-D", del[2])
	assert.Equal(t, add[3:], del[3:])
}

func TestRule_IPv6Destination(t *testing.T) {
	r := testRule()
	r.BindAddr = "::1"
	r.ClientAddr = "2001:db8::7"
	args := r.AddArgs()
	assert.Equal(t, "[::1]:30001", args[len(args)-1])
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Rule)
	}{
		{"bad client", func(r *Rule) { r.ClientAddr = "" }},
		{"bad bind", func(r *Rule) { r.BindAddr = "localhost" }},
		{"no interface", func(r *Rule) { r.Interface = "" }},
		{"bad host port", func(r *Rule) { r.HostPort = 0 }},
		{"host port above range", func(r *Rule) { r.HostPort = 70000 }},
		{"bad container port", func(r *Rule) { r.ContainerPort = 70000 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := testRule()
			tt.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
	assert.NoError(t, testRule().Validate())
}

func TestRule_PublishSpec(t *testing.T) {
	spec, err := testRule().PublishSpec()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:30001:8080/tcp", spec)
}

func TestInstaller_InstallAndUndo(t *testing.T) {
	runner := &fakeRunner{}
	inst := NewInstaller(runner)

	undo, err := inst.Install(context.Background(), testRule())
	require.NoError(t, err)
	require.NotNil(t, undo)
	require.Len(t, runner.calls, 1)
	assert.True(t, strings.HasPrefix(runner.calls[0], "iptables -t nat -A PREROUTING"))

	require.NoError(t, undo(context.Background()))
	require.Len(t, runner.calls, 2)
	assert.True(t, strings.HasPrefix(runner.calls[1], "iptables -t nat -D PREROUTING"))
}

func TestInstaller_InstallFailure(t *testing.T) {
	runner := &fakeRunner{fail: map[string]error{"iptables": errors.New("permission denied")}}
	inst := NewInstaller(runner)

	undo, err := inst.Install(context.Background(), testRule())
	assert.Error(t, err)
	assert.Nil(t, undo)
}

func TestInstaller_InvalidRuleNeverRuns(t *testing.T) {
	runner := &fakeRunner{}
	r := testRule()
	r.ClientAddr = "not-an-ip"

	_, err := NewInstaller(runner).Install(context.Background(), r)
	assert.Error(t, err)
	assert.Empty(t, runner.calls)
}

func TestInstaller_EnableLoopbackRouting(t *testing.T) {
	runner := &fakeRunner{}
	require.NoError(t, NewInstaller(runner).EnableLoopbackRouting(context.Background(), "eth0"))
	assert.Equal(t, []string{"sysctl -w net.ipv4.conf.eth0.route_localnet=1"}, runner.calls)

	assert.Error(t, NewInstaller(runner).EnableLoopbackRouting(context.Background(), ""))
}

func TestIsLoopback(t *testing.T) {
	assert.True(t, IsLoopback("127.0.0.1"))
	assert.True(t, IsLoopback("127.1.2.3"))
	assert.True(t, IsLoopback("::1"))
	assert.False(t, IsLoopback("0.0.0.0"))
	assert.False(t, IsLoopback("localhost"))
}
