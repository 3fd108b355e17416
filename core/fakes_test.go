package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/karouf/trainbox/config"
	"github.com/karouf/trainbox/config/security"
	"github.com/karouf/trainbox/internal/nat"
	"github.com/karouf/trainbox/internal/util"
	"github.com/karouf/trainbox/provider"
	"github.com/karouf/trainbox/store"
)

// fakeRuntime records calls and returns canned results
type fakeRuntime struct {
	mu sync.Mutex

	prereqErr   error
	hasImage    bool
	pullErr     error
	exists      bool
	running     bool
	state       string
	runCode     int
	runErr      error
	blockOnRun  bool // Run waits for ctx to end
	blockOnPull bool // PullImage waits for ctx to end

	calls    []string
	lastSpec *provider.RunSpec
	killed   []string
	attached []string
}

func (f *fakeRuntime) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeRuntime) called(call string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c == call {
			return true
		}
	}
	return false
}

func (f *fakeRuntime) GetName() string { return "fake" }

func (f *fakeRuntime) CheckPrerequisites(ctx context.Context) error {
	f.record("prereq")
	return f.prereqErr
}

func (f *fakeRuntime) ImageExists(ctx context.Context, image string) bool {
	f.record("image-exists")
	return f.hasImage
}

func (f *fakeRuntime) PullImage(ctx context.Context, image string) error {
	f.record("pull")
	if f.blockOnPull {
		<-ctx.Done()
		return ctx.Err()
	}
	return f.pullErr
}

func (f *fakeRuntime) Exists(ctx context.Context, name string) bool {
	f.record("exists")
	return f.exists
}

func (f *fakeRuntime) IsRunning(ctx context.Context, name string) bool {
	return f.running
}

func (f *fakeRuntime) State(ctx context.Context, name string) (string, error) {
	f.record("state")
	if f.state == "" {
		return "", errors.New("no state")
	}
	return f.state, nil
}

func (f *fakeRuntime) Kill(ctx context.Context, name string) error {
	f.record("kill")
	f.mu.Lock()
	f.killed = append(f.killed, name)
	f.mu.Unlock()
	return nil
}

func (f *fakeRuntime) PublishedPorts(ctx context.Context) (map[int]bool, error) {
	return map[int]bool{}, nil
}

func (f *fakeRuntime) Run(ctx context.Context, spec *provider.RunSpec) (int, error) {
	f.record("run")
	f.mu.Lock()
	f.lastSpec = spec
	f.mu.Unlock()
	if f.blockOnRun {
		<-ctx.Done()
		return -1, ctx.Err()
	}
	return f.runCode, f.runErr
}

func (f *fakeRuntime) Attach(ctx context.Context, name string, interactive bool) (int, error) {
	f.record("attach")
	f.mu.Lock()
	f.attached = append(f.attached, name)
	f.mu.Unlock()
	if f.blockOnRun {
		<-ctx.Done()
		return -1, ctx.Err()
	}
	return f.runCode, f.runErr
}

// fakeStore is an in-memory store.Recorder
type fakeStore struct {
	err      error
	records  []store.Session
	removals []string
}

func (s *fakeStore) Record(ctx context.Context, sess store.Session) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.find(sess.User, sess.Environment) >= 0 {
		return false, nil
	}
	s.records = append(s.records, sess)
	return true, nil
}

func (s *fakeStore) Remove(ctx context.Context, user, environment string) error {
	s.removals = append(s.removals, user+"/"+environment)
	if i := s.find(user, environment); i >= 0 {
		s.records = append(s.records[:i], s.records[i+1:]...)
	}
	return nil
}

func (s *fakeStore) find(user, environment string) int {
	for i, r := range s.records {
		if r.User == user && r.Environment == environment {
			return i
		}
	}
	return -1
}

// fakeFirewall records installed and removed rules
type fakeFirewall struct {
	installErr  error
	loopbackErr error
	installed   []nat.Rule
	removed     []nat.Rule
	loopback    []string
}

func (f *fakeFirewall) Install(ctx context.Context, rule nat.Rule) (util.CleanupFunc, error) {
	if f.installErr != nil {
		return nil, f.installErr
	}
	f.installed = append(f.installed, rule)
	return func(ctx context.Context) error {
		f.removed = append(f.removed, rule)
		return nil
	}, nil
}

func (f *fakeFirewall) EnableLoopbackRouting(ctx context.Context, iface string) error {
	f.loopback = append(f.loopback, iface)
	return f.loopbackErr
}

// fakePorts returns a fixed port
type fakePorts struct {
	port  int
	err   error
	calls int
}

func (p *fakePorts) Allocate(ctx context.Context, start int) (int, error) {
	p.calls++
	if p.err != nil {
		return 0, p.err
	}
	return p.port, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Runtime:        "docker",
		Environment:    "shell",
		Image:          "training/shell:latest",
		Removal:        config.RemovalKeep,
		Timeout:        time.Hour,
		PortRangeStart: 30000,
		BindAddress:    "127.0.0.1",
		Interface:      "eth0",
		Security:       security.DefaultConfig(),
	}
}

type testHarness struct {
	rt       *fakeRuntime
	store    *fakeStore
	firewall *fakeFirewall
	ports    *fakePorts
	ctrl     *Controller
}

func newHarness() *testHarness {
	h := &testHarness{
		rt:       &fakeRuntime{hasImage: true, state: "status=exited exit=1 oom=false"},
		store:    &fakeStore{},
		firewall: &fakeFirewall{},
		ports:    &fakePorts{port: 30002},
	}
	h.ctrl = &Controller{
		Runtime:     h.rt,
		Store:       h.store,
		Firewall:    h.firewall,
		Ports:       h.ports,
		KillTimeout: time.Second,
	}
	return h
}

func (h *testHarness) start(cfg *config.Config) (*Result, error) {
	return h.ctrl.Start(context.Background(), SessionConfig{
		User:        "alice",
		Environment: "shell",
		ClientAddr:  "203.0.113.7",
		Config:      cfg,
	})
}
