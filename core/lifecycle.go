package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/karouf/trainbox/config"
	"github.com/karouf/trainbox/internal/nat"
	"github.com/karouf/trainbox/internal/ports"
	"github.com/karouf/trainbox/internal/terminal"
	"github.com/karouf/trainbox/internal/util"
	"github.com/karouf/trainbox/provider"
	"github.com/karouf/trainbox/store"
	logutil "github.com/karouf/trainbox/util"
)

var lifecycleLogger = logutil.Log("lifecycle")

// defaultKillTimeout bounds the kill issued after a run times out
const defaultKillTimeout = 15 * time.Second

// State is a step of the launch state machine
type State int

const (
	StateInit State = iota
	StateImageResolved
	StateOptionsBuilt
	StateRunning
	StateExited
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateImageResolved:
		return "IMAGE_RESOLVED"
	case StateOptionsBuilt:
		return "OPTIONS_BUILT"
	case StateRunning:
		return "RUNNING"
	case StateExited:
		return "EXITED"
	default:
		return "UNKNOWN"
	}
}

// Firewall installs forwarding rules
type Firewall interface {
	Install(ctx context.Context, rule nat.Rule) (util.CleanupFunc, error)
	EnableLoopbackRouting(ctx context.Context, iface string) error
}

// PortAllocator picks a free host port
type PortAllocator interface {
	Allocate(ctx context.Context, start int) (int, error)
}

// Controller sequences launches and reattaches against one runtime
type Controller struct {
	Runtime  provider.Provider
	Store    store.Recorder // nil disables session recording
	Firewall Firewall
	Ports    PortAllocator

	// Debug turns firewall failures into aborts and failed exits into
	// diagnostics instead of errors
	Debug bool
	// AttachTimeout bounds reattached sessions; 0 means no limit
	AttachTimeout time.Duration
	KillTimeout   time.Duration

	// Out receives the status line; nil disables it
	Out         io.Writer
	Interactive func() bool
}

// NewController creates a controller with host firewall and port allocation
func NewController(rt provider.Provider, rec store.Recorder, debug bool) *Controller {
	return &Controller{
		Runtime:     rt,
		Store:       rec,
		Firewall:    nat.NewInstaller(util.ExecRunner{}),
		Ports:       ports.NewAllocator(rt.PublishedPorts),
		Debug:       debug,
		KillTimeout: defaultKillTimeout,
		Out:         os.Stdout,
		Interactive: terminal.IsTerminal,
	}
}

// Start launches a new session container and blocks until it exits
func (c *Controller) Start(ctx context.Context, sc SessionConfig) (*Result, error) {
	s, err := NewSession(sc)
	if err != nil {
		return nil, err
	}
	return c.drive(ctx, &freshLaunch{session: s, cfg: sc.Config})
}

// Attach resumes an existing container and blocks until it exits
func (c *Controller) Attach(ctx context.Context, containerName string) (*Result, error) {
	if containerName == "" {
		return nil, fmt.Errorf("%w: container name is required", ErrMisconfigured)
	}
	return c.drive(ctx, &reattach{container: containerName, id: newLaunchID()})
}

// launch is either a freshLaunch or a reattach
type launch interface {
	launchID() string
	containerName() string
	timeout() time.Duration
	// resolve checks everything that must hold before side effects
	resolve(ctx context.Context, c *Controller) error
	// buildOptions performs side effects, registering their inverses on stack
	buildOptions(ctx context.Context, c *Controller, stack *util.CleanupStack) error
	run(ctx context.Context, c *Controller) (int, error)
	result() *Result
}

func (c *Controller) drive(ctx context.Context, l launch) (*Result, error) {
	log := lifecycleLogger.With("launch", l.launchID()).With("container", l.containerName())
	state := StateInit
	advance := func(next State) {
		log.Debugf("State %s -> %s", state, next)
		state = next
	}

	var stack util.CleanupStack
	unwind := func() {
		if stack.Len() == 0 {
			return
		}
		log.Infof("Aborting in state %s, undoing %v", state, stack.Names())
		if err := stack.Unwind(context.WithoutCancel(ctx)); err != nil {
			log.Warningf("Compensation incomplete: %v", err)
		}
	}
	abort := func(err error) (*Result, error) {
		unwind()
		if errors.Is(ctx.Err(), context.Canceled) {
			// interrupted before the container started, e.g. during a pull
			log.Infof("Launch interrupted in state %s: %v", state, err)
			res := l.result()
			res.Class = ExitInterrupted
			res.Code = ExitStatusInterrupted
			return res, nil
		}
		return nil, err
	}

	if err := l.resolve(ctx, c); err != nil {
		return abort(err)
	}
	_, fresh := l.(*freshLaunch)
	if fresh {
		advance(StateImageResolved)
	}
	if err := l.buildOptions(ctx, c, &stack); err != nil {
		return abort(err)
	}
	if fresh {
		advance(StateOptionsBuilt)
	}

	runCtx := ctx
	if t := l.timeout(); t > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	advance(StateRunning)
	code, runErr := l.run(runCtx, c)
	advance(StateExited)

	res := l.result()
	res.Code = code
	res.Class = ClassifyExit(code, runErr)
	log.Debugf("Exit status %d classified as %s (err=%v)", code, res.Class, runErr)

	switch res.Class {
	case ExitTimeout:
		stack.Discard()
		c.killContainer(context.WithoutCancel(ctx), l.containerName())
		log.Infof("Session inactive, terminated after %s", l.timeout())
		c.printf("Session inactive, terminated\n")
		return res, nil
	case ExitFailed:
		if code == ExitStatusRuntimeFailure && runErr == nil {
			// the container never started; its record and rule would dangle
			unwind()
		} else {
			stack.Discard()
		}
		res.State = c.diagnose(context.WithoutCancel(ctx), l.containerName())
		if runErr != nil {
			log.Errorf("Run failed: %v", runErr)
		}
		if c.Debug {
			log.Warningf("Container exited with status %d: %s", code, res.State)
			c.printf("Container %s exited with status %d (%s)\n", l.containerName(), code, res.State)
			return res, nil
		}
		return res, &ExitError{Container: l.containerName(), Code: code, State: res.State}
	case ExitInterrupted:
		stack.Discard()
		if errors.Is(runErr, context.Canceled) {
			// the launcher was hung up or terminated; without it nothing
			// bounds the container's lifetime
			log.Infof("Launcher interrupted, stopping %s", l.containerName())
			c.killContainer(context.WithoutCancel(ctx), l.containerName())
		}
		return res, nil
	default:
		stack.Discard()
		return res, nil
	}
}

func (c *Controller) killContainer(ctx context.Context, name string) {
	timeout := c.KillTimeout
	if timeout <= 0 {
		timeout = defaultKillTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := c.Runtime.Kill(ctx, name); err != nil {
		lifecycleLogger.Debugf("Kill %s after timeout: %v", name, err)
	}
}

func (c *Controller) diagnose(ctx context.Context, name string) string {
	ctx, cancel := context.WithTimeout(ctx, defaultKillTimeout)
	defer cancel()
	state, err := c.Runtime.State(ctx, name)
	if err != nil {
		return "state unavailable: " + err.Error()
	}
	return state
}

func (c *Controller) printf(format string, args ...interface{}) {
	if c.Out != nil {
		fmt.Fprintf(c.Out, format, args...)
	}
}

func (c *Controller) interactive() bool {
	return c.Interactive != nil && c.Interactive()
}

func checkRuntime(ctx context.Context, rt provider.Provider) error {
	if err := rt.CheckPrerequisites(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRuntimeUnavailable, err)
	}
	return nil
}

// freshLaunch creates a new container for a session
type freshLaunch struct {
	session *Session
	cfg     *config.Config
	command []string
	spec    *provider.RunSpec
}

func (f *freshLaunch) launchID() string       { return f.session.ID }
func (f *freshLaunch) containerName() string  { return f.session.Container }
func (f *freshLaunch) timeout() time.Duration { return f.session.Timeout }

func (f *freshLaunch) result() *Result {
	return &Result{
		LaunchID:  f.session.ID,
		Container: f.session.Container,
		Ephemeral: f.session.Ephemeral(),
		HostPort:  f.session.HostPort,
	}
}

func (f *freshLaunch) resolve(ctx context.Context, c *Controller) error {
	if err := checkRuntime(ctx, c.Runtime); err != nil {
		return err
	}
	if err := f.cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}
	command, err := SplitCommand(f.cfg.Command)
	if err != nil {
		return err
	}
	f.command = command

	image := f.cfg.Image
	if c.Runtime.ImageExists(ctx, image) {
		lifecycleLogger.Debugf("Image %s present locally", image)
		return nil
	}
	lifecycleLogger.Infof("Image %s not found locally, pulling", image)

	var spin *logutil.Spinner
	if c.Out != nil && c.interactive() {
		spin = logutil.NewSpinner(c.Out, "Pulling "+image)
		spin.Start()
	}
	err = c.Runtime.PullImage(ctx, image)
	if spin != nil {
		if err != nil {
			spin.StopWithError("Failed to pull " + image)
		} else {
			spin.StopWithSuccess("Pulled " + image)
		}
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrImageUnavailable, image, err)
	}
	return nil
}

func (f *freshLaunch) buildOptions(ctx context.Context, c *Controller, stack *util.CleanupStack) error {
	s := f.session
	log := lifecycleLogger.With("launch", s.ID)

	if !s.Ephemeral() {
		f.recordSession(ctx, c, stack)
	}

	var mappings []provider.PortMapping
	if s.Forwarding() {
		mapping, err := f.forward(ctx, c, stack)
		if err != nil {
			return err
		}
		mappings = append(mappings, mapping)
	}

	caps := ResolveCapabilities(f.cfg.Security)
	limits := ResolveLimits(f.cfg.Security)
	log.Debugf("Capabilities enabled: %v, %d ulimits", caps.Enabled(), len(limits))

	f.spec = BuildRunOptions(s, f.cfg, LaunchOptions{
		Command:      f.command,
		Capabilities: caps,
		Limits:       limits,
		Ports:        mappings,
		Interactive:  c.interactive(),
	})
	return nil
}

// recordSession stores the session for later reattachment. Failures only
// mean the session cannot be found again.
func (f *freshLaunch) recordSession(ctx context.Context, c *Controller, stack *util.CleanupStack) {
	if c.Store == nil {
		return
	}
	s := f.session
	rec := store.Session{
		User:        s.User,
		Environment: s.Environment,
		Container:   s.Container,
		CreatedAt:   time.Now(),
	}
	inserted, err := c.Store.Record(ctx, rec)
	if err != nil {
		lifecycleLogger.Warningf("Failed to record session %s: %v", s.Container, err)
		return
	}
	if !inserted {
		// the record belongs to an earlier launch
		lifecycleLogger.Debugf("Session %s/%s already recorded", s.User, s.Environment)
		return
	}
	stack.Push("session record", func(ctx context.Context) error {
		return c.Store.Remove(ctx, s.User, s.Environment)
	})
}

// forward allocates the host port and installs the NAT rule
func (f *freshLaunch) forward(ctx context.Context, c *Controller, stack *util.CleanupStack) (provider.PortMapping, error) {
	s := f.session
	port, err := c.Ports.Allocate(ctx, f.cfg.PortRangeStart)
	if err != nil {
		return provider.PortMapping{}, fmt.Errorf("allocate host port: %w", err)
	}
	s.HostPort = port

	rule := nat.Rule{
		ClientAddr:    s.ClientAddr,
		Interface:     s.Interface,
		BindAddr:      s.BindAddress,
		HostPort:      port,
		ContainerPort: s.VirtualPort,
		Tag:           "trainbox:" + s.Container,
	}
	publish, err := rule.PublishSpec()
	if err != nil {
		return provider.PortMapping{}, fmt.Errorf("%w: %v", ErrMisconfigured, err)
	}
	lifecycleLogger.Infof("Forwarding %s to client %s", publish, s.ClientAddr)

	if nat.IsLoopback(s.BindAddress) {
		if err := c.Firewall.EnableLoopbackRouting(ctx, s.Interface); err != nil {
			lifecycleLogger.Warningf("Failed to enable loopback routing on %s: %v", s.Interface, err)
		}
	}

	undo, err := c.Firewall.Install(ctx, rule)
	if err != nil {
		if c.Debug {
			return provider.PortMapping{}, fmt.Errorf("%w: %v", ErrFirewall, err)
		}
		lifecycleLogger.Warningf("Failed to install forwarding rule for port %d: %v", port, err)
	} else {
		stack.Push("nat rule "+strconv.Itoa(port), undo)
	}

	return provider.PortMapping{HostIP: s.BindAddress, Host: port, Container: s.VirtualPort}, nil
}

func (f *freshLaunch) run(ctx context.Context, c *Controller) (int, error) {
	DisplayStatus(c.Out, c.Runtime.GetName(), f.session, f.spec)
	return c.Runtime.Run(ctx, f.spec)
}

// reattach resumes a container left by an earlier persistent launch
type reattach struct {
	container string
	id        string
	limit     time.Duration
}

func (r *reattach) launchID() string       { return r.id }
func (r *reattach) containerName() string  { return r.container }
func (r *reattach) timeout() time.Duration { return r.limit }

func (r *reattach) result() *Result {
	return &Result{LaunchID: r.id, Container: r.container}
}

func (r *reattach) resolve(ctx context.Context, c *Controller) error {
	if err := checkRuntime(ctx, c.Runtime); err != nil {
		return err
	}
	if !c.Runtime.Exists(ctx, r.container) {
		return fmt.Errorf("%w: %s", ErrNoSuchContainer, r.container)
	}
	r.limit = c.AttachTimeout
	return nil
}

func (r *reattach) buildOptions(context.Context, *Controller, *util.CleanupStack) error {
	return nil
}

func (r *reattach) run(ctx context.Context, c *Controller) (int, error) {
	lifecycleLogger.Infof("Reattaching to %s", r.container)
	return c.Runtime.Attach(ctx, r.container, c.interactive())
}
