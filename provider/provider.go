package provider

import "context"

// Provider is the interface for container runtime CLIs (Docker, Podman)
type Provider interface {
	GetName() string // "docker" or "podman"
	CheckPrerequisites(ctx context.Context) error

	// Images
	ImageExists(ctx context.Context, image string) bool
	PullImage(ctx context.Context, image string) error

	// Containers
	Exists(ctx context.Context, name string) bool
	IsRunning(ctx context.Context, name string) bool
	State(ctx context.Context, name string) (string, error)
	Kill(ctx context.Context, name string) error
	PublishedPorts(ctx context.Context) (map[int]bool, error)

	// Run starts a new container and blocks until it exits.
	// It returns the exit status; err is non-nil when the status could not
	// be obtained or ctx ended first (wrapping ctx.Err()).
	Run(ctx context.Context, spec *RunSpec) (int, error)
	// Attach resumes an existing container and blocks until it exits
	Attach(ctx context.Context, name string, interactive bool) (int, error)
}

// RunSpec specifies how to run a container
type RunSpec struct {
	Name        string
	ImageName   string
	Hostname    string
	Command     []string
	WorkDir     string
	User        string
	Interactive bool
	Remove      bool // ephemeral: remove on exit

	CPUShares   int
	Memory      string
	MemorySwap  string
	NetworkMode string
	DNS         []string

	Ports  []PortMapping
	Env    []string // NAME (pass-through) or NAME=value
	Mounts []string // --mount specs

	Capabilities    []Capability
	Ulimits         []Ulimit
	PidsLimit       int
	NoNewPrivileges bool
}

// Capability is one ordered capability directive
type Capability struct {
	Name string // without CAP_ prefix, or "ALL"
	Add  bool
}

// Ulimit is one resolved ulimit option
type Ulimit struct {
	Name  string
	Value string // "soft[:hard]"
}

// PortMapping represents a port mapping
type PortMapping struct {
	HostIP    string
	Host      int
	Container int
}
