package ports

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/karouf/trainbox/util"
)

const MaxPort = 65535

var portsLogger = util.Log("ports")

// procNetFiles lists the kernel socket tables scanned for listeners
var procNetFiles = []string{"/proc/net/tcp", "/proc/net/tcp6"}

// tcpListen is the socket state code for LISTEN in /proc/net/tcp
const tcpListen = "0A"

// BoundPortsFunc reports host ports currently in use
type BoundPortsFunc func(ctx context.Context) (map[int]bool, error)

// IsPortAvailable checks if a port is available for binding
func IsPortAvailable(port int) bool {
	addr := fmt.Sprintf("localhost:%d", port)
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return true
	}
	conn.Close()
	return false
}

// FirstFree returns the smallest port >= start that is not in bound
func FirstFree(start int, bound map[int]bool) (int, error) {
	if start < 1 || start > MaxPort {
		return 0, fmt.Errorf("invalid start port %d", start)
	}
	for port := start; port <= MaxPort; port++ {
		if !bound[port] {
			return port, nil
		}
	}
	return 0, fmt.Errorf("no free port at or above %d", start)
}

// ListeningPorts returns TCP ports with a listening socket on the host
func ListeningPorts(ctx context.Context) (map[int]bool, error) {
	bound := make(map[int]bool)
	var errs []error
	read := 0
	for _, path := range procNetFiles {
		f, err := os.Open(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		err = parseProcNet(f, bound)
		f.Close()
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		read++
	}
	if read == 0 {
		return nil, errors.Join(errs...)
	}
	return bound, nil
}

// parseProcNet adds the local ports of LISTEN sockets in a /proc/net/tcp table to bound
func parseProcNet(r io.Reader, bound map[int]bool) error {
	scanner := bufio.NewScanner(r)
	first := true
	for scanner.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 || fields[3] != tcpListen {
			continue
		}
		idx := strings.LastIndex(fields[1], ":")
		if idx < 0 {
			continue
		}
		port, err := strconv.ParseUint(fields[1][idx+1:], 16, 16)
		if err != nil {
			continue
		}
		bound[int(port)] = true
	}
	return scanner.Err()
}

// Allocator picks host ports for forwarded sessions.
//
// The result is advisory: nothing is reserved between Allocate and the
// runtime's bind, so a concurrent launch can still take the same port.
type Allocator struct {
	Sources []BoundPortsFunc
	// Probe is used for candidates when every source fails
	Probe func(port int) bool
}

// NewAllocator returns an allocator over the host socket table plus any
// extra sources, such as ports the container runtime already publishes
func NewAllocator(extra ...BoundPortsFunc) *Allocator {
	return &Allocator{
		Sources: append([]BoundPortsFunc{ListeningPorts}, extra...),
		Probe:   IsPortAvailable,
	}
}

// Allocate returns the smallest port >= start not currently bound
func (a *Allocator) Allocate(ctx context.Context, start int) (int, error) {
	bound := make(map[int]bool)
	succeeded := 0
	for _, src := range a.Sources {
		ports, err := src(ctx)
		if err != nil {
			portsLogger.Warningf("Bound port query failed: %v", err)
			continue
		}
		succeeded++
		for p := range ports {
			bound[p] = true
		}
	}

	if succeeded == 0 && a.Probe != nil {
		portsLogger.Debug("No bound port source available, probing candidates")
		if start < 1 || start > MaxPort {
			return 0, fmt.Errorf("invalid start port %d", start)
		}
		for port := start; port <= MaxPort; port++ {
			if a.Probe(port) {
				return port, nil
			}
		}
		return 0, fmt.Errorf("no free port at or above %d", start)
	}

	port, err := FirstFree(start, bound)
	if err != nil {
		return 0, err
	}
	portsLogger.Debugf("Allocated host port %d (start %d, %d ports bound)", port, start, len(bound))
	return port, nil
}
