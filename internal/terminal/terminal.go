//go:build unix

// Package terminal inspects the controlling terminal of the launcher.
package terminal

import (
	"golang.org/x/sys/unix"
)

// Fallback size used when stdin is not a terminal
const (
	DefaultColumns = 80
	DefaultLines   = 24
)

// IsTerminal reports whether stdin and stdout are both terminals,
// which decides between -it and -i for the runtime
func IsTerminal() bool {
	return isatty(0) && isatty(1)
}

func isatty(fd int) bool {
	_, err := unix.IoctlGetWinsize(fd, unix.TIOCGWINSZ)
	return err == nil
}

// GetTerminalSize returns the terminal dimensions (columns, lines)
func GetTerminalSize() (int, int) {
	ws, err := unix.IoctlGetWinsize(0, unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 || ws.Row == 0 {
		return DefaultColumns, DefaultLines
	}
	return int(ws.Col), int(ws.Row)
}
