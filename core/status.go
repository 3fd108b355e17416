package core

import (
	"fmt"
	"io"
	"strings"

	"github.com/karouf/trainbox/provider"
)

// FormatStatus formats the status line for a session about to run
func FormatStatus(runtime string, s *Session, spec *provider.RunSpec) string {
	mode := "persistent"
	if s.Ephemeral() {
		mode = "ephemeral"
	}
	status := fmt.Sprintf("%s | %s | %s | %s", runtime, s.Container, spec.ImageName, mode)

	if len(spec.Ports) > 0 {
		var ports []string
		for _, p := range spec.Ports {
			ports = append(ports, fmt.Sprintf("%d->%d", p.Host, p.Container))
		}
		status += " | Ports:" + strings.Join(ports, ",")
	}
	if s.Timeout > 0 {
		status += " | Timeout:" + s.Timeout.String()
	}
	return status
}

// DisplayStatus prints the status line for the current session
func DisplayStatus(w io.Writer, runtime string, s *Session, spec *provider.RunSpec) {
	if w == nil {
		return
	}
	fmt.Fprintf(w, "✓ %s\n", FormatStatus(runtime, s, spec))
}
