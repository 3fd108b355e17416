package core

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/karouf/trainbox/internal/terminal"
	"github.com/karouf/trainbox/util"
)

var envLogger = util.Log("env")

// BuildEnvironment creates the environment variables for the container
func BuildEnvironment(s *Session, passthrough []string, interactive bool) []string {
	env := make(map[string]string)

	// Add pass-through variables from the host
	addPassthroughEnvVars(env, passthrough)

	// Add terminal environment variables
	if interactive {
		addTerminalEnvVars(env)
	}

	// Session metadata
	env["TRAINBOX_ENVIRONMENT"] = s.Environment
	env["TRAINBOX_SESSION_ID"] = s.ID
	if s.HostPort > 0 {
		env["TRAINBOX_HOST_PORT"] = strconv.Itoa(s.HostPort)
	}

	return envList(env)
}

// addPassthroughEnvVars copies each named host variable that is set.
// "NAME=default" supplies a value for hosts without NAME.
func addPassthroughEnvVars(env map[string]string, names []string) {
	for _, spec := range names {
		name, defaultValue := parseEnvVarSpec(spec)
		if name == "" {
			continue
		}
		if value, ok := os.LookupEnv(name); ok {
			env[name] = value
		} else if defaultValue != "" {
			env[name] = defaultValue
		} else {
			envLogger.Debugf("Pass-through variable %s is not set on the host", name)
		}
	}
}

// parseEnvVarSpec splits "NAME" or "NAME=default"
func parseEnvVarSpec(spec string) (name, defaultValue string) {
	if idx := strings.Index(spec, "="); idx > 0 {
		return strings.TrimSpace(spec[:idx]), spec[idx+1:]
	}
	return strings.TrimSpace(spec), ""
}

// addTerminalEnvVars adds terminal type and size
func addTerminalEnvVars(env map[string]string) {
	if term := os.Getenv("TERM"); term != "" {
		env["TERM"] = term
	}
	cols, lines := terminal.GetTerminalSize()
	env["COLUMNS"] = fmt.Sprintf("%d", cols)
	env["LINES"] = fmt.Sprintf("%d", lines)
}

func envList(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	list := make([]string, 0, len(keys))
	for _, k := range keys {
		list = append(list, k+"="+env[k])
	}
	return list
}
