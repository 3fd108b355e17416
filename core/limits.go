package core

import (
	"strings"

	units "github.com/docker/go-units"

	"github.com/karouf/trainbox/config/security"
	"github.com/karouf/trainbox/provider"
	"github.com/karouf/trainbox/util"
)

var limitsLogger = util.Log("limits")

// Ulimits lists the resource limits the resolver knows, in emission order
var Ulimits = []string{
	"core",
	"cpu",
	"data",
	"fsize",
	"locks",
	"memlock",
	"msgqueue",
	"nice",
	"nofile",
	"nproc",
	"rss",
	"rtprio",
	"rttime",
	"sigpending",
	"stack",
}

// LimitSet is an ordered list of ulimit options
type LimitSet []provider.Ulimit

// Args renders the set as runtime flags
func (s LimitSet) Args() []string {
	args := make([]string, 0, len(s)*2)
	for _, l := range s {
		args = append(args, "--ulimit", l.Name+"="+l.Value)
	}
	return args
}

// ResolveLimits returns one option per configured ulimit.
// Absent and "disabled" entries fall back to the runtime default, as do
// values the runtime would reject. Names outside Ulimits are ignored.
func ResolveLimits(cfg security.Config) LimitSet {
	var set LimitSet
	for _, name := range Ulimits {
		value, ok := cfg.Ulimits[name]
		value = strings.TrimSpace(value)
		if !ok || value == "" || strings.EqualFold(value, security.UlimitDisabled) {
			continue
		}
		if _, err := units.ParseUlimit(name + "=" + value); err != nil {
			limitsLogger.Warningf("Skipping ulimit %s: %v", name, err)
			continue
		}
		set = append(set, provider.Ulimit{Name: name, Value: value})
	}
	return set
}
