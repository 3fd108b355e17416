package main

import (
	"github.com/karouf/trainbox/cmd"
)

// Version can be overridden at build time with -ldflags "-X main.Version=x.y.z"
var Version = "0.1.0"

func main() {
	cmd.Execute(Version)
}
