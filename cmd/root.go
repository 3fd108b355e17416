// Package cmd implements the trainbox command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/karouf/trainbox/config"
	"github.com/karouf/trainbox/util"
)

var cmdLogger = util.Log("cmd")

// globalOptions are the persistent flags shared by every subcommand
type globalOptions struct {
	configPath string
	envName    string
	debug      bool
}

// NewCmdRoot creates the root command
func NewCmdRoot(version string) *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "trainbox",
		Short: "Launch isolated training environments in containers",
		Long: `trainbox starts a container for a training environment and attaches the
current terminal to it.

  trainbox start --env web     # fresh session, forwarded if the environment has a virtual port
  trainbox attach --env shell  # resume a kept session
  trainbox sessions            # list kept sessions`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default ~/.trainbox/config.yaml)")
	cmd.PersistentFlags().StringVarP(&opts.envName, "env", "e", os.Getenv("TRAINBOX_ENV"), "Environment name")
	cmd.PersistentFlags().BoolVarP(&opts.debug, "debug", "D", false, "Enable debug logging and strict failure handling")

	cmd.AddCommand(NewCmdStart(opts))
	cmd.AddCommand(NewCmdAttach(opts))
	cmd.AddCommand(NewCmdSessions(opts))

	return cmd
}

// shutdownSignals cancel the running command. SIGHUP arrives when the SSH
// session drops.
var shutdownSignals = []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP}

// Execute runs the CLI and exits with its status
func Execute(version string) {
	ctx, stop := signal.NotifyContext(context.Background(), shutdownSignals...)
	defer stop()

	root := NewCmdRoot(version)
	err := root.ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(os.Stderr, err))
}

// exitCode prints a one-line message for fatal errors and returns the process status
func exitCode(w io.Writer, err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintf(w, "trainbox: %v\n", err)
	return 1
}

// load resolves configuration and initializes logging from it
func (o *globalOptions) load() (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath, o.envName)
	if err != nil {
		return nil, err
	}
	if o.debug {
		cfg.Debug = true
	}

	level := cfg.LogLevel
	if cfg.Debug {
		level = "debug"
	}
	if err := util.InitLogger(util.LogOptions{
		Level:      level,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSize,
		MaxBackups: cfg.LogBackups,
	}); err != nil {
		// console logging still works
		cmdLogger.Warningf("File logging unavailable: %v", err)
	}
	cmdLogger.Debugf("Loaded configuration: runtime=%s env=%s image=%s", cfg.Runtime, cfg.Environment, cfg.Image)
	return cfg, nil
}
