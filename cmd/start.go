package cmd

import (
	"github.com/spf13/cobra"

	"github.com/karouf/trainbox/core"
)

// NewCmdStart creates the start command
func NewCmdStart(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start a fresh session for an environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.envName == "" {
				return errNoEnvironment
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			name, err := currentUser()
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				// sessions just won't be reattachable
				cmdLogger.Warningf("Session store unavailable: %v", err)
				st = nil
			}
			if st != nil {
				defer st.Close()
			}

			ctrl, err := newController(cfg, st)
			if err != nil {
				return err
			}
			ctrl.Out = cmd.OutOrStdout()

			res, err := ctrl.Start(cmd.Context(), core.SessionConfig{
				User:        name,
				Environment: opts.envName,
				ClientAddr:  clientAddress(),
				Config:      cfg,
			})
			if res != nil {
				cmdLogger.Debugf("Session %s finished: %s (status %d)", res.Container, res.Class, res.Code)
			}
			return err
		},
	}
}
