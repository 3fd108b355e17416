package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/karouf/trainbox/core"
)

// NewCmdAttach creates the attach command
func NewCmdAttach(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "attach [container]",
		Short: "Reattach to a kept session",
		Long: `Reattach to a container left by an earlier session with removal policy "keep".
Without an argument the container is looked up by --env and the current user.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			st, err := openStore(cfg)
			if err != nil {
				cmdLogger.Warningf("Session store unavailable: %v", err)
				st = nil
			}
			if st != nil {
				defer st.Close()
			}

			var container string
			if len(args) == 1 {
				container = args[0]
			} else {
				if opts.envName == "" {
					return errNoEnvironment
				}
				name, err := currentUser()
				if err != nil {
					return err
				}
				container = core.ContainerName(opts.envName, name)
				if st != nil {
					sess, err := st.Find(cmd.Context(), name, opts.envName)
					if err != nil {
						cmdLogger.Warningf("Session lookup failed: %v", err)
					} else if sess == nil {
						return fmt.Errorf("%w: no kept session for %s in %s", core.ErrNoSuchContainer, name, opts.envName)
					} else {
						container = sess.Container
					}
				}
			}

			ctrl, err := newController(cfg, st)
			if err != nil {
				return err
			}
			ctrl.Out = cmd.OutOrStdout()

			_, err = ctrl.Attach(cmd.Context(), container)
			return err
		},
	}
}
