package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/karouf/trainbox/store"
)

// NewCmdSessions creates the sessions command
func NewCmdSessions(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List kept sessions for the current user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if cfg.StorePath == "" {
				return fmt.Errorf("no session store configured")
			}
			name, err := currentUser()
			if err != nil {
				return err
			}

			st, err := store.Open(cfg.StorePath)
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.List(cmd.Context(), name)
			if err != nil {
				return err
			}
			printSessions(cmd.OutOrStdout(), sessions)
			return nil
		},
	}
}

func printSessions(w io.Writer, sessions []store.Session) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No kept sessions")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ENVIRONMENT\tCONTAINER\tCREATED")
	for _, s := range sessions {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Environment, s.Container, s.CreatedAt.Format(time.RFC3339))
	}
	tw.Flush()
}
