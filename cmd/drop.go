package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/boya-scheduler/internal/errs"
)

func newDropCmd() *cobra.Command {
	var id int64

	c := &cobra.Command{
		Use:   "drop",
		Short: "Drop a reserved course by ID",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			rc := a.runContext()
			defer a.close(rc)

			if _, err := a.orchestrator().Drop(ctx, rc, id); err != nil {
				return errs.Wrap(err, "drop")
			}
			info(cmd.OutOrStdout(), "Drop successfully")
			return nil
		},
	}

	c.Flags().Int64VarP(&id, "id", "i", 0, "course ID")
	_ = c.MarkFlagRequired("id")
	return c
}
