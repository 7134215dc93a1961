package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/example/boya-scheduler/internal/attempts"
	"github.com/example/boya-scheduler/internal/errs"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "history",
		Short: "List recorded select and drop attempts (requires DATABASE_URL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(nil)

			if a.db == nil {
				return errs.New("attempt history needs a reachable DATABASE_URL")
			}
			list, err := attempts.NewRepo(a.db).ListRecent(ctx, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tACTION\tCOURSE\tOUTCOME\tWAITED\tRUN\tREASON")
			for _, at := range list {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t%s\t%s\n",
					at.AttemptedAt.In(a.clock.Location()).Format("2006-01-02 15:04:05"),
					at.Action, at.OfferingID, at.Outcome, at.Waited, at.RunID.String()[:8], at.Reason,
				)
			}
			return tw.Flush()
		},
	}

	c.Flags().IntVar(&limit, "limit", 20, "how many attempts to show")
	return c
}
