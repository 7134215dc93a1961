package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/boya-scheduler/internal/course"
	"github.com/example/boya-scheduler/internal/errs"
)

func newQueryCmd() *cobra.Command {
	var all bool

	c := &cobra.Command{
		Use:   "query",
		Short: "List selectable courses and reserve one by ID when its window opens",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			rc := a.runContext()
			defer a.close(rc)

			out := cmd.OutOrStdout()
			o := a.orchestrator()
			o.OnWait = func(wait time.Duration, opensAt time.Time) {
				info(out, "Waiting for %d seconds (opens at %s)", int(wait/time.Second), opensAt.In(a.clock.Location()).Format("2006-01-02 15:04:05"))
			}
			chooser := &tableChooser{in: cmd.InOrStdin(), out: out, loc: a.clock.Location()}

			if _, err := o.Select(ctx, rc, all, chooser); err != nil {
				return errs.Wrap(err, "select")
			}
			info(out, "Select successfully")
			return nil
		},
	}

	c.Flags().BoolVarP(&all, "all", "a", false, "show every course, not only selectable ones")
	return c
}

// tableChooser prints the offerings and reads one id from in.
type tableChooser struct {
	in  io.Reader
	out io.Writer
	loc *time.Location
}

func (t *tableChooser) Choose(ctx context.Context, offerings []course.Offering) (string, error) {
	if err := renderOfferings(t.out, offerings, t.loc); err != nil {
		return "", err
	}
	fmt.Fprint(t.out, "Type ID to select course: ")
	line, err := readLine(ctx, t.in)
	if ctx.Err() != nil {
		fmt.Fprintln(t.out)
	}
	return line, err
}

const shortTime = "01-02 15:04"

func renderOfferings(w io.Writer, offerings []course.Offering, loc *time.Location) error {
	if loc == nil {
		loc = time.Local
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTEACHER\tCAMPUS\tPOSITION\tSEATS\tSELECTION\tCOURSE")
	for _, o := range offerings {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			o.ID, o.Name, o.Teacher, o.Campus, o.Position,
			o.Capacity.Current, o.Capacity.Max,
			span(o.Window.Open, o.Window.Close, loc),
			span(o.Starts, o.Ends, loc),
		)
	}
	return tw.Flush()
}

func span(from, to time.Time, loc *time.Location) string {
	f := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.In(loc).Format(shortTime)
	}
	return f(from) + " ~ " + f(to)
}

// readLine returns the next line of in without its line ending. It gives up
// as soon as ctx is done; the pending read is abandoned.
func readLine(ctx context.Context, in io.Reader) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			ch <- result{err: err}
			return
		}
		ch <- result{line: strings.TrimRight(line, "\r\n")}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		return r.line, r.err
	}
}
