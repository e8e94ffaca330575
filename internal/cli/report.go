package cli

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"sparksched/internal/trace"
)

func newReportCmd(opts *options) *cobra.Command {
	var list bool
	var limit int

	cmd := &cobra.Command{
		Use:   "report [run-id]",
		Short: "Summarize a stored run (the latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := opts.requireTraceDB()
			if err != nil {
				return err
			}
			st, err := trace.NewStore(path, opts.logger)
			if err != nil {
				return err
			}
			defer st.Close()
			ctx := cmd.Context()
			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate trace db: %w", err)
			}
			w := cmd.OutOrStdout()

			if list {
				runs, err := st.ListRuns(ctx, limit)
				if err != nil {
					return fmt.Errorf("list runs: %w", err)
				}
				printRuns(w, runs)
				return nil
			}

			var run *trace.Run
			if len(args) == 1 {
				run, err = st.GetRun(ctx, args[0])
			} else {
				run, err = st.LatestRun(ctx)
			}
			if err != nil {
				return err
			}
			sum, err := st.Summary(ctx, run.ID)
			if err != nil {
				return fmt.Errorf("summarize %s: %w", run.ID, err)
			}
			printReport(w, run, sum)
			return nil
		},
	}

	cmd.Flags().BoolVar(&list, "list", false, "List stored runs instead")
	cmd.Flags().IntVar(&limit, "limit", 20, "Runs to list")
	return cmd
}

func printRuns(w io.Writer, runs []trace.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	fmt.Fprintf(w, "%-40s  %10s  %10s  %s\n", "ID", "TICKS", "SWITCHES", "STARTED")
	fmt.Fprintf(w, "%-40s  %10s  %10s  %s\n", "--", "-----", "--------", "-------")
	for _, r := range runs {
		fmt.Fprintf(w, "%-40s  %10s  %10s  %s\n",
			r.ID, humanize.Comma(int64(r.Ticks)), humanize.Comma(int64(r.Stats.Switches)), humanize.Time(r.StartedAt))
	}
}

func printReport(w io.Writer, run *trace.Run, sum []trace.ThreadSummary) {
	fmt.Fprintf(w, "%s (%s, started %s)\n", run.ID, run.Version, humanize.Time(run.StartedAt))
	fmt.Fprintf(w, "quantum %v  tick %v  ticks %s  switches %s  postponed %s  reaped %s\n\n",
		run.Quantum, run.Tick, humanize.Comma(int64(run.Ticks)), humanize.Comma(int64(run.Stats.Switches)),
		humanize.Comma(int64(run.Stats.Postponed)), humanize.Comma(int64(run.Stats.Reaped)))

	fmt.Fprintf(w, "%-5s  %-12s  %10s  %8s  %8s  %s\n", "TID", "NAME", "DISPATCHES", "BLOCKS", "WAKES", "EXITED")
	fmt.Fprintf(w, "%-5s  %-12s  %10s  %8s  %8s  %s\n", "---", "----", "----------", "------", "-----", "------")
	for _, t := range sum {
		exited := "no"
		if t.Exited {
			exited = "yes"
		}
		fmt.Fprintf(w, "%-5d  %-12s  %10s  %8s  %8s  %s\n", t.TID, t.Thread,
			humanize.Comma(int64(t.Dispatches)), humanize.Comma(int64(t.Blocks)), humanize.Comma(int64(t.Wakes)), exited)
	}
}
