package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"sparksched/app"
	"sparksched/internal/buildinfo"
	"sparksched/internal/config"
	"sparksched/internal/trace"
)

func newRunCmd(opts *options) *cobra.Command {
	var ticks uint64
	var hz int
	var quantum time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the workload headless and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.cfg
			if cmd.Flags().Changed("ticks") {
				cfg.Ticks = ticks
			}
			if cmd.Flags().Changed("hz") {
				cfg.Hz = hz
			}
			if cmd.Flags().Changed("quantum") {
				cfg.Quantum = config.Duration(quantum)
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			res, err := app.RunHeadless(ctx, cfg, opts.logger)
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			return finish(cmd.Context(), cmd.OutOrStdout(), opts, cfg, res)
		},
	}

	cmd.Flags().Uint64Var(&ticks, "ticks", 0, "Stop after N timer ticks (0 = until interrupted)")
	cmd.Flags().IntVar(&hz, "hz", 100, "Clock steps per second")
	cmd.Flags().DurationVar(&quantum, "quantum", 20*time.Millisecond, "Normal-priority time slice")
	return cmd
}

// finish prints the run summary and stores the trace when a database is
// configured.
func finish(ctx context.Context, w io.Writer, opts *options, cfg config.Config, res *app.Result) error {
	runID := trace.NewRunID()
	printResult(w, runID, res)
	if cfg.TraceDB == "" {
		return nil
	}

	raw, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	st, err := trace.NewStore(cfg.TraceDB, opts.logger)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate trace db: %w", err)
	}
	run := &trace.Run{
		ID:         runID,
		Version:    buildinfo.Short(),
		Quantum:    cfg.Quantum.D(),
		Tick:       cfg.Tick.D(),
		Ticks:      res.Snapshot.Ticks,
		Stats:      res.Snapshot.Stats,
		Dropped:    res.Dropped,
		Config:     string(raw),
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	}
	if err := st.SaveRun(ctx, run, res.Events); err != nil {
		return fmt.Errorf("save trace: %w", err)
	}
	fmt.Fprintf(w, "\ntrace saved to %s (%s events)\n", cfg.TraceDB, humanize.Comma(int64(len(res.Events))))
	return nil
}

func printResult(w io.Writer, runID string, res *app.Result) {
	s := res.Snapshot
	fmt.Fprintf(w, "%s: %s ticks, kernel time %v, wall time %v\n",
		runID, humanize.Comma(int64(s.Ticks)), s.Now, res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
	fmt.Fprintf(w, "switches %s  postponed %s  created %s  reaped %s  wakeups %s  messages %s\n\n",
		humanize.Comma(int64(s.Stats.Switches)), humanize.Comma(int64(s.Stats.Postponed)),
		humanize.Comma(int64(s.Stats.Created)), humanize.Comma(int64(s.Stats.Reaped)),
		humanize.Comma(int64(s.Stats.Wakeups)), humanize.Comma(int64(res.Received)))

	fmt.Fprintf(w, "%-5s  %-12s  %-9s  %-6s  %10s  %s\n", "TID", "NAME", "STATE", "PRIO", "DISPATCHES", "RUNTIME")
	fmt.Fprintf(w, "%-5s  %-12s  %-9s  %-6s  %10s  %s\n", "---", "----", "-----", "----", "----------", "-------")
	for _, t := range s.Threads {
		fmt.Fprintf(w, "%-5d  %-12s  %-9s  %-6s  %10s  %v\n",
			t.TID, t.Name, t.State, t.Priority, humanize.Comma(int64(t.Dispatches)), t.RunTime)
	}
	if res.Dropped > 0 {
		fmt.Fprintf(w, "\n%s events dropped past the recorder limit\n", humanize.Comma(int64(res.Dropped)))
	}
}
