package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"sparksched/app"
)

func newWindowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "window",
		Short: "Run the workload in a live monitor window",
		Long: `window runs the workload with the clock stepped once per frame and
shows every thread's state as it changes. Close the window to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			res, err := app.RunWindow(ctx, opts.cfg, opts.logger)
			if err != nil {
				return fmt.Errorf("window: %w", err)
			}
			return finish(cmd.Context(), cmd.OutOrStdout(), opts, opts.cfg, res)
		},
	}
}
