// Package cli is the sparksched command tree.
package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"sparksched/internal/config"
	"sparksched/internal/logging"
)

type options struct {
	configPath string
	debug      bool
	logLevel   string
	logFormat  string
	traceDB    string

	cfg    config.Config
	logger *slog.Logger
}

// NewRootCmd creates the root cobra command for the sparksched CLI.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:   "sparksched",
		Short: "sparksched: a uniprocessor thread scheduler on a simulated CPU",
		Long: `sparksched boots a small kernel scheduler on a goroutine-backed CPU,
runs a configured workload of threads against it and records the
scheduling decisions it makes.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Run configuration (YAML); the built-in demo when empty")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format (text, json)")
	root.PersistentFlags().StringVar(&opts.traceDB, "trace-db", "", "SQLite trace database (overrides trace_db)")

	root.AddCommand(
		newRunCmd(opts),
		newWindowCmd(opts),
		newReportCmd(opts),
		newVersionCmd(),
	)
	return root
}

// load resolves the configuration and logger. Flags win over the file.
func (o *options) load(cmd *cobra.Command) error {
	cfg := config.Demo()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Load(o.configPath); err != nil {
			return err
		}
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.debug {
		cfg.LogLevel = "debug"
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.traceDB != "" {
		cfg.TraceDB = o.traceDB
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	o.cfg = cfg
	o.logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
	o.logger.Debug("config loaded", "path", o.configPath, "processes", len(cfg.Processes))
	return nil
}

func (o *options) requireTraceDB() (string, error) {
	if o.cfg.TraceDB == "" {
		return "", fmt.Errorf("no trace database: set trace_db or --trace-db")
	}
	return o.cfg.TraceDB, nil
}
