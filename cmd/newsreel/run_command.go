package main

import (
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"newsreel/internal/config"
	"newsreel/internal/daemonrun"
	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/queue"
	"newsreel/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var maxCycles int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process the queue until no job is ready, then exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				if maxCycles > 0 {
					cfg.Workflow.MaxIterations = maxCycles
				}
				logger, err := logging.NewFromConfig(cfg)
				if err != nil {
					return fmt.Errorf("init logger: %w", err)
				}
				notifier := notifications.NewService(cfg)
				stages, err := daemonrun.BuildStages(runCtx, cfg, logger, notifier)
				if err != nil {
					return err
				}
				manager := workflow.NewManager(cfg, store, logger, workflow.WithNotifier(notifier))
				manager.ConfigureStages(stages)

				report, err := manager.Run(runCtx)
				if err != nil {
					return err
				}
				return ctx.present(cmd, report, func(out io.Writer) error {
					t := report.Totals
					_, err := fmt.Fprintf(out,
						"%d cycle(s): %d claimed, %d committed, %d retrying, %d review, %d failed\n",
						report.Cycles, t.Claimed, t.Committed, t.Retried, t.Review, t.Failed)
					return err
				})
			})
		},
	}
	cmd.Flags().IntVar(&maxCycles, "max-cycles", 0, "Stop after this many cycles (default from workflow.max_iterations)")
	return cmd
}

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	var opts daemonrun.Options

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run the pipeline worker and manual submission API in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, opts)
		},
	}
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&opts.Development, "dev", false, "Development logging (source locations)")
	cmd.Flags().StringVar(&opts.Owner, "worker", "", "Lease owner name (default newsreel-<uuid>)")
	return cmd
}
