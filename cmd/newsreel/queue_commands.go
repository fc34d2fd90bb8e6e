package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"newsreel/internal/api"
	"newsreel/internal/config"
	"newsreel/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the job queue",
	}

	queueCmd.AddCommand(newQueueStatusCommand(ctx))
	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueShowCommand(ctx))
	queueCmd.AddCommand(newQueueResubmitCommand(ctx))
	queueCmd.AddCommand(newQueueHealthCommand(ctx))

	return queueCmd
}

func newQueueStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show job counts by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				stats, err := api.NewJobService(store, nil).Stats(cmd.Context())
				if err != nil {
					return err
				}
				return ctx.present(cmd, stats, func(out io.Writer) error {
					_, err := fmt.Fprintln(out, renderTable([]string{"Status", "Count"}, buildQueueStatusRows(stats), []columnAlignment{alignLeft, alignRight}))
					return err
				})
			})
		},
	}
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				jobs, err := api.NewJobService(store, nil).List(cmd.Context(), statuses...)
				if err != nil {
					return err
				}
				return ctx.present(cmd, api.JobListResponse{Jobs: jobs}, func(out io.Writer) error {
					if len(jobs) == 0 {
						_, err := fmt.Fprintln(out, "Queue is empty")
						return err
					}
					_, err := fmt.Fprintln(out, renderTable(
						[]string{"ID", "Title", "Status", "Next", "Created"},
						buildQueueListRows(jobs),
						[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
					))
					return err
				})
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Only list jobs in these statuses")
	return cmd
}

func newQueueShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one job in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := api.NewJobService(store, nil).Describe(cmd.Context(), id)
				if err != nil {
					if errors.Is(err, queue.ErrNotFound) {
						return fmt.Errorf("job %d not found", id)
					}
					return err
				}
				return ctx.present(cmd, api.JobResponse{Job: job}, func(out io.Writer) error {
					for _, line := range jobDetailLines(job) {
						fmt.Fprintf(out, "%-14s %s\n", line[0]+":", line[1])
					}
					return nil
				})
			})
		},
	}
}

func newQueueResubmitCommand(ctx *commandContext) *cobra.Command {
	var fromFailed bool

	cmd := &cobra.Command{
		Use:   "resubmit <id>",
		Short: "Return a failed or review job to the queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseJobID(args[0])
			if err != nil {
				return err
			}
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				job, err := api.NewJobService(store, nil).Resubmit(cmd.Context(), id, fromFailed)
				switch {
				case errors.Is(err, queue.ErrNotFound):
					return fmt.Errorf("job %d not found", id)
				case errors.Is(err, queue.ErrInvalidTransition):
					return fmt.Errorf("job %d is not failed or awaiting review", id)
				case err != nil:
					return err
				}
				return ctx.present(cmd, api.JobResponse{Job: job}, func(out io.Writer) error {
					_, err := fmt.Fprintf(out, "Job %d resubmitted as %s\n", job.ID, formatStatusLabel(job.Status))
					return err
				})
			})
		},
	}
	cmd.Flags().BoolVar(&fromFailed, "from-failed-stage", false, "Resume at the stage that failed, keeping earlier outputs")
	return cmd
}

func newQueueHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check job store health (schema, columns, lease counts)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, store *queue.Store) error {
				db, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				summary, err := store.Health(cmd.Context())
				if err != nil {
					return err
				}
				payload := map[string]any{"database": db, "queue": summary}
				return ctx.present(cmd, payload, func(out io.Writer) error {
					fmt.Fprintf(out, "Driver: %s\n", db.Driver)
					fmt.Fprintf(out, "DSN: %s\n", db.DSN)
					fmt.Fprintf(out, "Readable: %s\n", yesNo(db.DatabaseReadable))
					fmt.Fprintf(out, "Schema version: %d\n", db.SchemaVersion)
					fmt.Fprintf(out, "jobs table present: %s\n", yesNo(db.TableExists))
					if len(db.MissingColumns) > 0 {
						fmt.Fprintf(out, "Missing columns: %s\n", strings.Join(db.MissingColumns, ", "))
					} else {
						fmt.Fprintln(out, "Missing columns: none")
					}
					fmt.Fprintf(out, "Total jobs: %d\n", summary.Total)
					fmt.Fprintf(out, "Pending: %d  In flight: %d  Leased: %d\n", summary.Pending, summary.InFlight, summary.Leased)
					fmt.Fprintf(out, "Review: %d  Failed: %d  Completed: %d (fallback %d)\n", summary.Review, summary.Failed, summary.Completed, summary.Fallback)
					if db.Error != "" {
						fmt.Fprintf(out, "Error: %s\n", db.Error)
					}
					return nil
				})
			})
		},
	}
}

func parseStatuses(values []string) ([]queue.Status, error) {
	statuses := make([]queue.Status, 0, len(values))
	for _, value := range values {
		status, ok := queue.ParseStatus(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func parseJobID(value string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid job id %q", value)
	}
	return id, nil
}
