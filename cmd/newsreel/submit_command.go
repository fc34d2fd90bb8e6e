package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"newsreel/internal/api"
	"newsreel/internal/config"
	"newsreel/internal/notifications"
	"newsreel/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var req api.ManualJobRequest

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Queue a story for the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, store *queue.Store) error {
				svc := api.NewJobService(store, notifications.NewService(cfg))
				job, err := svc.Submit(cmd.Context(), req)
				if err != nil {
					if api.IsDuplicate(err) {
						return fmt.Errorf("a job for %s already exists", req.URL)
					}
					return err
				}
				return ctx.present(cmd, api.ManualJobResponse{Message: "queued", JobID: job.ID}, func(out io.Writer) error {
					_, err := fmt.Fprintf(out, "Queued job %d: %s\n", job.ID, job.Title)
					return err
				})
			})
		},
	}
	cmd.Flags().StringVarP(&req.Title, "title", "t", "", "Story headline (required)")
	cmd.Flags().StringVarP(&req.URL, "url", "u", "", "Canonical story URL (required, unique)")
	cmd.Flags().StringVar(&req.SourceName, "source", "", "Source name used for attribution")
	cmd.Flags().StringVar(&req.Description, "description", "", "Story summary passed to the script writer")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}
