package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"newsreel/internal/config"
	"newsreel/internal/daemonrun"
	"newsreel/internal/logging"
	"newsreel/internal/preflight"
	"newsreel/internal/stage"
	"newsreel/internal/workflow"
)

type checkReport struct {
	Preflight []preflight.Result `json:"preflight"`
	Stages    []stage.Health     `json:"stages"`
	Passed    bool               `json:"passed"`
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipRemote bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify directories, binaries, credentials, and provider reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := runChecks(cmd.Context(), cfg, !skipRemote)
			err = ctx.present(cmd, report, func(out io.Writer) error {
				printCheckReport(out, report)
				return nil
			})
			if err != nil {
				return err
			}
			if !report.Passed {
				return errors.New("one or more checks failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipRemote, "offline", false, "Skip checks that call external providers")
	return cmd
}

func runChecks(ctx context.Context, cfg *config.Config, remote bool) checkReport {
	report := checkReport{Preflight: preflight.RunFeatureChecks(ctx, cfg)}
	if remote {
		report.Preflight = append(report.Preflight, preflight.CheckLLM(ctx, "Script model", cfg.Script))
	}

	stages, err := daemonrun.BuildStages(ctx, cfg, logging.NewNop(), nil)
	if err != nil {
		report.Preflight = append(report.Preflight, preflight.Result{Name: "Stage wiring", Detail: err.Error()})
	} else {
		report.Stages = stageHealth(ctx, stages)
	}

	report.Passed = len(preflight.Failed(report.Preflight)) == 0
	for _, h := range report.Stages {
		if !h.Usable() {
			report.Passed = false
		}
	}
	return report
}

func stageHealth(ctx context.Context, set workflow.StageSet) []stage.Health {
	executors := []stage.Executor{set.Script, set.Audio, set.Images, set.Assembly, set.Distribution}
	health := make([]stage.Health, 0, len(executors))
	for _, exec := range executors {
		if exec == nil {
			continue
		}
		health = append(health, exec.HealthCheck(ctx))
	}
	return health
}

func printCheckReport(out io.Writer, report checkReport) {
	colorize := colorEnabled(out)
	fmt.Fprintln(out, sectionHeader("Preflight", colorize))
	for _, result := range report.Preflight {
		fmt.Fprintln(out, healthLine(result.Name, preflightState(result), result.Detail, colorize))
	}
	if len(report.Stages) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, sectionHeader("Stages", colorize))
	for _, h := range report.Stages {
		fmt.Fprintln(out, healthLine(h.Name, h.State, h.Detail, colorize))
	}
}
