// Command newsreeld runs the newsreel pipeline worker and the manual
// submission API. It is equivalent to `newsreel daemon` and exists for
// service managers that expect a dedicated binary.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"newsreel/internal/config"
	"newsreel/internal/daemonrun"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	flags := flag.NewFlagSet("newsreeld", flag.ContinueOnError)
	configPath := flags.String("config", "", "Configuration file path")
	logLevel := flags.String("log-level", "", "Override logging.level")
	worker := flags.String("worker", "", "Lease owner name (default newsreel-<uuid>)")
	dev := flags.Bool("dev", false, "Development logging (source locations)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, _, _, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return daemonrun.Run(ctx, cfg, daemonrun.Options{
		LogLevel:    *logLevel,
		Development: *dev,
		Owner:       *worker,
	})
}
