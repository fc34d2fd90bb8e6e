package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"newsreel/internal/config"
	"newsreel/internal/daemon"
	"newsreel/internal/logging"
	"newsreel/internal/notifications"
	"newsreel/internal/preflight"
	"newsreel/internal/queue"
	"newsreel/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// Owner overrides the lease owner name; empty uses a random newsreel-<uuid>.
	Owner string
}

// Run starts the newsreel daemon runtime loop and blocks until the context is
// cancelled or the process receives SIGINT/SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("newsreel-%s.log", runID))
	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		Outputs:     []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(signalCtx, logger, cfg)
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update newsreel.log link: %v\n", err)
	}
	pidPath := filepath.Join(cfg.Paths.LogDir, "newsreel.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open job store", logging.Error(err))
		return err
	}

	notifier := notifications.NewService(cfg)
	managerOpts := []workflow.ManagerOption{workflow.WithNotifier(notifier)}
	if opts.Owner != "" {
		managerOpts = append(managerOpts, workflow.WithOwner(opts.Owner))
	}
	manager := workflow.NewManager(cfg, store, logger, managerOpts...)

	stages, err := BuildStages(signalCtx, cfg, logger, notifier)
	if err != nil {
		_ = store.Close()
		logger.Error("build pipeline stages",
			logging.Error(err),
			logging.String(logging.FieldEventType, "stage_build_failed"),
			logging.String(logging.FieldErrorHint, "check credentials and provider settings"),
		)
		return err
	}
	manager.ConfigureStages(stages)

	d, err := daemon.New(cfg, store, logger, manager, notifier)
	if err != nil {
		_ = store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		logger.Error("daemon start failed",
			logging.Error(err),
			logging.String(logging.FieldEventType, "daemon_start_failed"),
			logging.String(logging.FieldErrorHint, "check configuration and job store access"),
			logging.String(logging.FieldImpact, "no jobs will be processed"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("newsreel daemon shutting down")
	return nil
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logging.CurrentLogName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	attrs := []logging.Attr{
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.String("store_driver", cfg.Store.Driver),
		logging.Bool("script_key_present", strings.TrimSpace(cfg.Script.APIKey) != ""),
		logging.String("script_models", strings.Join(cfg.Script.Models, ",")),
		logging.String("image_provider", cfg.Images.Provider),
		logging.Bool("image_token_present", strings.TrimSpace(cfg.Images.Token) != ""),
		logging.Bool("storage_enabled", cfg.Storage.Enabled),
		logging.Bool("distribution_enabled", cfg.Distribution.Enabled),
		logging.String("fallback_policy", cfg.Distribution.FallbackPolicy),
	}
	for _, status := range preflight.CheckSystemDeps(ctx, cfg) {
		key := strings.ToLower(status.Name)
		attrs = append(attrs, logging.Bool(key+"_available", status.Available))
		if status.Version != "" {
			attrs = append(attrs, logging.String(key+"_version", status.Version))
		}
	}
	logger.Info("dependency snapshot", logging.Args(attrs...)...)
}
