package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"newsreel/internal/config"
)

// Option adjusts the config NewConfig returns. root is the per-test temp dir
// all paths live under.
type Option func(t testing.TB, root string, cfg *config.Config)

// NewConfig returns a config whose data, asset and log dirs are private to the
// test, with dummy provider credentials, an ephemeral API port and short
// backoff. Directories are not created; call cfg.EnsureDirectories when the
// test needs them.
func NewConfig(t testing.TB, opts ...Option) *config.Config {
	t.Helper()

	root := t.TempDir()
	cfg := config.Default()
	cfg.Paths = config.Paths{
		DataDir:  filepath.Join(root, "data"),
		AssetDir: filepath.Join(root, "assets"),
		LogDir:   filepath.Join(root, "logs"),
	}
	cfg.Script.APIKey = "test"
	cfg.Images.Token = "test"
	cfg.API.Bind = "127.0.0.1:0"
	cfg.Workflow.BackoffBaseSeconds = 1
	cfg.Workflow.BackoffMaxSeconds = 4

	for _, opt := range opts {
		opt(t, root, &cfg)
	}
	return &cfg
}

// BaseDir returns the temp root backing a NewConfig config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}

func WithPostgres(dsn string) Option {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		cfg.Store.Driver = config.DriverPostgres
		cfg.Store.DSN = dsn
	}
}

// WithStageRetries sets the same retry budget on every stage.
func WithStageRetries(maxRetries int) Option {
	return func(_ testing.TB, _ string, cfg *config.Config) {
		for _, settings := range []*config.StageSettings{
			&cfg.Stages.Script,
			&cfg.Stages.Audio,
			&cfg.Stages.Images,
			&cfg.Stages.Assembly,
			&cfg.Stages.Distribution,
		} {
			settings.MaxRetries = maxRetries
		}
	}
}

// WithStubbedBinaries puts shell stubs for names (default ffmpeg and ffprobe)
// first on PATH. Each stub prints a version banner for -version and exits 0
// for anything else.
func WithStubbedBinaries(names ...string) Option {
	return func(t testing.TB, root string, _ *config.Config) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(root, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			t.Fatalf("mkdir bin dir: %v", err)
		}
		for _, name := range names {
			stub := fmt.Sprintf("#!/bin/sh\nif [ \"$1\" = \"-version\" ]; then echo \"%s version stub\"; fi\nexit 0\n", name)
			if err := os.WriteFile(filepath.Join(binDir, name), []byte(stub), 0o755); err != nil {
				t.Fatalf("write stub %s: %v", name, err)
			}
		}
		t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}
