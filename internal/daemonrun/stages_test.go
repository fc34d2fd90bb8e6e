package daemonrun

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"newsreel/internal/config"
	"newsreel/internal/logging"
	"newsreel/internal/services"
	"newsreel/internal/testsupport"
)

func TestBuildStagesWiresEveryStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.Enabled = false
	cfg.Distribution.Enabled = false

	set, err := BuildStages(context.Background(), cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("BuildStages failed: %v", err)
	}
	if set.Script == nil || set.Audio == nil || set.Images == nil || set.Assembly == nil || set.Distribution == nil {
		t.Fatalf("expected every stage to be wired, got %+v", set)
	}
}

func TestBuildStagesOpenAIProvider(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Images.Provider = config.ImageProviderOpenAI
	cfg.Storage.Enabled = false
	cfg.Distribution.Enabled = false

	set, err := BuildStages(context.Background(), cfg, logging.NewNop(), nil)
	if err != nil {
		t.Fatalf("BuildStages failed: %v", err)
	}
	if set.Images == nil {
		t.Fatal("expected image stage")
	}
}

func TestBuildStagesErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		check  func(error) bool
	}{
		{
			name:   "unknown image provider",
			mutate: func(c *config.Config) { c.Images.Provider = "dalle-local" },
			check:  func(err error) bool { return err != nil },
		},
		{
			name: "youtube without credentials",
			mutate: func(c *config.Config) {
				c.Distribution.Enabled = true
				c.Distribution.RefreshToken = ""
			},
			check: func(err error) bool { return errors.Is(err, services.ErrConfiguration) },
		},
		{
			name:   "missing prompts file",
			mutate: func(c *config.Config) { c.Script.PromptsPath = filepath.Join(t.TempDir(), "missing.toml") },
			check:  func(err error) bool { return err != nil },
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testsupport.NewConfig(t)
			cfg.Storage.Enabled = false
			cfg.Distribution.Enabled = false
			tc.mutate(cfg)
			_, err := BuildStages(context.Background(), cfg, logging.NewNop(), nil)
			if !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "newsreel-1.log")
	second := filepath.Join(dir, "newsreel-2.log")
	for _, path := range []string{first, second} {
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatalf("write log: %v", err)
		}
	}

	if err := ensureCurrentLogPointer(dir, first); err != nil {
		t.Fatalf("first pointer failed: %v", err)
	}
	if err := ensureCurrentLogPointer(dir, second); err != nil {
		t.Fatalf("second pointer failed: %v", err)
	}
	target, err := os.Readlink(filepath.Join(dir, "newsreel.log"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if target != second {
		t.Fatalf("expected pointer to %s, got %s", second, target)
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "newsreel.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected pid contents")
	}
}
