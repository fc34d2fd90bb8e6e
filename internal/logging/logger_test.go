package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"newsreel/internal/config"
	"newsreel/internal/logging"
	"newsreel/internal/services"
)

func logFile(t *testing.T, format string) (string, func() string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), format+".log")
	read := func() string {
		content, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
	return path, read
}

func decodeLine(t *testing.T, content string) map[string]any {
	t.Helper()
	var record map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(content)), &record); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	return record
}

func TestNewFromConfigWritesCurrentLog(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("hello from test")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.CurrentLogName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "hello from test") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestConsoleHeader(t *testing.T) {
	tests := []struct {
		name  string
		attrs []logging.Attr
		want  string
	}{
		{
			name:  "component only",
			attrs: []logging.Attr{logging.String(logging.FieldComponent, "queue")},
			want:  "INFO queue: message",
		},
		{
			name: "stage and job",
			attrs: []logging.Attr{
				logging.String(logging.FieldComponent, "workflow"),
				logging.String(logging.FieldStage, "script"),
				logging.Int64(logging.FieldJobID, 42),
			},
			want: "INFO workflow[script #42]: message",
		},
		{
			name:  "job without stage",
			attrs: []logging.Attr{logging.String(logging.FieldComponent, "api"), logging.Int64(logging.FieldJobID, 7)},
			want:  "INFO api[#7]: message",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			path, read := logFile(t, "console")
			logger, err := logging.New(logging.Options{Format: "console", Level: "info", Outputs: []string{path}})
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			logger.Info("message", logging.Args(tc.attrs...)...)
			content := read()
			if !strings.Contains(content, tc.want) {
				t.Fatalf("expected %q in %q", tc.want, content)
			}
			if strings.Contains(content, ".go:") {
				t.Fatalf("expected no caller information at info level, got %q", content)
			}
		})
	}
}

func TestJSONLoggerFieldNames(t *testing.T) {
	path, read := logFile(t, "json")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("json message", logging.String("k", "v"))

	record := decodeLine(t, read())
	for _, key := range []string{"ts", "level", "msg", "k"} {
		if _, ok := record[key]; !ok {
			t.Fatalf("expected key %q in %v", key, record)
		}
	}
	if record["level"] != "info" {
		t.Fatalf("expected lower-case level, got %v", record["level"])
	}
}

func TestLoggersRedactSecrets(t *testing.T) {
	for _, format := range []string{"console", "json"} {
		t.Run(format, func(t *testing.T) {
			path, read := logFile(t, format)
			logger, err := logging.New(logging.Options{Format: format, Level: "info", Outputs: []string{path}})
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			logger.With(logging.String("api_key", "sk-live-123")).Info("provider configured",
				logging.String("dsn", "postgres://newsreel:hunter2@db:5432/newsreel"),
				logging.String("model", "gpt-4o-mini"),
			)
			content := read()
			for _, secret := range []string{"sk-live-123", "hunter2"} {
				if strings.Contains(content, secret) {
					t.Fatalf("secret %q leaked into %q", secret, content)
				}
			}
			if !strings.Contains(content, "gpt-4o-mini") {
				t.Fatalf("expected non-secret value kept, got %q", content)
			}
			if !strings.Contains(content, "db:5432") {
				t.Fatalf("expected dsn host kept, got %q", content)
			}
		})
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	path, read := logFile(t, "json")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithTrace(context.Background(), services.Trace{JobID: 123, Stage: "assembly", RequestID: "req-xyz"})
	logging.WithContext(ctx, logger).Info("contextual log")

	record := decodeLine(t, read())
	if record[logging.FieldJobID] != float64(123) {
		t.Fatalf("job_id = %v", record[logging.FieldJobID])
	}
	if record[logging.FieldStage] != "assembly" {
		t.Fatalf("stage = %v", record[logging.FieldStage])
	}
	if record[logging.FieldCorrelationID] != "req-xyz" {
		t.Fatalf("correlation_id = %v", record[logging.FieldCorrelationID])
	}
}

func TestFromContextPrefersAttachedLogger(t *testing.T) {
	path, read := logFile(t, "json")
	attached, err := logging.New(logging.Options{Format: "json", Level: "info", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithTrace(context.Background(), services.Trace{JobID: 7, Stage: "audio"})
	if got := logging.FromContext(ctx, nil); got == nil {
		t.Fatal("FromContext without attached logger returned nil")
	}

	ctx = logging.IntoContext(ctx, attached.With(logging.String("worker_slot", "a")))
	logging.FromContext(ctx, logging.NewNop()).Info("from context")

	record := decodeLine(t, read())
	if record["worker_slot"] != "a" {
		t.Fatalf("expected attached logger fields, got %v", record)
	}
	if logging.IntoContext(ctx, nil) != ctx {
		t.Fatal("IntoContext with nil logger should leave ctx unchanged")
	}
}

func TestWarnWithContextKeepsCallerFields(t *testing.T) {
	path, read := logFile(t, "json")
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Outputs: []string{path}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "image reused", "image_reuse", logging.String(logging.FieldImpact, "older artwork"))

	record := decodeLine(t, read())
	if record[logging.FieldEventType] != "image_reuse" {
		t.Fatalf("event_type = %v", record[logging.FieldEventType])
	}
	if record[logging.FieldImpact] != "older artwork" {
		t.Fatalf("expected caller impact to win, got %v", record[logging.FieldImpact])
	}
	if _, ok := record[logging.FieldErrorHint]; !ok {
		t.Fatalf("expected default error_hint in %v", record)
	}
}

func TestStageLoggerHonoursOverrides(t *testing.T) {
	logDir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = logDir
	cfg.Logging.Level = "info"
	cfg.Logging.StageOverrides = map[string]string{"assembly": "debug"}

	base, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logging.StageLogger(base, &cfg, "assembly").Debug("assembly detail")
	logging.StageLogger(base, &cfg, "script").Debug("script detail")
	logging.StageLogger(logging.StageLogger(base, &cfg, "script"), &cfg, "assembly").Debug("restaged detail")

	content, err := os.ReadFile(filepath.Join(logDir, logging.CurrentLogName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "assembly detail") {
		t.Fatalf("expected overridden stage debug line, got %q", content)
	}
	if strings.Contains(string(content), "script detail") {
		t.Fatalf("expected non-overridden stage to stay at info, got %q", content)
	}
	if !strings.Contains(string(content), "restaged detail") {
		t.Fatalf("expected a re-staged logger to take the new floor, got %q", content)
	}
}
