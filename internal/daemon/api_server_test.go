package daemon

import (
	"context"
	"net/http"
	"testing"

	"newsreel/internal/logging"
	"newsreel/internal/testsupport"
	"newsreel/internal/workflow"
)

func TestNewAPIServerDisabled(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.API.Enabled = false
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	d, err := New(cfg, store, logging.NewNop(), mgr, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if d.api != nil {
		t.Fatal("expected no api server when disabled")
	}
	// nil server methods are no-ops
	if err := d.api.start(context.Background()); err != nil {
		t.Fatalf("nil start returned %v", err)
	}
	d.api.stop()
	if addr := d.api.address(); addr != "" {
		t.Fatalf("expected empty address, got %q", addr)
	}
}

func TestAPIServerServesHealthz(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	mgr := workflow.NewManager(cfg, store, logging.NewNop())
	d, err := New(cfg, store, logging.NewNop(), mgr, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := d.api.start(ctx); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer d.api.stop()

	resp, err := http.Get("http://" + d.api.address() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}
