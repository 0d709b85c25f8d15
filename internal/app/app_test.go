package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/chrissnell/pvestimate/internal/log"
	"github.com/chrissnell/pvestimate/pkg/config"
)

const siteYAML = `
sites:
  - name: golden
    latitude: 39.74
    longitude: -105.18
    arrays: [{name: roof, tilt: 35, azimuth: 180, dc-rating: 5000}]
server:
  listen-addr: 127.0.0.1
  port: 18089
`

func newApp(t *testing.T) (*App, string, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	log.SetLogger(zap.New(core))

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(siteYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	provider, err := config.NewCachedProvider(config.NewYAMLProvider(path))
	if err != nil {
		t.Fatal(err)
	}
	return New(provider, zap.New(core).Sugar()), path, logs
}

func TestReload(t *testing.T) {
	a, path, logs := newApp(t)

	if err := os.WriteFile(path, []byte("sites: [{name: broken, latitude: 200}]\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	a.reload()
	if logs.FilterMessageSnippet("reload failed").Len() != 1 {
		t.Error("failed reload was not logged")
	}
	if _, err := a.configProvider.Site("golden"); err != nil {
		t.Errorf("previous configuration lost: %v", err)
	}

	fixed := siteYAML + "  # touched\n"
	if err := os.WriteFile(path, []byte(fixed), 0o644); err != nil {
		t.Fatal(err)
	}
	a.reload()
	if logs.FilterMessage("configuration reloaded").Len() != 1 {
		t.Error("successful reload was not logged")
	}
}

func TestReloadWarnsOnGridPathChange(t *testing.T) {
	a, path, logs := newApp(t)
	a.gridPath = "/data/linke.bin"

	for _, gridPath := range []string{"/data/linke-2027.bin", "/data/linke.bin"} {
		cfg := siteYAML + "turbidity:\n  source: grid\n  grid-path: " + gridPath + "\n"
		if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
			t.Fatal(err)
		}
		a.reload()
	}

	warned := logs.FilterMessageSnippet("grid path changed")
	if warned.Len() != 1 {
		t.Fatalf("warnings = %d, want 1", warned.Len())
	}
	if got := warned.All()[0].ContextMap()["configured"]; got != "/data/linke-2027.bin" {
		t.Errorf("configured = %v", got)
	}
}

func TestRunStopsWithContext(t *testing.T) {
	a, _, logs := newApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for logs.FilterMessage("Application started successfully").Len() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("application did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatal(err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if logs.FilterMessage("shutdown complete").Len() != 1 {
		t.Error("shutdown was not logged")
	}
}

func TestRunRejectsMissingGrid(t *testing.T) {
	core, _ := observer.New(zapcore.InfoLevel)
	log.SetLogger(zap.New(core))
	cfg := siteYAML + "turbidity:\n  source: grid\n  grid-path: " + filepath.Join(t.TempDir(), "missing.bin") + "\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	provider, err := config.NewCachedProvider(config.NewYAMLProvider(path))
	if err != nil {
		t.Fatal(err)
	}
	if err := New(provider, zap.New(core).Sugar()).Run(context.Background()); err == nil {
		t.Fatal("Run() started without a turbidity grid")
	}
}
