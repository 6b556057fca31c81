package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.Store.Backend != BackendRedis {
		t.Errorf("backend = %q", cfg.Store.Backend)
	}
	if cfg.Redis.Addr() != "localhost:6379" {
		t.Errorf("redis addr = %q", cfg.Redis.Addr())
	}
	if cfg.ICE.STUNServer == "" {
		t.Error("expected a default STUN server")
	}
	if cfg.WebSocket.SendBuffer != 256 {
		t.Errorf("send buffer = %d", cfg.WebSocket.SendBuffer)
	}
	if cfg.Metrics.Disabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("metrics = %+v", cfg.Metrics)
	}
	if cfg.RequireAuth || cfg.Log.Pretty {
		t.Error("bool settings should default to false")
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("WHITEBOARD_PORT", "9090")
	t.Setenv("WHITEBOARD_STORE_BACKEND", "sqlite")
	t.Setenv("WHITEBOARD_REDIS_HOST", "cache")
	t.Setenv("WHITEBOARD_METRICS_DISABLED", "true")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "9090" || cfg.Store.Backend != BackendSQLite || cfg.Redis.Host != "cache" {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if !cfg.Metrics.Disabled {
		t.Error("metrics still enabled")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	yaml := "port: \"7000\"\nrequireAuth: true\nlog:\n  level: debug\n  pretty: true\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != "7000" || cfg.Log.Level != "debug" {
		t.Fatalf("file not applied: port=%q level=%q", cfg.Port, cfg.Log.Level)
	}
	if !cfg.RequireAuth || !cfg.Log.Pretty || cfg.Metrics.Disabled {
		t.Fatalf("bools not applied: %+v", cfg)
	}
}

func TestLoadRejectsUnknownBackend(t *testing.T) {
	t.Setenv("WHITEBOARD_STORE_BACKEND", "mongo")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
