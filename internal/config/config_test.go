package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ActionLog.Backend != LogBackendMemory {
		t.Fatalf("expected default backend memory, got %s", cfg.ActionLog.Backend)
	}
	if cfg.Observability.Metrics.Namespace != "concord" {
		t.Fatalf("expected default metrics namespace concord, got %s", cfg.Observability.Metrics.Namespace)
	}
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concord.json")
	body := `{"action_log": {"backend": "postgres", "postgres_dsn": "postgres://x"}, "registry": {"endpoints": [{"uri": "app/users", "target": "localhost:9000"}]}}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.ActionLog.Backend != LogBackendPostgres {
		t.Fatalf("expected postgres backend, got %s", cfg.ActionLog.Backend)
	}
	if len(cfg.Registry.Endpoints) != 1 || cfg.Registry.Endpoints[0].URI != "app/users" {
		t.Fatalf("unexpected endpoints: %+v", cfg.Registry.Endpoints)
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concord.yaml")
	body := "action_log:\n  backend: postgres\n  postgres_dsn: postgres://x\nhot_reload:\n  enabled: true\n  syncs_path: /etc/concord/syncs.yaml\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if cfg.ActionLog.Backend != LogBackendPostgres {
		t.Fatalf("expected postgres backend, got %s", cfg.ActionLog.Backend)
	}
	if !cfg.HotReload.Enabled || cfg.HotReload.SyncsPath != "/etc/concord/syncs.yaml" {
		t.Fatalf("unexpected hot reload config: %+v", cfg.HotReload)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()
	t.Setenv("CONCORD_ACTIONLOG_BACKEND", "postgres")
	t.Setenv("CONCORD_GRPC_ENABLED", "true")
	t.Setenv("CONCORD_GRPC_ADDR", ":7000")
	t.Setenv("CONCORD_REGISTRY_HEARTBEAT_TIMEOUT", "5s")

	LoadFromEnv(cfg)

	if cfg.ActionLog.Backend != LogBackendPostgres {
		t.Fatalf("expected backend override to postgres, got %s", cfg.ActionLog.Backend)
	}
	if !cfg.GRPC.Enabled || cfg.GRPC.Addr != ":7000" {
		t.Fatalf("expected grpc overrides applied, got %+v", cfg.GRPC)
	}
	if cfg.Registry.HeartbeatTimeout != 5*time.Second {
		t.Fatalf("expected heartbeat timeout override, got %s", cfg.Registry.HeartbeatTimeout)
	}
}
