package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.MaxConns != 10 {
		t.Errorf("expected max_conns 10, got %d", cfg.Postgres.MaxConns)
	}
	if cfg.Swarm.Workers != 4 || cfg.Swarm.Scouts != 2 || cfg.Swarm.Soldiers != 2 || cfg.Swarm.Queens != 1 {
		t.Errorf("unexpected default pool sizes: %+v", cfg.Swarm)
	}
	if !cfg.Swarm.SelfHealing {
		t.Error("self-healing should default on")
	}
	if cfg.Swarm.ExecutorTimeout != 2*time.Minute {
		t.Errorf("expected executor timeout 2m, got %v", cfg.Swarm.ExecutorTimeout)
	}
	if cfg.Swarm.ShutdownGrace != 30*time.Second {
		t.Errorf("expected shutdown grace 30s, got %v", cfg.Swarm.ShutdownGrace)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
swarm:
  workers: 8
  max_retries: 5
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Swarm.Workers != 8 {
		t.Errorf("expected 8 workers, got %d", cfg.Swarm.Workers)
	}
	if cfg.Swarm.MaxRetries != 5 {
		t.Errorf("expected max_retries 5, got %d", cfg.Swarm.MaxRetries)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
	if cfg.Swarm.Scouts != 2 {
		t.Errorf("expected default scouts 2, got %d", cfg.Swarm.Scouts)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	err := loadYAML(&cfg, "/nonexistent/path.yaml")
	if err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("SWARMFORGE_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("SWARMFORGE_SWARM_WORKERS", "6")
	t.Setenv("SWARMFORGE_SWARM_SELF_HEALING", "false")
	t.Setenv("SWARMFORGE_SWARM_EXECUTOR_TIMEOUT", "1m")
	t.Setenv("SWARMFORGE_LOG_LEVEL", "warn")

	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Swarm.Workers != 6 {
		t.Errorf("expected 6 workers, got %d", cfg.Swarm.Workers)
	}
	if cfg.Swarm.SelfHealing {
		t.Error("expected self-healing disabled")
	}
	if cfg.Swarm.ExecutorTimeout != time.Minute {
		t.Errorf("expected executor timeout 1m, got %v", cfg.Swarm.ExecutorTimeout)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("expected log level warn, got %s", cfg.Logging.Level)
	}
}

func TestEnvIgnoresMalformedValues(t *testing.T) {
	cfg := Defaults()

	t.Setenv("SWARMFORGE_SWARM_WORKERS", "lots")
	t.Setenv("SWARMFORGE_SWARM_EXECUTOR_TIMEOUT", "soon")

	loadEnv(&cfg)

	if cfg.Swarm.Workers != 4 {
		t.Errorf("malformed int should keep default, got %d", cfg.Swarm.Workers)
	}
	if cfg.Swarm.ExecutorTimeout != 2*time.Minute {
		t.Errorf("malformed duration should keep default, got %v", cfg.Swarm.ExecutorTimeout)
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "empty DSN",
			modify: func(c *Config) { c.Postgres.DSN = "" },
			errMsg: "postgres.dsn is required",
		},
		{
			name:   "empty NATS URL",
			modify: func(c *Config) { c.NATS.URL = "" },
			errMsg: "nats.url is required",
		},
		{
			name:   "zero max_conns",
			modify: func(c *Config) { c.Postgres.MaxConns = 0 },
			errMsg: "postgres.max_conns must be >= 1",
		},
		{
			name: "queens-only pool",
			modify: func(c *Config) {
				c.Swarm.Workers = 0
				c.Swarm.Scouts = 0
				c.Swarm.Soldiers = 0
			},
			errMsg: "swarm requires at least one non-queen agent",
		},
		{
			name:   "negative retries",
			modify: func(c *Config) { c.Swarm.MaxRetries = -1 },
			errMsg: "swarm.max_retries must be >= 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadFromFullHierarchy(t *testing.T) {
	// YAML sets port=9090, env overrides to 7070. Env must win.
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("SWARMFORGE_PORT", "7070")
	t.Setenv("SWARMFORGE_LOG_LEVEL", "warn")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}

	if cfg.Server.Port != "7070" {
		t.Errorf("env should override YAML: got port %q, want 7070", cfg.Server.Port)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("env should override YAML: got level %q, want warn", cfg.Logging.Level)
	}
}
