package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "swarmforge.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "SWARMFORGE_PORT")
	setString(&cfg.Server.CORSOrigin, "SWARMFORGE_CORS_ORIGIN")
	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "SWARMFORGE_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "SWARMFORGE_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "SWARMFORGE_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "SWARMFORGE_PG_MAX_CONN_IDLE_TIME")
	setDuration(&cfg.Postgres.HealthCheck, "SWARMFORGE_PG_HEALTH_CHECK")
	setString(&cfg.NATS.URL, "NATS_URL")
	setBool(&cfg.Otel.Enabled, "SWARMFORGE_OTEL_ENABLED")
	setString(&cfg.Otel.Endpoint, "SWARMFORGE_OTEL_ENDPOINT")
	setInt64(&cfg.Cache.MaxSizeMB, "SWARMFORGE_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.TTL, "SWARMFORGE_CACHE_TTL")
	setString(&cfg.Logging.Level, "SWARMFORGE_LOG_LEVEL")
	setString(&cfg.Logging.Service, "SWARMFORGE_LOG_SERVICE")

	setInt(&cfg.Swarm.Workers, "SWARMFORGE_SWARM_WORKERS")
	setInt(&cfg.Swarm.Scouts, "SWARMFORGE_SWARM_SCOUTS")
	setInt(&cfg.Swarm.Soldiers, "SWARMFORGE_SWARM_SOLDIERS")
	setInt(&cfg.Swarm.Queens, "SWARMFORGE_SWARM_QUEENS")
	setBool(&cfg.Swarm.SelfHealing, "SWARMFORGE_SWARM_SELF_HEALING")
	setInt(&cfg.Swarm.MaxRetries, "SWARMFORGE_SWARM_MAX_RETRIES")
	setDuration(&cfg.Swarm.HealingDelay, "SWARMFORGE_SWARM_HEALING_DELAY")
	setDuration(&cfg.Swarm.ExecutorTimeout, "SWARMFORGE_SWARM_EXECUTOR_TIMEOUT")
	setDuration(&cfg.Swarm.ShutdownGrace, "SWARMFORGE_SWARM_SHUTDOWN_GRACE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.DSN == "" {
		return errors.New("postgres.dsn is required")
	}
	if cfg.NATS.URL == "" {
		return errors.New("nats.url is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Swarm.Workers+cfg.Swarm.Scouts+cfg.Swarm.Soldiers < 1 {
		return errors.New("swarm requires at least one non-queen agent")
	}
	if cfg.Swarm.MaxRetries < 0 {
		return errors.New("swarm.max_retries must be >= 0")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
