// Package config loads sift's layered configuration: built-in defaults,
// overridden by a TOML file, overridden by environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Server is the [server] section.
type Server struct {
	Port        int    `toml:"port"`
	DBPath      string `toml:"db_path"`
	OTLPEndpoint string `toml:"otlp_endpoint"`
	StatsCacheTTL time.Duration `toml:"-"`
	StatsCacheTTLSeconds int `toml:"stats_cache_ttl_seconds"`
}

// Agent is the [agent] section.
type Agent struct {
	Server            string `toml:"server"`
	Host              string `toml:"host"`
	VolatileThresholdDays int `toml:"volatile_threshold_days"`
	OneFilesystem     bool   `toml:"one_filesystem"`
}

// CLI is the [cli] section.
type CLI struct {
	Server string `toml:"server"`
}

// Config is the full layered configuration.
type Config struct {
	Server Server `toml:"server"`
	Agent  Agent  `toml:"agent"`
	CLI    CLI    `toml:"cli"`
}

// Defaults returns the built-in configuration baseline, the lowest-priority
// layer.
func Defaults() Config {
	home, _ := os.UserHomeDir()
	return Config{
		Server: Server{
			Port:                 8080,
			DBPath:               filepath.Join(home, ".sift.db"),
			StatsCacheTTLSeconds: 60,
			StatsCacheTTL:        60 * time.Second,
		},
		Agent: Agent{
			Server:                "http://127.0.0.1:8080",
			VolatileThresholdDays: 7,
		},
		CLI: CLI{
			Server: "http://127.0.0.1:8080",
		},
	}
}

// DefaultConfigPath returns ~/.sift.config, the conventional TOML config
// file location.
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".sift.config")
}

// Load builds the final configuration: defaults, then the TOML file at path
// (or SIFT_CONFIG_PATH, or DefaultConfigPath if path is empty and absent),
// then environment variables. A missing config file is not an error; only
// malformed TOML is.
func Load(path string) (Config, error) {
	cfg := Defaults()

	if path == "" {
		if env := os.Getenv("SIFT_CONFIG_PATH"); env != "" {
			path = env
		} else {
			path = DefaultConfigPath()
		}
	}

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	cfg.Server.StatsCacheTTL = time.Duration(cfg.Server.StatsCacheTTLSeconds) * time.Second

	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SIFT_DB_PATH"); v != "" {
		cfg.Server.DBPath = v
	}
	if v := os.Getenv("SIFT_SERVER"); v != "" {
		cfg.Agent.Server = v
		cfg.CLI.Server = v
	}
	if v := os.Getenv("SIFT_HOST"); v != "" {
		cfg.Agent.Host = v
	}
	if v := os.Getenv("SIFT_STATS_CACHE_TTL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.StatsCacheTTLSeconds = n
		}
	}
}
