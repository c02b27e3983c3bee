// Package config loads process configuration from a JSON file with
// environment-variable overrides, the same two-layer convention the
// store package uses for its database settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/keato/chainpeer/internal/store"
)

// Config is the full process configuration: which network to join, how
// to reach a seed peer (or fall back to bootstrap discovery), where to
// serve metrics, and the database connection settings.
type Config struct {
	Network     string `json:"network"`
	SeedAddr    string `json:"seed_addr"`
	MetricsAddr string `json:"metrics_addr"`
	LogJSON     bool   `json:"log_json"`
	LogDebug    bool   `json:"log_debug"`
	DB          store.Config `json:"db"`
}

// Default returns a Config with the mainnet/production defaults applied.
func Default() Config {
	return Config{
		Network:     "bitcoin",
		MetricsAddr: ":9190",
	}
}

// Load reads cfg from path (if non-empty), starting from Default, and
// then applies CHAINPEER_* environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if v := os.Getenv("CHAINPEER_NETWORK"); v != "" {
		cfg.Network = v
	}
	if v := os.Getenv("CHAINPEER_SEED_ADDR"); v != "" {
		cfg.SeedAddr = v
	}
	if v := os.Getenv("CHAINPEER_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("CHAINPEER_LOG_JSON"); v != "" {
		cfg.LogJSON = v == "1" || v == "true"
	}
	if v := os.Getenv("CHAINPEER_LOG_DEBUG"); v != "" {
		cfg.LogDebug = v == "1" || v == "true"
	}

	dbCfg, err := store.LoadConfig("")
	if err != nil {
		return Config{}, err
	}
	if cfg.DB == (store.Config{}) {
		cfg.DB = *dbCfg
	} else {
		applyDBEnvOverrides(&cfg.DB)
	}

	return cfg, nil
}

func applyDBEnvOverrides(db *store.Config) {
	if v := os.Getenv("HEADERSTORE_DB_HOST"); v != "" {
		db.Host = v
	}
	if v := os.Getenv("HEADERSTORE_DB_USER"); v != "" {
		db.User = v
	}
	if v := os.Getenv("HEADERSTORE_DB_PASSWORD"); v != "" {
		db.Password = v
	}
	if v := os.Getenv("HEADERSTORE_DB_NAME"); v != "" {
		db.Name = v
	}
	if v := os.Getenv("HEADERSTORE_DB_PORT"); v != "" {
		var port int
		if _, err := fmt.Sscanf(v, "%d", &port); err == nil {
			db.Port = port
		}
	}
}
