// Package config loads the handful of environment variables this engine
// reads at startup, following the same flat-struct, env-override shape the
// teacher's own infrastructure config uses, generalized to an injectable
// lookup function so tests never have to touch process-global environment
// state.
package config

import (
	"fmt"
)

// Neo4jConfig names the graph target this run writes to.
type Neo4jConfig struct {
	URI          string
	Username     string
	Password     string
	Database     string
	TestDatabase string
}

// ReporterConfig names the optional secondary datastore progress is
// mirrored into. DatabaseDSN is empty when no mirroring is configured.
type ReporterConfig struct {
	DatabaseDSN string
}

// Config is the engine's complete runtime configuration.
type Config struct {
	Neo4j     Neo4jConfig
	Reporter  ReporterConfig
	ErrorPath string
	TestMode  bool
}

// EnvFunc looks up an environment variable, mirroring os.LookupEnv.
type EnvFunc func(key string) (string, bool)

// DefaultConfig returns the zero-value baseline before environment
// overrides are applied: no reporter mirroring, errors written alongside
// the working directory.
func DefaultConfig() *Config {
	return &Config{
		ErrorPath: "etl-errors.ndjson",
	}
}

// FromEnv builds a Config by reading exactly the variables this engine
// understands (NEO4J_URI, NEO4J_USERNAME, NEO4J_PASSWORD, NEO4J_DATABASE,
// NEO4J_TEST_DATABASE, REPORTER_DATABASE, ETL_ERROR_PATH,
// GRAPH_ETL_TEST_MODE) through env rather than os.Getenv directly, and
// validates the result.
func FromEnv(env EnvFunc) (*Config, error) {
	cfg := DefaultConfig()

	cfg.Neo4j.URI, _ = env("NEO4J_URI")
	cfg.Neo4j.Username, _ = env("NEO4J_USERNAME")
	cfg.Neo4j.Password, _ = env("NEO4J_PASSWORD")
	cfg.Neo4j.Database, _ = env("NEO4J_DATABASE")
	cfg.Neo4j.TestDatabase, _ = env("NEO4J_TEST_DATABASE")
	cfg.Reporter.DatabaseDSN, _ = env("REPORTER_DATABASE")

	if errorPath, ok := env("ETL_ERROR_PATH"); ok && errorPath != "" {
		cfg.ErrorPath = errorPath
	}

	if _, ok := env("GRAPH_ETL_TEST_MODE"); ok {
		cfg.TestMode = true
		if cfg.Neo4j.TestDatabase != "" {
			cfg.Neo4j.Database = cfg.Neo4j.TestDatabase
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first configuration problem found. A missing
// Reporter DSN is never an error: reporter mirroring is optional.
func (c *Config) Validate() error {
	if c.Neo4j.URI == "" {
		return fmt.Errorf("config: NEO4J_URI is required")
	}
	if c.Neo4j.Username == "" {
		return fmt.Errorf("config: NEO4J_USERNAME is required")
	}
	if c.Neo4j.Database == "" {
		return fmt.Errorf("config: NEO4J_DATABASE is required")
	}
	if c.TestMode && c.Neo4j.TestDatabase == "" {
		return fmt.Errorf("config: NEO4J_TEST_DATABASE is required when GRAPH_ETL_TEST_MODE is set")
	}
	return nil
}

// MirrorEnabled reports whether REPORTER_DATABASE was set.
func (c *Config) MirrorEnabled() bool {
	return c.Reporter.DatabaseDSN != ""
}
