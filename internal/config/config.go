// Package config loads the dynmcp server's configuration: layered from
// built-in defaults, an optional TOML file, then environment variables
// (environment always wins), following the teacher's config precedence.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the dynmcp server. Precedence:
// environment variables > config file > defaults.
type Config struct {
	Metadata  MetadataConfig  `toml:"metadata"`
	Data      DataConfig      `toml:"data"`
	Dashboard DashboardConfig `toml:"dashboard"`
	Schema    SchemaConfig    `toml:"schema"`
	Server    ServerConfig    `toml:"server"`
	Transport TransportConfig `toml:"transport"`
	Log       LogConfig       `toml:"log"`
}

// MetadataConfig points at the metadata database: the Registry/Artifact/
// Audit store (spec.md §9 "metadata_url (string, required)").
type MetadataConfig struct {
	URL string `toml:"url"`
}

// DataConfig points at the optional data-session store SQL tools query
// (spec.md §9 "data_url (string, optional)"), plus the reconnect policy
// internal/datasession.Pool applies when it is unreachable.
type DataConfig struct {
	URL                    string `toml:"url"`
	MaxRetries             int    `toml:"max_retries"`
	LongOutageIntervalMins int    `toml:"long_outage_interval_mins"`
	LongOutageThreshold    int    `toml:"long_outage_threshold"`
}

// DashboardConfig controls kind=ui dispatch (spec.md §6, §9).
type DashboardConfig struct {
	Enabled    bool   `toml:"enabled"`
	StorageDir string `toml:"storage_dir"`
}

// SchemaConfig controls table-name resolution (spec.md §9 "schema_prefix",
// "table_name_overrides").
type SchemaConfig struct {
	Prefix          string            `toml:"prefix"`
	TableOverrides  map[string]string `toml:"table_overrides"`
}

// ServerConfig holds MCP server metadata.
type ServerConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// TransportConfig holds transport-related settings (spec.md §6 "CLI
// surface": transport stdio/sse, host, port).
type TransportConfig struct {
	// Mode selects the transport: "stdio" (default) or "sse" (served over
	// the Streamable HTTP transport in internal/mcp/http.go).
	Mode        string `toml:"mode"`
	Port        string `toml:"port"`
	Host        string `toml:"host"`
	CORSOrigins string `toml:"cors_origins"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
	Dir   string `toml:"dir"`   // empty means stderr only
}

// Load creates a Config by reading from a TOML config file and environment
// variables. Precedence: environment variables > config file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via configPath parameter (from --config flag)
//  2. DYNMCP_CONFIG environment variable
//  3. ./dynmcp.toml (current directory)
//  4. ~/.config/dynmcp/dynmcp.toml (XDG-style)
//
// All fields are optional in the config file except metadata.url.
// Environment variables always override file values. An unrecognized key
// anywhere in the file is a configuration error (spec.md §9).
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Data: DataConfig{
			MaxRetries:             5,
			LongOutageIntervalMins: 5,
			LongOutageThreshold:    3,
		},
		Dashboard: DashboardConfig{
			Enabled:    false,
			StorageDir: "",
		},
		Server: ServerConfig{
			Name:    "dynmcp",
			Version: "0.1.0",
		},
		Transport: TransportConfig{
			Mode:        "stdio",
			Port:        "21452",
			Host:        "0.0.0.0",
			CORSOrigins: "*",
		},
		Log: LogConfig{
			Level: "info",
		},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile finds and parses the TOML config file. If no file is found,
// this is a no-op (config file is optional).
func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil
	}

	meta, err := toml.DecodeFile(path, c)
	if err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("config file %s: unrecognized key %q", path, undecoded[0].String())
	}

	return nil
}

// resolveConfigPath determines which config file to use. Returns empty
// string if no config file is found (config file is optional).
func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if p := os.Getenv("DYNMCP_CONFIG"); p != "" {
		return p
	}
	if _, err := os.Stat("dynmcp.toml"); err == nil {
		return "dynmcp.toml"
	}
	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/dynmcp/dynmcp.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// applyEnv overlays environment variables on top of existing config
// values. An env var only takes effect if it is non-empty.
func (c *Config) applyEnv() {
	envOverride("DYNMCP_METADATA_URL", &c.Metadata.URL)
	envOverride("DYNMCP_DATA_URL", &c.Data.URL)

	envOverride("DYNMCP_SCHEMA_PREFIX", &c.Schema.Prefix)

	envOverride("DYNMCP_TRANSPORT", &c.Transport.Mode)
	envOverride("DYNMCP_PORT", &c.Transport.Port)
	envOverride("DYNMCP_HOST", &c.Transport.Host)
	envOverride("DYNMCP_CORS_ORIGINS", &c.Transport.CORSOrigins)

	envOverride("DYNMCP_LOG_LEVEL", &c.Log.Level)
	envOverride("DYNMCP_LOG_DIR", &c.Log.Dir)

	if v := os.Getenv("DYNMCP_DASHBOARD_ENABLED"); v != "" {
		c.Dashboard.Enabled = v == "true" || v == "1"
	}
	envOverride("DYNMCP_DASHBOARD_STORAGE_DIR", &c.Dashboard.StorageDir)
}

// Validate checks that required fields are present and enum fields hold a
// recognized value.
func (c *Config) Validate() error {
	if c.Metadata.URL == "" {
		return fmt.Errorf("metadata.url is required: set metadata.url in config file, or DYNMCP_METADATA_URL env var")
	}

	switch c.Transport.Mode {
	case "stdio", "sse":
	default:
		return fmt.Errorf("invalid transport mode: %q (must be \"stdio\" or \"sse\")", c.Transport.Mode)
	}

	if c.Dashboard.Enabled && c.Dashboard.StorageDir == "" {
		return fmt.Errorf("dashboard.storage_dir is required when dashboard.enabled is true")
	}

	return nil
}

// envOverride sets *dst to the value of the named env var, if it is
// non-empty.
func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
