package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"DYNMCP_CONFIG", "DYNMCP_METADATA_URL", "DYNMCP_DATA_URL",
		"DYNMCP_SCHEMA_PREFIX", "DYNMCP_TRANSPORT", "DYNMCP_PORT", "DYNMCP_HOST",
		"DYNMCP_CORS_ORIGINS", "DYNMCP_LOG_LEVEL", "DYNMCP_LOG_DIR",
		"DYNMCP_DASHBOARD_ENABLED", "DYNMCP_DASHBOARD_STORAGE_DIR",
	}
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func writeTOML(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadRequiresMetadataURL(t *testing.T) {
	clearEnv(t)
	_, err := Load(writeTOML(t, t.TempDir(), "dynmcp.toml", `
[server]
name = "x"
`))
	require.Error(t, err)
	require.Contains(t, err.Error(), "metadata.url is required")
}

func TestLoadAppliesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTOML(t, t.TempDir(), "dynmcp.toml", `
[metadata]
url = "sqlite://meta.db"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "sqlite://meta.db", cfg.Metadata.URL)
	require.Equal(t, 5, cfg.Data.MaxRetries)
	require.Equal(t, 5, cfg.Data.LongOutageIntervalMins)
	require.Equal(t, 3, cfg.Data.LongOutageThreshold)
	require.False(t, cfg.Dashboard.Enabled)
	require.Equal(t, "dynmcp", cfg.Server.Name)
	require.Equal(t, "0.1.0", cfg.Server.Version)
	require.Equal(t, "stdio", cfg.Transport.Mode)
	require.Equal(t, "21452", cfg.Transport.Port)
	require.Equal(t, "0.0.0.0", cfg.Transport.Host)
	require.Equal(t, "*", cfg.Transport.CORSOrigins)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTOML(t, t.TempDir(), "dynmcp.toml", `
[metadata]
url = "sqlite://meta.db"

[data]
url = "sqlite://data.db"
max_retries = 10

[transport]
mode = "sse"
port = "9999"

[log]
level = "debug"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "sqlite://data.db", cfg.Data.URL)
	require.Equal(t, 10, cfg.Data.MaxRetries)
	require.Equal(t, "sse", cfg.Transport.Mode)
	require.Equal(t, "9999", cfg.Transport.Port)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadFileUnrecognizedKeyErrors(t *testing.T) {
	clearEnv(t)
	path := writeTOML(t, t.TempDir(), "dynmcp.toml", `
[metadata]
url = "sqlite://meta.db"
bogus_key = "oops"
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unrecognized key")
}

func TestEnvOverridesFileValue(t *testing.T) {
	clearEnv(t)
	path := writeTOML(t, t.TempDir(), "dynmcp.toml", `
[metadata]
url = "sqlite://meta.db"

[transport]
mode = "stdio"
`)
	t.Setenv("DYNMCP_TRANSPORT", "sse")
	t.Setenv("DYNMCP_METADATA_URL", "sqlite://from-env.db")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "sse", cfg.Transport.Mode)
	require.Equal(t, "sqlite://from-env.db", cfg.Metadata.URL)
}

func TestDashboardEnabledEnvVarParsesTruthyValues(t *testing.T) {
	clearEnv(t)
	path := writeTOML(t, t.TempDir(), "dynmcp.toml", `
[metadata]
url = "sqlite://meta.db"
`)
	t.Setenv("DYNMCP_DASHBOARD_ENABLED", "1")
	t.Setenv("DYNMCP_DASHBOARD_STORAGE_DIR", "/tmp/dash")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.True(t, cfg.Dashboard.Enabled)
	require.Equal(t, "/tmp/dash", cfg.Dashboard.StorageDir)
}

func TestValidateRejectsInvalidTransportMode(t *testing.T) {
	clearEnv(t)
	cfg := &Config{Metadata: MetadataConfig{URL: "sqlite://meta.db"}, Transport: TransportConfig{Mode: "carrier-pigeon"}}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid transport mode")
}

func TestValidateRejectsDashboardEnabledWithoutStorageDir(t *testing.T) {
	clearEnv(t)
	cfg := &Config{
		Metadata:  MetadataConfig{URL: "sqlite://meta.db"},
		Transport: TransportConfig{Mode: "stdio"},
		Dashboard: DashboardConfig{Enabled: true},
	}
	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "dashboard.storage_dir is required")
}

func TestLoadMissingConfigFileIsNotAnErrorWhenEnvSuppliesMetadata(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(cwd) })

	t.Setenv("DYNMCP_METADATA_URL", "sqlite://meta.db")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "sqlite://meta.db", cfg.Metadata.URL)
}

func TestResolveConfigPathPrefersExplicitOverEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DYNMCP_CONFIG", "/from/env.toml")
	require.Equal(t, "/explicit.toml", resolveConfigPath("/explicit.toml"))
}

func TestResolveConfigPathFallsBackToEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("DYNMCP_CONFIG", "/from/env.toml")
	require.Equal(t, "/from/env.toml", resolveConfigPath(""))
}

func TestResolveConfigPathReturnsEmptyWhenNothingFound(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(cwd) })

	require.Equal(t, "", resolveConfigPath(""))
}
