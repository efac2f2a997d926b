package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statcube.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfigFile(t, "database:\n  name: statcube\n")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "statcube", cfg.Database.Name)
	assert.Equal(t, 8, cfg.Database.MaxConns)
	assert.Equal(t, 30*time.Minute, cfg.Database.MaxConnLifetime)
	assert.Equal(t, "fs", cfg.Storage.Backend)
	assert.Equal(t, []string{"en-GB", "cy-GB"}, cfg.Locales.Supported)
	assert.Equal(t, "en-GB", cfg.Locales.Default)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfigFile(t, `
database:
  name: statcube
  host: db.internal
  max_conns: 32
engine:
  memory_limit: 8GB
locales:
  supported: [en-GB]
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 32, cfg.Database.MaxConns)
	assert.Equal(t, "8GB", cfg.Engine.MemoryLimit)
	assert.Equal(t, []string{"en-GB"}, cfg.Locales.Supported)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, "database:\n  name: statcube\n  host: from-file\n")
	t.Setenv("STATCUBE_DATABASE_HOST", "from-env")
	t.Setenv("STATCUBE_DATABASE_MAX_CONNS", "16")
	t.Setenv("STATCUBE_STAGING_DIR", "/tmp/staging")

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Database.Host)
	assert.Equal(t, 16, cfg.Database.MaxConns)
	assert.Equal(t, "/tmp/staging", cfg.StagingDir)
}

func TestLoadFlagsOverrideEnv(t *testing.T) {
	path := writeConfigFile(t, "database:\n  name: statcube\n")
	t.Setenv("STATCUBE_DATABASE_HOST", "from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("database-host", "", "")
	flags.String("staging-dir", "", "")
	require.NoError(t, flags.Parse([]string{"--database-host=from-flag", "--staging-dir=/tmp/s"}))

	cfg, err := Load(path, flags)
	require.NoError(t, err)

	assert.Equal(t, "from-flag", cfg.Database.Host)
	assert.Equal(t, "/tmp/s", cfg.StagingDir)
}

func TestLoadUnchangedFlagsIgnored(t *testing.T) {
	path := writeConfigFile(t, "database:\n  name: statcube\n  host: from-file\n")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("database-host", "", "")
	require.NoError(t, flags.Parse(nil))

	cfg, err := Load(path, flags)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Database.Host)
}

func TestLoadResolvesPathsRelativeToConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "statcube.yaml")
	require.NoError(t, os.WriteFile(path, []byte("database:\n  name: statcube\nengine:\n  path: data/engine.duckdb\n"), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "data", "engine.duckdb"), cfg.Engine.Path)
	assert.Equal(t, filepath.Join(dir, "querystore.db"), cfg.Cache.Path)
	assert.Equal(t, filepath.Join(dir, "uploads"), cfg.Storage.RootDir)
}

func TestLoadValidates(t *testing.T) {
	path := writeConfigFile(t, "storage:\n  backend: fs\n")
	_, err := Load(path, nil)
	require.Error(t, err, "missing database name must fail validation")

	path = writeConfigFile(t, "database:\n  name: statcube\nstorage:\n  backend: carrier-pigeon\n")
	_, err = Load(path, nil)
	require.Error(t, err)

	path = writeConfigFile(t, "database:\n  name: statcube\nstorage:\n  backend: s3\n")
	_, err = Load(path, nil)
	require.Error(t, err, "s3 backend without bucket must fail validation")
}
