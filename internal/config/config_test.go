package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "dfs", cfg.SelectionPolicy)
	assert.Equal(t, "fd", cfg.SolverBackend)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "webconcolic.log", cfg.Logging.File)
}

func TestConfig_SaveLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.URL = "http://target.test"
	cfg.IterationLimit = 50
	cfg.PresetFieldValues = map[string]string{"tenant_id": "42"}

	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://target.test", loaded.URL)
	assert.Equal(t, 50, loaded.IterationLimit)
	assert.Equal(t, "42", loaded.PresetFieldValues["tenant_id"])
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "does-not-exist.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dfs", cfg.SelectionPolicy)
}

func TestConfig_EnvOverrides(t *testing.T) {
	os.Setenv("WEBCONCOLIC_URL", "http://env.test")
	defer os.Unsetenv("WEBCONCOLIC_URL")
	os.Setenv("WEBCONCOLIC_SOLVER_BACKEND", "fd")
	defer os.Unsetenv("WEBCONCOLIC_SOLVER_BACKEND")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "http://env.test", cfg.URL)
	assert.Equal(t, "fd", cfg.SolverBackend)
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	assert.Error(t, cfg.Validate(), "expected error for missing URL")

	cfg.URL = "http://target.test"
	assert.NoError(t, cfg.Validate())

	cfg.SelectionPolicy = "not-a-policy"
	assert.Error(t, cfg.Validate())

	cfg.SelectionPolicy = "dfs"
	cfg.SolverBackend = "not-a-backend"
	assert.Error(t, cfg.Validate())
}

func TestConfig_GetNavigationTimeout(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, int(30), int(cfg.GetNavigationTimeout().Seconds()))

	cfg.Browser.NavigationTimeoutMs = 5000
	assert.Equal(t, int(5), int(cfg.GetNavigationTimeout().Seconds()))
}
