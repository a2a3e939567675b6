package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFillsDefaultsForOmittedFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idbctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_path: /var/lib/idbstore\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/idbstore", cfg.StoragePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogJSON)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}

func TestLoadOverridesEveryField(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idbctl.yaml")
	content := "storage_path: /data\nlog_level: debug\nlog_json: true\nmetrics_addr: :9999\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.StoragePath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogJSON)
	assert.Equal(t, ":9999", cfg.MetricsAddr)
}

func TestLoadRejectsEmptyStoragePath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "idbctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_path: \"\"\nlog_level: debug\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFileReturnsError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
