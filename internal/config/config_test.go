package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"upon/internal/engine"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644))
	return dir
}

func TestLoad_OverridesDefaults(t *testing.T) {
	dir := writeConfig(t, "max_cycles = 50\nworkers = 4\nlog_level = \"debug\"\ntrace_path = \"out/trace.json\"\n")

	cfg, err := Load(filepath.Join(dir, FileName))
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.MaxCycles)
	assert.Equal(t, engine.DefaultMaxInstances, cfg.MaxInstances, "unset keys keep defaults")
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "out/trace.json", cfg.TracePath)
	assert.Equal(t, ".", cfg.StoreDir)
	assert.Len(t, cfg.Options(), 3)
}

func TestLoad_RejectsUnknownKeys(t *testing.T) {
	dir := writeConfig(t, "max_cycles = 5\nmax_cycle = 6\n")
	_, err := Load(filepath.Join(dir, FileName))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown keys: max_cycle")
}

func TestLoad_ValidationJoinsErrors(t *testing.T) {
	dir := writeConfig(t, "max_cycles = -1\nworkers = -2\nlog_level = \"shouty\"\n")
	_, err := Load(filepath.Join(dir, FileName))
	require.Error(t, err)
	for _, want := range []string{"max_cycles must be >= 0", "workers must be >= 0", "log level"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoad_SyntaxError(t *testing.T) {
	dir := writeConfig(t, "max_cycles = = 3\n")
	_, err := Load(filepath.Join(dir, FileName))
	require.Error(t, err)
}

func TestDiscover(t *testing.T) {
	cfg, path, err := Discover(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), cfg)
	assert.Len(t, cfg.Options(), 2, "workers default to one per CPU")

	dir := writeConfig(t, "max_instances = 7\n")
	cfg, path, err = Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), path)
	assert.Equal(t, 7, cfg.MaxInstances)
}
