package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "mqtt", cfg.Bus.Backend)
	assert.Equal(t, "en-us", cfg.Lang.Default)
	assert.Equal(t, []string{"en-us"}, cfg.Lang.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.Session.TTL)
	assert.Equal(t, DefaultPipeline, cfg.Pipeline.Stages)
	assert.False(t, cfg.Pipeline.CatchAll.Enabled)
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roundhouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
bus:
  backend: inproc
lang:
  default: pt-pt
  enabled: [pt-pt, en-us]
session:
  ttl: 90s
pipeline:
  stages: [converse, keyword, fallback_low]
  catch_all:
    enabled: true
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "inproc", cfg.Bus.Backend)
	assert.Equal(t, "pt-pt", cfg.Lang.Default)
	assert.Equal(t, []string{"pt-pt", "en-us"}, cfg.Lang.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Session.TTL)
	assert.Equal(t, []string{"converse", "keyword", "fallback_low"}, cfg.Pipeline.Stages)
	assert.True(t, cfg.Pipeline.CatchAll.Enabled)
	assert.Equal(t, "fallback.unhandled", cfg.Pipeline.CatchAll.IntentType)
}

func TestLoadRejectsNonPositiveTTL(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roundhouse.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  ttl: 0s\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}
