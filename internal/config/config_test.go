package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:38800", cfg.ListenAddr())
	assert.Equal(t, 1.5, cfg.Search.K1)
	assert.Equal(t, 0.75, cfg.Search.B)
	assert.Equal(t, 0.5, cfg.Search.BM25Weight)
	assert.Equal(t, 0.5, cfg.Search.SemanticWeight)
	assert.Equal(t, 60.0, cfg.Search.RRFK)
	assert.Equal(t, 24, cfg.Decay.WorkerIntervalHours)
	assert.Equal(t, 0.05, cfg.Decay.PruneThreshold)
	assert.Equal(t, 0.08, cfg.Decay.PerTypeStrength["episodic"])
	assert.True(t, cfg.Rerank.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reverie.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9999
search:
  bm25_weight: 0.7
  semantic_weight: 0.3
log:
  level: debug
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 0.7, cfg.Search.BM25Weight)
	assert.Equal(t, 0.3, cfg.Search.SemanticWeight)
	assert.Equal(t, "debug", cfg.Log.Level)
	// Untouched keys keep their defaults.
	assert.Equal(t, "127.0.0.1", cfg.Server.Bind)
	assert.Equal(t, 60.0, cfg.Search.RRFK)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("REVERIE_SERVER__PORT", "4242")
	t.Setenv("REVERIE_SEARCH__BM25_WEIGHT", "0.9")
	t.Setenv("REVERIE_LOG__LEVEL", "warn")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 4242, cfg.Server.Port)
	assert.Equal(t, 0.9, cfg.Search.BM25Weight)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero k1", func(c *Config) { c.Search.K1 = 0 }},
		{"b above one", func(c *Config) { c.Search.B = 1.5 }},
		{"negative bm25 weight", func(c *Config) { c.Search.BM25Weight = -0.1 }},
		{"semantic weight above one", func(c *Config) { c.Search.SemanticWeight = 1.1 }},
		{"zero rrf k", func(c *Config) { c.Search.RRFK = 0 }},
		{"port out of range", func(c *Config) { c.Server.Port = 70000 }},
		{"prune threshold above one", func(c *Config) { c.Decay.PruneThreshold = 2 }},
		{"zero decay strength", func(c *Config) { c.Decay.BaseStrength = 0 }},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := Validate(&cfg)
			require.Error(t, err)

			var details ValidationErrors
			require.ErrorAs(t, err, &details)
			assert.NotEmpty(t, details)
			assert.NotEmpty(t, details[0].Field)
			assert.NotEmpty(t, details[0].Message)
		})
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := Default()
	assert.NoError(t, Validate(&cfg))
}
