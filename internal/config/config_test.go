package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolateUserConfig points XDG_CONFIG_HOME at an empty temp dir so the
// developer's own config never leaks into tests.
func isolateUserConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	return dir
}

// =============================================================================
// Defaults
// =============================================================================

func TestNewConfig_ReturnsDefaults(t *testing.T) {
	cfg := NewConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, 16, cfg.Server.MaxBodyMB)
	assert.Equal(t, "bleve", cfg.Index.Backend)
	assert.Equal(t, ".termsearch", cfg.Index.DataDir)
	assert.Equal(t, 5, cfg.Index.CircuitMaxFailures)
	assert.Equal(t, 30*time.Second, cfg.Index.ResetTimeout())
	assert.Equal(t, []string{"TerminologicalVocabulary", "Vocabulary"}, cfg.Classification.VocabularyTypes)
	assert.Equal(t, []string{"Concept"}, cfg.Classification.ConceptTypes)
	assert.False(t, cfg.Dispatch.ContinueOnError)
	assert.False(t, cfg.Spool.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Spool.Interval())

	read, write, shutdown := cfg.Server.Durations()
	assert.Equal(t, 10*time.Second, read)
	assert.Equal(t, 60*time.Second, write)
	assert.Equal(t, 15*time.Second, shutdown)

	assert.NoError(t, cfg.Validate())
}

func TestNewConfig_DefaultSetsAreCopies(t *testing.T) {
	cfg := NewConfig()
	cfg.Classification.ConceptTypes[0] = "Changed"
	assert.Equal(t, "Concept", DefaultConceptTypes[0])
}

// =============================================================================
// Layered loading
// =============================================================================

func TestLoad_NoFilesUsesDefaults(t *testing.T) {
	isolateUserConfig(t)

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoad_ProjectConfigOverridesUserConfig(t *testing.T) {
	// Given: a user config and a project config
	xdg := isolateUserConfig(t)
	userPath := filepath.Join(xdg, "termsearch", "config.yaml")
	require.NoError(t, os.MkdirAll(filepath.Dir(userPath), 0o755))
	require.NoError(t, os.WriteFile(userPath, []byte(`
server:
  addr: ":9000"
  log_level: debug
index:
  backend: sqlite
`), 0o644))

	projectDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(projectDir, ProjectConfigName), []byte(`
server:
  addr: ":9100"
classification:
  concept_types: [Concept, Term]
dispatch:
  continue_on_error: true
`), 0o644))

	// When: loading
	cfg, err := Load(projectDir)
	require.NoError(t, err)

	// Then: project wins over user, user wins over defaults
	assert.Equal(t, ":9100", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, "sqlite", cfg.Index.Backend)
	assert.Equal(t, []string{"Concept", "Term"}, cfg.Classification.ConceptTypes)
	assert.Equal(t, DefaultVocabularyTypes, cfg.Classification.VocabularyTypes)
	assert.True(t, cfg.Dispatch.ContinueOnError)
}

func TestLoad_YmlFallback(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".termsearch.yml"), []byte("server:\n  addr: \":7000\"\n"), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Server.Addr)
}

func TestLoad_EnvOverridesWin(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("dispatch:\n  continue_on_error: true\n"), 0o644))

	t.Setenv("TERMSEARCH_ADDR", "127.0.0.1:8181")
	t.Setenv("TERMSEARCH_INDEX_BACKEND", "sqlite")
	t.Setenv("TERMSEARCH_CONCEPT_TYPES", "Concept, Collection ,")
	t.Setenv("TERMSEARCH_CONTINUE_ON_ERROR", "false")
	t.Setenv("TERMSEARCH_CIRCUIT_MAX_FAILURES", "not-a-number")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8181", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Index.Backend)
	assert.Equal(t, []string{"Concept", "Collection"}, cfg.Classification.ConceptTypes)
	assert.False(t, cfg.Dispatch.ContinueOnError)
	assert.Equal(t, 5, cfg.Index.CircuitMaxFailures, "invalid numbers are ignored")
}

func TestLoad_InvalidYAML(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("server: [unclosed"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestLoad_InvalidValuesFailValidation(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ProjectConfigName), []byte("index:\n  backend: elastic\n"), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "index.backend")
}

// =============================================================================
// Validation
// =============================================================================

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"bad log level", func(c *Config) { c.Server.LogLevel = "trace" }, "server.log_level"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"zero body limit", func(c *Config) { c.Server.MaxBodyMB = 0 }, "server.max_body_mb"},
		{"bad duration", func(c *Config) { c.Server.ReadTimeout = "soon" }, "server.read_timeout"},
		{"negative duration", func(c *Config) { c.Spool.PollInterval = "-1s" }, "spool.poll_interval"},
		{"unknown backend", func(c *Config) { c.Index.Backend = "solr" }, "index.backend"},
		{"negative circuit", func(c *Config) { c.Index.CircuitMaxFailures = -1 }, "circuit_max_failures"},
		{"empty vocab set", func(c *Config) { c.Classification.VocabularyTypes = nil }, "vocabulary_types"},
		{"empty concept set", func(c *Config) { c.Classification.ConceptTypes = []string{} }, "concept_types"},
		{"blank concept", func(c *Config) { c.Classification.ConceptTypes = []string{" "} }, "blank"},
		{"overlapping sets", func(c *Config) { c.Classification.ConceptTypes = []string{"Vocabulary"} }, "both vocabulary and concept"},
		{"spool without dir", func(c *Config) { c.Spool.Enabled = true; c.Spool.Dir = "" }, "spool.dir"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidate_BackendIsCaseInsensitive(t *testing.T) {
	cfg := NewConfig()
	cfg.Index.Backend = "SQLite"
	assert.NoError(t, cfg.Validate())
}

// =============================================================================
// Persistence
// =============================================================================

func TestWriteYAML_RoundTripsThroughLoad(t *testing.T) {
	isolateUserConfig(t)
	dir := t.TempDir()

	cfg := NewConfig()
	cfg.Server.Addr = ":9999"
	cfg.Classification.VocabularyTypes = []string{"Vocabulary"}
	require.NoError(t, cfg.WriteYAML(filepath.Join(dir, ProjectConfigName)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, ":9999", loaded.Server.Addr)
	assert.Equal(t, []string{"Vocabulary"}, loaded.Classification.VocabularyTypes)
}
