package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfigName is the per-directory configuration file.
const ProjectConfigName = ".termsearch.yaml"

// Config represents the complete termsearch configuration.
type Config struct {
	Version        int                  `yaml:"version" json:"version"`
	Server         ServerConfig         `yaml:"server" json:"server"`
	Index          IndexConfig          `yaml:"index" json:"index"`
	Classification ClassificationConfig `yaml:"classification" json:"classification"`
	Dispatch       DispatchConfig       `yaml:"dispatch" json:"dispatch"`
	Spool          SpoolConfig          `yaml:"spool" json:"spool"`
}

// ServerConfig configures the HTTP notification endpoint.
type ServerConfig struct {
	Addr            string `yaml:"addr" json:"addr"`
	LogLevel        string `yaml:"log_level" json:"log_level"`
	LogFile         string `yaml:"log_file" json:"log_file"`
	ReadTimeout     string `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    string `yaml:"write_timeout" json:"write_timeout"`
	ShutdownTimeout string `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	// MaxBodyMB caps the size of a notification request body.
	MaxBodyMB int `yaml:"max_body_mb" json:"max_body_mb"`
}

// IndexConfig configures the local node index.
type IndexConfig struct {
	// Backend selects the index backend: "bleve" (default) or "sqlite".
	Backend string `yaml:"backend" json:"backend"`
	// DataDir holds the index files and the process lock.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// CircuitMaxFailures is the number of consecutive index failures
	// after which calls fail fast.
	CircuitMaxFailures int `yaml:"circuit_max_failures" json:"circuit_max_failures"`
	// CircuitResetTimeout is how long the circuit stays open before a probe.
	CircuitResetTimeout string `yaml:"circuit_reset_timeout" json:"circuit_reset_timeout"`
}

// ClassificationConfig holds the type-name sets used to classify nodes.
// The two sets must be disjoint.
type ClassificationConfig struct {
	VocabularyTypes []string `yaml:"vocabulary_types" json:"vocabulary_types"`
	ConceptTypes    []string `yaml:"concept_types" json:"concept_types"`
}

// DispatchConfig configures per-graph dispatch within one notification.
type DispatchConfig struct {
	// ContinueOnError attempts every graph group and returns the joined
	// errors instead of stopping at the first failing group.
	ContinueOnError bool `yaml:"continue_on_error" json:"continue_on_error"`
}

// SpoolConfig configures the spool directory ingestion path.
type SpoolConfig struct {
	Enabled      bool   `yaml:"enabled" json:"enabled"`
	Dir          string `yaml:"dir" json:"dir"`
	PollInterval string `yaml:"poll_interval" json:"poll_interval"`
}

// DefaultVocabularyTypes are the node types indexed as vocabularies.
var DefaultVocabularyTypes = []string{"TerminologicalVocabulary", "Vocabulary"}

// DefaultConceptTypes are the node types indexed as concepts.
var DefaultConceptTypes = []string{"Concept"}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Server: ServerConfig{
			Addr:            ":8080",
			LogLevel:        "info",
			LogFile:         "",
			ReadTimeout:     "10s",
			WriteTimeout:    "60s",
			ShutdownTimeout: "15s",
			MaxBodyMB:       16,
		},
		Index: IndexConfig{
			Backend:             "bleve",
			DataDir:             ".termsearch",
			CircuitMaxFailures:  5,
			CircuitResetTimeout: "30s",
		},
		Classification: ClassificationConfig{
			VocabularyTypes: append([]string(nil), DefaultVocabularyTypes...),
			ConceptTypes:    append([]string(nil), DefaultConceptTypes...),
		},
		Dispatch: DispatchConfig{
			ContinueOnError: false,
		},
		Spool: SpoolConfig{
			Enabled:      false,
			Dir:          filepath.Join(".termsearch", "spool"),
			PollInterval: "5s",
		},
	}
}

// GetUserConfigPath returns the path to the user/global configuration file.
// It follows XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/termsearch/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/termsearch/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "termsearch", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "termsearch", "config.yaml")
	}
	return filepath.Join(home, ".config", "termsearch", "config.yaml")
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist.
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()
	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration for the given directory.
// It applies configuration in order of increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/termsearch/config.yaml)
//  3. Project config (.termsearch.yaml in dir)
//  4. Environment variables (TERMSEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load .termsearch.yaml or .termsearch.yml from dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, ProjectConfigName)
	if fileExists(yamlPath) {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, ".termsearch.yml")
	if fileExists(ymlPath) {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Server
	if other.Server.Addr != "" {
		c.Server.Addr = other.Server.Addr
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}
	if other.Server.LogFile != "" {
		c.Server.LogFile = other.Server.LogFile
	}
	if other.Server.ReadTimeout != "" {
		c.Server.ReadTimeout = other.Server.ReadTimeout
	}
	if other.Server.WriteTimeout != "" {
		c.Server.WriteTimeout = other.Server.WriteTimeout
	}
	if other.Server.ShutdownTimeout != "" {
		c.Server.ShutdownTimeout = other.Server.ShutdownTimeout
	}
	if other.Server.MaxBodyMB != 0 {
		c.Server.MaxBodyMB = other.Server.MaxBodyMB
	}

	// Index
	if other.Index.Backend != "" {
		c.Index.Backend = other.Index.Backend
	}
	if other.Index.DataDir != "" {
		c.Index.DataDir = other.Index.DataDir
	}
	if other.Index.CircuitMaxFailures != 0 {
		c.Index.CircuitMaxFailures = other.Index.CircuitMaxFailures
	}
	if other.Index.CircuitResetTimeout != "" {
		c.Index.CircuitResetTimeout = other.Index.CircuitResetTimeout
	}

	// Classification sets replace the defaults rather than extend them,
	// so an operator can drop a default type name.
	if len(other.Classification.VocabularyTypes) > 0 {
		c.Classification.VocabularyTypes = other.Classification.VocabularyTypes
	}
	if len(other.Classification.ConceptTypes) > 0 {
		c.Classification.ConceptTypes = other.Classification.ConceptTypes
	}

	// Dispatch is a single boolean; false cannot be told apart from unset.
	if other.Dispatch.ContinueOnError {
		c.Dispatch.ContinueOnError = true
	}

	// Spool
	if other.Spool.Enabled {
		c.Spool.Enabled = true
	}
	if other.Spool.Dir != "" {
		c.Spool.Dir = other.Spool.Dir
	}
	if other.Spool.PollInterval != "" {
		c.Spool.PollInterval = other.Spool.PollInterval
	}
}

// applyEnvOverrides applies TERMSEARCH_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("TERMSEARCH_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("TERMSEARCH_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("TERMSEARCH_LOG_FILE"); v != "" {
		c.Server.LogFile = v
	}
	if v := os.Getenv("TERMSEARCH_INDEX_BACKEND"); v != "" {
		c.Index.Backend = v
	}
	if v := os.Getenv("TERMSEARCH_DATA_DIR"); v != "" {
		c.Index.DataDir = v
	}
	if v := os.Getenv("TERMSEARCH_CIRCUIT_MAX_FAILURES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.CircuitMaxFailures = n
		}
	}
	if v := os.Getenv("TERMSEARCH_VOCABULARY_TYPES"); v != "" {
		c.Classification.VocabularyTypes = splitList(v)
	}
	if v := os.Getenv("TERMSEARCH_CONCEPT_TYPES"); v != "" {
		c.Classification.ConceptTypes = splitList(v)
	}
	// Explicit env values may turn the flag off again.
	if v := os.Getenv("TERMSEARCH_CONTINUE_ON_ERROR"); v != "" {
		c.Dispatch.ContinueOnError = parseBool(v)
	}
	if v := os.Getenv("TERMSEARCH_SPOOL_ENABLED"); v != "" {
		c.Spool.Enabled = parseBool(v)
	}
	if v := os.Getenv("TERMSEARCH_SPOOL_DIR"); v != "" {
		c.Spool.Dir = v
	}
}

// splitList splits a comma-separated env value, dropping blanks.
func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes"
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr must not be empty")
	}
	if c.Server.MaxBodyMB <= 0 {
		return fmt.Errorf("server.max_body_mb must be positive, got %d", c.Server.MaxBodyMB)
	}

	durations := map[string]string{
		"server.read_timeout":         c.Server.ReadTimeout,
		"server.write_timeout":        c.Server.WriteTimeout,
		"server.shutdown_timeout":     c.Server.ShutdownTimeout,
		"index.circuit_reset_timeout": c.Index.CircuitResetTimeout,
		"spool.poll_interval":         c.Spool.PollInterval,
	}
	for name, value := range durations {
		if _, err := parseDuration(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	switch strings.ToLower(c.Index.Backend) {
	case "bleve", "sqlite":
	default:
		return fmt.Errorf("index.backend must be 'bleve' or 'sqlite', got %s", c.Index.Backend)
	}
	if c.Index.CircuitMaxFailures < 0 {
		return fmt.Errorf("index.circuit_max_failures must be non-negative, got %d", c.Index.CircuitMaxFailures)
	}

	if err := c.Classification.Validate(); err != nil {
		return err
	}

	if c.Spool.Enabled && c.Spool.Dir == "" {
		return fmt.Errorf("spool.dir must be set when spool is enabled")
	}

	return nil
}

// Validate checks that both type sets are non-empty, contain no blank
// names, and do not overlap. Overlap would put one node id in both the
// vocabulary and the concept list of a graph.
func (cc ClassificationConfig) Validate() error {
	if len(cc.VocabularyTypes) == 0 {
		return fmt.Errorf("classification.vocabulary_types must not be empty")
	}
	if len(cc.ConceptTypes) == 0 {
		return fmt.Errorf("classification.concept_types must not be empty")
	}

	vocab := make(map[string]struct{}, len(cc.VocabularyTypes))
	for _, t := range cc.VocabularyTypes {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("classification.vocabulary_types contains a blank type name")
		}
		vocab[t] = struct{}{}
	}
	for _, t := range cc.ConceptTypes {
		if strings.TrimSpace(t) == "" {
			return fmt.Errorf("classification.concept_types contains a blank type name")
		}
		if _, dup := vocab[t]; dup {
			return fmt.Errorf("classification: type %q is listed as both vocabulary and concept", t)
		}
	}
	return nil
}

// Durations returns the parsed server timeouts.
func (s ServerConfig) Durations() (read, write, shutdown time.Duration) {
	read, _ = parseDuration(s.ReadTimeout)
	write, _ = parseDuration(s.WriteTimeout)
	shutdown, _ = parseDuration(s.ShutdownTimeout)
	return read, write, shutdown
}

// ResetTimeout returns the parsed circuit reset timeout.
func (i IndexConfig) ResetTimeout() time.Duration {
	d, _ := parseDuration(i.CircuitResetTimeout)
	return d
}

// Interval returns the parsed spool poll interval.
func (s SpoolConfig) Interval() time.Duration {
	d, _ := parseDuration(s.PollInterval)
	return d
}

// parseDuration parses a config duration; empty and "0" mean zero.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be non-negative, got %s", s)
	}
	return d, nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
