package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the perceptd configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Detectors  DetectorsConfig  `yaml:"detectors"`
	Vocabulary VocabularyConfig `yaml:"vocabulary"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extractor  ExtractorConfig  `yaml:"extractor"`
	Journal    JournalConfig    `yaml:"journal"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds ops API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds ops HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds KV store settings (embedding cache, budget counters).
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis (default: memory)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// PipelineConfig holds frame loop settings.
type PipelineConfig struct {
	FrameIntervalMS int     `yaml:"frame_interval_ms"` // pull cadence (default: 200)
	Confidence      float64 `yaml:"confidence"`        // detection threshold (default: 0.35)
	StatsEvery      int     `yaml:"stats_every"`       // aggregate log line cadence in frames (default: 100)
	Feedback        bool    `yaml:"feedback"`          // drive the haptic actuator from merged output
}

// DetectorsConfig holds settings for both detector wrappers.
type DetectorsConfig struct {
	Backend  string         `yaml:"backend"` // sim, http (default: sim)
	Guardian GuardianConfig `yaml:"guardian"`
	Learner  LearnerConfig  `yaml:"learner"`
}

// GuardianConfig holds the static safety detector settings.
// Classes empty means the built-in safety set.
type GuardianConfig struct {
	URL      string   `yaml:"url"` // http backend endpoint
	Classes  []string `yaml:"classes"`
	BudgetMS int      `yaml:"budget_ms"` // warn threshold (default: 100)
}

// LearnerConfig holds the dynamic-vocabulary detector settings.
type LearnerConfig struct {
	URL            string `yaml:"url"`
	BudgetMS       int    `yaml:"budget_ms"`       // inference warn threshold (default: 150)
	VocabBudgetMS  int    `yaml:"vocab_budget_ms"` // set-vocabulary warn threshold (default: 50)
	PromptTemplate string `yaml:"prompt_template"` // must contain one %s
}

// VocabularyConfig holds the learned vocabulary store settings.
type VocabularyConfig struct {
	Path          string `yaml:"path"`            // persisted JSON file (default: vocabulary.json)
	MaxEntries    int    `yaml:"max_entries"`     // soft capacity (default: 50)
	PruneAgeHours int    `yaml:"prune_age_hours"` // default: 24
	MinUseCount   int    `yaml:"min_use_count"`   // default: 3
}

// AggregatorConfig holds merge ordering settings.
// PriorityClasses empty means the built-in priority set.
type AggregatorConfig struct {
	PriorityClasses []string `yaml:"priority_classes"`
}

// BudgetConfig holds token budget settings.
type BudgetConfig struct {
	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	Action            string `yaml:"action"`              // "reject" | "warn" (default)
}

// EmbeddingConfig holds the class-prompt embedding provider settings.
// Provider "none" disables embedding; pushes then carry names only.
type EmbeddingConfig struct {
	Provider   string       `yaml:"provider"` // openai, none (default: none)
	APIKey     string       `yaml:"api_key"`
	BaseURL    string       `yaml:"base_url"`
	Model      string       `yaml:"model"`
	Dimensions int          `yaml:"dimensions"`
	CacheTTL   int          `yaml:"cache_ttl_hours"` // 0 = no expiry
	Budget     BudgetConfig `yaml:"budget"`
}

// ExtractorConfig holds the noun extractor settings.
// Provider "none" disables description learning gracefully.
type ExtractorConfig struct {
	Provider string `yaml:"provider"` // openai, none (default: none)
	APIKey   string `yaml:"api_key"`
	BaseURL  string `yaml:"base_url"`
	Model    string `yaml:"model"`
	MaxNouns int    `yaml:"max_nouns"` // cap per description (default: 10)
}

// JournalConfig holds the detection journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // sqlite file (default: percept.db)
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port <= 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 10
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "memory"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Pipeline.FrameIntervalMS <= 0 {
		c.Pipeline.FrameIntervalMS = 200
	}
	if c.Pipeline.Confidence <= 0 {
		c.Pipeline.Confidence = 0.35
	}
	if c.Pipeline.StatsEvery <= 0 {
		c.Pipeline.StatsEvery = 100
	}
	if c.Detectors.Backend == "" {
		c.Detectors.Backend = "sim"
	}
	if c.Detectors.Guardian.BudgetMS <= 0 {
		c.Detectors.Guardian.BudgetMS = 100
	}
	if c.Detectors.Learner.BudgetMS <= 0 {
		c.Detectors.Learner.BudgetMS = 150
	}
	if c.Detectors.Learner.VocabBudgetMS <= 0 {
		c.Detectors.Learner.VocabBudgetMS = 50
	}
	if c.Vocabulary.Path == "" {
		c.Vocabulary.Path = "vocabulary.json"
	}
	if c.Vocabulary.MaxEntries <= 0 {
		c.Vocabulary.MaxEntries = 50
	}
	if c.Vocabulary.PruneAgeHours <= 0 {
		c.Vocabulary.PruneAgeHours = 24
	}
	if c.Vocabulary.MinUseCount <= 0 {
		c.Vocabulary.MinUseCount = 3
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "none"
	}
	if c.Extractor.Provider == "" {
		c.Extractor.Provider = "none"
	}
	if c.Extractor.MaxNouns <= 0 {
		c.Extractor.MaxNouns = 10
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "percept.db"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "memory":
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required for driver %q", c.Database.Driver)
		}
	default:
		return fmt.Errorf("database.driver must be \"memory\" or \"redis\", got %q", c.Database.Driver)
	}
	if c.Pipeline.Confidence < 0 || c.Pipeline.Confidence > 1 {
		return fmt.Errorf("pipeline.confidence must be in [0,1], got %f", c.Pipeline.Confidence)
	}
	switch c.Detectors.Backend {
	case "sim":
	case "http":
		if c.Detectors.Guardian.URL == "" || c.Detectors.Learner.URL == "" {
			return fmt.Errorf("detectors.guardian.url and detectors.learner.url are required for backend \"http\"")
		}
	default:
		return fmt.Errorf("detectors.backend must be \"sim\" or \"http\", got %q", c.Detectors.Backend)
	}
	if tpl := c.Detectors.Learner.PromptTemplate; tpl != "" && strings.Count(tpl, "%s") != 1 {
		return fmt.Errorf("detectors.learner.prompt_template must contain exactly one %%s, got %q", tpl)
	}
	switch c.Embedding.Budget.Action {
	case "", "warn", "reject":
		// ok
	default:
		return fmt.Errorf(
			"embedding.budget.action must be \"warn\" or \"reject\", got %q",
			c.Embedding.Budget.Action,
		)
	}
	switch c.Embedding.Provider {
	case "none", "openai":
	default:
		return fmt.Errorf("embedding.provider must be \"none\" or \"openai\", got %q", c.Embedding.Provider)
	}
	switch c.Extractor.Provider {
	case "none", "openai":
	default:
		return fmt.Errorf("extractor.provider must be \"none\" or \"openai\", got %q", c.Extractor.Provider)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	// Explicit override wins.
	if path := os.Getenv("PERCEPT_CONFIG"); path != "" {
		return path
	}

	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
