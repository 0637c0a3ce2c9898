package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

// Config holds the colloquy API configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Database     DatabaseConfig     `yaml:"database"`
	Embedding    EmbeddingConfig    `yaml:"embedding"`
	Inference    InferenceConfig    `yaml:"inference"`
	Execution    ExecutionConfig    `yaml:"execution"`
	Auth         AuthConfig         `yaml:"auth"`
	Pipeline     PipelineConfig     `yaml:"pipeline"`
	Cache        CacheConfig        `yaml:"cache"`
	Conversation ConversationConfig `yaml:"conversation"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// InferenceConfig holds chat completion provider settings.
type InferenceConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TimeoutSec  int     `yaml:"timeout_sec"`
}

// ExecutionConfig holds query execution backend settings.
type ExecutionConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIToken    string `yaml:"api_token"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	MaxRowLimit int    `yaml:"max_row_limit"` // 0 = unlimited
}

// PipelineConfig holds column search and pipeline tuning settings.
type PipelineConfig struct {
	IndexName        string `yaml:"index_name"`
	FacetLimit       int    `yaml:"facet_limit"`        // per-facet KNN candidates
	ScrollLimit      int    `yaml:"scroll_limit"`       // max columns fetched per dataset
	PageSize         int    `yaml:"page_size"`          // rows shown per pagination turn
	MaxSelectColumns int    `yaml:"max_select_columns"` // cap on columns picked for SQL
}

// CacheConfig holds per-category cache TTL settings.
type CacheConfig struct {
	KeyPrefix        string        `yaml:"key_prefix"`
	SQLResultTTL     time.Duration `yaml:"sql_result_ttl"`
	ColumnSearchTTL  time.Duration `yaml:"column_search_ttl"`
	SQLGenerationTTL time.Duration `yaml:"sql_generation_ttl"`
	MetadataTTL      time.Duration `yaml:"metadata_ttl"`
}

// ConversationConfig holds conversation state settings.
type ConversationConfig struct {
	TTL             time.Duration `yaml:"ttl"`
	SummaryAfter    int           `yaml:"summary_after"`     // messages before rolling summary kicks in
	RecentKept      int           `yaml:"recent_kept"`       // tail messages kept verbatim after summary
	MaxConversation int           `yaml:"max_conversations"`
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
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Inference.Temperature <= 0 {
		c.Inference.Temperature = 0.1
	}
	if c.Inference.MaxTokens <= 0 {
		c.Inference.MaxTokens = 2000
	}
	if c.Inference.TimeoutSec <= 0 {
		c.Inference.TimeoutSec = 60
	}
	if c.Execution.TimeoutSec <= 0 {
		c.Execution.TimeoutSec = 120
	}
	if c.Pipeline.IndexName == "" {
		c.Pipeline.IndexName = "idx:columns"
	}
	if c.Pipeline.FacetLimit <= 0 {
		c.Pipeline.FacetLimit = 10
	}
	if c.Pipeline.ScrollLimit <= 0 {
		c.Pipeline.ScrollLimit = 500
	}
	if c.Pipeline.PageSize <= 0 {
		c.Pipeline.PageSize = 10
	}
	if c.Pipeline.MaxSelectColumns <= 0 {
		c.Pipeline.MaxSelectColumns = 15
	}
	if c.Cache.KeyPrefix == "" {
		c.Cache.KeyPrefix = "colloquy:cache:"
	}
	if c.Cache.SQLResultTTL <= 0 {
		c.Cache.SQLResultTTL = time.Hour
	}
	if c.Cache.ColumnSearchTTL <= 0 {
		c.Cache.ColumnSearchTTL = 6 * time.Hour
	}
	if c.Cache.SQLGenerationTTL <= 0 {
		c.Cache.SQLGenerationTTL = 6 * time.Hour
	}
	if c.Cache.MetadataTTL <= 0 {
		c.Cache.MetadataTTL = 12 * time.Hour
	}
	if c.Conversation.TTL <= 0 {
		c.Conversation.TTL = 24 * time.Hour
	}
	if c.Conversation.SummaryAfter <= 0 {
		c.Conversation.SummaryAfter = 10
	}
	if c.Conversation.RecentKept <= 0 {
		c.Conversation.RecentKept = 4
	}
	if c.Conversation.MaxConversation <= 0 {
		c.Conversation.MaxConversation = 10000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Embedding.APIKey == "" {
		return fmt.Errorf("embedding.api_key: %w", domain.ErrMissingCredentials)
	}
	if c.Inference.APIKey == "" {
		return fmt.Errorf("inference.api_key: %w", domain.ErrMissingCredentials)
	}
	if c.Inference.Model == "" {
		return fmt.Errorf("inference.model is required")
	}
	if c.Execution.BaseURL != "" && c.Execution.APIToken == "" {
		return fmt.Errorf("execution.api_token is required when execution.base_url is set: %w", domain.ErrMissingCredentials)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
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
