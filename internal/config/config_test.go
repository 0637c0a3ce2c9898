package config

import (
	"errors"
	"testing"
	"time"

	"github.com/colloquy-ai/colloquy/internal/domain"
)

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Addrs: []string{"localhost:6379"},
		},
		Embedding: EmbeddingConfig{APIKey: "test-key"},
		Inference: InferenceConfig{APIKey: "test-key", Model: "gpt-4o-mini"},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingDatabaseAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_MissingCredentials(t *testing.T) {
	tests := []struct {
		name           string
		mutate         func(*Config)
		wantCredential bool
	}{
		{"embedding api key", func(c *Config) { c.Embedding.APIKey = "" }, true},
		{"inference api key", func(c *Config) { c.Inference.APIKey = "" }, true},
		{"inference model", func(c *Config) { c.Inference.Model = "" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if tt.wantCredential && !errors.Is(err, domain.ErrMissingCredentials) {
				t.Errorf("expected ErrMissingCredentials, got %v", err)
			}
		})
	}
}

func TestValidate_ExecutionTokenRequiredWithBaseURL(t *testing.T) {
	cfg := validConfig()
	cfg.Execution.BaseURL = "https://api.example.com"
	cfg.Execution.APIToken = ""

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing execution api token")
	}

	cfg.Execution.APIToken = "token"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.HTTP.ShutdownSec != 10 {
		t.Errorf("expected ShutdownSec=10, got %d", cfg.HTTP.ShutdownSec)
	}
	if cfg.Database.ReadinessTimeout != 10 {
		t.Errorf("expected ReadinessTimeout=10, got %d", cfg.Database.ReadinessTimeout)
	}
	if cfg.Pipeline.IndexName != "idx:columns" {
		t.Errorf("expected IndexName='idx:columns', got %q", cfg.Pipeline.IndexName)
	}
	if cfg.Pipeline.FacetLimit != 10 {
		t.Errorf("expected FacetLimit=10, got %d", cfg.Pipeline.FacetLimit)
	}
	if cfg.Pipeline.PageSize != 10 {
		t.Errorf("expected PageSize=10, got %d", cfg.Pipeline.PageSize)
	}
	if cfg.Cache.SQLResultTTL != time.Hour {
		t.Errorf("expected SQLResultTTL=1h, got %v", cfg.Cache.SQLResultTTL)
	}
	if cfg.Cache.ColumnSearchTTL != 6*time.Hour {
		t.Errorf("expected ColumnSearchTTL=6h, got %v", cfg.Cache.ColumnSearchTTL)
	}
	if cfg.Cache.MetadataTTL != 12*time.Hour {
		t.Errorf("expected MetadataTTL=12h, got %v", cfg.Cache.MetadataTTL)
	}
	if cfg.Cache.KeyPrefix != "colloquy:cache:" {
		t.Errorf("expected KeyPrefix='colloquy:cache:', got %q", cfg.Cache.KeyPrefix)
	}
	if cfg.Conversation.SummaryAfter != 10 {
		t.Errorf("expected SummaryAfter=10, got %d", cfg.Conversation.SummaryAfter)
	}
	if cfg.Conversation.RecentKept != 4 {
		t.Errorf("expected RecentKept=4, got %d", cfg.Conversation.RecentKept)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 120, ShutdownSec: 5},
		Database: DatabaseConfig{ReadinessTimeout: 15},
		Pipeline: PipelineConfig{IndexName: "idx:custom", FacetLimit: 20, PageSize: 25},
		Cache:    CacheConfig{KeyPrefix: "custom:", SQLResultTTL: 5 * time.Minute},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Pipeline.IndexName != "idx:custom" {
		t.Errorf("expected IndexName='idx:custom', got %q", cfg.Pipeline.IndexName)
	}
	if cfg.Pipeline.PageSize != 25 {
		t.Errorf("expected PageSize=25, got %d", cfg.Pipeline.PageSize)
	}
	if cfg.Cache.SQLResultTTL != 5*time.Minute {
		t.Errorf("expected SQLResultTTL=5m, got %v", cfg.Cache.SQLResultTTL)
	}
	if cfg.Cache.KeyPrefix != "custom:" {
		t.Errorf("expected KeyPrefix='custom:', got %q", cfg.Cache.KeyPrefix)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("COLLOQUY_TEST_KEY", "secret")

	in := []byte("api_key: ${COLLOQUY_TEST_KEY}\nmodel: ${COLLOQUY_TEST_MODEL:-gpt-4o-mini}")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nmodel: gpt-4o-mini"
	if out != want {
		t.Errorf("unexpected expansion:\ngot:  %q\nwant: %q", out, want)
	}
}
