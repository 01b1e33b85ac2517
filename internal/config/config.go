// Package config defines the typed configuration record for the
// orchestration engine. Every recognized option and its effect is listed in
// SPEC_FULL.md §6; unknown keys in the YAML source are rejected at load
// time rather than silently ignored (see DESIGN NOTES in spec.md §9 on
// replacing free-form config dicts with a typed record).
package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"gopkg.in/yaml.v3"
)

// ModelDescriptor names a concrete model behind a router label (see
// internal/router). BaseURL/APIKey are resolved from env vars at startup,
// never stored in the YAML file itself.
type ModelDescriptor struct {
	Label           string  `yaml:"label"`
	Provider        string  `yaml:"provider"` // "anthropic" | "openai" | "gemini"
	Model           string  `yaml:"model"`
	MaxTokens       int     `yaml:"max_tokens"`
	Temperature     float64 `yaml:"temperature"`
	InputCostPer1K  float64 `yaml:"input_cost_per_1k"`
	OutputCostPer1K float64 `yaml:"output_cost_per_1k"`
}

// ModelCatalog maps router labels ("small_fast", "mid_tier", "top_tier",
// "cheap_conversational") to descriptors. The router never hard-codes
// provider names; it only knows these labels.
type ModelCatalog map[string]ModelDescriptor

// MemoryConfig tunes the conversation memory buffer (spec.md §4.2).
type MemoryConfig struct {
	MaxShortTermTurns     int     `yaml:"max_short_term_turns"`
	MaxLongTermTurns      int     `yaml:"max_long_term_turns"`
	MaxTokens             int     `yaml:"max_tokens"`
	CompressionThreshold  float64 `yaml:"compression_threshold"`
	CacheTTLSeconds       int     `yaml:"cache_ttl_seconds"`
}

// DeadlinesConfig holds the per-stage timeouts of spec.md §5.
type DeadlinesConfig struct {
	PerRequestMS int `yaml:"per_request_deadline_ms"`
	ModelCallMS  int `yaml:"model_call_timeout_ms"`
	ToolCallMS   int `yaml:"tool_call_timeout_ms"`
}

// CacheTTL returns the memory window's cache TTL as a time.Duration.
func (m MemoryConfig) CacheTTL() time.Duration { return time.Duration(m.CacheTTLSeconds) * time.Second }

func (d DeadlinesConfig) PerRequest() time.Duration { return time.Duration(d.PerRequestMS) * time.Millisecond }
func (d DeadlinesConfig) ModelCall() time.Duration  { return time.Duration(d.ModelCallMS) * time.Millisecond }
func (d DeadlinesConfig) ToolCall() time.Duration   { return time.Duration(d.ToolCallMS) * time.Millisecond }

// ConcurrencyConfig bounds the number of simultaneously in-flight model and
// tool calls process-wide (spec.md §5 backpressure policy).
type ConcurrencyConfig struct {
	MaxActiveModelCalls int `yaml:"max_active_model_calls"`
	MaxActiveToolCalls  int `yaml:"max_active_tool_calls"`
	MaxQueueDepth       int `yaml:"max_queue_depth"`
}

// PlacesConfig addresses the Places microservice collaborator.
type PlacesConfig struct {
	BaseURL    string `yaml:"places_api_base_url"`
	TimeoutMS  int    `yaml:"places_api_timeout_ms"`
}

func (p PlacesConfig) Timeout() time.Duration { return time.Duration(p.TimeoutMS) * time.Millisecond }

// PostgresConfig addresses the durable store.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig addresses the volatile cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`

	// TLSEnabled upgrades the connection to TLS, for deployments where Redis
	// sits behind a sidecar or managed endpoint that terminates TLS.
	TLSEnabled bool `yaml:"tls_enabled"`
	// TLSInsecureSkipVerify skips certificate verification; only meant for a
	// sidecar presenting a self-signed cert, never for a public endpoint.
	TLSInsecureSkipVerify bool `yaml:"tls_insecure_skip_verify"`
}

// CacheTTLConfig holds per-namespace TTLs (spec.md §6 cache section).
type CacheTTLConfig struct {
	MemorySeconds int `yaml:"memory_seconds"`
	IntentSeconds int `yaml:"intent_seconds"`
	PlacesSeconds int `yaml:"places_seconds"`
}

// ObservabilityConfig controls OTel + logging.
type ObservabilityConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Endpoint       string `yaml:"endpoint"`
	Insecure       bool   `yaml:"insecure"`
	ServiceName    string `yaml:"service_name"`
	ServiceVersion string `yaml:"service_version,omitempty"`
	Environment    string `yaml:"environment,omitempty"`
	LogLevel       string `yaml:"log_level"`
	LogPath        string `yaml:"log_path"`
}

// Config is the full typed configuration record.
type Config struct {
	Host                string   `yaml:"host"`
	Port                int      `yaml:"port"`
	SupportedLanguages  []string `yaml:"supported_languages"`
	DefaultLanguage     string   `yaml:"default_language"`
	BudgetMode          bool     `yaml:"budget_mode"`
	PreferredModel      string   `yaml:"preferred_model,omitempty"`
	MaxReasoningIterations int   `yaml:"max_reasoning_iterations"`

	Models      ModelCatalog      `yaml:"models"`
	Memory      MemoryConfig      `yaml:"memory"`
	Deadlines   DeadlinesConfig   `yaml:"deadlines"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Places      PlacesConfig      `yaml:"places"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Redis       RedisConfig       `yaml:"redis"`
	CacheTTL    CacheTTLConfig    `yaml:"cache_ttl"`
	Observability ObservabilityConfig `yaml:"observability"`

	// API keys are never read from YAML; they are resolved from the
	// environment in Load so secrets never land in a config file on disk.
	AnthropicAPIKey string `yaml:"-"`
	OpenAIAPIKey    string `yaml:"-"`
	GeminiAPIKey    string `yaml:"-"`
}

// Default returns the configuration defaults named throughout spec.md §4.2
// and §5, prior to applying a YAML file or env overrides.
func Default() Config {
	return Config{
		Host:                   "0.0.0.0",
		Port:                   8080,
		SupportedLanguages:     []string{"es", "en", "ca", "gl"},
		DefaultLanguage:        "en",
		MaxReasoningIterations: 6,
		Memory: MemoryConfig{
			MaxShortTermTurns:    10,
			MaxLongTermTurns:     50,
			MaxTokens:            4000,
			CompressionThreshold: 0.8,
			CacheTTLSeconds:      300,
		},
		Deadlines: DeadlinesConfig{
			PerRequestMS: 30_000,
			ModelCallMS:  15_000,
			ToolCallMS:   10_000,
		},
		Concurrency: ConcurrencyConfig{
			MaxActiveModelCalls: 32,
			MaxActiveToolCalls:  64,
			MaxQueueDepth:       256,
		},
		CacheTTL: CacheTTLConfig{
			MemorySeconds: 300,
			IntentSeconds: 3600,
			PlacesSeconds: 600,
		},
		Models: ModelCatalog{
			"small_fast":            {Label: "small_fast", Provider: "anthropic", Model: "claude-haiku-4-5", MaxTokens: 1024, Temperature: 0.3, InputCostPer1K: 0.0008, OutputCostPer1K: 0.004},
			"mid_tier":              {Label: "mid_tier", Provider: "anthropic", Model: "claude-sonnet-4-5", MaxTokens: 2048, Temperature: 0.4, InputCostPer1K: 0.003, OutputCostPer1K: 0.015},
			"top_tier":              {Label: "top_tier", Provider: "anthropic", Model: "claude-opus-4-1", MaxTokens: 4096, Temperature: 0.5, InputCostPer1K: 0.015, OutputCostPer1K: 0.075},
			"cheap_conversational":  {Label: "cheap_conversational", Provider: "openai", Model: "gpt-4o-mini", MaxTokens: 512, Temperature: 0.7, InputCostPer1K: 0.00015, OutputCostPer1K: 0.0006},
		},
		Observability: ObservabilityConfig{
			ServiceName: "wayfarer",
			LogLevel:    "info",
		},
	}
}

// Load reads filename as strict YAML over Default(), then overlays secrets
// from the environment. Unknown keys cause a load error (yaml.v3's decoder
// strict mode), matching the "typed config rejects unrecognized options"
// design note.
func Load(filename string) (Config, error) {
	cfg := Default()
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			if os.IsNotExist(err) {
				pterm.Warning.Printf("config file %q not found, using defaults\n", filename)
			} else {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		} else {
			dec := yaml.NewDecoder(bytes.NewReader(data))
			dec.KnownFields(true)
			if err := dec.Decode(&cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %q: %w", filename, err)
			}
		}
	}

	cfg.AnthropicAPIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
	cfg.OpenAIAPIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.GeminiAPIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))

	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if cfg.MaxReasoningIterations <= 0 {
		cfg.MaxReasoningIterations = 6
	}

	pterm.Success.Printf("configuration loaded (models=%d, languages=%v)\n", len(cfg.Models), cfg.SupportedLanguages)
	return cfg, nil
}

// SupportsLanguage reports whether lang is in the configured supported set.
func (c Config) SupportsLanguage(lang string) bool {
	for _, l := range c.SupportedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
