package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PlaceholderKey is the sample value shipped in example .env files. It is
// rejected as if no key were set.
const PlaceholderKey = "your_api_key_here"

// Config holds the full application configuration.
type Config struct {
	Google     GoogleConfig   `yaml:"google" mapstructure:"google"`
	Lookup     LookupConfig   `yaml:"lookup" mapstructure:"lookup"`
	Retry      RetryConfig    `yaml:"retry" mapstructure:"retry"`
	Search     SearchConfig   `yaml:"search" mapstructure:"search"`
	Website    WebsiteConfig  `yaml:"website" mapstructure:"website"`
	Generate   GenerateConfig `yaml:"generate" mapstructure:"generate"`
	Anthropic  ProviderConfig `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     ProviderConfig `yaml:"openai" mapstructure:"openai"`
	OpenRouter ProviderConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Perplexity ProviderConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Gemini     ProviderConfig `yaml:"gemini" mapstructure:"gemini"`
	Store      StoreConfig    `yaml:"store" mapstructure:"store"`
	Pricing    PricingConfig  `yaml:"pricing" mapstructure:"pricing"`
	Log        LogConfig      `yaml:"log" mapstructure:"log"`
}

// GoogleConfig holds Google Places API settings.
type GoogleConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Region  string `yaml:"region" mapstructure:"region"`
}

// LookupConfig configures per-row directory reconciliation.
type LookupConfig struct {
	RequestDelayMs int  `yaml:"request_delay_ms" mapstructure:"request_delay_ms"`
	RetryNotFound  bool `yaml:"retry_not_found" mapstructure:"retry_not_found"`
}

// RetryConfig controls retries of transient directory failures.
type RetryConfig struct {
	MaxAttempts      int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int     `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier" mapstructure:"multiplier"`
	JitterFraction   float64 `yaml:"jitter_fraction" mapstructure:"jitter_fraction"`
}

// SearchConfig holds search command defaults.
type SearchConfig struct {
	Limit       int     `yaml:"limit" mapstructure:"limit"`
	RadiusMiles float64 `yaml:"radius_miles" mapstructure:"radius_miles"`
}

// WebsiteConfig configures company website fetching.
type WebsiteConfig struct {
	DelayMs      int    `yaml:"delay_ms" mapstructure:"delay_ms"`
	TimeoutSecs  int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	UserAgent    string `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes int64  `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
}

// GenerateConfig configures outreach email generation.
type GenerateConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"`
	Model       string  `yaml:"model" mapstructure:"model"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	PromptFile  string  `yaml:"prompt_file" mapstructure:"prompt_file"`
	Product     string  `yaml:"product" mapstructure:"product"`
	DelayMs     int     `yaml:"delay_ms" mapstructure:"delay_ms"`
}

// ProviderConfig holds credentials and endpoint settings for one LLM provider.
type ProviderConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// StoreConfig configures the optional lookup cache backend.
type StoreConfig struct {
	Driver        string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL   string `yaml:"database_url" mapstructure:"database_url"`
	CacheTTLHours int    `yaml:"cache_ttl_hours" mapstructure:"cache_ttl_hours"`
}

// PricingConfig holds per-provider pricing rates.
type PricingConfig struct {
	Places PlacesPricing           `yaml:"places" mapstructure:"places"`
	LLM    map[string]ModelPricing `yaml:"llm" mapstructure:"llm"`
}

// PlacesPricing holds Places API pricing (USD per thousand requests).
type PlacesPricing struct {
	TextSearchPerK    float64 `yaml:"text_search_per_k" mapstructure:"text_search_per_k"`
	TextSearchURLPerK float64 `yaml:"text_search_url_per_k" mapstructure:"text_search_url_per_k"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("ENRICHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Provider keys are conventionally set without the prefix.
	_ = v.BindEnv("google.key", "ENRICHER_GOOGLE_KEY", "GOOGLE_MAPS_API_KEY")
	_ = v.BindEnv("google.region", "ENRICHER_GOOGLE_REGION", "SEARCH_REGION")
	_ = v.BindEnv("anthropic.key", "ENRICHER_ANTHROPIC_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("openai.key", "ENRICHER_OPENAI_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("openrouter.key", "ENRICHER_OPENROUTER_KEY", "OPENROUTER_API_KEY")
	_ = v.BindEnv("perplexity.key", "ENRICHER_PERPLEXITY_KEY", "PERPLEXITY_API_KEY")
	_ = v.BindEnv("gemini.key", "ENRICHER_GEMINI_KEY", "GEMINI_API_KEY")

	// Defaults
	v.SetDefault("google.base_url", "https://places.googleapis.com/v1")
	v.SetDefault("google.region", "US")
	v.SetDefault("lookup.request_delay_ms", 100)
	v.SetDefault("lookup.retry_not_found", false)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter_fraction", 0.25)
	v.SetDefault("search.limit", 20)
	v.SetDefault("search.radius_miles", 10.0)
	v.SetDefault("website.delay_ms", 500)
	v.SetDefault("website.timeout_secs", 10)
	v.SetDefault("website.user_agent", "Mozilla/5.0 (compatible; LeadEnricher/1.0)")
	v.SetDefault("website.max_body_bytes", 2<<20)
	v.SetDefault("generate.provider", "openai")
	v.SetDefault("generate.max_tokens", 500)
	v.SetDefault("generate.temperature", 0.7)
	v.SetDefault("generate.product", "our services")
	v.SetDefault("generate.delay_ms", 500)
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("openrouter.model", "openai/gpt-4o-mini")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("store.driver", "none")
	v.SetDefault("store.database_url", "lead-enricher.db")
	v.SetDefault("store.cache_ttl_hours", 720)
	v.SetDefault("pricing.places.text_search_per_k", 35.0)
	v.SetDefault("pricing.places.text_search_url_per_k", 32.0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Provider returns the settings for a named generation provider.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	switch strings.ToLower(name) {
	case "anthropic":
		return c.Anthropic, true
	case "openai":
		return c.OpenAI, true
	case "openrouter":
		return c.OpenRouter, true
	case "perplexity":
		return c.Perplexity, true
	case "gemini":
		return c.Gemini, true
	default:
		return ProviderConfig{}, false
	}
}

// UsableKey reports whether key is set and is not the sample placeholder.
func UsableKey(key string) bool {
	key = strings.TrimSpace(key)
	return key != "" && key != PlaceholderKey
}

// Validate checks the settings a command needs. Mode is one of "lookup",
// "search", "web" or "generate".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "lookup", "search":
		if !UsableKey(c.Google.Key) {
			problems = append(problems, "google.key is required (set GOOGLE_MAPS_API_KEY)")
		}
		if c.Lookup.RequestDelayMs < 0 {
			problems = append(problems, "lookup.request_delay_ms must be >= 0")
		}
		if c.Retry.MaxAttempts < 1 {
			problems = append(problems, "retry.max_attempts must be >= 1")
		}
		if mode == "search" && c.Search.RadiusMiles < 0 {
			problems = append(problems, "search.radius_miles must be >= 0")
		}
	case "web":
		if c.Website.TimeoutSecs <= 0 {
			problems = append(problems, "website.timeout_secs must be > 0")
		}
	case "generate":
		p, ok := c.Provider(c.Generate.Provider)
		if !ok {
			problems = append(problems, "generate.provider must be one of openai, anthropic, gemini, openrouter, perplexity")
		} else if !UsableKey(p.Key) {
			problems = append(problems, strings.ToLower(c.Generate.Provider)+".key is required")
		}
		if c.Generate.MaxTokens <= 0 {
			problems = append(problems, "generate.max_tokens must be > 0")
		}
		if c.Generate.Temperature < 0 || c.Generate.Temperature > 2 {
			problems = append(problems, "generate.temperature must be between 0 and 2")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "", "none", "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be none, sqlite or postgres")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

