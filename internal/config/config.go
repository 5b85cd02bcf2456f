// Package config handles configuration loading for stockpulse.
// It supports YAML config files with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers" yaml:"providers"`
	Sentiment SentimentConfig `mapstructure:"sentiment" yaml:"sentiment"`
	Rationale RationaleConfig `mapstructure:"rationale" yaml:"rationale"`
	Cache     CacheConfig     `mapstructure:"cache"     yaml:"cache"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"  yaml:"pipeline"`
	Weights   WeightsConfig   `mapstructure:"weights"   yaml:"weights"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"   yaml:"logging"`
}

// ProvidersConfig groups the external data providers.
type ProvidersConfig struct {
	Quote    QuoteConfig    `mapstructure:"quote"    yaml:"quote"`
	News     NewsConfig     `mapstructure:"news"     yaml:"news"`
	Articles ArticlesConfig `mapstructure:"articles" yaml:"articles"`
	Social   SocialConfig   `mapstructure:"social"   yaml:"social"`
}

// QuoteConfig configures the price-history provider.
type QuoteConfig struct {
	BaseURL   string        `mapstructure:"base_url"   yaml:"base_url"`
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per second
}

// NewsConfig configures the company-news provider.
type NewsConfig struct {
	Enabled      bool          `mapstructure:"enabled"       yaml:"enabled"`
	BaseURL      string        `mapstructure:"base_url"      yaml:"base_url"`
	APIKey       string        `mapstructure:"api_key"       yaml:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout"`
	LookbackDays int           `mapstructure:"lookback_days" yaml:"lookback_days"`
	MaxItems     int           `mapstructure:"max_items"     yaml:"max_items"`
	RateLimit    float64       `mapstructure:"rate_limit"    yaml:"rate_limit"`
}

// ArticlesConfig configures the long-form article search feed.
type ArticlesConfig struct {
	Enabled   bool          `mapstructure:"enabled"    yaml:"enabled"`
	SearchURL string        `mapstructure:"search_url" yaml:"search_url"` // must contain one %s for the query
	Timeout   time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	MaxItems  int           `mapstructure:"max_items"  yaml:"max_items"`
	RateLimit float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// SocialConfig configures the social-post search provider.
type SocialConfig struct {
	Enabled    bool          `mapstructure:"enabled"    yaml:"enabled"`
	BaseURL    string        `mapstructure:"base_url"   yaml:"base_url"`
	Identifier string        `mapstructure:"identifier" yaml:"identifier"`
	Password   string        `mapstructure:"password"   yaml:"password"`
	Timeout    time.Duration `mapstructure:"timeout"    yaml:"timeout"`
	MaxItems   int           `mapstructure:"max_items"  yaml:"max_items"`
	RateLimit  float64       `mapstructure:"rate_limit" yaml:"rate_limit"`
}

// SentimentConfig selects and configures the sentiment strategy.
type SentimentConfig struct {
	Mode       string        `mapstructure:"mode"        yaml:"mode"` // "lexicon" or "remote"
	Endpoint   string        `mapstructure:"endpoint"    yaml:"endpoint"`
	APIKey     string        `mapstructure:"api_key"     yaml:"api_key"`
	ChunkSize  int           `mapstructure:"chunk_size"  yaml:"chunk_size"` // characters
	ChunkDelay time.Duration `mapstructure:"chunk_delay" yaml:"chunk_delay"`
	Timeout    time.Duration `mapstructure:"timeout"     yaml:"timeout"`
}

// RationaleConfig configures narrative generation.
type RationaleConfig struct {
	Provider     string        `mapstructure:"provider"      yaml:"provider"` // "template", "anthropic", "gemini", "openai", "ollama"
	Model        string        `mapstructure:"model"         yaml:"model"`
	AnthropicKey string        `mapstructure:"anthropic_key" yaml:"anthropic_key"`
	GeminiKey    string        `mapstructure:"gemini_key"    yaml:"gemini_key"`
	OpenAIKey    string        `mapstructure:"openai_key"    yaml:"openai_key"`
	OllamaURL    string        `mapstructure:"ollama_url"    yaml:"ollama_url"`
	MaxTokens    int           `mapstructure:"max_tokens"    yaml:"max_tokens"`
	Timeout      time.Duration `mapstructure:"timeout"       yaml:"timeout"`
	MaxItems     int           `mapstructure:"max_items"     yaml:"max_items"` // text items included in the prompt
}

// CacheConfig configures the signal cache.
type CacheConfig struct {
	Backend       string        `mapstructure:"backend"        yaml:"backend"` // "memory", "badger", "redis"
	TTL           time.Duration `mapstructure:"ttl"            yaml:"ttl"`
	BadgerPath    string        `mapstructure:"badger_path"    yaml:"badger_path"`
	RedisAddr     string        `mapstructure:"redis_addr"     yaml:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password" yaml:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"       yaml:"redis_db"`
	GCSchedule    string        `mapstructure:"gc_schedule"    yaml:"gc_schedule"` // cron spec for backend maintenance
}

// PipelineConfig holds orchestration limits.
type PipelineConfig struct {
	BatchSize         int           `mapstructure:"batch_size"          yaml:"batch_size"`
	Concurrency       int           `mapstructure:"concurrency"         yaml:"concurrency"`
	RetryAttempts     int           `mapstructure:"retry_attempts"      yaml:"retry_attempts"`
	RetryInitialDelay time.Duration `mapstructure:"retry_initial_delay" yaml:"retry_initial_delay"`
	RetryMaxDelay     time.Duration `mapstructure:"retry_max_delay"     yaml:"retry_max_delay"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"     yaml:"request_timeout"`
}

// WeightsConfig holds the scoring weight profile per horizon.
type WeightsConfig struct {
	ShortTerm WeightProfile `mapstructure:"short_term" yaml:"short_term"`
	LongTerm  WeightProfile `mapstructure:"long_term"  yaml:"long_term"`
}

// WeightProfile weights the four normalized components.
type WeightProfile struct {
	RecentPerformance float64 `mapstructure:"recent_performance" yaml:"recent_performance"`
	HistoricalGrowth  float64 `mapstructure:"historical_growth"  yaml:"historical_growth"`
	Sentiment         float64 `mapstructure:"sentiment"          yaml:"sentiment"`
	Risk              float64 `mapstructure:"risk"               yaml:"risk"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "console" or "json"
}

const envPrefix = "STOCKPULSE"

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.stockpulse/config.yaml (home directory)
//  3. /etc/stockpulse/config.yaml (system)
//
// A .env file in the working directory is loaded first when present.
// Environment variables override config file values.
// Format: STOCKPULSE_<SECTION>_<KEY>, e.g., STOCKPULSE_CACHE_BACKEND
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".stockpulse"))
	v.AddConfigPath("/etc/stockpulse")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return decode(v)
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	_ = godotenv.Load()

	v := newViper()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	return decode(v)
}

// Default returns the configuration built from defaults alone.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		// Defaults always decode; a failure here is a programming error.
		panic(err)
	}
	return cfg
}

func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	overrideFromEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	// Providers
	v.SetDefault("providers.quote.base_url", "https://query1.finance.yahoo.com")
	v.SetDefault("providers.quote.timeout", "10s")
	v.SetDefault("providers.quote.rate_limit", 5.0)

	v.SetDefault("providers.news.enabled", true)
	v.SetDefault("providers.news.base_url", "https://finnhub.io/api/v1")
	v.SetDefault("providers.news.timeout", "10s")
	v.SetDefault("providers.news.lookback_days", 7)
	v.SetDefault("providers.news.max_items", 25)
	v.SetDefault("providers.news.rate_limit", 1.0)

	v.SetDefault("providers.articles.enabled", true)
	v.SetDefault("providers.articles.search_url", "https://news.google.com/rss/search?q=%s&hl=en-US&gl=US&ceid=US:en")
	v.SetDefault("providers.articles.timeout", "15s")
	v.SetDefault("providers.articles.max_items", 20)
	v.SetDefault("providers.articles.rate_limit", 2.0)

	v.SetDefault("providers.social.enabled", true)
	v.SetDefault("providers.social.base_url", "https://bsky.social/xrpc")
	v.SetDefault("providers.social.timeout", "10s")
	v.SetDefault("providers.social.max_items", 25)
	v.SetDefault("providers.social.rate_limit", 3.0)

	// Sentiment
	v.SetDefault("sentiment.mode", "lexicon")
	v.SetDefault("sentiment.endpoint", "https://api-inference.huggingface.co/models/ProsusAI/finbert")
	v.SetDefault("sentiment.chunk_size", 450)
	v.SetDefault("sentiment.chunk_delay", "1s")
	v.SetDefault("sentiment.timeout", "15s")

	// Rationale
	v.SetDefault("rationale.provider", "template")
	v.SetDefault("rationale.ollama_url", "http://localhost:11434")
	v.SetDefault("rationale.max_tokens", 256)
	v.SetDefault("rationale.timeout", "15s")
	v.SetDefault("rationale.max_items", 8)

	// Cache
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("cache.badger_path", filepath.Join(homeDir(), ".stockpulse", "cache"))
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.gc_schedule", "@every 10m")

	// Pipeline
	v.SetDefault("pipeline.batch_size", 10)
	v.SetDefault("pipeline.concurrency", 5)
	v.SetDefault("pipeline.retry_attempts", 3)
	v.SetDefault("pipeline.retry_initial_delay", "500ms")
	v.SetDefault("pipeline.retry_max_delay", "4s")
	v.SetDefault("pipeline.request_timeout", "2m")

	// Weights
	v.SetDefault("weights.short_term.recent_performance", 0.4)
	v.SetDefault("weights.short_term.historical_growth", 0.2)
	v.SetDefault("weights.short_term.sentiment", 0.3)
	v.SetDefault("weights.short_term.risk", 0.1)
	v.SetDefault("weights.long_term.recent_performance", 0.2)
	v.SetDefault("weights.long_term.historical_growth", 0.4)
	v.SetDefault("weights.long_term.sentiment", 0.2)
	v.SetDefault("weights.long_term.risk", 0.2)

	// API
	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8080)
	v.SetDefault("api.cors_origins", []string{"*"})

	// Logging
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// overrideFromEnv explicitly reads sensitive keys from environment variables.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("STOCKPULSE_PROVIDERS_NEWS_API_KEY"); key != "" {
		cfg.Providers.News.APIKey = key
	}
	if pw := os.Getenv("STOCKPULSE_PROVIDERS_SOCIAL_PASSWORD"); pw != "" {
		cfg.Providers.Social.Password = pw
	}
	if key := os.Getenv("STOCKPULSE_SENTIMENT_API_KEY"); key != "" {
		cfg.Sentiment.APIKey = key
	}
	if key := os.Getenv("STOCKPULSE_RATIONALE_ANTHROPIC_KEY"); key != "" {
		cfg.Rationale.AnthropicKey = key
	}
	if key := os.Getenv("STOCKPULSE_RATIONALE_GEMINI_KEY"); key != "" {
		cfg.Rationale.GeminiKey = key
	}
	if key := os.Getenv("STOCKPULSE_RATIONALE_OPENAI_KEY"); key != "" {
		cfg.Rationale.OpenAIKey = key
	}
	if pw := os.Getenv("STOCKPULSE_CACHE_REDIS_PASSWORD"); pw != "" {
		cfg.Cache.RedisPassword = pw
	}
}

// Validate checks enumerated settings and numeric bounds.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "badger", "redis":
	default:
		return fmt.Errorf("config: unknown cache backend %q", c.Cache.Backend)
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("config: cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	switch c.Sentiment.Mode {
	case "lexicon", "remote":
	default:
		return fmt.Errorf("config: unknown sentiment mode %q", c.Sentiment.Mode)
	}
	switch c.Rationale.Provider {
	case "template", "anthropic", "gemini", "openai", "ollama":
	default:
		return fmt.Errorf("config: unknown rationale provider %q", c.Rationale.Provider)
	}
	if c.Pipeline.BatchSize <= 0 || c.Pipeline.Concurrency <= 0 {
		return fmt.Errorf("config: pipeline batch_size and concurrency must be positive")
	}
	if c.Pipeline.RetryAttempts < 1 {
		return fmt.Errorf("config: pipeline.retry_attempts must be at least 1")
	}
	for name, p := range map[string]WeightProfile{
		"short_term": c.Weights.ShortTerm,
		"long_term":  c.Weights.LongTerm,
	} {
		if p.RecentPerformance < 0 || p.HistoricalGrowth < 0 || p.Sentiment < 0 || p.Risk < 0 {
			return fmt.Errorf("config: weights.%s must not be negative", name)
		}
	}
	return nil
}

// Addr returns the host:port the API server listens on.
func (a APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
