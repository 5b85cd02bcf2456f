package config

import "os"

// APIKeySource represents where an API key comes from.
type APIKeySource string

const (
	KeySourceEnv    APIKeySource = "env"
	KeySourceConfig APIKeySource = "config"
	KeySourceNone   APIKeySource = "none"
)

// KeyStatus represents the status of an API key.
type KeyStatus struct {
	Name   string       `json:"name"`
	Source APIKeySource `json:"source"`
	IsSet  bool         `json:"is_set"`
	Masked string       `json:"masked,omitempty"` // e.g., "sk-...abc"
}

// CheckAPIKeys returns the status of all provider credentials.
func CheckAPIKeys(cfg *Config) []KeyStatus {
	return []KeyStatus{
		checkKey("News API Key", cfg.Providers.News.APIKey, "STOCKPULSE_PROVIDERS_NEWS_API_KEY"),
		checkKey("Social Password", cfg.Providers.Social.Password, "STOCKPULSE_PROVIDERS_SOCIAL_PASSWORD"),
		checkKey("Sentiment API Key", cfg.Sentiment.APIKey, "STOCKPULSE_SENTIMENT_API_KEY"),
		checkKey("Anthropic API Key", cfg.Rationale.AnthropicKey, "STOCKPULSE_RATIONALE_ANTHROPIC_KEY"),
		checkKey("Gemini API Key", cfg.Rationale.GeminiKey, "STOCKPULSE_RATIONALE_GEMINI_KEY"),
		checkKey("OpenAI API Key", cfg.Rationale.OpenAIKey, "STOCKPULSE_RATIONALE_OPENAI_KEY"),
	}
}

// checkKey checks if a key is set and where it came from.
func checkKey(name, value, envVar string) KeyStatus {
	status := KeyStatus{
		Name:  name,
		IsSet: value != "",
	}

	if value == "" {
		status.Source = KeySourceNone
		return status
	}

	if os.Getenv(envVar) != "" {
		status.Source = KeySourceEnv
	} else {
		status.Source = KeySourceConfig
	}
	status.Masked = maskKey(value)
	return status
}

// maskKey masks an API key for display, showing only first 3 and last 3 chars.
func maskKey(key string) string {
	if len(key) <= 8 {
		return "***"
	}
	return key[:3] + "..." + key[len(key)-3:]
}
