package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultChatCompletionsURL = "https://generativelanguage.googleapis.com/v1beta/openai/chat/completions"
	DefaultModel              = "gemini-2.5-flash"
)

// Config holds configuration for the gateway process.
type Config struct {
	CoinAPIURL string

	LLMAPIKey             string
	LLMChatCompletionsURL string
	LLMModel              string
	ModelProvider         string
	DummyProviderScript   string

	CacheBackend      string
	CachePath         string
	CacheWarmSchedule string

	HTTPPort                  int
	HTTPRequestTimeoutSeconds int
	LogLevel                  string
	LogPretty                 bool

	LLMTimeoutSeconds       int
	MarketTimeoutSeconds    int
	AgentMaxTurns           int
	AgentMaxWallTimeSeconds int
	SummaryMaxTokens        int
	ToolMaxOutputBytes      int
}

// Load reads configuration from a .env file, when present, and the
// environment. Variables already set in the environment take precedence.
func Load() (Config, error) {
	_ = godotenv.Load()

	modelProvider := strings.ToLower(envOrDefault("MODEL_PROVIDER", "openai"))
	cacheBackend := strings.ToLower(envOrDefault("CACHE_BACKEND", "json"))

	cfg := Config{
		CoinAPIURL:                strings.TrimSpace(os.Getenv("COIN_API_URL")),
		LLMAPIKey:                 firstEnv("LLM_API_KEY", "GEMINI_API_KEY", "OPENAI_API_KEY"),
		LLMChatCompletionsURL:     envOrDefault("LLM_CHAT_COMPLETIONS_URL", DefaultChatCompletionsURL),
		LLMModel:                  envOrDefault("LLM_MODEL", DefaultModel),
		ModelProvider:             modelProvider,
		DummyProviderScript:       envOrDefault("DUMMY_PROVIDER_SCRIPT", "ok"),
		CacheBackend:              cacheBackend,
		CachePath:                 envOrDefault("CACHE_PATH", defaultCachePath(cacheBackend)),
		CacheWarmSchedule:         strings.TrimSpace(os.Getenv("CACHE_WARM_SCHEDULE")),
		HTTPPort:                  envIntOrDefault("HTTP_PORT", 8000),
		HTTPRequestTimeoutSeconds: envIntOrDefault("HTTP_REQUEST_TIMEOUT_SECONDS", 120),
		LogLevel:                  envOrDefault("LOG_LEVEL", "info"),
		LogPretty:                 envBoolOrDefault("LOG_PRETTY", false),
		LLMTimeoutSeconds:         envIntOrDefault("LLM_TIMEOUT_SECONDS", 60),
		MarketTimeoutSeconds:      envIntOrDefault("MARKET_TIMEOUT_SECONDS", 15),
		AgentMaxTurns:             envIntOrDefault("AGENT_MAX_TURNS", 4),
		AgentMaxWallTimeSeconds:   envIntOrDefault("AGENT_MAX_WALL_TIME_SECONDS", 90),
		SummaryMaxTokens:          envIntOrDefault("SUMMARY_MAX_TOKENS", 150),
		ToolMaxOutputBytes:        envIntOrDefault("TOOL_MAX_OUTPUT_BYTES", 16384),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.ModelProvider {
	case "openai":
		if c.LLMAPIKey == "" {
			return fmt.Errorf("LLM_API_KEY (or GEMINI_API_KEY / OPENAI_API_KEY) is required in environment when MODEL_PROVIDER=openai")
		}
	case "dummy":
	default:
		return fmt.Errorf("MODEL_PROVIDER must be openai or dummy, got %q", c.ModelProvider)
	}
	switch c.CacheBackend {
	case "json", "sqlite":
	default:
		return fmt.Errorf("CACHE_BACKEND must be json or sqlite, got %q", c.CacheBackend)
	}

	positive := []struct {
		key string
		val int
	}{
		{"HTTP_PORT", c.HTTPPort},
		{"HTTP_REQUEST_TIMEOUT_SECONDS", c.HTTPRequestTimeoutSeconds},
		{"LLM_TIMEOUT_SECONDS", c.LLMTimeoutSeconds},
		{"MARKET_TIMEOUT_SECONDS", c.MarketTimeoutSeconds},
		{"AGENT_MAX_TURNS", c.AgentMaxTurns},
		{"AGENT_MAX_WALL_TIME_SECONDS", c.AgentMaxWallTimeSeconds},
		{"SUMMARY_MAX_TOKENS", c.SummaryMaxTokens},
		{"TOOL_MAX_OUTPUT_BYTES", c.ToolMaxOutputBytes},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("%s must be > 0, got %d", p.key, p.val)
		}
	}
	if c.HTTPPort > 65535 {
		return fmt.Errorf("HTTP_PORT must be <= 65535, got %d", c.HTTPPort)
	}
	return nil
}

// LLMTimeout is the per-call model backend timeout.
func (c Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLMTimeoutSeconds) * time.Second
}

// MarketTimeout is the per-call market API timeout.
func (c Config) MarketTimeout() time.Duration {
	return time.Duration(c.MarketTimeoutSeconds) * time.Second
}

// AgentMaxWallTime bounds one answer loop.
func (c Config) AgentMaxWallTime() time.Duration {
	return time.Duration(c.AgentMaxWallTimeSeconds) * time.Second
}

// HTTPRequestTimeout bounds one HTTP request.
func (c Config) HTTPRequestTimeout() time.Duration {
	return time.Duration(c.HTTPRequestTimeoutSeconds) * time.Second
}

func defaultCachePath(backend string) string {
	if backend == "sqlite" {
		return "KB.db"
	}
	return "KB.json"
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || strings.EqualFold(v, "true")
}
