// README: Config loader with env defaults for HTTP, DB, Redis, and AI provider settings.
package config

import (
	"os"
	"strconv"
)

type AIConfig struct {
	// Provider selects the backend: claude-cli, openai, anthropic or gemini.
	Provider     string
	ClaudeBin    string
	OpenAIKey    string
	OpenAIModel  string
	AnthropicKey string
	GeminiKey    string
}

type Config struct {
	HTTP struct {
		Addr string
	}
	DB struct {
		// DSN empty disables quota tracking and generation logging.
		DSN string
	}
	Redis struct {
		// Addr empty disables the places cache.
		Addr string
	}
	Maps struct {
		// APIKey empty disables place prefetch and enrichment.
		APIKey string
	}
	Firebase struct {
		// ProjectID empty falls back to header-based dev auth.
		ProjectID       string
		CredentialsFile string
	}
	AI            AIConfig
	PlaceCacheTTL int // seconds
}

func Load() (Config, error) {
	var cfg Config
	cfg.HTTP.Addr = envOrDefault("VOYAGO_HTTP_ADDR", ":8080")
	cfg.DB.DSN = os.Getenv("VOYAGO_DB_DSN")
	cfg.Redis.Addr = os.Getenv("VOYAGO_REDIS_ADDR")
	cfg.Maps.APIKey = os.Getenv("GOOGLE_MAPS_API_KEY")
	cfg.Firebase.ProjectID = os.Getenv("VOYAGO_FIREBASE_PROJECT_ID")
	cfg.Firebase.CredentialsFile = os.Getenv("VOYAGO_FIREBASE_CREDENTIALS")
	cfg.AI.Provider = envOrDefault("VOYAGO_AI_PROVIDER", "gemini")
	cfg.AI.ClaudeBin = envOrDefault("VOYAGO_CLAUDE_BIN", "claude")
	cfg.AI.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	cfg.AI.OpenAIModel = os.Getenv("VOYAGO_OPENAI_MODEL")
	cfg.AI.AnthropicKey = os.Getenv("ANTHROPIC_API_KEY")
	cfg.AI.GeminiKey = os.Getenv("GEMINI_API_KEY")
	cfg.PlaceCacheTTL = envOrDefaultInt("VOYAGO_PLACE_CACHE_TTL", 86400)
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
