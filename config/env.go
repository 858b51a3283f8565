package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadFromEnv reads a .env file (if present, silently ignored otherwise)
// and builds a Setting from the LLM_* environment variables, mirroring the
// original Python loader's variable names so existing deployments'
// environment files carry over unchanged.
func LoadFromEnv() (Setting, error) {
	_ = godotenv.Load()

	var s Setting
	s.AgentName = envOr("AGENT_NAME", "default")
	s.LLM.Type = envOr("LLM_API_TYPE", "openai")
	s.LLM.Model = envOr("LLM_MODEL", "")
	s.LLM.Host = envOr("LLM_BASE_URL", "https://api.openai.com/v1")
	s.LLM.APIKey = envOr("LLM_API_KEY", "")
	s.LLM.Temperature = envFloat("LLM_TEMPERATURE", 0.0)
	s.LLM.TopP = envFloat("LLM_TOP_P", 1.0)
	s.LLM.TopK = envInt("LLM_TOP_K", 0)
	s.LLM.MaxTokens = envInt("LLM_MAX_COMPLETION_TOKENS", 2048)
	s.LLM.TimeoutSecs = envInt("LLM_TIMEOUT", 180)
	s.GlobalPrompt = envOr("GLOBAL_PROMPT", "")
	s.MaxHistoryLen = envInt("MAX_HISTORY_LEN", 1000)
	s.VectorDBURL = envOr("VECTOR_DB_URL", "")

	s.SetDefaults()
	if err := s.Validate(); err != nil {
		return Setting{}, err
	}
	return s, nil
}

// LoadEmbedderFromEnv builds the embedder provider config from the
// EMBEDDING_* environment variables, falling back to the LLM API key so a
// single-key deployment still embeds.
func LoadEmbedderFromEnv() EmbedderProviderConfig {
	_ = godotenv.Load()

	c := EmbedderProviderConfig{
		Model:     envOr("EMBEDDING_MODEL", ""),
		APIKey:    envOr("EMBEDDING_API_KEY", envOr("LLM_API_KEY", "")),
		BaseURL:   envOr("EMBEDDING_BASE_URL", ""),
		Dimension: envInt("EMBEDDING_DIMENSIONS", 0),
		BatchSize: envInt("EMBEDDING_BATCH_SIZE", 0),
	}
	c.SetDefaults()
	return c
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envInt(key string, fallback int) int {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on", "y":
		return true
	case "0", "false", "no", "off", "n":
		return false
	default:
		return fallback
	}
}
