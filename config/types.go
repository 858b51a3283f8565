// Package config holds the per-request Setting bundle and process-level
// provider configuration, grounded on the pack's LLM/database/embedder
// provider config types.
package config

import "fmt"

// ConfigError reports an invalid or missing configuration field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// LLMProviderConfig configures a single LLM provider instance.
type LLMProviderConfig struct {
	Type        string
	Model       string
	APIKey      string
	Host        string
	Temperature float64
	TopP        float64
	TopK        int
	MaxTokens   int
	TimeoutSecs int
}

// SetDefaults fills zero-value fields with the provider's sane defaults.
func (c *LLMProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "openai"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.TopP == 0 {
		c.TopP = 1.0
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 180
	}
}

// Validate checks field ranges and provider-specific requirements.
func (c *LLMProviderConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return &ConfigError{Field: "temperature", Message: "must be between 0 and 2"}
	}
	if c.TopP < 0 || c.TopP > 1 {
		return &ConfigError{Field: "top_p", Message: "must be between 0 and 1"}
	}
	if c.MaxTokens < 0 {
		return &ConfigError{Field: "max_tokens", Message: "must not be negative"}
	}
	if c.TopK < 0 {
		return &ConfigError{Field: "top_k", Message: "must not be negative"}
	}
	if c.Type == "openai" && c.APIKey == "" {
		return &ConfigError{Field: "api_key", Message: "required for openai provider"}
	}
	return nil
}

// DatabaseProviderConfig configures the feedback vector store.
type DatabaseProviderConfig struct {
	Type    string
	Host    string
	Port    int
	APIKey  string
	UseTLS  bool
	TimeoutSecs int
}

// SetDefaults fills Host/Port/Timeout for local development.
func (c *DatabaseProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "qdrant"
	}
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 30
	}
}

// EmbedderProviderConfig configures the embedding client.
type EmbedderProviderConfig struct {
	Type      string
	Model     string
	APIKey    string
	BaseURL   string
	Dimension int
	BatchSize int
}

// SetDefaults fills provider-specific dimension/batch-size defaults.
func (c *EmbedderProviderConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "openai"
	}
	if c.Model == "" {
		c.Model = "text-embedding-3-small"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 10
	}
	if c.Dimension == 0 {
		switch c.Model {
		case "text-embedding-3-large":
			c.Dimension = 3072
		default:
			c.Dimension = 1536
		}
	}
}

// Setting is the full per-request configuration bundle an agent runs with:
// the LLM it talks to, the global system prompt, history limits and the
// optional predefined state machine name. It is the unit the playground's
// config editor serializes to/from YAML.
type Setting struct {
	AgentName     string  `yaml:"agent_name"`
	LLM           LLMProviderConfig `yaml:"llm"`
	GlobalPrompt  string  `yaml:"global_prompt"`
	MaxHistoryLen int     `yaml:"max_history_len"`
	StateMachine  string  `yaml:"state_machine,omitempty"`
	VectorDBURL   string  `yaml:"vector_db_url,omitempty"`
}

// SetDefaults fills Setting-level defaults and cascades into LLM.
func (s *Setting) SetDefaults() {
	s.LLM.SetDefaults()
	if s.MaxHistoryLen == 0 {
		s.MaxHistoryLen = 1000
	}
}

// Validate checks the bundle as a whole.
func (s *Setting) Validate() error {
	if s.AgentName == "" {
		return &ConfigError{Field: "agent_name", Message: "must not be empty"}
	}
	return s.LLM.Validate()
}
