package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLLMProviderConfigSetDefaults(t *testing.T) {
	c := LLMProviderConfig{}
	c.SetDefaults()
	require.Equal(t, "openai", c.Type)
	require.Equal(t, "gpt-4o-mini", c.Model)
	require.Equal(t, 2048, c.MaxTokens)
}

func TestLLMProviderConfigValidateRequiresAPIKeyForOpenAI(t *testing.T) {
	c := LLMProviderConfig{Type: "openai", Model: "gpt-4o-mini"}
	err := c.Validate()
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "api_key", cfgErr.Field)
}

func TestLLMProviderConfigValidateTemperatureRange(t *testing.T) {
	c := LLMProviderConfig{Type: "openai", APIKey: "k", Temperature: 3}
	err := c.Validate()
	require.Error(t, err)
}

func TestSettingSetDefaultsCascadesToLLM(t *testing.T) {
	s := Setting{AgentName: "a"}
	s.SetDefaults()
	require.Equal(t, "openai", s.LLM.Type)
	require.Equal(t, 1000, s.MaxHistoryLen)
}

func TestSettingValidateRequiresAgentName(t *testing.T) {
	s := Setting{LLM: LLMProviderConfig{Type: "openai", APIKey: "k"}}
	err := s.Validate()
	require.Error(t, err)
}
