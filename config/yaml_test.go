package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseSettingYAMLRoundTrip(t *testing.T) {
	in := Setting{
		AgentName:     "advisor",
		GlobalPrompt:  "be helpful",
		MaxHistoryLen: 20,
		LLM:           LLMProviderConfig{Type: "openai", Model: "gpt-4o-mini", APIKey: "k"},
	}
	data, err := MarshalSettingYAML(in)
	require.NoError(t, err)

	out, err := ParseSettingYAML(data)
	require.NoError(t, err)
	require.Equal(t, "advisor", out.AgentName)
	require.Equal(t, "be helpful", out.GlobalPrompt)
	require.Equal(t, 20, out.MaxHistoryLen)
}

func TestParseSettingYAMLRejectsInvalidBundle(t *testing.T) {
	_, err := ParseSettingYAML([]byte("llm:\n  model: gpt-4o-mini\n"))
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestParseSettingYAMLRejectsMalformedYAML(t *testing.T) {
	_, err := ParseSettingYAML([]byte("{not yaml"))
	require.Error(t, err)
}
