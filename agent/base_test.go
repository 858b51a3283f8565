package agent

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentstep/aicontext"
)

func TestGetIsASingletonByName(t *testing.T) {
	Reset()
	first := Get("bqa_agent", nil, "sys", "Q: {{question}}")
	second := Get("bqa_agent", nil, "different system prompt", "ignored")

	require.Same(t, first, second)
	require.Equal(t, "sys", second.SystemPrompt())
}

func TestRenderUserPromptReportsMissingVariables(t *testing.T) {
	Reset()
	b := Get("needs_vars", nil, "", "Q: {{question}} A: {{answer}}")

	_, err := b.RenderUserPrompt(map[string]string{"question": "why"})
	require.Error(t, err)

	var missing *MissingTemplateVariableError
	require.ErrorAs(t, err, &missing)
	require.Equal(t, []string{"answer"}, missing.Missing)
}

func TestRenderUserPromptSubstitutesAllVars(t *testing.T) {
	Reset()
	b := Get("renders", nil, "", "Q: {{question}} A: {{answer}}")

	rendered, err := b.RenderUserPrompt(map[string]string{"question": "why", "answer": "because"})
	require.NoError(t, err)
	require.Equal(t, "Q: why A: because", rendered)
}

func TestPrepareContextSeedsFreshContextWithSystemPrompt(t *testing.T) {
	Reset()
	b := Get("prepares", nil, "be helpful", "Q: {{question}}")

	convo, err := b.PrepareContext(nil, map[string]string{"question": "why"})
	require.NoError(t, err)

	wire := convo.ToWireFormat()
	require.Len(t, wire, 2)
	require.Equal(t, "system", wire[0].Role)
	require.Equal(t, "be helpful", wire[0].Content)
	require.Equal(t, "user", wire[1].Role)
	require.Equal(t, "Q: why", wire[1].Content)
}

func TestPrepareContextAppendsToSuppliedContext(t *testing.T) {
	Reset()
	b := Get("appends", nil, "unused here", "Q: {{question}}")

	convo := aicontext.New()
	convo.AddSystemPrompt("caller-owned system prompt")
	convo.AddAssistant("earlier answer")

	out, err := b.PrepareContext(convo, map[string]string{"question": "next"})
	require.NoError(t, err)
	require.Same(t, convo, out)

	wire := out.ToWireFormat()
	require.Len(t, wire, 3)
	require.Equal(t, "caller-owned system prompt", wire[0].Content)
	require.Equal(t, "Q: next", wire[2].Content)
}

func TestPrepareContextReportsMissingVariables(t *testing.T) {
	Reset()
	b := Get("prepare_missing", nil, "", "Q: {{question}}")

	_, err := b.PrepareContext(nil, map[string]string{})
	var missing *MissingTemplateVariableError
	require.ErrorAs(t, err, &missing)
}

func TestUpdateAllEnginesUpdatesEveryInstance(t *testing.T) {
	Reset()
	a := Get("agent-a", nil, "", "")
	b := Get("agent-b", nil, "", "")

	updated := UpdateAllEngines(nil)
	require.Equal(t, 2, updated)
	require.Nil(t, a.LLM())
	require.Nil(t, b.LLM())
}
