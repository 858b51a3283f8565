package reward

import (
	"context"
	"testing"

	"github.com/kadirpekel/agentstep/llms"
	"github.com/stretchr/testify/require"
)

type stubClient struct {
	raw string
}

func (s *stubClient) Ask(ctx context.Context, messages []llms.Message, opts llms.Options) (llms.Response, error) {
	return llms.Response{}, nil
}

func (s *stubClient) AskTool(ctx context.Context, messages []llms.Message, tools []llms.ToolDefinition, choice llms.ToolChoice, opts llms.Options) (llms.Response, error) {
	return llms.Response{}, nil
}

func (s *stubClient) StructuredOutput(ctx context.Context, messages []llms.Message, schema *llms.Schema, opts llms.Options) (llms.TokenUsage, error) {
	if err := schema.Decode(s.raw); err != nil {
		return llms.TokenUsage{}, &llms.SchemaViolationError{Provider: "stub", Raw: s.raw, Err: err}
	}
	return llms.TokenUsage{InputTokens: 20, OutputTokens: 15}, nil
}

func (s *stubClient) Model() string { return "stub" }

func TestCompareAnswerOrdersResultsByIndex(t *testing.T) {
	raw := `[
		{"index": 1, "label": "equivalent", "confidence": 0.9, "reason": "matches"},
		{"index": 0, "label": "different", "confidence": 0.8, "reason": "off-topic"}
	]`
	svc := NewService(&stubClient{raw: raw})

	result, err := svc.CompareAnswer(context.Background(), "what is the capital?", []string{"paris", "rome"}, "paris")
	require.NoError(t, err)
	require.Len(t, result.Results, 2)
	require.Equal(t, 0, result.Results[0].Index)
	require.Equal(t, LabelDifferent, result.Results[0].Label)
	require.Equal(t, 1, result.Results[1].Index)
}

func TestCompareAnswerZeroCandidatesShortCircuits(t *testing.T) {
	svc := NewService(&stubClient{})
	result, err := svc.CompareAnswer(context.Background(), "q", nil, "target")
	require.NoError(t, err)
	require.Empty(t, result.Results)
}

func TestCompareAnswerClampsConfidenceAndFallsBackOnUnknownLabel(t *testing.T) {
	raw := `{"chapters": [{"index": 0, "label": "mostly_right", "confidence": 1.5, "reason": "n/a"}]}`
	svc := NewService(&stubClient{raw: raw})

	result, err := svc.CompareAnswer(context.Background(), "q", []string{"a"}, "target")
	require.NoError(t, err)
	require.Len(t, result.Results, 1)
	require.Equal(t, LabelUnsupported, result.Results[0].Label)
	require.Equal(t, 1.0, result.Results[0].Confidence)
}

func TestResolveLabelPrecedence(t *testing.T) {
	require.Equal(t, LabelUnsupported, MergeLabel(LabelUnsupported, LabelDifferent))
	require.Equal(t, LabelDifferent, MergeLabel(LabelDifferent, LabelPartiallyEquivalent))
	require.Equal(t, LabelPartiallyEquivalent, MergeLabel(LabelPartiallyEquivalent, LabelEquivalent))
}
