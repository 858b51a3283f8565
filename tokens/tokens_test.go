package tokens

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCounterAddCallAccumulates(t *testing.T) {
	c := NewCounter("gpt-4o")
	c.AddCall(10, 5)
	c.AddCall(3, 7)

	snap := c.Snapshot()
	require.Equal(t, 2, snap.Calls)
	require.Equal(t, 13, snap.InputTokens)
	require.Equal(t, 12, snap.OutputTokens)
	require.Equal(t, 25, snap.TotalTokens)
}

func TestCounterReset(t *testing.T) {
	c := NewCounter("gpt-4o")
	c.AddCall(10, 5)
	c.Reset()

	snap := c.Snapshot()
	require.Equal(t, Snapshot{}, snap)
}

func TestCountMessagesIncludesOverhead(t *testing.T) {
	c := NewCounter("gpt-4o")
	n, err := c.CountMessages([]Message{{Role: "user", Content: "hi"}})
	require.NoError(t, err)
	require.Greater(t, n, tokensPerMessage)
}

func TestFitWithinLimitDropsOldestNonSystemFirst(t *testing.T) {
	c := NewCounter("gpt-4o")
	messages := []Message{
		{Role: "system", Content: "be helpful"},
		{Role: "user", Content: "first question padded with extra words to add tokens"},
		{Role: "assistant", Content: "first answer padded with extra words to add tokens"},
		{Role: "user", Content: "second question"},
	}
	full, err := c.CountMessages(messages)
	require.NoError(t, err)

	fit, err := c.FitWithinLimit(messages, full-1)
	require.NoError(t, err)
	require.Less(t, len(fit), len(messages))
	require.Equal(t, "system", fit[0].Role)
}
