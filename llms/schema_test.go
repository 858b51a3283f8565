package llms

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSchemaDecodeBindsObject(t *testing.T) {
	var parsed struct {
		StateName string `json:"state_name"`
	}
	s := &Schema{Name: "state_selection", Target: &parsed}
	require.NoError(t, s.Decode(`sure: {"state_name": "conversation"}`))
	require.Equal(t, "conversation", parsed.StateName)
}

func TestSchemaDecodeRejectsShapeMismatch(t *testing.T) {
	var parsed []int
	s := &Schema{Name: "numbers", Target: &parsed}
	require.Error(t, s.Decode(`{"state_name": "conversation"}`))
}

func TestSchemaDecodeRejectsMissingPayload(t *testing.T) {
	var parsed map[string]any
	s := &Schema{Name: "anything", Target: &parsed}
	require.Error(t, s.Decode("no json at all"))
}

func TestSchemaDecodeNormalizeUnwrapsChapters(t *testing.T) {
	var parsed []struct {
		ChapterName string `json:"chapter_name"`
	}
	s := &Schema{Name: "chapter_grouping", Target: &parsed, Normalize: true}
	require.NoError(t, s.Decode(`{"chapters": [{"chapter_name": "Basics"}]}`))
	require.Len(t, parsed, 1)
	require.Equal(t, "Basics", parsed[0].ChapterName)
}
