package backward

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/kadirpekel/agentstep/llms"
)

const bqaSystemPrompt = `You are a conversation-context analyst. You receive the
numbered question/answer pairs of one multi-turn transcript. For each pair,
write the background a reader needs to understand the question on its own,
drawn only from the earlier pairs of the same transcript. If a question is
already self-contained, the background is an empty string. Keep backgrounds
to one or two sentences.`

// Back-reference markers for the fallback heuristic: a question containing
// any of these likely depends on the preceding turn. English markers match
// on word boundaries so "with" does not trip "it"; the Chinese set matches
// as substrings, which is how Chinese text segments.
var (
	backReferenceWordRe = regexp.MustCompile(`(?i)\b(it|this|that|these|those|above|previous|same)\b`)
	backReferenceCJK    = []string{"它", "这", "那", "上面", "之前", "上述", "前面", "该"}
)

type bqaEnvelope struct {
	Index      int    `json:"index"`
	Background string `json:"background"`
}

// extractBQA turns one QAList into a BQAList with a single LLM call. When
// the model's response cannot be parsed into index/background pairs, the
// back-reference heuristic fills in backgrounds instead, so extraction never
// fails on malformed output — only on upstream errors.
func (p *run) extractBQA(ctx context.Context, list QAList) (BQAList, error) {
	out := BQAList{SessionID: list.SessionID, Items: make([]BQAItem, len(list.Items))}
	for i, qa := range list.Items {
		out.Items[i] = BQAItem{
			CQAID:    uuid.NewString(),
			Question: qa.Question,
			Answer:   qa.Answer,
			Metadata: qa.Metadata,
		}
	}
	if len(list.Items) == 0 {
		return out, nil
	}

	messages := []llms.Message{
		{Role: "system", Content: bqaSystemPrompt},
		{Role: "user", Content: renderBQAPrompt(list)},
	}
	var envelopes []bqaEnvelope
	schema := &llms.Schema{Name: "bqa_backgrounds", Target: &envelopes, Normalize: true}
	usage, err := p.llm.StructuredOutput(ctx, messages, schema, llms.Options{Temperature: 0})

	var backgrounds []string
	var schemaErr *llms.SchemaViolationError
	switch {
	case err == nil:
		p.addCall(usage)
		backgrounds = backgroundsFromEnvelopes(envelopes, len(list.Items))
	case errors.As(err, &schemaErr):
		// The provider billed the repair attempt even though the shape
		// never matched; count it and fall back to the heuristic.
		p.addCall(usage)
		p.logger.Warn("bqa extraction response violated schema, applying back-reference heuristic",
			"session_id", list.SessionID)
		backgrounds = heuristicBackgrounds(list)
	default:
		return BQAList{}, err
	}

	for i := range out.Items {
		out.Items[i].Background = backgrounds[i]
	}
	return out, nil
}

func renderBQAPrompt(list QAList) string {
	var b strings.Builder
	b.WriteString("Question/answer pairs:\n")
	for i, qa := range list.Items {
		fmt.Fprintf(&b, "%d. Q: %s\n   A: %s\n", i+1, qa.Question, qa.Answer)
	}
	b.WriteString("\nRespond with a JSON array, one object per pair, in the shape " +
		`[{"index": 1, "background": "..."}]. index is the 1-based pair number.`)
	return b.String()
}

// backgroundsFromEnvelopes maps the model's index/background array onto
// item positions. Out-of-range indices are ignored; unreferenced items
// keep an empty background.
func backgroundsFromEnvelopes(envelopes []bqaEnvelope, n int) []string {
	backgrounds := make([]string, n)
	for _, env := range envelopes {
		if env.Index < 1 || env.Index > n {
			continue
		}
		backgrounds[env.Index-1] = env.Background
	}
	return backgrounds
}

// heuristicBackgrounds is the parse-failure fallback: a question carrying a
// back-reference marker gets a terse rendering of the preceding pair as its
// background; all other questions get none.
func heuristicBackgrounds(list QAList) []string {
	backgrounds := make([]string, len(list.Items))
	for i, qa := range list.Items {
		if i == 0 || !hasBackReference(qa.Question) {
			continue
		}
		prev := list.Items[i-1]
		backgrounds[i] = fmt.Sprintf("Earlier in the conversation: Q: %s A: %s", prev.Question, prev.Answer)
	}
	return backgrounds
}

func hasBackReference(question string) bool {
	if backReferenceWordRe.MatchString(question) {
		return true
	}
	for _, marker := range backReferenceCJK {
		if strings.Contains(question, marker) {
			return true
		}
	}
	return false
}
