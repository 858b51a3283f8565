// Package reward implements the offline answer-quality judge used to score
// candidate assistant answers against a known-good target answer, grounded
// on the pack's reward service.
package reward

import (
	"context"
	"fmt"
	"sort"

	"github.com/kadirpekel/agentstep/llms"
)

// Label is the coarse agreement verdict a PairwiseJudge assigns a candidate
// answer relative to the target answer.
type Label string

const (
	LabelEquivalent          Label = "equivalent"
	LabelPartiallyEquivalent Label = "partially_equivalent"
	LabelDifferent           Label = "different"
	LabelUnsupported         Label = "unsupported"
)

// labelRank implements the precedence order used to resolve ambiguous LLM
// output: the most severe disagreement wins.
var labelRank = map[Label]int{
	LabelUnsupported:         3,
	LabelDifferent:           2,
	LabelPartiallyEquivalent: 1,
	LabelEquivalent:          0,
}

func isKnownLabel(l Label) bool {
	_, ok := labelRank[l]
	return ok
}

// resolveLabel picks the more severe of two candidate labels for the same
// judgment, per the precedence rule unsupported > different >
// partially_equivalent > equivalent. An unrecognized label loses to any
// recognized one.
func resolveLabel(a, b Label) Label {
	ra, aok := labelRank[a]
	rb, bok := labelRank[b]
	switch {
	case aok && bok:
		if ra >= rb {
			return a
		}
		return b
	case aok:
		return a
	case bok:
		return b
	default:
		return a
	}
}

// PairwiseJudge is one candidate answer's verdict against the target answer.
type PairwiseJudge struct {
	Index      int     `json:"index"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Comparison is the result of comparing a question's candidate answers
// against its target answer.
type Comparison struct {
	Question     string          `json:"question"`
	TargetAnswer string          `json:"target_answer"`
	Results      []PairwiseJudge `json:"results"`
}

const systemPrompt = `You are an answer-consistency judge. Decide each candidate answer's
agreement with the target answer based solely on the target answer's
meaning.
Label definitions:
- equivalent: factually and conclusively equivalent to the target answer;
  differences in wording do not change meaning or scope.
- partially_equivalent: same subject, but differs in scope, premises,
  timing, or quantity, or omits a qualifier the target answer has.
- different: a different or contradictory conclusion.
- unsupported: unrelated to the question or target answer, vague, or
  introduces claims the target answer does not support.
Output JSON with keys index/label/confidence/reason. confidence is a
number between 0 and 1 reflecting how sure you are. reason is a brief
explanation of the key difference.`

// Service compares candidate answers to a target answer via an LLM judge.
type Service struct {
	llm llms.Client
}

// NewService returns a Service backed by llmClient.
func NewService(llmClient llms.Client) *Service {
	return &Service{llm: llmClient}
}

type judgeEnvelope struct {
	Index      int     `json:"index"`
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// CompareAnswer judges every candidate against targetAnswer in one LLM
// call. Results are ordered by their index field when the model supplies
// one, falling back to input order. Confidence is clamped to [0, 1]; an
// unrecognized label is treated as "unsupported", the most conservative
// outcome. Zero candidates short-circuits to an empty result set with no
// LLM call.
func (s *Service) CompareAnswer(ctx context.Context, question string, candidates []string, targetAnswer string) (Comparison, error) {
	if len(candidates) == 0 {
		return Comparison{Question: question, TargetAnswer: targetAnswer, Results: nil}, nil
	}

	messages := []llms.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: renderPrompt(question, targetAnswer, candidates)},
	}

	var envelopes []judgeEnvelope
	schema := &llms.Schema{Name: "pairwise_judgments", Target: &envelopes, Normalize: true}
	if _, err := s.llm.StructuredOutput(ctx, messages, schema, llms.Options{Temperature: 0}); err != nil {
		return Comparison{}, err
	}
	// Trust the model's index field only when it forms a proper permutation
	// of the candidate positions; when indices are missing (all zero),
	// repeated or out of range, input order is used instead.
	useInputOrder := !indexesFormPermutation(envelopes, len(candidates))

	results := make([]PairwiseJudge, 0, len(candidates))
	for i, env := range envelopes {
		index := env.Index
		if useInputOrder {
			index = i
		}
		label := Label(env.Label)
		if !isKnownLabel(label) {
			label = LabelUnsupported
		}
		results = append(results, PairwiseJudge{
			Index:      index,
			Label:      label,
			Confidence: clamp01(env.Confidence),
			Reason:     env.Reason,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Index < results[j].Index })

	return Comparison{Question: question, TargetAnswer: targetAnswer, Results: results}, nil
}

// indexesFormPermutation reports whether envelopes carry distinct indices
// covering [0, n).
func indexesFormPermutation(envelopes []judgeEnvelope, n int) bool {
	if len(envelopes) != n {
		return false
	}
	seen := make([]bool, n)
	for _, e := range envelopes {
		if e.Index < 0 || e.Index >= n || seen[e.Index] {
			return false
		}
		seen[e.Index] = true
	}
	return true
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func renderPrompt(question, target string, candidates []string) string {
	prompt := fmt.Sprintf("Question:\n%s\n\nTarget answer:\n%s\n\nCandidate answers:\n", question, target)
	for i, c := range candidates {
		prompt += fmt.Sprintf("%d. %s\n", i+1, c)
	}
	prompt += "\nRespond with a JSON array, one object per candidate, in the shape " +
		`[{"index": 0, "label": "equivalent|partially_equivalent|different|unsupported", "confidence": 0.0, "reason": "..."}]`
	return prompt
}

// MergeLabel resolves two independent judgments of the same candidate into
// one, keeping the most severe disagreement, per the reward service's
// precedence rule for ambiguous data.
func MergeLabel(a, b Label) Label {
	return resolveLabel(a, b)
}
