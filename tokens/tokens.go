// Package tokens implements per-agent LLM token accounting backed by
// tiktoken-go, the same encoding cache strategy the rest of the pack uses
// for cost estimation.
package tokens

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encodingCache = map[string]*tiktoken.Tiktoken{}
	cacheMu       sync.RWMutex
)

// encodingForModel maps a model name to its tiktoken encoding, falling back
// to cl100k_base for providers (Claude, Gemini) that do not publish an
// official tokenizer but tokenize close enough to GPT-3.5/4 for estimation.
func encodingForModel(model string) string {
	switch model {
	case "gpt-4o", "gpt-4o-mini", "o1", "o1-mini", "o3", "o3-mini":
		return "o200k_base"
	case "gpt-4", "gpt-4-turbo", "gpt-3.5-turbo", "text-embedding-ada-002":
		return "cl100k_base"
	default:
		return "cl100k_base"
	}
}

func getEncoding(model string) (*tiktoken.Tiktoken, error) {
	encodingName := encodingForModel(model)

	cacheMu.RLock()
	enc, ok := encodingCache[encodingName]
	cacheMu.RUnlock()
	if ok {
		return enc, nil
	}

	cacheMu.Lock()
	defer cacheMu.Unlock()
	if enc, ok := encodingCache[encodingName]; ok {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("tokens: loading encoding %q: %w", encodingName, err)
	}
	encodingCache[encodingName] = enc
	return enc, nil
}

// Message is the minimal shape Counter needs to price a chat turn; llms.Message
// satisfies it structurally so callers pass their wire messages directly.
type Message struct {
	Role    string
	Content string
}

// Counter accumulates llm_calling_times, total_input_token and
// total_output_token for a single agent, the same three fields the backward
// pipeline's cost reports key off of.
type Counter struct {
	mu sync.Mutex

	model string

	calls       int
	inputTokens int
	outputTokens int
}

// NewCounter returns a Counter bound to model's tokenizer.
func NewCounter(model string) *Counter {
	return &Counter{model: model}
}

// Count returns the token length of text under the counter's model.
func (c *Counter) Count(text string) (int, error) {
	enc, err := getEncoding(c.model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// tokensPerMessage is the fixed per-message overhead OpenAI's chat format
// adds on top of role+content (<|start|>role/name<|end|>content<|end|>).
const tokensPerMessage = 3

// CountMessages sums per-message overhead plus encoded content length across
// a full conversation, used to decide whether a prompt fits the context
// window before issuing the call.
func (c *Counter) CountMessages(messages []Message) (int, error) {
	enc, err := getEncoding(c.model)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, m := range messages {
		total += tokensPerMessage
		total += len(enc.Encode(m.Content, nil, nil))
		total += len(enc.Encode(m.Role, nil, nil))
	}
	return total, nil
}

// FitWithinLimit drops the oldest non-system messages until the remaining
// conversation's token count is at or under maxTokens, preserving order.
func (c *Counter) FitWithinLimit(messages []Message, maxTokens int) ([]Message, error) {
	kept := append([]Message(nil), messages...)
	for {
		total, err := c.CountMessages(kept)
		if err != nil {
			return nil, err
		}
		if total <= maxTokens || len(kept) <= 1 {
			return kept, nil
		}
		dropIdx := -1
		for i, m := range kept {
			if m.Role != "system" {
				dropIdx = i
				break
			}
		}
		if dropIdx == -1 {
			return kept, nil
		}
		kept = append(kept[:dropIdx], kept[dropIdx+1:]...)
	}
}

// AddCall records one LLM round trip's input/output token usage.
func (c *Counter) AddCall(inputTokens, outputTokens int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.inputTokens += inputTokens
	c.outputTokens += outputTokens
}

// Reset zeroes all three counters.
func (c *Counter) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = 0
	c.inputTokens = 0
	c.outputTokens = 0
}

// Snapshot is an immutable copy of the counter's current totals.
type Snapshot struct {
	Calls        int
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// Snapshot returns the current totals without mutating the counter.
func (c *Counter) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Calls:        c.calls,
		InputTokens:  c.inputTokens,
		OutputTokens: c.outputTokens,
		TotalTokens:  c.inputTokens + c.outputTokens,
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("Counter(calls=%d, input=%d, output=%d, total=%d)",
		s.Calls, s.InputTokens, s.OutputTokens, s.TotalTokens)
}
