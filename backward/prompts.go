package backward

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/kadirpekel/agentstep/llms"
)

const synthesisSystemPrompt = `You write guidance prompts for a question-answering
assistant. Each prompt is bound to one chapter of source material. The
prompt you produce must instruct the assistant to answer strictly from the
chapter's subject matter, to reply "insufficient evidence" when a question
falls outside it, and in that case to suggest how the asker could refine
the question. Output only the prompt text.`

// promptCache memoizes synthesized prompts by (chapter title, sorted BQA
// ids), making synthesis a pure function of its inputs across a process.
type promptCache struct {
	mu sync.Mutex
	m  map[string]string
}

func newPromptCache() *promptCache {
	return &promptCache{m: map[string]string{}}
}

func promptCacheKey(title string, cqaIDs []string) string {
	ids := append([]string(nil), cqaIDs...)
	sort.Strings(ids)
	return title + "\x00" + strings.Join(ids, "\x00")
}

func (c *promptCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.m[key]
	return v, ok
}

func (c *promptCache) put(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

// synthesizePrompt produces (or recalls) the guidance prompt for one chapter
// node. items are the BQA items assigned to the node, used both as the
// model's view of the chapter's subject matter and, via their ids, as the
// cache key.
func (p *run) synthesizePrompt(ctx context.Context, node *ChapterNode, items []BQAItem) (string, error) {
	key := promptCacheKey(node.Title, node.RelatedCQAIDs)
	if cached, ok := p.cache.get(key); ok {
		p.appendLog(fmt.Sprintf("prompt for chapter %q served from cache", node.Title))
		return cached, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Chapter: %s\n", node.Title)
	if node.Reason != "" {
		fmt.Fprintf(&b, "Grouping rationale: %s\n", node.Reason)
	}
	b.WriteString("Subject matter:\n")
	for _, item := range items {
		if item.Background != "" {
			fmt.Fprintf(&b, "- Background: %s\n", item.Background)
		}
		fmt.Fprintf(&b, "- Q: %s A: %s\n", item.Question, item.Answer)
	}
	b.WriteString("\nWrite the guidance prompt for this chapter.")

	messages := []llms.Message{
		{Role: "system", Content: synthesisSystemPrompt},
		{Role: "user", Content: b.String()},
	}
	resp, err := p.llm.Ask(ctx, messages, llms.Options{Temperature: 0})
	if err != nil {
		return "", err
	}
	p.addCall(llms.TokenUsage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens})

	prompt := strings.TrimSpace(resp.Content)
	p.cache.put(key, prompt)
	return prompt, nil
}
