// Package aicontext holds the ordered, mutex-guarded message list an agent
// sends to an LLM for a single turn, grounded on the conversation-history
// pattern the rest of the pack uses for chat state.
package aicontext

import (
	"sync"

	"github.com/kadirpekel/agentstep/llms"
)

// ContentKind tags the rendered shape of a ContentPart.
type ContentKind string

const (
	ContentText     ContentKind = "text"
	ContentMarkdown ContentKind = "markdown"
	ContentJSON     ContentKind = "json"
)

// ContentPart is one typed fragment of a multi-part message.
type ContentPart struct {
	Kind  ContentKind
	Value string
}

// Message is a single turn in the conversation. Content holds a plain-text
// body; Parts, when non-empty, takes precedence and is concatenated in
// order by render.
type Message struct {
	Role    string
	Content string
	Parts   []ContentPart
}

func (m Message) render() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	out := ""
	for _, p := range m.Parts {
		out += p.Value
	}
	return out
}

// Context is an ordered, concurrency-safe list of Messages for one agent
// turn or pipeline step.
type Context struct {
	mu       sync.RWMutex
	messages []Message
}

// New returns an empty Context.
func New() *Context {
	return &Context{}
}

// AddSystemPrompt appends a system-role message.
func (c *Context) AddSystemPrompt(prompt string) {
	c.append(Message{Role: "system", Content: prompt})
}

// AddUserPrompt appends a user-role message.
func (c *Context) AddUserPrompt(prompt string) {
	c.append(Message{Role: "user", Content: prompt})
}

// AddAssistant appends an assistant-role message.
func (c *Context) AddAssistant(content string) {
	c.append(Message{Role: "assistant", Content: content})
}

// Add appends an arbitrary message, supporting multi-part content.
func (c *Context) Add(m Message) {
	c.append(m)
}

func (c *Context) append(m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
}

// Messages returns a defensive copy of the conversation so far.
func (c *Context) Messages() []Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// ToWireFormat flattens the conversation into the provider wire shape an
// llms.Client consumes.
func (c *Context) ToWireFormat() []llms.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]llms.Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = llms.Message{Role: m.Role, Content: m.render()}
	}
	return out
}

// Len returns the number of messages currently held.
func (c *Context) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}
