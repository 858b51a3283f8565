package llms

import "context"

// Message is the provider-agnostic wire shape a Client exchanges with an
// upstream chat model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolDefinition describes one callable tool in the shape OpenAI-style
// function calling expects.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// Response is the result of an Ask/AskTool call: a rendered text answer
// plus zero or more tool calls the agent should execute next.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	InputTokens  int
	OutputTokens int
}

// TokenUsage reports the prompt/completion token counts an upstream call
// billed, for TokenCounter.AddCall.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
}

// Options configures a single call, mirroring the wire-shape parameters in
// spec.md's external interface section.
type Options struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// ToolChoice steers tool selection on an AskTool call: auto, required, or
// any other value naming the single tool the model must call.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceRequired ToolChoice = "required"
)

// Client is the provider-agnostic contract every Step Agent and pipeline
// stage calls through. A single concrete type, OpenAIClient, implements it;
// new providers add new types without touching callers.
type Client interface {
	// Ask sends messages and returns the model's free-text answer.
	Ask(ctx context.Context, messages []Message, opts Options) (Response, error)

	// AskTool sends messages plus a tool catalogue and returns either a
	// text answer or a set of tool calls to execute. choice steers the
	// model: auto, required, or a specific tool name.
	AskTool(ctx context.Context, messages []Message, tools []ToolDefinition, choice ToolChoice, opts Options) (Response, error)

	// StructuredOutput sends messages and binds the reply into schema's
	// Target, repairing a malformed reply once before failing with
	// SchemaViolationError. The returned usage covers the last completed
	// provider call.
	StructuredOutput(ctx context.Context, messages []Message, schema *Schema, opts Options) (TokenUsage, error)

	// Model returns the model name this client is configured for, used by
	// TokenCounter to pick an encoding.
	Model() string
}
