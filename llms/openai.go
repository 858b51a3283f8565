package llms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OpenAIClient talks to an OpenAI-compatible chat-completions endpoint. It is
// the sole concrete Client implementation; new providers follow the same
// shape without touching callers.
type OpenAIClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
}

// OpenAIConfig configures an OpenAIClient.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// NewOpenAIClient builds a client against cfg, defaulting BaseURL to the
// public OpenAI API and Timeout to 60s when unset.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if cfg.APIKey == "" {
		return nil, &ConfigError{Field: "api_key", Message: "must not be empty"}
	}
	if cfg.Model == "" {
		return nil, &ConfigError{Field: "model", Message: "must not be empty"}
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIClient{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
	}, nil
}

// ConfigError reports a missing or invalid construction-time setting.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("llms: config error on %s: %s", e.Field, e.Message)
}

func (c *OpenAIClient) Model() string { return c.model }

type chatCompletionRequest struct {
	Model          string             `json:"model"`
	Messages       []Message          `json:"messages"`
	Temperature    float64            `json:"temperature,omitempty"`
	TopP           float64            `json:"top_p,omitempty"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	Tools          []openAITool       `json:"tools,omitempty"`
	ToolChoice     any                `json:"tool_choice,omitempty"`
	ResponseFormat *responseFormatObj `json:"response_format,omitempty"`
}

type openAITool struct {
	Type     string         `json:"type"`
	Function toolDefWrapper `json:"function"`
}

type toolDefWrapper struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type responseFormatObj struct {
	Type string `json:"type"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			ToolCalls []struct {
				ID       string `json:"id"`
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *OpenAIClient) do(ctx context.Context, req chatCompletionRequest) (chatCompletionResponse, error) {
	var out chatCompletionResponse

	body, err := json.Marshal(req)
	if err != nil {
		return out, fmt.Errorf("llms: marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return out, fmt.Errorf("llms: building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return out, &UpstreamTimeoutError{Provider: "openai", Op: "chat.completions", Err: err}
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return out, &CancelledError{Op: "chat.completions", Err: err}
		}
		return out, &UpstreamError{Provider: "openai", Op: "chat.completions", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return out, &UpstreamError{Provider: "openai", Op: "chat.completions", StatusCode: resp.StatusCode, Err: err}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, &UpstreamError{Provider: "openai", Op: "chat.completions", StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode >= 400 || out.Error != nil {
		msg := fmt.Sprintf("status %d", resp.StatusCode)
		if out.Error != nil {
			msg = out.Error.Message
		}
		return out, &UpstreamError{Provider: "openai", Op: "chat.completions", StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}
	return out, nil
}

func (c *OpenAIClient) Ask(ctx context.Context, messages []Message, opts Options) (Response, error) {
	return c.AskTool(ctx, messages, nil, ToolChoiceAuto, opts)
}

// toolChoicePayload maps a ToolChoice to the provider's tool_choice wire
// value: the auto/required strings pass through, anything else names a
// specific function.
func toolChoicePayload(choice ToolChoice) any {
	switch choice {
	case "", ToolChoiceAuto:
		return "auto"
	case ToolChoiceRequired:
		return "required"
	default:
		return map[string]any{
			"type":     "function",
			"function": map[string]any{"name": string(choice)},
		}
	}
}

func (c *OpenAIClient) AskTool(ctx context.Context, messages []Message, tools []ToolDefinition, choice ToolChoice, opts Options) (Response, error) {
	req := chatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: opts.Temperature,
		TopP:        opts.TopP,
		MaxTokens:   opts.MaxTokens,
	}
	for _, t := range tools {
		req.Tools = append(req.Tools, openAITool{
			Type: "function",
			Function: toolDefWrapper{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	if len(req.Tools) > 0 {
		req.ToolChoice = toolChoicePayload(choice)
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return Response{}, err
	}
	if len(resp.Choices) == 0 {
		return Response{}, &UpstreamError{Provider: "openai", Op: "chat.completions", Err: errors.New("no choices returned")}
	}

	msg := resp.Choices[0].Message
	result := Response{
		Content:      msg.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return Response{}, &SchemaViolationError{Provider: "openai", Raw: tc.Function.Arguments, Err: err}
			}
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
		})
	}
	return result, nil
}

func (c *OpenAIClient) StructuredOutput(ctx context.Context, messages []Message, schema *Schema, opts Options) (TokenUsage, error) {
	usage, err := c.structuredOutputOnce(ctx, messages, schema, opts)
	if err == nil {
		return usage, nil
	}

	var schemaErr *SchemaViolationError
	if !errors.As(err, &schemaErr) {
		return usage, err
	}

	repairMessages := append(append([]Message{}, messages...), Message{
		Role:    "user",
		Content: fmt.Sprintf("Your previous reply was not valid JSON matching the requested %s shape. Return only JSON matching that shape.", schema.Name),
	})
	return c.structuredOutputOnce(ctx, repairMessages, schema, opts)
}

func (c *OpenAIClient) structuredOutputOnce(ctx context.Context, messages []Message, schema *Schema, opts Options) (TokenUsage, error) {
	req := chatCompletionRequest{
		Model:          c.model,
		Messages:       messages,
		Temperature:    opts.Temperature,
		TopP:           opts.TopP,
		MaxTokens:      opts.MaxTokens,
		ResponseFormat: &responseFormatObj{Type: "json_object"},
	}
	resp, err := c.do(ctx, req)
	if err != nil {
		return TokenUsage{}, err
	}
	usage := TokenUsage{InputTokens: resp.Usage.PromptTokens, OutputTokens: resp.Usage.CompletionTokens}
	if len(resp.Choices) == 0 {
		return usage, &UpstreamError{Provider: "openai", Op: "chat.completions", Err: errors.New("no choices returned")}
	}
	content := resp.Choices[0].Message.Content
	if err := schema.Decode(content); err != nil {
		return usage, &SchemaViolationError{Provider: "openai", Raw: content, Err: err}
	}
	return usage, nil
}
