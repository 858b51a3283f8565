package chatloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/agentstep/agent"
	"github.com/kadirpekel/agentstep/config"
	"github.com/kadirpekel/agentstep/fsm"
	"github.com/kadirpekel/agentstep/llms"
	"github.com/kadirpekel/agentstep/tokens"
	"github.com/kadirpekel/agentstep/tools"
)

type stubClient struct {
	askResp        llms.Response
	askToolResp    llms.Response
	structuredResp string

	llmCalls int
}

func (s *stubClient) Ask(context.Context, []llms.Message, llms.Options) (llms.Response, error) {
	s.llmCalls++
	return s.askResp, nil
}

func (s *stubClient) AskTool(_ context.Context, _ []llms.Message, _ []llms.ToolDefinition, _ llms.ToolChoice, _ llms.Options) (llms.Response, error) {
	s.llmCalls++
	return s.askToolResp, nil
}

func (s *stubClient) StructuredOutput(_ context.Context, _ []llms.Message, schema *llms.Schema, _ llms.Options) (llms.TokenUsage, error) {
	s.llmCalls++
	if err := schema.Decode(s.structuredResp); err != nil {
		return llms.TokenUsage{}, &llms.SchemaViolationError{Provider: "stub", Raw: s.structuredResp, Err: err}
	}
	return llms.TokenUsage{InputTokens: 10, OutputTokens: 4}, nil
}

func (s *stubClient) Model() string { return "stub" }

// clockTool records invocations and optionally cancels the turn's context
// mid-step, for the cancellation boundary tests.
type clockTool struct {
	calls  int
	cancel context.CancelFunc
}

func (c *clockTool) Info() tools.Info {
	return tools.Info{Name: "get_time", Description: "current time", Parameters: []tools.Parameter{
		{Name: "latitude", Type: "number", Required: true},
		{Name: "longitude", Type: "number", Required: true},
	}}
}

func (c *clockTool) Execute(context.Context, map[string]any) (tools.Result, error) {
	c.calls++
	if c.cancel != nil {
		c.cancel()
	}
	return tools.Result{Success: true, Output: map[string]any{"status_code": 200, "content": "12:00"}}, nil
}

func testSetting() config.Setting {
	s := config.Setting{AgentName: "t", GlobalPrompt: "你是一個專業的顧問"}
	s.SetDefaults()
	return s
}

func greetingMachine() *fsm.StateMachine {
	return &fsm.StateMachine{
		InitialStateName: "greeting",
		States: map[string]fsm.State{
			"greeting":     {Name: "greeting", Instruction: "greet the user"},
			"conversation": {Name: "conversation", Instruction: "hold the conversation"},
		},
		Transitions: map[string][]string{"greeting": {"conversation"}},
	}
}

func newLoop(client llms.Client, registry *tools.Registry) (*Loop, *tokens.Counter) {
	agent.Reset()
	counter := tokens.NewCounter("gpt-4o-mini")
	return New(client, registry, nil, nil, counter), counter
}

func TestTurnBootstrapsGreetingOnEmptyMemory(t *testing.T) {
	loop, counter := newLoop(&stubClient{}, tools.NewRegistry())
	memory := &fsm.Memory{}

	result, err := loop.Turn(context.Background(), testSetting(), greetingMachine(), memory, Input{})
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, result.ResultType)
	require.NotEmpty(t, result.Response)

	require.Len(t, memory.Steps, 1)
	step := memory.Steps[0]
	require.Equal(t, "greeting", step.StateName)
	require.Len(t, step.Actions, 1)
	require.Equal(t, "send_message_to_user", step.Actions[0].Name)
	require.Equal(t, result.Response, step.Actions[0].Arguments["agent_message"])
	require.NotNil(t, step.Actions[0].Result)
	require.Equal(t, 0, counter.Snapshot().Calls)
}

func TestTurnExecutesToolThenYieldsToUser(t *testing.T) {
	client := &stubClient{
		structuredResp: `{"state_name": "conversation"}`,
		askToolResp: llms.Response{ToolCalls: []llms.ToolCall{
			{Name: "get_time", Arguments: map[string]any{"latitude": 39.9, "longitude": 116.4}},
			{Name: "send_message_to_user", Arguments: map[string]any{"agent_message": "北京现在是 12:00。"}},
		}},
	}
	registry := tools.NewRegistry()
	clock := &clockTool{}
	require.NoError(t, registry.Register(clock))

	loop, _ := newLoop(client, registry)
	memory := &fsm.Memory{}
	memory.Append(fsm.Step{StateName: "greeting", Timestamp: time.Now()})

	result, err := loop.Turn(context.Background(), testSetting(), greetingMachine(), memory, Input{UserMessage: "北京现在几点?"})
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, result.ResultType)
	require.Equal(t, "北京现在是 12:00。", result.Response)
	require.Equal(t, 1, clock.calls)

	require.Len(t, memory.Steps, 2)
	step := memory.Steps[1]
	require.Equal(t, "conversation", step.StateName)
	require.Len(t, step.Actions, 2)
	for _, action := range step.Actions {
		require.NotNil(t, action.Result)
	}
	require.Equal(t, "get_time", step.Actions[0].Name)
	require.Equal(t, "send_message_to_user", step.Actions[1].Name)
}

func TestTurnStopsExecutingAfterSendMessageToUser(t *testing.T) {
	client := &stubClient{
		structuredResp: `{"state_name": "conversation"}`,
		askToolResp: llms.Response{ToolCalls: []llms.ToolCall{
			{Name: "send_message_to_user", Arguments: map[string]any{"agent_message": "done"}},
			{Name: "get_time", Arguments: map[string]any{"latitude": 1.0, "longitude": 2.0}},
		}},
	}
	registry := tools.NewRegistry()
	clock := &clockTool{}
	require.NoError(t, registry.Register(clock))

	loop, _ := newLoop(client, registry)
	memory := &fsm.Memory{}
	memory.Append(fsm.Step{StateName: "greeting", Timestamp: time.Now()})

	result, err := loop.Turn(context.Background(), testSetting(), greetingMachine(), memory, Input{UserMessage: "hi"})
	require.NoError(t, err)
	require.Equal(t, "done", result.Response)
	require.Equal(t, 0, clock.calls)
	require.Len(t, memory.Steps[1].Actions, 1)
}

func TestTurnCancelledBetweenActionsLeavesMemoryUnchanged(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &stubClient{
		structuredResp: `{"state_name": "conversation"}`,
		askToolResp: llms.Response{ToolCalls: []llms.ToolCall{
			{Name: "get_time", Arguments: map[string]any{"latitude": 1.0, "longitude": 2.0}},
			{Name: "send_message_to_user", Arguments: map[string]any{"agent_message": "late"}},
		}},
	}
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(&clockTool{cancel: cancel}))

	loop, _ := newLoop(client, registry)
	memory := &fsm.Memory{}
	memory.Append(fsm.Step{StateName: "greeting", Timestamp: time.Now()})

	result, err := loop.Turn(ctx, testSetting(), greetingMachine(), memory, Input{UserMessage: "hi"})
	require.Error(t, err)
	require.Equal(t, ResultCancelled, result.ResultType)
	require.Len(t, memory.Steps, 1)
}

func TestTurnDuplicateRequestToolFailsBeforeAnyLLMCall(t *testing.T) {
	client := &stubClient{
		structuredResp: `{"state_name": "conversation"}`,
		askToolResp:    llms.Response{Content: "unreachable"},
	}
	loop, _ := newLoop(client, tools.NewRegistry())
	memory := &fsm.Memory{}
	memory.Append(fsm.Step{StateName: "greeting", Timestamp: time.Now()})

	result, err := loop.Turn(context.Background(), testSetting(), greetingMachine(), memory, Input{
		UserMessage:  "北京现在几点?",
		RequestTools: []tools.Tool{&clockTool{}, &clockTool{}},
	})
	require.Error(t, err)
	var dup *tools.DuplicateToolNameError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "get_time", dup.Name)
	require.Equal(t, ResultError, result.ResultType)
	require.Equal(t, 0, client.llmCalls)
	require.Len(t, memory.Steps, 1)
}

func TestTurnRegistersRequestToolsForTheTurn(t *testing.T) {
	client := &stubClient{
		structuredResp: `{"state_name": "conversation"}`,
		askToolResp: llms.Response{ToolCalls: []llms.ToolCall{
			{Name: "get_time", Arguments: map[string]any{"latitude": 39.9, "longitude": 116.4}},
			{Name: "send_message_to_user", Arguments: map[string]any{"agent_message": "12:00"}},
		}},
	}
	loop, _ := newLoop(client, tools.NewRegistry())
	memory := &fsm.Memory{}
	memory.Append(fsm.Step{StateName: "greeting", Timestamp: time.Now()})

	clock := &clockTool{}
	result, err := loop.Turn(context.Background(), testSetting(), greetingMachine(), memory, Input{
		UserMessage:  "北京现在几点?",
		RequestTools: []tools.Tool{clock},
	})
	require.NoError(t, err)
	require.Equal(t, "12:00", result.Response)
	require.Equal(t, 1, clock.calls)
}

func TestTurnEditedLastResponseReplacesAgentMessage(t *testing.T) {
	loop, _ := newLoop(&stubClient{}, tools.NewRegistry())
	memory := &fsm.Memory{}
	memory.Append(fsm.Step{
		StateName: "greeting",
		Actions: []fsm.Action{{
			Name:      "send_message_to_user",
			Arguments: map[string]any{"agent_message": "original"},
			Result:    map[string]any{"user_message": ""},
		}},
	})

	edited := "revised"
	result, err := loop.Turn(context.Background(), testSetting(), greetingMachine(), memory, Input{EditedLastResponse: &edited})
	require.NoError(t, err)
	require.Equal(t, "revised", result.Response)
	require.Equal(t, "revised", memory.Steps[0].Actions[0].Arguments["agent_message"])
	require.Len(t, memory.Steps, 1)
}

func TestTurnRecallLastUserMessageDropsLastStep(t *testing.T) {
	client := &stubClient{
		structuredResp: `{"state_name": "conversation"}`,
		askToolResp:    llms.Response{Content: "welcome back"},
	}
	loop, _ := newLoop(client, tools.NewRegistry())
	memory := &fsm.Memory{}
	memory.Append(fsm.Step{StateName: "greeting", Timestamp: time.Now()})
	memory.Append(fsm.Step{StateName: "conversation", UserMessage: "scratch that", Timestamp: time.Now()})

	result, err := loop.Turn(context.Background(), testSetting(), greetingMachine(), memory, Input{RecallLastUserMessage: true, UserMessage: "try again"})
	require.NoError(t, err)
	require.Equal(t, ResultSuccess, result.ResultType)

	// The recalled step is gone and exactly one new step took its place.
	require.Len(t, memory.Steps, 2)
	require.Equal(t, "try again", memory.Steps[1].UserMessage)
}

func TestTurnUsesNewStatePathWhenStateMachineIsEmpty(t *testing.T) {
	client := &stubClient{
		askResp:     llms.Response{Content: "ask a clarifying question"},
		askToolResp: llms.Response{Content: "could you say more?"},
	}
	loop, _ := newLoop(client, tools.NewRegistry())
	memory := &fsm.Memory{}
	memory.Append(fsm.Step{StateName: "", Timestamp: time.Now()})

	result, err := loop.Turn(context.Background(), testSetting(), &fsm.StateMachine{}, memory, Input{UserMessage: "hello"})
	require.NoError(t, err)
	require.Equal(t, "could you say more?", result.Response)
	require.Len(t, memory.Steps, 2)
	require.Empty(t, memory.Steps[1].StateName)
}

func TestTurnTimestampsAreNonDecreasing(t *testing.T) {
	client := &stubClient{
		structuredResp: `{"state_name": "conversation"}`,
		askToolResp:    llms.Response{Content: "ok"},
	}
	loop, _ := newLoop(client, tools.NewRegistry())
	memory := &fsm.Memory{}

	_, err := loop.Turn(context.Background(), testSetting(), greetingMachine(), memory, Input{})
	require.NoError(t, err)
	_, err = loop.Turn(context.Background(), testSetting(), greetingMachine(), memory, Input{UserMessage: "hi"})
	require.NoError(t, err)

	require.Len(t, memory.Steps, 2)
	require.False(t, memory.Steps[1].Timestamp.Before(memory.Steps[0].Timestamp))
}
