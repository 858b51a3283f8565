package stepagents

import (
	"context"

	"github.com/kadirpekel/agentstep/agent"
	"github.com/kadirpekel/agentstep/config"
	"github.com/kadirpekel/agentstep/feedback"
	"github.com/kadirpekel/agentstep/fsm"
	"github.com/kadirpekel/agentstep/llms"
	"github.com/kadirpekel/agentstep/tokens"
	"github.com/kadirpekel/agentstep/tools"
)

const defaultSelectActionsAgentName = "select_actions_agent"

const selectActionsSystemPrompt = `You are a professional action selection agent.
Given the current state's instruction, the conversation history and any
relevant past feedback, decide which tool(s) to call next to make progress
on the user's request. Prefer send_message_to_user when no other tool
applies.`

const selectActionsUserTemplate = `{{ global_prompt }}

Current state: {{ state_name }}
State instruction: {{ state_instruction }}

Relevant past feedback:
{{ feedback }}

History of steps:
{{ history }}`

// SelectActions turns the current state and history into a non-empty
// ordered sequence of pending Actions, grounded on the runtime's
// SelectActionsAgent. A plain-text reply with no tool calls is synthesized
// into a single send_message_to_user action, guaranteeing the loop always
// has something to execute.
type SelectActions struct {
	base *agent.Base
}

// NewSelectActions returns a SelectActions step agent wired to llmEngine.
func NewSelectActions(llmEngine llms.Client) *SelectActions {
	return &SelectActions{base: agent.Get(defaultSelectActionsAgentName, llmEngine, selectActionsSystemPrompt, selectActionsUserTemplate)}
}

// Select renders the current turn's prompt, calls the LLM with the tool
// catalogue attached, and returns the resulting pending Actions.
func (sa *SelectActions) Select(ctx context.Context, setting config.Setting, memory *fsm.Memory, registry *tools.Registry, state fsm.State, feedbacks []feedback.Item, counter *tokens.Counter) ([]fsm.Action, error) {
	convo, err := sa.base.PrepareContext(nil, map[string]string{
		"global_prompt":     setting.GlobalPrompt,
		"state_name":        state.Name,
		"state_instruction": state.Instruction,
		"feedback":          renderFeedback(feedbacks),
		"history":           memory.PrintHistory(setting.MaxHistoryLen),
	})
	if err != nil {
		return nil, err
	}

	var defs []llms.ToolDefinition
	for _, info := range registry.List() {
		defs = append(defs, llms.ToolDefinition{
			Name:        info.Name,
			Description: info.Description,
			Parameters:  info.ToDefinition(),
		})
	}

	resp, err := sa.base.LLM().AskTool(ctx, convo.ToWireFormat(), defs, llms.ToolChoiceAuto, llms.Options{Temperature: setting.LLM.Temperature, TopP: setting.LLM.TopP})
	if err != nil {
		return nil, err
	}
	counter.AddCall(resp.InputTokens, resp.OutputTokens)

	if len(resp.ToolCalls) == 0 {
		return []fsm.Action{{
			Name:      "send_message_to_user",
			Arguments: map[string]any{"agent_message": resp.Content},
		}}, nil
	}

	actions := make([]fsm.Action, 0, len(resp.ToolCalls))
	for _, call := range resp.ToolCalls {
		actions = append(actions, fsm.Action{Name: call.Name, Arguments: call.Arguments})
	}
	return actions, nil
}
