package stepagents

import (
	"context"

	"github.com/kadirpekel/agentstep/agent"
	"github.com/kadirpekel/agentstep/config"
	"github.com/kadirpekel/agentstep/fsm"
	"github.com/kadirpekel/agentstep/llms"
	"github.com/kadirpekel/agentstep/tokens"
)

const defaultNewStateAgentName = "new_state_agent"

const newStateSystemPrompt = `You are a professional state creation agent.
Your task is to analyze the conversation history and generate appropriate
instructions for the next action when no predefined state machine exists.
Focus on the user's intent and provide clear, actionable guidance for the
assistant's next response. The recent actions are more important than
previous actions.`

const newStateUserTemplate = `You are a professional agent following the instruction below:
{{ global_prompt }}

The recent actions are more important than previous actions. Each step
includes a timestamp and may contain a user_message; weigh recency
accordingly.

History of steps:
{{ history }}

Now generate the assistant's instruction for the next action. Provide
clear, specific guidance that will help the assistant respond appropriately
to the user's needs.`

// NewState dynamically produces a State's instruction when the agent has no
// predefined StateMachine, grounded on the runtime's NewStateAgent. It
// never accumulates history across calls: every Generate starts from a
// fresh context.
type NewState struct {
	base *agent.Base
}

// NewNewState returns a NewState step agent wired to llmEngine.
func NewNewState(llmEngine llms.Client) *NewState {
	return &NewState{base: agent.Get(defaultNewStateAgentName, llmEngine, newStateSystemPrompt, newStateUserTemplate)}
}

// Generate produces a fresh State with an empty name and scenario but a
// populated instruction derived from the conversation history.
func (n *NewState) Generate(ctx context.Context, setting config.Setting, memory *fsm.Memory, counter *tokens.Counter) (fsm.State, error) {
	convo, err := n.base.PrepareContext(nil, map[string]string{
		"global_prompt": setting.GlobalPrompt,
		"history":       memory.PrintHistory(setting.MaxHistoryLen),
	})
	if err != nil {
		return fsm.State{}, err
	}

	resp, err := n.base.LLM().Ask(ctx, convo.ToWireFormat(), llms.Options{Temperature: setting.LLM.Temperature, TopP: setting.LLM.TopP})
	if err != nil {
		return fsm.State{}, err
	}
	counter.AddCall(resp.InputTokens, resp.OutputTokens)

	return fsm.State{Instruction: resp.Content}, nil
}
