// Package stepagents implements the three LLM-backed decision points the
// Chat Step Loop calls into each turn: which state the agent is now in,
// what instruction to follow when no state machine constrains it, and
// which tool actions to take. Each is grounded on the corresponding
// agent in the pack's Python agent runtime, adapted onto agent.Base.
package stepagents

import (
	"context"
	"errors"
	"fmt"

	"github.com/kadirpekel/agentstep/agent"
	"github.com/kadirpekel/agentstep/config"
	"github.com/kadirpekel/agentstep/feedback"
	"github.com/kadirpekel/agentstep/fsm"
	"github.com/kadirpekel/agentstep/llms"
	"github.com/kadirpekel/agentstep/tokens"
)

const defaultStateSelectAgentName = "state_select_agent"

const stateSelectSystemPrompt = `You are a professional state selection agent.
Given the conversation history and the set of allowed next states, choose
exactly one state name from the allowed set that best matches where the
conversation should go next. Recent steps matter more than older ones.`

const stateSelectUserTemplate = `{{ global_prompt }}

Allowed next states: {{ allowed_states }}

Relevant past feedback:
{{ feedback }}

History of steps:
{{ history }}

Respond with a JSON object of the shape {"state_name": "<one of the allowed states>"}.`

// StateSelect picks the agent's next State from the set the StateMachine
// allows, grounded on the runtime's select_state: empty memory short-circuits
// to the initial state with zero LLM calls, and an invalid model selection
// is retried once before falling back to the current state.
type StateSelect struct {
	base *agent.Base
}

// NewStateSelect returns a StateSelect wired to llmEngine, reusing the
// per-name agent singleton if one already exists under this name.
func NewStateSelect(llmEngine llms.Client) *StateSelect {
	return &StateSelect{base: agent.Get(defaultStateSelectAgentName, llmEngine, stateSelectSystemPrompt, stateSelectUserTemplate)}
}

type stateSelectResponse struct {
	StateName string `json:"state_name"`
}

// Select returns the next state. currentStateName is the state the agent
// was in before this turn; it is also the fallback on repeated invalid
// selections.
func (s *StateSelect) Select(ctx context.Context, setting config.Setting, sm *fsm.StateMachine, memory *fsm.Memory, currentStateName string, feedbacks []feedback.Item, counter *tokens.Counter) (fsm.State, error) {
	if len(memory.Steps) == 0 {
		initial, ok := sm.Get(sm.InitialStateName)
		if !ok {
			return fsm.State{Name: sm.InitialStateName}, nil
		}
		return initial, nil
	}

	allowed := sm.NextAllowedStates(currentStateName)

	var invalid *fsm.InvalidStateSelectionError
	state, err := s.askOnce(ctx, setting, sm, memory, currentStateName, allowed, feedbacks, counter)
	if !errors.As(err, &invalid) {
		return state, err
	}

	state, err = s.askOnce(ctx, setting, sm, memory, currentStateName, allowed, feedbacks, counter)
	if !errors.As(err, &invalid) {
		return state, err
	}

	fallback, ok := sm.Get(currentStateName)
	if !ok {
		fallback = fsm.State{Name: currentStateName}
	}
	return fallback, nil
}

func (s *StateSelect) askOnce(ctx context.Context, setting config.Setting, sm *fsm.StateMachine, memory *fsm.Memory, currentStateName string, allowed []string, feedbacks []feedback.Item, counter *tokens.Counter) (fsm.State, error) {
	convo, err := s.base.PrepareContext(nil, map[string]string{
		"global_prompt":  setting.GlobalPrompt,
		"allowed_states": fmt.Sprintf("%v", allowed),
		"feedback":       renderFeedback(feedbacks),
		"history":        memory.PrintHistory(setting.MaxHistoryLen),
	})
	if err != nil {
		return fsm.State{}, err
	}

	var parsed stateSelectResponse
	schema := &llms.Schema{Name: "state_selection", Target: &parsed}
	usage, err := s.base.LLM().StructuredOutput(ctx, convo.ToWireFormat(), schema, llms.Options{Temperature: setting.LLM.Temperature, TopP: setting.LLM.TopP})
	if err != nil {
		return fsm.State{}, err
	}
	counter.AddCall(usage.InputTokens, usage.OutputTokens)

	if !containsName(allowed, parsed.StateName) {
		return fsm.State{}, &fsm.InvalidStateSelectionError{From: currentStateName, Requested: parsed.StateName}
	}
	if full, ok := sm.Get(parsed.StateName); ok {
		return full, nil
	}
	return fsm.State{Name: parsed.StateName}, nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func renderFeedback(items []feedback.Item) string {
	if len(items) == 0 {
		return "(none)"
	}
	var out string
	for _, item := range items {
		out += fmt.Sprintf("- observation=%s action=%s state=%s -> %s\n", item.ObservationName, item.ActionName, item.StateName, item.ActionContent)
	}
	return out
}
