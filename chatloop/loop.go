// Package chatloop implements the Chat Step Loop: the per-turn control flow
// that ingests a user message, lets the Step Agents decide where the
// conversation goes and what to do, executes the resulting actions, and
// persists the outcome to Memory. Grounded on the pack's agent execution
// loop shape, adapted to the runtime's FSM-driven turn contract.
package chatloop

import (
	"context"
	"errors"
	"time"

	"github.com/kadirpekel/agentstep/config"
	"github.com/kadirpekel/agentstep/embedder"
	"github.com/kadirpekel/agentstep/feedback"
	"github.com/kadirpekel/agentstep/fsm"
	"github.com/kadirpekel/agentstep/llms"
	"github.com/kadirpekel/agentstep/stepagents"
	"github.com/kadirpekel/agentstep/tokens"
	"github.com/kadirpekel/agentstep/tools"
)

// ResultType classifies how a turn ended, per the error-handling design's
// user-visible outcomes.
type ResultType string

const (
	ResultSuccess   ResultType = "Success"
	ResultCancelled ResultType = "Cancelled"
	ResultError     ResultType = "Error"
)

// TurnResult is what Turn returns to the caller.
type TurnResult struct {
	ResultType ResultType
	Response   string
	Message    string
}

// Input bundles the per-turn knobs a caller supplies alongside the
// conversation's persistent Memory/StateMachine. A FeedbackTopK of zero
// disables recall for the turn: SelectActions runs with no exemplars.
// RequestTools are registered on top of the loop's base registry for this
// turn only; a name collision fails the turn before any LLM call.
type Input struct {
	UserMessage           string
	RecallLastUserMessage bool
	EditedLastResponse    *string
	FeedbackTopK          int
	RequestTools          []tools.Tool
}

// Loop is the wired Chat Step Loop: one instance per agent process, shared
// across every conversation it serves.
type Loop struct {
	stateSelect   *stepagents.StateSelect
	newState      *stepagents.NewState
	selectActions *stepagents.SelectActions
	registry      *tools.Registry
	store         feedback.Store
	embed         embedder.Client
	counter       *tokens.Counter
}

// New wires a Loop from its component dependencies.
func New(llmEngine llms.Client, registry *tools.Registry, store feedback.Store, embed embedder.Client, counter *tokens.Counter) *Loop {
	return &Loop{
		stateSelect:   stepagents.NewStateSelect(llmEngine),
		newState:      stepagents.NewNewState(llmEngine),
		selectActions: stepagents.NewSelectActions(llmEngine),
		registry:      registry,
		store:         store,
		embed:         embed,
		counter:       counter,
	}
}

// Turn runs one turn of the control loop against memory, mutating it in
// place on success and leaving it untouched on cancellation or error.
func (l *Loop) Turn(ctx context.Context, setting config.Setting, sm *fsm.StateMachine, memory *fsm.Memory, in Input) (TurnResult, error) {
	// Duplicate-tool guard: per-request tools join the base registry here,
	// so a duplicate name fails the turn before memory is touched or any
	// LLM call is made.
	registry, err := l.registry.WithTools(in.RequestTools)
	if err != nil {
		return TurnResult{ResultType: ResultError, Message: err.Error()}, err
	}

	// Step 1: memory-initialize. An empty conversation gets its bootstrap
	// greeting and nothing else happens this turn — no state selection, no
	// LLM call beyond none at all.
	if len(memory.Steps) == 0 {
		greeting := setting.GlobalPrompt
		step := fsm.Step{
			Timestamp: time.Now(),
			StateName: sm.InitialStateName,
			Actions: []fsm.Action{{
				Name:      "send_message_to_user",
				Arguments: map[string]any{"agent_message": greeting},
				Result:    map[string]any{"user_message": ""},
			}},
		}
		memory.Append(step)
		return TurnResult{ResultType: ResultSuccess, Response: greeting}, nil
	}

	// Step 2: ingest.
	observation := in.UserMessage
	committed := false
	switch {
	case in.RecallLastUserMessage:
		if last, ok := memory.Last(); ok && last.UserMessage != "" {
			original := memory.Steps
			memory.Steps = memory.Steps[:len(memory.Steps)-1]
			defer func() {
				if !committed {
					memory.Steps = original
				}
			}()
		}
	case in.EditedLastResponse != nil:
		if idx := lastSendMessageIndex(memory); idx >= 0 {
			memory.Steps[len(memory.Steps)-1].Actions[idx].Arguments["agent_message"] = *in.EditedLastResponse
		}
		return TurnResult{ResultType: ResultSuccess, Response: *in.EditedLastResponse}, nil
	}

	currentStateName := sm.InitialStateName
	if last, ok := memory.Last(); ok {
		currentStateName = last.StateName
	}

	// Step 3: select state.
	var state fsm.State
	if sm.IsEmpty() {
		state, err = l.newState.Generate(ctx, setting, memory, l.counter)
	} else {
		state, err = l.stateSelect.Select(ctx, setting, sm, memory, currentStateName, nil, l.counter)
	}
	if err != nil {
		return errorResult(ctx, err)
	}

	// Step 4: recall feedback.
	feedbacks, err := l.recallFeedback(ctx, setting, observation, in.FeedbackTopK)
	if err != nil {
		return errorResult(ctx, err)
	}

	// Step 5: select actions.
	actions, err := l.selectActions.Select(ctx, setting, memory, registry, state, feedbacks, l.counter)
	if err != nil {
		return errorResult(ctx, err)
	}

	// Step 6: execute, stopping once send_message_to_user runs.
	executed := make([]fsm.Action, 0, len(actions))
	var response string
	for _, action := range actions {
		result, execErr := registry.Execute(ctx, action.Name, action.Arguments)
		if execErr != nil {
			var toolErr *tools.ToolExecutionError
			if errors.As(execErr, &toolErr) && ctx.Err() != nil {
				return TurnResult{ResultType: ResultCancelled}, ctx.Err()
			}
			action.Result = map[string]any{"error": execErr.Error()}
		} else {
			action.Result = resultToMap(result)
		}
		executed = append(executed, action)

		if action.Name == "send_message_to_user" {
			if msg, ok := action.Arguments["agent_message"].(string); ok {
				response = msg
			}
			break
		}
	}

	if ctx.Err() != nil {
		return TurnResult{ResultType: ResultCancelled}, ctx.Err()
	}

	// Step 7: persist step.
	memory.Append(fsm.Step{
		Timestamp:   time.Now(),
		StateName:   state.Name,
		Actions:     executed,
		UserMessage: in.UserMessage,
	})
	committed = true

	// Step 8: return.
	return TurnResult{ResultType: ResultSuccess, Response: response}, nil
}

func lastSendMessageIndex(memory *fsm.Memory) int {
	last, ok := memory.Last()
	if !ok {
		return -1
	}
	for i := len(last.Actions) - 1; i >= 0; i-- {
		if last.Actions[i].Name == "send_message_to_user" {
			return i
		}
	}
	return -1
}

func resultToMap(result tools.Result) map[string]any {
	if result.Error != "" {
		return map[string]any{"error": result.Error}
	}
	if result.Output != nil {
		return result.Output
	}
	return map[string]any{"content": result.Content}
}

func (l *Loop) recallFeedback(ctx context.Context, setting config.Setting, observation string, topK int) ([]feedback.Item, error) {
	if topK <= 0 {
		return nil, nil
	}
	if l.store == nil || l.embed == nil || observation == "" {
		return nil, nil
	}
	vector, err := l.embed.EmbedText(ctx, observation)
	if err != nil {
		return nil, err
	}
	matches, err := l.store.QueryByVector(ctx, setting.AgentName, vector, topK)
	if err != nil {
		return nil, err
	}
	deduped := feedback.Dedup(matches)
	items := make([]feedback.Item, 0, len(deduped))
	for _, m := range deduped {
		items = append(items, m.Item)
	}
	return items, nil
}

func errorResult(ctx context.Context, err error) (TurnResult, error) {
	if ctx.Err() != nil {
		return TurnResult{ResultType: ResultCancelled}, ctx.Err()
	}
	return TurnResult{ResultType: ResultError, Message: err.Error()}, err
}
