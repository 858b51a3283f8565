// Package fsm models the agent's explicit state machine: named States with
// allowed-transition sets, and the running Memory of Steps the loop has
// taken so far.
package fsm

import (
	"fmt"
	"strings"
	"time"
)

// State is one node in a StateMachine: a name, a human-readable scenario
// description, and the instruction text handed to the assistant while the
// agent is in this state.
type State struct {
	Name        string
	Scenario    string
	Instruction string
}

// StateMachine is a predefined set of States plus the transitions allowed
// out of each one. A nil or missing entry in Transitions means "any state
// is reachable from here."
type StateMachine struct {
	InitialStateName string
	States           map[string]State
	Transitions      map[string][]string
}

// IsEmpty reports whether the StateMachine defines no states, the signal
// the Chat Step Loop uses to route to NewState instead of StateSelect.
func (sm *StateMachine) IsEmpty() bool {
	return sm == nil || len(sm.States) == 0
}

// InvalidStateSelectionError is raised when a Step Agent selects a state
// name the StateMachine does not recognize, or one outside the allowed
// transition set from the current state.
type InvalidStateSelectionError struct {
	From      string
	Requested string
}

func (e *InvalidStateSelectionError) Error() string {
	return fmt.Sprintf("fsm: state %q is not reachable from %q", e.Requested, e.From)
}

// NextAllowedStates returns the set of state names reachable from "from".
// An empty or absent transition entry means every defined state is allowed.
func (sm *StateMachine) NextAllowedStates(from string) []string {
	if allowed, ok := sm.Transitions[from]; ok && len(allowed) > 0 {
		return allowed
	}
	all := make([]string, 0, len(sm.States))
	for name := range sm.States {
		all = append(all, name)
	}
	return all
}

// Get looks up a State by name.
func (sm *StateMachine) Get(name string) (State, bool) {
	s, ok := sm.States[name]
	return s, ok
}

// Action is one tool invocation taken (or proposed) during a Step.
type Action struct {
	Name      string
	Arguments map[string]any
	Result    map[string]any
}

// Step is one turn of the control loop: the state the agent was in, the
// actions it took, and any user message or feedback attached to that turn.
type Step struct {
	Timestamp   time.Time
	StateName   string
	Actions     []Action
	UserMessage string
	Feedback    string
}

// Memory is the ordered history of Steps taken so far in a conversation.
type Memory struct {
	Steps []Step
}

// Append records a new Step.
func (m *Memory) Append(step Step) {
	m.Steps = append(m.Steps, step)
}

// PrintHistory renders the most recent maxLen steps as the text block Step
// Agents embed into their prompts: one line per step, most recent last,
// each carrying its timestamp so recency can be weighed explicitly. A
// non-positive maxLen renders the full history.
func (m *Memory) PrintHistory(maxLen int) string {
	steps := m.Steps
	if maxLen > 0 && len(steps) > maxLen {
		steps = steps[len(steps)-maxLen:]
	}

	var b strings.Builder
	for i, step := range steps {
		fmt.Fprintf(&b, "[%s] step %d state=%s", step.Timestamp.Format(time.RFC3339), i, step.StateName)
		if step.UserMessage != "" {
			fmt.Fprintf(&b, " user_message=%q", step.UserMessage)
		}
		for _, a := range step.Actions {
			fmt.Fprintf(&b, " action=%s", a.Name)
		}
		if step.Feedback != "" {
			fmt.Fprintf(&b, " feedback=%q", step.Feedback)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// Last returns the most recent Step, if any.
func (m *Memory) Last() (Step, bool) {
	if len(m.Steps) == 0 {
		return Step{}, false
	}
	return m.Steps[len(m.Steps)-1], true
}
