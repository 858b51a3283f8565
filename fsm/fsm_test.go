package fsm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNextAllowedStatesRespectsTransitions(t *testing.T) {
	sm := &StateMachine{
		States: map[string]State{
			"greet": {Name: "greet"},
			"help":  {Name: "help"},
			"close": {Name: "close"},
		},
		Transitions: map[string][]string{
			"greet": {"help"},
		},
	}

	require.ElementsMatch(t, []string{"help"}, sm.NextAllowedStates("greet"))
}

func TestNextAllowedStatesDefaultsToAllWhenUnconstrained(t *testing.T) {
	sm := &StateMachine{
		States: map[string]State{
			"greet": {Name: "greet"},
			"help":  {Name: "help"},
		},
	}

	require.ElementsMatch(t, []string{"greet", "help"}, sm.NextAllowedStates("greet"))
}

func TestMemoryPrintHistoryIncludesStatesAndActions(t *testing.T) {
	m := &Memory{}
	m.Append(Step{Timestamp: time.Unix(1, 0), StateName: "greet", UserMessage: "hi"})
	m.Append(Step{Timestamp: time.Unix(2, 0), StateName: "help", Actions: []Action{{Name: "search"}}})

	history := m.PrintHistory(0)
	require.Contains(t, history, "state=greet")
	require.Contains(t, history, "state=help")
	require.Contains(t, history, "action=search")
}

func TestMemoryPrintHistoryBoundsByMaxLen(t *testing.T) {
	m := &Memory{}
	m.Append(Step{Timestamp: time.Unix(1, 0), StateName: "greet"})
	m.Append(Step{Timestamp: time.Unix(2, 0), StateName: "help"})
	m.Append(Step{Timestamp: time.Unix(3, 0), StateName: "close"})

	history := m.PrintHistory(2)
	require.NotContains(t, history, "state=greet")
	require.Contains(t, history, "state=help")
	require.Contains(t, history, "state=close")
}

func TestMemoryLast(t *testing.T) {
	m := &Memory{}
	_, ok := m.Last()
	require.False(t, ok)

	m.Append(Step{StateName: "a"})
	last, ok := m.Last()
	require.True(t, ok)
	require.Equal(t, "a", last.StateName)
}
