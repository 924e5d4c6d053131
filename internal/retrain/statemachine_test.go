package retrain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine()
	state, _ := m.Current()
	assert.Equal(t, StateIdle, state)

	for _, next := range []State{StateCollecting, StateTraining, StateEvaluating, StatePromoted, StateIdle} {
		require.NoError(t, m.Transition(next))
		state, _ = m.Current()
		assert.Equal(t, next, state)
	}
}

func TestMachineRejectionPath(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(StateCollecting))
	require.NoError(t, m.Transition(StateTraining))
	require.NoError(t, m.Transition(StateRejected))
	require.NoError(t, m.Transition(StateIdle))
}

func TestMachineIllegalTransitions(t *testing.T) {
	tests := []struct {
		name string
		path []State
		bad  State
	}{
		{"idle to training", nil, StateTraining},
		{"idle to promoted", nil, StatePromoted},
		{"collecting to promoted", []State{StateCollecting}, StatePromoted},
		{"collecting backwards", []State{StateCollecting}, StateIdle},
		{"promoted to training", []State{StateCollecting, StateTraining, StateEvaluating, StatePromoted}, StateTraining},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			for _, s := range tt.path {
				require.NoError(t, m.Transition(s))
			}
			assert.Error(t, m.Transition(tt.bad))
		})
	}
}

func TestMustIdleResetsFromAnywhere(t *testing.T) {
	m := NewMachine()
	require.NoError(t, m.Transition(StateCollecting))
	require.NoError(t, m.Transition(StateTraining))

	m.mustIdle()
	state, _ := m.Current()
	assert.Equal(t, StateIdle, state)
}
