package retrain

import (
	"fmt"
	"sync"
	"time"
)

// State is one phase of the retraining cycle.
type State string

const (
	StateIdle       State = "IDLE"
	StateCollecting State = "COLLECTING"
	StateTraining   State = "TRAINING"
	StateEvaluating State = "EVALUATING"
	StatePromoted   State = "PROMOTED"
	StateRejected   State = "REJECTED"
)

// transitions is the legal edge set. Terminal states only lead back to IDLE:
// a failed or rejected run is normal operation, never fatal to the scheduler.
var transitions = map[State][]State{
	StateIdle:       {StateCollecting},
	StateCollecting: {StateTraining, StateRejected},
	StateTraining:   {StateEvaluating, StateRejected},
	StateEvaluating: {StatePromoted, StateRejected},
	StatePromoted:   {StateIdle},
	StateRejected:   {StateIdle},
}

// Machine tracks the retraining cycle state with enforced transitions.
// ⭐ SSOT: 재학습 상태 전이는 여기서만
type Machine struct {
	mu        sync.RWMutex
	state     State
	changedAt time.Time
}

// NewMachine starts in IDLE.
func NewMachine() *Machine {
	return &Machine{state: StateIdle, changedAt: time.Now().UTC()}
}

// Current returns the current state and when it was entered.
func (m *Machine) Current() (State, time.Time) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state, m.changedAt
}

// Transition moves to the next state, failing on an illegal edge.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, allowed := range transitions[m.state] {
		if allowed == to {
			m.state = to
			m.changedAt = time.Now().UTC()
			return nil
		}
	}
	return fmt.Errorf("retrain: illegal transition %s -> %s", m.state, to)
}

// mustIdle resets to IDLE from a terminal state. Called at cycle end.
func (m *Machine) mustIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = StateIdle
	m.changedAt = time.Now().UTC()
}
