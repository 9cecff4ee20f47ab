package model

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/athena/types"
)

// State is the lifecycle state of a query execution. Values use the Athena
// status vocabulary so they can be written to the wire unchanged.
type State string

// Query execution states, in progression order.
const (
	StateQueued    = State(types.QueryExecutionStateQueued)
	StateRunning   = State(types.QueryExecutionStateRunning)
	StateSucceeded = State(types.QueryExecutionStateSucceeded)
)

// States lists every state an execution can be in.
var States = []State{StateQueued, StateRunning, StateSucceeded}

// nextState maps each non-terminal state to its successor.
var nextState = map[State]State{
	StateQueued:  StateRunning,
	StateRunning: StateSucceeded,
}

// Next decides the advancement for an execution whose current record is
// current (exists reports whether any record was found). It returns the state
// to write, or done=true when the execution is terminal and nothing should be
// written.
func Next(current State, exists bool) (next State, done bool) {
	if !exists {
		return StateQueued, false
	}
	next, ok := nextState[current]
	if !ok {
		return "", true
	}
	return next, false
}

// ValidTransition reports whether a record may move from one state to another.
// from is ignored when exists is false: a new record must start queued.
func ValidTransition(from State, exists bool, to State) bool {
	if !exists {
		return to == StateQueued
	}
	return nextState[from] == to
}

// Terminal reports whether s is a final state.
func (s State) Terminal() bool {
	return s == StateSucceeded
}

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	for _, known := range States {
		if s == known {
			return true
		}
	}
	return false
}

// Transition records a single published state change of one execution.
type Transition struct {
	ID          string    `json:"id"`
	ExecutionID string    `json:"execution_id"`
	From        State     `json:"from,omitempty"`
	To          State     `json:"to"`
	Tick        int       `json:"tick"`
	CreatedAt   time.Time `json:"created_at"`
}
