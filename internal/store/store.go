package store

import (
	"context"
	"errors"

	"github.com/seantiz/athenamock/internal/model"
)

// ErrNotFound is returned when no transitions are recorded for an execution.
var ErrNotFound = errors.New("execution not found")

// Stats holds aggregate lifecycle statistics derived from the journal.
type Stats struct {
	Total           int                 `json:"total"`
	CountByState    map[model.State]int `json:"count_by_state"`
	AvgCompletionMS float64             `json:"avg_completion_ms"`
}

// Store is the append-only journal of published state transitions.
type Store interface {
	RecordTransition(ctx context.Context, tr *model.Transition) error
	ListTransitions(ctx context.Context, executionID string) ([]model.Transition, error)
	GetStats(ctx context.Context) (*Stats, error)
	Close() error
}
