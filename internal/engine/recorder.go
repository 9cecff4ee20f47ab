package engine

import (
	"context"

	"github.com/seantiz/athenamock/internal/model"
)

// journalBufferSize bounds the transitions waiting to be journaled.
// Transitions are dropped when the recorder falls this far behind.
const journalBufferSize = 1024

// enqueue hands a transition to the recorder without blocking the advancer.
func (e *Engine) enqueue(tr model.Transition) {
	if e.journal == nil {
		return
	}

	select {
	case <-e.stop:
		return
	default:
	}

	select {
	case e.events <- tr:
	default:
		journalDroppedTotal.Inc()
		e.logger.Warn("journal backlog full, dropping transition",
			"query_execution_id", tr.ExecutionID,
			"to", tr.To,
		)
	}
}

// record persists queued transitions until Close, then drains the backlog.
func (e *Engine) record() {
	defer close(e.recorderDone)

	for {
		select {
		case tr := <-e.events:
			e.persist(tr)
		case <-e.stop:
			for {
				select {
				case tr := <-e.events:
					e.persist(tr)
				default:
					return
				}
			}
		}
	}
}

func (e *Engine) persist(tr model.Transition) {
	if err := e.journal.RecordTransition(context.Background(), &tr); err != nil {
		e.logger.Error("failed to journal transition",
			"query_execution_id", tr.ExecutionID,
			"to", tr.To,
			"error", err,
		)
	}
}
