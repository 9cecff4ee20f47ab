package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/seantiz/athenamock/internal/model"
)

var (
	activeExecutions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "athenamock_active_executions",
			Help: "Number of query executions that have not reached a terminal state.",
		},
	)

	stateTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "athenamock_state_transitions_total",
			Help: "Total number of published query execution state transitions, by target state.",
		},
		[]string{"state"},
	)

	journalDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "athenamock_journal_dropped_total",
			Help: "Transitions not journaled because the recorder backlog was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(activeExecutions)
	prometheus.MustRegister(stateTransitionsTotal)
	prometheus.MustRegister(journalDroppedTotal)

	// Pre-initialize label values so every state appears in /metrics from startup.
	for _, s := range model.States {
		stateTransitionsTotal.WithLabelValues(string(s))
	}
}
