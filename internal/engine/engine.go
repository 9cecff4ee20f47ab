package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/seantiz/athenamock/internal/model"
	"github.com/seantiz/athenamock/internal/state"
	"github.com/seantiz/athenamock/internal/store"
)

// DefaultInterval is the tick interval used when none is configured.
const DefaultInterval = 5 * time.Second

// ErrAlreadyStarted is returned when an execution id already has an advancer
// or a record.
var ErrAlreadyStarted = errors.New("execution already started")

// StateStore is the state map as seen by advancers: they read their own
// record and own its write path.
type StateStore interface {
	state.Reader
	state.Writer
}

// Ticker delivers advancement ticks.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()                { t.t.Stop() }

func newTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Option configures an Engine.
type Option func(*Engine)

// WithTicker replaces the wall-clock ticker used by advancers.
func WithTicker(newTicker func(time.Duration) Ticker) Option {
	return func(e *Engine) {
		e.newTicker = newTicker
	}
}

// Engine spawns and tracks lifecycle advancers.
type Engine struct {
	states    StateStore
	journal   store.Store
	interval  time.Duration
	logger    *slog.Logger
	newTicker func(time.Duration) Ticker
	active    *xsync.MapOf[string, time.Time]
	broker    *EventBroker
	wg        sync.WaitGroup

	events       chan model.Transition
	stop         chan struct{}
	recorderDone chan struct{}
	closeOnce    sync.Once
}

// NewEngine creates an engine that advances executions in states once per
// interval. journal may be nil, in which case transitions are not recorded.
func NewEngine(states StateStore, journal store.Store, interval time.Duration, logger *slog.Logger, opts ...Option) *Engine {
	if interval <= 0 {
		interval = DefaultInterval
	}

	e := &Engine{
		states:       states,
		journal:      journal,
		interval:     interval,
		logger:       logger,
		newTicker:    newTimeTicker,
		active:       xsync.NewMapOf[string, time.Time](),
		broker:       NewEventBroker(),
		events:       make(chan model.Transition, journalBufferSize),
		stop:         make(chan struct{}),
		recorderDone: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	if journal != nil {
		go e.record()
	} else {
		close(e.recorderDone)
	}

	return e
}

// Broker returns the engine's transition broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Interval returns the tick interval shared by all advancers.
func (e *Engine) Interval() time.Duration {
	return e.interval
}

// Active returns the number of executions whose advancer is still running.
func (e *Engine) Active() int {
	return e.active.Size()
}

// Start launches the advancer for id and returns without waiting for any
// state change. Exactly one advancer ever runs per id.
func (e *Engine) Start(id string) error {
	if _, exists := e.states.Get(id); exists {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, id)
	}
	if _, loaded := e.active.LoadOrStore(id, time.Now()); loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyStarted, id)
	}

	activeExecutions.Inc()
	e.wg.Go(func() {
		e.advance(id)
	})

	return nil
}

// Wait blocks until every advancer has reached its terminal state.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Close stops the journal recorder after draining queued transitions.
// Advancers are not cancelled; transitions published after Close are not
// journaled.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.stop)
	})
	<-e.recorderDone
}

// advance runs the lifecycle of one execution: each iteration reads the
// published state, writes and publishes its successor, then waits one tick.
// Reading the terminal state ends the loop without a write.
func (e *Engine) advance(id string) {
	defer func() {
		e.active.Delete(id)
		activeExecutions.Dec()
		e.broker.Close(id)
	}()

	ticker := e.newTicker(e.interval)
	defer ticker.Stop()

	for tick := 0; ; tick++ {
		current, exists := e.states.Get(id)
		next, done := model.Next(current, exists)
		if done {
			e.logger.Debug("execution finished", "query_execution_id", id, "ticks", tick)
			return
		}

		if err := e.states.Write(id, next); err != nil {
			e.logger.Error("failed to advance execution",
				"query_execution_id", id,
				"from", current,
				"to", next,
				"error", err,
			)
			return
		}
		e.states.Publish()

		stateTransitionsTotal.WithLabelValues(string(next)).Inc()
		e.logger.Debug("execution advanced", "query_execution_id", id, "from", current, "to", next, "tick", tick)

		tr := model.Transition{
			ExecutionID: id,
			From:        current,
			To:          next,
			Tick:        tick,
			CreatedAt:   time.Now().UTC(),
		}
		e.broker.Publish(id, tr)
		e.enqueue(tr)

		<-ticker.C()
	}
}
