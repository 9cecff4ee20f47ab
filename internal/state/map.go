package state

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/seantiz/athenamock/internal/model"
)

// ErrInvalidTransition is returned when a write would skip, repeat or reverse
// a lifecycle step.
var ErrInvalidTransition = errors.New("invalid state transition")

// Reader is the read-only view of execution states used by request handlers.
type Reader interface {
	// Get returns the most recently published state for id.
	Get(id string) (model.State, bool)
	// List returns all published execution ids, newest first.
	List() []string
}

// Writer is the write path used by lifecycle advancers.
type Writer interface {
	// Write replaces the pending state for id, creating the record if needed.
	Write(id string, s model.State) error
	// Publish makes every write since the last publish visible to readers.
	Publish()
}

// Compile-time interface satisfaction checks.
var (
	_ Reader = (*Map)(nil)
	_ Writer = (*Map)(nil)
)

// snapshot is an immutable published view. order lists ids by creation; later
// snapshots may share its backing array but never modify indices below len.
type snapshot struct {
	states map[string]model.State
	order  []string
}

// Map is a concurrent execution-id to state map with an explicit publish step.
type Map struct {
	published atomic.Pointer[snapshot]

	mu           sync.Mutex
	pending      map[string]model.State
	pendingOrder []string
}

// New creates an empty map.
func New() *Map {
	m := &Map{pending: make(map[string]model.State)}
	m.published.Store(&snapshot{states: make(map[string]model.State)})
	return m
}

// Get returns the published state for id. It never blocks.
func (m *Map) Get(id string) (model.State, bool) {
	s, ok := m.published.Load().states[id]
	return s, ok
}

// List returns the published execution ids, most recently created first.
func (m *Map) List() []string {
	order := m.published.Load().order
	ids := make([]string, len(order))
	for i, id := range order {
		ids[len(order)-1-i] = id
	}
	return ids
}

// Len returns the number of published executions.
func (m *Map) Len() int {
	return len(m.published.Load().order)
}

// Write stages s as the new state for id. The change is invisible to readers
// until Publish. Writes are validated against the latest staged or published
// state so that a record only ever moves one step forward.
func (m *Map) Write(id string, s model.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prev, exists := m.pending[id]
	if !exists {
		prev, exists = m.published.Load().states[id]
	}

	if !model.ValidTransition(prev, exists, s) {
		return fmt.Errorf("%w: %s %q -> %q", ErrInvalidTransition, id, prev, s)
	}

	if !exists {
		m.pendingOrder = append(m.pendingOrder, id)
	}
	m.pending[id] = s
	return nil
}

// Publish atomically replaces the readers' snapshot with one that includes all
// staged writes. It is a no-op when nothing is staged.
func (m *Map) Publish() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.pending) == 0 {
		return
	}

	old := m.published.Load()
	states := make(map[string]model.State, len(old.states)+len(m.pendingOrder))
	for id, s := range old.states {
		states[id] = s
	}
	for id, s := range m.pending {
		states[id] = s
	}

	next := &snapshot{
		states: states,
		order:  append(old.order, m.pendingOrder...),
	}
	m.published.Store(next)

	clear(m.pending)
	m.pendingOrder = m.pendingOrder[:0]
}
