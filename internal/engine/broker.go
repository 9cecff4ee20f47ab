package engine

import (
	"sync"

	"github.com/seantiz/athenamock/internal/model"
)

// subscriberBufferSize is the channel buffer for each event subscriber.
// An execution publishes at most three transitions, so a subscriber only
// misses events if it stops reading entirely.
const subscriberBufferSize = 8

// EventBroker fans out per-execution state transitions to subscribers.
// It is safe for concurrent use.
//
// Closed topics are retained as markers so that late subscribers (those
// subscribing after an execution finished) receive a closed channel instead of
// blocking forever.
type EventBroker struct {
	mu     sync.Mutex
	topics map[string]*eventTopic
}

type eventTopic struct {
	subs   map[int]chan model.Transition
	nextID int
	closed bool
}

// NewEventBroker creates a new event broker.
func NewEventBroker() *EventBroker {
	return &EventBroker{
		topics: make(map[string]*eventTopic),
	}
}

// Subscribe returns a channel that receives transitions for the given
// execution and an unsubscribe function. If the execution has already
// finished, the returned channel is immediately closed.
func (b *EventBroker) Subscribe(executionID string) (<-chan model.Transition, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[executionID]
	if !ok {
		t = &eventTopic{subs: make(map[int]chan model.Transition)}
		b.topics[executionID] = t
	}

	ch := make(chan model.Transition, subscriberBufferSize)
	if t.closed {
		close(ch)
		return ch, func() {}
	}

	id := t.nextID
	t.nextID++
	t.subs[id] = ch

	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(t.subs, id)
	}
}

// Publish sends a transition to all subscribers of the given execution.
// Events are dropped for subscribers whose buffers are full.
func (b *EventBroker) Publish(executionID string, tr model.Transition) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[executionID]
	if !ok || t.closed {
		return
	}

	for _, ch := range t.subs {
		select {
		case ch <- tr:
		default:
		}
	}
}

// Close signals that no more transitions will be published for the given
// execution. All subscriber channels are closed and future Subscribe calls
// return a closed channel.
func (b *EventBroker) Close(executionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[executionID]
	if !ok {
		b.topics[executionID] = &eventTopic{subs: make(map[int]chan model.Transition), closed: true}
		return
	}

	t.closed = true
	for id, ch := range t.subs {
		close(ch)
		delete(t.subs, id)
	}
}
