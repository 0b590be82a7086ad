package gc

import (
	"slices"
	"sync"
	"time"
)

// Event is a single garbage collection occurrence delivered by a Source.
type Event struct {
	Kind     Kind
	Start    time.Time
	Duration time.Duration
}

// Handler receives events from a Source.
type Handler func(Event)

// Source delivers GC events to subscribers. Subscribe returns a function
// that removes the handler; calling it more than once is a no-op.
type Source interface {
	Subscribe(h Handler) (unsubscribe func())
}

// Feed is a push-based Source. Publish delivers an event synchronously to
// every current subscriber. Use it to bridge an external GC event stream
// or to drive the monitor in tests.
type Feed struct {
	mu            sync.Mutex
	nextID        int
	subscriptions []subscription
}

type subscription struct {
	id      int
	handler Handler
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{}
}

// Subscribe registers h.
func (f *Feed) Subscribe(h Handler) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subscriptions = append(f.subscriptions, subscription{id: id, handler: h})
	f.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.subscriptions = slices.DeleteFunc(f.subscriptions, func(s subscription) bool {
				return s.id == id
			})
		})
	}
}

// Publish delivers ev to all subscribers in registration order.
func (f *Feed) Publish(ev Event) {
	for _, h := range f.snapshot() {
		h(ev)
	}
}

// Subscribers returns the number of registered handlers.
func (f *Feed) Subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscriptions)
}

func (f *Feed) snapshot() []Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Handler, len(f.subscriptions))
	for i, s := range f.subscriptions {
		out[i] = s.handler
	}
	return out
}
