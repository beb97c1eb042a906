package broadcast

import (
	"log/slog"
	"sync"
)

// DefaultBufferSize is the per-subscriber buffer for live events. A
// subscriber whose buffer fills is lagging and gets disconnected rather
// than delaying the publisher or its peers.
const DefaultBufferSize = 256

// Subscription is one attached subscriber. Events arrive in publish
// order, starting with a replay of the topic's retained log, with no gaps
// or duplicates. The channel closes at end-of-stream: topic close,
// removal, or lagging disconnect.
type Subscription struct {
	Events <-chan Event

	topic *topic
	sub   *subscriber
}

// Close detaches the subscriber. Safe to call more than once.
func (s *Subscription) Close() {
	if s.topic != nil {
		s.topic.remove(s.sub)
	}
}

type subscriber struct {
	ch     chan Event
	closed bool
}

// topic holds the event log and subscriber set for one debate. All access
// is serialized by its own lock; publishers never share locks with the
// store.
type topic struct {
	mu     sync.Mutex
	id     string
	log    []Event
	subs   map[*subscriber]struct{}
	closed bool
}

func (t *topic) publish(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.log = append(t.log, ev)

	for sub := range t.subs {
		select {
		case sub.ch <- ev:
		default:
			// Lagging subscriber: drop it, keep everyone else moving.
			slog.Warn("Disconnecting lagging subscriber",
				"debate_id", t.id,
				"buffered", len(sub.ch),
			)
			t.dropLocked(sub)
		}
	}
}

func (t *topic) subscribe(bufferSize int) *Subscription {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Capacity covers the catch-up replay plus a bounded live buffer, so
	// the replay itself can never mark a fresh subscriber as lagging.
	ch := make(chan Event, len(t.log)+bufferSize)
	for _, ev := range t.log {
		ch <- ev
	}

	sub := &subscriber{ch: ch}
	if t.closed {
		close(ch)
		sub.closed = true
		return &Subscription{Events: ch, topic: t, sub: sub}
	}

	t.subs[sub] = struct{}{}
	return &Subscription{Events: ch, topic: t, sub: sub}
}

func (t *topic) remove(sub *subscriber) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dropLocked(sub)
}

func (t *topic) dropLocked(sub *subscriber) {
	if _, ok := t.subs[sub]; ok {
		delete(t.subs, sub)
	}
	if !sub.closed {
		close(sub.ch)
		sub.closed = true
	}
}

// close seals the topic: the log is retained for late subscribers, every
// attached subscriber sees end-of-stream after draining its buffer.
func (t *topic) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true
	for sub := range t.subs {
		t.dropLocked(sub)
	}
}

// Broadcaster fans debate events out to subscribers, one independent
// topic per debate. Events for a single debate are delivered in publish
// order; there is no cross-debate ordering.
type Broadcaster struct {
	mu         sync.RWMutex
	topics     map[string]*topic
	bufferSize int
}

// New creates a broadcaster with the default subscriber buffer size.
func New() *Broadcaster {
	return NewWithBufferSize(DefaultBufferSize)
}

// NewWithBufferSize creates a broadcaster with a custom per-subscriber
// buffer, mainly for tests.
func NewWithBufferSize(bufferSize int) *Broadcaster {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Broadcaster{
		topics:     make(map[string]*topic),
		bufferSize: bufferSize,
	}
}

// Publish appends the event to the debate's log and delivers it to every
// active subscriber without blocking on any of them.
func (b *Broadcaster) Publish(eventType EventType, debateID string, payload map[string]any) {
	b.ensureTopic(debateID).publish(NewEvent(eventType, debateID, payload))
}

// Subscribe attaches to a debate's topic. The returned stream replays the
// retained log from the beginning, then continues live. Subscribing to a
// sealed topic yields the full log followed by end-of-stream.
func (b *Broadcaster) Subscribe(debateID string) *Subscription {
	return b.ensureTopic(debateID).subscribe(b.bufferSize)
}

// Seal marks a debate's stream complete. Used after the terminal event is
// published; the log stays available for late subscribers.
func (b *Broadcaster) Seal(debateID string) {
	b.mu.RLock()
	t, ok := b.topics[debateID]
	b.mu.RUnlock()
	if ok {
		t.close()
	}
}

// Remove seals and forgets a debate's topic. Used when the debate record
// is deleted.
func (b *Broadcaster) Remove(debateID string) {
	b.mu.Lock()
	t, ok := b.topics[debateID]
	delete(b.topics, debateID)
	b.mu.Unlock()
	if ok {
		t.close()
	}
}

// Log returns a copy of the retained event log for a debate.
func (b *Broadcaster) Log(debateID string) []Event {
	b.mu.RLock()
	t, ok := b.topics[debateID]
	b.mu.RUnlock()
	if !ok {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Event(nil), t.log...)
}

func (b *Broadcaster) ensureTopic(debateID string) *topic {
	b.mu.RLock()
	t, ok := b.topics[debateID]
	b.mu.RUnlock()
	if ok {
		return t
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok = b.topics[debateID]; ok {
		return t
	}
	t = &topic{
		id:   debateID,
		subs: make(map[*subscriber]struct{}),
	}
	b.topics[debateID] = t
	return t
}
