package events

import (
	"sync"
	"time"
)

// TopicAll subscribes to every topic.
const TopicAll = "*"

const defaultBufSize = 256

// Bus is a channel-based pub-sub event bus. Publishing never blocks: a
// subscriber whose channel is full simply misses the event. That is the
// right trade-off for progress narration, which is best-effort by design
// of the callers (nothing consumes a return value).
type Bus struct {
	mu     sync.RWMutex
	subs   map[string][]chan Event // topic (or TopicAll) -> subscriber channels
	closed bool
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe creates a subscription to one topic, or to every topic when
// the topic is TopicAll. bufSize <= 0 selects the default buffer.
func (b *Bus) Subscribe(topic string, bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	ch := make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}

	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// Publish sends an event to the topic's subscribers and to TopicAll
// subscribers. Full channels are skipped.
func (b *Bus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs[topic] {
		select {
		case ch <- event:
		default:
		}
	}
	for _, ch := range b.subs[TopicAll] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Narrate publishes a progress-narration message. Convenience wrapper so
// call sites read like the transcript they produce.
func (b *Bus) Narrate(role, content, kind string) {
	b.Publish(TopicNarration, Message{
		Role:      role,
		Content:   content,
		Kind:      kind,
		Timestamp: time.Now(),
	})
}

// Close closes the bus and all subscriber channels. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
}
