// Package hub implements the per-document publish/subscribe fan-out used for
// collaborative broadcasts. Topics are namespaced per document and event class.
// Delivery is at-most-once: subscribers absent at publish time never see the event.
package hub

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Topic name helpers. One document owns one topic per event class.

func EditsTopic(docID int64) string       { return fmt.Sprintf("room/%d/edits", docID) }
func CursorsTopic(docID int64) string     { return fmt.Sprintf("room/%d/cursors", docID) }
func DiagnosticsTopic(docID int64) string { return fmt.Sprintf("room/%d/diagnostics", docID) }
func UsersTopic(docID int64) string       { return fmt.Sprintf("room/%d/users", docID) }
func PermissionsTopic(docID int64) string { return fmt.Sprintf("room/%d/permissions", docID) }
func CompilerTopic(docID int64) string    { return fmt.Sprintf("room/%d/compiler", docID) }

// Message is a published event together with the topic it was published on.
type Message struct {
	Topic   string
	Payload any
}

// Subscription receives messages for one or more topics on a single channel.
// Messages for the same topic arrive in publish order.
type Subscription struct {
	ch     chan Message
	topics []string
}

// C returns the receive channel. It is closed on Unsubscribe.
func (s *Subscription) C() <-chan Message { return s.ch }

const subBuffer = 64

type topic struct {
	mu   sync.Mutex
	subs map[*Subscription]struct{}
}

// Hub fans events out to current subscribers of a topic. It never mutates
// document state; it only delivers already-decided events.
type Hub struct {
	mu     sync.RWMutex
	topics map[string]*topic
	logger *zap.Logger
}

// New constructs an empty hub.
func New(logger *zap.Logger) *Hub {
	return &Hub{topics: make(map[string]*topic), logger: logger}
}

// Subscribe registers a new subscriber for the given topics.
func (h *Hub) Subscribe(topics ...string) *Subscription {
	sub := &Subscription{
		ch:     make(chan Message, subBuffer),
		topics: append([]string(nil), topics...),
	}
	for _, name := range topics {
		t := h.topic(name)
		t.mu.Lock()
		t.subs[sub] = struct{}{}
		t.mu.Unlock()
	}
	return sub
}

// Unsubscribe removes the subscriber from all its topics and closes its channel.
// Empty topics are reclaimed so abandoned documents do not leak.
func (h *Hub) Unsubscribe(sub *Subscription) {
	for _, name := range sub.topics {
		h.mu.RLock()
		t, ok := h.topics[name]
		h.mu.RUnlock()
		if !ok {
			continue
		}
		t.mu.Lock()
		delete(t.subs, sub)
		empty := len(t.subs) == 0
		t.mu.Unlock()
		if empty {
			h.reclaim(name)
		}
	}
	close(sub.ch)
}

// Publish delivers the event to every current subscriber of the topic.
// A slow subscriber (full buffer) has this delivery dropped, never blocking
// delivery to others.
func (h *Hub) Publish(topicName string, payload any) {
	h.mu.RLock()
	t, ok := h.topics[topicName]
	h.mu.RUnlock()
	if !ok {
		return
	}
	msg := Message{Topic: topicName, Payload: payload}
	t.mu.Lock()
	defer t.mu.Unlock()
	for sub := range t.subs {
		select {
		case sub.ch <- msg:
		default:
			h.logger.Warn("dropping event for slow subscriber",
				zap.String("topic", topicName))
		}
	}
}

// topic returns the named topic, creating it if needed.
func (h *Hub) topic(name string) *topic {
	h.mu.RLock()
	t, ok := h.topics[name]
	h.mu.RUnlock()
	if ok {
		return t
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok = h.topics[name]; ok {
		return t
	}
	t = &topic{subs: make(map[*Subscription]struct{})}
	h.topics[name] = t
	return t
}

// reclaim drops the topic if it is still empty.
func (h *Hub) reclaim(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[name]; ok {
		t.mu.Lock()
		empty := len(t.subs) == 0
		t.mu.Unlock()
		if empty {
			delete(h.topics, name)
		}
	}
}
