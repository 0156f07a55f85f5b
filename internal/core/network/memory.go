package network

import (
	"errors"
	"sync"
)

// ErrClosed is returned by backends after Close.
var ErrClosed = errors.New("pubsub closed")

// fanout keeps the local subscriber channels of a backend, keyed by topic.
type fanout struct {
	mu     sync.RWMutex
	nextID int
	closed bool
	subs   map[string]map[int]chan Message
}

func newFanout() *fanout {
	return &fanout{subs: make(map[string]map[int]chan Message)}
}

func (f *fanout) deliver(topic string, payload []byte) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, ch := range f.subs[topic] {
		msg := Message{Topic: topic, Payload: append([]byte(nil), payload...)}
		select {
		case ch <- msg:
		default:
			// Non-blocking send to avoid one slow subscriber stalling all publishers.
		}
	}
}

func (f *fanout) hasTopic(topic string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs[topic]) > 0
}

func (f *fanout) add(topic string) (<-chan Message, func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, nil, ErrClosed
	}
	if _, ok := f.subs[topic]; !ok {
		f.subs[topic] = make(map[int]chan Message)
	}
	id := f.nextID
	f.nextID++
	ch := make(chan Message, subscriberBuffer)
	f.subs[topic][id] = ch

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if subsByTopic, ok := f.subs[topic]; ok {
			if sub, exists := subsByTopic[id]; exists {
				delete(subsByTopic, id)
				close(sub)
			}
			if len(subsByTopic) == 0 {
				delete(f.subs, topic)
			}
		}
	}
	return ch, cancel, nil
}

func (f *fanout) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for topic, subsByTopic := range f.subs {
		for id, ch := range subsByTopic {
			delete(subsByTopic, id)
			close(ch)
		}
		delete(f.subs, topic)
	}
}

func (f *fanout) isClosed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.closed
}

// MemoryPubSub is a process-local backend (memq://). Every client sharing one
// MemoryPubSub sees every other client's messages.
type MemoryPubSub struct {
	hub *fanout
}

func NewMemoryPubSub() *MemoryPubSub {
	return &MemoryPubSub{hub: newFanout()}
}

func (m *MemoryPubSub) Publish(topic string, payload []byte) error {
	if m.hub.isClosed() {
		return ErrClosed
	}
	m.hub.deliver(topic, payload)
	return nil
}

func (m *MemoryPubSub) Subscribe(topic string) (<-chan Message, func(), error) {
	return m.hub.add(topic)
}

// Close closes every subscriber channel. Further Publish/Subscribe calls fail with ErrClosed.
func (m *MemoryPubSub) Close() error {
	m.hub.closeAll()
	return nil
}
