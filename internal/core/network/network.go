package network

// Message is the transport envelope handed to subscribers.
type Message struct {
	Topic   string
	Payload []byte
}

// PubSub is a minimal interface for broadcast-style communication of raw bytes.
// Implementations deliver a publisher's own messages back to its local subscribers.
type PubSub interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string) (<-chan Message, func(), error)
	Close() error
}

// PayloadLimiter is implemented by backends that cannot carry arbitrarily large payloads.
type PayloadLimiter interface {
	MaxPayloadSize() int
}

// subscriberBuffer is the per-subscriber channel depth used by every backend.
const subscriberBuffer = 64
