package network

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPubSub carries messages over Redis PUBLISH/SUBSCRIBE (redis://).
// Payloads travel as binary-safe Redis strings.
type RedisPubSub struct {
	ctx    context.Context
	cancel context.CancelFunc
	client *redis.Client
	logger *zap.Logger

	mu   sync.Mutex
	subs map[*redis.PubSub]struct{}
}

// NewRedisPubSub connects to Redis with the given options and verifies the
// connection with a PING.
func NewRedisPubSub(parent context.Context, opts *redis.Options, logger *zap.Logger) (*RedisPubSub, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		cancel()
		return nil, fmt.Errorf("ping redis %s: %w", opts.Addr, err)
	}
	return &RedisPubSub{
		ctx:    ctx,
		cancel: cancel,
		client: client,
		logger: logger,
		subs:   make(map[*redis.PubSub]struct{}),
	}, nil
}

func (r *RedisPubSub) Publish(topic string, payload []byte) error {
	if r.ctx.Err() != nil {
		return ErrClosed
	}
	return r.client.Publish(r.ctx, topic, payload).Err()
}

// Subscribe waits for the server to confirm the subscription before returning,
// so a Publish issued right after Subscribe is not lost.
func (r *RedisPubSub) Subscribe(topic string) (<-chan Message, func(), error) {
	if r.ctx.Err() != nil {
		return nil, nil, ErrClosed
	}
	ps := r.client.Subscribe(r.ctx, topic)
	if _, err := ps.Receive(r.ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribe %q: %w", topic, err)
	}

	r.mu.Lock()
	r.subs[ps] = struct{}{}
	r.mu.Unlock()

	out := make(chan Message, subscriberBuffer)
	in := ps.Channel()
	go func() {
		defer close(out)
		for msg := range in {
			select {
			case out <- Message{Topic: msg.Channel, Payload: []byte(msg.Payload)}:
			default:
				r.logger.Debug("subscriber buffer full, dropping message", zap.String("topic", topic))
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, ps)
			r.mu.Unlock()
			if err := ps.Close(); err != nil {
				r.logger.Debug("close redis subscription", zap.String("topic", topic), zap.Error(err))
			}
		})
	}
	return out, cancel, nil
}

// MaxPayloadSize is the Redis bulk string limit.
func (r *RedisPubSub) MaxPayloadSize() int {
	return 512 << 20
}

func (r *RedisPubSub) Close() error {
	r.cancel()
	r.mu.Lock()
	for ps := range r.subs {
		_ = ps.Close()
	}
	r.subs = make(map[*redis.PubSub]struct{})
	r.mu.Unlock()
	return r.client.Close()
}
