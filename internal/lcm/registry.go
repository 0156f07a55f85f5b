package lcm

import (
	"fmt"

	"go.uber.org/zap"

	"LCM-Bus/internal/core/transport"
	"LCM-Bus/internal/lcm/codec"
)

// handlerFunc is the type-erased form of a subscriber callback. It returns
// the decode error, if any, for the dispatch loop to log.
type handlerFunc func(channel string, data []byte) error

// Subscription is the handle for one channel and callback pair. It is shared
// by the caller and the client's registry.
type Subscription struct {
	channel string
	handler handlerFunc
	client  *Client
	// token is set once the transport accepted the registration; guarded by client.mu.
	token *transport.Subscription
}

// Channel returns the channel the subscription was registered on.
func (s *Subscription) Channel() string { return s.channel }

// Subscribe registers callback for messages of type T on channel. Payloads
// that do not decode as T are logged and skipped; callback only ever sees
// well-formed values. Subscribing a channel twice yields two independent
// subscriptions that both fire.
func Subscribe[T any, PT interface {
	*T
	codec.Message
}](c *Client, channel string, callback func(T)) (*Subscription, error) {
	if callback == nil {
		return nil, fmt.Errorf("%w: %q: nil callback", ErrSubscribe, channel)
	}
	return c.subscribe(channel, func(_ string, data []byte) error {
		var v T
		if err := codec.DecodeWithHash(data, PT(&v)); err != nil {
			return err
		}
		callback(v)
		return nil
	})
}

// SubscribeRaw registers callback for the undecoded bytes of every message on
// channel. The slice passed to callback is a private copy.
func (c *Client) SubscribeRaw(channel string, callback func(channel string, data []byte)) (*Subscription, error) {
	if callback == nil {
		return nil, fmt.Errorf("%w: %q: nil callback", ErrSubscribe, channel)
	}
	return c.subscribe(channel, func(ch string, data []byte) error {
		callback(ch, append([]byte(nil), data...))
		return nil
	})
}

func (c *Client) subscribe(channel string, h handlerFunc) (*Subscription, error) {
	sub := &Subscription{channel: channel, handler: h, client: c}

	// Registered before the transport knows about it so the trampoline never
	// sees a token without a registry entry.
	c.mu.Lock()
	c.subs[sub] = struct{}{}
	c.mu.Unlock()

	token, err := c.t.Subscribe(channel, c.trampoline, sub)
	if err != nil {
		c.mu.Lock()
		delete(c.subs, sub)
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: %q: %w", ErrSubscribe, channel, err)
	}

	c.mu.Lock()
	sub.token = token
	c.mu.Unlock()

	c.logger.Debug("subscribed", zap.String("channel", channel), zap.String("subscription", token.ID()))
	return sub, nil
}

// Unsubscribe removes sub. Once it returns nil no later Handle invokes sub's
// callback. A delivery already taken by a Handle running concurrently in
// another goroutine may still complete. Unsubscribing from inside the
// subscription's own callback is allowed.
func (c *Client) Unsubscribe(sub *Subscription) error {
	if sub == nil || sub.client != c {
		return fmt.Errorf("%w: %w", ErrUnsubscribe, transport.ErrUnknownSubscription)
	}

	c.mu.Lock()
	_, live := c.subs[sub]
	token := sub.token
	if live {
		delete(c.subs, sub)
	}
	c.mu.Unlock()
	if !live || token == nil {
		return fmt.Errorf("%w: %q: %w", ErrUnsubscribe, sub.channel, transport.ErrUnknownSubscription)
	}

	if err := c.t.Unsubscribe(token); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrUnsubscribe, sub.channel, err)
	}
	c.logger.Debug("unsubscribed", zap.String("channel", sub.channel), zap.String("subscription", token.ID()))
	return nil
}

// SetQueueCapacity bounds how many undelivered messages are buffered for sub
// before the oldest is dropped. The default is 30; n <= 0 removes the bound.
func (c *Client) SetQueueCapacity(sub *Subscription, n int) {
	if sub == nil || sub.client != c {
		return
	}
	c.mu.Lock()
	token := sub.token
	c.mu.Unlock()
	if token != nil {
		token.SetQueueCapacity(n)
	}
}

// SubscriptionCount reports the number of live subscriptions.
func (c *Client) SubscriptionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Client) isRegistered(sub *Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[sub]
	return ok
}
