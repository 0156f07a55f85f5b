package transport

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"LCM-Bus/internal/core/network"
)

// Subscription is the token for one registered channel callback.
type Subscription struct {
	id       uuid.UUID
	channel  string
	handler  Handler
	userData any
	t        *Transport

	// guarded by t.mu
	active   bool
	capacity int
	queued   int
}

// ID identifies the subscription in logs.
func (s *Subscription) ID() string { return s.id.String() }

func (s *Subscription) Channel() string { return s.channel }

// SetQueueCapacity sets how many undelivered messages are kept for this
// subscription before the oldest is dropped. n <= 0 means unbounded.
func (s *Subscription) SetQueueCapacity(n int) {
	t := s.t
	t.mu.Lock()
	defer t.mu.Unlock()
	s.capacity = n
	for n > 0 && s.queued > n {
		t.dropOldestLocked(s)
	}
	t.syncPipeLocked()
}

// Subscribe registers fn for messages on channel. Several subscriptions may
// share a channel; each receives every message.
func (t *Transport) Subscribe(channel string, fn Handler, userData any) (*Subscription, error) {
	if err := validateChannel(channel); err != nil {
		return nil, err
	}
	if fn == nil {
		return nil, fmt.Errorf("subscribe %q: nil handler", channel)
	}

	t.feedMu.Lock()
	defer t.feedMu.Unlock()
	if t.isClosed() {
		return nil, ErrClosed
	}

	f, ok := t.feeds[channel]
	if !ok {
		ch, cancel, err := t.ps.Subscribe(channel)
		if err != nil {
			return nil, fmt.Errorf("subscribe %q: %w", channel, err)
		}
		f = &feed{channel: channel, cancel: cancel, subs: make(map[*Subscription]struct{})}
		t.feeds[channel] = f
		go t.pump(f, ch)
	}

	sub := &Subscription{
		id:       uuid.New(),
		channel:  channel,
		handler:  fn,
		userData: userData,
		t:        t,
		active:   true,
		capacity: t.defaultCap,
	}
	t.mu.Lock()
	f.subs[sub] = struct{}{}
	t.subs[sub] = struct{}{}
	t.mu.Unlock()

	t.logger.Debug("subscribed", zap.String("channel", channel), zap.String("subscription", sub.ID()))
	return sub, nil
}

// Unsubscribe removes sub and discards its queued messages. It fails with
// ErrUnknownSubscription if sub is not registered with this transport.
func (t *Transport) Unsubscribe(sub *Subscription) error {
	if sub == nil || sub.t != t {
		return ErrUnknownSubscription
	}

	t.feedMu.Lock()
	defer t.feedMu.Unlock()

	t.mu.Lock()
	if !sub.active {
		t.mu.Unlock()
		return ErrUnknownSubscription
	}
	sub.active = false
	delete(t.subs, sub)
	t.dropQueuedLocked(sub)
	t.syncPipeLocked()
	f := t.feeds[sub.channel]
	last := false
	if f != nil {
		delete(f.subs, sub)
		last = len(f.subs) == 0
		if last {
			f.stopped = true
		}
	}
	t.mu.Unlock()

	if last {
		delete(t.feeds, sub.channel)
		f.cancel()
	}
	t.logger.Debug("unsubscribed", zap.String("channel", sub.channel), zap.String("subscription", sub.ID()))
	return nil
}

// pump moves backend messages of one channel into the subscription queues.
func (t *Transport) pump(f *feed, ch <-chan network.Message) {
	for msg := range ch {
		t.enqueue(f, msg.Payload)
	}
	t.mu.Lock()
	lost := !f.stopped && !t.closed
	t.mu.Unlock()
	if lost {
		t.fail(fmt.Errorf("%w: channel %q", ErrFeedLost, f.channel))
	}
}
