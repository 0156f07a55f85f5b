// Package transport is the low-level message bus: raw byte publish, raw
// callback registration per channel, bounded per-subscription queues and a
// blocking handle-one dispatch call. It knows nothing about message types.
package transport

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"LCM-Bus/internal/core/network"
)

const (
	// DefaultQueueCapacity is the number of undelivered messages kept per subscription.
	DefaultQueueCapacity = 30
	// MaxChannelLength is the longest accepted channel name in bytes.
	MaxChannelLength = 63
)

var (
	ErrClosed              = errors.New("transport closed")
	ErrInvalidChannel      = errors.New("invalid channel name")
	ErrPayloadTooLarge     = errors.New("payload too large")
	ErrUnknownSubscription = errors.New("unknown subscription")
	ErrFeedLost            = errors.New("backend feed lost")
)

// RecvBuf is a received message. Data is owned by the transport and shared by
// every subscription of the channel: handlers must neither modify nor retain it.
type RecvBuf struct {
	Data     []byte
	Channel  string
	RecvTime time.Time
}

// Handler is invoked synchronously from HandleOne with the userData given at Subscribe.
type Handler func(rbuf *RecvBuf, channel string, userData any)

type delivery struct {
	sub  *Subscription
	rbuf *RecvBuf
}

// feed is one backend subscription shared by all local subscriptions of a channel.
type feed struct {
	channel string
	cancel  func()
	subs    map[*Subscription]struct{}
	stopped bool
}

// Transport is one bus handle. It is safe for concurrent use; HandleOne is
// normally driven from a single goroutine.
type Transport struct {
	ps         network.PubSub
	ownsPubSub bool
	logger     *zap.Logger
	maxPayload int
	defaultCap int

	// feedMu serializes backend subscribe/cancel calls without holding mu.
	feedMu sync.Mutex
	feeds  map[string]*feed

	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	pending  *list.List
	closed   bool
	fatal    error
	pipeFull bool

	ready  chan struct{}
	done   chan struct{}
	pr, pw *os.File
}

// Create opens the backend named by providerURL and wraps it in a Transport
// that closes the backend on Destroy.
func Create(ctx context.Context, providerURL string, opts ...Option) (*Transport, error) {
	o := buildOptions(opts)
	ps, err := network.Open(ctx, providerURL, o.logger)
	if err != nil {
		return nil, err
	}
	t, err := newTransport(ps, o)
	if err != nil {
		_ = ps.Close()
		return nil, err
	}
	t.ownsPubSub = true
	return t, nil
}

// New wraps an existing backend. The caller keeps ownership of ps.
func New(ps network.PubSub, opts ...Option) (*Transport, error) {
	if ps == nil {
		return nil, errors.New("transport: nil pubsub")
	}
	return newTransport(ps, buildOptions(opts))
}

func newTransport(ps network.PubSub, o options) (*Transport, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("create notify pipe: %w", err)
	}
	maxPayload := o.maxPayload
	if maxPayload == 0 {
		if l, ok := ps.(network.PayloadLimiter); ok {
			maxPayload = l.MaxPayloadSize()
		}
	}
	return &Transport{
		ps:         ps,
		logger:     o.logger,
		maxPayload: maxPayload,
		defaultCap: o.queueCapacity,
		feeds:      make(map[string]*feed),
		subs:       make(map[*Subscription]struct{}),
		pending:    list.New(),
		ready:      make(chan struct{}, 1),
		done:       make(chan struct{}),
		pr:         pr,
		pw:         pw,
	}, nil
}

// Destroy releases the transport. Blocked HandleOne calls return ErrClosed.
// Calling Destroy more than once is a no-op.
func (t *Transport) Destroy() error {
	t.feedMu.Lock()
	defer t.feedMu.Unlock()

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	for sub := range t.subs {
		sub.active = false
	}
	t.subs = make(map[*Subscription]struct{})
	t.pending.Init()
	for _, f := range t.feeds {
		f.stopped = true
	}
	close(t.done)
	t.mu.Unlock()

	for channel, f := range t.feeds {
		f.cancel()
		delete(t.feeds, channel)
	}

	var err error
	err = multierr.Append(err, t.pw.Close())
	err = multierr.Append(err, t.pr.Close())
	if t.ownsPubSub {
		err = multierr.Append(err, t.ps.Close())
	}
	t.logger.Debug("transport destroyed")
	return err
}

// Fileno returns a descriptor that is readable while messages are pending,
// for integration into an external poll/select loop. It returns -1 after Destroy.
func (t *Transport) Fileno() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return -1
	}
	return int(t.pr.Fd())
}

// Pending reports the number of queued, undispatched messages.
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.Len()
}

// Publish sends data on channel.
func (t *Transport) Publish(channel string, data []byte) error {
	if err := validateChannel(channel); err != nil {
		return err
	}
	if t.isClosed() {
		return ErrClosed
	}
	if t.maxPayload > 0 && len(data) > t.maxPayload {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrPayloadTooLarge, len(data), t.maxPayload)
	}
	if err := t.ps.Publish(channel, data); err != nil {
		if errors.Is(err, network.ErrDatagramTooLarge) {
			return fmt.Errorf("%w: %w", ErrPayloadTooLarge, err)
		}
		if errors.Is(err, network.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("publish %q: %w", channel, err)
	}
	return nil
}

func (t *Transport) isClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

func validateChannel(channel string) error {
	if channel == "" {
		return fmt.Errorf("%w: empty", ErrInvalidChannel)
	}
	if len(channel) > MaxChannelLength {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidChannel, len(channel), MaxChannelLength)
	}
	for i := 0; i < len(channel); i++ {
		if channel[i] == 0 {
			return fmt.Errorf("%w: contains NUL", ErrInvalidChannel)
		}
	}
	return nil
}
