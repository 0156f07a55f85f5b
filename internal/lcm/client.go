// Package lcm is a typed publish/subscribe client. Messages are encoded with
// their type fingerprint (see package codec), published on named channels and
// dispatched to subscribers one at a time from Handle.
//
//	c, err := lcm.New(lcm.WithURL("udpm://239.255.76.67:7667?ttl=0"))
//	sub, err := lcm.Subscribe(c, "EXAMPLE", func(m exlcm.ExampleT) { ... })
//	for {
//		if err := c.Handle(); err != nil { ... }
//	}
package lcm

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"LCM-Bus/internal/core/network"
	"LCM-Bus/internal/core/transport"
)

type options struct {
	url           string
	ps            network.PubSub
	logger        *zap.Logger
	queueCapacity int
}

// Option configures New.
type Option func(*options)

// WithURL selects the backend by provider URL. Without it the client uses
// $LCM_DEFAULT_URL or network.DefaultURL.
func WithURL(url string) Option {
	return func(o *options) { o.url = url }
}

// WithPubSub runs the client over an existing backend, which the caller
// keeps ownership of. It takes precedence over WithURL.
func WithPubSub(ps network.PubSub) Option {
	return func(o *options) { o.ps = ps }
}

// WithLogger sets the logger used for the client and its transport.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithQueueCapacity sets the queue capacity new subscriptions start with.
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.queueCapacity = n }
}

// Client is one connection to the bus. Subscribe, Unsubscribe and Publish are
// safe to call from any goroutine, including while another goroutine is
// blocked in Handle. Handle itself is meant to be driven by one goroutine.
type Client struct {
	id     uuid.UUID
	t      *transport.Transport
	logger *zap.Logger

	mu   sync.Mutex
	subs map[*Subscription]struct{}

	closeOnce sync.Once
	closeErr  error
}

// New creates a client and its transport.
func New(opts ...Option) (*Client, error) {
	o := options{
		logger:        zap.NewNop(),
		queueCapacity: transport.DefaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New()
	logger := o.logger.With(zap.String("client", id.String()))
	topts := []transport.Option{
		transport.WithLogger(logger.Named("transport")),
		transport.WithQueueCapacity(o.queueCapacity),
	}

	var (
		t   *transport.Transport
		err error
	)
	if o.ps != nil {
		t, err = transport.New(o.ps, topts...)
	} else {
		t, err = transport.Create(context.Background(), o.url, topts...)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInitialization, err)
	}

	logger.Debug("client created", zap.String("url", o.url))
	return &Client{
		id:     id,
		t:      t,
		logger: logger,
		subs:   make(map[*Subscription]struct{}),
	}, nil
}

// Close releases every live subscription and destroys the transport. Any
// Handle blocked in another goroutine returns ErrInternal. Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		tokens := make([]*transport.Subscription, 0, len(c.subs))
		for sub := range c.subs {
			if sub.token != nil {
				tokens = append(tokens, sub.token)
			}
		}
		c.subs = make(map[*Subscription]struct{})
		c.mu.Unlock()

		var err error
		for _, token := range tokens {
			err = multierr.Append(err, c.t.Unsubscribe(token))
		}
		err = multierr.Append(err, c.t.Destroy())
		if err != nil {
			c.closeErr = fmt.Errorf("lcm: close: %w", err)
		}
		c.logger.Debug("client closed", zap.Int("released_subscriptions", len(tokens)))
	})
	return c.closeErr
}

// Fileno returns a descriptor that polls readable while a message is waiting
// for Handle, or -1 once the client is closed.
func (c *Client) Fileno() int {
	return c.t.Fileno()
}
