package lcm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"LCM-Bus/internal/core/transport"
)

// Handle blocks until one message has been dispatched to its subscriber.
// Undecodable messages count as dispatched: they are logged and Handle
// returns nil. A transport failure or a closed client yields ErrInternal.
func (c *Client) Handle() error {
	return c.HandleContext(context.Background())
}

// HandleContext is Handle that gives up with ctx.Err() when ctx ends first.
func (c *Client) HandleContext(ctx context.Context) error {
	err := c.t.HandleOneContext(ctx)
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return ctxErr
	}
	return fmt.Errorf("%w: %w", ErrInternal, err)
}

// HandleTimeout is Handle bounded by timeout. It returns ErrTimeout when no
// message arrived in time, in which case no callback ran. A zero timeout
// only dispatches a message that is already waiting.
func (c *Client) HandleTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidTimeout, timeout)
	}
	ok, err := c.t.HandleOneTimeout(timeout)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternal, err)
	}
	if !ok {
		return ErrTimeout
	}
	return nil
}

// trampoline is the single transport handler shared by every subscription.
// Nothing raised by decoding or by user code propagates past it.
func (c *Client) trampoline(rbuf *transport.RecvBuf, channel string, userData any) {
	sub, ok := userData.(*Subscription)
	if !ok || !c.isRegistered(sub) {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber panicked",
				zap.String("channel", channel),
				zap.Any("panic", r),
				zap.Stack("stack"))
		}
	}()
	if err := sub.handler(channel, rbuf.Data); err != nil {
		c.logger.Error("dropping undecodable message",
			zap.String("channel", channel),
			zap.Int("size", len(rbuf.Data)),
			zap.Error(err))
	}
}
