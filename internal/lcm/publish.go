package lcm

import (
	"fmt"

	"go.uber.org/zap"

	"LCM-Bus/internal/lcm/codec"
)

// Publish encodes msg with its fingerprint and sends it on channel.
func (c *Client) Publish(channel string, msg codec.Encoder) error {
	data, err := codec.EncodeWithHash(msg)
	if err != nil {
		return fmt.Errorf("%w: %q: encode: %w", ErrPublish, channel, err)
	}
	return c.PublishRaw(channel, data)
}

// PublishRaw sends data on channel as is.
func (c *Client) PublishRaw(channel string, data []byte) error {
	if err := c.t.Publish(channel, data); err != nil {
		return fmt.Errorf("%w: %q: %w", ErrPublish, channel, err)
	}
	c.logger.Debug("published", zap.String("channel", channel), zap.Int("size", len(data)))
	return nil
}
