package lcm

import "errors"

// Failures surfaced by a Client. Each wraps the underlying cause, so callers
// can test for both, e.g. errors.Is(err, ErrPublish) and
// errors.Is(err, transport.ErrPayloadTooLarge).
var (
	ErrInitialization = errors.New("lcm: failed to initialize")
	ErrSubscribe      = errors.New("lcm: failed to subscribe")
	ErrUnsubscribe    = errors.New("lcm: failed to unsubscribe")
	ErrPublish        = errors.New("lcm: failed to publish")
	ErrTimeout        = errors.New("lcm: timed out waiting for a message")
	ErrInternal       = errors.New("lcm: internal transport error")
	ErrInvalidTimeout = errors.New("lcm: negative timeout")
)
