package transport

import "go.uber.org/zap"

type options struct {
	logger        *zap.Logger
	maxPayload    int
	queueCapacity int
}

// Option configures a Transport.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxPayload caps published payload size. Zero uses the backend's own limit.
func WithMaxPayload(n int) Option {
	return func(o *options) { o.maxPayload = n }
}

// WithQueueCapacity sets the capacity new subscriptions start with.
func WithQueueCapacity(n int) Option {
	return func(o *options) { o.queueCapacity = n }
}

func buildOptions(opts []Option) options {
	o := options{
		logger:        zap.NewNop(),
		queueCapacity: DefaultQueueCapacity,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
