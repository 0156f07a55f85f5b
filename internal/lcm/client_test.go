package lcm

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"LCM-Bus/internal/core/network"
	"LCM-Bus/internal/core/transport"
	"LCM-Bus/internal/exlcm"
	"LCM-Bus/internal/lcm/codec"
)

const waitFor = 2 * time.Second

func newClient(t *testing.T, opts ...Option) *Client {
	t.Helper()
	c, err := New(append([]Option{WithURL("memq://")}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func newObservedClient(t *testing.T) (*Client, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	return newClient(t, WithLogger(zap.New(core))), logs
}

func TestPingDeliveredExactlyOnce(t *testing.T) {
	c := newClient(t)

	var got []string
	_, err := Subscribe(c, "X", func(m codec.String) { got = append(got, string(m)) })
	require.NoError(t, err)

	require.NoError(t, c.Publish("X", codec.String("ping")))
	require.NoError(t, c.HandleTimeout(waitFor))
	assert.Equal(t, []string{"ping"}, got)

	assert.ErrorIs(t, c.HandleTimeout(50*time.Millisecond), ErrTimeout)
	assert.Equal(t, []string{"ping"}, got)
}

func TestSameChannelTwoCallbacksBothFire(t *testing.T) {
	c := newClient(t)

	var a, b int
	_, err := Subscribe(c, "Y", func(codec.Int32) { a++ })
	require.NoError(t, err)
	_, err = Subscribe(c, "Y", func(codec.Int32) { b++ })
	require.NoError(t, err)

	require.NoError(t, c.Publish("Y", codec.Int32(1)))
	require.NoError(t, c.HandleTimeout(waitFor))
	require.NoError(t, c.HandleTimeout(waitFor))
	assert.Equal(t, 1, a)
	assert.Equal(t, 1, b)
}

func TestSubscriptionCount(t *testing.T) {
	c := newClient(t)
	const n, m = 6, 4

	subs := make([]*Subscription, 0, n)
	for i := 0; i < n; i++ {
		sub, err := Subscribe(c, "COUNT", func(codec.Bool) {})
		require.NoError(t, err)
		subs = append(subs, sub)
	}
	assert.Equal(t, n, c.SubscriptionCount())
	for _, sub := range subs[:m] {
		require.NoError(t, c.Unsubscribe(sub))
	}
	assert.Equal(t, n-m, c.SubscriptionCount())
}

func TestNoDispatchAfterUnsubscribe(t *testing.T) {
	c := newClient(t)

	var calls int
	sub, err := Subscribe(c, "GONE", func(codec.String) { calls++ })
	require.NoError(t, err)
	assert.Equal(t, "GONE", sub.Channel())

	// one queued before and several after
	require.NoError(t, c.Publish("GONE", codec.String("before")))
	require.NoError(t, c.Unsubscribe(sub))
	for i := 0; i < 5; i++ {
		require.NoError(t, c.Publish("GONE", codec.String("after")))
	}
	assert.ErrorIs(t, c.HandleTimeout(100*time.Millisecond), ErrTimeout)
	assert.Zero(t, calls)

	assert.ErrorIs(t, c.Unsubscribe(sub), ErrUnsubscribe)
	assert.ErrorIs(t, c.Unsubscribe(nil), ErrUnsubscribe)
	assert.ErrorIs(t, c.Unsubscribe(sub), transport.ErrUnknownSubscription)
}

func TestUnsubscribeFromCallback(t *testing.T) {
	c := newClient(t)

	var (
		sub   *Subscription
		calls int
	)
	sub, err := Subscribe(c, "ONCE", func(codec.String) {
		calls++
		assert.NoError(t, c.Unsubscribe(sub))
	})
	require.NoError(t, err)

	require.NoError(t, c.Publish("ONCE", codec.String("1")))
	require.NoError(t, c.HandleTimeout(waitFor))
	require.NoError(t, c.Publish("ONCE", codec.String("2")))
	assert.ErrorIs(t, c.HandleTimeout(100*time.Millisecond), ErrTimeout)
	assert.Equal(t, 1, calls)
	assert.Zero(t, c.SubscriptionCount())
}

func TestHandleTimeoutBounds(t *testing.T) {
	c := newClient(t)
	_, err := Subscribe(c, "QUIET", func(codec.String) { t.Error("callback must not run") })
	require.NoError(t, err)

	start := time.Now()
	err = c.HandleTimeout(200 * time.Millisecond)
	elapsed := time.Since(start)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.InDelta(t, 200*time.Millisecond, elapsed, float64(150*time.Millisecond))

	assert.ErrorIs(t, c.HandleTimeout(-time.Second), ErrInvalidTimeout)
	assert.ErrorIs(t, c.HandleTimeout(0), ErrTimeout)
}

func TestHandleContext(t *testing.T) {
	c := newClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.HandleContext(ctx), context.DeadlineExceeded)

	_, err := Subscribe(c, "CTX", func(codec.Int64) {})
	require.NoError(t, err)
	require.NoError(t, c.Publish("CTX", codec.Int64(1)))
	assert.NoError(t, c.HandleContext(context.Background()))
}

func TestUndecodablePayloadIsLoggedAndSkipped(t *testing.T) {
	c, logs := newObservedClient(t)

	var calls int
	_, err := Subscribe(c, "BAD", func(exlcm.ExampleT) { calls++ })
	require.NoError(t, err)

	require.NoError(t, c.PublishRaw("BAD", []byte{0xde, 0xad}))
	require.NoError(t, c.HandleTimeout(waitFor))

	require.NoError(t, c.Publish("BAD", codec.String("wrong type")))
	require.NoError(t, c.HandleTimeout(waitFor))

	good := exlcm.ExampleT{Name: "ok", Ranges: []int16{}}
	require.NoError(t, c.Publish("BAD", good))
	require.NoError(t, c.HandleTimeout(waitFor))

	assert.Equal(t, 1, calls)
	entries := logs.FilterMessage("dropping undecodable message").All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
	assert.Equal(t, "BAD", entries[0].ContextMap()["channel"])
	assert.Contains(t, entries[0].ContextMap()["error"], "truncated")
	assert.Contains(t, entries[1].ContextMap()["error"], "fingerprint mismatch")
}

func TestPanickingCallbackIsContained(t *testing.T) {
	c, logs := newObservedClient(t)

	_, err := Subscribe(c, "BOOM", func(codec.String) { panic("user bug") })
	require.NoError(t, err)
	var after int
	_, err = Subscribe(c, "AFTER", func(codec.String) { after++ })
	require.NoError(t, err)

	require.NoError(t, c.Publish("BOOM", codec.String("x")))
	assert.NoError(t, c.HandleTimeout(waitFor))
	require.NoError(t, c.Publish("AFTER", codec.String("y")))
	assert.NoError(t, c.HandleTimeout(waitFor))

	assert.Equal(t, 1, after)
	entries := logs.FilterMessage("subscriber panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "user bug", entries[0].ContextMap()["panic"])
}

func TestPublishErrors(t *testing.T) {
	c := newClient(t)

	err := c.Publish("", codec.String("x"))
	assert.ErrorIs(t, err, ErrPublish)
	assert.ErrorIs(t, err, transport.ErrInvalidChannel)

	err = c.Publish("ENC", exlcm.ExampleT{NumRanges: 3})
	assert.ErrorIs(t, err, ErrPublish)
	assert.ErrorIs(t, err, codec.ErrMalformed)

	_, err = Subscribe(c, "bad\x00channel", func(codec.String) {})
	assert.ErrorIs(t, err, ErrSubscribe)
	assert.Zero(t, c.SubscriptionCount())
}

func TestSubscribeRawCopiesBuffer(t *testing.T) {
	c := newClient(t)

	var first, second []byte
	_, err := c.SubscribeRaw("RAW", func(channel string, data []byte) {
		assert.Equal(t, "RAW", channel)
		first = data
		data[0] = 'X'
	})
	require.NoError(t, err)
	_, err = c.SubscribeRaw("RAW", func(_ string, data []byte) { second = data })
	require.NoError(t, err)

	require.NoError(t, c.PublishRaw("RAW", []byte("abc")))
	require.NoError(t, c.HandleTimeout(waitFor))
	require.NoError(t, c.HandleTimeout(waitFor))
	assert.Equal(t, "Xbc", string(first))
	assert.Equal(t, "abc", string(second))
}

func TestQueueCapacityDropsOldest(t *testing.T) {
	c := newClient(t)

	var got []int32
	sub, err := Subscribe(c, "Q", func(m codec.Int32) { got = append(got, int32(m)) })
	require.NoError(t, err)
	c.SetQueueCapacity(sub, 1)
	var raw int
	_, err = c.SubscribeRaw("Q", func(string, []byte) { raw++ })
	require.NoError(t, err)

	require.NoError(t, c.Publish("Q", codec.Int32(1)))
	require.NoError(t, c.Publish("Q", codec.Int32(2)))
	// both messages queued for the raw subscription, only the newest for sub
	require.Eventually(t, func() bool { return c.t.Pending() == 3 }, waitFor, 5*time.Millisecond)

	for i := 0; i < 3; i++ {
		require.NoError(t, c.HandleTimeout(0))
	}
	assert.Equal(t, []int32{2}, got)
	assert.Equal(t, 2, raw)
}

func TestTwoClientsShareBackend(t *testing.T) {
	ps := network.NewMemoryPubSub()
	t.Cleanup(func() { _ = ps.Close() })
	pub := newClient(t, WithPubSub(ps))
	sub := newClient(t, WithPubSub(ps))

	var got exlcm.ExampleT
	_, err := Subscribe(sub, "EXAMPLE", func(m exlcm.ExampleT) { got = m })
	require.NoError(t, err)

	want := exlcm.ExampleT{
		Timestamp: 7,
		Position:  [3]float64{1, 2, 3},
		NumRanges: 2,
		Ranges:    []int16{4, 5},
		Name:      "shared",
		Enabled:   true,
	}
	require.NoError(t, pub.Publish("EXAMPLE", want))
	require.NoError(t, sub.HandleTimeout(waitFor))
	assert.Equal(t, want, got)
	assert.ErrorIs(t, pub.HandleTimeout(0), ErrTimeout)
}

type telemetry struct {
	Source  string
	Samples []float64
}

func TestCBORMessages(t *testing.T) {
	c := newClient(t)

	var got telemetry
	_, err := Subscribe(c, "TELEMETRY", func(m codec.CBOR[telemetry]) { got = m.Value })
	require.NoError(t, err)

	want := telemetry{Source: "imu", Samples: []float64{0.25, -9.81}}
	require.NoError(t, c.Publish("TELEMETRY", codec.CBOR[telemetry]{Value: want}))
	require.NoError(t, c.HandleTimeout(waitFor))
	assert.Equal(t, want, got)
}

func TestConcurrentPublishAndDispatch(t *testing.T) {
	c := newClient(t)
	const publishers, each = 4, 10

	var received atomic.Int32
	sub, err := Subscribe(c, "LOAD", func(codec.Int64) { received.Add(1) })
	require.NoError(t, err)
	c.SetQueueCapacity(sub, 0)

	var wg sync.WaitGroup
	for p := 0; p < publishers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				assert.NoError(t, c.Publish("LOAD", codec.Int64(p*each+i)))
			}
		}(p)
	}
	wg.Wait()

	for received.Load() < publishers*each {
		if err := c.HandleTimeout(waitFor); err != nil {
			break
		}
	}
	assert.Equal(t, int32(publishers*each), received.Load())
}

func TestCloseUnblocksHandle(t *testing.T) {
	c, err := New(WithURL("memq://"))
	require.NoError(t, err)
	fd := c.Fileno()
	assert.GreaterOrEqual(t, fd, 0)
	_, err = Subscribe(c, "CLOSE", func(codec.String) {})
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() { errCh <- c.Handle() }()
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, c.Close())
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrInternal)
		assert.ErrorIs(t, err, transport.ErrClosed)
	case <-time.After(waitFor):
		t.Fatal("Handle did not return after Close")
	}

	assert.NoError(t, c.Close())
	assert.Equal(t, -1, c.Fileno())
	assert.Zero(t, c.SubscriptionCount())
	assert.ErrorIs(t, c.Publish("CLOSE", codec.String("late")), ErrPublish)
	assert.ErrorIs(t, c.HandleTimeout(0), ErrInternal)
}

func TestNewFailures(t *testing.T) {
	_, err := New(WithURL("bogus://"))
	assert.ErrorIs(t, err, ErrInitialization)
	assert.ErrorIs(t, err, network.ErrUnknownScheme)

	_, err = New(WithURL("udpm://not-an-ip:7667"))
	assert.ErrorIs(t, err, ErrInitialization)
}
