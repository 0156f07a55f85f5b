package transport

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// HandleOne blocks until one message has been passed to its handler.
func (t *Transport) HandleOne() error {
	return t.HandleOneContext(context.Background())
}

// HandleOneTimeout waits at most timeout for a message. It reports false with a
// nil error when the timeout expired without dispatching. A timeout <= 0 polls.
func (t *Transport) HandleOneTimeout(timeout time.Duration) (bool, error) {
	if timeout < 0 {
		timeout = 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	err := t.HandleOneContext(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return err == nil, err
}

// HandleOneContext is HandleOne bounded by ctx; it returns ctx.Err() when ctx
// ends first. Handlers run on the calling goroutine with no transport lock held.
func (t *Transport) HandleOneContext(ctx context.Context) error {
	for {
		d, err := t.next()
		if err != nil {
			return err
		}
		if d != nil {
			d.sub.handler(d.rbuf, d.rbuf.Channel, d.sub.userData)
			return nil
		}
		select {
		case <-t.ready:
		case <-t.done:
			return ErrClosed
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// next pops the oldest pending delivery, or returns nil if none is queued.
func (t *Transport) next() (*delivery, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, ErrClosed
	}
	if t.fatal != nil {
		return nil, t.fatal
	}
	e := t.pending.Front()
	if e == nil {
		return nil, nil
	}
	d := t.pending.Remove(e).(*delivery)
	d.sub.queued--
	t.syncPipeLocked()
	return d, nil
}

func (t *Transport) enqueue(f *feed, payload []byte) {
	rbuf := &RecvBuf{Data: payload, Channel: f.channel, RecvTime: time.Now()}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || len(f.subs) == 0 {
		return
	}
	for sub := range f.subs {
		t.pending.PushBack(&delivery{sub: sub, rbuf: rbuf})
		sub.queued++
		if sub.capacity > 0 && sub.queued > sub.capacity {
			t.dropOldestLocked(sub)
		}
	}
	t.syncPipeLocked()
	select {
	case t.ready <- struct{}{}:
	default:
	}
}

func (t *Transport) dropOldestLocked(sub *Subscription) {
	for e := t.pending.Front(); e != nil; e = e.Next() {
		if d := e.Value.(*delivery); d.sub == sub {
			t.pending.Remove(e)
			sub.queued--
			t.logger.Debug("queue full, dropped oldest message",
				zap.String("channel", sub.channel),
				zap.String("subscription", sub.ID()),
				zap.Int("capacity", sub.capacity))
			return
		}
	}
}

func (t *Transport) dropQueuedLocked(sub *Subscription) {
	for e := t.pending.Front(); e != nil; {
		next := e.Next()
		if e.Value.(*delivery).sub == sub {
			t.pending.Remove(e)
			sub.queued--
		}
		e = next
	}
}

// syncPipeLocked keeps exactly one byte in the notify pipe while messages are pending.
func (t *Transport) syncPipeLocked() {
	if t.closed {
		return
	}
	switch {
	case t.pending.Len() > 0 && !t.pipeFull:
		if _, err := t.pw.Write([]byte{1}); err != nil {
			t.logger.Warn("notify pipe write failed", zap.Error(err))
			return
		}
		t.pipeFull = true
	case t.pending.Len() == 0 && t.pipeFull:
		var b [1]byte
		if _, err := t.pr.Read(b[:]); err != nil {
			t.logger.Warn("notify pipe read failed", zap.Error(err))
			return
		}
		t.pipeFull = false
	}
}

// fail records a fatal condition reported by the next HandleOne call.
func (t *Transport) fail(err error) {
	t.logger.Error("transport failure", zap.Error(err))
	t.mu.Lock()
	if t.fatal == nil {
		t.fatal = err
	}
	t.mu.Unlock()
	select {
	case t.ready <- struct{}{}:
	default:
	}
}
