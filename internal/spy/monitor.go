// Package spy watches LCM channels and keeps per-channel traffic statistics,
// decoding payloads whose fingerprint belongs to a known type.
package spy

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"LCM-Bus/internal/lcm"
	"LCM-Bus/internal/lcm/codec"
)

var (
	ErrChannelWatched  = errors.New("channel already watched")
	ErrChannelNotFound = errors.New("channel not watched")
)

const (
	EventMessage = "message"
	EventWatch   = "watch"
	EventUnwatch = "unwatch"
)

type ChannelStats struct {
	Channel     string    `json:"channel"`
	Messages    int64     `json:"messages"`
	Bytes       int64     `json:"bytes"`
	Undecodable int64     `json:"undecodable"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Type        string    `json:"type,omitempty"`
	LastValue   any       `json:"last_value,omitempty"`
	RateHz      float64   `json:"rate_hz"`
	FirstAt     time.Time `json:"first_at"`
	LastAt      time.Time `json:"last_at"`
	WatchedAt   time.Time `json:"watched_at"`
}

type Event struct {
	Type        string    `json:"type"`
	Channel     string    `json:"channel"`
	Size        int       `json:"size,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	MsgType     string    `json:"msg_type,omitempty"`
	Value       any       `json:"value,omitempty"`
	At          time.Time `json:"at"`
}

type watched struct {
	stats ChannelStats
	sub   *lcm.Subscription
}

// Monitor owns the watched channels of one client. Run must be driving the
// client for any statistics to accumulate.
type Monitor struct {
	client *lcm.Client
	types  *TypeRegistry
	logger *zap.Logger

	mu        sync.RWMutex
	channels  map[string]*watched
	listeners map[chan []byte]struct{}
}

func NewMonitor(client *lcm.Client, types *TypeRegistry, logger *zap.Logger) *Monitor {
	if types == nil {
		types = DefaultTypes()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		client:    client,
		types:     types,
		logger:    logger,
		channels:  make(map[string]*watched),
		listeners: make(map[chan []byte]struct{}),
	}
}

// Run dispatches messages until ctx ends or the client fails.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		err := m.client.HandleContext(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		default:
			return err
		}
	}
}

func (m *Monitor) Watch(channel string) (ChannelStats, error) {
	m.mu.Lock()
	if _, ok := m.channels[channel]; ok {
		m.mu.Unlock()
		return ChannelStats{}, ErrChannelWatched
	}
	w := &watched{stats: ChannelStats{Channel: channel, WatchedAt: time.Now().UTC()}}
	m.channels[channel] = w
	m.mu.Unlock()

	sub, err := m.client.SubscribeRaw(channel, m.record)
	if err != nil {
		m.mu.Lock()
		delete(m.channels, channel)
		m.mu.Unlock()
		return ChannelStats{}, err
	}
	// Unbounded: dropping here would make the counters lie.
	m.client.SetQueueCapacity(sub, 0)

	m.mu.Lock()
	if m.channels[channel] != w {
		// unwatched while subscribing
		m.mu.Unlock()
		_ = m.client.Unsubscribe(sub)
		return ChannelStats{}, ErrChannelNotFound
	}
	w.sub = sub
	cp := w.stats
	m.mu.Unlock()

	m.logger.Info("watching channel", zap.String("channel", channel))
	m.broadcast(Event{Type: EventWatch, Channel: channel, At: cp.WatchedAt})
	return cp, nil
}

func (m *Monitor) Unwatch(channel string) error {
	m.mu.Lock()
	w, ok := m.channels[channel]
	if ok {
		delete(m.channels, channel)
	}
	m.mu.Unlock()
	if !ok {
		return ErrChannelNotFound
	}
	if w.sub == nil {
		return nil
	}
	if err := m.client.Unsubscribe(w.sub); err != nil {
		return err
	}
	m.logger.Info("stopped watching channel", zap.String("channel", channel))
	m.broadcast(Event{Type: EventUnwatch, Channel: channel, At: time.Now().UTC()})
	return nil
}

// Channels returns a snapshot of every watched channel, sorted by name.
func (m *Monitor) Channels() []ChannelStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ChannelStats, 0, len(m.channels))
	for _, w := range m.channels {
		out = append(out, w.stats)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Channel < out[j].Channel })
	return out
}

func (m *Monitor) Channel(channel string) (ChannelStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.channels[channel]
	if !ok {
		return ChannelStats{}, ErrChannelNotFound
	}
	return w.stats, nil
}

// Publish sends value, given as JSON, as a message of the named type.
func (m *Monitor) Publish(channel, typeName string, value json.RawMessage) error {
	msg, err := m.types.Encode(typeName, value)
	if err != nil {
		return err
	}
	return m.client.Publish(channel, msg)
}

// Listen returns a feed of JSON-encoded events. Slow readers miss events
// rather than stalling dispatch.
func (m *Monitor) Listen() (<-chan []byte, func()) {
	ch := make(chan []byte, 32)
	m.mu.Lock()
	m.listeners[ch] = struct{}{}
	m.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, ch)
			close(ch)
			m.mu.Unlock()
		})
	}
}

func (m *Monitor) record(channel string, data []byte) {
	now := time.Now().UTC()
	evt := Event{Type: EventMessage, Channel: channel, Size: len(data), At: now}

	var (
		value     any
		typeName  string
		decodeErr error
	)
	if len(data) >= codec.FingerprintSize {
		fp := int64(binary.BigEndian.Uint64(data))
		evt.Fingerprint = fmt.Sprintf("%016x", uint64(fp))
		if e, ok := m.types.lookup(fp); ok {
			typeName = e.name
			value, decodeErr = e.decode(data)
		}
	}
	if decodeErr != nil {
		m.logger.Warn("undecodable message",
			zap.String("channel", channel),
			zap.String("type", typeName),
			zap.Error(decodeErr))
	}

	m.mu.Lock()
	w, ok := m.channels[channel]
	if !ok {
		m.mu.Unlock()
		return
	}
	s := &w.stats
	s.Messages++
	s.Bytes += int64(len(data))
	if s.FirstAt.IsZero() {
		s.FirstAt = now
	}
	s.LastAt = now
	if span := s.LastAt.Sub(s.FirstAt).Seconds(); s.Messages > 1 && span > 0 {
		s.RateHz = float64(s.Messages-1) / span
	}
	s.Fingerprint = evt.Fingerprint
	s.Type = typeName
	s.LastValue = value
	if decodeErr != nil || len(data) < codec.FingerprintSize {
		s.Undecodable++
	}
	m.mu.Unlock()

	evt.MsgType = typeName
	evt.Value = value
	m.broadcast(evt)
}

func (m *Monitor) broadcast(evt Event) {
	b, err := json.Marshal(evt)
	if err != nil {
		m.logger.Warn("event not serializable", zap.String("channel", evt.Channel), zap.Error(err))
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for ch := range m.listeners {
		select {
		case ch <- b:
		default:
		}
	}
}
