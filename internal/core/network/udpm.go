package network

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/net/ipv4"
)

const (
	// shortHeaderMagic is "LC02", the LCM small-message header.
	shortHeaderMagic uint32 = 0x4c433032
	shortHeaderSize         = 8
	// maxDatagramSize bounds a complete frame; larger messages would need fragmentation.
	maxDatagramSize = 65499
	maxChannelSize  = 63
)

var (
	ErrBadFrame         = errors.New("malformed udpm frame")
	ErrDatagramTooLarge = errors.New("frame exceeds udp datagram size")
)

// UDPMOptions configures the UDP multicast backend.
type UDPMOptions struct {
	Group  net.IP
	Port   int
	TTL    int
	Logger *zap.Logger
}

// UDPMPubSub is the LCM-compatible UDP multicast backend (udpm://). Every
// message on the group reaches every process; channel filtering is local.
type UDPMPubSub struct {
	conn   net.PacketConn
	pc     *ipv4.PacketConn
	group  *net.UDPAddr
	logger *zap.Logger
	hub    *fanout
	seq    atomic.Uint32

	closeOnce sync.Once
	done      chan struct{}
}

func NewUDPMPubSub(ctx context.Context, opts UDPMOptions) (*UDPMPubSub, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Group == nil || !opts.Group.IsMulticast() {
		return nil, fmt.Errorf("udpm: %v is not a multicast address", opts.Group)
	}
	if opts.Port <= 0 || opts.Port > 65535 {
		return nil, fmt.Errorf("udpm: invalid port %d", opts.Port)
	}

	lc := net.ListenConfig{Control: reuseAddr}
	conn, err := lc.ListenPacket(ctx, "udp4", fmt.Sprintf("0.0.0.0:%d", opts.Port))
	if err != nil {
		return nil, fmt.Errorf("udpm: listen: %w", err)
	}
	group := &net.UDPAddr{IP: opts.Group, Port: opts.Port}
	pc := ipv4.NewPacketConn(conn)
	if err := pc.JoinGroup(nil, &net.UDPAddr{IP: opts.Group}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("udpm: join group %s: %w", opts.Group, err)
	}
	if err := pc.SetMulticastTTL(opts.TTL); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("udpm: set ttl: %w", err)
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("udpm: enable loopback: %w", err)
	}

	u := &UDPMPubSub{
		conn:   conn,
		pc:     pc,
		group:  group,
		logger: logger,
		hub:    newFanout(),
		done:   make(chan struct{}),
	}
	go u.readLoop()
	return u, nil
}

func (u *UDPMPubSub) Publish(topic string, payload []byte) error {
	select {
	case <-u.done:
		return ErrClosed
	default:
	}
	frame, err := encodeFrame(u.seq.Add(1)-1, topic, payload)
	if err != nil {
		return err
	}
	_, err = u.conn.WriteTo(frame, u.group)
	return err
}

func (u *UDPMPubSub) Subscribe(topic string) (<-chan Message, func(), error) {
	return u.hub.add(topic)
}

// MaxPayloadSize is the largest payload that fits one datagram on any channel.
func (u *UDPMPubSub) MaxPayloadSize() int {
	return maxDatagramSize - shortHeaderSize - maxChannelSize - 1
}

func (u *UDPMPubSub) Close() error {
	var err error
	u.closeOnce.Do(func() {
		close(u.done)
		_ = u.pc.LeaveGroup(nil, &net.UDPAddr{IP: u.group.IP})
		err = u.conn.Close()
		u.hub.closeAll()
	})
	return err
}

func (u *UDPMPubSub) readLoop() {
	buf := make([]byte, 64*1024)
	for {
		n, _, err := u.conn.ReadFrom(buf)
		if err != nil {
			select {
			case <-u.done:
			default:
				u.logger.Error("udpm read failed", zap.Error(err))
				u.hub.closeAll()
			}
			return
		}
		topic, payload, err := decodeFrame(buf[:n])
		if err != nil {
			u.logger.Debug("dropping datagram", zap.Int("size", n), zap.Error(err))
			continue
		}
		u.hub.deliver(topic, payload)
	}
}

func encodeFrame(seq uint32, channel string, payload []byte) ([]byte, error) {
	size := shortHeaderSize + len(channel) + 1 + len(payload)
	if size > maxDatagramSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrDatagramTooLarge, size)
	}
	frame := make([]byte, shortHeaderSize, size)
	binary.BigEndian.PutUint32(frame[0:4], shortHeaderMagic)
	binary.BigEndian.PutUint32(frame[4:8], seq)
	frame = append(frame, channel...)
	frame = append(frame, 0)
	frame = append(frame, payload...)
	return frame, nil
}

// decodeFrame returns a payload aliasing frame; the fanout copies before delivery.
func decodeFrame(frame []byte) (string, []byte, error) {
	if len(frame) < shortHeaderSize+1 {
		return "", nil, fmt.Errorf("%w: %d bytes", ErrBadFrame, len(frame))
	}
	if magic := binary.BigEndian.Uint32(frame[0:4]); magic != shortHeaderMagic {
		return "", nil, fmt.Errorf("%w: magic %#08x", ErrBadFrame, magic)
	}
	rest := frame[shortHeaderSize:]
	for i, b := range rest {
		if b == 0 {
			if i == 0 || i > maxChannelSize {
				return "", nil, fmt.Errorf("%w: channel length %d", ErrBadFrame, i)
			}
			return string(rest[:i]), rest[i+1:], nil
		}
	}
	return "", nil, fmt.Errorf("%w: unterminated channel", ErrBadFrame)
}
