package network

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisPublishSubscribe(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer s.Close()

	ps, err := NewRedisPubSub(context.Background(), &redis.Options{Addr: s.Addr()}, nil)
	if err != nil {
		t.Fatalf("new redis pubsub: %v", err)
	}
	defer ps.Close()

	ch, cancel, err := ps.Subscribe("lcm.test")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	payload := []byte{0x00, 0xff, 'p', 'i', 'n', 'g', 0x00}
	if err := ps.Publish("lcm.test", payload); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case got := <-ch:
		if got.Topic != "lcm.test" || string(got.Payload) != string(payload) {
			t.Fatalf("unexpected message %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestRedisCancelClosesChannel(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer s.Close()

	ps, err := NewRedisPubSub(context.Background(), &redis.Options{Addr: s.Addr()}, nil)
	if err != nil {
		t.Fatalf("new redis pubsub: %v", err)
	}
	defer ps.Close()

	ch, cancel, err := ps.Subscribe("lcm.cancel")
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected channel closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestRedisUnreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := NewRedisPubSub(ctx, &redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1}, nil)
	if err == nil {
		t.Fatal("expected error connecting to closed port")
	}
}

func TestOpenRedisURL(t *testing.T) {
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer s.Close()

	ps, err := Open(context.Background(), "redis://"+s.Addr()+"/0", nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer ps.Close()
	if _, ok := ps.(*RedisPubSub); !ok {
		t.Fatalf("expected *RedisPubSub, got %T", ps)
	}
}
