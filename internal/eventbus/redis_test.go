/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/caravelradio/maestro/internal/events"
)

func TestRedisMirrorForwardsEvents(t *testing.T) {
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	bus := events.NewBus()
	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()

	mirror, err := NewRedisMirror(cfg, "maestro:events", bus, "node-test", zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRedisMirror: %v", err)
	}
	defer mirror.Close()

	listener := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer listener.Close()
	pubsub := listener.Subscribe(context.Background(), "maestro:events")
	defer pubsub.Close()
	if _, err := pubsub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = mirror.Run(ctx) }()

	// Give the mirror a moment to register its bus subscription.
	deadline := time.Now().Add(time.Second)
	for {
		bus.Publish(events.EventPlaying, events.Payload{"deck": "A"})
		msg, err := pubsub.ReceiveTimeout(context.Background(), 100*time.Millisecond)
		if err == nil {
			raw, ok := msg.(*redis.Message)
			if !ok {
				continue
			}
			var decoded message
			if err := json.Unmarshal([]byte(raw.Payload), &decoded); err != nil {
				t.Fatalf("decode mirrored message: %v", err)
			}
			if decoded.EventType != events.EventPlaying || decoded.NodeID != "node-test" {
				t.Errorf("mirrored message = %+v", decoded)
			}
			return
		}
		if time.Now().After(deadline) {
			t.Fatal("mirrored event never arrived")
		}
	}
}

func TestNewRedisMirrorUnreachable(t *testing.T) {
	cfg := DefaultRedisConfig()
	cfg.Addr = "127.0.0.1:1"
	cfg.DialTimeout = 200 * time.Millisecond

	if _, err := NewRedisMirror(cfg, "maestro:events", events.NewBus(), "", zerolog.Nop()); err == nil {
		t.Fatal("expected a connect error")
	}
}
