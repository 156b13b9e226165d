/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventbus

import (
	"context"
	"fmt"
	"time"

	"github.com/caravelradio/maestro/internal/events"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig contains Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultRedisConfig returns default Redis configuration.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// RedisMirror publishes scheduler events onto a Redis channel.
type RedisMirror struct {
	client  *redis.Client
	bus     *events.Bus
	channel string
	nodeID  string
	logger  zerolog.Logger
}

// NewRedisMirror connects to Redis and prepares the mirror.
func NewRedisMirror(cfg RedisConfig, channel string, bus *events.Bus, instanceID string, logger zerolog.Logger) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis mirror connect: %w", err)
	}

	return &RedisMirror{
		client:  client,
		bus:     bus,
		channel: channel,
		nodeID:  nodeID(instanceID),
		logger:  logger.With().Str("component", "eventbus-redis").Logger(),
	}, nil
}

// Run forwards every local event to the Redis channel until context
// cancellation. Publish failures are logged, never propagated to the
// scheduler.
func (m *RedisMirror) Run(ctx context.Context) error {
	sub := m.bus.Subscribe(events.EventAny)
	defer m.bus.Unsubscribe(events.EventAny, sub)

	m.logger.Info().Str("channel", m.channel).Msg("redis event mirror started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-sub:
			if !ok {
				return nil
			}
			raw, err := encodeMessage(evt, m.nodeID)
			if err != nil {
				continue
			}
			if err := m.client.Publish(ctx, m.channel, raw).Err(); err != nil {
				m.logger.Warn().Err(err).Str("event", string(evt.Type)).Msg("redis publish failed")
			}
		}
	}
}

// Close releases the Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
