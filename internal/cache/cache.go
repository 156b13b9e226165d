/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package cache provides a Redis-based caching layer for catalog reads.
package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/caravelradio/maestro/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Default TTL values.
const (
	DefaultTrackTTL   = 1 * time.Hour
	DefaultProgramTTL = 5 * time.Minute
)

// Key prefixes for Redis cache.
const (
	KeyTrack   = "maestro:cache:track:"   // + track_id
	KeyProgram = "maestro:cache:program:" // + program_id
)

// Config contains cache configuration.
type Config struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	TrackTTL   time.Duration
	ProgramTTL time.Duration
}

// DefaultConfig returns default cache configuration.
func DefaultConfig() Config {
	return Config{
		RedisAddr:  "localhost:6379",
		TrackTTL:   DefaultTrackTTL,
		ProgramTTL: DefaultProgramTTL,
	}
}

// Cache provides Redis-backed caching with graceful fallback. A cache
// that cannot reach Redis reports misses and swallows writes; catalog
// reads always keep working against the database.
type Cache struct {
	client *redis.Client
	logger zerolog.Logger
	config Config

	mu       sync.RWMutex
	disabled bool
}

// New creates a new cache instance.
func New(cfg Config, logger zerolog.Logger) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr,
		Password:     cfg.RedisPassword,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn().Err(err).Msg("Redis cache unavailable, running without caching")
		return &Cache{
			logger:   logger.With().Str("component", "cache").Logger(),
			config:   cfg,
			disabled: true,
		}, nil
	}

	logger.Info().Str("addr", cfg.RedisAddr).Msg("Redis cache initialized")

	return &Cache{
		client: client,
		logger: logger.With().Str("component", "cache").Logger(),
		config: cfg,
	}, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Available reports whether the cache is operational.
func (c *Cache) Available() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.disabled && c.client != nil
}

func (c *Cache) get(ctx context.Context, key string, dest any) bool {
	if !c.Available() {
		return false
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Debug().Err(err).Str("key", key).Msg("cache read failed")
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache entry malformed")
		return false
	}
	return true
}

func (c *Cache) set(ctx context.Context, key string, value any, ttl time.Duration) {
	if !c.Available() {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// GetTrack returns a cached track, if present.
func (c *Cache) GetTrack(ctx context.Context, trackID string) (*models.Track, bool) {
	var track models.Track
	if !c.get(ctx, KeyTrack+trackID, &track) {
		return nil, false
	}
	return &track, true
}

// SetTrack stores a track.
func (c *Cache) SetTrack(ctx context.Context, track *models.Track) {
	c.set(ctx, KeyTrack+track.ID, track, c.config.TrackTTL)
}

// InvalidateTrack drops a cached track.
func (c *Cache) InvalidateTrack(ctx context.Context, trackID string) {
	if !c.Available() {
		return
	}
	if err := c.client.Del(ctx, KeyTrack+trackID).Err(); err != nil {
		c.logger.Debug().Err(err).Str("track_id", trackID).Msg("cache invalidate failed")
	}
}

// GetProgramTrackIDs returns a cached program id sequence, if present.
func (c *Cache) GetProgramTrackIDs(ctx context.Context, programID string) ([]string, bool) {
	var ids []string
	if !c.get(ctx, KeyProgram+programID, &ids) {
		return nil, false
	}
	return ids, true
}

// SetProgramTrackIDs stores a program id sequence.
func (c *Cache) SetProgramTrackIDs(ctx context.Context, programID string, ids []string) {
	c.set(ctx, KeyProgram+programID, ids, c.config.ProgramTTL)
}
