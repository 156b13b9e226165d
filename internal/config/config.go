/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Event fanout backend selection.
type EventBusBackend string

const (
	EventBusMemory EventBusBackend = "memory"
	EventBusRedis  EventBusBackend = "redis"
	EventBusNATS   EventBusBackend = "nats"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string
	InstanceID  string

	DBBackend DatabaseBackend
	DBDSN     string

	// Playback timing
	TickInterval    time.Duration
	CrossfadeWindow time.Duration
	CommercialEvery int

	// Listener intake
	RequestWindow      time.Duration
	RequestLimit       int
	JukeboxIPRateLimit int // requests per minute per IP at the HTTP edge

	// Redis (catalog cache + optional event fanout)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheEnabled  bool

	// Event fanout for external display surfaces
	EventBus     EventBusBackend
	EventChannel string
	NATSURL      string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("MAESTRO_ENV", "development"),
		HTTPBind:    getEnv("MAESTRO_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("MAESTRO_HTTP_PORT", 8080),
		MetricsBind: getEnv("MAESTRO_METRICS_BIND", "127.0.0.1:9000"),
		InstanceID:  getEnv("MAESTRO_INSTANCE_ID", ""),

		DBBackend: DatabaseBackend(getEnv("MAESTRO_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("MAESTRO_DB_DSN", ""),

		TickInterval:    time.Duration(getEnvInt("MAESTRO_TICK_MS", 250)) * time.Millisecond,
		CrossfadeWindow: time.Duration(getEnvInt("MAESTRO_CROSSFADE_SECONDS", 4)) * time.Second,
		CommercialEvery: getEnvInt("MAESTRO_COMMERCIAL_EVERY", 10),

		RequestWindow:      time.Duration(getEnvInt("MAESTRO_REQUEST_WINDOW_MINUTES", 10)) * time.Minute,
		RequestLimit:       getEnvInt("MAESTRO_REQUEST_LIMIT", 5),
		JukeboxIPRateLimit: getEnvInt("MAESTRO_JUKEBOX_IP_RATE_LIMIT", 30),

		RedisAddr:     getEnv("MAESTRO_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("MAESTRO_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("MAESTRO_REDIS_DB", 0),
		CacheEnabled:  getEnvBool("MAESTRO_CACHE_ENABLED", false),

		EventBus:     EventBusBackend(getEnv("MAESTRO_EVENT_BUS", string(EventBusMemory))),
		EventChannel: getEnv("MAESTRO_EVENT_CHANNEL", "maestro:events"),
		NATSURL:      getEnv("MAESTRO_NATS_URL", "nats://localhost:4222"),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("MAESTRO_DB_DSN must be provided")
	}
	if cfg.EventBus != EventBusMemory && cfg.EventBus != EventBusRedis && cfg.EventBus != EventBusNATS {
		return nil, fmt.Errorf("unsupported event bus backend %q", cfg.EventBus)
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("MAESTRO_TICK_MS must be positive")
	}
	if cfg.CrossfadeWindow < 0 {
		return nil, fmt.Errorf("MAESTRO_CROSSFADE_SECONDS must not be negative")
	}
	if cfg.CommercialEvery <= 0 {
		return nil, fmt.Errorf("MAESTRO_COMMERCIAL_EVERY must be positive")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}
