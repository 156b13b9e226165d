/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/caravelradio/maestro/internal/api"
	"github.com/caravelradio/maestro/internal/cache"
	"github.com/caravelradio/maestro/internal/catalog"
	"github.com/caravelradio/maestro/internal/config"
	"github.com/caravelradio/maestro/internal/db"
	"github.com/caravelradio/maestro/internal/eventbus"
	"github.com/caravelradio/maestro/internal/events"
	"github.com/caravelradio/maestro/internal/intake"
	"github.com/caravelradio/maestro/internal/maestro"
	"github.com/caravelradio/maestro/internal/telemetry"
)

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	metricsSrv *http.Server
	closers    []func() error

	db     *gorm.DB
	cache  *cache.Cache
	bus    *events.Bus
	sched  *maestro.Maestro
	intake *intake.Service
	api    *api.API
	mirror eventbus.Mirror

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	// Skip the request timeout for the websocket state feed.
	router.Use(func(next http.Handler) http.Handler {
		withTimeout := middleware.Timeout(30 * time.Second)(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			withTimeout.ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:    cfg,
		logger: logger,
		router: router,
		bus:    events.NewBus(),
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.api.Routes(router)
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		// WriteTimeout stays 0 for the websocket feed; handlers manage
		// their own deadlines.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	return srv, nil
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	s.db = database
	s.deferClose(func() error { return db.Close(database) })

	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		entityCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = entityCache
			s.deferClose(func() error { return s.cache.Close() })
		}
	}

	catalogSvc := catalog.NewService(database, s.cache, s.logger)

	s.sched = maestro.New(database, catalogSvc, s.bus, maestro.Options{
		TickInterval:    s.cfg.TickInterval,
		CrossfadeWindow: s.cfg.CrossfadeWindow,
		CommercialEvery: s.cfg.CommercialEvery,
	}, s.logger)
	s.sched.Bootstrap(context.Background())

	s.intake = intake.NewService(database, s.sched, s.cfg.RequestWindow, s.cfg.RequestLimit, s.logger)
	s.api = api.New(s.sched, s.intake, s.bus, s.cfg.JukeboxIPRateLimit, s.logger)

	switch s.cfg.EventBus {
	case config.EventBusRedis:
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		mirror, err := eventbus.NewRedisMirror(redisCfg, s.cfg.EventChannel, s.bus, s.cfg.InstanceID, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("redis event mirror unavailable, events stay local")
		} else {
			s.mirror = mirror
			s.deferClose(mirror.Close)
		}
	case config.EventBusNATS:
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		mirror, err := eventbus.NewNATSMirror(natsCfg, s.bus, s.cfg.InstanceID, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("nats event mirror unavailable, events stay local")
		} else {
			s.mirror = mirror
			s.deferClose(mirror.Close)
		}
	}

	return nil
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		if err := s.sched.Run(ctx); err != nil && err != context.Canceled {
			s.logger.Error().Err(err).Msg("maestro loop exited")
		}
	}()

	if s.mirror != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.mirror.Run(ctx); err != nil && err != context.Canceled {
				s.logger.Error().Err(err).Msg("event mirror exited")
			}
		}()
	}

	if s.cfg.MetricsBind != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", telemetry.Handler())
		s.metricsSrv = &http.Server{
			Addr:              s.cfg.MetricsBind,
			Handler:           mux,
			ReadHeaderTimeout: 15 * time.Second,
		}
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			if err := s.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				s.logger.Error().Err(err).Msg("metrics server exited")
			}
		}()
	}
}

// HTTPServer returns the configured HTTP server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close stops background workers and releases resources.
func (s *Server) Close() error {
	if s.bgCancel != nil {
		s.bgCancel()
	}
	if s.metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = s.metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	s.bgWG.Wait()

	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) deferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}
