/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maestro

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/caravelradio/maestro/internal/catalog"
	"github.com/caravelradio/maestro/internal/clock"
	"github.com/caravelradio/maestro/internal/events"
	"github.com/caravelradio/maestro/internal/models"
	"github.com/caravelradio/maestro/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// maxResolveAttempts bounds the skip-and-retry loop of one transition so
// a catalog full of dead ids cannot spin the tick.
const maxResolveAttempts = 32

// persistTimeout bounds best-effort status writes during a transition.
const persistTimeout = 2 * time.Second

// Options tune the scheduler. Zero values take defaults.
type Options struct {
	TickInterval    time.Duration
	CrossfadeWindow time.Duration
	CommercialEvery int
	Clock           clock.Clock
	Rand            *rand.Rand
}

// Maestro drives the playback state machine. All state mutation is
// serialized under one mutex: the tick, operator commands, and request
// intake never interleave.
type Maestro struct {
	db      *gorm.DB
	catalog *catalog.Service
	bus     *events.Bus
	clock   clock.Clock
	rng     *rand.Rand
	logger  zerolog.Logger

	tickInterval    time.Duration
	crossfadeWindow time.Duration
	commercialEvery int

	mu              sync.Mutex
	st              State
	lastCheckedHour int
}

// New creates the scheduler. Call Bootstrap before Run.
func New(db *gorm.DB, catalogSvc *catalog.Service, bus *events.Bus, opts Options, logger zerolog.Logger) *Maestro {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 250 * time.Millisecond
	}
	if opts.CrossfadeWindow <= 0 {
		opts.CrossfadeWindow = 4 * time.Second
	}
	if opts.CommercialEvery <= 0 {
		opts.CommercialEvery = 10
	}
	if opts.Clock == nil {
		opts.Clock = clock.System{}
	}
	if opts.Rand == nil {
		opts.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &Maestro{
		db:              db,
		catalog:         catalogSvc,
		bus:             bus,
		clock:           opts.Clock,
		rng:             opts.Rand,
		logger:          logger.With().Str("component", "maestro").Logger(),
		tickInterval:    opts.TickInterval,
		crossfadeWindow: opts.CrossfadeWindow,
		commercialEvery: opts.CommercialEvery,
		st: State{
			Deck:      DeckA,
			Fallbacks: make(map[time.Weekday]string),
		},
		lastCheckedHour: -1,
	}
}

// Bootstrap loads the cached catalog config: the commercial pool and the
// weekday fallback map. Queues always start empty.
func (m *Maestro) Bootstrap(ctx context.Context) {
	pool := m.catalog.RefreshCommercialPool(ctx)
	fallbacks := m.catalog.FallbackPrograms(ctx)

	m.mu.Lock()
	m.st.CommercialPool = pool
	if fallbacks != nil {
		m.st.Fallbacks = fallbacks
	}
	m.mu.Unlock()

	m.logger.Info().
		Int("commercial_pool", len(pool)).
		Int("weekday_fallbacks", len(fallbacks)).
		Msg("catalog config loaded")
}

// Run executes the tick loop until context cancellation.
func (m *Maestro) Run(ctx context.Context) error {
	m.logger.Info().Dur("tick", m.tickInterval).Msg("maestro started")
	ticker := time.NewTicker(m.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("maestro stopped")
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick advances the state machine by one interval. The calendar check
// rides the same tick so no two checks ever run concurrently.
func (m *Maestro) tick(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	telemetry.TicksTotal.Inc()
	now := m.clock.Now()
	m.checkCalendar(ctx, now)

	if m.st.Current == nil {
		m.transition(ctx)
		return
	}

	m.st.Elapsed += m.tickInterval
	effective := m.st.Current.Track.EffectiveDuration()

	m.bus.Publish(events.EventProgress, events.Payload{
		"elapsedSeconds": m.st.Elapsed.Seconds(),
		"totalSeconds":   effective.Seconds(),
	})

	if !m.st.Crossfading && m.st.Elapsed >= effective-m.crossfadeWindow {
		if next, origin, ok := m.peekNext(ctx); ok {
			m.st.Crossfading = true
			telemetry.CrossfadesTotal.Inc()
			m.bus.Publish(events.EventCrossfadeBegin, events.Payload{
				"fromDeck":  string(m.st.Deck),
				"toDeck":    string(m.st.Deck.Other()),
				"nextTrack": trackPayload(next),
				"origin":    string(origin),
			})
		}
	}

	if m.st.Elapsed >= effective {
		m.transition(ctx)
	}
}

// transition performs the committing transition: dequeue the next pick,
// swap decks, reset elapsed time, and broadcast. Unresolvable picks are
// skipped, never fatal. Caller holds the lock.
func (m *Maestro) transition(ctx context.Context) {
	day := m.clock.Now().Weekday()

	for attempt := 0; attempt < maxResolveAttempts; attempt++ {
		next, ok := m.resolveNext(ctx)
		if !ok {
			m.enterSilence()
			return
		}

		track, err := m.catalog.GetTrack(ctx, next.trackID)
		if err != nil || !track.Playable() || !track.AvailableOn(day) {
			m.discardPick(ctx, next)
			continue
		}

		m.commit(ctx, next, track)
		return
	}

	m.logger.Warn().Msg("resolve attempts exhausted, entering silence")
	m.enterSilence()
}

func (m *Maestro) commit(ctx context.Context, next pick, track *models.Track) {
	switch next.origin {
	case OriginManualCommercial, OriginAutoCommercial:
		m.st.SinceCommercial = 0
	case OriginFallback:
		m.st.SinceCommercial = 1
	default:
		m.st.SinceCommercial++
	}

	if next.origin == OriginRequest {
		m.markRequest(next.request.ID, models.RequestPlayed)
	}

	m.st.Deck = m.st.Deck.Other()
	m.st.Elapsed = 0
	m.st.Crossfading = false
	m.st.Current = &NowPlaying{
		Track:     track,
		Origin:    next.origin,
		RequestID: next.request.ID,
		Tag:       next.request.Tag,
		Unit:      next.request.OriginUnit,
	}

	m.recordHistory(track.ID, next.origin)
	telemetry.TransitionsTotal.WithLabelValues(string(next.origin)).Inc()
	m.updateQueueGauges()

	m.logger.Info().
		Str("track_id", track.ID).
		Str("title", track.Title).
		Str("origin", string(next.origin)).
		Str("deck", string(m.st.Deck)).
		Msg("playing now")

	m.bus.Publish(events.EventPlaying, events.Payload{
		"deck":   string(m.st.Deck),
		"track":  trackPayload(track),
		"origin": string(next.origin),
	})
	m.publishQueue(ctx)
}

// enterSilence clears the current track and broadcasts stop. The next
// tick retries resolution, so silence heals itself once content appears.
func (m *Maestro) enterSilence() {
	m.st.Current = nil
	m.st.Elapsed = 0
	m.st.Crossfading = false
	telemetry.SilenceTicksTotal.Inc()
	m.bus.Publish(events.EventStop, events.Payload{})
}

// discardPick handles a pick whose track cannot be resolved. Commercial
// pool entries are dropped so a dead id stops being re-drawn; a request
// is terminal once dequeued, so it resolves to vetoed.
func (m *Maestro) discardPick(ctx context.Context, next pick) {
	m.logger.Warn().
		Str("track_id", next.trackID).
		Str("origin", string(next.origin)).
		Msg("skipping unresolvable candidate")

	switch next.origin {
	case OriginAutoCommercial:
		pool := m.st.CommercialPool[:0]
		for _, id := range m.st.CommercialPool {
			if id != next.trackID {
				pool = append(pool, id)
			}
		}
		m.st.CommercialPool = pool
	case OriginRequest:
		m.markRequest(next.request.ID, models.RequestVetoed)
	}
}

// markRequest persists a request status change. Fire-and-forget: the
// in-memory queue is the source of truth for playback, a failed write is
// logged and swallowed.
func (m *Maestro) markRequest(requestID string, status models.RequestStatus) {
	if requestID == "" || m.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	now := m.clock.Now()
	err := m.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("id = ?", requestID).
		Updates(map[string]any{"status": status, "resolved_at": &now}).Error
	if err != nil {
		m.logger.Warn().Err(err).Str("request_id", requestID).Str("status", string(status)).Msg("request status update failed")
	}
}

// recordHistory appends a play history row, best effort.
func (m *Maestro) recordHistory(trackID string, origin Origin) {
	if m.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	entry := models.PlayHistory{
		ID:        uuid.NewString(),
		TrackID:   trackID,
		Origin:    string(origin),
		Deck:      string(m.st.Deck),
		StartedAt: m.clock.Now(),
	}
	if err := m.db.WithContext(ctx).Create(&entry).Error; err != nil {
		m.logger.Warn().Err(err).Str("track_id", trackID).Msg("play history write failed")
	}
}

func (m *Maestro) updateQueueGauges() {
	telemetry.QueueDepth.WithLabelValues("manual_commercial").Set(float64(len(m.st.ManualCommercials)))
	telemetry.QueueDepth.WithLabelValues("requests").Set(float64(len(m.st.Requests)))
	telemetry.QueueDepth.WithLabelValues("program").Set(float64(len(m.st.Program)))
}

func trackPayload(track *models.Track) map[string]any {
	if track == nil {
		return nil
	}
	return map[string]any{
		"id":              track.ID,
		"title":           track.Title,
		"artist":          track.Artist,
		"participants":    track.Participants,
		"album":           track.Album,
		"durationSeconds": track.EffectiveDuration().Seconds(),
	}
}
