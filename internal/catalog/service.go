/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog provides read-only lookups against the media catalog.
// Failures surface as not-found or empty results, never as process-fatal
// errors: playback must keep running through a degraded catalog.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/caravelradio/maestro/internal/cache"
	"github.com/caravelradio/maestro/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrTrackNotFound indicates the track does not exist or cannot be read.
// Callers must treat it as "skip and retry", never as fatal.
var ErrTrackNotFound = errors.New("track not found")

// queryTimeout bounds every catalog read so a hanging database call never
// stalls the playback tick.
const queryTimeout = 2 * time.Second

// Service performs catalog reads, optionally through a Redis cache.
type Service struct {
	db     *gorm.DB
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewService creates a catalog accessor. The cache may be nil.
func NewService(db *gorm.DB, entityCache *cache.Cache, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		cache:  entityCache,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// GetTrack returns the full track record or ErrTrackNotFound.
func (s *Service) GetTrack(ctx context.Context, trackID string) (*models.Track, error) {
	if trackID == "" {
		return nil, ErrTrackNotFound
	}

	if s.cache != nil {
		if track, ok := s.cache.GetTrack(ctx, trackID); ok {
			return track, nil
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var track models.Track
	err := s.db.WithContext(queryCtx).First(&track, "id = ?", trackID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTrackNotFound
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("track_id", trackID).Msg("track lookup failed")
		return nil, fmt.Errorf("track lookup: %w", ErrTrackNotFound)
	}

	if s.cache != nil {
		s.cache.SetTrack(ctx, &track)
	}
	return &track, nil
}

// ProgramTrackIDs returns the ordered id sequence of a program. A missing
// or empty program yields an empty list.
func (s *Service) ProgramTrackIDs(ctx context.Context, programID string) []string {
	if programID == "" {
		return nil
	}

	if s.cache != nil {
		if ids, ok := s.cache.GetProgramTrackIDs(ctx, programID); ok {
			return append([]string(nil), ids...)
		}
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var program models.Program
	err := s.db.WithContext(queryCtx).First(&program, "id = ?", programID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Str("program_id", programID).Msg("program lookup failed")
		}
		return nil
	}

	ids := program.TrackIDList()
	if s.cache != nil {
		s.cache.SetProgramTrackIDs(ctx, programID, ids)
	}
	return ids
}

// GetProgram returns the program record, or nil when missing.
func (s *Service) GetProgram(ctx context.Context, programID string) *models.Program {
	if programID == "" {
		return nil
	}

	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var program models.Program
	if err := s.db.WithContext(queryCtx).First(&program, "id = ?", programID).Error; err != nil {
		return nil
	}
	return &program
}

// RefreshCommercialPool re-reads the ids of all processed commercial
// tracks. Used at startup and on catalog changes.
func (s *Service) RefreshCommercialPool(ctx context.Context) []string {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var ids []string
	err := s.db.WithContext(queryCtx).
		Model(&models.Track{}).
		Where("is_commercial = ?", true).
		Where("status = ?", models.TrackProcessed).
		Order("created_at ASC").
		Pluck("id", &ids).Error
	if err != nil {
		s.logger.Warn().Err(err).Msg("commercial pool refresh failed")
		return nil
	}
	return ids
}

// FallbackProgramID looks up the configured default program for a weekday.
func (s *Service) FallbackProgramID(ctx context.Context, day time.Weekday) (string, bool) {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var def models.WeekdayDefault
	err := s.db.WithContext(queryCtx).First(&def, "weekday = ?", int(day)).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Int("weekday", int(day)).Msg("fallback lookup failed")
		}
		return "", false
	}
	if def.ProgramID == "" {
		return "", false
	}
	return def.ProgramID, true
}

// FallbackPrograms loads the whole weekday default map.
func (s *Service) FallbackPrograms(ctx context.Context) map[time.Weekday]string {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var defs []models.WeekdayDefault
	if err := s.db.WithContext(queryCtx).Find(&defs).Error; err != nil {
		s.logger.Warn().Err(err).Msg("fallback map load failed")
		return nil
	}

	out := make(map[time.Weekday]string, len(defs))
	for _, def := range defs {
		if def.ProgramID != "" {
			out[time.Weekday(def.Weekday)] = def.ProgramID
		}
	}
	return out
}

// ScheduledSlot returns the schedule row for (date, slotIndex), or nil
// when no row exists.
func (s *Service) ScheduledSlot(ctx context.Context, date string, slotIndex int) *models.ScheduleSlot {
	queryCtx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var slot models.ScheduleSlot
	err := s.db.WithContext(queryCtx).
		Where("date = ?", date).
		Where("slot_index = ?", slotIndex).
		First(&slot).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn().Err(err).Str("date", date).Int("slot", slotIndex).Msg("schedule slot lookup failed")
		}
		return nil
	}
	return &slot
}
