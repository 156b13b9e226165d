/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package intake validates, rate-limits, persists, and enqueues listener
// and operator requests.
package intake

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/caravelradio/maestro/internal/maestro"
	"github.com/caravelradio/maestro/internal/models"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var (
	// ErrEmptyToken indicates a blank requester token after trimming.
	ErrEmptyToken = errors.New("requester token is required")

	// ErrRateLimited indicates the requester exceeded the pending
	// request limit inside the sliding window.
	ErrRateLimited = errors.New("too many pending requests, try again later")

	// ErrPersist indicates the request row could not be stored. The
	// submission is rejected: accepting without a durable row would
	// corrupt rate limiting across restarts.
	ErrPersist = errors.New("request could not be recorded")
)

// Service is the request intake layer.
type Service struct {
	db     *gorm.DB
	sched  *maestro.Maestro
	logger zerolog.Logger
	window time.Duration
	limit  int

	// mu serializes the window count with the insert. Two concurrent
	// submissions must never both observe the same pending count.
	mu sync.Mutex
}

// NewService creates the intake service.
func NewService(db *gorm.DB, sched *maestro.Maestro, window time.Duration, limit int, logger zerolog.Logger) *Service {
	if window <= 0 {
		window = 10 * time.Minute
	}
	if limit <= 0 {
		limit = 5
	}
	return &Service{
		db:     db,
		sched:  sched,
		logger: logger.With().Str("component", "intake").Logger(),
		window: window,
		limit:  limit,
	}
}

// Result reports an accepted submission.
type Result struct {
	RequestID string
	// Position is the 1-based slot across the combined manual commercial
	// and request queues at insertion. Zero for suggestions, which never
	// enter the playback queue.
	Position int
}

// Submit handles a listener submission. A nil trackID is a free-text
// suggestion: recorded for operator review, never queued for playback.
// Rejections come back as ErrEmptyToken, ErrRateLimited,
// maestro.ErrTrackUnavailable, or ErrPersist.
func (s *Service) Submit(ctx context.Context, trackID *string, freeText, token, unit string) (*Result, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrEmptyToken
	}
	unit = strings.TrimSpace(unit)
	if unit == "" {
		unit = maestro.RequestTagJukebox
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.pendingInWindow(ctx, token, unit)
	if err != nil {
		s.logger.Warn().Err(err).Str("token", token).Msg("rate limit check failed")
		return nil, ErrPersist
	}
	if pending >= int64(s.limit) {
		return nil, ErrRateLimited
	}

	if trackID == nil || strings.TrimSpace(*trackID) == "" {
		return s.recordSuggestion(ctx, freeText, token, unit)
	}

	id := strings.TrimSpace(*trackID)
	if err := s.sched.ValidateRequestTrack(ctx, id); err != nil {
		return nil, err
	}

	row := models.Request{
		ID:             uuid.NewString(),
		TrackID:        &id,
		RequesterToken: token,
		OriginUnit:     unit,
		Status:         models.RequestPending,
		CreatedAt:      s.sched.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error().Err(err).Str("token", token).Msg("request insert failed")
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	position := s.sched.EnqueueRequest(ctx, maestro.QueuedRequest{
		ID:             row.ID,
		TrackID:        id,
		RequesterToken: token,
		OriginUnit:     unit,
		Tag:            maestro.RequestTagJukebox,
	})

	s.logger.Info().
		Str("request_id", row.ID).
		Str("track_id", id).
		Str("unit", unit).
		Int("position", position).
		Msg("request accepted")

	return &Result{RequestID: row.ID, Position: position}, nil
}

// SubmitOperator enqueues a booth request tagged DJ. Operator
// submissions bypass the rate limiter.
func (s *Service) SubmitOperator(ctx context.Context, trackID string) (*Result, error) {
	trackID = strings.TrimSpace(trackID)
	if err := s.sched.ValidateRequestTrack(ctx, trackID); err != nil {
		return nil, err
	}

	row := models.Request{
		ID:             uuid.NewString(),
		TrackID:        &trackID,
		RequesterToken: models.OperatorToken,
		OriginUnit:     models.OperatorToken,
		Status:         models.RequestPending,
		CreatedAt:      s.sched.Now(),
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error().Err(err).Str("track_id", trackID).Msg("operator request insert failed")
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	position := s.sched.EnqueueRequest(ctx, maestro.QueuedRequest{
		ID:             row.ID,
		TrackID:        trackID,
		RequesterToken: models.OperatorToken,
		OriginUnit:     models.OperatorToken,
		Tag:            models.OperatorToken,
	})

	return &Result{RequestID: row.ID, Position: position}, nil
}

// Veto removes a pending request from the playback queue and persists
// the veto. Unknown ids are a no-op.
func (s *Service) Veto(ctx context.Context, requestID string) {
	s.sched.VetoRequest(ctx, requestID)
}

// Suggestions lists recorded free-text suggestions for operator review,
// newest first.
func (s *Service) Suggestions(ctx context.Context, limit int) ([]models.Request, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []models.Request
	err := s.db.WithContext(ctx).
		Where("status = ?", models.RequestSuggested).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list suggestions: %w", err)
	}
	return rows, nil
}

// pendingInWindow counts still-pending requests for (token, unit)
// created inside the sliding window, evaluated at submission time.
func (s *Service) pendingInWindow(ctx context.Context, token, unit string) (int64, error) {
	cutoff := s.sched.Now().Add(-s.window)
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Request{}).
		Where("requester_token = ?", token).
		Where("origin_unit = ?", unit).
		Where("status = ?", models.RequestPending).
		Where("created_at > ?", cutoff).
		Count(&count).Error
	return count, err
}

func (s *Service) recordSuggestion(ctx context.Context, freeText, token, unit string) (*Result, error) {
	term := strings.TrimSpace(freeText)
	row := models.Request{
		ID:             uuid.NewString(),
		RequesterToken: token,
		OriginUnit:     unit,
		Status:         models.RequestSuggested,
		CreatedAt:      s.sched.Now(),
	}
	if term != "" {
		row.FreeTextTerm = &term
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		s.logger.Error().Err(err).Str("token", token).Msg("suggestion insert failed")
		return nil, fmt.Errorf("%w: %v", ErrPersist, err)
	}

	s.logger.Info().Str("request_id", row.ID).Str("unit", unit).Msg("suggestion recorded")
	return &Result{RequestID: row.ID}, nil
}
