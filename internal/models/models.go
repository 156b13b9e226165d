/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import (
	"encoding/json"
	"strings"
	"time"
)

// TrackStatus tracks media processing progress.
type TrackStatus string

const (
	TrackPending   TrackStatus = "pending"
	TrackProcessed TrackStatus = "processed"
	TrackError     TrackStatus = "error"
)

// Track is a playable unit with display metadata and a trim window.
// Only processed tracks are eligible for scheduling or listener picks.
type Track struct {
	ID            string   `gorm:"type:uuid;primaryKey"`
	Title         string   `gorm:"index"`
	Artist        string   `gorm:"index"`
	Participants  []string `gorm:"serializer:json"`
	Album         string
	Year          int
	Label         string
	Director      string
	MediaRef      string
	TotalDuration time.Duration
	TrimStart     time.Duration
	TrimEnd       time.Duration
	IsCommercial  bool        `gorm:"index"`
	WeekdayMask   uint8       `gorm:"type:smallint"`
	Status        TrackStatus `gorm:"type:varchar(16);index"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// EffectiveDuration is the playable range of the trim window. This is the
// only duration relevant to playback timing.
func (t *Track) EffectiveDuration() time.Duration {
	d := t.TrimEnd - t.TrimStart
	if d < 0 {
		return 0
	}
	return d
}

// AvailableOn reports whether the track may play on the given weekday.
// A zero mask means available every day.
func (t *Track) AvailableOn(day time.Weekday) bool {
	if t.WeekdayMask == 0 {
		return true
	}
	return t.WeekdayMask&(1<<uint(day)) != 0
}

// Playable reports whether the trim window is sane and processing finished.
func (t *Track) Playable() bool {
	return t.Status == TrackProcessed &&
		t.TrimStart >= 0 &&
		t.TrimStart < t.TrimEnd &&
		t.TrimEnd <= t.TotalDuration
}

// Program is an ordered track-id sequence owned by editors. The scheduler
// only ever consumes a copy of the id list, never the row itself.
type Program struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Name        string `gorm:"index"`
	Description string `gorm:"type:text"`
	TrackIDs    string `gorm:"type:text"`
	CoverRef    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TrackIDList decodes the stored id sequence. Malformed data decodes to an
// empty list, never an error.
func (p *Program) TrackIDList() []string {
	raw := strings.TrimSpace(p.TrackIDs)
	if raw == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

// SetTrackIDList encodes the id sequence for storage.
func (p *Program) SetTrackIDList(ids []string) {
	encoded, err := json.Marshal(ids)
	if err != nil {
		p.TrackIDs = "[]"
		return
	}
	p.TrackIDs = string(encoded)
}

// RecurrenceRule records how a schedule slot was created. It never affects
// scheduler reads, which only see resolved per-date slots.
type RecurrenceRule string

const (
	RecurrenceNone             RecurrenceRule = "none"
	RecurrenceSameWeekdayMonth RecurrenceRule = "same_weekday_this_month"
)

// SlotsPerDay is the size of the 10-minute calendar grid.
const SlotsPerDay = 144

// ScheduleSlot maps (date, 10-minute slot index) to a program, or to
// explicit silence when ProgramID is null.
type ScheduleSlot struct {
	ID         string         `gorm:"type:uuid;primaryKey"`
	Date       string         `gorm:"type:varchar(10);index:idx_schedule_slot,unique"`
	SlotIndex  int            `gorm:"index:idx_schedule_slot,unique"`
	ProgramID  *string        `gorm:"type:uuid"`
	Recurrence RecurrenceRule `gorm:"type:varchar(32)"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// RequestStatus is the request lifecycle state.
type RequestStatus string

const (
	RequestPending   RequestStatus = "pending"
	RequestPlayed    RequestStatus = "played"
	RequestVetoed    RequestStatus = "vetoed"
	RequestSuggested RequestStatus = "suggested"
)

// OperatorToken marks requests injected by the booth operator.
const OperatorToken = "DJ"

// Request is a listener or operator submission. A null TrackID is a
// free-text suggestion recorded for review, never queued for playback.
type Request struct {
	ID             string        `gorm:"type:uuid;primaryKey"`
	TrackID        *string       `gorm:"type:uuid;index"`
	RequesterToken string        `gorm:"type:varchar(64);index"`
	OriginUnit     string        `gorm:"type:varchar(64);index"`
	Status         RequestStatus `gorm:"type:varchar(16);index"`
	FreeTextTerm   *string       `gorm:"type:text"`
	CreatedAt      time.Time     `gorm:"index"`
	ResolvedAt     *time.Time
}

// WeekdayDefault configures the fallback program for one weekday.
type WeekdayDefault struct {
	Weekday   int    `gorm:"primaryKey"`
	ProgramID string `gorm:"type:uuid"`
	UpdatedAt time.Time
}

// PlayHistory records each committed transition for reporting.
type PlayHistory struct {
	ID        string    `gorm:"type:uuid;primaryKey"`
	TrackID   string    `gorm:"type:uuid;index"`
	Origin    string    `gorm:"type:varchar(24)"`
	Deck      string    `gorm:"type:varchar(1)"`
	StartedAt time.Time `gorm:"index"`
}
