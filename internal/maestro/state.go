/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package maestro implements the playback scheduler: the authoritative
// state machine tracking what plays now, what plays next, crossfade
// timing, and calendar program activation.
package maestro

import (
	"time"

	"github.com/caravelradio/maestro/internal/models"
)

// Deck identifies one of the two logical playback channels. Decks
// alternate on every transition so the previous one can fade out.
type Deck string

const (
	DeckA Deck = "A"
	DeckB Deck = "B"
)

// Other returns the opposite deck.
func (d Deck) Other() Deck {
	if d == DeckA {
		return DeckB
	}
	return DeckA
}

// Origin tags where a pick came from.
type Origin string

const (
	OriginManualCommercial Origin = "manual_commercial"
	OriginAutoCommercial   Origin = "auto_commercial"
	OriginRequest          Origin = "request"
	OriginProgram          Origin = "program"
	OriginFallback         Origin = "fallback"
)

// RequestTagJukebox tags listener submissions without a unit marker.
const RequestTagJukebox = "JUKEBOX"

// QueuedRequest is an in-memory request queue entry.
type QueuedRequest struct {
	ID             string
	TrackID        string
	RequesterToken string
	OriginUnit     string
	Tag            string
}

// NowPlaying snapshots the current track and its origin.
type NowPlaying struct {
	Track     *models.Track
	Origin    Origin
	RequestID string
	Tag       string
	Unit      string
}

// State is the process-wide radio state. It is rebuilt from cached
// config plus empty queues on restart, never persisted, and mutated
// only under the Maestro lock.
type State struct {
	Current     *NowPlaying
	Elapsed     time.Duration
	Deck        Deck
	Crossfading bool

	ManualCommercials []string
	Requests          []QueuedRequest

	Program              []string
	ProgramCalendarOwned bool
	CalendarProgramID    string
	OverlayRef           string

	CommercialPool []string
	Fallbacks      map[time.Weekday]string

	// SinceCommercial counts plays since the last commercial. It resets
	// to zero whenever a commercial plays.
	SinceCommercial int
}
