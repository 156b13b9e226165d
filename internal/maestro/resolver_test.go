/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maestro

import (
	"context"
	"testing"
	"time"

	"github.com/caravelradio/maestro/internal/models"
)

func TestResolveNextTierOrder(t *testing.T) {
	tests := []struct {
		name            string
		manual          []string
		sinceCommercial int
		pool            []string
		requests        []QueuedRequest
		program         []string
		wantOrigin      Origin
		wantTrackID     string
	}{
		{
			name:            "manual commercial beats everything",
			manual:          []string{"ad-manual"},
			sinceCommercial: 10,
			pool:            []string{"ad-auto"},
			requests:        []QueuedRequest{{ID: "r1", TrackID: "req-track"}},
			program:         []string{"prog-track"},
			wantOrigin:      OriginManualCommercial,
			wantTrackID:     "ad-manual",
		},
		{
			name:            "auto commercial fires at threshold",
			sinceCommercial: 10,
			pool:            []string{"ad-auto"},
			requests:        []QueuedRequest{{ID: "r1", TrackID: "req-track"}},
			program:         []string{"prog-track"},
			wantOrigin:      OriginAutoCommercial,
			wantTrackID:     "ad-auto",
		},
		{
			name:            "auto commercial waits below threshold",
			sinceCommercial: 9,
			pool:            []string{"ad-auto"},
			requests:        []QueuedRequest{{ID: "r1", TrackID: "req-track"}},
			wantOrigin:      OriginRequest,
			wantTrackID:     "req-track",
		},
		{
			name:            "threshold without pool falls through",
			sinceCommercial: 25,
			requests:        []QueuedRequest{{ID: "r1", TrackID: "req-track"}},
			wantOrigin:      OriginRequest,
			wantTrackID:     "req-track",
		},
		{
			name:        "request beats program",
			requests:    []QueuedRequest{{ID: "r1", TrackID: "req-track"}},
			program:     []string{"prog-track"},
			wantOrigin:  OriginRequest,
			wantTrackID: "req-track",
		},
		{
			name:        "program when nothing above",
			program:     []string{"prog-track"},
			wantOrigin:  OriginProgram,
			wantTrackID: "prog-track",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _, _, _ := newTestMaestro(t)
			m.st.ManualCommercials = tt.manual
			m.st.SinceCommercial = tt.sinceCommercial
			m.st.CommercialPool = tt.pool
			m.st.Requests = tt.requests
			m.st.Program = tt.program

			next, ok := m.resolveNext(context.Background())
			if !ok {
				t.Fatal("resolveNext returned no pick")
			}
			if next.origin != tt.wantOrigin {
				t.Errorf("origin = %q, want %q", next.origin, tt.wantOrigin)
			}
			if next.trackID != tt.wantTrackID {
				t.Errorf("trackID = %q, want %q", next.trackID, tt.wantTrackID)
			}
		})
	}
}

func TestResolveNextRequestFIFO(t *testing.T) {
	m, _, _, _ := newTestMaestro(t)
	m.st.Requests = []QueuedRequest{
		{ID: "r1", TrackID: "t1"},
		{ID: "r2", TrackID: "t2"},
		{ID: "r3", TrackID: "t3"},
	}

	ctx := context.Background()
	for _, want := range []string{"t1", "t2", "t3"} {
		next, ok := m.resolveNext(ctx)
		if !ok {
			t.Fatalf("resolveNext exhausted before %q", want)
		}
		if next.trackID != want {
			t.Errorf("trackID = %q, want %q", next.trackID, want)
		}
		if next.origin != OriginRequest {
			t.Errorf("origin = %q, want request", next.origin)
		}
	}
	if _, ok := m.resolveNext(ctx); ok {
		t.Error("resolveNext produced a pick from empty queues")
	}
}

func TestResolveNextFallbackLoadsWeekdayProgram(t *testing.T) {
	m, db, _, _ := newTestMaestro(t)
	seedProgram(t, db, "prog-mon", "Monday Default", []string{"f1", "f2", "f3"})
	m.st.Fallbacks = map[time.Weekday]string{time.Monday: "prog-mon"}

	next, ok := m.resolveNext(context.Background())
	if !ok {
		t.Fatal("resolveNext returned no pick")
	}
	if next.origin != OriginFallback {
		t.Errorf("origin = %q, want fallback", next.origin)
	}
	if next.trackID != "f1" {
		t.Errorf("trackID = %q, want f1", next.trackID)
	}
	if len(m.st.Program) != 2 || m.st.Program[0] != "f2" {
		t.Errorf("remaining program = %v, want [f2 f3]", m.st.Program)
	}
	if m.st.ProgramCalendarOwned {
		t.Error("fallback load must not claim calendar ownership")
	}
}

func TestResolveNextFallbackReadsDatabaseWhenMapCold(t *testing.T) {
	m, db, _, _ := newTestMaestro(t)
	seedProgram(t, db, "prog-mon", "Monday Default", []string{"f1"})
	if err := db.Create(&models.WeekdayDefault{Weekday: int(time.Monday), ProgramID: "prog-mon"}).Error; err != nil {
		t.Fatalf("seed weekday default: %v", err)
	}

	next, ok := m.resolveNext(context.Background())
	if !ok {
		t.Fatal("resolveNext returned no pick")
	}
	if next.origin != OriginFallback || next.trackID != "f1" {
		t.Errorf("pick = %q/%q, want fallback/f1", next.origin, next.trackID)
	}
}

func TestCommercialCadence(t *testing.T) {
	m, db, _, _ := newTestMaestro(t)
	seedTrack(t, db, "ad-1", "Ad", 15*time.Second, true)
	for i := 1; i <= 12; i++ {
		seedTrack(t, db, trackN(i), "Song", 30*time.Second, false)
	}

	m.st.CommercialPool = []string{"ad-1"}
	var program []string
	for i := 1; i <= 12; i++ {
		program = append(program, trackN(i))
	}
	m.st.Program = program

	ctx := context.Background()
	var origins []Origin
	for i := 0; i < 11; i++ {
		m.transition(ctx)
		origins = append(origins, m.st.Current.Origin)
	}

	// Ten program plays, then the pool interrupts on the eleventh.
	for i := 0; i < 10; i++ {
		if origins[i] != OriginProgram {
			t.Fatalf("play %d origin = %q, want program", i+1, origins[i])
		}
	}
	if origins[10] != OriginAutoCommercial {
		t.Fatalf("play 11 origin = %q, want auto_commercial", origins[10])
	}
	if m.st.SinceCommercial != 0 {
		t.Errorf("counter after commercial = %d, want 0", m.st.SinceCommercial)
	}

	// The commercial does not consume the program queue.
	m.transition(ctx)
	if m.st.Current.Origin != OriginProgram || m.st.Current.Track.ID != trackN(11) {
		t.Errorf("play 12 = %q/%q, want program/%s", m.st.Current.Origin, m.st.Current.Track.ID, trackN(11))
	}
	if m.st.SinceCommercial != 1 {
		t.Errorf("counter after resumed program = %d, want 1", m.st.SinceCommercial)
	}
}

func trackN(i int) string {
	return "song-" + string(rune('a'+i-1))
}

func TestPriorityScenarioNearThreshold(t *testing.T) {
	m, db, _, _ := newTestMaestro(t)
	seedTrack(t, db, "track-a", "A", 30*time.Second, false)
	seedTrack(t, db, "track-b", "B", 30*time.Second, false)
	seedTrack(t, db, "track-c", "C", 30*time.Second, false)
	seedTrack(t, db, "track-x", "X", 15*time.Second, true)

	m.st.SinceCommercial = 9
	m.st.CommercialPool = []string{"track-x"}
	m.st.Requests = []QueuedRequest{{ID: "r1", TrackID: "track-a"}}
	m.st.Program = []string{"track-b", "track-c"}

	ctx := context.Background()

	m.transition(ctx)
	if m.st.Current.Track.ID != "track-a" || m.st.Current.Origin != OriginRequest {
		t.Fatalf("first play = %s/%s, want track-a/request", m.st.Current.Track.ID, m.st.Current.Origin)
	}
	if m.st.SinceCommercial != 10 {
		t.Fatalf("counter = %d, want 10", m.st.SinceCommercial)
	}

	m.transition(ctx)
	if m.st.Current.Track.ID != "track-x" || m.st.Current.Origin != OriginAutoCommercial {
		t.Fatalf("second play = %s/%s, want track-x/auto_commercial", m.st.Current.Track.ID, m.st.Current.Origin)
	}
	if m.st.SinceCommercial != 0 {
		t.Fatalf("counter = %d, want 0", m.st.SinceCommercial)
	}

	m.transition(ctx)
	if m.st.Current.Track.ID != "track-b" || m.st.Current.Origin != OriginProgram {
		t.Fatalf("third play = %s/%s, want track-b/program", m.st.Current.Track.ID, m.st.Current.Origin)
	}
	if m.st.SinceCommercial != 1 {
		t.Fatalf("counter = %d, want 1", m.st.SinceCommercial)
	}
}

func TestFallbackResetsCounterToOne(t *testing.T) {
	m, db, _, _ := newTestMaestro(t)
	seedTrack(t, db, "f1", "Fallback One", 30*time.Second, false)
	seedProgram(t, db, "prog-mon", "Monday Default", []string{"f1"})
	m.st.Fallbacks = map[time.Weekday]string{time.Monday: "prog-mon"}
	m.st.SinceCommercial = 7

	m.transition(context.Background())

	if m.st.Current == nil || m.st.Current.Origin != OriginFallback {
		t.Fatalf("expected fallback play, got %+v", m.st.Current)
	}
	if m.st.SinceCommercial != 1 {
		t.Errorf("counter after fallback = %d, want 1", m.st.SinceCommercial)
	}
}

func TestPeekNextDoesNotMutate(t *testing.T) {
	m, db, _, _ := newTestMaestro(t)
	seedTrack(t, db, "req-track", "Requested", 30*time.Second, false)
	seedTrack(t, db, "prog-track", "Programmed", 30*time.Second, false)

	m.st.Requests = []QueuedRequest{{ID: "r1", TrackID: "req-track"}}
	m.st.Program = []string{"prog-track"}

	track, origin, ok := m.peekNext(context.Background())
	if !ok {
		t.Fatal("peekNext found nothing")
	}
	if track.ID != "req-track" || origin != OriginRequest {
		t.Errorf("peek = %s/%s, want req-track/request", track.ID, origin)
	}
	if len(m.st.Requests) != 1 || len(m.st.Program) != 1 {
		t.Errorf("peek mutated queues: requests=%d program=%d", len(m.st.Requests), len(m.st.Program))
	}
}

func TestPeekNextSkipsUnresolvableHead(t *testing.T) {
	m, db, _, _ := newTestMaestro(t)
	seedTrack(t, db, "good", "Good", 30*time.Second, false)

	m.st.Requests = []QueuedRequest{
		{ID: "r1", TrackID: "missing"},
		{ID: "r2", TrackID: "good"},
	}

	track, origin, ok := m.peekNext(context.Background())
	if !ok {
		t.Fatal("peekNext found nothing")
	}
	if track.ID != "good" || origin != OriginRequest {
		t.Errorf("peek = %s/%s, want good/request", track.ID, origin)
	}
	if len(m.st.Requests) != 2 {
		t.Errorf("peek dropped a queue entry: %d left", len(m.st.Requests))
	}
}
