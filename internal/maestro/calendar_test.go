/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maestro

import (
	"context"
	"testing"
	"time"

	"github.com/caravelradio/maestro/internal/events"
	"github.com/caravelradio/maestro/internal/models"
)

func TestHourChanged(t *testing.T) {
	tests := []struct {
		name        string
		lastChecked int
		now         time.Time
		want        bool
	}{
		{"never checked", -1, testBaseTime, true},
		{"same hour", 12, testBaseTime, false},
		{"next hour", 11, testBaseTime, true},
		{"midnight wrap", 23, time.Date(2026, 3, 3, 0, 5, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HourChanged(tt.lastChecked, tt.now); got != tt.want {
				t.Errorf("HourChanged(%d, %v) = %v, want %v", tt.lastChecked, tt.now, got, tt.want)
			}
		})
	}
}

func seedSlot(t *testing.T, m *Maestro, programID *string) {
	t.Helper()

	slot := models.ScheduleSlot{
		ID:        "slot-1",
		Date:      testBaseTime.Format("2006-01-02"),
		SlotIndex: testBaseTime.Hour() * slotsPerHour,
		ProgramID: programID,
	}
	if err := m.db.Create(&slot).Error; err != nil {
		t.Fatalf("seed slot: %v", err)
	}
}

func TestCalendarActivatesScheduledProgram(t *testing.T) {
	m, db, bus, _ := newTestMaestro(t)
	seedTrack(t, db, "p1", "Program One", 30*time.Second, false)
	seedTrack(t, db, "p2", "Program Two", 30*time.Second, false)

	program := models.Program{ID: "prog-noon", Name: "Noon Show", CoverRef: "covers/noon.png"}
	program.SetTrackIDList([]string{"p1", "p2"})
	if err := db.Create(&program).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}

	programID := "prog-noon"
	seedSlot(t, m, &programID)

	playingSub := bus.Subscribe(events.EventPlaying)
	overlaySub := bus.Subscribe(events.EventOverlayUpdated)

	m.tick(context.Background())

	if m.st.CalendarProgramID != "prog-noon" || !m.st.ProgramCalendarOwned {
		t.Fatalf("calendar ownership not recorded: id=%q owned=%v", m.st.CalendarProgramID, m.st.ProgramCalendarOwned)
	}
	if m.st.Current == nil || m.st.Current.Track.ID != "p1" {
		t.Fatalf("forced transition did not start p1, got %+v", m.st.Current)
	}
	if m.st.OverlayRef != "covers/noon.png" {
		t.Errorf("overlay = %q, want program cover", m.st.OverlayRef)
	}
	if got := countType(drain(playingSub), events.EventPlaying); got != 1 {
		t.Errorf("playing broadcasts = %d, want 1", got)
	}
	if got := countType(drain(overlaySub), events.EventOverlayUpdated); got != 1 {
		t.Errorf("overlay broadcasts = %d, want 1", got)
	}
}

func TestCalendarSilenceSlotClearsProgram(t *testing.T) {
	m, db, _, _ := newTestMaestro(t)
	seedTrack(t, db, "p1", "Leftover", 30*time.Second, false)
	m.st.Program = []string{"p1"}
	m.st.ProgramCalendarOwned = true
	m.st.CalendarProgramID = "prog-old"
	m.st.OverlayRef = "covers/old.png"

	seedSlot(t, m, nil)

	m.checkCalendar(context.Background(), testBaseTime)

	if len(m.st.Program) != 0 {
		t.Errorf("program queue = %v, want empty", m.st.Program)
	}
	if m.st.CalendarProgramID != "" || m.st.ProgramCalendarOwned {
		t.Error("calendar ownership not cleared")
	}
	if m.st.OverlayRef != "" {
		t.Errorf("overlay = %q, want cleared", m.st.OverlayRef)
	}
}

func TestCalendarNoRowLeavesStateUntouched(t *testing.T) {
	m, _, _, _ := newTestMaestro(t)
	m.st.Program = []string{"keep-me"}
	m.st.CalendarProgramID = "prog-old"
	m.st.ProgramCalendarOwned = true

	m.checkCalendar(context.Background(), testBaseTime)

	if len(m.st.Program) != 1 || m.st.Program[0] != "keep-me" {
		t.Errorf("program queue = %v, want [keep-me]", m.st.Program)
	}
	if m.st.CalendarProgramID != "prog-old" {
		t.Errorf("calendar program = %q, want prog-old", m.st.CalendarProgramID)
	}
}

func TestCalendarDefersTransitionWhileRequestsPending(t *testing.T) {
	m, db, _, _ := newTestMaestro(t)
	seedTrack(t, db, "p1", "Program One", 30*time.Second, false)
	seedTrack(t, db, "req-track", "Requested", 30*time.Second, false)

	program := models.Program{ID: "prog-noon", Name: "Noon Show"}
	program.SetTrackIDList([]string{"p1"})
	if err := db.Create(&program).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}
	programID := "prog-noon"
	seedSlot(t, m, &programID)

	m.st.Requests = []QueuedRequest{{ID: "r1", TrackID: "req-track"}}

	m.checkCalendar(context.Background(), testBaseTime)

	// The queue is replaced but playback is not interrupted.
	if len(m.st.Program) != 1 || m.st.Program[0] != "p1" {
		t.Errorf("program queue = %v, want [p1]", m.st.Program)
	}
	if m.st.Current != nil {
		t.Errorf("transition forced despite pending request: %+v", m.st.Current)
	}
	if len(m.st.Requests) != 1 {
		t.Errorf("request queue disturbed: %d entries", len(m.st.Requests))
	}
}

func TestCalendarChecksOncePerHour(t *testing.T) {
	m, db, _, fake := newTestMaestro(t)
	seedTrack(t, db, "p1", "Program One", 30*time.Second, false)

	program := models.Program{ID: "prog-noon", Name: "Noon Show"}
	program.SetTrackIDList([]string{"p1"})
	if err := db.Create(&program).Error; err != nil {
		t.Fatalf("seed program: %v", err)
	}
	programID := "prog-noon"
	seedSlot(t, m, &programID)

	ctx := context.Background()
	m.checkCalendar(ctx, fake.Now())
	if m.st.CalendarProgramID != "prog-noon" {
		t.Fatalf("setup: program not activated")
	}

	// Activation consumed the head; a re-check in the same hour must not
	// reload the queue.
	queueBefore := len(m.st.Program)
	fake.Advance(10 * time.Minute)
	m.checkCalendar(ctx, fake.Now())
	if len(m.st.Program) != queueBefore {
		t.Errorf("same-hour re-check reloaded the queue: %d -> %d", queueBefore, len(m.st.Program))
	}
}
