/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package maestro

import (
	"context"
	"time"

	"github.com/caravelradio/maestro/internal/events"
	"github.com/caravelradio/maestro/internal/models"
)

// slotsPerHour converts an hour to its top-of-hour index on the
// 10-minute daily grid.
const slotsPerHour = models.SlotsPerDay / 24

// HourChanged reports whether the hour boundary has been crossed since
// the last check. A lastChecked of -1 means never checked.
func HourChanged(lastChecked int, now time.Time) bool {
	return now.Hour() != lastChecked
}

// checkCalendar runs the hourly program activation. On an hour change it
// reads the schedule slot for (today, this hour) and applies one of three
// outcomes: no row leaves everything untouched, a null program clears the
// program tier (explicit silence slot), and a new program id replaces the
// program queue. The request and manual commercial queues are never
// discarded here. Caller holds the lock.
func (m *Maestro) checkCalendar(ctx context.Context, now time.Time) {
	if !HourChanged(m.lastCheckedHour, now) {
		return
	}
	m.lastCheckedHour = now.Hour()

	slot := m.catalog.ScheduledSlot(ctx, now.Format("2006-01-02"), now.Hour()*slotsPerHour)
	if slot == nil {
		return
	}

	if slot.ProgramID == nil {
		m.logger.Info().Int("hour", now.Hour()).Msg("calendar silence slot, clearing program queue")
		m.st.Program = nil
		m.st.ProgramCalendarOwned = false
		m.st.CalendarProgramID = ""
		m.setOverlay("")
		m.updateQueueGauges()
		return
	}

	if *slot.ProgramID == m.st.CalendarProgramID {
		return
	}

	program := m.catalog.GetProgram(ctx, *slot.ProgramID)
	if program == nil {
		m.logger.Warn().Str("program_id", *slot.ProgramID).Msg("scheduled program missing, keeping current queue")
		return
	}

	m.st.Program = program.TrackIDList()
	m.st.ProgramCalendarOwned = true
	m.st.CalendarProgramID = program.ID
	m.setOverlay(program.CoverRef)
	m.updateQueueGauges()

	m.logger.Info().
		Str("program_id", program.ID).
		Str("name", program.Name).
		Int("tracks", len(m.st.Program)).
		Msg("calendar program activated")

	// Interrupt playback only while no requests are pending; commercials
	// in the manual queue still play out first on the forced transition.
	if len(m.st.Requests) == 0 {
		m.transition(ctx)
	}
}

// setOverlay updates the overlay reference and broadcasts the change.
func (m *Maestro) setOverlay(ref string) {
	if m.st.OverlayRef == ref {
		return
	}
	m.st.OverlayRef = ref
	payload := events.Payload{"overlayRef": nil}
	if ref != "" {
		payload["overlayRef"] = ref
	}
	m.bus.Publish(events.EventOverlayUpdated, payload)
}
