/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// TicksTotal counts scheduler ticks.
	TicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maestro_ticks_total",
		Help: "Scheduler ticks processed.",
	})

	// TransitionsTotal counts committed transitions by origin tier.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_transitions_total",
		Help: "Committed playback transitions by origin.",
	}, []string{"origin"})

	// SilenceTicksTotal counts ticks spent with nothing to play.
	SilenceTicksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maestro_silence_ticks_total",
		Help: "Ticks broadcast as silence.",
	})

	// CrossfadesTotal counts announced crossfades.
	CrossfadesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "maestro_crossfades_total",
		Help: "Crossfade announcements.",
	})

	// QueueDepth tracks in-memory queue sizes.
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "maestro_queue_depth",
		Help: "In-memory queue depth by tier.",
	}, []string{"queue"})

	// IntakeTotal counts request intake outcomes.
	IntakeTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "maestro_intake_requests_total",
		Help: "Listener request intake outcomes.",
	}, []string{"outcome"})

	// WebSocketSubscribers tracks connected state feed clients.
	WebSocketSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "maestro_websocket_subscribers",
		Help: "Connected websocket state subscribers.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
