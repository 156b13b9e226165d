/*
Copyright (C) 2026 Caravel Radio

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"

	"github.com/caravelradio/maestro/internal/events"
	"github.com/caravelradio/maestro/internal/intake"
	"github.com/caravelradio/maestro/internal/maestro"
	"github.com/caravelradio/maestro/internal/telemetry"
)

// API exposes HTTP handlers for the jukebox intake, operator commands,
// and the websocket state feed.
type API struct {
	sched      *maestro.Maestro
	intake     *intake.Service
	bus        *events.Bus
	jukeboxRPM int
	logger     zerolog.Logger
}

// New creates the API router wrapper.
func New(sched *maestro.Maestro, intakeSvc *intake.Service, bus *events.Bus, jukeboxRPM int, logger zerolog.Logger) *API {
	if jukeboxRPM <= 0 {
		jukeboxRPM = 30
	}
	return &API{
		sched:      sched,
		intake:     intakeSvc,
		bus:        bus,
		jukeboxRPM: jukeboxRPM,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// Routes registers all handlers.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/state", a.handleState)
		r.Get("/state/ws", a.handleStateWS)
		r.Get("/queue", a.handleQueue)

		// Listener intake, rate limited per client IP at the edge on top
		// of the per-token sliding window inside the intake service.
		r.Group(func(jr chi.Router) {
			jr.Use(httprate.Limit(a.jukeboxRPM, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			jr.Post("/jukebox/requests", a.handleJukeboxSubmit)
		})

		r.Route("/control", func(cr chi.Router) {
			cr.Post("/skip", a.handleSkip)
			cr.Post("/commercial", a.handleCommercial)
			cr.Post("/requests", a.handleOperatorRequest)
			cr.Delete("/requests/{requestID}", a.handleVeto)
			cr.Post("/program/{programID}", a.handleLoadProgram)
			cr.Post("/catalog/refresh", a.handleCatalogRefresh)
			cr.Get("/suggestions", a.handleSuggestions)
		})
	})
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleState returns a one-shot snapshot for non-websocket clients.
func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sched.Snapshot())
}

func (a *API) handleQueue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": a.sched.VisibleQueue(r.Context()),
	})
}

type jukeboxSubmitRequest struct {
	TrackID        *string `json:"trackId"`
	FreeText       string  `json:"freeText"`
	RequesterToken string  `json:"requesterToken"`
	OriginUnit     string  `json:"originUnit"`
}

func (a *API) handleJukeboxSubmit(w http.ResponseWriter, r *http.Request) {
	var req jukeboxSubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := a.intake.Submit(r.Context(), req.TrackID, req.FreeText, req.RequesterToken, req.OriginUnit)
	if err != nil {
		telemetry.IntakeTotal.WithLabelValues(rejectionLabel(err)).Inc()
		writeJSON(w, rejectionStatus(err), map[string]any{
			"accepted": false,
			"reason":   err.Error(),
		})
		return
	}

	telemetry.IntakeTotal.WithLabelValues("accepted").Inc()
	writeJSON(w, http.StatusCreated, map[string]any{
		"accepted":  true,
		"requestId": result.RequestID,
		"position":  result.Position,
	})
}

func (a *API) handleSkip(w http.ResponseWriter, r *http.Request) {
	a.sched.Skip(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "skipped"})
}

type commercialRequest struct {
	TrackID string `json:"trackId"`
}

func (a *API) handleCommercial(w http.ResponseWriter, r *http.Request) {
	var req commercialRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := a.sched.PlayCommercialNow(r.Context(), req.TrackID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})
}

type operatorRequest struct {
	TrackID string `json:"trackId"`
}

func (a *API) handleOperatorRequest(w http.ResponseWriter, r *http.Request) {
	var req operatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TrackID == "" {
		writeError(w, http.StatusBadRequest, "trackId is required")
		return
	}

	result, err := a.intake.SubmitOperator(r.Context(), req.TrackID)
	if err != nil {
		writeError(w, rejectionStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"requestId": result.RequestID,
		"position":  result.Position,
	})
}

func (a *API) handleVeto(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "requestID")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "requestID is required")
		return
	}
	a.intake.Veto(r.Context(), requestID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "vetoed"})
}

func (a *API) handleLoadProgram(w http.ResponseWriter, r *http.Request) {
	programID := chi.URLParam(r, "programID")
	if err := a.sched.LoadProgramManual(r.Context(), programID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded"})
}

func (a *API) handleCatalogRefresh(w http.ResponseWriter, r *http.Request) {
	a.sched.RefreshCatalog(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "refreshed"})
}

func (a *API) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	rows, err := a.intake.Suggestions(r.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "suggestions unavailable")
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// rejectionStatus maps intake errors to HTTP statuses.
func rejectionStatus(err error) int {
	switch {
	case errors.Is(err, intake.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, intake.ErrEmptyToken):
		return http.StatusBadRequest
	case errors.Is(err, maestro.ErrTrackUnavailable):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusServiceUnavailable
	}
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, intake.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, intake.ErrEmptyToken):
		return "empty_token"
	case errors.Is(err, maestro.ErrTrackUnavailable):
		return "track_unavailable"
	default:
		return "persist_failed"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
