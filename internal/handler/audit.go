// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/hhaudit/internal/capture"
	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/service"
)

// AuditHandler drives the observer's draft audit form.
type AuditHandler struct {
	forms        *capture.Manager
	audits       *service.Audits
	eventService *service.EventService
	tick         time.Duration
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(forms *capture.Manager, audits *service.Audits, events *service.EventService) *AuditHandler {
	return &AuditHandler{
		forms:        forms,
		audits:       audits,
		eventService: events,
		tick:         time.Second,
	}
}

// HeaderRequest is the body of PATCH /api/audit/header.
type HeaderRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// CategoryRequest is the body of PUT .../category.
type CategoryRequest struct {
	Category model.Category `json:"category"`
}

// ActionRequest is the body of PUT .../action.
type ActionRequest struct {
	Action model.Action `json:"action"`
}

// Choice is one selectable value with its display label.
type Choice struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Options lists the values the form accepts.
type Options struct {
	Categories  []Choice `json:"categories"`
	Indications []Choice `json:"indications"`
	Actions     []Choice `json:"actions"`
	Wards       []string `json:"wards"`
	Departments []string `json:"departments"`
}

// Options handles GET /api/audit/options.
func (h *AuditHandler) Options(w http.ResponseWriter, _ *http.Request) {
	opts := Options{Wards: model.Wards, Departments: model.Departments}
	for _, c := range model.Categories {
		opts.Categories = append(opts.Categories, Choice{Value: string(c), Label: c.Label()})
	}
	for _, i := range model.Indications {
		opts.Indications = append(opts.Indications, Choice{Value: string(i), Label: i.Label()})
	}
	for _, a := range model.Actions {
		opts.Actions = append(opts.Actions, Choice{Value: string(a), Label: a.Label()})
	}
	WriteSuccess(w, opts, nil)
}

// Current handles GET /api/audit.
func (h *AuditHandler) Current(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, form.View(h.forms.Now()), nil)
}

// Start handles POST /api/audit/start.
func (h *AuditHandler) Start(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}

	now := h.forms.Now()
	if _, err := form.Start(now); err != nil {
		writeFormError(w, err)
		return
	}
	WriteSuccess(w, form.View(now), nil)
}

// SetHeader handles PATCH /api/audit/header.
func (h *AuditHandler) SetHeader(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}
	var req HeaderRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.apply(w, form, func(now time.Time) error {
		return form.SetHeader(req.Field, req.Value, now)
	})
}

// AddColumn handles POST /api/audit/columns.
func (h *AuditHandler) AddColumn(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}

	now := h.forms.Now()
	if _, err := form.AddColumn(now); err != nil {
		writeFormError(w, err)
		return
	}
	WriteJSON(w, http.StatusCreated, Response{Data: form.View(now)})
}

// RemoveColumn handles DELETE /api/audit/columns/{col}.
func (h *AuditHandler) RemoveColumn(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}
	col, ok := intParam(w, r, "col")
	if !ok {
		return
	}

	h.apply(w, form, func(now time.Time) error {
		return form.RemoveColumn(col, now)
	})
}

// SetCategory handles PUT /api/audit/columns/{col}/category.
func (h *AuditHandler) SetCategory(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}
	col, ok := intParam(w, r, "col")
	if !ok {
		return
	}
	var req CategoryRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.apply(w, form, func(now time.Time) error {
		return form.SetCategory(col, req.Category, now)
	})
}

// ToggleIndication handles POST .../opportunities/{opp}/indications/{ind}.
func (h *AuditHandler) ToggleIndication(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}
	col, opp, ok := opportunityParams(w, r)
	if !ok {
		return
	}
	ind := model.Indication(chi.URLParam(r, "ind"))

	h.apply(w, form, func(now time.Time) error {
		_, err := form.ToggleIndication(col, opp, ind, now)
		return err
	})
}

// SetAction handles PUT .../opportunities/{opp}/action.
func (h *AuditHandler) SetAction(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}
	col, opp, ok := opportunityParams(w, r)
	if !ok {
		return
	}
	var req ActionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	h.apply(w, form, func(now time.Time) error {
		return form.SetAction(col, opp, req.Action, now)
	})
}

// ClearAction handles DELETE .../opportunities/{opp}/action.
func (h *AuditHandler) ClearAction(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}
	col, opp, ok := opportunityParams(w, r)
	if !ok {
		return
	}

	h.apply(w, form, func(now time.Time) error {
		return form.ClearAction(col, opp, now)
	})
}

// Save handles POST /api/audit/save.
func (h *AuditHandler) Save(w http.ResponseWriter, r *http.Request) {
	obs, ok := requireObserver(w, r)
	if !ok {
		return
	}
	form := h.forms.Form(obs)

	s, err := form.Save(h.forms.Now(), obs)
	if err != nil {
		writeFormError(w, err)
		return
	}

	if err := h.audits.Append(r.Context(), obs, s); err != nil {
		if errors.Is(err, service.ErrInvalidSession) {
			WriteUnprocessable(w, "invalid_session", err.Error())
			return
		}
		logAndInternalError(w, "failed to append audit session", "error", err)
		return
	}

	_ = h.eventService.LogAuditEvent(r.Context(), model.EventLevelInfo, "Audit session saved",
		map[string]any{"session_id": s.ID, "observer": obs.Email, "columns": len(s.Columns)})
	WriteCreated(w, s)
}

// Discard handles POST /api/audit/discard. It clears the form whether or not
// a round is in progress.
func (h *AuditHandler) Discard(w http.ResponseWriter, r *http.Request) {
	obs, ok := requireObserver(w, r)
	if !ok {
		return
	}
	form := h.forms.Form(obs)

	now := h.forms.Now()
	msg := "Audit form cleared"
	if form.Status() == capture.StatusInProgress {
		msg = "Audit round discarded"
	}
	if err := form.Discard(now); err != nil {
		writeFormError(w, err)
		return
	}

	_ = h.eventService.LogAuditEvent(r.Context(), model.EventLevelInfo, msg,
		map[string]any{"observer": obs.Email})
	WriteSuccess(w, form.View(now), nil)
}

// elapsedEvent is the payload of one SSE tick.
type elapsedEvent struct {
	Elapsed string `json:"elapsed"`
	Seconds int    `json:"seconds"`
}

// Elapsed handles GET /api/audit/elapsed. It streams the elapsed time once
// per tick until the round is saved or discarded or the client goes away.
func (h *AuditHandler) Elapsed(w http.ResponseWriter, r *http.Request) {
	form, ok := h.form(w, r)
	if !ok {
		return
	}
	// The session middleware wraps w; the controller unwraps it to flush.
	rc := http.NewResponseController(w)
	// The stream outlives the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	done := form.Done()
	send := func() bool {
		d := form.Elapsed(h.forms.Now())
		b, _ := json.Marshal(elapsedEvent{Elapsed: capture.FormatElapsed(d), Seconds: int(d / time.Second)})
		if _, err := fmt.Fprintf(w, "event: elapsed\ndata: %s\n\n", b); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send() {
		return
	}

	ticker := time.NewTicker(h.tick)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-done:
			_, _ = fmt.Fprint(w, "event: done\ndata: {}\n\n")
			_ = rc.Flush()
			return
		case <-ticker.C:
			if !send() {
				slog.Debug("elapsed stream closed")
				return
			}
		}
	}
}

func (h *AuditHandler) form(w http.ResponseWriter, r *http.Request) (*capture.Form, bool) {
	obs, ok := requireObserver(w, r)
	if !ok {
		return nil, false
	}
	return h.forms.Form(obs), true
}

// apply runs an edit and answers with the updated form.
func (h *AuditHandler) apply(w http.ResponseWriter, form *capture.Form, edit func(now time.Time) error) {
	now := h.forms.Now()
	if err := edit(now); err != nil {
		writeFormError(w, err)
		return
	}
	WriteSuccess(w, form.View(now), nil)
}

func opportunityParams(w http.ResponseWriter, r *http.Request) (col, opp int, ok bool) {
	if col, ok = intParam(w, r, "col"); !ok {
		return 0, 0, false
	}
	if opp, ok = intParam(w, r, "opp"); !ok {
		return 0, 0, false
	}
	return col, opp, true
}

// writeFormError maps form errors to HTTP responses.
func writeFormError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capture.ErrAlreadyInProgress),
		errors.Is(err, capture.ErrNotStarted),
		errors.Is(err, capture.ErrFormExpired):
		WriteConflict(w, err.Error())
	case errors.Is(err, capture.ErrNoData):
		WriteUnprocessable(w, "no_data", err.Error())
	case errors.Is(err, capture.ErrColumnRange), errors.Is(err, capture.ErrOpportunityRange):
		WriteNotFound(w, err.Error())
	case errors.Is(err, capture.ErrMaxColumns),
		errors.Is(err, capture.ErrLastColumn),
		errors.Is(err, capture.ErrUnknownCategory),
		errors.Is(err, capture.ErrUnknownIndication),
		errors.Is(err, capture.ErrUnknownAction),
		errors.Is(err, capture.ErrUnknownField),
		errors.Is(err, capture.ErrReadOnlyField),
		errors.Is(err, capture.ErrInvalidChoice):
		WriteBadRequest(w, err.Error())
	default:
		logAndInternalError(w, "audit form operation failed", "error", err)
	}
}
