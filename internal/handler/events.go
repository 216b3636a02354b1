// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/service"
	"github.com/olegiv/hhaudit/internal/store"
)

// MaxEventsLimit caps the limit query parameter of the activity log.
const MaxEventsLimit = 100

var eventCategories = []string{
	model.EventCategoryAuth,
	model.EventCategoryAudit,
	model.EventCategoryStorage,
	model.EventCategoryExport,
	model.EventCategorySystem,
}

// EventsHandler serves the observer's own activity log.
type EventsHandler struct {
	eventService *service.EventService
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(events *service.EventService) *EventsHandler {
	return &EventsHandler{eventService: events}
}

// EventView is one activity log entry as returned by the API.
type EventView struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

// formatMetadata converts JSON metadata to readable text.
// Example: {"format":"csv","sessions":3} -> "format: csv, sessions: 3"
func formatMetadata(metadata string) string {
	if metadata == "" || metadata == "{}" {
		return ""
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(metadata), &data); err != nil {
		return metadata
	}

	keys := make([]string, 0, len(data))
	for key := range data {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		var str string
		switch v := data[key].(type) {
		case string:
			str = v
		case float64:
			str = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			str = strconv.FormatBool(v)
		default:
			if b, err := json.Marshal(v); err == nil {
				str = string(b)
			}
		}
		parts = append(parts, key+": "+str)
	}
	return strings.Join(parts, ", ")
}

// List handles GET /api/events?category=&limit=.
func (h *EventsHandler) List(w http.ResponseWriter, r *http.Request) {
	obs, ok := requireObserver(w, r)
	if !ok {
		return
	}

	category := r.URL.Query().Get("category")
	if category != "" && !slices.Contains(eventCategories, category) {
		WriteBadRequest(w, "unknown event category")
		return
	}

	limit := store.DefaultEventLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > MaxEventsLimit {
			WriteBadRequest(w, "limit must be between 1 and "+strconv.Itoa(MaxEventsLimit))
			return
		}
		limit = n
	}

	events, err := h.eventService.ForObserver(r.Context(), obs, category, limit)
	if err != nil {
		logAndInternalError(w, "failed to list events", "error", err)
		return
	}

	out := make([]EventView, 0, len(events))
	for _, ev := range events {
		out = append(out, EventView{
			ID:        ev.ID,
			Level:     ev.Level,
			Category:  ev.Category,
			Message:   ev.Message,
			Details:   formatMetadata(ev.Metadata),
			CreatedAt: ev.CreatedAt,
		})
	}
	WriteSuccess(w, out, &Meta{Total: len(out)})
}
