// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package service holds the observer account and audit session logic on top
// of the record store, plus event logging for the audit trail.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/store"
)

// EventService writes entries to the event log.
type EventService struct {
	events *store.Events
}

// NewEventService creates a new EventService. A nil events store makes
// every call a no-op.
func NewEventService(events *store.Events) *EventService {
	return &EventService{events: events}
}

// LogEvent creates a new event log entry.
func (s *EventService) LogEvent(ctx context.Context, level, category, message string, metadata map[string]any) error {
	if s == nil || s.events == nil {
		return nil
	}

	metadataJSON := "{}"
	if metadata != nil {
		if b, err := json.Marshal(metadata); err == nil {
			metadataJSON = string(b)
		}
	}

	_, err := s.events.Create(ctx, model.Event{
		Level:     level,
		Category:  category,
		Actor:     actorOf(metadata),
		Message:   message,
		Metadata:  metadataJSON,
		CreatedAt: time.Now(),
	})
	if err != nil {
		slog.Error("failed to log event", "error", err)
		return err
	}
	return nil
}

// LogAuthEvent logs an authentication event.
func (s *EventService) LogAuthEvent(ctx context.Context, level, message, ip string, metadata map[string]any) error {
	if metadata == nil {
		metadata = make(map[string]any)
	}
	if ip != "" {
		metadata["ip"] = ip
	}
	return s.LogEvent(ctx, level, model.EventCategoryAuth, message, metadata)
}

// LogAuditEvent logs an audit session event.
func (s *EventService) LogAuditEvent(ctx context.Context, level, message string, metadata map[string]any) error {
	return s.LogEvent(ctx, level, model.EventCategoryAudit, message, metadata)
}

// ForObserver returns the observer's own events, newest first. An empty
// category matches all categories.
func (s *EventService) ForObserver(ctx context.Context, obs model.Observer, category string, limit int) ([]model.Event, error) {
	if s == nil || s.events == nil {
		return []model.Event{}, nil
	}
	return s.events.Recent(ctx, store.EventFilter{
		Actor:    model.FoldEmail(obs.Email),
		Category: category,
		Limit:    limit,
	})
}

// actorOf picks the observer an event concerns from its metadata. Failed
// logins carry the attempted email, so they show up for that account.
func actorOf(metadata map[string]any) string {
	for _, key := range []string{"observer", "email"} {
		if v, ok := metadata[key].(string); ok && v != "" {
			return model.FoldEmail(v)
		}
	}
	return ""
}
