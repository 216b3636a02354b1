// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package logging provides a slog handler that also records WARN and ERROR
// logs in the event log table.
package logging

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/store"
)

// EventLogHandler wraps another handler and also writes records at or above
// its level to the event log.
type EventLogHandler struct {
	inner  slog.Handler
	events *store.Events
	level  slog.Level
	attrs  []slog.Attr
}

// NewEventLogHandler creates a handler forwarding WARN and above to events.
func NewEventLogHandler(inner slog.Handler, events *store.Events) *EventLogHandler {
	return NewEventLogHandlerWithLevel(inner, events, slog.LevelWarn)
}

// NewEventLogHandlerWithLevel creates a handler with a custom minimum level.
func NewEventLogHandlerWithLevel(inner slog.Handler, events *store.Events, level slog.Level) *EventLogHandler {
	return &EventLogHandler{
		inner:  inner,
		events: events,
		level:  level,
	}
}

// Enabled implements slog.Handler.
func (h *EventLogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

// Handle implements slog.Handler.
func (h *EventLogHandler) Handle(ctx context.Context, r slog.Record) error {
	if err := h.inner.Handle(ctx, r); err != nil {
		return err
	}
	if r.Level >= h.level {
		h.writeToEventLog(r)
	}
	return nil
}

// WithAttrs implements slog.Handler.
func (h *EventLogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &EventLogHandler{
		inner:  h.inner.WithAttrs(attrs),
		events: h.events,
		level:  h.level,
		attrs:  append(h.attrs[:len(h.attrs):len(h.attrs)], attrs...),
	}
}

// WithGroup implements slog.Handler.
func (h *EventLogHandler) WithGroup(name string) slog.Handler {
	return &EventLogHandler{
		inner:  h.inner.WithGroup(name),
		events: h.events,
		level:  h.level,
		attrs:  h.attrs,
	}
}

// writeToEventLog stores the record. A background context keeps the write
// alive after the request that logged it is cancelled; failures are dropped
// since logging them would recurse.
func (h *EventLogHandler) writeToEventLog(r slog.Record) {
	if h.events == nil {
		return
	}
	attrs := h.collect(r)
	_, _ = h.events.Create(context.Background(), model.Event{
		Level:     eventLevel(r.Level),
		Category:  category(r.Message, attrs),
		Message:   r.Message,
		Metadata:  metadata(attrs),
		CreatedAt: r.Time,
	})
}

func (h *EventLogHandler) collect(r slog.Record) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	return attrs
}

func eventLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return model.EventLevelError
	case level >= slog.LevelWarn:
		return model.EventLevelWarning
	default:
		return model.EventLevelInfo
	}
}

// category uses an explicit "category" attribute, else guesses from the message.
func category(msg string, attrs []slog.Attr) string {
	for _, a := range attrs {
		if a.Key == "category" {
			return a.Value.String()
		}
	}

	msg = strings.ToLower(msg)
	switch {
	case strings.Contains(msg, "login") || strings.Contains(msg, "logout") || strings.Contains(msg, "signup"):
		return model.EventCategoryAuth
	case strings.Contains(msg, "audit") || strings.Contains(msg, "session"):
		return model.EventCategoryAudit
	case strings.Contains(msg, "store") || strings.Contains(msg, "record"):
		return model.EventCategoryStorage
	case strings.Contains(msg, "export"):
		return model.EventCategoryExport
	default:
		return model.EventCategorySystem
	}
}

func metadata(attrs []slog.Attr) string {
	m := make(map[string]string, len(attrs))
	for _, a := range attrs {
		if a.Key == "category" {
			continue
		}
		m[a.Key] = a.Value.String()
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(b)
}
