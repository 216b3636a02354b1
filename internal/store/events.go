// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/olegiv/hhaudit/internal/model"
)

// DefaultEventLimit applies when an EventFilter has no positive Limit.
const DefaultEventLimit = 25

// Events reads and writes the event log.
type Events struct {
	db *sql.DB
}

// EventFilter narrows Recent. Empty fields match everything.
type EventFilter struct {
	Actor    string
	Category string
	Limit    int
}

// NewEvents creates an Events on a migrated database.
func NewEvents(db *sql.DB) *Events {
	return &Events{db: db}
}

// Create appends an event and returns its ID.
func (e *Events) Create(ctx context.Context, ev model.Event) (int64, error) {
	if ev.Metadata == "" {
		ev.Metadata = "{}"
	}
	res, err := e.db.ExecContext(ctx,
		`INSERT INTO event_log (level, category, actor, message, metadata, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		ev.Level, ev.Category, ev.Actor, ev.Message, ev.Metadata, ev.CreatedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("creating event: %w", err)
	}
	return res.LastInsertId()
}

// Recent returns events matching f, newest first.
func (e *Events) Recent(ctx context.Context, f EventFilter) ([]model.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Actor != "" {
		where = append(where, "actor = ?")
		args = append(args, f.Actor)
	}
	if f.Category != "" {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if f.Limit <= 0 {
		f.Limit = DefaultEventLimit
	}

	query := `SELECT id, level, category, actor, message, metadata, created_at FROM event_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, f.Limit)

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	events := make([]model.Event, 0)
	for rows.Next() {
		var ev model.Event
		if err := rows.Scan(&ev.ID, &ev.Level, &ev.Category, &ev.Actor, &ev.Message, &ev.Metadata, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
