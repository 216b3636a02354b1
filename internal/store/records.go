// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/olegiv/hhaudit/internal/model"
)

// Keys of the two persisted collections.
const (
	KeySessions = "handHygieneAuditSessions"
	KeyUsers    = "handHygieneUsers"
)

// Records reads and writes the audit session and observer collections.
// Loads never fail: a missing or unreadable collection is treated as empty
// and logged. Saves rewrite the whole collection.
type Records struct {
	backend Backend
	logger  *slog.Logger
}

// NewRecords creates a Records on top of a backend.
func NewRecords(backend Backend, logger *slog.Logger) *Records {
	if logger == nil {
		logger = slog.Default()
	}
	return &Records{backend: backend, logger: logger}
}

// LoadSessions returns every persisted audit session.
func (r *Records) LoadSessions(ctx context.Context) []model.AuditSession {
	return load[model.AuditSession](ctx, r, KeySessions)
}

// SaveSessions overwrites the persisted audit sessions.
func (r *Records) SaveSessions(ctx context.Context, sessions []model.AuditSession) error {
	return save(ctx, r, KeySessions, sessions)
}

// LoadUsers returns every registered observer.
func (r *Records) LoadUsers(ctx context.Context) []model.User {
	return load[model.User](ctx, r, KeyUsers)
}

// SaveUsers overwrites the registered observers.
func (r *Records) SaveUsers(ctx context.Context, users []model.User) error {
	return save(ctx, r, KeyUsers, users)
}

// Close closes the underlying backend.
func (r *Records) Close() error {
	return r.backend.Close()
}

func load[T any](ctx context.Context, r *Records, key string) []T {
	raw, err := r.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			r.logger.Warn("failed to read stored collection, treating as empty",
				"category", model.EventCategoryStorage, "key", key, "error", err)
		}
		return []T{}
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		r.logger.Warn("failed to parse stored collection, treating as empty",
			"category", model.EventCategoryStorage, "key", key, "error", err)
		return []T{}
	}
	if items == nil {
		items = []T{}
	}
	return items
}

func save[T any](ctx context.Context, r *Records, key string, items []T) error {
	if items == nil {
		items = []T{}
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := r.backend.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("saving %s: %w", key, err)
	}
	return nil
}
