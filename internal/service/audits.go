// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/store"
)

// ErrInvalidSession is returned when a session does not satisfy the audit
// session invariant or does not belong to the observer appending it.
var ErrInvalidSession = errors.New("invalid audit session")

// Audits holds the completed audit sessions. Sessions are only appended or
// deleted by their owner; the whole collection is rewritten on each change.
type Audits struct {
	mu       sync.RWMutex
	sessions []model.AuditSession
	records  *store.Records
	logger   *slog.Logger
}

// NewAudits loads the audit sessions from the record store.
func NewAudits(ctx context.Context, records *store.Records, logger *slog.Logger) *Audits {
	if logger == nil {
		logger = slog.Default()
	}
	return &Audits{
		sessions: records.LoadSessions(ctx),
		records:  records,
		logger:   logger,
	}
}

// Validate checks the audit session invariant for a session owned by obs.
func Validate(obs model.Observer, s model.AuditSession) error {
	if obs.Email == "" || s.ObserverEmail != obs.Email {
		return fmt.Errorf("%w: not owned by the observer", ErrInvalidSession)
	}
	if len(s.Columns) == 0 || len(s.Columns) > model.MaxColumns {
		return fmt.Errorf("%w: %d columns", ErrInvalidSession, len(s.Columns))
	}
	for i, c := range s.Columns {
		if !c.Qualifies() {
			return fmt.Errorf("%w: column %d has no category or no recorded action", ErrInvalidSession, i+1)
		}
		if len(c.Opportunities) != model.OpportunitiesPerColumn {
			return fmt.Errorf("%w: column %d has %d opportunities", ErrInvalidSession, i+1, len(c.Opportunities))
		}
	}
	if _, err := s.Day(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	return nil
}

// Append adds a completed session. A store failure is logged and the
// session stays in memory.
func (a *Audits) Append(ctx context.Context, obs model.Observer, s model.AuditSession) error {
	if err := Validate(obs, s); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	next := append(slices.Clip(a.sessions), s)
	a.sessions = next
	a.persist(ctx, next)

	a.logger.Info("audit session saved",
		"session_id", s.ID, "observer", obs.Email, "columns", len(s.Columns))
	return nil
}

// ForObserver returns the observer's sessions in the order they were saved.
func (a *Audits) ForObserver(obs model.Observer) []model.AuditSession {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]model.AuditSession, 0)
	for _, s := range a.sessions {
		if obs.Owns(s) {
			out = append(out, s)
		}
	}
	return out
}

// DeleteForObserver removes every session owned by the observer and returns
// how many were removed.
func (a *Audits) DeleteForObserver(ctx context.Context, obs model.Observer) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	remaining := make([]model.AuditSession, 0, len(a.sessions))
	for _, s := range a.sessions {
		if !obs.Owns(s) {
			remaining = append(remaining, s)
		}
	}
	removed := len(a.sessions) - len(remaining)
	a.sessions = remaining
	a.persist(ctx, remaining)

	a.logger.Info("audit data deleted", "observer", obs.Email, "sessions", removed)
	return removed
}

// Count returns the number of sessions across all observers.
func (a *Audits) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.sessions)
}

func (a *Audits) persist(ctx context.Context, sessions []model.AuditSession) {
	if err := a.records.SaveSessions(ctx, sessions); err != nil {
		a.logger.Warn("audit sessions kept in memory only",
			"category", model.EventCategoryStorage, "error", err)
	}
}
