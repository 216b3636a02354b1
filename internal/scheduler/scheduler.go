// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package scheduler runs the periodic sweep of abandoned audit drafts.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/olegiv/hhaudit/internal/model"
)

// Sweeper discards drafts idle for longer than ttl and returns how many.
type Sweeper interface {
	Sweep(ttl time.Duration) int
}

// EventLogger records scheduler activity in the event log.
type EventLogger interface {
	LogAuditEvent(ctx context.Context, level, message string, metadata map[string]any) error
}

// Scheduler owns the cron instance driving the draft sweep.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	events   EventLogger
	ttl      time.Duration
	schedule string
	logger   *slog.Logger
}

// New creates a scheduler. events may be nil.
func New(sweeper Sweeper, ttl time.Duration, schedule string, events EventLogger, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:     cron.New(),
		sweeper:  sweeper,
		events:   events,
		ttl:      ttl,
		schedule: schedule,
		logger:   logger,
	}
}

// Start registers the sweep job and starts the cron loop.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.sweepDrafts); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()), "schedule", s.schedule)
	return nil
}

// Stop stops the cron loop and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}

// sweepDrafts discards drafts untouched for longer than the configured TTL.
func (s *Scheduler) sweepDrafts() {
	n := s.sweeper.Sweep(s.ttl)
	if n == 0 {
		return
	}

	s.logger.Info("swept idle audit drafts", "category", model.EventCategoryAudit, "count", n, "ttl", s.ttl)
	if s.events == nil {
		return
	}
	err := s.events.LogAuditEvent(context.Background(), model.EventLevelInfo,
		"Idle audit drafts discarded by scheduler",
		map[string]any{"count": n, "ttl": s.ttl.String()})
	if err != nil {
		s.logger.Warn("failed to log draft sweep event", "error", err)
	}
}
