// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/hhaudit/internal/capture"
	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/testutil"
)

type stubSweeper struct {
	mu   sync.Mutex
	ttls []time.Duration
	n    int
}

func (s *stubSweeper) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ttls = append(s.ttls, ttl)
	return s.n
}

type recordedEvent struct {
	level, message string
	metadata       map[string]any
}

type stubEvents struct{ got []recordedEvent }

func (s *stubEvents) LogAuditEvent(_ context.Context, level, message string, metadata map[string]any) error {
	s.got = append(s.got, recordedEvent{level, message, metadata})
	return nil
}

func TestScheduler_StartStop(t *testing.T) {
	s := New(&stubSweeper{}, time.Hour, "*/5 * * * *", nil, testutil.TestLoggerSilent())

	require.NoError(t, s.Start())
	assert.Len(t, s.cron.Entries(), 1)
	s.Stop()
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := New(&stubSweeper{}, time.Hour, "not a schedule", nil, testutil.TestLoggerSilent())
	assert.Error(t, s.Start())
}

func TestScheduler_SweepLogsEvent(t *testing.T) {
	sweeper := &stubSweeper{n: 2}
	events := &stubEvents{}
	s := New(sweeper, 3*time.Hour, "@hourly", events, testutil.TestLoggerSilent())

	s.sweepDrafts()

	assert.Equal(t, []time.Duration{3 * time.Hour}, sweeper.ttls)
	require.Len(t, events.got, 1)
	assert.Equal(t, model.EventLevelInfo, events.got[0].level)
	assert.Equal(t, 2, events.got[0].metadata["count"])
}

func TestScheduler_NothingSweptLogsNothing(t *testing.T) {
	events := &stubEvents{}
	New(&stubSweeper{}, time.Hour, "@hourly", events, testutil.TestLoggerSilent()).sweepDrafts()
	assert.Empty(t, events.got)
}

func TestScheduler_SweepsCaptureManager(t *testing.T) {
	now := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)
	m := capture.NewManager(func() time.Time { return now }, testutil.TestLoggerSilent())

	form := m.Form(model.Observer{Email: "ada@clinic.org"})
	_, err := form.Start(now)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	New(m, time.Hour, "@hourly", nil, testutil.TestLoggerSilent()).sweepDrafts()

	assert.Equal(t, capture.StatusIdle, form.Status())
	assert.ErrorIs(t, form.SetHeader("service", "ICU", now), capture.ErrFormExpired)
	assert.NotSame(t, form, m.Form(model.Observer{Email: "ada@clinic.org"}))
}
