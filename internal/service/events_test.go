// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/store"
	"github.com/olegiv/hhaudit/internal/testutil"
)

func TestEventService_ForObserver(t *testing.T) {
	svc := NewEventService(store.NewEvents(testutil.TestDB(t)))
	ctx := context.Background()
	ada := model.Observer{Email: "ada@clinic.org"}

	require.NoError(t, svc.LogAuthEvent(ctx, model.EventLevelWarning, "Login failed", "10.0.0.1",
		map[string]any{"email": "ADA@Clinic.org"}))
	require.NoError(t, svc.LogAuditEvent(ctx, model.EventLevelInfo, "Audit session saved",
		map[string]any{"observer": "ada@clinic.org"}))
	require.NoError(t, svc.LogAuditEvent(ctx, model.EventLevelInfo, "Audit session saved",
		map[string]any{"observer": "bob@clinic.org"}))
	require.NoError(t, svc.LogAuditEvent(ctx, model.EventLevelInfo, "Swept idle drafts",
		map[string]any{"count": 2}))

	got, err := svc.ForObserver(ctx, ada, "", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Audit session saved", got[0].Message)
	assert.Equal(t, "Login failed", got[1].Message)
	assert.Equal(t, "ada@clinic.org", got[1].Actor)
	assert.JSONEq(t, `{"email":"ADA@Clinic.org","ip":"10.0.0.1"}`, got[1].Metadata)

	got, err = svc.ForObserver(ctx, ada, model.EventCategoryAuth, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.EventCategoryAuth, got[0].Category)
}

func TestEventService_Nil(t *testing.T) {
	var svc *EventService
	assert.NoError(t, svc.LogAuditEvent(context.Background(), model.EventLevelInfo, "x", nil))

	got, err := NewEventService(nil).ForObserver(context.Background(), model.Observer{Email: "a@b.c"}, "", 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}
