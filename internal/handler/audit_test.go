// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/hhaudit/internal/capture"
	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/store"
)

const oppPath = "/api/audit/columns/0/opportunities/1"

// recordRound starts a round, fills column 0 as a doctor with one hand-rub
// and one missed opportunity, and saves it.
func (e *testEnv) recordRound(t *testing.T, cookie *http.Cookie) model.AuditSession {
	t.Helper()

	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, "/api/audit/start", nil, cookie).Code)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/audit/columns/0/category",
		CategoryRequest{Category: model.CategoryDoctor}, cookie).Code)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, oppPath+"/action",
		ActionRequest{Action: model.ActionHandRub}, cookie).Code)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPost, oppPath+"/indications/bef-pat", nil, cookie).Code)
	require.Equal(t, http.StatusOK, e.do(t, http.MethodPut, "/api/audit/columns/0/opportunities/2/action",
		ActionRequest{Action: model.ActionMissed}, cookie).Code)

	e.clock.Advance(20 * time.Minute)
	rec := e.do(t, http.MethodPost, "/api/audit/save", nil, cookie)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[model.AuditSession](t, rec)
}

func TestAudit_CurrentDefaults(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	rec := env.do(t, http.MethodGet, "/api/audit", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeData[capture.View](t, rec)
	assert.Equal(t, capture.StatusIdle, view.Status)
	assert.Equal(t, "General Hospital", view.Header.Facility)
	assert.Equal(t, "Ada Observer", view.Header.Observer)
	assert.Equal(t, model.Wards[0], view.Header.Ward)
	assert.Equal(t, model.Departments[0], view.Header.Department)
	require.Len(t, view.Columns, 1)
	assert.Len(t, view.Columns[0].Opportunities, model.OpportunitiesPerColumn)
	assert.Equal(t, "00:00", view.Elapsed)
}

func TestAudit_Options(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/audit/options", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	opts := decodeData[Options](t, rec)
	require.Len(t, opts.Categories, 4)
	assert.Equal(t, Choice{Value: "3", Label: "3. Medical Doctor"}, opts.Categories[2])
	require.Len(t, opts.Indications, 5)
	assert.Equal(t, "aft.p.surr.", opts.Indications[4].Value)
	assert.Len(t, opts.Actions, 4)
	assert.Equal(t, model.Wards, opts.Wards)
}

func TestAudit_StartTwiceConflicts(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	rec := env.do(t, http.MethodPost, "/api/audit/start", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeData[capture.View](t, rec)
	assert.Equal(t, capture.StatusInProgress, first.Status)
	assert.NotEmpty(t, first.Header.SessionNumber)

	rec = env.do(t, http.MethodPost, "/api/audit/start", nil, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)

	view := decodeData[capture.View](t, env.do(t, http.MethodGet, "/api/audit", nil, cookie))
	assert.Equal(t, first.Header.SessionNumber, view.Header.SessionNumber)
}

func TestAudit_SaveRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	// A second column with an action but no category is dropped on save.
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/audit/columns", nil, cookie).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/audit/columns/1/opportunities/3/action",
		ActionRequest{Action: model.ActionHandWash}, cookie).Code)

	s := env.recordRound(t, cookie)

	assert.Equal(t, "2024-01-15", s.Date)
	assert.Equal(t, "09:00", s.StartTime)
	assert.Equal(t, "09:20", s.EndTime)
	assert.Equal(t, 20, s.SessionDuration)
	assert.Equal(t, "ada@clinic.org", s.ObserverEmail)
	require.Len(t, s.Columns, 1)
	assert.Equal(t, model.CategoryDoctor, s.Columns[0].Category)
	assert.Equal(t, []model.Indication{model.IndicationBeforePatient}, s.Columns[0].Opportunities[0].Indications)

	// The form is back to idle with one blank column.
	view := decodeData[capture.View](t, env.do(t, http.MethodGet, "/api/audit", nil, cookie))
	assert.Equal(t, capture.StatusIdle, view.Status)
	assert.Len(t, view.Columns, 1)
	assert.Equal(t, model.CategoryUnset, view.Columns[0].Category)

	assert.Equal(t, 1, env.audits.Count())
}

func TestAudit_SaveErrors(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	rec := env.do(t, http.MethodPost, "/api/audit/save", nil, cookie)
	assert.Equal(t, http.StatusConflict, rec.Code)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/audit/start", nil, cookie).Code)
	// Indication without action does not count as data.
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/audit/columns/0/category",
		CategoryRequest{Category: model.CategoryNurseMidwife}, cookie).Code)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, oppPath+"/indications/aft-pat.", nil, cookie).Code)

	rec = env.do(t, http.MethodPost, "/api/audit/save", nil, cookie)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "no_data", errorCode(t, rec))

	// The form keeps its data after a rejected save.
	view := decodeData[capture.View](t, env.do(t, http.MethodGet, "/api/audit", nil, cookie))
	assert.Equal(t, capture.StatusInProgress, view.Status)
	assert.Equal(t, model.CategoryNurseMidwife, view.Columns[0].Category)
	assert.Zero(t, env.audits.Count())
}

func TestAudit_Discard(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/api/audit/columns/0/category",
		CategoryRequest{Category: model.CategoryDoctor}, cookie).Code)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/audit/columns", nil, cookie).Code)

	rec := env.do(t, http.MethodPost, "/api/audit/discard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code, "an idle form can be cleared")
	view := decodeData[capture.View](t, rec)
	require.Len(t, view.Columns, 1)
	assert.Empty(t, view.Columns[0].Category)

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/audit/start", nil, cookie).Code)
	rec = env.do(t, http.MethodPost, "/api/audit/discard", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, capture.StatusIdle, decodeData[capture.View](t, rec).Status)

	got, err := env.events.Recent(context.Background(), store.EventFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Audit round discarded", got[0].Message)
	assert.Equal(t, "Audit form cleared", got[1].Message)
}

func TestWriteFormError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{capture.ErrFormExpired, http.StatusConflict},
		{capture.ErrNotStarted, http.StatusConflict},
		{capture.ErrNoData, http.StatusUnprocessableEntity},
		{capture.ErrColumnRange, http.StatusNotFound},
		{capture.ErrInvalidChoice, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeFormError(rec, tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestAudit_EditErrors(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"non-numeric column", http.MethodPut, "/api/audit/columns/x/category", CategoryRequest{Category: "1"}, http.StatusBadRequest},
		{"missing column", http.MethodPut, "/api/audit/columns/3/category", CategoryRequest{Category: "1"}, http.StatusNotFound},
		{"unknown category", http.MethodPut, "/api/audit/columns/0/category", CategoryRequest{Category: "9"}, http.StatusBadRequest},
		{"opportunity out of range", http.MethodPut, "/api/audit/columns/0/opportunities/9/action", ActionRequest{Action: model.ActionHandRub}, http.StatusNotFound},
		{"unknown action", http.MethodPut, oppPath + "/action", ActionRequest{Action: "scrub"}, http.StatusBadRequest},
		{"unknown indication", http.MethodPost, oppPath + "/indications/nope", nil, http.StatusBadRequest},
		{"read-only header", http.MethodPatch, "/api/audit/header", HeaderRequest{Field: "facility", Value: "Elsewhere"}, http.StatusBadRequest},
		{"unknown header", http.MethodPatch, "/api/audit/header", HeaderRequest{Field: "color", Value: "red"}, http.StatusBadRequest},
		{"ward not offered", http.MethodPatch, "/api/audit/header", HeaderRequest{Field: "ward", Value: "Ward Z"}, http.StatusBadRequest},
		{"last column", http.MethodDelete, "/api/audit/columns/0", nil, http.StatusBadRequest},
		{"empty body", http.MethodPut, "/api/audit/columns/0/category", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, tt.method, tt.path, tt.body, cookie)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestAudit_ColumnsCap(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	for range model.MaxColumns - 1 {
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/api/audit/columns", nil, cookie).Code)
	}
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/api/audit/columns", nil, cookie).Code)

	rec := env.do(t, http.MethodDelete, "/api/audit/columns/2", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeData[capture.View](t, rec).Columns, model.MaxColumns-1)
}

func TestAudit_HeaderAndIndicationToggle(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	rec := env.do(t, http.MethodPatch, "/api/audit/header",
		HeaderRequest{Field: "service", Value: "<b>Night</b> shift"}, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Night shift", decodeData[capture.View](t, rec).Header.Service)

	path := oppPath + "/indications/aft-b.f."
	rec = env.do(t, http.MethodPost, path, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []model.Indication{model.IndicationAfterBodyFluid},
		decodeData[capture.View](t, rec).Columns[0].Opportunities[0].Indications)

	rec = env.do(t, http.MethodPost, path, nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeData[capture.View](t, rec).Columns[0].Opportunities[0].Indications)
}

func TestAudit_ClearAction(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, oppPath+"/action",
		ActionRequest{Action: model.ActionGloves}, cookie).Code)
	rec := env.do(t, http.MethodDelete, oppPath+"/action", nil, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, decodeData[capture.View](t, rec).Columns[0].Opportunities[0].Action)
}

func TestAudit_FormsArePerObserver(t *testing.T) {
	env := newTestEnv(t)
	ada := env.signup(t, "ada@clinic.org")
	bob := env.signup(t, "bob@clinic.org")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/audit/start", nil, ada).Code)

	view := decodeData[capture.View](t, env.do(t, http.MethodGet, "/api/audit", nil, bob))
	assert.Equal(t, capture.StatusIdle, view.Status)
}

func (e *testEnv) elapsedRequest(ctx context.Context, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/audit/elapsed", nil).WithContext(ctx)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestElapsed_IdleFormEndsImmediately(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := env.elapsedRequest(ctx, cookie)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "event: elapsed\ndata: {\"elapsed\":\"00:00\",\"seconds\":0}\n\n")
	assert.Contains(t, rec.Body.String(), "event: done")
}

func TestElapsed_TicksUntilClientLeaves(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/audit/start", nil, cookie).Code)
	env.clock.Advance(65 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rec := env.elapsedRequest(ctx, cookie)
	assert.Contains(t, rec.Body.String(), `"elapsed":"01:05","seconds":65`)
	assert.NotContains(t, rec.Body.String(), "event: done")
}

func TestElapsed_StopsWhenRoundEnds(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.signup(t, "ada@clinic.org")

	require.Equal(t, http.StatusOK, env.do(t, http.MethodPost, "/api/audit/start", nil, cookie).Code)

	obs, ok := env.accounts.Lookup("ada@clinic.org")
	require.True(t, ok)
	form := env.forms.Form(obs)
	timer := time.AfterFunc(30*time.Millisecond, func() { _ = form.Discard(env.clock.Now()) })
	defer timer.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rec := env.elapsedRequest(ctx, cookie)
	assert.Contains(t, rec.Body.String(), "event: done")
	assert.NoError(t, ctx.Err(), "stream should end before the client deadline")
}
