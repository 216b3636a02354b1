// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/olegiv/hhaudit/internal/compliance"
	"github.com/olegiv/hhaudit/internal/model"
)

var (
	ada = model.Observer{Email: "ada@clinic.org", Name: "Ada"}
	bob = model.Observer{Email: "bob@clinic.org", Name: "Bob"}
)

func session(id, date string, owner model.Observer, actions ...model.Action) model.AuditSession {
	col := model.NewColumn()
	col.Category = model.CategoryDoctor
	for i, a := range actions {
		a := a
		col.Opportunities[i].Action = &a
		col.Opportunities[i].Indications = []model.Indication{model.IndicationBeforePatient}
	}
	return model.AuditSession{
		ID:            id,
		Date:          date,
		Columns:       []model.ProfessionalColumn{col},
		ObserverEmail: owner.Email,
	}
}

func TestParseDateRange(t *testing.T) {
	r, err := ParseDateRange("", "")
	require.NoError(t, err)
	assert.True(t, r.IsOpen())

	r, err = ParseDateRange("2024-01-01", " 2024-01-31 ")
	require.NoError(t, err)
	assert.Equal(t, 2024, r.Start.Year())
	assert.Equal(t, 31, r.End.Day())

	_, err = ParseDateRange("01/01/2024", "")
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ParseDateRange("", "2024-13-01")
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, err = ParseDateRange("2024-02-01", "2024-01-01")
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestFilter_OwnerAndInclusiveRange(t *testing.T) {
	sessions := []model.AuditSession{
		session("1", "2023-12-31", ada, model.ActionHandRub),
		session("2", "2024-01-01", ada, model.ActionHandRub),
		session("3", "2024-01-31", ada, model.ActionHandRub),
		session("4", "2024-02-01", ada, model.ActionHandRub),
		session("5", "2024-01-15", bob, model.ActionHandRub),
	}

	r, err := ParseDateRange("2024-01-01", "2024-01-31")
	require.NoError(t, err)

	got := Filter(sessions, ada, r)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[0].ID)
	assert.Equal(t, "3", got[1].ID)

	startOnly, err := ParseDateRange("2024-01-31", "")
	require.NoError(t, err)
	assert.Len(t, Filter(sessions, ada, startOnly), 2)

	assert.Len(t, Filter(sessions, ada, DateRange{}), 4)
	assert.Empty(t, Filter(sessions, model.Observer{Email: "ADA@clinic.org"}, DateRange{}),
		"ownership is an exact email match")
}

func TestFilter_InvalidDateOnlyInOpenRange(t *testing.T) {
	sessions := []model.AuditSession{session("1", "not-a-date", ada, model.ActionHandRub)}

	assert.Len(t, Filter(sessions, ada, DateRange{}), 1)

	r, err := ParseDateRange("2024-01-01", "")
	require.NoError(t, err)
	assert.Empty(t, Filter(sessions, ada, r))
}

func TestBuild_WorkedExample(t *testing.T) {
	sessions := []model.AuditSession{
		session("1", "2024-01-15", ada, model.ActionHandRub, model.ActionMissed),
		session("2", "2024-01-20", bob, model.ActionMissed),
	}

	d := Build(sessions, ada, DateRange{})

	assert.Equal(t, "Ada", d.Observer)
	assert.Equal(t, 1, d.SessionCount)
	assert.Equal(t, 2, d.Opportunities)
	assert.InDelta(t, 50.0, d.OverallRate, 1e-9)
	assert.Equal(t, []compliance.MonthSummary{{
		Month: "Jan-24", Year: 2024, MonthOfYear: 1,
		Actions: 1, Opportunities: 2, Missed: 1, Rate: "50%",
	}}, d.Monthly)
	require.Len(t, d.ByCategory, 1)
	assert.Equal(t, "3", d.ByCategory[0].Key)
	assert.Len(t, d.ByIndication, len(model.Indications))
	assert.Equal(t, 2, d.ByIndication[0].Opportunities)
	assert.Empty(t, d.Start)
}

func TestBuild_EmptyRange(t *testing.T) {
	sessions := []model.AuditSession{session("1", "2024-01-15", ada, model.ActionHandRub)}

	r, err := ParseDateRange("2025-01-01", "2025-12-31")
	require.NoError(t, err)
	d := Build(sessions, ada, r)

	assert.Zero(t, d.SessionCount)
	assert.Zero(t, d.OverallRate)
	assert.Empty(t, d.Monthly)
	assert.NotNil(t, d.Monthly)
	assert.Empty(t, d.ByCategory)
	assert.Len(t, d.ByIndication, len(model.Indications))
	assert.Equal(t, "2025-01-01", d.Start)
	assert.Equal(t, "2025-12-31", d.End)
}
