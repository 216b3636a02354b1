// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package compliance folds audit sessions into hand-hygiene compliance
// statistics. All functions are pure and never divide by zero.
package compliance

import (
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/olegiv/hhaudit/internal/model"
)

// DivByZero is the rate shown for a month with no recorded opportunities.
const DivByZero = "#DIV/0!"

// monthLabelLayout renders a month bucket as e.g. "Jan-24".
const monthLabelLayout = "Jan-06"

// Tally counts acted opportunities and the compliant subset of them.
type Tally struct {
	Actions       int `json:"actions"`
	Opportunities int `json:"opportunities"`
}

// add records one acted opportunity.
func (t *Tally) add(o model.Opportunity) {
	t.Opportunities++
	if o.Compliant() {
		t.Actions++
	}
}

// Rate returns Actions/Opportunities as a percentage, or 0 with no opportunities.
func (t Tally) Rate() float64 {
	if t.Opportunities == 0 {
		return 0
	}
	return float64(t.Actions) / float64(t.Opportunities) * 100
}

// Missed is the number of opportunities without a compliant action.
func (t Tally) Missed() int {
	return t.Opportunities - t.Actions
}

// MonthSummary is one column of the monthly compliance table.
type MonthSummary struct {
	Month         string     `json:"month"` // e.g. "Jan-24"
	Year          int        `json:"-"`
	MonthOfYear   time.Month `json:"-"`
	Actions       int        `json:"actions"`
	Opportunities int        `json:"opportunities"`
	Missed        int        `json:"missed"`
	Rate          string     `json:"rate"` // e.g. "50%" or DivByZero
}

// GroupRate is the compliance of one category or indication.
type GroupRate struct {
	Key           string  `json:"key"`
	Name          string  `json:"name"`
	Actions       int     `json:"actions"`
	Opportunities int     `json:"opportunities"`
	Rate          float64 `json:"rate"`
}

func groupRate(key, name string, t Tally) GroupRate {
	return GroupRate{
		Key:           key,
		Name:          name,
		Actions:       t.Actions,
		Opportunities: t.Opportunities,
		Rate:          t.Rate(),
	}
}

// eachActed calls fn for every opportunity with a recorded action.
func eachActed(sessions []model.AuditSession, fn func(o model.Opportunity)) {
	for _, s := range sessions {
		for _, c := range s.Columns {
			for _, o := range c.Opportunities {
				if o.Acted() {
					fn(o)
				}
			}
		}
	}
}

// Total tallies every acted opportunity in the sessions.
func Total(sessions []model.AuditSession) Tally {
	var t Tally
	eachActed(sessions, func(o model.Opportunity) {
		t.add(o)
	})
	return t
}

// OverallRate returns the percentage of acted opportunities that were
// compliant, in [0, 100]. It is 0 when nothing was acted on.
func OverallRate(sessions []model.AuditSession) float64 {
	return Total(sessions).Rate()
}

// FormatRate renders a monthly rate rounded to a whole percent.
func FormatRate(t Tally) string {
	if t.Opportunities == 0 {
		return DivByZero
	}
	return fmt.Sprintf("%d%%", int(math.Round(t.Rate())))
}

type monthKey struct {
	year  int
	month time.Month
}

// Monthly groups sessions by the calendar month of their date and returns
// the months in chronological order. Sessions with an unparseable date are
// skipped and logged.
func Monthly(sessions []model.AuditSession) []MonthSummary {
	tallies := make(map[monthKey]*Tally)

	for _, s := range sessions {
		day, err := s.Day()
		if err != nil {
			slog.Warn("skipping session with invalid date in monthly summary",
				"category", model.EventCategoryAudit, "session_id", s.ID, "error", err)
			continue
		}
		key := monthKey{year: day.Year(), month: day.Month()}
		t, ok := tallies[key]
		if !ok {
			t = &Tally{}
			tallies[key] = t
		}
		eachActed([]model.AuditSession{s}, t.add)
	}

	out := make([]MonthSummary, 0, len(tallies))
	for key, t := range tallies {
		out = append(out, MonthSummary{
			Month:         time.Date(key.year, key.month, 1, 0, 0, 0, 0, time.UTC).Format(monthLabelLayout),
			Year:          key.year,
			MonthOfYear:   key.month,
			Actions:       t.Actions,
			Opportunities: t.Opportunities,
			Missed:        t.Missed(),
			Rate:          FormatRate(*t),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].MonthOfYear < out[j].MonthOfYear
	})
	return out
}

// ByCategory returns the compliance of each professional category that
// appears in the sessions, in category order. Unset columns are excluded.
func ByCategory(sessions []model.AuditSession) []GroupRate {
	tallies := make(map[model.Category]*Tally)
	for _, s := range sessions {
		for _, c := range s.Columns {
			if c.Category == model.CategoryUnset {
				continue
			}
			t, ok := tallies[c.Category]
			if !ok {
				t = &Tally{}
				tallies[c.Category] = t
			}
			for _, o := range c.Opportunities {
				if o.Acted() {
					t.add(o)
				}
			}
		}
	}

	out := make([]GroupRate, 0, len(tallies))
	for _, cat := range model.Categories {
		if t, ok := tallies[cat]; ok {
			out = append(out, groupRate(string(cat), cat.Label(), *t))
			delete(tallies, cat)
		}
	}
	// Codes outside the enumeration still get reported, after the known ones.
	unknown := make([]model.Category, 0, len(tallies))
	for cat := range tallies {
		unknown = append(unknown, cat)
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	for _, cat := range unknown {
		out = append(out, groupRate(string(cat), cat.Label(), *tallies[cat]))
	}
	return out
}

// ByIndication returns the compliance of every indication, in indication
// order. All indications are present even when nothing references them.
// An opportunity with several indications counts once for each of them, and
// a repeated indication on one opportunity counts once.
func ByIndication(sessions []model.AuditSession) []GroupRate {
	tallies := make(map[model.Indication]*Tally, len(model.Indications))
	for _, ind := range model.Indications {
		tallies[ind] = &Tally{}
	}

	eachActed(sessions, func(o model.Opportunity) {
		for _, ind := range model.Indications {
			if o.HasIndication(ind) {
				tallies[ind].add(o)
			}
		}
	})

	out := make([]GroupRate, 0, len(model.Indications))
	for _, ind := range model.Indications {
		out = append(out, groupRate(string(ind), ind.Label(), *tallies[ind]))
	}
	return out
}
