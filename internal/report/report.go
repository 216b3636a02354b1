// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package report assembles the dashboard of one observer from their audit
// sessions. Nothing is cached; every call recomputes from the input.
package report

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/olegiv/hhaudit/internal/compliance"
	"github.com/olegiv/hhaudit/internal/model"
)

// ErrInvalidRange is returned for an unparseable or inverted date range.
var ErrInvalidRange = errors.New("invalid date range")

// DateRange is an inclusive filter on a session's date. A zero bound is open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDateRange reads YYYY-MM-DD bounds. Empty strings leave a side open.
func ParseDateRange(start, end string) (DateRange, error) {
	var r DateRange
	var err error

	if start = strings.TrimSpace(start); start != "" {
		if r.Start, err = time.Parse(model.DateLayout, start); err != nil {
			return DateRange{}, fmt.Errorf("%w: start %q", ErrInvalidRange, start)
		}
	}
	if end = strings.TrimSpace(end); end != "" {
		if r.End, err = time.Parse(model.DateLayout, end); err != nil {
			return DateRange{}, fmt.Errorf("%w: end %q", ErrInvalidRange, end)
		}
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return DateRange{}, fmt.Errorf("%w: end before start", ErrInvalidRange)
	}
	return r, nil
}

// Contains reports whether day falls within the range.
func (r DateRange) Contains(day time.Time) bool {
	if !r.Start.IsZero() && day.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && day.After(r.End) {
		return false
	}
	return true
}

// IsOpen reports whether the range has no bounds at all.
func (r DateRange) IsOpen() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// Filter returns the observer's sessions whose date lies in the range. Sessions
// with an unparseable date only pass an open range.
func Filter(sessions []model.AuditSession, obs model.Observer, r DateRange) []model.AuditSession {
	out := make([]model.AuditSession, 0, len(sessions))
	for _, s := range sessions {
		if !obs.Owns(s) {
			continue
		}
		if !r.IsOpen() {
			day, err := s.Day()
			if err != nil || !r.Contains(day) {
				continue
			}
		}
		out = append(out, s)
	}
	return out
}

// Dashboard is everything the reporting view shows for one observer.
type Dashboard struct {
	Observer      string                    `json:"observer"`
	Start         string                    `json:"start,omitempty"`
	End           string                    `json:"end,omitempty"`
	SessionCount  int                       `json:"sessionCount"`
	Opportunities int                       `json:"opportunities"`
	OverallRate   float64                   `json:"overallRate"`
	Monthly       []compliance.MonthSummary `json:"monthly"`
	ByCategory    []compliance.GroupRate    `json:"byCategory"`
	ByIndication  []compliance.GroupRate    `json:"byIndication"`
}

// Build filters sessions to the observer and range and aggregates them.
func Build(sessions []model.AuditSession, obs model.Observer, r DateRange) Dashboard {
	mine := Filter(sessions, obs, r)
	total := compliance.Total(mine)

	d := Dashboard{
		Observer:      obs.Name,
		SessionCount:  len(mine),
		Opportunities: total.Opportunities,
		OverallRate:   total.Rate(),
		Monthly:       compliance.Monthly(mine),
		ByCategory:    compliance.ByCategory(mine),
		ByIndication:  compliance.ByIndication(mine),
	}
	if !r.Start.IsZero() {
		d.Start = r.Start.Format(model.DateLayout)
	}
	if !r.End.IsZero() {
		d.End = r.End.Format(model.DateLayout)
	}
	return d
}
