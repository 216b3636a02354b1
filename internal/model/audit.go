// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package model defines the audit domain: observers, audit sessions,
// professional columns, opportunities and their enumerated codes.
package model

import (
	"fmt"
	"slices"
	"time"
)

// OpportunitiesPerColumn is the fixed number of opportunities in a column.
const OpportunitiesPerColumn = 8

// MaxColumns is the maximum number of workers observed in one session.
const MaxColumns = 4

// DateLayout is the layout of AuditSession.Date.
const DateLayout = "2006-01-02"

// ClockLayout is the layout of AuditSession.StartTime and EndTime.
const ClockLayout = "15:04"

// Indication is the clinical reason a hand-hygiene moment arose.
type Indication string

// Indications, in report order.
const (
	IndicationBeforePatient     Indication = "bef-pat"
	IndicationBeforeAseptic     Indication = "bef-asept"
	IndicationAfterBodyFluid    Indication = "aft-b.f."
	IndicationAfterPatient      Indication = "aft-pat."
	IndicationAfterSurroundings Indication = "aft.p.surr."
)

// Indications lists every indication in report order.
var Indications = []Indication{
	IndicationBeforePatient,
	IndicationBeforeAseptic,
	IndicationAfterBodyFluid,
	IndicationAfterPatient,
	IndicationAfterSurroundings,
}

var indicationLabels = map[Indication]string{
	IndicationBeforePatient:     "Before touching patient",
	IndicationBeforeAseptic:     "Before clean/aseptic procedure",
	IndicationAfterBodyFluid:    "After body fluid exposure risk",
	IndicationAfterPatient:      "After touching patient",
	IndicationAfterSurroundings: "After touching patient surroundings",
}

// Valid reports whether i is a known indication.
func (i Indication) Valid() bool {
	_, ok := indicationLabels[i]
	return ok
}

// Label returns the human-readable name of the indication.
func (i Indication) Label() string {
	if l, ok := indicationLabels[i]; ok {
		return l
	}
	return string(i)
}

// Action is the observed hand-hygiene behaviour for an opportunity.
type Action string

// Actions.
const (
	ActionHandRub  Action = "HR"
	ActionHandWash Action = "HW"
	ActionMissed   Action = "missed"
	ActionGloves   Action = "gloves"
)

// Actions lists every action.
var Actions = []Action{ActionHandRub, ActionHandWash, ActionMissed, ActionGloves}

var actionLabels = map[Action]string{
	ActionHandRub:  "Hand Rub",
	ActionHandWash: "Hand Wash",
	ActionMissed:   "Missed",
	ActionGloves:   "Gloves (Action Missed)",
}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	_, ok := actionLabels[a]
	return ok
}

// Label returns the human-readable name of the action.
func (a Action) Label() string {
	if l, ok := actionLabels[a]; ok {
		return l
	}
	return string(a)
}

// Compliant reports whether the action counts as hand hygiene performed.
func (a Action) Compliant() bool {
	return a == ActionHandRub || a == ActionHandWash
}

// Category classifies the observed health-care worker.
type Category string

// Professional categories. CategoryUnset marks a column nobody was assigned to.
const (
	CategoryNurseMidwife Category = "1"
	CategoryAuxiliary    Category = "2"
	CategoryDoctor       Category = "3"
	CategoryOther        Category = "4"
	CategoryUnset        Category = ""
)

// Categories lists the assignable categories in report order.
var Categories = []Category{CategoryNurseMidwife, CategoryAuxiliary, CategoryDoctor, CategoryOther}

var categoryLabels = map[Category]string{
	CategoryNurseMidwife: "1. Nurse / Midwife",
	CategoryAuxiliary:    "2. Auxiliary",
	CategoryDoctor:       "3. Medical Doctor",
	CategoryOther:        "4. Other Health-Care Worker",
	CategoryUnset:        "Select Category",
}

// Valid reports whether c is a known category, including CategoryUnset.
func (c Category) Valid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human-readable name of the category.
func (c Category) Label() string {
	if l, ok := categoryLabels[c]; ok {
		return l
	}
	return "Unknown"
}

// Departments offered on the audit form; the first entry is the default.
var Departments = []string{
	"General Medicine", "Surgery", "Pediatrics", "Obstetrics & Gynaecology",
	"Emergency", "Intensive Care Unit (ICU)", "Oncology", "Cardiology", "Other",
}

// Wards offered on the audit form; the first entry is the default.
var Wards = []string{
	"Ward A", "Ward B", "Ward C", "Surgical Ward", "Medical Ward", "Pediatric Ward", "Other",
}

// Opportunity is one recordable hand-hygiene moment within a column.
// A nil Action means the moment was not observed.
type Opportunity struct {
	ID          int          `json:"id"`
	Indications []Indication `json:"indications"`
	Action      *Action      `json:"action"`
}

// Acted reports whether an action was recorded.
func (o Opportunity) Acted() bool {
	return o.Action != nil
}

// Compliant reports whether a compliant action was recorded.
func (o Opportunity) Compliant() bool {
	return o.Action != nil && o.Action.Compliant()
}

// HasIndication reports whether ind is tagged on the opportunity.
func (o Opportunity) HasIndication(ind Indication) bool {
	return slices.Contains(o.Indications, ind)
}

// ProfessionalColumn is one observed worker's data for a session.
type ProfessionalColumn struct {
	Category      Category      `json:"profCategory"`
	Opportunities []Opportunity `json:"opportunities"`
}

// NewColumn returns a column with the unset category and eight blank opportunities.
func NewColumn() ProfessionalColumn {
	opps := make([]Opportunity, OpportunitiesPerColumn)
	for i := range opps {
		opps[i] = Opportunity{ID: i + 1, Indications: []Indication{}}
	}
	return ProfessionalColumn{Category: CategoryUnset, Opportunities: opps}
}

// Qualifies reports whether the column may be persisted: it has a category
// and at least one opportunity with an action.
func (c ProfessionalColumn) Qualifies() bool {
	if c.Category == CategoryUnset {
		return false
	}
	return slices.ContainsFunc(c.Opportunities, Opportunity.Acted)
}

// Clone returns a deep copy of the column.
func (c ProfessionalColumn) Clone() ProfessionalColumn {
	out := ProfessionalColumn{Category: c.Category, Opportunities: make([]Opportunity, len(c.Opportunities))}
	for i, o := range c.Opportunities {
		o.Indications = slices.Clone(o.Indications)
		if o.Action != nil {
			a := *o.Action
			o.Action = &a
		}
		out.Opportunities[i] = o
	}
	return out
}

// QualifyingColumns returns deep copies of the columns that may be persisted.
func QualifyingColumns(cols []ProfessionalColumn) []ProfessionalColumn {
	out := make([]ProfessionalColumn, 0, len(cols))
	for _, c := range cols {
		if c.Qualifies() {
			out = append(out, c.Clone())
		}
	}
	return out
}

// AuditSession is one completed observation round, the unit of persistence.
// Sessions are never updated once saved.
type AuditSession struct {
	ID              string               `json:"id"`
	Facility        string               `json:"facility"`
	Service         string               `json:"service"`
	Ward            string               `json:"ward"`
	Department      string               `json:"department"`
	Country         string               `json:"country"`
	City            string               `json:"city"`
	PeriodNumber    string               `json:"periodNumber"`
	SessionNumber   string               `json:"sessionNumber"`
	Observer        string               `json:"observer"`
	Date            string               `json:"date"`
	StartTime       string               `json:"startTime"`
	EndTime         string               `json:"endTime"`
	SessionDuration int                  `json:"sessionDuration"`
	Columns         []ProfessionalColumn `json:"columns"`
	ObserverEmail   string               `json:"observerEmail"`
}

// Day parses Date as a calendar day at UTC midnight, so the month it falls in
// does not depend on any viewer's timezone.
func (s AuditSession) Day() (time.Time, error) {
	d, err := time.Parse(DateLayout, s.Date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing session date %q: %w", s.Date, err)
	}
	return d, nil
}
