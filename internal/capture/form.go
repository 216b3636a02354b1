// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package capture holds the in-progress audit form of each observer and turns
// a completed observation round into an audit session.
package capture

import (
	"errors"
	"fmt"
	"html"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/olegiv/hhaudit/internal/model"
)

// Form errors. They describe a rejected user action; the form is unchanged.
var (
	ErrAlreadyInProgress = errors.New("session already in progress")
	ErrNotStarted        = errors.New("please start the session first")
	ErrNoData            = errors.New("no data to save: fill out at least one opportunity for an assigned professional category")
	ErrMaxColumns        = fmt.Errorf("at most %d professionals can be observed in one session", model.MaxColumns)
	ErrLastColumn        = errors.New("at least one professional column is required")
	ErrColumnRange       = errors.New("no such professional column")
	ErrOpportunityRange  = errors.New("no such opportunity")
	ErrUnknownCategory   = errors.New("unknown professional category")
	ErrUnknownIndication = errors.New("unknown indication")
	ErrUnknownAction     = errors.New("unknown action")
	ErrUnknownField      = errors.New("unknown header field")
	ErrReadOnlyField     = errors.New("header field is read-only")
	ErrInvalidChoice     = errors.New("value is not one of the offered choices")
	ErrFormExpired       = errors.New("the draft expired after a period of inactivity, reload the form")
)

// Status is the lifecycle state of a form.
type Status string

// Form states. Saving or discarding returns the form to StatusIdle.
const (
	StatusIdle       Status = "idle"
	StatusInProgress Status = "in-progress"
)

// maxSanitizePasses bounds the unescape and sanitize loop in SetHeader.
const maxSanitizePasses = 4

// idLayout matches an ISO-8601 UTC timestamp with milliseconds.
const idLayout = "2006-01-02T15:04:05.000Z"

// Header holds the session metadata shown above the columns.
type Header struct {
	Facility      string `json:"facility"`
	Service       string `json:"service"`
	Ward          string `json:"ward"`
	Department    string `json:"department"`
	Country       string `json:"country"`
	City          string `json:"city"`
	PeriodNumber  string `json:"periodNumber"`
	SessionNumber string `json:"sessionNumber"`
	Observer      string `json:"observer"`
}

// View is a read-only snapshot of a form.
type View struct {
	Status    Status                     `json:"status"`
	Header    Header                     `json:"header"`
	Columns   []model.ProfessionalColumn `json:"columns"`
	StartedAt *time.Time                 `json:"startedAt,omitempty"`
	Elapsed   string                     `json:"elapsed"`
}

// Form is one observer's audit form. It is safe for concurrent use.
type Form struct {
	mu        sync.Mutex
	header    Header
	columns   []model.ProfessionalColumn
	status    Status
	startedAt time.Time
	touchedAt time.Time
	done      chan struct{}
	policy    *bluemonday.Policy
	// retired is set when the sweeper drops the form; later edits fail.
	retired bool
}

// NewForm creates an idle form whose observer-linked fields come from obs.
func NewForm(obs model.Observer, now time.Time) *Form {
	f := &Form{
		header: Header{
			Facility: obs.Facility,
			Country:  obs.Country,
			City:     obs.City,
			Observer: obs.Name,
		},
		touchedAt: now,
		policy:    bluemonday.StrictPolicy(),
	}
	f.reset()
	return f
}

// reset returns the form to idle with a single blank column. Observer-linked
// header fields are kept.
func (f *Form) reset() {
	f.header.Service = ""
	f.header.Ward = model.Wards[0]
	f.header.Department = model.Departments[0]
	f.header.PeriodNumber = ""
	f.header.SessionNumber = ""
	f.columns = []model.ProfessionalColumn{model.NewColumn()}
	f.status = StatusIdle
	f.startedAt = time.Time{}
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
}

// Start begins the observation round: it stamps a time-based session number
// and the start time. Starting an in-progress form changes nothing.
func (f *Form) Start(now time.Time) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.retired {
		return "", ErrFormExpired
	}
	if f.status == StatusInProgress {
		return f.header.SessionNumber, ErrAlreadyInProgress
	}

	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating session number: %w", err)
	}

	f.header.SessionNumber = id.String()
	f.startedAt = now
	f.touchedAt = now
	f.status = StatusInProgress
	f.done = make(chan struct{})
	return f.header.SessionNumber, nil
}

// Save completes the round and returns the audit session to persist. Columns
// without a category or without any recorded action are dropped; if none
// remain, ErrNoData is returned and the form is left untouched.
func (f *Form) Save(now time.Time, obs model.Observer) (model.AuditSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.retired {
		return model.AuditSession{}, ErrFormExpired
	}
	if f.status != StatusInProgress || f.startedAt.IsZero() || obs.Email == "" {
		return model.AuditSession{}, ErrNotStarted
	}

	columns := model.QualifyingColumns(f.columns)
	if len(columns) == 0 {
		return model.AuditSession{}, ErrNoData
	}

	start := f.startedAt
	s := model.AuditSession{
		ID:              now.UTC().Format(idLayout),
		Facility:        f.header.Facility,
		Service:         f.header.Service,
		Ward:            f.header.Ward,
		Department:      f.header.Department,
		Country:         f.header.Country,
		City:            f.header.City,
		PeriodNumber:    f.header.PeriodNumber,
		SessionNumber:   f.header.SessionNumber,
		Observer:        f.header.Observer,
		Date:            start.Format(model.DateLayout),
		StartTime:       start.Format(model.ClockLayout),
		EndTime:         now.Format(model.ClockLayout),
		SessionDuration: int(math.Round(now.Sub(start).Minutes())),
		Columns:         columns,
		ObserverEmail:   obs.Email,
	}

	f.reset()
	f.touchedAt = now
	return s, nil
}

// Discard clears the form back to a single blank column, abandoning the
// round if one is in progress. An idle form is cleared as well.
func (f *Form) Discard(now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.retired {
		return ErrFormExpired
	}
	f.reset()
	f.touchedAt = now
	return nil
}

// Done returns a channel closed when the current round is saved or
// discarded. For an idle form the channel is already closed.
func (f *Form) Done() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.done == nil {
		c := make(chan struct{})
		close(c)
		return c
	}
	return f.done
}

// Status returns the lifecycle state.
func (f *Form) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}

// Elapsed returns the whole seconds since the round started, or 0 when idle.
func (f *Form) Elapsed(now time.Time) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.elapsed(now)
}

func (f *Form) elapsed(now time.Time) time.Duration {
	if f.status != StatusInProgress {
		return 0
	}
	d := now.Sub(f.startedAt).Truncate(time.Second)
	if d < 0 {
		return 0
	}
	return d
}

// FormatElapsed renders a duration as MM:SS.
func FormatElapsed(d time.Duration) string {
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}

// retire clears and retires the form if it has not been touched within ttl.
// It reports whether the form was retired and whether a round was abandoned.
func (f *Form) retire(now time.Time, ttl time.Duration) (retired, abandoned bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.retired || now.Sub(f.touchedAt) <= ttl {
		return false, false
	}
	abandoned = f.status == StatusInProgress
	f.reset()
	f.retired = true
	return true, abandoned
}

// View returns a deep snapshot of the form.
func (f *Form) View(now time.Time) View {
	f.mu.Lock()
	defer f.mu.Unlock()

	v := View{
		Status:  f.status,
		Header:  f.header,
		Columns: make([]model.ProfessionalColumn, len(f.columns)),
		Elapsed: FormatElapsed(f.elapsed(now)),
	}
	for i, c := range f.columns {
		v.Columns[i] = c.Clone()
	}
	if f.status == StatusInProgress {
		started := f.startedAt
		v.StartedAt = &started
	}
	return v
}

// SetHeader edits an editable header field. Free text is stripped of markup.
func (f *Form) SetHeader(field, value string, now time.Time) error {
	value = strings.TrimSpace(f.plainText(value))

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.retired {
		return ErrFormExpired
	}

	switch field {
	case "service":
		f.header.Service = value
	case "periodNumber":
		f.header.PeriodNumber = value
	case "ward":
		if !slices.Contains(model.Wards, value) {
			return fmt.Errorf("%w: ward %q", ErrInvalidChoice, value)
		}
		f.header.Ward = value
	case "department":
		if !slices.Contains(model.Departments, value) {
			return fmt.Errorf("%w: department %q", ErrInvalidChoice, value)
		}
		f.header.Department = value
	case "facility", "country", "city", "observer", "sessionNumber":
		return fmt.Errorf("%w: %s", ErrReadOnlyField, field)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, field)
	}
	f.touchedAt = now
	return nil
}

// plainText strips markup, including markup hidden behind entity encoding.
// Values are stored unescaped so "Soins & Réa" round-trips. A value that is
// still changing after maxSanitizePasses keeps its escaped form.
func (f *Form) plainText(value string) string {
	for range maxSanitizePasses {
		next := html.UnescapeString(f.policy.Sanitize(value))
		if next == value {
			return next
		}
		value = next
	}
	return f.policy.Sanitize(value)
}

// AddColumn appends a blank column and returns its index.
func (f *Form) AddColumn(now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.retired {
		return 0, ErrFormExpired
	}
	if len(f.columns) >= model.MaxColumns {
		return 0, ErrMaxColumns
	}
	f.columns = append(f.columns, model.NewColumn())
	f.touchedAt = now
	return len(f.columns) - 1, nil
}

// RemoveColumn deletes a column; the last remaining column cannot be removed.
func (f *Form) RemoveColumn(col int, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkColumn(col); err != nil {
		return err
	}
	if len(f.columns) == 1 {
		return ErrLastColumn
	}
	f.columns = slices.Delete(f.columns, col, col+1)
	f.touchedAt = now
	return nil
}

// SetCategory assigns the professional category of a column.
func (f *Form) SetCategory(col int, cat model.Category, now time.Time) error {
	if !cat.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownCategory, cat)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.checkColumn(col); err != nil {
		return err
	}
	f.columns[col].Category = cat
	f.touchedAt = now
	return nil
}

// ToggleIndication adds the indication to an opportunity, or removes it if
// already present. It reports whether the indication is now set.
func (f *Form) ToggleIndication(col, opp int, ind model.Indication, now time.Time) (bool, error) {
	if !ind.Valid() {
		return false, fmt.Errorf("%w: %q", ErrUnknownIndication, ind)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	o, err := f.opportunity(col, opp)
	if err != nil {
		return false, err
	}
	f.touchedAt = now
	if i := slices.Index(o.Indications, ind); i >= 0 {
		o.Indications = slices.Delete(o.Indications, i, i+1)
		return false, nil
	}
	o.Indications = append(o.Indications, ind)
	return true, nil
}

// SetAction records the action of an opportunity, replacing any prior one.
func (f *Form) SetAction(col, opp int, action model.Action, now time.Time) error {
	if !action.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	o, err := f.opportunity(col, opp)
	if err != nil {
		return err
	}
	o.Action = &action
	f.touchedAt = now
	return nil
}

// ClearAction marks an opportunity as not observed.
func (f *Form) ClearAction(col, opp int, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, err := f.opportunity(col, opp)
	if err != nil {
		return err
	}
	o.Action = nil
	f.touchedAt = now
	return nil
}

func (f *Form) checkColumn(col int) error {
	if f.retired {
		return ErrFormExpired
	}
	if col < 0 || col >= len(f.columns) {
		return fmt.Errorf("%w: %d", ErrColumnRange, col)
	}
	return nil
}

// opportunity returns the opportunity with the given 1-based id.
func (f *Form) opportunity(col, opp int) (*model.Opportunity, error) {
	if err := f.checkColumn(col); err != nil {
		return nil, err
	}
	if opp < 1 || opp > len(f.columns[col].Opportunities) {
		return nil, fmt.Errorf("%w: %d", ErrOpportunityRange, opp)
	}
	return &f.columns[col].Opportunities[opp-1], nil
}
