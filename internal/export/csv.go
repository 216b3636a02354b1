// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package export serializes audit sessions for download: a flat CSV of
// observed opportunities, a PDF compliance report and an XLSX workbook.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/olegiv/hhaudit/internal/model"
)

// Download names.
const (
	CSVBase  = "hand_hygiene_audit"
	PDFBase  = "hand_hygiene_report"
	XLSXBase = "hand_hygiene_audit"
)

// ErrMalformedCSV is returned when reading a file that is not an export.
var ErrMalformedCSV = errors.New("malformed audit csv")

// CSVHeader is the fixed header row of the CSV export.
var CSVHeader = []string{
	"SessionID", "Date", "Facility", "Observer", "ProfCategory", "Opportunity",
	"Indication_bef-pat", "Indication_bef-asept", "Indication_aft-bf",
	"Indication_aft-pat", "Indication_aft-psurr",
	"Action", "IsCompliant",
}

// Row is one observed opportunity in flat form.
type Row struct {
	SessionID   string
	Date        string
	Facility    string
	Observer    string
	Category    model.Category
	Opportunity int
	Indications []bool // one flag per model.Indications entry
	Action      model.Action
	Compliant   bool
}

// Rows flattens sessions into one row per opportunity with an action.
// Opportunities without an action are not exported.
func Rows(sessions []model.AuditSession) []Row {
	var rows []Row
	for _, s := range sessions {
		for _, c := range s.Columns {
			for _, o := range c.Opportunities {
				if !o.Acted() {
					continue
				}
				flags := make([]bool, len(model.Indications))
				for i, ind := range model.Indications {
					flags[i] = o.HasIndication(ind)
				}
				rows = append(rows, Row{
					SessionID:   s.ID,
					Date:        s.Date,
					Facility:    s.Facility,
					Observer:    s.Observer,
					Category:    c.Category,
					Opportunity: o.ID,
					Indications: flags,
					Action:      *o.Action,
					Compliant:   o.Compliant(),
				})
			}
		}
	}
	return rows
}

func (r Row) record() []string {
	rec := make([]string, 0, len(CSVHeader))
	rec = append(rec, r.SessionID, r.Date, r.Facility, r.Observer, string(r.Category), strconv.Itoa(r.Opportunity))
	for _, set := range r.Indications {
		rec = append(rec, flag(set))
	}
	return append(rec, string(r.Action), flag(r.Compliant))
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// WriteCSV writes the header and one row per acted opportunity. Fields with
// delimiters, quotes or newlines are quoted.
func WriteCSV(w io.Writer, sessions []model.AuditSession) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, r := range Rows(sessions) {
		if err := cw.Write(r.record()); err != nil {
			return fmt.Errorf("writing csv row for session %s: %w", r.SessionID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a CSV export back into rows.
func ReadCSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(CSVHeader)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrMalformedCSV, err)
	}
	if !slices.Equal(header, CSVHeader) {
		return nil, fmt.Errorf("%w: unexpected header", ErrMalformedCSV)
	}

	var rows []Row
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}
		row, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
		rows = append(rows, row)
	}
}

func parseRecord(rec []string) (Row, error) {
	opp, err := strconv.Atoi(rec[5])
	if err != nil {
		return Row{}, fmt.Errorf("opportunity %q: %w", rec[5], err)
	}
	row := Row{
		SessionID:   rec[0],
		Date:        rec[1],
		Facility:    rec[2],
		Observer:    rec[3],
		Category:    model.Category(rec[4]),
		Opportunity: opp,
		Indications: make([]bool, len(model.Indications)),
		Action:      model.Action(rec[11]),
	}
	for i := range model.Indications {
		if row.Indications[i], err = parseFlag(rec[6+i]); err != nil {
			return Row{}, err
		}
	}
	if row.Compliant, err = parseFlag(rec[12]); err != nil {
		return Row{}, err
	}
	return row, nil
}

func parseFlag(s string) (bool, error) {
	switch s {
	case "1":
		return true, nil
	case "0":
		return false, nil
	}
	return false, fmt.Errorf("flag %q is not 0 or 1", s)
}

// RateFromRows returns the compliance percentage of exported rows, which
// equals the overall rate of the sessions that produced them.
func RateFromRows(rows []Row) float64 {
	if len(rows) == 0 {
		return 0
	}
	compliant := 0
	for _, r := range rows {
		if r.Compliant {
			compliant++
		}
	}
	return float64(compliant) / float64(len(rows)) * 100
}
