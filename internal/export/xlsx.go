// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package export

import (
	"fmt"
	"io"
	"math"

	"github.com/xuri/excelize/v2"

	"github.com/olegiv/hhaudit/internal/compliance"
	"github.com/olegiv/hhaudit/internal/model"
)

// Workbook sheet names.
const (
	SheetObservations = "Observations"
	SheetMonthly      = "Monthly Summary"
	SheetCategories   = "By Category"
	SheetIndications  = "By Indication"
)

// groupHeader heads the category and indication sheets.
var groupHeader = []string{"Code", "Name", "Hand hygiene actions", "Opportunities", "Compliance (%)"}

// monthlyRowLabels head the rows of the monthly sheet; each month is a column.
var monthlyRowLabels = []string{"Month", "Hand hygiene actions", "Opportunities", "Missed", "Compliance"}

// WriteXLSX writes a workbook with the CSV rows, the monthly compliance table
// and the compliance by category and by indication, one sheet each.
func WriteXLSX(w io.Writer, sessions []model.AuditSession) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing workbook: %w", cerr)
		}
	}()

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	idx, err := f.NewSheet(SheetObservations)
	if err != nil {
		return fmt.Errorf("creating sheet %s: %w", SheetObservations, err)
	}
	f.SetActiveSheet(idx)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}

	if err := writeObservations(f, sessions, header); err != nil {
		return err
	}
	if err := writeMonthly(f, compliance.Monthly(sessions), header); err != nil {
		return err
	}
	if err := writeGroups(f, SheetCategories, compliance.ByCategory(sessions), header); err != nil {
		return err
	}
	if err := writeGroups(f, SheetIndications, compliance.ByIndication(sessions), header); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

func writeObservations(f *excelize.File, sessions []model.AuditSession, header int) error {
	if err := setRow(f, SheetObservations, 1, toCells(CSVHeader)); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(CSVHeader), 1)
	if err != nil {
		return fmt.Errorf("converting coordinates: %w", err)
	}
	if err := f.SetCellStyle(SheetObservations, "A1", last, header); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(SheetObservations, "A", "A", 26); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}

	for i, r := range Rows(sessions) {
		cells := []any{r.SessionID, r.Date, r.Facility, r.Observer, string(r.Category), r.Opportunity}
		for _, set := range r.Indications {
			cells = append(cells, bit(set))
		}
		cells = append(cells, string(r.Action), bit(r.Compliant))
		if err := setRow(f, SheetObservations, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func writeMonthly(f *excelize.File, months []compliance.MonthSummary, header int) error {
	if _, err := f.NewSheet(SheetMonthly); err != nil {
		return fmt.Errorf("creating sheet %s: %w", SheetMonthly, err)
	}

	rows := make([][]any, len(monthlyRowLabels))
	for i, label := range monthlyRowLabels {
		rows[i] = []any{label}
	}
	for _, m := range months {
		rows[0] = append(rows[0], m.Month)
		rows[1] = append(rows[1], m.Actions)
		rows[2] = append(rows[2], m.Opportunities)
		rows[3] = append(rows[3], m.Missed)
		rows[4] = append(rows[4], m.Rate)
	}
	for i, cells := range rows {
		if err := setRow(f, SheetMonthly, i+1, cells); err != nil {
			return err
		}
	}

	if err := f.SetCellStyle(SheetMonthly, "A1", "A5", header); err != nil {
		return fmt.Errorf("styling row labels: %w", err)
	}
	if err := f.SetColWidth(SheetMonthly, "A", "A", 22); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}
	return nil
}

func writeGroups(f *excelize.File, sheet string, groups []compliance.GroupRate, header int) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("creating sheet %s: %w", sheet, err)
	}
	if err := setRow(f, sheet, 1, toCells(groupHeader)); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(groupHeader), 1)
	if err != nil {
		return fmt.Errorf("converting coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, header); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(sheet, "B", "B", 40); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}

	for i, g := range groups {
		cells := []any{g.Key, g.Name, g.Actions, g.Opportunities, math.Round(g.Rate*100) / 100}
		if err := setRow(f, sheet, i+2, cells); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("converting coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("writing %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toCells(values []string) []any {
	cells := make([]any, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return cells
}

func bit(b bool) int {
	if b {
		return 1
	}
	return 0
}
