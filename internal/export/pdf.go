// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package export

import (
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/olegiv/hhaudit/internal/compliance"
	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/report"
)

// PDFTitle heads the compliance report.
const PDFTitle = "Hand Hygiene Compliance Report"

const (
	pdfMargin    = 14.0
	pdfRowHeight = 8.0
	pdfNameWidth = 120.0
	pdfRateWidth = 62.0
)

// WritePDF renders the compliance report of a dashboard. Tables continue on
// a new page when they run past the bottom margin.
func WritePDF(w io.Writer, d report.Dashboard, generated time.Time) error {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(PDFTitle, true)
	pdf.SetCreator("hhaudit", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, PDFTitle, "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Report Generated: "+generated.Format(model.DateLayout), "", 1, "L", false, 0, "")
	if d.Observer != "" {
		pdf.CellFormat(0, 6, tr("Observer: "+d.Observer), "", 1, "L", false, 0, "")
	}
	if d.Start != "" || d.End != "" {
		pdf.CellFormat(0, 6, fmt.Sprintf("Period: %s to %s", orOpen(d.Start), orOpen(d.End)), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, fmt.Sprintf("Overall Compliance: %.2f%%", d.OverallRate), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	rateTable(pdf, tr, "Compliance by Professional Category", "Category", d.ByCategory)
	pdf.Ln(6)
	rateTable(pdf, tr, "Compliance by Indication", "Indication", d.ByIndication)

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("rendering pdf: %w", err)
	}
	return nil
}

func rateTable(pdf *fpdf.Fpdf, tr func(string) string, title, nameHeader string, rates []compliance.GroupRate) {
	pdf.SetFont("Helvetica", "B", 12)
	pdf.CellFormat(0, 8, title, "", 1, "L", false, 0, "")

	pdf.SetFillColor(41, 128, 185)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(pdfNameWidth, pdfRowHeight, nameHeader, "1", 0, "L", true, 0, "")
	pdf.CellFormat(pdfRateWidth, pdfRowHeight, "Compliance (%)", "1", 1, "R", true, 0, "")

	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 10)
	for _, r := range rates {
		pdf.CellFormat(pdfNameWidth, pdfRowHeight, tr(r.Name), "1", 0, "L", false, 0, "")
		pdf.CellFormat(pdfRateWidth, pdfRowHeight, fmt.Sprintf("%.2f", r.Rate), "1", 1, "R", false, 0, "")
	}
}

func orOpen(day string) string {
	if day == "" {
		return "..."
	}
	return day
}
