// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/olegiv/hhaudit/internal/export"
	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/report"
	"github.com/olegiv/hhaudit/internal/service"
	"github.com/olegiv/hhaudit/internal/util"
)

// Export content types.
const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypePDF  = "application/pdf"
	contentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// ReportsHandler serves the dashboard, the session list and the exports.
// Every response is computed from the observer's current sessions.
type ReportsHandler struct {
	audits       *service.Audits
	eventService *service.EventService
	now          func() time.Time
}

// NewReportsHandler creates a new ReportsHandler. A nil clock uses time.Now.
func NewReportsHandler(audits *service.Audits, events *service.EventService, now func() time.Time) *ReportsHandler {
	if now == nil {
		now = time.Now
	}
	return &ReportsHandler{
		audits:       audits,
		eventService: events,
		now:          now,
	}
}

// Dashboard handles GET /api/dashboard.
func (h *ReportsHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	obs, rng, ok := h.scope(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, report.Build(h.audits.ForObserver(obs), obs, rng), nil)
}

// Sessions handles GET /api/sessions.
func (h *ReportsHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	obs, rng, ok := h.scope(w, r)
	if !ok {
		return
	}

	sessions := report.Filter(h.audits.ForObserver(obs), obs, rng)
	meta := &Meta{Total: len(sessions)}
	if !rng.Start.IsZero() {
		meta.Start = rng.Start.Format(model.DateLayout)
	}
	if !rng.End.IsZero() {
		meta.End = rng.End.Format(model.DateLayout)
	}
	WriteSuccess(w, sessions, meta)
}

// DeleteSessions handles DELETE /api/sessions: it removes every session the
// observer saved.
func (h *ReportsHandler) DeleteSessions(w http.ResponseWriter, r *http.Request) {
	obs, ok := requireObserver(w, r)
	if !ok {
		return
	}

	n := h.audits.DeleteForObserver(r.Context(), obs)
	_ = h.eventService.LogAuditEvent(r.Context(), model.EventLevelWarning, "Observer audit data deleted",
		map[string]any{"observer": obs.Email, "sessions": n})
	WriteSuccess(w, map[string]int{"deleted": n}, nil)
}

// ExportCSV handles GET /api/export/csv.
func (h *ReportsHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "csv", export.CSVBase, contentTypeCSV,
		func(buf io.Writer, sessions []model.AuditSession, _ report.Dashboard) error {
			return export.WriteCSV(buf, sessions)
		})
}

// ExportPDF handles GET /api/export/pdf.
func (h *ReportsHandler) ExportPDF(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "pdf", export.PDFBase, contentTypePDF,
		func(buf io.Writer, _ []model.AuditSession, d report.Dashboard) error {
			return export.WritePDF(buf, d, h.now())
		})
}

// ExportXLSX handles GET /api/export/xlsx.
func (h *ReportsHandler) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.export(w, r, "xlsx", export.XLSXBase, contentTypeXLSX,
		func(buf io.Writer, sessions []model.AuditSession, _ report.Dashboard) error {
			return export.WriteXLSX(buf, sessions)
		})
}

type exportFunc func(w io.Writer, sessions []model.AuditSession, d report.Dashboard) error

// export renders the file into memory first so a failure still gets a JSON
// error instead of a truncated download. The optional "label" query value
// is slugged into the file name.
func (h *ReportsHandler) export(w http.ResponseWriter, r *http.Request, format, base, contentType string, write exportFunc) {
	obs, rng, ok := h.scope(w, r)
	if !ok {
		return
	}

	all := h.audits.ForObserver(obs)
	sessions := report.Filter(all, obs, rng)
	d := report.Build(all, obs, rng)

	var buf bytes.Buffer
	if err := write(&buf, sessions, d); err != nil {
		_ = h.eventService.LogEvent(r.Context(), model.EventLevelError, model.EventCategoryExport,
			"Export failed", map[string]any{"format": format, "observer": obs.Email, "error": err.Error()})
		logAndInternalError(w, "export failed", "format", format, "error", err)
		return
	}

	filename := util.Filename(base, r.URL.Query().Get("label"), format)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)

	_ = h.eventService.LogEvent(r.Context(), model.EventLevelInfo, model.EventCategoryExport,
		"Audit data exported", map[string]any{"format": format, "observer": obs.Email, "sessions": len(sessions)})
}

// scope returns the observer and the date range from the start and end
// query parameters.
func (h *ReportsHandler) scope(w http.ResponseWriter, r *http.Request) (model.Observer, report.DateRange, bool) {
	obs, ok := requireObserver(w, r)
	if !ok {
		return model.Observer{}, report.DateRange{}, false
	}

	q := r.URL.Query()
	rng, err := report.ParseDateRange(q.Get("start"), q.Get("end"))
	if err != nil {
		WriteBadRequest(w, err.Error())
		return model.Observer{}, report.DateRange{}, false
	}
	return obs, rng, true
}
