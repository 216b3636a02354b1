// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package handler provides the HTTP handlers of the audit API.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/olegiv/hhaudit/internal/middleware"
)

// Response is the standard API response wrapper.
type Response struct {
	Data any   `json:"data,omitempty"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries collection metadata.
type Meta struct {
	Total int    `json:"total"`
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a 200 response wrapping data.
func WriteSuccess(w http.ResponseWriter, data any, meta *Meta) {
	WriteJSON(w, http.StatusOK, Response{Data: data, Meta: meta})
}

// WriteCreated writes a 201 Created response wrapping data.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, Response{Data: data})
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	middleware.WriteAPIError(w, http.StatusBadRequest, "bad_request", message, nil)
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	middleware.WriteAPIError(w, http.StatusNotFound, "not_found", message, nil)
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, message string) {
	middleware.WriteAPIError(w, http.StatusConflict, "conflict", message, nil)
}

// WriteUnprocessable writes a 422 Unprocessable Entity response.
func WriteUnprocessable(w http.ResponseWriter, code, message string) {
	middleware.WriteAPIError(w, http.StatusUnprocessableEntity, code, message, nil)
}

// logAndInternalError logs an error and writes a 500 response.
func logAndInternalError(w http.ResponseWriter, logMsg string, args ...any) {
	slog.Error(logMsg, args...)
	middleware.WriteAPIError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error", nil)
}
