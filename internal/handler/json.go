// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/olegiv/hhaudit/internal/middleware"
	"github.com/olegiv/hhaudit/internal/model"
)

// maxBodyBytes bounds request bodies; the largest is a signup profile.
const maxBodyBytes = 64 << 10

// decodeJSON reads a JSON body into dst. On failure it writes a 400 response
// and returns false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		msg := "Invalid JSON body"
		if errors.Is(err, io.EOF) {
			msg = "Request body is empty"
		}
		WriteBadRequest(w, msg)
		return false
	}
	return true
}

// intParam parses a numeric URL parameter. On failure it writes a 400
// response and returns false.
func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		WriteBadRequest(w, fmt.Sprintf("Invalid %s parameter", name))
		return 0, false
	}
	return v, true
}

// requireObserver returns the observer loaded by middleware.RequireObserver.
func requireObserver(w http.ResponseWriter, r *http.Request) (model.Observer, bool) {
	obs, ok := middleware.ObserverFrom(r.Context())
	if !ok {
		middleware.WriteAPIError(w, http.StatusUnauthorized, "unauthorized", "Please log in", nil)
		return model.Observer{}, false
	}
	return obs, true
}
