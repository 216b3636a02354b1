// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import "time"

// Event levels
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// Event categories
const (
	EventCategoryAuth    = "auth"
	EventCategoryAudit   = "audit"
	EventCategoryStorage = "storage"
	EventCategoryExport  = "export"
	EventCategorySystem  = "system"
)

// Event represents an event log entry. Actor is the folded email of the
// observer the event concerns, or empty for system events.
type Event struct {
	ID        int64     `json:"id"`
	Level     string    `json:"level"`
	Category  string    `json:"category"`
	Actor     string    `json:"-"`
	Message   string    `json:"message"`
	Metadata  string    `json:"metadata"` // JSON string
	CreatedAt time.Time `json:"createdAt"`
}
