// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package capture

import (
	"log/slog"
	"sync"
	"time"

	"github.com/olegiv/hhaudit/internal/model"
)

// Manager keeps one form per observer, keyed by folded email.
type Manager struct {
	mu     sync.Mutex
	forms  map[string]*Form
	now    func() time.Time
	logger *slog.Logger
}

// NewManager creates an empty Manager. A nil clock uses time.Now.
func NewManager(now func() time.Time, logger *slog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		forms:  make(map[string]*Form),
		now:    now,
		logger: logger,
	}
}

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time {
	return m.now()
}

// Form returns the observer's form, creating an idle one on first use.
func (m *Manager) Form(obs model.Observer) *Form {
	key := model.FoldEmail(obs.Email)

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.forms[key]
	if !ok {
		f = NewForm(obs, m.now())
		m.forms[key] = f
	}
	return f
}

// Sweep retires forms untouched for longer than ttl and returns how many
// were dropped. In-progress rounds are abandoned, which ends their elapsed
// streams. A handler still holding a swept form gets ErrFormExpired.
func (m *Manager) Sweep(ttl time.Duration) int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	swept := 0
	for key, f := range m.forms {
		retired, abandoned := f.retire(now, ttl)
		if !retired {
			continue
		}
		delete(m.forms, key)
		swept++
		if abandoned {
			m.logger.Info("discarded abandoned audit round", "category", model.EventCategoryAudit)
		}
	}
	return swept
}
