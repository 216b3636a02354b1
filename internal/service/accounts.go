// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"sync"

	"github.com/olegiv/hhaudit/internal/auth"
	"github.com/olegiv/hhaudit/internal/model"
	"github.com/olegiv/hhaudit/internal/store"
)

// Account errors.
var (
	ErrDuplicateEmail     = errors.New("an account with this email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidSignup      = errors.New("invalid signup data")
)

// SignupInput is the profile submitted at signup.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Facility string `json:"facility"`
	Country  string `json:"country"`
	City     string `json:"city"`
}

// Accounts registers and authenticates observers. The user list is held in
// memory and rewritten to the record store on every signup.
type Accounts struct {
	mu      sync.RWMutex
	users   []model.User
	records *store.Records
	hasher  *auth.Hasher
	logger  *slog.Logger
}

// NewAccounts loads the registered observers from the record store.
func NewAccounts(ctx context.Context, records *store.Records, hasher *auth.Hasher, logger *slog.Logger) *Accounts {
	if logger == nil {
		logger = slog.Default()
	}
	return &Accounts{
		users:   records.LoadUsers(ctx),
		records: records,
		hasher:  hasher,
		logger:  logger,
	}
}

func (in SignupInput) validate() error {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: email, password and name are required", ErrInvalidSignup)
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return fmt.Errorf("%w: email: %v", ErrInvalidSignup, err)
	}
	return nil
}

// Signup registers a new observer and returns its identity. Emails differing
// only in case are the same account.
func (a *Accounts) Signup(ctx context.Context, in SignupInput) (model.Observer, error) {
	if err := in.validate(); err != nil {
		return model.Observer{}, err
	}
	if _, exists := a.find(in.Email); exists {
		return model.Observer{}, ErrDuplicateEmail
	}

	hash, err := a.hasher.Hash(in.Password)
	if err != nil {
		return model.Observer{}, fmt.Errorf("hashing password: %w", err)
	}

	user := model.User{
		Email:        strings.TrimSpace(in.Email),
		PasswordHash: hash,
		Name:         strings.TrimSpace(in.Name),
		Facility:     strings.TrimSpace(in.Facility),
		Country:      strings.TrimSpace(in.Country),
		City:         strings.TrimSpace(in.City),
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Checked again: hashing ran outside the lock.
	for _, u := range a.users {
		if model.SameEmail(u.Email, user.Email) {
			return model.Observer{}, ErrDuplicateEmail
		}
	}

	next := append(append(make([]model.User, 0, len(a.users)+1), a.users...), user)
	a.users = next
	if err := a.records.SaveUsers(ctx, next); err != nil {
		a.logger.Warn("observer list kept in memory only",
			"category", model.EventCategoryStorage, "error", err)
	}

	a.logger.Info("observer registered", "email", user.Email)
	return user.Observer(), nil
}

// Login authenticates an observer. Unknown emails and wrong passwords both
// return ErrInvalidCredentials.
func (a *Accounts) Login(_ context.Context, email, password string) (model.Observer, error) {
	user, ok := a.find(email)
	if !ok {
		return model.Observer{}, ErrInvalidCredentials
	}

	valid, err := a.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		a.logger.Error("password check error", "email", user.Email, "error", err)
		return model.Observer{}, ErrInvalidCredentials
	}
	if !valid {
		return model.Observer{}, ErrInvalidCredentials
	}
	return user.Observer(), nil
}

// Lookup returns the observer registered under email, ignoring case.
func (a *Accounts) Lookup(email string) (model.Observer, bool) {
	user, ok := a.find(email)
	if !ok {
		return model.Observer{}, false
	}
	return user.Observer(), true
}

// Count returns the number of registered observers.
func (a *Accounts) Count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.users)
}

func (a *Accounts) find(email string) (model.User, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for _, u := range a.users {
		if model.SameEmail(u.Email, email) {
			return u, true
		}
	}
	return model.User{}, false
}
