// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package model

import (
	"strings"

	"golang.org/x/text/cases"
)

// User is a registered observer as held by the record store.
type User struct {
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Name         string `json:"name"`
	Facility     string `json:"facility"`
	Country      string `json:"country"`
	City         string `json:"city"`
}

// Observer returns the identity carried through requests for this user.
func (u User) Observer() Observer {
	return Observer{
		Email:    u.Email,
		Name:     u.Name,
		Facility: u.Facility,
		Country:  u.Country,
		City:     u.City,
	}
}

// Observer is the authenticated identity passed explicitly to every operation
// that acts on behalf of an observer. It never carries the password hash.
type Observer struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Facility string `json:"facility"`
	Country  string `json:"country"`
	City     string `json:"city"`
}

// Owns reports whether the session belongs to the observer.
func (o Observer) Owns(s AuditSession) bool {
	return s.ObserverEmail == o.Email
}

// FoldEmail normalizes an email address for case-insensitive comparison.
// A Caser is stateful, so each call gets its own.
func FoldEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}

// SameEmail reports whether two addresses match ignoring case.
func SameEmail(a, b string) bool {
	return FoldEmail(a) == FoldEmail(b)
}
