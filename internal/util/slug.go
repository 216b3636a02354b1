// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

// Package util provides filename helpers for downloads.
package util

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	nonWordRegex      = regexp.MustCompile(`[^a-z0-9_]+`)
	multipleUnderline = regexp.MustCompile(`_{2,}`)
)

// Slugify lowercases s, strips accents and collapses everything that is not
// a letter or digit into single underscores. The result is safe to embed in
// a Content-Disposition filename.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)

	result = strings.ToLower(result)
	result = nonWordRegex.ReplaceAllString(result, "_")
	result = multipleUnderline.ReplaceAllString(result, "_")
	return strings.Trim(result, "_")
}

// Filename builds "<base>[_<qualifier slug>].<ext>". An empty or
// non-Latin qualifier leaves the base name alone.
func Filename(base, qualifier, ext string) string {
	if slug := Slugify(qualifier); slug != "" {
		return base + "_" + slug + "." + ext
	}
	return base + "." + ext
}
