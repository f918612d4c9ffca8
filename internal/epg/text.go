// SPDX-License-Identifier: MIT

package epg

import (
	"strings"

	unorm "golang.org/x/text/unicode/norm"
)

// CleanText trims s and normalizes it to Unicode NFC so equal titles from
// different upstream encodings serialize identically.
func CleanText(s string) string {
	return unorm.NFC.String(strings.TrimSpace(s))
}

// TextOr returns the cleaned s, or fallback when s is absent.
// An explicitly empty upstream value stays empty.
func TextOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return CleanText(*s)
}
