// SPDX-License-Identifier: MIT

package epg

import (
	"strings"
	"time"
)

// TimeLayout is the XMLTV timestamp layout: YYYYMMDDHHMMSS +ZZZZ.
const TimeLayout = "20060102150405 -0700"

// Layouts carrying an explicit zone designator. The parsed offset is kept.
var offsetLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04-0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05-0700",
	"2006-01-02 15:04Z07:00",
}

// Layouts without a zone designator; these are read as UTC.
var naiveLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTime parses an ISO-8601 style timestamp. Inputs without an offset are
// interpreted as UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range naiveLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// NormalizeTime converts a timestamp string into XMLTV form. It returns ""
// when s cannot be parsed; callers drop the record in that case.
func NormalizeTime(s string) string {
	t, ok := ParseTime(s)
	if !ok {
		return ""
	}
	return FormatTime(t)
}

// FormatTime formats t in XMLTV form, keeping its zone offset.
func FormatTime(t time.Time) string {
	return t.Format(TimeLayout)
}
