// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tagging derives operational tags from an incident and its
// classification, and applies manual tag edits under the same
// normalization rules.
package tagging

import "time"

// Calendar decides whether an instant falls inside the bank's staffed
// business window. The window is weekday-only; weekends are always
// outside regardless of hour.
type Calendar struct {
	loc       *time.Location
	startHour int
	endHour   int
}

// NewCalendar builds a calendar for the given location; nil selects
// UTC. The staffed window is 08:00 to 18:00, Monday through Friday.
func NewCalendar(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, startHour: 8, endHour: 18}
}

// InBusinessHours reports whether t falls inside the staffed window.
// The end hour is exclusive: 18:00:00 is already after hours.
func (c *Calendar) InBusinessHours(t time.Time) bool {
	local := t.In(c.loc)
	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	h := local.Hour()
	return h >= c.startHour && h < c.endHour
}

// IsWeekend reports whether t falls on a Saturday or Sunday in the
// calendar's location.
func (c *Calendar) IsWeekend(t time.Time) bool {
	wd := t.In(c.loc).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// Temporal tags; each incident carries exactly one.
const (
	TagBusinessHours = "business-hours"
	TagAfterHours    = "after-hours"
	TagWeekend       = "weekend"
)

// TemporalTag returns the single time-of-day tag for t.
func (c *Calendar) TemporalTag(t time.Time) string {
	switch {
	case c.IsWeekend(t):
		return TagWeekend
	case c.InBusinessHours(t):
		return TagBusinessHours
	default:
		return TagAfterHours
	}
}
