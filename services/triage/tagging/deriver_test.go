// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tagging

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTriage/services/triage/classify"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
)

// Tuesday 2026-03-10 is a reliable weekday anchor.
var (
	tuesdayNoon  = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tuesdayNight = time.Date(2026, 3, 10, 23, 0, 0, 0, time.UTC)
	saturday     = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
)

func TestCalendarWindows(t *testing.T) {
	c := NewCalendar(nil)

	assert.True(t, c.InBusinessHours(tuesdayNoon))
	assert.False(t, c.InBusinessHours(tuesdayNight))
	assert.False(t, c.InBusinessHours(saturday))

	// Boundary hours: 08:00 inclusive, 18:00 exclusive.
	assert.True(t, c.InBusinessHours(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)))
	assert.False(t, c.InBusinessHours(time.Date(2026, 3, 10, 18, 0, 0, 0, time.UTC)))

	assert.Equal(t, "business-hours", c.TemporalTag(tuesdayNoon))
	assert.Equal(t, "after-hours", c.TemporalTag(tuesdayNight))
	assert.Equal(t, "weekend", c.TemporalTag(saturday))
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"  PIX  ":              "pix",
		"Payment Systems":      "payment-systems",
		"source: ATM/42":       "source-atm-42",
		"---":                  "",
		"":                     "",
		"já-existe-acentuação": "j-existe-acentua-o",
	}
	for in, want := range cases {
		assert.Equal(t, want, Normalize(in), "input %q", in)
	}
}

func testAncestors(category string) []string {
	if category == "cobol" {
		return []string{"mainframe"}
	}
	return nil
}

func TestDeriveOrdersAndDedupes(t *testing.T) {
	d := NewDeriver(Config{}, nil, testAncestors)
	inc := &datatypes.Incident{
		ID:        "INC-2001",
		Priority:  datatypes.PriorityHigh,
		Source:    "job-scheduler",
		Timestamp: tuesdayNight,
	}
	cls := &classify.Classification{
		PrimaryCategory: "cobol",
		Confidence:      0.85,
		Alternatives: []classify.Candidate{
			{Category: "mainframe", Confidence: 0.8},
			{Category: "db2", Confidence: 0.4},
		},
		Evidence: []string{`keyword "cobol" x1`, `keyword "s0c4" x1`, "pattern system-completion-code: \"S0C4\""},
	}

	tags := d.Derive(inc, cls)
	require.NotEmpty(t, tags)
	assert.Equal(t, "cobol", tags[0])
	assert.Equal(t, "mainframe", tags[1], "ancestor follows primary")
	assert.Equal(t, TagClassified, tags[2])
	assert.Contains(t, tags, "priority-high")
	assert.Contains(t, tags, "after-hours")
	assert.Contains(t, tags, "source-job-scheduler")
	assert.Contains(t, tags, "s0c4", "keyword evidence is mined")
	assert.Contains(t, tags, "system-completion-code", "pattern rule names are mined")
	assert.NotContains(t, tags, "db2", "alternative under the auto-tag threshold")

	// mainframe appears once despite being ancestor and alternative.
	count := 0
	for _, tag := range tags {
		if tag == "mainframe" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestDeriveFallbackGetsManualReview(t *testing.T) {
	d := NewDeriver(Config{}, nil, nil)
	inc := &datatypes.Incident{ID: "INC-2002", Priority: datatypes.PriorityMedium, Timestamp: tuesdayNoon}

	tags := d.Derive(inc, nil)
	require.NotEmpty(t, tags)
	assert.Equal(t, TagManualReview, tags[0])

	fallback := &classify.Classification{PrimaryCategory: "infrastructure", Confidence: 0.25, Fallback: true}
	tags = d.Derive(inc, fallback)
	assert.Equal(t, TagManualReview, tags[0])
	assert.Contains(t, tags, "infrastructure")
	assert.NotContains(t, tags, TagClassified)
}

func TestDeriveCapsTagCount(t *testing.T) {
	d := NewDeriver(Config{MaxTags: 4}, nil, nil)
	inc := &datatypes.Incident{
		ID:        "INC-2003",
		Priority:  datatypes.PriorityLow,
		Source:    "monitoring",
		Timestamp: tuesdayNoon,
	}
	cls := &classify.Classification{
		PrimaryCategory: "infrastructure",
		Evidence: []string{
			`keyword "dns" x1`, `keyword "vpn" x1`, `keyword "server" x1`, `keyword "network" x1`,
		},
	}

	tags := d.Derive(inc, cls)
	assert.Len(t, tags, 4)
	// Category and priority tags outrank mined keywords under truncation.
	assert.Equal(t, "infrastructure", tags[0])
	assert.Contains(t, tags, "priority-low")
	assert.NotContains(t, tags, "network")
}

func TestApplyManual(t *testing.T) {
	d := NewDeriver(Config{}, nil, nil)
	current := []string{"payment-systems", "priority-critical", "business-hours"}

	tags, err := d.ApplyManual(current, []string{"  VIP Client "}, []string{"payment-systems"}, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"priority-critical", "business-hours", "vip-client"}, tags)

	// Removal wins over a simultaneous add of the same tag.
	tags, err = d.ApplyManual(current, []string{"escalated"}, []string{"Escalated"}, false)
	require.NoError(t, err)
	assert.NotContains(t, tags, "escalated")
}

func TestApplyManualValidation(t *testing.T) {
	d := NewDeriver(Config{MaxTags: 4}, nil, nil)
	current := []string{"payment-systems", "priority-critical", "business-hours"}

	// System tags only come off with override.
	_, err := d.ApplyManual(current, nil, []string{"business-hours"}, false)
	assert.ErrorIs(t, err, ErrProtectedTag)
	tags, err := d.ApplyManual(current, nil, []string{"business-hours"}, true)
	require.NoError(t, err)
	assert.NotContains(t, tags, "business-hours")

	_, err = d.ApplyManual(current, []string{"payment-systems"}, nil, false)
	assert.ErrorIs(t, err, ErrDuplicateTag)

	_, err = d.ApplyManual(current, []string{"---"}, nil, false)
	assert.ErrorIs(t, err, ErrInvalidTag)

	_, err = d.ApplyManual(current, []string{"vip-client", "one-too-many"}, nil, false)
	assert.ErrorIs(t, err, ErrTagLimit)
}

func TestIsSystem(t *testing.T) {
	assert.True(t, IsSystem(TagClassified))
	assert.True(t, IsSystem(TagManualReview))
	assert.True(t, IsSystem(TagWeekend))
	assert.True(t, IsSystem("priority-high"))
	assert.True(t, IsSystem("source-atm"))
	assert.False(t, IsSystem("payment-systems"))
	assert.False(t, IsSystem("vip-client"))
}
