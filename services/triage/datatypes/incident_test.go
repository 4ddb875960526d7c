// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package datatypes

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	p, err := ParsePriority("")
	require.NoError(t, err)
	assert.Equal(t, PriorityMedium, p, "empty priority defaults to medium")

	p, err = ParsePriority("  CRITICAL ")
	require.NoError(t, err)
	assert.Equal(t, PriorityCritical, p)

	_, err = ParsePriority("urgent")
	assert.Error(t, err)
}

func TestPriorityRankOrdering(t *testing.T) {
	assert.Greater(t, PriorityCritical.Rank(), PriorityHigh.Rank())
	assert.Greater(t, PriorityHigh.Rank(), PriorityMedium.Rank())
	assert.Greater(t, PriorityMedium.Rank(), PriorityLow.Rank())
	assert.Equal(t, -1, Priority("bogus").Rank())
}

func TestIncidentValidate(t *testing.T) {
	inc := Incident{ID: "INC-1", Title: "PIX payment failed"}
	inc.EnsureDefaults()
	require.NoError(t, inc.Validate())
	assert.Equal(t, PriorityMedium, inc.Priority)
	assert.False(t, inc.Timestamp.IsZero())

	missing := Incident{Title: "no id"}
	err := missing.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "id is required")

	blank := Incident{ID: "INC-2"}
	err = blank.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "title or description is required")

	badPriority := Incident{ID: "INC-3", Title: "t", Priority: Priority("urgent")}
	assert.Error(t, badPriority.Validate())

	oversized := Incident{ID: "INC-4", Title: strings.Repeat("x", MaxIncidentTextBytes+1)}
	assert.Error(t, oversized.Validate())
}

func TestIncidentText(t *testing.T) {
	assert.Equal(t, "a b", (&Incident{Title: "a", Description: "b"}).Text())
	assert.Equal(t, "a", (&Incident{Title: "a"}).Text())
	assert.Equal(t, "b", (&Incident{Description: "b"}).Text())
}

func TestRoutingDecisionAdjustedSLA(t *testing.T) {
	d := RoutingDecision{AdjustedSLAMinutes: 7.5}
	assert.Equal(t, 7*time.Minute+30*time.Second, d.AdjustedSLA())
}
