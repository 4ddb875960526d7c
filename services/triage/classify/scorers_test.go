// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package classify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scoreOne(t *testing.T, s Scorer, text string, ictx IncidentContext) []Candidate {
	t.Helper()
	cands, err := s.Score(context.Background(), text, ictx)
	require.NoError(t, err)
	return cands
}

func findCandidate(cands []Candidate, category string) (Candidate, bool) {
	for _, c := range cands {
		if c.Category == category {
			return c, true
		}
	}
	return Candidate{}, false
}

func TestKeywordWordBoundaries(t *testing.T) {
	s := NewKeywordScorer(nil)

	cands := scoreOne(t, s, "pixel density issue on dashboard", IncidentContext{})
	_, found := findCandidate(cands, "payment-systems")
	assert.False(t, found, "pixel must not match the pix keyword")

	cands = scoreOne(t, s, "PIX transaction stuck", IncidentContext{})
	c, found := findCandidate(cands, "payment-systems")
	require.True(t, found)
	assert.InDelta(t, 0.45, c.Confidence, 1e-9)
}

func TestKeywordTermFrequencyAmplifies(t *testing.T) {
	s := NewKeywordScorer(nil)

	cands := scoreOne(t, s, "PIX failure: pix queue backing up", IncidentContext{})
	c, found := findCandidate(cands, "payment-systems")
	require.True(t, found)
	// Two hits double the base weight.
	assert.InDelta(t, 0.9, c.Confidence, 1e-9)

	cands = scoreOne(t, s, "pix pix pix pix pix", IncidentContext{})
	c, _ = findCandidate(cands, "payment-systems")
	assert.Equal(t, 1.0, c.Confidence, "confidence is capped at 1.0")
}

func TestKeywordBestTermPerCategory(t *testing.T) {
	s := NewKeywordScorer(nil)

	// "ledger" (0.40) must win over "account" (0.30) for core-banking.
	cands := scoreOne(t, s, "account ledger discrepancy reported", IncidentContext{})
	c, found := findCandidate(cands, "core-banking")
	require.True(t, found)
	assert.InDelta(t, 0.40, c.Confidence, 1e-9)
}

func TestPatternCompletionCode(t *testing.T) {
	s, err := NewPatternScorer(nil)
	require.NoError(t, err)

	cands := scoreOne(t, s, "Job PAYRUN01 abended with S0C4 in step 3", IncidentContext{})

	cobol, found := findCandidate(cands, "cobol")
	require.True(t, found)
	assert.InDelta(t, 0.9, cobol.Confidence, 1e-9)

	mf, found := findCandidate(cands, "mainframe")
	require.True(t, found)
	// abend (0.7) and S0C4 (0.9) both hit mainframe; the max wins.
	assert.InDelta(t, 0.9, mf.Confidence, 1e-9)
}

func TestPatternRepeatedHitsBumpConfidence(t *testing.T) {
	s, err := NewPatternScorer(nil)
	require.NoError(t, err)

	cands := scoreOne(t, s, "timeout on login, retry also hit a timeout", IncidentContext{})
	c, found := findCandidate(cands, "infrastructure")
	require.True(t, found)
	assert.InDelta(t, 0.6, c.Confidence, 1e-9)
}

func TestPatternRejectsBadRule(t *testing.T) {
	_, err := NewPatternScorer([]PatternRule{
		{Name: "broken", Expr: `([`, Base: 0.5, Categories: []string{"infrastructure"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
}

func TestSemanticCoverageNormalization(t *testing.T) {
	s := NewSemanticScorer(nil)

	cands := scoreOne(t, s, "PIX payment failed", IncidentContext{})
	c, found := findCandidate(cands, "payment-systems")
	require.True(t, found)
	// Three adjacent indicators of eight: raw saturates at 1.0, then
	// coverage scales it to 3/8.
	assert.InDelta(t, 0.375, c.Confidence, 1e-9)
}

func TestSemanticExclusionPenalty(t *testing.T) {
	s := NewSemanticScorer([]SemanticProfile{
		{
			Category:      "security",
			Indicators:    []string{"fraud", "breach"},
			Exclusions:    []string{"drill"},
			ContextWeight: 1.0,
		},
	})

	clean := scoreOne(t, s, "fraud breach detected", IncidentContext{})
	penalized := scoreOne(t, s, "fraud breach drill scheduled", IncidentContext{})

	cc, _ := findCandidate(clean, "security")
	pc, _ := findCandidate(penalized, "security")
	assert.Greater(t, cc.Confidence, pc.Confidence)
}

func TestSemanticEmptyText(t *testing.T) {
	s := NewSemanticScorer(nil)
	cands := scoreOne(t, s, "   ", IncidentContext{})
	assert.Empty(t, cands)
}

func TestContextSourceMapping(t *testing.T) {
	s := NewContextScorer(nil)

	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cands := scoreOne(t, s, "terminal unresponsive", IncidentContext{Source: "atm", Timestamp: noon})
	c, found := findCandidate(cands, "atm-network")
	require.True(t, found)
	assert.InDelta(t, 0.8, c.Confidence, 1e-9)
}

func TestContextOvernightWindow(t *testing.T) {
	s := NewContextScorer(nil)

	night := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)
	cands := scoreOne(t, s, "job failure", IncidentContext{Timestamp: night})
	c, found := findCandidate(cands, "mainframe")
	require.True(t, found)
	assert.InDelta(t, 0.4, c.Confidence, 1e-9)
}

func TestContextUnknownSource(t *testing.T) {
	s := NewContextScorer(nil)
	noon := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cands := scoreOne(t, s, "something odd", IncidentContext{Source: "carrier-pigeon", Timestamp: noon})
	assert.Empty(t, cands)
}
