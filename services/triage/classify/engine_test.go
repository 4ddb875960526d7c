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
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianTriage/pkg/logging"
	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
	"github.com/AleutianAI/AleutianTriage/services/triage/taxonomy"
	"github.com/AleutianAI/AleutianTriage/services/triage/taxonomy/catalog"
)

func testPriorityFn(t *testing.T) PriorityFn {
	t.Helper()
	cat, err := taxonomy.ParseCatalog(catalog.TaxonomyCatalog)
	require.NoError(t, err)
	reg, err := taxonomy.NewRegistry(cat, slog.Default())
	require.NoError(t, err)
	return func(category string) datatypes.Priority {
		node, err := reg.Get(category)
		if err != nil {
			return datatypes.Priority("")
		}
		return node.Priority
	}
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	log := logging.New(logging.Config{Quiet: true})
	scorers, err := DefaultScorers(nil, log)
	require.NoError(t, err)
	return NewEngine(EngineConfig{}, scorers, testPriorityFn(t), log)
}

func TestClassifyPaymentOutage(t *testing.T) {
	eng := testEngine(t)
	inc := &datatypes.Incident{
		ID:          "INC-1001",
		Title:       "PIX payment failed",
		Description: "PIX transfers failing to process for clients",
		Timestamp:   time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC),
	}
	inc.EnsureDefaults()

	cls, err := eng.Classify(context.Background(), inc)
	require.NoError(t, err)
	require.NotNil(t, cls)

	assert.Equal(t, "payment-systems", cls.PrimaryCategory)
	assert.GreaterOrEqual(t, cls.Confidence, 0.8)
	assert.Contains(t, cls.MethodsUsed, MethodKeyword)
	assert.Contains(t, cls.MethodsUsed, MethodPattern)
	assert.Contains(t, cls.MethodsUsed, MethodSemantic)
}

func TestClassifyMainframeAbend(t *testing.T) {
	eng := testEngine(t)
	inc := &datatypes.Incident{
		ID:          "INC-1002",
		Title:       "Nightly batch COBOL job PAYRUN01 abended with S0C4",
		Description: "",
		Timestamp:   time.Date(2026, 3, 10, 2, 15, 0, 0, time.UTC),
	}
	inc.EnsureDefaults()

	cls, err := eng.Classify(context.Background(), inc)
	require.NoError(t, err)
	require.NotNil(t, cls)

	assert.Equal(t, "mainframe", cls.PrimaryCategory)
	assert.GreaterOrEqual(t, cls.Confidence, 0.8)

	_, hasCobol := findCandidate(cls.Alternatives, "cobol")
	assert.True(t, hasCobol, "the child category must survive as an alternative")
}

func TestClassifyIsDeterministic(t *testing.T) {
	eng := testEngine(t)
	inc := &datatypes.Incident{
		ID:          "INC-1003",
		Title:       "ATM offline",
		Description: "cash dispenser fault at branch 42",
		Source:      "atm",
		Timestamp:   time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}
	inc.EnsureDefaults()

	first, err := eng.Classify(context.Background(), inc)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "atm-network", first.PrimaryCategory)

	for i := 0; i < 10; i++ {
		again, err := eng.Classify(context.Background(), inc)
		require.NoError(t, err)
		require.NotNil(t, again)
		assert.Equal(t, first.PrimaryCategory, again.PrimaryCategory)
		assert.Equal(t, first.Confidence, again.Confidence)
		assert.Equal(t, first.MethodsUsed, again.MethodsUsed)
		assert.Equal(t, first.Evidence, again.Evidence)
	}
}

func TestClassifyUnmatchableTextReturnsNil(t *testing.T) {
	eng := testEngine(t)
	inc := &datatypes.Incident{
		ID:        "INC-1004",
		Title:     "weather is nice today",
		Timestamp: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}
	inc.EnsureDefaults()

	cls, err := eng.Classify(context.Background(), inc)
	require.NoError(t, err)
	assert.Nil(t, cls, "no category clears the confidence floor")
}

func TestClassifyEmptyTextErrors(t *testing.T) {
	eng := testEngine(t)
	inc := &datatypes.Incident{ID: "INC-1005"}
	inc.EnsureDefaults()

	_, err := eng.Classify(context.Background(), inc)
	require.Error(t, err)
}

type panickyScorer struct{}

func (panickyScorer) Method() Method { return MethodLearned }
func (panickyScorer) Score(context.Context, string, IncidentContext) ([]Candidate, error) {
	panic("model exploded")
}

func TestClassifySurvivesPanickingMethod(t *testing.T) {
	log := logging.New(logging.Config{Quiet: true})
	scorers, err := DefaultScorers(nil, log)
	require.NoError(t, err)
	scorers = append(scorers, panickyScorer{})
	eng := NewEngine(EngineConfig{}, scorers, testPriorityFn(t), log)

	inc := &datatypes.Incident{
		ID:        "INC-1006",
		Title:     "PIX payment failed",
		Timestamp: time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC),
	}
	inc.EnsureDefaults()

	cls, err := eng.Classify(context.Background(), inc)
	require.NoError(t, err)
	require.NotNil(t, cls)
	assert.Equal(t, "payment-systems", cls.PrimaryCategory)
	assert.NotContains(t, cls.MethodsUsed, MethodLearned)
}

func TestCombinerDiversityBonus(t *testing.T) {
	c := NewCombiner(CombinerConfig{}, nil)
	at := time.Date(2026, 3, 10, 11, 0, 0, 0, time.UTC)

	single := c.Combine([]Candidate{
		{Category: "security", Confidence: 0.9, Method: MethodKeyword},
	}, at)
	require.NotNil(t, single)

	double := c.Combine([]Candidate{
		{Category: "security", Confidence: 0.9, Method: MethodKeyword},
		{Category: "security", Confidence: 0.9, Method: MethodPattern},
	}, at)
	require.NotNil(t, double)

	// 0.9*0.35 vs 0.9*0.35 + 0.9*0.25 + 0.1 bonus.
	assert.InDelta(t, 0.315, single.Confidence, 1e-9)
	assert.InDelta(t, 0.64, double.Confidence, 1e-9)
}

func TestCombinerDropsBelowFloor(t *testing.T) {
	c := NewCombiner(CombinerConfig{}, nil)
	cls := c.Combine([]Candidate{
		{Category: "infrastructure", Confidence: 0.5, Method: MethodContext},
	}, time.Now())
	assert.Nil(t, cls, "0.05 weighted score is under the 0.3 floor")
}

func TestCombinerCapsResults(t *testing.T) {
	c := NewCombiner(CombinerConfig{}, nil)
	cands := []Candidate{
		{Category: "a", Confidence: 1.0, Method: MethodKeyword},
		{Category: "b", Confidence: 0.99, Method: MethodKeyword},
		{Category: "c", Confidence: 0.98, Method: MethodKeyword},
		{Category: "d", Confidence: 0.97, Method: MethodKeyword},
		{Category: "e", Confidence: 0.96, Method: MethodKeyword},
		{Category: "f", Confidence: 0.95, Method: MethodKeyword},
	}
	cls := c.Combine(cands, time.Now())
	require.NotNil(t, cls)
	assert.Len(t, cls.Alternatives, DefaultMaxResults-1)
}

func TestCombinerTieBreaksByPriorityThenID(t *testing.T) {
	priority := func(cat string) datatypes.Priority {
		if cat == "security" {
			return datatypes.PriorityCritical
		}
		return datatypes.PriorityMedium
	}
	c := NewCombiner(CombinerConfig{}, priority)

	cls := c.Combine([]Candidate{
		{Category: "infrastructure", Confidence: 0.9, Method: MethodKeyword},
		{Category: "security", Confidence: 0.9, Method: MethodKeyword},
	}, time.Now())
	require.NotNil(t, cls)
	assert.Equal(t, "security", cls.PrimaryCategory)

	// Equal priority falls through to the lexical tie-break.
	c = NewCombiner(CombinerConfig{}, nil)
	cls = c.Combine([]Candidate{
		{Category: "zeta", Confidence: 0.9, Method: MethodKeyword},
		{Category: "alpha", Confidence: 0.9, Method: MethodKeyword},
	}, time.Now())
	require.NotNil(t, cls)
	assert.Equal(t, "alpha", cls.PrimaryCategory)
}
