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
	"fmt"
	"sort"
	"strings"
)

// ContextScorer classifies from structured incident fields instead of
// free text: the reporting source system and the time of day. A reliable
// source alone can carry a classification when the text says nothing
// useful.
//
// Thread Safety: safe for concurrent use after construction.
type ContextScorer struct {
	sources map[string]map[string]float64
}

// NewContextScorer builds a scorer over the given source table; nil
// selects the built-in source mapping.
func NewContextScorer(sources map[string]map[string]float64) *ContextScorer {
	if sources == nil {
		sources = defaultSourceTable()
	}
	return &ContextScorer{sources: sources}
}

func (s *ContextScorer) Method() Method { return MethodContext }

func (s *ContextScorer) Score(_ context.Context, _ string, inc IncidentContext) ([]Candidate, error) {
	scores := make(map[string]float64)
	evidence := make(map[string][]string)

	if src := strings.ToLower(strings.TrimSpace(inc.Source)); src != "" {
		for cat, conf := range s.sources[src] {
			if conf > scores[cat] {
				scores[cat] = conf
			}
			evidence[cat] = append(evidence[cat], fmt.Sprintf("source %q", src))
		}
	}

	// Overnight incidents skew toward the batch window.
	if !inc.Timestamp.IsZero() && inc.Timestamp.Hour() < 6 {
		if 0.4 > scores["mainframe"] {
			scores["mainframe"] = 0.4
		}
		evidence["mainframe"] = append(evidence["mainframe"], fmt.Sprintf("overnight window (%02d:00)", inc.Timestamp.Hour()))
	}

	out := make([]Candidate, 0, len(scores))
	for cat, conf := range scores {
		out = append(out, Candidate{
			Category:   cat,
			Confidence: conf,
			Method:     MethodContext,
			Evidence:   evidence[cat],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func defaultSourceTable() map[string]map[string]float64 {
	return map[string]map[string]float64{
		"atm":               {"atm-network": 0.8},
		"atm-monitor":       {"atm-network": 0.8},
		"mainframe-console": {"mainframe": 0.8},
		"job-scheduler":     {"mainframe": 0.7, "jcl": 0.5},
		"payment-gateway":   {"payment-systems": 0.8},
		"spi-monitor":       {"payment-systems": 0.8},
		"mobile-app":        {"digital-channels": 0.7},
		"internet-banking":  {"digital-channels": 0.7},
		"branch":            {"core-banking": 0.5},
		"fraud-desk":        {"security": 0.8},
		"siem":              {"security": 0.7},
		"monitoring":        {"infrastructure": 0.6},
	}
}
