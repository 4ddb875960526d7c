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
	"regexp"
	"sort"
)

// SemanticProfile describes one category's lexical field: indicator
// tokens that suggest the category, exclusion tokens that argue against
// it, and a per-category context weight.
type SemanticProfile struct {
	Category      string
	Indicators    []string
	Exclusions    []string
	ContextWeight float64
}

// proximityRadius is the token-distance window inside which two
// indicators count as co-occurring.
const proximityRadius = 3

// SemanticScorer approximates topical similarity without embeddings:
// it rewards indicator presence and close co-occurrence, penalizes
// exclusions, and normalizes by indicator coverage.
//
// For a profile with indicators I and exclusions X over token stream T:
//
//	raw    = 0.3*present + 0.1*pairs - 0.2*excluded
//	final  = clamp(raw * ContextWeight, 0, 1) * present/len(I)
//
// where present counts distinct matched indicators, pairs counts
// indicator pairs whose nearest occurrences lie within proximityRadius
// tokens, and excluded counts distinct matched exclusions.
//
// Thread Safety: safe for concurrent use after construction.
type SemanticScorer struct {
	profiles []SemanticProfile
}

var tokenRe = regexp.MustCompile(`[a-z0-9][a-z0-9_-]*`)

// NewSemanticScorer builds a scorer over the given profiles; nil selects
// the built-in banking profiles.
func NewSemanticScorer(profiles []SemanticProfile) *SemanticScorer {
	if profiles == nil {
		profiles = defaultSemanticProfiles()
	}
	return &SemanticScorer{profiles: profiles}
}

func (s *SemanticScorer) Method() Method { return MethodSemantic }

func (s *SemanticScorer) Score(_ context.Context, text string, _ IncidentContext) ([]Candidate, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}
	positions := make(map[string][]int, len(tokens))
	for i, t := range tokens {
		positions[t] = append(positions[t], i)
	}

	var out []Candidate
	for _, p := range s.profiles {
		if len(p.Indicators) == 0 {
			continue
		}
		var matched []string
		for _, ind := range p.Indicators {
			if len(positions[ind]) > 0 {
				matched = append(matched, ind)
			}
		}
		if len(matched) == 0 {
			continue
		}
		pairs := 0
		for i := 0; i < len(matched); i++ {
			for j := i + 1; j < len(matched); j++ {
				if minTokenDistance(positions[matched[i]], positions[matched[j]]) <= proximityRadius {
					pairs++
				}
			}
		}
		excluded := 0
		for _, ex := range p.Exclusions {
			if len(positions[ex]) > 0 {
				excluded++
			}
		}

		raw := 0.3*float64(len(matched)) + 0.1*float64(pairs) - 0.2*float64(excluded)
		coverage := float64(len(matched)) / float64(len(p.Indicators))
		conf := clamp01(raw*p.ContextWeight) * coverage
		if conf <= 0 {
			continue
		}
		out = append(out, Candidate{
			Category:   p.Category,
			Confidence: conf,
			Method:     MethodSemantic,
			Evidence:   []string{fmt.Sprintf("semantic: %d/%d indicators, %d co-occurrences", len(matched), len(p.Indicators), pairs)},
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

func tokenize(text string) []string {
	return tokenRe.FindAllString(lower(text), -1)
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}

// minTokenDistance returns the smallest gap between two sorted position
// lists. Both lists are non-empty.
func minTokenDistance(a, b []int) int {
	best := int(^uint(0) >> 1)
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		d := a[i] - b[j]
		if d < 0 {
			d = -d
		}
		if d < best {
			best = d
		}
		if a[i] < b[j] {
			i++
		} else {
			j++
		}
	}
	return best
}

func defaultSemanticProfiles() []SemanticProfile {
	return []SemanticProfile{
		{
			Category:      "payment-systems",
			Indicators:    []string{"pix", "payment", "pagamento", "transfer", "ted", "boleto", "declined", "failed"},
			Exclusions:    []string{"simulation", "drill"},
			ContextWeight: 1.0,
		},
		{
			Category:      "mainframe",
			Indicators:    []string{"mainframe", "batch", "job", "abend", "abended", "dataset", "nightly", "cobol"},
			Exclusions:    []string{"cloud"},
			ContextWeight: 1.0,
		},
		{
			Category:      "cobol",
			Indicators:    []string{"cobol", "copybook", "s0c4", "s0c7", "paragraph", "working-storage"},
			ContextWeight: 1.0,
		},
		{
			Category:      "db2",
			Indicators:    []string{"db2", "sqlcode", "tablespace", "deadlock", "bind", "plan"},
			ContextWeight: 1.0,
		},
		{
			Category:      "cics",
			Indicators:    []string{"cics", "transaction", "asra", "region", "terminal"},
			ContextWeight: 1.0,
		},
		{
			Category:      "jcl",
			Indicators:    []string{"jcl", "job", "step", "proc", "dataset", "allocation"},
			ContextWeight: 1.0,
		},
		{
			Category:      "vsam",
			Indicators:    []string{"vsam", "ksds", "cluster", "catalog", "reorg"},
			ContextWeight: 1.0,
		},
		{
			Category:      "atm-network",
			Indicators:    []string{"atm", "dispenser", "cash", "withdrawal", "terminal", "offline"},
			Exclusions:    []string{"mobile"},
			ContextWeight: 1.0,
		},
		{
			Category:      "core-banking",
			Indicators:    []string{"ledger", "account", "balance", "posting", "settlement", "reconciliation"},
			ContextWeight: 1.0,
		},
		{
			Category:      "digital-channels",
			Indicators:    []string{"mobile", "app", "login", "browser", "session", "onboarding"},
			Exclusions:    []string{"atm"},
			ContextWeight: 1.0,
		},
		{
			Category:      "security",
			Indicators:    []string{"fraud", "phishing", "breach", "unauthorized", "credential", "suspicious"},
			Exclusions:    []string{"drill", "pentest"},
			ContextWeight: 1.1,
		},
		{
			Category:      "infrastructure",
			Indicators:    []string{"server", "network", "outage", "dns", "vpn", "latency", "disk"},
			ContextWeight: 0.9,
		},
	}
}
