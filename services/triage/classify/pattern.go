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

// PatternRule is one compiled diagnostic signature. Repeated hits raise
// confidence above the base:
//
//	confidence = min(base + 0.1*(hits-1), base+0.2)
type PatternRule struct {
	Name       string
	Expr       string
	Base       float64
	Categories []string

	re *regexp.Regexp
}

// PatternScorer matches structured diagnostic signatures (system
// completion codes, message IDs, protocol names) that keyword matching
// would treat as opaque tokens.
//
// Thread Safety: safe for concurrent use after construction.
type PatternScorer struct {
	rules []PatternRule
}

// NewPatternScorer compiles the given rules; nil selects the built-in
// banking rule set. Compilation failures surface at construction so a
// bad rule never reaches scoring.
func NewPatternScorer(rules []PatternRule) (*PatternScorer, error) {
	if rules == nil {
		rules = defaultPatternRules()
	}
	compiled := make([]PatternRule, len(rules))
	for i, r := range rules {
		re, err := regexp.Compile(r.Expr)
		if err != nil {
			return nil, fmt.Errorf("compile pattern rule %q: %w", r.Name, err)
		}
		r.re = re
		compiled[i] = r
	}
	return &PatternScorer{rules: compiled}, nil
}

func (s *PatternScorer) Method() Method { return MethodPattern }

func (s *PatternScorer) Score(_ context.Context, text string, _ IncidentContext) ([]Candidate, error) {
	best := make(map[string]Candidate)

	for _, r := range s.rules {
		matches := r.re.FindAllString(text, -1)
		if len(matches) == 0 {
			continue
		}
		bump := 0.1 * float64(len(matches)-1)
		if bump > 0.2 {
			bump = 0.2
		}
		conf := clamp01(r.Base + bump)
		ev := fmt.Sprintf("pattern %s: %q", r.Name, matches[0])
		for _, cat := range r.Categories {
			cur, ok := best[cat]
			if !ok || conf > cur.Confidence {
				best[cat] = Candidate{
					Category:   cat,
					Confidence: conf,
					Method:     MethodPattern,
					Evidence:   []string{ev},
				}
			}
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].Category < out[j].Category
	})
	return out, nil
}

func defaultPatternRules() []PatternRule {
	return []PatternRule{
		{Name: "system-completion-code", Expr: `(?i)\bs0c[0-9ab]\b`, Base: 0.9, Categories: []string{"cobol", "mainframe"}},
		{Name: "jes-message-id", Expr: `(?i)\bIEF\d{3}[A-Z]\b`, Base: 0.85, Categories: []string{"jcl", "mainframe"}},
		{Name: "db2-sqlcode", Expr: `(?i)\bsqlcode\s*=?\s*-?\d+`, Base: 0.9, Categories: []string{"db2", "mainframe"}},
		{Name: "cics-abend-asra", Expr: `(?i)\basra\b`, Base: 0.9, Categories: []string{"cics", "mainframe"}},
		{Name: "vsam-status-code", Expr: `(?i)\bvsam\b.*\bstatus\s+\d{2}\b`, Base: 0.85, Categories: []string{"vsam", "mainframe"}},
		{Name: "abend", Expr: `(?i)\babend(ed)?\b`, Base: 0.7, Categories: []string{"mainframe"}},
		{Name: "pix-rail", Expr: `(?i)\bpix\b`, Base: 0.85, Categories: []string{"payment-systems"}},
		{Name: "pagamento", Expr: `(?i)\bpagamento\b`, Base: 0.8, Categories: []string{"payment-systems"}},
		{Name: "iso8583", Expr: `(?i)\biso[ -]?8583\b`, Base: 0.85, Categories: []string{"atm-network"}},
		{Name: "atm-fault", Expr: `(?i)\batm\b.*\b(down|offline|fail\w*|jam\w*)\b`, Base: 0.8, Categories: []string{"atm-network"}},
		{Name: "ledger-mismatch", Expr: `(?i)\b(ledger|posting)\b.*\b(error|mismatch|divergen\w*)\b`, Base: 0.8, Categories: []string{"core-banking"}},
		{Name: "fraud-signal", Expr: `(?i)\b(fraud\w*|phishing|card\s+clon\w*)\b`, Base: 0.8, Categories: []string{"security"}},
		{Name: "connectivity", Expr: `(?i)\b(timeout|timed\s+out|connection\s+refused|unreachable)\b`, Base: 0.5, Categories: []string{"infrastructure"}},
	}
}
