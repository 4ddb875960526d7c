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
	"strings"
	"sync"
)

// KeywordEntry maps one surface term to the categories it indicates.
type KeywordEntry struct {
	Weight     float64
	Categories []string
}

// KeywordScorer matches a curated term table against incident text with
// word-boundary semantics and term-frequency amplification:
//
//	confidence = min(weight * (1 + tf), 1.0)
//
// Per category the maximum over its matched terms wins.
//
// Thread Safety: safe for concurrent use after construction.
type KeywordScorer struct {
	terms map[string]KeywordEntry

	mu       sync.Mutex
	compiled map[string]*regexp.Regexp
}

// NewKeywordScorer builds a scorer over the given term table; a nil
// table selects the banking default set.
func NewKeywordScorer(terms map[string]KeywordEntry) *KeywordScorer {
	if terms == nil {
		terms = defaultKeywordTable()
	}
	return &KeywordScorer{
		terms:    terms,
		compiled: make(map[string]*regexp.Regexp, len(terms)),
	}
}

func (s *KeywordScorer) Method() Method { return MethodKeyword }

func (s *KeywordScorer) Score(_ context.Context, text string, _ IncidentContext) ([]Candidate, error) {
	lowered := strings.ToLower(text)
	best := make(map[string]Candidate)

	for term, entry := range s.terms {
		re, err := s.pattern(term)
		if err != nil {
			return nil, err
		}
		hits := len(re.FindAllStringIndex(lowered, -1))
		if hits == 0 {
			continue
		}
		// tf counts occurrences beyond the first.
		conf := entry.Weight * (1 + float64(hits-1))
		if conf > 1 {
			conf = 1
		}
		ev := fmt.Sprintf("keyword %q x%d", term, hits)
		for _, cat := range entry.Categories {
			cur, ok := best[cat]
			if !ok || conf > cur.Confidence {
				best[cat] = Candidate{
					Category:   cat,
					Confidence: conf,
					Method:     MethodKeyword,
					Evidence:   []string{ev},
				}
			} else if conf == cur.Confidence {
				cur.Evidence = append(cur.Evidence, ev)
				best[cat] = cur
			}
		}
	}

	out := make([]Candidate, 0, len(best))
	for _, c := range best {
		sort.Strings(c.Evidence)
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

func (s *KeywordScorer) pattern(term string) (*regexp.Regexp, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if re, ok := s.compiled[term]; ok {
		return re, nil
	}
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(strings.ToLower(term)) + `\b`)
	if err != nil {
		return nil, fmt.Errorf("compile keyword %q: %w", term, err)
	}
	s.compiled[term] = re
	return re, nil
}

// defaultKeywordTable is the built-in banking-operations vocabulary.
// Weights are calibrated so that a single strong term plus one repeat
// saturates near 0.9 and generic terms stay below auto-tag thresholds.
func defaultKeywordTable() map[string]KeywordEntry {
	return map[string]KeywordEntry{
		// Payments.
		"pix":       {Weight: 0.45, Categories: []string{"payment-systems"}},
		"pagamento": {Weight: 0.45, Categories: []string{"payment-systems"}},
		"payment":   {Weight: 0.40, Categories: []string{"payment-systems"}},
		"boleto":    {Weight: 0.40, Categories: []string{"payment-systems"}},
		"ted":       {Weight: 0.35, Categories: []string{"payment-systems"}},
		"transfer":  {Weight: 0.30, Categories: []string{"payment-systems"}},

		// Mainframe and its children.
		"cobol":     {Weight: 0.45, Categories: []string{"cobol", "mainframe"}},
		"copybook":  {Weight: 0.45, Categories: []string{"cobol"}},
		"s0c4":      {Weight: 0.45, Categories: []string{"cobol", "mainframe"}},
		"s0c7":      {Weight: 0.45, Categories: []string{"cobol", "mainframe"}},
		"jcl":       {Weight: 0.45, Categories: []string{"jcl", "mainframe"}},
		"db2":       {Weight: 0.45, Categories: []string{"db2", "mainframe"}},
		"sqlcode":   {Weight: 0.45, Categories: []string{"db2"}},
		"cics":      {Weight: 0.45, Categories: []string{"cics", "mainframe"}},
		"asra":      {Weight: 0.45, Categories: []string{"cics"}},
		"vsam":      {Weight: 0.45, Categories: []string{"vsam", "mainframe"}},
		"abend":     {Weight: 0.40, Categories: []string{"mainframe"}},
		"abended":   {Weight: 0.40, Categories: []string{"mainframe"}},
		"mainframe": {Weight: 0.45, Categories: []string{"mainframe"}},
		"batch":     {Weight: 0.30, Categories: []string{"mainframe"}},

		// ATM network.
		"atm":       {Weight: 0.45, Categories: []string{"atm-network"}},
		"dispenser": {Weight: 0.40, Categories: []string{"atm-network"}},
		"cash":      {Weight: 0.30, Categories: []string{"atm-network"}},

		// Core banking.
		"ledger":  {Weight: 0.40, Categories: []string{"core-banking"}},
		"balance": {Weight: 0.35, Categories: []string{"core-banking"}},
		"posting": {Weight: 0.35, Categories: []string{"core-banking"}},
		"account": {Weight: 0.30, Categories: []string{"core-banking"}},

		// Digital channels.
		"internet banking": {Weight: 0.45, Categories: []string{"digital-channels"}},
		"mobile":           {Weight: 0.30, Categories: []string{"digital-channels"}},
		"login":            {Weight: 0.30, Categories: []string{"digital-channels"}},
		"app":              {Weight: 0.25, Categories: []string{"digital-channels"}},

		// Security.
		"fraud":        {Weight: 0.45, Categories: []string{"security"}},
		"phishing":     {Weight: 0.45, Categories: []string{"security"}},
		"breach":       {Weight: 0.45, Categories: []string{"security"}},
		"unauthorized": {Weight: 0.40, Categories: []string{"security"}},

		// Infrastructure.
		"outage":  {Weight: 0.35, Categories: []string{"infrastructure"}},
		"dns":     {Weight: 0.40, Categories: []string{"infrastructure"}},
		"vpn":     {Weight: 0.40, Categories: []string{"infrastructure"}},
		"server":  {Weight: 0.30, Categories: []string{"infrastructure"}},
		"network": {Weight: 0.30, Categories: []string{"infrastructure"}},
	}
}
