// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package routing

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
	"github.com/AleutianAI/AleutianTriage/services/triage/tagging"
)

// AncestorFn resolves a category to its taxonomy ancestors, root-first,
// excluding the category itself. May be nil.
type AncestorFn func(category string) []string

// RuleCandidate is one eligible rule with its computed score.
type RuleCandidate struct {
	Rule    *Rule
	Score   float64
	Matched []string
}

// Selector evaluates the rule set against a triaged incident.
//
// Thread Safety: safe for concurrent use after construction.
type Selector struct {
	rules     *RuleSet
	calendar  *tagging.Calendar
	ancestors AncestorFn
}

// NewSelector builds a selector. calendar nil selects UTC business
// hours; ancestors nil disables hierarchical category matching.
func NewSelector(rules *RuleSet, calendar *tagging.Calendar, ancestors AncestorFn) *Selector {
	if calendar == nil {
		calendar = tagging.NewCalendar(nil)
	}
	return &Selector{rules: rules, calendar: calendar, ancestors: ancestors}
}

// Select returns the best-scoring eligible rule for the incident, or
// false when no rule applies. category is the classified primary
// category; a rule naming any of its ancestors also matches.
func (s *Selector) Select(inc *datatypes.Incident, category string, tags []string) (*RuleCandidate, bool) {
	lineage := map[string]bool{}
	if category != "" {
		lineage[category] = true
		if s.ancestors != nil {
			for _, a := range s.ancestors(category) {
				lineage[a] = true
			}
		}
	}
	tagSet := make(map[string]bool, len(tags))
	for _, t := range tags {
		tagSet[t] = true
	}
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(inc.Text())) {
		tokens[strings.Trim(t, ".,:;!?()[]\"'")] = true
	}
	window := s.calendar.TemporalTag(inc.Timestamp)

	var best *RuleCandidate
	for i := range s.rules.Rules {
		rule := &s.rules.Rules[i]
		if rule.Disabled {
			continue
		}
		cand, ok := s.evaluate(rule, inc, lineage, tagSet, tokens, window)
		if !ok {
			continue
		}
		if best == nil || cand.Score > best.Score ||
			(cand.Score == best.Score && cand.Rule.ID < best.Rule.ID) {
			best = cand
		}
	}
	return best, best != nil
}

// evaluate scores one rule; every populated match group must hold.
func (s *Selector) evaluate(rule *Rule, inc *datatypes.Incident, lineage, tagSet, tokens map[string]bool, window string) (*RuleCandidate, bool) {
	raw := 0.0
	var matched []string
	m := rule.Match

	if len(m.Categories) > 0 {
		hit := ""
		for _, c := range m.Categories {
			if lineage[c] {
				hit = c
				break
			}
		}
		if hit == "" {
			return nil, false
		}
		raw += scoreCategory
		matched = append(matched, "category="+hit)
	}

	if len(m.Priorities) > 0 {
		if !contains(m.Priorities, string(inc.Priority)) {
			return nil, false
		}
		raw += scorePriority
		matched = append(matched, "priority="+string(inc.Priority))
	}

	if len(m.Tags) > 0 {
		hits := 0
		for _, t := range m.Tags {
			if tagSet[tagging.Normalize(t)] {
				hits++
				matched = append(matched, "tag="+t)
			}
		}
		if hits == 0 {
			return nil, false
		}
		raw += scorePerTag * float64(hits)
	}

	if len(m.Keywords) > 0 {
		hits := 0
		for _, k := range m.Keywords {
			if tokens[strings.ToLower(k)] {
				hits++
				matched = append(matched, "keyword="+k)
			}
		}
		if hits == 0 {
			return nil, false
		}
		raw += scorePerKeyword * float64(hits)
	}

	if len(m.Sources) > 0 {
		if !contains(m.Sources, strings.ToLower(inc.Source)) {
			return nil, false
		}
		raw += scoreSource
		matched = append(matched, "source="+inc.Source)
	}

	if m.TimeWindow != "" && m.TimeWindow != "any" {
		if m.TimeWindow != window {
			return nil, false
		}
		raw += scoreTimeWindow
		matched = append(matched, "window="+window)
	}

	if raw == 0 {
		// A rule with no match groups would catch everything; treat it
		// as ineligible rather than a universal magnet.
		return nil, false
	}
	return &RuleCandidate{
		Rule:    rule,
		Score:   raw * rule.Weight / 100,
		Matched: matched,
	}, true
}

// Reason renders a human-readable explanation of the selection.
func (c *RuleCandidate) Reason() string {
	return fmt.Sprintf("rule %s (score %.1f): %s", c.Rule.ID, c.Score, strings.Join(c.Matched, ", "))
}

func contains(list []string, v string) bool {
	for _, e := range list {
		if strings.EqualFold(e, v) {
			return true
		}
	}
	return false
}
