// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routing assigns classified incidents to teams: declarative
// rules first, taxonomy routing hints as fallback, with SLA adjustment
// and capacity-aware rebalancing on top.
package routing

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Match component scores. A rule's raw score is the sum of its matched
// components, scaled by the rule weight over 100.
const (
	scoreCategory   = 40.0
	scorePriority   = 30.0
	scorePerTag     = 10.0
	scorePerKeyword = 5.0
	scoreSource     = 15.0
	scoreTimeWindow = 10.0

	// FallbackScore marks a decision that no rule produced.
	FallbackScore = 1.0
)

// RuleMatch declares what an incident must look like for the rule to
// apply. Every populated group must match; within a group any element
// suffices. Tags and keywords additionally score per matched element.
type RuleMatch struct {
	Categories []string `yaml:"categories,omitempty" json:"categories,omitempty"`
	Priorities []string `yaml:"priorities,omitempty" json:"priorities,omitempty"`
	Tags       []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Keywords   []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Sources    []string `yaml:"sources,omitempty" json:"sources,omitempty"`

	// TimeWindow is one of business-hours, after-hours, weekend, any.
	TimeWindow string `yaml:"time_window,omitempty" json:"time_window,omitempty"`
}

// Rule is one declarative routing rule.
type Rule struct {
	ID          string    `yaml:"id" json:"id"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Target      string    `yaml:"target" json:"target"`
	Weight      float64   `yaml:"weight,omitempty" json:"weight,omitempty"`
	Disabled    bool      `yaml:"disabled,omitempty" json:"disabled,omitempty"`
	Match       RuleMatch `yaml:"match" json:"match"`
}

func (r *Rule) validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return fmt.Errorf("rule with empty id")
	}
	if strings.TrimSpace(r.Target) == "" {
		return fmt.Errorf("rule %s: empty target", r.ID)
	}
	if r.Weight < 0 {
		return fmt.Errorf("rule %s: negative weight", r.ID)
	}
	switch r.Match.TimeWindow {
	case "", "any", "business-hours", "after-hours", "weekend":
	default:
		return fmt.Errorf("rule %s: unknown time window %q", r.ID, r.Match.TimeWindow)
	}
	return nil
}

// RuleSet is a parsed, validated rule catalog.
type RuleSet struct {
	Rules []Rule `yaml:"rules" json:"rules"`
}

// ParseRules decodes a YAML rule catalog, applies defaults (weight 100,
// time window any), and validates every rule.
func ParseRules(raw []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(raw, &rs); err != nil {
		return nil, fmt.Errorf("parse routing rules: %w", err)
	}
	seen := make(map[string]bool, len(rs.Rules))
	for i := range rs.Rules {
		r := &rs.Rules[i]
		if r.Weight == 0 {
			r.Weight = 100
		}
		if err := r.validate(); err != nil {
			return nil, err
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("duplicate rule id %s", r.ID)
		}
		seen[r.ID] = true
	}
	return &rs, nil
}
