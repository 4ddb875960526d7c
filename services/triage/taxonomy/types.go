// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package taxonomy maintains the technical-category hierarchy used to
// classify incidents: mainframe subsystems (COBOL, JCL, DB2, CICS, VSAM)
// and the banking channels around them (payments, ATM network, core
// banking, digital channels).
//
// The catalog is seeded from a YAML file embedded in the binary (see the
// catalog subpackage) and is mutable at runtime through Registry. Every
// mutation revalidates the tree and rebuilds the keyword and pattern
// indices; taxonomy counts are small and mutations rare, so a full
// rebuild is acceptable.
package taxonomy

import (
	"fmt"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
)

// RoutingHint carries the routing defaults a taxonomy contributes to the
// incidents classified under it.
type RoutingHint struct {
	// DefaultTeam receives incidents of this category when no routing
	// rule outranks it.
	DefaultTeam string `yaml:"default_team" json:"default_team"`

	// EscalationTarget is the level-2 escalation destination.
	EscalationTarget string `yaml:"escalation_target" json:"escalation_target"`

	// BaseSLAMinutes is the unadjusted response budget in minutes.
	BaseSLAMinutes float64 `yaml:"base_sla_minutes" json:"base_sla_minutes"`
}

// Taxonomy is one node of the category hierarchy.
type Taxonomy struct {
	ID       string             `yaml:"id" json:"id"`
	Name     string             `yaml:"name" json:"name"`
	Level    int                `yaml:"level" json:"level"`
	Parent   string             `yaml:"parent,omitempty" json:"parent,omitempty"`
	Keywords []string           `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Patterns []string           `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	Priority datatypes.Priority `yaml:"priority" json:"priority"`
	Routing  RoutingHint        `yaml:"routing" json:"routing"`

	// compiled holds the compiled form of Patterns. Rebuilt on mutation.
	compiled []*regexp.Regexp
}

// CompiledPatterns returns the compiled regular expressions for this node.
func (t *Taxonomy) CompiledPatterns() []*regexp.Regexp {
	return t.compiled
}

// compilePatterns compiles Patterns, failing on the first invalid regex.
func (t *Taxonomy) compilePatterns() error {
	t.compiled = t.compiled[:0]
	for _, raw := range t.Patterns {
		re, err := regexp.Compile(raw)
		if err != nil {
			return fmt.Errorf("taxonomy %q: failed to compile the pattern %s: %w", t.ID, raw, err)
		}
		t.compiled = append(t.compiled, re)
	}
	return nil
}

// clone returns a deep copy safe to hand to callers while the registry
// keeps mutating its own copy.
func (t *Taxonomy) clone() *Taxonomy {
	c := *t
	c.Keywords = append([]string(nil), t.Keywords...)
	c.Patterns = append([]string(nil), t.Patterns...)
	c.compiled = append([]*regexp.Regexp(nil), t.compiled...)
	return &c
}

// CatalogFile is the YAML document layout of the embedded taxonomy catalog.
type CatalogFile struct {
	Taxonomies []Taxonomy `yaml:"taxonomies"`
}

// MarshalCatalog renders taxonomy nodes back into the catalog YAML
// layout, for snapshot persistence.
func MarshalCatalog(nodes []*Taxonomy) ([]byte, error) {
	file := CatalogFile{Taxonomies: make([]Taxonomy, 0, len(nodes))}
	for _, n := range nodes {
		file.Taxonomies = append(file.Taxonomies, *n)
	}
	raw, err := yaml.Marshal(&file)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal the taxonomy catalog: %w", err)
	}
	return raw, nil
}

// ParseCatalog unmarshals and compiles a YAML taxonomy catalog.
func ParseCatalog(raw []byte) (*CatalogFile, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to unmarshal the taxonomy catalog: %w", err)
	}
	for i := range file.Taxonomies {
		if err := file.Taxonomies[i].compilePatterns(); err != nil {
			return nil, err
		}
	}
	return &file, nil
}
