// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package taxonomy

import (
	"errors"
	"testing"

	"github.com/AleutianAI/AleutianTriage/services/triage/datatypes"
	"github.com/AleutianAI/AleutianTriage/services/triage/taxonomy/catalog"
)

func seedRegistry(t *testing.T) *Registry {
	t.Helper()
	file, err := ParseCatalog(catalog.TaxonomyCatalog)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	reg, err := NewRegistry(file, nil)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return reg
}

func TestSeedCatalogLoads(t *testing.T) {
	reg := seedRegistry(t)
	if reg.Count() < 10 {
		t.Fatalf("expected seed catalog with at least 10 taxonomies, got %d", reg.Count())
	}

	cobol, err := reg.Get("cobol")
	if err != nil {
		t.Fatalf("Get(cobol): %v", err)
	}
	if cobol.Parent != "mainframe" {
		t.Errorf("cobol parent = %q, want mainframe", cobol.Parent)
	}
	if len(cobol.CompiledPatterns()) != len(cobol.Patterns) {
		t.Errorf("cobol patterns not compiled: %d of %d", len(cobol.CompiledPatterns()), len(cobol.Patterns))
	}
}

func TestMarshalCatalogRoundTrips(t *testing.T) {
	reg := seedRegistry(t)

	raw, err := MarshalCatalog(reg.All())
	if err != nil {
		t.Fatalf("MarshalCatalog: %v", err)
	}
	file, err := ParseCatalog(raw)
	if err != nil {
		t.Fatalf("ParseCatalog(snapshot): %v", err)
	}
	if len(file.Taxonomies) != reg.Count() {
		t.Fatalf("snapshot holds %d taxonomies, registry has %d", len(file.Taxonomies), reg.Count())
	}
	reloaded, err := NewRegistry(file, nil)
	if err != nil {
		t.Fatalf("NewRegistry(snapshot): %v", err)
	}
	node, err := reloaded.Get("cobol")
	if err != nil {
		t.Fatalf("Get(cobol) after reload: %v", err)
	}
	if node.Parent != "mainframe" {
		t.Errorf("cobol parent = %q after reload, want mainframe", node.Parent)
	}
}

func TestAncestorPath(t *testing.T) {
	reg := seedRegistry(t)
	path, err := reg.AncestorPath("cobol")
	if err != nil {
		t.Fatalf("AncestorPath: %v", err)
	}
	if len(path) != 2 {
		t.Fatalf("expected 2-node path, got %d", len(path))
	}
	if path[0].ID != "mainframe" || path[1].ID != "cobol" {
		t.Errorf("path = [%s %s], want [mainframe cobol]", path[0].ID, path[1].ID)
	}
}

func TestSearchByKeywordRanksExactFirst(t *testing.T) {
	reg := seedRegistry(t)

	// "pix" is an exact keyword of payment-systems only.
	matches := reg.SearchByKeyword("pix")
	if len(matches) == 0 {
		t.Fatal("expected at least one match for pix")
	}
	if matches[0].ID != "payment-systems" {
		t.Errorf("first match = %q, want payment-systems", matches[0].ID)
	}

	// "cob" matches "cobol" only as a substring.
	matches = reg.SearchByKeyword("cob")
	found := false
	for _, m := range matches {
		if m.ID == "cobol" {
			found = true
		}
	}
	if !found {
		t.Error("substring search for 'cob' did not return cobol")
	}
}

func TestSearchByKeywordDeduplicates(t *testing.T) {
	reg := seedRegistry(t)
	matches := reg.SearchByKeyword("a")
	seen := map[string]bool{}
	for _, m := range matches {
		if seen[m.ID] {
			t.Fatalf("duplicate taxonomy %q in results", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestSearchByPattern(t *testing.T) {
	reg := seedRegistry(t)
	matches := reg.SearchByPattern("Batch job PAYRUN01 abended with S0C4")
	ids := map[string]bool{}
	for _, m := range matches {
		ids[m.ID] = true
	}
	if !ids["mainframe"] {
		t.Error("expected mainframe pattern match for 'abended'")
	}
	if !ids["cobol"] {
		t.Error("expected cobol pattern match for 'S0C4'")
	}
}

func TestMutationsRebuildIndices(t *testing.T) {
	reg := seedRegistry(t)

	node := &Taxonomy{
		ID:       "open-finance",
		Name:     "Open Finance",
		Level:    1,
		Priority: datatypes.PriorityHigh,
		Keywords: []string{"open finance", "consent"},
		Patterns: []string{`(?i)\bopen finance\b`},
		Routing:  RoutingHint{DefaultTeam: "digital-channels-team", BaseSLAMinutes: 20},
	}
	if err := reg.Add(node); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if got := reg.SearchByKeyword("consent"); len(got) != 1 || got[0].ID != "open-finance" {
		t.Fatalf("keyword index not rebuilt after Add: %v", got)
	}

	if err := reg.Add(node); !errors.Is(err, ErrDuplicateID) {
		t.Errorf("duplicate Add error = %v, want ErrDuplicateID", err)
	}

	node.Keywords = []string{"open finance"}
	if err := reg.Update(node); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got := reg.SearchByKeyword("consent"); len(got) != 0 {
		t.Errorf("stale keyword index entry after Update: %v", got)
	}

	if err := reg.Remove("open-finance"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := reg.Get("open-finance"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Remove = %v, want ErrNotFound", err)
	}
}

func TestRemoveReparentsChildren(t *testing.T) {
	reg := seedRegistry(t)

	if err := reg.Remove("mainframe"); err != nil {
		t.Fatalf("Remove(mainframe): %v", err)
	}
	cobol, err := reg.Get("cobol")
	if err != nil {
		t.Fatalf("Get(cobol): %v", err)
	}
	if cobol.Parent != "" {
		t.Errorf("cobol parent after reparent = %q, want root", cobol.Parent)
	}
	if cobol.Level != 1 {
		t.Errorf("cobol level after reparent = %d, want 1", cobol.Level)
	}
}

func TestRejectsMissingParentAndCycles(t *testing.T) {
	reg := seedRegistry(t)

	orphan := &Taxonomy{ID: "x", Name: "X", Level: 2, Parent: "nope", Priority: datatypes.PriorityLow}
	if err := reg.Add(orphan); !errors.Is(err, ErrMissingParent) {
		t.Errorf("Add with missing parent = %v, want ErrMissingParent", err)
	}

	// mainframe -> cobol edge exists; pointing mainframe at cobol closes a cycle.
	mainframe, err := reg.Get("mainframe")
	if err != nil {
		t.Fatal(err)
	}
	mainframe.Parent = "cobol"
	mainframe.Level = 3
	if err := reg.Update(mainframe); !errors.Is(err, ErrCycle) {
		t.Errorf("cycle Update = %v, want ErrCycle", err)
	}
	// Registry must be unchanged after the rejected update.
	got, err := reg.Get("mainframe")
	if err != nil {
		t.Fatal(err)
	}
	if got.Parent != "" {
		t.Errorf("mainframe parent mutated by failed update: %q", got.Parent)
	}
}

func TestValidateNode(t *testing.T) {
	cases := []struct {
		name string
		node *Taxonomy
	}{
		{"nil", nil},
		{"no id", &Taxonomy{Name: "n", Level: 1, Priority: datatypes.PriorityLow}},
		{"no name", &Taxonomy{ID: "i", Level: 1, Priority: datatypes.PriorityLow}},
		{"bad level", &Taxonomy{ID: "i", Name: "n", Level: 0, Priority: datatypes.PriorityLow}},
		{"bad priority", &Taxonomy{ID: "i", Name: "n", Level: 1, Priority: "urgent"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := validateNode(tc.node); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
