// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validation

import (
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	valid := []string{"INC-2024-001", "payment-systems", "mainframe.cobol", "a", "Team_42"}
	for _, id := range valid {
		if err := ValidateID(id); err != nil {
			t.Errorf("ValidateID(%q) unexpected error: %v", id, err)
		}
	}

	invalid := []string{"", "-starts-with-dash", "has space", "semi;colon", strings.Repeat("x", 65)}
	for _, id := range invalid {
		if err := ValidateID(id); err == nil {
			t.Errorf("ValidateID(%q) expected error, got nil", id)
		}
	}
}

func TestValidateIncidentInput(t *testing.T) {
	cases := []struct {
		name        string
		id          string
		title       string
		description string
		wantErr     bool
		wantField   string
	}{
		{"valid with title", "INC-1", "ATM offline", "", false, ""},
		{"valid with description", "INC-2", "", "PIX payment failed", false, ""},
		{"missing id", "", "ATM offline", "", true, "id is required"},
		{"missing text", "INC-3", "", "   ", true, "title or description is required"},
		{"bad id format", "bad id", "ATM offline", "", true, "invalid id format"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateIncidentInput(tc.id, tc.title, tc.description)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				if !strings.Contains(err.Error(), tc.wantField) {
					t.Errorf("error %q does not name %q", err.Error(), tc.wantField)
				}
			} else if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateIncidentInputNamesAllFields(t *testing.T) {
	err := ValidateIncidentInput("", "", "")
	if err == nil {
		t.Fatal("expected error")
	}
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if len(verr.Fields) != 2 {
		t.Errorf("expected 2 field errors, got %d: %v", len(verr.Fields), verr.Fields)
	}
}
