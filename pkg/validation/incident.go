// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validation provides input validation for identifiers that end up
// in storage keys, log attributes, and routing decisions.
//
// Incident and catalog ids are caller-supplied strings. Validating them up
// front keeps malformed input out of the badger keyspace and prevents log
// injection through crafted ids.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// idPattern matches valid incident/taxonomy/team identifiers.
// Allows: letters, digits, dots, hyphens, underscores. Max 64 characters.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._\-]{0,63}$`)

// ValidateID checks a caller-supplied identifier (incident, taxonomy, team,
// or tag id).
//
// Valid ids are 1-64 characters of letters, digits, dots, hyphens, or
// underscores, starting with a letter or digit.
//
// Example:
//
//	if err := validation.ValidateID(incident.ID); err != nil {
//	    return fmt.Errorf("invalid incident id: %w", err)
//	}
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("invalid id format: %q (must be 1-64 alphanumeric chars, dots, hyphens, or underscores)", id)
	}
	return nil
}

// ValidationError reports the fields missing or malformed on an incoming
// incident. It names every offending field so operators can fix the
// reporting integration in one pass.
type ValidationError struct {
	Fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "invalid incident: " + strings.Join(e.Fields, ", ")
}

// ValidateIncidentInput checks the minimal contract for entering the
// pipeline: id is present and well-formed, and at least one of title or
// description is non-blank.
//
// Returns a *ValidationError naming each failing field, or nil.
func ValidateIncidentInput(id, title, description string) error {
	var fields []string

	if id == "" {
		fields = append(fields, "id is required")
	} else if err := ValidateID(id); err != nil {
		fields = append(fields, err.Error())
	}

	if strings.TrimSpace(title) == "" && strings.TrimSpace(description) == "" {
		fields = append(fields, "title or description is required")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
